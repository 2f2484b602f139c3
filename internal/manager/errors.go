package manager

import "wastesort/internal/errs"

// ErrDependencyUnavailable signals a missing external dependency (e.g.,
// onnxruntime) so the HTTP layer can return 503 instead of 500.
func ErrDependencyUnavailable(msg string) error {
	return errs.New(errs.DependencyUnavailable, msg)
}

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	return errs.Is(err, errs.DependencyUnavailable)
}

// IsClientError reports whether err was caused by the submitted image
// rather than by the model or the server.
func IsClientError(err error) bool {
	switch errs.KindOf(err) {
	case errs.ImageDecodeError, errs.TensorConversionError, errs.BadRequest:
		return true
	}
	return false
}

// Package errs defines the error taxonomy shared by the model loading and
// classification pipeline. Every error carries a Kind so callers (the HTTP
// layer, the CLI) can map failures without string matching.
package errs

import (
	"errors"
	"net/http"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	ArtifactNotFound
	ArtifactCorrupt
	WeightShardMissing
	ImageDecodeError
	TensorConversionError
	InferenceError
	EmptyOutput
	DependencyUnavailable
	BadRequest
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	ArtifactNotFound:      "artifact_not_found",
	ArtifactCorrupt:       "artifact_corrupt",
	WeightShardMissing:    "weight_shard_missing",
	ImageDecodeError:      "image_decode_error",
	TensorConversionError: "tensor_conversion_error",
	InferenceError:        "inference_error",
	EmptyOutput:           "empty_output",
	DependencyUnavailable: "dependency_unavailable",
	BadRequest:            "bad_request",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the concrete error type for the pipeline.
type Error struct {
	Kind Kind
	// Path names the file or directory involved, if any.
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Path != "" {
		b.WriteString(" (")
		b.WriteString(e.Path)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode maps the kind onto an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case BadRequest:
		return http.StatusBadRequest
	case ImageDecodeError, TensorConversionError:
		return http.StatusUnprocessableEntity
	case ArtifactNotFound, ArtifactCorrupt, WeightShardMissing, DependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New builds an *Error without a cause.
func New(kind Kind, msg string) error { return &Error{Kind: kind, Msg: msg} }

// Wrap builds an *Error around cause.
func Wrap(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// WithPath builds an *Error naming the offending file.
func WithPath(kind Kind, path, msg string, cause error) error {
	return &Error{Kind: kind, Path: path, Msg: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}


package manager

import (
	"wastesort/internal/artifact"
	"wastesort/internal/tensor"
)

// RuntimeAdapter builds an executable model from loaded artifacts.
// Concrete implementations (the layers executor, onnxruntime) satisfy this
// interface.
type RuntimeAdapter interface {
	// Name identifies the backend in status output and logs.
	Name() string
	// Supports reports whether the adapter can run artifacts of format.
	Supports(format string) bool
	// Build constructs the model. Errors should carry an errs.Kind.
	Build(a *artifact.Artifacts) (RuntimeModel, error)
}

// RuntimeModel is a built model ready for inference.
type RuntimeModel interface {
	// InputShape is the declared per-sample input shape without the batch
	// axis; unknown dimensions are -1. It may be nil.
	InputShape() []int
	// Layout is the axis order the model expects.
	Layout() tensor.Layout
	// Predict runs a batch-1 input. The caller keeps ownership of in and
	// owns the returned tensors.
	Predict(in *tensor.Tensor) ([]*tensor.Tensor, error)
	// Close releases any resources associated with the model.
	Close() error
}

package manager

import (
	"wastesort/internal/errs"
	"wastesort/internal/tensor"
)

// execute runs one forward pass and returns the first output as plain
// floats. Every output tensor is handed to scope.
func execute(lm *LoadedModel, in *tensor.Tensor, scope *tensor.Scope) ([]float32, error) {
	outs, err := lm.predict(in)
	for _, o := range outs {
		if o != nil {
			scope.Track(o)
		}
	}
	if err != nil {
		if errs.KindOf(err) != errs.KindUnknown {
			return nil, err
		}
		return nil, errs.Wrap(errs.InferenceError, "model prediction failed", err)
	}
	if len(outs) == 0 || outs[0] == nil {
		return nil, errs.New(errs.InferenceError, "model prediction returned no tensor")
	}
	v := outs[0].Values()
	if len(v) == 0 {
		return nil, errs.New(errs.EmptyOutput, "model output is empty")
	}
	return v, nil
}

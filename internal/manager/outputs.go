package manager

import (
	"github.com/rs/zerolog"

	"wastesort/internal/tensor"
)

// convertOutputs converts every runtime output with conv. Either all
// converted tensors are returned or all of them are released.
func convertOutputs[T any](outs []T, conv func(i int, v T) (*tensor.Tensor, error), log zerolog.Logger) ([]*tensor.Tensor, error) {
	scope := tensor.NewScope(log)
	defer scope.Close()
	res := make([]*tensor.Tensor, 0, len(outs))
	for i, v := range outs {
		t, err := conv(i, v)
		if err != nil {
			return nil, err
		}
		scope.Track(t)
		res = append(res, t)
	}
	for _, t := range res {
		scope.Forget(t)
	}
	return res, nil
}

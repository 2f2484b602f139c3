//go:build !onnxruntime

package manager

// This file provides a no-CGO stub for the onnx adapter. It is compiled when
// the 'onnxruntime' build tag is NOT set, keeping default builds CGO-free.
// The real adapter lives in adapter_onnx.go.

import (
	"github.com/rs/zerolog"

	"wastesort/internal/artifact"
)

// onnxBuilt indicates this binary was compiled with onnxruntime support.
const onnxBuilt = false

type onnxAdapter struct {
	libPath string
	log     zerolog.Logger
}

func NewONNXAdapter(libPath string, log zerolog.Logger) RuntimeAdapter {
	return &onnxAdapter{libPath: libPath, log: log}
}

func (a *onnxAdapter) Name() string { return "onnx" }

// Supports claims the format so callers get a clear dependency error
// instead of "no adapter".
func (a *onnxAdapter) Supports(format string) bool { return format == artifact.FormatONNX }

func (a *onnxAdapter) Build(*artifact.Artifacts) (RuntimeModel, error) {
	return nil, ErrDependencyUnavailable("onnx support not built (missing 'onnxruntime' build tag)")
}

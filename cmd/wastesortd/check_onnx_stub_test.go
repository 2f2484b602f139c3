//go:build !onnxruntime

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastesort/internal/artifact"
)

func TestCheckONNXWithoutRuntimePrintsHint(t *testing.T) {
	t.Setenv(artifact.EnvModelDir, "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, artifact.ONNXModelFile), []byte("onnx bytes"), 0o644))

	_, out, err := run(t, "check", "--env-file", "", "--model-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency_unavailable")
	assert.Contains(t, out, "format: onnx")
	assert.Contains(t, out, "hint: onnx models need")
}

// Package artifact finds and reads serialized model artifacts: a topology
// file, its weight shards, and an optional metadata file with class labels.
//
// Two on-disk formats are recognized:
//
//   - layers-model: model.json with a weightsManifest listing binary shards
//     that are concatenated in manifest order.
//   - onnx: a single model.onnx file.
package artifact

import (
	"path/filepath"
	"strings"

	"wastesort/internal/common/fsutil"
	"wastesort/internal/errs"
)

// Topology file names, in recognition order.
const (
	LayersModelFile = "model.json"
	ONNXModelFile   = "model.onnx"
	MetadataFile    = "metadata.json"
)

// EnvModelDir overrides the first model directory candidate.
const EnvModelDir = "TFJS_MODEL_DIR"

// fallbackDirs are tried relative to the working directory.
var fallbackDirs = []string{
	"../My image model",
	"../my image model",
	"My image model",
	"my image model",
}

// exeFallbackDirs are tried relative to the executable's directory.
var exeFallbackDirs = []string{
	"../My image model",
	"../my image model",
	"../../My image model",
	"../../my image model",
}

// Candidates builds the ordered list of directories to search: the env
// override, then configured directories, then the fixed fallbacks relative
// to cwd and exeDir. Empty entries are dropped; duplicates keep their first
// position.
func Candidates(envValue string, configured []string, cwd, exeDir string) []string {
	var raw []string
	if v := fsutil.TrimQuotes(envValue); v != "" {
		raw = append(raw, v)
	}
	raw = append(raw, configured...)
	if cwd != "" {
		for _, d := range fallbackDirs {
			raw = append(raw, filepath.Join(cwd, d))
		}
	}
	if exeDir != "" {
		for _, d := range exeFallbackDirs {
			raw = append(raw, filepath.Join(exeDir, d))
		}
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, d := range raw {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if exp, err := fsutil.ExpandHome(d); err == nil {
			d = exp
		}
		if abs, err := filepath.Abs(d); err == nil {
			d = abs
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// TopologyFile returns the recognized topology file inside dir, or "".
func TopologyFile(dir string) string {
	for _, name := range []string{LayersModelFile, ONNXModelFile} {
		p := filepath.Join(dir, name)
		if fsutil.IsFile(p) {
			return p
		}
	}
	return ""
}

// Locate returns the first candidate directory holding a topology file.
func Locate(candidates []string) (string, error) {
	for _, dir := range candidates {
		if TopologyFile(dir) != "" {
			return dir, nil
		}
	}
	return "", &errs.Error{
		Kind: errs.ArtifactNotFound,
		Msg: "model not found; searched:\n  " + strings.Join(candidates, "\n  ") +
			"\nset " + EnvModelDir + " or place the model in one of these directories",
	}
}

// FormatOf returns the artifact format found in dir, or "" when dir holds
// no topology file.
func FormatOf(dir string) string {
	switch filepath.Base(TopologyFile(dir)) {
	case LayersModelFile:
		return FormatLayers
	case ONNXModelFile:
		return FormatONNX
	}
	return ""
}

package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"wastesort/internal/common/fsutil"
	"wastesort/internal/errs"
)

// Artifact formats.
const (
	FormatLayers = "layers-model"
	FormatONNX   = "onnx"
)

// Quantization describes affine-quantized weights: value = q*Scale + Min.
type Quantization struct {
	DType string  `json:"dtype"`
	Scale float64 `json:"scale"`
	Min   float64 `json:"min"`
}

// WeightSpec names one tensor inside the concatenated weight buffer.
type WeightSpec struct {
	Name         string        `json:"name"`
	Shape        []int         `json:"shape"`
	DType        string        `json:"dtype"`
	Quantization *Quantization `json:"quantization,omitempty"`
}

// Numel returns the element count of the weight.
func (w WeightSpec) Numel() int {
	n := 1
	for _, d := range w.Shape {
		n *= d
	}
	return n
}

// ElemSize returns the stored bytes per element.
func (w WeightSpec) ElemSize() (int, error) {
	dt := w.DType
	if w.Quantization != nil {
		dt = w.Quantization.DType
	}
	switch dt {
	case "float32", "int32":
		return 4, nil
	case "uint16", "float16":
		return 2, nil
	case "uint8", "bool":
		return 1, nil
	}
	return 0, fmt.Errorf("unsupported weight dtype %q", dt)
}

// ByteSize returns the stored size of the weight in bytes.
func (w WeightSpec) ByteSize() (int, error) {
	es, err := w.ElemSize()
	if err != nil {
		return 0, err
	}
	return w.Numel() * es, nil
}

// WeightGroup is one entry of the weights manifest.
type WeightGroup struct {
	Paths   []string     `json:"paths"`
	Weights []WeightSpec `json:"weights"`
}

// Manifest is the parsed model.json.
type Manifest struct {
	Format          string          `json:"format"`
	GeneratedBy     string          `json:"generatedBy"`
	ConvertedBy     string          `json:"convertedBy"`
	ModelTopology   json.RawMessage `json:"modelTopology"`
	WeightsManifest []WeightGroup   `json:"weightsManifest"`
}

// Artifacts is everything a runtime needs to construct a model. It is
// immutable once returned by Load.
type Artifacts struct {
	Dir         string
	Format      string
	GeneratedBy string
	ConvertedBy string
	Topology    json.RawMessage
	// WeightSpecs are flattened across groups in manifest order; byte
	// offsets into WeightData follow the same order.
	WeightSpecs []WeightSpec
	WeightData  []byte
	ONNX        []byte
}

// Load reads the artifacts in dir. The layers format is preferred when both
// topology files are present.
func Load(dir string) (*Artifacts, error) {
	if p := filepath.Join(dir, LayersModelFile); fsutil.IsFile(p) {
		return loadLayers(dir, p)
	}
	if p := filepath.Join(dir, ONNXModelFile); fsutil.IsFile(p) {
		return loadONNX(dir, p)
	}
	return nil, errs.WithPath(errs.ArtifactNotFound, dir, "no topology file", nil)
}

func loadLayers(dir, path string) (*Artifacts, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WithPath(errs.ArtifactCorrupt, path, "read topology", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errs.WithPath(errs.ArtifactCorrupt, path, "parse topology", err)
	}
	if len(m.WeightsManifest) == 0 {
		return nil, errs.WithPath(errs.ArtifactCorrupt, path, "no weightsManifest found", nil)
	}
	var specs []WeightSpec
	var paths []string
	for _, g := range m.WeightsManifest {
		specs = append(specs, g.Weights...)
		paths = append(paths, g.Paths...)
	}
	if len(specs) == 0 || len(paths) == 0 {
		return nil, errs.WithPath(errs.ArtifactCorrupt, path, "weightsManifest lists no weights or no paths", nil)
	}

	shards := make([][]byte, 0, len(paths))
	total := 0
	for _, rel := range paths {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		b, err := fsutil.ReadNonEmpty(abs)
		if err != nil {
			msg := "weight file not readable"
			if errors.Is(err, fsutil.ErrEmptyFile) {
				msg = "weight file is empty"
			} else if errors.Is(err, os.ErrNotExist) {
				msg = "weight file not found"
			}
			return nil, errs.WithPath(errs.WeightShardMissing, abs, msg, err)
		}
		shards = append(shards, b)
		total += len(b)
	}
	data := bytes.Join(shards, nil)

	need := 0
	for _, s := range specs {
		n, err := s.ByteSize()
		if err != nil {
			return nil, errs.WithPath(errs.ArtifactCorrupt, path, "weight "+s.Name, err)
		}
		need += n
	}
	if need > total {
		return nil, errs.WithPath(errs.ArtifactCorrupt, path,
			fmt.Sprintf("weights need %d bytes but shards hold %d", need, total), nil)
	}

	format := m.Format
	if format == "" {
		format = FormatLayers
	}
	return &Artifacts{
		Dir:         dir,
		Format:      format,
		GeneratedBy: m.GeneratedBy,
		ConvertedBy: m.ConvertedBy,
		Topology:    m.ModelTopology,
		WeightSpecs: specs,
		WeightData:  data,
	}, nil
}

func loadONNX(dir, path string) (*Artifacts, error) {
	b, err := fsutil.ReadNonEmpty(path)
	if err != nil {
		return nil, errs.WithPath(errs.ArtifactCorrupt, path, "read onnx model", err)
	}
	return &Artifacts{Dir: dir, Format: FormatONNX, ONNX: b}, nil
}

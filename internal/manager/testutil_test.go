package manager

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wastesort/internal/artifact"
	"wastesort/internal/tensor"
)

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func writeFile(t *testing.T, dir, name string, b []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// writeColorModel writes a layers model that averages each RGB channel over
// a 4x4 image and scales it by 2, so a pure red image yields logits
// [2,0,0]. shard overrides the weight bytes when non-nil.
func writeColorModel(t *testing.T, dir string, labels []string, shard []byte) {
	t.Helper()
	top := json.RawMessage(`{"class_name":"Sequential","config":{"name":"color","layers":[
		{"class_name":"GlobalAveragePooling2D","config":{"name":"gap","batch_input_shape":[null,4,4,3]}},
		{"class_name":"Dense","config":{"name":"dense","units":3,"activation":"linear"}}]}}`)
	m := map[string]any{
		"format":        "layers-model",
		"generatedBy":   "keras v2.13.1",
		"modelTopology": top,
		"weightsManifest": []any{map[string]any{
			"paths": []string{"group1-shard1of1.bin"},
			"weights": []any{
				map[string]any{"name": "dense/kernel", "shape": []int{3, 3}, "dtype": "float32"},
				map[string]any{"name": "dense/bias", "shape": []int{3}, "dtype": "float32"},
			},
		}},
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	writeFile(t, dir, artifact.LayersModelFile, b)
	if shard == nil {
		for _, v := range []float32{2, 0, 0, 0, 2, 0, 0, 0, 2, 0, 0, 0} {
			shard = binary.LittleEndian.AppendUint32(shard, math.Float32bits(v))
		}
	}
	writeFile(t, dir, "group1-shard1of1.bin", shard)
	if labels != nil {
		mb, _ := json.Marshal(map[string]any{"labels": labels})
		writeFile(t, dir, artifact.MetadataFile, mb)
	}
}

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// countingSource wraps the filesystem source, counts calls and can hold
// Load until gate is closed.
type countingSource struct {
	locates atomic.Int32
	loads   atomic.Int32
	gate    chan struct{}
	// failFirst makes the first Locate fail with failErr.
	failFirst atomic.Bool
	failErr   error
}

func (s *countingSource) Locate(c []string) (string, error) {
	s.locates.Add(1)
	if s.failFirst.CompareAndSwap(true, false) {
		return "", s.failErr
	}
	return artifact.Locate(c)
}

func (s *countingSource) Load(dir string) (*artifact.Artifacts, error) {
	s.loads.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return artifact.Load(dir)
}

func (s *countingSource) Metadata(dir string) (*artifact.Metadata, error) {
	return artifact.LoadMetadata(dir)
}

func newTestManager(t *testing.T, dir string, src ArtifactSource) (*Manager, *MemoryPublisher) {
	t.Helper()
	pub := NewMemoryPublisher()
	m := NewWithConfig(ManagerConfig{
		Logger:     zerolog.Nop(),
		Candidates: []string{filepath.Join(dir, "missing"), dir},
		Source:     src,
		Publisher:  pub,
	})
	t.Cleanup(func() { _ = m.Close() })
	return m, pub
}

// fakeAdapter serves any format with a scripted RuntimeModel.
type fakeAdapter struct {
	model *fakeModel
	err   error
}

func (a *fakeAdapter) Name() string        { return "fake" }
func (a *fakeAdapter) Supports(string) bool { return true }
func (a *fakeAdapter) Build(*artifact.Artifacts) (RuntimeModel, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.model, nil
}

type fakeModel struct {
	shape   []int
	layout  tensor.Layout
	predict func(in *tensor.Tensor) ([]*tensor.Tensor, error)

	mu     sync.Mutex
	closed int
}

func (f *fakeModel) InputShape() []int     { return f.shape }
func (f *fakeModel) Layout() tensor.Layout { return f.layout }
func (f *fakeModel) Predict(in *tensor.Tensor) ([]*tensor.Tensor, error) {
	return f.predict(in)
}
func (f *fakeModel) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

// staticSource returns fixed artifacts without touching the filesystem.
type staticSource struct{ md *artifact.Metadata }

func (staticSource) Locate([]string) (string, error) { return "/models/fake", nil }
func (staticSource) Load(dir string) (*artifact.Artifacts, error) {
	return &artifact.Artifacts{Dir: dir, Format: artifact.FormatONNX, ONNX: []byte{1}}, nil
}
func (s staticSource) Metadata(string) (*artifact.Metadata, error) {
	if s.md == nil {
		return nil, os.ErrNotExist
	}
	return s.md, nil
}

func newFakeManager(t *testing.T, fm *fakeModel, md *artifact.Metadata) *Manager {
	t.Helper()
	m := NewWithConfig(ManagerConfig{
		Logger:     zerolog.Nop(),
		Candidates: []string{"/models/fake"},
		Source:     staticSource{md: md},
		Adapters:   []RuntimeAdapter{&fakeAdapter{model: fm}},
	})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// checkNoLeak fails the test if the live tensor count moved.
func checkNoLeak(t *testing.T, before int64) {
	t.Helper()
	if after := tensor.Live(); after != before {
		t.Fatalf("tensor leak: live %d before, %d after", before, after)
	}
}

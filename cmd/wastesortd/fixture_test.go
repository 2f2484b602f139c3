package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"wastesort/internal/artifact"
)

// writeModel writes a tiny layers model: global average pooling over a 4x4
// RGB image followed by a dense layer that doubles each channel.
func writeModel(t *testing.T, dir string, labels ...string) {
	t.Helper()
	topo := json.RawMessage(`{"class_name":"Sequential","config":{"name":"color","layers":[
		{"class_name":"GlobalAveragePooling2D","config":{"name":"gap","batch_input_shape":[null,4,4,3]}},
		{"class_name":"Dense","config":{"name":"dense","units":3,"activation":"linear"}}]}}`)
	m, err := json.Marshal(map[string]any{
		"format":        "layers-model",
		"modelTopology": topo,
		"weightsManifest": []any{map[string]any{
			"paths": []string{"group1-shard1of1.bin"},
			"weights": []any{
				map[string]any{"name": "dense/kernel", "shape": []int{3, 3}, "dtype": "float32"},
				map[string]any{"name": "dense/bias", "shape": []int{3}, "dtype": "float32"},
			},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	var shard []byte
	for _, v := range []float32{2, 0, 0, 0, 2, 0, 0, 0, 2, 0, 0, 0} {
		shard = binary.LittleEndian.AppendUint32(shard, math.Float32bits(v))
	}
	files := map[string][]byte{
		artifact.LayersModelFile: m,
		"group1-shard1of1.bin":   shard,
	}
	if len(labels) > 0 {
		files[artifact.MetadataFile], _ = json.Marshal(map[string]any{"labels": labels})
	}
	for name, b := range files {
		if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func pngOf(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

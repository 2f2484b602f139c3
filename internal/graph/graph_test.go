package graph

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog"

	"wastesort/internal/artifact"
	"wastesort/internal/tensor"
)

type testWeight struct {
	name  string
	shape []int
	vals  []float32
}

func pack(ws ...testWeight) ([]artifact.WeightSpec, []byte) {
	var specs []artifact.WeightSpec
	var data []byte
	for _, w := range ws {
		specs = append(specs, artifact.WeightSpec{Name: w.name, Shape: w.shape, DType: "float32"})
		for _, v := range w.vals {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
		}
	}
	return specs, data
}

func ones(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

func build(t *testing.T, topology string, ws ...testWeight) *Model {
	t.Helper()
	specs, data := pack(ws...)
	m, err := Build(json.RawMessage(topology), specs, data, Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return m
}

// predict runs m and checks that nothing but the caller's input leaked.
func predict(t *testing.T, m *Model, vals []float32, shape ...int) ([]float32, []int) {
	t.Helper()
	before := tensor.Live()
	in, err := tensor.FromSlice(vals, shape...)
	if err != nil {
		t.Fatalf("input: %v", err)
	}
	outs, err := m.Predict(in)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(outs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outs))
	}
	got, gotShape := outs[0].Values(), outs[0].Shape()
	outs[0].Release()
	in.Release()
	if after := tensor.Live(); after != before {
		t.Fatalf("tensor leak: live %d before, %d after", before, after)
	}
	return got, gotShape
}

var approx = cmpopts.EquateApprox(0, 1e-5)

func TestSequentialDense(t *testing.T) {
	m := build(t, `{"class_name":"Sequential","config":{"name":"seq","layers":[
		{"class_name":"Dense","config":{"name":"dense","units":2,"activation":"linear","batch_input_shape":[null,2]}}]}}`,
		testWeight{"dense/kernel", []int{2, 2}, []float32{1, 2, 3, 4}},
		testWeight{"dense/bias", []int{2}, []float32{0.5, -1}},
	)
	if diff := cmp.Diff([]int{2}, m.InputShape()); diff != "" {
		t.Fatalf("input shape (-want +got):\n%s", diff)
	}
	got, shape := predict(t, m, []float32{1, 2}, 1, 2)
	if diff := cmp.Diff([]float32{7.5, 9}, got, approx); diff != "" {
		t.Fatalf("output (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2}, shape); diff != "" {
		t.Fatalf("output shape (-want +got):\n%s", diff)
	}
}

func TestSoftmaxActivationSumsToOne(t *testing.T) {
	m := build(t, `{"class_name":"Sequential","config":{"layers":[
		{"class_name":"Dense","config":{"name":"logits","units":3,"use_bias":false,"activation":"softmax","batch_input_shape":[null,1]}}]}}`,
		testWeight{"logits/kernel", []int{1, 3}, []float32{1, 2, 3}},
	)
	got, _ := predict(t, m, []float32{1}, 1, 1)
	var sum float32
	for i, v := range got {
		sum += v
		if i > 0 && v <= got[i-1] {
			t.Fatalf("softmax must preserve order: %v", got)
		}
	}
	if math.Abs(float64(sum-1)) > 1e-5 {
		t.Fatalf("sum=%v", sum)
	}
}

func TestConv2DPadding(t *testing.T) {
	img := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	for _, tc := range []struct {
		padding string
		want    []float32
		shape   []int
	}{
		{"valid", []float32{12, 16, 24, 28}, []int{1, 2, 2, 1}},
		{"same", []float32{12, 16, 9, 24, 28, 15, 15, 17, 9}, []int{1, 3, 3, 1}},
	} {
		t.Run(tc.padding, func(t *testing.T) {
			m := build(t, `{"class_name":"Sequential","config":{"layers":[
				{"class_name":"Conv2D","config":{"name":"conv","filters":1,"kernel_size":[2,2],"strides":[1,1],
				"padding":"`+tc.padding+`","use_bias":false,"batch_input_shape":[null,3,3,1]}}]}}`,
				testWeight{"conv/kernel", []int{2, 2, 1, 1}, ones(4)},
			)
			got, shape := predict(t, m, img, 1, 3, 3, 1)
			if diff := cmp.Diff(tc.want, got, approx); diff != "" {
				t.Fatalf("output (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.shape, shape); diff != "" {
				t.Fatalf("shape (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPoolingChain(t *testing.T) {
	m := build(t, `{"class_name":"Sequential","config":{"layers":[
		{"class_name":"MaxPooling2D","config":{"name":"pool","pool_size":[2,2],"strides":null,"padding":"valid","batch_input_shape":[null,4,4,1]}},
		{"class_name":"GlobalAveragePooling2D","config":{"name":"gap"}}]}}`)
	img := make([]float32, 16)
	for i := range img {
		img[i] = float32(i + 1)
	}
	got, shape := predict(t, m, img, 1, 4, 4, 1)
	if diff := cmp.Diff([]float32{11}, got, approx); diff != "" {
		t.Fatalf("output (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 1}, shape); diff != "" {
		t.Fatalf("shape (-want +got):\n%s", diff)
	}
}

func TestDepthwiseWithZeroPadding(t *testing.T) {
	m := build(t, `{"class_name":"Sequential","config":{"layers":[
		{"class_name":"ZeroPadding2D","config":{"name":"pad","padding":[[1,1],[1,1]],"batch_input_shape":[null,1,1,2]}},
		{"class_name":"DepthwiseConv2D","config":{"name":"dw","kernel_size":3,"depth_multiplier":1,"padding":"valid"}}]}}`,
		testWeight{"dw/depthwise_kernel", []int{3, 3, 2, 1}, ones(18)},
		testWeight{"dw/bias", []int{2}, []float32{1, 1}},
	)
	got, _ := predict(t, m, []float32{2, 3}, 1, 1, 1, 2)
	if diff := cmp.Diff([]float32{3, 4}, got, approx); diff != "" {
		t.Fatalf("output (-want +got):\n%s", diff)
	}
}

func TestBatchNormalization(t *testing.T) {
	m := build(t, `{"class_name":"Sequential","config":{"layers":[
		{"class_name":"BatchNormalization","config":{"name":"bn","epsilon":1,"batch_input_shape":[null,1]}}]}}`,
		testWeight{"bn/gamma", []int{1}, []float32{2}},
		testWeight{"bn/beta", []int{1}, []float32{0.5}},
		testWeight{"bn/moving_mean", []int{1}, []float32{1}},
		testWeight{"bn/moving_variance", []int{1}, []float32{3}},
	)
	got, _ := predict(t, m, []float32{3}, 1, 1)
	if diff := cmp.Diff([]float32{2.5}, got, approx); diff != "" {
		t.Fatalf("output (-want +got):\n%s", diff)
	}
}

func TestRescalingAndReLU6(t *testing.T) {
	m := build(t, `{"class_name":"Sequential","config":{"layers":[
		{"class_name":"Rescaling","config":{"name":"rescale","scale":2,"offset":-1,"batch_input_shape":[null,3]}},
		{"class_name":"ReLU","config":{"name":"relu6","max_value":6}},
		{"class_name":"Dropout","config":{"name":"drop","rate":0.5}}]}}`)
	got, _ := predict(t, m, []float32{-1, 2, 5}, 1, 3)
	if diff := cmp.Diff([]float32{0, 3, 6}, got, approx); diff != "" {
		t.Fatalf("output (-want +got):\n%s", diff)
	}
}

func TestFunctionalMergeAndAliases(t *testing.T) {
	m := build(t, `{"class_name":"Model","config":{"name":"fn",
		"layers":[
			{"class_name":"InputLayer","name":"in","config":{"name":"in","batch_input_shape":[null,2]},"inbound_nodes":[]},
			{"class_name":"Dense","name":"a","config":{"name":"a","units":2,"use_bias":false},"inbound_nodes":[[["in",0,0,{}]]]},
			{"class_name":"Dropout","name":"drop","config":{"name":"drop","rate":0.1},"inbound_nodes":[[["a",0,0,{}]]]},
			{"class_name":"Concatenate","name":"cat","config":{"name":"cat","axis":-1},"inbound_nodes":[[["sum",0,0,{}],["a",0,0,{}]]]},
			{"class_name":"Add","name":"sum","config":{"name":"sum"},"inbound_nodes":[[["in",0,0,{}],["drop",0,0,{}]]]},
			{"class_name":"Activation","name":"unused","config":{"name":"unused","activation":"relu"},"inbound_nodes":[[["in",0,0,{}]]]}
		],
		"input_layers":[["in",0,0]],
		"output_layers":[["cat",0,0]]}}`,
		testWeight{"a/kernel", []int{2, 2}, []float32{1, 0, 0, 1}},
	)
	if m.Layers() != 3 {
		t.Fatalf("expected dense, add and concatenate to survive pruning, got %d layers", m.Layers())
	}
	got, _ := predict(t, m, []float32{1, 2}, 1, 2)
	if diff := cmp.Diff([]float32{2, 4, 1, 2}, got, approx); diff != "" {
		t.Fatalf("output (-want +got):\n%s", diff)
	}
}

func TestNestedModelWeightScoping(t *testing.T) {
	m := build(t, `{"model_config":{"class_name":"Sequential","config":{"name":"outer","layers":[
		{"class_name":"Sequential","config":{"name":"feature","layers":[
			{"class_name":"Dense","config":{"name":"d","units":2,"use_bias":false,"batch_input_shape":[null,2]}}]}},
		{"class_name":"Dense","config":{"name":"head","units":1,"use_bias":false}}]}}}`,
		testWeight{"feature/d/kernel", []int{2, 2}, []float32{2, 0, 0, 3}},
		testWeight{"head/kernel", []int{2, 1}, []float32{1, 1}},
	)
	if diff := cmp.Diff([]int{2}, m.InputShape()); diff != "" {
		t.Fatalf("input shape (-want +got):\n%s", diff)
	}
	got, _ := predict(t, m, []float32{1, 1}, 1, 2)
	if diff := cmp.Diff([]float32{5}, got, approx); diff != "" {
		t.Fatalf("output (-want +got):\n%s", diff)
	}
}

func TestWeightLookupSuffixFallback(t *testing.T) {
	specs, data := pack(
		testWeight{"model1/dense/kernel", []int{1}, []float32{1}},
		testWeight{"a/conv/kernel", []int{1}, []float32{1}},
		testWeight{"b/conv/kernel", []int{1}, []float32{1}},
	)
	ws, err := newWeightStore(specs, data)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := ws.lookup([]string{"dense"}, "kernel"); err != nil {
		t.Fatalf("suffix match: %v", err)
	}
	if _, err := ws.lookup([]string{"conv"}, "kernel"); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Fatalf("expected ambiguity error, got %v", err)
	}
	if _, err := ws.lookup([]string{"a", "conv"}, "kernel"); err != nil {
		t.Fatalf("scoped match: %v", err)
	}
	if _, err := ws.lookup([]string{"dense"}, "bias"); err == nil {
		t.Fatalf("expected missing weight error")
	}
}

func TestDecodeQuantizedAndHalfWeights(t *testing.T) {
	q := artifact.WeightSpec{Name: "q", Shape: []int{3}, DType: "float32",
		Quantization: &artifact.Quantization{DType: "uint8", Scale: 0.5, Min: -1}}
	got, err := decodeWeight(q, []byte{0, 2, 4})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff([]float32{-1, 0, 1}, got); diff != "" {
		t.Fatalf("uint8 (-want +got):\n%s", diff)
	}

	for _, tc := range []struct {
		in   uint16
		want float32
	}{
		{0x3c00, 1},
		{0xc000, -2},
		{0x3800, 0.5},
		{0x0001, float32(math.Ldexp(1, -24))},
		{0x0000, 0},
	} {
		if got := halfToFloat(tc.in); got != tc.want {
			t.Fatalf("halfToFloat(%#04x)=%v want %v", tc.in, got, tc.want)
		}
	}
	if !math.IsInf(float64(halfToFloat(0x7c00)), 1) {
		t.Fatalf("0x7c00 must decode to +Inf")
	}
}

func TestBuildErrors(t *testing.T) {
	cases := map[string]string{
		"unknown layer":  `{"class_name":"Sequential","config":{"layers":[{"class_name":"LSTM","config":{"name":"lstm"}}]}}`,
		"missing weight": `{"class_name":"Sequential","config":{"layers":[{"class_name":"Dense","config":{"name":"nope","units":1}}]}}`,
		"channels first": `{"class_name":"Sequential","config":{"layers":[{"class_name":"Flatten","config":{"name":"f","data_format":"channels_first"}}]}}`,
		"unknown model":  `{"class_name":"Graph","config":{}}`,
		"no layers":      `{"class_name":"Sequential","config":{"layers":[]}}`,
		"bad activation": `{"class_name":"Sequential","config":{"layers":[{"class_name":"Activation","config":{"name":"act","activation":"gelu_fancy"}}]}}`,
	}
	for name, topo := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Build(json.RawMessage(topo), nil, nil, Options{Logger: zerolog.Nop()}); err == nil {
				t.Fatalf("expected build error")
			}
		})
	}
}

func TestPredictRejectsBadInput(t *testing.T) {
	m := build(t, `{"class_name":"Sequential","config":{"layers":[
		{"class_name":"Flatten","config":{"name":"flat","batch_input_shape":[null,2,2,1]}}]}}`)

	batch2 := tensor.New(2, 2, 2, 1)
	defer batch2.Release()
	if _, err := m.Predict(batch2); err == nil || !strings.Contains(err.Error(), "batch size") {
		t.Fatalf("expected batch size error, got %v", err)
	}
	wrong := tensor.New(1, 3, 3, 1)
	defer wrong.Release()
	if _, err := m.Predict(wrong); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
	released := tensor.New(1, 2, 2, 1)
	released.Release()
	if _, err := m.Predict(released); err == nil {
		t.Fatalf("expected error for released input")
	}
}

func TestIdentityOnlyGraphCopiesInput(t *testing.T) {
	m := build(t, `{"class_name":"Sequential","config":{"layers":[
		{"class_name":"InputLayer","config":{"name":"input","batch_input_shape":[null,2,1,1]}},
		{"class_name":"Dropout","config":{"name":"drop"}}]}}`)
	got, shape := predict(t, m, []float32{4, 5}, 1, 2, 1, 1)
	if diff := cmp.Diff([]float32{4, 5}, got); diff != "" {
		t.Fatalf("output (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 1, 1}, shape); diff != "" {
		t.Fatalf("shape (-want +got):\n%s", diff)
	}
}

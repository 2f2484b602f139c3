package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"wastesort/internal/tensor"
)

// op is one executable layer. forward must not modify its inputs and must
// return a newly allocated tensor.
type op interface {
	forward(ins []*tensor.Tensor) (*tensor.Tensor, error)
}

// identity marks layers that pass their input through unchanged. They are
// resolved away when the graph is built.
type identity struct{}

func (identity) forward(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	in, err := one(ins)
	if err != nil {
		return nil, err
	}
	return tensor.FromSlice(in.Data(), in.Shape()...)
}

func one(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	if len(ins) != 1 {
		return nil, fmt.Errorf("expected 1 input, got %d", len(ins))
	}
	return ins[0], nil
}

// intPair decodes Keras size arguments given as n, [n] or [a, b].
type intPair [2]int

func (p *intPair) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*p = intPair{n, n}
		return nil
	}
	var l []int
	if err := json.Unmarshal(b, &l); err != nil {
		return fmt.Errorf("expected int or [int, int], got %s", b)
	}
	switch len(l) {
	case 1:
		*p = intPair{l[0], l[0]}
	case 2:
		*p = intPair{l[0], l[1]}
	default:
		return fmt.Errorf("expected 1 or 2 values, got %d", len(l))
	}
	return nil
}

func pairOr(p *intPair, def intPair) intPair {
	if p == nil {
		return def
	}
	return *p
}

type buildContext struct {
	name string
	path []string
	ws   *weightStore
}

func (bc buildContext) weight(param string) (weight, error) {
	return bc.ws.lookup(bc.path, param)
}

type buildFunc func(bc buildContext, cfg json.RawMessage) (op, error)

var builders = map[string]buildFunc{
	"InputLayer":             buildIdentity,
	"Dropout":                buildIdentity,
	"SpatialDropout2D":       buildIdentity,
	"GaussianNoise":          buildIdentity,
	"Conv2D":                 buildConv2D,
	"DepthwiseConv2D":        buildDepthwise,
	"BatchNormalization":     buildBatchNorm,
	"Dense":                  buildDense,
	"Activation":             buildActivation,
	"ReLU":                   buildReLU,
	"Softmax":                buildSoftmax,
	"ZeroPadding2D":          buildZeroPadding,
	"MaxPooling2D":           buildPool(true),
	"AveragePooling2D":       buildPool(false),
	"GlobalAveragePooling2D": buildGlobalPool(false),
	"GlobalMaxPooling2D":     buildGlobalPool(true),
	"Flatten":                buildFlatten,
	"Reshape":                buildReshape,
	"Rescaling":              buildRescaling,
	"Add":                    buildAdd,
	"Concatenate":            buildConcat,
}

func decode(cfg json.RawMessage, v any) error {
	if len(bytes.TrimSpace(cfg)) == 0 {
		return nil
	}
	return json.Unmarshal(cfg, v)
}

func checkChannelsLast(df string) error {
	if df == "channels_first" {
		return fmt.Errorf("data_format channels_first is not supported")
	}
	return nil
}

func buildIdentity(buildContext, json.RawMessage) (op, error) { return identity{}, nil }

type convConfig struct {
	Filters         int      `json:"filters"`
	KernelSize      intPair  `json:"kernel_size"`
	Strides         *intPair `json:"strides"`
	DilationRate    *intPair `json:"dilation_rate"`
	Padding         string   `json:"padding"`
	DataFormat      string   `json:"data_format"`
	Activation      string   `json:"activation"`
	UseBias         *bool    `json:"use_bias"`
	DepthMultiplier int      `json:"depth_multiplier"`
	Groups          int      `json:"groups"`
}

func (c convConfig) window() (window, error) {
	mode, err := parsePadMode(c.Padding)
	if err != nil {
		return window{}, err
	}
	s := pairOr(c.Strides, intPair{1, 1})
	d := pairOr(c.DilationRate, intPair{1, 1})
	w := window{kh: c.KernelSize[0], kw: c.KernelSize[1], sh: s[0], sw: s[1], dh: d[0], dw: d[1], mode: mode}
	if w.kh <= 0 || w.kw <= 0 || w.sh <= 0 || w.sw <= 0 || w.dh <= 0 || w.dw <= 0 {
		return window{}, fmt.Errorf("invalid window %+v", w)
	}
	return w, nil
}

func (c convConfig) bias() bool { return c.UseBias == nil || *c.UseBias }

type convOp struct {
	kernel, bias []float32
	filters      int
	win          window
	depthwise    bool
	act          activation
}

func (o *convOp) forward(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	in, err := one(ins)
	if err != nil {
		return nil, err
	}
	var out *tensor.Tensor
	if o.depthwise {
		out, err = depthwiseConv2d(in, o.kernel, o.bias, o.filters, o.win)
	} else {
		out, err = conv2d(in, o.kernel, o.bias, o.filters, o.win)
	}
	if err != nil {
		return nil, err
	}
	if o.act != nil {
		o.act(out)
	}
	return out, nil
}

func buildConv2D(bc buildContext, cfg json.RawMessage) (op, error) {
	var c convConfig
	if err := decode(cfg, &c); err != nil {
		return nil, err
	}
	if err := checkChannelsLast(c.DataFormat); err != nil {
		return nil, err
	}
	if c.Groups > 1 {
		return nil, fmt.Errorf("grouped convolution is not supported")
	}
	win, err := c.window()
	if err != nil {
		return nil, err
	}
	act, err := parseActivation(c.Activation)
	if err != nil {
		return nil, err
	}
	k, err := bc.weight("kernel")
	if err != nil {
		return nil, err
	}
	if len(k.shape) != 4 || k.shape[0] != win.kh || k.shape[1] != win.kw || k.shape[3] != c.Filters {
		return nil, fmt.Errorf("kernel shape %v does not match %dx%dx?x%d", k.shape, win.kh, win.kw, c.Filters)
	}
	o := &convOp{kernel: k.data, filters: c.Filters, win: win, act: act}
	if c.bias() {
		b, err := bc.weight("bias")
		if err != nil {
			return nil, err
		}
		if err := expect(b, bc.name, "bias", c.Filters); err != nil {
			return nil, err
		}
		o.bias = b.data
	}
	return o, nil
}

func buildDepthwise(bc buildContext, cfg json.RawMessage) (op, error) {
	var c convConfig
	if err := decode(cfg, &c); err != nil {
		return nil, err
	}
	if err := checkChannelsLast(c.DataFormat); err != nil {
		return nil, err
	}
	if c.DepthMultiplier == 0 {
		c.DepthMultiplier = 1
	}
	win, err := c.window()
	if err != nil {
		return nil, err
	}
	act, err := parseActivation(c.Activation)
	if err != nil {
		return nil, err
	}
	k, err := bc.weight("depthwise_kernel")
	if err != nil {
		return nil, err
	}
	if len(k.shape) != 4 || k.shape[0] != win.kh || k.shape[1] != win.kw || k.shape[3] != c.DepthMultiplier {
		return nil, fmt.Errorf("depthwise kernel shape %v does not match %dx%dx?x%d", k.shape, win.kh, win.kw, c.DepthMultiplier)
	}
	o := &convOp{kernel: k.data, filters: c.DepthMultiplier, win: win, depthwise: true, act: act}
	if c.bias() {
		b, err := bc.weight("bias")
		if err != nil {
			return nil, err
		}
		if err := expect(b, bc.name, "bias", k.shape[2]*c.DepthMultiplier); err != nil {
			return nil, err
		}
		o.bias = b.data
	}
	return o, nil
}

type affineOp struct {
	scale, shift []float32
}

func (o *affineOp) forward(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	in, err := one(ins)
	if err != nil {
		return nil, err
	}
	return affine(in, o.scale, o.shift)
}

func buildBatchNorm(bc buildContext, cfg json.RawMessage) (op, error) {
	c := struct {
		Epsilon float64 `json:"epsilon"`
		Center  *bool   `json:"center"`
		Scale   *bool   `json:"scale"`
	}{Epsilon: 1e-3}
	if err := decode(cfg, &c); err != nil {
		return nil, err
	}
	mean, err := bc.weight("moving_mean")
	if err != nil {
		return nil, err
	}
	variance, err := bc.weight("moving_variance")
	if err != nil {
		return nil, err
	}
	n := mean.numel()
	if err := expect(variance, bc.name, "moving_variance", n); err != nil {
		return nil, err
	}
	var gamma, beta []float32
	if c.Scale == nil || *c.Scale {
		g, err := bc.weight("gamma")
		if err != nil {
			return nil, err
		}
		if err := expect(g, bc.name, "gamma", n); err != nil {
			return nil, err
		}
		gamma = g.data
	}
	if c.Center == nil || *c.Center {
		b, err := bc.weight("beta")
		if err != nil {
			return nil, err
		}
		if err := expect(b, bc.name, "beta", n); err != nil {
			return nil, err
		}
		beta = b.data
	}
	o := &affineOp{scale: make([]float32, n), shift: make([]float32, n)}
	for i := 0; i < n; i++ {
		s := 1 / math.Sqrt(float64(variance.data[i])+c.Epsilon)
		if gamma != nil {
			s *= float64(gamma[i])
		}
		o.scale[i] = float32(s)
		sh := -float64(mean.data[i]) * s
		if beta != nil {
			sh += float64(beta[i])
		}
		o.shift[i] = float32(sh)
	}
	return o, nil
}

type denseOp struct {
	kernel, bias []float32
	units        int
	act          activation
}

func (o *denseOp) forward(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	in, err := one(ins)
	if err != nil {
		return nil, err
	}
	out, err := dense(in, o.kernel, o.bias, o.units)
	if err != nil {
		return nil, err
	}
	if o.act != nil {
		o.act(out)
	}
	return out, nil
}

func buildDense(bc buildContext, cfg json.RawMessage) (op, error) {
	var c struct {
		Units      int    `json:"units"`
		Activation string `json:"activation"`
		UseBias    *bool  `json:"use_bias"`
	}
	if err := decode(cfg, &c); err != nil {
		return nil, err
	}
	if c.Units <= 0 {
		return nil, fmt.Errorf("dense units must be positive, got %d", c.Units)
	}
	act, err := parseActivation(c.Activation)
	if err != nil {
		return nil, err
	}
	k, err := bc.weight("kernel")
	if err != nil {
		return nil, err
	}
	if len(k.shape) != 2 || k.shape[1] != c.Units {
		return nil, fmt.Errorf("kernel shape %v does not match [?, %d]", k.shape, c.Units)
	}
	o := &denseOp{kernel: k.data, units: c.Units, act: act}
	if c.UseBias == nil || *c.UseBias {
		b, err := bc.weight("bias")
		if err != nil {
			return nil, err
		}
		if err := expect(b, bc.name, "bias", c.Units); err != nil {
			return nil, err
		}
		o.bias = b.data
	}
	return o, nil
}

type activationOp struct{ act activation }

func (o *activationOp) forward(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	in, err := one(ins)
	if err != nil {
		return nil, err
	}
	out, err := tensor.FromSlice(in.Data(), in.Shape()...)
	if err != nil {
		return nil, err
	}
	o.act(out)
	return out, nil
}

func buildActivation(_ buildContext, cfg json.RawMessage) (op, error) {
	var c struct {
		Activation string `json:"activation"`
	}
	if err := decode(cfg, &c); err != nil {
		return nil, err
	}
	act, err := parseActivation(c.Activation)
	if err != nil {
		return nil, err
	}
	if act == nil {
		return identity{}, nil
	}
	return &activationOp{act: act}, nil
}

func buildReLU(_ buildContext, cfg json.RawMessage) (op, error) {
	var c struct {
		MaxValue      *float64 `json:"max_value"`
		NegativeSlope float64  `json:"negative_slope"`
		Threshold     float64  `json:"threshold"`
	}
	if err := decode(cfg, &c); err != nil {
		return nil, err
	}
	hi := float32(math.Inf(1))
	if c.MaxValue != nil {
		hi = float32(*c.MaxValue)
	}
	slope, th := float32(c.NegativeSlope), float32(c.Threshold)
	return &activationOp{act: func(t *tensor.Tensor) {
		d := t.Data()
		for i, v := range d {
			switch {
			case v >= hi:
				d[i] = hi
			case v >= th:
			default:
				d[i] = slope * (v - th)
			}
		}
	}}, nil
}

type softmaxOp struct{ axis int }

func (o *softmaxOp) forward(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	in, err := one(ins)
	if err != nil {
		return nil, err
	}
	if o.axis != -1 && o.axis != in.Rank()-1 {
		return nil, fmt.Errorf("softmax over axis %d is not supported", o.axis)
	}
	out, err := tensor.FromSlice(in.Data(), in.Shape()...)
	if err != nil {
		return nil, err
	}
	softmaxLast(out)
	return out, nil
}

func buildSoftmax(_ buildContext, cfg json.RawMessage) (op, error) {
	c := struct {
		Axis any `json:"axis"`
	}{}
	if err := decode(cfg, &c); err != nil {
		return nil, err
	}
	axis := -1
	switch a := c.Axis.(type) {
	case float64:
		axis = int(a)
	case []any:
		if len(a) != 1 {
			return nil, fmt.Errorf("softmax over %d axes is not supported", len(a))
		}
		if f, ok := a[0].(float64); ok {
			axis = int(f)
		}
	}
	return &softmaxOp{axis: axis}, nil
}

type padOp struct{ top, bottom, left, right int }

func (o *padOp) forward(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	in, err := one(ins)
	if err != nil {
		return nil, err
	}
	return zeroPad2d(in, o.top, o.bottom, o.left, o.right)
}

func buildZeroPadding(_ buildContext, cfg json.RawMessage) (op, error) {
	var c struct {
		Padding    json.RawMessage `json:"padding"`
		DataFormat string          `json:"data_format"`
	}
	if err := decode(cfg, &c); err != nil {
		return nil, err
	}
	if err := checkChannelsLast(c.DataFormat); err != nil {
		return nil, err
	}
	if len(c.Padding) == 0 {
		return &padOp{1, 1, 1, 1}, nil
	}
	var n int
	if err := json.Unmarshal(c.Padding, &n); err == nil {
		return &padOp{n, n, n, n}, nil
	}
	var hw []intPair
	if err := json.Unmarshal(c.Padding, &hw); err != nil || len(hw) != 2 {
		return nil, fmt.Errorf("unsupported padding %s", c.Padding)
	}
	return &padOp{top: hw[0][0], bottom: hw[0][1], left: hw[1][0], right: hw[1][1]}, nil
}

type poolOp struct {
	win window
	isMax bool
}

func (o *poolOp) forward(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	in, err := one(ins)
	if err != nil {
		return nil, err
	}
	return pool2d(in, o.win, o.isMax)
}

func buildPool(isMax bool) buildFunc {
	return func(_ buildContext, cfg json.RawMessage) (op, error) {
		var c struct {
			PoolSize   *intPair `json:"pool_size"`
			Strides    *intPair `json:"strides"`
			Padding    string   `json:"padding"`
			DataFormat string   `json:"data_format"`
		}
		if err := decode(cfg, &c); err != nil {
			return nil, err
		}
		if err := checkChannelsLast(c.DataFormat); err != nil {
			return nil, err
		}
		mode, err := parsePadMode(c.Padding)
		if err != nil {
			return nil, err
		}
		size := pairOr(c.PoolSize, intPair{2, 2})
		stride := pairOr(c.Strides, size)
		return &poolOp{isMax: isMax, win: window{kh: size[0], kw: size[1], sh: stride[0], sw: stride[1], dh: 1, dw: 1, mode: mode}}, nil
	}
}

type globalPoolOp struct{ isMax bool }

func (o *globalPoolOp) forward(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	in, err := one(ins)
	if err != nil {
		return nil, err
	}
	return globalPool2d(in, o.isMax)
}

func buildGlobalPool(isMax bool) buildFunc {
	return func(_ buildContext, cfg json.RawMessage) (op, error) {
		var c struct {
			DataFormat string `json:"data_format"`
			KeepDims   bool   `json:"keepdims"`
		}
		if err := decode(cfg, &c); err != nil {
			return nil, err
		}
		if err := checkChannelsLast(c.DataFormat); err != nil {
			return nil, err
		}
		if c.KeepDims {
			return nil, fmt.Errorf("keepdims is not supported")
		}
		return &globalPoolOp{isMax: isMax}, nil
	}
}

// reshapeOp reshapes to [1, target...]; one target dimension may be -1.
type reshapeOp struct{ target []int }

func (o *reshapeOp) forward(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	in, err := one(ins)
	if err != nil {
		return nil, err
	}
	if o.target == nil {
		return tensor.FromSlice(in.Data(), 1, in.Len())
	}
	shape := append([]int{1}, o.target...)
	known, free := 1, -1
	for i, d := range shape {
		if d == -1 {
			if free >= 0 {
				return nil, fmt.Errorf("reshape target %v has more than one -1", o.target)
			}
			free = i
			continue
		}
		known *= d
	}
	if free >= 0 && known > 0 && in.Len()%known == 0 {
		shape[free] = in.Len() / known
	}
	return tensor.FromSlice(in.Data(), shape...)
}

func buildFlatten(_ buildContext, cfg json.RawMessage) (op, error) {
	var c struct {
		DataFormat string `json:"data_format"`
	}
	if err := decode(cfg, &c); err != nil {
		return nil, err
	}
	if err := checkChannelsLast(c.DataFormat); err != nil {
		return nil, err
	}
	return &reshapeOp{}, nil
}

func buildReshape(_ buildContext, cfg json.RawMessage) (op, error) {
	var c struct {
		TargetShape []int `json:"target_shape"`
	}
	if err := decode(cfg, &c); err != nil {
		return nil, err
	}
	if len(c.TargetShape) == 0 {
		return nil, fmt.Errorf("reshape needs target_shape")
	}
	return &reshapeOp{target: c.TargetShape}, nil
}

type rescaleOp struct{ scale, offset float32 }

func (o *rescaleOp) forward(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	in, err := one(ins)
	if err != nil {
		return nil, err
	}
	out := tensor.New(in.Shape()...)
	dst := out.Data()
	for i, v := range in.Data() {
		dst[i] = v*o.scale + o.offset
	}
	return out, nil
}

func buildRescaling(_ buildContext, cfg json.RawMessage) (op, error) {
	c := struct {
		Scale  float64 `json:"scale"`
		Offset float64 `json:"offset"`
	}{Scale: 1}
	if err := decode(cfg, &c); err != nil {
		return nil, err
	}
	return &rescaleOp{scale: float32(c.Scale), offset: float32(c.Offset)}, nil
}

type mergeOp struct {
	fn   func([]*tensor.Tensor) (*tensor.Tensor, error)
	axis int
}

func (o *mergeOp) forward(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	if len(ins) > 0 && o.axis != -1 && o.axis != ins[0].Rank()-1 {
		return nil, fmt.Errorf("concatenate over axis %d is not supported", o.axis)
	}
	return o.fn(ins)
}

func buildAdd(buildContext, json.RawMessage) (op, error) {
	return &mergeOp{fn: add, axis: -1}, nil
}

func buildConcat(_ buildContext, cfg json.RawMessage) (op, error) {
	c := struct {
		Axis int `json:"axis"`
	}{Axis: -1}
	if err := decode(cfg, &c); err != nil {
		return nil, err
	}
	return &mergeOp{fn: concatLast, axis: c.Axis}, nil
}

package graph

import (
	"fmt"
	"math"

	"wastesort/internal/tensor"
)

type padMode int

const (
	padValid padMode = iota
	padSame
)

func parsePadMode(s string) (padMode, error) {
	switch s {
	case "", "valid":
		return padValid, nil
	case "same":
		return padSame, nil
	}
	return padValid, fmt.Errorf("unsupported padding %q", s)
}

// window describes a 2D sliding window (convolution or pooling).
type window struct {
	kh, kw int
	sh, sw int
	dh, dw int
	mode   padMode
}

func (w window) axis(in, k, stride, dil int) (out, before int) {
	dk := (k-1)*dil + 1
	if w.mode == padSame {
		out = (in + stride - 1) / stride
		total := (out-1)*stride + dk - in
		if total < 0 {
			total = 0
		}
		return out, total / 2
	}
	if in < dk {
		return 0, 0
	}
	return (in-dk)/stride + 1, 0
}

// plan returns the output size and leading padding for an HxW input.
func (w window) plan(h, wd int) (oh, ow, pt, pl int, err error) {
	oh, pt = w.axis(h, w.kh, w.sh, w.dh)
	ow, pl = w.axis(wd, w.kw, w.sw, w.dw)
	if oh <= 0 || ow <= 0 {
		return 0, 0, 0, 0, fmt.Errorf("window %dx%d does not fit input %dx%d", w.kh, w.kw, h, wd)
	}
	return oh, ow, pt, pl, nil
}

func hwc(x *tensor.Tensor) (h, w, c int, err error) {
	if x.Rank() != 4 {
		return 0, 0, 0, fmt.Errorf("expected rank-4 NHWC input, got shape %v", x.Shape())
	}
	return x.Dim(1), x.Dim(2), x.Dim(3), nil
}

// conv2d computes a channels-last convolution. kernel is [kh,kw,cin,cout].
func conv2d(x *tensor.Tensor, kernel, bias []float32, cout int, win window) (*tensor.Tensor, error) {
	h, w, cin, err := hwc(x)
	if err != nil {
		return nil, err
	}
	if len(kernel) != win.kh*win.kw*cin*cout {
		return nil, fmt.Errorf("kernel size %d does not match %dx%dx%dx%d", len(kernel), win.kh, win.kw, cin, cout)
	}
	oh, ow, pt, pl, err := win.plan(h, w)
	if err != nil {
		return nil, err
	}
	out := tensor.New(1, oh, ow, cout)
	src, dst := x.Data(), out.Data()
	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			acc := dst[(oy*ow+ox)*cout : (oy*ow+ox+1)*cout]
			if bias != nil {
				copy(acc, bias)
			}
			for ky := 0; ky < win.kh; ky++ {
				iy := oy*win.sh - pt + ky*win.dh
				if iy < 0 || iy >= h {
					continue
				}
				for kx := 0; kx < win.kw; kx++ {
					ix := ox*win.sw - pl + kx*win.dw
					if ix < 0 || ix >= w {
						continue
					}
					px := src[(iy*w+ix)*cin : (iy*w+ix+1)*cin]
					kbase := (ky*win.kw + kx) * cin * cout
					for c, v := range px {
						if v == 0 {
							continue
						}
						krow := kernel[kbase+c*cout : kbase+(c+1)*cout]
						for o, k := range krow {
							acc[o] += v * k
						}
					}
				}
			}
		}
	}
	return out, nil
}

// depthwiseConv2d convolves each channel separately. kernel is [kh,kw,cin,mult].
func depthwiseConv2d(x *tensor.Tensor, kernel, bias []float32, mult int, win window) (*tensor.Tensor, error) {
	h, w, cin, err := hwc(x)
	if err != nil {
		return nil, err
	}
	if len(kernel) != win.kh*win.kw*cin*mult {
		return nil, fmt.Errorf("depthwise kernel size %d does not match %dx%dx%dx%d", len(kernel), win.kh, win.kw, cin, mult)
	}
	oh, ow, pt, pl, err := win.plan(h, w)
	if err != nil {
		return nil, err
	}
	cout := cin * mult
	out := tensor.New(1, oh, ow, cout)
	src, dst := x.Data(), out.Data()
	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			acc := dst[(oy*ow+ox)*cout : (oy*ow+ox+1)*cout]
			if bias != nil {
				copy(acc, bias)
			}
			for ky := 0; ky < win.kh; ky++ {
				iy := oy*win.sh - pt + ky*win.dh
				if iy < 0 || iy >= h {
					continue
				}
				for kx := 0; kx < win.kw; kx++ {
					ix := ox*win.sw - pl + kx*win.dw
					if ix < 0 || ix >= w {
						continue
					}
					px := src[(iy*w+ix)*cin : (iy*w+ix+1)*cin]
					kbase := (ky*win.kw + kx) * cin * mult
					for c, v := range px {
						for m := 0; m < mult; m++ {
							acc[c*mult+m] += v * kernel[kbase+c*mult+m]
						}
					}
				}
			}
		}
	}
	return out, nil
}

// dense applies kernel [in,out] to the last axis.
func dense(x *tensor.Tensor, kernel, bias []float32, units int) (*tensor.Tensor, error) {
	in := x.Dim(-1)
	if len(kernel) != in*units {
		return nil, fmt.Errorf("dense kernel size %d does not match %dx%d", len(kernel), in, units)
	}
	shape := x.Shape()
	shape[len(shape)-1] = units
	out := tensor.New(shape...)
	src, dst := x.Data(), out.Data()
	rows := len(src) / in
	for r := 0; r < rows; r++ {
		row := src[r*in : (r+1)*in]
		acc := dst[r*units : (r+1)*units]
		if bias != nil {
			copy(acc, bias)
		}
		for i, v := range row {
			if v == 0 {
				continue
			}
			krow := kernel[i*units : (i+1)*units]
			for o, k := range krow {
				acc[o] += v * k
			}
		}
	}
	return out, nil
}

// affine computes x*scale[c]+shift[c] over the last axis into a new tensor.
func affine(x *tensor.Tensor, scale, shift []float32) (*tensor.Tensor, error) {
	c := x.Dim(-1)
	if len(scale) != c || len(shift) != c {
		return nil, fmt.Errorf("per-channel parameters have %d/%d values, input has %d channels", len(scale), len(shift), c)
	}
	out := tensor.New(x.Shape()...)
	src, dst := x.Data(), out.Data()
	for i, v := range src {
		ch := i % c
		dst[i] = v*scale[ch] + shift[ch]
	}
	return out, nil
}

func zeroPad2d(x *tensor.Tensor, top, bottom, left, right int) (*tensor.Tensor, error) {
	h, w, c, err := hwc(x)
	if err != nil {
		return nil, err
	}
	oh, ow := h+top+bottom, w+left+right
	out := tensor.New(1, oh, ow, c)
	src, dst := x.Data(), out.Data()
	for y := 0; y < h; y++ {
		copy(dst[((y+top)*ow+left)*c:((y+top)*ow+left+w)*c], src[y*w*c:(y+1)*w*c])
	}
	return out, nil
}

func pool2d(x *tensor.Tensor, win window, isMax bool) (*tensor.Tensor, error) {
	h, w, c, err := hwc(x)
	if err != nil {
		return nil, err
	}
	oh, ow, pt, pl, err := win.plan(h, w)
	if err != nil {
		return nil, err
	}
	out := tensor.New(1, oh, ow, c)
	src, dst := x.Data(), out.Data()
	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			acc := dst[(oy*ow+ox)*c : (oy*ow+ox+1)*c]
			if isMax {
				for i := range acc {
					acc[i] = float32(math.Inf(-1))
				}
			}
			count := 0
			for ky := 0; ky < win.kh; ky++ {
				iy := oy*win.sh - pt + ky
				if iy < 0 || iy >= h {
					continue
				}
				for kx := 0; kx < win.kw; kx++ {
					ix := ox*win.sw - pl + kx
					if ix < 0 || ix >= w {
						continue
					}
					count++
					px := src[(iy*w+ix)*c : (iy*w+ix+1)*c]
					for i, v := range px {
						if isMax {
							if v > acc[i] {
								acc[i] = v
							}
						} else {
							acc[i] += v
						}
					}
				}
			}
			if !isMax && count > 0 {
				inv := 1 / float32(count)
				for i := range acc {
					acc[i] *= inv
				}
			}
		}
	}
	return out, nil
}

func globalPool2d(x *tensor.Tensor, isMax bool) (*tensor.Tensor, error) {
	h, w, c, err := hwc(x)
	if err != nil {
		return nil, err
	}
	out := tensor.New(1, c)
	src, dst := x.Data(), out.Data()
	if isMax {
		for i := range dst {
			dst[i] = float32(math.Inf(-1))
		}
	}
	for p := 0; p < h*w; p++ {
		px := src[p*c : (p+1)*c]
		for i, v := range px {
			if isMax {
				if v > dst[i] {
					dst[i] = v
				}
			} else {
				dst[i] += v
			}
		}
	}
	if !isMax {
		inv := 1 / float32(h*w)
		for i := range dst {
			dst[i] *= inv
		}
	}
	return out, nil
}

func add(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	if len(ins) < 2 {
		return nil, fmt.Errorf("add needs at least 2 inputs, got %d", len(ins))
	}
	out := tensor.New(ins[0].Shape()...)
	dst := out.Data()
	for _, in := range ins {
		if in.Len() != len(dst) {
			out.Release()
			return nil, fmt.Errorf("add: shape %v does not match %v", in.Shape(), ins[0].Shape())
		}
		for i, v := range in.Data() {
			dst[i] += v
		}
	}
	return out, nil
}

func concatLast(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	if len(ins) == 0 {
		return nil, fmt.Errorf("concatenate needs inputs")
	}
	lead := ins[0].Len() / ins[0].Dim(-1)
	total := 0
	for _, in := range ins {
		if in.Len()/in.Dim(-1) != lead || in.Rank() != ins[0].Rank() {
			return nil, fmt.Errorf("concatenate: incompatible shape %v", in.Shape())
		}
		total += in.Dim(-1)
	}
	shape := ins[0].Shape()
	shape[len(shape)-1] = total
	out := tensor.New(shape...)
	dst := out.Data()
	for r := 0; r < lead; r++ {
		off := r * total
		for _, in := range ins {
			c := in.Dim(-1)
			copy(dst[off:off+c], in.Data()[r*c:(r+1)*c])
			off += c
		}
	}
	return out, nil
}

// activation mutates a tensor in place.
type activation func(t *tensor.Tensor)

func parseActivation(name string) (activation, error) {
	switch name {
	case "", "linear":
		return nil, nil
	case "relu":
		return func(t *tensor.Tensor) { clip(t.Data(), 0, float32(math.Inf(1))) }, nil
	case "relu6":
		return func(t *tensor.Tensor) { clip(t.Data(), 0, 6) }, nil
	case "sigmoid":
		return func(t *tensor.Tensor) {
			d := t.Data()
			for i, v := range d {
				d[i] = float32(1 / (1 + math.Exp(-float64(v))))
			}
		}, nil
	case "tanh":
		return func(t *tensor.Tensor) {
			d := t.Data()
			for i, v := range d {
				d[i] = float32(math.Tanh(float64(v)))
			}
		}, nil
	case "softmax":
		return softmaxLast, nil
	}
	return nil, fmt.Errorf("unsupported activation %q", name)
}

func clip(d []float32, lo, hi float32) {
	for i, v := range d {
		if v < lo {
			d[i] = lo
		} else if v > hi {
			d[i] = hi
		}
	}
}

func softmaxLast(t *tensor.Tensor) {
	c := t.Dim(-1)
	d := t.Data()
	for r := 0; r+c <= len(d); r += c {
		row := d[r : r+c]
		m := row[0]
		for _, v := range row {
			if v > m {
				m = v
			}
		}
		var sum float64
		for i, v := range row {
			e := math.Exp(float64(v - m))
			row[i] = float32(e)
			sum += e
		}
		if sum == 0 {
			sum = 1
		}
		for i := range row {
			row[i] = float32(float64(row[i]) / sum)
		}
	}
}

package graph

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"wastesort/internal/artifact"
)

// weight is a decoded parameter tensor.
type weight struct {
	shape []int
	data  []float32
}

func (w weight) numel() int { return len(w.data) }

// weightStore decodes the concatenated weight buffer once at build time.
type weightStore struct {
	byName map[string]weight
	names  []string
}

func newWeightStore(specs []artifact.WeightSpec, data []byte) (*weightStore, error) {
	ws := &weightStore{byName: make(map[string]weight, len(specs))}
	off := 0
	for _, s := range specs {
		n, err := s.ByteSize()
		if err != nil {
			return nil, fmt.Errorf("weight %s: %w", s.Name, err)
		}
		if off+n > len(data) {
			return nil, fmt.Errorf("weight %s: needs bytes [%d,%d) but buffer has %d", s.Name, off, off+n, len(data))
		}
		vals, err := decodeWeight(s, data[off:off+n])
		if err != nil {
			return nil, fmt.Errorf("weight %s: %w", s.Name, err)
		}
		off += n
		if _, dup := ws.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate weight name %q", s.Name)
		}
		ws.byName[s.Name] = weight{shape: append([]int(nil), s.Shape...), data: vals}
		ws.names = append(ws.names, s.Name)
	}
	return ws, nil
}

func decodeWeight(s artifact.WeightSpec, b []byte) ([]float32, error) {
	n := s.Numel()
	out := make([]float32, n)
	if q := s.Quantization; q != nil {
		scale, lo := float32(q.Scale), float32(q.Min)
		switch q.DType {
		case "uint8":
			for i := range out {
				out[i] = float32(b[i])*scale + lo
			}
		case "uint16":
			for i := range out {
				out[i] = float32(binary.LittleEndian.Uint16(b[2*i:]))*scale + lo
			}
		case "float16":
			for i := range out {
				out[i] = halfToFloat(binary.LittleEndian.Uint16(b[2*i:]))
			}
		default:
			return nil, fmt.Errorf("unsupported quantization dtype %q", q.DType)
		}
		return out, nil
	}
	switch s.DType {
	case "float32":
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
	case "int32":
		for i := range out {
			out[i] = float32(int32(binary.LittleEndian.Uint32(b[4*i:])))
		}
	case "bool":
		for i := range out {
			if b[i] != 0 {
				out[i] = 1
			}
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %q", s.DType)
	}
	return out, nil
}

// halfToFloat converts an IEEE 754 binary16 value.
func halfToFloat(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h) & 0x3ff
	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// subnormal
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x3ff
	case exp == 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	}
	return math.Float32frombits(sign | (exp+112)<<23 | mant<<13)
}

// lookup finds param for the layer at path (outermost model first, layer
// name last). The most specific scoped name wins; a unique suffix match is
// the fallback for exporters that scope names differently.
func (ws *weightStore) lookup(path []string, param string) (weight, error) {
	for i := 0; i < len(path); i++ {
		name := strings.Join(path[i:], "/") + "/" + param
		if w, ok := ws.byName[name]; ok {
			return w, nil
		}
	}
	layer := path[len(path)-1]
	suffix := "/" + layer + "/" + param
	var found []string
	for _, n := range ws.names {
		if strings.HasSuffix(n, suffix) {
			found = append(found, n)
		}
	}
	switch len(found) {
	case 1:
		return ws.byName[found[0]], nil
	case 0:
		return weight{}, fmt.Errorf("layer %s: weight %q not found", layer, param)
	}
	return weight{}, fmt.Errorf("layer %s: weight %q is ambiguous: %v", layer, param, found)
}

// expect checks a weight's element count against the shape a layer needs.
func expect(w weight, layer, param string, shape ...int) error {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if w.numel() != n {
		return fmt.Errorf("layer %s: %s has %d values (shape %v), want shape %v", layer, param, w.numel(), w.shape, shape)
	}
	return nil
}

// Package tensor provides the dense float32 buffers passed between the
// preprocessor, the model runtimes and the score normalizer.
//
// Buffers come from size-classed pools and must be handed back with Release.
// Live reports how many tensors are currently outstanding so callers and
// tests can check that every path released what it acquired.
package tensor

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
)

// Layout names the axis order of an image tensor.
type Layout int

const (
	// NHWC is channels-last: [batch, height, width, channels].
	NHWC Layout = iota
	// NCHW is channels-first: [batch, channels, height, width].
	NCHW
)

func (l Layout) String() string {
	if l == NCHW {
		return "NCHW"
	}
	return "NHWC"
}

// Releaser is anything holding memory that must be handed back explicitly.
type Releaser interface {
	Release() error
}

// ErrReleased is returned when a tensor is released twice.
var ErrReleased = errors.New("tensor: already released")

// Tensor is a dense row-major float32 buffer with a shape.
type Tensor struct {
	shape    []int
	data     []float32
	released atomic.Bool
}

var (
	live  atomic.Int64
	pools [bits.UintSize]sync.Pool
)

// Live returns the number of tensors allocated and not yet released.
func Live() int64 { return live.Load() }

// Numel returns the element count for shape. Negative dimensions count as zero.
func Numel(shape []int) int {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0
		}
		n *= d
	}
	return n
}

func sizeClass(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

func getBuf(n int) []float32 {
	c := sizeClass(n)
	if v := pools[c].Get(); v != nil {
		buf := (*v.(*[]float32))[:n]
		clear(buf)
		return buf
	}
	return make([]float32, n, 1<<c)
}

func putBuf(buf []float32) {
	c := cap(buf)
	if c == 0 || c&(c-1) != 0 {
		// not from the pool
		return
	}
	buf = buf[:0]
	pools[sizeClass(c)].Put(&buf)
}

// New allocates a zeroed tensor with the given shape.
func New(shape ...int) *Tensor {
	t := &Tensor{shape: append([]int(nil), shape...), data: getBuf(Numel(shape))}
	live.Add(1)
	return t
}

// FromSlice allocates a tensor and copies data into it.
func FromSlice(data []float32, shape ...int) (*Tensor, error) {
	if n := Numel(shape); n != len(data) {
		return nil, fmt.Errorf("tensor: shape %v needs %d values, got %d", shape, n, len(data))
	}
	t := New(shape...)
	copy(t.data, data)
	return t, nil
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int { return append([]int(nil), t.shape...) }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.shape) }

// Dim returns dimension i; negative i counts from the end.
func (t *Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.shape)
	}
	return t.shape[i]
}

// Data exposes the backing buffer. It must not be used after Release.
func (t *Tensor) Data() []float32 { return t.data }

// Len returns the number of elements.
func (t *Tensor) Len() int { return len(t.data) }

// Released reports whether Release has been called.
func (t *Tensor) Released() bool { return t.released.Load() }

// Release returns the buffer to the pool. A second call returns ErrReleased.
func (t *Tensor) Release() error {
	if t == nil {
		return nil
	}
	if !t.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	putBuf(t.data)
	t.data = nil
	live.Add(-1)
	return nil
}

// Values copies the tensor contents into a plain slice.
func (t *Tensor) Values() []float32 {
	return append([]float32(nil), t.data...)
}

package tensor

import (
	"math"

	"github.com/pkg/errors"
)

// ErrShape reports a tensor whose extents are incompatible with the operation,
// either against another tensor or against a structural constraint.
var ErrShape = errors.New("tensor shape mismatch")

// Tensor is a dense float64 tensor stored as a flat row-major buffer.
type Tensor struct {
	shape []int
	data  []float64
}

// New returns a zero-filled tensor with the given shape.
func New(shape ...int) *Tensor {
	return &Tensor{
		shape: append([]int(nil), shape...),
		data:  make([]float64, Elems(shape)),
	}
}

// FromSlice wraps data as a tensor with the given shape. The buffer is not
// copied, so in-place mutation through the tensor is visible to the caller.
func FromSlice(shape []int, data []float64) (*Tensor, error) {
	if Elems(shape) != len(data) {
		return nil, errors.Wrapf(ErrShape, "shape %v holds %d elements, data has %d", shape, Elems(shape), len(data))
	}
	return &Tensor{shape: append([]int(nil), shape...), data: data}, nil
}

// MustFromSlice is FromSlice that panics on a shape mismatch.
func MustFromSlice(shape []int, data []float64) *Tensor {
	t, err := FromSlice(shape, data)
	if err != nil {
		panic(err)
	}
	return t
}

// Elems returns the number of elements a shape addresses.
func Elems(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, extent := range shape {
		n *= extent
	}
	return n
}

// Shape returns a copy of the tensor's extents.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Dims returns the number of axes.
func (t *Tensor) Dims() int {
	return len(t.shape)
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Data returns the live backing buffer in row-major order.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		shape: append([]int(nil), t.shape...),
		data:  append([]float64(nil), t.data...),
	}
}

// CopyFrom overwrites the tensor's values from src.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !SameShape(t.shape, src.shape) {
		return errors.Wrapf(ErrShape, "copy %v into %v", src.shape, t.shape)
	}
	copy(t.data, src.data)
	return nil
}

// SameShape reports whether two shapes have identical extents.
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Sparsity returns the fraction of elements that are exactly zero.
func (t *Tensor) Sparsity() float64 {
	if len(t.data) == 0 {
		return 0
	}
	zeros := 0
	for _, v := range t.data {
		if v == 0 {
			zeros++
		}
	}
	return float64(zeros) / float64(len(t.data))
}

// AbsMean returns the mean absolute value of all elements.
func (t *Tensor) AbsMean() float64 {
	if len(t.data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range t.data {
		sum += math.Abs(v)
	}
	return sum / float64(len(t.data))
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float64) {
	for i := range t.data {
		t.data[i] = v
	}
}

// Strides returns the row-major stride of each axis.
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for axis := len(shape) - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= shape[axis]
	}
	return strides
}

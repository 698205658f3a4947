package mask

import (
	"github.com/pkg/errors"

	"sparsekit/internal/tensor"
)

// ErrState reports an operation invalid for the mask's current lifecycle state.
var ErrState = errors.New("invalid mask state")

// ErrConfig reports an invalid mask-creator configuration.
var ErrConfig = errors.New("invalid mask configuration")

// Mask is a boolean tensor matching a parameter's shape. True keeps the
// element, false forces it to zero on apply.
type Mask struct {
	shape []int
	keep  []bool
}

// AllKeep returns a mask that keeps every element.
func AllKeep(shape []int) *Mask {
	keep := make([]bool, tensor.Elems(shape))
	for i := range keep {
		keep[i] = true
	}
	return &Mask{shape: append([]int(nil), shape...), keep: keep}
}

// FromBools wraps keep as a mask with the given shape.
func FromBools(shape []int, keep []bool) (*Mask, error) {
	if tensor.Elems(shape) != len(keep) {
		return nil, errors.Wrapf(tensor.ErrShape, "mask shape %v holds %d elements, got %d", shape, tensor.Elems(shape), len(keep))
	}
	return &Mask{shape: append([]int(nil), shape...), keep: keep}, nil
}

// Shape returns a copy of the mask's extents.
func (m *Mask) Shape() []int {
	return append([]int(nil), m.shape...)
}

// Keep returns the live keep/drop flags in row-major order.
func (m *Mask) Keep() []bool {
	return m.keep
}

// Len returns the number of elements.
func (m *Mask) Len() int {
	return len(m.keep)
}

// Sparsity returns the fraction of dropped (false) elements.
func (m *Mask) Sparsity() float64 {
	if len(m.keep) == 0 {
		return 0
	}
	dropped := 0
	for _, k := range m.keep {
		if !k {
			dropped++
		}
	}
	return float64(dropped) / float64(len(m.keep))
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	return &Mask{
		shape: append([]int(nil), m.shape...),
		keep:  append([]bool(nil), m.keep...),
	}
}

// Diff compares next against m and returns a tensor with +1 where an element
// becomes kept, -1 where it becomes dropped, and 0 where unchanged.
func (m *Mask) Diff(next *Mask) (*tensor.Tensor, error) {
	if !tensor.SameShape(m.shape, next.shape) {
		return nil, errors.Wrapf(tensor.ErrShape, "diff masks %v vs %v", m.shape, next.shape)
	}
	diff := tensor.New(m.shape...)
	out := diff.Data()
	for i := range m.keep {
		switch {
		case !m.keep[i] && next.keep[i]:
			out[i] = 1
		case m.keep[i] && !next.keep[i]:
			out[i] = -1
		}
	}
	return diff, nil
}

package tensor

import (
	"errors"
	"math"
	"testing"
)

func TestFromSliceShapeValidation(t *testing.T) {
	if _, err := FromSlice([]int{2, 3}, make([]float64, 5)); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
	tens, err := FromSlice([]int{2, 3}, make([]float64, 6))
	if err != nil {
		t.Fatalf("from slice failed: %v", err)
	}
	if tens.Len() != 6 || tens.Dims() != 2 {
		t.Fatalf("unexpected tensor dims: len=%d dims=%d", tens.Len(), tens.Dims())
	}
}

func TestDataIsLive(t *testing.T) {
	backing := []float64{1, 2, 3, 4}
	tens := MustFromSlice([]int{4}, backing)
	tens.Data()[2] = 9
	if backing[2] != 9 {
		t.Fatalf("expected mutation through Data to reach backing slice, got %v", backing)
	}
}

func TestCloneIsDetached(t *testing.T) {
	tens := MustFromSlice([]int{2, 2}, []float64{1, 2, 3, 4})
	clone := tens.Clone()
	clone.Data()[0] = -1
	if tens.Data()[0] != 1 {
		t.Fatalf("clone mutation leaked into source: %v", tens.Data())
	}
}

func TestSparsityAndAbsMean(t *testing.T) {
	tens := MustFromSlice([]int{5}, []float64{0, -2, 0, 4, 0})
	if got := tens.Sparsity(); math.Abs(got-0.6) > 1e-12 {
		t.Fatalf("unexpected sparsity: %f", got)
	}
	if got := tens.AbsMean(); math.Abs(got-1.2) > 1e-12 {
		t.Fatalf("unexpected abs mean: %f", got)
	}
}

func TestStrides(t *testing.T) {
	strides := Strides([]int{2, 3, 4})
	want := []int{12, 4, 1}
	for i := range want {
		if strides[i] != want[i] {
			t.Fatalf("unexpected strides: got=%v want=%v", strides, want)
		}
	}
}

func TestCopyFrom(t *testing.T) {
	dst := New(2, 2)
	src := MustFromSlice([]int{2, 2}, []float64{1, 2, 3, 4})
	if err := dst.CopyFrom(src); err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if dst.Data()[3] != 4 {
		t.Fatalf("copy did not transfer values: %v", dst.Data())
	}
	other := New(4)
	if err := other.CopyFrom(src); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape on mismatched copy, got %v", err)
	}
}

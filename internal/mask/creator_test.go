package mask

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"sparsekit/internal/tensor"
)

func randTensor(t *testing.T, shape []int, seed int64) *tensor.Tensor {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, tensor.Elems(shape))
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return tensor.MustFromSlice(shape, data)
}

func TestUnstructuredFromSparsityFraction(t *testing.T) {
	tens := randTensor(t, []int{64, 8}, 1)
	for _, fraction := range []float64{0.0, 0.25, 0.5, 0.9, 0.99} {
		m, err := Unstructured{}.FromSparsity(tens, fraction)
		if err != nil {
			t.Fatalf("from sparsity %f failed: %v", fraction, err)
		}
		tolerance := 1.0 / float64(tens.Len())
		if got := m.Sparsity(); math.Abs(got-fraction) > tolerance+1e-12 {
			t.Fatalf("sparsity %f out of tolerance: got=%f", fraction, got)
		}
	}
}

func TestFromSparsityDegenerateFractions(t *testing.T) {
	tens := randTensor(t, []int{4, 4}, 2)
	m, err := Unstructured{}.FromSparsity(tens, 0)
	if err != nil {
		t.Fatalf("from sparsity 0 failed: %v", err)
	}
	for i, keep := range m.Keep() {
		if !keep {
			t.Fatalf("fraction 0 should keep everything, dropped index %d", i)
		}
	}

	m, err = Unstructured{}.FromSparsity(tens, 1)
	if err != nil {
		t.Fatalf("from sparsity 1 failed: %v", err)
	}
	if got := m.Sparsity(); got != 1 {
		t.Fatalf("fraction 1 should drop everything, got sparsity %f", got)
	}

	m, err = Unstructured{KeepLastAlive: true}.FromSparsity(tens, 1)
	if err != nil {
		t.Fatalf("keep-last-alive from sparsity 1 failed: %v", err)
	}
	kept := 0
	for _, keep := range m.Keep() {
		if keep {
			kept++
		}
	}
	if kept != 1 {
		t.Fatalf("keep-last-alive should keep exactly one element, kept %d", kept)
	}
}

func TestThresholdMonotonicity(t *testing.T) {
	tens := randTensor(t, []int{32, 16}, 3)
	low, err := Unstructured{}.FromThreshold(tens, 0.5)
	if err != nil {
		t.Fatalf("threshold 0.5 failed: %v", err)
	}
	high, err := Unstructured{}.FromThreshold(tens, 1.5)
	if err != nil {
		t.Fatalf("threshold 1.5 failed: %v", err)
	}
	for i := range high.Keep() {
		if high.Keep()[i] && !low.Keep()[i] {
			t.Fatalf("kept set not monotone at index %d", i)
		}
	}
}

func TestThresholdBoundaryIsStrict(t *testing.T) {
	tens := tensor.MustFromSlice([]int{3}, []float64{0.5, -0.5, 0.6})
	m, err := Unstructured{}.FromThreshold(tens, 0.5)
	if err != nil {
		t.Fatalf("from threshold failed: %v", err)
	}
	want := []bool{false, false, true}
	for i := range want {
		if m.Keep()[i] != want[i] {
			t.Fatalf("boundary handling wrong at %d: got=%v want=%v", i, m.Keep(), want)
		}
	}
}

func TestDimensionMaskConstantPerSlice(t *testing.T) {
	tens := randTensor(t, []int{6, 10}, 4)
	creator, err := NewDimension(1)
	if err != nil {
		t.Fatalf("new dimension failed: %v", err)
	}
	m, err := creator.FromSparsity(tens, 0.5)
	if err != nil {
		t.Fatalf("from sparsity failed: %v", err)
	}
	keep := m.Keep()
	for col := 0; col < 10; col++ {
		for row := 1; row < 6; row++ {
			if keep[row*10+col] != keep[col] {
				t.Fatalf("column %d not constant across rows", col)
			}
		}
	}
	if got := m.Sparsity(); math.Abs(got-0.5) > 0.11 {
		t.Fatalf("dimension sparsity off target: %f", got)
	}
}

func TestDimensionValidation(t *testing.T) {
	if _, err := NewDimension(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for empty dims, got %v", err)
	}
	if _, err := NewDimension(0, 0); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for duplicate dims, got %v", err)
	}
	creator, err := NewDimension(3)
	if err != nil {
		t.Fatalf("new dimension failed: %v", err)
	}
	if _, err := creator.FromSparsity(randTensor(t, []int{4, 4}, 5), 0.5); !errors.Is(err, tensor.ErrShape) {
		t.Fatalf("expected ErrShape for out-of-range axis, got %v", err)
	}
}

func TestBlockMaskConstantPerTile(t *testing.T) {
	tens := randTensor(t, []int{8, 8}, 6)
	creator, err := NewBlock([]int{4, 1})
	if err != nil {
		t.Fatalf("new block failed: %v", err)
	}
	m, err := creator.FromSparsity(tens, 0.5)
	if err != nil {
		t.Fatalf("from sparsity failed: %v", err)
	}
	keep := m.Keep()
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			anchor := keep[(row/4*4)*8+col]
			if keep[row*8+col] != anchor {
				t.Fatalf("tile containing (%d,%d) not constant", row, col)
			}
		}
	}
}

func TestBlockShapeValidation(t *testing.T) {
	if _, err := NewBlock([]int{4}); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for 1-element block, got %v", err)
	}
	if _, err := NewBlock([]int{0, 2}); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for zero extent, got %v", err)
	}
	creator, err := NewBlock([]int{3, 1})
	if err != nil {
		t.Fatalf("new block failed: %v", err)
	}
	if _, err := creator.FromSparsity(randTensor(t, []int{8, 8}, 7), 0.5); !errors.Is(err, tensor.ErrShape) {
		t.Fatalf("expected ErrShape for indivisible block, got %v", err)
	}
	if _, err := creator.FromThreshold(tensor.MustFromSlice([]int{4}, make([]float64, 4)), 0); !errors.Is(err, tensor.ErrShape) {
		t.Fatalf("expected ErrShape for 1-D tensor, got %v", err)
	}
}

func TestGroupScoresBroadcast(t *testing.T) {
	tens := tensor.MustFromSlice([]int{2, 4}, []float64{1, -1, 2, -2, 3, -3, 4, -4})
	creator, err := NewBlock([]int{1, 2})
	if err != nil {
		t.Fatalf("new block failed: %v", err)
	}
	scores, err := creator.GroupScores(tens)
	if err != nil {
		t.Fatalf("group scores failed: %v", err)
	}
	want := []float64{1, 1, 2, 2, 3, 3, 4, 4}
	for i := range want {
		if math.Abs(scores.Data()[i]-want[i]) > 1e-12 {
			t.Fatalf("unexpected group scores: got=%v want=%v", scores.Data(), want)
		}
	}
}

func TestStableTieBreakAtRankBoundary(t *testing.T) {
	// All scores equal: the stable sort must drop the lowest original indices.
	tens := tensor.MustFromSlice([]int{4}, []float64{1, 1, 1, 1})
	m, err := Unstructured{}.FromSparsity(tens, 0.5)
	if err != nil {
		t.Fatalf("from sparsity failed: %v", err)
	}
	want := []bool{false, false, true, true}
	for i := range want {
		if m.Keep()[i] != want[i] {
			t.Fatalf("tie-break order changed: got=%v want=%v", m.Keep(), want)
		}
	}
}

func TestLoadCreator(t *testing.T) {
	if _, err := LoadCreator("unstructured", nil); err != nil {
		t.Fatalf("load unstructured failed: %v", err)
	}
	creator, err := LoadCreator("channel", nil)
	if err != nil {
		t.Fatalf("load channel failed: %v", err)
	}
	if dim, ok := creator.(Dimension); !ok || len(dim.Dims) != 1 || dim.Dims[0] != 1 {
		t.Fatalf("unexpected channel creator: %#v", creator)
	}
	if _, err := LoadCreator("block", []int{4, 1}); err != nil {
		t.Fatalf("load block failed: %v", err)
	}
	if _, err := LoadCreator("quadratic", nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for unknown type, got %v", err)
	}
}

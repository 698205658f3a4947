package mask

import (
	"errors"
	"math"
	"testing"

	"sparsekit/internal/tensor"
)

func newTestMask(t *testing.T, shape []int, cfg Config) (*ParamMask, *tensor.Tensor) {
	t.Helper()
	param := randTensor(t, shape, 11)
	pm, err := New(param, cfg)
	if err != nil {
		t.Fatalf("new param mask failed: %v", err)
	}
	return pm, param
}

func TestNewDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LayerName = "fc1"
	pm, _ := newTestMask(t, []int{8, 4}, cfg)
	if pm.Enabled() {
		t.Fatal("new mask should start disabled")
	}
	if pm.TrackGradMom() != DisabledGradMom {
		t.Fatalf("gradient tracking should default off, got %v", pm.TrackGradMom())
	}
	if pm.LayerName() != "fc1" || pm.ParamName() != "weight" {
		t.Fatalf("unexpected identity: layer=%s param=%s", pm.LayerName(), pm.ParamName())
	}
	if got := pm.Mask().Sparsity(); got != 0 {
		t.Fatalf("initial mask should keep everything, sparsity=%f", got)
	}
}

func TestSetParamMaskDiff(t *testing.T) {
	pm, _ := newTestMask(t, []int{2, 2}, DefaultConfig())
	first, err := FromBools([]int{2, 2}, []bool{true, false, true, false})
	if err != nil {
		t.Fatalf("from bools failed: %v", err)
	}
	diff, err := pm.SetParamMask(first)
	if err != nil {
		t.Fatalf("set param mask failed: %v", err)
	}
	want := []float64{0, -1, 0, -1}
	for i := range want {
		if diff.Data()[i] != want[i] {
			t.Fatalf("unexpected first diff: got=%v want=%v", diff.Data(), want)
		}
	}

	second, err := FromBools([]int{2, 2}, []bool{false, true, true, false})
	if err != nil {
		t.Fatalf("from bools failed: %v", err)
	}
	diff, err = pm.SetParamMask(second)
	if err != nil {
		t.Fatalf("set param mask failed: %v", err)
	}
	want = []float64{-1, 1, 0, 0}
	for i := range want {
		if diff.Data()[i] != want[i] {
			t.Fatalf("unexpected second diff: got=%v want=%v", diff.Data(), want)
		}
	}
}

func TestSetParamMaskShapeValidationLeavesStateUntouched(t *testing.T) {
	pm, _ := newTestMask(t, []int{2, 2}, DefaultConfig())
	wrong, err := FromBools([]int{4}, []bool{true, true, false, false})
	if err != nil {
		t.Fatalf("from bools failed: %v", err)
	}
	if _, err := pm.SetParamMask(wrong); !errors.Is(err, tensor.ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
	if got := pm.Mask().Sparsity(); got != 0 {
		t.Fatalf("failed set must not change the mask, sparsity=%f", got)
	}
}

func TestApplyZeroesExactlyDroppedElements(t *testing.T) {
	cfg := DefaultConfig()
	pm, param := newTestMask(t, []int{4, 4}, cfg)
	before := param.Clone()

	next, err := Unstructured{}.FromSparsity(param, 0.5)
	if err != nil {
		t.Fatalf("from sparsity failed: %v", err)
	}
	if _, err := pm.SetParamMask(next); err != nil {
		t.Fatalf("set param mask failed: %v", err)
	}

	// Disabled: apply is a no-op.
	pm.Apply()
	for i := range param.Data() {
		if param.Data()[i] != before.Data()[i] {
			t.Fatalf("disabled apply mutated element %d", i)
		}
	}

	pm.Enable()
	pm.Apply()
	for i, keep := range pm.Mask().Keep() {
		if keep && param.Data()[i] != before.Data()[i] {
			t.Fatalf("apply altered kept element %d", i)
		}
		if !keep && param.Data()[i] != 0 {
			t.Fatalf("apply left dropped element %d at %f", i, param.Data()[i])
		}
	}

	// Idempotence.
	snapshot := param.Clone()
	pm.Apply()
	for i := range param.Data() {
		if param.Data()[i] != snapshot.Data()[i] {
			t.Fatalf("second apply changed element %d", i)
		}
	}
}

func TestResetRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StoreInit = true
	pm, param := newTestMask(t, []int{8, 8}, cfg)
	original := param.Clone()

	pm.Enable()
	if _, err := pm.SetParamMaskFromSparsity(0.75); err != nil {
		t.Fatalf("set from sparsity failed: %v", err)
	}
	pm.Apply()
	if param.Sparsity() == 0 {
		t.Fatal("apply should have zeroed elements")
	}

	if err := pm.Reset(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	for i := range param.Data() {
		if param.Data()[i] != original.Data()[i] {
			t.Fatalf("reset not bit-identical at %d: got=%v want=%v", i, param.Data()[i], original.Data()[i])
		}
	}
}

func TestResetWithoutStoreInit(t *testing.T) {
	pm, _ := newTestMask(t, []int{4}, DefaultConfig())
	pm.Enable()
	if err := pm.Reset(); !errors.Is(err, ErrState) {
		t.Fatalf("expected ErrState, got %v", err)
	}
}

func TestSetParamMaskFromAbsThreshold(t *testing.T) {
	param := tensor.MustFromSlice([]int{4}, []float64{0.1, -0.6, 1.2, -0.3})
	pm, err := New(param, DefaultConfig())
	if err != nil {
		t.Fatalf("new param mask failed: %v", err)
	}
	if _, err := pm.SetParamMaskFromAbsThreshold(0.5); err != nil {
		t.Fatalf("set from threshold failed: %v", err)
	}
	want := []bool{false, true, true, false}
	for i := range want {
		if pm.Mask().Keep()[i] != want[i] {
			t.Fatalf("unexpected mask: got=%v want=%v", pm.Mask().Keep(), want)
		}
	}
}

func TestSetParamDataConstraints(t *testing.T) {
	pm, _ := newTestMask(t, []int{2, 3}, DefaultConfig())

	// Before any explicit mask the parameter may be rebound to a new shape.
	rebound := randTensor(t, []int{3, 3}, 12)
	if err := pm.SetParamData(rebound); err != nil {
		t.Fatalf("rebind before mask failed: %v", err)
	}
	if !tensor.SameShape(pm.Mask().Shape(), []int{3, 3}) {
		t.Fatalf("mask did not follow rebind: %v", pm.Mask().Shape())
	}

	if _, err := pm.SetParamMaskFromSparsity(0.5); err != nil {
		t.Fatalf("set from sparsity failed: %v", err)
	}
	if err := pm.SetParamData(randTensor(t, []int{2, 2}, 13)); !errors.Is(err, tensor.ErrShape) {
		t.Fatalf("expected ErrShape after mask set, got %v", err)
	}
}

func TestGradMomTracking(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrackGradMom = 0.9
	param := tensor.MustFromSlice([]int{2}, []float64{1, 1})
	pm, err := New(param, cfg)
	if err != nil {
		t.Fatalf("new param mask failed: %v", err)
	}

	if err := pm.SetTrackGradMom(0.5); !errors.Is(err, ErrState) {
		t.Fatalf("expected ErrState on double initialization, got %v", err)
	}

	grad := tensor.MustFromSlice([]int{2}, []float64{-1, 2})
	if err := pm.ObserveGrad(grad); err != nil {
		t.Fatalf("observe grad failed: %v", err)
	}
	if err := pm.ObserveGrad(grad); err != nil {
		t.Fatalf("observe grad failed: %v", err)
	}
	// EMA with coefficient 0.9 over two identical |g| observations: 0.1|g| then
	// 0.09|g| + 0.1|g|.
	want := []float64{0.19, 0.38}
	for i := range want {
		if math.Abs(pm.GradMom().Data()[i]-want[i]) > 1e-12 {
			t.Fatalf("unexpected grad momentum: got=%v want=%v", pm.GradMom().Data(), want)
		}
	}
}

func TestObserveGradDisabled(t *testing.T) {
	pm, _ := newTestMask(t, []int{2}, DefaultConfig())
	if err := pm.ObserveGrad(tensor.New(2)); !errors.Is(err, ErrState) {
		t.Fatalf("expected ErrState, got %v", err)
	}
}

package train

import (
	"errors"
	"testing"

	"sparsekit/internal/mask"
	"sparsekit/internal/sched"
	"sparsekit/internal/tensor"
)

func TestHooksRunInOrder(t *testing.T) {
	var hooks Hooks
	var order []string
	hooks.OnBeforeForward(func(step int) error { order = append(order, "bf1"); return nil })
	hooks.OnBeforeForward(func(step int) error { order = append(order, "bf2"); return nil })
	hooks.OnAfterForward(func(step int) error { order = append(order, "af"); return nil })
	hooks.OnAfterBackward(func(step int) error { order = append(order, "ab"); return nil })
	hooks.OnAfterOptimizerStep(func(step int) error { order = append(order, "ao"); return nil })

	for _, run := range []func(int) error{hooks.BeforeForward, hooks.AfterForward, hooks.AfterBackward, hooks.AfterOptimizerStep} {
		if err := run(0); err != nil {
			t.Fatalf("hook run failed: %v", err)
		}
	}
	want := []string{"bf1", "bf2", "af", "ab", "ao"}
	if len(order) != len(want) {
		t.Fatalf("hook order: got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hook order: got %v want %v", order, want)
		}
	}
}

func TestHooksPropagateErrors(t *testing.T) {
	var hooks Hooks
	sentinel := errors.New("boom")
	hooks.OnAfterBackward(func(step int) error { return sentinel })
	if err := hooks.AfterBackward(3); !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
}

func newCallbackFixture(t *testing.T) (*PruningCallback, *tensor.Tensor) {
	t.Helper()
	param := tensor.MustFromSlice([]int{2, 2}, []float64{0.1, -0.2, 0.3, -0.4})
	cfg := mask.DefaultConfig()
	cfg.LayerName = "fc1"
	cfg.StoreInit = true
	pm, err := mask.New(param, cfg)
	if err != nil {
		t.Fatalf("mask failed: %v", err)
	}

	scheduler, err := sched.NewGradual(0.25, 0.75, 10, 20, 5, sched.InterLinear)
	if err != nil {
		t.Fatalf("scheduler failed: %v", err)
	}
	cb, err := NewPruningCallback(scheduler, []*mask.ParamMask{pm})
	if err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	return cb, param
}

func TestPruningCallbackFollowsSchedule(t *testing.T) {
	cb, param := newCallbackFixture(t)

	// Before the window nothing fires and weights stay dense.
	if err := cb.ConditionalUpdate(5); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got := param.Sparsity(); got != 0 {
		t.Fatalf("premature pruning: sparsity %v", got)
	}

	// Start step prunes to the initial sparsity: 1 of 4 weights.
	if err := cb.ConditionalUpdate(10); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got := param.Sparsity(); got != 0.25 {
		t.Fatalf("start sparsity: got %v want 0.25", got)
	}

	// End step reaches the final sparsity: 3 of 4 weights.
	if err := cb.ConditionalUpdate(20); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got := param.Sparsity(); got != 0.75 {
		t.Fatalf("final sparsity: got %v want 0.75", got)
	}
}

func TestPruningCallbackReapplyAfterOptimizer(t *testing.T) {
	cb, param := newCallbackFixture(t)
	if err := cb.ConditionalUpdate(20); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// Simulate an optimizer nudging every weight off zero.
	for i := range param.Data() {
		param.Data()[i] += 0.01
	}
	if err := cb.Reapply(21); err != nil {
		t.Fatalf("reapply failed: %v", err)
	}
	if got := param.Sparsity(); got != 0.75 {
		t.Fatalf("reapply did not restore sparsity: got %v want 0.75", got)
	}
}

func TestPruningCallbackRegister(t *testing.T) {
	cb, param := newCallbackFixture(t)
	var hooks Hooks
	cb.Register(&hooks)

	if err := hooks.BeforeForward(10); err != nil {
		t.Fatalf("before-forward failed: %v", err)
	}
	if err := hooks.AfterOptimizerStep(10); err != nil {
		t.Fatalf("after-optimizer failed: %v", err)
	}
	if got := param.Sparsity(); got != 0.25 {
		t.Fatalf("registered hooks did not prune: got %v", got)
	}
}

func TestSparsitySnapshot(t *testing.T) {
	cb, _ := newCallbackFixture(t)
	if err := cb.ConditionalUpdate(10); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	snap := cb.SparsitySnapshot()
	if got, ok := snap["sparsity@fc1.weight"]; !ok || got != 0.25 {
		t.Fatalf("snapshot: got %+v", snap)
	}
}

func TestNewPruningCallbackValidation(t *testing.T) {
	scheduler, err := sched.NewGradual(0, 0.5, 0, 10, 1, sched.InterLinear)
	if err != nil {
		t.Fatalf("scheduler failed: %v", err)
	}
	if _, err := NewPruningCallback(nil, nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for nil scheduler, got %v", err)
	}
	if _, err := NewPruningCallback(scheduler, nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for no masks, got %v", err)
	}
	if _, err := NewPruningCallback(scheduler, []*mask.ParamMask{nil}); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for nil mask, got %v", err)
	}
}

package train

import (
	"fmt"

	"github.com/pkg/errors"

	"sparsekit/internal/mask"
	"sparsekit/internal/sched"
)

var ErrConfig = errors.New("pruning callback configuration invalid")

// PruningCallback drives a set of parameter masks from a sparsity scheduler.
// On scheduled steps it recomputes each mask at the scheduler's target
// sparsity; after every optimizer step it re-applies the masks so updated
// weights stay pruned.
type PruningCallback struct {
	scheduler sched.Scheduler
	masks     []*mask.ParamMask
	started   bool
}

// NewPruningCallback validates and pairs a scheduler with its masks.
func NewPruningCallback(scheduler sched.Scheduler, masks []*mask.ParamMask) (*PruningCallback, error) {
	if scheduler == nil {
		return nil, errors.Wrap(ErrConfig, "callback needs a scheduler")
	}
	if len(masks) == 0 {
		return nil, errors.Wrap(ErrConfig, "callback needs at least one mask")
	}
	for i, m := range masks {
		if m == nil {
			return nil, errors.Wrapf(ErrConfig, "mask %d is nil", i)
		}
	}
	return &PruningCallback{scheduler: scheduler, masks: masks}, nil
}

// Register attaches the callback to the hook points it needs.
func (c *PruningCallback) Register(hooks *Hooks) {
	hooks.OnBeforeForward(c.ConditionalUpdate)
	hooks.OnAfterOptimizerStep(c.Reapply)
}

// ConditionalUpdate recomputes the masks when the scheduler fires at step.
// The first firing step also enables all masks.
func (c *PruningCallback) ConditionalUpdate(step int) error {
	if !c.scheduler.ShouldPrune(step) {
		return nil
	}
	if !c.started {
		for _, m := range c.masks {
			m.Enable()
		}
		c.started = true
	}
	for _, m := range c.masks {
		target, ok, err := c.scheduler.TargetSparsity(step, m.ParamData())
		if err != nil {
			return errors.Wrapf(err, "target sparsity for %s.%s", m.LayerName(), m.ParamName())
		}
		if !ok {
			continue
		}
		if _, err := m.SetParamMaskFromSparsity(target); err != nil {
			return errors.Wrapf(err, "update mask for %s.%s", m.LayerName(), m.ParamName())
		}
		m.Apply()
	}
	return nil
}

// Reapply zeroes dropped weights again, undoing any optimizer drift.
func (c *PruningCallback) Reapply(step int) error {
	for _, m := range c.masks {
		m.Apply()
	}
	return nil
}

// SparsitySnapshot reports the observed weight sparsity per tracked parameter,
// keyed as "sparsity@layer.param".
func (c *PruningCallback) SparsitySnapshot() map[string]float64 {
	out := make(map[string]float64, len(c.masks))
	for _, m := range c.masks {
		key := fmt.Sprintf("sparsity@%s.%s", m.LayerName(), m.ParamName())
		out[key] = m.ParamData().Sparsity()
	}
	return out
}

// Package train wires pruning into a training loop through step hooks. The
// loop itself lives elsewhere; callers invoke the hook points at the matching
// places in their own loop.
package train

import "github.com/pkg/errors"

// HookFunc runs at one point of a training step.
type HookFunc func(step int) error

// Hooks is an ordered registry of callbacks for the four points of a step.
// The zero value is ready to use.
type Hooks struct {
	beforeForward  []HookFunc
	afterForward   []HookFunc
	afterBackward  []HookFunc
	afterOptimizer []HookFunc
}

func (h *Hooks) OnBeforeForward(fn HookFunc)      { h.beforeForward = append(h.beforeForward, fn) }
func (h *Hooks) OnAfterForward(fn HookFunc)       { h.afterForward = append(h.afterForward, fn) }
func (h *Hooks) OnAfterBackward(fn HookFunc)      { h.afterBackward = append(h.afterBackward, fn) }
func (h *Hooks) OnAfterOptimizerStep(fn HookFunc) { h.afterOptimizer = append(h.afterOptimizer, fn) }

func runHooks(hooks []HookFunc, step int, point string) error {
	for i, fn := range hooks {
		if err := fn(step); err != nil {
			return errors.Wrapf(err, "%s hook %d at step %d", point, i, step)
		}
	}
	return nil
}

func (h *Hooks) BeforeForward(step int) error {
	return runHooks(h.beforeForward, step, "before-forward")
}

func (h *Hooks) AfterForward(step int) error {
	return runHooks(h.afterForward, step, "after-forward")
}

func (h *Hooks) AfterBackward(step int) error {
	return runHooks(h.afterBackward, step, "after-backward")
}

func (h *Hooks) AfterOptimizerStep(step int) error {
	return runHooks(h.afterOptimizer, step, "after-optimizer")
}

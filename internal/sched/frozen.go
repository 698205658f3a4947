package sched

import (
	"github.com/pkg/errors"

	"sparsekit/internal/tensor"
)

// Frozen holds whatever sparsity a tensor already exhibits for the duration of
// its window, then fully unmasks at EndStep. Useful for transfer learning on
// an already-pruned model.
type Frozen struct {
	startStep int
	endStep   int
}

// NewFrozen validates the window and returns the schedule.
func NewFrozen(startStep, endStep int) (*Frozen, error) {
	if startStep > endStep {
		return nil, errors.Wrapf(ErrConfig, "start step %d after end step %d", startStep, endStep)
	}
	return &Frozen{startStep: startStep, endStep: endStep}, nil
}

func (s *Frozen) StartStep() int { return s.startStep }
func (s *Frozen) EndStep() int   { return s.endStep }

// ShouldPrune fires only at the window boundaries.
func (s *Frozen) ShouldPrune(step int) bool {
	return step == s.startStep || step == s.endStep
}

// TargetSparsity measures the observed zero fraction of t inside
// [StartStep, EndStep), returns 0 at EndStep to drop the mask, and is
// undefined (ok=false) outside the window.
func (s *Frozen) TargetSparsity(step int, t *tensor.Tensor) (float64, bool, error) {
	switch {
	case step >= s.startStep && step < s.endStep:
		if t == nil {
			return 0, false, errors.Wrap(ErrConfig, "frozen schedule needs a tensor inside its window")
		}
		return t.Sparsity(), true, nil
	case step == s.endStep:
		return 0, true, nil
	default:
		return 0, false, nil
	}
}

package sched

import (
	"math"

	"github.com/pkg/errors"

	"sparsekit/internal/tensor"
)

// Gradual interpolates target sparsity from InitSparsity at StartStep to
// FinalSparsity at EndStep along the configured curve. Magnitude pruning
// driven by this schedule is the classic gradual magnitude pruning setup.
type Gradual struct {
	initSparsity  float64
	finalSparsity float64
	startStep     int
	endStep       int
	updateFreq    int
	interFunc     string
}

// NewGradual validates the configuration and returns the schedule.
// updateFrequencySteps <= 0 means every step inside the window fires.
func NewGradual(initSparsity, finalSparsity float64, startStep, endStep, updateFrequencySteps int, interFunc string) (*Gradual, error) {
	if initSparsity < 0 || initSparsity > 1 {
		return nil, errors.Wrapf(ErrConfig, "init sparsity must be in [0,1], got %v", initSparsity)
	}
	if finalSparsity < 0 || finalSparsity > 1 {
		return nil, errors.Wrapf(ErrConfig, "final sparsity must be in [0,1], got %v", finalSparsity)
	}
	if startStep > endStep {
		return nil, errors.Wrapf(ErrConfig, "start step %d after end step %d", startStep, endStep)
	}
	s := &Gradual{
		initSparsity:  initSparsity,
		finalSparsity: finalSparsity,
		startStep:     startStep,
		endStep:       endStep,
		updateFreq:    updateFrequencySteps,
		interFunc:     interFunc,
	}
	if _, err := s.Exponent(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Gradual) InitSparsity() float64  { return s.initSparsity }
func (s *Gradual) FinalSparsity() float64 { return s.finalSparsity }
func (s *Gradual) StartStep() int         { return s.startStep }
func (s *Gradual) EndStep() int           { return s.endStep }
func (s *Gradual) UpdateFrequency() int   { return s.updateFreq }
func (s *Gradual) InterFunc() string      { return s.interFunc }

// Exponent maps the interpolation choice to the curve exponent.
func (s *Gradual) Exponent() (float64, error) {
	switch s.interFunc {
	case InterLinear:
		return 1.0, nil
	case InterCubic:
		return 3.0, nil
	case InterInverseCubic:
		return 1.0 / 3.0, nil
	default:
		return 0, errors.Wrapf(ErrConfig, "unrecognized inter_func: %s", s.interFunc)
	}
}

// ShouldPrune fires at StartStep, at EndStep, and inside the open interval at
// every UpdateFrequency-th step past StartStep, or at every step when the
// frequency is <= 0.
func (s *Gradual) ShouldPrune(step int) bool {
	start := step == s.startStep
	end := step == s.endStep
	active := step > s.startStep && step < s.endStep
	if !(start || end || active) {
		return false
	}
	if start || end {
		return true
	}
	if s.updateFreq <= 0 {
		return true
	}
	return (step-s.startStep)%s.updateFreq == 0
}

// TargetSparsity is always defined: 0 before the window, the interpolated
// value inside, the final sparsity at and after EndStep.
func (s *Gradual) TargetSparsity(step int, _ *tensor.Tensor) (float64, bool, error) {
	switch {
	case step < s.startStep:
		return 0, true, nil
	case step == s.startStep:
		return s.initSparsity, true, nil
	case step >= s.endStep:
		return s.finalSparsity, true, nil
	}

	exponent, err := s.Exponent()
	if err != nil {
		return 0, false, err
	}
	percentage := float64(step-s.startStep) / float64(s.endStep-s.startStep)
	percentage = math.Min(1, math.Max(0, percentage))
	expPercentage := 1 - math.Pow(1-percentage, exponent)
	return s.initSparsity + (s.finalSparsity-s.initSparsity)*expPercentage, true, nil
}

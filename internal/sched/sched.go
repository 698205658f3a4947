// Package sched decides, per training step, whether a pruning update should
// fire and what target sparsity applies.
package sched

import (
	"github.com/pkg/errors"

	"sparsekit/internal/tensor"
)

// ErrConfig reports an invalid scheduler configuration.
var ErrConfig = errors.New("invalid scheduler configuration")

// Interpolation curves for the gradual-magnitude schedule.
const (
	InterLinear       = "linear"
	InterCubic        = "cubic"
	InterInverseCubic = "inverse_cubic"
)

// Scheduler is a pure step -> decision function. Implementations hold only
// their fixed configuration.
type Scheduler interface {
	// ShouldPrune reports whether a pruning update fires at the given step.
	ShouldPrune(step int) bool

	// TargetSparsity returns the sparsity to apply at the given step. ok is
	// false where the schedule leaves the sparsity undefined. Schedulers that
	// measure observed sparsity need the tensor under scrutiny and fail with
	// ErrConfig when it is missing inside their active window.
	TargetSparsity(step int, t *tensor.Tensor) (sparsity float64, ok bool, err error)
}

// Package modifier loads pruning recipes from YAML and turns each modifier
// into the schedule and mask creator that drive it. Epoch-based recipe fields
// are translated to optimizer steps when a schedule is built.
package modifier

import (
	"math"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"sparsekit/internal/mask"
	"sparsekit/internal/sched"
)

var ErrConfig = errors.New("modifier configuration invalid")

// AllToken in a params list selects every prunable parameter.
const AllToken = "__ALL__"

// RegexPrefix marks a params entry as a regular expression.
const RegexPrefix = "re:"

// MaskType selects the grouping of a pruning mask. In YAML it is either a
// scalar ("unstructured", "channel", "filter") or a two-int block shape.
type MaskType struct {
	Kind  string
	Block []int
}

func (m *MaskType) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var kind string
		if err := value.Decode(&kind); err != nil {
			return err
		}
		m.Kind = kind
		return nil
	case yaml.SequenceNode:
		var block []int
		if err := value.Decode(&block); err != nil {
			return err
		}
		m.Kind = mask.TypeBlock
		m.Block = block
		return nil
	}
	return errors.Wrap(ErrConfig, "mask_type must be a string or a block shape")
}

func (m MaskType) MarshalYAML() (any, error) {
	if m.Kind == mask.TypeBlock && len(m.Block) > 0 {
		return m.Block, nil
	}
	return m.Kind, nil
}

// Creator builds the mask creator for this mask type. The zero value selects
// unstructured pruning.
func (m MaskType) Creator() (mask.Creator, error) {
	kind := m.Kind
	if kind == "" {
		kind = mask.TypeUnstructured
	}
	return mask.LoadCreator(kind, m.Block)
}

// GMPruningModifier gradually prunes matched parameters from init_sparsity at
// start_epoch to final_sparsity at end_epoch.
type GMPruningModifier struct {
	Params          []string `yaml:"params"`
	InitSparsity    float64  `yaml:"init_sparsity"`
	FinalSparsity   float64  `yaml:"final_sparsity"`
	StartEpoch      float64  `yaml:"start_epoch"`
	EndEpoch        float64  `yaml:"end_epoch"`
	UpdateFrequency float64  `yaml:"update_frequency"`
	InterFunc       string   `yaml:"inter_func,omitempty"`
	MaskType        MaskType `yaml:"mask_type,omitempty"`
	LeaveEnabled    *bool    `yaml:"leave_enabled,omitempty"`
}

func (m *GMPruningModifier) Validate() error {
	if len(m.Params) == 0 {
		return errors.Wrap(ErrConfig, "gm pruning needs a params list")
	}
	if m.InitSparsity < 0 || m.InitSparsity > 1 {
		return errors.Wrapf(ErrConfig, "init_sparsity must be in [0, 1], got %v", m.InitSparsity)
	}
	if m.FinalSparsity < 0 || m.FinalSparsity > 1 {
		return errors.Wrapf(ErrConfig, "final_sparsity must be in [0, 1], got %v", m.FinalSparsity)
	}
	if m.EndEpoch <= m.StartEpoch {
		return errors.Wrapf(ErrConfig, "end_epoch %v must be after start_epoch %v", m.EndEpoch, m.StartEpoch)
	}
	if err := validateLeaveEnabled(m.LeaveEnabled); err != nil {
		return err
	}
	if m.interFunc() != sched.InterLinear && m.interFunc() != sched.InterCubic && m.interFunc() != sched.InterInverseCubic {
		return errors.Wrapf(ErrConfig, "unrecognized inter_func: %s", m.InterFunc)
	}
	if _, err := m.MaskType.Creator(); err != nil {
		return err
	}
	return nil
}

func (m *GMPruningModifier) interFunc() string {
	if m.InterFunc == "" {
		return sched.InterLinear
	}
	return m.InterFunc
}

// Schedule translates the epoch window into steps and builds the gradual
// schedule.
func (m *GMPruningModifier) Schedule(stepsPerEpoch int) (sched.Scheduler, error) {
	if stepsPerEpoch <= 0 {
		return nil, errors.Wrapf(ErrConfig, "steps per epoch must be positive, got %d", stepsPerEpoch)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return sched.NewGradual(
		m.InitSparsity,
		m.FinalSparsity,
		epochToStep(m.StartEpoch, stepsPerEpoch),
		epochToStep(m.EndEpoch, stepsPerEpoch),
		epochToStep(m.UpdateFrequency, stepsPerEpoch),
		m.interFunc(),
	)
}

// ConstantPruningModifier keeps a parameter's existing sparsity pattern fixed
// inside its epoch window. EndEpoch of -1 keeps it for the whole run.
type ConstantPruningModifier struct {
	Params       []string `yaml:"params"`
	StartEpoch   float64  `yaml:"start_epoch"`
	EndEpoch     float64  `yaml:"end_epoch"`
	LeaveEnabled *bool    `yaml:"leave_enabled,omitempty"`
}

func (m *ConstantPruningModifier) Validate() error {
	if len(m.Params) == 0 {
		return errors.Wrap(ErrConfig, "constant pruning needs a params list")
	}
	if m.EndEpoch != -1 && m.EndEpoch <= m.StartEpoch {
		return errors.Wrapf(ErrConfig, "end_epoch %v must be after start_epoch %v or -1", m.EndEpoch, m.StartEpoch)
	}
	return validateLeaveEnabled(m.LeaveEnabled)
}

// Schedule builds the frozen schedule for the epoch window.
func (m *ConstantPruningModifier) Schedule(stepsPerEpoch int) (sched.Scheduler, error) {
	if stepsPerEpoch <= 0 {
		return nil, errors.Wrapf(ErrConfig, "steps per epoch must be positive, got %d", stepsPerEpoch)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	end := math.MaxInt32
	if m.EndEpoch != -1 {
		end = epochToStep(m.EndEpoch, stepsPerEpoch)
	}
	return sched.NewFrozen(epochToStep(m.StartEpoch, stepsPerEpoch), end)
}

func validateLeaveEnabled(v *bool) error {
	if v != nil && !*v {
		return errors.Wrap(ErrConfig, "leave_enabled == true is the only supported value")
	}
	return nil
}

func epochToStep(epoch float64, stepsPerEpoch int) int {
	return int(math.Round(epoch * float64(stepsPerEpoch)))
}

// MatchParams expands a params list against the available parameter names,
// preserving the order of available. Entries are exact names, the AllToken,
// or regular expressions marked with RegexPrefix.
func MatchParams(patterns, available []string) ([]string, error) {
	for _, pattern := range patterns {
		if pattern == AllToken {
			return append([]string(nil), available...), nil
		}
	}

	matched := make([]string, 0, len(available))
	seen := make(map[string]bool, len(available))
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			matched = append(matched, name)
		}
	}

	exact := make(map[string]bool, len(patterns))
	var regexps []*regexp.Regexp
	for _, pattern := range patterns {
		if strings.HasPrefix(pattern, RegexPrefix) {
			re, err := regexp.Compile(strings.TrimPrefix(pattern, RegexPrefix))
			if err != nil {
				return nil, errors.Wrapf(ErrConfig, "bad params regex %q: %v", pattern, err)
			}
			regexps = append(regexps, re)
			continue
		}
		exact[pattern] = true
	}

	for _, name := range available {
		if exact[name] {
			add(name)
			continue
		}
		for _, re := range regexps {
			if re.MatchString(name) {
				add(name)
				break
			}
		}
	}

	for pattern := range exact {
		if !seen[pattern] {
			return nil, errors.Wrapf(ErrConfig, "param %q not found in model", pattern)
		}
	}
	return matched, nil
}

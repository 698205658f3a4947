package mask

import (
	"math"

	"github.com/pkg/errors"

	"sparsekit/internal/tensor"
)

// DisabledGradMom is the sentinel momentum coefficient that turns gradient
// tracking off.
const DisabledGradMom = -1.0

// Config configures a ParamMask. Use DefaultConfig as the starting point so
// gradient tracking stays disabled unless asked for.
type Config struct {
	LayerName string
	ParamName string

	// StoreInit captures the parameter's values on first enable so Reset can
	// restore them.
	StoreInit bool

	// TrackGradMom is the EMA coefficient for gradient-magnitude tracking, or
	// DisabledGradMom to turn it off.
	TrackGradMom float64

	Creator Creator
}

// DefaultConfig returns a Config with unstructured masking, no init capture and
// gradient tracking disabled.
func DefaultConfig() Config {
	return Config{
		ParamName:    "weight",
		TrackGradMom: DisabledGradMom,
		Creator:      Unstructured{},
	}
}

// ParamMask owns the sparsity mask for a single parameter tensor. Exactly one
// ParamMask should track a given (layer, param) pair at a time; the mask tensor
// and the captured original values are owned exclusively by this instance.
//
// Lifecycle: a new mask starts disabled with an all-keep mask. Enable captures
// the original values when StoreInit is set, Apply zeroes dropped elements in
// place only while enabled, Reset restores the captured values.
type ParamMask struct {
	layerName string
	paramName string
	creator   Creator

	param   *tensor.Tensor
	mask    *Mask
	maskSet bool

	storeInit bool
	init      *tensor.Tensor
	enabled   bool

	trackGradMom float64
	gradMom      *tensor.Tensor
}

// New binds a ParamMask to the given live parameter tensor.
func New(param *tensor.Tensor, cfg Config) (*ParamMask, error) {
	if param == nil {
		return nil, errors.Wrap(ErrState, "parameter tensor is required")
	}
	if cfg.Creator == nil {
		cfg.Creator = Unstructured{}
	}
	if cfg.TrackGradMom != DisabledGradMom && cfg.TrackGradMom < 0 {
		return nil, errors.Wrapf(ErrConfig, "track_grad_mom must be %v or non-negative, got %v", DisabledGradMom, cfg.TrackGradMom)
	}
	return &ParamMask{
		layerName:    cfg.LayerName,
		paramName:    cfg.ParamName,
		creator:      cfg.Creator,
		param:        param,
		mask:         AllKeep(param.Shape()),
		storeInit:    cfg.StoreInit,
		trackGradMom: cfg.TrackGradMom,
	}, nil
}

// LayerName returns the owning layer's name.
func (p *ParamMask) LayerName() string { return p.layerName }

// ParamName returns the tracked parameter's name.
func (p *ParamMask) ParamName() string { return p.paramName }

// Creator returns the mask creator in use.
func (p *ParamMask) Creator() Creator { return p.creator }

// ParamData returns the live parameter tensor.
func (p *ParamMask) ParamData() *tensor.Tensor { return p.param }

// Mask returns the current mask.
func (p *ParamMask) Mask() *Mask { return p.mask }

// Enabled reports whether Apply takes effect.
func (p *ParamMask) Enabled() bool { return p.enabled }

// StoreInit reports whether original values are captured on enable.
func (p *ParamMask) StoreInit() bool { return p.storeInit }

// TrackGradMom returns the gradient EMA coefficient, DisabledGradMom when off.
func (p *ParamMask) TrackGradMom() float64 { return p.trackGradMom }

// Enable arms Apply. When StoreInit is set, the first enable captures the
// parameter's current values for later Reset.
func (p *ParamMask) Enable() {
	if p.storeInit && p.init == nil {
		p.init = p.param.Clone()
	}
	p.enabled = true
}

// Disable makes Apply a no-op without touching the mask.
func (p *ParamMask) Disable() {
	p.enabled = false
}

// SetParamData replaces the tracked parameter's live values. Once a mask has
// been set the shape must match it; before that the parameter may be rebound
// to a tensor of any shape.
func (p *ParamMask) SetParamData(t *tensor.Tensor) error {
	if t == nil {
		return errors.Wrap(ErrState, "parameter tensor is required")
	}
	if p.maskSet {
		if !tensor.SameShape(t.Shape(), p.mask.Shape()) {
			return errors.Wrapf(tensor.ErrShape, "param data %v does not match mask %v", t.Shape(), p.mask.Shape())
		}
		return p.param.CopyFrom(t)
	}
	if tensor.SameShape(t.Shape(), p.param.Shape()) {
		return p.param.CopyFrom(t)
	}
	p.param = t
	p.mask = AllKeep(t.Shape())
	p.init = nil
	p.gradMom = nil
	return nil
}

// SetParamMask installs a new mask and returns the per-element diff against
// the previous one: +1 newly kept, -1 newly dropped, 0 unchanged. The mask is
// validated for shape before any state changes.
func (p *ParamMask) SetParamMask(next *Mask) (*tensor.Tensor, error) {
	if next == nil {
		return nil, errors.Wrap(ErrState, "mask is required")
	}
	if !tensor.SameShape(next.Shape(), p.param.Shape()) {
		return nil, errors.Wrapf(tensor.ErrShape, "mask %v does not match param %v", next.Shape(), p.param.Shape())
	}
	diff, err := p.mask.Diff(next)
	if err != nil {
		return nil, err
	}
	p.mask = next.Clone()
	p.maskSet = true
	return diff, nil
}

// SetParamMaskFromAbsThreshold rebuilds the mask from the current parameter
// values, dropping every group whose score is <= threshold.
func (p *ParamMask) SetParamMaskFromAbsThreshold(threshold float64) (*tensor.Tensor, error) {
	next, err := p.creator.FromThreshold(p.param, threshold)
	if err != nil {
		return nil, err
	}
	return p.SetParamMask(next)
}

// SetParamMaskFromSparsity rebuilds the mask from the current parameter values
// at the given target sparsity fraction.
func (p *ParamMask) SetParamMaskFromSparsity(fraction float64) (*tensor.Tensor, error) {
	next, err := p.creator.FromSparsity(p.param, fraction)
	if err != nil {
		return nil, err
	}
	return p.SetParamMask(next)
}

// Apply zeroes every dropped element of the live parameter in place. Kept
// elements are never touched. A disabled mask applies nothing.
func (p *ParamMask) Apply() {
	if !p.enabled {
		return
	}
	data := p.param.Data()
	for i, keep := range p.mask.Keep() {
		if !keep {
			data[i] = 0
		}
	}
}

// Reset restores the parameter to the values captured on first enable and
// clears tracked gradient momentum. It fails when StoreInit never captured.
func (p *ParamMask) Reset() error {
	if p.init == nil {
		return errors.Wrap(ErrState, "reset without captured init values")
	}
	if err := p.param.CopyFrom(p.init); err != nil {
		return err
	}
	p.gradMom = nil
	return nil
}

// SetTrackGradMom enables gradient-magnitude tracking with the given EMA
// coefficient. Re-initializing an active tracker is a state error.
func (p *ParamMask) SetTrackGradMom(mom float64) error {
	if mom < 0 {
		return errors.Wrapf(ErrConfig, "momentum coefficient must be non-negative, got %v", mom)
	}
	if p.trackGradMom != DisabledGradMom {
		return errors.Wrap(ErrState, "gradient momentum tracking already initialized")
	}
	p.trackGradMom = mom
	return nil
}

// ObserveGrad folds one gradient observation into the tracked EMA of gradient
// magnitudes. Call it after each optimizer step.
func (p *ParamMask) ObserveGrad(grad *tensor.Tensor) error {
	if p.trackGradMom == DisabledGradMom {
		return errors.Wrap(ErrState, "gradient momentum tracking is disabled")
	}
	if !tensor.SameShape(grad.Shape(), p.param.Shape()) {
		return errors.Wrapf(tensor.ErrShape, "gradient %v does not match param %v", grad.Shape(), p.param.Shape())
	}
	if p.gradMom == nil {
		p.gradMom = tensor.New(p.param.Shape()...)
	}
	mom := p.trackGradMom
	data := p.gradMom.Data()
	for i, g := range grad.Data() {
		data[i] = mom*data[i] + (1-mom)*math.Abs(g)
	}
	return nil
}

// GradMom returns the tracked gradient-magnitude EMA, nil before the first
// observation.
func (p *ParamMask) GradMom() *tensor.Tensor { return p.gradMom }

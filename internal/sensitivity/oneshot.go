package sensitivity

import (
	"github.com/pkg/errors"

	"sparsekit/internal/datafeed"
	"sparsekit/internal/losses"
	"sparsekit/internal/mask"
	"sparsekit/internal/model"
)

// OneShotConfig controls an empirical sensitivity run.
type OneShotConfig struct {
	// Levels is the sparsity sweep. Empty selects DefaultSparsityLevels.
	Levels []float64
	// StepsPerMeasurement is how many batches to score per layer and level.
	StepsPerMeasurement int
	// MaxSteps optionally caps the total number of forward passes across the
	// whole run. Once the cap is spent the sweep stops and the remaining
	// levels and layers are left unmeasured. Zero means no cap.
	MaxSteps int
	// LossKey selects which loss from the wrapper is recorded. Empty selects
	// losses.DefaultLossKey.
	LossKey string
}

func (c *OneShotConfig) normalize() error {
	if len(c.Levels) == 0 {
		c.Levels = DefaultSparsityLevels()
	}
	for _, level := range c.Levels {
		if level < 0 || level > 1 {
			return errors.Wrapf(ErrConfig, "sparsity level %v out of [0, 1]", level)
		}
	}
	if c.StepsPerMeasurement <= 0 {
		return errors.Wrapf(ErrConfig, "steps per measurement must be positive, got %d", c.StepsPerMeasurement)
	}
	if c.MaxSteps < 0 {
		return errors.Wrapf(ErrConfig, "max steps must be >= 0, got %d", c.MaxSteps)
	}
	if c.LossKey == "" {
		c.LossKey = losses.DefaultLossKey
	}
	return nil
}

// OneShot measures pruning sensitivity empirically. One layer at a time it
// installs an unstructured mask at each sparsity level, replays the same
// cached batches through the network and records the resulting losses. The
// layer's weights are restored bit for bit before the next layer is measured.
func OneShot(net *model.Network, feed *datafeed.Feed, wrapper *losses.Wrapper, cfg OneShotConfig) (*Analysis, error) {
	if net == nil || feed == nil || wrapper == nil {
		return nil, errors.Wrap(ErrConfig, "one-shot needs a network, a feed and a loss wrapper")
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	analysis := &Analysis{LossKey: cfg.LossKey}
	totalSteps := 0
	budgetSpent := func() bool { return cfg.MaxSteps > 0 && totalSteps >= cfg.MaxSteps }
	for _, layer := range net.PrunableLayers() {
		if budgetSpent() {
			break
		}
		maskCfg := mask.DefaultConfig()
		maskCfg.LayerName = layer.Name
		maskCfg.StoreInit = true
		pm, err := mask.New(layer.Layer.Weights, maskCfg)
		if err != nil {
			return nil, errors.Wrapf(err, "mask for layer %s", layer.Name)
		}
		pm.Enable()

		result := LayerResult{Param: layer.Name + "." + pm.ParamName(), Index: layer.Index}
		for _, level := range cfg.Levels {
			if budgetSpent() {
				break
			}
			if _, err := pm.SetParamMaskFromSparsity(level); err != nil {
				return nil, errors.Wrapf(err, "layer %s at sparsity %v", layer.Name, level)
			}
			pm.Apply()

			feed.Rewind()
			values := make([]float64, 0, cfg.StepsPerMeasurement)
			for step := 0; step < cfg.StepsPerMeasurement; step++ {
				if budgetSpent() {
					break
				}
				batch, err := feed.Next()
				if err != nil {
					return nil, err
				}
				preds, err := net.Forward(batch.Inputs)
				if err != nil {
					return nil, errors.Wrapf(err, "forward for layer %s", layer.Name)
				}
				lossVals, err := wrapper.Batch(preds, batch.Targets)
				if err != nil {
					return nil, errors.Wrapf(err, "loss for layer %s", layer.Name)
				}
				value, ok := lossVals[cfg.LossKey]
				if !ok {
					return nil, errors.Wrapf(ErrConfig, "loss key %q not produced by wrapper", cfg.LossKey)
				}
				values = append(values, value)
				totalSteps++
			}
			result.Add(level, values...)
		}

		if err := pm.Reset(); err != nil {
			return nil, errors.Wrapf(err, "restore layer %s", layer.Name)
		}
		pm.Disable()
		analysis.AddResult(result)
	}
	return analysis, nil
}

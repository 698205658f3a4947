package sensitivity

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"sparsekit/internal/model"
)

// Approx estimates pruning sensitivity from weight magnitudes alone, without
// running the model. For each layer the absolute weights are sorted ascending
// and each sparsity level is scored with the mean magnitude of the band of
// weights that level would newly remove. Larger scores mean the layer loses
// larger weights at that level and is likely more sensitive.
func Approx(net *model.Network, levels []float64) (*Analysis, error) {
	if net == nil {
		return nil, errors.Wrap(ErrConfig, "approx needs a network")
	}
	if len(levels) == 0 {
		levels = DefaultSparsityLevels()
	}
	for _, level := range levels {
		if level < 0 || level > 1 {
			return nil, errors.Wrapf(ErrConfig, "sparsity level %v out of [0, 1]", level)
		}
	}

	analysis := &Analysis{}
	for _, layer := range net.PrunableLayers() {
		sorted := make([]float64, layer.Layer.Weights.Len())
		for i, v := range layer.Layer.Weights.Data() {
			sorted[i] = math.Abs(v)
		}
		sort.Float64s(sorted)

		result := LayerResult{Param: layer.Name + ".weight", Index: layer.Index}
		prevIndex := 0
		for _, level := range levels {
			if level <= 0 {
				result.Add(0.0, 0.0)
				prevIndex = 0
				continue
			}
			valIndex := int(math.Round(level * float64(len(sorted))))
			if valIndex >= len(sorted) {
				valIndex = len(sorted) - 1
			}
			result.Add(level, bandMean(sorted, prevIndex, valIndex))
			prevIndex = valIndex + 1
		}
		analysis.AddResult(result)
	}
	return analysis, nil
}

// bandMean averages sorted[from:to]. When the band is empty the single value
// at to is used so consecutive close levels still get a defined score.
func bandMean(sorted []float64, from, to int) float64 {
	if from >= to {
		return sorted[to]
	}
	sum := 0.0
	for _, v := range sorted[from:to] {
		sum += v
	}
	return sum / float64(to-from)
}

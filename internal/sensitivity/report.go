// Package sensitivity estimates how sensitive each layer's loss is to
// pruning, either from weight magnitudes alone or by measuring losses on
// real batches with masks applied one layer at a time.
package sensitivity

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

var ErrConfig = errors.New("sensitivity configuration invalid")

// DefaultSparsityLevels is the standard sweep used when a caller does not
// supply its own levels.
func DefaultSparsityLevels() []float64 {
	return []float64{0.0, 0.2, 0.4, 0.6, 0.7, 0.8, 0.9, 0.95, 0.99}
}

// Measurement holds the values observed for one sparsity level. Approximate
// analysis records a single proxy value; empirical analysis records one loss
// per measured batch.
type Measurement struct {
	Sparsity float64   `json:"sparsity"`
	Values   []float64 `json:"values"`
}

// Mean returns the average of the measurement's values, 0 when empty.
func (m Measurement) Mean() float64 {
	if len(m.Values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range m.Values {
		sum += v
	}
	return sum / float64(len(m.Values))
}

// LayerResult collects the sparsity sweep for one parameter tensor.
type LayerResult struct {
	Param        string        `json:"param"`
	Index        int           `json:"index"`
	Measurements []Measurement `json:"measurements"`
}

// Add records the values for one sparsity level.
func (r *LayerResult) Add(sparsity float64, values ...float64) {
	r.Measurements = append(r.Measurements, Measurement{Sparsity: sparsity, Values: values})
}

// At returns the measurement for an exact sparsity level.
func (r *LayerResult) At(sparsity float64) (Measurement, bool) {
	for _, m := range r.Measurements {
		if m.Sparsity == sparsity {
			return m, true
		}
	}
	return Measurement{}, false
}

// Analysis is an ordered collection of per-layer sweeps.
type Analysis struct {
	LossKey string        `json:"loss_key,omitempty"`
	Results []LayerResult `json:"results"`
}

// AddResult inserts a layer result keeping Results sorted by layer index.
func (a *Analysis) AddResult(result LayerResult) {
	a.Results = append(a.Results, result)
	sort.SliceStable(a.Results, func(i, j int) bool {
		return a.Results[i].Index < a.Results[j].Index
	})
}

// Result looks up a layer sweep by parameter name.
func (a *Analysis) Result(param string) (LayerResult, bool) {
	for _, r := range a.Results {
		if r.Param == param {
			return r, true
		}
	}
	return LayerResult{}, false
}

// MarshalJSON keeps the zero value serializable with an empty results list.
func (a Analysis) MarshalJSON() ([]byte, error) {
	type alias Analysis
	if a.Results == nil {
		a.Results = []LayerResult{}
	}
	return json.Marshal(alias(a))
}

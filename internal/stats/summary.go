// Package stats summarizes sensitivity measurements and writes run artifacts
// to disk for inspection outside the store.
package stats

import (
	"fmt"
	"math"
)

// Summary describes a series of measurement values.
type Summary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Avg returns the mean of values.
func Avg(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("values must not be empty")
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values)), nil
}

// Std returns population standard deviation.
func Std(values []float64) (float64, error) {
	mean, err := Avg(values)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, value := range values {
		diff := mean - value
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values))), nil
}

// Summarize computes the summary of a non-empty series.
func Summarize(values []float64) (Summary, error) {
	mean, err := Avg(values)
	if err != nil {
		return Summary{}, err
	}
	std, err := Std(values)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		Count: len(values),
		Mean:  mean,
		Std:   std,
		Min:   values[0],
		Max:   values[0],
	}
	for _, value := range values[1:] {
		if value < summary.Min {
			summary.Min = value
		}
		if value > summary.Max {
			summary.Max = value
		}
	}
	return summary, nil
}

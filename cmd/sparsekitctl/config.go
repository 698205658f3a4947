package main

import (
	"encoding/json"
	"fmt"
	"os"

	"sparsekit/internal/model"
	"sparsekit/internal/tensor"
)

type layerSpec struct {
	Name       string    `json:"name"`
	OpType     string    `json:"op_type"`
	Activation string    `json:"activation,omitempty"`
	Shape      []int     `json:"shape"`
	Weights    []float64 `json:"weights"`
	Bias       []float64 `json:"bias,omitempty"`
}

type modelSpec struct {
	Name   string      `json:"name"`
	Layers []layerSpec `json:"layers"`
}

// loadNetworkFromConfig reads a model spec JSON file and builds the network.
func loadNetworkFromConfig(path string) (*model.Network, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}

	var spec modelSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, "", fmt.Errorf("parse model spec %s: %w", path, err)
	}
	if len(spec.Layers) == 0 {
		return nil, "", fmt.Errorf("model spec %s has no layers", path)
	}

	net := &model.Network{Layers: make([]*model.Layer, 0, len(spec.Layers))}
	for i, ls := range spec.Layers {
		if ls.Name == "" {
			return nil, "", fmt.Errorf("model spec %s layer %d has no name", path, i)
		}
		layer := &model.Layer{
			Name:       ls.Name,
			OpType:     ls.OpType,
			Activation: ls.Activation,
		}
		if len(ls.Weights) > 0 {
			weights, err := tensor.FromSlice(ls.Shape, ls.Weights)
			if err != nil {
				return nil, "", fmt.Errorf("model spec %s layer %s weights: %w", path, ls.Name, err)
			}
			layer.Weights = weights
		}
		if len(ls.Bias) > 0 {
			bias, err := tensor.FromSlice([]int{len(ls.Bias)}, ls.Bias)
			if err != nil {
				return nil, "", fmt.Errorf("model spec %s layer %s bias: %w", path, ls.Name, err)
			}
			layer.Bias = bias
		}
		net.Layers = append(net.Layers, layer)
	}

	name := spec.Name
	if name == "" {
		name = "model"
	}
	return net, name, nil
}

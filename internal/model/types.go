package model

import "sparsekit/internal/tensor"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Layer op types.
const (
	OpLinear = "linear"
	OpConv   = "conv"
)

// Layer is one parameterized stage of a network. Weights for a linear layer
// have shape (out, in); Bias has shape (out) and may be nil.
type Layer struct {
	Name       string
	OpType     string
	Activation string
	Weights    *tensor.Tensor
	Bias       *tensor.Tensor
}

// Prunable reports whether the layer's weight tensor is eligible for masking.
// Biases are never pruned, and a weight tensor without elements has nothing
// to mask.
func (l *Layer) Prunable() bool {
	return l.Weights != nil && l.Weights.Len() > 0 && (l.OpType == OpLinear || l.OpType == OpConv)
}

// NamedLayer pairs a layer with its position in execution order.
type NamedLayer struct {
	Name  string
	Index int
	Layer *Layer
}

// Network is an ordered stack of layers. Order of Layers is execution order.
type Network struct {
	Layers []*Layer
}

// PrunableLayers returns the network's prunable layers in execution order.
func (n *Network) PrunableLayers() []NamedLayer {
	var prunable []NamedLayer
	for i, layer := range n.Layers {
		if layer.Prunable() {
			prunable = append(prunable, NamedLayer{Name: layer.Name, Index: i, Layer: layer})
		}
	}
	return prunable
}

// ParamCount returns the number of non-bias parameters in the network.
func (n *Network) ParamCount() int {
	total := 0
	for _, layer := range n.Layers {
		if layer.Weights != nil {
			total += layer.Weights.Len()
		}
	}
	return total
}

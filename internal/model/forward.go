package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"sparsekit/internal/tensor"
)

// Forward runs a batch of shape (batch, features) through the network and
// returns the output activations of shape (batch, out).
func (n *Network) Forward(batch *tensor.Tensor) (*tensor.Tensor, error) {
	if batch.Dims() != 2 {
		return nil, fmt.Errorf("forward expects a (batch, features) tensor, got shape %v", batch.Shape())
	}

	shape := batch.Shape()
	current := mat.NewDense(shape[0], shape[1], batch.Data())

	for _, layer := range n.Layers {
		next, err := layer.forward(current)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", layer.Name, err)
		}
		current = next
	}

	rows, cols := current.Dims()
	out, err := tensor.FromSlice([]int{rows, cols}, mat.DenseCopyOf(current).RawMatrix().Data)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Layer) forward(in *mat.Dense) (*mat.Dense, error) {
	if l.OpType != OpLinear {
		return nil, fmt.Errorf("unsupported op type for forward: %s", l.OpType)
	}

	wShape := l.Weights.Shape()
	if len(wShape) != 2 {
		return nil, fmt.Errorf("linear weights must be 2-D, got %v", wShape)
	}
	outFeatures, inFeatures := wShape[0], wShape[1]
	_, cols := in.Dims()
	if cols != inFeatures {
		return nil, fmt.Errorf("input features %d do not match weights %v", cols, wShape)
	}

	weights := mat.NewDense(outFeatures, inFeatures, l.Weights.Data())
	var out mat.Dense
	out.Mul(in, weights.T())

	if l.Bias != nil {
		bias := l.Bias.Data()
		if len(bias) != outFeatures {
			return nil, fmt.Errorf("bias length %d does not match out features %d", len(bias), outFeatures)
		}
		out.Apply(func(_, j int, v float64) float64 { return v + bias[j] }, &out)
	}

	if l.Activation != "" {
		fn, err := GetActivation(l.Activation)
		if err != nil {
			return nil, err
		}
		out.Apply(func(_, _ int, v float64) float64 { return fn(v) }, &out)
	}
	return &out, nil
}

package losses

import (
	"math"

	"github.com/pkg/errors"

	"sparsekit/internal/tensor"
)

// DefaultLossKey names the primary loss in Batch result maps.
const DefaultLossKey = "loss"

var ErrConfig = errors.New("loss configuration invalid")

// Func reduces a prediction batch against a target batch to a scalar.
type Func func(preds, targets *tensor.Tensor) (float64, error)

// MSE returns the mean squared error over all elements of the batch.
func MSE(preds, targets *tensor.Tensor) (float64, error) {
	if !tensor.SameShape(preds.Shape(), targets.Shape()) {
		return 0, errors.Wrapf(tensor.ErrShape, "mse: preds %v targets %v", preds.Shape(), targets.Shape())
	}
	p, t := preds.Data(), targets.Data()
	if len(p) == 0 {
		return 0, nil
	}
	sum := 0.0
	for i := range p {
		d := p[i] - t[i]
		sum += d * d
	}
	return sum / float64(len(p)), nil
}

// CrossEntropy treats each row of preds as unnormalized scores and each row of
// targets as a one-hot (or soft) distribution, and returns the mean negative
// log likelihood over rows. Scores are passed through a softmax internally.
func CrossEntropy(preds, targets *tensor.Tensor) (float64, error) {
	if preds.Dims() != 2 || !tensor.SameShape(preds.Shape(), targets.Shape()) {
		return 0, errors.Wrapf(tensor.ErrShape, "cross entropy: preds %v targets %v", preds.Shape(), targets.Shape())
	}
	shape := preds.Shape()
	rows, cols := shape[0], shape[1]
	if rows == 0 {
		return 0, nil
	}
	p, t := preds.Data(), targets.Data()

	total := 0.0
	for r := 0; r < rows; r++ {
		row := p[r*cols : (r+1)*cols]
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		norm := 0.0
		for _, v := range row {
			norm += math.Exp(v - max)
		}
		logNorm := math.Log(norm)
		for c := 0; c < cols; c++ {
			w := t[r*cols+c]
			if w == 0 {
				continue
			}
			total -= w * (row[c] - max - logNorm)
		}
	}
	return total / float64(rows), nil
}

// ByName resolves a loss function by its recipe name.
func ByName(name string) (Func, error) {
	switch name {
	case "", "mse", "squared-error":
		return MSE, nil
	case "cross-entropy":
		return CrossEntropy, nil
	}
	return nil, errors.Wrapf(ErrConfig, "unknown loss %q", name)
}

// Wrapper evaluates a primary loss plus any named extras for one batch.
type Wrapper struct {
	loss   Func
	extras map[string]Func
}

// NewWrapper builds a wrapper around the primary loss. Extras may be nil.
func NewWrapper(loss Func, extras map[string]Func) (*Wrapper, error) {
	if loss == nil {
		return nil, errors.Wrap(ErrConfig, "wrapper needs a primary loss")
	}
	for name := range extras {
		if name == DefaultLossKey {
			return nil, errors.Wrapf(ErrConfig, "extra loss may not use reserved key %q", DefaultLossKey)
		}
	}
	return &Wrapper{loss: loss, extras: extras}, nil
}

// Batch computes the primary loss under DefaultLossKey plus every extra.
func (w *Wrapper) Batch(preds, targets *tensor.Tensor) (map[string]float64, error) {
	out := make(map[string]float64, 1+len(w.extras))
	v, err := w.loss(preds, targets)
	if err != nil {
		return nil, err
	}
	out[DefaultLossKey] = v
	for name, fn := range w.extras {
		v, err := fn(preds, targets)
		if err != nil {
			return nil, errors.Wrapf(err, "extra loss %s", name)
		}
		out[name] = v
	}
	return out, nil
}

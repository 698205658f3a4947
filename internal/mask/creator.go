package mask

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"sparsekit/internal/tensor"
)

// Creator converts a tensor of values into a keep/drop mask honoring a target
// sparsity or an absolute-magnitude threshold, under a structural grouping.
//
// Boundary conventions, applied uniformly:
//   - FromThreshold keeps strictly greater scores; an element whose score sits
//     exactly at the threshold is pruned.
//   - FromSparsity orders groups by score with a stable sort and prunes exactly
//     round(fraction*groups) of them, so equal scores at the rank boundary are
//     split by their original index order.
type Creator interface {
	// GroupScores reduces t to per-element saliency scores that are constant
	// within each group, broadcast back to t's shape.
	GroupScores(t *tensor.Tensor) (*tensor.Tensor, error)

	// FromThreshold masks every element whose group score is <= threshold.
	FromThreshold(t *tensor.Tensor, threshold float64) (*Mask, error)

	// FromSparsity masks the lowest-scoring groups until the given fraction of
	// elements is dropped. fraction <= 0 keeps everything; fraction >= 1 drops
	// everything unless the creator's KeepLastAlive knob is set, in which case
	// the single highest-scoring group survives.
	FromSparsity(t *tensor.Tensor, fraction float64) (*Mask, error)
}

// grouping assigns every element of a tensor to a group.
type grouping struct {
	groupOf []int
	count   int
}

// groupScores returns the mean absolute value per group.
func (g grouping) groupScores(data []float64) []float64 {
	sums := make([]float64, g.count)
	sizes := make([]int, g.count)
	for i, v := range data {
		gi := g.groupOf[i]
		sums[gi] += math.Abs(v)
		sizes[gi]++
	}
	for gi := range sums {
		if sizes[gi] > 0 {
			sums[gi] /= float64(sizes[gi])
		}
	}
	return sums
}

func (g grouping) broadcast(scores []float64, shape []int) *tensor.Tensor {
	out := tensor.New(shape...)
	data := out.Data()
	for i := range data {
		data[i] = scores[g.groupOf[i]]
	}
	return out
}

func (g grouping) maskFromThreshold(scores []float64, shape []int, threshold float64) *Mask {
	keep := make([]bool, len(g.groupOf))
	for i := range keep {
		keep[i] = scores[g.groupOf[i]] > threshold
	}
	m, _ := FromBools(shape, keep)
	return m
}

func (g grouping) maskFromSparsity(scores []float64, shape []int, fraction float64, keepLastAlive bool) *Mask {
	if fraction <= 0 {
		return AllKeep(shape)
	}

	order := make([]int, g.count)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] < scores[order[b]]
	})

	rank := int(math.Round(fraction * float64(g.count)))
	if rank > g.count {
		rank = g.count
	}
	if keepLastAlive && rank == g.count && g.count > 0 {
		rank = g.count - 1
	}

	dropGroup := make([]bool, g.count)
	for _, gi := range order[:rank] {
		dropGroup[gi] = true
	}
	keep := make([]bool, len(g.groupOf))
	for i := range keep {
		keep[i] = !dropGroup[g.groupOf[i]]
	}
	m, _ := FromBools(shape, keep)
	return m
}

// Unstructured prunes individual elements by absolute magnitude.
type Unstructured struct {
	KeepLastAlive bool
}

func (c Unstructured) group(t *tensor.Tensor) grouping {
	groupOf := make([]int, t.Len())
	for i := range groupOf {
		groupOf[i] = i
	}
	return grouping{groupOf: groupOf, count: t.Len()}
}

func (c Unstructured) GroupScores(t *tensor.Tensor) (*tensor.Tensor, error) {
	g := c.group(t)
	return g.broadcast(g.groupScores(t.Data()), t.Shape()), nil
}

func (c Unstructured) FromThreshold(t *tensor.Tensor, threshold float64) (*Mask, error) {
	g := c.group(t)
	return g.maskFromThreshold(g.groupScores(t.Data()), t.Shape(), threshold), nil
}

func (c Unstructured) FromSparsity(t *tensor.Tensor, fraction float64) (*Mask, error) {
	g := c.group(t)
	return g.maskFromSparsity(g.groupScores(t.Data()), t.Shape(), fraction, c.KeepLastAlive), nil
}

// Dimension prunes whole slices along the retained axes: one score is computed
// per index combination along Dims by reducing mean-of-abs over all other axes.
// Dims [0] on a conv weight prunes filters, [1] prunes channels.
type Dimension struct {
	Dims          []int
	KeepLastAlive bool
}

// NewDimension validates dims and returns a dimension-grouped creator.
func NewDimension(dims ...int) (Dimension, error) {
	if len(dims) == 0 {
		return Dimension{}, errors.Wrap(ErrConfig, "dimension creator needs at least one axis")
	}
	seen := make(map[int]bool, len(dims))
	for _, d := range dims {
		if d < 0 {
			return Dimension{}, errors.Wrapf(ErrConfig, "negative axis %d", d)
		}
		if seen[d] {
			return Dimension{}, errors.Wrapf(ErrConfig, "duplicate axis %d", d)
		}
		seen[d] = true
	}
	sorted := append([]int(nil), dims...)
	sort.Ints(sorted)
	return Dimension{Dims: sorted}, nil
}

func (c Dimension) group(t *tensor.Tensor) (grouping, error) {
	shape := t.Shape()
	for _, d := range c.Dims {
		if d >= len(shape) {
			return grouping{}, errors.Wrapf(tensor.ErrShape, "axis %d out of range for shape %v", d, shape)
		}
	}

	groupStrides := make([]int, len(c.Dims))
	stride := 1
	for i := len(c.Dims) - 1; i >= 0; i-- {
		groupStrides[i] = stride
		stride *= shape[c.Dims[i]]
	}
	count := stride

	strides := tensor.Strides(shape)
	groupOf := make([]int, t.Len())
	for flat := range groupOf {
		gi := 0
		for i, d := range c.Dims {
			idx := flat / strides[d] % shape[d]
			gi += idx * groupStrides[i]
		}
		groupOf[flat] = gi
	}
	return grouping{groupOf: groupOf, count: count}, nil
}

func (c Dimension) GroupScores(t *tensor.Tensor) (*tensor.Tensor, error) {
	g, err := c.group(t)
	if err != nil {
		return nil, err
	}
	return g.broadcast(g.groupScores(t.Data()), t.Shape()), nil
}

func (c Dimension) FromThreshold(t *tensor.Tensor, threshold float64) (*Mask, error) {
	g, err := c.group(t)
	if err != nil {
		return nil, err
	}
	return g.maskFromThreshold(g.groupScores(t.Data()), t.Shape(), threshold), nil
}

func (c Dimension) FromSparsity(t *tensor.Tensor, fraction float64) (*Mask, error) {
	g, err := c.group(t)
	if err != nil {
		return nil, err
	}
	return g.maskFromSparsity(g.groupScores(t.Data()), t.Shape(), fraction, c.KeepLastAlive), nil
}

// Block prunes tiles of shape Block over the last two axes. Both extents of
// those axes must divide evenly by the block shape.
type Block struct {
	Block         []int
	KeepLastAlive bool
}

// NewBlock validates the 2-element block shape and returns a block creator.
func NewBlock(block []int) (Block, error) {
	if len(block) != 2 {
		return Block{}, errors.Wrapf(ErrConfig, "block shape must have 2 extents, got %v", block)
	}
	for _, extent := range block {
		if extent <= 0 {
			return Block{}, errors.Wrapf(ErrConfig, "block extents must be positive, got %v", block)
		}
	}
	return Block{Block: append([]int(nil), block...)}, nil
}

func (c Block) group(t *tensor.Tensor) (grouping, error) {
	shape := t.Shape()
	if len(shape) < 2 {
		return grouping{}, errors.Wrapf(tensor.ErrShape, "block masking needs at least 2 axes, got shape %v", shape)
	}
	rows, cols := shape[len(shape)-2], shape[len(shape)-1]
	bh, bw := c.Block[0], c.Block[1]
	if rows%bh != 0 || cols%bw != 0 {
		return grouping{}, errors.Wrapf(tensor.ErrShape, "block %v does not divide extents %dx%d", c.Block, rows, cols)
	}

	tilesPerRow := cols / bw
	tilesPerPlane := (rows / bh) * tilesPerRow
	planeSize := rows * cols
	planes := t.Len() / planeSize

	groupOf := make([]int, t.Len())
	for flat := range groupOf {
		plane := flat / planeSize
		rem := flat % planeSize
		row, col := rem/cols, rem%cols
		groupOf[flat] = plane*tilesPerPlane + (row/bh)*tilesPerRow + col/bw
	}
	return grouping{groupOf: groupOf, count: planes * tilesPerPlane}, nil
}

func (c Block) GroupScores(t *tensor.Tensor) (*tensor.Tensor, error) {
	g, err := c.group(t)
	if err != nil {
		return nil, err
	}
	return g.broadcast(g.groupScores(t.Data()), t.Shape()), nil
}

func (c Block) FromThreshold(t *tensor.Tensor, threshold float64) (*Mask, error) {
	g, err := c.group(t)
	if err != nil {
		return nil, err
	}
	return g.maskFromThreshold(g.groupScores(t.Data()), t.Shape(), threshold), nil
}

func (c Block) FromSparsity(t *tensor.Tensor, fraction float64) (*Mask, error) {
	g, err := c.group(t)
	if err != nil {
		return nil, err
	}
	return g.maskFromSparsity(g.groupScores(t.Data()), t.Shape(), fraction, c.KeepLastAlive), nil
}

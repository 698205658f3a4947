package datafeed

import (
	"github.com/pkg/errors"

	"sparsekit/internal/tensor"
)

var ErrConfig = errors.New("data feed configuration invalid")

// Batch pairs one input batch with its targets.
type Batch struct {
	Inputs  *tensor.Tensor
	Targets *tensor.Tensor
}

// Source produces batches in a fixed order. Next reports ok=false when the
// source is exhausted.
type Source interface {
	Next() (Batch, bool, error)
	Reset() error
}

// Feed caches batches from a source so repeated passes replay the exact same
// data. The limit caps how many batches are drawn from the source; zero means
// all of them.
type Feed struct {
	source Source
	limit  int

	cache  []Batch
	cached bool
	pos    int
}

// New wraps a source. limit < 0 is rejected.
func New(source Source, limit int) (*Feed, error) {
	if source == nil {
		return nil, errors.Wrap(ErrConfig, "feed needs a source")
	}
	if limit < 0 {
		return nil, errors.Wrapf(ErrConfig, "limit must be >= 0, got %d", limit)
	}
	return &Feed{source: source, limit: limit}, nil
}

func (f *Feed) fill() error {
	if f.cached {
		return nil
	}
	if err := f.source.Reset(); err != nil {
		return err
	}
	for f.limit == 0 || len(f.cache) < f.limit {
		batch, ok, err := f.source.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		f.cache = append(f.cache, batch)
	}
	if len(f.cache) == 0 {
		return errors.Wrap(ErrConfig, "source produced no batches")
	}
	f.cached = true
	return nil
}

// Next returns the next cached batch, cycling back to the first batch after
// the last. The first call drains the source into the cache.
func (f *Feed) Next() (Batch, error) {
	if err := f.fill(); err != nil {
		return Batch{}, err
	}
	batch := f.cache[f.pos]
	f.pos = (f.pos + 1) % len(f.cache)
	return batch, nil
}

// Rewind restarts replay from the first cached batch.
func (f *Feed) Rewind() {
	f.pos = 0
}

// Len returns the number of cached batches, draining the source if needed.
func (f *Feed) Len() (int, error) {
	if err := f.fill(); err != nil {
		return 0, err
	}
	return len(f.cache), nil
}

// SliceSource serves a fixed slice of batches.
type SliceSource struct {
	Batches []Batch
	pos     int
}

func (s *SliceSource) Next() (Batch, bool, error) {
	if s.pos >= len(s.Batches) {
		return Batch{}, false, nil
	}
	batch := s.Batches[s.pos]
	s.pos++
	return batch, true, nil
}

func (s *SliceSource) Reset() error {
	s.pos = 0
	return nil
}

package datafeed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"sparsekit/internal/tensor"
)

// CSVSource reads rows of a CSV file as (features..., targets...) and groups
// them into batches. Rows whose fields do not all parse as numbers are skipped
// while no data row has been seen yet, so a header line is tolerated.
type CSVSource struct {
	path      string
	features  int
	targets   int
	batchSize int

	batches []Batch
	pos     int
	loaded  bool
}

// NewCSVSource configures a CSV-backed source. Every row must carry exactly
// features+targets numeric columns.
func NewCSVSource(path string, features, targets, batchSize int) (*CSVSource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.Wrap(ErrConfig, "csv path is required")
	}
	if features <= 0 || targets <= 0 {
		return nil, errors.Wrapf(ErrConfig, "csv needs positive feature and target counts, got %d and %d", features, targets)
	}
	if batchSize <= 0 {
		return nil, errors.Wrapf(ErrConfig, "csv batch size must be positive, got %d", batchSize)
	}
	return &CSVSource{path: path, features: features, targets: targets, batchSize: batchSize}, nil
}

func (s *CSVSource) load() error {
	if s.loaded {
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return errors.Wrapf(err, "open csv %s", s.path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	width := s.features + s.targets
	var rows [][]float64
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "read csv %s row %d", s.path, line+1)
		}
		line++

		if len(record) != width {
			return errors.Wrapf(ErrConfig, "csv %s row %d has %d columns, want %d", s.path, line, len(record), width)
		}
		values := make([]float64, width)
		parsed := true
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				if len(rows) == 0 {
					parsed = false
					break
				}
				return errors.Wrapf(err, "parse csv %s row %d column %d", s.path, line, i+1)
			}
			values[i] = v
		}
		if !parsed {
			continue
		}
		rows = append(rows, values)
	}

	if len(rows) == 0 {
		return errors.Wrapf(ErrConfig, "csv %s has no numeric rows", s.path)
	}

	for start := 0; start < len(rows); start += s.batchSize {
		end := start + s.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		inputs := make([]float64, 0, len(chunk)*s.features)
		targets := make([]float64, 0, len(chunk)*s.targets)
		for _, row := range chunk {
			inputs = append(inputs, row[:s.features]...)
			targets = append(targets, row[s.features:]...)
		}
		in, err := tensor.FromSlice([]int{len(chunk), s.features}, inputs)
		if err != nil {
			return err
		}
		tg, err := tensor.FromSlice([]int{len(chunk), s.targets}, targets)
		if err != nil {
			return err
		}
		s.batches = append(s.batches, Batch{Inputs: in, Targets: tg})
	}
	s.loaded = true
	return nil
}

func (s *CSVSource) Next() (Batch, bool, error) {
	if err := s.load(); err != nil {
		return Batch{}, false, err
	}
	if s.pos >= len(s.batches) {
		return Batch{}, false, nil
	}
	batch := s.batches[s.pos]
	s.pos++
	return batch, true, nil
}

func (s *CSVSource) Reset() error {
	s.pos = 0
	return nil
}

package storage

import (
	"context"
	"time"

	"sparsekit/internal/model"
	"sparsekit/internal/sensitivity"
)

// AnalysisRecord persists one sensitivity analysis run.
type AnalysisRecord struct {
	model.VersionedRecord
	RunID     string                    `json:"run_id"`
	Kind      string                    `json:"kind"`
	LossKey   string                    `json:"loss_key,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
	Levels    []float64                 `json:"levels"`
	Results   []sensitivity.LayerResult `json:"results"`
}

// ModelInfoRecord persists the layer metadata of an analyzed model.
type ModelInfoRecord struct {
	model.VersionedRecord
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Layers   []model.LayerInfo `json:"layers"`
}

// Analysis kinds.
const (
	KindApprox  = "approx"
	KindOneShot = "oneshot"
)

// Store defines persistence operations for analysis runs and model metadata.
type Store interface {
	Init(ctx context.Context) error
	SaveAnalysis(ctx context.Context, record AnalysisRecord) error
	GetAnalysis(ctx context.Context, runID string) (AnalysisRecord, bool, error)
	ListAnalyses(ctx context.Context) ([]string, error)
	SaveModelInfo(ctx context.Context, record ModelInfoRecord) error
	GetModelInfo(ctx context.Context, name string) (ModelInfoRecord, bool, error)
}

// Package sparsekit is the public entry point for running pruning sensitivity
// analyses and persisting their results.
package sparsekit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"sparsekit/internal/datafeed"
	"sparsekit/internal/losses"
	"sparsekit/internal/model"
	"sparsekit/internal/sensitivity"
	"sparsekit/internal/stats"
	"sparsekit/internal/storage"
)

const (
	defaultReportsDir = "reports"
	defaultDBPath     = "sparsekit.db"
)

type Options struct {
	StoreKind  string
	DBPath     string
	ReportsDir string
}

type Client struct {
	store      storage.Store
	reportsDir string
}

// ApproxRequest configures a magnitude-only sensitivity run.
type ApproxRequest struct {
	RunID     string
	ModelName string
	Model     *model.Network
	Levels    []float64
}

// OneShotRequest configures an empirical sensitivity run.
type OneShotRequest struct {
	RunID     string
	ModelName string
	Model     *model.Network
	Levels    []float64

	Source              datafeed.Source
	BatchLimit          int
	StepsPerMeasurement int
	MaxSteps            int
	LossName            string
}

// RunSummary reports where a finished analysis landed.
type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Analysis     *sensitivity.Analysis
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	reportsDir := opts.ReportsDir
	if reportsDir == "" {
		reportsDir = defaultReportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		reportsDir: reportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// RunApproxSensitivity scores every prunable layer from weight magnitudes,
// persists the analysis and writes report artifacts.
func (c *Client) RunApproxSensitivity(ctx context.Context, req ApproxRequest) (RunSummary, error) {
	if req.Model == nil {
		return RunSummary{}, errors.New("approx run needs a model")
	}

	analysis, err := sensitivity.Approx(req.Model, req.Levels)
	if err != nil {
		return RunSummary{}, err
	}
	return c.finishRun(ctx, req.RunID, req.ModelName, req.Model, storage.KindApprox, req.Levels, analysis)
}

// RunOneShotSensitivity measures losses on real batches with masks applied one
// layer at a time, persists the analysis and writes report artifacts.
func (c *Client) RunOneShotSensitivity(ctx context.Context, req OneShotRequest) (RunSummary, error) {
	if req.Model == nil {
		return RunSummary{}, errors.New("one-shot run needs a model")
	}
	if req.Source == nil {
		return RunSummary{}, errors.New("one-shot run needs a data source")
	}

	feed, err := datafeed.New(req.Source, req.BatchLimit)
	if err != nil {
		return RunSummary{}, err
	}
	loss, err := losses.ByName(req.LossName)
	if err != nil {
		return RunSummary{}, err
	}
	wrapper, err := losses.NewWrapper(loss, nil)
	if err != nil {
		return RunSummary{}, err
	}

	analysis, err := sensitivity.OneShot(req.Model, feed, wrapper, sensitivity.OneShotConfig{
		Levels:              req.Levels,
		StepsPerMeasurement: req.StepsPerMeasurement,
		MaxSteps:            req.MaxSteps,
	})
	if err != nil {
		return RunSummary{}, err
	}
	return c.finishRun(ctx, req.RunID, req.ModelName, req.Model, storage.KindOneShot, req.Levels, analysis)
}

// GetAnalysis loads a persisted analysis run.
func (c *Client) GetAnalysis(ctx context.Context, runID string) (storage.AnalysisRecord, bool, error) {
	return c.store.GetAnalysis(ctx, runID)
}

// ListAnalyses lists persisted run ids.
func (c *Client) ListAnalyses(ctx context.Context) ([]string, error) {
	return c.store.ListAnalyses(ctx)
}

// GetModelInfo loads persisted layer metadata for a model.
func (c *Client) GetModelInfo(ctx context.Context, name string) (storage.ModelInfoRecord, bool, error) {
	return c.store.GetModelInfo(ctx, name)
}

func (c *Client) finishRun(ctx context.Context, runID, modelName string, net *model.Network, kind string, levels []float64, analysis *sensitivity.Analysis) (RunSummary, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	if len(levels) == 0 {
		levels = sensitivity.DefaultSparsityLevels()
	}

	record := storage.AnalysisRecord{
		VersionedRecord: storage.NewVersionedRecord(),
		RunID:           runID,
		Kind:            kind,
		LossKey:         analysis.LossKey,
		CreatedAt:       time.Now().UTC(),
		Levels:          append([]float64(nil), levels...),
		Results:         analysis.Results,
	}
	if err := c.store.SaveAnalysis(ctx, record); err != nil {
		return RunSummary{}, err
	}

	if modelName != "" {
		layers, err := model.ExtractLayerInfo(net)
		if err != nil {
			return RunSummary{}, err
		}
		info := storage.ModelInfoRecord{
			VersionedRecord: storage.NewVersionedRecord(),
			Name:            modelName,
			Layers:          layers,
		}
		if err := c.store.SaveModelInfo(ctx, info); err != nil {
			return RunSummary{}, err
		}
	}

	artifactsDir, err := stats.WriteAnalysisArtifacts(c.reportsDir, runID, kind, analysis)
	if err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        runID,
		ArtifactsDir: artifactsDir,
		Analysis:     analysis,
	}, nil
}

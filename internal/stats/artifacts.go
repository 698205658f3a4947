package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sparsekit/internal/sensitivity"
)

const analysesDir = "analyses"

// LayerSummary condenses one layer's sweep to per-level summaries.
type LayerSummary struct {
	Param  string             `json:"param"`
	Index  int                `json:"index"`
	Levels map[string]Summary `json:"levels"`
}

// AnalysisArtifacts is the report document written next to the raw analysis.
type AnalysisArtifacts struct {
	RunID       string         `json:"run_id"`
	Kind        string         `json:"kind"`
	GeneratedAt string         `json:"generated_at_utc"`
	Layers      []LayerSummary `json:"layers"`
}

// BuildAnalysisArtifacts summarizes every measurement series of an analysis.
func BuildAnalysisArtifacts(runID, kind string, analysis *sensitivity.Analysis) (AnalysisArtifacts, error) {
	if runID == "" {
		return AnalysisArtifacts{}, fmt.Errorf("run id is required")
	}
	if analysis == nil {
		return AnalysisArtifacts{}, fmt.Errorf("analysis is required")
	}

	artifacts := AnalysisArtifacts{
		RunID:  runID,
		Kind:   kind,
		Layers: make([]LayerSummary, 0, len(analysis.Results)),
	}
	for _, result := range analysis.Results {
		layer := LayerSummary{
			Param:  result.Param,
			Index:  result.Index,
			Levels: make(map[string]Summary, len(result.Measurements)),
		}
		for _, m := range result.Measurements {
			if len(m.Values) == 0 {
				continue
			}
			summary, err := Summarize(m.Values)
			if err != nil {
				return AnalysisArtifacts{}, err
			}
			layer.Levels[fmt.Sprintf("%g", m.Sparsity)] = summary
		}
		artifacts.Layers = append(artifacts.Layers, layer)
	}
	return artifacts, nil
}

// WriteAnalysisArtifacts writes the raw analysis and its summaries under
// baseDir/analyses/<runID>/ and returns that directory.
func WriteAnalysisArtifacts(baseDir, runID, kind string, analysis *sensitivity.Analysis) (string, error) {
	artifacts, err := BuildAnalysisArtifacts(runID, kind, analysis)
	if err != nil {
		return "", err
	}
	artifacts.GeneratedAt = time.Now().UTC().Format(time.RFC3339Nano)

	runDir := filepath.Join(baseDir, analysesDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "analysis.json"), analysis); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), artifacts); err != nil {
		return "", err
	}
	return runDir, nil
}

// ReadAnalysisArtifacts loads a previously written summary document.
func ReadAnalysisArtifacts(baseDir, runID string) (AnalysisArtifacts, bool, error) {
	path := filepath.Join(baseDir, analysesDir, runID, "summary.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return AnalysisArtifacts{}, false, nil
		}
		return AnalysisArtifacts{}, false, err
	}
	var artifacts AnalysisArtifacts
	if err := json.Unmarshal(data, &artifacts); err != nil {
		return AnalysisArtifacts{}, false, err
	}
	return artifacts, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

package storage

import (
	"errors"
	"testing"
	"time"

	"sparsekit/internal/model"
)

func TestAnalysisCodecRoundTrip(t *testing.T) {
	input := sampleAnalysis("run-codec")
	data, err := EncodeAnalysis(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	output, err := DecodeAnalysis(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if output.RunID != input.RunID || output.LossKey != input.LossKey {
		t.Fatalf("unexpected record: %+v", output)
	}
	if !output.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("created_at lost: %v", output.CreatedAt)
	}
	if len(output.Results) != 1 || output.Results[0].Measurements[0].Values[1] != 0.29 {
		t.Fatalf("results lost: %+v", output.Results)
	}
}

func TestAnalysisCodecVersionMismatch(t *testing.T) {
	input := sampleAnalysis("run-stale")
	input.SchemaVersion = CurrentSchemaVersion + 1

	data, err := EncodeAnalysis(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeAnalysis(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestModelInfoCodecRoundTrip(t *testing.T) {
	input := ModelInfoRecord{
		VersionedRecord: NewVersionedRecord(),
		Name:            "mlp",
		Layers: []model.LayerInfo{
			model.LinearLayerInfo("fc1", 4, 8, false, 0),
			model.ConvLayerInfo("conv1", 3, 16, []int{3, 3}, true, 1),
		},
	}
	data, err := EncodeModelInfo(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	output, err := DecodeModelInfo(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if output.Name != "mlp" || len(output.Layers) != 2 || output.Layers[1].OpType != model.OpConv {
		t.Fatalf("unexpected record: %+v", output)
	}
}

func TestModelInfoCodecVersionMismatch(t *testing.T) {
	input := ModelInfoRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion + 1},
		Name:            "mlp",
	}
	data, err := EncodeModelInfo(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeModelInfo(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

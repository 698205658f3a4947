package storage

import (
	"encoding/json"
	"errors"

	"sparsekit/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// NewVersionedRecord stamps the current schema and codec versions.
func NewVersionedRecord() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func EncodeAnalysis(r AnalysisRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeAnalysis(data []byte) (AnalysisRecord, error) {
	var record AnalysisRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return AnalysisRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return AnalysisRecord{}, err
	}
	return record, nil
}

func EncodeModelInfo(r ModelInfoRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeModelInfo(data []byte) (ModelInfoRecord, error) {
	var record ModelInfoRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return ModelInfoRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return ModelInfoRecord{}, err
	}
	return record, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

package services

import (
	"errors"

	"github.com/username/divledger/src/models"
)

var (
	// ErrParsingFailed covers unreadable or structurally broken file bytes.
	ErrParsingFailed = errors.New("file parsing failed")
	// ErrLoadFailed covers warehouse or sink write failures.
	ErrLoadFailed = errors.New("load failed")
)

// IngestService runs one file through extraction, profile selection,
// normalization, and the output sinks.
type IngestService interface {
	IngestFile(path string) (*models.BatchSummary, error)
	IngestBytes(data []byte, sourceFile string) (*models.BatchSummary, error)
	LatestSummary() (*models.BatchSummary, bool)
}

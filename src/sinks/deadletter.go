package sinks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/username/divledger/src/logger"
	"github.com/username/divledger/src/models"
)

// WriteRejected writes the rejected stream for one batch as JSON lines,
// one record per row with its reason code, and returns the file path.
func WriteRejected(dir, batchID string, rows []models.RejectedRow) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating dead-letter dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("badrows-%s.jsonl", batchID))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating dead-letter file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return "", fmt.Errorf("writing dead-letter row (line %d): %w", r.LineNo, err)
		}
	}

	logger.L.Info("Wrote dead-letter rows", "path", path, "rows", len(rows))
	return path, nil
}

// WriteFileRejection dead-letters a whole file that could not be
// classified. No per-row records exist because no mapping was determined.
func WriteFileRejection(dir, batchID string, rejection models.FileRejection) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating dead-letter dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("badfile-%s.json", batchID))

	b, err := json.Marshal(rejection)
	if err != nil {
		return "", fmt.Errorf("serializing file rejection: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing file rejection: %w", err)
	}

	logger.L.Warn("Dead-lettered whole file", "path", path, "sourceFile", rejection.SourceFile, "reason", rejection.Reason)
	return path, nil
}

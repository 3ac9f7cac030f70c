package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/username/divledger/src/logger"
	"github.com/username/divledger/src/models"
	"github.com/username/divledger/src/normalize"
	"github.com/username/divledger/src/parsers"
	"github.com/username/divledger/src/profiles"
	"github.com/username/divledger/src/sinks"
)

const (
	ckLatestBatch = "agg_latest_batch"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type ingestServiceImpl struct {
	registry      *profiles.Registry
	outputDir     string
	deadLetterDir string
	summaryCache  *cache.Cache
}

func NewIngestService(registry *profiles.Registry, outputDir, deadLetterDir string, summaryCache *cache.Cache) IngestService {
	return &ingestServiceImpl{
		registry:      registry,
		outputDir:     outputDir,
		deadLetterDir: deadLetterDir,
		summaryCache:  summaryCache,
	}
}

func (s *ingestServiceImpl) IngestFile(path string) (*models.BatchSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrParsingFailed, path, err)
	}
	return s.IngestBytes(data, path)
}

// IngestBytes runs the full pipeline over one file already in memory.
// A file no profile matches is not an error: the whole file is
// dead-lettered and the summary reports zero accepted rows.
func (s *ingestServiceImpl) IngestBytes(data []byte, sourceFile string) (*models.BatchSummary, error) {
	startTime := time.Now().UTC()
	batchID := uuid.NewString()
	logger.L.Info("Ingest START", "batchID", batchID, "sourceFile", sourceFile, "bytes", len(data))

	summary := &models.BatchSummary{
		BatchID:    batchID,
		SourceFile: sourceFile,
		StartedAt:  startTime,
	}

	// Account extraction and profile selection are whole-file and complete
	// before any row processing begins.
	account := parsers.ExtractAccountNumber(data)
	summary.BrokerAccount = account

	file, err := parsers.ReadCSV(data, "auto")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	summary.Encoding = file.Encoding

	profile := s.registry.Select(sourceFile, file.Header)
	if profile == nil || file.Empty() {
		return s.rejectFile(summary, profile, file)
	}

	// Re-read with the profile's declared encoding when it pins one.
	if enc := strings.TrimSpace(strings.ToLower(profile.Reader.Encoding)); enc != "" && enc != "auto" && enc != file.Encoding {
		if reread, rereadErr := parsers.ReadCSV(data, enc); rereadErr == nil {
			file = reread
			summary.Encoding = file.Encoding
		}
	}

	summary.Profile = profile.Name

	result := normalize.New(profile).Normalize(file, sourceFile, account)
	summary.RowsIn = result.RowsIn
	summary.Accepted = len(result.Accepted)
	summary.Rejected = len(result.Rejected)

	if len(result.Accepted) > 0 {
		stem := strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile))
		parquetPath, err := sinks.WriteParquet(s.outputDir, stem, batchID, result.Accepted)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
		}
		summary.ParquetPath = parquetPath

		inserted, duplicates, err := sinks.LoadAccepted(result.Accepted)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
		}
		summary.LoadedRows = inserted
		summary.DuplicateRows = duplicates
	}

	if len(result.Rejected) > 0 {
		deadLetterPath, err := sinks.WriteRejected(s.deadLetterDir, batchID, result.Rejected)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
		}
		summary.DeadLetterPath = deadLetterPath
		if err := sinks.RecordRejected(result.Rejected); err != nil {
			logger.L.Error("Failed to record rejected rows", "batchID", batchID, "error", err)
		}
	}

	summary.FinishedAt = time.Now().UTC()
	if err := sinks.RecordBatch(summary); err != nil {
		logger.L.Error("Failed to record batch audit row", "batchID", batchID, "error", err)
	}
	s.summaryCache.Set(ckLatestBatch, summary, DefaultCacheExpiration)

	logger.L.Info("Ingest END",
		"batchID", batchID,
		"sourceFile", sourceFile,
		"rowsIn", summary.RowsIn,
		"accepted", summary.Accepted,
		"rejected", summary.Rejected,
		"loaded", summary.LoadedRows,
		"duplicates", summary.DuplicateRows,
		"duration", time.Since(startTime))
	return summary, nil
}

// rejectFile handles the file-level failures: no profile matched, or the
// file parsed to zero data rows. Nothing is loaded; an unclassifiable file
// is dead-lettered whole.
func (s *ingestServiceImpl) rejectFile(summary *models.BatchSummary, profile *profiles.Profile, file *parsers.RawFile) (*models.BatchSummary, error) {
	if profile == nil {
		summary.FileReason = models.ReasonNoProfileMatched
		path, err := sinks.WriteFileRejection(s.deadLetterDir, summary.BatchID, models.FileRejection{
			SourceFile: summary.SourceFile,
			Reason:     models.ReasonNoProfileMatched,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
		}
		summary.DeadLetterPath = path
	} else {
		summary.Profile = profile.Name
		logger.L.Warn("File parsed to zero rows, nothing to load", "sourceFile", summary.SourceFile)
	}
	summary.FinishedAt = time.Now().UTC()
	if err := sinks.RecordBatch(summary); err != nil {
		logger.L.Error("Failed to record batch audit row", "batchID", summary.BatchID, "error", err)
	}
	s.summaryCache.Set(ckLatestBatch, summary, DefaultCacheExpiration)
	return summary, nil
}

func (s *ingestServiceImpl) LatestSummary() (*models.BatchSummary, bool) {
	if v, found := s.summaryCache.Get(ckLatestBatch); found {
		if summary, ok := v.(*models.BatchSummary); ok {
			return summary, true
		}
	}
	return nil, false
}

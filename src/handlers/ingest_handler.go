package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/username/divledger/src/config"
	"github.com/username/divledger/src/logger"
	"github.com/username/divledger/src/services"
	"github.com/username/divledger/src/utils"
)

type IngestHandler struct {
	ingestService services.IngestService
}

func NewIngestHandler(service services.IngestService) *IngestHandler {
	return &IngestHandler{
		ingestService: service,
	}
}

// HandleIngest accepts one broker statement as a multipart upload under
// the "file" field and runs it through the pipeline synchronously.
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB (header check)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	if ext := strings.ToLower(filepath.Ext(fileHeader.Filename)); ext != ".csv" && ext != ".txt" {
		utils.SendJSONError(w, fmt.Sprintf("Unsupported file extension %q, expected a delimited text file", ext), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, config.Cfg.MaxUploadSizeBytes+1))
	if err != nil {
		logger.L.Error("Failed to read uploaded file", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, "Failed to read uploaded file.", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Processing ingest request", "filename", fileHeader.Filename, "bytes", len(data))
	summary, err := h.ingestService.IngestBytes(data, fileHeader.Filename)
	if err != nil {
		h.writeIngestError(w, fileHeader.Filename, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		logger.L.Error("Error encoding JSON response for ingest result", "error", err)
	}
}

// storageEvent is the pub/sub-style envelope delivered by an external
// object-storage trigger: message.data is base64 JSON naming the bucket
// and object. Locally, buckets map to subdirectories of the inbox.
type storageEvent struct {
	Message struct {
		Data string `json:"data"`
	} `json:"message"`
}

type storagePayload struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// HandleStorageEvent resolves an event envelope to a file under the inbox
// directory and ingests it.
func (h *IngestHandler) HandleStorageEvent(w http.ResponseWriter, r *http.Request) {
	var envelope storageEvent
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil || envelope.Message.Data == "" {
		utils.SendJSONError(w, "Bad event envelope: expected message.data", http.StatusBadRequest)
		return
	}

	raw, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		utils.SendJSONError(w, "Bad event envelope: message.data is not base64", http.StatusBadRequest)
		return
	}
	var payload storagePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Bucket == "" || payload.Name == "" {
		utils.SendJSONError(w, "Bad event payload: expected bucket and name", http.StatusBadRequest)
		return
	}

	// Reject path escapes before touching the filesystem.
	rel := filepath.Join(payload.Bucket, payload.Name)
	if strings.Contains(rel, "..") {
		utils.SendJSONError(w, "Bad event payload: path traversal", http.StatusBadRequest)
		return
	}
	path := filepath.Join(config.Cfg.InboxDir, rel)

	logger.L.Info("Processing storage event", "bucket", payload.Bucket, "name", payload.Name, "path", path)
	summary, err := h.ingestService.IngestFile(path)
	if err != nil {
		h.writeIngestError(w, path, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		logger.L.Error("Error encoding JSON response for storage event", "error", err)
	}
}

// HandleGetLatestBatch returns the most recent batch summary with ETag
// support so pollers can cheaply check for change.
func (h *IngestHandler) HandleGetLatestBatch(w http.ResponseWriter, r *http.Request) {
	summary, found := h.ingestService.LatestSummary()
	if !found {
		utils.SendJSONError(w, "No batches ingested yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "no-cache, private")
	if etag, err := utils.GenerateETag(summary); err == nil && etag != "" {
		quoted := fmt.Sprintf("%q", etag)
		w.Header().Set("ETag", quoted)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quoted {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		logger.L.Error("Error encoding JSON response for latest batch", "error", err)
	}
}

func (h *IngestHandler) writeIngestError(w http.ResponseWriter, sourceFile string, err error) {
	switch {
	case errors.Is(err, services.ErrParsingFailed):
		logger.L.Warn("Ingest failed parsing file", "sourceFile", sourceFile, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error parsing file: %v", err), http.StatusBadRequest)
	case errors.Is(err, services.ErrLoadFailed):
		logger.L.Error("Ingest failed writing sinks", "sourceFile", sourceFile, "error", err)
		utils.SendJSONError(w, "An error occurred while writing outputs. Please try again later.", http.StatusInternalServerError)
	default:
		logger.L.Error("Internal error processing ingest", "sourceFile", sourceFile, "error", err)
		utils.SendJSONError(w, "An internal error occurred while processing the file. Please try again later.", http.StatusInternalServerError)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"cmdb-api/internal/auth"
	"cmdb-api/internal/models"
	"cmdb-api/pkg/importer"
)

// Stager stages a report document in the quarantine zone.
type Stager interface {
	StageReport(ctx context.Context, serial string, payload []byte) (*models.QuarantineRecord, error)
}

// ImportsHandler handles workbook import operations
type ImportsHandler struct {
	Stager     Stager
	MaxBytes   int64
	DefaultMap string
	logger     *zap.Logger
}

// NewImportsHandler creates a new imports handler
func NewImportsHandler(stager Stager, defaultMap string, logger *zap.Logger) *ImportsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportsHandler{
		Stager:     stager,
		MaxBytes:   20 << 20, // 20 MB
		DefaultMap: defaultMap,
		logger:     logger.Named("imports"),
	}
}

// UploadExcel stages every asset row of an uploaded workbook
func (h *ImportsHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		auth.WriteError(w, "content-type must be multipart/form-data", "VALIDATION_FAILED", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			auth.WriteError(w, "workbook too large", "REPORT_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}
		auth.WriteError(w, "invalid multipart form: "+err.Error(), "VALIDATION_FAILED", http.StatusBadRequest)
		return
	}

	dryRun := r.FormValue("dry_run") == "true"
	mapping := r.FormValue("mapping")
	if mapping == "" {
		mapping = h.DefaultMap
	}
	maxErrors := 50
	if v := r.FormValue("max_errors"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxErrors = n
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		auth.WriteError(w, "file is required: "+err.Error(), "VALIDATION_FAILED", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		auth.WriteError(w, "only .xlsx files are accepted", "VALIDATION_FAILED", http.StatusBadRequest)
		return
	}

	sum, impErr := importer.ImportWorkbook(r.Context(), h.Stager, file, importer.Options{
		MappingPath: mapping,
		DryRun:      dryRun,
		MaxErrors:   maxErrors,
	})

	fields := []zap.Field{
		zap.String("batch_id", sum.BatchID.String()),
		zap.String("file", header.Filename),
		zap.Int64("actor_id", auth.ActorFromContext(r.Context())),
		zap.Bool("dry_run", dryRun),
		zap.Int("staged", sum.Staged),
		zap.Int("skipped", sum.Skipped),
		zap.Int("errors", sum.Errors),
	}
	if impErr != nil {
		h.logger.Warn("workbook import failed", append(fields, zap.Error(impErr))...)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "IMPORT_FAILED",
			"details": impErr.Error(),
			"data":    sum,
		})
		return
	}
	h.logger.Info("workbook imported", fields...)

	writeJSON(w, http.StatusOK, map[string]any{
		"data": sum,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

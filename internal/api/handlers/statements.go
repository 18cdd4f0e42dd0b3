// Package handlers implements the HTTP read surface and job triggers.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/rs/zerolog"
)

// MaxUploadBytes bounds the size of an uploaded statement.
const MaxUploadBytes = 32 << 20

// StatementRegistrar stores an uploaded statement without extracting it.
type StatementRegistrar interface {
	Register(ctx context.Context, filename string, data []byte, receivedAt time.Time) (string, error)
}

// StatementDeleter removes a statement with its transactions and file.
type StatementDeleter interface {
	DeleteStatement(ctx context.Context, id string) error
}

// StatementsHandler handles statement-related endpoints.
type StatementsHandler struct {
	store     store.Statements
	registrar StatementRegistrar
	deleter   StatementDeleter
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(s store.Statements, registrar StatementRegistrar, deleter StatementDeleter, publisher jobs.Publisher, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		store:     s,
		registrar: registrar,
		deleter:   deleter,
		publisher: publisher,
		log:       log,
	}
}

// ListStatements handles GET /api/statements
func (h *StatementsHandler) ListStatements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var filter store.StatementFilter
	if v := query.Get("processed"); v != "" {
		processed, err := strconv.ParseBool(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid processed value")
			return
		}
		filter.Processed = &processed
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}

	statements, err := h.store.ListStatements(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list statements")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list statements")
		return
	}
	if statements == nil {
		statements = []*domain.Statement{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"statements": statements,
		"count":      len(statements),
	})
}

// UploadStatement handles POST /api/statements?filename=
// The body is the raw PDF. Extraction runs as a background job.
func (h *StatementsHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filename := r.URL.Query().Get("filename")
	if idx := strings.Index(filename, "?"); idx > 0 {
		filename = filename[:idx]
	}
	filename = filepath.Base(filename)
	if filename == "" || filename == "." || filename == "/" {
		middleware.WriteError(w, http.StatusBadRequest, "filename is required")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadBytes))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Statement too large")
		return
	case err != nil:
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Request body is empty")
		return
	}

	statementID, err := h.registrar.Register(ctx, filename, data, time.Now())
	var dup *domain.DuplicateStatementError
	switch {
	case errors.As(err, &dup):
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status":       "duplicate",
			"statement_id": dup.StatementID,
		})
		return
	case err != nil:
		h.log.Error().Err(err).Str("filename", filename).Msg("Failed to register statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store statement")
		return
	}

	job := &jobs.Job{Type: jobs.JobTypeIngestStatement, StatementID: statementID}
	if err := h.publisher.Publish(ctx, job); err != nil {
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("Failed to enqueue ingest job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue ingest job")
		return
	}

	h.log.Info().Str("job_id", job.ID).Str("statement_id", statementID).Msg("Ingest job enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":       "accepted",
		"statement_id": statementID,
		"job_id":       job.ID,
	})
}

// DeleteStatement handles DELETE /api/statements/{id}
func (h *StatementsHandler) DeleteStatement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Statement ID is required")
		return
	}

	err := h.deleter.DeleteStatement(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Statement not found")
		return
	case err != nil:
		h.log.Error().Err(err).Str("statement_id", id).Msg("Failed to delete statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete statement")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status":       "deleted",
		"statement_id": id,
	})
}

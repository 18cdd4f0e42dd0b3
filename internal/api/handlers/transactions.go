package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/analytics"
	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/rs/zerolog"
)

// parseDateRange reads start_date and end_date (YYYY-MM-DD). Missing bounds
// stay zero, meaning open.
func parseDateRange(query url.Values) (start, end civil.Date, msg string) {
	if v := query.Get("start_date"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			return start, end, "Invalid start_date format"
		}
		start = d
	}
	if v := query.Get("end_date"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			return start, end, "Invalid end_date format"
		}
		end = d
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, "end_date is before start_date"
	}
	return start, end, ""
}

// TransactionsHandler handles transaction listing.
type TransactionsHandler struct {
	store store.Transactions
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(s store.Transactions, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: s, log: log}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	start, end, msg := parseDateRange(query)
	if msg != "" {
		middleware.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	filter := store.TransactionFilter{
		Start:       start,
		End:         end,
		StatementID: query.Get("statement_id"),
		Newest:      true,
	}

	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}
	if v := query.Get("uncategorized"); v != "" {
		only, err := strconv.ParseBool(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid uncategorized value")
			return
		}
		filter.UncategorizedOnly = only
	}
	if v := query.Get("type"); v != "" {
		dir := domain.Direction(v)
		if dir != domain.DirectionDebit && dir != domain.DirectionCredit {
			middleware.WriteError(w, http.StatusBadRequest, "type must be debit or credit")
			return
		}
		filter.Direction = dir
	}

	transactions, err := h.store.ListTransactions(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// AnalyticsHandler serves the computed dashboard figures.
type AnalyticsHandler struct {
	store store.Transactions
	log   zerolog.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(s store.Transactions, log zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{store: s, log: log}
}

func (h *AnalyticsHandler) load(w http.ResponseWriter, r *http.Request) ([]*domain.Transaction, bool) {
	start, end, msg := parseDateRange(r.URL.Query())
	if msg != "" {
		middleware.WriteError(w, http.StatusBadRequest, msg)
		return nil, false
	}
	txs, err := h.store.ListTransactions(r.Context(), store.TransactionFilter{Start: start, End: end})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load transactions for analytics")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load transactions")
		return nil, false
	}
	return txs, true
}

// Summary handles GET /api/analytics/summary
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	txs, ok := h.load(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, analytics.Summarize(txs))
}

// Anomalies handles GET /api/analytics/anomalies
func (h *AnalyticsHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	txs, ok := h.load(w, r)
	if !ok {
		return
	}
	anomalies := analytics.DetectAnomalies(txs)
	if anomalies == nil {
		anomalies = []analytics.Anomaly{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

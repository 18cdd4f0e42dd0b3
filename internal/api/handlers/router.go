package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dvloznov/statement-ledger/internal/api/middleware"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Health handles GET /health. Any failing check reports degraded with 503.
func Health(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		middleware.WriteJSON(w, code, map[string]interface{}{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
			"checks": results,
		})
	}
}

// Routes bundles the handlers served by the API.
type Routes struct {
	Statements   *StatementsHandler
	Transactions *TransactionsHandler
	Analytics    *AnalyticsHandler
	Analysis     *AnalysisHandler
	Jobs         *JobsHandler
	HealthChecks map[string]HealthCheck
}

// NewMux registers every route on a fresh ServeMux.
func NewMux(rt Routes) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/statements", rt.Statements.ListStatements)
	mux.HandleFunc("POST /api/statements", rt.Statements.UploadStatement)
	mux.HandleFunc("DELETE /api/statements/{id}", rt.Statements.DeleteStatement)

	mux.HandleFunc("GET /api/transactions", rt.Transactions.ListTransactions)

	mux.HandleFunc("GET /api/analytics/summary", rt.Analytics.Summary)
	mux.HandleFunc("GET /api/analytics/anomalies", rt.Analytics.Anomalies)

	mux.HandleFunc("GET /api/analysis", rt.Analysis.GetAnalysis)

	mux.HandleFunc("POST /api/jobs", rt.Jobs.CreateJob)
	mux.HandleFunc("GET /api/jobs", rt.Jobs.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", rt.Jobs.GetJob)

	mux.HandleFunc("GET /health", Health(rt.HealthChecks))
	return mux
}

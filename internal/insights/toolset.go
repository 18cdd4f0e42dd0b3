// Package insights runs the analysis roles over read-only transaction tools
// and persists their combined report.
package insights

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/analytics"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
)

// DefaultQueryLimit bounds QueryTransactions when Limit is unset.
const DefaultQueryLimit = 100

// Query bounds a transaction lookup. Zero dates are open.
type Query struct {
	Start civil.Date
	End   civil.Date
	Limit int
}

// Toolset is the read-only surface the analysis roles may use.
type Toolset interface {
	QueryTransactions(ctx context.Context, q Query) ([]*domain.Transaction, error)
	CategoryBreakdown(ctx context.Context) ([]analytics.CategoryTotal, error)
	MonthlyTrend(ctx context.Context) (analytics.Trend, error)
	Anomalies(ctx context.Context) ([]analytics.Anomaly, error)
}

// StoreToolset implements Toolset over a transaction store.
type StoreToolset struct {
	store store.Transactions
}

// NewStoreToolset creates a Toolset reading from s.
func NewStoreToolset(s store.Transactions) *StoreToolset {
	return &StoreToolset{store: s}
}

// QueryTransactions returns the newest transactions first.
func (t *StoreToolset) QueryTransactions(ctx context.Context, q Query) ([]*domain.Transaction, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	txs, err := t.store.ListTransactions(ctx, store.TransactionFilter{
		Start:  q.Start,
		End:    q.End,
		Limit:  limit,
		Newest: true,
	})
	if err != nil {
		return nil, fmt.Errorf("QueryTransactions: %w", err)
	}
	return txs, nil
}

func (t *StoreToolset) all(ctx context.Context) ([]*domain.Transaction, error) {
	return t.store.ListTransactions(ctx, store.TransactionFilter{})
}

// CategoryBreakdown implements Toolset.
func (t *StoreToolset) CategoryBreakdown(ctx context.Context) ([]analytics.CategoryTotal, error) {
	txs, err := t.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("CategoryBreakdown: %w", err)
	}
	return analytics.CategoryBreakdown(txs), nil
}

// MonthlyTrend implements Toolset.
func (t *StoreToolset) MonthlyTrend(ctx context.Context) (analytics.Trend, error) {
	txs, err := t.all(ctx)
	if err != nil {
		return analytics.Trend{}, fmt.Errorf("MonthlyTrend: %w", err)
	}
	return analytics.MonthlyTrend(txs), nil
}

// Anomalies implements Toolset.
func (t *StoreToolset) Anomalies(ctx context.Context) ([]analytics.Anomaly, error) {
	txs, err := t.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("Anomalies: %w", err)
	}
	return analytics.DetectAnomalies(txs), nil
}

// Package store defines the persistence contract for statements and their
// transactions. Implementations live in internal/infra/postgres,
// internal/infra/bigquery and internal/store/memory.
package store

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
)

var (
	// ErrNotFound is returned when a statement does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStatementProcessed is returned when replacing the transactions of a
	// statement that is already marked processed.
	ErrStatementProcessed = errors.New("statement already processed")
)

// StatementFilter narrows ListStatements. A nil Processed matches both.
type StatementFilter struct {
	Processed *bool
	Limit     int
}

// TransactionFilter narrows ListTransactions. Zero dates are unbounded.
type TransactionFilter struct {
	Start             civil.Date
	End               civil.Date
	StatementID       string
	Direction         domain.Direction
	UncategorizedOnly bool
	Limit             int
	// Newest orders by transaction date descending instead of ascending.
	Newest bool
}

// Statements persists statement rows.
type Statements interface {
	// FindStatementByChecksum returns nil, nil when no statement has the checksum.
	FindStatementByChecksum(ctx context.Context, checksum string) (*domain.Statement, error)
	InsertStatement(ctx context.Context, st *domain.Statement) error
	GetStatement(ctx context.Context, id string) (*domain.Statement, error)
	ListStatements(ctx context.Context, filter StatementFilter) ([]*domain.Statement, error)
	// DeleteStatement removes the statement and all of its transactions.
	DeleteStatement(ctx context.Context, id string) error
}

// Transactions persists transaction rows.
type Transactions interface {
	// ReplaceStatementTransactions deletes the statement's existing rows,
	// inserts txs and marks the statement processed as one atomic unit.
	ReplaceStatementTransactions(ctx context.Context, statementID string, txs []*domain.Transaction) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, error)
	// SetCategory writes a category. Without force only a NULL category is
	// overwritten; the return value reports whether a row changed.
	SetCategory(ctx context.Context, id, category string, force bool) (bool, error)
}

// Store is the full persistence surface used by the pipeline.
type Store interface {
	Statements
	Transactions
	// Clear removes every transaction and statement.
	Clear(ctx context.Context) error
	Close() error
}

// Matches reports whether tx passes the filter's predicate fields
// (everything except ordering and limit).
func (f TransactionFilter) Matches(tx *domain.Transaction) bool {
	if !f.Start.IsZero() && tx.TransactionDate.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && tx.TransactionDate.After(f.End) {
		return false
	}
	if f.StatementID != "" && tx.StatementID != f.StatementID {
		return false
	}
	if f.Direction != "" && tx.Direction != f.Direction {
		return false
	}
	if f.UncategorizedOnly && tx.Category != nil {
		return false
	}
	return true
}

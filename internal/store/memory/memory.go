package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
)

// Store is an in-memory implementation of store.Store.
// It is safe for concurrent use and loses all data on restart.
type Store struct {
	mu           sync.RWMutex
	statements   map[string]*domain.Statement
	transactions map[string]*domain.Transaction

	// failReplace, when set, makes ReplaceStatementTransactions fail after
	// validating input; used to exercise retry paths.
	failReplace error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		statements:   make(map[string]*domain.Statement),
		transactions: make(map[string]*domain.Transaction),
	}
}

// FailNextReplace makes the next ReplaceStatementTransactions call return err
// without changing any data.
func (s *Store) FailNextReplace(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReplace = err
}

func copyStatement(st *domain.Statement) *domain.Statement {
	c := *st
	return &c
}

func copyTransaction(tx *domain.Transaction) *domain.Transaction {
	c := *tx
	if tx.Category != nil {
		cat := *tx.Category
		c.Category = &cat
	}
	return &c
}

// FindStatementByChecksum implements store.Statements.
func (s *Store) FindStatementByChecksum(ctx context.Context, checksum string) (*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.statements {
		if st.Checksum == checksum {
			return copyStatement(st), nil
		}
	}
	return nil, nil
}

// InsertStatement implements store.Statements.
func (s *Store) InsertStatement(ctx context.Context, st *domain.Statement) error {
	if st.ID == "" {
		return fmt.Errorf("InsertStatement: statement ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.statements[st.ID]; exists {
		return fmt.Errorf("InsertStatement: statement %s already exists", st.ID)
	}
	s.statements[st.ID] = copyStatement(st)
	return nil
}

// GetStatement implements store.Statements.
func (s *Store) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statements[id]
	if !ok {
		return nil, fmt.Errorf("GetStatement %s: %w", id, store.ErrNotFound)
	}
	return copyStatement(st), nil
}

// ListStatements implements store.Statements, newest statement date first.
func (s *Store) ListStatements(ctx context.Context, filter store.StatementFilter) ([]*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Statement
	for _, st := range s.statements {
		if filter.Processed != nil && st.Processed != *filter.Processed {
			continue
		}
		out = append(out, copyStatement(st))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StatementDate != out[j].StatementDate {
			return out[i].StatementDate.After(out[j].StatementDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// DeleteStatement implements store.Statements. Transactions go with it.
func (s *Store) DeleteStatement(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.statements[id]; !ok {
		return fmt.Errorf("DeleteStatement %s: %w", id, store.ErrNotFound)
	}
	for txID, tx := range s.transactions {
		if tx.StatementID == id {
			delete(s.transactions, txID)
		}
	}
	delete(s.statements, id)
	return nil
}

// ReplaceStatementTransactions implements store.Transactions.
func (s *Store) ReplaceStatementTransactions(ctx context.Context, statementID string, txs []*domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statements[statementID]
	if !ok {
		return fmt.Errorf("ReplaceStatementTransactions %s: %w", statementID, store.ErrNotFound)
	}
	if st.Processed {
		return fmt.Errorf("ReplaceStatementTransactions %s: %w", statementID, store.ErrStatementProcessed)
	}
	if s.failReplace != nil {
		err := s.failReplace
		s.failReplace = nil
		return fmt.Errorf("ReplaceStatementTransactions: %w", err)
	}

	for txID, tx := range s.transactions {
		if tx.StatementID == statementID {
			delete(s.transactions, txID)
		}
	}
	for _, tx := range txs {
		s.transactions[tx.ID] = copyTransaction(tx)
	}
	st.Processed = true
	return nil
}

// ListTransactions implements store.Transactions.
func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Transaction
	for _, tx := range s.transactions {
		if filter.Matches(tx) {
			out = append(out, copyTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TransactionDate != b.TransactionDate {
			if filter.Newest {
				return a.TransactionDate.After(b.TransactionDate)
			}
			return a.TransactionDate.Before(b.TransactionDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SetCategory implements store.Transactions.
func (s *Store) SetCategory(ctx context.Context, id, category string, force bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return false, fmt.Errorf("SetCategory %s: %w", id, store.ErrNotFound)
	}
	if tx.Category != nil && !force {
		return false, nil
	}
	cat := category
	tx.Category = &cat
	return true, nil
}

// Clear implements store.Store.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = make(map[string]*domain.Transaction)
	s.statements = make(map[string]*domain.Statement)
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return nil
}

// Ensure Store implements store.Store.
var _ store.Store = (*Store)(nil)

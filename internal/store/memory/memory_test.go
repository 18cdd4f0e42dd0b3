package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStatement(t *testing.T, s *Store, id string) *domain.Statement {
	t.Helper()
	st := &domain.Statement{
		ID:            id,
		Filename:      id + ".pdf",
		StoragePath:   "statements/" + id + ".pdf",
		StatementDate: civil.Date{Year: 2024, Month: time.January, Day: 31},
		Checksum:      "sum-" + id,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, s.InsertStatement(context.Background(), st))
	return st
}

func tx(id, statementID string, day int) *domain.Transaction {
	return &domain.Transaction{
		ID:              id,
		StatementID:     statementID,
		PostedDate:      civil.Date{Year: 2024, Month: time.January, Day: day},
		TransactionDate: civil.Date{Year: 2024, Month: time.January, Day: day},
		Description:     "ROW " + id,
		Amount:          decimal.NewFromInt(10),
		Direction:       domain.DirectionDebit,
	}
}

func TestStore_ReplaceMarksProcessed(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedStatement(t, s, "st-1")

	require.NoError(t, s.ReplaceStatementTransactions(ctx, "st-1", []*domain.Transaction{tx("a", "st-1", 1), tx("b", "st-1", 2)}))

	st, err := s.GetStatement(ctx, "st-1")
	require.NoError(t, err)
	assert.True(t, st.Processed)

	rows, err := s.ListTransactions(ctx, store.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	err = s.ReplaceStatementTransactions(ctx, "st-1", nil)
	assert.ErrorIs(t, err, store.ErrStatementProcessed)
}

func TestStore_ReplaceFailureLeavesUnprocessed(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedStatement(t, s, "st-1")
	s.FailNextReplace(errors.New("connection reset"))

	err := s.ReplaceStatementTransactions(ctx, "st-1", []*domain.Transaction{tx("a", "st-1", 1)})
	require.Error(t, err)

	st, _ := s.GetStatement(ctx, "st-1")
	assert.False(t, st.Processed)
	rows, _ := s.ListTransactions(ctx, store.TransactionFilter{})
	assert.Empty(t, rows)

	require.NoError(t, s.ReplaceStatementTransactions(ctx, "st-1", []*domain.Transaction{tx("a", "st-1", 1)}))
	rows, _ = s.ListTransactions(ctx, store.TransactionFilter{})
	assert.Len(t, rows, 1)
}

func TestStore_SetCategoryGuard(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedStatement(t, s, "st-1")
	require.NoError(t, s.ReplaceStatementTransactions(ctx, "st-1", []*domain.Transaction{tx("a", "st-1", 1)}))

	updated, err := s.SetCategory(ctx, "a", "Shopping", false)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = s.SetCategory(ctx, "a", "Travel", false)
	require.NoError(t, err)
	assert.False(t, updated)

	updated, err = s.SetCategory(ctx, "a", "Travel", true)
	require.NoError(t, err)
	assert.True(t, updated)

	rows, _ := s.ListTransactions(ctx, store.TransactionFilter{})
	assert.Equal(t, "Travel", *rows[0].Category)

	_, err = s.SetCategory(ctx, "missing", "Travel", false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ListTransactionsFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedStatement(t, s, "st-1")
	require.NoError(t, s.ReplaceStatementTransactions(ctx, "st-1", []*domain.Transaction{
		tx("a", "st-1", 3), tx("b", "st-1", 1), tx("c", "st-1", 2),
	}))
	_, err := s.SetCategory(ctx, "c", "Food & Dining", false)
	require.NoError(t, err)

	rows, err := s.ListTransactions(ctx, store.TransactionFilter{UncategorizedOnly: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].ID)
	assert.Equal(t, "a", rows[1].ID)

	rows, err = s.ListTransactions(ctx, store.TransactionFilter{Newest: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, "c", rows[1].ID)

	rows, err = s.ListTransactions(ctx, store.TransactionFilter{
		Start: civil.Date{Year: 2024, Month: time.January, Day: 2},
		End:   civil.Date{Year: 2024, Month: time.January, Day: 2},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c", rows[0].ID)
}

func TestStore_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedStatement(t, s, "st-1")
	seedStatement(t, s, "st-2")
	require.NoError(t, s.ReplaceStatementTransactions(ctx, "st-1", []*domain.Transaction{tx("a", "st-1", 1)}))
	require.NoError(t, s.ReplaceStatementTransactions(ctx, "st-2", []*domain.Transaction{tx("b", "st-2", 1)}))

	require.NoError(t, s.DeleteStatement(ctx, "st-1"))

	rows, _ := s.ListTransactions(ctx, store.TransactionFilter{})
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].ID)

	_, err := s.GetStatement(ctx, "st-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteStatement(ctx, "st-1"), store.ErrNotFound)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedStatement(t, s, "st-1")

	found, err := s.FindStatementByChecksum(ctx, "sum-st-1")
	require.NoError(t, err)
	found.Processed = true

	again, _ := s.GetStatement(ctx, "st-1")
	assert.False(t, again.Processed)

	missing, err := s.FindStatementByChecksum(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

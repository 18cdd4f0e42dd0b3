package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/blob"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/dvloznov/statement-ledger/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBlobStore is a blob.Store whose behaviour is set per test.
type mockBlobStore struct {
	PutFunc    func(ctx context.Context, key string, data []byte) (string, error)
	GetFunc    func(ctx context.Context, location string) ([]byte, error)
	DeleteFunc func(ctx context.Context, location string) error
}

func (m *mockBlobStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	return m.PutFunc(ctx, key, data)
}

func (m *mockBlobStore) Get(ctx context.Context, location string) ([]byte, error) {
	return m.GetFunc(ctx, location)
}

func (m *mockBlobStore) Delete(ctx context.Context, location string) error {
	return m.DeleteFunc(ctx, location)
}

var jan31 = civil.Date{Year: 2024, Month: time.January, Day: 31}

func newTestLedger() (*Ledger, *memory.Store, afero.Fs) {
	fs := afero.NewMemMapFs()
	s := memory.New()
	return NewLedger(s, blob.NewFSStore(fs, "/blobs"), logger.Nop()), s, fs
}

func rawLine(desc, amount string, dir domain.Direction) domain.RawLine {
	return domain.RawLine{
		TransactionDate: civil.Date{Year: 2024, Month: time.January, Day: 5},
		PostedDate:      civil.Date{Year: 2024, Month: time.January, Day: 6},
		Description:     desc,
		Amount:          decimal.RequireFromString(amount),
		Direction:       dir,
		Page:            1,
	}
}

func TestLedger_CreateStatement(t *testing.T) {
	ctx := context.Background()
	l, s, fs := newTestLedger()

	id, err := l.CreateStatement(ctx, "jan.pdf", []byte("pdf-bytes"), jan31)
	require.NoError(t, err)

	st, err := s.GetStatement(ctx, id)
	require.NoError(t, err)
	assert.False(t, st.Processed)
	assert.Equal(t, Checksum([]byte("pdf-bytes")), st.Checksum)
	assert.Equal(t, jan31, st.StatementDate)

	data, err := afero.ReadFile(fs, st.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))
}

func TestLedger_CreateStatement_Resume(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger()

	first, err := l.CreateStatement(ctx, "jan.pdf", []byte("same"), jan31)
	require.NoError(t, err)
	again, err := l.CreateStatement(ctx, "jan-copy.pdf", []byte("same"), jan31)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	all, _ := s.ListStatements(ctx, store.StatementFilter{})
	assert.Len(t, all, 1)
}

func TestLedger_CreateStatement_Duplicate(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger()

	id, err := l.CreateStatement(ctx, "jan.pdf", []byte("same"), jan31)
	require.NoError(t, err)
	_, err = l.InsertTransactions(ctx, id, []domain.RawLine{rawLine("COFFEE", "4.50", domain.DirectionDebit)})
	require.NoError(t, err)

	_, err = l.CreateStatement(ctx, "jan.pdf", []byte("same"), jan31)
	var dup *domain.DuplicateStatementError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, id, dup.StatementID)
}

func TestLedger_CreateStatement_UploadFails(t *testing.T) {
	s := memory.New()
	blobs := &mockBlobStore{
		PutFunc: func(ctx context.Context, key string, data []byte) (string, error) {
			return "", errors.New("bucket unavailable")
		},
	}
	l := NewLedger(s, blobs, logger.Nop())

	_, err := l.CreateStatement(context.Background(), "jan.pdf", []byte("x"), jan31)
	var sw *domain.StorageWriteError
	require.ErrorAs(t, err, &sw)
	assert.Equal(t, "upload statement", sw.Op)

	all, _ := s.ListStatements(context.Background(), store.StatementFilter{})
	assert.Empty(t, all)
}

func TestLedger_InsertTransactions(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger()
	id, err := l.CreateStatement(ctx, "jan.pdf", []byte("x"), jan31)
	require.NoError(t, err)

	n, err := l.InsertTransactions(ctx, id, []domain.RawLine{
		rawLine("WHOLEFDS MKT", "50.00", domain.DirectionDebit),
		rawLine("PAYMENT THANK YOU", "1000.00", domain.DirectionCredit),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, _ := s.GetStatement(ctx, id)
	assert.True(t, st.Processed)

	rows, _ := s.ListTransactions(ctx, store.TransactionFilter{StatementID: id})
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.NotEmpty(t, r.ID)
		assert.Nil(t, r.Category)
	}
}

func TestLedger_InsertTransactions_InvalidRowRejectsBatch(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger()
	id, _ := l.CreateStatement(ctx, "jan.pdf", []byte("x"), jan31)

	bad := rawLine("REFUND", "0", domain.DirectionCredit)
	_, err := l.InsertTransactions(ctx, id, []domain.RawLine{rawLine("OK", "1.00", domain.DirectionDebit), bad})
	require.Error(t, err)

	st, _ := s.GetStatement(ctx, id)
	assert.False(t, st.Processed)
	rows, _ := s.ListTransactions(ctx, store.TransactionFilter{})
	assert.Empty(t, rows)
}

func TestLedger_InsertTransactions_StoreFailure(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger()
	id, _ := l.CreateStatement(ctx, "jan.pdf", []byte("x"), jan31)
	s.FailNextReplace(errors.New("connection reset"))

	_, err := l.InsertTransactions(ctx, id, []domain.RawLine{rawLine("OK", "1.00", domain.DirectionDebit)})
	var sw *domain.StorageWriteError
	require.ErrorAs(t, err, &sw)

	st, _ := s.GetStatement(ctx, id)
	assert.False(t, st.Processed)
}

func TestLedger_DeleteStatement(t *testing.T) {
	ctx := context.Background()
	l, s, fs := newTestLedger()
	id, _ := l.CreateStatement(ctx, "jan.pdf", []byte("x"), jan31)
	_, err := l.InsertTransactions(ctx, id, []domain.RawLine{rawLine("OK", "1.00", domain.DirectionDebit)})
	require.NoError(t, err)
	st, _ := s.GetStatement(ctx, id)

	require.NoError(t, l.DeleteStatement(ctx, id))

	_, err = s.GetStatement(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	rows, _ := s.ListTransactions(ctx, store.TransactionFilter{})
	assert.Empty(t, rows)
	exists, _ := afero.Exists(fs, st.StoragePath)
	assert.False(t, exists)

	assert.ErrorIs(t, l.DeleteStatement(ctx, id), store.ErrNotFound)
}

func TestLedger_SameFilenameKeepsBothFiles(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger()

	idA, err := l.CreateStatement(ctx, "statement.pdf", []byte("card A january"), jan31)
	require.NoError(t, err)
	idB, err := l.CreateStatement(ctx, "statement.pdf", []byte("card B january"), jan31)
	require.NoError(t, err)
	require.NotEqual(t, idA, idB)

	stA, err := s.GetStatement(ctx, idA)
	require.NoError(t, err)
	stB, err := s.GetStatement(ctx, idB)
	require.NoError(t, err)
	assert.NotEqual(t, stA.StoragePath, stB.StoragePath)

	data, err := l.Blob(ctx, stA)
	require.NoError(t, err)
	assert.Equal(t, "card A january", string(data))

	require.NoError(t, l.DeleteStatement(ctx, idB))
	data, err = l.Blob(ctx, stA)
	require.NoError(t, err)
	assert.Equal(t, "card A january", string(data))
}

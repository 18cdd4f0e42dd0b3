// Package pipeline turns statement files into stored transactions.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/blob"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Ledger owns statement and transaction writes.
type Ledger struct {
	store store.Store
	blobs blob.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewLedger creates a Ledger over the given store and blob storage.
func NewLedger(s store.Store, blobs blob.Store, log zerolog.Logger) *Ledger {
	return &Ledger{store: s, blobs: blobs, log: log, now: time.Now}
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CreateStatement registers a statement file. Content that was already fully
// ingested yields *domain.DuplicateStatementError; content that was stored
// but never processed returns the existing id so ingestion can resume.
func (l *Ledger) CreateStatement(ctx context.Context, filename string, data []byte, statementDate civil.Date) (string, error) {
	checksum := Checksum(data)

	existing, err := l.store.FindStatementByChecksum(ctx, checksum)
	if err != nil {
		return "", fmt.Errorf("CreateStatement: find by checksum: %w", err)
	}
	if existing != nil {
		if existing.Processed {
			return "", &domain.DuplicateStatementError{StatementID: existing.ID, Filename: filename}
		}
		l.log.Info().Str("statement_id", existing.ID).Str("filename", filename).Msg("resuming unprocessed statement")
		return existing.ID, nil
	}

	location, err := l.blobs.Put(ctx, blob.StatementKey(checksum, filename), data)
	if err != nil {
		return "", &domain.StorageWriteError{Op: "upload statement", Err: err}
	}

	st := &domain.Statement{
		ID:            uuid.NewString(),
		Filename:      filename,
		StoragePath:   location,
		StatementDate: statementDate,
		Checksum:      checksum,
		Processed:     false,
		CreatedAt:     l.now().UTC(),
	}
	if err := l.store.InsertStatement(ctx, st); err != nil {
		return "", &domain.StorageWriteError{Op: "insert statement", Err: err}
	}

	l.log.Info().Str("statement_id", st.ID).Str("filename", filename).Str("path", location).Msg("statement stored")
	return st.ID, nil
}

// InsertTransactions binds lines to the statement, validates every row and
// replaces the statement's transactions in one unit that also marks the
// statement processed. A single invalid row rejects the batch.
func (l *Ledger) InsertTransactions(ctx context.Context, statementID string, lines []domain.RawLine) (int, error) {
	createdAt := l.now().UTC()
	txs := make([]*domain.Transaction, 0, len(lines))
	for i, line := range lines {
		tx := line.ToTransaction(uuid.NewString(), statementID, createdAt)
		if err := tx.Validate(); err != nil {
			return 0, fmt.Errorf("InsertTransactions: row %d (page %d): %w", i+1, line.Page, err)
		}
		txs = append(txs, tx)
	}

	if err := l.store.ReplaceStatementTransactions(ctx, statementID, txs); err != nil {
		return 0, &domain.StorageWriteError{Op: "replace transactions", Err: err}
	}
	return len(txs), nil
}

// DeleteStatement removes the statement's transactions, the statement row
// and the stored file, in that order.
func (l *Ledger) DeleteStatement(ctx context.Context, id string) error {
	st, err := l.store.GetStatement(ctx, id)
	if err != nil {
		return fmt.Errorf("DeleteStatement: %w", err)
	}
	if err := l.store.DeleteStatement(ctx, id); err != nil {
		return fmt.Errorf("DeleteStatement: %w", err)
	}
	if err := l.blobs.Delete(ctx, st.StoragePath); err != nil {
		return fmt.Errorf("DeleteStatement: blob: %w", err)
	}
	l.log.Info().Str("statement_id", id).Msg("statement deleted")
	return nil
}

// Blob fetches the stored file of a statement.
func (l *Ledger) Blob(ctx context.Context, st *domain.Statement) ([]byte, error) {
	data, err := l.blobs.Get(ctx, st.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("Blob: %w", err)
	}
	return data, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository is the Postgres implementation of store.Store. It holds a
// shared connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects to databaseURL and verifies the connection.
func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("NewRepository: ping: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func dateParam(d civil.Date) time.Time {
	return d.In(time.UTC)
}

const statementColumns = `id, filename, storage_path, statement_date, checksum_sha256, processed, created_at`

func scanStatement(row pgx.Row) (*domain.Statement, error) {
	var (
		st   domain.Statement
		date time.Time
	)
	if err := row.Scan(&st.ID, &st.Filename, &st.StoragePath, &date, &st.Checksum, &st.Processed, &st.CreatedAt); err != nil {
		return nil, err
	}
	st.StatementDate = civil.DateOf(date)
	return &st, nil
}

// FindStatementByChecksum implements store.Statements.
func (r *Repository) FindStatementByChecksum(ctx context.Context, checksum string) (*domain.Statement, error) {
	st, err := scanStatement(r.pool.QueryRow(ctx,
		`SELECT `+statementColumns+` FROM statements WHERE checksum_sha256 = $1 LIMIT 1`, checksum))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindStatementByChecksum: %w", err)
	}
	return st, nil
}

// InsertStatement implements store.Statements.
func (r *Repository) InsertStatement(ctx context.Context, st *domain.Statement) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO statements (id, filename, storage_path, statement_date, checksum_sha256, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		st.ID, st.Filename, st.StoragePath, dateParam(st.StatementDate), st.Checksum, st.Processed, st.CreatedAt)
	if err != nil {
		return fmt.Errorf("InsertStatement: %w", err)
	}
	return nil
}

// GetStatement implements store.Statements.
func (r *Repository) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	st, err := scanStatement(r.pool.QueryRow(ctx,
		`SELECT `+statementColumns+` FROM statements WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("GetStatement %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetStatement: %w", err)
	}
	return st, nil
}

// ListStatements implements store.Statements.
func (r *Repository) ListStatements(ctx context.Context, filter store.StatementFilter) ([]*domain.Statement, error) {
	query := `SELECT ` + statementColumns + ` FROM statements`
	var args []any
	if filter.Processed != nil {
		args = append(args, *filter.Processed)
		query += ` WHERE processed = $1`
	}
	query += ` ORDER BY statement_date DESC, created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListStatements: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("ListStatements: scan: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListStatements: rows: %w", err)
	}
	return out, nil
}

// DeleteStatement implements store.Statements. Transactions are removed
// explicitly in the same transaction rather than relying on the FK cascade.
func (r *Repository) DeleteStatement(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM transactions WHERE statement_id = $1`, id); err != nil {
			return fmt.Errorf("DeleteStatement: transactions: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM statements WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("DeleteStatement: statement: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("DeleteStatement %s: %w", id, store.ErrNotFound)
		}
		return nil
	})
}

const insertTransactionSQL = `
	INSERT INTO transactions (id, statement_id, posted_date, transaction_date, description, amount, transaction_type, category, created_at)
	VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9)`

// ReplaceStatementTransactions implements store.Transactions. The statement
// row is locked for the duration so concurrent retries serialise.
func (r *Repository) ReplaceStatementTransactions(ctx context.Context, statementID string, txs []*domain.Transaction) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var processed bool
		err := tx.QueryRow(ctx, `SELECT processed FROM statements WHERE id = $1 FOR UPDATE`, statementID).Scan(&processed)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("ReplaceStatementTransactions %s: %w", statementID, store.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("ReplaceStatementTransactions: lock statement: %w", err)
		}
		if processed {
			return fmt.Errorf("ReplaceStatementTransactions %s: %w", statementID, store.ErrStatementProcessed)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM transactions WHERE statement_id = $1`, statementID); err != nil {
			return fmt.Errorf("ReplaceStatementTransactions: delete: %w", err)
		}

		if len(txs) > 0 {
			batch := &pgx.Batch{}
			for _, t := range txs {
				batch.Queue(insertTransactionSQL,
					t.ID, statementID, dateParam(t.PostedDate), dateParam(t.TransactionDate),
					t.Description, t.Amount.String(), string(t.Direction), t.Category, t.CreatedAt)
			}
			br := tx.SendBatch(ctx, batch)
			for range txs {
				if _, err := br.Exec(); err != nil {
					br.Close()
					return fmt.Errorf("ReplaceStatementTransactions: insert: %w", err)
				}
			}
			if err := br.Close(); err != nil {
				return fmt.Errorf("ReplaceStatementTransactions: batch close: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE statements SET processed = TRUE WHERE id = $1`, statementID); err != nil {
			return fmt.Errorf("ReplaceStatementTransactions: mark processed: %w", err)
		}
		return nil
	})
}

// buildTransactionQuery renders the SELECT for a filter.
func buildTransactionQuery(filter store.TransactionFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !filter.Start.IsZero() {
		add("transaction_date >= $%d", dateParam(filter.Start))
	}
	if !filter.End.IsZero() {
		add("transaction_date <= $%d", dateParam(filter.End))
	}
	if filter.StatementID != "" {
		add("statement_id = $%d", filter.StatementID)
	}
	if filter.Direction != "" {
		add("transaction_type = $%d", string(filter.Direction))
	}
	if filter.UncategorizedOnly {
		where = append(where, "category IS NULL")
	}

	var b strings.Builder
	b.WriteString(`SELECT id, statement_id, posted_date, transaction_date, description, amount::text, transaction_type, category, created_at FROM transactions`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if filter.Newest {
		b.WriteString(" ORDER BY transaction_date DESC, created_at, id")
	} else {
		b.WriteString(" ORDER BY transaction_date, created_at, id")
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

// ListTransactions implements store.Transactions.
func (r *Repository) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	query, args := buildTransactionQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		var (
			t              domain.Transaction
			posted, txDate time.Time
			amount, dir    string
		)
		if err := rows.Scan(&t.ID, &t.StatementID, &posted, &txDate, &t.Description, &amount, &dir, &t.Category, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		t.PostedDate = civil.DateOf(posted)
		t.TransactionDate = civil.DateOf(txDate)
		t.Direction = domain.Direction(dir)
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("ListTransactions: amount %q: %w", amount, err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: rows: %w", err)
	}
	return out, nil
}

// SetCategory implements store.Transactions.
func (r *Repository) SetCategory(ctx context.Context, id, category string, force bool) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transactions SET category = $2 WHERE id = $1 AND (category IS NULL OR $3)`,
		id, category, force)
	if err != nil {
		return false, fmt.Errorf("SetCategory: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("SetCategory: exists: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("SetCategory %s: %w", id, store.ErrNotFound)
	}
	return false, nil
}

// Clear implements store.Store.
func (r *Repository) Clear(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `TRUNCATE transactions, statements`); err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}

// Ensure Repository implements store.Store.
var _ store.Store = (*Repository)(nil)

package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
)

const statementColumns = `id, filename, storage_path, statement_date, checksum_sha256, processed, created_at`

func (r *Repository) queryStatements(ctx context.Context, sql string, params ...bigquery.QueryParameter) ([]*domain.Statement, error) {
	var out []*domain.Statement
	err := readAll(ctx, r.client, sql, params, func(row *StatementRow) error {
		out = append(out, row.toDomain())
		return nil
	})
	return out, err
}

// FindStatementByChecksum implements store.Statements.
func (r *Repository) FindStatementByChecksum(ctx context.Context, checksum string) (*domain.Statement, error) {
	rows, err := r.queryStatements(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE checksum_sha256 = @checksum LIMIT 1`, statementColumns, r.table(statementsTable)),
		bigquery.QueryParameter{Name: "checksum", Value: checksum})
	if err != nil {
		return nil, fmt.Errorf("FindStatementByChecksum: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// InsertStatement implements store.Statements. DML is used instead of the
// streaming inserter so the row is immediately visible to UPDATE and DELETE.
func (r *Repository) InsertStatement(ctx context.Context, st *domain.Statement) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (@id, @filename, @storage_path, @statement_date, @checksum, @processed, @created_at)`,
		r.table(statementsTable), statementColumns)
	_, err := r.exec(ctx, sql,
		bigquery.QueryParameter{Name: "id", Value: st.ID},
		bigquery.QueryParameter{Name: "filename", Value: st.Filename},
		bigquery.QueryParameter{Name: "storage_path", Value: st.StoragePath},
		bigquery.QueryParameter{Name: "statement_date", Value: st.StatementDate},
		bigquery.QueryParameter{Name: "checksum", Value: st.Checksum},
		bigquery.QueryParameter{Name: "processed", Value: st.Processed},
		bigquery.QueryParameter{Name: "created_at", Value: st.CreatedAt},
	)
	if err != nil {
		return fmt.Errorf("InsertStatement: %w", err)
	}
	return nil
}

// GetStatement implements store.Statements.
func (r *Repository) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	rows, err := r.queryStatements(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = @id`, statementColumns, r.table(statementsTable)),
		bigquery.QueryParameter{Name: "id", Value: id})
	if err != nil {
		return nil, fmt.Errorf("GetStatement: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("GetStatement %s: %w", id, store.ErrNotFound)
	}
	return rows[0], nil
}

// ListStatements implements store.Statements.
func (r *Repository) ListStatements(ctx context.Context, filter store.StatementFilter) ([]*domain.Statement, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s`, statementColumns, r.table(statementsTable))
	var params []bigquery.QueryParameter
	if filter.Processed != nil {
		sql += ` WHERE processed = @processed`
		params = append(params, bigquery.QueryParameter{Name: "processed", Value: *filter.Processed})
	}
	sql += ` ORDER BY statement_date DESC, created_at DESC`
	if filter.Limit > 0 {
		sql += ` LIMIT @limit`
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: filter.Limit})
	}

	rows, err := r.queryStatements(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("ListStatements: %w", err)
	}
	return rows, nil
}

// DeleteStatement implements store.Statements. Transactions are deleted in
// the same multi-statement transaction.
func (r *Repository) DeleteStatement(ctx context.Context, id string) error {
	script := fmt.Sprintf(`
		IF NOT EXISTS (SELECT 1 FROM %[1]s WHERE id = @id) THEN
		  RAISE USING MESSAGE = '%[3]s';
		END IF;
		BEGIN TRANSACTION;
		DELETE FROM %[2]s WHERE statement_id = @id;
		DELETE FROM %[1]s WHERE id = @id;
		COMMIT TRANSACTION;`,
		r.table(statementsTable), r.table(transactionsTable), raiseNotFound)
	if _, err := r.exec(ctx, script, bigquery.QueryParameter{Name: "id", Value: id}); err != nil {
		return fmt.Errorf("DeleteStatement %s: %w", id, scriptError(err))
	}
	return nil
}

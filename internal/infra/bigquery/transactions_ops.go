package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
)

const transactionColumns = `id, statement_id, posted_date, transaction_date, description, amount, transaction_type, category, created_at`

// ReplaceStatementTransactions implements store.Transactions. The delete,
// insert and processed flag flip run as one BigQuery multi-statement
// transaction; rows are passed as an ARRAY<STRUCT> parameter.
func (r *Repository) ReplaceStatementTransactions(ctx context.Context, statementID string, txs []*domain.Transaction) error {
	rows := make([]TransactionRow, 0, len(txs))
	for _, t := range txs {
		row := transactionRowFrom(t)
		row.StatementID = statementID
		rows = append(rows, *row)
	}

	script := fmt.Sprintf(`
		BEGIN TRANSACTION;
		IF NOT EXISTS (SELECT 1 FROM %[1]s WHERE id = @statement_id) THEN
		  RAISE USING MESSAGE = '%[3]s';
		END IF;
		IF (SELECT LOGICAL_OR(processed) FROM %[1]s WHERE id = @statement_id) THEN
		  RAISE USING MESSAGE = '%[4]s';
		END IF;
		DELETE FROM %[2]s WHERE statement_id = @statement_id;
		INSERT INTO %[2]s (%[5]s)
		SELECT r.id, r.statement_id, r.posted_date, r.transaction_date, r.description,
		       r.amount, r.transaction_type, r.category, r.created_at
		FROM UNNEST(@rows) AS r;
		UPDATE %[1]s SET processed = TRUE WHERE id = @statement_id;
		COMMIT TRANSACTION;`,
		r.table(statementsTable), r.table(transactionsTable), raiseNotFound, raiseProcessed, transactionColumns)

	_, err := r.exec(ctx, script,
		bigquery.QueryParameter{Name: "statement_id", Value: statementID},
		bigquery.QueryParameter{Name: "rows", Value: rows},
	)
	if err != nil {
		return fmt.Errorf("ReplaceStatementTransactions %s: %w", statementID, scriptError(err))
	}
	return nil
}

// buildTransactionQuery renders the SELECT and its named parameters.
func (r *Repository) buildTransactionQuery(filter store.TransactionFilter) (string, []bigquery.QueryParameter) {
	var (
		where  []string
		params []bigquery.QueryParameter
	)
	add := func(cond, name string, v any) {
		where = append(where, cond)
		params = append(params, bigquery.QueryParameter{Name: name, Value: v})
	}
	if !filter.Start.IsZero() {
		add("transaction_date >= @start", "start", filter.Start)
	}
	if !filter.End.IsZero() {
		add("transaction_date <= @end", "end", filter.End)
	}
	if filter.StatementID != "" {
		add("statement_id = @statement_id", "statement_id", filter.StatementID)
	}
	if filter.Direction != "" {
		add("transaction_type = @transaction_type", "transaction_type", string(filter.Direction))
	}
	if filter.UncategorizedOnly {
		where = append(where, "category IS NULL")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", transactionColumns, r.table(transactionsTable))
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
		b.WriteString(" LIMIT @limit")
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: filter.Limit})
	}
	return b.String(), params
}

// ListTransactions implements store.Transactions.
func (r *Repository) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	sql, params := r.buildTransactionQuery(filter)

	var out []*domain.Transaction
	err := readAll(ctx, r.client, sql, params, func(row *TransactionRow) error {
		t, err := row.toDomain()
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return out, nil
}

// SetCategory implements store.Transactions.
func (r *Repository) SetCategory(ctx context.Context, id, category string, force bool) (bool, error) {
	sql := fmt.Sprintf(`UPDATE %s SET category = @category WHERE id = @id AND (category IS NULL OR @force)`,
		r.table(transactionsTable))
	status, err := r.exec(ctx, sql,
		bigquery.QueryParameter{Name: "id", Value: id},
		bigquery.QueryParameter{Name: "category", Value: category},
		bigquery.QueryParameter{Name: "force", Value: force},
	)
	if err != nil {
		return false, fmt.Errorf("SetCategory: %w", err)
	}
	if affectedRows(status) > 0 {
		return true, nil
	}

	var found bool
	err = readAll(ctx, r.client,
		fmt.Sprintf(`SELECT id FROM %s WHERE id = @id LIMIT 1`, r.table(transactionsTable)),
		[]bigquery.QueryParameter{{Name: "id", Value: id}},
		func(*struct {
			ID string `bigquery:"id"`
		}) error {
			found = true
			return nil
		})
	if err != nil {
		return false, fmt.Errorf("SetCategory: exists: %w", err)
	}
	if !found {
		return false, fmt.Errorf("SetCategory %s: %w", id, store.ErrNotFound)
	}
	return false, nil
}

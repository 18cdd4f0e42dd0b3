package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-ledger/internal/store"
	"google.golang.org/api/iterator"
)

const (
	statementsTable   = "statements"
	transactionsTable = "transactions"

	// Messages raised from scripts so callers can map them back to store errors.
	raiseNotFound  = "statement not found"
	raiseProcessed = "statement already processed"
)

// Repository is the BigQuery implementation of store.Store.
type Repository struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewRepository creates a repository bound to project.dataset with a shared client.
func NewRepository(ctx context.Context, project, dataset string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, project: project, dataset: dataset}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// table returns the fully qualified, backtick-quoted table reference.
func (r *Repository) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.project, r.dataset, name)
}

// exec runs a DML statement or script and waits for it to finish.
func (r *Repository) exec(ctx context.Context, sql string, params ...bigquery.QueryParameter) (*bigquery.JobStatus, error) {
	q := r.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("job completed with error: %w", err)
	}
	return status, nil
}

// affectedRows reports the DML row count of a finished job, 0 if unknown.
func affectedRows(status *bigquery.JobStatus) int64 {
	if status == nil || status.Statistics == nil {
		return 0
	}
	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return qs.NumDMLAffectedRows
	}
	return 0
}

// readAll runs a SELECT and decodes every row with decode.
func readAll[T any](ctx context.Context, client *bigquery.Client, sql string, params []bigquery.QueryParameter, decode func(*T) error) error {
	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading query: %w", err)
	}
	for {
		var row T
		err := it.Next(&row)
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("iterating rows: %w", err)
		}
		if err := decode(&row); err != nil {
			return err
		}
	}
}

// scriptError maps messages raised by our scripts back to store sentinels.
func scriptError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, raiseProcessed):
		return errors.Join(store.ErrStatementProcessed, err)
	case strings.Contains(msg, raiseNotFound):
		return errors.Join(store.ErrNotFound, err)
	}
	return err
}

// Clear implements store.Store.
func (r *Repository) Clear(ctx context.Context) error {
	script := fmt.Sprintf(`
		BEGIN TRANSACTION;
		DELETE FROM %s WHERE TRUE;
		DELETE FROM %s WHERE TRUE;
		COMMIT TRANSACTION;`,
		r.table(transactionsTable), r.table(statementsTable))
	if _, err := r.exec(ctx, script); err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}

// Ensure Repository implements store.Store.
var _ store.Store = (*Repository)(nil)

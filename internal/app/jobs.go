package app

import (
	"context"
	"errors"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/extract"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/store"
)

// JobRouter maps every job type to the stage it triggers.
func (a *App) JobRouter() *jobs.Router {
	r := jobs.NewRouter()
	r.Handle(jobs.JobTypeIngestStatement, a.runIngestStatement)
	r.Handle(jobs.JobTypeIngestPending, a.runIngestPending)
	r.Handle(jobs.JobTypeCategorize, a.runCategorize)
	r.Handle(jobs.JobTypeAnalyze, a.runAnalyze)
	return r
}

// permanentIngestError reports failures a retry cannot fix.
func permanentIngestError(err error) bool {
	var (
		dup       *domain.DuplicateStatementError
		parseErr  *extract.ParseError
		decryptEr *extract.DecryptionError
		emptyErr  *extract.EmptyDocumentError
	)
	return errors.As(err, &dup) ||
		errors.As(err, &parseErr) ||
		errors.As(err, &decryptEr) ||
		errors.As(err, &emptyErr) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrStatementProcessed)
}

func (a *App) runIngestStatement(ctx context.Context, job *jobs.Job) error {
	n, err := a.Ingestor.ProcessStatement(ctx, job.StatementID)
	if err != nil {
		if permanentIngestError(err) {
			return jobs.Permanent(err)
		}
		return err
	}
	job.Result = map[string]int{"transactions": n}
	return nil
}

func (a *App) runIngestPending(ctx context.Context, job *jobs.Job) error {
	report, err := a.Ingestor.ProcessPending(ctx)
	if err != nil {
		return err
	}
	job.Result = report
	return nil
}

func (a *App) runCategorize(ctx context.Context, job *jobs.Job) error {
	c, err := a.Categorizer(ctx, false)
	if err != nil {
		return jobs.Permanent(err)
	}
	batch := job.BatchSize
	if batch == 0 {
		batch = a.Config.CategorizeBatchSize
	}
	n, err := c.CategorizeUncategorized(ctx, batch)
	if err != nil {
		return err
	}
	job.Result = map[string]int{"categorized": n}
	return nil
}

func (a *App) runAnalyze(ctx context.Context, job *jobs.Job) error {
	r, err := a.Requestor(ctx)
	if err != nil {
		return jobs.Permanent(err)
	}
	artifact, err := r.Run(ctx)
	if err != nil {
		return err
	}
	job.Result = map[string]string{"status": artifact.Status}
	return nil
}

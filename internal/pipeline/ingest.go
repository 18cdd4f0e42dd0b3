package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/mail"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/rs/zerolog"
)

// Report counts the outcome of an ingestion run.
type Report struct {
	Ingested     int `json:"ingested"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
	Transactions int `json:"transactions"`
}

func (r *Report) add(o outcome, inserted int) {
	switch o {
	case outcomeIngested:
		r.Ingested++
		r.Transactions += inserted
	case outcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

type outcome int

const (
	outcomeIngested outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Ingestor runs statement files through the ingestion pipeline.
type Ingestor struct {
	ledger   *Ledger
	password string
	log      zerolog.Logger
	today    func() civil.Date
}

// NewIngestor creates an Ingestor. password decrypts protected statements.
func NewIngestor(ledger *Ledger, password string, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		ledger:   ledger,
		password: password,
		log:      log,
		today:    func() civil.Date { return civil.DateOf(time.Now()) },
	}
}

func (in *Ingestor) registerSteps() []PipelineStep {
	return []PipelineStep{
		&ReadSummaryStep{Password: in.password, Today: in.today, Log: in.log},
		&CreateStatementStep{Ledger: in.ledger},
	}
}

func (in *Ingestor) processSteps() []PipelineStep {
	return []PipelineStep{
		&ExtractStep{Password: in.password},
		&ValidateStep{Log: in.log},
		&InsertTransactionsStep{Ledger: in.ledger},
	}
}

// Register stores the file and its statement row without extracting it.
// The returned id can be handed to ProcessStatement later.
func (in *Ingestor) Register(ctx context.Context, filename string, data []byte, receivedAt time.Time) (string, error) {
	state := &PipelineState{Filename: filename, Data: data, ReceivedAt: receivedAt}
	if err := NewPipeline(in.registerSteps()...).Execute(ctx, state); err != nil {
		return "", err
	}
	return state.StatementID, nil
}

// IngestAttachment runs the full pipeline for one file and returns the
// statement id and the number of stored transactions.
func (in *Ingestor) IngestAttachment(ctx context.Context, a mail.Attachment) (string, int, error) {
	state := &PipelineState{Filename: a.Filename, Data: a.Data, ReceivedAt: a.ReceivedAt}
	steps := append(in.registerSteps(), in.processSteps()...)
	err := NewPipeline(steps...).Execute(ctx, state)
	return state.StatementID, state.Inserted, err
}

// ProcessStatement extracts and stores the transactions of a statement that
// was registered earlier.
func (in *Ingestor) ProcessStatement(ctx context.Context, statementID string) (int, error) {
	state := &PipelineState{StatementID: statementID}
	steps := append([]PipelineStep{&FetchBlobStep{Ledger: in.ledger}}, in.processSteps()...)
	err := NewPipeline(steps...).Execute(ctx, state)
	return state.Inserted, err
}

// IngestAll ingests every attachment from src. A failing statement is logged
// and left unprocessed; it does not stop the run. A fetch that fails part way
// still ingests what it returned and counts the failure in the report.
func (in *Ingestor) IngestAll(ctx context.Context, src mail.Source) (Report, error) {
	var report Report

	attachments, err := src.Fetch(ctx)
	if err != nil {
		if len(attachments) == 0 {
			return report, fmt.Errorf("IngestAll: fetch: %w", err)
		}
		in.log.Warn().Err(err).Int("fetched", len(attachments)).Msg("fetch incomplete, ingesting what arrived")
		report.Failed++
	}

	for _, a := range attachments {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		id, n, err := in.IngestAttachment(ctx, a)
		report.add(in.classify(err, id, a.Filename), n)
	}

	in.log.Info().
		Int("ingested", report.Ingested).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("transactions", report.Transactions).
		Msg("ingestion finished")
	return report, nil
}

// ProcessPending re-runs extraction for every unprocessed statement, reading
// the file back from blob storage.
func (in *Ingestor) ProcessPending(ctx context.Context) (Report, error) {
	var report Report

	unprocessed := false
	pending, err := in.ledger.store.ListStatements(ctx, store.StatementFilter{Processed: &unprocessed})
	if err != nil {
		return report, fmt.Errorf("ProcessPending: list statements: %w", err)
	}
	in.log.Info().Int("pending", len(pending)).Msg("processing unprocessed statements")

	for _, st := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := in.ProcessStatement(ctx, st.ID)
		report.add(in.classify(err, st.ID, st.Filename), n)
	}
	return report, nil
}

func (in *Ingestor) classify(err error, statementID, filename string) outcome {
	log := in.log.With().Str("statement_id", statementID).Str("filename", filename).Logger()

	var dup *domain.DuplicateStatementError
	switch {
	case err == nil:
		log.Info().Msg("statement ingested")
		return outcomeIngested
	case errors.As(err, &dup):
		log.Info().Str("existing_id", dup.StatementID).Msg("skipping duplicate statement")
		return outcomeSkipped
	default:
		log.Error().Err(err).Msg("statement failed, left unprocessed")
		return outcomeFailed
	}
}

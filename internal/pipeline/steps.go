package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/extract"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Filename   string
	Data       []byte
	ReceivedAt time.Time // zero when the file did not come from email

	StatementID   string
	StatementDate civil.Date

	Document *extract.Document
	Summary  extract.Summary
	Lines    []domain.RawLine
	Inserted int
}

// ReadSummaryStep opens the document and reads its summary box to choose the
// statement date. It never fails: an unreadable file is reported by
// ExtractStep once the statement row exists.
type ReadSummaryStep struct {
	Password string
	Today    func() civil.Date
	Log      zerolog.Logger
}

func (s *ReadSummaryStep) Execute(ctx context.Context, state *PipelineState) error {
	doc, err := extract.Open(state.Data, s.Password)
	if err != nil {
		s.Log.Debug().Err(err).Str("filename", state.Filename).Msg("summary unavailable")
	} else {
		state.Document = doc
		if summary, err := doc.Summary(); err == nil {
			state.Summary = summary
		}
	}
	state.StatementDate = statementDate(state.Summary, state.ReceivedAt, s.Today())
	return nil
}

// statementDate prefers the bill period end, then the email date, then today.
func statementDate(summary extract.Summary, receivedAt time.Time, today civil.Date) civil.Date {
	if summary.PeriodEnd.IsValid() {
		return summary.PeriodEnd
	}
	if !receivedAt.IsZero() {
		return civil.DateOf(receivedAt)
	}
	return today
}

// CreateStatementStep stores the file and its statement row.
type CreateStatementStep struct {
	Ledger *Ledger
}

func (s *CreateStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	id, err := s.Ledger.CreateStatement(ctx, state.Filename, state.Data, state.StatementDate)
	if err != nil {
		return err
	}
	state.StatementID = id
	return nil
}

// FetchBlobStep loads the stored file of an existing statement.
type FetchBlobStep struct {
	Ledger *Ledger
}

func (s *FetchBlobStep) Execute(ctx context.Context, state *PipelineState) error {
	st, err := s.Ledger.store.GetStatement(ctx, state.StatementID)
	if err != nil {
		return err
	}
	if st.Processed {
		return &domain.DuplicateStatementError{StatementID: st.ID, Filename: st.Filename}
	}
	data, err := s.Ledger.Blob(ctx, st)
	if err != nil {
		return err
	}
	state.Filename = st.Filename
	state.Data = data
	state.StatementDate = st.StatementDate
	return nil
}

// ExtractStep parses every transaction row out of the document.
type ExtractStep struct {
	Password string
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Document == nil {
		doc, err := extract.Open(state.Data, s.Password)
		if err != nil {
			return err
		}
		state.Document = doc
	}
	lines, err := state.Document.ExtractAll(ctx)
	if err != nil {
		return err
	}
	state.Lines = lines
	return nil
}

// ValidateStep checks extracted rows before anything is written and compares
// the row totals with the summary balances when both are known.
type ValidateStep struct {
	Log zerolog.Logger
}

func (s *ValidateStep) Execute(ctx context.Context, state *PipelineState) error {
	var errs []error
	for i, line := range state.Lines {
		tx := line.ToTransaction("", state.StatementID, time.Time{})
		if err := tx.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("row %d (page %d): %w", i+1, line.Page, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	if diff, ok := reconcile(state.Summary, state.Lines); ok && !diff.IsZero() {
		s.Log.Warn().
			Str("statement_id", state.StatementID).
			Str("difference", diff.StringFixed(2)).
			Msg("transactions do not reconcile with statement balances")
	}
	return nil
}

// reconcile returns previous balance + debits - credits - new balance.
// ok is false when the summary balances were not found.
func reconcile(summary extract.Summary, lines []domain.RawLine) (decimal.Decimal, bool) {
	if summary.PreviousBalance.IsZero() && summary.NewBalance.IsZero() {
		return decimal.Zero, false
	}
	balance := summary.PreviousBalance
	for _, line := range lines {
		if line.Direction == domain.DirectionCredit {
			balance = balance.Sub(line.Amount)
		} else {
			balance = balance.Add(line.Amount)
		}
	}
	return balance.Sub(summary.NewBalance), true
}

// InsertTransactionsStep writes the rows and marks the statement processed.
type InsertTransactionsStep struct {
	Ledger *Ledger
}

func (s *InsertTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	n, err := s.Ledger.InsertTransactions(ctx, state.StatementID, state.Lines)
	if err != nil {
		return err
	}
	state.Inserted = n
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

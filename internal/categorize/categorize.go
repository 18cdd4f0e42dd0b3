// Package categorize assigns spending categories to stored transactions with
// a language model.
package categorize

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/llm"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	temperature = 0.1
	maxTokens   = 20
)

// Options controls a categorization run.
type Options struct {
	// Force re-labels rows that already have a category.
	Force bool
	// Workers above 1 categorize concurrently.
	Workers int
}

// Categorizer labels transactions.
type Categorizer struct {
	store store.Transactions
	model llm.Model
	opts  Options
	log   zerolog.Logger
}

// New creates a Categorizer.
func New(s store.Transactions, model llm.Model, opts Options, log zerolog.Logger) *Categorizer {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Categorizer{store: s, model: model, opts: opts, log: log}
}

// Health reports whether the model backend is reachable.
func (c *Categorizer) Health(ctx context.Context) error {
	if err := llm.Ping(ctx, c.model); err != nil {
		return fmt.Errorf("Health: %s: %w", c.model.Name(), err)
	}
	return nil
}

// CategorizeUncategorized labels up to batchSize transactions (all when
// batchSize <= 0) and returns how many were written. Model and write failures
// skip the row; cancellation stops the run and returns the count so far.
func (c *Categorizer) CategorizeUncategorized(ctx context.Context, batchSize int) (int, error) {
	txs, err := c.store.ListTransactions(ctx, store.TransactionFilter{
		UncategorizedOnly: !c.opts.Force,
		Limit:             batchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("CategorizeUncategorized: list: %w", err)
	}
	if len(txs) == 0 {
		c.log.Info().Msg("all transactions are already categorized")
		return 0, nil
	}
	c.log.Info().Int("transactions", len(txs)).Int("workers", c.opts.Workers).Str("model", c.model.Name()).Msg("categorizing")

	var done int64
	if c.opts.Workers == 1 {
		for _, tx := range txs {
			if err := ctx.Err(); err != nil {
				return int(done), err
			}
			if c.categorizeOne(ctx, tx) {
				done++
			}
		}
	} else {
		err = c.runPool(ctx, txs, &done)
	}

	c.log.Info().Int64("categorized", done).Int("selected", len(txs)).Msg("categorization finished")
	if err != nil {
		return int(done), err
	}
	return int(done), ctx.Err()
}

// runPool hands each transaction to exactly one worker.
func (c *Categorizer) runPool(ctx context.Context, txs []*domain.Transaction, done *int64) error {
	g, gctx := errgroup.WithContext(ctx)
	work := make(chan *domain.Transaction)

	g.Go(func() error {
		defer close(work)
		for _, tx := range txs {
			select {
			case work <- tx:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < c.opts.Workers; i++ {
		g.Go(func() error {
			for tx := range work {
				if gctx.Err() != nil {
					continue
				}
				if c.categorizeOne(gctx, tx) {
					atomic.AddInt64(done, 1)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// categorizeOne reports whether a category was written.
func (c *Categorizer) categorizeOne(ctx context.Context, tx *domain.Transaction) bool {
	log := c.log.With().Str("transaction_id", tx.ID).Str("description", tx.Description).Logger()

	resp, err := c.model.Generate(ctx, llm.Request{
		System:      SystemPrompt,
		Prompt:      Prompt(tx),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		if errors.Is(err, llm.ErrModelUnavailable) {
			log.Warn().Err(err).Msg("model unavailable, leaving uncategorized")
		} else if ctx.Err() == nil {
			log.Error().Err(err).Msg("model call failed, skipping")
		}
		return false
	}

	label := ParseLabel(resp)
	updated, err := c.store.SetCategory(ctx, tx.ID, label, c.opts.Force)
	if err != nil {
		log.Error().Err(err).Str("category", label).Msg("failed to write category")
		return false
	}
	if !updated {
		log.Debug().Msg("already categorized, left unchanged")
		return false
	}
	log.Debug().Str("category", label).Msg("categorized")
	return true
}

// Prompt renders the per-transaction part of the request.
func Prompt(tx *domain.Transaction) string {
	return fmt.Sprintf("Transaction: %s\nAmount: %s\nType: %s\nDate: %s\nCategory:",
		tx.Description, tx.Amount.StringFixed(2), tx.Direction, tx.TransactionDate)
}

package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	MaxRetries   uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig is tuned for a local model that may still be loading.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:   3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
}

// retrying retries Generate while the model is unavailable. Other errors are
// returned immediately.
type retrying struct {
	Model
	cfg RetryConfig
	log zerolog.Logger
}

// WithRetry wraps m so ErrModelUnavailable is retried with backoff.
func WithRetry(m Model, cfg RetryConfig, log zerolog.Logger) Model {
	return &retrying{Model: m, cfg: cfg, log: log}
}

func (r *retrying) Generate(ctx context.Context, req Request) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialDelay
	b.MaxInterval = r.cfg.MaxDelay
	b.MaxElapsedTime = 0

	var out string
	op := func() error {
		resp, err := r.Model.Generate(ctx, req)
		if err == nil {
			out = resp
			return nil
		}
		if errors.Is(err, ErrModelUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		r.log.Warn().Err(err).Dur("retry_in", wait).Str("model", r.Model.Name()).Msg("model call failed, retrying")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.cfg.MaxRetries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return "", err
	}
	return out, nil
}

// Ping forwards to the wrapped model.
func (r *retrying) Ping(ctx context.Context) error {
	return Ping(ctx, r.Model)
}

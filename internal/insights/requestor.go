package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Requestor runs the analysis roles in order and saves the combined report.
type Requestor struct {
	tools     Toolset
	roles     []Role
	artifacts ArtifactStore
	log       zerolog.Logger
	now       func() time.Time
}

// NewRequestor creates a Requestor.
func NewRequestor(tools Toolset, roles []Role, artifacts ArtifactStore, log zerolog.Logger) *Requestor {
	return &Requestor{
		tools:     tools,
		roles:     roles,
		artifacts: artifacts,
		log:       log,
		now:       time.Now,
	}
}

// Run executes every role and persists the artifact. On failure an error
// artifact is saved and the role error is returned.
func (r *Requestor) Run(ctx context.Context) (*Artifact, error) {
	if len(r.roles) == 0 {
		return nil, errors.New("Run: no roles configured")
	}

	brief := &Brief{}
	for _, role := range r.roles {
		if err := ctx.Err(); err != nil {
			return nil, r.fail(ctx, fmt.Errorf("Run: %w", err))
		}
		start := r.now()
		r.log.Info().Str("role", role.Name()).Msg("Running analysis role")

		out, err := role.Run(ctx, r.tools, brief)
		if err != nil {
			return nil, r.fail(ctx, fmt.Errorf("Run: %w", err))
		}
		brief.Add(Section{Role: role.Name(), Title: role.Title(), Body: out})
		r.log.Info().
			Str("role", role.Name()).
			Dur("elapsed", r.now().Sub(start)).
			Msg("Analysis role finished")
	}

	ts := r.now().UTC()
	analysis := brief.Markdown()
	a := &Artifact{Status: StatusCompleted, Timestamp: &ts, Analysis: &analysis}
	if err := r.artifacts.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("Run: save artifact: %w", err)
	}
	r.log.Info().Int("sections", len(brief.Sections)).Msg("Analysis saved")
	return a, nil
}

func (r *Requestor) fail(ctx context.Context, err error) error {
	ts := r.now().UTC()
	a := &Artifact{Status: StatusError, Timestamp: &ts, Error: err.Error()}
	// The run context may already be cancelled; the error artifact still needs writing.
	if saveErr := r.artifacts.Save(context.WithoutCancel(ctx), a); saveErr != nil {
		r.log.Error().Err(saveErr).Msg("Failed to save error artifact")
	}
	r.log.Error().Err(err).Msg("Analysis failed")
	return err
}

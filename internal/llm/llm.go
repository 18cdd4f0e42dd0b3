// Package llm wraps the language model backends used for categorization and
// spending analysis.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrModelUnavailable is returned when the model endpoint cannot be reached
// or is overloaded. Callers may retry later.
var ErrModelUnavailable = errors.New("model unavailable")

// Request is a single completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int // 0 means the backend default
}

// Model generates text completions.
type Model interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Pinger is implemented by models that can report reachability cheaply.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks m if it supports it.
func Ping(ctx context.Context, m Model) error {
	if p, ok := m.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
}

// StripCodeFences removes a Markdown code fence wrapping the whole response,
// which models add even when asked not to.
func StripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening line (``` or ```markdown).
	idx := strings.Index(s, "\n")
	if idx == -1 {
		return s
	}
	s = s[idx+1:]
	if end := strings.LastIndex(s, "```"); end != -1 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

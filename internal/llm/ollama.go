package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaURL is where a local Ollama server listens.
const DefaultOllamaURL = "http://localhost:11434"

// Ollama generates completions with a local Ollama server.
type Ollama struct {
	client *api.Client
	model  string
}

// NewOllama creates a client for baseURL and model.
func NewOllama(baseURL, model string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("NewOllama: parse url %q: %w", baseURL, err)
	}
	return &Ollama{
		client: api.NewClient(u, &http.Client{Timeout: 2 * time.Minute}),
		model:  model,
	}, nil
}

// Name implements Model.
func (o *Ollama) Name() string { return "ollama/" + o.model }

// Generate implements Model.
func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	stream := false
	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	var b strings.Builder
	err := o.client.Generate(ctx, &api.GenerateRequest{
		Model:   o.model,
		System:  req.System,
		Prompt:  req.Prompt,
		Stream:  &stream,
		Options: options,
	}, func(resp api.GenerateResponse) error {
		b.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", classifyOllama(err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Ping implements Pinger.
func (o *Ollama) Ping(ctx context.Context) error {
	if err := o.client.Heartbeat(ctx); err != nil {
		return classifyOllama(err)
	}
	return nil
}

// ollamaBusyMarkers appear in the error bodies Ollama sends while a model is
// loading or the server is saturated. The client returns those bodies as
// plain errors without the status code.
var ollamaBusyMarkers = []string{"loading model", "server busy", "overloaded", "try again later"}

func classifyOllama(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var status api.StatusError
	if errors.As(err, &status) {
		if status.StatusCode == http.StatusTooManyRequests || status.StatusCode >= 500 {
			return unavailable(err)
		}
		return fmt.Errorf("ollama: %w", err)
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return unavailable(err)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range ollamaBusyMarkers {
		if strings.Contains(msg, marker) {
			return unavailable(err)
		}
	}
	return fmt.Errorf("ollama: %w", err)
}

package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %s", log.GetLevel())
	}
}

func TestNewWithOptions_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithOptions(buf, "debug", "json")

	log.Debug().Str("statement_id", "st-1").Msg("extracting")

	output := buf.String()
	if !strings.HasPrefix(output, "{") {
		t.Errorf("Expected JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"statement_id":"st-1"`) {
		t.Errorf("Expected statement_id field, got: %s", output)
	}
}

func TestNewWithOptions_LevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithOptions(buf, "warn", "json")

	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered at warn level, got: %s", buf.String())
	}

	log.Warn().Msg("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("Expected warn output, got: %s", buf.String())
	}
}

func TestNewWithOptions_BadLevel(t *testing.T) {
	log := NewWithOptions(&bytes.Buffer{}, "loud", "console")
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected fallback to info, got %s", log.GetLevel())
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"job_id": "123",
		"type":   "categorize",
	})
	log.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "job_id") || !strings.Contains(output, "123") {
		t.Errorf("Expected output to contain job_id field, got: %s", output)
	}
	if !strings.Contains(output, "categorize") {
		t.Errorf("Expected output to contain type field, got: %s", output)
	}
}

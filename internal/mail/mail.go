// Package mail collects statement PDFs from a mailbox or a local directory.
package mail

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Attachment is one statement file and when it was received.
type Attachment struct {
	Filename   string
	Data       []byte
	ReceivedAt time.Time
	MessageID  string
}

// Source yields statement attachments. When some messages cannot be read,
// Fetch returns the attachments it did collect together with an error
// describing the rest.
type Source interface {
	Fetch(ctx context.Context) ([]Attachment, error)
}

var (
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	underscores  = regexp.MustCompile(`_+`)
)

const maxFilenameLen = 200

// StatementFilename prefixes name with the received date and makes it safe to
// use as a file or object name, e.g. "2024-01-31_statement.pdf".
func StatementFilename(name string, receivedAt time.Time) string {
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return SanitizeFilename(receivedAt.Format("2006-01-02") + "_" + name)
}

// SanitizeFilename replaces path and shell-hostile characters with
// underscores and bounds the length, keeping the extension.
func SanitizeFilename(name string) string {
	s := invalidChars.ReplaceAllString(name, "_")
	s = underscores.ReplaceAllString(s, "_")
	if len(s) <= maxFilenameLen {
		return s
	}
	ext := ""
	if i := strings.LastIndex(s, "."); i > 0 && len(s)-i <= 10 {
		ext = s[i:]
		s = s[:i]
	}
	return s[:maxFilenameLen-len(ext)] + ext
}

func isPDF(filename, mimeType string) bool {
	return mimeType == "application/pdf" || strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

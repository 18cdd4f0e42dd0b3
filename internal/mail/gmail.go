package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	netmail "net/mail"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// DefaultGmailQuery finds credit card statement emails.
const DefaultGmailQuery = `subject:"credit card statement" has:attachment`

// GmailSource reads PDF attachments from messages matching a search query.
type GmailSource struct {
	svc   *gmail.Service
	query string
	log   zerolog.Logger
}

// NewGmailSource builds a read-only Gmail client from a credentials file
// (an authorized_user or service account JSON).
func NewGmailSource(ctx context.Context, credentialsFile, query string, log zerolog.Logger) (*GmailSource, error) {
	svc, err := gmail.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gmail.GmailReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("NewGmailSource: create service: %w", err)
	}
	if query == "" {
		query = DefaultGmailQuery
	}
	return &GmailSource{svc: svc, query: query, log: log}, nil
}

// Fetch implements Source.
func (g *GmailSource) Fetch(ctx context.Context) ([]Attachment, error) {
	var ids []string
	err := g.svc.Users.Messages.List("me").Q(g.query).Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Fetch: list messages: %w", err)
	}
	g.log.Info().Int("messages", len(ids)).Str("query", g.query).Msg("matching emails found")

	var (
		out  []Attachment
		errs []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		msg, err := g.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err != nil {
			g.log.Warn().Err(err).Str("message_id", id).Msg("skipping unreadable message")
			errs = append(errs, fmt.Errorf("get message %s: %w", id, err))
			continue
		}
		received := messageDate(msg)

		for _, part := range pdfParts(msg.Payload) {
			data, err := g.partData(ctx, id, part)
			if err != nil {
				g.log.Warn().Err(err).Str("message_id", id).Str("filename", part.Filename).Msg("skipping attachment")
				errs = append(errs, fmt.Errorf("attachment %q of %s: %w", part.Filename, id, err))
				continue
			}
			out = append(out, Attachment{
				Filename:   StatementFilename(part.Filename, received),
				Data:       data,
				ReceivedAt: received,
				MessageID:  id,
			})
		}
	}
	if len(errs) > 0 {
		return out, fmt.Errorf("Fetch: %d of %d messages incomplete: %w", len(errs), len(ids), errors.Join(errs...))
	}
	return out, nil
}

func (g *GmailSource) partData(ctx context.Context, msgID string, part *gmail.MessagePart) ([]byte, error) {
	if part.Body == nil {
		return nil, fmt.Errorf("empty body")
	}
	if part.Body.AttachmentId == "" {
		return decodeBase64URL(part.Body.Data)
	}
	att, err := g.svc.Users.Messages.Attachments.Get("me", msgID, part.Body.AttachmentId).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	return decodeBase64URL(att.Data)
}

// pdfParts walks the MIME tree and returns the PDF attachment parts.
func pdfParts(part *gmail.MessagePart) []*gmail.MessagePart {
	if part == nil {
		return nil
	}
	if len(part.Parts) == 0 {
		if part.Filename != "" && isPDF(part.Filename, part.MimeType) {
			return []*gmail.MessagePart{part}
		}
		return nil
	}
	var out []*gmail.MessagePart
	for _, p := range part.Parts {
		out = append(out, pdfParts(p)...)
	}
	return out
}

// messageDate reads the Date header, falling back to the internal timestamp.
func messageDate(msg *gmail.Message) time.Time {
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			if h.Name != "Date" {
				continue
			}
			if t, err := netmail.ParseDate(h.Value); err == nil {
				return t
			}
		}
	}
	if msg.InternalDate > 0 {
		return time.UnixMilli(msg.InternalDate)
	}
	return time.Now()
}

// decodeBase64URL accepts padded and unpadded base64url.
func decodeBase64URL(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

package mail

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"statement.pdf", "statement.pdf"},
		{`a<b>c:d"e/f\g|h?i*j.pdf`, "a_b_c_d_e_f_g_h_i_j.pdf"},
		{"a//b.pdf", "a_b.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}

	long := SanitizeFilename(strings.Repeat("x", 300) + ".pdf")
	assert.Len(t, long, maxFilenameLen)
	assert.True(t, strings.HasSuffix(long, ".pdf"))
}

func TestStatementFilename(t *testing.T) {
	received := time.Date(2024, time.February, 3, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-02-03_Statement Jan.pdf", StatementFilename("Statement Jan.pdf", received))
}

func TestPDFParts(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: "aGk"}},
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{Filename: "statement.PDF", MimeType: "application/octet-stream"},
				},
			},
			{Filename: "logo.png", MimeType: "image/png"},
			{Filename: "extra", MimeType: "application/pdf"},
		},
	}

	parts := pdfParts(payload)
	require.Len(t, parts, 2)
	assert.Equal(t, "statement.PDF", parts[0].Filename)
	assert.Equal(t, "extra", parts[1].Filename)
	assert.Nil(t, pdfParts(nil))
}

func TestMessageDate(t *testing.T) {
	msg := &gmail.Message{
		Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
			{Name: "Subject", Value: "Your statement"},
			{Name: "Date", Value: "Mon, 05 Feb 2024 10:30:00 +0000"},
		}},
	}
	assert.Equal(t, time.Date(2024, time.February, 5, 10, 30, 0, 0, time.UTC), messageDate(msg).UTC())

	msg = &gmail.Message{InternalDate: 1706745600000}
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), messageDate(msg).UTC())
}

func TestDecodeBase64URL(t *testing.T) {
	raw := []byte("%PDF-1.7\xff")
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding} {
		got, err := decodeBase64URL(enc.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	}
}

func TestDirSource_Fetch(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/b.pdf", []byte("B"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/a.PDF", []byte("A"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/notes.txt", []byte("skip"), 0o644))
	require.NoError(t, fs.MkdirAll("/in/sub.pdf", 0o755))

	got, err := NewDirSource(fs, "/in").Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.PDF", got[0].Filename)
	assert.Equal(t, "A", string(got[0].Data))
	assert.Equal(t, "b.pdf", got[1].Filename)
	assert.False(t, got[0].ReceivedAt.IsZero())
}

func TestDirSource_MissingDir(t *testing.T) {
	_, err := NewDirSource(afero.NewMemMapFs(), "/nope").Fetch(context.Background())
	assert.Error(t, err)
}

// unreadableFs fails to open one named file.
type unreadableFs struct {
	afero.Fs
	name string
}

func (f unreadableFs) Open(name string) (afero.File, error) {
	if filepath.Base(name) == f.name {
		return nil, os.ErrPermission
	}
	return f.Fs.Open(name)
}

func TestDirSource_SkipsUnreadableFile(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/in/a.pdf", []byte("A"), 0o644))
	require.NoError(t, afero.WriteFile(base, "/in/b.pdf", []byte("B"), 0o644))
	require.NoError(t, afero.WriteFile(base, "/in/c.pdf", []byte("C"), 0o644))

	got, err := NewDirSource(unreadableFs{Fs: base, name: "b.pdf"}, "/in").Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
	require.Len(t, got, 2)
	assert.Equal(t, "a.pdf", got[0].Filename)
	assert.Equal(t, "c.pdf", got[1].Filename)
}

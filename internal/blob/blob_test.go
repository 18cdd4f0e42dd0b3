package blob

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewFSStore(afero.NewMemMapFs(), "/data")

	loc, err := s.Put(ctx, StatementKey("abc", "jan.pdf"), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "statements", "abc_jan.pdf"), loc)

	data, err := s.Get(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, s.Delete(ctx, loc))
	_, err = s.Get(ctx, loc)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, loc), "deleting a missing object is not an error")
}

func TestStatementKey(t *testing.T) {
	assert.Equal(t, "statements/0123456789abcdef_jan.pdf", StatementKey("0123456789abcdef0123", "jan.pdf"))
	assert.Equal(t, "statements/abc_jan.pdf", StatementKey("abc", "../../jan.pdf"))
	assert.Equal(t, "statements/jan.pdf", StatementKey("", "jan.pdf"))
}

func TestSplitGCSURI(t *testing.T) {
	tests := []struct {
		uri    string
		bucket string
		object string
		ok     bool
	}{
		{"gs://bucket/statements/jan.pdf", "bucket", "statements/jan.pdf", true},
		{"gs://bucket", "", "", false},
		{"gs:///file.pdf", "", "", false},
		{"/tmp/jan.pdf", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, ok := SplitGCSURI(tt.uri)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

func TestFilenameFromLocation(t *testing.T) {
	assert.Equal(t, "file.pdf", FilenameFromLocation("gs://bucket/folder/file.pdf"))
	assert.Equal(t, "file.pdf", FilenameFromLocation("/data/statements/file.pdf"))
}

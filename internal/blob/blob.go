// Package blob stores raw statement files.
package blob

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("blob not found")

// Store provides an interface for statement file storage.
// This interface enables mocking and testing of storage functionality.
type Store interface {
	// Put writes data under key and returns the location to persist
	// (a gs:// URI or a filesystem path).
	Put(ctx context.Context, key string, data []byte) (string, error)

	// Get reads the object at location, as returned by Put.
	Get(ctx context.Context, location string) ([]byte, error)

	// Delete removes the object at location. Missing objects are not an error.
	Delete(ctx context.Context, location string) error
}

// StatementKey returns the object key for a statement file. The key is
// prefixed with the start of the content checksum so files that share a name
// never overwrite each other.
func StatementKey(checksum, filename string) string {
	if len(checksum) > 16 {
		checksum = checksum[:16]
	}
	name := path.Base(filename)
	if checksum == "" {
		return "statements/" + name
	}
	return "statements/" + checksum + "_" + name
}

// SplitGCSURI splits "gs://bucket/path/to/file.pdf" into bucket and object.
// ok is false if uri is not a gs:// URI with an object path.
func SplitGCSURI(uri string) (bucket, object string, ok bool) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// FilenameFromLocation extracts the filename from a gs:// URI or path.
// e.g., "gs://bucket/folder/file.pdf" → "file.pdf"
func FilenameFromLocation(location string) string {
	if _, object, ok := SplitGCSURI(location); ok {
		return path.Base(object)
	}
	return path.Base(strings.ReplaceAll(location, "\\", "/"))
}

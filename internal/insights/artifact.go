package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/spf13/afero"
)

// ErrArtifactNotFound is returned by Load when no analysis was saved yet.
var ErrArtifactNotFound = errors.New("analysis artifact not found")

// DefaultArtifactPath is where FileArtifactStore writes by default.
const DefaultArtifactPath = "analysis_results.json"

// Artifact statuses.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusNotFound  = "not_found"
)

// Artifact is the persisted result of the latest analysis run.
type Artifact struct {
	Status    string     `json:"status"`
	Timestamp *time.Time `json:"timestamp"`
	Analysis  *string    `json:"analysis"`
	Error     string     `json:"error,omitempty"`
}

// NotFoundArtifact is served when nothing was saved yet.
func NotFoundArtifact() Artifact {
	return Artifact{Status: StatusNotFound}
}

// ArtifactStore persists the latest artifact.
type ArtifactStore interface {
	Load(ctx context.Context) (*Artifact, error)
	Save(ctx context.Context, a *Artifact) error
}

// FileArtifactStore keeps the artifact as a JSON file.
type FileArtifactStore struct {
	fs   afero.Fs
	path string
}

// NewFileArtifactStore creates a store at path on fs. An empty path means
// DefaultArtifactPath.
func NewFileArtifactStore(fs afero.Fs, path string) *FileArtifactStore {
	if path == "" {
		path = DefaultArtifactPath
	}
	return &FileArtifactStore{fs: fs, path: path}
}

// Load implements ArtifactStore.
func (s *FileArtifactStore) Load(ctx context.Context) (*Artifact, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Load: read %s: %w", s.path, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("Load: decode %s: %w", s.path, err)
	}
	return &a, nil
}

// Save implements ArtifactStore. The file is replaced via rename so readers
// never see a partial write.
func (s *FileArtifactStore) Save(ctx context.Context, a *Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("Save: encode: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("Save: mkdir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("Save: write: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("Save: rename: %w", err)
	}
	return nil
}

// GCSArtifactStore keeps the artifact as a single GCS object.
type GCSArtifactStore struct {
	client *storage.Client
	bucket string
	object string
}

// NewGCSArtifactStore creates a store writing gs://bucket/object.
func NewGCSArtifactStore(ctx context.Context, bucket, object string) (*GCSArtifactStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSArtifactStore: creating client: %w", err)
	}
	if object == "" {
		object = DefaultArtifactPath
	}
	return &GCSArtifactStore{client: client, bucket: bucket, object: object}, nil
}

// Close releases the client.
func (s *GCSArtifactStore) Close() error {
	return s.client.Close()
}

// Load implements ArtifactStore.
func (s *GCSArtifactStore) Load(ctx context.Context) (*Artifact, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Load: open gs://%s/%s: %w", s.bucket, s.object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Load: read: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("Load: decode: %w", err)
	}
	return &a, nil
}

// Save implements ArtifactStore.
func (s *GCSArtifactStore) Save(ctx context.Context, a *Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("Save: encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("Save: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Save: close: %w", err)
	}
	return nil
}

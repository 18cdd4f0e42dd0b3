package mail

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// DirSource reads statement PDFs saved in a local directory, such as a
// downloads folder.
type DirSource struct {
	fs  afero.Fs
	dir string
}

// NewDirSource returns a Source over the PDFs in dir.
func NewDirSource(fsys afero.Fs, dir string) *DirSource {
	return &DirSource{fs: fsys, dir: dir}
}

// Fetch implements Source. Files are returned in name order and dated by
// their modification time.
func (d *DirSource) Fetch(ctx context.Context) ([]Attachment, error) {
	entries, err := afero.ReadDir(d.fs, d.dir)
	if err != nil {
		return nil, fmt.Errorf("Fetch: read dir %s: %w", d.dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var (
		out  []Attachment
		errs []error
	)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if e.IsDir() || !isPDF(e.Name(), "") {
			continue
		}
		data, err := afero.ReadFile(d.fs, filepath.Join(d.dir, e.Name()))
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", e.Name(), err))
			continue
		}
		out = append(out, Attachment{
			Filename:   SanitizeFilename(e.Name()),
			Data:       data,
			ReceivedAt: e.ModTime(),
		})
	}
	if len(errs) > 0 {
		return out, fmt.Errorf("Fetch: %w", errors.Join(errs...))
	}
	return out, nil
}

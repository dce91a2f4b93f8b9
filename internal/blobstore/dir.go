package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Dir is a blob store rooted at a directory, for local development and
// air-gapped deployments
type Dir struct {
	fs   afero.Fs
	root string
}

// NewDir creates a store rooted at root on fs. A nil fs means the OS
// filesystem.
func NewDir(fs afero.Fs, root string) *Dir {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Dir{fs: afero.NewBasePathFs(fs, root), root: root}
}

func (d *Dir) Download(_ context.Context, path string) ([]byte, error) {
	data, err := afero.ReadFile(d.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", filepath.Join(d.root, path), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Join(d.root, path), err)
	}
	return data, nil
}

func (d *Dir) Upload(_ context.Context, path string, data []byte) error {
	if err := d.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(d.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Join(d.root, path), err)
	}
	return nil
}

func (d *Dir) Close() error { return nil }

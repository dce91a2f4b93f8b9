package ml

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"load-forecast/internal/metrics"
	"load-forecast/internal/models"
	"load-forecast/pkg/errors"
	"load-forecast/pkg/logger"
)

// BlobStore fetches the model artifact from remote storage
type BlobStore interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// CacheConfig holds configuration for the model cache
type CacheConfig struct {
	Fs        afero.Fs // local mirror filesystem, defaults to the OS filesystem
	Blobs     BlobStore
	BlobPath  string
	LocalPath string
}

// Cache loads the model at most once per process and hands out the same
// read-only *Model afterwards. A failed load is not memoized.
type Cache struct {
	fs        afero.Fs
	blobs     BlobStore
	blobPath  string
	localPath string

	mu    sync.Mutex // serializes loads
	model atomic.Pointer[Model]
	loads atomic.Int64

	log *logger.Logger
}

// NewCache creates a model cache
func NewCache(cfg CacheConfig) *Cache {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Cache{
		fs:        fs,
		blobs:     cfg.Blobs,
		blobPath:  cfg.BlobPath,
		localPath: cfg.LocalPath,
		log:       logger.Component("model_cache"),
	}
}

// Get returns the cached model, loading it on first use. Concurrent first
// callers wait for a single load.
func (c *Cache) Get(ctx context.Context) (*Model, error) {
	if m := c.model.Load(); m != nil {
		return m, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if m := c.model.Load(); m != nil {
		return m, nil
	}

	m, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.model.Store(m)
	return m, nil
}

// Load eagerly loads the model. Intended to run before the server accepts
// requests so that a broken artifact fails the process at startup.
func (c *Cache) Load(ctx context.Context) error {
	_, err := c.Get(ctx)
	return err
}

// Loaded returns the model if it has been loaded, without triggering a load
func (c *Cache) Loaded() (*Model, bool) {
	m := c.model.Load()
	return m, m != nil
}

// Info returns metadata of the loaded model
func (c *Cache) Info() (models.ModelInfo, bool) {
	m := c.model.Load()
	if m == nil {
		return models.ModelInfo{}, false
	}
	return m.Info(), true
}

// Loads returns how many load attempts have run (successful or not)
func (c *Cache) Loads() int64 {
	return c.loads.Load()
}

func (c *Cache) load(ctx context.Context) (*Model, error) {
	c.loads.Add(1)
	start := time.Now()
	source := "mirror"

	m, err := func() (*Model, error) {
		exists, err := afero.Exists(c.fs, c.localPath)
		if err != nil {
			return nil, errors.E(errors.KindModelFetch, "model.mirror", err)
		}

		if !exists {
			source = "blob"
			if err := c.fetch(ctx); err != nil {
				return nil, err
			}
		}

		data, err := afero.ReadFile(c.fs, c.localPath)
		if err != nil {
			return nil, errors.E(errors.KindModelFetch, "model.mirror", err)
		}

		artifact, err := DecodeArtifact(data)
		if err != nil {
			if source == "blob" {
				// let a corrected artifact be fetched on the next attempt
				_ = c.fs.Remove(c.localPath)
			}
			return nil, err
		}

		return NewModel(artifact)
	}()

	duration := time.Since(start)
	metrics.RecordModelLoad(source, duration, err)

	if err != nil {
		c.log.Errorw("Model load failed", "source", source, "local_path", c.localPath, "error", err)
		return nil, err
	}

	m.info.Source = source
	info := m.Info()
	c.log.Infow("Model loaded into memory",
		"source", source,
		"input_size", info.InputSize,
		"hidden_size", info.HiddenSize,
		"output_size", info.OutputSize,
		"activation", info.Activation,
		"mse", info.MSE,
		"r2", info.R2,
		"duration", duration,
	)
	return m, nil
}

// fetch downloads the artifact and writes it to the mirror path. The file
// only appears under its final name once fully written.
func (c *Cache) fetch(ctx context.Context) error {
	if c.blobs == nil {
		return errors.E(errors.KindModelFetch, "model.download",
			fmt.Errorf("no local artifact at %s and no blob store configured", c.localPath))
	}

	data, err := c.blobs.Download(ctx, c.blobPath)
	if err != nil {
		return errors.E(errors.KindModelFetch, "model.download", err)
	}

	if dir := filepath.Dir(c.localPath); dir != "." {
		if err := c.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.E(errors.KindModelFetch, "model.mirror", err)
		}
	}

	tmp := c.localPath + ".partial"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		_ = c.fs.Remove(tmp)
		return errors.E(errors.KindModelFetch, "model.mirror", err)
	}
	if err := c.fs.Rename(tmp, c.localPath); err != nil {
		_ = c.fs.Remove(tmp)
		return errors.E(errors.KindModelFetch, "model.mirror", err)
	}

	c.log.Infow("Model downloaded from blob store", "blob_path", c.blobPath, "bytes", len(data))
	return nil
}

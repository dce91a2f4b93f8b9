// Package blobstore provides the remote stores the model artifact is
// fetched from.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"load-forecast/pkg/logger"
)

// ErrNotFound is returned when the requested object does not exist
var ErrNotFound = errors.New("blob not found")

// GCS reads and writes objects in one Google Cloud Storage bucket using
// application default credentials
type GCS struct {
	client *storage.Client
	bucket string
	log    *logger.Logger
}

// NewGCS creates a GCS client for bucket
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCS{
		client: client,
		bucket: bucket,
		log:    logger.Component("gcs"),
	}, nil
}

// Download returns the full contents of the object at path
func (g *GCS) Download(ctx context.Context, path string) ([]byte, error) {
	rc, err := g.client.Bucket(g.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("gs://%s/%s: %w", g.bucket, path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", g.bucket, path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", g.bucket, path, err)
	}

	g.log.Infow("Downloaded blob", "bucket", g.bucket, "path", path, "bytes", len(data))
	return data, nil
}

// Upload writes data to the object at path, replacing any existing object
func (g *GCS) Upload(ctx context.Context, path string, data []byte) error {
	w := g.client.Bucket(g.bucket).Object(path).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", g.bucket, path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize gs://%s/%s: %w", g.bucket, path, err)
	}

	g.log.Infow("Uploaded blob", "bucket", g.bucket, "path", path, "bytes", len(data))
	return nil
}

// Close releases the storage client
func (g *GCS) Close() error {
	return g.client.Close()
}

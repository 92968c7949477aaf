// Package storage is the blob store behind resource uploads. It accepts a
// file payload and returns nothing but errors; the key handed in is the
// stable reference persisted on the resource row.
package storage

import (
	"context"
	"io"

	"tasktide/internal/config"
)

type BlobStore interface {
	Save(ctx context.Context, key string, body io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// New picks the S3 backend when a bucket is configured, the local-disk
// backend otherwise.
func New(cfg config.Config) (BlobStore, error) {
	if cfg.StorageBucket != "" {
		return NewS3Store(cfg.StorageBucket, cfg.StorageRegion, cfg.StorageEndpoint)
	}
	return NewLocalStore(cfg.StorageDir)
}

package filestore

import (
	"context"
	"fmt"
	"io"

	"condor-raat/config"
)

// Store keeps attachment bytes. The incident registry persists only the
// returned reference plus caller-declared metadata; it never reads the
// bytes back except to stream a download.
type Store interface {
	Save(ctx context.Context, r io.Reader, contentType string) (string, int64, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// New builds the configured store: a local directory by default, or an
// S3-compatible bucket (AWS or MinIO) for clustered installs.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.Dir)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

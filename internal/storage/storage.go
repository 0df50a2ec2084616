package storage

import (
	"context"
	"errors"

	"github.com/BerylCAtieno/docmind-api/internal/config"
)

// ErrNotFound is returned by Download when no document is stored under the key.
var ErrNotFound = errors.New("object not found")

// Storage holds uploaded PDFs so sessions can be restored after a restart.
// Delete of a missing key is not an error.
type Storage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// New returns the storage selected by cfg.StorageDriver.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		return NewMemoryStorage(), nil
	}
	return NewS3Storage(ctx, cfg)
}

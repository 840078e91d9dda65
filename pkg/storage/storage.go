// Package storage keeps rendered report exports and issues signed download tokens.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when an export object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Store is implemented by the local filesystem and MinIO backends.
type Store interface {
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	CleanupOlderThan(ctx context.Context, ttl time.Duration) ([]string, error)
}

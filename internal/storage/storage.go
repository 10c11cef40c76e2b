package storage

import (
	"context"
	"io"

	"github.com/dev-tams/mydumpkit/internal/storage/local"
)

// ErrNotADirectory is returned when a directory target exists but is not a
// directory, or when a directory to prune is missing.
var ErrNotADirectory = local.ErrNotADirectory

type Storage interface {
	Name() string
	// Prepare makes the destination ready for writes, creating it if
	// missing.
	Prepare(ctx context.Context) error
	// OpenWriter starts a new object at key. The object replaces any
	// existing one when the writer is closed. The returned string is its
	// location (path, s3://bucket/key).
	OpenWriter(ctx context.Context, key string) (io.WriteCloser, string, error)
}

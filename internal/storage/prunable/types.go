package prunable

import (
	"context"
	"time"
)

type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Prunable is implemented by storage backends whose objects can be listed
// and deleted by the retention pruner.
type Prunable interface {
	// List returns the regular objects directly under the storage root.
	List(ctx context.Context) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

package backup

import (
	"context"
	"iter"
)

// Dumper lists databases and streams a dump of one of them. The sequence
// returned by Dump ends after the first error; breaking out of it early
// stops the dump and releases its resources.
type Dumper interface {
	Databases(ctx context.Context) ([]string, error)
	Dump(ctx context.Context, name string) iter.Seq2[[]byte, error]
}

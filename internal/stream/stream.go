package stream

import (
	"context"
	"fmt"
	"iter"
	"regexp"

	"github.com/dev-tams/mydumpkit/internal/backup"
	"github.com/dev-tams/mydumpkit/internal/compression"
	"github.com/dev-tams/mydumpkit/internal/logging"
)

// Chunk is a piece of (possibly compressed) dump output. DB is the database
// it belongs to, or "" in single-stream mode. Chunks of one database are
// contiguous and a database never reappears after the next one starts.
type Chunk struct {
	Data []byte
	DB   string
}

// Filter selects databases: a name is kept when Include matches somewhere
// in it (or Include is nil) and Exclude does not (or Exclude is nil).
type Filter struct {
	Include *regexp.Regexp
	Exclude *regexp.Regexp
}

func (f Filter) Match(name string) bool {
	if f.Include != nil && !f.Include.MatchString(name) {
		return false
	}
	if f.Exclude != nil && f.Exclude.MatchString(name) {
		return false
	}
	return true
}

// Composer ties a Dumper and a compressor together into one lazy stream.
type Composer struct {
	Dumper        backup.Dumper
	Filter        Filter
	NewCompressor compression.Factory
	// SingleStream merges every database into one compressed stream with no
	// labels. Otherwise each database is compressed independently.
	SingleStream bool
}

// Stream yields labeled chunks in enumeration order. Empty compressor
// outputs are never yielded. The sequence ends after the first error.
func (c *Composer) Stream(ctx context.Context) iter.Seq2[Chunk, error] {
	if c.SingleStream {
		return c.singleStream(ctx)
	}
	return c.perDBStream(ctx)
}

// Databases returns the enumerated names that pass the filter, in order.
func (c *Composer) Databases(ctx context.Context) ([]string, error) {
	names, err := c.Dumper.Databases(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		if !c.Filter.Match(name) {
			logging.L().Debug().Str("db", name).Msg("skip: filtered out")
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

func (c *Composer) perDBStream(ctx context.Context) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		names, err := c.Databases(ctx)
		if err != nil {
			yield(Chunk{}, err)
			return
		}

		for _, db := range names {
			// one compressed stream per database
			comp, err := c.NewCompressor()
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			if !c.pump(ctx, comp, db, db, yield) {
				return
			}
			if !flush(comp, db, yield) {
				return
			}
		}
	}
}

func (c *Composer) singleStream(ctx context.Context) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		comp, err := c.NewCompressor()
		if err != nil {
			yield(Chunk{}, err)
			return
		}

		names, err := c.Databases(ctx)
		if err != nil {
			yield(Chunk{}, err)
			return
		}

		for _, db := range names {
			if !c.pump(ctx, comp, db, "", yield) {
				return
			}
		}
		flush(comp, "", yield)
	}
}

// pump streams one database dump through comp, labeling output with label.
// It returns false when the sequence must stop.
func (c *Composer) pump(ctx context.Context, comp compression.Compressor, db, label string, yield func(Chunk, error) bool) bool {
	logging.L().Debug().Str("db", db).Msg("dump start")
	for data, err := range c.Dumper.Dump(ctx, db) {
		if err != nil {
			yield(Chunk{}, fmt.Errorf("dump %s: %w", db, err))
			return false
		}
		out, err := comp.Compress(data)
		if err != nil {
			yield(Chunk{}, fmt.Errorf("compress %s: %w", db, err))
			return false
		}
		if len(out) == 0 {
			continue
		}
		if !yield(Chunk{Data: out, DB: label}, nil) {
			return false
		}
	}
	return true
}

func flush(comp compression.Compressor, label string, yield func(Chunk, error) bool) bool {
	out, err := comp.Flush()
	if err != nil {
		yield(Chunk{}, fmt.Errorf("flush compressor: %w", err))
		return false
	}
	if len(out) == 0 {
		return true
	}
	return yield(Chunk{Data: out, DB: label}, nil)
}

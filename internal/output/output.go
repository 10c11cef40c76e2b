package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/dev-tams/mydumpkit/internal/config"
	"github.com/dev-tams/mydumpkit/internal/logging"
	"github.com/dev-tams/mydumpkit/internal/storage"
	"github.com/dev-tams/mydumpkit/internal/stream"
)

var stdout io.Writer = os.Stdout

// ErrInvalidName is returned in directory mode for a database name that
// cannot be used as a single file name.
var ErrInvalidName = errors.New("database name is not usable as a file name")

// Written describes one finished per-database object.
type Written struct {
	Location string
	DB       string
	Bytes    int64
}

// WriteToFile writes every chunk in arrival order to name, or to standard
// output when name is "-". Labels are ignored.
func WriteToFile(chunks iter.Seq2[stream.Chunk, error], name string) (n int64, err error) {
	var w io.Writer = stdout
	if name != config.StdoutTarget {
		f, ferr := os.Create(name)
		if ferr != nil {
			return 0, fmt.Errorf("create %s: %w", name, ferr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close %s: %w", name, cerr)
			}
		}()
		w = f
	}

	for c, cerr := range chunks {
		if cerr != nil {
			return n, cerr
		}
		m, werr := w.Write(c.Data)
		n += int64(m)
		if werr != nil {
			return n, fmt.Errorf("write %s: %w", name, werr)
		}
	}

	logging.L().Debug().Str("target", name).Int64("bytes", n).Msg("wrote")
	return n, nil
}

// WriteToDir routes chunks to one object per label, named <label><suffix>.
// An object is opened on the first chunk of a new label and closed when the
// label changes or the chunks run out; its Written record is yielded after it
// is closed, once per distinct label, in first-seen order.
func WriteToDir(ctx context.Context, chunks iter.Seq2[stream.Chunk, error], st storage.Storage, suffix string) iter.Seq2[Written, error] {
	return func(yield func(Written, error) bool) {
		if err := st.Prepare(ctx); err != nil {
			yield(Written{}, err)
			return
		}

		var (
			cur  io.WriteCloser
			open Written
		)
		defer func() {
			if cur != nil {
				_ = cur.Close()
			}
		}()

		finish := func() bool {
			err := cur.Close()
			cur = nil
			if err != nil {
				yield(Written{}, fmt.Errorf("finalize %s: %w", open.Location, err))
				return false
			}
			logging.L().Debug().Str("db", open.DB).Str("location", open.Location).Int64("bytes", open.Bytes).Msg("closed")
			return yield(open, nil)
		}

		for c, err := range chunks {
			if err != nil {
				yield(Written{}, err)
				return
			}

			if cur == nil || c.DB != open.DB {
				if cur != nil && !finish() {
					return
				}
				key, err := objectKey(c.DB, suffix)
				if err != nil {
					yield(Written{}, err)
					return
				}
				w, loc, err := st.OpenWriter(ctx, key)
				if err != nil {
					yield(Written{}, fmt.Errorf("open %s: %w", key, err))
					return
				}
				logging.L().Debug().Str("db", c.DB).Str("location", loc).Msg("opened")
				cur = w
				open = Written{Location: loc, DB: c.DB}
			}

			n, err := cur.Write(c.Data)
			open.Bytes += int64(n)
			if err != nil {
				yield(Written{}, fmt.Errorf("write %s: %w", open.Location, err))
				return
			}
		}

		if cur != nil {
			finish()
		}
	}
}

func objectKey(db, suffix string) (string, error) {
	if db == "" || db == "." || db == ".." || strings.ContainsAny(db, `/\`) {
		return "", fmt.Errorf("%q: %w", db, ErrInvalidName)
	}
	return db + suffix, nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"

	"github.com/dev-tams/mydumpkit/internal/storage/prunable"
)

// ApplyRetention keeps the keep most recently modified objects whose base
// name matches pattern and deletes the others. keep <= 0 deletes nothing.
// Every deletion is attempted; failures are joined into the returned error.
func ApplyRetention(ctx context.Context, pr prunable.Prunable, pattern *regexp.Regexp, keep int) ([]string, error) {
	objects, err := pr.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("retention list: %w", err)
	}
	if keep <= 0 {
		return nil, nil
	}

	matched := make([]prunable.ObjectInfo, 0, len(objects))
	for _, o := range objects {
		if pattern.MatchString(path.Base(o.Key)) {
			matched = append(matched, o)
		}
	}
	if len(matched) <= keep {
		return nil, nil
	}

	// newest first
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ModTime.After(matched[j].ModTime)
	})

	var (
		deleted []string
		errs    []error
	)
	for _, o := range matched[keep:] {
		if err := pr.Delete(ctx, o.Key); err != nil {
			errs = append(errs, fmt.Errorf("retention delete: %w", err))
			continue
		}
		deleted = append(deleted, o.Key)
	}
	return deleted, errors.Join(errs...)
}

// expirePattern matches the timestamped dumps of db written with typeSuffix,
// e.g. shop-20260218120000.sql.bz2.
func expirePattern(db, typeSuffix string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(db) + "-[0-9]+" + regexp.QuoteMeta(typeSuffix) + "$")
}

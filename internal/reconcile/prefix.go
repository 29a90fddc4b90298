// Package reconcile refreshes the leading rows of a mirror listing from the
// gateway. Rows past the limit are served from the mirror as last synced.
package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// DefaultLimit is how many rows a list call refreshes remotely.
const DefaultLimit = 10

// Refresher pulls remote truth for one row and returns the merged row.
type Refresher[T any] func(ctx context.Context, row T) (T, error)

// ListResult is a page of mirror rows. Items[:ReconciledThrough] were
// refreshed against the gateway, except the rows named in Stale whose refresh
// failed and which keep their cached view. The rest come straight from the mirror.
type ListResult[T any] struct {
	Items             []T      `json:"items"`
	ReconciledThrough int      `json:"reconciled_through"`
	Stale             []string `json:"stale,omitempty"`
	NextCursor        string   `json:"next_cursor,omitempty"`
}

// Prefix refreshes up to limit leading rows concurrently. A failing row never
// aborts the others; the combined failures are returned for logging alongside
// a result that is always usable.
func Prefix[T any](ctx context.Context, rows []T, limit int, key func(T) string, refresh Refresher[T]) (ListResult[T], error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	n := min(limit, len(rows))

	items := make([]T, len(rows))
	copy(items, rows)
	errs := make([]error, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(n, 1))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			merged, err := refresh(gctx, items[i])
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", key(items[i]), err)
				return nil
			}
			items[i] = merged
			return nil
		})
	}
	_ = g.Wait()

	result := ListResult[T]{Items: items, ReconciledThrough: n}
	var combined error
	for i, err := range errs {
		if err == nil {
			continue
		}
		result.Stale = append(result.Stale, key(items[i]))
		combined = multierr.Append(combined, err)
	}
	return result, combined
}

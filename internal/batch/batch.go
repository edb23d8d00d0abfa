// Package batch runs independent API calls in small parallel batches with a
// pause between batches, keeping under the content API's rate limits.
package batch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
)

type Options struct {
	// Size is the number of calls running at once. Defaults to
	// constants.DefaultBatchSize.
	Size int
	// Pause is the wait between two batches. Zero disables pacing.
	Pause time.Duration
}

// Run calls fn for every item, Size items at a time. The first error
// returned by fn cancels the remaining calls and is returned by Run; fn
// should report per-item failures it can tolerate through other means.
func Run[T any](ctx context.Context, items []T, opts Options, fn func(ctx context.Context, index int, item T) error) error {
	size := opts.Size
	if size <= 0 {
		size = constants.DefaultBatchSize
	}

	for start := 0; start < len(items); start += size {
		if start > 0 && opts.Pause > 0 {
			if err := sleep(ctx, opts.Pause); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+size, len(items))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(size)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				return fn(gctx, i, items[i])
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package costs

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// flight collapses concurrent identical aggregations into one run. Waiters
// give up when their own context ends.
type flight struct {
	group singleflight.Group
}

func (f *flight) do(ctx context.Context, key string, fn func(context.Context) (Result, error)) (Result, bool, error) {
	ch := f.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return Result{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Shared, res.Err
		}
		return res.Val.(Result), res.Shared, nil
	}
}

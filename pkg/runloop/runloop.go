// Package runloop runs a function immediately and then on a fixed period
// until the context is done.
package runloop

import (
	"context"
	"time"
)

// RunLoop blocks, invoking f now and after every period. The next tick
// waits for f to return, so a slow run never overlaps the next one. The
// context error is returned on shutdown.
func RunLoop(ctx context.Context, f func(), period time.Duration) error {
	t := time.NewTicker(period)
	defer t.Stop()

	for {
		f()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			// continue
		}
	}
}

package browser

import (
	"context"
	"time"
)

// pollSpec bounds a DOM poll: attempts probes spaced interval apart.
type pollSpec struct {
	attempts int
	interval time.Duration
}

var (
	pollPageRoot   = pollSpec{attempts: 16, interval: 500 * time.Millisecond}
	pollExpand     = pollSpec{attempts: 3, interval: 500 * time.Millisecond}
	pollAffordance = pollSpec{attempts: 5, interval: 1 * time.Second}
	pollComposer   = pollSpec{attempts: 10, interval: 1 * time.Second}
	pollEditable   = pollSpec{attempts: 5, interval: 500 * time.Millisecond}
)

// pollUntil runs probe up to spec.attempts times, sleeping spec.interval
// between misses. A probe error counts as a miss; the last error is returned
// only when no attempt succeeded. Returns false with nil error when the
// predicate simply never held.
func pollUntil(ctx context.Context, spec pollSpec, probe func(context.Context) (bool, error)) (bool, error) {
	var lastErr error
	for i := 0; i < spec.attempts; i++ {
		ok, err := probe(ctx)
		if err != nil {
			lastErr = err
		} else if ok {
			return true, nil
		}
		if i < spec.attempts-1 {
			select {
			case <-time.After(spec.interval):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
	}
	return false, lastErr
}

// sleep is a cancellable fixed delay used for settle waits between probes.
func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

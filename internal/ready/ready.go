// Package ready implements readiness probes for orchestrated services. A
// probe is polled at a fixed interval until it succeeds, the budget runs
// out, or the context is cancelled.
package ready

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is the poll interval. Probes are cheap; a fixed interval
// keeps shutdown latency bounded by a known constant, so there is no backoff.
const DefaultInterval = 1 * time.Second

// ErrTimeout is returned by Poll when the budget is exhausted before the
// checker succeeds. Callers use errors.Is to distinguish it from context
// cancellation.
var ErrTimeout = errors.New("readiness timeout")

// Checker performs a single readiness probe. A probe error means "not ready
// yet", not failure — Poll retries it on the next tick.
type Checker interface {
	Check(ctx context.Context) error
}

// Poll calls c.Check every interval until it succeeds or timeout elapses.
// The context is consulted on every tick, so cancellation interrupts the
// wait within one interval. Returns nil on success, ErrTimeout (wrapped,
// with the last probe error) on budget exhaustion, or ctx.Err() on
// cancellation.
func Poll(ctx context.Context, c Checker, interval, timeout time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	var lastErr error
	for {
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		err := c.Check(probeCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w after %s (last probe error: %v)", ErrTimeout, timeout, lastErr)
		case <-tick.C:
		}
	}
}

// All combines checkers; it succeeds only when every checker succeeds.
func All(checkers ...Checker) Checker {
	return allChecker(checkers)
}

type allChecker []Checker

func (a allChecker) Check(ctx context.Context) error {
	for _, c := range a {
		if err := c.Check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Package source produces typed events for the pipeline. Adapters are
// single-use: Run consumes the instance and a fresh one is created to
// restart a feed. External adapters turn transient provider failures into
// skipped ticks with local backoff, never into fatal errors.
package source

import (
	"context"
	"time"

	"trading-buddy/internal/event"
)

// Sink accepts events from an adapter. The event bus satisfies it.
type Sink interface {
	Submit(ctx context.Context, ev event.Event) error
}

// Adapter is a single-use event producer, infinite until ctx is cancelled.
type Adapter interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}

// backoff implements per-adapter retry pacing: doubles on failure up to a
// cap, resets on success.
type backoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = 30 * time.Second
	}
	return &backoff{base: base, max: max}
}

func (b *backoff) next() time.Duration {
	if b.current == 0 {
		b.current = b.base
	} else {
		b.current *= 2
		if b.current > b.max {
			b.current = b.max
		}
	}
	return b.current
}

func (b *backoff) reset() { b.current = 0 }

// sleep waits for d or until ctx ends.
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

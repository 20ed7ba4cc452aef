// Package bus is the fan-in point between source adapters and the stream
// processor. A single buffered channel preserves per-producer arrival order;
// a full bus applies backpressure to producers rather than dropping events.
package bus

import (
	"context"

	"trading-buddy/internal/event"
)

// Bus carries inbound events to the processor.
type Bus struct {
	ch chan event.Event
}

// New constructs a bus with the given buffer size.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Bus{ch: make(chan event.Event, buffer)}
}

// Submit enqueues an event, blocking while the bus is full until ctx ends.
func (b *Bus) Submit(ctx context.Context, ev event.Event) error {
	select {
	case b.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events exposes the consumer side for the stream processor.
func (b *Bus) Events() <-chan event.Event {
	return b.ch
}

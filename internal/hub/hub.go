// Package hub fans processed events and alerts out to live subscribers over
// two logical channels. Slow or broken subscribers never block publishers or
// each other: each subscriber owns a bounded queue with a drop-oldest policy.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Channel names the two subscriber groups.
type Channel string

const (
	ChannelMarket Channel = "market"
	ChannelAlerts Channel = "alerts"
)

// Subscriber is one registered consumer with a bounded outbound queue.
type Subscriber struct {
	ch      Channel
	queue   chan []byte
	closed  chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

// Dropped reports how many queued items were discarded for this subscriber.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

// Out exposes the subscriber's delivery queue.
func (s *Subscriber) Out() <-chan []byte { return s.queue }

// Done is closed when the subscriber is deregistered.
func (s *Subscriber) Done() <-chan struct{} { return s.closed }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.closed) })
}

// Hub maintains the market and alerts subscriber groups.
type Hub struct {
	mu        sync.RWMutex
	groups    map[Channel]map[*Subscriber]struct{}
	queueSize int
	logger    zerolog.Logger
}

// New constructs a hub whose subscribers buffer up to queueSize messages.
func New(queueSize int, logger zerolog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Hub{
		groups: map[Channel]map[*Subscriber]struct{}{
			ChannelMarket: make(map[*Subscriber]struct{}),
			ChannelAlerts: make(map[*Subscriber]struct{}),
		},
		queueSize: queueSize,
		logger:    logger.With().Str("component", "hub").Logger(),
	}
}

// Subscribe registers a new subscriber on a channel.
func (h *Hub) Subscribe(ch Channel) *Subscriber {
	sub := &Subscriber{
		ch:     ch,
		queue:  make(chan []byte, h.queueSize),
		closed: make(chan struct{}),
	}
	h.mu.Lock()
	h.groups[ch][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe deregisters a subscriber and discards its queue. Safe to call
// more than once and concurrently with Publish.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	delete(h.groups[sub.ch], sub)
	h.mu.Unlock()
	sub.close()
}

// Publish delivers payload to every subscriber on the channel. It never
// blocks: when a subscriber's queue is full the oldest queued item is dropped
// in favour of the new one.
func (h *Hub) Publish(ch Channel, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.groups[ch] {
		select {
		case sub.queue <- payload:
		default:
			select {
			case <-sub.queue:
				sub.dropped.Add(1)
			default:
			}
			select {
			case sub.queue <- payload:
			default:
				// Queue refilled between the drop and the retry; skip.
			}
		}
	}
}

// SubscriberCount reports the current group size for a channel.
func (h *Hub) SubscriberCount(ch Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[ch])
}

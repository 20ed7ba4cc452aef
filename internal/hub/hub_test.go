package hub

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

func testHub(queue int) *Hub {
	return New(queue, zerolog.Nop())
}

func TestPublishFanOutPreservesOrder(t *testing.T) {
	h := testHub(16)
	subs := []*Subscriber{
		h.Subscribe(ChannelMarket),
		h.Subscribe(ChannelMarket),
		h.Subscribe(ChannelMarket),
	}

	for i := 0; i < 10; i++ {
		h.Publish(ChannelMarket, []byte(fmt.Sprintf("msg-%d", i)))
	}

	for si, sub := range subs {
		for i := 0; i < 10; i++ {
			got := string(<-sub.Out())
			want := fmt.Sprintf("msg-%d", i)
			if got != want {
				t.Fatalf("subscriber %d message %d: got %q, want %q", si, i, got, want)
			}
		}
	}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	h := testHub(2)
	sub := h.Subscribe(ChannelAlerts)

	h.Publish(ChannelAlerts, []byte("a"))
	h.Publish(ChannelAlerts, []byte("b"))
	h.Publish(ChannelAlerts, []byte("c"))

	if got := string(<-sub.Out()); got != "b" {
		t.Fatalf("oldest message should be dropped, first delivery got %q", got)
	}
	if got := string(<-sub.Out()); got != "c" {
		t.Fatalf("newest message should be kept, got %q", got)
	}
	if sub.Dropped() != 1 {
		t.Fatalf("drop counter should be 1, got %d", sub.Dropped())
	}
}

func TestSlowSubscriberDoesNotAffectOthers(t *testing.T) {
	h := testHub(1)
	slow := h.Subscribe(ChannelMarket)
	fast := h.Subscribe(ChannelMarket)

	h.Publish(ChannelMarket, []byte("one"))
	// fast drains, slow does not.
	if got := string(<-fast.Out()); got != "one" {
		t.Fatalf("fast subscriber got %q", got)
	}
	h.Publish(ChannelMarket, []byte("two"))
	h.Publish(ChannelMarket, []byte("three"))

	if got := string(<-fast.Out()); got != "two" {
		t.Fatalf("fast subscriber should keep receiving, got %q", got)
	}
	if got := string(<-fast.Out()); got != "three" {
		t.Fatalf("fast subscriber should keep receiving, got %q", got)
	}
	if got := string(<-slow.Out()); got != "three" {
		t.Fatalf("slow subscriber should hold only the newest message, got %q", got)
	}
}

func TestChannelsAreIsolated(t *testing.T) {
	h := testHub(4)
	market := h.Subscribe(ChannelMarket)
	alerts := h.Subscribe(ChannelAlerts)

	h.Publish(ChannelMarket, []byte("tick"))

	if got := string(<-market.Out()); got != "tick" {
		t.Fatalf("market subscriber got %q", got)
	}
	select {
	case payload := <-alerts.Out():
		t.Fatalf("alerts subscriber should receive nothing, got %q", payload)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	h := testHub(4)
	sub := h.Subscribe(ChannelMarket)
	if h.SubscriberCount(ChannelMarket) != 1 {
		t.Fatalf("subscriber count should be 1, got %d", h.SubscriberCount(ChannelMarket))
	}

	h.Unsubscribe(sub)
	if h.SubscriberCount(ChannelMarket) != 0 {
		t.Fatalf("subscriber count should be 0, got %d", h.SubscriberCount(ChannelMarket))
	}
	select {
	case <-sub.Done():
	default:
		t.Fatal("Done should be closed after Unsubscribe")
	}

	// Publishing after unsubscribe must not panic or deliver.
	h.Publish(ChannelMarket, []byte("late"))
	select {
	case payload := <-sub.Out():
		t.Fatalf("unsubscribed consumer should receive nothing, got %q", payload)
	default:
	}

	h.Unsubscribe(sub) // idempotent
}

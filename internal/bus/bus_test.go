package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trading-buddy/internal/event"
)

func TestSubmitAndDrainOrder(t *testing.T) {
	b := New(4)
	ctx := context.Background()

	ticks := []event.PriceTick{
		{Symbol: "TSLA", Price: decimal.NewFromInt(400), TS: time.Now()},
		{Symbol: "TSLA", Price: decimal.NewFromInt(401), TS: time.Now()},
	}
	for _, tick := range ticks {
		if err := b.Submit(ctx, tick); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	for i, want := range ticks {
		got := (<-b.Events()).(event.PriceTick)
		if got.Price.Cmp(want.Price) != 0 {
			t.Fatalf("event %d out of order: got %s, want %s", i, got.Price, want.Price)
		}
	}
}

func TestSubmitBlocksUntilCancelledWhenFull(t *testing.T) {
	b := New(1)
	ctx := context.Background()
	tick := event.PriceTick{Symbol: "TSLA", Price: decimal.NewFromInt(1), TS: time.Now()}

	if err := b.Submit(ctx, tick); err != nil {
		t.Fatalf("first submit should succeed: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := b.Submit(cancelCtx, tick); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("submit on a full bus should block until ctx ends, got %v", err)
	}
}

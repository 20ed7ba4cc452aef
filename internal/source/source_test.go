package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading-buddy/internal/event"
)

func noopLogger() zerolog.Logger { return zerolog.Nop() }

// collector captures submitted events and cancels after a target count.
type collector struct {
	events []event.Event
	target int
	cancel context.CancelFunc
}

func (c *collector) Submit(ctx context.Context, ev event.Event) error {
	c.events = append(c.events, ev)
	if len(c.events) >= c.target {
		c.cancel()
	}
	return nil
}

func collect(t *testing.T, adapter Adapter, target int) []event.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sink := &collector{target: target, cancel: cancel}
	_ = adapter.Run(ctx, sink)
	if len(sink.events) < target {
		t.Fatalf("expected at least %d events, got %d", target, len(sink.events))
	}
	return sink.events
}

func fastOptions() SyntheticOptions {
	return SyntheticOptions{
		Symbols:       []string{"TSLA", "AAPL"},
		Customers:     []string{"cust_1", "cust_2"},
		Seed:          7,
		PriceInterval: time.Millisecond,
		NewsInterval:  time.Millisecond,
		PayInterval:   time.Millisecond,
	}
}

func TestSyntheticPricesBoundedAndValid(t *testing.T) {
	opts := fastOptions()
	opts.PriceFloor = 10
	opts.PriceCeiling = 500

	events := collect(t, NewSyntheticPrices(opts, noopLogger()), 40)
	floor := decimal.NewFromInt(10)
	ceiling := decimal.NewFromInt(500)
	for _, ev := range events {
		tick, ok := ev.(event.PriceTick)
		if !ok {
			t.Fatalf("price generator emitted %T", ev)
		}
		if err := tick.Validate(); err != nil {
			t.Fatalf("generated tick should validate: %v", err)
		}
		if tick.Price.LessThan(floor) || tick.Price.GreaterThan(ceiling) {
			t.Fatalf("price %s outside [%s, %s]", tick.Price, floor, ceiling)
		}
	}
}

func TestSyntheticPricesDeterministicWithSeed(t *testing.T) {
	a := collect(t, NewSyntheticPrices(fastOptions(), noopLogger()), 10)
	b := collect(t, NewSyntheticPrices(fastOptions(), noopLogger()), 10)
	for i := range a {
		pa, pb := a[i].(event.PriceTick), b[i].(event.PriceTick)
		if pa.Symbol != pb.Symbol || pa.Price.Cmp(pb.Price) != 0 {
			t.Fatalf("same seed should replay the same walk: %v vs %v", pa, pb)
		}
	}
}

func TestSyntheticNewsEmitsClassifiedHeadlines(t *testing.T) {
	events := collect(t, NewSyntheticNews(fastOptions(), noopLogger()), 5)
	for _, ev := range events {
		item, ok := ev.(event.NewsItem)
		if !ok {
			t.Fatalf("news generator emitted %T", ev)
		}
		if err := item.Validate(); err != nil {
			t.Fatalf("generated news should validate: %v", err)
		}
		if item.Sentiment == "" {
			t.Fatal("generated news should carry a sentiment")
		}
	}
}

func TestJumpNewsMatchesDirection(t *testing.T) {
	g := NewSyntheticNews(fastOptions(), noopLogger())
	ts := time.Now()

	up := g.JumpNews("TSLA", decimal.NewFromFloat(5.2), ts)
	if up.Sentiment != event.SentimentPositive {
		t.Fatalf("upward jump should be positive, got %s", up.Sentiment)
	}
	if up.Symbol != "TSLA" || !up.TS.Equal(ts) {
		t.Fatalf("jump news should carry symbol and timestamp: %+v", up)
	}

	down := g.JumpNews("TSLA", decimal.NewFromFloat(-4.1), ts)
	if down.Sentiment != event.SentimentNegative {
		t.Fatalf("downward jump should be negative, got %s", down.Sentiment)
	}
}

func TestSyntheticPaymentsSpike(t *testing.T) {
	opts := fastOptions()
	opts.SpikeEvery = 3

	events := collect(t, NewSyntheticPayments(opts, nil, noopLogger()), 30)
	sawSpike := false
	for _, ev := range events {
		p, ok := ev.(event.Payment)
		if !ok {
			t.Fatalf("payment generator emitted %T", ev)
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("generated payment should validate: %v", err)
		}
		if p.Amount.GreaterThan(decimal.NewFromInt(50000)) {
			sawSpike = true
		}
	}
	if !sawSpike {
		t.Fatal("spike cycles should produce at least one outsized payment")
	}
}

func TestHTTPPricesFetch(t *testing.T) {
	var gotKey, gotSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotSymbol = r.URL.Query().Get("symbol")
		_ = json.NewEncoder(w).Encode(map[string]any{"symbol": gotSymbol, "price": "123.45"})
	}))
	defer srv.Close()

	h := NewHTTPPrices(HTTPOptions{
		BaseURL:  srv.URL,
		Symbols:  []string{"TSLA"},
		Interval: time.Millisecond,
		Timeout:  time.Second,
		APIKey:   "k",
	}, noopLogger())

	events := collect(t, h, 2)
	tick := events[0].(event.PriceTick)
	if tick.Price.Cmp(decimal.NewFromFloat(123.45)) != 0 {
		t.Fatalf("expected price 123.45, got %s", tick.Price)
	}
	if gotKey != "k" {
		t.Fatalf("api key header should be set, got %q", gotKey)
	}
	if gotSymbol != "TSLA" {
		t.Fatalf("symbol query should be set, got %q", gotSymbol)
	}
}

func TestHTTPPricesSkipsFailedTicks(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"symbol": "TSLA", "price": "100"})
	}))
	defer srv.Close()

	h := NewHTTPPrices(HTTPOptions{
		BaseURL:  srv.URL,
		Symbols:  []string{"TSLA"},
		Interval: time.Millisecond,
		Timeout:  time.Second,
	}, noopLogger())

	events := collect(t, h, 1)
	if len(events) == 0 {
		t.Fatal("adapter should recover after a failed fetch")
	}
	if calls < 2 {
		t.Fatalf("expected a retry after the 429, got %d calls", calls)
	}
}

func TestHTTPPricesRequiresConfig(t *testing.T) {
	h := NewHTTPPrices(HTTPOptions{}, noopLogger())
	if err := h.Run(context.Background(), &collector{target: 1, cancel: func() {}}); err == nil {
		t.Fatal("missing base url should error")
	}

	h = NewHTTPPrices(HTTPOptions{BaseURL: "http://localhost"}, noopLogger())
	if err := h.Run(context.Background(), &collector{target: 1, cancel: func() {}}); err == nil {
		t.Fatal("missing symbols should error")
	}
}

func TestBackoffDoublesAndResets(t *testing.T) {
	b := newBackoff(time.Second, 4*time.Second)
	steps := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	for i, want := range steps {
		if got := b.next(); got != want {
			t.Fatalf("step %d: got %s, want %s", i, got, want)
		}
	}
	b.reset()
	if got := b.next(); got != time.Second {
		t.Fatalf("after reset should restart at base, got %s", got)
	}
}

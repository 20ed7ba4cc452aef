package state

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"trading-buddy/internal/event"
)

// ErrStaleTick reports a price tick older than the last one seen for its
// symbol. Adapters guarantee non-decreasing timestamps; anything else is a
// data-quality rejection.
var ErrStaleTick = errors.New("state: tick timestamp regressed")

// PricePoint is one observation in a symbol's history.
type PricePoint struct {
	Price decimal.Decimal
	TS    time.Time
}

type symbolSeries struct {
	latest  decimal.Decimal
	lastTS  time.Time
	history []PricePoint
	news    []event.NewsItem // most-recent-first
}

type pricesRegion struct {
	mu      sync.RWMutex
	symbols map[string]*symbolSeries
}

func (r *pricesRegion) init() {
	r.symbols = make(map[string]*symbolSeries)
}

// UpdatePrice records the latest price for a symbol and returns the change
// percent relative to the previous price (zero for the first tick).
func (s *Store) UpdatePrice(symbol string, price decimal.Decimal, ts time.Time) (decimal.Decimal, error) {
	r := &s.prices
	r.mu.Lock()
	defer r.mu.Unlock()

	series, ok := r.symbols[symbol]
	if !ok {
		series = &symbolSeries{}
		r.symbols[symbol] = series
	}
	if !series.lastTS.IsZero() && ts.Before(series.lastTS) {
		return decimal.Zero, ErrStaleTick
	}

	change := decimal.Zero
	if len(series.history) > 0 && !series.latest.IsZero() {
		change = price.Sub(series.latest).Div(series.latest).Mul(decimal.NewFromInt(100))
	}

	series.latest = price
	series.lastTS = ts
	series.history = append(series.history, PricePoint{Price: price, TS: ts})
	if over := len(series.history) - s.opts.HistoryCap; over > 0 {
		series.history = series.history[over:]
	}
	return change, nil
}

// LatestPrice returns the most recent price for a symbol.
func (s *Store) LatestPrice(symbol string) (decimal.Decimal, bool) {
	r := &s.prices
	r.mu.RLock()
	defer r.mu.RUnlock()
	series, ok := r.symbols[symbol]
	if !ok || len(series.history) == 0 {
		return decimal.Zero, false
	}
	return series.latest, true
}

// HistorySnapshot copies the retained price history for a symbol.
func (s *Store) HistorySnapshot(symbol string) []PricePoint {
	r := &s.prices
	r.mu.RLock()
	defer r.mu.RUnlock()
	series, ok := r.symbols[symbol]
	if !ok {
		return nil
	}
	out := make([]PricePoint, len(series.history))
	copy(out, series.history)
	return out
}

// AttachNews prepends a news item to the symbol's recent-news list.
func (s *Store) AttachNews(item event.NewsItem) {
	r := &s.prices
	r.mu.Lock()
	defer r.mu.Unlock()
	series, ok := r.symbols[item.Symbol]
	if !ok {
		series = &symbolSeries{}
		r.symbols[item.Symbol] = series
	}
	series.news = append([]event.NewsItem{item}, series.news...)
	if len(series.news) > s.opts.NewsCap {
		series.news = series.news[:s.opts.NewsCap]
	}
}

// RecentNews copies up to limit news items for a symbol, most recent first.
func (s *Store) RecentNews(symbol string, limit int) []event.NewsItem {
	r := &s.prices
	r.mu.RLock()
	defer r.mu.RUnlock()
	series, ok := r.symbols[symbol]
	if !ok {
		return nil
	}
	n := len(series.news)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]event.NewsItem, n)
	copy(out, series.news[:n])
	return out
}

// Symbols lists every symbol with at least one recorded tick or news item.
func (s *Store) Symbols() []string {
	r := &s.prices
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.symbols))
	for sym := range r.symbols {
		out = append(out, sym)
	}
	return out
}

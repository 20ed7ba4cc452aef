// Package state owns the mutable "current world": latest prices, customer
// baselines, the active sanctions set, and the portfolio. Each of the four
// regions is guarded independently so a slow sanctions swap cannot stall
// price updates.
package state

import (
	"time"

	"github.com/shopspring/decimal"

	"trading-buddy/internal/event"
)

// Options tune the bounded collections held by the store.
type Options struct {
	HistoryCap     int // price points retained per symbol
	NewsCap        int // news items retained per symbol
	BaselineWindow int // payment amounts retained per customer
	SpendBuckets   int // hourly spend buckets retained per customer
	FuzzyDistance  int // max levenshtein distance for a sanctions match
}

func (o Options) withDefaults() Options {
	if o.HistoryCap <= 0 {
		o.HistoryCap = 500
	}
	if o.NewsCap <= 0 {
		o.NewsCap = 50
	}
	if o.BaselineWindow <= 0 {
		o.BaselineWindow = 50
	}
	if o.SpendBuckets <= 0 {
		o.SpendBuckets = 48
	}
	if o.FuzzyDistance < 0 {
		o.FuzzyDistance = 0
	}
	return o
}

// Store is the single owner of shared mutable state.
type Store struct {
	opts Options

	prices    pricesRegion
	baselines baselineRegion
	sanctions sanctionsRegion
	portfolio portfolioRegion
}

// New constructs an empty store.
func New(opts Options) *Store {
	s := &Store{opts: opts.withDefaults()}
	s.prices.init()
	s.baselines.init()
	s.sanctions.init()
	s.portfolio.init()
	return s
}

// Snapshot is the immutable view handed to the rule engine for one event.
// Fields irrelevant to the event kind are zero.
type Snapshot struct {
	Baseline  BaselineStats
	Spend     SpendStats
	Sanctions SanctionsMatch
	Holdings  map[string]decimal.Decimal
}

// SnapshotFor composes the rule-engine view for a single event. The copies it
// returns are detached from the live regions.
func (s *Store) SnapshotFor(ev event.Event) Snapshot {
	var snap Snapshot
	switch e := ev.(type) {
	case event.Payment:
		snap.Baseline = s.BaselineStats(e.CustomerID)
		snap.Spend = s.SpendStats(e.CustomerID, e.TS)
		snap.Sanctions = s.MatchSanctions(e.Recipient)
	case event.NewsItem:
		snap.Holdings = s.Holdings()
	}
	return snap
}

// now is split out for tests.
var now = time.Now

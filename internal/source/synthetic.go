package source

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading-buddy/internal/event"
)

// SyntheticOptions tune the deterministic generators.
type SyntheticOptions struct {
	Symbols       []string
	Customers     []string
	Seed          int64
	PriceInterval time.Duration
	NewsInterval  time.Duration // mean; actual gap is uniform in [0.5x, 1.5x]
	PayInterval   time.Duration
	NoisePct      float64 // max per-tick move, fraction of price
	PriceFloor    float64
	PriceCeiling  float64
	SpikeEvery    int // every Nth payment cycle injects an outsized amount
}

func (o SyntheticOptions) withDefaults() SyntheticOptions {
	if len(o.Symbols) == 0 {
		o.Symbols = []string{"TSLA", "AAPL"}
	}
	if len(o.Customers) == 0 {
		o.Customers = []string{"cust_1", "cust_2", "cust_3"}
	}
	if o.PriceInterval <= 0 {
		o.PriceInterval = time.Second
	}
	if o.NewsInterval <= 0 {
		o.NewsInterval = 15 * time.Second
	}
	if o.PayInterval <= 0 {
		o.PayInterval = 5 * time.Second
	}
	if o.NoisePct <= 0 {
		o.NoisePct = 0.01
	}
	if o.PriceFloor <= 0 {
		o.PriceFloor = 1
	}
	if o.PriceCeiling <= o.PriceFloor {
		o.PriceCeiling = 10000
	}
	if o.SpikeEvery <= 0 {
		o.SpikeEvery = 12
	}
	return o
}

// SyntheticPrices generates a bounded random walk per symbol.
type SyntheticPrices struct {
	opts   SyntheticOptions
	rng    *rand.Rand
	logger zerolog.Logger
}

// NewSyntheticPrices builds a price generator. The seed makes it
// reproducible.
func NewSyntheticPrices(opts SyntheticOptions, logger zerolog.Logger) *SyntheticPrices {
	opts = opts.withDefaults()
	return &SyntheticPrices{
		opts:   opts,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		logger: logger.With().Str("component", "synthetic_prices").Logger(),
	}
}

func (g *SyntheticPrices) Name() string { return "synthetic_prices" }

// Run walks each symbol once per interval until ctx ends.
func (g *SyntheticPrices) Run(ctx context.Context, sink Sink) error {
	prices := make(map[string]float64, len(g.opts.Symbols))
	for _, sym := range g.opts.Symbols {
		prices[sym] = 50 + g.rng.Float64()*250
	}

	for {
		for _, sym := range g.opts.Symbols {
			noise := (g.rng.Float64()*2 - 1) * g.opts.NoisePct
			next := prices[sym] * (1 + noise)
			if next < g.opts.PriceFloor {
				next = g.opts.PriceFloor
			}
			if next > g.opts.PriceCeiling {
				next = g.opts.PriceCeiling
			}
			prices[sym] = next

			tick := event.PriceTick{
				Symbol: sym,
				Price:  decimal.NewFromFloat(next).Round(2),
				TS:     time.Now().UTC(),
			}
			if err := sink.Submit(ctx, tick); err != nil {
				return err
			}
		}
		if err := sleep(ctx, g.opts.PriceInterval); err != nil {
			return err
		}
	}
}

var cannedHeadlines = []event.NewsItem{
	{Symbol: "TSLA", Headline: "Government announces EV subsidy boosting adoption"},
	{Symbol: "AAPL", Headline: "Apple delays iPhone launch due to supply chain"},
	{Symbol: "TSLA", Headline: "Tesla beats delivery record in Q3"},
	{Symbol: "AAPL", Headline: "Analyst upgrades Apple on services growth"},
}

// SyntheticNews rotates canned headlines and, on request, synthesizes a
// headline correlated with a price jump so the jump can be explained.
type SyntheticNews struct {
	opts   SyntheticOptions
	rng    *rand.Rand
	logger zerolog.Logger
}

// NewSyntheticNews builds the news generator.
func NewSyntheticNews(opts SyntheticOptions, logger zerolog.Logger) *SyntheticNews {
	opts = opts.withDefaults()
	return &SyntheticNews{
		opts:   opts,
		rng:    rand.New(rand.NewSource(opts.Seed + 1)),
		logger: logger.With().Str("component", "synthetic_news").Logger(),
	}
}

func (g *SyntheticNews) Name() string { return "synthetic_news" }

// Run emits a random canned headline on a jittered interval.
func (g *SyntheticNews) Run(ctx context.Context, sink Sink) error {
	for {
		gap := time.Duration(float64(g.opts.NewsInterval) * (0.5 + g.rng.Float64()))
		if err := sleep(ctx, gap); err != nil {
			return err
		}
		item := cannedHeadlines[g.rng.Intn(len(cannedHeadlines))]
		item.TS = time.Now().UTC()
		item.Sentiment = event.ClassifySentiment(item.Headline)
		if err := sink.Submit(ctx, item); err != nil {
			return err
		}
	}
}

// JumpNews returns a headline explaining a price jump. The processor calls
// this when change percent crosses the jump threshold.
func (g *SyntheticNews) JumpNews(symbol string, changePct decimal.Decimal, ts time.Time) event.NewsItem {
	var headline string
	var sentiment event.Sentiment
	if changePct.IsNegative() {
		headline = fmt.Sprintf("%s shares plunge %s%% on heavy selling", symbol, changePct.Abs().StringFixed(1))
		sentiment = event.SentimentNegative
	} else {
		headline = fmt.Sprintf("%s shares surge %s%% on strong buying", symbol, changePct.StringFixed(1))
		sentiment = event.SentimentPositive
	}
	return event.NewsItem{Symbol: symbol, Headline: headline, Sentiment: sentiment, TS: ts}
}

// SyntheticPayments emits gaussian payments per customer with periodic
// outsized spikes and occasional sanctioned recipients, mirroring the demo
// traffic the rule engine is tuned against.
type SyntheticPayments struct {
	opts       SyntheticOptions
	rng        *rand.Rand
	recipients []string
	logger     zerolog.Logger
}

// NewSyntheticPayments builds the payment generator.
func NewSyntheticPayments(opts SyntheticOptions, recipients []string, logger zerolog.Logger) *SyntheticPayments {
	opts = opts.withDefaults()
	if len(recipients) == 0 {
		recipients = []string{"CleanVendor", "GoodBiz", "Acme Imports", "John Doe"}
	}
	return &SyntheticPayments{
		opts:       opts,
		rng:        rand.New(rand.NewSource(opts.Seed + 2)),
		recipients: recipients,
		logger:     logger.With().Str("component", "synthetic_payments").Logger(),
	}
}

func (g *SyntheticPayments) Name() string { return "synthetic_payments" }

// Run emits one payment per customer per interval.
func (g *SyntheticPayments) Run(ctx context.Context, sink Sink) error {
	base := make(map[string]float64, len(g.opts.Customers))
	for _, cid := range g.opts.Customers {
		base[cid] = 2000 + g.rng.Float64()*8000
	}

	cycle := 0
	for {
		cycle++
		for i, cid := range g.opts.Customers {
			amt := g.rng.NormFloat64()*base[cid]*0.1 + base[cid]
			if amt < 1 {
				amt = 1
			}
			if cycle%g.opts.SpikeEvery == 0 && i == cycle%len(g.opts.Customers) {
				amt = base[cid] * 40
			}

			p := event.Payment{
				CustomerID: cid,
				Amount:     decimal.NewFromFloat(amt).Round(2),
				Recipient:  g.recipients[g.rng.Intn(len(g.recipients))],
				TS:         time.Now().UTC(),
			}
			if err := sink.Submit(ctx, p); err != nil {
				return err
			}
		}
		if err := sleep(ctx, g.opts.PayInterval); err != nil {
			return err
		}
	}
}

var (
	_ Adapter = (*SyntheticPrices)(nil)
	_ Adapter = (*SyntheticNews)(nil)
	_ Adapter = (*SyntheticPayments)(nil)
)

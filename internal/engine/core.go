// Package engine consumes events from the bus, folds them into shared state,
// runs the rule engine, and publishes the results. Two interchangeable
// execution modes sit behind the same output contract; downstream components
// never learn which one produced an event.
package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading-buddy/internal/event"
	"trading-buddy/internal/hub"
	"trading-buddy/internal/rules"
	"trading-buddy/internal/sink"
	"trading-buddy/internal/state"
)

// NewsMaker lets the processor request a correlated headline from the
// adapter layer when a price jump crosses the threshold. The processor never
// invents news itself.
type NewsMaker interface {
	JumpNews(symbol string, changePct decimal.Decimal, ts time.Time) event.NewsItem
}

// AlertStore persists alerts for auditing. Optional.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert event.Alert) error
}

// Notifier forwards alerts to an external channel. Optional.
type Notifier interface {
	Notify(ctx context.Context, alert event.Alert) error
}

// PriceStore persists processed price samples. Optional.
type PriceStore interface {
	InsertPriceSample(ctx context.Context, symbol string, price, changePct decimal.Decimal, ts time.Time) error
}

// CoreOptions wire the per-event processing core.
type CoreOptions struct {
	Store         *state.Store
	Rules         *rules.Engine
	Hub           *hub.Hub
	PriceSink     *sink.Writer
	NewsSink      *sink.Writer
	News          NewsMaker
	AlertStore    AlertStore
	PriceStore    PriceStore
	Notifier      Notifier
	JumpThreshold decimal.Decimal // abs change percent that triggers correlated news
	AlertHistory  int             // retained recent alerts, presentation bound
}

// Core implements the per-event semantics shared by both execution modes.
type Core struct {
	opts   CoreOptions
	logger zerolog.Logger

	histMu  sync.RWMutex
	history []event.Alert
}

// NewCore constructs the shared processing core.
func NewCore(opts CoreOptions, logger zerolog.Logger) *Core {
	if opts.AlertHistory <= 0 {
		opts.AlertHistory = 200
	}
	return &Core{
		opts:   opts,
		logger: logger.With().Str("component", "processor").Logger(),
	}
}

// Process consumes one event. Malformed events are dropped with a
// data-quality log and never propagate.
func (c *Core) Process(ctx context.Context, ev event.Event) {
	if err := ev.Validate(); err != nil {
		c.logger.Warn().Err(err).Str("kind", string(ev.Kind())).Msg("data-quality rejection")
		return
	}

	switch v := ev.(type) {
	case event.PriceTick:
		c.processPrice(ctx, v)
	case event.NewsItem:
		c.processNews(ctx, v)
	case event.Payment:
		c.processPayment(ctx, v)
	default:
		c.logger.Warn().Str("kind", string(ev.Kind())).Msg("unhandled event kind dropped")
	}
}

func (c *Core) processPrice(ctx context.Context, tick event.PriceTick) {
	change, err := c.opts.Store.UpdatePrice(tick.Symbol, tick.Price, tick.TS)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", tick.Symbol).Msg("data-quality rejection")
		return
	}

	processed := event.ProcessedPrice{
		Type:      "price",
		Symbol:    tick.Symbol,
		Price:     tick.Price,
		ChangePct: change,
		TS:        tick.TS,
	}
	c.publishMarket(processed)
	if c.opts.PriceSink != nil {
		c.opts.PriceSink.Write(processed)
	}
	if c.opts.PriceStore != nil {
		c.persistPrice(ctx, processed)
	}

	// A jump gets an explanatory headline from the adapter layer so a
	// follow-up "why did it move" lookup finds correlated news.
	if c.opts.News != nil && !c.opts.JumpThreshold.IsZero() && change.Abs().GreaterThanOrEqual(c.opts.JumpThreshold) {
		c.processNews(ctx, c.opts.News.JumpNews(tick.Symbol, change, tick.TS))
	}
}

func (c *Core) processNews(ctx context.Context, item event.NewsItem) {
	if item.Sentiment == "" {
		item.Sentiment = event.ClassifySentiment(item.Headline)
	}
	c.opts.Store.AttachNews(item)

	processed := event.ProcessedNews{
		Type:      "news",
		Symbol:    item.Symbol,
		Headline:  item.Headline,
		Sentiment: item.Sentiment,
		TS:        item.TS,
	}
	c.publishMarket(processed)
	if c.opts.NewsSink != nil {
		c.opts.NewsSink.Write(processed)
	}

	c.emitAlerts(ctx, c.opts.Rules.Evaluate(item, c.opts.Store.SnapshotFor(item)))
}

func (c *Core) processPayment(ctx context.Context, p event.Payment) {
	// Fraud and sanctions are judged against the baseline as it stood before
	// this payment; the watchdog sees the hour including it.
	snap := c.opts.Store.SnapshotFor(p)
	c.opts.Store.ObservePayment(p.CustomerID, p.Amount, p.TS)
	snap.Spend = c.opts.Store.SpendStats(p.CustomerID, p.TS)

	c.emitAlerts(ctx, c.opts.Rules.Evaluate(p, snap))
}

func (c *Core) emitAlerts(ctx context.Context, alerts []event.Alert) {
	for _, alert := range alerts {
		c.appendHistory(alert)
		c.publishAlert(alert)
		if c.opts.AlertStore != nil {
			c.persistAlert(ctx, alert)
		}
		if c.opts.Notifier != nil {
			c.notify(ctx, alert)
		}
	}
}

func (c *Core) notify(ctx context.Context, alert event.Alert) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.opts.Notifier.Notify(ctx, alert); err != nil {
		c.logger.Error().Err(err).Msg("forward alert")
	}
}

func (c *Core) publishMarket(record any) {
	payload, err := json.Marshal(record)
	if err != nil {
		c.logger.Error().Err(err).Msg("marshal market record")
		return
	}
	c.opts.Hub.Publish(hub.ChannelMarket, payload)
}

func (c *Core) publishAlert(alert event.Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		c.logger.Error().Err(err).Msg("marshal alert")
		return
	}
	c.opts.Hub.Publish(hub.ChannelAlerts, payload)
	c.logger.Info().Str("alert_kind", string(alert.Kind)).Str("entity", alert.Entity).Msg("alert emitted")
}

func (c *Core) persistAlert(ctx context.Context, alert event.Alert) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.opts.AlertStore.InsertAlert(ctx, alert); err != nil {
		c.logger.Error().Err(err).Msg("persist alert")
	}
}

func (c *Core) persistPrice(ctx context.Context, p event.ProcessedPrice) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.opts.PriceStore.InsertPriceSample(ctx, p.Symbol, p.Price, p.ChangePct, p.TS); err != nil {
		c.logger.Error().Err(err).Msg("persist price sample")
	}
}

func (c *Core) appendHistory(alert event.Alert) {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	c.history = append(c.history, alert)
	if over := len(c.history) - c.opts.AlertHistory; over > 0 {
		c.history = c.history[over:]
	}
}

// RecentAlerts copies the capped alert history, oldest first.
func (c *Core) RecentAlerts() []event.Alert {
	c.histMu.RLock()
	defer c.histMu.RUnlock()
	out := make([]event.Alert, len(c.history))
	copy(out, c.history)
	return out
}

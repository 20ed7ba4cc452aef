// Package rules evaluates compliance and risk rules against a single event
// and an immutable state snapshot. The engine holds configuration only; it
// never mutates state.
package rules

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trading-buddy/internal/event"
	"trading-buddy/internal/state"
)

// Config exposes the rule thresholds. The demo constants of the original
// system are deliberately configuration here, not literals.
type Config struct {
	FraudK            float64         // stddev multiplier for the fraud rule
	AbsoluteThreshold decimal.Decimal // large-amount cutoff regardless of baseline
	MinSamples        int             // baseline observations before the statistical test applies
	WatchdogK         float64         // stddev multiplier for the hourly spend watchdog
	MinSpendBuckets   int             // completed buckets before the watchdog applies
}

// DefaultConfig mirrors the tuning the system ships with.
func DefaultConfig() Config {
	return Config{
		FraudK:            3,
		AbsoluteThreshold: decimal.NewFromInt(50000),
		MinSamples:        5,
		WatchdogK:         3,
		MinSpendBuckets:   3,
	}
}

// Engine is a stateless rule evaluator.
type Engine struct {
	cfg Config
}

// New constructs an engine from config, filling zero values with defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.FraudK <= 0 {
		cfg.FraudK = def.FraudK
	}
	if cfg.AbsoluteThreshold.IsZero() {
		cfg.AbsoluteThreshold = def.AbsoluteThreshold
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.WatchdogK <= 0 {
		cfg.WatchdogK = def.WatchdogK
	}
	if cfg.MinSpendBuckets <= 0 {
		cfg.MinSpendBuckets = def.MinSpendBuckets
	}
	return &Engine{cfg: cfg}
}

// Evaluate returns zero or more alerts for the event, ordered sanctions,
// fraud, anomaly, then portfolio risk. Rules never suppress each other.
func (e *Engine) Evaluate(ev event.Event, snap state.Snapshot) []event.Alert {
	switch v := ev.(type) {
	case event.Payment:
		return e.evaluatePayment(v, snap)
	case event.NewsItem:
		return e.evaluateNews(v, snap)
	default:
		return nil
	}
}

func (e *Engine) evaluatePayment(p event.Payment, snap state.Snapshot) []event.Alert {
	var alerts []event.Alert

	if snap.Sanctions.Hit {
		alerts = append(alerts, newAlert(event.AlertSanctions, p.CustomerID, p.TS,
			fmt.Sprintf("transfer flagged: recipient %q matched sanctions entry %q (%s)",
				p.Recipient, snap.Sanctions.Entry, snap.Sanctions.Method)))
	}

	if fired, reason := e.fraudCheck(p.Amount, snap.Baseline); fired {
		alerts = append(alerts, newAlert(event.AlertFraud, p.CustomerID, p.TS,
			fmt.Sprintf("%s: amount %s %s", p.CustomerID, p.Amount.StringFixed(2), reason)))
	}

	if e.watchdogCheck(snap.Spend) {
		alerts = append(alerts, newAlert(event.AlertAnomaly, p.CustomerID, p.TS,
			fmt.Sprintf("%s: hourly spend %.0f exceeds baseline %.0f by more than %.0f stddev",
				p.CustomerID, snap.Spend.Current, snap.Spend.Mean, e.cfg.WatchdogK)))
	}

	return alerts
}

func (e *Engine) fraudCheck(amount decimal.Decimal, b state.BaselineStats) (bool, string) {
	if amount.GreaterThan(e.cfg.AbsoluteThreshold) {
		return true, fmt.Sprintf("exceeds absolute threshold %s", e.cfg.AbsoluteThreshold.StringFixed(0))
	}
	// Cold start: too few observations for the statistical test.
	if b.Count < e.cfg.MinSamples {
		return false, ""
	}
	limit := b.Mean + e.cfg.FraudK*b.StdDev
	if amount.InexactFloat64() > limit {
		return true, fmt.Sprintf("exceeds baseline mean %.2f + %.0f stddev", b.Mean, e.cfg.FraudK)
	}
	return false, ""
}

func (e *Engine) watchdogCheck(sp state.SpendStats) bool {
	if sp.Buckets < e.cfg.MinSpendBuckets {
		return false
	}
	return sp.Current > sp.Mean+e.cfg.WatchdogK*sp.StdDev
}

func (e *Engine) evaluateNews(n event.NewsItem, snap state.Snapshot) []event.Alert {
	if n.Sentiment == event.SentimentNeutral {
		return nil
	}
	qty, held := snap.Holdings[n.Symbol]
	if !held || qty.IsZero() {
		return nil
	}
	return []event.Alert{newAlert(event.AlertPortfolioRisk, n.Symbol, n.TS,
		fmt.Sprintf("%s sentiment news for held position %s (%s shares): %s",
			n.Sentiment, n.Symbol, qty.String(), n.Headline))}
}

func newAlert(kind event.AlertKind, entity string, ts time.Time, msg string) event.Alert {
	return event.Alert{
		ID:      uuid.NewString(),
		Kind:    kind,
		Message: msg,
		Entity:  entity,
		TS:      ts,
	}
}

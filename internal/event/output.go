package event

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertKind labels the compliance rule that fired.
type AlertKind string

const (
	AlertFraud         AlertKind = "fraud"
	AlertSanctions     AlertKind = "sanctions"
	AlertAnomaly       AlertKind = "anomaly"
	AlertPortfolioRisk AlertKind = "portfolio_risk"
)

// ProcessedPrice is the market-channel record for a consumed price tick.
type ProcessedPrice struct {
	Type      string          `json:"type"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	ChangePct decimal.Decimal `json:"change_percent"`
	TS        time.Time       `json:"ts"`
}

// ProcessedNews is the market-channel record for a consumed news item.
type ProcessedNews struct {
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol"`
	Headline  string    `json:"headline"`
	Sentiment Sentiment `json:"sentiment"`
	TS        time.Time `json:"ts"`
}

// Alert is an immutable record produced by the rule engine.
type Alert struct {
	ID      string    `json:"id"`
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
	Entity  string    `json:"entity"`
	TS      time.Time `json:"ts"`
}

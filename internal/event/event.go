package event

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the event variants flowing through the pipeline.
type Kind string

const (
	KindPrice   Kind = "price"
	KindNews    Kind = "news"
	KindPayment Kind = "payment"
)

// Sentiment classifies a news headline.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

var (
	// ErrMissingSymbol indicates an event without a symbol.
	ErrMissingSymbol = errors.New("event: missing symbol")
	// ErrNegativePrice indicates a price below zero.
	ErrNegativePrice = errors.New("event: negative price")
	// ErrMissingCustomer indicates a payment without a customer id.
	ErrMissingCustomer = errors.New("event: missing customer id")
	// ErrNonPositiveAmount indicates a payment amount of zero or less.
	ErrNonPositiveAmount = errors.New("event: non-positive amount")
	// ErrMissingHeadline indicates a news item without a headline.
	ErrMissingHeadline = errors.New("event: missing headline")
)

// Event is the sealed union of inbound pipeline events.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
	Validate() error
}

// PriceTick is a single market price observation.
type PriceTick struct {
	Symbol string
	Price  decimal.Decimal
	TS     time.Time
}

func (p PriceTick) Kind() Kind           { return KindPrice }
func (p PriceTick) Timestamp() time.Time { return p.TS }

func (p PriceTick) Validate() error {
	if p.Symbol == "" {
		return ErrMissingSymbol
	}
	if p.Price.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

// NewsItem is a headline tied to a symbol.
type NewsItem struct {
	Symbol    string
	Headline  string
	Sentiment Sentiment
	TS        time.Time
}

func (n NewsItem) Kind() Kind           { return KindNews }
func (n NewsItem) Timestamp() time.Time { return n.TS }

func (n NewsItem) Validate() error {
	if n.Symbol == "" {
		return ErrMissingSymbol
	}
	if n.Headline == "" {
		return ErrMissingHeadline
	}
	return nil
}

// Payment is a customer transfer to a named recipient.
type Payment struct {
	CustomerID string
	Amount     decimal.Decimal
	Recipient  string
	TS         time.Time
}

func (p Payment) Kind() Kind           { return KindPayment }
func (p Payment) Timestamp() time.Time { return p.TS }

func (p Payment) Validate() error {
	if p.CustomerID == "" {
		return ErrMissingCustomer
	}
	if !p.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	return nil
}

var (
	_ Event = PriceTick{}
	_ Event = NewsItem{}
	_ Event = Payment{}
)

package state

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientCash rejects a buy exceeding the cash balance.
	ErrInsufficientCash = errors.New("state: insufficient cash")
	// ErrInsufficientHoldings rejects a sell exceeding the held quantity.
	ErrInsufficientHoldings = errors.New("state: insufficient holdings")
	// ErrNoPrice rejects a trade for a symbol with no recorded price.
	ErrNoPrice = errors.New("state: no price for symbol")
)

// TradeSide is the direction of a portfolio transaction.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Transaction is one append-only portfolio log record.
type Transaction struct {
	ID       string          `json:"id"`
	Symbol   string          `json:"symbol"`
	Side     TradeSide       `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Total    decimal.Decimal `json:"total"`
	TS       time.Time       `json:"ts"`
}

// PortfolioView is a detached copy of the portfolio plus its valuation.
type PortfolioView struct {
	Holdings  map[string]decimal.Decimal `json:"holdings"`
	Cash      decimal.Decimal            `json:"cash"`
	Valuation decimal.Decimal            `json:"valuation"`
}

type portfolioRegion struct {
	mu       sync.RWMutex
	holdings map[string]decimal.Decimal
	cash     decimal.Decimal
	txLog    []Transaction
}

func (r *portfolioRegion) init() {
	r.holdings = make(map[string]decimal.Decimal)
}

// SeedPortfolio installs the starting cash balance and holdings.
func (s *Store) SeedPortfolio(cash decimal.Decimal, holdings map[string]decimal.Decimal) {
	r := &s.portfolio
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cash = cash
	r.holdings = make(map[string]decimal.Decimal, len(holdings))
	for sym, qty := range holdings {
		r.holdings[sym] = qty
	}
}

// Holdings copies the current holdings map.
func (s *Store) Holdings() map[string]decimal.Decimal {
	r := &s.portfolio
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(r.holdings))
	for sym, qty := range r.holdings {
		out[sym] = qty
	}
	return out
}

// ApplyTrade executes a buy or sell at the latest recorded price and appends
// it to the transaction log.
func (s *Store) ApplyTrade(symbol string, side TradeSide, qty decimal.Decimal) (Transaction, error) {
	price, ok := s.LatestPrice(symbol)
	if !ok {
		return Transaction{}, ErrNoPrice
	}
	total := price.Mul(qty)

	r := &s.portfolio
	r.mu.Lock()
	defer r.mu.Unlock()

	switch side {
	case SideBuy:
		if r.cash.LessThan(total) {
			return Transaction{}, ErrInsufficientCash
		}
		r.cash = r.cash.Sub(total)
		r.holdings[symbol] = r.holdings[symbol].Add(qty)
	case SideSell:
		if r.holdings[symbol].LessThan(qty) {
			return Transaction{}, ErrInsufficientHoldings
		}
		r.cash = r.cash.Add(total)
		remaining := r.holdings[symbol].Sub(qty)
		if remaining.IsZero() {
			delete(r.holdings, symbol)
		} else {
			r.holdings[symbol] = remaining
		}
	default:
		return Transaction{}, errors.New("state: unknown trade side")
	}

	tx := Transaction{
		ID:       uuid.NewString(),
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		Price:    price,
		Total:    total,
		TS:       now().UTC(),
	}
	r.txLog = append(r.txLog, tx)
	return tx, nil
}

// Transactions copies the append-only transaction log.
func (s *Store) Transactions() []Transaction {
	r := &s.portfolio
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Transaction, len(r.txLog))
	copy(out, r.txLog)
	return out
}

// Portfolio returns a detached view valued at the latest recorded prices.
func (s *Store) Portfolio() PortfolioView {
	holdings := s.Holdings()

	valuation := decimal.Zero
	for sym, qty := range holdings {
		if price, ok := s.LatestPrice(sym); ok {
			valuation = valuation.Add(price.Mul(qty))
		}
	}

	r := &s.portfolio
	r.mu.RLock()
	cash := r.cash
	r.mu.RUnlock()

	return PortfolioView{Holdings: holdings, Cash: cash, Valuation: valuation.Add(cash)}
}

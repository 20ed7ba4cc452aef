package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading-buddy/internal/event"
)

// HTTPOptions parameterise the polling quote adapter.
type HTTPOptions struct {
	BaseURL   string // endpoint answering GET /quote?symbol=XXX with {"symbol":..,"price":..}
	Symbols   []string
	Interval  time.Duration
	Timeout   time.Duration
	UserAgent string
	APIKey    string
}

// HTTPPrices polls a JSON quote endpoint per symbol. Provider errors and
// rate limits become skipped ticks with adapter-local backoff.
type HTTPPrices struct {
	opts    HTTPOptions
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewHTTPPrices builds the polling adapter.
func NewHTTPPrices(opts HTTPOptions, logger zerolog.Logger) *HTTPPrices {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	return &HTTPPrices{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		logger:  logger.With().Str("component", "http_prices").Logger(),
	}
}

func (h *HTTPPrices) Name() string { return "http_prices" }

// Run polls each configured symbol once per interval until ctx ends.
func (h *HTTPPrices) Run(ctx context.Context, sink Sink) error {
	if h.baseURL == "" {
		return errors.New("http adapter requires a base url")
	}
	if len(h.opts.Symbols) == 0 {
		return errors.New("http adapter requires at least one symbol")
	}

	retry := newBackoff(h.opts.Interval, 5*time.Minute)
	for {
		failed := false
		for _, sym := range h.opts.Symbols {
			price, err := h.fetchQuote(ctx, sym)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed = true
				h.logger.Warn().Err(err).Str("symbol", sym).Msg("quote fetch failed, tick skipped")
				continue
			}
			tick := event.PriceTick{Symbol: sym, Price: price, TS: time.Now().UTC()}
			if err := sink.Submit(ctx, tick); err != nil {
				return err
			}
		}

		wait := h.opts.Interval
		if failed {
			wait = retry.next()
		} else {
			retry.reset()
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (h *HTTPPrices) fetchQuote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/quote?symbol=%s", h.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if h.opts.APIKey != "" {
		req.Header.Set("X-Api-Key", h.opts.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("quote api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var quote struct {
		Symbol string          `json:"symbol"`
		Price  decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(payload, &quote); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode quote: %w", err)
	}
	if quote.Price.IsNegative() || quote.Price.IsZero() {
		return decimal.Decimal{}, errors.New("quote returned non-positive price")
	}
	return quote.Price, nil
}

var _ Adapter = (*HTTPPrices)(nil)

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"trading-buddy/internal/event"
)

// requireToken rejects requests whose shared secret does not match before
// anything reaches the pipeline.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := r.Header.Get("X-Webhook-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.opts.Token {
			writeError(w, http.StatusUnauthorized, "invalid webhook token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type pricePayload struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp *float64        `json:"timestamp"`
}

type newsPayload struct {
	Symbol    string   `json:"symbol"`
	Headline  string   `json:"headline"`
	Timestamp *float64 `json:"timestamp"`
}

type paymentPayload struct {
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Recipient  string          `json:"recipient"`
	Timestamp  *float64        `json:"timestamp"`
}

func (s *Server) ingestPrice(w http.ResponseWriter, r *http.Request) {
	var p pricePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid price body")
		return
	}
	ev := event.PriceTick{Symbol: p.Symbol, Price: p.Price, TS: tsOrNow(p.Timestamp)}
	s.submit(w, r, ev)
}

func (s *Server) ingestNews(w http.ResponseWriter, r *http.Request) {
	var p newsPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid news body")
		return
	}
	ev := event.NewsItem{
		Symbol:    p.Symbol,
		Headline:  p.Headline,
		Sentiment: event.ClassifySentiment(p.Headline),
		TS:        tsOrNow(p.Timestamp),
	}
	s.submit(w, r, ev)
}

func (s *Server) ingestPayment(w http.ResponseWriter, r *http.Request) {
	var p paymentPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment body")
		return
	}
	ev := event.Payment{
		CustomerID: p.CustomerID,
		Amount:     p.Amount,
		Recipient:  p.Recipient,
		TS:         tsOrNow(p.Timestamp),
	}
	s.submit(w, r, ev)
}

// submit validates synchronously, so a malformed request is a 400 rather
// than a data-quality rejection inside the pipeline.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, ev event.Event) {
	if err := ev.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.bus.Submit(r.Context(), ev); err != nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

func tsOrNow(unixSecs *float64) time.Time {
	if unixSecs == nil || *unixSecs <= 0 {
		return time.Now().UTC()
	}
	secs := int64(*unixSecs)
	nanos := int64((*unixSecs - float64(secs)) * float64(time.Second))
	return time.Unix(secs, nanos).UTC()
}

func parseQuantity(raw string) (decimal.Decimal, error) {
	qty, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.New("invalid quantity")
	}
	if !qty.IsPositive() {
		return decimal.Decimal{}, errors.New("quantity must be positive")
	}
	return qty, nil
}

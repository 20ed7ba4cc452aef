package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading-buddy/internal/bus"
	"trading-buddy/internal/event"
	"trading-buddy/internal/hub"
	"trading-buddy/internal/state"
)

type stubAlerts struct{ alerts []event.Alert }

func (s stubAlerts) RecentAlerts() []event.Alert { return s.alerts }

type stubMode struct{}

func (stubMode) Mode() string { return "dataflow" }

func testServer(t *testing.T, token string) (*Server, *bus.Bus, *state.Store) {
	t.Helper()
	b := bus.New(16)
	st := state.New(state.Options{})
	srv := New(Options{Token: token}, b, hub.New(16, zerolog.Nop()), st, stubAlerts{}, stubMode{}, []string{"TSLA", "AAPL"}, zerolog.Nop())
	return srv, b, st
}

func postJSON(t *testing.T, handler http.Handler, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	if token != "" {
		req.Header.Set("X-Webhook-Token", token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIngestRequiresToken(t *testing.T) {
	srv, _, _ := testServer(t, "secret")
	handler := srv.Router()

	rec := postJSON(t, handler, "/api/ingest/price", "", map[string]any{"symbol": "TSLA", "price": "400"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token should be 401, got %d", rec.Code)
	}

	rec = postJSON(t, handler, "/api/ingest/price", "wrong", map[string]any{"symbol": "TSLA", "price": "400"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token should be 401, got %d", rec.Code)
	}
}

func TestIngestQueryTokenAccepted(t *testing.T) {
	srv, b, _ := testServer(t, "secret")
	handler := srv.Router()

	payload, _ := json.Marshal(map[string]any{"symbol": "TSLA", "price": "400"})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/price?token=secret", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("query token should be accepted, got %d", rec.Code)
	}
	select {
	case ev := <-b.Events():
		tick, ok := ev.(event.PriceTick)
		if !ok || tick.Symbol != "TSLA" {
			t.Fatalf("unexpected event on bus: %#v", ev)
		}
	default:
		t.Fatal("accepted price should be on the bus")
	}
}

func TestIngestRejectsMalformedBeforeBus(t *testing.T) {
	srv, b, _ := testServer(t, "")
	handler := srv.Router()

	rec := postJSON(t, handler, "/api/ingest/payment", "", map[string]any{"amount": "100"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing customer_id should be 400, got %d", rec.Code)
	}

	rec = postJSON(t, handler, "/api/ingest/payment", "", map[string]any{"customer_id": "c1", "amount": "0"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-positive amount should be 400, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/ingest/news", bytes.NewReader([]byte("{not json")))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("broken json should be 400, got %d", rec.Code)
	}

	select {
	case ev := <-b.Events():
		t.Fatalf("rejected requests must not reach the bus, got %#v", ev)
	default:
	}
}

func TestIngestNewsClassifiesSentiment(t *testing.T) {
	srv, b, _ := testServer(t, "")
	handler := srv.Router()

	rec := postJSON(t, handler, "/api/ingest/news", "", map[string]any{
		"symbol":   "TSLA",
		"headline": "TSLA hit by lawsuit",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("valid news should be accepted, got %d", rec.Code)
	}

	item := (<-b.Events()).(event.NewsItem)
	if item.Sentiment != event.SentimentNegative {
		t.Fatalf("headline should classify negative, got %s", item.Sentiment)
	}
}

func TestIngestTimestampParsing(t *testing.T) {
	srv, b, _ := testServer(t, "")
	handler := srv.Router()

	rec := postJSON(t, handler, "/api/ingest/price", "", map[string]any{
		"symbol":    "TSLA",
		"price":     "400",
		"timestamp": 1700000000.5,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	tick := (<-b.Events()).(event.PriceTick)
	want := time.Unix(1700000000, int64(500*time.Millisecond)).UTC()
	if !tick.TS.Equal(want) {
		t.Fatalf("timestamp should parse fractional seconds: got %s, want %s", tick.TS, want)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, _ := testServer(t, "secret")
	handler := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status should not require a token, got %d", rec.Code)
	}

	var body struct {
		EngineMode        string   `json:"engine_mode"`
		Symbols           []string `json:"symbols"`
		MarketSubscribers int      `json:"market_subscribers"`
		AlertSubscribers  int      `json:"alert_subscribers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if body.EngineMode != "dataflow" {
		t.Fatalf("engine_mode should be dataflow, got %q", body.EngineMode)
	}
	if len(body.Symbols) != 2 {
		t.Fatalf("symbols should list configured symbols, got %v", body.Symbols)
	}
}

func TestRecentAlertsEmptyIsList(t *testing.T) {
	srv, _, _ := testServer(t, "")
	handler := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/recent", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Fatalf("empty history should serialise as [], got %q", got)
	}
}

func TestTradeEndpoint(t *testing.T) {
	srv, _, st := testServer(t, "")
	handler := srv.Router()
	st.SeedPortfolio(decimal.NewFromInt(1000), nil)
	if _, err := st.UpdatePrice("TSLA", decimal.NewFromInt(100), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := postJSON(t, handler, "/api/trade", "", map[string]string{"symbol": "TSLA", "side": "buy", "quantity": "2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("buy should succeed, got %d: %s", rec.Code, rec.Body.String())
	}
	var tx state.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
		t.Fatalf("unmarshal transaction: %v", err)
	}
	if tx.Total.Cmp(decimal.NewFromInt(200)) != 0 {
		t.Fatalf("total should be 200, got %s", tx.Total)
	}

	rec = postJSON(t, handler, "/api/trade", "", map[string]string{"symbol": "TSLA", "side": "hold", "quantity": "2"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown side should be 400, got %d", rec.Code)
	}

	rec = postJSON(t, handler, "/api/trade", "", map[string]string{"symbol": "TSLA", "side": "buy", "quantity": "-1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative quantity should be 400, got %d", rec.Code)
	}

	rec = postJSON(t, handler, "/api/trade", "", map[string]string{"symbol": "TSLA", "side": "buy", "quantity": "100"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("insufficient cash should be 422, got %d", rec.Code)
	}

	rec = postJSON(t, handler, "/api/trade", "", map[string]string{"symbol": "AAPL", "side": "sell", "quantity": "1"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("selling an unheld symbol should be 422, got %d", rec.Code)
	}
}

func TestPortfolioEndpoint(t *testing.T) {
	srv, _, st := testServer(t, "")
	handler := srv.Router()
	st.SeedPortfolio(decimal.NewFromInt(500), map[string]decimal.Decimal{"TSLA": decimal.NewFromInt(2)})
	if _, err := st.UpdatePrice("TSLA", decimal.NewFromInt(100), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var view state.PortfolioView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal portfolio: %v", err)
	}
	if view.Valuation.Cmp(decimal.NewFromInt(700)) != 0 {
		t.Fatalf("valuation should be 700, got %s", view.Valuation)
	}
}

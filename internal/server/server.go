// Package server exposes the external surface: token-gated ingestion
// endpoints, the status query, portfolio operations, and the two WebSocket
// push channels.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"trading-buddy/internal/bus"
	"trading-buddy/internal/event"
	"trading-buddy/internal/hub"
	"trading-buddy/internal/state"
)

// AlertHistory exposes the capped recent-alert window.
type AlertHistory interface {
	RecentAlerts() []event.Alert
}

// ModeReporter exposes the active stream-processing mode.
type ModeReporter interface {
	Mode() string
}

// Options configure the HTTP server.
type Options struct {
	Addr           string
	Token          string // shared secret for ingestion endpoints
	AllowedOrigins []string
}

// Server wires the router over the pipeline components.
type Server struct {
	opts    Options
	bus     *bus.Bus
	hub     *hub.Hub
	store   *state.Store
	alerts  AlertHistory
	mode    ModeReporter
	symbols []string
	logger  zerolog.Logger
}

// New constructs the server.
func New(opts Options, b *bus.Bus, h *hub.Hub, store *state.Store, alerts AlertHistory, mode ModeReporter, symbols []string, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	return &Server{
		opts:    opts,
		bus:     b,
		hub:     h,
		store:   store,
		alerts:  alerts,
		mode:    mode,
		symbols: symbols,
		logger:  logger.With().Str("component", "server").Logger(),
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Webhook-Token"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/ingest", func(r chi.Router) {
			r.Use(s.requireToken)
			r.Post("/price", s.ingestPrice)
			r.Post("/news", s.ingestNews)
			r.Post("/payment", s.ingestPayment)
		})
		r.Get("/status", s.status)
		r.Get("/alerts/recent", s.recentAlerts)
		r.Get("/portfolio", s.portfolio)
		r.Post("/trade", s.trade)
	})

	r.Get("/ws/market", s.serveWS(hub.ChannelMarket))
	r.Get("/ws/alerts", s.serveWS(hub.ChannelAlerts))

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) allowedOrigins() []string {
	if len(s.opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.AllowedOrigins
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	symbols := s.symbols
	if len(symbols) == 0 {
		symbols = s.store.Symbols()
		sort.Strings(symbols)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"engine_mode":        s.mode.Mode(),
		"symbols":            symbols,
		"market_subscribers": s.hub.SubscriberCount(hub.ChannelMarket),
		"alert_subscribers":  s.hub.SubscriberCount(hub.ChannelAlerts),
	})
}

func (s *Server) recentAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.alerts.RecentAlerts()
	if alerts == nil {
		alerts = []event.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) portfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Portfolio())
}

type tradeRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity string `json:"quantity"`
}

func (s *Server) trade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid trade body")
		return
	}
	qty, err := parseQuantity(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	side := state.TradeSide(req.Side)
	if side != state.SideBuy && side != state.SideSell {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}

	tx, err := s.store.ApplyTrade(req.Symbol, side, qty)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

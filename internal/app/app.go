package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"trading-buddy/internal/bus"
	"trading-buddy/internal/config"
	"trading-buddy/internal/engine"
	"trading-buddy/internal/hub"
	"trading-buddy/internal/notify"
	"trading-buddy/internal/rules"
	"trading-buddy/internal/sanctions"
	"trading-buddy/internal/server"
	"trading-buddy/internal/sink"
	"trading-buddy/internal/source"
	"trading-buddy/internal/state"
	"trading-buddy/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newStore() *state.Store {
	st := state.New(state.Options{
		HistoryCap:     a.Config.State.HistoryCap,
		NewsCap:        a.Config.State.NewsCap,
		BaselineWindow: a.Config.State.BaselineWindow,
		SpendBuckets:   a.Config.State.SpendBuckets,
		FuzzyDistance:  a.Config.Rules.FuzzyDistance,
	})

	holdings := make(map[string]decimal.Decimal, len(a.Config.Portfolio.Holdings))
	for sym, qty := range a.Config.Portfolio.Holdings {
		holdings[sym] = decimal.NewFromFloat(qty)
	}
	st.SeedPortfolio(decimal.NewFromFloat(a.Config.Portfolio.Cash), holdings)
	return st
}

func (a *App) newRules() *rules.Engine {
	return rules.New(rules.Config{
		FraudK:            a.Config.Rules.FraudK,
		AbsoluteThreshold: decimal.NewFromFloat(a.Config.Rules.AbsoluteThreshold),
		MinSamples:        a.Config.Rules.MinSamples,
		WatchdogK:         a.Config.Rules.WatchdogK,
		MinSpendBuckets:   a.Config.Rules.MinSpendBuckets,
	})
}

func (a *App) newNotifier() notify.Notifier {
	if !a.Config.Notify.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Notify.Telegram
	return notify.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
}

func (a *App) openAuditStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	return store, store.Close, nil
}

func (a *App) syntheticOptions() source.SyntheticOptions {
	fc := a.Config.Feeds.Synthetic
	return source.SyntheticOptions{
		Symbols:       a.Config.Symbols,
		Customers:     fc.Customers,
		Seed:          fc.Seed,
		PriceInterval: fc.PriceInterval,
		NewsInterval:  fc.NewsInterval,
		PayInterval:   fc.PayInterval,
		NoisePct:      fc.NoisePct,
		PriceFloor:    fc.PriceFloor,
		PriceCeiling:  fc.PriceCeiling,
		SpikeEvery:    fc.SpikeEvery,
	}
}

func (a *App) newAdapters(newsGen *source.SyntheticNews) []source.Adapter {
	var adapters []source.Adapter
	opts := a.syntheticOptions()
	if a.Config.Feeds.Synthetic.Enabled {
		adapters = append(adapters,
			source.NewSyntheticPrices(opts, a.Logger),
			newsGen,
			source.NewSyntheticPayments(opts, a.Config.Feeds.Synthetic.Recipients, a.Logger),
		)
	}
	if a.Config.Feeds.HTTP.Enabled {
		fc := a.Config.Feeds.HTTP
		adapters = append(adapters, source.NewHTTPPrices(source.HTTPOptions{
			BaseURL:   fc.BaseURL,
			Symbols:   a.Config.Symbols,
			Interval:  fc.Interval,
			Timeout:   fc.Timeout,
			UserAgent: fc.UserAgent,
			APIKey:    fc.APIKey,
		}, a.Logger))
	}
	if a.Config.Feeds.Chain.Enabled {
		fc := a.Config.Feeds.Chain
		adapters = append(adapters, source.NewChainPrices(source.ChainOptions{
			RPCURL:      fc.RPCURL,
			FeedAddress: fc.FeedAddress,
			Symbol:      fc.Symbol,
			Decimals:    fc.Decimals,
			Interval:    fc.Interval,
			Timeout:     fc.Timeout,
		}, a.Logger))
	}
	return adapters
}

func (a *App) openSink(path string) *sink.Writer {
	if path == "" {
		return nil
	}
	w, err := sink.NewWriter(path, a.Config.Outputs.Buffer, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Str("path", path).Msg("output sink disabled")
		return nil
	}
	return w
}

// Run wires the full pipeline and blocks until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	auditStore, closeAudit, err := a.openAuditStore(ctx)
	if err != nil {
		return err
	}
	if auditStore == nil {
		a.Logger.Warn().Msg("database.dsn not configured; alert auditing disabled")
	}
	if closeAudit != nil {
		defer closeAudit()
	}

	st := a.newStore()
	broadcaster := hub.New(a.Config.Engine.SubscriberQueue, a.Logger)
	b := bus.New(a.Config.Engine.BusBuffer)

	priceSink := a.openSink(a.Config.Outputs.PricePath)
	newsSink := a.openSink(a.Config.Outputs.NewsPath)
	if priceSink != nil {
		defer priceSink.Close()
	}
	if newsSink != nil {
		defer newsSink.Close()
	}

	newsGen := source.NewSyntheticNews(a.syntheticOptions(), a.Logger)

	coreOpts := engine.CoreOptions{
		Store:         st,
		Rules:         a.newRules(),
		Hub:           broadcaster,
		PriceSink:     priceSink,
		NewsSink:      newsSink,
		News:          newsGen,
		JumpThreshold: decimal.NewFromFloat(a.Config.Engine.JumpThresholdPct),
		AlertHistory:  a.Config.Engine.AlertHistory,
	}
	if auditStore != nil {
		coreOpts.AlertStore = auditStore
		coreOpts.PriceStore = auditStore
	}
	if notifier := a.newNotifier(); notifier != nil {
		coreOpts.Notifier = notifier
	}
	core := engine.NewCore(coreOpts, a.Logger)

	proc, err := engine.New(a.Config.Engine.Mode, a.Config.Engine.Workers, core, b, a.Logger)
	if err != nil {
		return err
	}

	refresher := sanctions.New(sanctions.Options{
		Static:   a.Config.Sanctions.Static,
		FilePath: a.Config.Sanctions.FilePath,
		Interval: a.Config.Sanctions.Interval,
	}, st, a.Logger)

	srv := server.New(server.Options{
		Addr:           a.Config.Server.Addr,
		Token:          a.Config.Server.WebhookToken,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
	}, b, broadcaster, st, core, proc, a.Config.Symbols, a.Logger)

	a.Logger.Info().Str("mode", proc.Mode()).Strs("symbols", a.Config.Symbols).Msg("starting pipeline")

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return proc.Run(ctx) })
	group.Go(func() error { return refresher.Run(ctx) })
	group.Go(func() error { return srv.Run(ctx) })
	for _, adapter := range a.newAdapters(newsGen) {
		group.Go(func() error {
			if err := adapter.Run(ctx, b); err != nil && !errors.Is(err, context.Canceled) {
				// A dead adapter degrades the feed, never the pipeline.
				a.Logger.Error().Err(err).Str("adapter", adapter.Name()).Msg("adapter stopped")
			}
			return nil
		})
	}

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("pipeline terminated with error")
		return err
	}

	a.Logger.Info().Msg("pipeline stopped")
	return nil
}

// ExportOptions hold parameters for exporting persisted price samples.
type ExportOptions struct {
	Symbol    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

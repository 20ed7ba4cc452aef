package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"trading-buddy/internal/engine"
	"trading-buddy/internal/event"
	"trading-buddy/internal/hub"
	"trading-buddy/internal/source"
)

// Simulate replays a scripted scenario through the processing core and prints
// every broadcast record and alert to stdout. Useful for demos and for
// eyeballing rule behaviour without a live feed.
func (a *App) Simulate(ctx context.Context) error {
	st := a.newStore()
	st.ReplaceSanctions(a.Config.Sanctions.Static)

	broadcaster := hub.New(128, a.Logger)
	marketSub := broadcaster.Subscribe(hub.ChannelMarket)
	alertSub := broadcaster.Subscribe(hub.ChannelAlerts)
	defer broadcaster.Unsubscribe(marketSub)
	defer broadcaster.Unsubscribe(alertSub)

	newsGen := source.NewSyntheticNews(a.syntheticOptions(), a.Logger)
	core := engine.NewCore(engine.CoreOptions{
		Store:         st,
		Rules:         a.newRules(),
		Hub:           broadcaster,
		News:          newsGen,
		JumpThreshold: decimal.NewFromFloat(a.Config.Engine.JumpThresholdPct),
		AlertHistory:  a.Config.Engine.AlertHistory,
	}, a.Logger)

	now := time.Now().UTC()
	for _, ev := range scenario(now) {
		core.Process(ctx, ev)
		drain(marketSub, "market")
		drain(alertSub, "alert")
	}

	fmt.Fprintf(os.Stdout, "-- scenario complete: %d alerts raised\n", len(core.RecentAlerts()))
	return nil
}

// scenario builds a deterministic event script: a calm stretch of prices and
// payments, a 5% jump that should produce correlated news, a payment far
// above the learned baseline, and a transfer to a sanctioned recipient.
func scenario(now time.Time) []event.Event {
	var events []event.Event
	ts := now.Add(-10 * time.Minute)

	// Calm prices establish a last price for the jump to measure against.
	events = append(events,
		event.PriceTick{Symbol: "TSLA", Price: decimal.NewFromInt(400), TS: ts},
		event.PriceTick{Symbol: "AAPL", Price: decimal.NewFromInt(180), TS: ts.Add(time.Second)},
	)

	// Routine payments teach the fraud baseline.
	for i := 0; i < 8; i++ {
		amount := decimal.NewFromInt(900 + int64(i)*25)
		events = append(events, event.Payment{
			CustomerID: "cust_1",
			Amount:     amount,
			Recipient:  "Utilities Co",
			TS:         ts.Add(time.Duration(i+2) * time.Second),
		})
	}

	// A 5% move; the processor should attach a correlated headline.
	events = append(events, event.PriceTick{
		Symbol: "TSLA",
		Price:  decimal.NewFromInt(420),
		TS:     ts.Add(15 * time.Second),
	})

	// Far above the learned baseline: one fraud alert expected.
	events = append(events, event.Payment{
		CustomerID: "cust_1",
		Amount:     decimal.NewFromInt(75000),
		Recipient:  "Utilities Co",
		TS:         ts.Add(16 * time.Second),
	})

	// Sanctioned recipient: one sanctions alert expected.
	events = append(events, event.Payment{
		CustomerID: "cust_2",
		Amount:     decimal.NewFromInt(120),
		Recipient:  "SuspiciousEntity",
		TS:         ts.Add(17 * time.Second),
	})

	// Negative headline about a held symbol: portfolio risk expected when
	// the configured portfolio holds it.
	events = append(events, event.NewsItem{
		Symbol:   "TSLA",
		Headline: "TSLA under investigation after earnings miss",
		TS:       ts.Add(18 * time.Second),
	})

	return events
}

func drain(sub *hub.Subscriber, label string) {
	for {
		select {
		case payload := <-sub.Out():
			fmt.Fprintf(os.Stdout, "[%s] %s\n", label, payload)
		default:
			return
		}
	}
}

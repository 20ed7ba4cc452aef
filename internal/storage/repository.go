package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"trading-buddy/internal/event"
)

const (
	insertAlertSQL = `INSERT INTO alerts (
        id,
        kind,
        message,
        entity,
        ts
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (id) DO NOTHING;`

	listRecentAlertsSQL = `SELECT
        id,
        kind,
        message,
        entity,
        ts
    FROM alerts
    ORDER BY ts DESC
    LIMIT $1;`

	insertPriceSampleSQL = `INSERT INTO price_samples (
        symbol,
        price,
        change_pct,
        ts
    ) VALUES (
        $1,$2,$3,$4
    );`

	listPriceHistorySQL = `SELECT
        symbol,
        price,
        change_pct,
        ts
    FROM price_samples
    WHERE symbol = $1
      AND ts >= $2
      AND ts < $3
    ORDER BY ts;`
)

// PriceSample is a persisted processed-price record.
type PriceSample struct {
	Symbol    string
	Price     decimal.Decimal
	ChangePct decimal.Decimal
	TS        time.Time
}

// InsertAlert persists an alert record.
func (s *Store) InsertAlert(ctx context.Context, alert event.Alert) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, insertAlertSQL, alert.ID, string(alert.Kind), alert.Message, alert.Entity, alert.TS); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// ListRecentAlerts returns the newest alerts, most recent first.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]event.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := pool.Query(ctx, listRecentAlertsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent alerts: %w", err)
	}
	defer rows.Close()

	var out []event.Alert
	for rows.Next() {
		var a event.Alert
		var kind string
		if err := rows.Scan(&a.ID, &kind, &a.Message, &a.Entity, &a.TS); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Kind = event.AlertKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertPriceSample persists one processed price.
func (s *Store) InsertPriceSample(ctx context.Context, symbol string, price, changePct decimal.Decimal, ts time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, insertPriceSampleSQL, symbol, price, changePct, ts); err != nil {
		return fmt.Errorf("insert price sample: %w", err)
	}
	return nil
}

// ListPriceHistory returns samples for a symbol within [from, to).
func (s *Store) ListPriceHistory(ctx context.Context, symbol string, from, to time.Time) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listPriceHistorySQL, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	defer rows.Close()

	var out []PriceSample
	for rows.Next() {
		var p PriceSample
		if err := rows.Scan(&p.Symbol, &p.Price, &p.ChangePct, &p.TS); err != nil {
			return nil, fmt.Errorf("scan price sample: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

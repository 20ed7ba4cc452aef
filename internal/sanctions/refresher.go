// Package sanctions reloads the active sanctions list on a fixed interval
// and swaps it into the state store atomically.
package sanctions

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trading-buddy/internal/scheduler"
	"trading-buddy/internal/state"
)

// Options configure the refresher.
type Options struct {
	Static   []string // entries always present
	FilePath string   // optional newline-delimited list, reloaded each tick
	Interval time.Duration
}

// Refresher periodically rebuilds the sanctions set.
type Refresher struct {
	opts   Options
	store  *state.Store
	logger zerolog.Logger
}

// New constructs a refresher.
func New(opts Options, store *state.Store, logger zerolog.Logger) *Refresher {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &Refresher{
		opts:   opts,
		store:  store,
		logger: logger.With().Str("component", "sanctions_refresher").Logger(),
	}
}

// Run loads the list once immediately, then on every interval until ctx
// ends. Load failures keep the previous set active.
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Error().Err(err).Msg("initial sanctions load failed")
	}

	sched := scheduler.New(scheduler.Options{Interval: r.opts.Interval}, r.logger)
	return sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		return r.Refresh(ctx)
	})
}

// Refresh rebuilds the set from the static entries plus the file, if any,
// and swaps it in atomically.
func (r *Refresher) Refresh(_ context.Context) error {
	entries := make([]string, 0, len(r.opts.Static))
	entries = append(entries, r.opts.Static...)

	if r.opts.FilePath != "" {
		fromFile, err := loadFile(r.opts.FilePath)
		if err != nil {
			return fmt.Errorf("load sanctions file: %w", err)
		}
		entries = append(entries, fromFile...)
	}

	r.store.ReplaceSanctions(entries)
	r.logger.Debug().Int("entries", len(entries)).Msg("sanctions set replaced")
	return nil
}

func loadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

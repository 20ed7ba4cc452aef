package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"trading-buddy/internal/bus"
	"trading-buddy/internal/event"
)

// Mode names for the two execution strategies.
const (
	ModeDataflow = "dataflow"
	ModeFallback = "fallback"
	ModeAuto     = "auto"
)

// Processor drains the event bus in one of two interchangeable modes.
type Processor interface {
	// Run blocks until ctx is cancelled.
	Run(ctx context.Context) error
	// Mode reports the active execution strategy.
	Mode() string
}

// New selects the execution mode once at startup. "auto" prefers dataflow and
// degrades to the sequential fallback, logged once, when the dataflow
// pipeline cannot be built.
func New(mode string, workers int, core *Core, b *bus.Bus, logger zerolog.Logger) (Processor, error) {
	switch mode {
	case ModeFallback:
		return newFallback(core, b, logger), nil
	case ModeDataflow:
		return newDataflow(core, b, workers, logger)
	case ModeAuto, "":
		df, err := newDataflow(core, b, workers, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("dataflow engine unavailable, using fallback processor")
			return newFallback(core, b, logger), nil
		}
		return df, nil
	default:
		return nil, fmt.Errorf("unknown engine mode %q", mode)
	}
}

// fallback processes events one at a time on a single goroutine.
type fallback struct {
	core   *Core
	bus    *bus.Bus
	logger zerolog.Logger
}

func newFallback(core *Core, b *bus.Bus, logger zerolog.Logger) *fallback {
	return &fallback{core: core, bus: b, logger: logger.With().Str("component", "fallback_engine").Logger()}
}

func (f *fallback) Mode() string { return ModeFallback }

func (f *fallback) Run(ctx context.Context) error {
	f.logger.Info().Msg("sequential processor started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-f.bus.Events():
			f.core.Process(ctx, ev)
		}
	}
}

// dataflow partitions events by key across a fixed worker set. Events for
// the same symbol or customer always land on the same worker, preserving
// per-key arrival order while independent keys proceed in parallel.
type dataflow struct {
	core    *Core
	bus     *bus.Bus
	workers int
	buffer  int
	logger  zerolog.Logger
}

func newDataflow(core *Core, b *bus.Bus, workers int, logger zerolog.Logger) (*dataflow, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("dataflow requires at least one worker, got %d", workers)
	}
	return &dataflow{
		core:    core,
		bus:     b,
		workers: workers,
		buffer:  64,
		logger:  logger.With().Str("component", "dataflow_engine").Logger(),
	}, nil
}

func (d *dataflow) Mode() string { return ModeDataflow }

func (d *dataflow) Run(ctx context.Context) error {
	d.logger.Info().Int("workers", d.workers).Msg("dataflow pipeline started")

	lanes := make([]chan event.Event, d.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan event.Event, d.buffer)
		wg.Add(1)
		go func(lane <-chan event.Event) {
			defer wg.Done()
			for ev := range lane {
				d.core.Process(ctx, ev)
			}
		}(lanes[i])
	}

	defer func() {
		for _, lane := range lanes {
			close(lane)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-d.bus.Events():
			lane := lanes[d.laneFor(ev)]
			select {
			case lane <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// laneFor routes an event by its ordering key.
func (d *dataflow) laneFor(ev event.Event) int {
	var key string
	switch v := ev.(type) {
	case event.PriceTick:
		key = v.Symbol
	case event.NewsItem:
		key = v.Symbol
	case event.Payment:
		key = v.CustomerID
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(d.workers))
}

var (
	_ Processor = (*fallback)(nil)
	_ Processor = (*dataflow)(nil)
)

// Package sink appends processed events to JSONL files for offline
// inspection. Writes are best-effort: a full buffer drops the record rather
// than blocking the stream processor.
package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Writer appends one JSON line per record to a single file.
type Writer struct {
	ch     chan any
	done   chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

// NewWriter opens (or creates) the target file in append mode and starts the
// background drain goroutine.
func NewWriter(path string, buffer int, logger zerolog.Logger) (*Writer, error) {
	if buffer <= 0 {
		buffer = 512
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sink file: %w", err)
	}

	w := &Writer{
		ch:     make(chan any, buffer),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "sink").Str("path", path).Logger(),
	}
	go w.drain(f)
	return w, nil
}

// Write enqueues a record, dropping it when the buffer is full.
func (w *Writer) Write(record any) {
	select {
	case w.ch <- record:
	default:
		w.logger.Warn().Msg("sink buffer full, record dropped")
	}
}

// Close stops the drain goroutine and flushes pending records.
func (w *Writer) Close() {
	w.once.Do(func() { close(w.ch) })
	<-w.done
}

func (w *Writer) drain(f *os.File) {
	defer close(w.done)
	buf := bufio.NewWriter(f)
	defer func() {
		if err := buf.Flush(); err != nil {
			w.logger.Error().Err(err).Msg("flush sink file")
		}
		if err := f.Close(); err != nil {
			w.logger.Error().Err(err).Msg("close sink file")
		}
	}()

	enc := json.NewEncoder(buf)
	for record := range w.ch {
		if err := enc.Encode(record); err != nil {
			w.logger.Error().Err(err).Msg("encode sink record")
		}
	}
}

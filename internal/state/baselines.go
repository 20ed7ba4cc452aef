package state

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// BaselineStats is a customer's rolling payment profile. Mean and StdDev are
// always consistent with the retained window.
type BaselineStats struct {
	Mean   float64
	StdDev float64
	Count  int
}

// SpendStats summarises a customer's hourly spend buckets for the watchdog
// rule: statistics over completed buckets plus the running current bucket.
type SpendStats struct {
	Mean    float64
	StdDev  float64
	Buckets int
	Current float64
}

type customerBaseline struct {
	window  []float64 // recent payment amounts, oldest first
	buckets map[int64]float64
}

type baselineRegion struct {
	mu        sync.RWMutex
	customers map[string]*customerBaseline
}

func (r *baselineRegion) init() {
	r.customers = make(map[string]*customerBaseline)
}

// ObservePayment folds a payment amount into the customer's rolling window
// and hourly spend bucket, creating the baseline on first sight.
func (s *Store) ObservePayment(customerID string, amount decimal.Decimal, ts time.Time) {
	r := &s.baselines
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.customers[customerID]
	if !ok {
		cb = &customerBaseline{buckets: make(map[int64]float64)}
		r.customers[customerID] = cb
	}

	amt := amount.InexactFloat64()
	cb.window = append(cb.window, amt)
	if over := len(cb.window) - s.opts.BaselineWindow; over > 0 {
		cb.window = cb.window[over:]
	}

	hour := ts.Truncate(time.Hour).Unix()
	cb.buckets[hour] += amt
	if len(cb.buckets) > s.opts.SpendBuckets {
		oldest := int64(0)
		for h := range cb.buckets {
			if oldest == 0 || h < oldest {
				oldest = h
			}
		}
		delete(cb.buckets, oldest)
	}
}

// BaselineStats computes the customer's current window statistics.
func (s *Store) BaselineStats(customerID string) BaselineStats {
	r := &s.baselines
	r.mu.RLock()
	defer r.mu.RUnlock()

	cb, ok := r.customers[customerID]
	if !ok || len(cb.window) == 0 {
		return BaselineStats{}
	}
	st := BaselineStats{
		Mean:  stat.Mean(cb.window, nil),
		Count: len(cb.window),
	}
	if len(cb.window) > 1 {
		st.StdDev = stat.StdDev(cb.window, nil)
	}
	return st
}

// SpendStats computes hourly-bucket statistics for the watchdog rule. The
// bucket containing ts is reported separately as Current and excluded from
// the mean and standard deviation.
func (s *Store) SpendStats(customerID string, ts time.Time) SpendStats {
	r := &s.baselines
	r.mu.RLock()
	defer r.mu.RUnlock()

	cb, ok := r.customers[customerID]
	if !ok {
		return SpendStats{}
	}

	current := ts.Truncate(time.Hour).Unix()
	past := make([]float64, 0, len(cb.buckets))
	var st SpendStats
	for h, total := range cb.buckets {
		if h == current {
			st.Current = total
			continue
		}
		past = append(past, total)
	}
	st.Buckets = len(past)
	if len(past) > 0 {
		st.Mean = stat.Mean(past, nil)
	}
	if len(past) > 1 {
		st.StdDev = stat.StdDev(past, nil)
	}
	return st
}

// Package metrics implements CycleMetrics: the bounded ring of per-cycle
// durations plus running aggregates from spec.md §3, supplemented with
// the streaming percentile estimator the teacher's eventloop module uses
// for latency (spec.md "Supplemented" in SPEC_FULL.md §4).
package metrics

import (
	"sync"
	"time"

	"github.com/joeycumines/plcrt/internal/ratewindow"
)

// DefaultHistogramSize is the default ring capacity (config key
// metrics.histogram_size).
const DefaultHistogramSize = 1000

// overrunRateWindow is the trailing duration the rolling overrun rate is
// computed over, alongside the lifetime overrunCount (SPEC_FULL.md §5.5:
// a rolling rate lets an operator tell a one-off overrun from a trend
// without changing the lifetime overruns = |{i : d_i > deadline}|
// property tested in spec.md §8).
const overrunRateWindow = 10 * time.Second

// overrunRateCapacity bounds the rolling window's ring size.
const overrunRateCapacity = 4096

// CycleMetrics tracks runtime statistics for the scan cycle. All writes
// happen on the RT thread in program order (spec.md §5); Snapshot
// returns an immutable copy safe for any other goroutine to read.
type CycleMetrics struct {
	mu sync.Mutex

	deadline time.Duration

	ring     []time.Duration
	writePos int

	count        uint64
	min, max     time.Duration
	sum          time.Duration
	overrunCount uint64
	overrunRate  *ratewindow.Window

	percentiles *cycleDurationPercentiles
}

// New returns a CycleMetrics with the given deadline (used to classify
// overruns) and ring capacity.
func New(deadline time.Duration, histogramSize int) *CycleMetrics {
	if histogramSize <= 0 {
		histogramSize = DefaultHistogramSize
	}
	return &CycleMetrics{
		deadline:    deadline,
		ring:        make([]time.Duration, 0, histogramSize),
		overrunRate: ratewindow.New(overrunRateWindow, overrunRateCapacity),
		percentiles: newCycleDurationPercentiles(),
	}
}

// Record records one cycle's execution duration. No heap allocation on
// the hot path once the ring has reached its capacity.
func (m *CycleMetrics) Record(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cap(m.ring) > 0 {
		if len(m.ring) < cap(m.ring) {
			m.ring = append(m.ring, d)
		} else {
			m.ring[m.writePos] = d
			m.writePos = (m.writePos + 1) % cap(m.ring)
		}
	}

	if m.count == 0 || d < m.min {
		m.min = d
	}
	if m.count == 0 || d > m.max {
		m.max = d
	}
	m.sum += d
	m.count++
	now := time.Now().UnixNano()
	if d > m.deadline {
		m.overrunCount++
		m.overrunRate.Record(now)
	}

	m.percentiles.observe(d)
}

// Snapshot is an immutable copy of the current aggregate state.
type Snapshot struct {
	Count               uint64
	Min, Max            time.Duration
	Sum                 time.Duration
	OverrunCount        uint64 // lifetime count
	OverrunCountRolling int    // count within the trailing overrunRateWindow
	P50, P90, P95, P99  time.Duration
}

// Snapshot returns an immutable copy of the current metrics.
func (m *CycleMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Count:               m.count,
		Min:                 m.min,
		Max:                 m.max,
		Sum:                 m.sum,
		OverrunCount:        m.overrunCount,
		OverrunCountRolling: m.overrunRate.Count(time.Now().UnixNano()),
		P50:                 m.percentiles.quantile(p50),
		P90:                 m.percentiles.quantile(p90),
		P95:                 m.percentiles.quantile(p95),
		P99:                 m.percentiles.quantile(p99),
	}
}

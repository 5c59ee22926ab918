package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestMetricsArithmetic mirrors spec.md §8: after N recorded cycles of
// durations d_1..d_N, min/max/sum/count/overruns must match direct
// computation.
func TestMetricsArithmetic(t *testing.T) {
	deadline := 5 * time.Millisecond
	m := New(deadline, 100)

	durations := []time.Duration{
		1 * time.Millisecond,
		6 * time.Millisecond,
		3 * time.Millisecond,
		7 * time.Millisecond,
		2 * time.Millisecond,
	}
	for _, d := range durations {
		m.Record(d)
	}

	var wantMin, wantMax, wantSum time.Duration
	var wantOverruns uint64
	wantMin = durations[0]
	wantMax = durations[0]
	for _, d := range durations {
		if d < wantMin {
			wantMin = d
		}
		if d > wantMax {
			wantMax = d
		}
		wantSum += d
		if d > deadline {
			wantOverruns++
		}
	}

	snap := m.Snapshot()
	require.Equal(t, uint64(len(durations)), snap.Count)
	require.Equal(t, wantMin, snap.Min)
	require.Equal(t, wantMax, snap.Max)
	require.Equal(t, wantSum, snap.Sum)
	require.Equal(t, wantOverruns, snap.OverrunCount)
}

// TestMetricsOverrunRollingCount confirms the rolling overrun count
// (SPEC_FULL.md §5.5) tracks the same overruns the lifetime counter
// does, since every overrun in this test happens within the rolling
// window.
func TestMetricsOverrunRollingCount(t *testing.T) {
	deadline := time.Millisecond
	m := New(deadline, 100)

	m.Record(500 * time.Microsecond) // not an overrun
	m.Record(2 * time.Millisecond)   // overrun
	m.Record(3 * time.Millisecond)   // overrun

	snap := m.Snapshot()
	require.Equal(t, uint64(2), snap.OverrunCount)
	require.Equal(t, 2, snap.OverrunCountRolling)
}

func TestMetricsRingDoesNotAllocatePastCapacity(t *testing.T) {
	m := New(time.Millisecond, 4)
	for i := 0; i < 100; i++ {
		m.Record(time.Duration(i) * time.Microsecond)
	}
	require.LessOrEqual(t, len(m.ring), 4)
	snap := m.Snapshot()
	require.Equal(t, uint64(100), snap.Count)
}

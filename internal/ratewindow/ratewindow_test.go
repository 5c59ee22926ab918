package ratewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowCountsWithinDuration(t *testing.T) {
	w := New(100*time.Millisecond, 16)
	base := int64(1_000_000_000)

	w.Record(base)
	w.Record(base + 10_000_000) // +10ms
	w.Record(base + 50_000_000) // +50ms

	require.Equal(t, 3, w.Count(base+50_000_000))
	// 120ms later, the first two events have aged out of the 100ms window.
	require.Equal(t, 1, w.Count(base+120_000_000))
}

func TestWindowEvictsAllWhenStale(t *testing.T) {
	w := New(10*time.Millisecond, 8)
	w.Record(0)
	w.Record(1_000_000)
	require.Equal(t, 0, w.Count(100_000_000))
}

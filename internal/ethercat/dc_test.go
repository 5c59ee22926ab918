package ethercat

import "testing"

import "github.com/stretchr/testify/require"

// TestDCOutOfThresholdRolling confirms the rolling out-of-threshold
// count (SPEC_FULL.md §5.5) tracks deviations the same way the lifetime
// counter does when every sample falls inside the rolling window.
func TestDCOutOfThresholdRolling(t *testing.T) {
	dc := newDCController(100) // 100ns threshold

	dc.sample(0, 0) // establishes the reference, no deviation recorded

	// Each subsequent sample is far enough from the expected time model
	// to exceed the 100ns threshold.
	dc.sample(1_000_000, 1)
	dc.sample(2_000_000, 2)
	dc.sample(3_000_000, 3)

	stats := dc.Stats()
	require.Equal(t, uint64(3), stats.OutOfThreshold)
	require.Equal(t, 3, stats.OutOfThresholdRolling)
}

func TestDCResetClearsRollingWindow(t *testing.T) {
	dc := newDCController(100)
	dc.sample(0, 0)
	dc.sample(1_000_000, 1)
	require.Equal(t, uint64(1), dc.Stats().OutOfThreshold)

	dc.reset()

	stats := dc.Stats()
	require.Equal(t, uint64(0), stats.OutOfThreshold)
	require.Equal(t, 0, stats.OutOfThresholdRolling)
}

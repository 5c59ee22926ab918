package watchdog

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWatchdogTriggersOnTimeout(t *testing.T) {
	w := New(20*time.Millisecond, zerolog.Nop())
	var triggered atomic.Bool
	w.Start(func() { triggered.Store(true) })
	defer w.Stop()

	require.Eventually(t, triggered.Load, 500*time.Millisecond, 5*time.Millisecond)
	require.True(t, w.HasTriggered())
}

func TestWatchdogKickPreventsTrigger(t *testing.T) {
	w := New(50*time.Millisecond, zerolog.Nop())
	var triggered atomic.Bool
	w.Start(func() { triggered.Store(true) })
	defer w.Stop()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		w.Kick()
		time.Sleep(5 * time.Millisecond)
	}
	require.False(t, triggered.Load())
	require.False(t, w.HasTriggered())
}

func TestWatchdogStartStopIdempotent(t *testing.T) {
	w := New(10*time.Millisecond, zerolog.Nop())
	w.Start(func() {})
	w.Start(func() {}) // no-op, already running
	w.Stop()
	w.Stop() // no-op, already stopped
}

func TestWatchdogResetAllowsRestart(t *testing.T) {
	w := New(10*time.Millisecond, zerolog.Nop())
	var count atomic.Int32
	w.Start(func() { count.Add(1) })
	require.Eventually(t, func() bool { return count.Load() > 0 }, 500*time.Millisecond, 5*time.Millisecond)
	w.Reset()
	require.False(t, w.HasTriggered())

	w.Start(func() { count.Add(1) })
	defer w.Stop()
	require.Eventually(t, func() bool { return count.Load() > 1 }, 500*time.Millisecond, 5*time.Millisecond)
}

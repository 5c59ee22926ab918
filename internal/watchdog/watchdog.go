// Package watchdog implements the heartbeat monitor of spec.md §4.2: a
// monotonic-time deadman's switch the RT scheduler thread kicks every
// cycle, watched by a dedicated monitor goroutine.
package watchdog

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// minPollInterval is the floor on the monitor thread's wake interval,
// per spec.md §4.2 ("clamped to >=1ms").
const minPollInterval = time.Millisecond

// TriggerFunc is invoked exactly once, from the monitor goroutine, the
// first time a timeout is detected.
type TriggerFunc func()

// Watchdog is a monotonic-time heartbeat monitor with a one-shot trigger
// callback. Kick is safe to call from the RT thread on every cycle; the
// monitor goroutine only reads atomics, never blocking the RT thread.
type Watchdog struct {
	timeout time.Duration
	log     zerolog.Logger

	lastKickNs atomic.Int64
	startedAt  time.Time

	triggered atomic.Bool
	running   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}

	mu     sync.Mutex // guards Start/Stop/Reset lifecycle transitions
	onTrig TriggerFunc
}

// New returns a Watchdog with the given timeout. It is not started.
func New(timeout time.Duration, log zerolog.Logger) *Watchdog {
	return &Watchdog{timeout: timeout, log: log}
}

// Start begins monitoring. Idempotent: calling Start while already
// running is a no-op.
func (w *Watchdog) Start(onTrigger TriggerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running.CompareAndSwap(false, true) {
		return
	}

	w.onTrig = onTrigger
	w.triggered.Store(false)
	w.startedAt = time.Now()
	w.lastKickNs.Store(0)
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	interval := w.timeout / 4
	if interval < minPollInterval {
		interval = minPollInterval
	}

	go w.monitor(interval)
}

func (w *Watchdog) monitor(interval time.Duration) {
	defer close(w.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			elapsed := time.Since(w.startedAt).Nanoseconds()
			last := w.lastKickNs.Load()
			if elapsed-last > w.timeout.Nanoseconds() {
				if w.triggered.CompareAndSwap(false, true) {
					w.log.Warn().
						Dur("timeout", w.timeout).
						Int64("elapsed_ns", elapsed-last).
						Msg("watchdog timeout")
					if w.onTrig != nil {
						w.onTrig()
					}
				}
			}
		}
	}
}

// Kick records the current time as the last heartbeat. Called by the RT
// thread once per cycle.
func (w *Watchdog) Kick() {
	w.lastKickNs.Store(time.Since(w.startedAt).Nanoseconds())
}

// HasTriggered reports whether a timeout has been detected since the
// last Start or Reset.
func (w *Watchdog) HasTriggered() bool {
	return w.triggered.Load()
}

// Stop halts the monitor goroutine. Idempotent.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.stopCh)
	<-w.doneCh
}

// Reset performs a full reset: clears stop-request, triggered, and
// running flags so the watchdog can be restarted after Stop.
func (w *Watchdog) Reset() {
	w.Stop()
	w.triggered.Store(false)
	w.lastKickNs.Store(0)
}

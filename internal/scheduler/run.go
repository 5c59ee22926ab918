package scheduler

import (
	"context"
	"errors"
	"time"
)

// Run drives the cycle loop until ctx is cancelled or a fault-class
// error terminates it, implementing the absolute-time sleep of spec.md
// §4.6.5: next_deadline accumulates by a fixed period rather than being
// recomputed from "now", so the loop does not drift under jitter.
func (s *Scheduler) Run(ctx context.Context) error {
	period := s.cfg.CycleTime.D()
	deadline := time.Now().Add(period)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.RunCycle(ctx); err != nil {
			return err
		}

		if s.state.Current() != Run {
			return nil
		}

		if err := absoluteSleep(ctx, deadline); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn().Err(err).Msg("absolute sleep interrupted")
		}
		deadline = deadline.Add(period)
	}
}

// portableAbsoluteSleep blocks until deadline, retrying on spurious early
// wakeup (the portable equivalent of retrying clock_nanosleep on EINTR),
// or returns early if ctx is cancelled. The Linux absoluteSleep
// (sleep_linux.go) uses clock_nanosleep(CLOCK_MONOTONIC, TIMER_ABSTIME)
// directly and falls back to this function when that syscall fails with
// anything other than EINTR; non-Linux platforms always use it.
func portableAbsoluteSleep(ctx context.Context, deadline time.Time) error {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		timer := time.NewTimer(remaining)
		select {
		case <-timer.C:
			continue
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

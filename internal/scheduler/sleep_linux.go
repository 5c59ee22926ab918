//go:build linux

package scheduler

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// absoluteSleep blocks until deadline using
// clock_nanosleep(CLOCK_MONOTONIC, TIMER_ABSTIME), retrying on EINTR,
// per spec.md §4.6.2 step 10 and §4.6.5. ctx cancellation is polled
// between retries rather than interrupting the syscall directly, since
// clock_nanosleep has no context-aware variant.
func absoluteSleep(ctx context.Context, deadline time.Time) error {
	// CLOCK_MONOTONIC does not share the Unix epoch, so the deadline is
	// converted to a monotonic target from the time remaining until it.
	var now unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &now); err != nil {
		return portableAbsoluteSleep(ctx, deadline)
	}
	ts := unix.NsecToTimespec(unix.TimespecToNsec(now) + time.Until(deadline).Nanoseconds())
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := unix.ClockNanosleep(unix.CLOCK_MONOTONIC, unix.TIMER_ABSTIME, &ts, nil)
		if err == nil {
			return nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		// Fall back to the portable sleep for any syscall we cannot
		// honor (e.g. unsupported under a restrictive seccomp filter).
		return portableAbsoluteSleep(ctx, deadline)
	}
}

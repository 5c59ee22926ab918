//go:build !linux

package scheduler

import (
	"context"
	"time"
)

// absoluteSleep is the portable fallback outside Linux; no OS on our
// support matrix exposes clock_nanosleep(TIMER_ABSTIME) through
// golang.org/x/sys in a platform-uniform way.
func absoluteSleep(ctx context.Context, deadline time.Time) error {
	return portableAbsoluteSleep(ctx, deadline)
}

// Package rtposture applies the optional real-time process posture of
// spec.md §4.6.4 before the scheduler's cycle loop starts: locked
// memory, a pre-faulted stack, a real-time scheduling class, and CPU
// affinity. All of it is linux-specific scaffolding built on
// golang.org/x/sys/unix, grounded on the OS-thread-pinning and
// unix.SchedSetaffinity shape of the ublk queue runner in the retrieval
// pack; non-Linux platforms get a warning stub.
package rtposture

import (
	"github.com/joeycumines/plcrt/internal/config"
)

// Result reports what posture steps actually took effect, for the
// composition root to log.
type Result struct {
	MemoryLocked    bool
	SchedulerSet    bool
	AffinitySet     bool
	StackPrefaulted int // bytes
	Warnings        []string
}

// Apply applies cfg's real-time posture to the calling OS thread. The
// caller must have already called runtime.LockOSThread, since
// scheduling policy and CPU affinity are per-thread on Linux.
func Apply(cfg config.RealtimeConfig) (Result, error) {
	if !cfg.Enabled {
		return Result{}, nil
	}
	return applyPlatform(cfg)
}

//go:build !linux

package rtposture

import "github.com/joeycumines/plcrt/internal/config"

// applyPlatform is a no-op outside Linux: real-time posture (mlockall,
// sched_setscheduler, CPU affinity) has no portable equivalent, so we
// warn and continue rather than fail (spec.md §4.6.4).
func applyPlatform(cfg config.RealtimeConfig) (Result, error) {
	return Result{
		Warnings: []string{"realtime posture is unsupported on this platform; running without RT scheduling"},
	}, nil
}

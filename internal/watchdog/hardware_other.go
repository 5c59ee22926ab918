//go:build !linux

package watchdog

import "errors"

// ErrHardwareWatchdogUnsupported is returned on platforms without a
// /dev/watchdog-style kernel interface.
var ErrHardwareWatchdogUnsupported = errors.New("watchdog: hardware watchdog not supported on this platform")

// HardwareWatchdog is a no-op stub on non-Linux platforms.
type HardwareWatchdog struct{}

// OpenHardwareWatchdog always fails on non-Linux platforms.
func OpenHardwareWatchdog(path string) (*HardwareWatchdog, error) {
	return nil, ErrHardwareWatchdogUnsupported
}

func (h *HardwareWatchdog) Kick() error    { return ErrHardwareWatchdogUnsupported }
func (h *HardwareWatchdog) Close() error   { return nil }
func (h *HardwareWatchdog) Abandon() error { return nil }

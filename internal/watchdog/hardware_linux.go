//go:build linux

package watchdog

import (
	"os"

	"golang.org/x/sys/unix"
)

// Linux watchdog ioctl constants (linux/watchdog.h), not exported by
// golang.org/x/sys/unix.
const (
	wdiocKeepalive = 0x80045705 // _IOR('W', 5, int)
)

// magicCloseByte, written before Close, tells the kernel driver this is
// an intentional shutdown rather than a crashed userspace process —
// without it the kernel resets the system on fd close (spec.md §9).
const magicCloseByte = 'V'

// HardwareWatchdog wraps /dev/watchdog: a kernel-level deadman's switch
// run in parallel with the software Watchdog as a last-resort liveness
// guarantee (spec.md §4.2).
type HardwareWatchdog struct {
	f *os.File
}

// OpenHardwareWatchdog opens path (typically "/dev/watchdog"). Returns
// an error if the device is absent or unavailable; callers should
// downgrade this to a warning rather than fail startup, since the
// software watchdog remains authoritative.
func OpenHardwareWatchdog(path string) (*HardwareWatchdog, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &HardwareWatchdog{f: f}, nil
}

// Kick sends the keepalive ioctl.
func (h *HardwareWatchdog) Kick() error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, h.f.Fd(), uintptr(wdiocKeepalive), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// Close writes the magic-close byte and closes the handle, signalling an
// intentional shutdown so the kernel does not reset the system.
func (h *HardwareWatchdog) Close() error {
	_, _ = h.f.Write([]byte{magicCloseByte})
	return h.f.Close()
}

// Abandon closes the handle without the magic-close byte. The kernel
// will reset the system shortly after — used only when the caller
// deliberately wants the hardware reset as a last-resort recovery path.
func (h *HardwareWatchdog) Abandon() error {
	return h.f.Close()
}

//go:build linux

package rtposture

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/plcrt/internal/config"
	"github.com/joeycumines/plcrt/internal/plcerrors"
)

const (
	capIPCLock = 14
	capSysNice = 23
)

const stackFrameSize = 4096
const maxPrefaultFrames = 1000

func applyPlatform(cfg config.RealtimeConfig) (Result, error) {
	var res Result

	if cfg.FailFast {
		if err := requireCapabilities(); err != nil {
			return res, err
		}
	}

	if cfg.LockMemory {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			if err == unix.EPERM && !cfg.FailFast {
				res.Warnings = append(res.Warnings, fmt.Sprintf("mlockall: permission denied: %v", err))
			} else if cfg.FailFast {
				return res, &plcerrors.Config{Msg: "mlockall failed under fail_fast", Cause: err}
			} else {
				res.Warnings = append(res.Warnings, fmt.Sprintf("mlockall failed: %v", err))
			}
		} else {
			res.MemoryLocked = true
		}
	}

	if cfg.PrefaultStackBytes > 0 {
		res.StackPrefaulted = prefaultStack(cfg.PrefaultStackBytes)
	}

	policy, err := schedPolicyConstant(cfg.Policy)
	if err != nil {
		return res, err
	}
	if policy != unix.SCHED_OTHER {
		priority := cfg.Priority
		if priority < 1 {
			priority = 1
		} else if priority > 99 {
			priority = 99
		}
		attr := &unix.SchedParam{Priority: int32(priority)}
		if err := unix.SchedSetscheduler(0, policy, attr); err != nil {
			if cfg.FailFast {
				return res, &plcerrors.Config{Msg: "sched_setscheduler failed under fail_fast", Cause: err}
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("sched_setscheduler failed: %v", err))
		} else {
			res.SchedulerSet = true
		}
	}

	if len(cfg.CPUAffinity) > 0 {
		var mask unix.CPUSet
		for _, cpu := range cfg.CPUAffinity {
			mask.Set(cpu)
		}
		if err := unix.SchedSetaffinity(0, &mask); err != nil {
			if cfg.FailFast {
				return res, &plcerrors.Config{Msg: "sched_setaffinity failed under fail_fast", Cause: err}
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("sched_setaffinity failed: %v", err))
		} else {
			res.AffinitySet = true
		}
	}

	return res, nil
}

func schedPolicyConstant(p config.SchedPolicy) (int, error) {
	switch p {
	case config.SchedFifo:
		return unix.SCHED_FIFO, nil
	case config.SchedRR:
		return unix.SCHED_RR, nil
	case config.SchedOther, "":
		return unix.SCHED_OTHER, nil
	default:
		return 0, &plcerrors.Config{Msg: "unknown realtime.policy: " + string(p)}
	}
}

// prefaultStack recursively touches stack pages to pre-fault them,
// capped at maxPrefaultFrames deep regardless of the requested byte
// count, per spec.md §4.6.4.
func prefaultStack(bytesWanted int) int {
	frames := bytesWanted / stackFrameSize
	if frames > maxPrefaultFrames {
		frames = maxPrefaultFrames
	}
	touchFrame(frames)
	return frames * stackFrameSize
}

func touchFrame(remaining int) {
	if remaining <= 0 {
		return
	}
	var frame [stackFrameSize]byte
	for i := range frame {
		frame[i] = 0
	}
	touchFrame(remaining - 1)
	_ = frame[stackFrameSize-1]
}

// requireCapabilities fails fast if the process lacks CAP_SYS_NICE or
// CAP_IPC_LOCK, per spec.md §4.6.4.
func requireCapabilities() error {
	eff, err := effectiveCapabilities()
	if err != nil {
		return &plcerrors.Config{Msg: "failed to read process capabilities", Cause: err}
	}
	if eff&(1<<capSysNice) == 0 {
		return &plcerrors.Config{Msg: "realtime.fail_fast: missing CAP_SYS_NICE"}
	}
	if eff&(1<<capIPCLock) == 0 {
		return &plcerrors.Config{Msg: "realtime.fail_fast: missing CAP_IPC_LOCK"}
	}
	return nil
}

// effectiveCapabilities parses the CapEff bitmask from /proc/self/status,
// avoiding a cgo dependency on libcap.
func effectiveCapabilities() (uint64, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if rest, ok := strings.CutPrefix(line, "CapEff:"); ok {
			return strconv.ParseUint(strings.TrimSpace(rest), 16, 64)
		}
	}
	return 0, scanner.Err()
}

// Package faultrecorder implements the fixed-capacity ring of per-cycle
// fault frames described in spec.md §4.3: a pre-allocated, non-blocking
// diagnostic buffer the scheduler writes to every cycle and freezes the
// instant a fault is detected.
package faultrecorder

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/plcrt/internal/ioimage"
)

// DefaultCapacity is the default ring size (spec.md §3).
const DefaultCapacity = 64

// FaultReason tags why a frame was recorded as a fault frame.
type FaultReason uint8

const (
	ReasonNone FaultReason = iota
	ReasonCycleOverrun
	ReasonWasmTrap
	ReasonWatchdogTimeout
	ReasonFieldbusError
	ReasonWkcError
	ReasonLogicError
	ReasonExternal
)

func (r FaultReason) String() string {
	switch r {
	case ReasonNone:
		return "NONE"
	case ReasonCycleOverrun:
		return "CYCLE_OVERRUN"
	case ReasonWasmTrap:
		return "WASM_TRAP"
	case ReasonWatchdogTimeout:
		return "WATCHDOG_TIMEOUT"
	case ReasonFieldbusError:
		return "FIELDBUS_ERROR"
	case ReasonWkcError:
		return "WKC_ERROR"
	case ReasonLogicError:
		return "LOGIC_ERROR"
	case ReasonExternal:
		return "EXTERNAL"
	default:
		return "UNKNOWN"
	}
}

// PhaseTimings is the per-phase nanosecond breakdown of a single cycle
// (spec.md §4.6.2 step 8).
type PhaseTimings struct {
	IoReadNs  int64
	LogicNs   int64
	IoWriteNs int64
	TotalNs   int64
}

// WkcPair carries the observed and expected EtherCAT working counters for
// the cycle, when the fieldbus driver is EtherCAT.
type WkcPair struct {
	Observed, Expected uint16
}

// FaultFrame is one slot of the ring: cycle number, timestamp, I/O
// snapshots, phase timings, optional WKC pair, fault reason, and a valid
// bit. Zero-valued until Record* populates it.
type FaultFrame struct {
	Cycle       uint64
	TimestampNs int64
	Inputs      ioimage.ProcessData
	Outputs     ioimage.ProcessData
	Timings     PhaseTimings
	Wkc         *WkcPair
	Reason      FaultReason
	Valid       bool
}

// Recorder is the pre-allocated ring buffer of FaultFrame slots.
type Recorder struct {
	sessionID uuid.UUID
	startedAt time.Time

	frames   []FaultFrame
	writePos int
	count    int
	frozen   bool
}

// New returns a Recorder with the given capacity (default
// DefaultCapacity when capacity <= 0), all frames pre-allocated.
func New(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		sessionID: uuid.New(),
		startedAt: time.Now(),
		frames:    make([]FaultFrame, capacity),
	}
}

// SessionID is a stable, opaque identifier for this recorder instance,
// useful as an external log-correlation key.
func (r *Recorder) SessionID() uuid.UUID { return r.sessionID }

// RecordCycle writes a normal (non-fault) frame for cycle, advances the
// ring, and returns the slot for the caller to populate further (I/O
// snapshots, WKC). Returns nil if the recorder is frozen.
func (r *Recorder) RecordCycle(cycle uint64, timings PhaseTimings) *FaultFrame {
	if r.frozen {
		return nil
	}
	slot := &r.frames[r.writePos]
	*slot = FaultFrame{
		Cycle:       cycle,
		TimestampNs: time.Since(r.startedAt).Nanoseconds(),
		Timings:     timings,
		Reason:      ReasonNone,
		Valid:       true,
	}
	r.writePos = (r.writePos + 1) % len(r.frames)
	if r.count < len(r.frames) {
		r.count++
	}
	return slot
}

// RecordFaultWithIO writes a dedicated fault frame for cycle — NOT
// reusing or overwriting the previous normal frame's metadata, so the
// fault is attributed to the exact cycle it was detected in — then
// freezes the recorder. A no-op if already frozen.
func (r *Recorder) RecordFaultWithIO(cycle uint64, reason FaultReason, timings PhaseTimings, inputs, outputs ioimage.ProcessData) *FaultFrame {
	if r.frozen {
		return nil
	}
	slot := &r.frames[r.writePos]
	*slot = FaultFrame{
		Cycle:       cycle,
		TimestampNs: time.Since(r.startedAt).Nanoseconds(),
		Inputs:      inputs,
		Outputs:     outputs,
		Timings:     timings,
		Reason:      reason,
		Valid:       true,
	}
	r.writePos = (r.writePos + 1) % len(r.frames)
	if r.count < len(r.frames) {
		r.count++
	}
	r.freeze()
	return slot
}

// freeze disallows further writes while preserving fault context.
func (r *Recorder) freeze() {
	r.frozen = true
}

// Freeze is the exported form of freeze, for callers that need to halt
// recording without attaching a fault frame (e.g. SafeStop shutdown).
func (r *Recorder) Freeze() {
	r.freeze()
}

// Frozen reports whether the recorder has stopped accepting writes.
func (r *Recorder) Frozen() bool {
	return r.frozen
}

// FramesChronological returns valid frames oldest-to-newest. The slice
// is a copy; mutating it does not affect the recorder.
func (r *Recorder) FramesChronological() []FaultFrame {
	out := make([]FaultFrame, 0, r.count)
	if r.count < len(r.frames) {
		// Ring not yet wrapped: frames [0, count) in order, oldest first.
		for i := 0; i < r.count; i++ {
			out = append(out, r.frames[i])
		}
		return out
	}
	// Ring wrapped: oldest frame is at writePos, walk forward.
	for i := 0; i < len(r.frames); i++ {
		idx := (r.writePos + i) % len(r.frames)
		out = append(out, r.frames[idx])
	}
	return out
}

// FaultSummary is a one-line digest suitable for log output.
func (r *Recorder) FaultSummary() string {
	frames := r.FramesChronological()
	if len(frames) == 0 {
		return fmt.Sprintf("session=%s no frames recorded", r.sessionID)
	}
	last := frames[len(frames)-1]
	if last.Reason == ReasonNone {
		return fmt.Sprintf("session=%s cycle=%d no fault (last normal frame)", r.sessionID, last.Cycle)
	}
	return fmt.Sprintf("session=%s cycle=%d reason=%s total_ns=%d", r.sessionID, last.Cycle, last.Reason, last.Timings.TotalNs)
}

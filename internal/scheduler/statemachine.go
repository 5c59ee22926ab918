package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/plcrt/internal/plcerrors"
)

// StateMachine wraps RuntimeState with the transition rules of spec.md
// §4.6.1. The current state is held in an atomic word (mirroring the
// eventloop FastState pattern) so external callers — e.g. enter_fault
// requested via a message from a non-RT source — can observe and request
// transitions without a full mutex, while the RT thread is the only
// actual mutator in the common case.
type StateMachine struct {
	mu      sync.Mutex
	current atomic.Uint32

	// latched is set when the latch policy requires external
	// acknowledgement before Fault -> Init is permitted (spec.md §7,
	// open question 2: fault_latch is authoritative in this rewrite).
	latchEnabled bool
	latched      atomic.Bool
}

// NewStateMachine returns a StateMachine in Boot, with the given
// fault-latch policy (config key fault_policy.fault_latch).
func NewStateMachine(faultLatch bool) *StateMachine {
	sm := &StateMachine{latchEnabled: faultLatch}
	sm.current.Store(uint32(Boot))
	return sm
}

// Current returns the current state.
func (sm *StateMachine) Current() RuntimeState {
	return RuntimeState(sm.current.Load())
}

// Transition attempts (from the caller's understanding of the current
// state) to move to target. It re-validates against the live state under
// the lock to avoid racing a concurrent enter_fault.
func (sm *StateMachine) Transition(to RuntimeState) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from := RuntimeState(sm.current.Load())
	if to == Init && from == Fault && sm.latchEnabled && sm.latched.Load() {
		return &plcerrors.InvalidStateTransition{From: from.String(), To: to.String()}
	}
	if !CanTransitionTo(from, to) {
		return &plcerrors.InvalidStateTransition{From: from.String(), To: to.String()}
	}
	sm.current.Store(uint32(to))
	if to == Fault && sm.latchEnabled {
		sm.latched.Store(true)
	}
	if to != Fault {
		sm.latched.Store(false)
	}
	return nil
}

// EnterFault is idempotent per spec.md §4.6.1: if the current state
// cannot transition to Fault (e.g. already Fault, or SafeStop), it is a
// no-op rather than an error. It may be
// invoked from external fault sources; the caller is responsible for
// serializing such external requests onto the RT thread's cycle loop
// where spec.md §5 requires strict program ordering — this method itself
// is merely safe to call concurrently.
func (sm *StateMachine) EnterFault() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from := RuntimeState(sm.current.Load())
	if from == Fault {
		return
	}
	if !CanTransitionTo(from, Fault) {
		return
	}
	sm.current.Store(uint32(Fault))
	if sm.latchEnabled {
		sm.latched.Store(true)
	}
}

// Acknowledge clears a fault latch, permitting a subsequent Fault -> Init
// transition when fault_latch is enabled. A no-op when the latch policy
// is disabled or nothing is latched.
func (sm *StateMachine) Acknowledge() {
	sm.latched.Store(false)
}

// IsLatched reports whether an unacknowledged fault latch is blocking
// recovery.
func (sm *StateMachine) IsLatched() bool {
	return sm.latchEnabled && sm.latched.Load()
}

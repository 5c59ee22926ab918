package ethercat

import "fmt"

// MasterState is the EtherCAT AL-state machine (spec.md §4.5.1).
type MasterState uint8

const (
	Offline MasterState = iota
	Init
	PreOp
	SafeOp
	Op
	Fault
)

func (s MasterState) String() string {
	switch s {
	case Offline:
		return "Offline"
	case Init:
		return "Init"
	case PreOp:
		return "PreOp"
	case SafeOp:
		return "SafeOp"
	case Op:
		return "Op"
	case Fault:
		return "Fault"
	default:
		return fmt.Sprintf("MasterState(%d)", uint8(s))
	}
}

// forward is the strictly-monotonic happy-path transition for each
// state; shutdown walks the reverse chain one step at a time.
var forward = map[MasterState]MasterState{
	Offline: Init,
	Init:    PreOp,
	PreOp:   SafeOp,
	SafeOp:  Op,
}

// backward is the one-step reverse transition used by shutdown.
var backward = map[MasterState]MasterState{
	Op:     SafeOp,
	SafeOp: PreOp,
	PreOp:  Init,
	Init:   Offline,
}

// canAdvance reports whether from -> to is a legal forward step or a
// transition into Fault (always permitted, any state).
func canAdvance(from, to MasterState) bool {
	if to == Fault {
		return true
	}
	return forward[from] == to
}

package scheduler

import "fmt"

// RuntimeState is the PLC lifecycle state (spec.md §3).
type RuntimeState uint8

const (
	Boot RuntimeState = iota
	Init
	PreOp
	Run
	Fault
	SafeStop
)

func (s RuntimeState) String() string {
	switch s {
	case Boot:
		return "Boot"
	case Init:
		return "Init"
	case PreOp:
		return "PreOp"
	case Run:
		return "Run"
	case Fault:
		return "Fault"
	case SafeStop:
		return "SafeStop"
	default:
		return fmt.Sprintf("RuntimeState(%d)", uint8(s))
	}
}

// transitions is the adjacency list from spec.md §4.6.1.
var transitions = map[RuntimeState]map[RuntimeState]bool{
	Boot:     {Init: true, Fault: true},
	Init:     {PreOp: true, Fault: true},
	PreOp:    {Run: true, Fault: true, SafeStop: true},
	Run:      {Fault: true, SafeStop: true},
	Fault:    {Init: true, SafeStop: true},
	SafeStop: {Boot: true},
}

// CanTransitionTo reports whether (from, to) is an allowed transition.
func CanTransitionTo(from, to RuntimeState) bool {
	return transitions[from][to]
}

// Package plcerrors defines the tagged runtime error taxonomy surfaced
// to the supervising layer (spec.md §6, "Exit / runtime errors"). Each
// type carries the fields the taxonomy names and supports errors.Is/As
// via Unwrap, following the pattern eventloop/errors.go uses for its
// ES2022-flavoured error types.
package plcerrors

import "fmt"

// InvalidStateTransition is returned when a RuntimeState transition is
// attempted that is not in the allowed adjacency list (spec.md §4.6.1).
type InvalidStateTransition struct {
	From, To string
}

func (e *InvalidStateTransition) Error() string {
	return fmt.Sprintf("plcrt: invalid state transition %s -> %s", e.From, e.To)
}

// CycleOverrun is returned when a cycle's execution time exceeds the
// configured period by more than max_overrun under OverrunPolicyFault.
type CycleOverrun struct {
	ExpectedNs, ActualNs int64
}

func (e *CycleOverrun) Error() string {
	return fmt.Sprintf("plcrt: cycle overrun: expected %dns, actual %dns", e.ExpectedNs, e.ActualNs)
}

// WasmTrap wraps a trap raised by the sandboxed logic engine (epoch
// exhaustion, fuel exhaustion, out-of-bounds memory access, etc.).
type WasmTrap struct {
	Msg   string
	Cause error
}

func (e *WasmTrap) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("plcrt: wasm trap: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("plcrt: wasm trap: %s", e.Msg)
}

func (e *WasmTrap) Unwrap() error { return e.Cause }

// Fault wraps the reason the runtime entered the Fault state.
type Fault struct {
	Reason string
}

func (e *Fault) Error() string {
	return fmt.Sprintf("plcrt: fault: %s", e.Reason)
}

// FieldbusError wraps a transport-level failure from the fieldbus master.
type FieldbusError struct {
	Msg   string
	Cause error
}

func (e *FieldbusError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("plcrt: fieldbus error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("plcrt: fieldbus error: %s", e.Msg)
}

func (e *FieldbusError) Unwrap() error { return e.Cause }

// WkcThresholdExceeded is returned when consecutive WKC mismatches reach
// the configured threshold (spec.md §4.5.2).
type WkcThresholdExceeded struct {
	Consecutive, Threshold int
}

func (e *WkcThresholdExceeded) Error() string {
	return fmt.Sprintf("plcrt: wkc threshold exceeded: %d consecutive mismatches (threshold %d)", e.Consecutive, e.Threshold)
}

// Config wraps a configuration validation failure, detected before Run.
type Config struct {
	Msg   string
	Cause error
}

func (e *Config) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("plcrt: config error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("plcrt: config error: %s", e.Msg)
}

func (e *Config) Unwrap() error { return e.Cause }

// IOError wraps a terminal I/O failure (e.g. hardware watchdog device,
// transport close) that drives the runtime to SafeStop.
type IOError struct {
	Msg   string
	Cause error
}

func (e *IOError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("plcrt: io error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("plcrt: io error: %s", e.Msg)
}

func (e *IOError) Unwrap() error { return e.Cause }

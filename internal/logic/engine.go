// Package logic defines the Engine interface the scheduler is
// polymorphic over (spec.md §4.4.1), plus NullEngine, a pass-through
// implementation used to test the scheduler without a sandbox.
package logic

import (
	"context"

	"github.com/joeycumines/plcrt/internal/ioimage"
)

// EpochTicker is the optional cooperator a hot-reloadable Wasm engine
// returns from StartEpochTicker: a handle whose Stop releases the
// background goroutine that increments the engine's epoch counter.
type EpochTicker interface {
	Stop()
}

// Engine is the capability set the scheduler requires from any logic
// engine implementation (spec.md §4.4.1). Optional capabilities
// (ReloadModule, SupportsHotReload, StartEpochTicker) are still part of
// the interface — Go has no optional-method dispatch, so implementations
// that do not support hot reload return ErrHotReloadUnsupported and
// report false from SupportsHotReload, and StartEpochTicker returns nil
// when there is nothing to tick.
type Engine interface {
	// Init is called once before the first Step; may run the module's
	// constructor.
	Init(ctx context.Context) error

	// Step executes exactly one scan, bounded in time per the engine's
	// own budget mechanism (e.g. Wasm epoch/fuel limits).
	Step(ctx context.Context, inputs ioimage.ProcessData) (ioimage.ProcessData, error)

	// Fault is called when entering the Fault state; should zero any
	// sandboxed outputs. Failures here are logged by the caller, not
	// propagated.
	Fault(ctx context.Context) error

	// IsReady reports whether a Step may be attempted.
	IsReady() bool

	// SupportsHotReload is a capability probe.
	SupportsHotReload() bool

	// ReloadModule hot-swaps the running module (spec.md §4.4.5).
	// Returns ErrHotReloadUnsupported if SupportsHotReload is false.
	ReloadModule(ctx context.Context, newBytes []byte, preserveMemory bool) error

	// StartEpochTicker starts the optional timeout cooperator and
	// returns a handle to stop it, or nil if this engine has none.
	StartEpochTicker() EpochTicker
}

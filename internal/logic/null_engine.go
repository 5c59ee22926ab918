package logic

import (
	"context"

	"github.com/joeycumines/plcrt/internal/ioimage"
)

// NullEngine passes inputs through unchanged. It exists to exercise the
// scheduler's cycle algorithm, state machine, and fault pipeline without
// a Wasm sandbox (spec.md §4.4.1).
type NullEngine struct {
	ready bool
}

// NewNullEngine returns a NullEngine, not yet initialized.
func NewNullEngine() *NullEngine {
	return &NullEngine{}
}

func (e *NullEngine) Init(ctx context.Context) error {
	e.ready = true
	return nil
}

func (e *NullEngine) Step(ctx context.Context, inputs ioimage.ProcessData) (ioimage.ProcessData, error) {
	return inputs, nil
}

func (e *NullEngine) Fault(ctx context.Context) error {
	return nil
}

func (e *NullEngine) IsReady() bool {
	return e.ready
}

func (e *NullEngine) SupportsHotReload() bool {
	return false
}

func (e *NullEngine) ReloadModule(ctx context.Context, newBytes []byte, preserveMemory bool) error {
	return ErrHotReloadUnsupported
}

func (e *NullEngine) StartEpochTicker() EpochTicker {
	return nil
}

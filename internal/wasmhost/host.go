package wasmhost

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/joeycumines/plcrt/internal/config"
	"github.com/joeycumines/plcrt/internal/ioimage"
	"github.com/joeycumines/plcrt/internal/logic"
	"github.com/joeycumines/plcrt/internal/plcerrors"
)

// Engine is the wazero-backed implementation of logic.Engine (spec.md
// §4.4). Every exported Wasm entry point (init, step, fault) runs inside
// a single linear memory instance whose layout is fixed by layout.go;
// only Init/Step/Fault/ReloadModule touch e.module, guarded by mu.
type Engine struct {
	cfg config.WasmConfig
	log zerolog.Logger

	runtime  wazero.Runtime
	compiled wazero.CompiledModule

	mu       sync.Mutex
	module   api.Module
	ready    bool
	moduleGen uint64

	cycleTimeNs int64
	cycleCount  uint64
	firstCycle  bool

	fuelUsed  atomic.Uint64
	fuelLimit uint64
}

var _ logic.Engine = (*Engine)(nil)

// NewEngine constructs an Engine from compiled Wasm module bytes. The
// runtime is configured with cfg's memory limit (spec.md §4.4.1:
// max_memory_bytes; max_table_elements is not enforced, as wazero has no
// table-size limit setting) and, when
// cfg.Deterministic is set, deterministic floating-point/NaN semantics
// via wazero's WithCoreFeatures defaults (wazero is deterministic by
// default; Deterministic here documents intent for operators reading
// config rather than toggling a wazero knob that does not exist).
func NewEngine(ctx context.Context, cfg config.WasmConfig, moduleBytes []byte, log zerolog.Logger) (*Engine, error) {
	rtCfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(uint32(cfg.MaxMemoryBytes / (64 * 1024)))

	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)

	e := &Engine{
		cfg:       cfg,
		log:       log,
		runtime:   rt,
		fuelLimit: cfg.FuelPerCycle,
		firstCycle: true,
	}

	if err := e.registerHostModule(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, &plcerrors.WasmTrap{Msg: "failed to register host module", Cause: err}
	}

	compiled, err := rt.CompileModule(ctx, moduleBytes)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, &plcerrors.WasmTrap{Msg: "failed to compile module", Cause: err}
	}
	e.compiled = compiled

	mod, err := e.instantiate(ctx)
	if err != nil {
		_ = compiled.Close(ctx)
		_ = rt.Close(ctx)
		return nil, err
	}
	e.module = mod

	return e, nil
}

func (e *Engine) instantiate(ctx context.Context) (api.Module, error) {
	modCfg := wazero.NewModuleConfig().
		WithName(fmt.Sprintf("plc-logic-%d", e.moduleGen))
	mod, err := e.runtime.InstantiateModule(ctx, e.compiled, modCfg)
	if err != nil {
		return nil, &plcerrors.WasmTrap{Msg: "failed to instantiate module", Cause: err}
	}
	e.moduleGen++
	return mod, nil
}

// fuelCharge approximates wasmtime-style fuel metering (wazero has no
// native equivalent): every host call counts as one unit of work
// against cfg.FuelPerCycle, tripped at the start of the next Step.
func (e *Engine) fuelCharge() {
	if e.cfg.UseFuel {
		e.fuelUsed.Add(1)
	}
}

func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.module.ExportedFunction("init")
	if fn != nil {
		if _, err := fn.Call(ctx); err != nil {
			return &plcerrors.WasmTrap{Msg: "module init() trapped", Cause: err}
		}
	}
	e.ready = true
	return nil
}

func (e *Engine) Step(ctx context.Context, inputs ioimage.ProcessData) (ioimage.ProcessData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return ioimage.ProcessData{}, &plcerrors.WasmTrap{Msg: "step called before init"}
	}

	if e.cfg.UseFuel && e.fuelLimit > 0 && e.fuelUsed.Load() > e.fuelLimit {
		return ioimage.ProcessData{}, &plcerrors.WasmTrap{Msg: "fuel budget exceeded"}
	}
	e.fuelUsed.Store(0)

	mem := e.module.Memory()
	buf, ok := mem.Read(0, mem.Size())
	if !ok {
		return ioimage.ProcessData{}, &plcerrors.WasmTrap{Msg: "failed to access linear memory"}
	}

	layoutWriteInputs(buf, inputs.Digital, inputs.Analog)
	flags := uint32(0)
	if e.firstCycle {
		flags |= FlagFirstCycle
	}
	layoutWriteSystemInfo(buf, uint32(e.cycleTimeNs), flags)
	mem.Write(0, buf)

	fn := e.module.ExportedFunction("step")
	if fn == nil {
		return ioimage.ProcessData{}, &plcerrors.WasmTrap{Msg: "module exports no step() function"}
	}
	if budget := e.cfg.TickInterval.D() * time.Duration(e.cfg.MaxEpochsPerCycle); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	if _, err := fn.Call(ctx); err != nil {
		return ioimage.ProcessData{}, &plcerrors.WasmTrap{Msg: "step() trapped", Cause: err}
	}

	out, ok := mem.Read(0, mem.Size())
	if !ok {
		return ioimage.ProcessData{}, &plcerrors.WasmTrap{Msg: "failed to read back linear memory"}
	}
	digital, analog := layoutReadOutputs(out)

	e.cycleCount++
	e.firstCycle = false

	return ioimage.ProcessData{Digital: digital, Analog: analog}, nil
}

func (e *Engine) Fault(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.module == nil {
		return nil
	}
	mem := e.module.Memory()
	buf, ok := mem.Read(0, mem.Size())
	if !ok {
		return &plcerrors.WasmTrap{Msg: "failed to access linear memory during fault"}
	}
	layoutZeroOutputs(buf)
	mem.Write(0, buf)

	if fn := e.module.ExportedFunction("fault"); fn != nil {
		if _, err := fn.Call(ctx); err != nil {
			return &plcerrors.WasmTrap{Msg: "fault() trapped", Cause: err}
		}
	}
	return nil
}

func (e *Engine) IsReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

func (e *Engine) SupportsHotReload() bool {
	return true
}

// ReloadModule implements the seven-step hot-reload algorithm of spec.md
// §4.4.5: compile the replacement in isolation, instantiate it
// side-by-side with the live module, and only swap the live pointer
// once the replacement's init() has succeeded — on any failure the old
// module remains active and untouched.
func (e *Engine) ReloadModule(ctx context.Context, newBytes []byte, preserveMemory bool) error {
	newCompiled, err := e.runtime.CompileModule(ctx, newBytes)
	if err != nil {
		return &plcerrors.WasmTrap{Msg: "hot reload: failed to compile replacement module", Cause: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var savedMem []byte
	if preserveMemory && e.module != nil {
		mem := e.module.Memory()
		savedMem, _ = mem.Read(0, mem.Size())
	}

	oldCompiled := e.compiled
	oldModule := e.module

	e.compiled = newCompiled
	newModule, err := e.instantiate(ctx)
	if err != nil {
		// old module remains active; restore compiled handle.
		e.compiled = oldCompiled
		_ = newCompiled.Close(ctx)
		return err
	}

	if newModule.ExportedFunction("step") == nil || newModule.Memory() == nil {
		// old module remains active and untouched.
		e.compiled = oldCompiled
		_ = newModule.Close(ctx)
		_ = newCompiled.Close(ctx)
		return &plcerrors.WasmTrap{Msg: "hot reload: replacement module exports no step() function or memory"}
	}

	if preserveMemory && savedMem != nil {
		newModule.Memory().Write(0, savedMem)
	}

	// Skip init() when a memory snapshot was captured and restored: the
	// restored state already reflects a prior init() run.
	if !preserveMemory || savedMem == nil {
		if fn := newModule.ExportedFunction("init"); fn != nil {
			if _, err := fn.Call(ctx); err != nil {
				// replacement failed to initialize: discard it, keep the
				// old module running untouched.
				e.compiled = oldCompiled
				_ = newModule.Close(ctx)
				_ = newCompiled.Close(ctx)
				return &plcerrors.WasmTrap{Msg: "hot reload: replacement init() trapped", Cause: err}
			}
		}
	}

	e.module = newModule
	e.ready = true
	e.firstCycle = true
	e.fuelUsed.Store(0)

	if oldModule != nil {
		_ = oldModule.Close(ctx)
	}
	if oldCompiled != nil && oldCompiled != newCompiled {
		_ = oldCompiled.Close(ctx)
	}

	return nil
}

// epochTicker is the handle StartEpochTicker returns. Its goroutine only
// ticks at cfg.TickInterval until Stop; it does not count epochs or
// interrupt a running step. wazero has no native wasmtime-style
// epoch-interruption API, so the per-step budget comes from Step instead:
// each step() call runs under a context derived with WithTimeout bounded
// by cfg.TickInterval * cfg.MaxEpochsPerCycle (when both are non-zero),
// enforced via RuntimeConfig.WithCloseOnContextDone.
type epochTicker struct {
	stop chan struct{}
	once sync.Once
}

func (t *epochTicker) Stop() {
	t.once.Do(func() { close(t.stop) })
}

func (e *Engine) StartEpochTicker() logic.EpochTicker {
	if e.cfg.TickInterval.D() <= 0 {
		return nil
	}
	t := &epochTicker{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(e.cfg.TickInterval.D())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
			case <-t.stop:
				return
			}
		}
	}()
	return t
}

// Close releases the underlying wazero runtime. Not part of
// logic.Engine; called by the composition root on shutdown.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.module != nil {
		_ = e.module.Close(ctx)
	}
	if e.compiled != nil {
		_ = e.compiled.Close(ctx)
	}
	return e.runtime.Close(ctx)
}

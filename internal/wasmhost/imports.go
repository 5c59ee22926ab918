package wasmhost

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// registerHostModule builds the `plc` import namespace (spec.md §4.4.3)
// against the Engine's live state. Every host function is synchronous
// and re-entrancy-free: none of them call back into the Wasm instance.
func (e *Engine) registerHostModule(ctx context.Context, rt wazero.Runtime) error {
	_, err := rt.NewHostModuleBuilder("plc").
		NewFunctionBuilder().WithFunc(e.hostReadDI).Export("read_di").
		NewFunctionBuilder().WithFunc(e.hostWriteDO).Export("write_do").
		NewFunctionBuilder().WithFunc(e.hostReadAI).Export("read_ai").
		NewFunctionBuilder().WithFunc(e.hostWriteAO).Export("write_ao").
		NewFunctionBuilder().WithFunc(e.hostGetCycleTime).Export("get_cycle_time").
		NewFunctionBuilder().WithFunc(e.hostGetCycleCount).Export("get_cycle_count").
		NewFunctionBuilder().WithFunc(e.hostIsFirstCycle).Export("is_first_cycle").
		NewFunctionBuilder().WithFunc(e.hostLogMessage).Export("log_message").
		Instantiate(ctx)
	return err
}

func (e *Engine) hostReadDI(ctx context.Context, mod api.Module, bit int32) int32 {
	e.fuelCharge()
	if bit < 0 || bit > 31 {
		return 0
	}
	mem, ok := mod.Memory().Read(OffsetDigitalInputs, 4)
	if !ok {
		return 0
	}
	digital := uint32(mem[0]) | uint32(mem[1])<<8 | uint32(mem[2])<<16 | uint32(mem[3])<<24
	if digital&(1<<uint(bit)) != 0 {
		return 1
	}
	return 0
}

func (e *Engine) hostWriteDO(ctx context.Context, mod api.Module, bit, value int32) {
	e.fuelCharge()
	if bit < 0 || bit > 31 {
		return
	}
	mem := mod.Memory()
	current, ok := mem.ReadUint32Le(OffsetDigitalOutputs)
	if !ok {
		return
	}
	if value != 0 {
		current |= 1 << uint(bit)
	} else {
		current &^= 1 << uint(bit)
	}
	mem.WriteUint32Le(OffsetDigitalOutputs, current)
}

func (e *Engine) hostReadAI(ctx context.Context, mod api.Module, channel int32) int32 {
	e.fuelCharge()
	if channel < 0 || channel >= AnalogChannelCount {
		return 0
	}
	v, ok := mod.Memory().ReadUint16Le(uint32(OffsetAnalogInputs + channel*2))
	if !ok {
		return 0
	}
	return int32(int16(v)) // sign-extend
}

func (e *Engine) hostWriteAO(ctx context.Context, mod api.Module, channel, value int32) {
	e.fuelCharge()
	if channel < 0 || channel >= AnalogChannelCount {
		return
	}
	clamped := clampAnalog(value)
	mod.Memory().WriteUint16Le(uint32(OffsetAnalogOutputs+channel*2), uint16(clamped))
}

func (e *Engine) hostGetCycleTime(ctx context.Context, mod api.Module) int32 {
	e.fuelCharge()
	ns := e.cycleTimeNs
	if ns > int64(1<<31-1) {
		return 1<<31 - 1
	}
	return int32(ns)
}

func (e *Engine) hostGetCycleCount(ctx context.Context, mod api.Module) int64 {
	e.fuelCharge()
	return int64(e.cycleCount)
}

func (e *Engine) hostIsFirstCycle(ctx context.Context, mod api.Module) int32 {
	e.fuelCharge()
	if e.firstCycle {
		return 1
	}
	return 0
}

func (e *Engine) hostLogMessage(ctx context.Context, mod api.Module, ptr, length int32) {
	e.fuelCharge()
	if ptr < 0 || length < 0 {
		return
	}
	end := int64(ptr) + int64(length)
	if end > int64(mod.Memory().Size()) {
		return
	}
	buf, ok := mod.Memory().Read(uint32(ptr), uint32(length))
	if !ok {
		return
	}
	e.log.Info().Str("source", "wasm").Msg(string(buf))
}

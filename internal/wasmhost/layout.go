// Package wasmhost implements the sandboxed Wasm logic engine of
// spec.md §4.4: a wazero-backed host exposing the `plc` import
// namespace and the fixed linear-memory layout of §4.4.2.
package wasmhost

import "encoding/binary"

// Linear memory offsets (spec.md §4.4.2). All multi-byte values are
// little-endian.
const (
	OffsetDigitalInputs  = 0x0000
	OffsetDigitalOutputs = 0x0004
	OffsetAnalogInputs   = 0x0008
	OffsetAnalogOutputs  = 0x0028
	OffsetSystemInfo     = 0x0048
	OffsetUserData       = 0x0050

	AnalogChannelCount = 16
)

// System info flags (system_info.flags bitfield, spec.md §4.4.2).
const (
	FlagFirstCycle uint32 = 1 << 0
	FlagFaultMode  uint32 = 1 << 1
)

// layoutWriteInputs writes a ProcessData-shaped (digital, analog) pair
// into mem at the digital/analog-input offsets.
func layoutWriteInputs(mem []byte, digital uint32, analog [AnalogChannelCount]int16) {
	binary.LittleEndian.PutUint32(mem[OffsetDigitalInputs:], digital)
	for i, v := range analog {
		binary.LittleEndian.PutUint16(mem[OffsetAnalogInputs+i*2:], uint16(v))
	}
}

// layoutReadOutputs reads the digital/analog-output words out of mem.
func layoutReadOutputs(mem []byte) (digital uint32, analog [AnalogChannelCount]int16) {
	digital = binary.LittleEndian.Uint32(mem[OffsetDigitalOutputs:])
	for i := range analog {
		analog[i] = int16(binary.LittleEndian.Uint16(mem[OffsetAnalogOutputs+i*2:]))
	}
	return digital, analog
}

// layoutZeroOutputs zeroes the digital and analog output region, used by
// Fault() to force sandboxed outputs safe (spec.md §4.4.6).
func layoutZeroOutputs(mem []byte) {
	binary.LittleEndian.PutUint32(mem[OffsetDigitalOutputs:], 0)
	for i := 0; i < AnalogChannelCount; i++ {
		binary.LittleEndian.PutUint16(mem[OffsetAnalogOutputs+i*2:], 0)
	}
}

// layoutWriteSystemInfo writes the cycle_time_ns/flags pair.
func layoutWriteSystemInfo(mem []byte, cycleTimeNs uint32, flags uint32) {
	binary.LittleEndian.PutUint32(mem[OffsetSystemInfo:], cycleTimeNs)
	binary.LittleEndian.PutUint32(mem[OffsetSystemInfo+4:], flags)
}

// clampAnalog clamps value to the int16 range, matching write_ao's
// contract (spec.md §4.4.3).
func clampAnalog(value int32) int16 {
	if value > 32767 {
		return 32767
	}
	if value < -32768 {
		return -32768
	}
	return int16(value)
}

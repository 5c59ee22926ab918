// Package config decodes and validates the runtime configuration tree
// enumerated in spec.md §6, mirroring the structure (and defaults) of
// original_source/crates/plc-common/src/config.rs but expressed as a Go
// struct tree decoded from TOML via github.com/BurntSushi/toml — the
// toml library already present in the teacher monorepo's root go.mod.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/plcrt/internal/plcerrors"
)

// FieldbusDriver selects the process-data transport.
type FieldbusDriver string

const (
	DriverSimulated FieldbusDriver = "simulated"
	DriverEtherCAT  FieldbusDriver = "ethercat"
	DriverModbusTCP FieldbusDriver = "modbus_tcp"
)

// OverrunPolicy selects the scheduler's response to a critical cycle
// overrun (spec.md §4.6.2).
type OverrunPolicy string

const (
	OverrunFault  OverrunPolicy = "fault"
	OverrunWarn   OverrunPolicy = "warn"
	OverrunIgnore OverrunPolicy = "ignore"
)

// SafeOutputPolicy selects the output configuration applied on a Fault
// or SafeStop transition (spec.md §4.6.3).
type SafeOutputPolicy string

const (
	SafeOutputAllOff      SafeOutputPolicy = "all_off"
	SafeOutputHoldLast    SafeOutputPolicy = "hold_last"
	SafeOutputUserDefined SafeOutputPolicy = "user_defined"
)

// SchedPolicy selects the OS scheduling class for the RT thread.
type SchedPolicy string

const (
	SchedFifo  SchedPolicy = "fifo"
	SchedRR    SchedPolicy = "rr"
	SchedOther SchedPolicy = "other"
)

// Duration wraps time.Duration with TOML text (un)marshalling so config
// files can write "1ms" instead of a raw nanosecond integer.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// D is a convenience accessor back to time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// RealtimeConfig is config key realtime.*.
type RealtimeConfig struct {
	Enabled            bool        `toml:"enabled"`
	Policy             SchedPolicy `toml:"policy"`
	Priority           int         `toml:"priority"`
	CPUAffinity        []int       `toml:"cpu_affinity"`
	LockMemory         bool        `toml:"lock_memory"`
	PrefaultStackBytes int         `toml:"prefault_stack_size"`
	FailFast           bool        `toml:"fail_fast"`
}

// EtherCATConfig is config key fieldbus.ethercat.*.
type EtherCATConfig struct {
	Interface        string   `toml:"interface"`
	DCEnabled        bool     `toml:"dc_enabled"`
	DCSync0Cycle     Duration `toml:"dc_sync0_cycle"`
	WkcErrorThreshold int     `toml:"wkc_error_threshold"`
}

// FieldbusConfig is config key fieldbus.*.
type FieldbusConfig struct {
	Driver   FieldbusDriver `toml:"driver"`
	EtherCAT EtherCATConfig `toml:"ethercat"`
}

// MetricsConfig is config key metrics.*.
type MetricsConfig struct {
	HistogramSize int       `toml:"histogram_size"`
	Percentiles   []float64 `toml:"percentiles"`
}

// UserDefinedSafeOutputs is the element-wise safe-state array used when
// SafeOutputs == SafeOutputUserDefined.
type UserDefinedSafeOutputs struct {
	Digital []uint32 `toml:"digital"`
	Analog  []int16  `toml:"analog"`
}

// FaultPolicyConfig is config key fault_policy.*.
type FaultPolicyConfig struct {
	OnOverrun    OverrunPolicy          `toml:"on_overrun"`
	SafeOutputs  SafeOutputPolicy       `toml:"safe_outputs"`
	UserDefined  UserDefinedSafeOutputs `toml:"user_defined"`
	FaultLatch   bool                   `toml:"fault_latch"`
	FrameCapacity int                   `toml:"frame_capacity"`
}

// WasmConfig is config key wasm.*.
type WasmConfig struct {
	MaxMemoryBytes    int64    `toml:"max_memory_bytes"`
	MaxEpochsPerCycle uint64   `toml:"max_epochs_per_cycle"`
	MaxTableElements  int      `toml:"max_table_elements"`
	EnableSIMD        bool     `toml:"enable_simd"`
	Deterministic     bool     `toml:"deterministic"`
	UseFuel           bool     `toml:"use_fuel"`
	FuelPerCycle      uint64   `toml:"fuel_per_cycle"`
	TickInterval      Duration `toml:"tick_interval"`
}

// Config is the top-level runtime configuration tree (spec.md §6).
type Config struct {
	CycleTime       Duration          `toml:"cycle_time"`
	WatchdogTimeout Duration          `toml:"watchdog_timeout"`
	MaxOverrun      Duration          `toml:"max_overrun"`
	WasmModule      string            `toml:"wasm_module"`
	Realtime        RealtimeConfig    `toml:"realtime"`
	Fieldbus        FieldbusConfig    `toml:"fieldbus"`
	Metrics         MetricsConfig     `toml:"metrics"`
	FaultPolicy     FaultPolicyConfig `toml:"fault_policy"`
	Wasm            WasmConfig        `toml:"wasm"`
}

// Default returns the configuration defaults mirrored from
// original_source/crates/plc-common/src/config.rs's Default impls.
func Default() Config {
	return Config{
		CycleTime:       Duration(time.Millisecond),
		WatchdogTimeout: Duration(3 * time.Millisecond),
		MaxOverrun:      Duration(500 * time.Microsecond),
		Realtime: RealtimeConfig{
			Enabled:            false,
			Policy:             SchedFifo,
			Priority:           90,
			LockMemory:         true,
			PrefaultStackBytes: 8 * 1024 * 1024,
			FailFast:           false,
		},
		Fieldbus: FieldbusConfig{
			Driver: DriverSimulated,
			EtherCAT: EtherCATConfig{
				DCSync0Cycle:      Duration(time.Millisecond),
				WkcErrorThreshold: 3,
			},
		},
		Metrics: MetricsConfig{
			HistogramSize: 1000,
			Percentiles:   []float64{0.50, 0.90, 0.95, 0.99},
		},
		FaultPolicy: FaultPolicyConfig{
			OnOverrun:     OverrunFault,
			SafeOutputs:   SafeOutputAllOff,
			FaultLatch:    false,
			FrameCapacity: 64,
		},
		Wasm: WasmConfig{
			MaxMemoryBytes:    16 * 1024 * 1024,
			MaxEpochsPerCycle: 100,
			MaxTableElements:  10000,
			UseFuel:           true,
			FuelPerCycle:      1_000_000,
		},
	}
}

// Load decodes TOML bytes on top of Default() and validates the result.
func Load(data []byte) (Config, error) {
	cfg := Default()
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, &plcerrors.Config{Msg: "failed to decode TOML", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants the scheduler depends on before
// it may enter Run (spec.md §7, taxonomy item 1: "the scheduler never
// enters Run" with an invalid config).
func (c Config) Validate() error {
	if c.CycleTime.D() <= 0 {
		return &plcerrors.Config{Msg: "cycle_time must be positive"}
	}
	if c.WatchdogTimeout.D() <= c.CycleTime.D() {
		return &plcerrors.Config{Msg: "watchdog_timeout must exceed cycle_time"}
	}
	if c.MaxOverrun.D() < 0 {
		return &plcerrors.Config{Msg: "max_overrun must be non-negative"}
	}
	if c.Realtime.Enabled {
		if c.Realtime.Priority < 1 || c.Realtime.Priority > 99 {
			return &plcerrors.Config{Msg: "realtime.priority must be in [1, 99]"}
		}
		switch c.Realtime.Policy {
		case SchedFifo, SchedRR, SchedOther:
		default:
			return &plcerrors.Config{Msg: "realtime.policy must be fifo, rr, or other"}
		}
	}
	switch c.Fieldbus.Driver {
	case DriverSimulated, DriverEtherCAT, DriverModbusTCP:
	default:
		return &plcerrors.Config{Msg: "fieldbus.driver must be simulated, ethercat, or modbus_tcp"}
	}
	if c.Fieldbus.Driver == DriverEtherCAT && c.Fieldbus.EtherCAT.Interface == "" {
		return &plcerrors.Config{Msg: "ethercat.interface is required when fieldbus.driver is ethercat"}
	}
	switch c.FaultPolicy.OnOverrun {
	case OverrunFault, OverrunWarn, OverrunIgnore:
	default:
		return &plcerrors.Config{Msg: "fault_policy.on_overrun must be fault, warn, or ignore"}
	}
	switch c.FaultPolicy.SafeOutputs {
	case SafeOutputAllOff, SafeOutputHoldLast, SafeOutputUserDefined:
	default:
		return &plcerrors.Config{Msg: "fault_policy.safe_outputs must be all_off, hold_last, or user_defined"}
	}
	if c.FaultPolicy.FrameCapacity <= 0 {
		return &plcerrors.Config{Msg: "fault_policy.frame_capacity must be positive"}
	}
	return nil
}

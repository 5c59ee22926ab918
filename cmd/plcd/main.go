// Command plcd is the composition root for the PLC runtime core: it
// loads configuration, wires the scheduler, logic engine, and fieldbus
// driver together, and drives the cycle loop until SIGINT/SIGTERM.
// It contains no control logic the runtime's testable properties depend
// on; see internal/scheduler for the cycle algorithm itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/joeycumines/plcrt/internal/config"
	"github.com/joeycumines/plcrt/internal/ethercat"
	"github.com/joeycumines/plcrt/internal/ethercat/transport"
	"github.com/joeycumines/plcrt/internal/faultrecorder"
	"github.com/joeycumines/plcrt/internal/ioimage"
	"github.com/joeycumines/plcrt/internal/logic"
	"github.com/joeycumines/plcrt/internal/metrics"
	"github.com/joeycumines/plcrt/internal/plcerrors"
	"github.com/joeycumines/plcrt/internal/rtposture"
	"github.com/joeycumines/plcrt/internal/scheduler"
	"github.com/joeycumines/plcrt/internal/wasmhost"
	"github.com/joeycumines/plcrt/internal/watchdog"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file; defaults are used if empty")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	if err := run(*configPath, log); err != nil {
		log.Error().Err(err).Msg("plcd exited with error")
		os.Exit(1)
	}
}

func run(configPath string, log zerolog.Logger) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, closeEngine, err := buildEngine(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build logic engine: %w", err)
	}
	defer closeEngine()

	driver, err := buildTransport(cfg)
	if err != nil {
		return fmt.Errorf("build fieldbus transport: %w", err)
	}
	defer driver.Close()

	io := ioimage.NewIoImage()
	wd := watchdog.New(cfg.WatchdogTimeout.D(), log.With().Str("component", "watchdog").Logger())
	met := metrics.New(cfg.CycleTime.D(), cfg.Metrics.HistogramSize)
	faults := faultrecorder.New(cfg.FaultPolicy.FrameCapacity)

	sched := scheduler.New(cfg, io, engine, wd, met, faults, log.With().Str("component", "scheduler").Logger())

	master := ethercat.NewMaster(driver, cfg.Fieldbus.EtherCAT.WkcErrorThreshold, cfg.Fieldbus.EtherCAT.DCSync0Cycle.D().Nanoseconds(), log.With().Str("component", "ethercat").Logger())

	if posture, err := rtposture.Apply(cfg.Realtime); err != nil {
		return fmt.Errorf("apply realtime posture: %w", err)
	} else {
		for _, w := range posture.Warnings {
			log.Warn().Msg(w)
		}
	}

	if err := engine.Init(ctx); err != nil {
		return fmt.Errorf("engine init: %w", err)
	}
	// The watchdog only signals; RunCycle's own polling (scheduler.go)
	// performs the actual Fault transition on the RT thread so the
	// safe-output policy and fault-frame recording run exactly once.
	wd.Start(func() {})
	defer wd.Stop()

	if err := bringUpFieldbus(ctx, master); err != nil {
		return fmt.Errorf("fieldbus bring-up: %w", err)
	}

	if err := sched.State().Transition(scheduler.Init); err != nil {
		return err
	}
	if err := sched.State().Transition(scheduler.PreOp); err != nil {
		return err
	}
	if err := sched.State().Transition(scheduler.Run); err != nil {
		return err
	}

	go runFieldbusLoop(ctx, master, io, cfg.CycleTime.D(), log)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutdown signal received, requesting SafeStop")
		if err := sched.RequestSafeStop(); err != nil {
			log.Error().Err(err).Msg("failed to request SafeStop")
		}
	}()

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("scheduler loop exited: %w", err)
	}

	log.Info().Uint64("cycles", sched.CycleCount()).Msg("plcd stopped")
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return config.Config{}, &plcerrors.Config{Msg: "failed to read config file", Cause: err}
	}
	return config.Load(data)
}

// buildEngine selects NullEngine (no wasm_module configured) or the
// wazero-backed Engine, per SPEC_FULL.md §5.6.
func buildEngine(ctx context.Context, cfg config.Config, log zerolog.Logger) (logic.Engine, func(), error) {
	if cfg.WasmModule == "" {
		return logic.NewNullEngine(), func() {}, nil
	}
	moduleBytes, err := os.ReadFile(cfg.WasmModule)
	if err != nil {
		return nil, nil, &plcerrors.Config{Msg: "failed to read wasm_module", Cause: err}
	}
	eng, err := wasmhost.NewEngine(ctx, cfg.Wasm, moduleBytes, log.With().Str("component", "wasmhost").Logger())
	if err != nil {
		return nil, nil, err
	}
	return eng, func() { _ = eng.Close(ctx) }, nil
}

// buildTransport selects the fieldbus transport named by
// fieldbus.driver. Only Simulated is wired end-to-end; ModbusTcp is a
// named-but-unimplemented selection (spec.md §1 scopes a full Modbus TCP
// client out).
func buildTransport(cfg config.Config) (transport.Driver, error) {
	switch cfg.Fieldbus.Driver {
	case config.DriverSimulated:
		return transport.NewSimulated(), nil
	case config.DriverEtherCAT:
		return transport.OpenRawSocket(cfg.Fieldbus.EtherCAT.Interface)
	case config.DriverModbusTCP:
		return nil, &plcerrors.Config{Msg: "fieldbus.driver = modbus_tcp is not implemented in this core"}
	default:
		return nil, &plcerrors.Config{Msg: "unknown fieldbus.driver: " + string(cfg.Fieldbus.Driver)}
	}
}

func bringUpFieldbus(ctx context.Context, m *ethercat.Master) error {
	for _, target := range []ethercat.MasterState{ethercat.Init, ethercat.PreOp, ethercat.SafeOp, ethercat.Op} {
		if err := m.Advance(target); err != nil {
			return err
		}
	}
	return m.ScanSlaves(ctx)
}

// runFieldbusLoop is the fieldbus-thread side of spec.md §5: it
// exclusively writes the input seqlock and exclusively reads the output
// seqlock, exchanging process data with the master once per cycle
// period.
func runFieldbusLoop(ctx context.Context, m *ethercat.Master, io *ioimage.IoImage, period time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	outBuf := make([]byte, 4)
	inBuf := make([]byte, 4)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			out := io.ReadOutputs()
			outBuf[0] = byte(out.Digital)
			outBuf[1] = byte(out.Digital >> 8)
			outBuf[2] = byte(out.Digital >> 16)
			outBuf[3] = byte(out.Digital >> 24)

			if _, err := m.Exchange(ctx, outBuf, inBuf, time.Now().UnixNano()); err != nil {
				log.Error().Err(err).Msg("fieldbus exchange failed")
				continue
			}

			digital := uint32(inBuf[0]) | uint32(inBuf[1])<<8 | uint32(inBuf[2])<<16 | uint32(inBuf[3])<<24
			io.WriteInputs(func(p *ioimage.ProcessData) {
				p.Digital = digital
			})
		}
	}
}

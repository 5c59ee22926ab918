package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/plcrt/internal/config"
	"github.com/joeycumines/plcrt/internal/faultrecorder"
	"github.com/joeycumines/plcrt/internal/ioimage"
	"github.com/joeycumines/plcrt/internal/logic"
	"github.com/joeycumines/plcrt/internal/metrics"
	"github.com/joeycumines/plcrt/internal/plcerrors"
	"github.com/joeycumines/plcrt/internal/watchdog"
)

func newTestScheduler(t *testing.T, cfg config.Config, engine logic.Engine) *Scheduler {
	t.Helper()
	img := ioimage.NewIoImage()
	wd := watchdog.New(cfg.WatchdogTimeout.D(), zerolog.Nop())
	m := metrics.New(cfg.CycleTime.D(), cfg.Metrics.HistogramSize)
	fr := faultrecorder.New(cfg.FaultPolicy.FrameCapacity)
	s := New(cfg, img, engine, wd, m, fr, zerolog.Nop())
	return s
}

func TestRunCycleRequiresRunState(t *testing.T) {
	cfg := config.Default()
	s := newTestScheduler(t, cfg, logic.NewNullEngine())
	err := s.RunCycle(context.Background())
	require.Error(t, err)
}

func TestRunCycleHappyPath(t *testing.T) {
	cfg := config.Default()
	s := newTestScheduler(t, cfg, logic.NewNullEngine())
	require.NoError(t, s.engine.Init(context.Background()))
	require.NoError(t, s.state.Transition(Init))
	require.NoError(t, s.state.Transition(PreOp))
	require.NoError(t, s.state.Transition(Run))
	s.watchdog.Start(func() {})
	defer s.watchdog.Stop()

	require.NoError(t, s.RunCycle(context.Background()))
	require.Equal(t, uint64(1), s.CycleCount())
	require.Equal(t, Run, s.state.Current())
}

func TestRunCycleLogicErrorEntersFault(t *testing.T) {
	cfg := config.Default()
	engine := &erroringEngine{}
	s := newTestScheduler(t, cfg, engine)
	require.NoError(t, s.state.Transition(Init))
	require.NoError(t, s.state.Transition(PreOp))
	require.NoError(t, s.state.Transition(Run))
	s.watchdog.Start(func() {})
	defer s.watchdog.Stop()

	err := s.RunCycle(context.Background())
	require.Error(t, err)
	require.Equal(t, Fault, s.state.Current())
	require.True(t, s.faults.Frozen())
}

func TestWatchdogTriggerEntersFault(t *testing.T) {
	cfg := config.Default()
	s := newTestScheduler(t, cfg, logic.NewNullEngine())
	require.NoError(t, s.state.Transition(Init))
	require.NoError(t, s.state.Transition(PreOp))
	require.NoError(t, s.state.Transition(Run))

	s.watchdog.Start(func() {})
	defer s.watchdog.Stop()
	time.Sleep(cfg.WatchdogTimeout.D() * 2)

	err := s.RunCycle(context.Background())
	var faultErr *plcerrors.Fault
	require.ErrorAs(t, err, &faultErr)
	require.Equal(t, "Watchdog timeout", faultErr.Reason)
	require.Equal(t, Fault, s.state.Current())
}

func TestRequestSafeStopAppliesAllOff(t *testing.T) {
	cfg := config.Default()
	s := newTestScheduler(t, cfg, logic.NewNullEngine())
	s.io.WriteOutputs(func(o *ioimage.ProcessData) { o.Digital = 0xFF })
	require.NoError(t, s.state.Transition(Init))
	require.NoError(t, s.state.Transition(PreOp))
	require.NoError(t, s.state.Transition(Run))

	require.NoError(t, s.RequestSafeStop())
	require.Equal(t, SafeStop, s.state.Current())
	require.Equal(t, uint32(0), s.io.ReadOutputs().Digital)
	require.True(t, s.faults.Frozen())
}

type erroringEngine struct{ ready bool }

func (e *erroringEngine) Init(ctx context.Context) error { e.ready = true; return nil }
func (e *erroringEngine) Step(ctx context.Context, inputs ioimage.ProcessData) (ioimage.ProcessData, error) {
	return ioimage.ProcessData{}, errStep
}
func (e *erroringEngine) Fault(ctx context.Context) error     { return nil }
func (e *erroringEngine) IsReady() bool                       { return e.ready }
func (e *erroringEngine) SupportsHotReload() bool             { return false }
func (e *erroringEngine) ReloadModule(ctx context.Context, newBytes []byte, preserveMemory bool) error {
	return logic.ErrHotReloadUnsupported
}
func (e *erroringEngine) StartEpochTicker() logic.EpochTicker { return nil }

var errStep = &stepError{}

type stepError struct{}

func (*stepError) Error() string { return "logic step failed" }

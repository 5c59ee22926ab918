// Package scheduler implements the cyclic RT scheduler of spec.md §4.6:
// the state machine (state.go, statemachine.go) plus the cycle algorithm
// that drives the logic engine, watchdog, metrics, and fault recorder
// once per scan.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/joeycumines/plcrt/internal/config"
	"github.com/joeycumines/plcrt/internal/faultrecorder"
	"github.com/joeycumines/plcrt/internal/ioimage"
	"github.com/joeycumines/plcrt/internal/logic"
	"github.com/joeycumines/plcrt/internal/metrics"
	"github.com/joeycumines/plcrt/internal/plcerrors"
	"github.com/joeycumines/plcrt/internal/watchdog"
)

// Scheduler runs the cyclic scan loop of spec.md §4.6.2. It owns the
// output seqlock writer side, the logic engine, the watchdog kick side,
// metrics, the fault recorder, and the state machine. It does not own
// the fieldbus side of the IoImage; that belongs to whatever drives the
// input seqlock and reads the output seqlock (e.g. an ethercat.Master).
type Scheduler struct {
	log zerolog.Logger

	cfg      config.Config
	io       *ioimage.IoImage
	engine   logic.Engine
	watchdog *watchdog.Watchdog
	metrics  *metrics.CycleMetrics
	faults   *faultrecorder.Recorder
	state    *StateMachine

	cycleCount uint64
	lastOutput ioimage.ProcessData
}

// New wires together a Scheduler from its already-constructed
// collaborators (composition stays in cmd/plcd; this constructor takes
// plain values so it is trivially testable).
func New(
	cfg config.Config,
	io *ioimage.IoImage,
	engine logic.Engine,
	wd *watchdog.Watchdog,
	m *metrics.CycleMetrics,
	faults *faultrecorder.Recorder,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		log:      log,
		cfg:      cfg,
		io:       io,
		engine:   engine,
		watchdog: wd,
		metrics:  m,
		faults:   faults,
		state:    NewStateMachine(cfg.FaultPolicy.FaultLatch),
	}
}

// State exposes the scheduler's lifecycle state machine, e.g. for the
// composition root's signal handler to request SafeStop.
func (s *Scheduler) State() *StateMachine { return s.state }

// RunCycle executes exactly one iteration of the cycle algorithm
// (spec.md §4.6.2, steps 1-9; step 10's absolute-time sleep is the
// caller's responsibility via Run). Returns the error to propagate, if
// any; a nil return does not imply no fault occurred — check s.state.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	if s.state.Current() != Run {
		return &plcerrors.InvalidStateTransition{From: s.state.Current().String(), To: Run.String()}
	}

	if s.watchdog.HasTriggered() {
		s.enterFault(ctx, faultrecorder.ReasonWatchdogTimeout, faultrecorder.PhaseTimings{})
		return &plcerrors.Fault{Reason: "Watchdog timeout"}
	}

	t0 := time.Now()
	s.watchdog.Kick()

	t1 := time.Now()
	inputs := s.io.ReadInputs()

	t2 := time.Now()
	outputs, err := s.engine.Step(ctx, inputs)
	if err != nil {
		timings := faultrecorder.PhaseTimings{
			IoReadNs: t2.Sub(t1).Nanoseconds(),
			TotalNs:  time.Since(t0).Nanoseconds(),
		}
		s.enterFault(ctx, faultrecorder.ReasonLogicError, timings)
		return err
	}

	t3 := time.Now()
	s.io.WriteOutputs(func(o *ioimage.ProcessData) {
		o.Digital = outputs.Digital
		o.Analog = outputs.Analog
	})
	s.lastOutput = outputs

	t4 := time.Now()
	timings := faultrecorder.PhaseTimings{
		IoReadNs:  t2.Sub(t1).Nanoseconds(),
		LogicNs:   t3.Sub(t2).Nanoseconds(),
		IoWriteNs: t4.Sub(t3).Nanoseconds(),
		TotalNs:   t4.Sub(t0).Nanoseconds(),
	}
	execution := t4.Sub(t0)
	s.metrics.Record(execution)
	s.cycleCount++

	if frame := s.faults.RecordCycle(s.cycleCount, timings); frame != nil {
		frame.Inputs = inputs
		frame.Outputs = outputs
	}

	cyclePeriod := s.cfg.CycleTime.D()
	if execution > cyclePeriod {
		overrun := execution - cyclePeriod
		if overrun > s.cfg.MaxOverrun.D() {
			switch s.cfg.FaultPolicy.OnOverrun {
			case config.OverrunFault:
				s.enterFault(ctx, faultrecorder.ReasonCycleOverrun, timings)
				return &plcerrors.CycleOverrun{ExpectedNs: cyclePeriod.Nanoseconds(), ActualNs: execution.Nanoseconds()}
			case config.OverrunWarn:
				s.log.Warn().Dur("execution", execution).Dur("period", cyclePeriod).Msg("critical cycle overrun")
			case config.OverrunIgnore:
				s.log.Trace().Dur("execution", execution).Msg("critical cycle overrun (ignored)")
			}
		} else {
			s.log.Warn().Dur("execution", execution).Dur("period", cyclePeriod).Msg("minor cycle overrun")
		}
	}

	return nil
}

// enterFault drives the state machine to Fault, applies the safe-output
// policy, records a fault frame, invokes the engine's Fault hook, and
// freezes the recorder.
func (s *Scheduler) enterFault(ctx context.Context, reason faultrecorder.FaultReason, timings faultrecorder.PhaseTimings) {
	s.state.EnterFault()
	s.applySafeOutputs()

	inputs := s.io.ReadInputs()
	s.faults.RecordFaultWithIO(s.cycleCount, reason, timings, inputs, s.lastOutput)

	if err := s.engine.Fault(ctx); err != nil {
		s.log.Error().Err(err).Msg("engine fault handler failed")
	}
}

// applySafeOutputs implements spec.md §4.6.3.
func (s *Scheduler) applySafeOutputs() {
	policy := s.cfg.FaultPolicy.SafeOutputs
	switch policy {
	case config.SafeOutputAllOff:
		s.io.WriteOutputs(func(o *ioimage.ProcessData) {
			o.Digital = 0
			o.Analog = [16]int16{}
		})
	case config.SafeOutputHoldLast:
		// no-op: the output seqlock already holds the last committed
		// write.
	case config.SafeOutputUserDefined:
		ud := s.cfg.FaultPolicy.UserDefined
		s.io.WriteOutputs(func(o *ioimage.ProcessData) {
			o.Digital = 0
			for i, v := range ud.Digital {
				if i >= 32 {
					break
				}
				if v != 0 {
					o.Digital |= 1 << uint(i)
				}
			}
			var analog [16]int16
			n := copy(analog[:], ud.Analog)
			_ = n
			o.Analog = analog
		})
	}
}

// RequestSafeStop transitions the scheduler out of Run (or Fault) into
// SafeStop, applying the safe-output policy. It is safe to call from a
// signal handler's context-cancellation path.
func (s *Scheduler) RequestSafeStop() error {
	if err := s.state.Transition(SafeStop); err != nil {
		return err
	}
	s.applySafeOutputs()
	s.faults.Freeze()
	return nil
}

// Metrics exposes a snapshot of the cycle metrics.
func (s *Scheduler) Metrics() metrics.Snapshot { return s.metrics.Snapshot() }

// CycleCount reports the number of cycles run so far.
func (s *Scheduler) CycleCount() uint64 { return s.cycleCount }

// Package ethercat implements the EtherCAT master's core interactions
// with the scheduler (spec.md §4.5): an AL-state machine, one
// process-data exchange per cycle with Working Counter liveness
// checking, and an optional Distributed Clocks drift model.
package ethercat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/joeycumines/plcrt/internal/ethercat/transport"
	"github.com/joeycumines/plcrt/internal/plcerrors"
)

// ExchangeStats is the fieldbus thread's running liveness counters.
type ExchangeStats struct {
	Exchanges         uint64
	ConsecutiveErrors int
	LastWkc           uint16
	ExpectedWkc       uint16
}

// Master owns the AL-state machine, the slave topology, WKC accounting,
// and the optional DC controller. It is driven exclusively by the
// fieldbus thread (spec.md §5): never call Exchange concurrently with
// itself.
type Master struct {
	mu sync.Mutex

	log zerolog.Logger

	state    MasterState
	driver   transport.Driver
	slaves   []transport.SlaveInfo
	wkcLimit int

	stats ExchangeStats
	dc    *dcController
}

// NewMaster returns a Master in Offline, bound to driver. wkcThreshold
// of 0 disables the WKC fault policy (spec.md §4.5.2).
func NewMaster(driver transport.Driver, wkcThreshold int, dcThresholdNs int64, log zerolog.Logger) *Master {
	return &Master{
		log:      log,
		state:    Offline,
		driver:   driver,
		wkcLimit: wkcThreshold,
		dc:       newDCController(dcThresholdNs),
	}
}

// State returns the current AL-state.
func (m *Master) State() MasterState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Advance attempts the one-step forward transition into to (or into
// Fault, always permitted).
func (m *Master) Advance(to MasterState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !canAdvance(m.state, to) {
		return &plcerrors.FieldbusError{Msg: "invalid ethercat state transition: " + m.state.String() + " -> " + to.String()}
	}
	from := m.state
	m.state = to
	m.log.Info().Str("from", from.String()).Str("to", to.String()).Msg("ethercat state transition")
	return nil
}

// Shutdown walks the reverse chain one step at a time until Offline,
// per spec.md §4.5.1.
func (m *Master) Shutdown(ctx context.Context) error {
	for {
		m.mu.Lock()
		cur := m.state
		m.mu.Unlock()
		if cur == Offline {
			return nil
		}
		prev, ok := backward[cur]
		if !ok {
			// Fault has no reverse edge defined; force straight to Offline.
			prev = Offline
		}
		m.mu.Lock()
		m.state = prev
		m.mu.Unlock()
		m.log.Info().Str("from", cur.String()).Str("to", prev.String()).Msg("ethercat state transition")
	}
}

// ScanSlaves rediscovers slaves via the transport, idempotently: all
// existing slave records, DC state, and stats are cleared first (spec.md
// §4.5.4).
func (m *Master) ScanSlaves(ctx context.Context) error {
	slaves, err := m.driver.Scan(ctx)
	if err != nil {
		return &plcerrors.FieldbusError{Msg: "scan_slaves failed", Cause: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.slaves = slaves
	m.stats = ExchangeStats{}
	m.dc.reset()

	var expected uint16
	for _, sl := range m.slaves {
		if sl.InputSize > 0 {
			expected++
		}
		if sl.OutputSize > 0 {
			expected += 2
		}
	}
	m.stats.ExpectedWkc = expected
	return nil
}

// Exchange performs one process-data exchange (spec.md §4.5.2),
// permitted only in SafeOp or Op. On a WKC threshold breach it
// transitions the master to Fault and returns WkcThresholdExceeded.
func (m *Master) Exchange(ctx context.Context, outputs, inputs []byte, nowNs int64) (uint16, error) {
	m.mu.Lock()
	state := m.state
	expected := m.stats.ExpectedWkc
	m.mu.Unlock()

	if state != SafeOp && state != Op {
		return 0, &plcerrors.FieldbusError{Msg: "exchange() requires SafeOp or Op, master is " + state.String()}
	}

	wkc, err := m.driver.Exchange(ctx, outputs, inputs)
	if err != nil {
		return 0, &plcerrors.FieldbusError{Msg: "transport exchange failed", Cause: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Exchanges++
	m.stats.LastWkc = wkc

	if wkc == expected {
		m.stats.ConsecutiveErrors = 0
	} else {
		m.stats.ConsecutiveErrors++
		m.log.Warn().Uint16("wkc", wkc).Uint16("expected", expected).Int("consecutive_errors", m.stats.ConsecutiveErrors).Msg("working counter mismatch")
		if m.wkcLimit > 0 && m.stats.ConsecutiveErrors >= m.wkcLimit {
			m.state = Fault
			m.log.Error().Int("consecutive_errors", m.stats.ConsecutiveErrors).Int("threshold", m.wkcLimit).Msg("wkc threshold exceeded, entering fault")
			return wkc, &plcerrors.WkcThresholdExceeded{Consecutive: m.stats.ConsecutiveErrors, Threshold: m.wkcLimit}
		}
	}

	if ref, ok := m.driver.ReferenceClock(ctx); ok {
		m.dc.sample(ref, nowNs)
	}

	return wkc, nil
}

// Stats returns a copy of the current exchange statistics.
func (m *Master) Stats() ExchangeStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// DCStats returns a copy of the current distributed-clocks deviation
// statistics.
func (m *Master) DCStats() DCStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dc.Stats()
}

// SlaveCount reports the number of slaves discovered by the last scan.
func (m *Master) SlaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slaves)
}

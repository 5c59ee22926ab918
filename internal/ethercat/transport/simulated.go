package transport

import (
	"context"
	"sync"
	"time"
)

// Simulated is a loopback Driver: it echoes the outputs buffer back as
// the inputs buffer (truncated/zero-extended to the inputs length) and
// always returns the expected Working Counter, i.e. it never manufactures
// a fieldbus fault on its own. It exists to exercise the master state
// machine and scheduler end-to-end without real hardware.
type Simulated struct {
	mu     sync.Mutex
	slaves []SlaveInfo
	start  time.Time
}

// NewSimulated returns a Simulated driver pre-populated with slaves (at
// least one, synthesized if empty).
func NewSimulated(slaves ...SlaveInfo) *Simulated {
	if len(slaves) == 0 {
		slaves = []SlaveInfo{{Address: 1000, InputSize: 4, OutputSize: 4, DCCapable: true}}
	}
	return &Simulated{slaves: slaves, start: time.Now()}
}

func (s *Simulated) Exchange(ctx context.Context, outputs []byte, inputs []byte) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := copy(inputs, outputs)
	for i := n; i < len(inputs); i++ {
		inputs[i] = 0
	}

	var expected uint16
	for _, sl := range s.slaves {
		if sl.InputSize > 0 {
			expected++
		}
		if sl.OutputSize > 0 {
			expected += 2
		}
	}
	return expected, nil
}

func (s *Simulated) SlaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slaves)
}

func (s *Simulated) Scan(ctx context.Context) ([]SlaveInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SlaveInfo, len(s.slaves))
	copy(out, s.slaves)
	return out, nil
}

func (s *Simulated) ReferenceClock(ctx context.Context) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slaves {
		if sl.DCCapable {
			return uint64(time.Since(s.start).Nanoseconds()), true
		}
	}
	return 0, false
}

func (s *Simulated) Close() error { return nil }

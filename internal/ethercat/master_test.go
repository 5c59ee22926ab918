package ethercat

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/plcrt/internal/ethercat/transport"
	"github.com/joeycumines/plcrt/internal/plcerrors"
)

func bringUp(t *testing.T, m *Master) {
	t.Helper()
	require.NoError(t, m.Advance(Init))
	require.NoError(t, m.Advance(PreOp))
	require.NoError(t, m.Advance(SafeOp))
	require.NoError(t, m.Advance(Op))
}

func TestStateMachineForwardOnly(t *testing.T) {
	m := NewMaster(transport.NewSimulated(), 3, 0, zerolog.Nop())
	require.NoError(t, m.Advance(Init))
	require.Error(t, m.Advance(Op)) // skipping PreOp/SafeOp is illegal
}

func TestExchangeRequiresSafeOpOrOp(t *testing.T) {
	m := NewMaster(transport.NewSimulated(), 3, 0, zerolog.Nop())
	require.NoError(t, m.ScanSlaves(context.Background()))
	_, err := m.Exchange(context.Background(), make([]byte, 4), make([]byte, 4), 0)
	require.Error(t, err)
}

// TestWkcThresholdExceeded reproduces spec.md §8 case 5: threshold=3,
// transport returns the expected WKC for 2 cycles then 0 afterward;
// cycle 5 trips the fault.
func TestWkcThresholdExceeded(t *testing.T) {
	slave := transport.SlaveInfo{Address: 1, InputSize: 4, OutputSize: 4}
	sim := transport.NewSimulated(slave)
	m := NewMaster(sim, 3, 0, zerolog.Nop())
	bringUp(t, m)
	require.NoError(t, m.ScanSlaves(context.Background()))

	failing := &failAfterN{Driver: sim, okCycles: 2}
	m.driver = failing

	out := make([]byte, 4)
	in := make([]byte, 4)

	for i := 0; i < 2; i++ {
		_, err := m.Exchange(context.Background(), out, in, int64(i))
		require.NoError(t, err)
	}
	for i := 2; i < 4; i++ {
		_, err := m.Exchange(context.Background(), out, in, int64(i))
		require.NoError(t, err)
	}
	_, err := m.Exchange(context.Background(), out, in, 4)
	require.Error(t, err)
	var wkcErr *plcerrors.WkcThresholdExceeded
	require.ErrorAs(t, err, &wkcErr)
	require.Equal(t, 3, wkcErr.Consecutive)
	require.Equal(t, 3, wkcErr.Threshold)
	require.Equal(t, Fault, m.State())
}

func TestScanSlavesIdempotent(t *testing.T) {
	sim := transport.NewSimulated(transport.SlaveInfo{Address: 1, InputSize: 2, OutputSize: 2})
	m := NewMaster(sim, 0, 0, zerolog.Nop())
	require.NoError(t, m.ScanSlaves(context.Background()))
	first := m.Stats()
	require.NoError(t, m.ScanSlaves(context.Background()))
	second := m.Stats()
	require.Equal(t, first, second)
}

func TestShutdownWalksBackward(t *testing.T) {
	m := NewMaster(transport.NewSimulated(), 0, 0, zerolog.Nop())
	bringUp(t, m)
	require.NoError(t, m.Shutdown(context.Background()))
	require.Equal(t, Offline, m.State())
}

// failAfterN wraps a Driver, returning a fixed expected WKC for the
// first okCycles calls and 0 thereafter.
type failAfterN struct {
	transport.Driver
	okCycles int
	calls    int
}

func (f *failAfterN) Exchange(ctx context.Context, outputs, inputs []byte) (uint16, error) {
	f.calls++
	wkc, err := f.Driver.Exchange(ctx, outputs, inputs)
	if err != nil {
		return 0, err
	}
	if f.calls > f.okCycles {
		return 0, nil
	}
	return wkc, nil
}

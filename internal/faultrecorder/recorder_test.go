package faultrecorder

import (
	"testing"

	"github.com/joeycumines/plcrt/internal/ioimage"
	"github.com/stretchr/testify/require"
)

func TestFaultFrameAttribution(t *testing.T) {
	r := New(8)
	r.RecordCycle(10, PhaseTimings{TotalNs: 100})
	frame := r.RecordFaultWithIO(11, ReasonLogicError, PhaseTimings{TotalNs: 200}, ioimage.ProcessData{}, ioimage.ProcessData{})
	require.NotNil(t, frame)
	require.Equal(t, uint64(11), frame.Cycle)
	require.True(t, r.Frozen())
}

func TestFreezeDisallowsFurtherWrites(t *testing.T) {
	r := New(4)
	r.RecordCycle(1, PhaseTimings{})
	r.RecordFaultWithIO(2, ReasonWatchdogTimeout, PhaseTimings{}, ioimage.ProcessData{}, ioimage.ProcessData{})

	require.Nil(t, r.RecordCycle(3, PhaseTimings{}))
	require.Nil(t, r.RecordFaultWithIO(4, ReasonExternal, PhaseTimings{}, ioimage.ProcessData{}, ioimage.ProcessData{}))

	frames := r.FramesChronological()
	require.Len(t, frames, 2)
	require.Equal(t, uint64(2), frames[len(frames)-1].Cycle)
}

func TestRingWrap(t *testing.T) {
	const capacity = 4
	r := New(capacity)
	for i := uint64(1); i <= 10; i++ {
		r.RecordCycle(i, PhaseTimings{TotalNs: int64(i)})
	}
	frames := r.FramesChronological()
	require.Len(t, frames, capacity)

	// Oldest surviving cycle should be 10-capacity+1 = 7, newest 10.
	require.Equal(t, uint64(7), frames[0].Cycle)
	require.Equal(t, uint64(10), frames[capacity-1].Cycle)
}

func TestFramesChronologicalBeforeWrap(t *testing.T) {
	r := New(8)
	r.RecordCycle(1, PhaseTimings{})
	r.RecordCycle(2, PhaseTimings{})
	frames := r.FramesChronological()
	require.Len(t, frames, 2)
	require.Equal(t, uint64(1), frames[0].Cycle)
	require.Equal(t, uint64(2), frames[1].Cycle)
}

func TestFaultSummaryNoFrames(t *testing.T) {
	r := New(4)
	require.Contains(t, r.FaultSummary(), "no frames recorded")
}

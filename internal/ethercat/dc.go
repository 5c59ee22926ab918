package ethercat

import (
	"math/big"
	"time"

	"github.com/joeycumines/plcrt/internal/ratewindow"
)

// dcOutOfThresholdWindow is the trailing duration over which
// OutOfThresholdRolling is counted (spec.md §4.5.3's "out-of-threshold
// count" is a stat field, not pinned to lifetime-only by the spec; a
// rolling count alongside the lifetime one gives an operator a trend
// signal the same way CycleMetrics does for overruns).
const dcOutOfThresholdWindow = 10 * time.Second

// dcOutOfThresholdCapacity bounds the rolling window's ring size; sized
// generously for a 1kHz cycle rate's worst case of every cycle tripping
// the threshold within the window.
const dcOutOfThresholdCapacity = 4096

// DCStats accumulates per-cycle distributed-clock deviation statistics
// (spec.md §4.5.3).
type DCStats struct {
	Count                 uint64
	MinDeviationNs        int64
	MaxDeviationNs        int64
	SumDeviationNs        int64
	OutOfThreshold        uint64 // lifetime count
	OutOfThresholdRolling int    // count within the trailing dcOutOfThresholdWindow
}

// dcController maintains the expected-time model and drift correction
// for the reference clock (spec.md §4.5.3). The expected-time arithmetic
// is computed with math/big to honor the signed-128-bit-intermediate,
// clamped-to-u64 contract exactly; this runs once per cycle on the
// fieldbus thread, not the deterministic RT thread, so the allocation is
// acceptable.
type dcController struct {
	referenceAtNs   uint64 // dc_time_at_reference, captured on first sample
	referenceWallNs int64  // caller's nowNs at reference (cmd/plcd passes time.Now().UnixNano())
	haveReference   bool

	driftCorrection int64 // accumulated correction, low-pass filtered

	threshold int64
	stats     DCStats
	rolling   *ratewindow.Window
}

func newDCController(thresholdNs int64) *dcController {
	return &dcController{
		threshold: thresholdNs,
		rolling:   ratewindow.New(dcOutOfThresholdWindow, dcOutOfThresholdCapacity),
	}
}

// maxU64 is math.MaxUint64 as a *big.Int, the clamp ceiling.
var maxU64 = new(big.Int).SetUint64(^uint64(0))

// sample feeds one cycle's reference-clock read (measured) plus the
// fieldbus thread's current time in nanoseconds, updating the expected
// model and drift-correction filter, and returns the deviation
// (measured - expected) recorded into stats.
func (dc *dcController) sample(measured uint64, nowNs int64) int64 {
	if !dc.haveReference {
		dc.referenceAtNs = measured
		dc.referenceWallNs = nowNs
		dc.haveReference = true
		return 0
	}

	elapsed := nowNs - dc.referenceWallNs

	// expected = dc_time_at_reference + elapsed_since_reference + drift_correction,
	// in signed-128-bit-equivalent intermediate math, clamped to [0, u64::MAX].
	expected := new(big.Int).SetUint64(dc.referenceAtNs)
	expected.Add(expected, big.NewInt(elapsed))
	expected.Add(expected, big.NewInt(dc.driftCorrection))
	if expected.Sign() < 0 {
		expected.SetInt64(0)
	} else if expected.Cmp(maxU64) > 0 {
		expected.Set(maxU64)
	}

	measuredBig := new(big.Int).SetUint64(measured)
	deviation := new(big.Int).Sub(measuredBig, expected)
	deviationNs := deviation.Int64() // drift is expected to fit comfortably in int64

	// first-order low-pass: drift_correction += (measured - expected) >> 4
	dc.driftCorrection += deviationNs >> 4

	dc.recordDeviation(deviationNs, nowNs)
	return deviationNs
}

func (dc *dcController) recordDeviation(deviationNs int64, nowNs int64) {
	if dc.stats.Count == 0 || deviationNs < dc.stats.MinDeviationNs {
		dc.stats.MinDeviationNs = deviationNs
	}
	if dc.stats.Count == 0 || deviationNs > dc.stats.MaxDeviationNs {
		dc.stats.MaxDeviationNs = deviationNs
	}
	dc.stats.SumDeviationNs += deviationNs
	dc.stats.Count++

	abs := deviationNs
	if abs < 0 {
		abs = -abs
	}
	if dc.threshold > 0 && abs > dc.threshold {
		dc.stats.OutOfThreshold++
		dc.rolling.Record(nowNs)
	}
	dc.stats.OutOfThresholdRolling = dc.rolling.Count(nowNs)
}

func (dc *dcController) Stats() DCStats { return dc.stats }

func (dc *dcController) reset() {
	*dc = dcController{
		threshold: dc.threshold,
		rolling:   ratewindow.New(dcOutOfThresholdWindow, dcOutOfThresholdCapacity),
	}
}

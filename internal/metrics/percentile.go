package metrics

import "time"

// percentileTag names one of the four fixed cycle-duration percentiles
// CycleMetrics tracks. Indexing by a named tag instead of a bare int
// keeps quantile() call sites self-describing.
type percentileTag int

const (
	p50 percentileTag = iota
	p90
	p95
	p99
	percentileCount
)

var percentileTargets = [percentileCount]float64{0.50, 0.90, 0.95, 0.99}

// cycleDurationPercentiles streams P50/P90/P95/P99 of cycle execution
// time in a single pass over Record's samples, using the P-Square
// quantile estimator (Jain & Chlamtac, 1985) so a read is O(1) and a
// write never needs the full sample history CycleMetrics's bounded ring
// already discards. One markerEstimator runs per target percentile.
type cycleDurationPercentiles struct {
	estimators [percentileCount]markerEstimator
}

func newCycleDurationPercentiles() *cycleDurationPercentiles {
	c := &cycleDurationPercentiles{}
	for i, target := range percentileTargets {
		c.estimators[i] = newMarkerEstimator(target)
	}
	return c
}

// observe feeds one cycle's execution duration to every tracked
// percentile.
func (c *cycleDurationPercentiles) observe(d time.Duration) {
	x := float64(d)
	for i := range c.estimators {
		c.estimators[i].update(x)
	}
}

// quantile returns the current estimate for tag, as a time.Duration.
func (c *cycleDurationPercentiles) quantile(tag percentileTag) time.Duration {
	if tag < 0 || tag >= percentileCount {
		return 0
	}
	return time.Duration(c.estimators[tag].value())
}

// markerEstimator is one P-Square marker set tracking a single target
// quantile. Five markers bracket the target: minimum, two flanking
// markers either side of it, and the maximum; each update nudges the
// bracketing markers' heights and positions toward the true quantile
// without ever storing the underlying samples.
//
// Reference: Jain, R. and Chlamtac, I. (1985). "The P^2 Algorithm for
// Dynamic Calculation of Quantiles and Histograms Without Storing
// Observations". Communications of the ACM, 28(10), pp. 1076-1085.
//
// Not safe for concurrent use; CycleMetrics.Record holds its own mutex
// around every call into this type.
type markerEstimator struct {
	target float64

	// markerHeight[i] is the current height (estimated value) of marker
	// i; markerPos[i] its integer position among observations seen so
	// far; desiredPos[i] the real-valued position it should occupy;
	// posIncrement[i] the per-observation increment applied to
	// desiredPos.
	markerHeight   [5]float64
	markerPos      [5]int
	desiredPos     [5]float64
	posIncrement   [5]float64

	seen       int
	seedValues [5]float64 // raw samples 1-5, sorted in place once the 5th arrives
}

func newMarkerEstimator(target float64) markerEstimator {
	if target < 0 {
		target = 0
	} else if target > 1 {
		target = 1
	}
	return markerEstimator{
		target:       target,
		posIncrement: [5]float64{0, target / 2, target, (1 + target) / 2, 1},
	}
}

func (me *markerEstimator) update(x float64) {
	me.seen++

	if me.seen <= 5 {
		me.seedValues[me.seen-1] = x
		if me.seen == 5 {
			me.seed()
		}
		return
	}

	cell := me.locate(x)
	me.clampExtremes(x)

	for i := cell + 1; i < 5; i++ {
		me.markerPos[i]++
	}
	for i := range me.desiredPos {
		me.desiredPos[i] += me.posIncrement[i]
	}

	me.adjustInterior()
}

// locate finds which of the four cells [q0,q1) [q1,q2) [q2,q3) [q3,q4)
// x falls into, returning the lower marker index of that cell. x below q0
// maps to cell 0 and x at or above q4 to cell 3, so update calls it
// before clampExtremes widens q0/q4.
func (me *markerEstimator) locate(x float64) int {
	if x < me.markerHeight[0] {
		return 0
	}
	if x >= me.markerHeight[4] {
		return 3
	}
	for i := 0; i < 4; i++ {
		if me.markerHeight[i] <= x && x < me.markerHeight[i+1] {
			return i
		}
	}
	return 3
}

func (me *markerEstimator) clampExtremes(x float64) {
	if x < me.markerHeight[0] {
		me.markerHeight[0] = x
	} else if x >= me.markerHeight[4] {
		me.markerHeight[4] = x
	}
}

// adjustInterior applies the parabolic (or, if that would overshoot,
// linear) adjustment to each of the three interior markers whose
// desired position has drifted by more than one full observation from
// its actual position.
func (me *markerEstimator) adjustInterior() {
	for i := 1; i < 4; i++ {
		shift := me.desiredPos[i] - float64(me.markerPos[i])
		rightGap := me.markerPos[i+1] - me.markerPos[i]
		leftGap := me.markerPos[i-1] - me.markerPos[i]

		if (shift >= 1 && rightGap > 1) || (shift <= -1 && leftGap < -1) {
			dir := 1
			if shift < 0 {
				dir = -1
			}

			candidate := me.parabolic(i, dir)
			if me.markerHeight[i-1] < candidate && candidate < me.markerHeight[i+1] {
				me.markerHeight[i] = candidate
			} else {
				me.markerHeight[i] = me.linear(i, dir)
			}
			me.markerPos[i] += dir
		}
	}
}

func (me *markerEstimator) parabolic(i, dir int) float64 {
	d := float64(dir)
	ni := float64(me.markerPos[i])
	prev := float64(me.markerPos[i-1])
	next := float64(me.markerPos[i+1])

	a := d / (next - prev)
	b := (ni - prev + d) * (me.markerHeight[i+1] - me.markerHeight[i]) / (next - ni)
	c := (next - ni - d) * (me.markerHeight[i] - me.markerHeight[i-1]) / (ni - prev)

	return me.markerHeight[i] + a*(b+c)
}

func (me *markerEstimator) linear(i, dir int) float64 {
	if dir == 1 {
		return me.markerHeight[i] + (me.markerHeight[i+1]-me.markerHeight[i])/float64(me.markerPos[i+1]-me.markerPos[i])
	}
	return me.markerHeight[i] - (me.markerHeight[i]-me.markerHeight[i-1])/float64(me.markerPos[i]-me.markerPos[i-1])
}

// seed sorts the first five observations into the initial marker
// heights/positions once they have all arrived.
func (me *markerEstimator) seed() {
	sorted := me.seedValues // insertion sort, 5 elements
	for i := 1; i < 5; i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > key {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}

	for i := 0; i < 5; i++ {
		me.markerHeight[i] = sorted[i]
		me.markerPos[i] = i
	}
	me.desiredPos = [5]float64{0, 2 * me.target, 4 * me.target, 2 + 2*me.target, 4}
}

// value returns the current quantile estimate.
func (me *markerEstimator) value() float64 {
	if me.seen == 0 {
		return 0
	}
	if me.seen < 5 {
		sorted := make([]float64, me.seen)
		copy(sorted, me.seedValues[:me.seen])
		for i := 1; i < me.seen; i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}
		index := int(float64(me.seen-1) * me.target)
		if index >= me.seen {
			index = me.seen - 1
		}
		return sorted[index]
	}
	return me.markerHeight[2]
}

package ioimage

import "sync/atomic"

// DoubleBuffer is a single-writer/single-reader seqlock carrying
// ProcessData between the fieldbus thread and the scheduler thread.
//
// Invariants (spec.md §4.1):
//   - Exactly one writer per DoubleBuffer instance; enforced by API shape,
//     not by locking — callers must not share a writer across goroutines.
//   - The writer only ever touches the back slot (1 - front).
//   - A reader that observes the same even sequence number across both of
//     its loads has read a value that existed, in its entirety, at some
//     instant between those loads.
//
// seq and front are each isolated to their own cache line: under
// concurrent read/write, false sharing between the two atomics (and
// between them and neighbouring struct fields) would otherwise inflate
// reader retry rates.
type DoubleBuffer struct {
	seq atomic.Uint64
	_   [cacheLineSize - 8]byte

	front atomic.Uint32
	_     [cacheLineSize - 4]byte

	slots [2]ProcessData
}

// NewDoubleBuffer returns a DoubleBuffer with both slots zero-valued and
// sequence 0 (even, i.e. immediately readable).
func NewDoubleBuffer() *DoubleBuffer {
	return &DoubleBuffer{}
}

// Read returns a consistent snapshot of the front slot. It never blocks
// indefinitely; it spins only across the brief window a concurrent writer
// holds the sequence odd.
func (d *DoubleBuffer) Read() ProcessData {
	for {
		seq1 := d.seq.Load()
		if seq1&1 != 0 {
			continue // writer in progress, retry
		}
		front := d.front.Load()
		snapshot := d.slots[front]
		seq2 := d.seq.Load()
		if seq1 == seq2 {
			return snapshot
		}
	}
}

// Write applies f to the back slot and publishes the result atomically.
// f must not retain the pointer it is given beyond the call.
func (d *DoubleBuffer) Write(f func(*ProcessData)) {
	back := d.beginWrite()
	f(back)
	d.commit()
}

// beginWrite marks the sequence odd and returns a pointer to the back
// slot for the (single) writer to mutate freely.
func (d *DoubleBuffer) beginWrite() *ProcessData {
	d.seq.Add(1) // now odd
	back := 1 - d.front.Load()
	return &d.slots[back]
}

// commit flips the front index to the slot just written and advances the
// sequence back to even, publishing the write.
func (d *DoubleBuffer) commit() {
	back := 1 - d.front.Load()
	d.front.Store(back)
	d.seq.Add(1) // now even, advanced by 2 from pre-write value
}

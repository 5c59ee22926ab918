// Package transport provides the process-data wire drivers an EtherCAT
// master exchanges frames through (spec.md §4.5.2): the master owns
// state and WKC accounting, a Driver owns only the bytes-on-the-wire.
package transport

import "context"

// Driver is the process-data transport a master.Master exchanges
// through once per scheduler cycle.
type Driver interface {
	// Exchange writes outputs to the wire and reads inputs back into
	// the caller-owned buffer, returning the observed Working Counter.
	Exchange(ctx context.Context, outputs []byte, inputs []byte) (wkc uint16, err error)

	// SlaveCount reports the number of slaves discovered by Scan.
	SlaveCount() int

	// Scan (re)discovers slaves on the wire. Idempotent from the
	// caller's perspective: calling it twice yields the same slave set
	// absent a topology change.
	Scan(ctx context.Context) ([]SlaveInfo, error)

	// ReferenceClock returns the 64-bit system time of the first
	// DC-capable slave, and whether one exists.
	ReferenceClock(ctx context.Context) (ns uint64, ok bool)

	// Close releases any underlying socket or handle.
	Close() error
}

// SlaveInfo describes one discovered slave's PDO sizing and DC
// capability, enough for the master to compute expected_wkc and pick a
// reference clock (spec.md §4.5.2, §4.5.3).
type SlaveInfo struct {
	Address    uint16
	InputSize  int
	OutputSize int
	DCCapable  bool
}

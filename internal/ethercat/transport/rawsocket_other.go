//go:build !linux

package transport

import (
	"context"
	"errors"
)

// ErrRawSocketUnsupported is returned by OpenRawSocket on platforms
// without AF_PACKET support.
var ErrRawSocketUnsupported = errors.New("ethercat: raw socket transport requires linux")

// RawSocket is an unsupported stub outside Linux.
type RawSocket struct{}

func OpenRawSocket(iface string) (*RawSocket, error) {
	return nil, ErrRawSocketUnsupported
}

func (r *RawSocket) Exchange(ctx context.Context, outputs []byte, inputs []byte) (uint16, error) {
	return 0, ErrRawSocketUnsupported
}

func (r *RawSocket) SlaveCount() int { return 0 }

func (r *RawSocket) Scan(ctx context.Context) ([]SlaveInfo, error) {
	return nil, ErrRawSocketUnsupported
}

func (r *RawSocket) ReferenceClock(ctx context.Context) (uint64, bool) {
	return 0, false
}

func (r *RawSocket) Close() error { return nil }

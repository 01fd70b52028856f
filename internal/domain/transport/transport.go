package transport

import (
	"context"

	"github.com/FreePeak/golang-cdp-client/internal/domain"
)

// Transport is one duplex message connection to a session.
//
// Receive must only ever be called from a single goroutine; implementations
// reject concurrent receives with domain.ErrConcurrentReceive.
type Transport interface {
	// Send writes one payload. It fails with *domain.NotConnectedError when
	// the transport is not connected.
	Send(ctx context.Context, payload []byte) error

	// Receive blocks until the next inbound payload arrives, the transport is
	// closed, or ctx is done.
	Receive(ctx context.Context) ([]byte, error)

	// Close is idempotent and unblocks a pending Receive.
	Close() error

	// State returns the current lifecycle state.
	State() domain.ConnectionState
}

// Dialer opens transports.
type Dialer interface {
	// Dial connects to the socket locator of a session. It fails with
	// *domain.ConnectError on handshake failure.
	Dial(ctx context.Context, url string) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Transport, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, url string) (Transport, error) {
	return f(ctx, url)
}

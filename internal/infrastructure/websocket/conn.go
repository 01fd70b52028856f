// Package websocket implements the duplex transport over a WebSocket
// connection using gorilla/websocket.
package websocket

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/FreePeak/golang-cdp-client/internal/domain"
	"github.com/FreePeak/golang-cdp-client/internal/domain/transport"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/logging"
)

const (
	defaultHandshakeTimeout = 45 * time.Second
	closeGracePeriod        = time.Second
)

// Dialer opens WebSocket transports.
type Dialer struct {
	handshakeTimeout time.Duration
	suppressOrigin   bool
	origin           string
	readLimit        int64
	header           http.Header
	logger           *logging.Logger
}

// DialerOption configures a Dialer.
type DialerOption func(*Dialer)

// WithHandshakeTimeout bounds the opening handshake.
func WithHandshakeTimeout(d time.Duration) DialerOption {
	return func(dl *Dialer) {
		dl.handshakeTimeout = d
	}
}

// WithSuppressOrigin omits the Origin header for peers that reject it.
func WithSuppressOrigin(suppress bool) DialerOption {
	return func(dl *Dialer) {
		dl.suppressOrigin = suppress
	}
}

// WithOrigin overrides the Origin header value. By default the origin is
// derived from the socket URL as http://host:port.
func WithOrigin(origin string) DialerOption {
	return func(dl *Dialer) {
		dl.origin = origin
	}
}

// WithReadLimit sets the maximum inbound message size in bytes. Zero keeps
// gorilla's unlimited default.
func WithReadLimit(n int64) DialerOption {
	return func(dl *Dialer) {
		dl.readLimit = n
	}
}

// WithHeader adds extra handshake headers.
func WithHeader(h http.Header) DialerOption {
	return func(dl *Dialer) {
		dl.header = h.Clone()
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) DialerOption {
	return func(dl *Dialer) {
		dl.logger = l
	}
}

// NewDialer creates a Dialer.
func NewDialer(opts ...DialerOption) *Dialer {
	d := &Dialer{
		handshakeTimeout: defaultHandshakeTimeout,
		logger:           logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(ctx context.Context, rawURL string) (transport.Transport, error) {
	return d.DialConn(ctx, rawURL)
}

// DialConn connects and returns the concrete connection.
func (d *Dialer) DialConn(ctx context.Context, rawURL string) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.NewConnectError(rawURL, errors.Wrap(err, "invalid socket URL"))
	}

	header := http.Header{}
	for k, v := range d.header {
		header[k] = append([]string(nil), v...)
	}
	if d.suppressOrigin {
		header.Del("Origin")
	} else if header.Get("Origin") == "" {
		origin := d.origin
		if origin == "" {
			origin = "http://" + u.Host
		}
		header.Set("Origin", origin)
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.handshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = errors.Wrapf(err, "handshake status %s", resp.Status)
		}
		return nil, domain.NewConnectError(rawURL, err)
	}
	if d.readLimit > 0 {
		conn.SetReadLimit(d.readLimit)
	}

	d.logger.Debug("socket connected", logging.Fields{"url": rawURL})
	return newConn(conn, rawURL, d.logger), nil
}

// Conn is a connected WebSocket transport. It is not reusable: once closed
// it stays closed.
type Conn struct {
	conn   *websocket.Conn
	url    string
	logger *logging.Logger

	state   atomic.Int32
	reading atomic.Bool
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newConn(conn *websocket.Conn, rawURL string, logger *logging.Logger) *Conn {
	c := &Conn{conn: conn, url: rawURL, logger: logger}
	c.state.Store(int32(domain.StateConnected))
	return c
}

// URL returns the socket URL.
func (c *Conn) URL() string {
	return c.url
}

// State implements transport.Transport.
func (c *Conn) State() domain.ConnectionState {
	return domain.ConnectionState(c.state.Load())
}

// Send implements transport.Transport.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.State() != domain.StateConnected {
		return domain.NewNotConnectedError("send", nil)
	}

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return errors.Wrap(err, "error setting write deadline")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		// A failed write leaves the gorilla connection unusable.
		wasConnected := c.State() == domain.StateConnected
		_ = c.Close()
		if wasConnected {
			c.logger.Warn("closing socket after failed write", logging.Fields{"url": c.url, "error": err})
		}
		return domain.NewNotConnectedError("send", err)
	}
	return nil
}

// Receive implements transport.Transport. Cancelling ctx while a read is in
// progress tears the connection down, since a gorilla connection cannot
// resume after an interrupted read.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	if !c.reading.CompareAndSwap(false, true) {
		return nil, domain.ErrConcurrentReceive
	}
	defer c.reading.Store(false)

	if c.State() != domain.StateConnected {
		return nil, domain.NewNotConnectedError("receive", nil)
	}

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			_ = c.conn.SetReadDeadline(time.Now())
		})
		defer stop()
	}

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			wasConnected := c.state.CompareAndSwap(int32(domain.StateConnected), int32(domain.StateClosed))
			if ctxErr := ctx.Err(); ctxErr != nil {
				_ = c.Close()
				return nil, ctxErr
			}
			if wasConnected {
				c.logger.Info("socket closed by peer", logging.Fields{"url": c.url, "error": err})
				_ = c.Close()
			}
			return nil, domain.NewNotConnectedError("receive", err)
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		return data, nil
	}
}

// Close implements transport.Transport.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(domain.StateClosed))

		// WriteControl and Close may run concurrently with a pending write.
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod),
		)

		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

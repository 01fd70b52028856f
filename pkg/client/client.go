// Package client is a client for remote debugging peers that speak the
// devtools protocol: JSON commands and events over a WebSocket found through
// an HTTP discovery endpoint.
//
// A Client owns one connection. Commands may be sent from any number of
// goroutines; every response is matched to its command by id. Events are
// delivered in wire order both to registered handlers and to a queue read
// with WaitEvent, WaitMessage and PopMessages.
//
//	c, err := client.New(client.WithAddress("localhost", 9222))
//	if err != nil { ... }
//	if err := c.Connect(ctx, types.Selector{Title: "Example"}); err != nil { ... }
//	defer c.Disconnect(context.Background())
//
//	if err := c.EnableDomain(ctx, "Page"); err != nil { ... }
//	_, err = c.SendCommand(ctx, "Page.navigate", map[string]string{"url": "https://example.com"})
//	ev, _, err := c.WaitEvent(ctx, "Page.loadEventFired", 10*time.Second)
package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/FreePeak/golang-cdp-client/internal/builder"
	"github.com/FreePeak/golang-cdp-client/internal/config"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/discovery"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/logging"
	"github.com/FreePeak/golang-cdp-client/internal/usecases"
	"github.com/FreePeak/golang-cdp-client/pkg/types"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	configPath       string
	host             *string
	port             int
	scheme           string
	suppressOrigin   *bool
	commandTimeout   *time.Duration
	handshakeTimeout *time.Duration
	queueMode        types.QueueMode
	queueCapacity    *int
	logger           *zap.Logger
	registerer       prometheus.Registerer
}

// WithConfigFile loads settings from a YAML file before other options apply.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithAddress sets the peer's discovery host and port (default localhost:9222).
func WithAddress(host string, port int) Option {
	return func(o *options) {
		o.host = &host
		o.port = port
	}
}

// WithScheme sets the discovery scheme, "http" or "https".
func WithScheme(scheme string) Option {
	return func(o *options) {
		o.scheme = scheme
	}
}

// WithSuppressOrigin omits the Origin header from the socket handshake.
func WithSuppressOrigin(suppress bool) Option {
	return func(o *options) {
		o.suppressOrigin = &suppress
	}
}

// WithCommandTimeout bounds commands sent with a context that has no
// deadline. Zero means commands without a deadline wait indefinitely.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *options) {
		o.commandTimeout = &d
	}
}

// WithHandshakeTimeout bounds the socket opening handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		o.handshakeTimeout = &d
	}
}

// WithQueue selects which messages are buffered and how many are kept.
// A capacity of zero is unbounded.
func WithQueue(mode types.QueueMode, capacity int) Option {
	return func(o *options) {
		o.queueMode = mode
		o.queueCapacity = &capacity
	}
}

// WithLogger sets the zap logger. The default discards all output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics registers the client's Prometheus collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// Client is a connection to one debugging target. It is single-use: after
// Disconnect, create a new Client.
type Client struct {
	inner    *usecases.Client
	resolver *discovery.Resolver
}

func (o *options) config() (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.LoadFile(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.host != nil {
		cfg.Host = *o.host
		cfg.Port = o.port
	}
	if o.scheme != "" {
		cfg.Scheme = o.scheme
	}
	if o.suppressOrigin != nil {
		cfg.SuppressOrigin = *o.suppressOrigin
	}
	if o.commandTimeout != nil {
		cfg.CommandTimeout = *o.commandTimeout
	}
	if o.handshakeTimeout != nil {
		cfg.HandshakeTimeout = *o.handshakeTimeout
	}
	if o.queueMode != "" {
		cfg.Queue.Mode = string(o.queueMode)
	}
	if o.queueCapacity != nil {
		cfg.Queue.Capacity = *o.queueCapacity
	}
	return cfg, cfg.Validate()
}

// New creates a disconnected client.
func New(opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}

	logger := logging.NewNop()
	if o.logger != nil {
		logger = logging.FromZap(o.logger)
	}

	b := builder.FromConfig(cfg).
		WithLogger(logger).
		WithRegisterer(o.registerer)
	resolver := b.BuildResolver()

	inner, err := b.WithSessionSource(resolver).BuildClient()
	if err != nil {
		return nil, err
	}
	return &Client{inner: inner, resolver: resolver}, nil
}

// ID returns the client's unique id, also attached to its log lines.
func (c *Client) ID() string {
	return c.inner.ID()
}

// ListSessions returns the sessions the peer currently offers.
func (c *Client) ListSessions(ctx context.Context) ([]types.Session, error) {
	return c.resolver.ListSessions(ctx)
}

// Version returns the peer's browser and protocol version.
func (c *Client) Version(ctx context.Context) (types.BrowserVersion, error) {
	return c.resolver.Version(ctx)
}

// Connect picks a session with selector and connects to it. The zero
// Selector picks the first listed session.
func (c *Client) Connect(ctx context.Context, selector types.Selector) error {
	return c.inner.Connect(ctx, selector)
}

// ConnectSession connects to a session obtained from ListSessions.
func (c *Client) ConnectSession(ctx context.Context, session types.Session) error {
	return c.inner.ConnectSession(ctx, session)
}

// ConnectURL connects directly to a socket URL, skipping discovery.
func (c *Client) ConnectURL(ctx context.Context, url string) error {
	return c.inner.ConnectURL(ctx, url)
}

// Session returns the connected session; it is zero after ConnectURL.
func (c *Client) Session() types.Session {
	return c.inner.Session()
}

// State returns the connection state.
func (c *Client) State() types.ConnectionState {
	return c.inner.State()
}

// SendCommand sends method with params and returns the raw result. params
// may be nil, a json.RawMessage, or any value that marshals to an object.
//
// Failures are *types.RemoteError for peer errors, *types.TimeoutError when
// ctx or the command timeout expires, and *types.NotConnectedError when the
// connection is missing or lost.
func (c *Client) SendCommand(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.inner.SendCommand(ctx, method, params)
}

// Call sends a command and decodes its result into out.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	raw, err := c.inner.SendCommand(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// EnableDomain enables a protocol domain such as "Page" or "Network".
// Enabling an enabled domain sends nothing and succeeds.
func (c *Client) EnableDomain(ctx context.Context, name string) error {
	return c.inner.EnableDomain(ctx, name)
}

// DisableDomain disables a protocol domain.
func (c *Client) DisableDomain(ctx context.Context, name string) error {
	return c.inner.DisableDomain(ctx, name)
}

// IsDomainEnabled reports whether name was enabled on this connection.
func (c *Client) IsDomainEnabled(name string) bool {
	return c.inner.IsDomainEnabled(name)
}

// EnabledDomains lists the enabled domains, sorted.
func (c *Client) EnabledDomains() []string {
	return c.inner.EnabledDomains()
}

// AddEventHandler registers fn for events named name, or for all events
// with types.AllEvents. Handlers for one event run in registration order.
func (c *Client) AddEventHandler(name string, fn types.EventHandler) types.HandlerID {
	return c.inner.AddEventHandler(name, fn)
}

// RemoveEventHandler removes a registration.
func (c *Client) RemoveEventHandler(name string, id types.HandlerID) bool {
	return c.inner.RemoveEventHandler(name, id)
}

// WaitEvent waits up to timeout for a queued event named name. A match
// clears the whole queue: the other messages are returned as drained. On
// timeout the event is nil and drained holds everything that was queued.
// A timeout of zero waits until ctx is done.
func (c *Client) WaitEvent(ctx context.Context, name string, timeout time.Duration) (*types.Event, []types.Message, error) {
	return c.inner.WaitEvent(ctx, name, timeout)
}

// WaitMessage pops the oldest queued message, or returns nil on timeout.
func (c *Client) WaitMessage(ctx context.Context, timeout time.Duration) (*types.Message, error) {
	return c.inner.WaitMessage(ctx, timeout)
}

// PopMessages removes and returns every queued message without waiting.
func (c *Client) PopMessages() []types.Message {
	return c.inner.PopMessages()
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.inner.Done()
}

// Err returns why the connection ended, or nil while it is open.
func (c *Client) Err() error {
	return c.inner.Err()
}

// Disconnect closes the connection and fails pending commands with
// *types.NotConnectedError. It waits for the reader to stop until ctx is done.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.inner.Disconnect(ctx)
}

// Package usecases implements the client side of the debugging protocol:
// command correlation, event routing and queuing, and domain bookkeeping on
// top of a duplex transport.
package usecases

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/FreePeak/golang-cdp-client/internal/domain"
	"github.com/FreePeak/golang-cdp-client/internal/domain/shared"
	"github.com/FreePeak/golang-cdp-client/internal/domain/transport"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/logging"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/metrics"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/store"
)

// Connection attempt results used as the "result" metric label.
const (
	connectOK     = "ok"
	connectFailed = "failed"
)

// ErrDisconnectRequested is the cause reported to pending commands when the
// caller disconnects.
var ErrDisconnectRequested = errors.New("disconnect requested")

// ClientConfig contains the collaborators and settings of a Client.
type ClientConfig struct {
	Dialer     transport.Dialer
	Sessions   domain.SessionSource
	DomainRepo domain.DomainRepository
	Logger     *logging.Logger
	Metrics    *metrics.Metrics

	// CommandTimeout applies to commands whose context has no deadline.
	// Zero waits without bound.
	CommandTimeout time.Duration
	QueueMode      QueueMode
	// QueueCapacity bounds the message queue; zero is unbounded.
	QueueCapacity int
}

// Client is one connection to a debugging peer. It is single-use: once
// disconnected, create a new Client to reconnect.
type Client struct {
	id             string
	dialer         transport.Dialer
	sessions       domain.SessionSource
	logger         *logging.Logger
	metrics        *metrics.Metrics
	commandTimeout time.Duration
	queueMode      QueueMode

	state atomic.Int32

	mu        sync.Mutex
	transport transport.Transport
	session   domain.Session
	cause     error

	correlator *Correlator
	router     *EventRouter
	queue      *MessageQueue
	domains    *DomainRegistry

	runCancel    context.CancelFunc
	started      atomic.Bool
	done         chan struct{}
	readerDone   chan struct{}
	teardownOnce sync.Once
}

// NewClient creates a disconnected client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Dialer == nil {
		return nil, errors.New("dialer is required")
	}
	mode := config.QueueMode
	if mode == "" {
		mode = QueueEvents
	}
	if _, err := ParseQueueMode(string(mode)); err != nil {
		return nil, err
	}
	if config.QueueCapacity < 0 {
		return nil, errors.Errorf("queue capacity must not be negative, got %d", config.QueueCapacity)
	}
	repo := config.DomainRepo
	if repo == nil {
		repo = store.NewInMemoryDomainRepository()
	}

	id := uuid.NewString()
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.Fields{"client_id": id})

	c := &Client{
		id:             id,
		dialer:         config.Dialer,
		sessions:       config.Sessions,
		logger:         logger,
		metrics:        config.Metrics,
		commandTimeout: config.CommandTimeout,
		queueMode:      mode,
		correlator:     NewCorrelator(config.Metrics),
		router:         NewEventRouter(logger, config.Metrics),
		queue:          NewMessageQueue(config.QueueCapacity, config.Metrics),
		done:           make(chan struct{}),
		readerDone:     make(chan struct{}),
	}
	c.domains = NewDomainRegistry(c, repo, logger)
	c.state.Store(int32(domain.StateDisconnected))
	return c, nil
}

// ID returns the client's unique identifier, attached to its log lines.
func (c *Client) ID() string {
	return c.id
}

// State returns the connection state.
func (c *Client) State() domain.ConnectionState {
	return domain.ConnectionState(c.state.Load())
}

// Session returns the session the client connected to, if any.
func (c *Client) Session() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Connect resolves selector against the session source and connects to the
// chosen session.
func (c *Client) Connect(ctx context.Context, selector domain.Selector) error {
	if c.sessions == nil {
		return domain.NewConnectError("", errors.New("no session source configured"))
	}
	sessions, err := c.sessions.ListSessions(ctx)
	if err != nil {
		return err
	}
	session, ok := selector.Select(sessions)
	if !ok {
		return domain.NewConnectError("", errors.Errorf("no session matches %+v", selector))
	}
	return c.ConnectSession(ctx, session)
}

// ConnectSession connects to the socket URL of session.
func (c *Client) ConnectSession(ctx context.Context, session domain.Session) error {
	if !session.Connectable() {
		return domain.NewConnectError(session.ID, errors.New("session has no socket URL; another debugger may be attached"))
	}
	if err := c.ConnectURL(ctx, session.WebSocketDebuggerURL); err != nil {
		return err
	}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	return nil
}

// ConnectURL dials the socket URL and starts the reader. A failed attempt
// leaves the client disconnected and may be retried.
func (c *Client) ConnectURL(ctx context.Context, url string) error {
	if !c.state.CompareAndSwap(int32(domain.StateDisconnected), int32(domain.StateConnecting)) {
		return domain.NewConnectError(url, errors.Errorf("client is %s", c.State()))
	}

	c.logger.Info("connecting", logging.Fields{"url": url})
	t, err := c.dialer.Dial(ctx, url)
	if err != nil {
		c.state.CompareAndSwap(int32(domain.StateConnecting), int32(domain.StateDisconnected))
		c.metrics.ConnectAttempt(connectFailed)
		c.logger.Warn("connect failed", logging.Fields{"url": url, "error": err})
		var connectErr *domain.ConnectError
		if errors.As(err, &connectErr) {
			return err
		}
		return domain.NewConnectError(url, err)
	}

	c.mu.Lock()
	if !c.state.CompareAndSwap(int32(domain.StateConnecting), int32(domain.StateConnected)) {
		c.mu.Unlock()
		_ = t.Close()
		return domain.NewConnectError(url, errors.New("client disconnected while connecting"))
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.transport = t
	c.runCancel = cancel
	c.started.Store(true)
	c.mu.Unlock()

	demux := NewDemultiplexer(DemuxConfig{
		Transport:  t,
		Correlator: c.correlator,
		Router:     c.router,
		Queue:      c.queue,
		QueueMode:  c.queueMode,
		Logger:     c.logger,
		Metrics:    c.metrics,
	})

	c.metrics.ConnectAttempt(connectOK)
	c.logger.Info("connected", logging.Fields{"url": url})

	go func() {
		defer close(c.readerDone)
		err := demux.Run(runCtx)
		c.teardown(err)
	}()
	return nil
}

// SendCommand sends method with params and waits for the correlated
// response. params may be nil, a json.RawMessage, or any value that
// marshals to a JSON object.
//
// A remote error is returned as *domain.RemoteError. When ctx expires, or
// the configured command timeout elapses, the pending entry is removed and
// a *domain.TimeoutError is returned; a late response is then discarded.
func (c *Client) SendCommand(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil || c.State() != domain.StateConnected {
		return nil, domain.NewNotConnectedError(method, nil)
	}

	if c.commandTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.commandTimeout)
			defer cancel()
		}
	}

	pc, err := c.correlator.Register(method)
	if err != nil {
		return nil, err
	}

	payload, err := shared.EncodeRequest(pc.id, method, params)
	if err != nil {
		c.correlator.Abandon(pc.id, metrics.OutcomeSendError)
		return nil, err
	}

	if err := t.Send(ctx, payload); err != nil {
		if ctx.Err() != nil {
			return c.abandonExpired(ctx, pc)
		}
		if !c.correlator.Abandon(pc.id, metrics.OutcomeSendError) {
			// Failed by a concurrent disconnect; report that instead.
			res := <-pc.done
			return res.result, res.err
		}
		if domain.IsNotConnected(err) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "error sending %s", method)
	}

	c.logger.Debug("command sent", logging.Fields{"id": pc.id, "method": method})

	select {
	case res := <-pc.done:
		return res.result, res.err
	case <-ctx.Done():
		return c.abandonExpired(ctx, pc)
	}
}

// abandonExpired removes pc after ctx ended. A deadline yields a
// *domain.TimeoutError and a cancellation yields ctx.Err(), unless the
// response already arrived.
func (c *Client) abandonExpired(ctx context.Context, pc *pendingCommand) (json.RawMessage, error) {
	outcome := metrics.OutcomeCancelled
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		outcome = metrics.OutcomeTimeout
	}
	if !c.correlator.Abandon(pc.id, outcome) {
		res := <-pc.done
		return res.result, res.err
	}
	if outcome == metrics.OutcomeTimeout {
		elapsed := time.Since(pc.created)
		c.logger.Warn("command timed out", logging.Fields{"id": pc.id, "method": pc.method, "elapsed": elapsed.String()})
		return nil, &domain.TimeoutError{Op: pc.method, ID: pc.id, Elapsed: elapsed}
	}
	return nil, ctx.Err()
}

// EnableDomain sends "<name>.enable" unless name is already enabled.
func (c *Client) EnableDomain(ctx context.Context, name string) error {
	return c.domains.Enable(ctx, name)
}

// DisableDomain sends "<name>.disable" if name is enabled.
func (c *Client) DisableDomain(ctx context.Context, name string) error {
	return c.domains.Disable(ctx, name)
}

// IsDomainEnabled reports whether name is enabled on this connection.
func (c *Client) IsDomainEnabled(name string) bool {
	return c.domains.IsEnabled(context.Background(), name)
}

// EnabledDomains returns the enabled domains, sorted.
func (c *Client) EnabledDomains() []string {
	return c.domains.List(context.Background())
}

// AddEventHandler registers fn for events named name, or for every event
// when name is AllEvents.
func (c *Client) AddEventHandler(name string, fn EventHandler) HandlerID {
	return c.router.AddHandler(name, fn)
}

// RemoveEventHandler removes a registration made by AddEventHandler.
func (c *Client) RemoveEventHandler(name string, id HandlerID) bool {
	return c.router.RemoveHandler(name, id)
}

// WaitEvent blocks until an event named name is queued or timeout elapses.
// See MessageQueue.WaitEvent for the draining rules.
func (c *Client) WaitEvent(ctx context.Context, name string, timeout time.Duration) (*shared.Event, []shared.Message, error) {
	return c.queue.WaitEvent(ctx, name, timeout)
}

// WaitMessage pops the oldest queued message, waiting up to timeout.
func (c *Client) WaitMessage(ctx context.Context, timeout time.Duration) (*shared.Message, error) {
	return c.queue.WaitMessage(ctx, timeout)
}

// PopMessages removes and returns every queued message.
func (c *Client) PopMessages() []shared.Message {
	return c.queue.PopMessages()
}

// PendingCommands returns the number of commands awaiting a response.
func (c *Client) PendingCommands() int {
	return c.correlator.Pending()
}

// Done is closed once the connection is torn down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection ended, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

// Disconnect closes the connection, fails every pending command with a
// NotConnectedError and waits for the reader to stop or ctx to expire.
// Calling it more than once is harmless.
func (c *Client) Disconnect(ctx context.Context) error {
	c.teardown(ErrDisconnectRequested)

	if !c.started.Load() {
		return nil
	}
	select {
	case <-c.readerDone:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for reader to stop")
	}
}

func (c *Client) teardown(cause error) {
	c.teardownOnce.Do(func() {
		if cause == nil {
			cause = ErrDisconnectRequested
		}
		c.state.Store(int32(domain.StateClosed))

		c.mu.Lock()
		t := c.transport
		cancel := c.runCancel
		c.cause = cause
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}

		if t != nil {
			if err := t.Close(); err != nil {
				c.logger.Debug("error closing transport", logging.Fields{"error": err})
			}
		}

		failed := c.correlator.Close(cause)
		c.queue.Close(domain.NewNotConnectedError("wait", cause))
		c.domains.Close(context.Background())
		close(c.done)

		c.logger.Info("disconnected", logging.Fields{"cause": cause.Error(), "failed_commands": failed})
	})
}

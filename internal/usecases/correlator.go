package usecases

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/FreePeak/golang-cdp-client/internal/domain"
	"github.com/FreePeak/golang-cdp-client/internal/domain/shared"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/metrics"
)

type commandResult struct {
	result json.RawMessage
	err    error
}

// pendingCommand is one in-flight command awaiting its response.
type pendingCommand struct {
	id      int64
	method  string
	created time.Time
	done    chan commandResult
}

// Correlator owns the table of in-flight commands. Ids come from a
// monotonic counter, so an id is never handed out twice on one connection.
type Correlator struct {
	mu       sync.Mutex
	pending  map[int64]*pendingCommand
	nextID   int64
	closed   bool
	closeErr error

	metrics *metrics.Metrics
}

// NewCorrelator creates an empty correlation table.
func NewCorrelator(m *metrics.Metrics) *Correlator {
	return &Correlator{
		pending: make(map[int64]*pendingCommand),
		metrics: m,
	}
}

// Register allocates the next id and records a pending command for it. The
// entry must exist before the request is written so that a fast response
// always finds it.
func (c *Correlator) Register(method string) (*pendingCommand, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, domain.NewNotConnectedError(method, c.closeErr)
	}

	c.nextID++
	pc := &pendingCommand{
		id:      c.nextID,
		method:  method,
		created: time.Now(),
		done:    make(chan commandResult, 1),
	}
	c.pending[pc.id] = pc
	c.metrics.CommandStarted()
	return pc, nil
}

// Complete delivers a response to its waiting command. It reports false for
// unknown ids, which the caller discards.
func (c *Correlator) Complete(resp *shared.Response) bool {
	if resp == nil {
		return false
	}

	c.mu.Lock()
	pc, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}

	if resp.Error != nil {
		c.metrics.CommandFinished(pc.method, metrics.OutcomeRemoteError, time.Since(pc.created))
		pc.done <- commandResult{err: shared.ToRemoteError(pc.method, resp.Error)}
		return true
	}

	c.metrics.CommandFinished(pc.method, metrics.OutcomeOK, time.Since(pc.created))
	pc.done <- commandResult{result: resp.Result}
	return true
}

// Abandon removes a pending command without completing it. It reports false
// when the command was already completed or failed, in which case its result
// is waiting in the command's channel.
func (c *Correlator) Abandon(id int64, outcome string) bool {
	c.mu.Lock()
	pc, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if ok {
		c.metrics.CommandFinished(pc.method, outcome, time.Since(pc.created))
	}
	return ok
}

// Close fails every pending command with a NotConnectedError wrapping cause
// and rejects further registrations. It returns how many commands it failed.
func (c *Correlator) Close(cause error) int {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	c.closed = true
	c.closeErr = cause
	pending := c.pending
	c.pending = make(map[int64]*pendingCommand)
	c.mu.Unlock()

	for _, pc := range pending {
		c.metrics.CommandFinished(pc.method, metrics.OutcomeNotConnected, time.Since(pc.created))
		pc.done <- commandResult{err: domain.NewNotConnectedError(pc.method, cause)}
	}
	return len(pending)
}

// Pending returns the number of in-flight commands.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

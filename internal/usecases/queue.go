package usecases

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/FreePeak/golang-cdp-client/internal/domain/shared"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/metrics"
)

// QueueMode selects which inbound messages are buffered for pull consumers.
type QueueMode string

const (
	// QueueEvents buffers events only.
	QueueEvents QueueMode = "events"
	// QueueAll buffers events and, after correlation, responses.
	QueueAll QueueMode = "all"
	// QueueNone disables buffering; events reach handlers only.
	QueueNone QueueMode = "none"
)

// ParseQueueMode converts a mode name; the empty string means QueueEvents.
func ParseQueueMode(s string) (QueueMode, error) {
	switch mode := QueueMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return QueueEvents, nil
	case QueueEvents, QueueAll, QueueNone:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown queue mode %q", s)
	}
}

// MessageQueue buffers inbound messages in wire order for pull-style
// consumers. Waiters block on a broadcast channel that is replaced on every
// change, so no waiter ever polls.
type MessageQueue struct {
	mu       sync.Mutex
	items    []shared.Message
	capacity int
	changed  chan struct{}
	closed   bool
	closeErr error

	metrics *metrics.Metrics
}

// NewMessageQueue creates a queue. A positive capacity evicts the oldest
// message when full; zero means unbounded.
func NewMessageQueue(capacity int, m *metrics.Metrics) *MessageQueue {
	return &MessageQueue{
		capacity: capacity,
		changed:  make(chan struct{}),
		metrics:  m,
	}
}

func (q *MessageQueue) broadcastLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// Push appends a message. Pushes after Close are ignored.
func (q *MessageQueue) Push(msg shared.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	if q.capacity > 0 && len(q.items) >= q.capacity {
		q.items[0] = shared.Message{}
		q.items = q.items[1:]
		q.metrics.MessageDropped()
	}
	q.items = append(q.items, msg)
	q.broadcastLocked()
}

// Close releases every waiter. Waiters that find nothing return err.
func (q *MessageQueue) Close(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.closeErr = err
	q.broadcastLocked()
}

// Len returns the number of queued messages.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PopMessages removes and returns everything queued. It never blocks and
// never returns nil.
func (q *MessageQueue) PopMessages() []shared.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.takeAllLocked()
}

func (q *MessageQueue) takeAllLocked() []shared.Message {
	items := q.items
	q.items = nil
	if items == nil {
		return []shared.Message{}
	}
	return items
}

// matchLocked looks for the first event named name. On a match the whole
// queue is cleared: the event is returned alone and every other message is
// returned as drained.
func (q *MessageQueue) matchLocked(name string) (*shared.Event, []shared.Message, bool) {
	for i, msg := range q.items {
		if msg.Kind != shared.KindEvent || msg.Event == nil || msg.Event.Method != name {
			continue
		}
		drained := make([]shared.Message, 0, len(q.items)-1)
		drained = append(drained, q.items[:i]...)
		drained = append(drained, q.items[i+1:]...)
		q.items = nil
		return msg.Event, drained, true
	}
	return nil, nil, false
}

// WaitEvent blocks until an event named name is queued, timeout elapses, or
// ctx is done.
//
// On a match the queue is cleared entirely: the matching event is returned
// and every other queued message is returned as drained. Concurrent waiters
// therefore compete for the same messages, and the one that matches first
// takes all of them.
//
// On timeout it returns (nil, drained, nil) where drained is everything that
// was queued at that moment, removed from the queue. A timeout of zero or
// less waits without bound. The error is non-nil only when ctx is done or the
// queue was closed by a disconnect; drained messages are returned in both
// cases.
func (q *MessageQueue) WaitEvent(ctx context.Context, name string, timeout time.Duration) (*shared.Event, []shared.Message, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		q.mu.Lock()
		if event, drained, ok := q.matchLocked(name); ok {
			q.mu.Unlock()
			return event, drained, nil
		}
		if q.closed {
			drained, err := q.takeAllLocked(), q.closeErr
			q.mu.Unlock()
			return nil, drained, err
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-expired:
			return q.finishWait(name, nil)
		case <-ctx.Done():
			return q.finishWait(name, ctx.Err())
		}
	}
}

// finishWait makes one last match attempt so an event that arrived at the
// same instant as the deadline is not misreported as drained.
func (q *MessageQueue) finishWait(name string, err error) (*shared.Event, []shared.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if event, drained, ok := q.matchLocked(name); ok {
		return event, drained, nil
	}
	return nil, q.takeAllLocked(), err
}

// WaitMessage pops the oldest queued message, blocking until one arrives,
// timeout elapses, or ctx is done. It returns (nil, nil) on timeout. A
// timeout of zero or less waits without bound. Other queued messages are
// left in place.
func (q *MessageQueue) WaitMessage(ctx context.Context, timeout time.Duration) (*shared.Message, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		q.mu.Lock()
		if msg, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return msg, nil
		}
		if q.closed {
			err := q.closeErr
			q.mu.Unlock()
			return nil, err
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-expired:
			q.mu.Lock()
			msg, _ := q.popLocked()
			q.mu.Unlock()
			return msg, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *MessageQueue) popLocked() (*shared.Message, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	msg := q.items[0]
	q.items[0] = shared.Message{}
	q.items = q.items[1:]
	return &msg, true
}

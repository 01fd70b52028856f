package usecases

import (
	"context"
	"fmt"
	"sync"

	"github.com/FreePeak/golang-cdp-client/internal/domain/shared"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/logging"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/metrics"
)

// AllEvents registers a handler for every event.
const AllEvents = "*"

// EventHandler is invoked synchronously on the reader goroutine for each
// matching event. A handler that needs to issue commands must do so from
// another goroutine, since the response can only be read once it returns.
type EventHandler func(ctx context.Context, event shared.Event) error

// HandlerID identifies a registered handler for removal.
type HandlerID uint64

type handlerEntry struct {
	id HandlerID
	fn EventHandler
}

// EventRouter maps event names to ordered handler lists.
type EventRouter struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry
	nextID   HandlerID

	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewEventRouter creates an empty router.
func NewEventRouter(logger *logging.Logger, m *metrics.Metrics) *EventRouter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &EventRouter{
		handlers: make(map[string][]handlerEntry),
		logger:   logger,
		metrics:  m,
	}
}

// AddHandler appends fn to the handlers for name. Registering the same
// function twice yields two independent registrations.
func (r *EventRouter) AddHandler(name string, fn EventHandler) HandlerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	list := r.handlers[name]
	// Full slice expression forces a copy so in-flight dispatch snapshots stay intact.
	r.handlers[name] = append(list[:len(list):len(list)], handlerEntry{id: r.nextID, fn: fn})
	return r.nextID
}

// RemoveHandler removes one registration. It reports false when id is not
// registered under name.
func (r *EventRouter) RemoveHandler(name string, id HandlerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.handlers[name]
	for i, entry := range list {
		if entry.id != id {
			continue
		}
		next := make([]handlerEntry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(r.handlers, name)
		} else {
			r.handlers[name] = next
		}
		return true
	}
	return false
}

// HandlerCount returns the number of handlers registered under name.
func (r *EventRouter) HandlerCount(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[name])
}

// Dispatch invokes the handlers for the event's name in registration order,
// then the wildcard handlers. A failing or panicking handler is logged and
// does not stop the others. It returns the number of failures.
func (r *EventRouter) Dispatch(ctx context.Context, event shared.Event) int {
	r.mu.RLock()
	named := r.handlers[event.Method]
	wildcard := r.handlers[AllEvents]
	r.mu.RUnlock()

	failures := 0
	for _, entry := range named {
		if !r.invoke(ctx, entry, event) {
			failures++
		}
	}
	if event.Method != AllEvents {
		for _, entry := range wildcard {
			if !r.invoke(ctx, entry, event) {
				failures++
			}
		}
	}
	return failures
}

func (r *EventRouter) invoke(ctx context.Context, entry handlerEntry, event shared.Event) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.HandlerFailed(event.Domain())
			r.logger.Error("event handler panicked", logging.Fields{
				"event":   event.Method,
				"handler": uint64(entry.id),
				"panic":   fmt.Sprint(rec),
			})
			ok = false
		}
	}()

	if err := entry.fn(ctx, event); err != nil {
		r.metrics.HandlerFailed(event.Domain())
		r.logger.Error("event handler failed", logging.Fields{
			"event":   event.Method,
			"handler": uint64(entry.id),
			"error":   err,
		})
		return false
	}
	return true
}

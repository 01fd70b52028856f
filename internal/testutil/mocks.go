// Package testutil provides in-memory transport doubles for tests.
package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/FreePeak/golang-cdp-client/internal/domain"
	"github.com/FreePeak/golang-cdp-client/internal/domain/shared"
	"github.com/FreePeak/golang-cdp-client/internal/domain/transport"
)

// MockTransport implements transport.Transport for testing. Payloads passed
// to Deliver are returned by Receive in order; payloads passed to Send are
// recorded and can be awaited with WaitForRequest.
type MockTransport struct {
	SendFunc func(ctx context.Context, payload []byte) error

	mu       sync.Mutex
	Messages [][]byte

	inbound   chan []byte
	sent      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	closes    atomic.Int32
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		inbound: make(chan []byte, 100),
		sent:    make(chan []byte, 100),
		closed:  make(chan struct{}),
	}
}

// Dialer returns a dialer that always yields m.
func (m *MockTransport) Dialer() transport.Dialer {
	return transport.DialerFunc(func(ctx context.Context, url string) (transport.Transport, error) {
		return m, nil
	})
}

// Send implements Transport.Send
func (m *MockTransport) Send(ctx context.Context, payload []byte) error {
	select {
	case <-m.closed:
		return domain.NewNotConnectedError("send", nil)
	default:
	}

	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, payload); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.Messages = append(m.Messages, payload)
	m.mu.Unlock()

	select {
	case m.sent <- payload:
	default:
	}
	return nil
}

// Receive implements Transport.Receive
func (m *MockTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-m.inbound:
		return data, nil
	case <-m.closed:
		return nil, domain.NewNotConnectedError("receive", nil)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements Transport.Close
func (m *MockTransport) Close() error {
	m.closes.Add(1)
	m.closeOnce.Do(func() {
		close(m.closed)
	})
	return nil
}

// State implements Transport.State
func (m *MockTransport) State() domain.ConnectionState {
	select {
	case <-m.closed:
		return domain.StateClosed
	default:
		return domain.StateConnected
	}
}

// CloseCount returns how many times Close was called.
func (m *MockTransport) CloseCount() int {
	return int(m.closes.Load())
}

// Deliver simulates an incoming payload.
func (m *MockTransport) Deliver(data []byte) {
	select {
	case m.inbound <- data:
	case <-m.closed:
	}
}

// DeliverString simulates an incoming payload given as text.
func (m *MockTransport) DeliverString(data string) {
	m.Deliver([]byte(data))
}

// DeliverEvent simulates an incoming event.
func (m *MockTransport) DeliverEvent(method string, params any) {
	raw, _ := json.Marshal(params)
	data, _ := json.Marshal(shared.Event{Method: method, Params: raw})
	m.Deliver(data)
}

// DeliverResult simulates a successful response.
func (m *MockTransport) DeliverResult(id int64, result any) {
	raw, _ := json.Marshal(result)
	data, _ := json.Marshal(shared.Response{ID: id, Result: raw})
	m.Deliver(data)
}

// DeliverError simulates an error response.
func (m *MockTransport) DeliverError(id int64, code int, message string) {
	data, _ := json.Marshal(shared.Response{ID: id, Error: &shared.Error{Code: code, Message: message}})
	m.Deliver(data)
}

// GetMessages returns all sent payloads
func (m *MockTransport) GetMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.Messages))
	copy(out, m.Messages)
	return out
}

// WaitForMessage waits for a payload to be sent
func (m *MockTransport) WaitForMessage(ctx context.Context) ([]byte, error) {
	select {
	case payload := <-m.sent:
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitForRequest waits for a payload to be sent and decodes it.
func (m *MockTransport) WaitForRequest(ctx context.Context) (shared.Request, error) {
	payload, err := m.WaitForMessage(ctx)
	if err != nil {
		return shared.Request{}, err
	}
	var req shared.Request
	err = json.Unmarshal(payload, &req)
	return req, err
}

// Serve answers every request with the value returned by respond until ctx
// is done or the transport closes. A nil reply leaves the request
// unanswered.
func (m *MockTransport) Serve(ctx context.Context, respond func(req shared.Request) any) {
	for {
		req, err := m.WaitForRequest(ctx)
		if err != nil {
			return
		}
		if reply := respond(req); reply != nil {
			m.DeliverResult(req.ID, reply)
		}
		select {
		case <-m.closed:
			return
		default:
		}
	}
}

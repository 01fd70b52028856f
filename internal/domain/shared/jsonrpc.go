package shared

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/FreePeak/golang-cdp-client/internal/domain"
)

// MessageKind discriminates inbound messages.
type MessageKind int

const (
	// KindResponse is a reply to a command; it carries a correlation id.
	KindResponse MessageKind = iota + 1
	// KindEvent is an unsolicited notification; it has no correlation id.
	KindEvent
)

// String returns the kind name.
func (k MessageKind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Request is an outbound command.
type Request struct {
	ID        int64           `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Error is the error object of a failed command.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response is the peer's reply to a command.
type Response struct {
	ID        int64           `json:"id"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *Error          `json:"error,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Event is a notification pushed by the peer.
type Event struct {
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Domain returns the namespace part of the event method, e.g. "Page" for
// "Page.loadEventFired".
func (e Event) Domain() string {
	if i := strings.IndexByte(e.Method, '.'); i > 0 {
		return e.Method[:i]
	}
	return e.Method
}

// Message is an inbound message: exactly one of Response or Event is set.
type Message struct {
	Kind     MessageKind
	Response *Response
	Event    *Event
}

// Method returns the event name for events and "" for responses.
func (m Message) Method() string {
	if m.Kind == KindEvent && m.Event != nil {
		return m.Event.Method
	}
	return ""
}

// EventMessage wraps an event as a Message.
func EventMessage(e Event) Message {
	return Message{Kind: KindEvent, Event: &e}
}

// ResponseMessage wraps a response as a Message.
func ResponseMessage(r Response) Message {
	return Message{Kind: KindResponse, Response: &r}
}

// ParseMessage classifies a raw inbound payload. The presence of an "id"
// member is the sole discriminant between responses and events.
func ParseMessage(data []byte) (Message, error) {
	var raw struct {
		ID        json.RawMessage `json:"id"`
		Method    string          `json:"method"`
		Params    json.RawMessage `json:"params"`
		Result    json.RawMessage `json:"result"`
		Error     *Error          `json:"error"`
		SessionID string          `json:"sessionId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, domain.NewProtocolError(data, errors.Wrap(err, "invalid JSON"))
	}

	if len(raw.ID) == 0 {
		if raw.Method == "" {
			return Message{}, domain.NewProtocolError(data, errors.New("event without method"))
		}
		if raw.Result != nil || raw.Error != nil {
			return Message{}, domain.NewProtocolError(data, errors.New("event carries result or error"))
		}
		return EventMessage(Event{
			Method:    raw.Method,
			Params:    raw.Params,
			SessionID: raw.SessionID,
		}), nil
	}

	var id int64
	if string(raw.ID) == "null" {
		return Message{}, domain.NewProtocolError(data, errors.New("null correlation id"))
	}
	if err := json.Unmarshal(raw.ID, &id); err != nil {
		return Message{}, domain.NewProtocolError(data, errors.Errorf("correlation id %s is not an integer", raw.ID))
	}
	if raw.Result != nil && raw.Error != nil {
		return Message{}, domain.NewProtocolError(data, errors.New("response carries both result and error"))
	}
	return ResponseMessage(Response{
		ID:        id,
		Result:    raw.Result,
		Error:     raw.Error,
		SessionID: raw.SessionID,
	}), nil
}

// EncodeRequest marshals a command. Params may be nil, a json.RawMessage or
// any value encoding/json accepts.
func EncodeRequest(id int64, method string, params any) ([]byte, error) {
	req := Request{ID: id, Method: method}
	switch p := params.(type) {
	case nil:
	case json.RawMessage:
		req.Params = p
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, errors.Wrapf(err, "error marshalling params for %s", method)
		}
		req.Params = data
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling request")
	}
	return data, nil
}

// ToRemoteError converts a response error object to a typed error.
func ToRemoteError(method string, e *Error) *domain.RemoteError {
	if e == nil {
		return nil
	}
	remote := &domain.RemoteError{
		Method:  method,
		Code:    e.Code,
		Message: e.Message,
	}
	if len(e.Data) > 0 {
		var data any
		if err := json.Unmarshal(e.Data, &data); err == nil {
			remote.Data = data
		} else {
			remote.Data = string(e.Data)
		}
	}
	return remote
}

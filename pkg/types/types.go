// Package types exposes the data types shared by the client API.
package types

import (
	"github.com/FreePeak/golang-cdp-client/internal/domain"
	"github.com/FreePeak/golang-cdp-client/internal/domain/shared"
	"github.com/FreePeak/golang-cdp-client/internal/usecases"
)

// Session is a connectable debugging target listed by the discovery endpoint.
type Session = domain.Session

// BrowserVersion is the peer's version report.
type BrowserVersion = domain.BrowserVersion

// Selector picks a session by id, URL substring or title substring.
type Selector = domain.Selector

// ConnectionState is the lifecycle state of a connection.
type ConnectionState = domain.ConnectionState

// Connection states.
const (
	StateDisconnected = domain.StateDisconnected
	StateConnecting   = domain.StateConnecting
	StateConnected    = domain.StateConnected
	StateClosed       = domain.StateClosed
)

// Event is a notification pushed by the peer.
type Event = shared.Event

// Response is the peer's reply to a command.
type Response = shared.Response

// Message is an inbound message as buffered by the queue.
type Message = shared.Message

// MessageKind distinguishes responses from events.
type MessageKind = shared.MessageKind

// Message kinds.
const (
	KindResponse = shared.KindResponse
	KindEvent    = shared.KindEvent
)

// EventHandler receives events on the connection's reader goroutine. It
// must not wait on a command response; start a goroutine for that.
type EventHandler = usecases.EventHandler

// HandlerID identifies an event handler registration.
type HandlerID = usecases.HandlerID

// AllEvents subscribes a handler to every event.
const AllEvents = usecases.AllEvents

// QueueMode selects which inbound messages are buffered.
type QueueMode = usecases.QueueMode

// Queue modes.
const (
	QueueEvents = usecases.QueueEvents
	QueueAll    = usecases.QueueAll
	QueueNone   = usecases.QueueNone
)

// Error types.
type (
	DiscoveryError    = domain.DiscoveryError
	ConnectError      = domain.ConnectError
	NotConnectedError = domain.NotConnectedError
	TimeoutError      = domain.TimeoutError
	RemoteError       = domain.RemoteError
	ProtocolError     = domain.ProtocolError
)

// IsTimeout reports whether err is a command or wait timeout.
func IsTimeout(err error) bool {
	return domain.IsTimeout(err)
}

// IsNotConnected reports whether err was caused by a missing connection.
func IsNotConnected(err error) bool {
	return domain.IsNotConnected(err)
}

// IsRemote reports whether err is an error returned by the peer.
func IsRemote(err error) bool {
	return domain.IsRemote(err)
}

// IsProtocol reports whether err is a malformed inbound payload.
func IsProtocol(err error) bool {
	return domain.IsProtocol(err)
}

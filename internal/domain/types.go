// Package domain defines the core entities and error taxonomy of the devtools client.
package domain

import (
	"strings"
)

// Session describes one connectable debugging target as reported by the
// discovery endpoint.
type Session struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	Description          string `json:"description,omitempty"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl,omitempty"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl,omitempty"`
}

// Connectable reports whether the session exposes a socket locator.
func (s Session) Connectable() bool {
	return s.WebSocketDebuggerURL != ""
}

// BrowserVersion is the payload of the discovery version endpoint.
type BrowserVersion struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	V8Version            string `json:"V8-Version,omitempty"`
	WebKitVersion        string `json:"WebKit-Version,omitempty"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl,omitempty"`
}

// Selector picks one session out of a discovery listing.
type Selector struct {
	// ID must match a session id exactly.
	ID string
	// URL is a case-sensitive substring of the session URL.
	URL string
	// Title is a case-sensitive substring of the session title.
	Title string
}

// IsZero reports whether no selection criteria were given.
func (s Selector) IsZero() bool {
	return s.ID == "" && s.URL == "" && s.Title == ""
}

// Select returns the first session matching the selector. Exact id matches
// win over URL substrings, which win over title substrings. A zero selector
// selects the first session of a non-empty list.
func (s Selector) Select(sessions []Session) (Session, bool) {
	if s.ID != "" {
		for _, session := range sessions {
			if session.ID == s.ID {
				return session, true
			}
		}
	}
	if s.URL != "" {
		for _, session := range sessions {
			if strings.Contains(session.URL, s.URL) {
				return session, true
			}
		}
	}
	if s.Title != "" {
		for _, session := range sessions {
			if strings.Contains(session.Title, s.Title) {
				return session, true
			}
		}
	}
	if s.IsZero() && len(sessions) > 0 {
		return sessions[0], true
	}
	return Session{}, false
}

// ConnectionState is the lifecycle state of a transport connection.
type ConnectionState int32

const (
	// StateDisconnected is the initial state before any connect attempt.
	StateDisconnected ConnectionState = iota
	// StateConnecting means a handshake is in progress.
	StateConnecting
	// StateConnected means commands may be sent.
	StateConnected
	// StateClosed is terminal; a new connection is required to reconnect.
	StateClosed
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

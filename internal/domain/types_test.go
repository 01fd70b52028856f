package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testSessions() []Session {
	return []Session{
		{ID: "A1", Type: "page", Title: "Inbox", URL: "https://mail.example.com/inbox"},
		{ID: "B2", Type: "page", Title: "Example Domain", URL: "https://example.com/"},
		{ID: "C3", Type: "service_worker", Title: "sw.js", URL: "https://mail.example.com/sw.js"},
	}
}

func TestSelectorSelect(t *testing.T) {
	tests := []struct {
		name     string
		selector Selector
		wantID   string
		wantOK   bool
	}{
		{name: "Exact id", selector: Selector{ID: "C3"}, wantID: "C3", wantOK: true},
		{name: "Id wins over url", selector: Selector{ID: "B2", URL: "mail"}, wantID: "B2", wantOK: true},
		{name: "First url substring", selector: Selector{URL: "mail.example"}, wantID: "A1", wantOK: true},
		{name: "Url checked before title", selector: Selector{URL: "sw.js", Title: "Inbox"}, wantID: "C3", wantOK: true},
		{name: "Title substring", selector: Selector{Title: "Domain"}, wantID: "B2", wantOK: true},
		{name: "Substring match is case sensitive", selector: Selector{Title: "domain"}, wantOK: false},
		{name: "Unknown id falls through to patterns", selector: Selector{ID: "Z9", Title: "Inbox"}, wantID: "A1", wantOK: true},
		{name: "Unknown id alone", selector: Selector{ID: "Z9"}, wantOK: false},
		{name: "Zero selector picks first", selector: Selector{}, wantID: "A1", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, ok := tt.selector.Select(testSessions())
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, session.ID)
			}
		})
	}
}

func TestSelectorSelectEmptyList(t *testing.T) {
	_, ok := Selector{}.Select(nil)
	assert.False(t, ok)
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", ConnectionState(42).String())
}

func TestSessionConnectable(t *testing.T) {
	assert.False(t, Session{ID: "x"}.Connectable())
	assert.True(t, Session{ID: "x", WebSocketDebuggerURL: "ws://127.0.0.1:9222/devtools/page/x"}.Connectable())
}

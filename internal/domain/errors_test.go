package domain

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "Discovery error with cause",
			err:  NewDiscoveryError("http://localhost:9222/json", io.EOF),
			want: "discovery http://localhost:9222/json: EOF",
		},
		{
			name: "Connect error without cause",
			err:  NewConnectError("ws://localhost/devtools/page/1", nil),
			want: "connect ws://localhost/devtools/page/1 failed",
		},
		{
			name: "Not connected error",
			err:  NewNotConnectedError("Runtime.evaluate", nil),
			want: "Runtime.evaluate: not connected",
		},
		{
			name: "Timeout error with id",
			err:  &TimeoutError{Op: "Page.navigate", ID: 7, Elapsed: time.Second},
			want: "Page.navigate (id 7): timed out after 1s",
		},
		{
			name: "Remote error",
			err:  &RemoteError{Method: "DOM.getDocument", Code: -32000, Message: "DOM agent is not enabled"},
			want: "DOM.getDocument: remote error -32000: DOM agent is not enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("socket closed")

	if !errors.Is(NewDiscoveryError("x", cause), cause) {
		t.Error("DiscoveryError should unwrap to its cause")
	}
	if !errors.Is(NewConnectError("x", cause), cause) {
		t.Error("ConnectError should unwrap to its cause")
	}
	if !errors.Is(NewNotConnectedError("x", cause), cause) {
		t.Error("NotConnectedError should unwrap to its cause")
	}
	if !errors.Is(NewProtocolError([]byte("{"), cause), cause) {
		t.Error("ProtocolError should unwrap to its cause")
	}
}

func TestErrorCheckers(t *testing.T) {
	timeoutErr := pkgerrors.Wrap(&TimeoutError{Op: "wait"}, "waiting for load")
	notConnectedErr := pkgerrors.Wrap(NewNotConnectedError("send", nil), "sending")
	remoteErr := &RemoteError{Method: "Page.enable", Code: -32601, Message: "not found"}
	protocolErr := NewProtocolError(nil, io.ErrUnexpectedEOF)
	regularErr := fmt.Errorf("regular error")

	if !IsTimeout(timeoutErr) || IsTimeout(remoteErr) || IsTimeout(regularErr) {
		t.Error("IsTimeout misclassified an error")
	}
	if !IsNotConnected(notConnectedErr) || IsNotConnected(timeoutErr) || IsNotConnected(regularErr) {
		t.Error("IsNotConnected misclassified an error")
	}
	if !IsRemote(remoteErr) || IsRemote(protocolErr) || IsRemote(regularErr) {
		t.Error("IsRemote misclassified an error")
	}
	if !IsProtocol(protocolErr) || IsProtocol(remoteErr) || IsProtocol(regularErr) {
		t.Error("IsProtocol misclassified an error")
	}
}

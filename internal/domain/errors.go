package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrConcurrentReceive is returned by a transport when a second reader
// tries to receive while another receive is in progress.
var ErrConcurrentReceive = errors.New("concurrent receive on transport")

// DiscoveryError indicates that the discovery endpoint was unreachable or
// returned something that could not be decoded.
type DiscoveryError struct {
	Endpoint string
	Cause    error
}

// Error returns the error message.
func (e *DiscoveryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("discovery %s: %v", e.Endpoint, e.Cause)
	}
	return fmt.Sprintf("discovery %s failed", e.Endpoint)
}

// Unwrap returns the underlying cause.
func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// NewDiscoveryError creates a new DiscoveryError.
func NewDiscoveryError(endpoint string, cause error) *DiscoveryError {
	return &DiscoveryError{Endpoint: endpoint, Cause: cause}
}

// ConnectError indicates a handshake or socket failure while connecting.
type ConnectError struct {
	Target string
	Cause  error
}

// Error returns the error message.
func (e *ConnectError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connect %s: %v", e.Target, e.Cause)
	}
	return fmt.Sprintf("connect %s failed", e.Target)
}

// Unwrap returns the underlying cause.
func (e *ConnectError) Unwrap() error {
	return e.Cause
}

// NewConnectError creates a new ConnectError.
func NewConnectError(target string, cause error) *ConnectError {
	return &ConnectError{Target: target, Cause: cause}
}

// NotConnectedError indicates an operation that needs a live connection was
// attempted without one, or that the connection went away underneath it.
type NotConnectedError struct {
	Op    string
	Cause error
}

// Error returns the error message.
func (e *NotConnectedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: not connected: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: not connected", e.Op)
}

// Unwrap returns the underlying cause.
func (e *NotConnectedError) Unwrap() error {
	return e.Cause
}

// NewNotConnectedError creates a new NotConnectedError.
func NewNotConnectedError(op string, cause error) *NotConnectedError {
	return &NotConnectedError{Op: op, Cause: cause}
}

// TimeoutError indicates a command or wait exceeded its deadline.
type TimeoutError struct {
	Op      string
	ID      int64
	Elapsed time.Duration
}

// Error returns the error message.
func (e *TimeoutError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s (id %d): timed out after %s", e.Op, e.ID, e.Elapsed)
	}
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.Elapsed)
}

// Timeout marks the error as a timeout for net.Error style checks.
func (e *TimeoutError) Timeout() bool {
	return true
}

// RemoteError carries an error payload returned by the peer for a command.
type RemoteError struct {
	Method  string
	Code    int
	Message string
	Data    any
}

// Error returns the error message.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: remote error %d: %s", e.Method, e.Code, e.Message)
}

// ProtocolError indicates an inbound payload could not be parsed or classified.
type ProtocolError struct {
	Payload []byte
	Cause   error
}

// Error returns the error message.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(payload []byte, cause error) *ProtocolError {
	return &ProtocolError{Payload: payload, Cause: cause}
}

// IsTimeout checks if an error is a TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// IsNotConnected checks if an error is a NotConnectedError.
func IsNotConnected(err error) bool {
	var target *NotConnectedError
	return errors.As(err, &target)
}

// IsRemote checks if an error is a RemoteError.
func IsRemote(err error) bool {
	var target *RemoteError
	return errors.As(err, &target)
}

// IsProtocol checks if an error is a ProtocolError.
func IsProtocol(err error) bool {
	var target *ProtocolError
	return errors.As(err, &target)
}

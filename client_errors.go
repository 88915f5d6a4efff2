package mqtt5

import (
	"errors"
	"time"
)

// EventHandler receives lifecycle events. It is called from the goroutine
// running Run, without client locks held.
type EventHandler func(client *Client, event error)

// Sentinel events for the client lifecycle - check with errors.Is().
var (
	// ErrConnected is emitted when a session is established.
	ErrConnected = errors.New("connected")

	// ErrConnectionLost is emitted when an established connection fails.
	ErrConnectionLost = errors.New("connection lost")

	// ErrReconnecting is emitted before waiting out a reconnect backoff.
	ErrReconnecting = errors.New("reconnecting")
)

// Sentinel errors for the client loop - check with errors.Is().
var (
	// ErrNoBrokers is returned by Run and Brokers when no broker is configured.
	ErrNoBrokers = errors.New("no brokers configured")

	// ErrAlreadyRunning is returned by Run when another Run is active.
	ErrAlreadyRunning = errors.New("client already running")

	// ErrNotConnected is returned by Disconnect when no connection is up.
	ErrNotConnected = errors.New("not connected")

	// errDisconnected stops Run after a DISCONNECT was written.
	errDisconnected = errors.New("disconnected by client")
)

// Sentinel errors for operations - check with errors.Is().
var (
	// ErrOperationAborted completes operations cancelled through their
	// context or Client.Cancel, and every operation outstanding when the
	// client stops.
	ErrOperationAborted = errors.New("operation aborted")

	// ErrQoSNotSupported is returned for a publish above the broker's
	// maximum QoS.
	ErrQoSNotSupported = errors.New("qos not supported by broker")

	// ErrRetainNotAvailable is returned for a retained publish when the
	// broker does not support retain.
	ErrRetainNotAvailable = errors.New("retain not available")

	// ErrSubscriptionNotSupported is returned for a subscription using a
	// wildcard, a subscription identifier or a shared filter that the
	// broker announced it does not support.
	ErrSubscriptionNotSupported = errors.New("subscription feature not supported by broker")
)

// Sentinel errors for authentication and protocol issues - check with errors.Is().
var (
	// ErrAuthFailed is wrapped by a ConnectError for bad credentials or a
	// refused authorization.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrProtocolError is returned when the broker violates the protocol.
	ErrProtocolError = errors.New("protocol error")

	// ErrServerDisconnect is wrapped by a DisconnectError from the broker.
	ErrServerDisconnect = errors.New("server disconnect")

	// ErrKeepAliveTimeout ends a connection that stayed silent too long.
	ErrKeepAliveTimeout = errors.New("keep-alive timeout")
)

// ConnectedEvent contains details about a successful connection.
// Extract with errors.As().
type ConnectedEvent struct {
	err            error
	SessionPresent bool
	ServerProps    *Properties
}

func (e *ConnectedEvent) Error() string { return e.err.Error() }
func (e *ConnectedEvent) Unwrap() error { return e.err }

// NewConnectedEvent creates a new ConnectedEvent.
func NewConnectedEvent(sessionPresent bool, props *Properties) *ConnectedEvent {
	return &ConnectedEvent{
		err:            ErrConnected,
		SessionPresent: sessionPresent,
		ServerProps:    props,
	}
}

// DisconnectError reports a DISCONNECT sent by the broker.
// Extract with errors.As().
type DisconnectError struct {
	err        error
	ReasonCode ReasonCode
	Properties *Properties
	Remote     bool // true if server sent disconnect
}

func (e *DisconnectError) Error() string {
	if e.Remote {
		return "server disconnect: " + e.ReasonCode.String()
	}
	return "disconnected: " + e.ReasonCode.String()
}

func (e *DisconnectError) Unwrap() error { return e.err }

// NewDisconnectError creates a new DisconnectError.
func NewDisconnectError(reason ReasonCode, props *Properties, remote bool) *DisconnectError {
	baseErr := errDisconnected
	if remote {
		baseErr = ErrServerDisconnect
	}
	return &DisconnectError{
		err:        baseErr,
		ReasonCode: reason,
		Properties: props,
		Remote:     remote,
	}
}

// ReconnectEvent is emitted before the client waits to reconnect: when
// every broker failed in a row, or when a connection was lost shortly after
// it was established.
// Extract with errors.As().
type ReconnectEvent struct {
	err     error
	Attempt int
	Delay   time.Duration
}

func (e *ReconnectEvent) Error() string { return e.err.Error() }
func (e *ReconnectEvent) Unwrap() error { return e.err }

// NewReconnectEvent creates a new ReconnectEvent.
func NewReconnectEvent(attempt int, delay time.Duration) *ReconnectEvent {
	return &ReconnectEvent{
		err:     ErrReconnecting,
		Attempt: attempt,
		Delay:   delay,
	}
}

// ConnectionLostError contains details about an unexpected disconnection.
// Extract with errors.As().
type ConnectionLostError struct {
	err   error
	Cause error
}

func (e *ConnectionLostError) Error() string {
	if e.Cause != nil {
		return "connection lost: " + e.Cause.Error()
	}
	return "connection lost"
}

func (e *ConnectionLostError) Unwrap() error { return e.err }

// NewConnectionLostError creates a new ConnectionLostError.
func NewConnectionLostError(cause error) *ConnectionLostError {
	return &ConnectionLostError{
		err:   ErrConnectionLost,
		Cause: cause,
	}
}

// ConnectError contains details about a CONNACK that refused the session.
// Extract with errors.As().
type ConnectError struct {
	err        error
	ReasonCode ReasonCode
	Properties *Properties
}

func (e *ConnectError) Error() string {
	return "connect failed: " + e.ReasonCode.String()
}

func (e *ConnectError) Unwrap() error { return e.err }

// NewConnectError creates a new ConnectError from a reason code.
func NewConnectError(reason ReasonCode, props *Properties) *ConnectError {
	baseErr := ErrProtocolError
	if reason == ReasonBadUserNameOrPassword || reason == ReasonNotAuthorized {
		baseErr = ErrAuthFailed
	}
	return &ConnectError{
		err:        baseErr,
		ReasonCode: reason,
		Properties: props,
	}
}

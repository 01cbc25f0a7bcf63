package rtwire

import (
	"fmt"
	"time"
)

// TransportErrorKind enumerates the transport failure modes shared by
// WebSocket, SSE, and WebTransport.
type TransportErrorKind int

const (
	ConnectionFailed TransportErrorKind = iota
	ConnectionClosed
	SendFailed
	ReceiveFailed
	ProtocolError
	AuthFailed
	RateLimited
	TransportTimeout
	NotSupported
	NotConnected
	InvalidState
)

func (k TransportErrorKind) String() string {
	switch k {
	case ConnectionFailed:
		return "ConnectionFailed"
	case ConnectionClosed:
		return "ConnectionClosed"
	case SendFailed:
		return "SendFailed"
	case ReceiveFailed:
		return "ReceiveFailed"
	case ProtocolError:
		return "ProtocolError"
	case AuthFailed:
		return "AuthFailed"
	case RateLimited:
		return "RateLimited"
	case TransportTimeout:
		return "Timeout"
	case NotSupported:
		return "NotSupported"
	case NotConnected:
		return "NotConnected"
	case InvalidState:
		return "InvalidState"
	default:
		return "Unknown"
	}
}

// TransportError is returned by every Transport operation.
type TransportError struct {
	Kind TransportErrorKind
	Msg  string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("transport: %s: %s", e.Kind, e.Msg)
}

func (e *TransportError) Unwrap() error { return e.Err }

func newTransportErr(kind TransportErrorKind, msg string, err error) *TransportError {
	return &TransportError{Kind: kind, Msg: msg, Err: err}
}

// Standard JSON-RPC-derived error codes. Application error codes are
// non-negative by convention.
const (
	CodeParseError     int32 = -32700
	CodeInvalidRequest int32 = -32600
	CodeMethodNotFound int32 = -32601
	CodeInvalidParams  int32 = -32602
	CodeInternalError  int32 = -32603
)

// RpcError is the error shape carried in an RpcResponse.
type RpcError struct {
	Code    int32
	Message string
	Data    any
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ErrCancelled is returned by a pending RPC request removed via cancel().
var ErrCancelled = &RpcError{Code: CodeInternalError, Message: "cancelled"}

// errConnectionClosedRPC is the error every pending RPC request and active
// subscription is failed with on disconnect.
var errConnectionClosedRPC = &RpcError{Code: CodeInternalError, Message: "connection closed"}

// transportToRPCError converts a transport-layer failure surfaced through
// the RPC layer into the wire-compatible RpcError shape described in the
// specification's propagation policy.
func transportToRPCError(err error) *RpcError {
	return &RpcError{Code: CodeInternalError, Message: fmt.Sprintf("transport: %v", err)}
}

// ErrorKind is the taxonomy surfaced at the package boundary for
// telemetry and caller-visible recovery decisions.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindRPC
	KindCodec
	KindConfiguration
	KindSecurity
	KindRateLimit
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "Transport"
	case KindRPC:
		return "Rpc"
	case KindCodec:
		return "Codec"
	case KindConfiguration:
		return "Configuration"
	case KindSecurity:
		return "Security"
	case KindRateLimit:
		return "RateLimit"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// ErrorContext is attached to every user-visible failure for telemetry.
type ErrorContext struct {
	Timestamp       time.Time
	Operation       string
	Component       string
	ConnectionState *ConnectionState
	AttemptNumber   int
	TraceID         string
	SessionID       string
}

// RecoveryStrategy describes what a caller may try after a failure.
type RecoveryStrategy int

const (
	RetryWithBackoff RecoveryStrategy = iota
	Reconnect
	FallbackTransport
	Degrade
	Manual
	Automatic
)

func (r RecoveryStrategy) String() string {
	switch r {
	case RetryWithBackoff:
		return "retry-with-backoff"
	case Reconnect:
		return "reconnect"
	case FallbackTransport:
		return "fallback-transport"
	case Degrade:
		return "degrade"
	case Manual:
		return "manual"
	case Automatic:
		return "automatic"
	default:
		return "unknown"
	}
}

// CoreError wraps an underlying failure with its taxonomy kind, a recovery
// hint, and telemetry context.
type CoreError struct {
	Kind     ErrorKind
	Strategy RecoveryStrategy
	Context  ErrorContext
	Err      error
}

func (e *CoreError) Error() string {
	return fmt.Sprintf("%s error in %s.%s: %v (try: %s)", e.Kind, e.Context.Component, e.Context.Operation, e.Err, e.Strategy)
}

func (e *CoreError) Unwrap() error { return e.Err }

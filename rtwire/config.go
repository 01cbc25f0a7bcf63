package rtwire

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// TransportConfig configures a connection regardless of which concrete
// transport the adaptive selector ultimately picks.
type TransportConfig struct {
	URL             string
	Subprotocols    []string
	Headers         http.Header
	ConnectTimeout  time.Duration
	SendTimeout     time.Duration
	RecvTimeout     time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	// MaxReconnectAttempts and ReconnectDelay are carried for callers but
	// not read by the Engine: its reconnect loop takes attempt limits and
	// delays from Reconnect.
	MaxReconnectAttempts int
	ReconnectDelay        time.Duration
	MaxMessageSize        int64
	EnableCompression     bool

	// Reconnect is the backoff/retry policy driving the lifecycle engine's
	// Reconnecting state. A nil value defaults to ExponentialBackoff with
	// the package defaults.
	Reconnect ReconnectPolicy

	// Breaker configures the circuit breaker guarding the Engine's
	// reconnection attempts; RPC calls do not consult it. A nil value
	// defaults to DefaultCircuitBreakerConfig.
	Breaker *CircuitBreakerConfig

	// DefaultRPCTimeout bounds an RPC call() when the caller does not
	// supply an explicit timeout via CallWithTimeout.
	DefaultRPCTimeout time.Duration

	// SSEEventFilter restricts an SSE connection to the named event types.
	// An empty slice accepts all event types.
	SSEEventFilter []string

	// SSEHeartbeatEventType is the event type whose receipt counts as a
	// heartbeat for an SSE connection. Defaults to "heartbeat".
	SSEHeartbeatEventType string

	// SendLimiter, when set, paces outbound Engine.Send calls (application
	// messages and pings alike) to protect a rate-limited peer. A nil value
	// disables client-side pacing entirely.
	SendLimiter *rate.Limiter
}

// DefaultTransportConfig returns a TransportConfig populated with the
// specification's documented defaults.
func DefaultTransportConfig(url string) TransportConfig {
	return TransportConfig{
		URL:               url,
		ConnectTimeout:    10 * time.Second,
		SendTimeout:       5 * time.Second,
		RecvTimeout:       5 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		HeartbeatTimeout:  90 * time.Second,
		ReconnectDelay:    time.Second,
		MaxMessageSize:    1 << 20, // 1 MiB
		DefaultRPCTimeout: 30 * time.Second,
	}
}

// TransportCapabilities are resolved once at startup per runtime
// environment and consulted by the adaptive selector.
type TransportCapabilities struct {
	WebSocket     bool
	WebTransport  bool
	SSE           bool
	Binary        bool
	Compression   bool
}

// DetectCapabilities returns the capabilities available to a native Go
// runtime: WebSocket and SSE are always available since both are built on
// net/http, binary frames are always supported, and WebTransport requires
// an HTTP/3-capable URL scheme to even attempt.
func DetectCapabilities() TransportCapabilities {
	return TransportCapabilities{
		WebSocket:    true,
		WebTransport: true,
		SSE:          true,
		Binary:       true,
		Compression:  true,
	}
}

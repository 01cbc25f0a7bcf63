package rtwire

import (
	"context"
	"time"

	"github.com/rtwire/go-client/codec"
)

// classify maps a raw error into the taxonomy and a suggested recovery
// strategy, consulting the concrete error types this package produces
// before falling back to a generic internal classification.
func classify(err error) (ErrorKind, RecoveryStrategy) {
	switch e := err.(type) {
	case *TransportError:
		switch e.Kind {
		case ConnectionFailed, ConnectionClosed, ReceiveFailed, SendFailed:
			return KindTransport, Reconnect
		case TransportTimeout:
			return KindTransport, RetryWithBackoff
		case NotSupported:
			return KindTransport, FallbackTransport
		case AuthFailed:
			return KindSecurity, Manual
		case RateLimited:
			return KindRateLimit, RetryWithBackoff
		default:
			return KindTransport, Reconnect
		}
	case *RpcError:
		switch e.Code {
		case CodeMethodNotFound, CodeInvalidParams, CodeInvalidRequest, CodeParseError:
			return KindRPC, Manual
		default:
			return KindRPC, RetryWithBackoff
		}
	case *codec.Error:
		return KindCodec, Manual
	default:
		return KindInternal, Manual
	}
}

// Recover wraps err with its CoreError taxonomy and telemetry context,
// suitable for surfacing to a caller deciding how to react to a failure.
func Recover(err error, ctx ErrorContext) *CoreError {
	kind, strategy := classify(err)
	if ctx.Timestamp.IsZero() {
		ctx.Timestamp = time.Now()
	}
	return &CoreError{Kind: kind, Strategy: strategy, Context: ctx, Err: err}
}

// Operation is a unit of work the RetryGuard protects.
type Operation func(ctx context.Context) error

// RetryGuard composes a CircuitBreaker and a ReconnectPolicy into a single
// retrying call wrapper for callers that opt into automatic recovery. The
// lifecycle engine does not use it: its reconnect path runs its own loop
// over the same policy and breaker types.
type RetryGuard struct {
	breaker *CircuitBreaker
	policy  ReconnectPolicy
}

// NewRetryGuard constructs a RetryGuard. A nil policy defaults to
// DefaultReconnectPolicy; a nil breaker config defaults to
// DefaultCircuitBreakerConfig.
func NewRetryGuard(policy ReconnectPolicy, breakerCfg *CircuitBreakerConfig) *RetryGuard {
	if policy == nil {
		policy = DefaultReconnectPolicy
	}
	bc := DefaultCircuitBreakerConfig
	if breakerCfg != nil {
		bc = *breakerCfg
	}
	return &RetryGuard{breaker: NewCircuitBreaker(bc), policy: policy}
}

// Run executes op, retrying per the configured policy while the circuit
// breaker remains closed or half-open, until op succeeds, ctx is cancelled,
// or the policy's attempt budget or the breaker is exhausted.
func (g *RetryGuard) Run(ctx context.Context, op Operation) error {
	attempt := 0
	var lastErr error
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		max := g.policy.MaxAttempts()
		if max < 0 {
			if lastErr != nil {
				return lastErr
			}
			return newTransportErr(ConnectionFailed, "reconnection disabled", nil)
		}
		if max > 0 && attempt >= max {
			return lastErr
		}
		if !g.breaker.Allow() {
			if lastErr != nil {
				return lastErr
			}
			return newTransportErr(ConnectionFailed, "circuit breaker open", nil)
		}

		err := op(ctx)
		if err == nil {
			g.breaker.RecordSuccess()
			return nil
		}
		g.breaker.RecordFailure()
		lastErr = err

		delay := g.policy.Delay(attempt)
		attempt++
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}
	}
}

// State exposes the guard's underlying breaker state for observability.
func (g *RetryGuard) State() CircuitBreakerState { return g.breaker.State() }

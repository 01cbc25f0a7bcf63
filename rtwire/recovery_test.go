package rtwire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rtwire/go-client/codec"
)

func TestClassifyMapsKnownErrorTypes(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantKind ErrorKind
	}{
		{"transport closed", &TransportError{Kind: ConnectionClosed, Msg: "closed"}, KindTransport},
		{"transport timeout", &TransportError{Kind: TransportTimeout, Msg: "timeout"}, KindTransport},
		{"auth failure", &TransportError{Kind: AuthFailed, Msg: "denied"}, KindSecurity},
		{"rate limited", &TransportError{Kind: RateLimited, Msg: "slow down"}, KindRateLimit},
		{"rpc method not found", &RpcError{Code: CodeMethodNotFound, Message: "nope"}, KindRPC},
		{"codec error", &codec.Error{Kind: codec.Serialization, Err: errors.New("bad frame")}, KindCodec},
		{"unknown", errors.New("mystery"), KindInternal},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			kind, _ := classify(c.err)
			if kind != c.wantKind {
				t.Fatalf("classify(%v) kind = %v, want %v", c.err, kind, c.wantKind)
			}
		})
	}
}

func TestRecoverStampsTimestampWhenUnset(t *testing.T) {
	ce := Recover(errors.New("boom"), ErrorContext{})
	if ce.Context.Timestamp.IsZero() {
		t.Fatal("Recover should stamp a timestamp when the context omits one")
	}
}

func TestRetryGuardSucceedsAfterTransientFailures(t *testing.T) {
	g := NewRetryGuard(&LinearBackoff{Delay_: time.Millisecond, MaxAttempts_: 5}, nil)
	attempts := 0
	err := g.Run(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryGuardGivesUpAfterMaxAttempts(t *testing.T) {
	g := NewRetryGuard(&LinearBackoff{Delay_: time.Millisecond, MaxAttempts_: 2}, nil)
	attempts := 0
	err := g.Run(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error once attempts are exhausted")
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestRetryGuardNoReconnectFailsImmediately(t *testing.T) {
	g := NewRetryGuard(NoReconnect{}, nil)
	called := false
	err := g.Run(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected NoReconnect to refuse the operation")
	}
	if called {
		t.Fatal("operation should never run under NoReconnect")
	}
}

func TestRetryGuardRespectsContextCancellation(t *testing.T) {
	g := NewRetryGuard(&LinearBackoff{Delay_: time.Hour, MaxAttempts_: 10}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Run(ctx, func(ctx context.Context) error {
		t.Fatal("operation should not run against an already-cancelled context")
		return nil
	})
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}

package rtwire

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rtwire/go-client/internal/rtclog"
)

// LifecycleEventKind classifies an Engine event.
type LifecycleEventKind int

const (
	EventStateChanged LifecycleEventKind = iota
	EventMessage
	EventReconnectAttempt
	EventFatal
)

// LifecycleEvent is published on the Engine's event channel for the
// Reactive Context to consume. The Engine never imports the reactive
// package; it only ever writes to a channel it owns, per the
// specification's direction that the lifecycle layer must not hold a
// back-reference to its subscribers.
type LifecycleEvent struct {
	Kind    LifecycleEventKind
	From    ConnectionState
	To      ConnectionState
	Message Message
	Attempt int
	Err     error
}

// Engine drives the connection state machine: Disconnected -> Connecting ->
// Connected -> Reconnecting -> {Connected, Failed}, emits heartbeats on
// HeartbeatInterval, declares the link dead after HeartbeatTimeout with no
// inbound traffic, and reconnects per the configured ReconnectPolicy guarded
// by a CircuitBreaker.
type Engine struct {
	cfg      TransportConfig
	selector *Selector
	breaker  *CircuitBreaker

	state   atomic.Int32
	events  chan LifecycleEvent
	sink    atomic.Pointer[OutboundSink]
	stream  atomic.Pointer[InboundStream]

	mu        sync.Mutex
	cancelRun context.CancelFunc
	closed    bool

	log *rtclog.Logger
}

// NewEngine constructs an Engine around selector. cfg.Reconnect and
// cfg.Breaker default per DefaultReconnectPolicy / DefaultCircuitBreakerConfig
// when unset.
func NewEngine(cfg TransportConfig, selector *Selector) *Engine {
	if cfg.Reconnect == nil {
		cfg.Reconnect = DefaultReconnectPolicy
	}
	bc := DefaultCircuitBreakerConfig
	if cfg.Breaker != nil {
		bc = *cfg.Breaker
	}
	e := &Engine{
		cfg:      cfg,
		selector: selector,
		breaker:  NewCircuitBreaker(bc),
		events:   make(chan LifecycleEvent, 256),
		log:      rtclog.Default(),
	}
	e.state.Store(int32(Disconnected))
	return e
}

// WithLogger overrides the Engine's logger, returning the Engine for
// chaining.
func (e *Engine) WithLogger(l *rtclog.Logger) *Engine {
	e.log = l
	return e
}

// Events returns the channel on which lifecycle and inbound-message events
// are published. The caller must keep draining it; the Engine degrades to a
// best-effort non-blocking send once the buffer fills so a slow or absent
// consumer cannot stall I/O.
func (e *Engine) Events() <-chan LifecycleEvent { return e.events }

// State returns the current connection state.
func (e *Engine) State() ConnectionState { return ConnectionState(e.state.Load()) }

func (e *Engine) setState(to ConnectionState) {
	from := ConnectionState(e.state.Load())
	if from == to {
		return
	}
	if !CanTransition(from, to) {
		return
	}
	e.state.Store(int32(to))
	e.log.WithFields(rtclogFields{"from": from.String(), "to": to.String()}).Info("connection state changed")
	e.publish(LifecycleEvent{Kind: EventStateChanged, From: from, To: to})
}

type rtclogFields = map[string]any

func (e *Engine) publish(ev LifecycleEvent) {
	select {
	case e.events <- ev:
	default:
		// Buffer is full; drop rather than block the I/O path. Callers
		// needing guaranteed delivery should drain Events promptly.
	}
}

// Connect brings the connection up via the adaptive selector and starts the
// background receive/heartbeat loop. It returns once the initial connection
// attempt (including fallback across transport variants) either succeeds, or
// the configured ReconnectPolicy is exhausted or disallows retrying, per the
// Connecting state's documented failure transition.
func (e *Engine) Connect(ctx context.Context) error {
	if !CanTransition(e.State(), Connecting) {
		return newTransportErr(InvalidState, "connect called from "+e.State().String(), nil)
	}
	e.setState(Connecting)

	t, _, err := e.selector.ConnectWithFallback(ctx)
	if err != nil {
		t, err = e.reconnectAfterFailure(ctx, err)
		if err != nil {
			return err
		}
	}

	stream, sink, err := t.Split()
	if err != nil {
		e.setState(Failed)
		return err
	}
	e.sink.Store(&sink)
	e.stream.Store(&stream)

	e.setState(Connected)

	runCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancelRun = cancel
	e.closed = false
	e.mu.Unlock()

	go e.run(runCtx)
	return nil
}

// run owns the receive loop, heartbeat timer, and reconnect-on-drop logic
// for the lifetime of one Connect call.
func (e *Engine) run(ctx context.Context) {
	var heartbeatTimer *time.Timer
	if e.cfg.HeartbeatTimeout > 0 {
		heartbeatTimer = time.AfterFunc(e.cfg.HeartbeatTimeout, func() {
			e.publish(LifecycleEvent{Kind: EventFatal, Err: newTransportErr(TransportTimeout, "heartbeat timeout", nil)})
			e.handleDrop(ctx, newTransportErr(TransportTimeout, "heartbeat timeout", nil))
		})
		defer heartbeatTimer.Stop()
	}

	var pingTicker *time.Ticker
	if e.cfg.HeartbeatInterval > 0 {
		pingTicker = time.NewTicker(e.cfg.HeartbeatInterval)
		defer pingTicker.Stop()
		go e.pingLoop(ctx, pingTicker)
	}

	for {
		streamPtr := e.stream.Load()
		if streamPtr == nil {
			return
		}
		msg, err := (*streamPtr).Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.handleDrop(ctx, err)
			return
		}
		if heartbeatTimer != nil {
			heartbeatTimer.Reset(e.cfg.HeartbeatTimeout)
		}
		e.publish(LifecycleEvent{Kind: EventMessage, Message: msg})
	}
}

func (e *Engine) pingLoop(ctx context.Context, ticker *time.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sinkPtr := e.sink.Load()
			if sinkPtr == nil {
				continue
			}
			if e.cfg.SendLimiter != nil {
				if err := e.cfg.SendLimiter.Wait(ctx); err != nil {
					continue
				}
			}
			pingCtx := ctx
			if e.cfg.SendTimeout > 0 {
				var cancel context.CancelFunc
				pingCtx, cancel = context.WithTimeout(ctx, e.cfg.SendTimeout)
				_ = (*sinkPtr).Send(pingCtx, NewMessage(Ping, nil))
				cancel()
				continue
			}
			_ = (*sinkPtr).Send(pingCtx, NewMessage(Ping, nil))
		}
	}
}

// errReconnectExhausted and errBreakerOpen are sentinels returned by
// retryConnect to tell its callers which EventFatal to publish without
// retryConnect itself needing to know whether it was invoked from the
// initial Connect or from a post-connect handleDrop.
var (
	errReconnectExhausted = errors.New("reconnect policy exhausted")
	errBreakerOpen        = errors.New("circuit breaker open")
)

// retryConnect repeatedly attempts ConnectWithFallback per cfg.Reconnect's
// delay schedule, guarded by the circuit breaker, until one attempt
// succeeds, the policy's MaxAttempts is reached, the breaker opens, or
// parent is cancelled. The caller must already have transitioned the Engine
// into Reconnecting.
func (e *Engine) retryConnect(parent context.Context) (Transport, error) {
	attempt := 0
	for {
		max := e.cfg.Reconnect.MaxAttempts()
		if max < 0 || (max > 0 && attempt >= max) {
			return nil, errReconnectExhausted
		}
		if !e.breaker.Allow() {
			return nil, errBreakerOpen
		}

		delay := e.cfg.Reconnect.Delay(attempt)
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-parent.Done():
				t.Stop()
				return nil, parent.Err()
			}
		}

		e.log.WithFields(rtclogFields{"attempt": attempt}).Warn("attempting reconnect")
		e.publish(LifecycleEvent{Kind: EventReconnectAttempt, Attempt: attempt})

		connCtx := parent
		cancel := func() {}
		if e.cfg.ConnectTimeout > 0 {
			connCtx, cancel = context.WithTimeout(parent, e.cfg.ConnectTimeout)
		}
		t, _, err := e.selector.ConnectWithFallback(connCtx)
		cancel()
		if err == nil {
			e.breaker.RecordSuccess()
			return t, nil
		}
		e.breaker.RecordFailure()
		attempt++
	}
}

// reconnectAfterFailure drives the Connecting -> Reconnecting transition
// named by the state machine's failure path and retries per cfg.Reconnect.
// It returns the newly connected Transport on success, or cause itself,
// unwrapped, once Reconnecting cannot continue.
func (e *Engine) reconnectAfterFailure(ctx context.Context, cause error) (Transport, error) {
	if !CanTransition(e.State(), Reconnecting) {
		e.setState(Failed)
		return nil, cause
	}
	e.setState(Reconnecting)

	t, err := e.retryConnect(ctx)
	if err != nil {
		e.setState(Failed)
		switch {
		case errors.Is(err, errBreakerOpen):
			e.publish(LifecycleEvent{Kind: EventFatal, Err: newTransportErr(ConnectionFailed, "circuit breaker open", cause)})
		default:
			e.publish(LifecycleEvent{Kind: EventFatal, Err: cause})
		}
		return nil, cause
	}
	return t, nil
}

// handleDrop transitions Connected -> Reconnecting and attempts to
// re-establish the connection per the configured ReconnectPolicy, guarded by
// the circuit breaker.
func (e *Engine) handleDrop(parent context.Context, cause error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	t, err := e.reconnectAfterFailure(parent, cause)
	if err != nil {
		return
	}
	e.onReconnected(t)
}

func (e *Engine) onReconnected(t Transport) {
	stream, sink, err := t.Split()
	if err != nil {
		e.setState(Failed)
		e.publish(LifecycleEvent{Kind: EventFatal, Err: err})
		return
	}
	e.sink.Store(&sink)
	e.stream.Store(&stream)
	e.setState(Connected)

	runCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if e.cancelRun != nil {
		e.cancelRun()
	}
	e.cancelRun = cancel
	e.mu.Unlock()
	go e.run(runCtx)
}

// Send writes msg on the current sink. It returns NotConnected if no sink is
// established. When cfg.SendLimiter is set, Send blocks until a token is
// available or ctx is cancelled, surfaced as a RateLimited TransportError.
func (e *Engine) Send(ctx context.Context, msg Message) error {
	sinkPtr := e.sink.Load()
	if sinkPtr == nil || e.State() != Connected {
		return newTransportErr(NotConnected, "send while not connected", nil)
	}
	if e.cfg.SendLimiter != nil {
		if err := e.cfg.SendLimiter.Wait(ctx); err != nil {
			return newTransportErr(RateLimited, "send rate limit wait", err)
		}
	}
	return (*sinkPtr).Send(ctx, msg)
}

// Disconnect tears down the connection permanently; the Engine will not
// auto-reconnect after this call.
func (e *Engine) Disconnect() error {
	e.mu.Lock()
	e.closed = true
	cancel := e.cancelRun
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	sinkPtr := e.sink.Load()
	e.setState(Disconnected)
	if sinkPtr != nil {
		return (*sinkPtr).Close()
	}
	return nil
}

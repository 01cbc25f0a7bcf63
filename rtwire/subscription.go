package rtwire

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rtwire/go-client/internal/fastjson"
	"github.com/rtwire/go-client/internal/util"
	"github.com/rtwire/go-client/internal/wire"
)

// Subscription is a live handle onto a server-pushed event stream. Next()
// yields data events in order subject to the overflow policy; once the
// stream ends (server "end" event, server "error" event, or the underlying
// connection drops) a terminal value is delivered and Next reports ok=false.
type Subscription struct {
	id       string
	capacity int
	notify   chan struct{}
	dropped  atomic.Uint64
	metrics  *ConnectionMetrics

	mu       sync.Mutex
	queue    []fastjson.RawMessage
	closed   bool
	finalErr *RpcError

	unsubscribe func(ctx context.Context, id string) error
}

// newSubscription constructs a Subscription with a bounded drop-oldest
// buffer of the given capacity. metrics may be nil, in which case overflow
// is still tracked locally via Dropped but not reported to ConnectionMetrics.
func newSubscription(id string, capacity int, metrics *ConnectionMetrics, unsubscribe func(ctx context.Context, id string) error) *Subscription {
	if capacity <= 0 {
		capacity = 1
	}
	return &Subscription{
		id:          id,
		capacity:    capacity,
		notify:      make(chan struct{}, 1),
		metrics:     metrics,
		unsubscribe: unsubscribe,
	}
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// push enqueues a data payload, evicting the oldest buffered item under
// sustained overflow.
func (s *Subscription) push(payload fastjson.RawMessage) {
	s.mu.Lock()
	if len(s.queue) >= s.capacity {
		s.queue = s.queue[1:]
		s.dropped.Add(1)
		if s.metrics != nil {
			s.metrics.SubscriptionDrop.Add(1)
		}
	}
	s.queue = append(s.queue, payload)
	s.mu.Unlock()
	s.wake()
}

// finish marks the subscription terminal with err (nil on clean end).
func (s *Subscription) finish(err *RpcError) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.finalErr = err
	s.mu.Unlock()
	s.wake()
}

// Next blocks until at least one buffered item is available, the
// subscription terminates, or ctx is cancelled. It returns ok=false once the
// subscription has ended and every buffered item has been drained; the
// returned error then reports the terminal error, if any.
func (s *Subscription) Next(ctx context.Context) (fastjson.RawMessage, bool, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			item := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return item, true, nil
		}
		closed := s.closed
		finalErr := s.finalErr
		s.mu.Unlock()
		if closed {
			if finalErr != nil {
				return nil, false, finalErr
			}
			return nil, false, nil
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-s.notify:
		}
	}
}

// Dropped reports how many buffered items were evicted due to overflow.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Cancel best-effort notifies the server to stop pushing events for this
// subscription and marks it terminal locally regardless of whether the
// server acknowledges.
func (s *Subscription) Cancel(ctx context.Context) error {
	s.finish(nil)
	if s.unsubscribe == nil {
		return nil
	}
	return s.unsubscribe(ctx, s.id)
}

// SubscriptionManager tracks live Subscriptions by id and routes inbound
// SubscriptionFrames to the right one.
type SubscriptionManager struct {
	ids            *util.Counter
	defaultBufSize int
	metrics        *ConnectionMetrics
	call           func(ctx context.Context, kind wire.Kind, method string, params any) (fastjson.RawMessage, error)
	unsubscribe    func(ctx context.Context, id string) error

	mu   sync.Mutex
	subs map[string]*Subscription
}

// NewSubscriptionManager constructs a manager. call issues the subscribe
// RPC; unsubscribe issues the best-effort cancellation RPC. metrics, when
// non-nil, receives a SubscriptionDrop increment every time a subscription's
// bounded buffer evicts an item under overflow.
func NewSubscriptionManager(
	call func(ctx context.Context, kind wire.Kind, method string, params any) (fastjson.RawMessage, error),
	unsubscribe func(ctx context.Context, id string) error,
	defaultBufSize int,
	metrics *ConnectionMetrics,
) *SubscriptionManager {
	if defaultBufSize <= 0 {
		defaultBufSize = 256
	}
	return &SubscriptionManager{
		ids:            util.NewCounter("sub"),
		defaultBufSize: defaultBufSize,
		metrics:        metrics,
		call:           call,
		unsubscribe:    unsubscribe,
		subs:           make(map[string]*Subscription),
	}
}

// Subscribe issues method as a Subscription-kind RPC call and returns a
// handle for consuming the pushed events. The server is expected to tag
// every pushed SubscriptionFrame with the id returned in the subscribe
// response's result.
func (m *SubscriptionManager) Subscribe(ctx context.Context, method string, params any) (*Subscription, error) {
	result, err := m.call(ctx, wire.KindSubscription, method, params)
	if err != nil {
		return nil, err
	}
	var ack struct {
		SubscriptionID string `json:"subscriptionId"`
	}
	if err := fastjson.Unmarshal(result, &ack); err != nil || ack.SubscriptionID == "" {
		return nil, &RpcError{Code: CodeInternalError, Message: "subscribe response missing subscriptionId"}
	}

	sub := newSubscription(ack.SubscriptionID, m.defaultBufSize, m.metrics, m.unsubscribe)
	m.mu.Lock()
	m.subs[ack.SubscriptionID] = sub
	m.mu.Unlock()
	return sub, nil
}

// HandleFrame routes an inbound SubscriptionFrame to the matching
// Subscription.
func (m *SubscriptionManager) HandleFrame(f *wire.SubscriptionFrame) {
	m.mu.Lock()
	sub, ok := m.subs[f.ID]
	if ok && f.Event != wire.SubEventData {
		delete(m.subs, f.ID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	switch f.Event {
	case wire.SubEventData:
		sub.push(f.Payload)
	case wire.SubEventEnd:
		sub.finish(nil)
	case wire.SubEventError:
		if f.Error != nil {
			sub.finish(&RpcError{Code: f.Error.Code, Message: f.Error.Message, Data: f.Error.Data})
		} else {
			sub.finish(&RpcError{Code: CodeInternalError, Message: "subscription error"})
		}
	}
}

// CloseAll terminates every live subscription with err, used when the
// underlying connection drops.
func (m *SubscriptionManager) CloseAll(err *RpcError) {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]*Subscription)
	m.mu.Unlock()

	for _, s := range subs {
		s.finish(err)
	}
}

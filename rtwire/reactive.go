package rtwire

import (
	"context"
	"sync"
	"time"

	"github.com/rtwire/go-client/internal/fastjson"
	"github.com/rtwire/go-client/internal/util"
	"github.com/rtwire/go-client/internal/wire"
)

// ackFrame is the envelope used by SendMessageWithAck: the payload is
// wrapped with a client-allocated ack id, and the peer is expected to echo
// an ackFrame with the same id and Ack set once it has processed the
// message.
type ackFrame struct {
	AckID   string              `json:"ackId"`
	Ack     bool                `json:"ack,omitempty"`
	Payload fastjson.RawMessage `json:"payload,omitempty"`
}

// MessageFilter decides whether an inbound message should be delivered to
// the InboundMessages signal. A nil filter accepts everything.
type MessageFilter func(Message) bool

// Context is the Reactive Context: the single owner of every observable
// signal backing UI bindings, and the sole writer to each. Every inbound
// event from the Engine flows through one dispatch goroutine so the
// single-writer invariant holds without additional locking at the signal
// level.
type Context struct {
	engine   *Engine
	rpc      *RPCClient
	registry *Registry
	subs     *SubscriptionManager
	metrics  *ConnectionMetrics
	quality  *QualityTracker

	State                *Signal[ConnectionState]
	InboundMessages      *BufferedSignal[Message]
	SentMessages         *BufferedSignal[Message]
	Presence             *Signal[[]UserPresence]
	Metrics              *Signal[Snapshot]
	ReconnectionAttempts *Signal[int]
	ConnectionQuality    *Signal[float64]
	AcknowledgedIDs      *BufferedSignal[string]

	presenceMap *PresenceMap

	mu        sync.RWMutex
	filter    MessageFilter
	acksMu    sync.Mutex
	pendingAcks map[string]chan struct{}

	ackIDs *util.Counter
	stop   chan struct{}
}

// Default capacities for the bounded reactive sequences, per the
// specification's documented defaults.
const (
	defaultInboundBuffer = 1000
	defaultSentBuffer    = 100
)

// NewContext wires an Engine (already constructed around a Selector) into a
// full reactive Context, including an RPC correlation layer, method
// registry, and subscription manager sharing the Engine's send path.
func NewContext(engine *Engine) *Context {
	c := &Context{
		engine:               engine,
		metrics:              &ConnectionMetrics{},
		quality:              NewQualityTracker(200 * time.Millisecond),
		State:                NewSignal(Disconnected),
		InboundMessages:      NewBufferedSignal(defaultInboundBuffer, Message{}),
		SentMessages:         NewBufferedSignal(defaultSentBuffer, Message{}),
		Presence:             NewSignal[[]UserPresence](nil),
		Metrics:              NewSignal(Snapshot{}),
		ReconnectionAttempts: NewSignal(0),
		ConnectionQuality:    NewSignal(1.0),
		AcknowledgedIDs:      NewBufferedSignal(defaultSentBuffer, ""),
		presenceMap:          NewPresenceMap(),
		pendingAcks:          make(map[string]chan struct{}),
		ackIDs:               util.NewCounter("ack"),
		stop:                 make(chan struct{}),
	}

	send := func(ctx context.Context, data []byte) error {
		return engine.Send(ctx, NewMessage(Binary, data))
	}
	c.rpc = NewRPCClient(send, engine.cfg.DefaultRPCTimeout, 10*time.Second)
	c.registry = NewRegistry(send)
	c.subs = NewSubscriptionManager(c.rpc.Call, func(ctx context.Context, id string) error {
		_, err := c.rpc.Call(ctx, wire.KindMutation, "unsubscribe", map[string]string{"subscriptionId": id})
		return err
	}, 256, c.metrics)

	go c.dispatch()
	return c
}

// RPC exposes the underlying RPCClient for issuing typed calls.
func (c *Context) RPC() *RPCClient { return c.rpc }

// Registry exposes the underlying method Registry for installing inbound
// handlers.
func (c *Context) Registry() *Registry { return c.registry }

// Subscriptions exposes the underlying SubscriptionManager.
func (c *Context) Subscriptions() *SubscriptionManager { return c.subs }

// MetricsCounters returns the live counters backing the Metrics signal.
func (c *Context) MetricsCounters() *ConnectionMetrics { return c.metrics }

func (c *Context) dispatch() {
	for {
		select {
		case <-c.stop:
			return
		case ev, ok := <-c.engine.Events():
			if !ok {
				return
			}
			c.handleEvent(ev)
		}
	}
}

func (c *Context) handleEvent(ev LifecycleEvent) {
	switch ev.Kind {
	case EventStateChanged:
		c.State.Set(ev.To)
	case EventReconnectAttempt:
		c.ReconnectionAttempts.Set(ev.Attempt + 1)
		c.metrics.ReconnectCount.Add(1)
	case EventMessage:
		c.handleMessage(ev.Message)
	case EventFatal:
		c.quality.RecordReceiveError()
		c.ConnectionQuality.Set(c.quality.Score())
		c.rpc.CancelAll(errConnectionClosedRPC)
		c.subs.CloseAll(errConnectionClosedRPC)
	}
	c.Metrics.Set(c.metrics.Snapshot())
}

// handleMessage processes one inbound frame: routing ack envelopes,
// RPC responses, subscription pushes, and inbound RPC requests, then
// surfacing everything else to the InboundMessages signal subject to the
// active filter.
func (c *Context) handleMessage(msg Message) {
	c.metrics.MessagesReceived.Add(1)
	c.metrics.BytesReceived.Add(uint64(len(msg.Data())))
	c.quality.RecordSuccess()
	c.ConnectionQuality.Set(c.quality.Score())

	data := msg.Data()
	if msg.Kind() == Text || msg.Kind() == Binary {
		var ack ackFrame
		if fastjson.Unmarshal(data, &ack) == nil && ack.AckID != "" && ack.Ack {
			c.resolveAck(ack.AckID)
			return
		}

		kind, err := wire.Classify(data)
		if err == nil {
			switch kind {
			case wire.FrameResponse:
				if resp, err := wire.DecodeResponse(data); err == nil {
					c.metrics.RPCCallCount.Add(1)
					if resp.Error != nil {
						c.metrics.RPCErrorCount.Add(1)
					}
					c.rpc.HandleResponse(resp)
					return
				}
			case wire.FrameSubscription:
				if f, err := wire.DecodeSubscription(data); err == nil {
					c.subs.HandleFrame(f)
					return
				}
			case wire.FrameRequest:
				go c.registry.Dispatch(context.Background(), data)
				return
			}
		}
	}

	c.mu.RLock()
	filter := c.filter
	c.mu.RUnlock()
	if filter != nil && !filter(msg) {
		return
	}
	c.InboundMessages.Append(msg)
}

// SetMessageFilter installs f as the predicate gating delivery to
// InboundMessages. Passing nil accepts every message.
func (c *Context) SetMessageFilter(f MessageFilter) {
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

// Connect brings the underlying Engine up.
func (c *Context) Connect(ctx context.Context) error {
	return c.engine.Connect(ctx)
}

// Disconnect tears the underlying Engine down and stops the dispatch loop.
func (c *Context) Disconnect() error {
	err := c.engine.Disconnect()
	c.rpc.Close()
	c.subs.CloseAll(errConnectionClosedRPC)
	close(c.stop)
	return err
}

// SendMessage writes msg via the Engine and publishes it on SentMessages.
func (c *Context) SendMessage(ctx context.Context, msg Message) error {
	if err := c.engine.Send(ctx, msg); err != nil {
		return err
	}
	c.metrics.MessagesSent.Add(1)
	c.metrics.BytesSent.Add(uint64(len(msg.Data())))
	c.SentMessages.Append(msg)
	return nil
}

// SendMessageWithAck wraps payload in a per-call ack envelope and blocks
// until the peer echoes an ack with a matching, freshly generated id, ctx is
// cancelled, or timeout elapses. Each call allocates its own id, so
// concurrent calls never share or clobber one another's ack wait.
func (c *Context) SendMessageWithAck(ctx context.Context, payload []byte, timeout time.Duration) error {
	id := c.ackIDs.Next()
	wait := make(chan struct{})

	c.acksMu.Lock()
	c.pendingAcks[id] = wait
	c.acksMu.Unlock()
	defer func() {
		c.acksMu.Lock()
		delete(c.pendingAcks, id)
		c.acksMu.Unlock()
	}()

	frame := ackFrame{AckID: id, Payload: payload}
	data, err := fastjson.Marshal(frame)
	if err != nil {
		return err
	}

	if err := c.SendMessage(ctx, NewMessage(Binary, data)); err != nil {
		return err
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case <-wait:
		c.AcknowledgedIDs.Append(id)
		return nil
	case <-waitCtx.Done():
		return waitCtx.Err()
	}
}

func (c *Context) resolveAck(id string) {
	c.acksMu.Lock()
	ch, ok := c.pendingAcks[id]
	c.acksMu.Unlock()
	if !ok {
		return
	}
	close(ch)
}

// UpdatePresence merges p into the tracked presence table and republishes
// the full snapshot on the Presence signal.
func (c *Context) UpdatePresence(p UserPresence) {
	c.presenceMap.Update(p)
	c.Presence.Set(c.presenceMap.Snapshot())
}

// UpdateConnectionQuality folds a heartbeat round-trip sample into the
// quality tracker and republishes the score.
func (c *Context) UpdateConnectionQuality(rtt time.Duration) {
	c.quality.RecordHeartbeat(rtt)
	c.ConnectionQuality.Set(c.quality.Score())
}

package rtwire

import (
	"context"
	"sync"
	"time"

	"github.com/rtwire/go-client/internal/fastjson"
	"github.com/rtwire/go-client/internal/util"
	"github.com/rtwire/go-client/internal/wire"
)

// pendingRequest tracks one outstanding RPC call awaiting its response
// frame.
type pendingRequest struct {
	replyCh  chan *wire.ResponseFrame
	deadline time.Time
	cancelCh chan struct{}
}

// RPCClient correlates outbound RequestFrames with inbound ResponseFrames
// by id, enforces per-call timeouts, and sweeps expired entries on a
// periodic timer so a peer that never replies cannot leak pending slots.
type RPCClient struct {
	ids     *util.Counter
	send    func(ctx context.Context, data []byte) error
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingRequest
	closed  bool

	sweepStop chan struct{}
}

// NewRPCClient constructs an RPCClient. send is called to hand an encoded
// RequestFrame to the active transport sink; defaultTimeout bounds Call when
// the caller does not use CallWithTimeout. sweepInterval of 0 defaults to
// 10s, matching the specification's periodic expiry sweep.
func NewRPCClient(send func(ctx context.Context, data []byte) error, defaultTimeout, sweepInterval time.Duration) *RPCClient {
	if sweepInterval <= 0 {
		sweepInterval = 10 * time.Second
	}
	c := &RPCClient{
		ids:       util.NewCounter("rpc"),
		send:      send,
		timeout:   defaultTimeout,
		pending:   make(map[string]*pendingRequest),
		sweepStop: make(chan struct{}),
	}
	go c.sweepLoop(sweepInterval)
	return c
}

func (c *RPCClient) sweepLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.sweepStop:
			return
		case <-t.C:
			c.sweepExpired()
		}
	}
}

func (c *RPCClient) sweepExpired() {
	now := time.Now()
	var expired []*pendingRequest
	c.mu.Lock()
	for id, p := range c.pending {
		if !p.deadline.IsZero() && now.After(p.deadline) {
			expired = append(expired, p)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()

	for _, p := range expired {
		select {
		case p.replyCh <- nil:
		default:
		}
	}
}

// register allocates a correlation id and a pending slot, returning both the
// id and the pendingRequest whose channels the caller waits on.
func (c *RPCClient) register(deadline time.Time) (string, *pendingRequest) {
	id := c.ids.Next()
	p := &pendingRequest{replyCh: make(chan *wire.ResponseFrame, 1), deadline: deadline, cancelCh: make(chan struct{})}
	c.mu.Lock()
	c.pending[id] = p
	c.mu.Unlock()
	return id, p
}

// Call issues method with params and blocks for the default timeout (zero
// means no timeout) until the correlated response arrives.
func (c *RPCClient) Call(ctx context.Context, kind wire.Kind, method string, params any) (fastjson.RawMessage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.CallWithTimeout(ctx, kind, method, params, 0)
}

// CallWithTimeout issues method with params, overriding the client default
// timeout with timeout when non-zero.
func (c *RPCClient) CallWithTimeout(ctx context.Context, kind wire.Kind, method string, params any, timeout time.Duration) (fastjson.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errConnectionClosedRPC
	}
	c.mu.Unlock()

	if timeout <= 0 {
		timeout = c.timeout
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	id, p := c.register(deadline)

	paramsJSON, err := fastjson.Marshal(params)
	if err != nil {
		c.cancelOne(id)
		return nil, &RpcError{Code: CodeParseError, Message: "encode params: " + err.Error()}
	}

	frame := wire.RequestFrame{ID: id, Method: method, Params: paramsJSON, Kind: kind}
	data, err := wire.Encode(frame)
	if err != nil {
		c.cancelOne(id)
		return nil, &RpcError{Code: CodeParseError, Message: "encode request: " + err.Error()}
	}

	if err := c.send(ctx, data); err != nil {
		c.cancelOne(id)
		return nil, transportToRPCError(err)
	}

	select {
	case <-ctx.Done():
		c.cancelOne(id)
		if ctx.Err() == context.Canceled {
			return nil, ErrCancelled
		}
		return nil, &RpcError{Code: CodeInternalError, Message: "rpc call timed out"}
	case <-p.cancelCh:
		return nil, ErrCancelled
	case resp := <-p.replyCh:
		if resp == nil {
			return nil, &RpcError{Code: CodeInternalError, Message: "rpc call timed out"}
		}
		if resp.Error != nil {
			return nil, &RpcError{Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
		}
		return resp.Result, nil
	}
}

// HandleResponse delivers an inbound ResponseFrame to its waiting caller, if
// any. It is a no-op for unknown/already-resolved ids (late or duplicate
// replies).
func (c *RPCClient) HandleResponse(resp *wire.ResponseFrame) {
	c.mu.Lock()
	p, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case p.replyCh <- resp:
	default:
	}
}

func (c *RPCClient) cancelOne(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Cancel removes the pending request for id, if any, and wakes its Call
// goroutine with ErrCancelled. It reports whether id was still pending.
func (c *RPCClient) Cancel(id string) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	close(p.cancelCh)
	return true
}

// CancelAll fails every pending request with err, used when the underlying
// connection drops.
func (c *RPCClient) CancelAll(err *RpcError) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	resp := &wire.ResponseFrame{Error: &wire.ErrorFrame{Code: err.Code, Message: err.Message}}
	for _, p := range pending {
		r := *resp
		select {
		case p.replyCh <- &r:
		default:
		}
	}
}

// Close stops the sweep loop and fails every pending call.
func (c *RPCClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.sweepStop)
	c.CancelAll(errConnectionClosedRPC)
}

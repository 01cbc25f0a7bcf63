package rtwire

import (
	"context"
	"fmt"
	"sync"

	"github.com/rtwire/go-client/internal/fastjson"
	"github.com/rtwire/go-client/internal/wire"
)

// Handler processes one inbound RequestFrame's params and returns a result
// to be marshaled back onto the wire, or an error to surface as an
// ErrorFrame.
type Handler func(ctx context.Context, params fastjson.RawMessage) (any, error)

// Registry maps method names to Handlers and dispatches inbound
// RequestFrames, replying on send. It is safe for concurrent
// registration and dispatch.
type Registry struct {
	send func(ctx context.Context, data []byte) error

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry constructs a Registry that replies through send.
func NewRegistry(send func(ctx context.Context, data []byte) error) *Registry {
	return &Registry{send: send, handlers: make(map[string]Handler)}
}

// Register installs h for method, replacing any existing handler.
func (r *Registry) Register(method string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

// Unregister removes the handler for method, if any.
func (r *Registry) Unregister(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, method)
}

// Dispatch decodes data as a RequestFrame, invokes the registered handler
// for its method, and sends back a ResponseFrame. A method with no
// registered handler replies with CodeMethodNotFound rather than being
// silently dropped.
func (r *Registry) Dispatch(ctx context.Context, data []byte) error {
	req, err := wire.DecodeRequest(data)
	if err != nil {
		return err
	}

	r.mu.RLock()
	h, ok := r.handlers[req.Method]
	r.mu.RUnlock()

	var resp wire.ResponseFrame
	resp.ID = req.ID

	if !ok {
		resp.Error = &wire.ErrorFrame{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	} else {
		result, err := h(ctx, req.Params)
		if err != nil {
			if rpcErr, ok := err.(*RpcError); ok {
				resp.Error = &wire.ErrorFrame{Code: rpcErr.Code, Message: rpcErr.Message}
			} else {
				resp.Error = &wire.ErrorFrame{Code: CodeInternalError, Message: err.Error()}
			}
		} else {
			resultJSON, merr := fastjson.Marshal(result)
			if merr != nil {
				resp.Error = &wire.ErrorFrame{Code: CodeInternalError, Message: "encode result: " + merr.Error()}
			} else {
				resp.Result = resultJSON
			}
		}
	}

	out, err := wire.Encode(resp)
	if err != nil {
		return err
	}
	return r.send(ctx, out)
}

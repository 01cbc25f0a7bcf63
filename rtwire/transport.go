package rtwire

import (
	"context"
	"io"
	"sync"
)

// InboundStream is the read half produced by Transport.Split. It yields a
// lazy sequence of frames ending in io.EOF on peer close, or a
// *TransportError on fatal failure.
type InboundStream interface {
	// Recv blocks until a frame is available, ctx is cancelled, or the
	// stream ends. It returns io.EOF when the peer closed cleanly.
	Recv(ctx context.Context) (Message, error)
}

// OutboundSink is the write half produced by Transport.Split. Concurrent
// sends from different goroutines are serialized by the sink; backpressure
// is reported as a TransportError rather than blocking indefinitely.
type OutboundSink interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Transport is the uniform duplex-stream contract implemented identically
// by the WebSocket, SSE, and WebTransport variants. Rather than runtime
// polymorphism through inheritance, each variant is a concrete type
// satisfying this interface, and the adaptive selector hands back the
// chosen concrete value as a Transport.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Send(ctx context.Context, msg Message) error
	// Split moves the transport into an InboundStream/OutboundSink pair.
	// After Split returns successfully, direct Send/Recv on the Transport
	// value are no longer valid.
	Split() (InboundStream, OutboundSink, error)
	State() ConnectionState
	Capabilities() TransportCapabilities
	// Name identifies the concrete transport variant ("WebSocket", "SSE",
	// "WebTransport") for observability and the adaptive selector.
	Name() string
}

// chanInboundStream adapts a channel of (Message, error) pairs produced by
// a transport's background reader task to the InboundStream interface.
type chanInboundStream struct {
	frames <-chan frameOrErr
}

type frameOrErr struct {
	msg Message
	err error
}

func (s *chanInboundStream) Recv(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case fe, ok := <-s.frames:
		if !ok {
			return Message{}, io.EOF
		}
		return fe.msg, fe.err
	}
}

// guardedSink serializes concurrent sends onto an underlying write
// function, matching the specification's requirement that the Lifecycle
// Engine hold the sink behind a small guard.
type guardedSink struct {
	mu     sync.Mutex
	write  func(ctx context.Context, msg Message) error
	closeF func() error
	closed bool
}

func (s *guardedSink) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newTransportErr(NotConnected, "sink closed", nil)
	}
	return s.write(ctx, msg)
}

func (s *guardedSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closeF != nil {
		return s.closeF()
	}
	return nil
}

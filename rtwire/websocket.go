package rtwire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketTransport implements Transport over RFC 6455 WebSocket framing.
// It is full duplex: Text/Binary frames map directly, Ping/Pong are
// forwarded, and a Close frame triggers graceful teardown.
type WebSocketTransport struct {
	cfg    TransportConfig
	dialer *websocket.Dialer

	mu    sync.Mutex
	conn  *websocket.Conn
	state atomic.Int32

	frames chan frameOrErr
	done   chan struct{}
	split  bool
}

// NewWebSocketTransport constructs a WebSocket transport from cfg. Dial
// does not happen until Connect is called.
func NewWebSocketTransport(cfg TransportConfig) *WebSocketTransport {
	t := &WebSocketTransport{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout},
		frames: make(chan frameOrErr, 64),
	}
	t.state.Store(int32(Disconnected))
	return t
}

func (t *WebSocketTransport) Name() string { return "WebSocket" }

func (t *WebSocketTransport) State() ConnectionState {
	return ConnectionState(t.state.Load())
}

func (t *WebSocketTransport) Capabilities() TransportCapabilities {
	return TransportCapabilities{WebSocket: true, Binary: true, Compression: t.cfg.EnableCompression}
}

func (t *WebSocketTransport) setState(s ConnectionState) { t.state.Store(int32(s)) }

// Connect dials the configured URL, applying subprotocols and headers from
// the config at handshake, then spawns the background reader task.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	t.setState(Connecting)

	dialer := *t.dialer
	if len(t.cfg.Subprotocols) > 0 {
		dialer.Subprotocols = t.cfg.Subprotocols
	}
	if t.cfg.EnableCompression {
		dialer.EnableCompression = true
	}

	header := t.cfg.Headers
	if header == nil {
		header = http.Header{}
	}

	conn, resp, err := dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		t.setState(Disconnected)
		if resp != nil {
			return newTransportErr(ConnectionFailed, fmt.Sprintf("handshake failed (status %d)", resp.StatusCode), err)
		}
		return newTransportErr(ConnectionFailed, "dial failed", err)
	}

	if t.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(t.cfg.MaxMessageSize)
	}

	t.mu.Lock()
	t.conn = conn
	t.done = make(chan struct{})
	t.mu.Unlock()

	t.setState(Connected)
	go t.readLoop(t.done)
	return nil
}

// readLoop forwards decoded frames to the inbound channel and flips state
// to Disconnected on error or peer close. It is the transport's single
// background reader task.
func (t *WebSocketTransport) readLoop(done chan struct{}) {
	defer close(t.frames)
	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return
		}

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.setState(Disconnected)
			kind := ReceiveFailed
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, io.EOF) {
				select {
				case t.frames <- frameOrErr{err: io.EOF}:
				case <-done:
				}
				return
			}
			select {
			case t.frames <- frameOrErr{err: newTransportErr(kind, "websocket read error", err)}:
			case <-done:
			}
			return
		}

		var kind Kind
		switch messageType {
		case websocket.TextMessage:
			kind = Text
		case websocket.BinaryMessage:
			kind = Binary
		case websocket.PingMessage:
			kind = Ping
		case websocket.PongMessage:
			kind = Pong
		default:
			continue
		}

		select {
		case t.frames <- frameOrErr{msg: NewMessage(kind, data)}:
		case <-done:
			return
		}
	}
}

// Send writes a Message as a WebSocket frame. Only valid while state is
// Connected.
func (t *WebSocketTransport) Send(ctx context.Context, msg Message) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil || t.State() != Connected {
		return newTransportErr(NotConnected, "send while not connected", nil)
	}

	wsType := websocket.TextMessage
	switch msg.Kind() {
	case Binary:
		wsType = websocket.BinaryMessage
	case Ping:
		wsType = websocket.PingMessage
	case Pong:
		wsType = websocket.PongMessage
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := conn.WriteMessage(wsType, msg.Data()); err != nil {
		return newTransportErr(SendFailed, "websocket write error", err)
	}
	return nil
}

// Disconnect is idempotent: disconnecting an already-disconnected
// transport does not error.
func (t *WebSocketTransport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	done := t.done
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	if done != nil {
		close(done)
	}
	t.setState(Disconnected)
	return conn.Close()
}

// Split moves the transport into an InboundStream/OutboundSink pair.
func (t *WebSocketTransport) Split() (InboundStream, OutboundSink, error) {
	if t.split {
		return nil, nil, newTransportErr(InvalidState, "already split", nil)
	}
	t.split = true
	stream := &chanInboundStream{frames: t.frames}
	sink := &guardedSink{write: t.Send, closeF: t.Disconnect}
	return stream, sink, nil
}

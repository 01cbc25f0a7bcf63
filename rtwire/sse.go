package rtwire

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// sseEvent is one parsed Server-Sent Events frame.
type sseEvent struct {
	event string
	data  string
	id    string
	retry string
}

// parseSSE incrementally parses the line-based text/event-stream format
// from r, emitting one sseEvent per blank-line-terminated block. Lines
// beginning with ':' are comments and are ignored, per the SSE spec.
func parseSSE(r *bufio.Scanner, emit func(sseEvent)) error {
	var dataLines []string
	var cur sseEvent

	flush := func() {
		if len(dataLines) == 0 && cur.event == "" && cur.id == "" && cur.retry == "" {
			return
		}
		cur.data = strings.Join(dataLines, "\n")
		if cur.event == "" {
			cur.event = "message"
		}
		emit(cur)
		dataLines = nil
		cur = sseEvent{}
	}

	for r.Scan() {
		line := r.Text()
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			cur.event = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			cur.id = value
		case "retry":
			cur.retry = value
		}
	}
	flush()
	return r.Err()
}

// SSETransport implements Transport over a unidirectional
// text/event-stream connection. Send always returns NotSupported.
type SSETransport struct {
	cfg    TransportConfig
	client *http.Client

	mu         sync.Mutex
	state      atomic.Int32
	lastEventID string
	cancel     context.CancelFunc
	body       io.Closer

	frames chan frameOrErr
	done   chan struct{}
	split  bool
}

// NewSSETransport constructs an SSE transport from cfg.
func NewSSETransport(cfg TransportConfig) *SSETransport {
	t := &SSETransport{
		cfg:    cfg,
		client: &http.Client{Timeout: 0}, // streaming: no overall timeout
		frames: make(chan frameOrErr, 64),
	}
	t.state.Store(int32(Disconnected))
	return t
}

func (t *SSETransport) Name() string { return "SSE" }

func (t *SSETransport) State() ConnectionState { return ConnectionState(t.state.Load()) }

func (t *SSETransport) Capabilities() TransportCapabilities {
	return TransportCapabilities{SSE: true}
}

func (t *SSETransport) setState(s ConnectionState) { t.state.Store(int32(s)) }

func (t *SSETransport) accepts(eventType string) bool {
	if len(t.cfg.SSEEventFilter) == 0 {
		return true
	}
	for _, e := range t.cfg.SSEEventFilter {
		if e == eventType {
			return true
		}
	}
	return false
}

// Connect issues the GET request and starts the background frame reader.
func (t *SSETransport) Connect(ctx context.Context) error {
	t.setState(Connecting)

	reqCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, t.cfg.URL, nil)
	if err != nil {
		cancel()
		t.setState(Disconnected)
		return newTransportErr(ConnectionFailed, "build request", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, vs := range t.cfg.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if t.lastEventID != "" {
		req.Header.Set("Last-Event-ID", t.lastEventID)
	}

	// The request context must outlive Connect (it governs the streaming
	// body), but a cancellation of the caller's connect-scoped ctx before
	// the handshake completes must still abort the attempt.
	connecting := make(chan struct{})
	defer close(connecting)
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-connecting:
		}
	}()

	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		t.setState(Disconnected)
		return newTransportErr(ConnectionFailed, "GET failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		t.setState(Disconnected)
		return newTransportErr(ConnectionFailed, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	t.mu.Lock()
	t.cancel = cancel
	t.body = resp.Body
	t.done = make(chan struct{})
	t.mu.Unlock()

	t.setState(Connected)
	go t.readLoop(resp.Body, t.done)
	return nil
}

func (t *SSETransport) readLoop(body io.ReadCloser, done chan struct{}) {
	defer close(t.frames)
	defer body.Close()

	var heartbeatTimer *time.Timer
	heartbeatType := t.cfg.SSEHeartbeatEventType
	if heartbeatType == "" {
		heartbeatType = "heartbeat"
	}
	if t.cfg.HeartbeatTimeout > 0 {
		heartbeatTimer = time.AfterFunc(t.cfg.HeartbeatTimeout, func() {
			t.setState(Disconnected)
			select {
			case t.frames <- frameOrErr{err: newTransportErr(ReceiveFailed, "heartbeat timeout", nil)}:
			case <-done:
			}
			body.Close()
		})
		defer heartbeatTimer.Stop()
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize(t.cfg.MaxMessageSize))

	err := parseSSE(scanner, func(ev sseEvent) {
		if heartbeatTimer != nil {
			heartbeatTimer.Reset(t.cfg.HeartbeatTimeout)
		}
		if ev.id != "" {
			t.mu.Lock()
			t.lastEventID = ev.id
			t.mu.Unlock()
		}
		if ev.event == heartbeatType {
			return
		}
		if !t.accepts(ev.event) {
			return
		}
		select {
		case t.frames <- frameOrErr{msg: NewMessage(Text, []byte(ev.data))}:
		case <-done:
		}
	})

	t.setState(Disconnected)
	if err != nil {
		select {
		case t.frames <- frameOrErr{err: newTransportErr(ReceiveFailed, "sse stream error", err)}:
		case <-done:
		}
		return
	}
	select {
	case t.frames <- frameOrErr{err: io.EOF}:
	case <-done:
	}
}

func maxSSELineSize(maxMessageSize int64) int {
	if maxMessageSize <= 0 {
		return 1 << 20
	}
	if maxMessageSize > 1<<24 {
		return 1 << 24
	}
	return int(maxMessageSize)
}

// Send always fails: SSE is unidirectional server-to-client.
func (t *SSETransport) Send(ctx context.Context, msg Message) error {
	return newTransportErr(NotSupported, "SSE transport does not support sending", nil)
}

func (t *SSETransport) Disconnect() error {
	t.mu.Lock()
	cancel := t.cancel
	body := t.body
	done := t.done
	t.cancel = nil
	t.body = nil
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	if done != nil {
		close(done)
	}
	cancel()
	t.setState(Disconnected)
	if body != nil {
		return body.Close()
	}
	return nil
}

func (t *SSETransport) Split() (InboundStream, OutboundSink, error) {
	if t.split {
		return nil, nil, newTransportErr(InvalidState, "already split", nil)
	}
	t.split = true
	stream := &chanInboundStream{frames: t.frames}
	sink := &guardedSink{
		write: t.Send,
		closeF: t.Disconnect,
	}
	return stream, sink, nil
}

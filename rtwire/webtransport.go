package rtwire

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"
)

// Reliability selects delivery guarantees for a WebTransport stream.
type Reliability int

const (
	Reliable Reliability = iota
	BestEffort
)

// Ordering selects delivery ordering for a WebTransport stream.
type Ordering int

const (
	Ordered Ordering = iota
	Unordered
)

// Congestion selects the congestion-control posture for a stream's default
// message path.
type Congestion int

const (
	Adaptive Congestion = iota
	Conservative
	Aggressive
)

// StreamConfig configures a single WebTransport stream.
type StreamConfig struct {
	Reliability Reliability
	Ordering    Ordering
	Congestion  Congestion
}

// DefaultStreamConfig is reliable, ordered, adaptive.
var DefaultStreamConfig = StreamConfig{Reliability: Reliable, Ordering: Ordered, Congestion: Adaptive}

// datagramMTU is the conservative path MTU budget under which the default
// message path prefers an unreliable datagram over a reliable stream write.
const datagramMTU = 1200

// WebTransportTransport implements Transport over HTTP/3 using a session's
// default bidirectional stream for the duplex Message path, framed with a
// 4-byte big-endian length prefix since QUIC streams are byte streams
// without inherent message boundaries. Datagrams are used for small
// messages only when the stream config is BestEffort and its congestion
// policy is not Conservative; under DefaultStreamConfig (Reliable) every
// message goes over the stream.
type WebTransportTransport struct {
	cfg        TransportConfig
	streamCfg  StreamConfig
	tlsConfig  *tls.Config

	mu      sync.Mutex
	session *webtransport.Session
	ctrl    *webtransport.Stream
	state   atomic.Int32

	frames chan frameOrErr
	done   chan struct{}
	split  bool
}

// NewWebTransportTransport constructs a WebTransport transport. A nil
// tlsConfig uses the system default (min TLS 1.3 per the HTTP/3
// requirement); pass a non-nil config to relax verification for local
// development only.
func NewWebTransportTransport(cfg TransportConfig, streamCfg StreamConfig, tlsConfig *tls.Config) *WebTransportTransport {
	t := &WebTransportTransport{
		cfg:       cfg,
		streamCfg: streamCfg,
		tlsConfig: tlsConfig,
		frames:    make(chan frameOrErr, 64),
	}
	t.state.Store(int32(Disconnected))
	return t
}

func (t *WebTransportTransport) Name() string { return "WebTransport" }

func (t *WebTransportTransport) State() ConnectionState { return ConnectionState(t.state.Load()) }

func (t *WebTransportTransport) Capabilities() TransportCapabilities {
	return TransportCapabilities{WebTransport: true, Binary: true}
}

func (t *WebTransportTransport) setState(s ConnectionState) { t.state.Store(int32(s)) }

// Connect dials the HTTP/3 endpoint and opens the default bidirectional
// control stream used for the duplex Message path.
func (t *WebTransportTransport) Connect(ctx context.Context) error {
	t.setState(Connecting)

	dialCtx := ctx
	if t.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, t.cfg.ConnectTimeout)
		defer cancel()
	}

	dialer := webtransport.Dialer{
		TLSClientConfig: t.tlsConfig,
		QUICConfig: &quic.Config{
			EnableDatagrams: true,
		},
	}

	header := t.cfg.Headers
	if header == nil {
		header = http.Header{}
	}
	header.Set("Sec-WebTransport-Version", "1")

	_, sess, err := dialer.Dial(dialCtx, t.cfg.URL, header)
	if err != nil {
		t.setState(Disconnected)
		return newTransportErr(ConnectionFailed, "webtransport dial failed", err)
	}

	stream, err := sess.OpenStreamSync(ctx)
	if err != nil {
		sess.CloseWithError(0, "control stream open failed")
		t.setState(Disconnected)
		return newTransportErr(ConnectionFailed, "open control stream", err)
	}

	t.mu.Lock()
	t.session = sess
	t.ctrl = stream
	t.done = make(chan struct{})
	t.mu.Unlock()

	t.setState(Connected)
	go t.readStream(stream, t.done)
	go t.readDatagrams(sess, t.done)
	return nil
}

func (t *WebTransportTransport) readStream(stream *webtransport.Stream, done chan struct{}) {
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(stream, lenBuf[:]); err != nil {
			t.setState(Disconnected)
			t.emitTerminal(err, done)
			return
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if t.cfg.MaxMessageSize > 0 && int64(n) > t.cfg.MaxMessageSize {
			t.setState(Disconnected)
			select {
			case t.frames <- frameOrErr{err: newTransportErr(ProtocolError, "frame exceeds max message size", nil)}:
			case <-done:
			}
			return
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(stream, buf); err != nil {
			t.setState(Disconnected)
			t.emitTerminal(err, done)
			return
		}
		select {
		case t.frames <- frameOrErr{msg: NewMessage(Binary, buf)}:
		case <-done:
			return
		}
	}
}

func (t *WebTransportTransport) emitTerminal(err error, done chan struct{}) {
	if err == io.EOF {
		select {
		case t.frames <- frameOrErr{err: io.EOF}:
		case <-done:
		}
		return
	}
	select {
	case t.frames <- frameOrErr{err: newTransportErr(ReceiveFailed, "webtransport stream read error", err)}:
	case <-done:
	}
}

func (t *WebTransportTransport) readDatagrams(sess *webtransport.Session, done chan struct{}) {
	for {
		data, err := sess.ReceiveDatagram(context.Background())
		if err != nil {
			return
		}
		select {
		case t.frames <- frameOrErr{msg: NewMessage(Binary, data)}:
		case <-done:
			return
		}
	}
}

// Send writes msg via a datagram when the stream config is BestEffort, its
// congestion policy is not Conservative, and msg is under datagramMTU bytes;
// otherwise it writes via the default reliable control stream.
func (t *WebTransportTransport) Send(ctx context.Context, msg Message) error {
	t.mu.Lock()
	sess, stream := t.session, t.ctrl
	t.mu.Unlock()
	if sess == nil || t.State() != Connected {
		return newTransportErr(NotConnected, "send while not connected", nil)
	}

	data := msg.Data()
	if t.streamCfg.Reliability == BestEffort && t.streamCfg.Congestion != Conservative && len(data) < datagramMTU {
		if err := sess.SendDatagram(data); err != nil {
			return newTransportErr(SendFailed, "datagram send failed", err)
		}
		return nil
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := stream.Write(lenBuf[:]); err != nil {
		return newTransportErr(SendFailed, "stream write failed", err)
	}
	if _, err := stream.Write(data); err != nil {
		return newTransportErr(SendFailed, "stream write failed", err)
	}
	return nil
}

// OpenBidiStream opens a new bidirectional stream on the session, separate
// from the default Message path. cfg is not applied: the returned stream is
// a plain QUIC stream, reliable and ordered.
func (t *WebTransportTransport) OpenBidiStream(ctx context.Context, cfg StreamConfig) (*webtransport.Stream, error) {
	t.mu.Lock()
	sess := t.session
	t.mu.Unlock()
	if sess == nil {
		return nil, newTransportErr(NotConnected, "open stream while not connected", nil)
	}
	stream, err := sess.OpenStreamSync(ctx)
	if err != nil {
		return nil, newTransportErr(ConnectionFailed, "open bidi stream", err)
	}
	return stream, nil
}

// OpenUniStream opens a new unidirectional (send-only) stream on the
// session, suitable for best-effort, unordered delivery.
func (t *WebTransportTransport) OpenUniStream(ctx context.Context) (*webtransport.SendStream, error) {
	t.mu.Lock()
	sess := t.session
	t.mu.Unlock()
	if sess == nil {
		return nil, newTransportErr(NotConnected, "open stream while not connected", nil)
	}
	stream, err := sess.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, newTransportErr(ConnectionFailed, "open uni stream", err)
	}
	return stream, nil
}

// SendDatagram sends data as an unreliable, unordered datagram.
func (t *WebTransportTransport) SendDatagram(data []byte) error {
	t.mu.Lock()
	sess := t.session
	t.mu.Unlock()
	if sess == nil {
		return newTransportErr(NotConnected, "send datagram while not connected", nil)
	}
	if err := sess.SendDatagram(data); err != nil {
		return newTransportErr(SendFailed, "datagram send failed", err)
	}
	return nil
}

func (t *WebTransportTransport) Disconnect() error {
	t.mu.Lock()
	sess := t.session
	done := t.done
	t.session = nil
	t.ctrl = nil
	t.mu.Unlock()

	if sess == nil {
		return nil
	}
	if done != nil {
		close(done)
	}
	t.setState(Disconnected)
	return sess.CloseWithError(0, "disconnect")
}

func (t *WebTransportTransport) Split() (InboundStream, OutboundSink, error) {
	if t.split {
		return nil, nil, newTransportErr(InvalidState, "already split", nil)
	}
	t.split = true
	stream := &chanInboundStream{frames: t.frames}
	sink := &guardedSink{write: t.Send, closeF: t.Disconnect}
	return stream, sink, nil
}

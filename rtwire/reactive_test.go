package rtwire

import (
	"context"
	"testing"
	"time"

	"github.com/rtwire/go-client/internal/fastjson"
	"github.com/rtwire/go-client/internal/wire"
)

func newTestContext(t *testing.T) (*Context, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport("fake")
	selector := newTestSelector(t, ft)
	engine := NewEngine(TransportConfig{}, selector)
	rc := NewContext(engine)
	t.Cleanup(func() { rc.Disconnect() })
	return rc, ft
}

func awaitState(t *testing.T, rc *Context, want ConnectionState) {
	t.Helper()
	ch, unsub := rc.State.Subscribe()
	defer unsub()
	if rc.State.Get() == want {
		return
	}
	for {
		select {
		case s := <-ch:
			if s == want {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("State never reached %v (last = %v)", want, rc.State.Get())
		}
	}
}

func TestContextConnectUpdatesStateSignal(t *testing.T) {
	rc, _ := newTestContext(t)
	if err := rc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	awaitState(t, rc, Connected)
}

func TestContextSendMessageAppendsToSentMessages(t *testing.T) {
	rc, _ := newTestContext(t)
	if err := rc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	awaitState(t, rc, Connected)

	if err := rc.SendMessage(context.Background(), NewMessage(Binary, []byte("hello"))); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	snap := rc.SentMessages.Snapshot()
	if len(snap) != 1 || string(snap[0].Data()) != "hello" {
		t.Fatalf("SentMessages snapshot = %v, want [hello]", snap)
	}
	if rc.MetricsCounters().MessagesSent.Load() != 1 {
		t.Fatal("MessagesSent counter should be 1")
	}
}

func TestContextInboundMessageReachesSignal(t *testing.T) {
	rc, ft := newTestContext(t)
	if err := rc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	awaitState(t, rc, Connected)

	ch, unsub := rc.InboundMessages.Subscribe()
	defer unsub()

	ft.pushFrame([]byte("plain text update"))

	select {
	case msg := <-ch:
		if string(msg.Data()) != "plain text update" {
			t.Fatalf("got %q", msg.Data())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for inbound message")
	}
}

func TestContextRPCCallRoundTripsThroughEngine(t *testing.T) {
	rc, ft := newTestContext(t)
	if err := rc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	awaitState(t, rc, Connected)

	go func() {
		for i := 0; i < 50; i++ {
			ft.mu.Lock()
			n := len(ft.sent)
			ft.mu.Unlock()
			if n > 0 {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		ft.mu.Lock()
		req, _ := wire.DecodeRequest(ft.sent[0])
		ft.mu.Unlock()
		result, _ := fastjson.Marshal(map[string]string{"message": "Hello, RPC!"})
		resp, _ := wire.Encode(wire.ResponseFrame{ID: req.ID, Result: result})
		ft.pushFrame(resp)
	}()

	result, err := rc.RPC().Call(context.Background(), wire.KindCall, "echo", map[string]string{"message": "Hello, RPC!"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var decoded struct {
		Message string `json:"message"`
	}
	fastjson.Unmarshal(result, &decoded)
	if decoded.Message != "Hello, RPC!" {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestContextSendMessageWithAckResolvesOnMatchingAck(t *testing.T) {
	rc, ft := newTestContext(t)
	if err := rc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	awaitState(t, rc, Connected)

	go func() {
		for i := 0; i < 50; i++ {
			ft.mu.Lock()
			n := len(ft.sent)
			ft.mu.Unlock()
			if n > 0 {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		ft.mu.Lock()
		var sent ackFrame
		fastjson.Unmarshal(ft.sent[0], &sent)
		ft.mu.Unlock()
		echo, _ := fastjson.Marshal(ackFrame{AckID: sent.AckID, Ack: true})
		ft.pushFrame(echo)
	}()

	err := rc.SendMessageWithAck(context.Background(), []byte(`{"x":1}`), time.Second)
	if err != nil {
		t.Fatalf("SendMessageWithAck: %v", err)
	}
}

func TestContextSendMessageWithAckTimesOutWithoutPeerAck(t *testing.T) {
	rc, _ := newTestContext(t)
	if err := rc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	awaitState(t, rc, Connected)

	err := rc.SendMessageWithAck(context.Background(), []byte(`{"x":1}`), 30*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error with no peer ack")
	}
}

package rtwire

import "testing"

func TestSignalGetSet(t *testing.T) {
	s := NewSignal(1)
	if s.Get() != 1 {
		t.Fatalf("Get() = %d, want 1", s.Get())
	}
	s.Set(2)
	if s.Get() != 2 {
		t.Fatalf("Get() = %d, want 2", s.Get())
	}
}

func TestSignalSubscribeReceivesUpdates(t *testing.T) {
	s := NewSignal(0)
	ch, unsub := s.Subscribe()
	defer unsub()

	s.Set(42)
	select {
	case v := <-ch:
		if v != 42 {
			t.Fatalf("received %d, want 42", v)
		}
	default:
		t.Fatal("expected a buffered update on the subscriber channel")
	}
}

func TestSignalUnsubscribeClosesChannel(t *testing.T) {
	s := NewSignal(0)
	ch, unsub := s.Subscribe()
	unsub()

	_, ok := <-ch
	if ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestBufferedSignalOrderAndOverflow(t *testing.T) {
	b := NewBufferedSignal(3, 0)
	for i := 1; i <= 5; i++ {
		b.Append(i)
	}
	got := b.Snapshot()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Snapshot() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot() = %v, want %v", got, want)
		}
	}
	if b.Dropped() != 2 {
		t.Fatalf("Dropped() = %d, want 2", b.Dropped())
	}
}

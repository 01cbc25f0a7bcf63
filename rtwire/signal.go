package rtwire

import (
	"sync"

	"github.com/rtwire/go-client/internal/util"
)

// Signal is a single-writer, multi-reader observable value. The owning
// component is the only writer; any number of readers may call Get or
// Subscribe. There is no reactive-framework dependency in the example
// corpus for this pattern, so it is implemented directly on channels and a
// mutex rather than wrapped around a borrowed FRP library.
type Signal[T any] struct {
	mu        sync.RWMutex
	value     T
	listeners map[int]chan T
	nextID    int
}

// NewSignal constructs a Signal with an initial value.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{value: initial, listeners: make(map[int]chan T)}
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set stores v and notifies every current subscriber without blocking: a
// slow subscriber's channel is skipped for that update rather than stalling
// the writer, matching the single-writer-must-never-block invariant.
func (s *Signal[T]) Set(v T) {
	s.mu.Lock()
	s.value = v
	for _, ch := range s.listeners {
		select {
		case ch <- v:
		default:
		}
	}
	s.mu.Unlock()
}

// Subscribe returns a channel that receives every subsequent Set value (best
// effort — see Set) and an unsubscribe function the caller must call when
// done to release the channel.
func (s *Signal[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	ch := make(chan T, 8)
	s.listeners[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		if existing, ok := s.listeners[id]; ok {
			delete(s.listeners, id)
			close(existing)
		}
		s.mu.Unlock()
	}
}

// BufferedSignal is the ordered-bounded-sequence counterpart to Signal: it
// backs inbound_messages/sent_messages/acknowledged_ids, where readers need
// the last N items in wire order rather than just the latest value. Append
// is the single writer operation; overflow drops the oldest entry, matching
// the reactive context's documented overflow policy.
type BufferedSignal[T any] struct {
	ring *util.Ring[T]
	tip  *Signal[T]
}

// NewBufferedSignal constructs a BufferedSignal with the given capacity.
func NewBufferedSignal[T any](capacity int, zero T) *BufferedSignal[T] {
	return &BufferedSignal[T]{ring: util.NewRing[T](capacity), tip: NewSignal(zero)}
}

// Append adds v to the sequence, evicting the oldest entry on overflow, and
// notifies subscribers with the newly appended value.
func (b *BufferedSignal[T]) Append(v T) {
	b.ring.Push(v)
	b.tip.Set(v)
}

// Snapshot returns every buffered item in wire order.
func (b *BufferedSignal[T]) Snapshot() []T { return b.ring.Snapshot() }

// Dropped reports how many items have been evicted due to overflow.
func (b *BufferedSignal[T]) Dropped() uint64 { return b.ring.Dropped() }

// Subscribe returns a channel that receives each newly appended value.
func (b *BufferedSignal[T]) Subscribe() (<-chan T, func()) { return b.tip.Subscribe() }

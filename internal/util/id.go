package util

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// SessionID returns a random identifier suitable for a connection or
// subscription session: a random UUID in its hyphenated string form, e.g.
// "3f2b8c1e-9d4a-4c7b-8e2f-1a6d5b9c0e7f".
func SessionID() string {
	return uuid.NewString()
}

// Counter is a monotonically increasing id allocator producing ids of the
// form "<prefix>_<n>", starting at n=1; the RPC layer's "rpc" prefix gives
// the "rpc_<n>" correlation ids used over the wire.
type Counter struct {
	prefix string
	n      atomic.Uint64
}

// NewCounter creates a Counter that prefixes generated ids with prefix.
func NewCounter(prefix string) *Counter {
	return &Counter{prefix: prefix}
}

// Next returns the next id in the sequence.
func (c *Counter) Next() string {
	n := c.n.Add(1)
	return fmt.Sprintf("%s_%d", c.prefix, n)
}

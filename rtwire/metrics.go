package rtwire

import "sync/atomic"

// ConnectionMetrics accumulates the counters the specification requires the
// reactive context to expose; it holds no exporter or transport of its own,
// per the specification's explicit exclusion of observability backends from
// this package's scope.
type ConnectionMetrics struct {
	MessagesSent     atomic.Uint64
	MessagesReceived atomic.Uint64
	BytesSent        atomic.Uint64
	BytesReceived    atomic.Uint64
	ReconnectCount   atomic.Uint64
	RPCCallCount     atomic.Uint64
	RPCErrorCount    atomic.Uint64
	SubscriptionDrop atomic.Uint64
}

// Snapshot is an immutable point-in-time read of ConnectionMetrics.
type Snapshot struct {
	MessagesSent     uint64
	MessagesReceived uint64
	BytesSent        uint64
	BytesReceived    uint64
	ReconnectCount   uint64
	RPCCallCount     uint64
	RPCErrorCount    uint64
	SubscriptionDrop uint64
}

// Snapshot reads every counter into a Snapshot value.
func (m *ConnectionMetrics) Snapshot() Snapshot {
	return Snapshot{
		MessagesSent:     m.MessagesSent.Load(),
		MessagesReceived: m.MessagesReceived.Load(),
		BytesSent:        m.BytesSent.Load(),
		BytesReceived:    m.BytesReceived.Load(),
		ReconnectCount:   m.ReconnectCount.Load(),
		RPCCallCount:     m.RPCCallCount.Load(),
		RPCErrorCount:    m.RPCErrorCount.Load(),
		SubscriptionDrop: m.SubscriptionDrop.Load(),
	}
}

// Counter is a narrow metrics-exporter seam: a caller may bind a real
// metrics backend's counter by implementing this interface, without this
// package depending on any exporter. No type in this package accepts a
// Counter, Histogram, Span or Tracer.
type Counter interface {
	Inc(delta float64)
}

// Histogram is the equivalent narrow seam for latency/size distributions.
type Histogram interface {
	Observe(value float64)
}

// Span is the narrow seam for a single tracing span, satisfied by most
// tracing SDKs' span types via a thin adapter.
type Span interface {
	End()
	SetAttribute(key string, value any)
	RecordError(err error)
}

// Tracer creates spans; a caller wires a real tracing SDK behind this
// interface. A nil Tracer is valid and yields noSpan values.
type Tracer interface {
	Start(name string) Span
}

type noSpan struct{}

func (noSpan) End()                            {}
func (noSpan) SetAttribute(string, any)        {}
func (noSpan) RecordError(error)               {}

// NoopTracer starts spans that discard everything.
type NoopTracer struct{}

func (NoopTracer) Start(string) Span { return noSpan{} }

package rtwire

import "testing"

func TestConnectionMetricsSnapshotReflectsCounters(t *testing.T) {
	var m ConnectionMetrics
	m.MessagesSent.Add(3)
	m.MessagesReceived.Add(7)
	m.BytesSent.Add(128)
	m.ReconnectCount.Add(1)
	m.RPCCallCount.Add(4)
	m.RPCErrorCount.Add(1)
	m.SubscriptionDrop.Add(2)

	snap := m.Snapshot()
	want := Snapshot{
		MessagesSent:     3,
		MessagesReceived: 7,
		BytesSent:        128,
		ReconnectCount:   1,
		RPCCallCount:     4,
		RPCErrorCount:    1,
		SubscriptionDrop: 2,
	}
	if snap != want {
		t.Fatalf("Snapshot() = %+v, want %+v", snap, want)
	}
}

func TestNoopTracerProducesHarmlessSpans(t *testing.T) {
	tracer := NoopTracer{}
	span := tracer.Start("op")
	span.SetAttribute("key", "value")
	span.RecordError(nil)
	span.End()
}

package rtwire

import (
	"testing"
	"time"
)

func TestQualityTrackerGoodRTTScoresHigh(t *testing.T) {
	q := NewQualityTracker(100 * time.Millisecond)
	for i := 0; i < 5; i++ {
		q.RecordHeartbeat(50 * time.Millisecond)
	}
	if q.Score() < 0.9 {
		t.Fatalf("score = %v, want near 1.0 for consistently good RTT", q.Score())
	}
}

func TestQualityTrackerDegradesOnReceiveError(t *testing.T) {
	q := NewQualityTracker(100 * time.Millisecond)
	q.RecordSuccess()
	before := q.Score()
	q.RecordReceiveError()
	if q.Score() >= before {
		t.Fatalf("score did not degrade after a receive error: before=%v after=%v", before, q.Score())
	}
}

func TestQualityTrackerShouldReconnectThreshold(t *testing.T) {
	q := NewQualityTracker(100 * time.Millisecond)
	for i := 0; i < 10; i++ {
		q.RecordReceiveError()
	}
	if !q.ShouldReconnect(QualityThreshold) {
		t.Fatalf("score %v should be below default threshold %v", q.Score(), QualityThreshold)
	}
}

func TestQualityScoreBounded(t *testing.T) {
	q := NewQualityTracker(100 * time.Millisecond)
	q.RecordHeartbeat(time.Hour)
	if q.Score() < 0 || q.Score() > 1 {
		t.Fatalf("score %v out of [0,1] bounds", q.Score())
	}
}

package rtwire

import (
	"testing"
	"time"
)

func TestExponentialBackoffBounds(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second, Max: 30 * time.Second}

	var delays []time.Duration
	for n := 0; n <= 3; n++ {
		delays = append(delays, p.Delay(n))
	}

	for i := 1; i < len(delays); i++ {
		if delays[i] < delays[i-1] {
			t.Fatalf("delay %d (%v) < delay %d (%v), want non-decreasing", i, delays[i], i-1, delays[i-1])
		}
	}
	for _, d := range delays {
		if d > 30*time.Second {
			t.Fatalf("delay %v exceeds max 30s", d)
		}
	}
}

func TestExponentialBackoffCapsExponent(t *testing.T) {
	p := ExponentialBackoff{Base: time.Millisecond, Max: time.Hour}
	d20 := p.Delay(20)
	d10 := p.Delay(10)
	if d20 != d10 {
		t.Fatalf("attempt 20 should cap at the same exponent as 10: got %v vs %v", d20, d10)
	}
}

func TestExponentialBackoffJitterWithinTolerance(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second, Max: 30 * time.Second, Jitter: true}
	base := time.Second * 2 // attempt 1 -> base*2^1
	for i := 0; i < 50; i++ {
		d := p.Delay(1)
		lo := time.Duration(float64(base) * 0.74)
		hi := time.Duration(float64(base) * 1.26)
		if d < lo || d > hi {
			t.Fatalf("jittered delay %v outside ±25%% tolerance of %v", d, base)
		}
	}
}

func TestLinearBackoff(t *testing.T) {
	p := LinearBackoff{Delay_: time.Second, Increment: time.Second, Max: 5 * time.Second}
	if got := p.Delay(0); got != time.Second {
		t.Fatalf("Delay(0) = %v, want 1s", got)
	}
	if got := p.Delay(10); got != 5*time.Second {
		t.Fatalf("Delay(10) = %v, want capped at 5s", got)
	}
}

func TestNoReconnectNeverAllowsAttempts(t *testing.T) {
	p := NoReconnect{}
	if p.MaxAttempts() >= 0 {
		t.Fatalf("NoReconnect.MaxAttempts() = %d, want negative (no attempts permitted)", p.MaxAttempts())
	}
}

package rtwire

import "testing"

func TestStateMonotonicityForbidsSkippingConnecting(t *testing.T) {
	if CanTransition(Disconnected, Connected) {
		t.Fatal("Disconnected -> Connected must be forbidden")
	}
	if CanTransition(Reconnecting, Connecting) {
		t.Fatal("Reconnecting -> Connecting must be forbidden")
	}
}

func TestStateLegalTransitions(t *testing.T) {
	legal := [][2]ConnectionState{
		{Disconnected, Connecting},
		{Connecting, Connected},
		{Connecting, Reconnecting},
		{Connecting, Failed},
		{Connected, Reconnecting},
		{Connected, Disconnected},
		{Reconnecting, Connected},
		{Reconnecting, Failed},
		{Failed, Disconnected},
	}
	for _, pair := range legal {
		if !CanTransition(pair[0], pair[1]) {
			t.Errorf("expected %v -> %v to be legal", pair[0], pair[1])
		}
	}
}

func TestStateStringers(t *testing.T) {
	states := []ConnectionState{Disconnected, Connecting, Connected, Reconnecting, Failed}
	seen := make(map[string]bool)
	for _, s := range states {
		str := s.String()
		if str == "" || str == "Unknown" {
			t.Errorf("state %d stringified to %q", s, str)
		}
		if seen[str] {
			t.Errorf("duplicate stringification %q", str)
		}
		seen[str] = true
	}
}

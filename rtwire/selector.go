package rtwire

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rtwire/go-client/internal/util"
	"golang.org/x/sync/singleflight"
)

// candidateFn builds a fresh Transport instance for one connection attempt.
// Transports are not reusable once Disconnect has torn them down, so the
// selector rebuilds a new value per attempt rather than retrying an
// existing one.
type candidateFn func() Transport

// AttemptError records one failed candidate transport during fallback.
type AttemptError struct {
	Transport string
	Err       error
}

// Selector probes capabilities and picks a transport, falling back through
// WebTransport → WebSocket → SSE in order, per the specification's
// selection rule. It also supports switching the live transport by name
// without ever having two transports concurrently Connected.
type Selector struct {
	cfg   TransportConfig
	caps  TransportCapabilities
	tls   *tls.Config

	mu       sync.Mutex
	current  Transport
	selected string

	// connectGroup collapses concurrent ConnectWithFallback calls into a
	// single in-flight attempt. The lifecycle engine's reconnect loop and an
	// explicit caller-initiated reconnect can otherwise race to dial the
	// same URL from two goroutines at once.
	connectGroup singleflight.Group

	// candidateOverride replaces the built-in WebTransport/WebSocket/SSE
	// construction with a caller-supplied candidate list. Only ever set in
	// tests, to exercise fallback ordering against fake transports instead
	// of real network code.
	candidateOverride func() []candidate
}

// NewSelector constructs a Selector for cfg using caps, typically the
// result of DetectCapabilities.
func NewSelector(cfg TransportConfig, caps TransportCapabilities) *Selector {
	return &Selector{cfg: cfg, caps: caps}
}

// WithTLSConfig sets the TLS config used when constructing a WebTransport
// candidate (e.g. for local development with a self-signed certificate).
func (s *Selector) WithTLSConfig(cfg *tls.Config) *Selector {
	s.tls = cfg
	return s
}

// webTransportTLSConfig resolves the TLS config for a WebTransport dial. An
// explicit WithTLSConfig call always wins; absent one, a URL that resolves
// to a loopback host gets a relaxed config so a local HTTP/3 dev server
// running with a self-signed certificate just works, matching the same
// convenience every Go HTTP client needs when pointed at localhost.
func (s *Selector) webTransportTLSConfig() *tls.Config {
	if s.tls != nil {
		return s.tls
	}
	if u, err := url.Parse(s.cfg.URL); err == nil && util.IsLoopback(u.Host) {
		return &tls.Config{InsecureSkipVerify: true}
	}
	return nil
}

type candidate struct {
	name string
	make candidateFn
}

func (s *Selector) candidates() []candidate {
	if s.candidateOverride != nil {
		return s.candidateOverride()
	}
	scheme := schemeOf(s.cfg.URL)
	wantH3 := scheme == "https" || scheme == "h3"

	var out []candidate
	if wantH3 && s.caps.WebTransport {
		out = append(out, candidate{"WebTransport", func() Transport {
			return NewWebTransportTransport(s.cfg, DefaultStreamConfig, s.webTransportTLSConfig())
		}})
	}
	if s.caps.WebSocket {
		out = append(out, candidate{"WebSocket", func() Transport { return NewWebSocketTransport(s.cfg) }})
	}
	if s.caps.SSE {
		out = append(out, candidate{"SSE", func() Transport { return NewSSETransport(s.cfg) }})
	}
	return out
}

func schemeOf(url string) string {
	if idx := strings.Index(url, "://"); idx >= 0 {
		return strings.ToLower(url[:idx])
	}
	return ""
}

// connectResult packs ConnectWithFallback's multiple return values for
// passage through singleflight.Group.Do, which only carries a single value
// alongside its own error return. The fallback error itself is carried
// inside the struct so concurrent callers each still see every attempt that
// was made, not just a generic "duplicate call" failure.
type connectResult struct {
	transport Transport
	attempts  []AttemptError
	err       error
}

// ConnectWithFallback attempts each candidate transport in order, stopping
// on the first success and recording every prior failure. Concurrent callers
// (e.g. the lifecycle engine's reconnect loop racing an explicit caller
// reconnect) collapse onto the same in-flight attempt rather than dialing
// the same URL twice.
func (s *Selector) ConnectWithFallback(ctx context.Context) (Transport, []AttemptError, error) {
	v, _, _ := s.connectGroup.Do("connect", func() (any, error) {
		candidates := s.candidates()
		if len(candidates) == 0 {
			return connectResult{err: newTransportErr(NotSupported, "no transport capability available for url", nil)}, nil
		}

		var attempts []AttemptError
		for _, c := range candidates {
			t := c.make()
			if err := t.Connect(ctx); err != nil {
				attempts = append(attempts, AttemptError{Transport: c.name, Err: err})
				continue
			}
			s.mu.Lock()
			s.current = t
			s.selected = c.name
			s.mu.Unlock()
			return connectResult{transport: t, attempts: attempts}, nil
		}

		last := attempts[len(attempts)-1]
		return connectResult{
			attempts: attempts,
			err:      fmt.Errorf("all transports failed, last error from %s: %w", last.Transport, last.Err),
		}, nil
	})
	res := v.(connectResult)
	return res.transport, res.attempts, res.err
}

// SelectedTransport returns the name of the transport currently in use, or
// "" if none has connected yet.
func (s *Selector) SelectedTransport() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// CanSwitch always reports true: the selector supports switching the
// active transport at any point after an initial connection.
func (s *Selector) CanSwitch() bool { return true }

// SwitchTransport tears down the current transport and brings up the named
// one atomically: Disconnect completes before the new Connect begins, so
// no two transports are ever concurrently Connected on one logical
// connection.
func (s *Selector) SwitchTransport(ctx context.Context, name string) (Transport, error) {
	s.mu.Lock()
	old := s.current
	s.mu.Unlock()
	if old != nil {
		if err := old.Disconnect(); err != nil {
			return nil, err
		}
	}

	var next Transport
	switch name {
	case "WebSocket":
		next = NewWebSocketTransport(s.cfg)
	case "SSE":
		next = NewSSETransport(s.cfg)
	case "WebTransport":
		next = NewWebTransportTransport(s.cfg, DefaultStreamConfig, s.webTransportTLSConfig())
	default:
		return nil, newTransportErr(InvalidState, fmt.Sprintf("unknown transport %q", name), nil)
	}

	if err := next.Connect(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.current = next
	s.selected = name
	s.mu.Unlock()
	return next, nil
}

// Package serverlimits holds helpers for bounding the size of inbound HTTP
// bodies accepted by a server's WebSocket-upgrade or SSE-subscribe
// endpoints. No other package in this module calls them; the module ships
// no server of its own.
package serverlimits

import (
	"errors"
	"net/http"
)

// DefaultMaxBodyBytes is the default maximum size, in bytes, of an inbound
// HTTP request body accepted before an upgrade or subscribe handshake.
const DefaultMaxBodyBytes int64 = 1_000_000

// Effective converts a user-configured maxBodyBytes value to an effective
// limit: 0 uses DefaultMaxBodyBytes, a negative value disables the limit,
// and a positive value is used as-is.
func Effective(maxBodyBytes int64) int64 {
	switch {
	case maxBodyBytes == 0:
		return DefaultMaxBodyBytes
	case maxBodyBytes < 0:
		return 0
	default:
		return maxBodyBytes
	}
}

// IsBodyTooLarge reports whether err was produced by an http.MaxBytesReader
// rejecting an oversized body.
func IsBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// WriteBodyTooLarge writes the standard 413 response for a rejected
// handshake body, explicitly requesting connection closure since the client
// may otherwise attempt to keep writing past the limit.
func WriteBodyTooLarge(w http.ResponseWriter) {
	w.Header().Set("Connection", "close")
	http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
}

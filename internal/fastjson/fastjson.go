// Package fastjson centralizes the JSON implementation used across the
// codec and wire layers. It wraps segmentio/encoding/json, a drop-in
// replacement for encoding/json with a reflection-free fast path, so the
// hot path of encoding/decoding every RPC frame avoids the standard
// library's allocation-heavy reflection walk.
package fastjson

import "github.com/segmentio/encoding/json"

// Marshal encodes v as JSON using the same semantics as encoding/json.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON data into v using the same semantics as
// encoding/json.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// RawMessage is an alias of json.RawMessage so callers never need to import
// both encoding/json and this package for the raw-delay-decode idiom.
type RawMessage = json.RawMessage

// Valid reports whether data is a syntactically valid JSON value.
func Valid(data []byte) bool {
	return json.Valid(data)
}

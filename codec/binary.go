package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// binaryFormatVersion is the leading byte of every binary frame, bumped
// whenever the wire layout of the binary codec changes incompatibly.
const binaryFormatVersion byte = 1

// Binary is a compact, self-describing binary codec built on MessagePack.
// Frames are a fixed-width one-byte version prefix followed by the
// msgpack-encoded value, so a decoder can reject frames from an
// incompatible encoder without attempting to parse the payload.
//
// Encode and Decode use msgpack.Marshal and msgpack.Unmarshal with their
// default settings: structs are keyed by field name, and Decode copies the
// payload into a fresh value rather than decoding in place.
type Binary[T any] struct{}

// NewBinary returns a binary codec for T.
func NewBinary[T any]() *Binary[T] { return &Binary[T]{} }

func (Binary[T]) Encode(value T) ([]byte, error) {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return nil, newErr(Serialization, err)
	}
	out := make([]byte, 1+len(payload))
	out[0] = binaryFormatVersion
	copy(out[1:], payload)
	return out, nil
}

func (Binary[T]) Decode(data []byte) (T, error) {
	var v T
	if len(data) < 1 {
		return v, newErr(Deserialization, fmt.Errorf("empty binary frame"))
	}
	if data[0] != binaryFormatVersion {
		return v, newErr(Deserialization, fmt.Errorf("unsupported binary frame version %d", data[0]))
	}
	if err := msgpack.Unmarshal(data[1:], &v); err != nil {
		return v, newErr(Deserialization, err)
	}
	return v, nil
}

func (Binary[T]) ContentType() string { return ContentTypeBinary }

package codec

import (
	"fmt"

	"github.com/rtwire/go-client/internal/fastjson"
)

// JSON is a UTF-8 text codec built on the module's fast JSON implementation.
// It preserves unicode scalar values unchanged across a round trip and
// rejects trailing garbage after the top-level value, per the codec
// contract.
type JSON[T any] struct{}

// NewJSON returns a JSON codec for T.
func NewJSON[T any]() *JSON[T] { return &JSON[T]{} }

func (JSON[T]) Encode(value T) ([]byte, error) {
	data, err := fastjson.Marshal(value)
	if err != nil {
		return nil, newErr(Serialization, err)
	}
	return data, nil
}

func (JSON[T]) Decode(data []byte) (T, error) {
	var v T
	if !fastjson.Valid(data) {
		return v, newErr(Deserialization, fmt.Errorf("invalid JSON"))
	}
	if err := fastjson.Unmarshal(data, &v); err != nil {
		return v, newErr(Deserialization, err)
	}
	return v, nil
}

func (JSON[T]) ContentType() string { return ContentTypeJSON }

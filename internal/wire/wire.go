// Package wire defines the on-the-wire JSON-RPC-ish envelope shared by the
// RPC correlation layer, the method registry, and the subscription stream.
// It operates on raw JSON so that typed params/result decoding can be
// deferred to the caller, matching the framing contract in the
// specification's External Interfaces section.
package wire

import (
	"fmt"

	"github.com/rtwire/go-client/internal/fastjson"
)

// Kind enumerates the four RPC request shapes.
type Kind string

const (
	KindCall         Kind = "Call"
	KindQuery        Kind = "Query"
	KindMutation     Kind = "Mutation"
	KindSubscription Kind = "Subscription"
)

// RequestFrame is the wire shape of an RPC request in either direction.
type RequestFrame struct {
	ID     string              `json:"id"`
	Method string              `json:"method"`
	Params fastjson.RawMessage `json:"params,omitempty"`
	Kind   Kind                `json:"kind"`
}

// ErrorFrame is the wire shape of an RpcError.
type ErrorFrame struct {
	Code    int32               `json:"code"`
	Message string              `json:"message"`
	Data    fastjson.RawMessage `json:"data,omitempty"`
}

// ResponseFrame is the wire shape of an RPC response. Exactly one of
// Result/Error is populated.
type ResponseFrame struct {
	ID     string              `json:"id"`
	Result fastjson.RawMessage `json:"result,omitempty"`
	Error  *ErrorFrame         `json:"error,omitempty"`
}

// SubscriptionEventType distinguishes the three subscription frame shapes.
type SubscriptionEventType string

const (
	SubEventData  SubscriptionEventType = "data"
	SubEventEnd   SubscriptionEventType = "end"
	SubEventError SubscriptionEventType = "error"
)

// SubscriptionFrame carries a server-pushed subscription data/end/error
// event, tagged with the client-allocated subscription id.
type SubscriptionFrame struct {
	ID      string                `json:"id"`
	Event   SubscriptionEventType `json:"event"`
	Payload fastjson.RawMessage   `json:"payload,omitempty"`
	Error   *ErrorFrame           `json:"error,omitempty"`
}

// FrameKind classifies a decoded inbound frame for dispatch between the
// RPC correlation layer, the method registry, and the subscription stream.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameRequest
	FrameResponse
	FrameSubscription
)

// Classify inspects raw JSON bytes and reports which frame shape they hold.
// A request frame always carries "method"; a subscription frame always
// carries "event"; anything else with an "id" is a response.
func Classify(data []byte) (FrameKind, error) {
	var raw map[string]fastjson.RawMessage
	if err := fastjson.Unmarshal(data, &raw); err != nil {
		return FrameUnknown, fmt.Errorf("wire: classify: %w", err)
	}
	if _, ok := raw["method"]; ok {
		return FrameRequest, nil
	}
	if _, ok := raw["event"]; ok {
		return FrameSubscription, nil
	}
	if _, ok := raw["id"]; ok {
		return FrameResponse, nil
	}
	return FrameUnknown, nil
}

// DecodeRequest unmarshals data as a RequestFrame.
func DecodeRequest(data []byte) (*RequestFrame, error) {
	var f RequestFrame
	if err := fastjson.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("wire: decode request: %w", err)
	}
	return &f, nil
}

// DecodeResponse unmarshals data as a ResponseFrame.
func DecodeResponse(data []byte) (*ResponseFrame, error) {
	var f ResponseFrame
	if err := fastjson.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("wire: decode response: %w", err)
	}
	return &f, nil
}

// DecodeSubscription unmarshals data as a SubscriptionFrame.
func DecodeSubscription(data []byte) (*SubscriptionFrame, error) {
	var f SubscriptionFrame
	if err := fastjson.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("wire: decode subscription: %w", err)
	}
	return &f, nil
}

// Encode marshals any wire frame type to JSON.
func Encode(v any) ([]byte, error) {
	data, err := fastjson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return data, nil
}

package rtwire

import (
	"context"
	"testing"

	"github.com/rtwire/go-client/internal/fastjson"
	"github.com/rtwire/go-client/internal/wire"
)

func TestRegistryDispatchKnownMethod(t *testing.T) {
	var sent []byte
	r := NewRegistry(func(ctx context.Context, data []byte) error {
		sent = data
		return nil
	})
	r.Register("double", func(ctx context.Context, params fastjson.RawMessage) (any, error) {
		var p struct{ N int }
		fastjson.Unmarshal(params, &p)
		return map[string]int{"result": p.N * 2}, nil
	})

	reqData, _ := wire.Encode(wire.RequestFrame{ID: "1", Method: "double", Params: mustJSON(t, map[string]int{"n": 21})})
	if err := r.Dispatch(context.Background(), reqData); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	resp, err := wire.DecodeResponse(sent)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error reply: %+v", resp.Error)
	}
	var result struct{ Result int }
	fastjson.Unmarshal(resp.Result, &result)
	if result.Result != 42 {
		t.Fatalf("result = %d, want 42", result.Result)
	}
}

func TestRegistryDispatchUnknownMethod(t *testing.T) {
	var sent []byte
	r := NewRegistry(func(ctx context.Context, data []byte) error {
		sent = data
		return nil
	})

	reqData, _ := wire.Encode(wire.RequestFrame{ID: "1", Method: "bogus"})
	if err := r.Dispatch(context.Background(), reqData); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	resp, err := wire.DecodeResponse(sent)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("reply = %+v, want MethodNotFound error", resp)
	}
}

func mustJSON(t *testing.T, v any) fastjson.RawMessage {
	t.Helper()
	data, err := fastjson.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

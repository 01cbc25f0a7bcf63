package codec

import (
	"testing"
)

type sample struct {
	Name  string            `json:"name" msgpack:"name"`
	Count int               `json:"count" msgpack:"count"`
	Tags  []string          `json:"tags" msgpack:"tags"`
	Meta  map[string]string `json:"meta" msgpack:"meta"`
}

func TestJSONRoundTrip(t *testing.T) {
	c := NewJSON[sample]()
	in := sample{Name: "héllo ☃", Count: 3, Tags: []string{"a", "b"}, Meta: map[string]string{"k": "v"}}
	data, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != in.Name || out.Count != in.Count {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestJSONRejectsTrailingGarbage(t *testing.T) {
	c := NewJSON[sample]()
	if _, err := c.Decode([]byte(`{"name":"a"} garbage`)); err == nil {
		t.Fatal("expected error for trailing garbage")
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	c := NewBinary[sample]()
	in := sample{Name: "bin", Count: 42, Tags: []string{"x"}}
	data, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != in.Name || out.Count != in.Count {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestBinaryDeterministic(t *testing.T) {
	c := NewBinary[sample]()
	in := sample{Name: "stable", Count: 7}
	a, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("binary encoding is not byte-identical for identical inputs")
	}
}

func TestBinaryRejectsUnknownVersion(t *testing.T) {
	c := NewBinary[sample]()
	if _, err := c.Decode([]byte{0xff, 0x00}); err == nil {
		t.Fatal("expected error for unsupported version byte")
	}
}

func TestHybridRoundTrip(t *testing.T) {
	h := NewHybrid[sample]()
	in := sample{Name: "hybrid", Count: 1}
	data, err := h.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := h.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != in.Name {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

// TestCrossCodecCompatibility verifies a payload encoded by JSON decodes
// through the hybrid codec once it carries the hybrid JSON tag. The other
// direction is not checked: Hybrid encodes with the binary codec first, so
// its frames are not JSON.
func TestCrossCodecCompatibility(t *testing.T) {
	jsonCodec := NewJSON[sample]()
	hybrid := NewHybrid[sample]()

	in := sample{Name: "cross", Count: 9}
	jsonData, err := jsonCodec.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	tagged := append([]byte{hybridTagJSON}, jsonData...)
	out, err := hybrid.Decode(tagged)
	if err != nil {
		t.Fatalf("hybrid decode of JSON-tagged frame: %v", err)
	}
	if out.Name != in.Name {
		t.Fatalf("cross-codec mismatch: got %+v want %+v", out, in)
	}
}

func TestHybridRejectsEmptyFrame(t *testing.T) {
	h := NewHybrid[sample]()
	if _, err := h.Decode(nil); err == nil {
		t.Fatal("expected error for empty frame")
	}
}

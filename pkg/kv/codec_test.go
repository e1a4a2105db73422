package kv

import (
	"reflect"
	"testing"
)

func TestGobCodecRoundTrip(t *testing.T) {
	type session struct {
		User    string
		Expires int64
		Scopes  []string
	}

	codec := GobCodec[session]{}
	want := session{User: "alice", Expires: 1756100000, Scopes: []string{"read", "write"}}

	data, err := codec.Encode(want)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	got, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := JSONCodec[map[string]int]{}
	want := map[string]int{"a": 1, "b": 2}

	data, err := codec.Encode(want)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	got, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch: got %v, want %v", got, want)
	}
}

func TestJSONCodecRejectsMalformedData(t *testing.T) {
	codec := JSONCodec[int]{}
	if _, err := codec.Decode([]byte("{not json")); err == nil {
		t.Error("expected error decoding malformed data")
	}
}

func TestBytesCodecIsIdentity(t *testing.T) {
	codec := Bytes()
	in := []byte{0x00, 0xff, 0x10}

	data, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	got, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("expected %v back, got %v", in, got)
	}
}

func TestStringCodecRoundTrip(t *testing.T) {
	codec := String()
	data, err := codec.Encode("héllo")
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	got, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if got != "héllo" {
		t.Errorf("expected héllo, got %q", got)
	}
}

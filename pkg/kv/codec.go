package kv

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
)

// Codec converts values of one type to and from the opaque byte
// sequence stored in a table's value column. Decode is only ever
// applied to bytes the same codec produced; feeding it foreign data is
// undefined behavior at this layer. Keys are stored as plain text and
// bypass the codec entirely.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// GobCodec serializes values with encoding/gob, the default private
// binary format. Instances sharing a table must share the codec.
type GobCodec[V any] struct{}

// Encode implements Codec.
func (GobCodec[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (GobCodec[V]) Decode(data []byte) (V, error) {
	var v V
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return v, fmt.Errorf("failed to decode value: %w", err)
	}
	return v, nil
}

// JSONCodec serializes values as JSON, for tables whose contents should
// stay readable by external tooling.
type JSONCodec[V any] struct{}

// Encode implements Codec.
func (JSONCodec[V]) Encode(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return data, nil
}

// Decode implements Codec.
func (JSONCodec[V]) Decode(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return v, nil
}

type bytesCodec struct{}

func (bytesCodec) Encode(v []byte) ([]byte, error) { return v, nil }

func (bytesCodec) Decode(data []byte) ([]byte, error) { return data, nil }

// Bytes returns the identity codec for raw blobs.
func Bytes() Codec[[]byte] { return bytesCodec{} }

type stringCodec struct{}

func (stringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }

func (stringCodec) Decode(data []byte) (string, error) { return string(data), nil }

// String returns a codec storing strings as their UTF-8 bytes.
func String() Codec[string] { return stringCodec{} }

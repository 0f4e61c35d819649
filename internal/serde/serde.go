// Package serde encodes keys and values of the materialized store to and
// from the bytes carried by log records.
package serde

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Codec converts a T to bytes and back.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(b []byte) (T, error)
}

type stringCodec struct{}

func (stringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }
func (stringCodec) Decode(b []byte) (string, error) { return string(b), nil }

// String encodes strings as their raw UTF-8 bytes.
func String() Codec[string] { return stringCodec{} }

type bytesCodec struct{}

func (bytesCodec) Encode(v []byte) ([]byte, error) { return v, nil }

func (bytesCodec) Decode(b []byte) ([]byte, error) {
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Bytes passes bytes through. Decode copies so the result does not alias
// the record buffer.
func Bytes() Codec[[]byte] { return bytesCodec{} }

type jsonCodec[T any] struct{}

func (jsonCodec[T]) Encode(v T) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serde: json encode: %w", err)
	}
	return b, nil
}

func (jsonCodec[T]) Decode(b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("serde: json decode: %w", err)
	}
	return v, nil
}

// JSON encodes T with encoding/json.
func JSON[T any]() Codec[T] { return jsonCodec[T]{} }

type protoCodec[T proto.Message] struct {
	newMsg func() T
	json   bool
}

func (c protoCodec[T]) Encode(v T) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if c.json {
		b, err = protojson.Marshal(v)
	} else {
		b, err = proto.MarshalOptions{Deterministic: true}.Marshal(v)
	}
	if err != nil {
		return nil, fmt.Errorf("serde: protobuf marshal failed: %w", err)
	}
	return b, nil
}

func (c protoCodec[T]) Decode(b []byte) (T, error) {
	m := c.newMsg()
	var err error
	if c.json {
		err = protojson.Unmarshal(b, m)
	} else {
		err = proto.Unmarshal(b, m)
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("serde: protobuf unmarshal failed: %w", err)
	}
	return m, nil
}

// Proto encodes messages in the protobuf binary format. newMsg returns an
// empty message to decode into, e.g. func() *pb.Schema { return new(pb.Schema) }.
func Proto[T proto.Message](newMsg func() T) Codec[T] {
	return protoCodec[T]{newMsg: newMsg}
}

// ProtoJSON encodes messages with protojson.
func ProtoJSON[T proto.Message](newMsg func() T) Codec[T] {
	return protoCodec[T]{newMsg: newMsg, json: true}
}

// KV pairs a key codec with a value codec. It satisfies the reader's
// serializer contract and is used by writers to build records.
type KV[K comparable, V any] struct {
	Key   Codec[K]
	Value Codec[V]
}

// NewKV returns a KV.
func NewKV[K comparable, V any](key Codec[K], value Codec[V]) KV[K, V] {
	return KV[K, V]{Key: key, Value: value}
}

func (s KV[K, V]) SerializeKey(k K) ([]byte, error)   { return s.Key.Encode(k) }
func (s KV[K, V]) SerializeValue(v V) ([]byte, error) { return s.Value.Encode(v) }
func (s KV[K, V]) DeserializeKey(b []byte) (K, error) { return s.Key.Decode(b) }

// DeserializeValue decodes b. The key is not needed by any codec here.
func (s KV[K, V]) DeserializeValue(_ K, b []byte) (V, error) { return s.Value.Decode(b) }

package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

var errNilMessage = errors.New("codec: nil protobuf message")

// Protobuf stores page fields that are a proto message, typically a
// *structpb.Struct for an open map page whose state is also read by non-Go
// clients. Encoding is deterministic so an unchanged page keeps the same
// snapshot bytes and is not rewritten.
type Protobuf[T proto.Message] struct {
	new func() T
}

// NewProtobuf returns a codec that decodes into messages built by ctor,
// e.g. func() *structpb.Struct { return &structpb.Struct{} }.
func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	var zero T
	if c.new == nil {
		return zero, errNilMessage
	}
	m := c.new()
	if err := proto.Unmarshal(b, m); err != nil {
		return zero, err
	}
	return m, nil
}

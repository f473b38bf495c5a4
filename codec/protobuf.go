package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf stores proto messages. ctor must return a fresh, non-nil message
// (e.g. func() *pb.User { return new(pb.User) }).
type Protobuf[T proto.Message] struct {
	ctor func() T
	opts proto.MarshalOptions
}

var _ Codec[proto.Message] = Protobuf[proto.Message]{}

// NewProtobuf marshals deterministically so a value written to several
// plugins has the same bytes in each.
func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{ctor: ctor, opts: proto.MarshalOptions{Deterministic: true}}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	b, err := c.opts.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: protobuf encode: %w", err)
	}
	return b, nil
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.ctor()
	if err := proto.Unmarshal(b, m); err != nil {
		return m, fmt.Errorf("codec: protobuf decode: %w", err)
	}
	return m, nil
}

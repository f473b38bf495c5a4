package codec

import (
	"errors"
	"fmt"
)

// ErrTooLarge is returned by LimitCodec for payloads over MaxDecode.
var ErrTooLarge = errors.New("codec: payload too large")

// LimitCodec refuses to decode plugin payloads over MaxDecode bytes, which
// matters when other processes write to a shared plugin store. The cache
// treats the error like any undecodable entry: a miss for that plugin.
// MaxDecode <= 0 disables the check.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}

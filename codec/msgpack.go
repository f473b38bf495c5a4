package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack uses vmihailenco/msgpack/v5 and honours `msgpack:"..."` tags.
// The zero value is ready.
type Msgpack[V any] struct{}

var _ Codec[struct{}] = Msgpack[struct{}]{}

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: msgpack encode: %w", err)
	}
	return b, nil
}

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("codec: msgpack decode: %w", err)
	}
	return v, nil
}

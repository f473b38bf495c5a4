// Package codec turns cached values into the bytes plugins store and back.
// The primary store keeps decoded values, so a codec only runs on plugin
// reads and writes.
package codec

type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

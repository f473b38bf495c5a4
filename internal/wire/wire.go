// Package wire frames plugin envelopes for byte-oriented stores.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/unkn0wn-root/heapstash/plugin"
)

const (
	version      byte = 1
	kindEnvelope byte = 1

	headerLen = 4 + 1 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("heapstash: corrupt envelope")
	magic4     = [...]byte{'H', 'S', 'T', 'E'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode: magic(4) | ver(1) | kind(1) | expiry(i64 be, unix ms, 0=never) | vlen(u32 be) | payload(vlen)
func Encode(env plugin.Envelope) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(env.Data))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEnvelope)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(env.ExpiresAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(env.Data)))
	buf.Write(u4[:])

	buf.Write(env.Data)
	return buf.Bytes()
}

// Decode parses a framed envelope. Trailing bytes are rejected. The returned
// Data aliases b.
func Decode(b []byte) (plugin.Envelope, error) {
	if len(b) < headerLen || !hasMagic(b) || b[4] != version || b[5] != kindEnvelope {
		return plugin.Envelope{}, ErrCorrupt
	}
	off := 6

	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	if exp < 0 {
		return plugin.Envelope{}, ErrCorrupt
	}

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off {
		return plugin.Envelope{}, ErrCorrupt
	}

	return plugin.Envelope{
		Data:      b[off : off+vlen],
		ExpiresAt: plugin.Expiry(exp),
	}, nil
}

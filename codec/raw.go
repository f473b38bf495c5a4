package codec

// Bytes stores []byte values as-is. Both directions copy: in-process
// plugins keep the slice they are handed, and a value read back must not
// alias a plugin's buffer.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return clone(b), nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return clone(b), nil }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// String stores strings as their bytes, without UTF-8 validation.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }

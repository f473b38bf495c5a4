package codec

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type profile struct {
	Name  string         `json:"name" msgpack:"name" cbor:"name"`
	Tags  []string       `json:"tags" msgpack:"tags" cbor:"tags"`
	Attrs map[string]int `json:"attrs" msgpack:"attrs" cbor:"attrs"`
}

var sample = profile{Name: "Ada", Tags: []string{"x", "y"}, Attrs: map[string]int{"a": 1}}

func roundTrip[V any](t *testing.T, name string, c Codec[V], v V) V {
	t.Helper()
	b, err := c.Encode(v)
	if err != nil {
		t.Fatalf("%s encode: %v", name, err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("%s decode: %v", name, err)
	}
	return got
}

func TestStructuredCodecsPreserveNestedValues(t *testing.T) {
	codecs := map[string]Codec[profile]{
		"json":    JSON[profile]{},
		"msgpack": Msgpack[profile]{},
		"cbor":    MustCBOR[profile](true),
	}
	for name, c := range codecs {
		if got := roundTrip(t, name, c, sample); !reflect.DeepEqual(got, sample) {
			t.Fatalf("%s: got %+v want %+v", name, got, sample)
		}
	}
}

func TestDeterministicCBORIsStable(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	m := map[string]int{"z": 1, "a": 2, "m": 3}
	first, err := c.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		b, _ := c.Encode(m)
		if !bytes.Equal(b, first) {
			t.Fatalf("deterministic CBOR produced different bytes")
		}
	}
}

func TestProtobufCodec(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	got := roundTrip(t, "protobuf", Codec[*wrapperspb.StringValue](c), wrapperspb.String("hello"))
	if !proto.Equal(got, wrapperspb.String("hello")) {
		t.Fatalf("got %v", got)
	}
}

func TestBytesDecodeCopies(t *testing.T) {
	src := []byte("abc")
	got, _ := Bytes{}.Decode(src)
	src[0] = 'X'
	if string(got) != "abc" {
		t.Fatalf("decoded slice aliases input: %q", got)
	}
	if s, _ := (String{}).Decode([]byte("hi")); s != "hi" {
		t.Fatalf("string codec: %q", s)
	}
}

func TestLimitCodecRejectsOversized(t *testing.T) {
	c := LimitCodec[string]{Inner: String{}, MaxDecode: 3}
	if _, err := c.Decode([]byte("abcd")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	if v, err := c.Decode([]byte("abc")); err != nil || v != "abc" {
		t.Fatalf("v=%q err=%v", v, err)
	}
	unlimited := LimitCodec[string]{Inner: String{}}
	if _, err := unlimited.Decode(bytes.Repeat([]byte("a"), 1<<16)); err != nil {
		t.Fatalf("MaxDecode=0 must disable the limit: %v", err)
	}
}

func TestInterfaceValuesDecodeToStringMaps(t *testing.T) {
	in := map[string]any{"name": "Ada", "nested": map[string]any{"ok": true}}
	codecs := map[string]Codec[any]{
		"json":    JSON[any]{},
		"msgpack": Msgpack[any]{},
		"cbor":    MustCBOR[any](true),
	}
	for name, c := range codecs {
		got := roundTrip(t, name, c, any(in))
		m, ok := got.(map[string]any)
		if !ok {
			t.Fatalf("%s: decoded %T, want map[string]any", name, got)
		}
		if _, ok := m["nested"].(map[string]any); !ok {
			t.Fatalf("%s: nested decoded as %T", name, m["nested"])
		}
	}
}

func TestDecodeErrorsAreWrapped(t *testing.T) {
	if _, err := (JSON[int]{}).Decode([]byte("{")); err == nil || !strings.Contains(err.Error(), "codec: json decode") {
		t.Fatalf("err = %v", err)
	}
}

// Package envelope owns the flat, typed key/value bundle that every
// broadcast between the core and its connectors carries.
//
// An Envelope is order independent. Readers ignore keys they do not know and
// fail with ErrMalformedEnvelope only when a known key holds the wrong kind.
package envelope

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/danmuck/smsctl/internal/protocol/tlv"
)

var ErrMalformedEnvelope = errors.New("envelope: malformed")

// Kind is the wire type of one value. It reuses the TLV type IDs.
type Kind uint8

const (
	KindU16     = Kind(tlv.TypeU16)
	KindU32     = Kind(tlv.TypeU32)
	KindI64     = Kind(tlv.TypeI64)
	KindBool    = Kind(tlv.TypeBool)
	KindString  = Kind(tlv.TypeString)
	KindStrings = Kind(tlv.TypeStrings)
	KindBytes   = Kind(tlv.TypeBytes)
)

func (k Kind) String() string {
	switch k {
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindI64:
		return "i64"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindStrings:
		return "strings"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is one typed entry. The zero Value has no kind and matches nothing.
type Value struct {
	kind Kind
	num  uint64
	b    bool
	s    string
	list []string
	raw  []byte
}

func U16(v uint16) Value       { return Value{kind: KindU16, num: uint64(v)} }
func U32(v uint32) Value       { return Value{kind: KindU32, num: uint64(v)} }
func I64(v int64) Value        { return Value{kind: KindI64, num: uint64(v)} }
func Bool(v bool) Value        { return Value{kind: KindBool, b: v} }
func String(v string) Value    { return Value{kind: KindString, s: v} }
func Strings(v []string) Value { return Value{kind: KindStrings, list: slices.Clone(v)} }
func Bytes(v []byte) Value     { return Value{kind: KindBytes, raw: slices.Clone(v)} }

func (v Value) Kind() Kind { return v.kind }

// Equal reports whether v and o carry the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind &&
		v.num == o.num &&
		v.b == o.b &&
		v.s == o.s &&
		slices.Equal(v.list, o.list) &&
		slices.Equal(v.raw, o.raw)
}

// Envelope is the flat key/value bundle of one broadcast.
type Envelope map[string]Value

func New() Envelope {
	return make(Envelope)
}

func (e Envelope) Has(key string) bool {
	_, ok := e[key]
	return ok
}

// Keys returns the keys in sorted order.
func (e Envelope) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e Envelope) Clone() Envelope {
	out := make(Envelope, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Merge returns a new envelope holding e overlaid with other.
func (e Envelope) Merge(other Envelope) Envelope {
	out := e.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (e Envelope) Equal(o Envelope) bool {
	if len(e) != len(o) {
		return false
	}
	for k, v := range e {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func (e Envelope) lookup(key string, want Kind) (Value, bool, error) {
	v, ok := e[key]
	if !ok {
		return Value{}, false, nil
	}
	if v.kind != want {
		return Value{}, true, fmt.Errorf("%w: key %q holds %s, want %s", ErrMalformedEnvelope, key, v.kind, want)
	}
	return v, true, nil
}

// String returns the string under key. ok is false when the key is absent.
func (e Envelope) String(key string) (string, bool, error) {
	v, ok, err := e.lookup(key, KindString)
	return v.s, ok, err
}

func (e Envelope) Strings(key string) ([]string, bool, error) {
	v, ok, err := e.lookup(key, KindStrings)
	return slices.Clone(v.list), ok, err
}

func (e Envelope) Bool(key string) (bool, bool, error) {
	v, ok, err := e.lookup(key, KindBool)
	return v.b, ok, err
}

func (e Envelope) U16(key string) (uint16, bool, error) {
	v, ok, err := e.lookup(key, KindU16)
	return uint16(v.num), ok, err
}

func (e Envelope) U32(key string) (uint32, bool, error) {
	v, ok, err := e.lookup(key, KindU32)
	return uint32(v.num), ok, err
}

func (e Envelope) I64(key string) (int64, bool, error) {
	v, ok, err := e.lookup(key, KindI64)
	return int64(v.num), ok, err
}

func (e Envelope) Bytes(key string) ([]byte, bool, error) {
	v, ok, err := e.lookup(key, KindBytes)
	return slices.Clone(v.raw), ok, err
}

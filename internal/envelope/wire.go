package envelope

import (
	"fmt"

	"github.com/danmuck/smsctl/internal/protocol/tlv"
)

// Field IDs of the pair encoding: every entry is a key field followed by
// exactly one value field.
const (
	fieldKey   uint16 = 1
	fieldValue uint16 = 2
)

// Marshal encodes e as TLV key/value pairs in sorted key order.
func Marshal(e Envelope) []byte {
	fields := make([]tlv.Field, 0, 2*len(e))
	for _, k := range e.Keys() {
		v := e[k]
		fields = append(fields,
			tlv.Field{ID: fieldKey, Type: tlv.TypeString, Value: []byte(k)},
			tlv.Field{ID: fieldValue, Type: uint8(v.kind), Value: valueBytes(v)},
		)
	}
	return tlv.EncodeFields(fields)
}

// Unmarshal decodes the pair encoding. Values of kinds this build does not
// know are kept raw so that forward-compatible keys survive a relay.
func Unmarshal(b []byte) (Envelope, error) {
	fields, err := tlv.DecodeFields(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("%w: unpaired field", ErrMalformedEnvelope)
	}
	out := make(Envelope, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		kf, vf := fields[i], fields[i+1]
		if kf.ID != fieldKey || kf.Type != tlv.TypeString || vf.ID != fieldValue {
			return nil, fmt.Errorf("%w: bad pair at field %d", ErrMalformedEnvelope, i)
		}
		v, err := valueFromField(vf)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrMalformedEnvelope, string(kf.Value), err)
		}
		out[string(kf.Value)] = v
	}
	return out, nil
}

func valueBytes(v Value) []byte {
	switch v.kind {
	case KindU16:
		return tlv.PutU16(uint16(v.num))
	case KindU32:
		return tlv.PutU32(uint32(v.num))
	case KindI64:
		return tlv.PutU64(v.num)
	case KindBool:
		return tlv.PutBool(v.b)
	case KindString:
		return []byte(v.s)
	case KindStrings:
		return tlv.PutStrings(v.list)
	default:
		return v.raw
	}
}

func valueFromField(f tlv.Field) (Value, error) {
	k := Kind(f.Type)
	switch k {
	case KindU16:
		n, err := tlv.U16FromBytes(f.Value)
		return Value{kind: k, num: uint64(n)}, err
	case KindU32:
		n, err := tlv.U32FromBytes(f.Value)
		return Value{kind: k, num: uint64(n)}, err
	case KindI64:
		n, err := tlv.U64FromBytes(f.Value)
		return Value{kind: k, num: n}, err
	case KindBool:
		b, err := tlv.BoolFromBytes(f.Value)
		return Value{kind: k, b: b}, err
	case KindString:
		return Value{kind: k, s: string(f.Value)}, nil
	case KindStrings:
		list, err := tlv.StringsFromBytes(f.Value)
		return Value{kind: k, list: list}, err
	default:
		return Value{kind: k, raw: f.Value}, nil
	}
}

package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrTypeMismatch     = errors.New("tlv: field type mismatch")
	ErrInvalidLength    = errors.New("tlv: invalid value length")
)

// Type IDs carried in byte 2 of every field header.
const (
	TypeU8      uint8 = 1
	TypeU16     uint8 = 2
	TypeU32     uint8 = 3
	TypeU64     uint8 = 4
	TypeBool    uint8 = 5
	TypeString  uint8 = 6
	TypeBytes   uint8 = 7
	TypeI64     uint8 = 8
	TypeStrings uint8 = 9
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

func EncodeField(f Field) []byte {
	buf := make([]byte, HeaderLen+len(f.Value))
	binary.BigEndian.PutUint16(buf[0:2], f.ID)
	buf[2] = f.Type
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(f.Value)))
	copy(buf[7:], f.Value)
	return buf
}

func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(payload[i : i+2])
		typeID := payload[i+2]
		l := binary.BigEndian.Uint32(payload[i+3 : i+7])
		i += HeaderLen
		if uint32(len(payload)-i) < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		fields = append(fields, Field{ID: id, Type: typeID, Value: val})
	}
	return fields, nil
}

func EncodeFields(fields []Field) []byte {
	out := make([]byte, 0)
	for _, f := range fields {
		out = append(out, EncodeField(f)...)
	}
	return out
}

func GetField(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

func MustType(f Field, expected uint8) error {
	if f.Type != expected {
		return fmt.Errorf("%w: field %d got %d want %d", ErrTypeMismatch, f.ID, f.Type, expected)
	}
	return nil
}

func PutU16(v uint16) []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, v)
	return out
}

func PutU32(v uint32) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, v)
	return out
}

func PutU64(v uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return out
}

func PutI64(v int64) []byte {
	return PutU64(uint64(v))
}

func PutBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// PutStrings encodes a string list as repeated (u32 length, bytes) entries.
// Empty entries are preserved so positional meaning survives the wire.
func PutStrings(v []string) []byte {
	size := 0
	for _, s := range v {
		size += 4 + len(s)
	}
	out := make([]byte, 0, size)
	for _, s := range v {
		out = append(out, PutU32(uint32(len(s)))...)
		out = append(out, s...)
	}
	return out
}

func U16FromBytes(b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, fmt.Errorf("%w: u16 length %d", ErrInvalidLength, len(b))
	}
	return binary.BigEndian.Uint16(b), nil
}

func U32FromBytes(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("%w: u32 length %d", ErrInvalidLength, len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

func U64FromBytes(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: u64 length %d", ErrInvalidLength, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func I64FromBytes(b []byte) (int64, error) {
	v, err := U64FromBytes(b)
	return int64(v), err
}

func BoolFromBytes(b []byte) (bool, error) {
	if len(b) != 1 {
		return false, fmt.Errorf("%w: bool length %d", ErrInvalidLength, len(b))
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: bool value %d", ErrInvalidLength, b[0])
	}
}

func StringsFromBytes(b []byte) ([]string, error) {
	out := make([]string, 0)
	for i := 0; i < len(b); {
		if len(b)-i < 4 {
			return nil, ErrShortFieldHeader
		}
		l := binary.BigEndian.Uint32(b[i : i+4])
		i += 4
		if uint32(len(b)-i) < l {
			return nil, ErrShortFieldValue
		}
		out = append(out, string(b[i:i+int(l)]))
		i += int(l)
	}
	return out, nil
}

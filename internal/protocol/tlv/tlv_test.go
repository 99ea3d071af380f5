package tlv

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestEncodeDecodeFieldsRoundTripPreservesUnknown(t *testing.T) {
	in := []Field{
		{ID: 1, Type: TypeString, Value: []byte("command_text")},
		{ID: 9999, Type: TypeBytes, Value: []byte{0xAA, 0xBB}},
	}
	b := EncodeFields(in)
	out, err := DecodeFields(b)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(out))
	}
	if out[1].ID != 9999 || out[1].Type != TypeBytes || !bytes.Equal(out[1].Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("unknown field not preserved: %+v", out[1])
	}
}

func TestDecodeFieldsMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := DecodeFields([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
}

func TestDecodeFieldsMalformedLengthIsDeterministic(t *testing.T) {
	// id=1, type=string, len=5, value only 2 bytes
	payload := []byte{0, 1, TypeString, 0, 0, 0, 5, 'a', 'b'}
	_, err := DecodeFields(payload)
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}

func TestStringsKeepBlankEntries(t *testing.T) {
	in := []string{"+111", "", "  ", "Bob <+222>"}
	out, err := StringsFromBytes(PutStrings(in))
	if err != nil {
		t.Fatalf("decode strings: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("strings mismatch: got=%q want=%q", out, in)
	}
}

func TestStringsTruncated(t *testing.T) {
	b := PutStrings([]string{"hello"})
	if _, err := StringsFromBytes(b[:len(b)-1]); !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}

func TestI64PreservesSentinel(t *testing.T) {
	for _, v := range []int64{-1, 0, 1700000000} {
		got, err := I64FromBytes(PutI64(v))
		if err != nil || got != v {
			t.Fatalf("i64 round trip: got=%d err=%v want=%d", got, err, v)
		}
	}
}

func TestBoolRejectsOtherBytes(t *testing.T) {
	if _, err := BoolFromBytes([]byte{2}); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	if _, err := U32FromBytes([]byte{1, 2}); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

package parcel

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriterLayoutIsLittleEndianAndPadded(t *testing.T) {
	w := NewWriter()
	w.WriteInt32(0x01020304)
	w.WriteString("ab")
	want := []byte{
		4, 3, 2, 1,
		2, 0, 0, 0,
		'a', 0, 'b', 0, 0, 0, 0, 0,
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("unexpected layout:\n got=%v\nwant=%v", w.Bytes(), want)
	}
}

func TestReaderDecodesWriterFields(t *testing.T) {
	w := NewWriter()
	w.WriteInt32(-7)
	w.WriteInt32s([]int32{1, 2, 3})
	w.WriteStrings([]string{"rild", "båseband"})
	w.WriteNullString()
	w.WriteByteArray([]byte{0xde, 0xad, 0xbe})
	w.WriteByteArray(nil)
	w.WriteInt64(1 << 40)

	r := NewReader(w.Bytes())
	if v, err := r.Int32(); err != nil || v != -7 {
		t.Fatalf("int32 got=%d err=%v", v, err)
	}
	ints, err := r.Int32s()
	if err != nil || len(ints) != 3 || ints[2] != 3 {
		t.Fatalf("int32s got=%v err=%v", ints, err)
	}
	strs, err := r.Strings()
	if err != nil || len(strs) != 2 || strs[1] != "båseband" {
		t.Fatalf("strings got=%v err=%v", strs, err)
	}
	if s, ok, err := r.NullableString(); err != nil || ok || s != "" {
		t.Fatalf("null string got=%q ok=%v err=%v", s, ok, err)
	}
	b, err := r.ByteArray()
	if err != nil || !bytes.Equal(b, []byte{0xde, 0xad, 0xbe}) {
		t.Fatalf("byte array got=%v err=%v", b, err)
	}
	if b, err := r.ByteArray(); err != nil || b != nil {
		t.Fatalf("nil byte array got=%v err=%v", b, err)
	}
	if v, err := r.Int64(); err != nil || v != 1<<40 {
		t.Fatalf("int64 got=%d err=%v", v, err)
	}
	if err := r.Done(); err != nil {
		t.Fatalf("done: %v", err)
	}
}

func TestReaderShortRead(t *testing.T) {
	r := NewReader([]byte{1, 0})
	if _, err := r.Int32(); !errors.Is(err, ErrShortRead) {
		t.Fatalf("expected ErrShortRead, got %v", err)
	}
}

func TestReaderRejectsHostileLengths(t *testing.T) {
	w := NewWriter()
	w.WriteInt32(-5)
	if _, err := NewReader(w.Bytes()).Int32s(); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	w.Reset()
	w.WriteInt32(1 << 30)
	if _, err := NewReader(w.Bytes()).String(); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength for string, got %v", err)
	}
}

func TestDoneReportsTrailingBytes(t *testing.T) {
	w := NewWriter()
	w.WriteInt32(1)
	w.WriteInt32(2)
	r := NewReader(w.Bytes())
	_, _ = r.Int32()
	if err := r.Done(); !errors.Is(err, ErrTrailingFields) {
		t.Fatalf("expected ErrTrailingFields, got %v", err)
	}
}

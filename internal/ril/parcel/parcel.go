// Package parcel reads and writes the field encoding used inside frame
// payloads: little-endian int32 words, length-prefixed UTF-16 strings and
// byte arrays, every field padded to a 4-byte boundary.
package parcel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

const wordLen = 4

// maxElements bounds array and string lengths read from the wire.
const maxElements = 1 << 16

var (
	ErrShortRead      = errors.New("parcel: short read")
	ErrInvalidLength  = errors.New("parcel: invalid length")
	ErrTrailingFields = errors.New("parcel: unexpected trailing bytes")
)

// Writer appends fields to an in-memory payload.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Reset() { w.buf = w.buf[:0] }

func (w *Writer) WriteInt32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteInt64(v int64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
}

// WriteInt32s writes a count followed by each value.
func (w *Writer) WriteInt32s(vs []int32) {
	w.WriteInt32(int32(len(vs)))
	for _, v := range vs {
		w.WriteInt32(v)
	}
}

// WriteString writes a UTF-16 string: code unit count, units, a NUL unit, padding.
func (w *Writer) WriteString(s string) {
	units := utf16.Encode([]rune(s))
	w.WriteInt32(int32(len(units)))
	for _, u := range units {
		w.buf = binary.LittleEndian.AppendUint16(w.buf, u)
	}
	w.buf = binary.LittleEndian.AppendUint16(w.buf, 0)
	w.pad()
}

// WriteNullString writes the null-string marker.
func (w *Writer) WriteNullString() {
	w.WriteInt32(-1)
}

func (w *Writer) WriteStrings(ss []string) {
	w.WriteInt32(int32(len(ss)))
	for _, s := range ss {
		w.WriteString(s)
	}
}

// WriteByteArray writes a length-prefixed byte array; nil writes -1.
func (w *Writer) WriteByteArray(b []byte) {
	if b == nil {
		w.WriteInt32(-1)
		return
	}
	w.WriteInt32(int32(len(b)))
	w.buf = append(w.buf, b...)
	w.pad()
}

// WriteRaw appends bytes without a length prefix or padding.
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) pad() {
	for len(w.buf)%wordLen != 0 {
		w.buf = append(w.buf, 0)
	}
}

// Reader consumes fields from a payload.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) Offset() int { return r.off }

// Rest returns the unread bytes without consuming them.
func (r *Reader) Rest() []byte { return r.buf[r.off:] }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d have %d at offset %d", ErrShortRead, n, r.Remaining(), r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) skipPad() {
	for r.off%wordLen != 0 && r.off < len(r.buf) {
		r.off++
	}
}

func (r *Reader) Int32() (int32, error) {
	b, err := r.take(wordLen)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *Reader) Uint32() (uint32, error) {
	v, err := r.Int32()
	return uint32(v), err
}

func (r *Reader) Int64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (r *Reader) count() (int, error) {
	n, err := r.Int32()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > maxElements {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	return int(n), nil
}

func (r *Reader) Int32s() ([]int32, error) {
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		if out[i], err = r.Int32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// String reads a UTF-16 string; the null marker reads as "".
func (r *Reader) String() (string, error) {
	s, _, err := r.NullableString()
	return s, err
}

// NullableString reads a UTF-16 string and reports whether it was non-null.
func (r *Reader) NullableString() (string, bool, error) {
	n, err := r.Int32()
	if err != nil {
		return "", false, err
	}
	if n == -1 {
		return "", false, nil
	}
	if n < 0 || n > maxElements {
		return "", false, fmt.Errorf("%w: string length %d", ErrInvalidLength, n)
	}
	b, err := r.take((int(n) + 1) * 2)
	if err != nil {
		return "", false, err
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	r.skipPad()
	return string(utf16.Decode(units)), true, nil
}

func (r *Reader) Strings() ([]string, error) {
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = r.String(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ByteArray reads a length-prefixed byte array; -1 reads as nil.
func (r *Reader) ByteArray() ([]byte, error) {
	n, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	if n < 0 || n > maxElements {
		return nil, fmt.Errorf("%w: byte array length %d", ErrInvalidLength, n)
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	r.skipPad()
	return out, nil
}

// Done returns ErrTrailingFields if unread bytes remain.
func (r *Reader) Done() error {
	if r.Remaining() != 0 {
		return fmt.Errorf("%w: %d", ErrTrailingFields, r.Remaining())
	}
	return nil
}

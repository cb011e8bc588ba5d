package codec

import (
	"github.com/danmuck/rilbridge/internal/ril/parcel"
)

// Raw returns the unread body bytes.
func Raw(r *parcel.Reader) (any, error) {
	rest := r.Rest()
	out := make([]byte, len(rest))
	copy(out, rest)
	return out, nil
}

// Void expects an empty body.
func Void(r *parcel.Reader) (any, error) {
	return nil, r.Done()
}

// Ints reads a counted int32 array.
func Ints(r *parcel.Reader) (any, error) {
	return r.Int32s()
}

// String reads a single string.
func String(r *parcel.Reader) (any, error) {
	return r.String()
}

// Strings reads a counted string array.
func Strings(r *parcel.Reader) (any, error) {
	return r.Strings()
}

// Int32s encodes a counted int32 array.
func Int32s(vs ...int32) Encoder {
	return func(w *parcel.Writer) error {
		w.WriteInt32s(vs)
		return nil
	}
}

// StringArgs encodes a counted string array.
func StringArgs(ss ...string) Encoder {
	return func(w *parcel.Writer) error {
		w.WriteStrings(ss)
		return nil
	}
}

// RawArgs appends b verbatim.
func RawArgs(b []byte) Encoder {
	return func(w *parcel.Writer) error {
		w.WriteRaw(b)
		return nil
	}
}

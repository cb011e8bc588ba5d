// Package frame owns the length-prefixed stream framing spoken with the modem daemon:
// a 4-byte big-endian payload length followed by the payload bytes.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	HeaderLen uint32 = 4

	// DefaultMaxPayloadBytes is the daemon's command buffer size.
	DefaultMaxPayloadBytes uint32 = 8 * 1024
)

var (
	ErrShortHeader     = errors.New("frame: short length header")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrShortPayload    = errors.New("frame: short payload")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: DefaultMaxPayloadBytes}
}

func (l Limits) withDefaults() Limits {
	if l.MaxPayloadBytes == 0 {
		l.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	return l
}

// Encode returns header+payload as one buffer so a single Write puts the whole
// frame on the wire.
func Encode(payload []byte, limits Limits) ([]byte, error) {
	limits = limits.withDefaults()
	if uint64(len(payload)) > uint64(limits.MaxPayloadBytes) {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), limits.MaxPayloadBytes)
	}
	buf := make([]byte, int(HeaderLen)+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	copy(buf[4:], payload)
	return buf, nil
}

func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	buf, err := Encode(payload, limits)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadFrame blocks until one complete payload is read.
//
// A clean end of stream before any header byte returns io.EOF. A payload
// larger than the limit is drained from the stream before ErrPayloadTooLarge
// is returned, so the next call starts on a frame boundary.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	limits = limits.withDefaults()
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortHeader
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > limits.MaxPayloadBytes {
		if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
			return nil, fmt.Errorf("%w: discard: %v", ErrShortPayload, err)
		}
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, n, limits.MaxPayloadBytes)
	}
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, ErrShortPayload
			}
			return nil, err
		}
	}
	return payload, nil
}

// Recoverable reports whether the stream is still aligned after err.
func Recoverable(err error) bool {
	return errors.Is(err, ErrPayloadTooLarge)
}

package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0, 0, 0, 0, 7, 0, 0, 0}
	if err := WriteFrame(&buf, payload, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if got := buf.Bytes()[:4]; !bytes.Equal(got, []byte{0, 0, 0, 8}) {
		t.Fatalf("length prefix not big-endian: %v", got)
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("payload mismatch: %v", out)
	}
	if _, err := ReadFrame(&buf, DefaultLimits()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	limits := Limits{MaxPayloadBytes: 16}
	if _, err := Encode(make([]byte, 17), limits); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if _, err := Encode(make([]byte, 16), limits); err != nil {
		t.Fatalf("payload at limit should encode: %v", err)
	}
}

func TestReadFrameShortHeaderIsDeterministic(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameShortPayload(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 4, 1, 2}), DefaultLimits())
	if !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}

func TestReadFrameOversizedKeepsStreamAligned(t *testing.T) {
	limits := Limits{MaxPayloadBytes: 4}
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 6, 9, 9, 9, 9, 9, 9})
	if err := WriteFrame(&buf, []byte{1, 2, 3}, limits); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	_, err := ReadFrame(&buf, limits)
	if !errors.Is(err, ErrPayloadTooLarge) || !Recoverable(err) {
		t.Fatalf("expected recoverable ErrPayloadTooLarge, got %v", err)
	}
	out, err := ReadFrame(&buf, limits)
	if err != nil {
		t.Fatalf("read after oversized: %v", err)
	}
	if !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Fatalf("next frame misaligned: %v", out)
	}
}

func TestEmptyPayloadFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil, DefaultLimits()); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil || len(out) != 0 {
		t.Fatalf("unexpected empty frame read: %v %v", out, err)
	}
}

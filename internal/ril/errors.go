package ril

import (
	"errors"
	"fmt"
)

var (
	ErrNotAvailable     = errors.New("ril: radio not available")
	ErrTimeout          = errors.New("ril: request timed out")
	ErrMalformedReply   = errors.New("ril: malformed reply")
	ErrOversizedRequest = errors.New("ril: request exceeds max frame size")
	ErrIO               = errors.New("ril: transport write failed")
	ErrEncode           = errors.New("ril: request encoding failed")
)

// RadioError is a non-zero status reported by the daemon for one request.
type RadioError struct {
	Code   int32
	Status int32
}

func (e *RadioError) Error() string {
	return fmt.Sprintf("ril: command %d failed with status %d", e.Code, e.Status)
}

// IsRadioError reports whether err carries a daemon status and returns it.
func IsRadioError(err error) (*RadioError, bool) {
	var re *RadioError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

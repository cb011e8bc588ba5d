package ril

import (
	"fmt"
	"time"
)

// Kind is the leading int32 of every payload read from the daemon.
type Kind int32

const (
	KindSolicited         Kind = 0
	KindUnsolicited       Kind = 1
	KindSolicitedAck      Kind = 2
	KindSolicitedAckExp   Kind = 3
	KindUnsolicitedAckExp Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindSolicited:
		return "solicited"
	case KindUnsolicited:
		return "unsolicited"
	case KindSolicitedAck:
		return "solicited_ack"
	case KindSolicitedAckExp:
		return "solicited_ack_exp"
	case KindUnsolicitedAckExp:
		return "unsolicited_ack_exp"
	default:
		return fmt.Sprintf("kind(%d)", int32(k))
	}
}

// Solicited reports whether the frame carries a reply correlated by serial.
func (k Kind) Solicited() bool {
	return k == KindSolicited || k == KindSolicitedAckExp
}

// Unsolicited reports whether the frame carries a spontaneous event.
func (k Kind) Unsolicited() bool {
	return k == KindUnsolicited || k == KindUnsolicitedAckExp
}

// WantsAck reports whether the daemon expects an ack frame back.
func (k Kind) WantsAck() bool {
	return k == KindSolicitedAckExp || k == KindUnsolicitedAckExp
}

// Command codes the transport references directly. Everything else is opaque.
const (
	RequestSignalStrength  int32 = 19
	RequestRadioPower      int32 = 23
	RequestBasebandVersion int32 = 51
	RequestGetActivityInfo int32 = 135
	RequestResponseAck     int32 = 800
	UnsolRadioStateChanged int32 = 1000
	UnsolNITZTimeReceived  int32 = 1008
	UnsolSignalStrength    int32 = 1009
	UnsolRILConnected      int32 = 1034
)

// AckMinVersion is the first daemon protocol version that speaks the ack sub-protocol.
const AckMinVersion int32 = 13

// Reply is a decoded solicited response.
type Reply struct {
	Serial  uint32
	Code    int32
	Status  int32
	Value   any
	Latency time.Duration
	// Synthetic is set when the reply was produced locally by a blocking-call fallback.
	Synthetic bool
}

// Result is what a request's sink receives exactly once.
type Result struct {
	Reply Reply
	Err   error
}

// Event is a decoded unsolicited message.
type Event struct {
	Code       int32
	Value      any
	ReceivedAt time.Time
}

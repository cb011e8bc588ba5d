package ril

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindClassification(t *testing.T) {
	if !KindSolicited.Solicited() || !KindSolicitedAckExp.Solicited() {
		t.Fatalf("solicited kinds misclassified")
	}
	if KindSolicitedAck.Solicited() || KindSolicitedAck.Unsolicited() {
		t.Fatalf("solicited ack must be neither reply nor event")
	}
	if !KindUnsolicited.Unsolicited() || !KindUnsolicitedAckExp.Unsolicited() {
		t.Fatalf("unsolicited kinds misclassified")
	}
	if KindSolicited.WantsAck() || !KindSolicitedAckExp.WantsAck() || !KindUnsolicitedAckExp.WantsAck() {
		t.Fatalf("ack expectation misclassified")
	}
	if got := Kind(9).String(); got != "kind(9)" {
		t.Fatalf("unexpected unknown kind string: %q", got)
	}
}

func TestRadioErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &RadioError{Code: 51, Status: 2})
	re, ok := IsRadioError(err)
	if !ok || re.Status != 2 || re.Code != 51 {
		t.Fatalf("expected radio error, got %v", err)
	}
	if _, ok := IsRadioError(errors.New("plain")); ok {
		t.Fatalf("plain error should not match")
	}
}

package clock_test

import (
	"testing"
	"time"

	"github.com/danmuck/rilbridge/internal/clock"
)

func TestManualAdvanceRunsDueCallbacksInOrder(t *testing.T) {
	m := clock.NewManual(time.Unix(1700000000, 0))
	var order []int
	m.AfterFunc(2*time.Second, func() { order = append(order, 2) })
	m.AfterFunc(time.Second, func() { order = append(order, 1) })
	m.AfterFunc(10*time.Second, func() { order = append(order, 10) })

	m.Advance(3 * time.Second)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected order: %v", order)
	}
	if m.Pending() != 1 {
		t.Fatalf("expected one pending timer, got %d", m.Pending())
	}
}

func TestManualStopPreventsCallback(t *testing.T) {
	m := clock.NewManual(time.Unix(1700000000, 0))
	fired := false
	timer := m.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatalf("expected first stop to succeed")
	}
	if timer.Stop() {
		t.Fatalf("expected second stop to report false")
	}
	m.Advance(time.Minute)
	if fired {
		t.Fatalf("stopped timer fired")
	}
}

func TestManualFireSelectsByScheduleOrder(t *testing.T) {
	m := clock.NewManual(time.Unix(1700000000, 0))
	var got []string
	m.AfterFunc(time.Minute, func() { got = append(got, "first") })
	m.AfterFunc(time.Minute, func() { got = append(got, "second") })
	if !m.Fire(1) {
		t.Fatalf("expected fire to succeed")
	}
	if len(got) != 1 || got[0] != "second" {
		t.Fatalf("unexpected fired callbacks: %v", got)
	}
	if m.Fire(5) {
		t.Fatalf("out of range fire should report false")
	}
}

func TestRealAfterFuncRuns(t *testing.T) {
	done := make(chan struct{})
	clock.Real{}.AfterFunc(5*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AfterFunc did not trigger")
	}
}

package transport

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/rilbridge/internal/clock"
	"github.com/danmuck/rilbridge/internal/ril"
	"github.com/danmuck/rilbridge/internal/ril/codec"
	"github.com/danmuck/rilbridge/internal/ril/mockmodem"
	"github.com/danmuck/rilbridge/internal/ril/parcel"
)

const (
	testCode      int32 = 42
	testProbeCode int32 = 43
	testIntsCode  int32 = 45
	testWait            = 2 * time.Second
)

type harness struct {
	tr     *Transport
	modem  *mockmodem.Modem
	clk    *clock.Manual
	cancel context.CancelFunc
	done   chan error
	once   sync.Once
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SocketDir = "/nonexistent"
	cfg.ReconnectInterval = 5 * time.Millisecond
	cfg.WriteTimeout = testWait
	return cfg
}

func testCodecs() *codec.Table {
	tbl := codec.Default()
	tbl.RegisterCommand(codec.Command{Code: testCode, Name: "TEST_STRING", Decode: codec.String})
	tbl.RegisterCommand(codec.Command{Code: testProbeCode, Name: "TEST_PROBE", Decode: codec.Void})
	tbl.RegisterCommand(codec.Command{Code: testIntsCode, Name: "TEST_INTS", Decode: codec.Ints})
	return tbl
}

// startHarness runs a transport against an in-memory modem and waits for the
// first connection. The probe code always gets an empty success reply.
func startHarness(t *testing.T, cfg Config, mopts mockmodem.Options, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		modem: mockmodem.New(mopts),
		clk:   clock.NewManual(time.Unix(1700000000, 0)),
		done:  make(chan error, 1),
	}
	h.modem.Handle(testProbeCode, func(mockmodem.Request) mockmodem.Response {
		return mockmodem.Response{}
	})
	base := []Option{
		WithDialer(h.modem.Dialer()),
		WithCodecs(testCodecs()),
		WithScheduler(h.clk),
	}
	tr, err := New(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	h.tr = tr

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		h.done <- tr.Run(ctx)
	}()
	t.Cleanup(h.stop)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), testWait)
	defer waitCancel()
	if err := tr.WaitState(waitCtx, StateConnected); err != nil {
		t.Fatalf("wait connected: %v", err)
	}
	if mopts.Version > 0 {
		eventually(t, func() bool { return tr.Version() == mopts.Version })
	}
	return h
}

func (h *harness) stop() {
	h.once.Do(func() {
		h.cancel()
		select {
		case <-h.done:
		case <-time.After(testWait):
		}
	})
}

// probe does one full round trip. The receiver handles frames in order, so
// everything the modem sent before the probe reply has been dispatched.
func (h *harness) probe(t *testing.T) {
	t.Helper()
	if _, err := wait(t, h.tr.Go(testProbeCode, nil)); err != nil {
		t.Fatalf("probe: %v", err)
	}
}

func (h *harness) nextRequest(t *testing.T) mockmodem.Request {
	t.Helper()
	select {
	case req := <-h.modem.Requests():
		return req
	case <-time.After(testWait):
		t.Fatalf("modem saw no request")
		return mockmodem.Request{}
	}
}

func wait(t *testing.T, call *Call) (ril.Reply, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testWait)
	defer cancel()
	reply, err := call.Wait(ctx)
	if err == context.DeadlineExceeded {
		t.Fatalf("call serial=%08x code=%d never completed", call.Serial, call.Code)
	}
	return reply, err
}

func expectNoResult(t *testing.T, call *Call) {
	t.Helper()
	select {
	case res := <-call.Done():
		t.Fatalf("unexpected second result for serial=%08x: %+v", call.Serial, res)
	case <-time.After(20 * time.Millisecond):
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testWait)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", testWait)
}

func stringBody(s string) []byte {
	w := parcel.NewWriter()
	w.WriteString(s)
	return w.Bytes()
}

func intsBody(vs ...int32) []byte {
	w := parcel.NewWriter()
	w.WriteInt32s(vs)
	return w.Bytes()
}

// failingConn accepts reads but fails every write.
type failingConn struct {
	net.Conn
}

func (c failingConn) Write([]byte) (int, error) {
	return 0, net.ErrClosed
}

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/rs/xid"

	logs "github.com/danmuck/rilbridge/internal/logging"
	"github.com/danmuck/rilbridge/internal/observability"
	"github.com/danmuck/rilbridge/internal/ril"
	"github.com/danmuck/rilbridge/internal/ril/frame"
	"github.com/danmuck/rilbridge/internal/ril/powerlock"
)

func (t *Transport) dialUnix(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: t.cfg.ConnectTimeout}
	return d.DialContext(ctx, "unix", t.cfg.SocketPath())
}

// runReceiver owns the connection lifecycle: connect, read until the stream
// breaks, fail everything outstanding, then connect again.
func (t *Transport) runReceiver(ctx context.Context) error {
	failures := 0
	for {
		conn, err := t.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			observability.RecordConnectAttempt(t.name, false)
			t.logConnectFailure(failures, err)
			if err := t.waitReconnect(ctx); err != nil {
				return err
			}
			continue
		}
		observability.RecordConnectAttempt(t.name, true)
		failures = 0

		err = t.serve(ctx, conn)
		t.disconnect(err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (t *Transport) logConnectFailure(failures int, err error) {
	threshold := t.cfg.ConnectLogThreshold
	switch {
	case failures < threshold:
		logs.Infof("transport.Transport.connect socket=%q attempt=%d err=%v", t.cfg.SocketPath(), failures, err)
	case failures == threshold:
		logs.Warnf("transport.Transport.connect socket=%q attempt=%d err=%v; further failures logged at debug", t.cfg.SocketPath(), failures, err)
	default:
		logs.Debugf("transport.Transport.connect socket=%q attempt=%d err=%v", t.cfg.SocketPath(), failures, err)
	}
}

func (t *Transport) waitReconnect(ctx context.Context) error {
	timer := time.NewTimer(t.cfg.ReconnectInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// serve publishes conn as the live connection and reads frames until the
// stream fails. Oversized frames are skipped; the stream stays aligned.
func (t *Transport) serve(ctx context.Context, conn net.Conn) error {
	id := xid.New().String()
	t.attach(conn, id)
	logs.Infof("transport.Transport.serve socket=%q conn=%s connected", t.name, id)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()
	defer conn.Close()

	limits := t.cfg.limits()
	for {
		payload, err := frame.ReadFrame(conn, limits)
		if err != nil {
			if frame.Recoverable(err) {
				logs.Warnf("transport.Transport.serve socket=%q conn=%s discarded frame: %v", t.name, id, err)
				observability.RecordFrame(t.name, "in", "discarded")
				continue
			}
			return err
		}
		t.dispatch(payload)
	}
}

// disconnect fails every outstanding request with ril.ErrNotAvailable and
// returns the transport to its pre-connect state.
func (t *Transport) disconnect(cause error) {
	drained := t.reg.DrainAll()
	t.version.Store(0)
	t.serials.Reset()
	_, id, _ := t.currentConn()
	t.detach()

	for _, req := range drained {
		t.complete(req, ril.Result{Err: ril.ErrNotAvailable}, "not_available")
	}
	t.locks.Clear(powerlock.KindRequest)

	switch {
	case cause == nil, errors.Is(cause, io.EOF), errors.Is(cause, net.ErrClosed):
		logs.Warnf("transport.Transport.disconnect socket=%q conn=%s closed failed=%d", t.name, id, len(drained))
	default:
		logs.Warnf("transport.Transport.disconnect socket=%q conn=%s failed=%d err=%v", t.name, id, len(drained), cause)
	}
}

package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	logs "github.com/danmuck/rilbridge/internal/logging"
	"github.com/danmuck/rilbridge/internal/observability"
	"github.com/danmuck/rilbridge/internal/ril"
	"github.com/danmuck/rilbridge/internal/ril/powerlock"
)

// runSender is the only writer to the socket. It drains the outbox in order.
func (t *Transport) runSender(ctx context.Context) error {
	for {
		m, ok := t.out.next(ctx)
		if !ok {
			return ctx.Err()
		}
		switch m.kind {
		case outAck:
			t.sendAck(m)
		default:
			t.sendCommand(m)
		}
	}
}

func (t *Transport) sendCommand(m outMsg) {
	conn, id, epoch := t.currentConn()
	if m.epoch != epoch {
		// Queued before a disconnect; the drain already failed the request.
		logs.Debugf("transport.Transport.sendCommand socket=%q serial=%08x stale epoch=%d current=%d", t.name, m.serial, m.epoch, epoch)
		return
	}
	if conn == nil {
		t.failSend(m, ril.ErrNotAvailable, "not_available")
		return
	}
	if err := t.write(conn, m.frame); err != nil {
		logs.Warnf("transport.Transport.sendCommand socket=%q conn=%s serial=%08x code=%d err=%v", t.name, id, m.serial, m.code, err)
		t.failSend(m, fmt.Errorf("%w: %v", ril.ErrIO, err), "io_error")
		return
	}
	observability.RecordFrame(t.name, "out", "request")
}

// failSend completes a command locally if no reply or drain got to it first.
func (t *Transport) failSend(m outMsg, err error, outcome string) {
	req, ok := t.reg.Take(m.serial)
	if !ok {
		return
	}
	t.complete(req, ril.Result{Err: err}, outcome)
}

// sendAck writes one ack frame under the ack lock. Release is a no-op for
// ack locks; the hold lapses on its own timeout.
func (t *Transport) sendAck(m outMsg) {
	var tok powerlock.Token
	t.locks.Acquire(&tok, powerlock.KindAck)
	defer t.locks.Release(&tok)

	conn, id, epoch := t.currentConn()
	if conn == nil || m.epoch != epoch {
		logs.Debugf("transport.Transport.sendAck socket=%q serial=%08x dropped, connection gone", t.name, m.serial)
		return
	}
	if err := t.write(conn, m.frame); err != nil {
		logs.Warnf("transport.Transport.sendAck socket=%q conn=%s err=%v", t.name, id, err)
		return
	}
	observability.RecordFrame(t.name, "out", ril.KindSolicitedAck.String())
}

func (t *Transport) write(conn net.Conn, b []byte) error {
	if t.cfg.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	_, err := conn.Write(b)
	return err
}

package transport

import (
	"fmt"

	logs "github.com/danmuck/rilbridge/internal/logging"
	"github.com/danmuck/rilbridge/internal/observability"
	"github.com/danmuck/rilbridge/internal/ril"
	"github.com/danmuck/rilbridge/internal/ril/codec"
	"github.com/danmuck/rilbridge/internal/ril/parcel"
)

// dispatch classifies one inbound payload. A bad payload only affects itself.
func (t *Transport) dispatch(payload []byte) {
	r := parcel.NewReader(payload)
	raw, err := r.Int32()
	if err != nil {
		logs.Warnf("transport.Transport.dispatch socket=%q short payload len=%d", t.name, len(payload))
		observability.RecordFrame(t.name, "in", "malformed")
		return
	}
	kind := ril.Kind(raw)
	switch {
	case kind == ril.KindSolicitedAck:
		t.handleDaemonAck(r)
	case kind.Solicited():
		t.handleReply(kind, r)
	case kind.Unsolicited():
		t.handleEvent(kind, r)
	default:
		logs.Warnf("transport.Transport.dispatch socket=%q unknown kind=%d", t.name, raw)
		observability.RecordFrame(t.name, "in", "unknown")
		return
	}
	observability.RecordFrame(t.name, "in", kind.String())
}

// handleDaemonAck handles the daemon confirming receipt of a request whose
// reply will come later. The request lock hold is dropped early; the request
// itself stays pending.
func (t *Transport) handleDaemonAck(r *parcel.Reader) {
	serial, err := r.Uint32()
	if err != nil {
		logs.Warnf("transport.Transport.handleDaemonAck socket=%q malformed: %v", t.name, err)
		return
	}
	tok, ok := t.reg.DetachLock(serial)
	if !ok {
		logs.Debugf("transport.Transport.handleDaemonAck socket=%q serial=%08x unmatched", t.name, serial)
		return
	}
	t.locks.Release(&tok)
}

func (t *Transport) handleReply(kind ril.Kind, r *parcel.Reader) {
	serial, err := r.Uint32()
	if err != nil {
		logs.Warnf("transport.Transport.handleReply socket=%q missing serial: %v", t.name, err)
		return
	}
	status, err := r.Int32()
	if err != nil {
		logs.Warnf("transport.Transport.handleReply socket=%q serial=%08x missing status: %v", t.name, serial, err)
		return
	}

	req, ok := t.reg.Take(serial)
	if !ok {
		logs.Debugf("transport.Transport.handleReply socket=%q serial=%08x unmatched, already completed", t.name, serial)
		observability.RecordUnmatchedReply(t.name)
		return
	}
	if kind.WantsAck() {
		t.ack(serial)
	}

	cmd := t.codecs.Command(req.Code)
	var value any
	var decodeErr error
	if status == 0 || r.Remaining() > 0 {
		value, decodeErr = cmd.Decode(r)
	}

	res := ril.Result{Reply: ril.Reply{Status: status}}
	outcome := "ok"
	switch {
	case status != 0:
		res.Err = &ril.RadioError{Code: req.Code, Status: status}
		if decodeErr == nil {
			res.Reply.Value = value
		}
		outcome = "radio_error"
	case decodeErr != nil:
		res.Err = fmt.Errorf("%w: %s: %v", ril.ErrMalformedReply, cmd.Name, decodeErr)
		outcome = "malformed"
		logs.Warnf("transport.Transport.handleReply socket=%q %s: %v", t.name, req, res.Err)
	default:
		res.Reply.Value = value
	}
	t.complete(req, res, outcome)
}

func (t *Transport) handleEvent(kind ril.Kind, r *parcel.Reader) {
	code, err := r.Int32()
	if err != nil {
		logs.Warnf("transport.Transport.handleEvent socket=%q missing code: %v", t.name, err)
		return
	}
	if kind.WantsAck() {
		t.ack(0)
	}

	ev := t.codecs.Event(code)
	value, err := ev.Decode(r)
	if err != nil {
		logs.Warnf("transport.Transport.handleEvent socket=%q %s malformed: %v", t.name, ev.Name, err)
		return
	}
	if code == ril.UnsolRILConnected {
		if v, ok := codec.ConnectedVersion(value); ok {
			t.version.Store(v)
			logs.Infof("transport.Transport.handleEvent socket=%q daemon version=%d acks=%t", t.name, v, v >= t.cfg.AckMinVersion)
		}
	}

	_, dropped := t.subs.publish(ril.Event{Code: code, Value: value, ReceivedAt: t.sched.Now()})
	for i := 0; i < dropped; i++ {
		observability.RecordDroppedEvent(t.name, code)
	}
	logs.Tracef("transport.Transport.handleEvent socket=%q %s dropped=%d", t.name, ev.Name, dropped)
}

// ack queues an ack frame when the daemon's version speaks the ack protocol.
// Older daemons get nothing, as if no ack was requested.
func (t *Transport) ack(serial uint32) {
	if t.version.Load() < t.cfg.AckMinVersion {
		return
	}
	_, _, epoch := t.currentConn()
	t.out.push(outMsg{kind: outAck, serial: serial, frame: t.ackFrame, epoch: epoch})
}

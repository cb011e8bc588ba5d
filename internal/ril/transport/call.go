package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	logs "github.com/danmuck/rilbridge/internal/logging"
	"github.com/danmuck/rilbridge/internal/observability"
	"github.com/danmuck/rilbridge/internal/ril"
	"github.com/danmuck/rilbridge/internal/ril/codec"
	"github.com/danmuck/rilbridge/internal/ril/frame"
	"github.com/danmuck/rilbridge/internal/ril/parcel"
	"github.com/danmuck/rilbridge/internal/ril/powerlock"
	"github.com/danmuck/rilbridge/internal/ril/registry"
)

// Call is one submitted command. Its result arrives exactly once on Done.
type Call struct {
	Serial uint32
	Code   int32

	done chan ril.Result
}

// Done yields the single result. The channel is never closed.
func (c *Call) Done() <-chan ril.Result { return c.done }

// Wait blocks for the result. A ctx error abandons the wait, not the request.
func (c *Call) Wait(ctx context.Context) (ril.Reply, error) {
	select {
	case res := <-c.done:
		return res.Reply, res.Err
	case <-ctx.Done():
		return ril.Reply{}, ctx.Err()
	}
}

// Send submits code and waits for its result.
func (t *Transport) Send(ctx context.Context, code int32, enc codec.Encoder) (ril.Reply, error) {
	return t.Go(code, enc).Wait(ctx)
}

// Go encodes and queues a command. The request is registered before it is
// queued so a reply can never beat its registry entry. Failures that happen
// before the wire (no connection, encoding, size) are delivered on Done like
// any other result.
func (t *Transport) Go(code int32, enc codec.Encoder) *Call {
	serial := t.serials.Next()
	call := &Call{Serial: serial, Code: code, done: make(chan ril.Result, 1)}

	w := parcel.NewWriter()
	w.WriteInt32(code)
	w.WriteUint32(serial)
	if enc != nil {
		if err := enc(w); err != nil {
			t.reject(call, fmt.Errorf("%w: code=%d: %v", ril.ErrEncode, code, err), "encode_error")
			return call
		}
	}
	payload, err := frame.Encode(w.Bytes(), t.cfg.limits())
	if err != nil {
		if errors.Is(err, frame.ErrPayloadTooLarge) {
			err = fmt.Errorf("%w: code=%d size=%s max=%s", ril.ErrOversizedRequest, code,
				humanize.IBytes(uint64(w.Len())), humanize.IBytes(uint64(t.cfg.MaxFrameBytes)))
			t.reject(call, err, "oversized")
			return call
		}
		t.reject(call, fmt.Errorf("%w: %v", ril.ErrEncode, err), "encode_error")
		return call
	}

	req := t.reg.Obtain()
	req.Serial = serial
	req.Code = code
	req.CreatedAt = t.sched.Now()
	req.Sink = call.done
	t.locks.Acquire(&req.Lock, powerlock.KindRequest)
	if cmd := t.codecs.Command(code); cmd.Blocking {
		gen := req.Gen
		req.Fallback = t.sched.AfterFunc(t.cfg.BlockingTimeout, func() {
			t.expireBlocking(serial, gen, cmd)
		})
	}

	// Once registered, req may be completed and recycled at any moment.
	epoch, err := t.reg.Register(req)
	if err != nil {
		logs.Debugf("transport.Transport.Go socket=%q serial=%08x code=%d not registered: %v", t.name, serial, code, err)
		t.complete(req, ril.Result{Err: ril.ErrNotAvailable}, "not_available")
		return call
	}
	observability.SetInflight(t.name, t.reg.Len())
	logs.Tracef("transport.Transport.Go socket=%q queued serial=%08x code=%d bytes=%d", t.name, serial, code, len(payload))
	t.out.push(outMsg{kind: outCommand, serial: serial, code: code, frame: payload, epoch: epoch})
	return call
}

// reject completes a call that never reached the registry.
func (t *Transport) reject(call *Call, err error, outcome string) {
	logs.Warnf("transport.Transport.Go socket=%q serial=%08x code=%d rejected: %v", t.name, call.Serial, call.Code, err)
	call.done <- ril.Result{Reply: ril.Reply{Serial: call.Serial, Code: call.Code}, Err: err}
	observability.RecordCompletion(t.name, call.Code, outcome, 0)
}

// complete delivers res for a request the caller now exclusively owns,
// frees its lock hold and recycles the record.
func (t *Transport) complete(req *registry.Request, res ril.Result, outcome string) {
	if req.Fallback != nil {
		req.Fallback.Stop()
	}
	latency := t.sched.Now().Sub(req.CreatedAt)
	res.Reply.Serial = req.Serial
	res.Reply.Code = req.Code
	res.Reply.Latency = latency
	sink, code := req.Sink, req.Code

	if sink != nil {
		select {
		case sink <- res:
		default:
			logs.Errf("transport.Transport.complete socket=%q %s result sink full", t.name, req)
		}
	}
	t.locks.Release(&req.Lock)
	t.reg.Recycle(req)

	observability.RecordCompletion(t.name, code, outcome, latency)
	observability.SetInflight(t.name, t.reg.Len())
}

// expireBlocking completes a blocking command locally when its reply is late.
// serial and gen name the request the timer was armed for; a record that has
// since been completed and reused under another request is left alone.
func (t *Transport) expireBlocking(serial uint32, gen uint64, cmd codec.Command) {
	req, ok := t.reg.Remove(serial, gen)
	if !ok {
		return
	}
	if cmd.Fallback == nil {
		logs.Warnf("transport.Transport.expireBlocking socket=%q %s timed out", t.name, req)
		t.complete(req, ril.Result{Err: ril.ErrTimeout}, "timeout")
		return
	}
	logs.Infof("transport.Transport.expireBlocking socket=%q %s synthesized %s reply", t.name, req, cmd.Name)
	t.complete(req, ril.Result{Reply: ril.Reply{Value: cmd.Fallback(), Synthetic: true}}, "fallback")
}

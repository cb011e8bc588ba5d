// Package mockmodem is an in-process stand-in for the radio daemon. It speaks
// the same framing as the real socket and answers requests from handlers.
package mockmodem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	logs "github.com/danmuck/rilbridge/internal/logging"
	"github.com/danmuck/rilbridge/internal/ril"
	"github.com/danmuck/rilbridge/internal/ril/frame"
	"github.com/danmuck/rilbridge/internal/ril/parcel"
)

var (
	ErrNoConnection = errors.New("mockmodem: no connection")
	ErrUnavailable  = errors.New("mockmodem: daemon unavailable")
)

// Request is one decoded request frame.
type Request struct {
	Code   int32
	Serial uint32
	Body   []byte
}

// Response describes how the modem answers a Request.
type Response struct {
	Status int32
	Body   []byte
	// Kind is KindSolicited or KindSolicitedAckExp; zero means KindSolicited.
	Kind ril.Kind
	// AckFirst sends a receipt ack (kind 2) before the reply.
	AckFirst bool
	Delay    time.Duration
	// Drop leaves the request unanswered.
	Drop bool
}

// Handler answers one request code.
type Handler func(Request) Response

// Options configures a Modem.
type Options struct {
	// Version, when positive, is announced in a connected event on every new connection.
	Version int32
	Limits  frame.Limits
	// QueueSize bounds the Requests channel; requests beyond it are not recorded.
	QueueSize int
}

// Modem serves one connection at a time; a newer connection replaces the old one.
type Modem struct {
	opts Options

	mu       sync.Mutex
	handlers map[int32]Handler
	fallback Handler
	conn     net.Conn

	wmu       sync.Mutex
	requests  chan Request
	acks      atomic.Int64
	accepted  atomic.Int64
	available atomic.Bool
}

func New(opts Options) *Modem {
	if opts.Limits.MaxPayloadBytes == 0 {
		opts.Limits = frame.DefaultLimits()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	m := &Modem{
		opts:     opts,
		handlers: make(map[int32]Handler),
		requests: make(chan Request, opts.QueueSize),
	}
	m.available.Store(true)
	return m
}

// Handle installs h for code.
func (m *Modem) Handle(code int32, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[code] = h
}

// HandleDefault installs h for every code without its own handler. Without
// one, unknown codes are left unanswered.
func (m *Modem) HandleDefault(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = h
}

// Requests yields every request the modem has read, in wire order.
func (m *Modem) Requests() <-chan Request { return m.requests }

// Acks is the number of ack frames received.
func (m *Modem) Acks() int64 { return m.acks.Load() }

// Connections is the number of connections accepted.
func (m *Modem) Connections() int64 { return m.accepted.Load() }

// SetAvailable makes the pipe dialer fail while false.
func (m *Modem) SetAvailable(ok bool) { m.available.Store(ok) }

// Dialer returns an in-memory dialer; each dial starts serving the server end.
func (m *Modem) Dialer() func(ctx context.Context) (net.Conn, error) {
	return func(ctx context.Context) (net.Conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !m.available.Load() {
			return nil, ErrUnavailable
		}
		client, server := net.Pipe()
		m.attach(server)
		go m.serveConn(server)
		return client, nil
	}
}

// ListenAndServe serves the unix socket at path until ctx ends.
func (m *Modem) ListenAndServe(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()
	defer os.Remove(path)
	logs.Infof("mockmodem.Modem.ListenAndServe path=%q", path)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		m.attach(conn)
		go m.serveConn(conn)
	}
}

// Disconnect closes the live connection, as a daemon crash would.
func (m *Modem) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (m *Modem) attach(conn net.Conn) {
	m.mu.Lock()
	old := m.conn
	m.conn = conn
	m.mu.Unlock()
	m.accepted.Add(1)
	if old != nil {
		_ = old.Close()
	}
}

func (m *Modem) serveConn(conn net.Conn) {
	defer conn.Close()
	if m.opts.Version > 0 {
		w := parcel.NewWriter()
		w.WriteInt32s([]int32{m.opts.Version})
		if err := m.writeTo(conn, m.unsolPayload(ril.UnsolRILConnected, w.Bytes(), false)); err != nil {
			return
		}
	}
	for {
		payload, err := frame.ReadFrame(conn, m.opts.Limits)
		if err != nil {
			if frame.Recoverable(err) {
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, net.ErrClosed) {
				logs.Debugf("mockmodem.Modem.serveConn read: %v", err)
			}
			return
		}
		m.handlePayload(conn, payload)
	}
}

func (m *Modem) handlePayload(conn net.Conn, payload []byte) {
	r := parcel.NewReader(payload)
	first, err := r.Int32()
	if err != nil {
		return
	}
	if r.Remaining() == 0 && ril.Kind(first) == ril.KindSolicitedAck {
		m.acks.Add(1)
		return
	}
	serial, err := r.Uint32()
	if err != nil {
		return
	}
	req := Request{Code: first, Serial: serial, Body: append([]byte(nil), r.Rest()...)}
	select {
	case m.requests <- req:
	default:
	}

	m.mu.Lock()
	h, ok := m.handlers[req.Code]
	if !ok {
		h = m.fallback
	}
	m.mu.Unlock()
	if h == nil {
		return
	}
	resp := h(req)
	if resp.Drop {
		return
	}
	if resp.Delay > 0 {
		go func() {
			time.Sleep(resp.Delay)
			m.answer(conn, req, resp)
		}()
		return
	}
	m.answer(conn, req, resp)
}

func (m *Modem) answer(conn net.Conn, req Request, resp Response) {
	if resp.AckFirst {
		w := parcel.NewWriter()
		w.WriteInt32(int32(ril.KindSolicitedAck))
		w.WriteUint32(req.Serial)
		if err := m.writeTo(conn, w.Bytes()); err != nil {
			return
		}
	}
	_ = m.writeTo(conn, replyPayload(resp.Kind, req.Serial, resp.Status, resp.Body))
}

// Reply sends a solicited reply for serial on the live connection.
func (m *Modem) Reply(kind ril.Kind, serial uint32, status int32, body []byte) error {
	return m.Write(replyPayload(kind, serial, status, body))
}

// Unsolicited sends an event; wantAck selects kind 4 over kind 1.
func (m *Modem) Unsolicited(code int32, body []byte, wantAck bool) error {
	return m.Write(m.unsolPayload(code, body, wantAck))
}

// Write frames payload and sends it on the live connection.
func (m *Modem) Write(payload []byte) error {
	conn, err := m.live()
	if err != nil {
		return err
	}
	return m.writeTo(conn, payload)
}

// WriteRaw sends b unframed, for corrupt or oversized frame tests.
func (m *Modem) WriteRaw(b []byte) error {
	conn, err := m.live()
	if err != nil {
		return err
	}
	m.wmu.Lock()
	defer m.wmu.Unlock()
	_, err = conn.Write(b)
	return err
}

func (m *Modem) live() (net.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil, ErrNoConnection
	}
	return m.conn, nil
}

func (m *Modem) writeTo(conn net.Conn, payload []byte) error {
	m.wmu.Lock()
	defer m.wmu.Unlock()
	if err := frame.WriteFrame(conn, payload, m.opts.Limits); err != nil {
		return fmt.Errorf("mockmodem: write: %w", err)
	}
	return nil
}

func (m *Modem) unsolPayload(code int32, body []byte, wantAck bool) []byte {
	kind := ril.KindUnsolicited
	if wantAck {
		kind = ril.KindUnsolicitedAckExp
	}
	w := parcel.NewWriter()
	w.WriteInt32(int32(kind))
	w.WriteInt32(code)
	w.WriteRaw(body)
	return w.Bytes()
}

func replyPayload(kind ril.Kind, serial uint32, status int32, body []byte) []byte {
	if kind != ril.KindSolicitedAckExp {
		kind = ril.KindSolicited
	}
	w := parcel.NewWriter()
	w.WriteInt32(int32(kind))
	w.WriteUint32(serial)
	w.WriteInt32(status)
	w.WriteRaw(body)
	return w.Bytes()
}

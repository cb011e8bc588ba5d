package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/danmuck/rilbridge/internal/clock"
	logs "github.com/danmuck/rilbridge/internal/logging"
	"github.com/danmuck/rilbridge/internal/observability"
	"github.com/danmuck/rilbridge/internal/ril"
	"github.com/danmuck/rilbridge/internal/ril/codec"
	"github.com/danmuck/rilbridge/internal/ril/frame"
	"github.com/danmuck/rilbridge/internal/ril/parcel"
	"github.com/danmuck/rilbridge/internal/ril/powerlock"
	"github.com/danmuck/rilbridge/internal/ril/registry"
	"github.com/danmuck/rilbridge/internal/ril/serial"
)

var (
	ErrAlreadyRunning = errors.New("transport: already running")
	ErrInvalidConfig  = errors.New("transport: invalid config")
)

// State is the connection state.
type State int32

const (
	StateUnavailable State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "unavailable"
}

// Dialer opens one connection to the daemon.
type Dialer func(ctx context.Context) (net.Conn, error)

// Option customises a Transport.
type Option func(*Transport)

func WithDialer(d Dialer) Option {
	return func(t *Transport) {
		if d != nil {
			t.dial = d
		}
	}
}

func WithCodecs(tbl *codec.Table) Option {
	return func(t *Transport) {
		if tbl != nil {
			t.codecs = tbl
		}
	}
}

// WithScheduler drives lock and blocking-call timeouts from sched.
func WithScheduler(sched clock.Scheduler) Option {
	return func(t *Transport) {
		if sched != nil {
			t.sched = sched
		}
	}
}

// WithSerialSeed pins the serial allocator's seed source.
func WithSerialSeed(seed func() uint32) Option {
	return func(t *Transport) {
		t.seed = seed
	}
}

// WithLockResources replaces the physical request and ack wake locks.
func WithLockResources(request, ack powerlock.Resource) Option {
	return func(t *Transport) {
		t.reqRes = request
		t.ackRes = ack
	}
}

// Transport is the radio command transport for one daemon socket.
type Transport struct {
	cfg    Config
	name   string
	dial   Dialer
	codecs *codec.Table
	sched  clock.Scheduler
	seed   func() uint32
	reqRes powerlock.Resource
	ackRes powerlock.Resource

	serials  *serial.Allocator
	reg      *registry.Registry
	locks    *powerlock.Coordinator
	out      *outbox
	subs     *subscribers
	ackFrame []byte

	connMu    sync.Mutex
	conn      net.Conn
	connID    string
	connEpoch uint64
	state     State
	stateCh   chan struct{}

	version atomic.Int32
	running atomic.Bool
}

func New(cfg Config, opts ...Option) (*Transport, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	t := &Transport{
		cfg:     cfg,
		name:    cfg.Name(),
		codecs:  codec.Default(),
		sched:   clock.Real{},
		out:     newOutbox(),
		subs:    newSubscribers(cfg.SubscriberBuffer),
		reg:     registry.New(cfg.PoolCapacity),
		stateCh: make(chan struct{}),
	}
	t.dial = t.dialUnix
	if cfg.WakeLock.Enabled {
		t.reqRes = powerlock.Sysfs{Name: cfg.WakeLock.RequestName, Dir: cfg.WakeLock.SysfsDir}
		t.ackRes = powerlock.Sysfs{Name: cfg.WakeLock.AckName, Dir: cfg.WakeLock.SysfsDir}
	}
	for _, opt := range opts {
		opt(t)
	}

	serialOpts := make([]serial.Option, 0, 1)
	if t.seed != nil {
		serialOpts = append(serialOpts, serial.WithSeed(t.seed))
	}
	t.serials = serial.New(serialOpts...)
	t.locks = powerlock.New(powerlock.Options{
		RequestTimeout: cfg.RequestLockTimeout,
		AckTimeout:     cfg.AckLockTimeout,
		Request:        t.reqRes,
		Ack:            t.ackRes,
		Scheduler:      t.sched,
		OnTimeout:      t.onLockTimeout,
		OnChange: func(kind powerlock.Kind, st powerlock.State) {
			observability.SetLockState(t.name, kind.String(), st.Held, st.Count)
		},
	})

	w := parcel.NewWriter()
	w.WriteInt32(int32(ril.KindSolicitedAck))
	ack, err := frame.Encode(w.Bytes(), cfg.limits())
	if err != nil {
		return nil, err
	}
	t.ackFrame = ack
	return t, nil
}

// Run connects and serves until ctx ends. It returns nil on cancellation and
// may only be called once.
func (t *Transport) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	logs.Infof("transport.Transport.Run start socket=%q", t.cfg.SocketPath())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return t.runSender(gctx)
	})
	g.Go(func() error {
		return t.runReceiver(gctx)
	})
	err := g.Wait()
	t.shutdown()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (t *Transport) shutdown() {
	for _, m := range t.out.drain() {
		if m.kind != outCommand {
			continue
		}
		if req, ok := t.reg.Take(m.serial); ok {
			t.complete(req, ril.Result{Err: ril.ErrNotAvailable}, "not_available")
		}
	}
	t.subs.closeAll()
	logs.Infof("transport.Transport.Run stopped socket=%q", t.cfg.SocketPath())
}

// Name is the socket name used in logs and metric labels.
func (t *Transport) Name() string { return t.name }

// Version is the daemon protocol version from the latest connected event, 0 before it.
func (t *Transport) Version() int32 { return t.version.Load() }

func (t *Transport) State() State {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.state
}

// WaitState blocks until the connection reaches want or ctx ends.
func (t *Transport) WaitState(ctx context.Context, want State) error {
	for {
		t.connMu.Lock()
		st, ch := t.state, t.stateCh
		t.connMu.Unlock()
		if st == want {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Subscribe registers for unsolicited events with code, or AllEvents.
func (t *Transport) Subscribe(code int32) *Subscription {
	return t.subs.add(code)
}

// Pending is the number of registered, not yet completed requests.
func (t *Transport) Pending() int { return t.reg.Len() }

// LockState exposes the power lock snapshot for kind.
func (t *Transport) LockState(kind powerlock.Kind) powerlock.State {
	return t.locks.State(kind)
}

func (t *Transport) onLockTimeout(kind powerlock.Kind) {
	observability.RecordLockTimeout(t.name, kind.String())
	if kind == powerlock.KindRequest {
		logs.Warnf("transport.Transport.onLockTimeout socket=%q pending=%d serials=%v", t.name, t.reg.Len(), t.reg.Serials())
	}
}

func (t *Transport) currentConn() (net.Conn, string, uint64) {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.conn, t.connID, t.connEpoch
}

// attach publishes conn and opens the registry in one step, so a request can
// only register once the sender can see the connection it belongs to.
func (t *Transport) attach(conn net.Conn, id string) {
	t.connMu.Lock()
	t.conn = conn
	t.connID = id
	t.connEpoch = t.reg.Open()
	t.setStateLocked(StateConnected)
	t.connMu.Unlock()
	observability.SetConnected(t.name, true)
}

// detach forgets the connection. The registry must already be drained.
func (t *Transport) detach() {
	t.connMu.Lock()
	t.conn = nil
	t.connID = ""
	t.connEpoch = t.reg.Epoch()
	t.setStateLocked(StateUnavailable)
	t.connMu.Unlock()
	observability.SetConnected(t.name, false)
}

func (t *Transport) setStateLocked(st State) {
	if t.state == st {
		return
	}
	t.state = st
	close(t.stateCh)
	t.stateCh = make(chan struct{})
}

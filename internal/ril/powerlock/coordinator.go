package powerlock

import (
	"sync"
	"time"

	"github.com/danmuck/rilbridge/internal/clock"
	logs "github.com/danmuck/rilbridge/internal/logging"
)

type Kind int

const (
	KindNone Kind = iota
	KindRequest
	KindAck
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindAck:
		return "ack"
	default:
		return "none"
	}
}

const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultAckTimeout     = 200 * time.Millisecond
)

// Token records which lock kind one owner currently holds. The zero value holds nothing.
type Token struct {
	kind Kind
	gen  uint64
}

func (t Token) Kind() Kind { return t.kind }

func (t Token) Held() bool { return t.kind != KindNone }

// State is a snapshot of one lock kind.
type State struct {
	Held     bool
	Count    uint32
	Sequence uint64
}

// Options configures a Coordinator. Zero fields take defaults.
type Options struct {
	RequestTimeout time.Duration
	AckTimeout     time.Duration
	Request        Resource
	Ack            Resource
	Scheduler      clock.Scheduler
	// OnTimeout runs after a safety timeout physically released a lock.
	OnTimeout func(kind Kind)
	// OnChange runs after every logical state change.
	OnChange func(kind Kind, st State)
}

type lockState struct {
	kind    Kind
	res     Resource
	timeout time.Duration
	held    bool
	count   uint32
	seq     uint64
	// gen advances whenever holds are reclaimed wholesale (timeout, Clear);
	// tokens from an older generation no longer count.
	gen uint64
	// timer is the safety timeout for the newest hold; each acquire replaces it.
	timer clock.Timer

	// applied is the physical state; guarded by Coordinator.physMu.
	applied bool
}

// Coordinator owns the request and ack locks.
type Coordinator struct {
	mu     sync.Mutex
	physMu sync.Mutex
	sched  clock.Scheduler
	req    *lockState
	ack    *lockState

	onTimeout func(kind Kind)
	onChange  func(kind Kind, st State)
}

func New(opts Options) *Coordinator {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = DefaultAckTimeout
	}
	if opts.Request == nil {
		opts.Request = Noop{}
	}
	if opts.Ack == nil {
		opts.Ack = Noop{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = clock.Real{}
	}
	return &Coordinator{
		sched:     opts.Scheduler,
		req:       &lockState{kind: KindRequest, res: opts.Request, timeout: opts.RequestTimeout},
		ack:       &lockState{kind: KindAck, res: opts.Ack, timeout: opts.AckTimeout},
		onTimeout: opts.OnTimeout,
		onChange:  opts.OnChange,
	}
}

func (c *Coordinator) lock(kind Kind) *lockState {
	switch kind {
	case KindRequest:
		return c.req
	case KindAck:
		return c.ack
	default:
		return nil
	}
}

// Acquire takes kind on behalf of the owner of t. It refuses, logging only,
// when t already holds a lock.
func (c *Coordinator) Acquire(t *Token, kind Kind) bool {
	st := c.lock(kind)
	if st == nil || t == nil {
		return false
	}
	if t.kind != KindNone {
		logs.Debugf("powerlock.Coordinator.Acquire refused kind=%s already_holding=%s", kind, t.kind)
		return false
	}

	c.mu.Lock()
	st.held = true
	st.count++
	st.seq++
	seq := st.seq
	gen := st.gen
	st.stopTimer()
	st.timer = c.sched.AfterFunc(st.timeout, func() {
		c.expire(kind, seq)
	})
	snap := st.snapshot()
	c.mu.Unlock()

	t.kind = kind
	t.gen = gen
	c.apply(st)
	c.changed(kind, snap)
	return true
}

// Release gives back the lock held by t. Request locks are decremented and
// physically released at zero; ack locks are left to their timeout. A token
// whose hold was already reclaimed by a timeout or Clear is ignored.
func (c *Coordinator) Release(t *Token) {
	if t == nil {
		return
	}
	kind, gen := t.kind, t.gen
	*t = Token{}
	if kind != KindRequest {
		return
	}

	st := c.req
	c.mu.Lock()
	if gen != st.gen {
		c.mu.Unlock()
		return
	}
	if st.count > 1 {
		st.count--
	} else {
		st.count = 0
		st.held = false
		st.stopTimer()
	}
	snap := st.snapshot()
	c.mu.Unlock()

	c.apply(st)
	c.changed(kind, snap)
}

// Clear drops every hold on kind at once. It reports false if nothing was held.
func (c *Coordinator) Clear(kind Kind) bool {
	st := c.lock(kind)
	if st == nil {
		return false
	}
	c.mu.Lock()
	if st.count == 0 && !st.held {
		c.mu.Unlock()
		return false
	}
	st.count = 0
	st.held = false
	st.gen++
	st.stopTimer()
	snap := st.snapshot()
	c.mu.Unlock()

	c.apply(st)
	c.changed(kind, snap)
	return true
}

// State returns a snapshot of kind.
func (c *Coordinator) State(kind Kind) State {
	st := c.lock(kind)
	if st == nil {
		return State{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return st.snapshot()
}

func (c *Coordinator) expire(kind Kind, seq uint64) {
	st := c.lock(kind)
	c.mu.Lock()
	if st.seq != seq || !st.held {
		c.mu.Unlock()
		return
	}
	count := st.count
	st.count = 0
	st.held = false
	st.gen++
	st.timer = nil
	snap := st.snapshot()
	c.mu.Unlock()

	logs.Warnf("powerlock.Coordinator.expire released kind=%s seq=%d outstanding=%d", kind, seq, count)
	c.apply(st)
	c.changed(kind, snap)
	if c.onTimeout != nil {
		c.onTimeout(kind)
	}
}

// apply brings the physical resource in line with the latest logical state.
// Physical calls happen outside mu; physMu keeps them ordered.
func (c *Coordinator) apply(st *lockState) {
	c.physMu.Lock()
	defer c.physMu.Unlock()

	c.mu.Lock()
	want := st.held
	c.mu.Unlock()
	if want == st.applied {
		return
	}
	var err error
	if want {
		err = st.res.Acquire()
	} else {
		err = st.res.Release()
	}
	if err != nil {
		logs.Errf("powerlock.Coordinator.apply kind=%s held=%t err=%v", st.kind, want, err)
	}
	st.applied = want
}

func (c *Coordinator) changed(kind Kind, st State) {
	if c.onChange != nil {
		c.onChange(kind, st)
	}
}

// stopTimer cancels the pending safety timeout. Callers hold Coordinator.mu.
func (st *lockState) stopTimer() {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}

func (st *lockState) snapshot() State {
	return State{Held: st.held, Count: st.count, Sequence: st.seq}
}

// Package registry tracks in-flight requests by serial between send and completion.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/danmuck/rilbridge/internal/clock"
	"github.com/danmuck/rilbridge/internal/ril"
	"github.com/danmuck/rilbridge/internal/ril/powerlock"
)

// DefaultPoolCapacity bounds the free list of recycled request records.
const DefaultPoolCapacity = 4

var (
	ErrClosed          = errors.New("registry: closed")
	ErrDuplicateSerial = errors.New("registry: duplicate serial")
)

// Request is one in-flight command, owned by the registry until taken.
type Request struct {
	Serial    uint32
	Code      int32
	CreatedAt time.Time
	Sink      chan<- ril.Result
	Lock      powerlock.Token
	// Fallback is the blocking-call timer, nil for ordinary commands.
	Fallback clock.Timer
	// Gen is stamped by Obtain and differs on every reuse of the record.
	Gen uint64
}

func (r *Request) String() string {
	return fmt.Sprintf("[%08x] code=%d", r.Serial, r.Code)
}

// Registry maps serial -> Request. It only accepts registrations while open;
// DrainAll closes it and advances the epoch so work queued against the old
// connection can recognise itself as stale.
type Registry struct {
	mu      sync.Mutex
	items   map[uint32]*Request
	open    bool
	epoch   uint64
	free    []*Request
	poolCap int
	gen     uint64
}

// New builds a closed registry. poolCap 0 disables record reuse; negative takes the default.
func New(poolCap int) *Registry {
	if poolCap < 0 {
		poolCap = DefaultPoolCapacity
	}
	return &Registry{
		items:   make(map[uint32]*Request),
		free:    make([]*Request, 0, poolCap),
		poolCap: poolCap,
	}
}

// Obtain returns a zeroed record with a fresh Gen, reusing a recycled one
// when available.
func (r *Registry) Obtain() *Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if n := len(r.free); n > 0 {
		req := r.free[n-1]
		r.free[n-1] = nil
		r.free = r.free[:n-1]
		req.Gen = r.gen
		return req
	}
	return &Request{Gen: r.gen}
}

// Recycle returns a completed record to the free list. The caller must hold
// the only reference; records still registered are never accepted.
func (r *Registry) Recycle(req *Request) {
	if req == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.items[req.Serial]; ok && cur == req {
		return
	}
	if len(r.free) >= r.poolCap {
		return
	}
	*req = Request{}
	r.free = append(r.free, req)
}

// Open starts accepting registrations and returns the current epoch.
func (r *Registry) Open() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = true
	return r.epoch
}

// Register records req under its serial and returns the epoch it joined.
func (r *Registry) Register(req *Request) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return 0, ErrClosed
	}
	if _, ok := r.items[req.Serial]; ok {
		return 0, fmt.Errorf("%w: %08x", ErrDuplicateSerial, req.Serial)
	}
	r.items[req.Serial] = req
	return r.epoch, nil
}

// Take removes and returns the request for serial. For any serial at most one
// caller ever gets it.
func (r *Registry) Take(serial uint32) (*Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.items[serial]
	if !ok {
		return nil, false
	}
	delete(r.items, serial)
	return req, true
}

// Remove takes the request registered under serial only if it is the same
// use of the record that gen was read from. Timers that outlive their
// request identify it this way and never touch the record directly.
func (r *Registry) Remove(serial uint32, gen uint64) (*Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.items[serial]
	if !ok || req.Gen != gen {
		return nil, false
	}
	delete(r.items, serial)
	return req, true
}

// DetachLock moves the power lock token out of a still-pending request so
// the caller can release it; the request stays registered.
func (r *Registry) DetachLock(serial uint32) (powerlock.Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.items[serial]
	if !ok {
		return powerlock.Token{}, false
	}
	tok := req.Lock
	req.Lock = powerlock.Token{}
	return tok, true
}

// DrainAll closes the registry, advances the epoch and returns every pending
// request ordered by creation time.
func (r *Registry) DrainAll() []*Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Request, 0, len(r.items))
	for serial, req := range r.items {
		out = append(out, req)
		delete(r.items, serial)
	}
	r.open = false
	r.epoch++
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Current reports whether epoch is still the live one.
func (r *Registry) Current(epoch uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open && r.epoch == epoch
}

func (r *Registry) Epoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Pooled returns the number of records on the free list.
func (r *Registry) Pooled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.free)
}

// Serials lists pending serials in ascending order.
func (r *Registry) Serials() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint32, 0, len(r.items))
	for serial := range r.items {
		out = append(out, serial)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

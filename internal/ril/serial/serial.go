// Package serial hands out the correlation ids embedded in every request.
package serial

import (
	"math/rand"
	"sync/atomic"
)

// Allocator is a wrapping counter re-seeded on every reconnect so serials from
// before and after a daemon restart are unlikely to collide.
type Allocator struct {
	next atomic.Uint32
	seed func() uint32
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithSeed replaces the random seed source; tests use it to pin serials.
func WithSeed(seed func() uint32) Option {
	return func(a *Allocator) {
		if seed != nil {
			a.seed = seed
		}
	}
}

func New(opts ...Option) *Allocator {
	a := &Allocator{seed: rand.Uint32}
	for _, opt := range opts {
		opt(a)
	}
	a.Reset()
	return a
}

// Next returns the current value and advances the counter, wrapping at 2^32.
func (a *Allocator) Next() uint32 {
	return a.next.Add(1) - 1
}

// Reset re-seeds the counter.
func (a *Allocator) Reset() {
	a.next.Store(a.seed())
}

// Peek returns the serial the next call to Next will hand out.
func (a *Allocator) Peek() uint32 {
	return a.next.Load()
}

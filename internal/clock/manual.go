package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual provides a controllable scheduler for deterministic tests.
// Callbacks run synchronously on the goroutine calling Advance or Fire.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	m   *Manual
	id  uint64
	at  time.Time
	f   func()
	off bool
}

// NewManual constructs a Manual scheduler starting at the supplied time.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{m: m, id: m.seq, at: m.now.Add(d), f: f}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.off {
		return false
	}
	t.off = true
	t.m.removeLocked(t.id)
	return true
}

// Advance moves time forward by d and runs every callback that became due,
// in deadline order.
func (m *Manual) Advance(d time.Duration) time.Time {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	due := make([]*manualTimer, 0)
	remaining := m.timers[:0]
	for _, t := range m.timers {
		if t.at.After(now) {
			remaining = append(remaining, t)
			continue
		}
		t.off = true
		due = append(due, t)
	}
	m.timers = remaining
	m.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].at.Before(due[j].at)
	})
	for _, t := range due {
		t.f()
	}
	return now
}

// Fire runs the n-th still-pending callback (0 = oldest scheduled) without
// moving time. It reports false when no such callback exists.
func (m *Manual) Fire(n int) bool {
	m.mu.Lock()
	if n < 0 || n >= len(m.timers) {
		m.mu.Unlock()
		return false
	}
	t := m.timers[n]
	t.off = true
	m.removeLocked(t.id)
	m.mu.Unlock()
	t.f()
	return true
}

// Pending returns the number of scheduled callbacks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

func (m *Manual) removeLocked(id uint64) {
	for i, t := range m.timers {
		if t.id == id {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

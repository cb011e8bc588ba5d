package transport

import (
	"sync"

	"github.com/danmuck/rilbridge/internal/ril"
)

// AllEvents subscribes to every unsolicited event code.
const AllEvents int32 = -1

// Subscription delivers unsolicited events for one code on C. Events are
// dropped, never queued without bound, when C is full.
type Subscription struct {
	C    <-chan ril.Event
	Code int32

	id   uint64
	ch   chan ril.Event
	subs *subscribers
	once sync.Once
}

// Close stops delivery and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.subs.remove(s)
	})
}

type subscribers struct {
	mu     sync.RWMutex
	next   uint64
	buffer int
	byCode map[int32]map[uint64]*Subscription
}

func newSubscribers(buffer int) *subscribers {
	return &subscribers{
		buffer: buffer,
		byCode: make(map[int32]map[uint64]*Subscription),
	}
}

func (s *subscribers) add(code int32) *Subscription {
	ch := make(chan ril.Event, s.buffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	sub := &Subscription{C: ch, Code: code, id: s.next, ch: ch, subs: s}
	set, ok := s.byCode[code]
	if !ok {
		set = make(map[uint64]*Subscription)
		s.byCode[code] = set
	}
	set[sub.id] = sub
	return sub
}

func (s *subscribers) remove(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.byCode[sub.Code]; ok {
		delete(set, sub.id)
		if len(set) == 0 {
			delete(s.byCode, sub.Code)
		}
	}
	close(sub.ch)
}

// publish fans ev out without blocking and returns how many subscribers missed it.
func (s *subscribers) publish(ev ril.Event) (delivered, dropped int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := []int32{ev.Code, AllEvents}
	if ev.Code == AllEvents {
		codes = codes[:1]
	}
	for _, code := range codes {
		for _, sub := range s.byCode[code] {
			select {
			case sub.ch <- ev:
				delivered++
			default:
				dropped++
			}
		}
	}
	return delivered, dropped
}

// closeAll closes every subscription; used when the transport shuts down.
func (s *subscribers) closeAll() {
	s.mu.Lock()
	subs := make([]*Subscription, 0)
	for _, set := range s.byCode {
		for _, sub := range set {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

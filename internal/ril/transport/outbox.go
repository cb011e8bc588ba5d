package transport

import (
	"context"
	"sync"
)

type outKind int

const (
	outCommand outKind = iota
	outAck
)

// outMsg is one unit of work for the sender loop.
type outMsg struct {
	kind   outKind
	serial uint32
	code   int32
	frame  []byte
	// epoch is the registry epoch the message was queued under; the sender
	// drops messages from an earlier connection.
	epoch uint64
}

// outbox is the sender's unbounded FIFO mailbox. Pushing never blocks.
type outbox struct {
	mu     sync.Mutex
	items  []outMsg
	signal chan struct{}
}

func newOutbox() *outbox {
	return &outbox{
		items:  make([]outMsg, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

func (o *outbox) push(m outMsg) {
	o.mu.Lock()
	o.items = append(o.items, m)
	o.mu.Unlock()
	select {
	case o.signal <- struct{}{}:
	default:
	}
}

// next blocks until a message is available or ctx ends.
func (o *outbox) next(ctx context.Context) (outMsg, bool) {
	for {
		o.mu.Lock()
		if len(o.items) > 0 {
			m := o.items[0]
			o.items[0] = outMsg{}
			o.items = o.items[1:]
			o.mu.Unlock()
			return m, true
		}
		o.mu.Unlock()
		select {
		case <-ctx.Done():
			return outMsg{}, false
		case <-o.signal:
		}
	}
}

// drain removes and returns everything still queued.
func (o *outbox) drain() []outMsg {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.items
	o.items = make([]outMsg, 0, 16)
	return out
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

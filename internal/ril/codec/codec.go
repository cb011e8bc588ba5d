// Package codec is the boundary to per-command payload encoding. The
// transport treats bodies as opaque and looks decoders up here by code.
package codec

import (
	"fmt"
	"sync"

	"github.com/danmuck/rilbridge/internal/ril/parcel"
)

// Encoder appends a command's fields after the [code][serial] prefix.
type Encoder func(w *parcel.Writer) error

// Decoder turns a reply or event body into a value.
type Decoder func(r *parcel.Reader) (any, error)

// Command describes one request code.
type Command struct {
	Code   int32
	Name   string
	Decode Decoder
	// Blocking marks commands the daemon may have no legitimate way to answer;
	// the transport completes them locally if no reply arrives in time.
	Blocking bool
	// Fallback builds the synthetic reply value for a timed-out blocking
	// command. Nil completes the request with ril.ErrTimeout instead.
	Fallback func() any
}

// Event describes one unsolicited event code.
type Event struct {
	Code   int32
	Name   string
	Decode Decoder
}

// Table maps codes to codecs. Unknown codes decode to their raw bytes.
type Table struct {
	mu       sync.RWMutex
	commands map[int32]Command
	events   map[int32]Event
}

func NewTable() *Table {
	return &Table{
		commands: make(map[int32]Command),
		events:   make(map[int32]Event),
	}
}

func (t *Table) RegisterCommand(c Command) {
	if c.Decode == nil {
		c.Decode = Raw
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands[c.Code] = c
}

func (t *Table) RegisterEvent(e Event) {
	if e.Decode == nil {
		e.Decode = Raw
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events[e.Code] = e
}

func (t *Table) Command(code int32) Command {
	t.mu.RLock()
	c, ok := t.commands[code]
	t.mu.RUnlock()
	if ok {
		return c
	}
	return Command{Code: code, Name: fmt.Sprintf("REQUEST_%d", code), Decode: Raw}
}

func (t *Table) Event(code int32) Event {
	t.mu.RLock()
	e, ok := t.events[code]
	t.mu.RUnlock()
	if ok {
		return e
	}
	return Event{Code: code, Name: fmt.Sprintf("UNSOL_%d", code), Decode: Raw}
}

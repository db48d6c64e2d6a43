package engine

import (
	"sync"

	"github.com/dougsko/scumcal/pkg/diag"
	"github.com/dougsko/scumcal/pkg/protocol"
	"github.com/dougsko/scumcal/pkg/storage"
)

// DefaultEventBuffer is how many recent events are kept in memory
const DefaultEventBuffer = 256

// eventRing keeps the most recent events when no journal is configured
type eventRing struct {
	mutex  sync.RWMutex
	events []diag.Event
	next   int
	full   bool
}

func newEventRing(size int) *eventRing {
	if size <= 0 {
		size = DefaultEventBuffer
	}
	return &eventRing{events: make([]diag.Event, size)}
}

// Emit stores e, overwriting the oldest event once full
func (r *eventRing) Emit(e diag.Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events[r.next] = e
	r.next++
	if r.next == len(r.events) {
		r.next = 0
		r.full = true
	}
}

// Recent returns up to limit events of kind, newest first. An empty kind
// matches every event; a limit of zero returns everything held.
func (r *eventRing) Recent(kind diag.Kind, limit int) []diag.Event {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	n := r.next
	if r.full {
		n = len(r.events)
	}
	out := make([]diag.Event, 0, n)
	for i := 0; i < n; i++ {
		idx := (r.next - 1 - i + len(r.events)) % len(r.events)
		e := r.events[idx]
		if kind != "" && e.Kind != kind {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// eventHub fans live events out to subscribers. Slow subscribers lose
// events rather than stall calibration.
type eventHub struct {
	mutex  sync.Mutex
	subs   map[int]chan diag.Event
	nextID int
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int]chan diag.Event)}
}

// Emit delivers e to every subscriber with room for it
func (h *eventHub) Emit(e diag.Event) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned function removes it
// and closes the channel.
func (h *eventHub) Subscribe(buffer int) (<-chan diag.Event, func()) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan diag.Event, buffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mutex.Lock()
			defer h.mutex.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers
func (h *eventHub) Subscribers() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.subs)
}

// ToProtocolEvent converts a diagnostic event for the API
func ToProtocolEvent(id int64, e diag.Event) protocol.Event {
	return protocol.Event{
		ID:        id,
		Timestamp: e.Time,
		Kind:      string(e.Kind),
		Channel:   e.Channel,
		Mode:      e.Mode,
		Code:      e.Code,
		Line:      e.Line(),
	}
}

func fromStored(stored []storage.StoredEvent) []protocol.Event {
	out := make([]protocol.Event, 0, len(stored))
	for _, s := range stored {
		out = append(out, ToProtocolEvent(s.ID, s.Event))
	}
	return out
}

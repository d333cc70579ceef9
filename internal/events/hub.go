// Package events fans job and worker lifecycle events out to the SSE
// endpoint and the monitor, keeping a short backlog for clients that
// reconnect.
package events

import (
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBacklog is the number of events NewHub keeps when given no size.
const DefaultBacklog = 256

// subscriberBuffer is how far a subscriber may fall behind before events
// are dropped for it.
const subscriberBuffer = 128

// Event is one published lifecycle event. Data is the JSON payload.
type Event struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Filter selects events by type. Each entry is either a full type such as
// "job.failed" or a group such as "job", which matches every "job.*" type.
// An empty Filter matches everything.
type Filter []string

// ParseFilter splits a comma-separated list, dropping blanks.
func ParseFilter(s string) Filter {
	var f Filter
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			f = append(f, part)
		}
	}
	return f
}

// Match reports whether eventType passes the filter.
func (f Filter) Match(eventType string) bool {
	if len(f) == 0 {
		return true
	}
	for _, want := range f {
		if eventType == want || strings.HasPrefix(eventType, want+".") {
			return true
		}
	}
	return false
}

type subscriber struct {
	ch     chan Event
	filter Filter
}

// Hub is an in-memory pub/sub. Publishing never blocks: a subscriber whose
// buffer is full misses the event, and the miss is counted.
type Hub struct {
	nextID  atomic.Int64
	dropped atomic.Int64

	mu      sync.Mutex
	backlog []Event
	limit   int
	subs    map[*subscriber]struct{}
}

// NewHub returns a hub that keeps the last backlog events for clients that
// resume with a Last-Event-ID.
func NewHub(backlog int) *Hub {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Hub{
		backlog: make([]Event, 0, backlog),
		limit:   backlog,
		subs:    make(map[*subscriber]struct{}),
	}
}

// Publish records an event and delivers it to matching subscribers. A nil
// Hub discards it.
func (h *Hub) Publish(eventType string, data any) {
	if h == nil {
		return
	}

	payload := json.RawMessage("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// IDs are assigned under the lock so the backlog stays in ID order.
	ev := Event{ID: h.nextID.Add(1), Type: eventType, At: time.Now().UTC(), Data: payload}
	if len(h.backlog) == h.limit {
		copy(h.backlog, h.backlog[1:])
		h.backlog = h.backlog[:h.limit-1]
	}
	h.backlog = append(h.backlog, ev)

	for sub := range h.subs {
		if !sub.filter.Match(eventType) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel of future events that pass filter, and a
// cancel func that closes it. Cancel may be called more than once.
func (h *Hub) Subscribe(filter Filter) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer), filter: filter}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			close(sub.ch)
			h.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// SnapshotSince returns backlog events with ID > lastID, oldest first.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Event
	for _, ev := range h.backlog {
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber
// was not keeping up.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

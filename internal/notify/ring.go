package notify

import (
	"context"
	"sync"
)

// Ring keeps the most recent events in a fixed size buffer.
type Ring struct {
	mu    sync.RWMutex
	buf   []Event
	next  int
	count int
}

// NewRing creates a ring holding at most size events.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 100
	}
	return &Ring{buf: make([]Event, size)}
}

func (r *Ring) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// List returns up to limit events, newest first.
func (r *Ring) List(limit int, unreadOnly bool) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		idx := (r.next - 1 - i + len(r.buf)) % len(r.buf)
		ev := r.buf[idx]
		if unreadOnly && ev.Read {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// MarkRead flags the event with the given id. It reports false once the
// event has been overwritten.
func (r *Ring) MarkRead(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < r.count; i++ {
		if r.buf[i].ID == id {
			r.buf[i].Read = true
			return true
		}
	}
	return false
}

// Len returns the number of buffered events.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

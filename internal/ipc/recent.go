package ipc

import "sync"

// Recent is a fixed-size ring of the latest event records.
type Recent struct {
	mu   sync.Mutex
	buf  []EventRecord
	next int
	full bool
}

// NewRecent returns a ring holding size records. A size of 0 keeps nothing.
func NewRecent(size int) *Recent {
	if size < 0 {
		size = 0
	}
	return &Recent{buf: make([]EventRecord, size)}
}

// Add appends rec, overwriting the oldest record when the ring is full.
func (r *Recent) Add(rec EventRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) == 0 {
		return
	}
	r.buf[r.next] = rec
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// Len returns the number of stored records.
func (r *Recent) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Snapshot returns stored records oldest first. When typ is set only records
// of that type are kept; limit > 0 keeps the newest limit of them.
func (r *Recent) Snapshot(limit int, typ string) []EventRecord {
	r.mu.Lock()
	var ordered []EventRecord
	if r.full {
		ordered = append(ordered, r.buf[r.next:]...)
	}
	ordered = append(ordered, r.buf[:r.next]...)
	r.mu.Unlock()

	out := ordered[:0]
	for _, rec := range ordered {
		if typ == "" || rec.Type == typ {
			out = append(out, rec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

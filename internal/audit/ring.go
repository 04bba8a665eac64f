package audit

import "sync"

// DefaultCapacity bounds the in-memory buffer. Beyond this the oldest event
// is evicted, so trail queries only see recent activity; the durable sink is
// the log of record.
const DefaultCapacity = 10000

// Ring is a bounded, thread-safe buffer of recent events. When full, the
// oldest event is dropped to make room for a new one. Append and evict are
// a single critical section so concurrent appenders cannot race the bound.
type Ring struct {
	mu       sync.Mutex
	events   []Event
	head     int // next write position
	tail     int // oldest entry
	count    int
	capacity int

	evicted int64
}

// NewRing creates a ring buffer with the given capacity. Non-positive
// capacities fall back to DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		events:   make([]Event, capacity),
		capacity: capacity,
	}
}

// Append adds an event, evicting the oldest if the buffer is full. Returns
// true when an eviction happened.
func (r *Ring) Append(event Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := false
	if r.count >= r.capacity {
		r.tail = (r.tail + 1) % r.capacity
		r.count--
		r.evicted++
		evicted = true
	}

	r.events[r.head] = event
	r.head = (r.head + 1) % r.capacity
	r.count++
	return evicted
}

// Snapshot returns the buffered events oldest first. The slice is a copy;
// callers may filter and sort freely.
func (r *Ring) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.events[(r.tail+i)%r.capacity]
	}
	return out
}

// Len returns the current number of buffered events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Evicted returns the total number of events dropped to keep the bound.
func (r *Ring) Evicted() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evicted
}

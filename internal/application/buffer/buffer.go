// Package buffer holds messages that were accepted but not yet delivered.
package buffer

// DefaultMaxLength bounds each per-key queue
const DefaultMaxLength = 1000

// SessionBuffer is a set of bounded FIFO queues keyed by session.
// Queues are created on first push and live for the process lifetime;
// on overflow the oldest item is dropped.
//
// SessionBuffer is not safe for concurrent use. It is owned by a single
// goroutine and fed through a channel.
type SessionBuffer[T any] struct {
	maxLen int
	queues map[string]*ring[T]
	order  []string
}

// New creates a SessionBuffer whose queues hold at most maxLen items
func New[T any](maxLen int) *SessionBuffer[T] {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	return &SessionBuffer[T]{
		maxLen: maxLen,
		queues: make(map[string]*ring[T]),
	}
}

// Push appends item to the queue for key. It returns the evicted item and
// true when the queue was full.
func (b *SessionBuffer[T]) Push(key string, item T) (T, bool) {
	q, ok := b.queues[key]
	if !ok {
		q = newRing[T](b.maxLen)
		b.queues[key] = q
		b.order = append(b.order, key)
	}
	return q.push(item)
}

// Drain removes and returns every queued item for key, oldest first
func (b *SessionBuffer[T]) Drain(key string) []T {
	q, ok := b.queues[key]
	if !ok {
		return nil
	}
	return q.drain()
}

// Keys returns every key ever pushed, in first-seen order
func (b *SessionBuffer[T]) Keys() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Len returns the number of items queued for key
func (b *SessionBuffer[T]) Len(key string) int {
	if q, ok := b.queues[key]; ok {
		return q.size
	}
	return 0
}

// Total returns the number of items queued across all keys
func (b *SessionBuffer[T]) Total() int {
	n := 0
	for _, q := range b.queues {
		n += q.size
	}
	return n
}

// ring is a fixed-capacity circular queue
type ring[T any] struct {
	items []T
	head  int
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) push(item T) (T, bool) {
	var evicted T
	full := r.size == len(r.items)
	if full {
		evicted = r.items[r.head]
		r.items[r.head] = item
		r.head = (r.head + 1) % len(r.items)
		return evicted, true
	}
	r.items[(r.head+r.size)%len(r.items)] = item
	r.size++
	return evicted, false
}

func (r *ring[T]) drain() []T {
	out := make([]T, 0, r.size)
	var zero T
	for i := 0; i < r.size; i++ {
		idx := (r.head + i) % len(r.items)
		out = append(out, r.items[idx])
		r.items[idx] = zero
	}
	r.head, r.size = 0, 0
	return out
}

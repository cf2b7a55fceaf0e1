// Package ringbuffer implements a fixed-capacity FIFO buffer.
package ringbuffer

// Buffer holds at most Cap() items; pushing into a full buffer evicts the oldest item.
// Buffer is not safe for concurrent use.
type Buffer[T any] struct {
	items []T
	start int
	size  int
}

// New creates a buffer with the given capacity. Capacity below 1 is raised to 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v. When the buffer is full the evicted item is returned with ok=true.
func (b *Buffer[T]) Push(v T) (evicted T, ok bool) {
	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.start+b.size)%capacity] = v
		b.size++
		return evicted, false
	}

	evicted = b.items[b.start]
	b.items[b.start] = v
	b.start = (b.start + 1) % capacity
	return evicted, true
}

func (b *Buffer[T]) Len() int { return b.size }

func (b *Buffer[T]) Cap() int { return len(b.items) }

// Items returns a copy of the contents, oldest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.start+i)%len(b.items)]
	}
	return out
}

// Newest returns up to n most recent items, newest first. n <= 0 returns all items.
func (b *Buffer[T]) Newest(n int) []T {
	if n <= 0 || n > b.size {
		n = b.size
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = b.items[(b.start+b.size-1-i)%len(b.items)]
	}
	return out
}

// Retain keeps only the items for which keep returns true, preserving order.
// It returns the number of removed items.
func (b *Buffer[T]) Retain(keep func(T) bool) int {
	kept := make([]T, 0, b.size)
	for _, v := range b.Items() {
		if keep(v) {
			kept = append(kept, v)
		}
	}

	removed := b.size - len(kept)
	if removed == 0 {
		return 0
	}

	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	copy(b.items, kept)
	b.start = 0
	b.size = len(kept)
	return removed
}

package player

// A deque is a bounded double-ended queue. All mutating methods are
// constant-capacity: the queue never grows beyond max items.
//
// It has no locking of its own, the Player's command serialization guards it.
type deque[T any] struct {
	items []T
	max   int
}

func newDeque[T any](max int) *deque[T] {
	return &deque[T]{max: max}
}

func (d *deque[T]) Len() int {
	return len(d.items)
}

func (d *deque[T]) Full() bool {
	return len(d.items) >= d.max
}

// PushFront inserts at the front, evicting the back item when full.
func (d *deque[T]) PushFront(v T) {
	if d.Full() {
		d.items = d.items[:len(d.items)-1]
	}
	d.items = append([]T{v}, d.items...)
}

// PushBack appends at the back, evicting the previous back item when full.
func (d *deque[T]) PushBack(v T) {
	if d.Full() {
		d.items = d.items[:len(d.items)-1]
	}
	d.items = append(d.items, v)
}

// TryPushBack appends at the back, or reports false when the deque is full.
func (d *deque[T]) TryPushBack(v T) bool {
	if d.Full() {
		return false
	}
	d.items = append(d.items, v)
	return true
}

func (d *deque[T]) PopFront() (T, bool) {
	var zero T
	if len(d.items) == 0 {
		return zero, false
	}
	v := d.items[0]
	d.items = d.items[1:]
	return v, true
}

func (d *deque[T]) PopBack() (T, bool) {
	var zero T
	if len(d.items) == 0 {
		return zero, false
	}
	v := d.items[len(d.items)-1]
	d.items = d.items[:len(d.items)-1]
	return v, true
}

func (d *deque[T]) Clear() {
	d.items = nil
}

// Slice returns a copy of the queued items, front first.
func (d *deque[T]) Slice() []T {
	out := make([]T, len(d.items))
	copy(out, d.items)
	return out
}

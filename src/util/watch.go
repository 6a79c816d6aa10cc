package util

import (
	"context"
	"errors"
	"sync"
)

// ErrWatchClosed is returned from WatchReceiver.Changed after the watch has
// been closed by its owner.
var ErrWatchClosed = errors.New("watch channel closed")

// A Watch is a single slot broadcast channel. Writers overwrite the slot,
// readers always observe the latest value along with a wake-up when it
// changes. Intermediate values may be coalesced if a reader is slow, the
// channel guarantees freshness, not completeness.
type Watch[T any] struct {
	mu      sync.Mutex
	value   T
	version uint64
	closed  bool
	wake    chan struct{}
}

func NewWatch[T any](initial T) *Watch[T] {
	return &Watch[T]{value: initial, version: 1, wake: make(chan struct{})}
}

// Set overwrites the slot and wakes all pending receivers.
func (w *Watch[T]) Set(value T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.value = value
	w.version++
	close(w.wake)
	w.wake = make(chan struct{})
}

// Close wakes all pending receivers and makes subsequent Changed calls
// return ErrWatchClosed. Closing twice is a no-op.
func (w *Watch[T]) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.wake)
}

// Subscribe returns a receiver that has not seen any value yet, its first
// Changed call returns immediately.
func (w *Watch[T]) Subscribe() *WatchReceiver[T] {
	return &WatchReceiver[T]{watch: w}
}

type WatchReceiver[T any] struct {
	watch *Watch[T]
	seen  uint64
}

// Latest returns the value currently in the slot and marks it as seen.
func (r *WatchReceiver[T]) Latest() T {
	r.watch.mu.Lock()
	defer r.watch.mu.Unlock()
	r.seen = r.watch.version
	return r.watch.value
}

// Changed blocks until the slot holds a value newer than the one last
// returned by Latest, the watch is closed, or ctx is cancelled.
func (r *WatchReceiver[T]) Changed(ctx context.Context) error {
	for {
		r.watch.mu.Lock()
		if r.watch.version != r.seen {
			r.watch.mu.Unlock()
			return nil
		}
		if r.watch.closed {
			r.watch.mu.Unlock()
			return ErrWatchClosed
		}
		wake := r.watch.wake
		r.watch.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

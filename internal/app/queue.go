package app

import (
	"sync"

	"github.com/yourusername/chapterd/internal/domain"
)

// Queue is an ordered set of jobs keyed by K. Every read and write of a job
// happens under the queue lock, so callers only ever see whole jobs.
type Queue[K comparable, T any] struct {
	mu    sync.RWMutex
	items []*T
	key   func(*T) K
}

// NewQueue creates an empty queue
func NewQueue[K comparable, T any](key func(*T) K) *Queue[K, T] {
	return &Queue[K, T]{key: key}
}

func (q *Queue[K, T]) indexOf(k K) int {
	for i, item := range q.items {
		if q.key(item) == k {
			return i
		}
	}
	return -1
}

// Enqueue appends item unless its key is already present
func (q *Queue[K, T]) Enqueue(item *T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexOf(q.key(item)) >= 0 {
		return false
	}
	q.items = append(q.items, item)
	return true
}

// Dequeue removes the items with the given keys and returns copies of them
func (q *Queue[K, T]) Dequeue(keys ...K) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	drop := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}

	var removed []T
	kept := q.items[:0]
	for _, item := range q.items {
		if _, ok := drop[q.key(item)]; ok {
			removed = append(removed, *item)
			continue
		}
		kept = append(kept, item)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	return removed
}

// Reorder moves the item with key k to position to. Positions past the end
// move it to the end.
func (q *Queue[K, T]) Reorder(k K, to int) error {
	if to < 0 {
		return domain.ErrInvalidPosition
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	from := q.indexOf(k)
	if from < 0 {
		return domain.ErrNotFound
	}

	item := q.items[from]
	q.items = append(q.items[:from], q.items[from+1:]...)
	if to > len(q.items) {
		to = len(q.items)
	}
	q.items = append(q.items, nil)
	copy(q.items[to+1:], q.items[to:])
	q.items[to] = item
	return nil
}

// Snapshot returns copies of all items in queue order
func (q *Queue[K, T]) Snapshot() []T {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]T, len(q.items))
	for i, item := range q.items {
		out[i] = *item
	}
	return out
}

// Keys returns the keys in queue order
func (q *Queue[K, T]) Keys() []K {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]K, len(q.items))
	for i, item := range q.items {
		out[i] = q.key(item)
	}
	return out
}

// Get returns a copy of the item with key k
func (q *Queue[K, T]) Get(k K) (T, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var zero T
	i := q.indexOf(k)
	if i < 0 {
		return zero, false
	}
	return *q.items[i], true
}

// First returns a copy of the first item matching pred
func (q *Queue[K, T]) First(pred func(*T) bool) (T, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var zero T
	for _, item := range q.items {
		if pred(item) {
			return *item, true
		}
	}
	return zero, false
}

// Mutate applies fn to the item with key k under the write lock
func (q *Queue[K, T]) Mutate(k K, fn func(*T)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(k)
	if i < 0 {
		return false
	}
	fn(q.items[i])
	return true
}

// MutateWhere applies fn to every item matching pred and returns how many
// were changed
func (q *Queue[K, T]) MutateWhere(pred func(*T) bool, fn func(*T)) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, item := range q.items {
		if pred(item) {
			fn(item)
			n++
		}
	}
	return n
}

// Contains reports whether key k is queued
func (q *Queue[K, T]) Contains(k K) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.indexOf(k) >= 0
}

// Len returns the number of queued items
func (q *Queue[K, T]) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Clear removes every item
func (q *Queue[K, T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

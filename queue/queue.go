// Package queue provides a bounded min-priority queue over dense integer ids
// whose priorities can be lowered or raised in place.
package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is matched by every *RangeError.
	ErrOutOfRange = errors.New("queue: id out of range")

	// ErrFull is returned when pushing into a heap that holds Capacity ids.
	ErrFull = errors.New("queue: heap is full")

	// ErrAlreadyQueued is returned when pushing an id that is already contained.
	ErrAlreadyQueued = errors.New("queue: id already queued, use Update")

	// ErrNotQueued is returned when updating an id that is not contained.
	ErrNotQueued = errors.New("queue: id not queued")

	// ErrEmpty is returned when peeking or polling an empty heap.
	ErrEmpty = errors.New("queue: heap is empty")
)

// RangeError reports an id outside [0, Capacity).
type RangeError struct {
	ID       int32
	Capacity int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("queue: id %d out of range [0, %d)", e.ID, e.Capacity)
}

// Is makes errors.Is(err, ErrOutOfRange) succeed.
func (e *RangeError) Is(target error) bool { return target == ErrOutOfRange }

// MinHeap is a binary min-heap keyed by ids in [0, capacity). Every id is
// held at most once and its priority can be changed with Update.
//
// Slot 0 of ids and vals is unused; the root lives at index 1.
type MinHeap struct {
	ids  []int32
	vals []float32
	pos  []int32 // id -> heap index, -1 if absent
	size int
}

// New creates an empty heap for ids in [0, capacity).
func New(capacity int) *MinHeap {
	if capacity < 0 {
		capacity = 0
	}
	h := &MinHeap{
		ids:  make([]int32, capacity+1),
		vals: make([]float32, capacity+1),
		pos:  make([]int32, capacity),
	}
	for i := range h.pos {
		h.pos[i] = -1
	}
	return h
}

func (h *MinHeap) check(id int32) error {
	if id < 0 || int(id) >= len(h.pos) {
		return &RangeError{ID: id, Capacity: len(h.pos)}
	}
	return nil
}

// Push inserts id with the given priority.
func (h *MinHeap) Push(id int32, priority float32) error {
	if err := h.check(id); err != nil {
		return err
	}
	if h.size == len(h.pos) {
		return ErrFull
	}
	if h.pos[id] >= 0 {
		return fmt.Errorf("%w: %d", ErrAlreadyQueued, id)
	}
	h.size++
	h.ids[h.size] = id
	h.vals[h.size] = priority
	h.pos[id] = int32(h.size)
	h.siftUp(h.size)
	return nil
}

// Contains reports whether id is queued. Out-of-range ids are never queued.
func (h *MinHeap) Contains(id int32) bool {
	return id >= 0 && int(id) < len(h.pos) && h.pos[id] >= 0
}

// Update changes the priority of a queued id.
func (h *MinHeap) Update(id int32, priority float32) error {
	if err := h.check(id); err != nil {
		return err
	}
	i := int(h.pos[id])
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNotQueued, id)
	}
	old := h.vals[i]
	h.vals[i] = priority
	if priority < old {
		h.siftUp(i)
	} else if priority > old {
		h.siftDown(i)
	}
	return nil
}

// PeekID returns the id with the smallest priority.
func (h *MinHeap) PeekID() (int32, error) {
	if h.size == 0 {
		return 0, ErrEmpty
	}
	return h.ids[1], nil
}

// PeekValue returns the smallest priority.
func (h *MinHeap) PeekValue() (float32, error) {
	if h.size == 0 {
		return 0, ErrEmpty
	}
	return h.vals[1], nil
}

// Poll removes and returns the id with the smallest priority.
func (h *MinHeap) Poll() (int32, error) {
	if h.size == 0 {
		return 0, ErrEmpty
	}
	id := h.ids[1]
	h.pos[id] = -1

	last := h.size
	h.size--
	if h.size > 0 {
		h.ids[1] = h.ids[last]
		h.vals[1] = h.vals[last]
		h.pos[h.ids[1]] = 1
		h.siftDown(1)
	}
	return id, nil
}

// Clear empties the heap in time proportional to the number of queued ids.
func (h *MinHeap) Clear() {
	for i := 1; i <= h.size; i++ {
		h.pos[h.ids[i]] = -1
	}
	h.size = 0
}

// Len returns the number of queued ids.
func (h *MinHeap) Len() int { return h.size }

// IsEmpty reports whether no id is queued.
func (h *MinHeap) IsEmpty() bool { return h.size == 0 }

// Capacity returns the exclusive upper bound for ids.
func (h *MinHeap) Capacity() int { return len(h.pos) }

func (h *MinHeap) siftUp(i int) {
	id, v := h.ids[i], h.vals[i]
	for i > 1 {
		p := i >> 1
		if h.vals[p] <= v {
			break
		}
		h.ids[i], h.vals[i] = h.ids[p], h.vals[p]
		h.pos[h.ids[i]] = int32(i)
		i = p
	}
	h.ids[i], h.vals[i] = id, v
	h.pos[id] = int32(i)
}

func (h *MinHeap) siftDown(i int) {
	id, v := h.ids[i], h.vals[i]
	for {
		c := i << 1
		if c > h.size {
			break
		}
		if c+1 <= h.size && h.vals[c+1] < h.vals[c] {
			c++
		}
		if v <= h.vals[c] {
			break
		}
		h.ids[i], h.vals[i] = h.ids[c], h.vals[c]
		h.pos[h.ids[i]] = int32(i)
		i = c
	}
	h.ids[i], h.vals[i] = id, v
	h.pos[id] = int32(i)
}

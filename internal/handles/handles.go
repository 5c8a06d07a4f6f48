// Package handles provides a thread-safe registry that owns native resources
// and hands out opaque integer handles for them.
//
// Native contexts (a bark model, a sherpa-onnx synthesizer) cannot be handed to
// callers as raw pointers: the caller may keep using a pointer after it has been
// freed. Instead the resource is registered and the caller receives a Handle.
// A Handle is valid exactly as long as its entry is present in the registry.
//
// Handles are generational: the low 32 bits select a slot and the high 32 bits
// carry the slot's generation. When a slot is reused its generation is bumped,
// so a stale handle for a released resource never resolves to the new occupant.
//
// Locking discipline:
//   - Insert, Remove and Clear take the write lock.
//   - Use takes the read lock for the whole duration of the callback, so any
//     number of Use calls run in parallel but none overlaps with a Remove.
//     A resource can therefore never be destroyed while a callback holds it.
package handles

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/multierr"
)

// Handle is an opaque, non-zero identifier for a registered resource.
type Handle int64

// Invalid is the zero Handle. It is never returned by Insert.
const Invalid Handle = 0

const maxGeneration = 1<<31 - 1

var (
	// ErrInvalidHandle is returned when a handle has no live entry.
	ErrInvalidHandle = errors.New("handles: invalid handle")

	// ErrNilResource is returned when Insert is given a nil resource.
	ErrNilResource = errors.New("handles: resource is nil")
)

func makeHandle(index, generation uint32) Handle {
	return Handle(int64(generation)<<32 | int64(index+1))
}

// split decodes a handle into slot index and generation.
// ok is false for handles that could never have been issued.
func (h Handle) split() (index, generation uint32, ok bool) {
	if h <= 0 {
		return 0, 0, false
	}
	low := uint32(uint64(h) & 0xFFFFFFFF)
	if low == 0 {
		return 0, 0, false
	}
	return low - 1, uint32(uint64(h) >> 32), true
}

// String renders the handle as slot:generation for logs.
func (h Handle) String() string {
	idx, gen, ok := h.split()
	if !ok {
		return fmt.Sprintf("invalid(%d)", int64(h))
	}
	return fmt.Sprintf("%d:%d", idx, gen)
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Registry maps handles to exclusively owned resources of type T.
//
// The zero value is not usable; create registries with New.
type Registry[T any] struct {
	mu      sync.RWMutex
	slots   []slot[T]
	free    []uint32
	live    int
	destroy func(T) error
}

// New creates an empty registry. destroy is called exactly once for every
// resource that leaves the registry through Remove or Clear. It may be nil
// when the resources need no cleanup.
func New[T any](destroy func(T) error) *Registry[T] {
	return &Registry[T]{destroy: destroy}
}

// Insert takes ownership of v and returns its handle.
//
// Thread-safe; exclusive.
func (r *Registry[T]) Insert(v T) (Handle, error) {
	if isNil(v) {
		return Invalid, ErrNilResource
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot[T]{})
	}

	s := &r.slots[idx]
	// Generations stay in [1, maxGeneration] so every handle is positive.
	s.generation = s.generation%maxGeneration + 1
	s.value = v
	s.live = true
	r.live++

	return makeHandle(idx, s.generation), nil
}

// Use looks up h and calls fn with the resource while holding shared access.
// Concurrent Use calls proceed in parallel; Insert, Remove and Clear wait for
// every in-flight Use to return.
//
// Returns ErrInvalidHandle if h has no live entry, otherwise whatever fn returns.
func (r *Registry[T]) Use(h Handle, fn func(T) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.lookup(h)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	return fn(s.value)
}

// Remove removes and destroys the entry for h.
// It reports whether an entry was found, and any error from destroying it.
// The entry is gone even if destroy fails.
//
// Thread-safe; exclusive.
func (r *Registry[T]) Remove(h Handle) (bool, error) {
	r.mu.Lock()
	s, ok := r.lookup(h)
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	v := r.evict(h, s)
	r.mu.Unlock()

	// No Use can observe v any more: it was unlinked under the write lock,
	// which also waited out every reader.
	return true, r.release(v)
}

// Clear destroys every remaining entry and returns how many there were,
// together with the combined destroy errors.
// It is meant for teardown; callers are expected to Remove their own handles.
//
// Thread-safe; exclusive.
func (r *Registry[T]) Clear() (int, error) {
	r.mu.Lock()
	var victims []T
	for i := range r.slots {
		s := &r.slots[i]
		if !s.live {
			continue
		}
		victims = append(victims, r.evict(makeHandle(uint32(i), s.generation), s))
	}
	r.mu.Unlock()

	var err error
	for _, v := range victims {
		err = multierr.Append(err, r.release(v))
	}
	return len(victims), err
}

// Len returns the number of live entries.
//
// Thread-safe.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

// Contains reports whether h currently has a live entry.
//
// Thread-safe.
func (r *Registry[T]) Contains(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.lookup(h)
	return ok
}

// lookup must be called with r.mu held.
func (r *Registry[T]) lookup(h Handle) (*slot[T], bool) {
	idx, gen, ok := h.split()
	if !ok || int(idx) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[idx]
	if !s.live || s.generation != gen {
		return nil, false
	}
	return s, true
}

// evict unlinks a live slot and returns its value. Must hold the write lock.
func (r *Registry[T]) evict(h Handle, s *slot[T]) T {
	idx, _, _ := h.split()
	v := s.value
	var zero T
	s.value = zero
	s.live = false
	r.free = append(r.free, idx)
	r.live--
	return v
}

func (r *Registry[T]) release(v T) error {
	if r.destroy == nil {
		return nil
	}
	return r.destroy(v)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
		reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

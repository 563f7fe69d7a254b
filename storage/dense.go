package storage

import (
	"fmt"
	"sync"

	"github.com/germangb/newton-go/errors"
)

// Dense is a slab-backed Store. Entries live in a slice indexed by key;
// removed slots are recycled through a free list. A side map resolves
// handles to keys.
type Dense[H comparable, P any] struct {
	mu       sync.RWMutex
	entries  []denseEntry[H, P]
	freeList []Key
	index    map[H]Key
}

type denseEntry[H comparable, P any] struct {
	handle  H
	payload P
	alive   bool
}

// NewDense creates an empty dense store.
func NewDense[H comparable, P any]() *Dense[H, P] {
	return &Dense[H, P]{
		entries:  make([]denseEntry[H, P], 0, 64),
		freeList: make([]Key, 0, 16),
		index:    make(map[H]Key, 64),
	}
}

// Insert registers a handle with its payload and returns the entry key.
func (s *Dense[H, P]) Insert(h H, payload P) (Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[h]; exists {
		return 0, errors.DuplicateHandle("storage.insert", fmt.Sprint(h))
	}

	e := denseEntry[H, P]{handle: h, payload: payload, alive: true}

	if n := len(s.freeList); n > 0 {
		key := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		s.entries[key-1] = e
		s.index[h] = key
		return key, nil
	}

	s.entries = append(s.entries, e)
	key := Key(len(s.entries))
	s.index[h] = key
	return key, nil
}

// Get returns the payload for a live handle.
func (s *Dense[H, P]) Get(h H) (P, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.index[h]
	if !ok {
		var zero P
		return zero, false
	}
	return s.entries[key-1].payload, true
}

// Remove deletes a live entry and returns its payload.
func (s *Dense[H, P]) Remove(h H) (P, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.index[h]
	if !ok {
		var zero P
		return zero, errors.NotFound("storage.remove", fmt.Sprint(h))
	}
	return s.removeLocked(key), nil
}

// RemoveKey deletes a live entry by the key Insert returned.
func (s *Dense[H, P]) RemoveKey(k Key) (P, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k == 0 || int(k) > len(s.entries) || !s.entries[k-1].alive {
		var zero P
		return zero, errors.NotFound("storage.remove_key", fmt.Sprintf("key(%d)", k))
	}
	return s.removeLocked(k), nil
}

func (s *Dense[H, P]) removeLocked(key Key) P {
	e := &s.entries[key-1]
	payload := e.payload

	var zeroE denseEntry[H, P]
	delete(s.index, e.handle)
	*e = zeroE
	s.freeList = append(s.freeList, key)

	return payload
}

// Each calls fn for every live entry in slab order until fn returns false.
func (s *Dense[H, P]) Each(fn func(H, P) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.entries {
		if !s.entries[i].alive {
			continue
		}
		if !fn(s.entries[i].handle, s.entries[i].payload) {
			return
		}
	}
}

// Drain removes every live entry, then calls fn for each removed pair.
func (s *Dense[H, P]) Drain(fn func(H, P)) {
	s.mu.Lock()
	drained := make([]denseEntry[H, P], 0, len(s.index))
	for i := range s.entries {
		if s.entries[i].alive {
			drained = append(drained, s.entries[i])
		}
	}
	s.entries = s.entries[:0]
	s.freeList = s.freeList[:0]
	s.index = make(map[H]Key, 64)
	s.mu.Unlock()

	for i := range drained {
		fn(drained[i].handle, drained[i].payload)
	}
}

// Len returns the number of live entries.
func (s *Dense[H, P]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

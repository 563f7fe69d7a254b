package storage

import (
	"fmt"
	"sync"

	"github.com/germangb/newton-go/errors"
)

// Ordered is a Store whose iteration order matches insertion order.
// Entries live in a map; a slot list records the insertion sequence and is
// compacted lazily once removals outnumber live entries.
type Ordered[H comparable, P any] struct {
	mu      sync.RWMutex
	entries map[H]*orderedEntry[H, P]
	byKey   map[Key]H
	order   []orderedSlot[H]
	nextKey Key
	dead    int
}

type orderedEntry[H comparable, P any] struct {
	payload P
	key     Key
}

// orderedSlot pins an order position to a specific entry generation. The
// key guards against a native layer recycling a raw handle value: a stale
// slot for a removed-and-reinserted handle no longer matches the live key.
type orderedSlot[H comparable] struct {
	handle H
	key    Key
}

// NewOrdered creates an empty insertion-ordered store.
func NewOrdered[H comparable, P any]() *Ordered[H, P] {
	return &Ordered[H, P]{
		entries: make(map[H]*orderedEntry[H, P], 64),
		byKey:   make(map[Key]H, 64),
		order:   make([]orderedSlot[H], 0, 64),
	}
}

// Insert registers a handle with its payload and returns the entry key.
func (s *Ordered[H, P]) Insert(h H, payload P) (Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[h]; exists {
		return 0, errors.DuplicateHandle("storage.insert", fmt.Sprint(h))
	}

	s.nextKey++
	key := s.nextKey
	s.entries[h] = &orderedEntry[H, P]{payload: payload, key: key}
	s.byKey[key] = h
	s.order = append(s.order, orderedSlot[H]{handle: h, key: key})
	return key, nil
}

// Get returns the payload for a live handle.
func (s *Ordered[H, P]) Get(h H) (P, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[h]
	if !ok {
		var zero P
		return zero, false
	}
	return e.payload, true
}

// Remove deletes a live entry and returns its payload.
func (s *Ordered[H, P]) Remove(h H) (P, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[h]
	if !ok {
		var zero P
		return zero, errors.NotFound("storage.remove", fmt.Sprint(h))
	}
	return s.removeLocked(h, e), nil
}

// RemoveKey deletes a live entry by the key Insert returned.
func (s *Ordered[H, P]) RemoveKey(k Key) (P, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.byKey[k]
	if !ok {
		var zero P
		return zero, errors.NotFound("storage.remove_key", fmt.Sprintf("key(%d)", k))
	}
	return s.removeLocked(h, s.entries[h]), nil
}

func (s *Ordered[H, P]) removeLocked(h H, e *orderedEntry[H, P]) P {
	payload := e.payload
	delete(s.entries, h)
	delete(s.byKey, e.key)
	s.dead++

	if s.dead > len(s.entries) {
		s.compactLocked()
	}
	return payload
}

func (s *Ordered[H, P]) compactLocked() {
	live := s.order[:0]
	for _, slot := range s.order {
		if e, ok := s.entries[slot.handle]; ok && e.key == slot.key {
			live = append(live, slot)
		}
	}
	s.order = live
	s.dead = 0
}

// Each calls fn for every live entry in insertion order until fn returns false.
func (s *Ordered[H, P]) Each(fn func(H, P) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, slot := range s.order {
		e, ok := s.entries[slot.handle]
		if !ok || e.key != slot.key {
			continue
		}
		if !fn(slot.handle, e.payload) {
			return
		}
	}
}

// Drain removes every live entry in insertion order, then calls fn for each.
func (s *Ordered[H, P]) Drain(fn func(H, P)) {
	s.mu.Lock()
	type pair struct {
		handle  H
		payload P
	}
	drained := make([]pair, 0, len(s.entries))
	for _, slot := range s.order {
		if e, ok := s.entries[slot.handle]; ok && e.key == slot.key {
			drained = append(drained, pair{handle: slot.handle, payload: e.payload})
		}
	}
	s.entries = make(map[H]*orderedEntry[H, P], 64)
	s.byKey = make(map[Key]H, 64)
	s.order = s.order[:0]
	s.dead = 0
	s.mu.Unlock()

	for i := range drained {
		fn(drained[i].handle, drained[i].payload)
	}
}

// Len returns the number of live entries.
func (s *Ordered[H, P]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

package storage

import "fmt"

// Key identifies an entry within the Store that issued it.
// Key 0 is reserved and always invalid.
type Key uint32

// Backend selects the storage implementation for a Store.
type Backend uint8

const (
	// BackendDense stores entries in a slab with a free list. Lookup and
	// removal are O(1); iteration order is unspecified but stable between
	// mutating calls.
	BackendDense Backend = iota

	// BackendOrdered preserves insertion order during iteration at the
	// cost of extra bookkeeping per entry.
	BackendOrdered
)

// String returns the configuration name of the backend.
func (b Backend) String() string {
	switch b {
	case BackendDense:
		return "dense"
	case BackendOrdered:
		return "ordered"
	default:
		return fmt.Sprintf("backend(%d)", uint8(b))
	}
}

// ParseBackend maps a configuration string to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "", "dense":
		return BackendDense, nil
	case "ordered":
		return BackendOrdered, nil
	default:
		return BackendDense, fmt.Errorf("unknown storage backend %q", s)
	}
}

// Store is a registry of live handles and their payloads. Implementations
// are safe for concurrent use. Liveness is flipped only by Insert, Remove,
// RemoveKey and Drain; no other component mutates it.
type Store[H comparable, P any] interface {
	// Insert registers a handle with its payload and returns the entry key.
	// Inserting a handle that is already live fails with DuplicateHandle.
	Insert(h H, payload P) (Key, error)

	// Get returns the payload for a live handle. It reports false for
	// handles that were never inserted or have been removed.
	Get(h H) (P, bool)

	// Remove deletes a live entry and returns its payload. Removal is
	// immediate: no concurrent caller observes the entry afterwards.
	// Removing an absent or already-removed handle fails with NotFound.
	Remove(h H) (P, error)

	// RemoveKey is Remove addressed by the key Insert returned.
	RemoveKey(k Key) (P, error)

	// Each calls fn for every live entry until fn returns false.
	// The dense backend iterates in an unspecified but stable order;
	// the ordered backend iterates in insertion order.
	Each(fn func(H, P) bool)

	// Drain removes every live entry in backend iteration order, calling
	// fn for each after it has been removed. The store is empty afterwards
	// and remains usable.
	Drain(fn func(H, P))

	// Len returns the number of live entries.
	Len() int
}

// New returns an empty Store using the given backend.
func New[H comparable, P any](b Backend) Store[H, P] {
	if b == BackendOrdered {
		return NewOrdered[H, P]()
	}
	return NewDense[H, P]()
}

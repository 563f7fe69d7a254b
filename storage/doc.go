// Package storage provides the handle registry backing a simulation world.
//
// A Store maps opaque native handles to live wrapper metadata. Every handle
// a world hands out is registered here for exactly the native object's
// lifetime: inserted before the owning wrapper is returned to the caller,
// removed at the moment the native object is destroyed. Lookups never
// return dead entries, and all liveness transitions happen inside Store
// methods.
//
// # Backends
//
// Two interchangeable backends trade lookup speed for iteration-order
// guarantees, selected at world construction time:
//
//	Dense    slab-allocated entries with a free list; O(1) by key,
//	         iteration order unspecified but stable between mutations
//	Ordered  preserves insertion order during iteration; used when
//	         deterministic traversal matters (serialization, debug views)
//
// Both are safe for concurrent use.
//
// # Usage
//
//	store := storage.New[uintptr, *Record](storage.BackendDense)
//
//	key, err := store.Insert(handle, rec) // DuplicateHandle if present
//	rec, ok := store.Get(handle)          // misses for removed handles
//	rec, err := store.Remove(handle)      // NotFound if absent
//
//	store.Each(func(h uintptr, rec *Record) bool {
//	    return true // false stops iteration
//	})
//
// Double insertion of a live handle fails loudly with DuplicateHandle: it
// signals corrupted bookkeeping in the layer above, not a recoverable
// condition.
package storage

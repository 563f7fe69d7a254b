// Package native defines the C function surface of the Newton Dynamics
// engine and its cgo-free binding.
//
// Everything above this package (the newton root package, scene, cmd)
// talks to the simulation exclusively through the Engine interface. The
// interface mirrors C semantics one to one: constructors return a zero
// handle on allocation failure, destructors take raw handles, WorldUpdate
// advances the simulation synchronously on the calling goroutine, and no
// method validates its arguments. Validation, ownership and liveness are
// the job of the layers above.
//
// # Raw Handles
//
// World, Body, Collision, Joint and Mesh are uintptr-backed types holding
// the native object pointers verbatim. They carry no liveness information;
// a stale handle is indistinguishable from a live one. Never dereference,
// store or compare them outside the registry kept by the newton package.
//
// # Implementations
//
// Two implementations exist:
//
//	Library            - purego binding to the Newton shared library
//	nativetest.Engine  - scriptable in-memory engine for tests
//
// Library is available on unix platforms only; Open returns Unsupported
// elsewhere. The binding resolves the NewtonCreate, NewtonUpdate,
// NewtonCreateDynamicBody ... exports at Open time, so a truncated or
// mismatched shared object fails loudly up front rather than at first use.
//
// # Callbacks
//
// The engine calls back into Go during WorldUpdate, RayCast and
// BodiesInAABB. Callback arguments are raw handles; resolving them to safe
// wrappers is the caller's concern. Callbacks run on the goroutine (or
// native worker thread) driving the update and must not call back into
// Engine methods that mutate world topology.
package native

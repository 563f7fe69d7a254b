// Package nativetest provides a scriptable in-memory implementation of
// native.Engine for tests.
//
// The engine tracks every construct/destroy pair, records state writes,
// and lets tests script the events a real simulation would produce:
//
//	eng := nativetest.New()
//	w, _ := newton.NewWorld(eng, nil)
//
//	// script a broadphase overlap; the next WorldUpdate drives the
//	// material callbacks registered for the pair
//	eng.ScriptOverlap(raw0, raw1)
//
//	// script ray intersections for RayCast
//	eng.ScriptRayHit(nativetest.RayHit{Body: raw0, Param: 0.25})
//
//	// block mid-update to probe gating behavior
//	eng.OnUpdate(func() { <-release })
//
// # Safety accounting
//
// DestroyCount reports how many times a destructor saw a given handle;
// exactly-once teardown asserts it equals 1 for every created handle.
// Live* counters report objects created but never destroyed.
//
// Engine methods called while an update is in flight, other than from
// inside a callback the engine itself is driving, increment UnsafeCalls.
// A correctly gated layer above never trips it: operations either run
// before/after the step or fail fast without reaching the engine.
//
// # Approximate dynamics
//
// WorldUpdate integrates velocities and positions with a trivial explicit
// scheme so multi-step scenarios observe plausible motion. It is not a
// physics solver and collision response never moves bodies.
package nativetest

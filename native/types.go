package native

// Raw native handles. Zero means null. The values are the C pointers
// verbatim; the engine may recycle a freed pointer for a later allocation,
// so a handle alone never proves liveness.
type (
	World     uintptr
	Body      uintptr
	Collision uintptr
	Joint     uintptr
	Mesh      uintptr
)

// Solver models accepted by WorldSetSolverModel. Values above SolverExact
// select the iterative solver with that many linear passes.
const (
	SolverExact      int32 = 0
	SolverIterative1 int32 = 1
	SolverIterative2 int32 = 2
	SolverIterative4 int32 = 4
)

// Broadphase algorithms accepted by WorldSetBroadphase.
const (
	BroadphaseDefault    int32 = 0
	BroadphasePersistent int32 = 1
)

// Body types reported by the engine.
const (
	BodyDynamic   int32 = 0
	BodyKinematic int32 = 1
)

// Sleep states for BodySleepState/BodySetSleepState.
const (
	StateAwake    int32 = 0
	StateSleeping int32 = 1
)

// Contact describes one contact point delivered to a ContactProcess
// callback. Handles are raw; Position and Normal are world-space.
type Contact struct {
	Body0       Body
	Body1       Body
	Position    [3]float32
	Normal      [3]float32
	NormalSpeed float32
}

// ForceTorque is invoked once per dynamic body per update substep. The
// handler applies external forces via BodySetForce/BodyAddForce/
// BodySetTorque; writing anything else from here is undefined.
type ForceTorque func(b Body, timestep float32, threadIndex int32)

// AABBOverlap vetoes contact generation for a body pair whose broadphase
// volumes began overlapping. Returning false discards the pair this update.
type AABBOverlap func(b0, b1 Body, threadIndex int32) bool

// ContactProcess receives each contact point of an active contact joint.
type ContactProcess func(c Contact, timestep float32, threadIndex int32)

// RayFilter is invoked for every convex intersection along a cast ray, in
// broadphase order (not sorted by distance). The return value clips the
// ray: return param to narrow the search to the hit, 1 to keep the full
// length, 0 to terminate the cast.
type RayFilter func(b Body, c Collision, position, normal [3]float32, param float32) float32

// RayPrefilter runs before the narrow-phase test; returning false skips
// the body entirely.
type RayPrefilter func(b Body, c Collision) bool

// BodyIter visits bodies during BodiesInAABB. Returning false stops the
// iteration.
type BodyIter func(b Body) bool

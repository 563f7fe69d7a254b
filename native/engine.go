package native

// Engine is the complete C function surface consumed by the newton
// package. Methods mirror the native calling convention: constructors
// return a zero handle when the engine refuses the allocation, matrix and
// vector parameters are passed by pointer (nil offset = identity), and
// nothing here checks handle validity.
//
// Destructors return an error so implementations backed by something
// other than the raw C library (test engines, pooled engines) can report
// teardown failures; the shared-library binding always returns nil.
type Engine interface {
	WorldAPI
	BodyAPI
	CollisionAPI
	JointAPI
	MeshAPI
	MaterialAPI
	QueryAPI
	CallbackAPI
}

// WorldAPI owns simulation contexts and the global update entry point.
type WorldAPI interface {
	WorldCreate() World
	WorldDestroy(w World) error

	// WorldUpdate advances the simulation by timestep seconds. It blocks
	// the calling goroutine until the solve completes and drives every
	// registered callback from inside the call.
	WorldUpdate(w World, timestep float32) error

	WorldSetThreads(w World, count int32)
	WorldThreads(w World) int32
	WorldSetSolverModel(w World, model int32)
	WorldSetBroadphase(w World, algorithm int32)
	WorldInvalidateCache(w World)
	WorldBodyCount(w World) int32
	WorldConstraintCount(w World) int32
}

// BodyAPI creates rigid bodies and reads/writes their dynamic state.
type BodyAPI interface {
	BodyCreateDynamic(w World, col Collision, matrix *[16]float32) Body
	BodyCreateKinematic(w World, col Collision, matrix *[16]float32) Body
	BodyDestroy(b Body) error

	BodyMatrix(b Body) [16]float32
	BodySetMatrix(b Body, m *[16]float32)
	BodyPosition(b Body) [3]float32
	BodyRotation(b Body) [4]float32
	BodyVelocity(b Body) [3]float32
	BodySetVelocity(b Body, v *[3]float32)
	BodyOmega(b Body) [3]float32
	BodySetOmega(b Body, v *[3]float32)

	// Force accessors are meaningful only inside a ForceTorque callback.
	BodySetForce(b Body, f *[3]float32)
	BodyAddForce(b Body, f *[3]float32)
	BodySetTorque(b Body, t *[3]float32)

	BodyAddImpulse(b Body, deltaVelocity, point *[3]float32, timestep float32)
	BodySetMassProperties(b Body, mass float32, col Collision)
	BodyAABB(b Body) (min, max [3]float32)
	BodySleepState(b Body) int32
	BodySetSleepState(b Body, state int32)
	BodyCollision(b Body) Collision
	BodyMaterialGroup(b Body) int32
	BodySetMaterialGroup(b Body, group int32)
	BodySetLinearDamping(b Body, damping float32)
	BodySetAngularDamping(b Body, damping *[3]float32)

	// The userdata slot is reserved for the binding's callback registry;
	// application user data lives in the newton package payloads.
	BodyUserData(b Body) uintptr
	BodySetUserData(b Body, ud uintptr)
}

// CollisionAPI builds and inspects collision shapes. Shapes are reference
// counted by the native engine; the layers above keep exactly one
// reference per live wrapper.
type CollisionAPI interface {
	CollisionCreateBox(w World, dx, dy, dz float32, offset *[16]float32) Collision
	CollisionCreateSphere(w World, radius float32, offset *[16]float32) Collision
	CollisionCreateCapsule(w World, radius0, radius1, height float32, offset *[16]float32) Collision
	CollisionCreateCylinder(w World, radius0, radius1, height float32, offset *[16]float32) Collision
	CollisionCreateCone(w World, radius, height float32, offset *[16]float32) Collision
	CollisionCreateNull(w World) Collision
	CollisionDestroy(c Collision) error

	CollisionScale(c Collision) [3]float32
	CollisionSetScale(c Collision, x, y, z float32)
	CollisionMatrix(c Collision) [16]float32
	CollisionSetMatrix(c Collision, m *[16]float32)
	CollisionUserID(c Collision) uint32
	CollisionSetUserID(c Collision, id uint32)
	CollisionAABB(c Collision, m *[16]float32) (min, max [3]float32)
}

// JointAPI creates constraints between body pairs.
type JointAPI interface {
	JointCreateBall(w World, pivot *[3]float32, child, parent Body) Joint
	JointCreateSlider(w World, pivot, dir *[3]float32, child, parent Body) Joint
	JointCreateCorkscrew(w World, pivot, dir *[3]float32, child, parent Body) Joint
	JointCreateUniversal(w World, pivot, dir0, dir1 *[3]float32, child, parent Body) Joint
	JointCreateUpVector(w World, dir *[3]float32, body Body) Joint
	JointDestroy(w World, j Joint) error

	JointBody0(j Joint) Body
	JointBody1(j Joint) Body
	JointCollisionState(j Joint) int32
	JointSetCollisionState(j Joint, state int32)
	JointStiffness(j Joint) float32
	JointSetStiffness(j Joint, stiffness float32)
}

// MeshAPI builds triangle meshes from shapes and reads vertex data.
type MeshAPI interface {
	MeshCreate(w World) Mesh
	MeshCreateFromCollision(c Collision) Mesh
	MeshDestroy(m Mesh) error

	MeshVertexCount(m Mesh) int32

	// MeshVertices fills dst with x,y,z triples and reports how many
	// float32 values were written (at most len(dst), rounded down to a
	// multiple of three).
	MeshVertices(m Mesh, dst []float32) int32
	MeshApplyTransform(m Mesh, matrix *[16]float32)
}

// MaterialAPI manages material group ids and per-pair contact defaults.
type MaterialAPI interface {
	MaterialCreateGroup(w World) int32
	MaterialDefaultGroup(w World) int32
	MaterialDestroyAllGroups(w World)

	MaterialSetDefaultFriction(w World, g0, g1 int32, static, kinetic float32)
	MaterialSetDefaultElasticity(w World, g0, g1 int32, elasticity float32)
	MaterialSetSurfaceThickness(w World, g0, g1 int32, thickness float32)
	MaterialSetDefaultCollidable(w World, g0, g1 int32, state int32)
}

// QueryAPI runs geometric queries. Both calls are synchronous; callbacks
// fire on the calling goroutine before the method returns.
type QueryAPI interface {
	RayCast(w World, p0, p1 [3]float32, filter RayFilter, prefilter RayPrefilter)
	BodiesInAABB(w World, min, max [3]float32, fn BodyIter)
}

// CallbackAPI installs the callbacks the engine drives during WorldUpdate.
type CallbackAPI interface {
	// BodySetForceAndTorque installs fn as the body's force applicator;
	// nil removes it. Bodies without an applicator receive no external
	// forces.
	BodySetForceAndTorque(b Body, fn ForceTorque)

	// MaterialSetCallbacks installs the broadphase veto and the contact
	// processor for a material group pair. Either may be nil.
	MaterialSetCallbacks(w World, g0, g1 int32, overlap AABBOverlap, process ContactProcess)
}

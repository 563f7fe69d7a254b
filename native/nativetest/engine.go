package nativetest

import (
	"sync"
	"sync/atomic"

	"github.com/germangb/newton-go/native"
)

// Engine is an in-memory native.Engine. Construct with New. All methods
// are safe for concurrent use; the scripting and inspection methods are
// meant to be called from the test goroutine around steps, not during
// them.
type Engine struct {
	mu  sync.Mutex
	seq uintptr

	worlds     map[native.World]*worldState
	bodies     map[native.Body]*bodyState
	collisions map[native.Collision]*collisionState
	joints     map[native.Joint]*jointState
	meshes     map[native.Mesh]*meshState

	destroys   map[uintptr]int
	destroyErr map[uintptr]error
	failCreate bool

	overlaps []overlap
	rayHits  []RayHit

	hook func()

	updating    atomic.Bool
	dispatching atomic.Bool
	unsafeCalls atomic.Int64
}

type worldState struct {
	threads    int32
	solver     int32
	broadphase int32
	nextGroup  int32
	matCB      map[[2]int32]matPair
}

type matPair struct {
	overlap native.AABBOverlap
	process native.ContactProcess
}

type bodyState struct {
	seq       int
	world     native.World
	col       native.Collision
	kinematic bool
	matrix    [16]float32
	velocity  [3]float32
	omega     [3]float32
	force     [3]float32
	torque    [3]float32
	mass      float32
	sleep     int32
	material  int32
	linDamp   float32
	angDamp   [3]float32
	userData  uintptr
	forceCB   native.ForceTorque
}

type collisionState struct {
	world  native.World
	half   [3]float32
	scale  [3]float32
	matrix [16]float32
	userID uint32
}

type jointState struct {
	world     native.World
	kind      string
	body0     native.Body
	body1     native.Body
	collState int32
	stiffness float32
}

type meshState struct {
	world    native.World
	vertices []float32
}

type overlap struct {
	b0, b1 native.Body
}

// RayHit scripts one intersection reported by RayCast, visited in the
// order scripted (the native broadphase does not sort by distance).
type RayHit struct {
	Body     native.Body
	Param    float32
	Position [3]float32
	Normal   [3]float32
}

var _ native.Engine = (*Engine)(nil)

// New returns an empty engine.
func New() *Engine {
	return &Engine{
		worlds:     make(map[native.World]*worldState),
		bodies:     make(map[native.Body]*bodyState),
		collisions: make(map[native.Collision]*collisionState),
		joints:     make(map[native.Joint]*jointState),
		meshes:     make(map[native.Mesh]*meshState),
		destroys:   make(map[uintptr]int),
		destroyErr: make(map[uintptr]error),
	}
}

// noteCall flags engine entry while an update is in flight and the call
// did not come from a callback the engine is driving.
func (e *Engine) noteCall() {
	if e.updating.Load() && !e.dispatching.Load() {
		e.unsafeCalls.Add(1)
	}
}

func (e *Engine) nextHandle() uintptr {
	e.seq++
	return e.seq
}

func (e *Engine) takeFailure() bool {
	if e.failCreate {
		e.failCreate = false
		return true
	}
	return false
}

var identity = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// --- scripting and inspection ---

// FailNextCreate makes the next constructor call return a zero handle.
func (e *Engine) FailNextCreate() {
	e.mu.Lock()
	e.failCreate = true
	e.mu.Unlock()
}

// FailDestroy makes the destructor for h return err. The object is still
// torn down and counted.
func (e *Engine) FailDestroy(h uintptr, err error) {
	e.mu.Lock()
	e.destroyErr[h] = err
	e.mu.Unlock()
}

// ScriptOverlap registers a broadphase pair. Every subsequent WorldUpdate
// drives the material callbacks for the pair until ClearOverlaps.
func (e *Engine) ScriptOverlap(b0, b1 native.Body) {
	e.mu.Lock()
	e.overlaps = append(e.overlaps, overlap{b0: b0, b1: b1})
	e.mu.Unlock()
}

// ClearOverlaps drops all scripted pairs.
func (e *Engine) ClearOverlaps() {
	e.mu.Lock()
	e.overlaps = nil
	e.mu.Unlock()
}

// ScriptRayHit appends intersections visited by subsequent RayCast calls.
func (e *Engine) ScriptRayHit(hits ...RayHit) {
	e.mu.Lock()
	e.rayHits = append(e.rayHits, hits...)
	e.mu.Unlock()
}

// OnUpdate installs fn to run inside every WorldUpdate, after callback
// dispatch and before integration. Install before stepping.
func (e *Engine) OnUpdate(fn func()) {
	e.mu.Lock()
	e.hook = fn
	e.mu.Unlock()
}

// DestroyCount reports how many times a destructor saw handle h.
func (e *Engine) DestroyCount(h uintptr) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroys[h]
}

// UnsafeCalls reports engine entries that raced an in-flight update.
func (e *Engine) UnsafeCalls() int64 { return e.unsafeCalls.Load() }

// LiveWorlds reports worlds created and not yet destroyed.
func (e *Engine) LiveWorlds() int { e.mu.Lock(); defer e.mu.Unlock(); return len(e.worlds) }

// LiveBodies reports bodies created and not yet destroyed.
func (e *Engine) LiveBodies() int { e.mu.Lock(); defer e.mu.Unlock(); return len(e.bodies) }

// LiveCollisions reports collisions created and not yet destroyed.
func (e *Engine) LiveCollisions() int { e.mu.Lock(); defer e.mu.Unlock(); return len(e.collisions) }

// LiveJoints reports joints created and not yet destroyed.
func (e *Engine) LiveJoints() int { e.mu.Lock(); defer e.mu.Unlock(); return len(e.joints) }

// LiveMeshes reports meshes created and not yet destroyed.
func (e *Engine) LiveMeshes() int { e.mu.Lock(); defer e.mu.Unlock(); return len(e.meshes) }

// BodySnapshot is a copy of a body's recorded state.
type BodySnapshot struct {
	World     native.World
	Collision native.Collision
	Kinematic bool
	Matrix    [16]float32
	Velocity  [3]float32
	Omega     [3]float32
	Force     [3]float32
	Torque    [3]float32
	Mass      float32
	Sleep     int32
	Material  int32
	HasForce  bool
}

// Body returns the recorded state of a live body.
func (e *Engine) Body(h native.Body) (BodySnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs, ok := e.bodies[h]
	if !ok {
		return BodySnapshot{}, false
	}
	return BodySnapshot{
		World:     bs.world,
		Collision: bs.col,
		Kinematic: bs.kinematic,
		Matrix:    bs.matrix,
		Velocity:  bs.velocity,
		Omega:     bs.omega,
		Force:     bs.force,
		Torque:    bs.torque,
		Mass:      bs.mass,
		Sleep:     bs.sleep,
		Material:  bs.material,
		HasForce:  bs.forceCB != nil,
	}, true
}

// WorldSnapshot is a copy of a world's configuration.
type WorldSnapshot struct {
	Threads    int32
	Solver     int32
	Broadphase int32
}

// World returns the recorded configuration of a live world.
func (e *Engine) World(h native.World) (WorldSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ws, ok := e.worlds[h]
	if !ok {
		return WorldSnapshot{}, false
	}
	return WorldSnapshot{Threads: ws.threads, Solver: ws.solver, Broadphase: ws.broadphase}, true
}

// --- WorldAPI ---

func (e *Engine) WorldCreate() native.World {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.takeFailure() {
		return 0
	}
	h := native.World(e.nextHandle())
	e.worlds[h] = &worldState{
		threads: 1,
		matCB:   make(map[[2]int32]matPair),
	}
	return h
}

func (e *Engine) WorldDestroy(w native.World) error {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroys[uintptr(w)]++
	delete(e.worlds, w)
	if err := e.destroyErr[uintptr(w)]; err != nil {
		return err
	}
	return nil
}

func (e *Engine) WorldUpdate(w native.World, timestep float32) error {
	e.noteCall()

	type forceDispatch struct {
		b  native.Body
		fn native.ForceTorque
	}
	type contactDispatch struct {
		b0, b1  native.Body
		overlap native.AABBOverlap
		process native.ContactProcess
		point   [3]float32
	}

	e.mu.Lock()
	ws := e.worlds[w]
	if ws == nil {
		e.mu.Unlock()
		return nil
	}
	hook := e.hook

	var forces []forceDispatch
	for h, bs := range e.bodies {
		if bs.world == w && bs.forceCB != nil && !bs.kinematic {
			forces = append(forces, forceDispatch{b: h, fn: bs.forceCB})
		}
	}
	// map order is unstable; dispatch in creation order like the native
	// engine's body list
	for i := 1; i < len(forces); i++ {
		for j := i; j > 0 && e.bodies[forces[j].b].seq < e.bodies[forces[j-1].b].seq; j-- {
			forces[j], forces[j-1] = forces[j-1], forces[j]
		}
	}

	var contacts []contactDispatch
	for _, ov := range e.overlaps {
		b0, b1 := e.bodies[ov.b0], e.bodies[ov.b1]
		if b0 == nil || b1 == nil || b0.world != w {
			continue
		}
		pair, ok := ws.matCB[groupKey(b0.material, b1.material)]
		if !ok {
			continue
		}
		contacts = append(contacts, contactDispatch{
			b0:      ov.b0,
			b1:      ov.b1,
			overlap: pair.overlap,
			process: pair.process,
			point:   [3]float32{b0.matrix[12], b0.matrix[13], b0.matrix[14]},
		})
	}
	e.mu.Unlock()

	e.updating.Store(true)
	defer e.updating.Store(false)

	for _, fd := range forces {
		e.dispatch(func() { fd.fn(fd.b, timestep, 0) })
	}

	for _, cd := range contacts {
		keep := true
		if cd.overlap != nil {
			e.dispatch(func() { keep = cd.overlap(cd.b0, cd.b1, 0) })
		}
		if !keep || cd.process == nil {
			continue
		}
		c := native.Contact{
			Body0:    cd.b0,
			Body1:    cd.b1,
			Position: cd.point,
			Normal:   [3]float32{0, 1, 0},
		}
		e.dispatch(func() { cd.process(c, timestep, 0) })
	}

	if hook != nil {
		hook()
	}

	e.mu.Lock()
	for _, bs := range e.bodies {
		if bs.world != w || bs.sleep == native.StateSleeping {
			continue
		}
		if !bs.kinematic && bs.mass > 0 {
			inv := timestep / bs.mass
			bs.velocity[0] += bs.force[0] * inv
			bs.velocity[1] += bs.force[1] * inv
			bs.velocity[2] += bs.force[2] * inv
		}
		bs.matrix[12] += bs.velocity[0] * timestep
		bs.matrix[13] += bs.velocity[1] * timestep
		bs.matrix[14] += bs.velocity[2] * timestep
		bs.force = [3]float32{}
		bs.torque = [3]float32{}
	}
	e.mu.Unlock()
	return nil
}

func (e *Engine) dispatch(fn func()) {
	e.dispatching.Store(true)
	fn()
	e.dispatching.Store(false)
}

func groupKey(g0, g1 int32) [2]int32 {
	if g1 < g0 {
		g0, g1 = g1, g0
	}
	return [2]int32{g0, g1}
}

func (e *Engine) WorldSetThreads(w native.World, count int32) {
	e.noteCall()
	e.mu.Lock()
	if ws := e.worlds[w]; ws != nil {
		ws.threads = count
	}
	e.mu.Unlock()
}

func (e *Engine) WorldThreads(w native.World) int32 {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	if ws := e.worlds[w]; ws != nil {
		return ws.threads
	}
	return 0
}

func (e *Engine) WorldSetSolverModel(w native.World, model int32) {
	e.noteCall()
	e.mu.Lock()
	if ws := e.worlds[w]; ws != nil {
		ws.solver = model
	}
	e.mu.Unlock()
}

func (e *Engine) WorldSetBroadphase(w native.World, algorithm int32) {
	e.noteCall()
	e.mu.Lock()
	if ws := e.worlds[w]; ws != nil {
		ws.broadphase = algorithm
	}
	e.mu.Unlock()
}

func (e *Engine) WorldInvalidateCache(w native.World) { e.noteCall() }

func (e *Engine) WorldBodyCount(w native.World) int32 {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	var n int32
	for _, bs := range e.bodies {
		if bs.world == w {
			n++
		}
	}
	return n
}

func (e *Engine) WorldConstraintCount(w native.World) int32 {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	var n int32
	for _, js := range e.joints {
		if js.world == w {
			n++
		}
	}
	return n
}

// --- BodyAPI ---

func (e *Engine) createBody(w native.World, col native.Collision, matrix *[16]float32, kinematic bool) native.Body {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.takeFailure() || e.worlds[w] == nil {
		return 0
	}
	h := native.Body(e.nextHandle())
	bs := &bodyState{
		seq:       int(h),
		world:     w,
		col:       col,
		kinematic: kinematic,
		matrix:    identity,
	}
	if matrix != nil {
		bs.matrix = *matrix
	}
	e.bodies[h] = bs
	return h
}

func (e *Engine) BodyCreateDynamic(w native.World, col native.Collision, matrix *[16]float32) native.Body {
	e.noteCall()
	return e.createBody(w, col, matrix, false)
}

func (e *Engine) BodyCreateKinematic(w native.World, col native.Collision, matrix *[16]float32) native.Body {
	e.noteCall()
	return e.createBody(w, col, matrix, true)
}

func (e *Engine) BodyDestroy(b native.Body) error {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroys[uintptr(b)]++
	delete(e.bodies, b)
	if err := e.destroyErr[uintptr(b)]; err != nil {
		return err
	}
	return nil
}

func (e *Engine) bodyRead(b native.Body, read func(*bodyState)) {
	e.noteCall()
	e.mu.Lock()
	if bs := e.bodies[b]; bs != nil {
		read(bs)
	}
	e.mu.Unlock()
}

func (e *Engine) BodyMatrix(b native.Body) (m [16]float32) {
	e.bodyRead(b, func(bs *bodyState) { m = bs.matrix })
	return m
}

func (e *Engine) BodySetMatrix(b native.Body, m *[16]float32) {
	e.bodyRead(b, func(bs *bodyState) { bs.matrix = *m })
}

func (e *Engine) BodyPosition(b native.Body) (p [3]float32) {
	e.bodyRead(b, func(bs *bodyState) {
		p = [3]float32{bs.matrix[12], bs.matrix[13], bs.matrix[14]}
	})
	return p
}

func (e *Engine) BodyRotation(b native.Body) (q [4]float32) {
	e.noteCall()
	// identity quaternion; the mock does not integrate rotation
	q[0] = 1
	return q
}

func (e *Engine) BodyVelocity(b native.Body) (v [3]float32) {
	e.bodyRead(b, func(bs *bodyState) { v = bs.velocity })
	return v
}

func (e *Engine) BodySetVelocity(b native.Body, v *[3]float32) {
	e.bodyRead(b, func(bs *bodyState) { bs.velocity = *v })
}

func (e *Engine) BodyOmega(b native.Body) (v [3]float32) {
	e.bodyRead(b, func(bs *bodyState) { v = bs.omega })
	return v
}

func (e *Engine) BodySetOmega(b native.Body, v *[3]float32) {
	e.bodyRead(b, func(bs *bodyState) { bs.omega = *v })
}

func (e *Engine) BodySetForce(b native.Body, f *[3]float32) {
	e.bodyRead(b, func(bs *bodyState) { bs.force = *f })
}

func (e *Engine) BodyAddForce(b native.Body, f *[3]float32) {
	e.bodyRead(b, func(bs *bodyState) {
		bs.force[0] += f[0]
		bs.force[1] += f[1]
		bs.force[2] += f[2]
	})
}

func (e *Engine) BodySetTorque(b native.Body, t *[3]float32) {
	e.bodyRead(b, func(bs *bodyState) { bs.torque = *t })
}

func (e *Engine) BodyAddImpulse(b native.Body, dv, point *[3]float32, timestep float32) {
	e.bodyRead(b, func(bs *bodyState) {
		bs.velocity[0] += dv[0]
		bs.velocity[1] += dv[1]
		bs.velocity[2] += dv[2]
	})
}

func (e *Engine) BodySetMassProperties(b native.Body, mass float32, col native.Collision) {
	e.bodyRead(b, func(bs *bodyState) { bs.mass = mass })
}

func (e *Engine) BodyAABB(b native.Body) (min, max [3]float32) {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	bs := e.bodies[b]
	if bs == nil {
		return min, max
	}
	half := [3]float32{0.5, 0.5, 0.5}
	if cs := e.collisions[bs.col]; cs != nil {
		for i := range half {
			half[i] = cs.half[i] * cs.scale[i]
		}
	}
	for i := 0; i < 3; i++ {
		min[i] = bs.matrix[12+i] - half[i]
		max[i] = bs.matrix[12+i] + half[i]
	}
	return min, max
}

func (e *Engine) BodySleepState(b native.Body) (s int32) {
	e.bodyRead(b, func(bs *bodyState) { s = bs.sleep })
	return s
}

func (e *Engine) BodySetSleepState(b native.Body, state int32) {
	e.bodyRead(b, func(bs *bodyState) { bs.sleep = state })
}

func (e *Engine) BodyCollision(b native.Body) (c native.Collision) {
	e.bodyRead(b, func(bs *bodyState) { c = bs.col })
	return c
}

func (e *Engine) BodyMaterialGroup(b native.Body) (g int32) {
	e.bodyRead(b, func(bs *bodyState) { g = bs.material })
	return g
}

func (e *Engine) BodySetMaterialGroup(b native.Body, group int32) {
	e.bodyRead(b, func(bs *bodyState) { bs.material = group })
}

func (e *Engine) BodySetLinearDamping(b native.Body, damping float32) {
	e.bodyRead(b, func(bs *bodyState) { bs.linDamp = damping })
}

func (e *Engine) BodySetAngularDamping(b native.Body, damping *[3]float32) {
	e.bodyRead(b, func(bs *bodyState) { bs.angDamp = *damping })
}

func (e *Engine) BodyUserData(b native.Body) (ud uintptr) {
	e.bodyRead(b, func(bs *bodyState) { ud = bs.userData })
	return ud
}

func (e *Engine) BodySetUserData(b native.Body, ud uintptr) {
	e.bodyRead(b, func(bs *bodyState) { bs.userData = ud })
}

// --- CollisionAPI ---

func (e *Engine) createCollision(w native.World, half [3]float32, offset *[16]float32) native.Collision {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.takeFailure() || e.worlds[w] == nil {
		return 0
	}
	h := native.Collision(e.nextHandle())
	cs := &collisionState{
		world:  w,
		half:   half,
		scale:  [3]float32{1, 1, 1},
		matrix: identity,
	}
	if offset != nil {
		cs.matrix = *offset
	}
	e.collisions[h] = cs
	return h
}

func (e *Engine) CollisionCreateBox(w native.World, dx, dy, dz float32, offset *[16]float32) native.Collision {
	e.noteCall()
	return e.createCollision(w, [3]float32{dx / 2, dy / 2, dz / 2}, offset)
}

func (e *Engine) CollisionCreateSphere(w native.World, radius float32, offset *[16]float32) native.Collision {
	e.noteCall()
	return e.createCollision(w, [3]float32{radius, radius, radius}, offset)
}

func (e *Engine) CollisionCreateCapsule(w native.World, r0, r1, height float32, offset *[16]float32) native.Collision {
	e.noteCall()
	r := r0
	if r1 > r {
		r = r1
	}
	return e.createCollision(w, [3]float32{height / 2, r, r}, offset)
}

func (e *Engine) CollisionCreateCylinder(w native.World, r0, r1, height float32, offset *[16]float32) native.Collision {
	e.noteCall()
	r := r0
	if r1 > r {
		r = r1
	}
	return e.createCollision(w, [3]float32{height / 2, r, r}, offset)
}

func (e *Engine) CollisionCreateCone(w native.World, radius, height float32, offset *[16]float32) native.Collision {
	e.noteCall()
	return e.createCollision(w, [3]float32{height / 2, radius, radius}, offset)
}

func (e *Engine) CollisionCreateNull(w native.World) native.Collision {
	e.noteCall()
	return e.createCollision(w, [3]float32{}, nil)
}

func (e *Engine) CollisionDestroy(c native.Collision) error {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroys[uintptr(c)]++
	delete(e.collisions, c)
	if err := e.destroyErr[uintptr(c)]; err != nil {
		return err
	}
	return nil
}

func (e *Engine) collisionRead(c native.Collision, read func(*collisionState)) {
	e.noteCall()
	e.mu.Lock()
	if cs := e.collisions[c]; cs != nil {
		read(cs)
	}
	e.mu.Unlock()
}

func (e *Engine) CollisionScale(c native.Collision) (s [3]float32) {
	e.collisionRead(c, func(cs *collisionState) { s = cs.scale })
	return s
}

func (e *Engine) CollisionSetScale(c native.Collision, x, y, z float32) {
	e.collisionRead(c, func(cs *collisionState) { cs.scale = [3]float32{x, y, z} })
}

func (e *Engine) CollisionMatrix(c native.Collision) (m [16]float32) {
	e.collisionRead(c, func(cs *collisionState) { m = cs.matrix })
	return m
}

func (e *Engine) CollisionSetMatrix(c native.Collision, m *[16]float32) {
	e.collisionRead(c, func(cs *collisionState) { cs.matrix = *m })
}

func (e *Engine) CollisionUserID(c native.Collision) (id uint32) {
	e.collisionRead(c, func(cs *collisionState) { id = cs.userID })
	return id
}

func (e *Engine) CollisionSetUserID(c native.Collision, id uint32) {
	e.collisionRead(c, func(cs *collisionState) { cs.userID = id })
}

func (e *Engine) CollisionAABB(c native.Collision, m *[16]float32) (min, max [3]float32) {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	cs := e.collisions[c]
	if cs == nil {
		return min, max
	}
	for i := 0; i < 3; i++ {
		h := cs.half[i] * cs.scale[i]
		min[i] = m[12+i] - h
		max[i] = m[12+i] + h
	}
	return min, max
}

// --- JointAPI ---

func (e *Engine) createJoint(w native.World, kind string, b0, b1 native.Body) native.Joint {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.takeFailure() || e.worlds[w] == nil {
		return 0
	}
	h := native.Joint(e.nextHandle())
	e.joints[h] = &jointState{
		world:     w,
		kind:      kind,
		body0:     b0,
		body1:     b1,
		stiffness: 0.9,
	}
	return h
}

func (e *Engine) JointCreateBall(w native.World, pivot *[3]float32, child, parent native.Body) native.Joint {
	e.noteCall()
	return e.createJoint(w, "ball", child, parent)
}

func (e *Engine) JointCreateSlider(w native.World, pivot, dir *[3]float32, child, parent native.Body) native.Joint {
	e.noteCall()
	return e.createJoint(w, "slider", child, parent)
}

func (e *Engine) JointCreateCorkscrew(w native.World, pivot, dir *[3]float32, child, parent native.Body) native.Joint {
	e.noteCall()
	return e.createJoint(w, "corkscrew", child, parent)
}

func (e *Engine) JointCreateUniversal(w native.World, pivot, dir0, dir1 *[3]float32, child, parent native.Body) native.Joint {
	e.noteCall()
	return e.createJoint(w, "universal", child, parent)
}

func (e *Engine) JointCreateUpVector(w native.World, dir *[3]float32, body native.Body) native.Joint {
	e.noteCall()
	return e.createJoint(w, "upvector", body, 0)
}

func (e *Engine) JointDestroy(w native.World, j native.Joint) error {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroys[uintptr(j)]++
	delete(e.joints, j)
	if err := e.destroyErr[uintptr(j)]; err != nil {
		return err
	}
	return nil
}

func (e *Engine) jointRead(j native.Joint, read func(*jointState)) {
	e.noteCall()
	e.mu.Lock()
	if js := e.joints[j]; js != nil {
		read(js)
	}
	e.mu.Unlock()
}

func (e *Engine) JointBody0(j native.Joint) (b native.Body) {
	e.jointRead(j, func(js *jointState) { b = js.body0 })
	return b
}

func (e *Engine) JointBody1(j native.Joint) (b native.Body) {
	e.jointRead(j, func(js *jointState) { b = js.body1 })
	return b
}

func (e *Engine) JointCollisionState(j native.Joint) (s int32) {
	e.jointRead(j, func(js *jointState) { s = js.collState })
	return s
}

func (e *Engine) JointSetCollisionState(j native.Joint, state int32) {
	e.jointRead(j, func(js *jointState) { js.collState = state })
}

func (e *Engine) JointStiffness(j native.Joint) (s float32) {
	e.jointRead(j, func(js *jointState) { s = js.stiffness })
	return s
}

func (e *Engine) JointSetStiffness(j native.Joint, stiffness float32) {
	e.jointRead(j, func(js *jointState) { js.stiffness = stiffness })
}

// --- MeshAPI ---

func (e *Engine) MeshCreate(w native.World) native.Mesh {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.takeFailure() || e.worlds[w] == nil {
		return 0
	}
	h := native.Mesh(e.nextHandle())
	e.meshes[h] = &meshState{world: w}
	return h
}

func (e *Engine) MeshCreateFromCollision(c native.Collision) native.Mesh {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	cs := e.collisions[c]
	if e.takeFailure() || cs == nil {
		return 0
	}
	h := native.Mesh(e.nextHandle())
	ms := &meshState{world: cs.world}
	// eight corners of the shape's scaled extent
	for _, sx := range []float32{-1, 1} {
		for _, sy := range []float32{-1, 1} {
			for _, sz := range []float32{-1, 1} {
				ms.vertices = append(ms.vertices,
					sx*cs.half[0]*cs.scale[0],
					sy*cs.half[1]*cs.scale[1],
					sz*cs.half[2]*cs.scale[2])
			}
		}
	}
	e.meshes[h] = ms
	return h
}

func (e *Engine) MeshDestroy(m native.Mesh) error {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroys[uintptr(m)]++
	delete(e.meshes, m)
	if err := e.destroyErr[uintptr(m)]; err != nil {
		return err
	}
	return nil
}

func (e *Engine) MeshVertexCount(m native.Mesh) int32 {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	if ms := e.meshes[m]; ms != nil {
		return int32(len(ms.vertices) / 3)
	}
	return 0
}

func (e *Engine) MeshVertices(m native.Mesh, dst []float32) int32 {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	ms := e.meshes[m]
	if ms == nil {
		return 0
	}
	n := copy(dst, ms.vertices)
	return int32(n - n%3)
}

func (e *Engine) MeshApplyTransform(m native.Mesh, matrix *[16]float32) {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	ms := e.meshes[m]
	if ms == nil {
		return
	}
	for i := 0; i+3 <= len(ms.vertices); i += 3 {
		x, y, z := ms.vertices[i], ms.vertices[i+1], ms.vertices[i+2]
		ms.vertices[i+0] = matrix[0]*x + matrix[4]*y + matrix[8]*z + matrix[12]
		ms.vertices[i+1] = matrix[1]*x + matrix[5]*y + matrix[9]*z + matrix[13]
		ms.vertices[i+2] = matrix[2]*x + matrix[6]*y + matrix[10]*z + matrix[14]
	}
}

// --- MaterialAPI ---

func (e *Engine) MaterialCreateGroup(w native.World) int32 {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	ws := e.worlds[w]
	if ws == nil {
		return 0
	}
	ws.nextGroup++
	return ws.nextGroup
}

func (e *Engine) MaterialDefaultGroup(w native.World) int32 {
	e.noteCall()
	return 0
}

func (e *Engine) MaterialDestroyAllGroups(w native.World) {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	if ws := e.worlds[w]; ws != nil {
		ws.nextGroup = 0
		ws.matCB = make(map[[2]int32]matPair)
	}
}

func (e *Engine) MaterialSetDefaultFriction(w native.World, g0, g1 int32, static, kinetic float32) {
	e.noteCall()
}

func (e *Engine) MaterialSetDefaultElasticity(w native.World, g0, g1 int32, elasticity float32) {
	e.noteCall()
}

func (e *Engine) MaterialSetSurfaceThickness(w native.World, g0, g1 int32, thickness float32) {
	e.noteCall()
}

func (e *Engine) MaterialSetDefaultCollidable(w native.World, g0, g1 int32, state int32) {
	e.noteCall()
}

// --- CallbackAPI ---

func (e *Engine) BodySetForceAndTorque(b native.Body, fn native.ForceTorque) {
	e.noteCall()
	e.mu.Lock()
	if bs := e.bodies[b]; bs != nil {
		bs.forceCB = fn
	}
	e.mu.Unlock()
}

func (e *Engine) MaterialSetCallbacks(w native.World, g0, g1 int32, overlap native.AABBOverlap, process native.ContactProcess) {
	e.noteCall()
	e.mu.Lock()
	defer e.mu.Unlock()
	ws := e.worlds[w]
	if ws == nil {
		return
	}
	k := groupKey(g0, g1)
	if overlap == nil && process == nil {
		delete(ws.matCB, k)
		return
	}
	ws.matCB[k] = matPair{overlap: overlap, process: process}
}

// --- QueryAPI ---

func (e *Engine) RayCast(w native.World, p0, p1 [3]float32, filter native.RayFilter, prefilter native.RayPrefilter) {
	e.noteCall()
	if filter == nil {
		return
	}

	type hitDispatch struct {
		hit RayHit
		col native.Collision
	}

	e.mu.Lock()
	var hits []hitDispatch
	for _, h := range e.rayHits {
		bs := e.bodies[h.Body]
		if bs == nil || bs.world != w {
			continue
		}
		hits = append(hits, hitDispatch{hit: h, col: bs.col})
	}
	e.mu.Unlock()

	clip := float32(1)
	for _, hd := range hits {
		if hd.hit.Param > clip {
			continue
		}
		if prefilter != nil {
			ok := true
			e.dispatch(func() { ok = prefilter(hd.hit.Body, hd.col) })
			if !ok {
				continue
			}
		}
		var ret float32
		e.dispatch(func() {
			ret = filter(hd.hit.Body, hd.col, hd.hit.Position, hd.hit.Normal, hd.hit.Param)
		})
		if ret == 0 {
			return
		}
		if ret < clip {
			clip = ret
		}
	}
}

func (e *Engine) BodiesInAABB(w native.World, min, max [3]float32, fn native.BodyIter) {
	e.noteCall()
	if fn == nil {
		return
	}

	e.mu.Lock()
	var inside []native.Body
	for h, bs := range e.bodies {
		if bs.world != w {
			continue
		}
		in := true
		for i := 0; i < 3; i++ {
			if bs.matrix[12+i] < min[i] || bs.matrix[12+i] > max[i] {
				in = false
				break
			}
		}
		if in {
			inside = append(inside, h)
		}
	}
	for i := 1; i < len(inside); i++ {
		for j := i; j > 0 && e.bodies[inside[j]].seq < e.bodies[inside[j-1]].seq; j-- {
			inside[j], inside[j-1] = inside[j-1], inside[j]
		}
	}
	e.mu.Unlock()

	for _, b := range inside {
		keep := true
		e.dispatch(func() { keep = fn(b) })
		if !keep {
			return
		}
	}
}

package newton

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/germangb/newton-go/errors"
	"github.com/germangb/newton-go/native"
	"github.com/germangb/newton-go/storage"
)

// World owns a native simulation context and every object created in it.
// All objects are tracked in registries keyed by their native handle, so
// a wrapper can always be checked for liveness before any native call.
//
// Busy policy: while a step is in flight every gated operation fails fast
// with SimulationBusy; nothing blocks and nothing touches native state
// mid-step. The one exception is Destroy, which queues the teardown and
// applies it before Join returns. Views handed to callbacks (contact
// handlers, force applicators, query filters, iteration) are exempt from
// the gate for the duration of the call and must not be retained.
type World struct {
	eng native.Engine
	cfg Config
	log *zap.Logger

	raw   native.World
	alive atomic.Bool

	// gate orders accessors against steps and teardown. Steps and
	// destroys hold the write side; accessors TryRLock and fail fast.
	gate    sync.RWMutex
	stepper *stepController
	bridge  *bridge

	bodies     storage.Store[native.Body, *bodyRecord]
	collisions storage.Store[native.Collision, *collisionRecord]
	joints     storage.Store[native.Joint, *jointRecord]
	meshes     storage.Store[native.Mesh, *meshRecord]

	defaultGroup MaterialGroup

	closeOnce sync.Once
	closeErr  error
}

// NewWorld creates a simulation context on the given engine. A nil cfg
// selects the defaults documented on Config.
func NewWorld(eng native.Engine, cfg *Config) (*World, error) {
	const op = "world.create"
	if eng == nil {
		return nil, errors.InvalidInput(op, "nil engine")
	}
	norm, err := cfg.normalized()
	if err != nil {
		return nil, errors.New(errors.PhaseCreate, errors.KindInvalidInput).
			Op(op).Cause(err).Detail("bad configuration").Build()
	}
	backend, _ := norm.backend()
	broadphase, _ := norm.broadphase()

	raw := eng.WorldCreate()
	if raw == 0 {
		return nil, errors.AllocationFailed(op, "world")
	}

	threads := norm.Threads
	if threads == 0 {
		threads = runtime.NumCPU()
	}
	eng.WorldSetThreads(raw, int32(threads))
	eng.WorldSetSolverModel(raw, int32(norm.SolverModel))
	eng.WorldSetBroadphase(raw, broadphase)

	w := &World{
		eng:        eng,
		cfg:        norm,
		log:        norm.Logger.With(zap.String("world", norm.Name)),
		raw:        raw,
		bodies:     storage.New[native.Body, *bodyRecord](backend),
		collisions: storage.New[native.Collision, *collisionRecord](backend),
		joints:     storage.New[native.Joint, *jointRecord](backend),
		meshes:     storage.New[native.Mesh, *meshRecord](backend),
	}
	w.alive.Store(true)
	w.stepper = newStepController(&w.gate)
	w.bridge = newBridge(w)
	w.defaultGroup = MaterialGroup(eng.MaterialDefaultGroup(raw))
	w.bridge.install(w.defaultGroup, w.defaultGroup)

	w.log.Info("world created",
		zap.Int("threads", threads),
		zap.Int("solver_model", norm.SolverModel),
		zap.String("broadphase", norm.Broadphase),
		zap.String("backend", backend.String()),
	)
	return w, nil
}

// Name returns the configured debug name.
func (w *World) Name() string { return w.cfg.Name }

// acquireRead takes the accessor side of the gate. The caller must invoke
// the returned release unless an error comes back. Gate-exempt views pass
// exempt=true: the gate is already held for them by the running step or
// query.
func (w *World) acquireRead(op string, exempt bool) (release func(), err error) {
	if exempt {
		return func() {}, nil
	}
	if !w.alive.Load() {
		return nil, errors.WorldGone(op)
	}
	if !w.gate.TryRLock() {
		return nil, errors.SimulationBusy(op)
	}
	if !w.alive.Load() {
		w.gate.RUnlock()
		return nil, errors.WorldGone(op)
	}
	return w.gate.RUnlock, nil
}

// View constructors. Owned wrappers come only from factories; borrowed
// ones from lookups and joint body accessors; gate-exempt ones are handed
// to callbacks while the gate is already held.

func (w *World) ownedBody(raw native.Body) *Body {
	return &Body{world: w, handle: newHandle(uintptr(raw), KindBody), owned: true}
}

func (w *World) borrowedBody(raw native.Body) *Body {
	return &Body{world: w, handle: newHandle(uintptr(raw), KindBody)}
}

func (w *World) bodyView(raw native.Body) *Body {
	return &Body{world: w, handle: newHandle(uintptr(raw), KindBody), exempt: true}
}

func (w *World) ownedCollision(raw native.Collision) *Collision {
	return &Collision{world: w, handle: newHandle(uintptr(raw), KindCollision), owned: true}
}

func (w *World) borrowedCollision(raw native.Collision) *Collision {
	return &Collision{world: w, handle: newHandle(uintptr(raw), KindCollision)}
}

func (w *World) collisionView(raw native.Collision) *Collision {
	return &Collision{world: w, handle: newHandle(uintptr(raw), KindCollision), exempt: true}
}

func (w *World) ownedJoint(raw native.Joint) *Joint {
	return &Joint{world: w, handle: newHandle(uintptr(raw), KindJoint), owned: true}
}

func (w *World) borrowedJoint(raw native.Joint) *Joint {
	return &Joint{world: w, handle: newHandle(uintptr(raw), KindJoint)}
}

func (w *World) jointView(raw native.Joint) *Joint {
	return &Joint{world: w, handle: newHandle(uintptr(raw), KindJoint), exempt: true}
}

func (w *World) ownedMesh(raw native.Mesh) *Mesh {
	return &Mesh{world: w, handle: newHandle(uintptr(raw), KindMesh), owned: true}
}

func (w *World) borrowedMesh(raw native.Mesh) *Mesh {
	return &Mesh{world: w, handle: newHandle(uintptr(raw), KindMesh)}
}

// Collision factories. Dimensions are full extents for boxes and
// radius/height pairs elsewhere; a nil offset places the shape at the
// body origin.

func (w *World) CreateBox(dx, dy, dz float32, offset *mgl32.Mat4) (*Collision, error) {
	const op = "world.create_box"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()
	raw := w.eng.CollisionCreateBox(w.raw, dx, dy, dz, matPtr(offset))
	return w.registerCollision(op, raw, ShapeBox, [3]float32{dx, dy, dz})
}

func (w *World) CreateSphere(radius float32, offset *mgl32.Mat4) (*Collision, error) {
	const op = "world.create_sphere"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()
	raw := w.eng.CollisionCreateSphere(w.raw, radius, matPtr(offset))
	return w.registerCollision(op, raw, ShapeSphere, [3]float32{radius, 0, 0})
}

func (w *World) CreateCapsule(radius0, radius1, height float32, offset *mgl32.Mat4) (*Collision, error) {
	const op = "world.create_capsule"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()
	raw := w.eng.CollisionCreateCapsule(w.raw, radius0, radius1, height, matPtr(offset))
	return w.registerCollision(op, raw, ShapeCapsule, [3]float32{radius0, radius1, height})
}

func (w *World) CreateCylinder(radius0, radius1, height float32, offset *mgl32.Mat4) (*Collision, error) {
	const op = "world.create_cylinder"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()
	raw := w.eng.CollisionCreateCylinder(w.raw, radius0, radius1, height, matPtr(offset))
	return w.registerCollision(op, raw, ShapeCylinder, [3]float32{radius0, radius1, height})
}

func (w *World) CreateCone(radius, height float32, offset *mgl32.Mat4) (*Collision, error) {
	const op = "world.create_cone"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()
	raw := w.eng.CollisionCreateCone(w.raw, radius, height, matPtr(offset))
	return w.registerCollision(op, raw, ShapeCone, [3]float32{radius, height, 0})
}

// CreateNull builds a placeholder shape with no geometry, useful for
// trigger volumes and mass-only bodies.
func (w *World) CreateNull() (*Collision, error) {
	const op = "world.create_null"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()
	raw := w.eng.CollisionCreateNull(w.raw)
	return w.registerCollision(op, raw, ShapeNull, [3]float32{})
}

func (w *World) registerCollision(op string, raw native.Collision, shape ShapeType, dims [3]float32) (*Collision, error) {
	if raw == 0 {
		return nil, errors.AllocationFailed(op, "collision")
	}
	rec := &collisionRecord{shape: shape, dims: dims}
	if _, err := w.collisions.Insert(raw, rec); err != nil {
		w.log.Error("registry rejected collision handle",
			zap.String("op", op), zap.Uintptr("raw", uintptr(raw)), zap.Error(err))
		return nil, err
	}
	return w.ownedCollision(raw), nil
}

// Body factories.

// CreateDynamicBody builds a force-driven rigid body around col, placed
// at the given transform. The body starts massless; set mass properties
// before expecting it to move.
func (w *World) CreateDynamicBody(col *Collision, matrix mgl32.Mat4) (*Body, error) {
	return w.createBody("world.create_dynamic_body", BodyDynamic, col, matrix)
}

// CreateKinematicBody builds a body animated by direct transform writes;
// the solver never integrates it.
func (w *World) CreateKinematicBody(col *Collision, matrix mgl32.Mat4) (*Body, error) {
	return w.createBody("world.create_kinematic_body", BodyKinematic, col, matrix)
}

func (w *World) createBody(op string, kind BodyType, col *Collision, matrix mgl32.Mat4) (*Body, error) {
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()

	colRaw, err := w.resolveCollisionArg(op, col)
	if err != nil {
		return nil, err
	}

	m := [16]float32(matrix)
	var raw native.Body
	if kind == BodyKinematic {
		raw = w.eng.BodyCreateKinematic(w.raw, colRaw, &m)
	} else {
		raw = w.eng.BodyCreateDynamic(w.raw, colRaw, &m)
	}
	if raw == 0 {
		return nil, errors.AllocationFailed(op, "body")
	}

	rec := &bodyRecord{
		kind:      kind,
		collision: col.handle,
		material:  w.defaultGroup,
	}
	if _, err := w.bodies.Insert(raw, rec); err != nil {
		w.log.Error("registry rejected body handle",
			zap.String("op", op), zap.Uintptr("raw", uintptr(raw)), zap.Error(err))
		return nil, err
	}

	// Every body routes through the bridge dispatcher; per-body and world
	// default handlers are resolved at dispatch time.
	w.eng.BodySetForceAndTorque(raw, w.bridge.forceTorqueDispatch)
	return w.ownedBody(raw), nil
}

// resolveCollisionArg validates a collision passed as a factory argument.
// The caller holds the gate.
func (w *World) resolveCollisionArg(op string, col *Collision) (native.Collision, error) {
	if col == nil {
		return 0, errors.InvalidInput(op, "nil collision")
	}
	if col.world != w {
		return 0, errors.InvalidInput(op, "collision belongs to a different world")
	}
	raw := col.raw()
	if _, ok := w.collisions.Get(raw); !ok {
		return 0, errors.HandleInvalid(errors.PhaseCreate, op, col.handle.String())
	}
	return raw, nil
}

// resolveBodyArg validates a body passed as a factory argument. nilOK
// admits a nil body for joints anchored to the world frame.
func (w *World) resolveBodyArg(op string, b *Body, nilOK bool) (native.Body, error) {
	if b == nil {
		if nilOK {
			return 0, nil
		}
		return 0, errors.InvalidInput(op, "nil body")
	}
	if b.world != w {
		return 0, errors.InvalidInput(op, "body belongs to a different world")
	}
	raw := b.raw()
	if _, ok := w.bodies.Get(raw); !ok {
		return 0, errors.HandleInvalid(errors.PhaseCreate, op, b.handle.String())
	}
	return raw, nil
}

// Joint factories. The child body is required; a nil parent anchors the
// joint to the world frame.

func (w *World) CreateBallJoint(pivot mgl32.Vec3, child, parent *Body) (*Joint, error) {
	const op = "world.create_ball_joint"
	return w.createJoint(op, JointBall, child, parent, func(c, p native.Body) native.Joint {
		return w.eng.JointCreateBall(w.raw, vecPtr(pivot), c, p)
	})
}

func (w *World) CreateSliderJoint(pivot, dir mgl32.Vec3, child, parent *Body) (*Joint, error) {
	const op = "world.create_slider_joint"
	return w.createJoint(op, JointSlider, child, parent, func(c, p native.Body) native.Joint {
		return w.eng.JointCreateSlider(w.raw, vecPtr(pivot), vecPtr(dir), c, p)
	})
}

func (w *World) CreateCorkscrewJoint(pivot, dir mgl32.Vec3, child, parent *Body) (*Joint, error) {
	const op = "world.create_corkscrew_joint"
	return w.createJoint(op, JointCorkscrew, child, parent, func(c, p native.Body) native.Joint {
		return w.eng.JointCreateCorkscrew(w.raw, vecPtr(pivot), vecPtr(dir), c, p)
	})
}

func (w *World) CreateUniversalJoint(pivot, dir0, dir1 mgl32.Vec3, child, parent *Body) (*Joint, error) {
	const op = "world.create_universal_joint"
	return w.createJoint(op, JointUniversal, child, parent, func(c, p native.Body) native.Joint {
		return w.eng.JointCreateUniversal(w.raw, vecPtr(pivot), vecPtr(dir0), vecPtr(dir1), c, p)
	})
}

// CreateUpVectorJoint constrains a body's up axis to dir, keeping it
// upright while it translates freely.
func (w *World) CreateUpVectorJoint(dir mgl32.Vec3, body *Body) (*Joint, error) {
	const op = "world.create_up_vector_joint"
	return w.createJoint(op, JointUpVector, body, nil, func(c, _ native.Body) native.Joint {
		return w.eng.JointCreateUpVector(w.raw, vecPtr(dir), c)
	})
}

func (w *World) createJoint(op string, typ JointType, child, parent *Body, create func(c, p native.Body) native.Joint) (*Joint, error) {
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()

	childRaw, err := w.resolveBodyArg(op, child, false)
	if err != nil {
		return nil, err
	}
	parentRaw, err := w.resolveBodyArg(op, parent, true)
	if err != nil {
		return nil, err
	}

	raw := create(childRaw, parentRaw)
	if raw == 0 {
		return nil, errors.AllocationFailed(op, "joint")
	}
	rec := &jointRecord{typ: typ, body0: childRaw, body1: parentRaw}
	if _, err := w.joints.Insert(raw, rec); err != nil {
		w.log.Error("registry rejected joint handle",
			zap.String("op", op), zap.Uintptr("raw", uintptr(raw)), zap.Error(err))
		return nil, err
	}
	return w.ownedJoint(raw), nil
}

// Mesh factories.

func (w *World) CreateMesh() (*Mesh, error) {
	const op = "world.create_mesh"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()
	return w.registerMesh(op, w.eng.MeshCreate(w.raw))
}

// CreateMeshFromCollision tessellates a collision shape into a triangle
// mesh.
func (w *World) CreateMeshFromCollision(col *Collision) (*Mesh, error) {
	const op = "world.create_mesh_from_collision"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()
	colRaw, err := w.resolveCollisionArg(op, col)
	if err != nil {
		return nil, err
	}
	return w.registerMesh(op, w.eng.MeshCreateFromCollision(colRaw))
}

func (w *World) registerMesh(op string, raw native.Mesh) (*Mesh, error) {
	if raw == 0 {
		return nil, errors.AllocationFailed(op, "mesh")
	}
	if _, err := w.meshes.Insert(raw, &meshRecord{}); err != nil {
		w.log.Error("registry rejected mesh handle",
			zap.String("op", op), zap.Uintptr("raw", uintptr(raw)), zap.Error(err))
		return nil, err
	}
	return w.ownedMesh(raw), nil
}

// Lookups. All return borrowed views; the caller never releases them.

func (w *World) Body(h Handle) (*Body, error) {
	const op = "world.body"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()
	raw := native.Body(h.raw)
	if h.Kind() != KindBody {
		return nil, errors.HandleInvalid(errors.PhaseAccess, op, h.String())
	}
	if _, ok := w.bodies.Get(raw); !ok {
		return nil, errors.HandleInvalid(errors.PhaseAccess, op, h.String())
	}
	return w.borrowedBody(raw), nil
}

func (w *World) Collision(h Handle) (*Collision, error) {
	const op = "world.collision"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()
	raw := native.Collision(h.raw)
	if h.Kind() != KindCollision {
		return nil, errors.HandleInvalid(errors.PhaseAccess, op, h.String())
	}
	if _, ok := w.collisions.Get(raw); !ok {
		return nil, errors.HandleInvalid(errors.PhaseAccess, op, h.String())
	}
	return w.borrowedCollision(raw), nil
}

func (w *World) Joint(h Handle) (*Joint, error) {
	const op = "world.joint"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()
	raw := native.Joint(h.raw)
	if h.Kind() != KindJoint {
		return nil, errors.HandleInvalid(errors.PhaseAccess, op, h.String())
	}
	if _, ok := w.joints.Get(raw); !ok {
		return nil, errors.HandleInvalid(errors.PhaseAccess, op, h.String())
	}
	return w.borrowedJoint(raw), nil
}

func (w *World) Mesh(h Handle) (*Mesh, error) {
	const op = "world.mesh"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return nil, err
	}
	defer release()
	raw := native.Mesh(h.raw)
	if h.Kind() != KindMesh {
		return nil, errors.HandleInvalid(errors.PhaseAccess, op, h.String())
	}
	if _, ok := w.meshes.Get(raw); !ok {
		return nil, errors.HandleInvalid(errors.PhaseAccess, op, h.String())
	}
	return w.borrowedMesh(raw), nil
}

// Iteration. Views handed to fn are gate-exempt for the duration of the
// call; visit order follows the configured storage backend.

func (w *World) EachBody(fn func(b *Body) bool) error {
	release, err := w.acquireRead("world.each_body", false)
	if err != nil {
		return err
	}
	defer release()
	w.bodies.Each(func(raw native.Body, _ *bodyRecord) bool {
		return fn(w.bodyView(raw))
	})
	return nil
}

func (w *World) EachCollision(fn func(c *Collision) bool) error {
	release, err := w.acquireRead("world.each_collision", false)
	if err != nil {
		return err
	}
	defer release()
	w.collisions.Each(func(raw native.Collision, _ *collisionRecord) bool {
		return fn(w.collisionView(raw))
	})
	return nil
}

func (w *World) EachJoint(fn func(j *Joint) bool) error {
	release, err := w.acquireRead("world.each_joint", false)
	if err != nil {
		return err
	}
	defer release()
	w.joints.Each(func(raw native.Joint, _ *jointRecord) bool {
		return fn(w.jointView(raw))
	})
	return nil
}

// Live-entry counts from the registries. These stay correct without
// touching native state and read zero after Close.

func (w *World) BodyCount() int      { return w.bodies.Len() }
func (w *World) CollisionCount() int { return w.collisions.Len() }
func (w *World) JointCount() int     { return w.joints.Len() }
func (w *World) MeshCount() int      { return w.meshes.Len() }

// InvalidateCache flushes the solver's internal contact caches. Call it
// after teleporting bodies with SetMatrix.
func (w *World) InvalidateCache() error {
	const op = "world.invalidate_cache"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return err
	}
	defer release()
	w.eng.WorldInvalidateCache(w.raw)
	return nil
}

// Callback slots.

// SetContactFilter installs the broadphase veto handler. Pass nil to
// clear it.
func (w *World) SetContactFilter(f ContactFilter) error {
	release, err := w.acquireRead("world.set_contact_filter", false)
	if err != nil {
		return err
	}
	defer release()
	w.bridge.setFilter(f)
	return nil
}

// SetContactListener installs the contact point handler. Pass nil to
// clear it.
func (w *World) SetContactListener(l ContactListener) error {
	release, err := w.acquireRead("world.set_contact_listener", false)
	if err != nil {
		return err
	}
	defer release()
	w.bridge.setListener(l)
	return nil
}

// SetForceAndTorque installs the world-default force applicator invoked
// for every dynamic body each step. A per-body handler set through
// Body.SetForceAndTorque overrides it for that body.
func (w *World) SetForceAndTorque(fn ForceTorque) error {
	release, err := w.acquireRead("world.set_force_and_torque", false)
	if err != nil {
		return err
	}
	defer release()
	w.bridge.setForceTorque(fn)
	return nil
}

// ConsistencyFaults reports how many native callbacks arrived with a
// handle the registries do not know. Non-zero values indicate
// bookkeeping corruption.
func (w *World) ConsistencyFaults() uint64 {
	return w.bridge.faults.Load()
}

// Destroy tears down the object behind h. It is idempotent: destroying
// an already-destroyed handle returns nil. While a step is in flight the
// teardown is queued and applied before Join returns. Destroying a body
// cascades to the joints attached to it.
func (w *World) Destroy(h Handle) error {
	const op = "world.destroy"
	for {
		if !w.alive.Load() {
			return errors.WorldGone(op)
		}
		if w.gate.TryLock() {
			if !w.alive.Load() {
				w.gate.Unlock()
				return errors.WorldGone(op)
			}
			err := w.destroyInline(h)
			w.gate.Unlock()
			return err
		}
		if w.stepper.enqueueIfStepping(func() {
			if err := w.destroyInline(h); err != nil {
				w.log.Warn("queued destroy failed",
					zap.String("handle", h.String()), zap.Error(err))
			}
		}) {
			return nil
		}
		// The gate is held by short-lived readers; yield and retry.
		runtime.Gosched()
	}
}

// destroyInline requires the write gate (held by Destroy, the step
// worker's queue drain, or Close).
func (w *World) destroyInline(h Handle) error {
	switch h.Kind() {
	case KindBody:
		return w.destroyBodyLocked(native.Body(h.raw))
	case KindCollision:
		if _, err := w.collisions.Remove(native.Collision(h.raw)); err != nil {
			return nil
		}
		return w.destroyErr(h, w.eng.CollisionDestroy(native.Collision(h.raw)))
	case KindJoint:
		if _, err := w.joints.Remove(native.Joint(h.raw)); err != nil {
			return nil
		}
		return w.destroyErr(h, w.eng.JointDestroy(w.raw, native.Joint(h.raw)))
	case KindMesh:
		if _, err := w.meshes.Remove(native.Mesh(h.raw)); err != nil {
			return nil
		}
		return w.destroyErr(h, w.eng.MeshDestroy(native.Mesh(h.raw)))
	default:
		return errors.New(errors.PhaseTeardown, errors.KindHandleInvalid).
			Op("world.destroy").Handle(h.String()).Detail("unknown handle kind").Build()
	}
}

func (w *World) destroyBodyLocked(raw native.Body) error {
	if _, err := w.bodies.Remove(raw); err != nil {
		return nil
	}

	// Joints referencing the body die with it, before the native body
	// does.
	var stale []native.Joint
	w.joints.Each(func(j native.Joint, rec *jointRecord) bool {
		if rec.body0 == raw || rec.body1 == raw {
			stale = append(stale, j)
		}
		return true
	})
	var errs error
	for _, j := range stale {
		if _, err := w.joints.Remove(j); err != nil {
			continue
		}
		h := newHandle(uintptr(j), KindJoint)
		errs = multierr.Append(errs, w.destroyErr(h, w.eng.JointDestroy(w.raw, j)))
	}

	h := newHandle(uintptr(raw), KindBody)
	return multierr.Append(errs, w.destroyErr(h, w.eng.BodyDestroy(raw)))
}

func (w *World) destroyErr(h Handle, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("destroy %s: %w", h, err)
}

// Stepping.

// BeginStep launches one asynchronous simulation step of dt and returns
// immediately. It fails with AlreadyStepping when a step is in flight,
// and with ReentrantStep when invoked from a callback handler.
func (w *World) BeginStep(dt time.Duration) error {
	const op = "world.begin_step"
	if dt <= 0 {
		return errors.New(errors.PhaseStep, errors.KindInvalidInput).
			Op(op).Detail("timestep must be positive, got %v", dt).Build()
	}
	if !w.alive.Load() {
		return errors.WorldGone(op)
	}
	if w.bridge.inCallback.Load() > 0 {
		return errors.ReentrantStep(op)
	}
	seconds := float32(dt.Seconds())
	return w.stepper.begin(w.alive.Load, func() error {
		if err := w.eng.WorldUpdate(w.raw, seconds); err != nil {
			return fmt.Errorf("world update: %w", err)
		}
		return nil
	})
}

// Join blocks until the in-flight step completes and returns its error.
// It returns nil immediately when no step is running; queued destroys
// are applied before it returns.
func (w *World) Join() error {
	return w.stepper.join()
}

// Poll reports whether the world is idle. It never blocks.
func (w *World) Poll() bool {
	return w.stepper.poll()
}

// Step runs one synchronous simulation step: BeginStep followed by Join.
func (w *World) Step(dt time.Duration) error {
	if err := w.BeginStep(dt); err != nil {
		return err
	}
	return w.Join()
}

// Close joins any in-flight step, destroys every live object (joints
// first, then bodies, collisions and meshes), tears down the native
// world and marks the World dead. It is idempotent; every later
// operation fails with WorldGone. Per-object teardown failures are
// aggregated into the returned error.
func (w *World) Close() error {
	w.closeOnce.Do(func() {
		w.alive.Store(false)
		_ = w.stepper.join()

		w.gate.Lock()
		nb, nc, nj, nm := w.bodies.Len(), w.collisions.Len(), w.joints.Len(), w.meshes.Len()

		var errs error
		w.joints.Drain(func(j native.Joint, _ *jointRecord) {
			h := newHandle(uintptr(j), KindJoint)
			errs = multierr.Append(errs, w.destroyErr(h, w.eng.JointDestroy(w.raw, j)))
		})
		w.bodies.Drain(func(b native.Body, _ *bodyRecord) {
			h := newHandle(uintptr(b), KindBody)
			errs = multierr.Append(errs, w.destroyErr(h, w.eng.BodyDestroy(b)))
		})
		w.collisions.Drain(func(c native.Collision, _ *collisionRecord) {
			h := newHandle(uintptr(c), KindCollision)
			errs = multierr.Append(errs, w.destroyErr(h, w.eng.CollisionDestroy(c)))
		})
		w.meshes.Drain(func(m native.Mesh, _ *meshRecord) {
			h := newHandle(uintptr(m), KindMesh)
			errs = multierr.Append(errs, w.destroyErr(h, w.eng.MeshDestroy(m)))
		})

		w.eng.MaterialDestroyAllGroups(w.raw)
		if err := w.eng.WorldDestroy(w.raw); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("destroy world: %w", err))
		}
		w.gate.Unlock()
		w.stepper.shutdown()

		w.closeErr = errs
		w.log.Info("world closed",
			zap.Int("bodies", nb),
			zap.Int("collisions", nc),
			zap.Int("joints", nj),
			zap.Int("meshes", nm),
			zap.Error(errs),
		)
	})
	return w.closeErr
}

// Pointer helpers for the native boundary. mgl32 vectors and matrices
// share memory layout with the fixed-size arrays the engine takes.

func matPtr(m *mgl32.Mat4) *[16]float32 {
	if m == nil {
		return nil
	}
	return (*[16]float32)(m)
}

func vecPtr(v mgl32.Vec3) *[3]float32 {
	a := [3]float32(v)
	return &a
}

package newton

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/germangb/newton-go/errors"
	"github.com/germangb/newton-go/native"
)

// BodyType distinguishes solver-integrated bodies from animated ones.
type BodyType uint8

const (
	// BodyDynamic bodies are moved by the solver from forces and
	// impulses.
	BodyDynamic BodyType = iota

	// BodyKinematic bodies are moved by writing their transform; the
	// solver treats them as infinitely heavy.
	BodyKinematic
)

func (t BodyType) String() string {
	if t == BodyKinematic {
		return "kinematic"
	}
	return "dynamic"
}

// bodyRecord is the registry payload for one live body. Mutable fields
// are guarded by mu; the registries themselves guard liveness.
type bodyRecord struct {
	mu          sync.Mutex
	name        string
	userData    any
	kind        BodyType
	collision   Handle
	mass        float32
	material    MaterialGroup
	forceTorque ForceTorque
}

// Body is a view over a rigid body. Owning views come from the World
// factories and destroy the native object through Release; borrowed
// views come from lookups, queries and callbacks and never own anything.
//
// Every method checks the world and the handle first: a dead world fails
// with WorldGone, an in-flight step with SimulationBusy, a destroyed
// handle with HandleInvalid. No call reaches native state once any of
// those hold.
type Body struct {
	world  *World
	handle Handle
	owned  bool
	exempt bool
}

func (b *Body) raw() native.Body { return native.Body(b.handle.raw) }

// resolve runs the liveness ladder and returns the payload record with
// the gate held. The caller must invoke release unless err is non-nil.
func (b *Body) resolve(op string) (*bodyRecord, func(), error) {
	release, err := b.world.acquireRead(op, b.exempt)
	if err != nil {
		return nil, nil, err
	}
	rec, ok := b.world.bodies.Get(b.raw())
	if !ok {
		release()
		return nil, nil, errors.HandleInvalid(errors.PhaseAccess, op, b.handle.String())
	}
	return rec, release, nil
}

// Handle returns the body's stable identity. Handles stay comparable
// and printable after the body dies.
func (b *Body) Handle() Handle { return b.handle }

// Owned reports whether Release will destroy the native body.
func (b *Body) Owned() bool { return b.owned }

// Release destroys the body for owning views and is a no-op for
// borrowed ones. It is safe to call more than once.
func (b *Body) Release() error {
	if !b.owned {
		return nil
	}
	return b.world.Destroy(b.handle)
}

// Type reports whether the body is dynamic or kinematic.
func (b *Body) Type() (BodyType, error) {
	rec, release, err := b.resolve("body.type")
	if err != nil {
		return 0, err
	}
	defer release()
	return rec.kind, nil
}

// Matrix returns the body's world transform.
func (b *Body) Matrix() (mgl32.Mat4, error) {
	_, release, err := b.resolve("body.matrix")
	if err != nil {
		return mgl32.Mat4{}, err
	}
	defer release()
	return mgl32.Mat4(b.world.eng.BodyMatrix(b.raw())), nil
}

// SetMatrix teleports the body to a new world transform. Follow a
// teleport with World.InvalidateCache so stale contacts do not survive
// it.
func (b *Body) SetMatrix(m mgl32.Mat4) error {
	_, release, err := b.resolve("body.set_matrix")
	if err != nil {
		return err
	}
	defer release()
	a := [16]float32(m)
	b.world.eng.BodySetMatrix(b.raw(), &a)
	return nil
}

// Position returns the translation row of the body's transform.
func (b *Body) Position() (mgl32.Vec3, error) {
	_, release, err := b.resolve("body.position")
	if err != nil {
		return mgl32.Vec3{}, err
	}
	defer release()
	return mgl32.Vec3(b.world.eng.BodyPosition(b.raw())), nil
}

// Rotation returns the body's orientation as a quaternion.
func (b *Body) Rotation() (mgl32.Quat, error) {
	_, release, err := b.resolve("body.rotation")
	if err != nil {
		return mgl32.Quat{}, err
	}
	defer release()
	q := b.world.eng.BodyRotation(b.raw())
	return mgl32.Quat{W: q[0], V: mgl32.Vec3{q[1], q[2], q[3]}}, nil
}

func (b *Body) Velocity() (mgl32.Vec3, error) {
	_, release, err := b.resolve("body.velocity")
	if err != nil {
		return mgl32.Vec3{}, err
	}
	defer release()
	return mgl32.Vec3(b.world.eng.BodyVelocity(b.raw())), nil
}

func (b *Body) SetVelocity(v mgl32.Vec3) error {
	_, release, err := b.resolve("body.set_velocity")
	if err != nil {
		return err
	}
	defer release()
	b.world.eng.BodySetVelocity(b.raw(), vecPtr(v))
	return nil
}

// Omega returns the body's angular velocity.
func (b *Body) Omega() (mgl32.Vec3, error) {
	_, release, err := b.resolve("body.omega")
	if err != nil {
		return mgl32.Vec3{}, err
	}
	defer release()
	return mgl32.Vec3(b.world.eng.BodyOmega(b.raw())), nil
}

func (b *Body) SetOmega(v mgl32.Vec3) error {
	_, release, err := b.resolve("body.set_omega")
	if err != nil {
		return err
	}
	defer release()
	b.world.eng.BodySetOmega(b.raw(), vecPtr(v))
	return nil
}

// SetForce overwrites the net force on the body. The engine only reads
// it inside a force applicator, so call this from a ForceTorque handler.
func (b *Body) SetForce(f mgl32.Vec3) error {
	_, release, err := b.resolve("body.set_force")
	if err != nil {
		return err
	}
	defer release()
	b.world.eng.BodySetForce(b.raw(), vecPtr(f))
	return nil
}

// AddForce accumulates into the net force. Like SetForce it is only
// meaningful from a ForceTorque handler.
func (b *Body) AddForce(f mgl32.Vec3) error {
	_, release, err := b.resolve("body.add_force")
	if err != nil {
		return err
	}
	defer release()
	b.world.eng.BodyAddForce(b.raw(), vecPtr(f))
	return nil
}

// SetTorque overwrites the net torque. Only meaningful from a
// ForceTorque handler.
func (b *Body) SetTorque(t mgl32.Vec3) error {
	_, release, err := b.resolve("body.set_torque")
	if err != nil {
		return err
	}
	defer release()
	b.world.eng.BodySetTorque(b.raw(), vecPtr(t))
	return nil
}

// AddImpulse applies an instantaneous velocity change at a world-space
// point, scaled for the coming timestep.
func (b *Body) AddImpulse(deltaVelocity, point mgl32.Vec3, dt time.Duration) error {
	_, release, err := b.resolve("body.add_impulse")
	if err != nil {
		return err
	}
	defer release()
	b.world.eng.BodyAddImpulse(b.raw(), vecPtr(deltaVelocity), vecPtr(point), float32(dt.Seconds()))
	return nil
}

// SetMassProperties assigns the body's mass and derives its inertia from
// the collision shape. A zero mass pins the body in place.
func (b *Body) SetMassProperties(mass float32, col *Collision) error {
	const op = "body.set_mass_properties"
	rec, release, err := b.resolve(op)
	if err != nil {
		return err
	}
	defer release()
	colRaw, err := b.world.resolveCollisionArg(op, col)
	if err != nil {
		return err
	}
	b.world.eng.BodySetMassProperties(b.raw(), mass, colRaw)
	rec.mu.Lock()
	rec.mass = mass
	rec.mu.Unlock()
	return nil
}

// Mass returns the mass assigned through SetMassProperties.
func (b *Body) Mass() (float32, error) {
	rec, release, err := b.resolve("body.mass")
	if err != nil {
		return 0, err
	}
	defer release()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.mass, nil
}

// AABB returns the body's world-space bounding box.
func (b *Body) AABB() (min, max mgl32.Vec3, err error) {
	_, release, err := b.resolve("body.aabb")
	if err != nil {
		return mgl32.Vec3{}, mgl32.Vec3{}, err
	}
	defer release()
	lo, hi := b.world.eng.BodyAABB(b.raw())
	return mgl32.Vec3(lo), mgl32.Vec3(hi), nil
}

// SleepState reports whether the solver has put the body to sleep.
func (b *Body) SleepState() (bool, error) {
	_, release, err := b.resolve("body.sleep_state")
	if err != nil {
		return false, err
	}
	defer release()
	return b.world.eng.BodySleepState(b.raw()) == native.StateSleeping, nil
}

// SetSleepState forces the body asleep or awake.
func (b *Body) SetSleepState(asleep bool) error {
	_, release, err := b.resolve("body.set_sleep_state")
	if err != nil {
		return err
	}
	defer release()
	state := native.StateAwake
	if asleep {
		state = native.StateSleeping
	}
	b.world.eng.BodySetSleepState(b.raw(), state)
	return nil
}

// Collision returns a borrowed view of the shape the body was built
// around.
func (b *Body) Collision() (*Collision, error) {
	const op = "body.collision"
	rec, release, err := b.resolve(op)
	if err != nil {
		return nil, err
	}
	defer release()
	raw := native.Collision(rec.collision.raw)
	if _, ok := b.world.collisions.Get(raw); !ok {
		return nil, errors.HandleInvalid(errors.PhaseAccess, op, rec.collision.String())
	}
	return b.world.borrowedCollision(raw), nil
}

// UserData returns the value stored with SetUserData.
func (b *Body) UserData() (any, error) {
	rec, release, err := b.resolve("body.user_data")
	if err != nil {
		return nil, err
	}
	defer release()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.userData, nil
}

// SetUserData attaches an arbitrary value to the body. The value lives
// in the registry payload and dies with the body.
func (b *Body) SetUserData(v any) error {
	rec, release, err := b.resolve("body.set_user_data")
	if err != nil {
		return err
	}
	defer release()
	rec.mu.Lock()
	rec.userData = v
	rec.mu.Unlock()
	return nil
}

// Name returns the debug name. Purely bookkeeping, but it still fails
// once the body is destroyed.
func (b *Body) Name() (string, error) {
	rec, release, err := b.resolve("body.name")
	if err != nil {
		return "", err
	}
	defer release()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.name, nil
}

func (b *Body) SetName(name string) error {
	rec, release, err := b.resolve("body.set_name")
	if err != nil {
		return err
	}
	defer release()
	rec.mu.Lock()
	rec.name = name
	rec.mu.Unlock()
	return nil
}

// MaterialGroup returns the material group contacts are resolved
// against.
func (b *Body) MaterialGroup() (MaterialGroup, error) {
	rec, release, err := b.resolve("body.material_group")
	if err != nil {
		return 0, err
	}
	defer release()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.material, nil
}

func (b *Body) SetMaterialGroup(g MaterialGroup) error {
	rec, release, err := b.resolve("body.set_material_group")
	if err != nil {
		return err
	}
	defer release()
	b.world.eng.BodySetMaterialGroup(b.raw(), int32(g))
	rec.mu.Lock()
	rec.material = g
	rec.mu.Unlock()
	return nil
}

// SetForceAndTorque installs a per-body force applicator, overriding the
// world default for this body. Pass nil to fall back to the world slot.
func (b *Body) SetForceAndTorque(fn ForceTorque) error {
	rec, release, err := b.resolve("body.set_force_and_torque")
	if err != nil {
		return err
	}
	defer release()
	rec.mu.Lock()
	rec.forceTorque = fn
	rec.mu.Unlock()
	return nil
}

// SetLinearDamping sets the drag coefficient applied to linear velocity.
func (b *Body) SetLinearDamping(damping float32) error {
	_, release, err := b.resolve("body.set_linear_damping")
	if err != nil {
		return err
	}
	defer release()
	b.world.eng.BodySetLinearDamping(b.raw(), damping)
	return nil
}

// SetAngularDamping sets per-axis drag on angular velocity.
func (b *Body) SetAngularDamping(damping mgl32.Vec3) error {
	_, release, err := b.resolve("body.set_angular_damping")
	if err != nil {
		return err
	}
	defer release()
	b.world.eng.BodySetAngularDamping(b.raw(), vecPtr(damping))
	return nil
}

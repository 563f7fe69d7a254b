package newton

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/germangb/newton-go/errors"
	"github.com/germangb/newton-go/native"
)

// ShapeType identifies the primitive a collision was built from.
type ShapeType uint8

const (
	ShapeNull ShapeType = iota
	ShapeBox
	ShapeSphere
	ShapeCapsule
	ShapeCylinder
	ShapeCone
)

func (s ShapeType) String() string {
	switch s {
	case ShapeBox:
		return "box"
	case ShapeSphere:
		return "sphere"
	case ShapeCapsule:
		return "capsule"
	case ShapeCylinder:
		return "cylinder"
	case ShapeCone:
		return "cone"
	default:
		return "null"
	}
}

// collisionRecord keeps the construction parameters so scenes can be
// serialized without a native geometry query. Meaning of dims per shape:
// box {dx,dy,dz}, sphere {r,0,0}, capsule and cylinder {r0,r1,h},
// cone {r,h,0}, null zeroes.
type collisionRecord struct {
	shape ShapeType
	dims  [3]float32
}

// Collision is a view over a collision shape. Shapes are reference
// counted natively and may be shared by several bodies; Release drops
// the wrapper's reference.
type Collision struct {
	world  *World
	handle Handle
	owned  bool
	exempt bool
}

func (c *Collision) raw() native.Collision { return native.Collision(c.handle.raw) }

func (c *Collision) resolve(op string) (*collisionRecord, func(), error) {
	release, err := c.world.acquireRead(op, c.exempt)
	if err != nil {
		return nil, nil, err
	}
	rec, ok := c.world.collisions.Get(c.raw())
	if !ok {
		release()
		return nil, nil, errors.HandleInvalid(errors.PhaseAccess, op, c.handle.String())
	}
	return rec, release, nil
}

// Handle returns the collision's stable identity.
func (c *Collision) Handle() Handle { return c.handle }

// Owned reports whether Release will destroy the native shape.
func (c *Collision) Owned() bool { return c.owned }

// Release destroys the shape for owning views and is a no-op for
// borrowed ones. Safe to call more than once.
func (c *Collision) Release() error {
	if !c.owned {
		return nil
	}
	return c.world.Destroy(c.handle)
}

// ShapeType reports which primitive the shape was built from.
func (c *Collision) ShapeType() (ShapeType, error) {
	rec, release, err := c.resolve("collision.shape_type")
	if err != nil {
		return ShapeNull, err
	}
	defer release()
	return rec.shape, nil
}

// Dimensions returns the construction parameters: full extents for a
// box, {radius,0,0} for a sphere, {radius0,radius1,height} for capsules
// and cylinders, {radius,height,0} for a cone.
func (c *Collision) Dimensions() (mgl32.Vec3, error) {
	rec, release, err := c.resolve("collision.dimensions")
	if err != nil {
		return mgl32.Vec3{}, err
	}
	defer release()
	return mgl32.Vec3(rec.dims), nil
}

// Scale returns the shape's non-uniform scale.
func (c *Collision) Scale() (mgl32.Vec3, error) {
	_, release, err := c.resolve("collision.scale")
	if err != nil {
		return mgl32.Vec3{}, err
	}
	defer release()
	return mgl32.Vec3(c.world.eng.CollisionScale(c.raw())), nil
}

func (c *Collision) SetScale(s mgl32.Vec3) error {
	_, release, err := c.resolve("collision.set_scale")
	if err != nil {
		return err
	}
	defer release()
	c.world.eng.CollisionSetScale(c.raw(), s[0], s[1], s[2])
	return nil
}

// OffsetMatrix returns the shape's transform relative to its body.
func (c *Collision) OffsetMatrix() (mgl32.Mat4, error) {
	_, release, err := c.resolve("collision.offset_matrix")
	if err != nil {
		return mgl32.Mat4{}, err
	}
	defer release()
	return mgl32.Mat4(c.world.eng.CollisionMatrix(c.raw())), nil
}

func (c *Collision) SetOffsetMatrix(m mgl32.Mat4) error {
	_, release, err := c.resolve("collision.set_offset_matrix")
	if err != nil {
		return err
	}
	defer release()
	a := [16]float32(m)
	c.world.eng.CollisionSetMatrix(c.raw(), &a)
	return nil
}

// UserID returns the application tag stored on the shape.
func (c *Collision) UserID() (uint32, error) {
	_, release, err := c.resolve("collision.user_id")
	if err != nil {
		return 0, err
	}
	defer release()
	return c.world.eng.CollisionUserID(c.raw()), nil
}

func (c *Collision) SetUserID(id uint32) error {
	_, release, err := c.resolve("collision.set_user_id")
	if err != nil {
		return err
	}
	defer release()
	c.world.eng.CollisionSetUserID(c.raw(), id)
	return nil
}

// AABB returns the shape's bounding box under the given world transform.
func (c *Collision) AABB(m mgl32.Mat4) (min, max mgl32.Vec3, err error) {
	_, release, err := c.resolve("collision.aabb")
	if err != nil {
		return mgl32.Vec3{}, mgl32.Vec3{}, err
	}
	defer release()
	a := [16]float32(m)
	lo, hi := c.world.eng.CollisionAABB(c.raw(), &a)
	return mgl32.Vec3(lo), mgl32.Vec3(hi), nil
}

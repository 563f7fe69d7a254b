package newton

import (
	"github.com/germangb/newton-go/errors"
	"github.com/germangb/newton-go/native"
)

// JointType identifies the constraint a joint applies.
type JointType uint8

const (
	JointBall JointType = iota
	JointSlider
	JointCorkscrew
	JointUniversal
	JointUpVector
)

func (t JointType) String() string {
	switch t {
	case JointBall:
		return "ball"
	case JointSlider:
		return "slider"
	case JointCorkscrew:
		return "corkscrew"
	case JointUniversal:
		return "universal"
	case JointUpVector:
		return "up_vector"
	default:
		return "joint"
	}
}

// jointRecord is immutable after creation. body1 is zero for joints
// anchored to the world frame.
type jointRecord struct {
	typ   JointType
	body0 native.Body
	body1 native.Body
}

// Joint is a view over a constraint between two bodies (or one body and
// the world frame). A joint dies with either of its bodies; its wrapper
// then fails with HandleInvalid.
type Joint struct {
	world  *World
	handle Handle
	owned  bool
	exempt bool
}

func (j *Joint) raw() native.Joint { return native.Joint(j.handle.raw) }

func (j *Joint) resolve(op string) (*jointRecord, func(), error) {
	release, err := j.world.acquireRead(op, j.exempt)
	if err != nil {
		return nil, nil, err
	}
	rec, ok := j.world.joints.Get(j.raw())
	if !ok {
		release()
		return nil, nil, errors.HandleInvalid(errors.PhaseAccess, op, j.handle.String())
	}
	return rec, release, nil
}

// Handle returns the joint's stable identity.
func (j *Joint) Handle() Handle { return j.handle }

// Owned reports whether Release will destroy the native joint.
func (j *Joint) Owned() bool { return j.owned }

// Release destroys the joint for owning views and is a no-op for
// borrowed ones. Safe to call more than once.
func (j *Joint) Release() error {
	if !j.owned {
		return nil
	}
	return j.world.Destroy(j.handle)
}

// Type reports the constraint kind.
func (j *Joint) Type() (JointType, error) {
	rec, release, err := j.resolve("joint.type")
	if err != nil {
		return 0, err
	}
	defer release()
	return rec.typ, nil
}

// Body0 returns a borrowed view of the joint's child body.
func (j *Joint) Body0() (*Body, error) {
	const op = "joint.body0"
	rec, release, err := j.resolve(op)
	if err != nil {
		return nil, err
	}
	defer release()
	return j.attachedBody(op, rec.body0)
}

// Body1 returns a borrowed view of the joint's parent body, or nil for
// joints anchored to the world frame.
func (j *Joint) Body1() (*Body, error) {
	const op = "joint.body1"
	rec, release, err := j.resolve(op)
	if err != nil {
		return nil, err
	}
	defer release()
	if rec.body1 == 0 {
		return nil, nil
	}
	return j.attachedBody(op, rec.body1)
}

func (j *Joint) attachedBody(op string, raw native.Body) (*Body, error) {
	if _, ok := j.world.bodies.Get(raw); !ok {
		return nil, errors.HandleInvalid(errors.PhaseAccess, op,
			newHandle(uintptr(raw), KindBody).String())
	}
	b := j.world.borrowedBody(raw)
	b.exempt = j.exempt
	return b, nil
}

// Collidable reports whether the joined bodies still collide with each
// other.
func (j *Joint) Collidable() (bool, error) {
	_, release, err := j.resolve("joint.collidable")
	if err != nil {
		return false, err
	}
	defer release()
	return j.world.eng.JointCollisionState(j.raw()) != 0, nil
}

// SetCollidable enables or disables collision between the joined bodies.
func (j *Joint) SetCollidable(enabled bool) error {
	_, release, err := j.resolve("joint.set_collidable")
	if err != nil {
		return err
	}
	defer release()
	state := int32(0)
	if enabled {
		state = 1
	}
	j.world.eng.JointSetCollisionState(j.raw(), state)
	return nil
}

// Stiffness returns the constraint stiffness in [0,1].
func (j *Joint) Stiffness() (float32, error) {
	_, release, err := j.resolve("joint.stiffness")
	if err != nil {
		return 0, err
	}
	defer release()
	return j.world.eng.JointStiffness(j.raw()), nil
}

func (j *Joint) SetStiffness(s float32) error {
	_, release, err := j.resolve("joint.set_stiffness")
	if err != nil {
		return err
	}
	defer release()
	j.world.eng.JointSetStiffness(j.raw(), s)
	return nil
}

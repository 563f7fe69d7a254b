package scene

import (
	"fmt"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	newton "github.com/germangb/newton-go"
	"github.com/germangb/newton-go/errors"
)

// Scene describes a set of bodies and the ambient gravity acting on them.
type Scene struct {
	Gravity *mgl32.Vec3 `yaml:"gravity,omitempty"`
	Bodies  []BodySpec  `yaml:"bodies"`
}

// BodySpec describes one body to spawn. Kind is "dynamic" (the default
// when empty) or "kinematic". Material is a free-form label; bodies
// sharing a label land in one material group allocated at spawn time,
// and an empty label keeps the world default group.
type BodySpec struct {
	Name     string     `yaml:"name,omitempty"`
	Kind     string     `yaml:"kind,omitempty"`
	Shape    ShapeSpec  `yaml:"shape"`
	Mass     float32    `yaml:"mass,omitempty"`
	Position mgl32.Vec3 `yaml:"position,omitempty"`
	Velocity mgl32.Vec3 `yaml:"velocity,omitempty"`
	Material string     `yaml:"material,omitempty"`
}

// ShapeSpec names a collision primitive and its dimensions:
//
//	box       dims: [dx, dy, dz]
//	sphere    dims: [radius]
//	capsule   dims: [radius0, radius1, height]
//	cylinder  dims: [radius0, radius1, height]
//	cone      dims: [radius, height]
//	null      dims omitted
type ShapeSpec struct {
	Type string    `yaml:"type"`
	Dims []float32 `yaml:"dims,omitempty"`
}

var shapeDims = map[string]int{
	"box":      3,
	"sphere":   1,
	"capsule":  3,
	"cylinder": 3,
	"cone":     2,
	"null":     0,
}

// Load reads a scene from a YAML file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML scene document.
func Parse(data []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the scene as YAML.
func (s *Scene) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write scene: %w", err)
	}
	return nil
}

func (s *Scene) validate() error {
	for i, b := range s.Bodies {
		want, ok := shapeDims[b.Shape.Type]
		if !ok {
			return fmt.Errorf("body %s: unknown shape %q", bodyLabel(i, b), b.Shape.Type)
		}
		if len(b.Shape.Dims) != want {
			return fmt.Errorf("body %s: shape %q takes %d dims, got %d",
				bodyLabel(i, b), b.Shape.Type, want, len(b.Shape.Dims))
		}
		switch b.Kind {
		case "", "dynamic", "kinematic":
		default:
			return fmt.Errorf("body %s: unknown kind %q", bodyLabel(i, b), b.Kind)
		}
	}
	return nil
}

func bodyLabel(i int, b BodySpec) string {
	if b.Name != "" {
		return fmt.Sprintf("%d (%s)", i, b.Name)
	}
	return fmt.Sprintf("%d", i)
}

// shapeKey dedups identical shapes so spawned bodies share one collision.
type shapeKey struct {
	typ  string
	dims [3]float32
}

// Spawn instantiates every body of the scene into w, in order. Bodies
// with identical shapes share a collision. When the scene carries a
// gravity vector, Spawn installs it as the world's default force handler,
// replacing any handler set before.
//
// On error the bodies spawned so far stay in the world.
func (s *Scene) Spawn(w *newton.World) ([]*newton.Body, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	shapes := make(map[shapeKey]*newton.Collision)
	groups := make(map[string]newton.MaterialGroup)
	bodies := make([]*newton.Body, 0, len(s.Bodies))
	for i, spec := range s.Bodies {
		col, err := s.collisionFor(w, shapes, spec.Shape)
		if err != nil {
			return bodies, fmt.Errorf("spawn body %s: %w", bodyLabel(i, spec), err)
		}
		b, err := spawnBody(w, col, spec)
		if err != nil {
			return bodies, fmt.Errorf("spawn body %s: %w", bodyLabel(i, spec), err)
		}
		bodies = append(bodies, b)
		if spec.Material != "" {
			g, ok := groups[spec.Material]
			if !ok {
				if g, err = w.CreateMaterialGroup(); err != nil {
					return bodies, fmt.Errorf("spawn body %s: %w", bodyLabel(i, spec), err)
				}
				groups[spec.Material] = g
			}
			if err := b.SetMaterialGroup(g); err != nil {
				return bodies, fmt.Errorf("spawn body %s: %w", bodyLabel(i, spec), err)
			}
		}
	}

	if s.Gravity != nil {
		g := *s.Gravity
		err := w.SetForceAndTorque(func(b *newton.Body, dt time.Duration, thread int) {
			mass, err := b.Mass()
			if err != nil {
				return
			}
			b.SetForce(g.Mul(mass))
		})
		if err != nil {
			return bodies, fmt.Errorf("install gravity: %w", err)
		}
	}
	return bodies, nil
}

func (s *Scene) collisionFor(w *newton.World, shapes map[shapeKey]*newton.Collision, spec ShapeSpec) (*newton.Collision, error) {
	key := shapeKey{typ: spec.Type}
	copy(key.dims[:], spec.Dims)
	if col, ok := shapes[key]; ok {
		return col, nil
	}

	var (
		col *newton.Collision
		err error
	)
	d := spec.Dims
	switch spec.Type {
	case "box":
		col, err = w.CreateBox(d[0], d[1], d[2], nil)
	case "sphere":
		col, err = w.CreateSphere(d[0], nil)
	case "capsule":
		col, err = w.CreateCapsule(d[0], d[1], d[2], nil)
	case "cylinder":
		col, err = w.CreateCylinder(d[0], d[1], d[2], nil)
	case "cone":
		col, err = w.CreateCone(d[0], d[1], nil)
	case "null":
		col, err = w.CreateNull()
	default:
		return nil, fmt.Errorf("unknown shape %q", spec.Type)
	}
	if err != nil {
		return nil, err
	}
	shapes[key] = col
	return col, nil
}

func spawnBody(w *newton.World, col *newton.Collision, spec BodySpec) (*newton.Body, error) {
	at := mgl32.Translate3D(spec.Position[0], spec.Position[1], spec.Position[2])

	var (
		b   *newton.Body
		err error
	)
	if spec.Kind == "kinematic" {
		b, err = w.CreateKinematicBody(col, at)
	} else {
		b, err = w.CreateDynamicBody(col, at)
	}
	if err != nil {
		return nil, err
	}

	if spec.Mass > 0 {
		if err := b.SetMassProperties(spec.Mass, col); err != nil {
			return nil, err
		}
	}
	if err := b.SetVelocity(spec.Velocity); err != nil {
		return nil, err
	}
	if spec.Name != "" {
		if err := b.SetName(spec.Name); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Snapshot captures the live bodies of a world into a Scene. Gravity and
// material labels are not recoverable from a world (gravity lives in an
// opaque force handler, group numbering is world-local), so the caller
// carries those over when they apply. Bodies whose collision was
// destroyed are captured with a null shape.
func Snapshot(w *newton.World) (*Scene, error) {
	s := &Scene{}
	var snapErr error
	err := w.EachBody(func(b *newton.Body) bool {
		spec, err := describeBody(b)
		if err != nil {
			snapErr = fmt.Errorf("snapshot body %v: %w", b.Handle(), err)
			return false
		}
		s.Bodies = append(s.Bodies, spec)
		return true
	})
	if err != nil {
		return nil, err
	}
	if snapErr != nil {
		return nil, snapErr
	}
	return s, nil
}

func describeBody(b *newton.Body) (BodySpec, error) {
	var spec BodySpec

	name, err := b.Name()
	if err != nil {
		return spec, err
	}
	spec.Name = name

	typ, err := b.Type()
	if err != nil {
		return spec, err
	}
	if typ == newton.BodyKinematic {
		spec.Kind = "kinematic"
	}

	mass, err := b.Mass()
	if err != nil {
		return spec, err
	}
	spec.Mass = mass

	pos, err := b.Position()
	if err != nil {
		return spec, err
	}
	spec.Position = pos

	vel, err := b.Velocity()
	if err != nil {
		return spec, err
	}
	spec.Velocity = vel

	col, err := b.Collision()
	switch {
	case err == nil:
		spec.Shape, err = describeShape(col)
		if err != nil {
			return spec, err
		}
	case errors.IsKind(err, errors.KindHandleInvalid):
		spec.Shape = ShapeSpec{Type: "null"}
	default:
		return spec, err
	}
	return spec, nil
}

func describeShape(col *newton.Collision) (ShapeSpec, error) {
	var spec ShapeSpec

	shape, err := col.ShapeType()
	if err != nil {
		return spec, err
	}
	dims, err := col.Dimensions()
	if err != nil {
		return spec, err
	}

	switch shape {
	case newton.ShapeBox:
		spec = ShapeSpec{Type: "box", Dims: []float32{dims[0], dims[1], dims[2]}}
	case newton.ShapeSphere:
		spec = ShapeSpec{Type: "sphere", Dims: []float32{dims[0]}}
	case newton.ShapeCapsule:
		spec = ShapeSpec{Type: "capsule", Dims: []float32{dims[0], dims[1], dims[2]}}
	case newton.ShapeCylinder:
		spec = ShapeSpec{Type: "cylinder", Dims: []float32{dims[0], dims[1], dims[2]}}
	case newton.ShapeCone:
		spec = ShapeSpec{Type: "cone", Dims: []float32{dims[0], dims[1]}}
	default:
		spec = ShapeSpec{Type: "null"}
	}
	return spec, nil
}

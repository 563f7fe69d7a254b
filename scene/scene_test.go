package scene

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	newton "github.com/germangb/newton-go"
	"github.com/germangb/newton-go/native/nativetest"
)

const testScene = `
gravity: [0, -10, 0]
bodies:
  - name: floor
    kind: kinematic
    shape: {type: box, dims: [100, 1, 100]}
    position: [0, -0.5, 0]
  - name: crate
    shape: {type: box, dims: [1, 1, 1]}
    mass: 2
    position: [0, 5, 0]
    velocity: [1, 0, 0]
  - name: ball
    shape: {type: sphere, dims: [0.5]}
    mass: 1
    position: [3, 5, 0]
`

func newWorld(t *testing.T) *newton.World {
	t.Helper()
	w, err := newton.NewWorld(nativetest.New(), &newton.Config{Backend: "ordered"})
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(testScene))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Gravity == nil || *s.Gravity != (mgl32.Vec3{0, -10, 0}) {
		t.Errorf("Gravity = %v", s.Gravity)
	}
	if len(s.Bodies) != 3 {
		t.Fatalf("bodies = %d, want 3", len(s.Bodies))
	}
	crate := s.Bodies[1]
	if crate.Name != "crate" || crate.Mass != 2 || crate.Shape.Type != "box" {
		t.Errorf("crate = %+v", crate)
	}
	if crate.Position != (mgl32.Vec3{0, 5, 0}) || crate.Velocity != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("crate state = %v / %v", crate.Position, crate.Velocity)
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"unknown shape",
			"bodies:\n  - shape: {type: pyramid, dims: [1]}\n",
			`unknown shape "pyramid"`,
		},
		{
			"wrong dims",
			"bodies:\n  - shape: {type: sphere, dims: [1, 2]}\n",
			"takes 1 dims",
		},
		{
			"unknown kind",
			"bodies:\n  - kind: static\n    shape: {type: box, dims: [1, 1, 1]}\n",
			`unknown kind "static"`,
		},
		{
			"bad yaml",
			"bodies: [",
			"parse scene",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestScene_Spawn(t *testing.T) {
	s, err := Parse([]byte(testScene))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	w := newWorld(t)

	bodies, err := s.Spawn(w)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if len(bodies) != 3 {
		t.Fatalf("spawned %d bodies, want 3", len(bodies))
	}

	floor, crate := bodies[0], bodies[1]
	if typ, _ := floor.Type(); typ != newton.BodyKinematic {
		t.Errorf("floor type = %v, want kinematic", typ)
	}
	if typ, _ := crate.Type(); typ != newton.BodyDynamic {
		t.Errorf("crate type = %v, want dynamic", typ)
	}
	if name, _ := crate.Name(); name != "crate" {
		t.Errorf("crate name = %q", name)
	}
	if mass, _ := crate.Mass(); mass != 2 {
		t.Errorf("crate mass = %v", mass)
	}
	if pos, _ := crate.Position(); pos != (mgl32.Vec3{0, 5, 0}) {
		t.Errorf("crate position = %v", pos)
	}
	if vel, _ := crate.Velocity(); vel != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("crate velocity = %v", vel)
	}

	// Two differently-sized boxes and a sphere: three distinct shapes.
	if n := w.CollisionCount(); n != 3 {
		t.Errorf("CollisionCount = %d, want 3", n)
	}
}

func TestScene_SpawnSharesIdenticalShapes(t *testing.T) {
	doc := `
bodies:
  - shape: {type: box, dims: [1, 1, 1]}
  - shape: {type: box, dims: [1, 1, 1]}
  - shape: {type: box, dims: [2, 1, 1]}
`
	s, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	w := newWorld(t)

	bodies, err := s.Spawn(w)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if n := w.CollisionCount(); n != 2 {
		t.Errorf("CollisionCount = %d, want 2 distinct shapes", n)
	}

	c0, err := bodies[0].Collision()
	if err != nil {
		t.Fatalf("Collision: %v", err)
	}
	c1, err := bodies[1].Collision()
	if err != nil {
		t.Fatalf("Collision: %v", err)
	}
	if c0.Handle() != c1.Handle() {
		t.Error("identical shapes not shared")
	}
	c2, err := bodies[2].Collision()
	if err != nil {
		t.Fatalf("Collision: %v", err)
	}
	if c2.Handle() == c0.Handle() {
		t.Error("different shapes wrongly shared")
	}
}

func TestScene_SpawnInstallsGravity(t *testing.T) {
	s, err := Parse([]byte(testScene))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	w := newWorld(t)
	bodies, err := s.Spawn(w)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if err := w.Step(time.Second); err != nil {
		t.Fatalf("Step: %v", err)
	}

	// dv = g*mass/mass * dt, independent of the body's mass.
	crate := bodies[1]
	vel, err := crate.Velocity()
	if err != nil {
		t.Fatalf("Velocity: %v", err)
	}
	want := mgl32.Vec3{1, -10, 0}
	for i := range want {
		d := vel[i] - want[i]
		if d < -1e-3 || d > 1e-3 {
			t.Fatalf("crate velocity = %v, want %v", vel, want)
		}
	}
}

func TestScene_SpawnWithoutGravityLeavesBodiesBallistic(t *testing.T) {
	doc := `
bodies:
  - shape: {type: box, dims: [1, 1, 1]}
    mass: 1
    velocity: [2, 0, 0]
`
	s, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	w := newWorld(t)
	bodies, err := s.Spawn(w)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if err := w.Step(time.Second); err != nil {
		t.Fatalf("Step: %v", err)
	}
	vel, err := bodies[0].Velocity()
	if err != nil {
		t.Fatalf("Velocity: %v", err)
	}
	if vel != (mgl32.Vec3{2, 0, 0}) {
		t.Errorf("velocity drifted without gravity: %v", vel)
	}
}

func TestScene_SpawnAssignsMaterialGroups(t *testing.T) {
	doc := `
bodies:
  - shape: {type: box, dims: [1, 1, 1]}
    material: metal
  - shape: {type: box, dims: [1, 1, 1]}
    material: metal
  - shape: {type: box, dims: [1, 1, 1]}
    material: wood
  - shape: {type: box, dims: [1, 1, 1]}
`
	s, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	w := newWorld(t)
	bodies, err := s.Spawn(w)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	groups := make([]newton.MaterialGroup, len(bodies))
	for i, b := range bodies {
		if groups[i], err = b.MaterialGroup(); err != nil {
			t.Fatalf("MaterialGroup: %v", err)
		}
	}
	if groups[0] != groups[1] {
		t.Errorf("same label split into groups %v and %v", groups[0], groups[1])
	}
	if groups[0] == groups[2] {
		t.Errorf("distinct labels share group %v", groups[0])
	}
	if groups[3] != w.DefaultMaterialGroup() {
		t.Errorf("unlabeled body group = %v, want default", groups[3])
	}
	if groups[0] == w.DefaultMaterialGroup() || groups[2] == w.DefaultMaterialGroup() {
		t.Error("labeled body kept the default group")
	}
}

func TestSnapshot_RoundTripsSpawnedScene(t *testing.T) {
	s, err := Parse([]byte(testScene))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	w := newWorld(t)
	if _, err := s.Spawn(w); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	snap, err := Snapshot(w)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Bodies) != len(s.Bodies) {
		t.Fatalf("snapshot bodies = %d, want %d", len(snap.Bodies), len(s.Bodies))
	}
	for i, want := range s.Bodies {
		got := snap.Bodies[i]
		if got.Name != want.Name {
			t.Errorf("body %d name = %q, want %q", i, got.Name, want.Name)
		}
		if got.Kind != want.Kind {
			t.Errorf("body %d kind = %q, want %q", i, got.Kind, want.Kind)
		}
		if got.Mass != want.Mass {
			t.Errorf("body %d mass = %v, want %v", i, got.Mass, want.Mass)
		}
		if got.Position != want.Position {
			t.Errorf("body %d position = %v, want %v", i, got.Position, want.Position)
		}
		if got.Velocity != want.Velocity {
			t.Errorf("body %d velocity = %v, want %v", i, got.Velocity, want.Velocity)
		}
		if !reflect.DeepEqual(got.Shape, want.Shape) {
			t.Errorf("body %d shape = %+v, want %+v", i, got.Shape, want.Shape)
		}
	}
}

func TestScene_SaveLoad(t *testing.T) {
	s, err := Parse([]byte(testScene))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded, s) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, s)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file: err = nil")
	}
}

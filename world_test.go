package newton

import (
	stderrors "errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/germangb/newton-go/errors"
	"github.com/germangb/newton-go/native/nativetest"
)

func newTestWorld(t *testing.T, cfg *Config) (*World, *nativetest.Engine) {
	t.Helper()
	eng := nativetest.New()
	w, err := NewWorld(eng, cfg)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, eng
}

func mustBox(t *testing.T, w *World, dx, dy, dz float32) *Collision {
	t.Helper()
	col, err := w.CreateBox(dx, dy, dz, nil)
	if err != nil {
		t.Fatalf("CreateBox: %v", err)
	}
	return col
}

func mustBody(t *testing.T, w *World, col *Collision, at mgl32.Vec3) *Body {
	t.Helper()
	b, err := w.CreateDynamicBody(col, mgl32.Translate3D(at[0], at[1], at[2]))
	if err != nil {
		t.Fatalf("CreateDynamicBody: %v", err)
	}
	return b
}

func approx(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-4
}

func approxVec(a, b mgl32.Vec3) bool {
	return approx(a[0], b[0]) && approx(a[1], b[1]) && approx(a[2], b[2])
}

func TestNewWorld_AppliesConfig(t *testing.T) {
	eng := nativetest.New()
	w, err := NewWorld(eng, &Config{
		Name:        "rig",
		Threads:     3,
		SolverModel: 2,
		Broadphase:  "persistent",
	})
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	defer w.Close()

	snap, ok := eng.World(w.raw)
	if !ok {
		t.Fatal("native world not live")
	}
	if snap.Threads != 3 {
		t.Errorf("threads = %d, want 3", snap.Threads)
	}
	if snap.Solver != 2 {
		t.Errorf("solver = %d, want 2", snap.Solver)
	}
	if snap.Broadphase != 1 {
		t.Errorf("broadphase = %d, want 1", snap.Broadphase)
	}
	if w.Name() != "rig" {
		t.Errorf("Name() = %q, want %q", w.Name(), "rig")
	}
}

func TestNewWorld_DefaultThreadsNonZero(t *testing.T) {
	w, eng := newTestWorld(t, nil)
	snap, ok := eng.World(w.raw)
	if !ok {
		t.Fatal("native world not live")
	}
	if snap.Threads < 1 {
		t.Errorf("threads = %d, want >= 1", snap.Threads)
	}
}

func TestNewWorld_NilEngine(t *testing.T) {
	if _, err := NewWorld(nil, nil); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("err = %v, want InvalidInput", err)
	}
}

func TestNewWorld_BadConfig(t *testing.T) {
	cases := map[string]*Config{
		"backend":    {Backend: "btree"},
		"broadphase": {Broadphase: "octree"},
		"threads":    {Threads: -1},
		"solver":     {SolverModel: -2},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewWorld(nativetest.New(), cfg); !errors.IsKind(err, errors.KindInvalidInput) {
				t.Fatalf("err = %v, want InvalidInput", err)
			}
		})
	}
}

func TestNewWorld_AllocationFailure(t *testing.T) {
	eng := nativetest.New()
	eng.FailNextCreate()
	if _, err := NewWorld(eng, nil); !errors.IsKind(err, errors.KindAllocationFailed) {
		t.Fatalf("err = %v, want AllocationFailed", err)
	}
	if n := eng.LiveWorlds(); n != 0 {
		t.Errorf("live worlds = %d, want 0", n)
	}
}

func TestWorld_FactoryAllocationFailureLeavesNoEntry(t *testing.T) {
	w, eng := newTestWorld(t, nil)
	eng.FailNextCreate()
	if _, err := w.CreateBox(1, 1, 1, nil); !errors.IsKind(err, errors.KindAllocationFailed) {
		t.Fatalf("err = %v, want AllocationFailed", err)
	}
	if n := w.CollisionCount(); n != 0 {
		t.Errorf("collision count = %d, want 0", n)
	}

	col := mustBox(t, w, 1, 1, 1)
	eng.FailNextCreate()
	if _, err := w.CreateDynamicBody(col, mgl32.Ident4()); !errors.IsKind(err, errors.KindAllocationFailed) {
		t.Fatalf("err = %v, want AllocationFailed", err)
	}
	if n := w.BodyCount(); n != 0 {
		t.Errorf("body count = %d, want 0", n)
	}
}

func TestWorld_FactoryRejectsForeignCollision(t *testing.T) {
	w1, _ := newTestWorld(t, nil)
	w2, _ := newTestWorld(t, nil)

	col := mustBox(t, w2, 1, 1, 1)
	if _, err := w1.CreateDynamicBody(col, mgl32.Ident4()); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("err = %v, want InvalidInput", err)
	}
}

func TestWorld_LookupsReturnBorrowedViews(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	owner := mustBody(t, w, col, mgl32.Vec3{})

	view, err := w.Body(owner.Handle())
	if err != nil {
		t.Fatalf("Body lookup: %v", err)
	}
	if view.Owned() {
		t.Error("lookup view reports Owned")
	}
	if view.Handle() != owner.Handle() {
		t.Errorf("handle mismatch: %v vs %v", view.Handle(), owner.Handle())
	}

	// A borrowed view never destroys.
	if err := view.Release(); err != nil {
		t.Fatalf("borrowed Release: %v", err)
	}
	if _, err := view.Position(); err != nil {
		t.Fatalf("body gone after borrowed Release: %v", err)
	}
}

func TestWorld_LookupMissesFail(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	b := mustBody(t, w, col, mgl32.Vec3{})

	if _, err := w.Body(col.Handle()); !errors.IsKind(err, errors.KindHandleInvalid) {
		t.Errorf("body lookup with collision handle: err = %v, want HandleInvalid", err)
	}
	if _, err := w.Joint(b.Handle()); !errors.IsKind(err, errors.KindHandleInvalid) {
		t.Errorf("joint lookup with body handle: err = %v, want HandleInvalid", err)
	}

	if err := w.Destroy(b.Handle()); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := w.Body(b.Handle()); !errors.IsKind(err, errors.KindHandleInvalid) {
		t.Errorf("lookup after destroy: err = %v, want HandleInvalid", err)
	}
}

func TestWorld_DestroyIsIdempotent(t *testing.T) {
	w, eng := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	b := mustBody(t, w, col, mgl32.Vec3{})
	raw := b.Handle().raw

	if err := w.Destroy(b.Handle()); err != nil {
		t.Fatalf("first Destroy: %v", err)
	}
	if err := w.Destroy(b.Handle()); err != nil {
		t.Fatalf("second Destroy: %v", err)
	}
	if n := eng.DestroyCount(raw); n != 1 {
		t.Errorf("native destroys = %d, want exactly 1", n)
	}
}

func TestWorld_DestroyBodyCascadesJoints(t *testing.T) {
	w, eng := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	child := mustBody(t, w, col, mgl32.Vec3{})
	parent := mustBody(t, w, col, mgl32.Vec3{0, 2, 0})

	joint, err := w.CreateBallJoint(mgl32.Vec3{0, 1, 0}, child, parent)
	if err != nil {
		t.Fatalf("CreateBallJoint: %v", err)
	}

	if err := w.Destroy(child.Handle()); err != nil {
		t.Fatalf("Destroy(child): %v", err)
	}

	if n := w.JointCount(); n != 0 {
		t.Errorf("joint count = %d, want 0", n)
	}
	if _, err := joint.Type(); !errors.IsKind(err, errors.KindHandleInvalid) {
		t.Errorf("joint op after cascade: err = %v, want HandleInvalid", err)
	}
	if n := eng.DestroyCount(joint.Handle().raw); n != 1 {
		t.Errorf("native joint destroys = %d, want 1", n)
	}
	// The surviving body is untouched.
	if _, err := parent.Position(); err != nil {
		t.Errorf("parent body after cascade: %v", err)
	}
}

func TestWorld_EachBodyOrderedBackend(t *testing.T) {
	w, _ := newTestWorld(t, &Config{Backend: "ordered"})
	col := mustBox(t, w, 1, 1, 1)

	var want []Handle
	for i := 0; i < 4; i++ {
		b := mustBody(t, w, col, mgl32.Vec3{float32(i), 0, 0})
		want = append(want, b.Handle())
	}

	var got []Handle
	err := w.EachBody(func(b *Body) bool {
		got = append(got, b.Handle())
		return true
	})
	if err != nil {
		t.Fatalf("EachBody: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("visited %d bodies, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("visit order %v, want %v", got, want)
		}
	}
}

func TestWorld_EachBodyEarlyStop(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	mustBody(t, w, col, mgl32.Vec3{})
	mustBody(t, w, col, mgl32.Vec3{})

	visits := 0
	if err := w.EachBody(func(*Body) bool {
		visits++
		return false
	}); err != nil {
		t.Fatalf("EachBody: %v", err)
	}
	if visits != 1 {
		t.Errorf("visits = %d, want 1", visits)
	}
}

func TestWorld_Counts(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	b0 := mustBody(t, w, col, mgl32.Vec3{})
	b1 := mustBody(t, w, col, mgl32.Vec3{})
	if _, err := w.CreateBallJoint(mgl32.Vec3{}, b0, b1); err != nil {
		t.Fatalf("CreateBallJoint: %v", err)
	}
	if _, err := w.CreateMeshFromCollision(col); err != nil {
		t.Fatalf("CreateMeshFromCollision: %v", err)
	}

	if n := w.BodyCount(); n != 2 {
		t.Errorf("BodyCount = %d, want 2", n)
	}
	if n := w.CollisionCount(); n != 1 {
		t.Errorf("CollisionCount = %d, want 1", n)
	}
	if n := w.JointCount(); n != 1 {
		t.Errorf("JointCount = %d, want 1", n)
	}
	if n := w.MeshCount(); n != 1 {
		t.Errorf("MeshCount = %d, want 1", n)
	}
}

func TestWorld_CloseDestroysEverythingExactlyOnce(t *testing.T) {
	w, eng := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	b0 := mustBody(t, w, col, mgl32.Vec3{})
	b1 := mustBody(t, w, col, mgl32.Vec3{0, 2, 0})
	joint, err := w.CreateBallJoint(mgl32.Vec3{0, 1, 0}, b0, b1)
	if err != nil {
		t.Fatalf("CreateBallJoint: %v", err)
	}
	mesh, err := w.CreateMeshFromCollision(col)
	if err != nil {
		t.Fatalf("CreateMeshFromCollision: %v", err)
	}

	// One object dies before Close; Close must not destroy it again.
	if err := w.Destroy(b1.Handle()); err != nil {
		t.Fatalf("Destroy(b1): %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	handles := []Handle{col.Handle(), b0.Handle(), b1.Handle(), joint.Handle(), mesh.Handle()}
	for _, h := range handles {
		if n := eng.DestroyCount(h.raw); n != 1 {
			t.Errorf("%v: native destroys = %d, want exactly 1", h, n)
		}
	}
	if n := eng.DestroyCount(uintptr(w.raw)); n != 1 {
		t.Errorf("world: native destroys = %d, want exactly 1", n)
	}
	if n := eng.LiveBodies() + eng.LiveCollisions() + eng.LiveJoints() + eng.LiveMeshes() + eng.LiveWorlds(); n != 0 {
		t.Errorf("live native objects after Close = %d, want 0", n)
	}
}

func TestWorld_CloseIsIdempotent(t *testing.T) {
	w, eng := newTestWorld(t, nil)
	mustBox(t, w, 1, 1, 1)

	if err := w.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if n := eng.DestroyCount(uintptr(w.raw)); n != 1 {
		t.Errorf("world destroys = %d, want 1", n)
	}
}

func TestWorld_OperationsAfterCloseFailWorldGone(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	b := mustBody(t, w, col, mgl32.Vec3{})

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := w.CreateBox(1, 1, 1, nil); !errors.IsKind(err, errors.KindWorldGone) {
		t.Errorf("CreateBox after Close: err = %v, want WorldGone", err)
	}
	if _, err := b.Position(); !errors.IsKind(err, errors.KindWorldGone) {
		t.Errorf("body read after Close: err = %v, want WorldGone", err)
	}
	if err := b.SetVelocity(mgl32.Vec3{1, 0, 0}); !errors.IsKind(err, errors.KindWorldGone) {
		t.Errorf("body write after Close: err = %v, want WorldGone", err)
	}
	if err := w.Destroy(b.Handle()); !errors.IsKind(err, errors.KindWorldGone) {
		t.Errorf("Destroy after Close: err = %v, want WorldGone", err)
	}
	if _, err := w.Body(b.Handle()); !errors.IsKind(err, errors.KindWorldGone) {
		t.Errorf("lookup after Close: err = %v, want WorldGone", err)
	}
	if err := w.EachBody(func(*Body) bool { return true }); !errors.IsKind(err, errors.KindWorldGone) {
		t.Errorf("EachBody after Close: err = %v, want WorldGone", err)
	}
}

func TestWorld_CloseAggregatesTeardownErrors(t *testing.T) {
	w, eng := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	b := mustBody(t, w, col, mgl32.Vec3{})

	sentinel := stderrors.New("engine refused")
	eng.FailDestroy(b.Handle().raw, sentinel)

	err := w.Close()
	if err == nil {
		t.Fatal("Close returned nil, want teardown error")
	}
	if !stderrors.Is(err, sentinel) {
		t.Errorf("Close error %v does not wrap the engine failure", err)
	}
	// The object is gone regardless of the reported failure.
	if n := eng.LiveBodies(); n != 0 {
		t.Errorf("live bodies = %d, want 0", n)
	}
	// Repeated Close keeps returning the same aggregate.
	if again := w.Close(); !stderrors.Is(again, sentinel) {
		t.Errorf("second Close = %v, want same aggregate", again)
	}
}

func TestWorld_InvalidateCache(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	if err := w.InvalidateCache(); err != nil {
		t.Fatalf("InvalidateCache: %v", err)
	}
	w.Close()
	if err := w.InvalidateCache(); !errors.IsKind(err, errors.KindWorldGone) {
		t.Errorf("InvalidateCache after Close: err = %v, want WorldGone", err)
	}
}

package newton

import (
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/germangb/newton-go/errors"
	"github.com/germangb/newton-go/native"
)

// collector is a ContactListener that records every contact it sees.
type collector struct {
	mu       sync.Mutex
	contacts []Contact
}

func (c *collector) OnContact(ct Contact) {
	c.mu.Lock()
	c.contacts = append(c.contacts, ct)
	c.mu.Unlock()
}

func (c *collector) all() []Contact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Contact(nil), c.contacts...)
}

// vetoFilter refuses every pair and records what it saw.
type vetoFilter struct {
	mu    sync.Mutex
	pairs [][2]Handle
	allow bool
}

func (f *vetoFilter) ShouldCollide(b0, b1 *Body) bool {
	f.mu.Lock()
	f.pairs = append(f.pairs, [2]Handle{b0.Handle(), b1.Handle()})
	f.mu.Unlock()
	return f.allow
}

func TestWorld_ForceHandlerReceivesBodyAndTimestep(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	b := mustBody(t, w, col, mgl32.Vec3{})
	if err := b.SetMassProperties(1, col); err != nil {
		t.Fatalf("SetMassProperties: %v", err)
	}

	var (
		mu     sync.Mutex
		calls  int
		handle Handle
		step   time.Duration
	)
	if err := w.SetForceAndTorque(func(body *Body, dt time.Duration, thread int) {
		mu.Lock()
		calls++
		handle = body.Handle()
		step = dt
		mu.Unlock()
	}); err != nil {
		t.Fatalf("SetForceAndTorque: %v", err)
	}

	if err := w.Step(50 * time.Millisecond); err != nil {
		t.Fatalf("Step: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if handle != b.Handle() {
		t.Errorf("handler body = %v, want %v", handle, b.Handle())
	}
	if d := step - 50*time.Millisecond; d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("handler timestep = %v, want ~50ms", step)
	}
}

func TestBody_ForceHandlerOverridesWorldDefault(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	plain := mustBody(t, w, col, mgl32.Vec3{})
	special := mustBody(t, w, col, mgl32.Vec3{5, 0, 0})
	for _, b := range []*Body{plain, special} {
		if err := b.SetMassProperties(1, col); err != nil {
			t.Fatalf("SetMassProperties: %v", err)
		}
	}

	if err := w.SetForceAndTorque(func(b *Body, dt time.Duration, thread int) {
		b.SetForce(mgl32.Vec3{1, 0, 0})
	}); err != nil {
		t.Fatalf("SetForceAndTorque: %v", err)
	}
	if err := special.SetForceAndTorque(func(b *Body, dt time.Duration, thread int) {
		b.SetForce(mgl32.Vec3{0, 0, 7})
	}); err != nil {
		t.Fatalf("body SetForceAndTorque: %v", err)
	}

	if err := w.Step(time.Second); err != nil {
		t.Fatalf("Step: %v", err)
	}

	v, _ := plain.Velocity()
	if !approxVec(v, mgl32.Vec3{1, 0, 0}) {
		t.Errorf("plain velocity = %v, want world-default force applied", v)
	}
	v, _ = special.Velocity()
	if !approxVec(v, mgl32.Vec3{0, 0, 7}) {
		t.Errorf("special velocity = %v, want per-body force applied", v)
	}

	// Clearing the override falls back to the world default.
	if err := special.SetForceAndTorque(nil); err != nil {
		t.Fatalf("clear override: %v", err)
	}
	if err := w.Step(time.Second); err != nil {
		t.Fatalf("second Step: %v", err)
	}
	v, _ = special.Velocity()
	if !approxVec(v, mgl32.Vec3{1, 0, 7}) {
		t.Errorf("special velocity after fallback = %v, want (1,0,7)", v)
	}
}

func TestWorld_ContactListenerReceivesRegisteredHandles(t *testing.T) {
	w, eng := newTestWorld(t, nil)
	col := mustBox(t, w, 2, 2, 2)
	b0 := mustBody(t, w, col, mgl32.Vec3{1, 2, 3})
	b1 := mustBody(t, w, col, mgl32.Vec3{1, 3, 3})

	sink := &collector{}
	if err := w.SetContactListener(sink); err != nil {
		t.Fatalf("SetContactListener: %v", err)
	}
	eng.ScriptOverlap(native.Body(b0.Handle().raw), native.Body(b1.Handle().raw))

	if err := w.Step(20 * time.Millisecond); err != nil {
		t.Fatalf("Step: %v", err)
	}

	contacts := sink.all()
	if len(contacts) != 1 {
		t.Fatalf("contacts = %d, want 1", len(contacts))
	}
	c := contacts[0]
	if c.Body0.Handle() != b0.Handle() || c.Body1.Handle() != b1.Handle() {
		t.Errorf("contact handles (%v, %v), want (%v, %v)",
			c.Body0.Handle(), c.Body1.Handle(), b0.Handle(), b1.Handle())
	}
	if !approxVec(c.Position, mgl32.Vec3{1, 2, 3}) {
		t.Errorf("contact position = %v, want body0 position", c.Position)
	}
	if !approxVec(c.Normal, mgl32.Vec3{0, 1, 0}) {
		t.Errorf("contact normal = %v", c.Normal)
	}
}

func TestWorld_ContactViewsUsableInsideHandler(t *testing.T) {
	w, eng := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	b0 := mustBody(t, w, col, mgl32.Vec3{0, 4, 0})
	b1 := mustBody(t, w, col, mgl32.Vec3{0, 5, 0})
	eng.ScriptOverlap(native.Body(b0.Handle().raw), native.Body(b1.Handle().raw))

	var (
		readErr error
		pos     mgl32.Vec3
	)
	if err := w.SetContactListener(contactFunc(func(c Contact) {
		pos, readErr = c.Body0.Position()
	})); err != nil {
		t.Fatalf("SetContactListener: %v", err)
	}

	if err := w.Step(20 * time.Millisecond); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if readErr != nil {
		t.Fatalf("Position inside handler: %v", readErr)
	}
	if !approxVec(pos, mgl32.Vec3{0, 4, 0}) {
		t.Errorf("position inside handler = %v, want (0,4,0)", pos)
	}
	if n := eng.UnsafeCalls(); n != 0 {
		t.Errorf("unsafe native calls = %d, want 0", n)
	}
}

// contactFunc adapts a func to ContactListener.
type contactFunc func(Contact)

func (f contactFunc) OnContact(c Contact) { f(c) }

func TestWorld_ContactFilterVetoSuppressesContacts(t *testing.T) {
	w, eng := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	b0 := mustBody(t, w, col, mgl32.Vec3{})
	b1 := mustBody(t, w, col, mgl32.Vec3{0, 1, 0})

	filter := &vetoFilter{allow: false}
	sink := &collector{}
	if err := w.SetContactFilter(filter); err != nil {
		t.Fatalf("SetContactFilter: %v", err)
	}
	if err := w.SetContactListener(sink); err != nil {
		t.Fatalf("SetContactListener: %v", err)
	}
	eng.ScriptOverlap(native.Body(b0.Handle().raw), native.Body(b1.Handle().raw))

	if err := w.Step(20 * time.Millisecond); err != nil {
		t.Fatalf("Step: %v", err)
	}

	filter.mu.Lock()
	pairs := len(filter.pairs)
	filter.mu.Unlock()
	if pairs != 1 {
		t.Fatalf("filter invocations = %d, want 1", pairs)
	}
	if got := sink.all(); len(got) != 0 {
		t.Errorf("contacts delivered despite veto: %d", len(got))
	}

	// Allowing the pair delivers contacts again.
	filter.allow = true
	if err := w.Step(20 * time.Millisecond); err != nil {
		t.Fatalf("second Step: %v", err)
	}
	if got := sink.all(); len(got) != 1 {
		t.Errorf("contacts after allow = %d, want 1", len(got))
	}
}

func TestWorld_BeginStepFromHandlerFailsReentrant(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	b := mustBody(t, w, col, mgl32.Vec3{})
	if err := b.SetMassProperties(1, col); err != nil {
		t.Fatalf("SetMassProperties: %v", err)
	}

	var reentrant error
	if err := w.SetForceAndTorque(func(body *Body, dt time.Duration, thread int) {
		reentrant = w.BeginStep(dt)
	}); err != nil {
		t.Fatalf("SetForceAndTorque: %v", err)
	}

	if err := w.Step(16 * time.Millisecond); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !errors.IsKind(reentrant, errors.KindReentrantStep) {
		t.Errorf("BeginStep from handler: err = %v, want ReentrantStep", reentrant)
	}
}

func TestWorld_DispatchSkipsUnknownHandles(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	b := mustBody(t, w, col, mgl32.Vec3{})

	called := false
	if err := w.SetContactListener(contactFunc(func(Contact) { called = true })); err != nil {
		t.Fatalf("SetContactListener: %v", err)
	}

	// Drive the bridge with a handle the registries have never seen.
	w.bridge.processDispatch(native.Contact{
		Body0: native.Body(0xdead),
		Body1: native.Body(b.Handle().raw),
	}, 0.016, 0)

	if called {
		t.Error("listener ran for an unknown handle")
	}
	if n := w.ConsistencyFaults(); n != 1 {
		t.Errorf("ConsistencyFaults = %d, want 1", n)
	}

	// An unknown handle never vetoes contact generation.
	filter := &vetoFilter{allow: false}
	if err := w.SetContactFilter(filter); err != nil {
		t.Fatalf("SetContactFilter: %v", err)
	}
	if !w.bridge.overlapDispatch(native.Body(0xbeef), native.Body(b.Handle().raw), 0) {
		t.Error("unknown handle vetoed the pair")
	}
	if n := w.ConsistencyFaults(); n != 2 {
		t.Errorf("ConsistencyFaults = %d, want 2", n)
	}
	filter.mu.Lock()
	defer filter.mu.Unlock()
	if len(filter.pairs) != 0 {
		t.Error("filter ran for an unknown handle")
	}
}

func TestWorld_ForceDispatchUnknownBodySkipsHandler(t *testing.T) {
	w, _ := newTestWorld(t, nil)

	called := false
	if err := w.SetForceAndTorque(func(*Body, time.Duration, int) { called = true }); err != nil {
		t.Fatalf("SetForceAndTorque: %v", err)
	}

	w.bridge.forceTorqueDispatch(native.Body(0x99), 0.016, 0)
	if called {
		t.Error("force handler ran for an unknown handle")
	}
	if n := w.ConsistencyFaults(); n != 1 {
		t.Errorf("ConsistencyFaults = %d, want 1", n)
	}
}

func TestWorld_KinematicBodySkipsForceDispatch(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	kin, err := w.CreateKinematicBody(col, mgl32.Ident4())
	if err != nil {
		t.Fatalf("CreateKinematicBody: %v", err)
	}
	dyn := mustBody(t, w, col, mgl32.Vec3{})
	if err := dyn.SetMassProperties(1, col); err != nil {
		t.Fatalf("SetMassProperties: %v", err)
	}

	var (
		mu   sync.Mutex
		seen []Handle
	)
	if err := w.SetForceAndTorque(func(b *Body, dt time.Duration, thread int) {
		mu.Lock()
		seen = append(seen, b.Handle())
		mu.Unlock()
	}); err != nil {
		t.Fatalf("SetForceAndTorque: %v", err)
	}

	if err := w.Step(16 * time.Millisecond); err != nil {
		t.Fatalf("Step: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != dyn.Handle() {
		t.Errorf("force dispatch saw %v, want only %v", seen, dyn.Handle())
	}
	if typ, err := kin.Type(); err != nil || typ != BodyKinematic {
		t.Errorf("kinematic body type = %v, %v", typ, err)
	}
}

package newton

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/germangb/newton-go/native"
)

// ContactFilter vetoes contact generation for a body pair whose bounding
// volumes began overlapping. Returning false discards the pair for the
// current step. Implementations run on the stepping goroutine and must
// not retain the views past the call.
type ContactFilter interface {
	ShouldCollide(body0, body1 *Body) bool
}

// ContactListener receives contact points as the solver processes them.
// Implementations run on the stepping goroutine and must not retain the
// views past the call.
type ContactListener interface {
	OnContact(c Contact)
}

// Contact is one contact point between two bodies, delivered during a
// step. The body views are borrowed and valid only inside the handler.
type Contact struct {
	Body0       *Body
	Body1       *Body
	Position    mgl32.Vec3
	Normal      mgl32.Vec3
	NormalSpeed float32
	Timestep    time.Duration
	ThreadIndex int
}

// ForceTorque applies external forces to one dynamic body each step.
// A per-body handler (Body.SetForceAndTorque) overrides the world default
// (World.SetForceAndTorque) for that body.
type ForceTorque func(b *Body, timestep time.Duration, threadIndex int)

// bridge routes native callbacks to user handlers. Raw handles are
// resolved through the world's registries; a miss skips the handler,
// logs, and bumps the consistency fault counter instead of crashing the
// step.
type bridge struct {
	world *World

	// inCallback counts handler nesting on the stepping goroutine;
	// BeginStep refuses to run while it is non-zero.
	inCallback atomic.Int32
	faults     atomic.Uint64

	mu          sync.RWMutex
	filter      ContactFilter
	listener    ContactListener
	forceTorque ForceTorque
}

func newBridge(w *World) *bridge {
	return &bridge{world: w}
}

func (br *bridge) setFilter(f ContactFilter) {
	br.mu.Lock()
	br.filter = f
	br.mu.Unlock()
}

func (br *bridge) setListener(l ContactListener) {
	br.mu.Lock()
	br.listener = l
	br.mu.Unlock()
}

func (br *bridge) setForceTorque(fn ForceTorque) {
	br.mu.Lock()
	br.forceTorque = fn
	br.mu.Unlock()
}

func (br *bridge) enter() { br.inCallback.Add(1) }
func (br *bridge) leave() { br.inCallback.Add(-1) }

func (br *bridge) fault(op string, raw uintptr) {
	br.faults.Add(1)
	br.world.log.Error("callback received unknown handle",
		zap.String("op", op),
		zap.Uintptr("raw", raw),
	)
}

// forceTorqueDispatch is installed as every body's native force
// applicator. Per-body override wins over the world default; bodies with
// neither receive no forces.
func (br *bridge) forceTorqueDispatch(raw native.Body, timestep float32, threadIndex int32) {
	br.enter()
	defer br.leave()

	rec, ok := br.world.bodies.Get(raw)
	if !ok {
		br.fault("force_torque", uintptr(raw))
		return
	}

	rec.mu.Lock()
	fn := rec.forceTorque
	rec.mu.Unlock()
	if fn == nil {
		br.mu.RLock()
		fn = br.forceTorque
		br.mu.RUnlock()
	}
	if fn == nil {
		return
	}

	fn(br.world.bodyView(raw), durationFrom(timestep), int(threadIndex))
}

// overlapDispatch drives the ContactFilter. Unknown handles never veto;
// the native default (collide) stands.
func (br *bridge) overlapDispatch(raw0, raw1 native.Body, threadIndex int32) bool {
	br.enter()
	defer br.leave()

	br.mu.RLock()
	filter := br.filter
	br.mu.RUnlock()
	if filter == nil {
		return true
	}

	if _, ok := br.world.bodies.Get(raw0); !ok {
		br.fault("contact_filter", uintptr(raw0))
		return true
	}
	if _, ok := br.world.bodies.Get(raw1); !ok {
		br.fault("contact_filter", uintptr(raw1))
		return true
	}

	return filter.ShouldCollide(br.world.bodyView(raw0), br.world.bodyView(raw1))
}

// processDispatch drives the ContactListener for each contact point.
func (br *bridge) processDispatch(c native.Contact, timestep float32, threadIndex int32) {
	br.enter()
	defer br.leave()

	br.mu.RLock()
	listener := br.listener
	br.mu.RUnlock()
	if listener == nil {
		return
	}

	if _, ok := br.world.bodies.Get(c.Body0); !ok {
		br.fault("contact_listener", uintptr(c.Body0))
		return
	}
	if _, ok := br.world.bodies.Get(c.Body1); !ok {
		br.fault("contact_listener", uintptr(c.Body1))
		return
	}

	listener.OnContact(Contact{
		Body0:       br.world.bodyView(c.Body0),
		Body1:       br.world.bodyView(c.Body1),
		Position:    mgl32.Vec3(c.Position),
		Normal:      mgl32.Vec3(c.Normal),
		NormalSpeed: c.NormalSpeed,
		Timestep:    durationFrom(timestep),
		ThreadIndex: int(threadIndex),
	})
}

// install registers the bridge against a material pair so contacts
// between the groups flow through the filter and listener.
func (br *bridge) install(g0, g1 MaterialGroup) {
	br.world.eng.MaterialSetCallbacks(br.world.raw, int32(g0), int32(g1),
		br.overlapDispatch, br.processDispatch)
}

func durationFrom(seconds float32) time.Duration {
	return time.Duration(float64(seconds) * float64(time.Second))
}

// Package newton provides a safe Go layer over the Newton Dynamics
// rigid-body engine.
//
// The native engine hands out raw pointers and checks none of them;
// using a freed pointer is undefined behavior. This library interposes
// handle registries, liveness checks and a stepping gate so that every
// misuse surfaces as a structured error instead of memory corruption.
//
// # Architecture Overview
//
// The library is organized into a small set of packages:
//
//	newton/              Root package: World, typed wrappers, stepping, callbacks
//	├── native/          Raw engine surface: Engine interface, purego bindings
//	│   └── nativetest/  In-memory scriptable engine for tests
//	├── storage/         Generic handle registries (dense and ordered backends)
//	├── errors/          Structured error taxonomy (Phase, Kind, Builder)
//	├── scene/           YAML scene loading, spawning and snapshots
//	└── cmd/newton-sandbox/  Headless simulation runner
//
// # Quick Start
//
// Create a world, drop a box, step the simulation:
//
//	lib, err := native.Open("libNewton.so")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	w, err := newton.NewWorld(lib, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	shape, _ := w.CreateBox(1, 1, 1, nil)
//	body, _ := w.CreateDynamicBody(shape, mgl32.Ident4())
//	body.SetMassProperties(10, shape)
//
//	w.SetForceAndTorque(func(b *newton.Body, dt time.Duration, thread int) {
//	    b.SetForce(mgl32.Vec3{0, -9.8 * 10, 0})
//	})
//
//	for i := 0; i < 60; i++ {
//	    if err := w.Step(16 * time.Millisecond); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Handles and Wrappers
//
// Every object created through the World is tracked in a registry keyed
// by its native handle. Wrappers (Body, Collision, Joint, Mesh) resolve
// through the registry before each native call, so operating on a
// destroyed object fails with HandleInvalid rather than touching freed
// memory. Owning wrappers come from World factories and destroy the
// object through Release; borrowed wrappers come from lookups, queries
// and callbacks and never own anything.
//
// # Stepping
//
// BeginStep launches one asynchronous simulation step and Join waits for
// it. While a step is in flight every gated operation fails fast with
// SimulationBusy; Destroy is the exception and queues the teardown until
// the step completes. Step is the synchronous convenience. Only one step
// runs at a time; a second BeginStep fails with AlreadyStepping, and a
// BeginStep from inside a callback handler fails with ReentrantStep.
//
// # Thread Safety
//
// World and all wrappers are safe for concurrent use. Callback handlers
// run on the stepping worker goroutine; views passed to them are valid
// only for the duration of the call.
package newton

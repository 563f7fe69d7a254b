// Package scene loads and saves declarative world descriptions.
//
// A scene is a YAML document naming the bodies to spawn, their shapes and
// initial state, plus an optional gravity vector:
//
//	gravity: [0, -9.8, 0]
//	bodies:
//	  - name: floor
//	    kind: kinematic
//	    shape: {type: box, dims: [100, 1, 100]}
//	    position: [0, -0.5, 0]
//	  - name: crate
//	    shape: {type: box, dims: [1, 1, 1]}
//	    mass: 10
//	    position: [0, 5, 0]
//	    velocity: [0, 0, 0]
//	    material: wood
//
// Spawn instantiates a scene into a World; Snapshot reads the live bodies
// of a World back into a Scene so it can be saved and respawned later.
// Snapshot order follows World.EachBody, so a world built with the
// "ordered" registry backend round-trips its body list deterministically.
package scene

package newton

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/germangb/newton-go/errors"
	"github.com/germangb/newton-go/native"
)

// RayHit is one intersection reported during a ray cast. Param is the
// normalized distance along the ray in [0,1]. The views are gate-exempt
// inside a RayFilter and plain borrowed views when returned from
// RayCastClosest; Collision is nil when the hit shape is not registered
// (compound sub-shapes).
type RayHit struct {
	Body      *Body
	Collision *Collision
	Position  mgl32.Vec3
	Normal    mgl32.Vec3
	Param     float32
}

// RayFilter is invoked for every intersection along a cast ray, in
// broadphase order rather than sorted by distance. The return value
// clips the ray: return hit.Param to narrow the search to this hit, 1 to
// keep scanning the full length, 0 to terminate the cast.
type RayFilter func(hit RayHit) float32

// RayPrefilter runs before the narrow-phase test. Returning false skips
// the body entirely.
type RayPrefilter func(body *Body, col *Collision) bool

// RayCast streams intersections along the p0→p1 segment through filter.
// The filter runs on the calling goroutine while the query holds the
// world gate; starting a step from it fails with ReentrantStep.
func (w *World) RayCast(p0, p1 mgl32.Vec3, filter RayFilter, prefilter RayPrefilter) error {
	const op = "world.ray_cast"
	if filter == nil {
		return errors.New(errors.PhaseQuery, errors.KindInvalidInput).
			Op(op).Detail("nil filter").Build()
	}
	release, err := w.acquireRead(op, false)
	if err != nil {
		return err
	}
	defer release()

	nf := func(b native.Body, c native.Collision, pos, normal [3]float32, param float32) float32 {
		w.bridge.enter()
		defer w.bridge.leave()
		if _, ok := w.bodies.Get(b); !ok {
			w.bridge.fault(op, uintptr(b))
			return 1
		}
		hit := RayHit{
			Body:     w.bodyView(b),
			Position: mgl32.Vec3(pos),
			Normal:   mgl32.Vec3(normal),
			Param:    param,
		}
		if _, ok := w.collisions.Get(c); ok {
			hit.Collision = w.collisionView(c)
		}
		return filter(hit)
	}

	var np native.RayPrefilter
	if prefilter != nil {
		np = func(b native.Body, c native.Collision) bool {
			w.bridge.enter()
			defer w.bridge.leave()
			if _, ok := w.bodies.Get(b); !ok {
				w.bridge.fault(op, uintptr(b))
				return true
			}
			var cv *Collision
			if _, ok := w.collisions.Get(c); ok {
				cv = w.collisionView(c)
			}
			return prefilter(w.bodyView(b), cv)
		}
	}

	w.eng.RayCast(w.raw, [3]float32(p0), [3]float32(p1), nf, np)
	return nil
}

// RayCastClosest casts p0→p1 and returns the nearest hit. The second
// return is false when the ray hits nothing.
func (w *World) RayCastClosest(p0, p1 mgl32.Vec3) (RayHit, bool, error) {
	const op = "world.ray_cast_closest"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return RayHit{}, false, err
	}
	defer release()

	var (
		found    bool
		bestBody native.Body
		bestCol  native.Collision
		best     RayHit
	)
	w.eng.RayCast(w.raw, [3]float32(p0), [3]float32(p1),
		func(b native.Body, c native.Collision, pos, normal [3]float32, param float32) float32 {
			if _, ok := w.bodies.Get(b); !ok {
				w.bridge.fault(op, uintptr(b))
				return 1
			}
			if !found || param < best.Param {
				found = true
				bestBody, bestCol = b, c
				best.Position = mgl32.Vec3(pos)
				best.Normal = mgl32.Vec3(normal)
				best.Param = param
			}
			return param
		}, nil)

	if !found {
		return RayHit{}, false, nil
	}
	best.Body = w.borrowedBody(bestBody)
	if _, ok := w.collisions.Get(bestCol); ok {
		best.Collision = w.borrowedCollision(bestCol)
	}
	return best, true, nil
}

// EachBodyInAABB visits every body whose bounding volume intersects the
// min/max box, until fn returns false. Views are gate-exempt for the
// duration of the call.
func (w *World) EachBodyInAABB(min, max mgl32.Vec3, fn func(b *Body) bool) error {
	const op = "world.each_body_in_aabb"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return err
	}
	defer release()

	w.eng.BodiesInAABB(w.raw, [3]float32(min), [3]float32(max), func(b native.Body) bool {
		w.bridge.enter()
		defer w.bridge.leave()
		if _, ok := w.bodies.Get(b); !ok {
			w.bridge.fault(op, uintptr(b))
			return true
		}
		return fn(w.bodyView(b))
	})
	return nil
}

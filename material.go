package newton

import (
	"github.com/germangb/newton-go/errors"
)

// MaterialGroup identifies a contact material class. Bodies carry one
// group; contact behavior is configured per group pair.
type MaterialGroup int32

// MaterialParams are the contact defaults applied to a material pair.
type MaterialParams struct {
	StaticFriction  float32
	KineticFriction float32
	Elasticity      float32
	Thickness       float32
	Collidable      bool
}

// DefaultMaterialGroup returns the group every body starts in.
func (w *World) DefaultMaterialGroup() MaterialGroup {
	return w.defaultGroup
}

// CreateMaterialGroup allocates a new material group. Groups live until
// the world closes; there is no per-group destroy.
func (w *World) CreateMaterialGroup() (MaterialGroup, error) {
	const op = "world.create_material_group"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return 0, err
	}
	defer release()
	g := MaterialGroup(w.eng.MaterialCreateGroup(w.raw))
	if g < 0 {
		return 0, errors.AllocationFailed(op, "material group")
	}
	return g, nil
}

// SetMaterialPair applies contact defaults to the g0/g1 pair and routes
// the pair's contacts through the world's filter and listener slots.
func (w *World) SetMaterialPair(g0, g1 MaterialGroup, p MaterialParams) error {
	const op = "world.set_material_pair"
	release, err := w.acquireRead(op, false)
	if err != nil {
		return err
	}
	defer release()

	if p.StaticFriction < 0 || p.KineticFriction < 0 {
		return errors.InvalidInput(op, "friction must be >= 0")
	}
	if p.KineticFriction > p.StaticFriction {
		return errors.InvalidInput(op, "kinetic friction must not exceed static friction")
	}

	w.eng.MaterialSetDefaultFriction(w.raw, int32(g0), int32(g1), p.StaticFriction, p.KineticFriction)
	w.eng.MaterialSetDefaultElasticity(w.raw, int32(g0), int32(g1), p.Elasticity)
	w.eng.MaterialSetSurfaceThickness(w.raw, int32(g0), int32(g1), p.Thickness)
	collidable := int32(0)
	if p.Collidable {
		collidable = 1
	}
	w.eng.MaterialSetDefaultCollidable(w.raw, int32(g0), int32(g1), collidable)

	w.bridge.install(g0, g1)
	return nil
}

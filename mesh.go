package newton

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/germangb/newton-go/errors"
	"github.com/germangb/newton-go/native"
)

type meshRecord struct{}

// Mesh is a view over a triangle mesh, usually tessellated from a
// collision shape for debug rendering or export.
type Mesh struct {
	world  *World
	handle Handle
	owned  bool
	exempt bool
}

func (m *Mesh) raw() native.Mesh { return native.Mesh(m.handle.raw) }

func (m *Mesh) resolve(op string) (func(), error) {
	release, err := m.world.acquireRead(op, m.exempt)
	if err != nil {
		return nil, err
	}
	if _, ok := m.world.meshes.Get(m.raw()); !ok {
		release()
		return nil, errors.HandleInvalid(errors.PhaseAccess, op, m.handle.String())
	}
	return release, nil
}

// Handle returns the mesh's stable identity.
func (m *Mesh) Handle() Handle { return m.handle }

// Owned reports whether Release will destroy the native mesh.
func (m *Mesh) Owned() bool { return m.owned }

// Release destroys the mesh for owning views and is a no-op for
// borrowed ones. Safe to call more than once.
func (m *Mesh) Release() error {
	if !m.owned {
		return nil
	}
	return m.world.Destroy(m.handle)
}

// VertexCount returns the number of vertices in the mesh.
func (m *Mesh) VertexCount() (int, error) {
	release, err := m.resolve("mesh.vertex_count")
	if err != nil {
		return 0, err
	}
	defer release()
	return int(m.world.eng.MeshVertexCount(m.raw())), nil
}

// Vertices fills dst with x,y,z triples and reports how many float32
// values were written. Pass a slice of 3*VertexCount to read everything.
func (m *Mesh) Vertices(dst []float32) (int, error) {
	release, err := m.resolve("mesh.vertices")
	if err != nil {
		return 0, err
	}
	defer release()
	return int(m.world.eng.MeshVertices(m.raw(), dst)), nil
}

// ApplyTransform bakes a transform into every vertex.
func (m *Mesh) ApplyTransform(matrix mgl32.Mat4) error {
	release, err := m.resolve("mesh.apply_transform")
	if err != nil {
		return err
	}
	defer release()
	a := [16]float32(matrix)
	m.world.eng.MeshApplyTransform(m.raw(), &a)
	return nil
}

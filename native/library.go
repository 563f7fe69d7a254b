//go:build unix

package native

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/germangb/newton-go/errors"
)

// Library binds the Newton Dynamics shared object through purego. One
// Library may serve any number of worlds; the zero value is unusable,
// construct with Open.
//
// Callback state is keyed by raw handle, so handlers survive for exactly
// as long as the layers above keep the handle alive. Library never frees
// native objects on its own.
type Library struct {
	handle uintptr

	mu      sync.RWMutex
	forceCB map[Body]ForceTorque
	matCB   map[matKey]matPair

	forceTramp     uintptr
	overlapTramp   uintptr
	processTramp   uintptr
	rayFilterTramp uintptr
	rayPreTramp    uintptr
	bodyIterTramp  uintptr

	newtonCreate               func() World
	newtonDestroy              func(World)
	newtonUpdate               func(World, float32)
	newtonInvalidateCache      func(World)
	newtonSetSolverModel       func(World, int32)
	newtonSelectBroadphase     func(World, int32)
	newtonSetThreadsCount      func(World, int32)
	newtonGetThreadsCount      func(World) int32
	newtonWorldGetBodyCount    func(World) int32
	newtonWorldGetConstraints  func(World) int32
	newtonWorldRayCast         func(World, *float32, *float32, uintptr, uintptr, uintptr, int32)
	newtonWorldForEachBodyDo   func(World, *float32, *float32, uintptr, uintptr)
	newtonCreateDynamicBody    func(World, Collision, *float32) Body
	newtonCreateKinematicBody  func(World, Collision, *float32) Body
	newtonDestroyBody          func(Body)
	newtonBodyGetWorld         func(Body) World
	newtonBodyGetMatrix        func(Body, *float32)
	newtonBodySetMatrix        func(Body, *float32)
	newtonBodyGetPosition      func(Body, *float32)
	newtonBodyGetRotation      func(Body, *float32)
	newtonBodyGetVelocity      func(Body, *float32)
	newtonBodySetVelocity      func(Body, *float32)
	newtonBodyGetOmega         func(Body, *float32)
	newtonBodySetOmega         func(Body, *float32)
	newtonBodySetForce         func(Body, *float32)
	newtonBodyAddForce         func(Body, *float32)
	newtonBodySetTorque        func(Body, *float32)
	newtonBodyAddImpulse       func(Body, *float32, *float32, float32)
	newtonBodySetMass          func(Body, float32, Collision)
	newtonBodyGetAABB          func(Body, *float32, *float32)
	newtonBodyGetSleepState    func(Body) int32
	newtonBodySetSleepState    func(Body, int32)
	newtonBodyGetCollision     func(Body) Collision
	newtonBodyGetMaterial      func(Body) int32
	newtonBodySetMaterial      func(Body, int32)
	newtonBodySetLinearDamp    func(Body, float32)
	newtonBodySetAngularDamp   func(Body, *float32)
	newtonBodyGetUserData      func(Body) uintptr
	newtonBodySetUserData      func(Body, uintptr)
	newtonBodySetForceCallback func(Body, uintptr)
	newtonCreateBox            func(World, float32, float32, float32, int32, *float32) Collision
	newtonCreateSphere         func(World, float32, int32, *float32) Collision
	newtonCreateCapsule        func(World, float32, float32, float32, int32, *float32) Collision
	newtonCreateCylinder       func(World, float32, float32, float32, int32, *float32) Collision
	newtonCreateCone           func(World, float32, float32, int32, *float32) Collision
	newtonCreateNull           func(World) Collision
	newtonDestroyCollision     func(Collision)
	newtonCollisionGetScale    func(Collision, *float32, *float32, *float32)
	newtonCollisionSetScale    func(Collision, float32, float32, float32)
	newtonCollisionGetMatrix   func(Collision, *float32)
	newtonCollisionSetMatrix   func(Collision, *float32)
	newtonCollisionGetUserID   func(Collision) uint32
	newtonCollisionSetUserID   func(Collision, uint32)
	newtonCollisionCalcAABB    func(Collision, *float32, *float32, *float32)
	newtonConstraintBall       func(World, *float32, Body, Body) Joint
	newtonConstraintSlider     func(World, *float32, *float32, Body, Body) Joint
	newtonConstraintCorkscrew  func(World, *float32, *float32, Body, Body) Joint
	newtonConstraintUniversal  func(World, *float32, *float32, *float32, Body, Body) Joint
	newtonConstraintUpVector   func(World, *float32, Body) Joint
	newtonDestroyJoint         func(World, Joint)
	newtonJointGetBody0        func(Joint) Body
	newtonJointGetBody1        func(Joint) Body
	newtonJointGetCollState    func(Joint) int32
	newtonJointSetCollState    func(Joint, int32)
	newtonJointGetStiffness    func(Joint) float32
	newtonJointSetStiffness    func(Joint, float32)
	newtonMeshCreate           func(World) Mesh
	newtonMeshFromCollision    func(Collision) Mesh
	newtonMeshDestroy          func(Mesh)
	newtonMeshVertexCount      func(Mesh) int32
	newtonMeshVertexStride     func(Mesh) int32
	newtonMeshVertexArray      func(Mesh) uintptr
	newtonMeshApplyTransform   func(Mesh, *float32)
	newtonMaterialCreateGroup  func(World) int32
	newtonMaterialDefaultGroup func(World) int32
	newtonMaterialDestroyAll   func(World)
	newtonMaterialSetFriction  func(World, int32, int32, float32, float32)
	newtonMaterialSetElastic   func(World, int32, int32, float32)
	newtonMaterialSetThickness func(World, int32, int32, float32)
	newtonMaterialSetCollide   func(World, int32, int32, int32)
	newtonMaterialSetCallback  func(World, int32, int32, uintptr, uintptr)
	newtonContactFirst         func(Joint) uintptr
	newtonContactNext          func(Joint, uintptr) uintptr
	newtonContactMaterial      func(uintptr) uintptr
	newtonContactPosAndNormal  func(uintptr, Body, *float32, *float32)
	newtonContactNormalSpeed   func(uintptr) float32
}

var _ Engine = (*Library)(nil)

type matKey struct {
	w  World
	g0 int32
	g1 int32
}

type matPair struct {
	overlap AABBOverlap
	process ContactProcess
}

func pairKey(w World, g0, g1 int32) matKey {
	if g1 < g0 {
		g0, g1 = g1, g0
	}
	return matKey{w: w, g0: g0, g1: g1}
}

// Open loads the Newton shared library at path and resolves every export
// the Engine surface needs. A missing or incompatible library fails here,
// not at first use.
func Open(path string) (lib *Library, err error) {
	handle, dlerr := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if dlerr != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Op("native.open").
			Cause(dlerr).
			Detail(path).
			Build()
	}

	l := &Library{
		handle:  handle,
		forceCB: make(map[Body]ForceTorque),
		matCB:   make(map[matKey]matPair),
	}

	// RegisterLibFunc panics on a missing export; surface that as a load
	// error instead of crashing the caller.
	defer func() {
		if r := recover(); r != nil {
			purego.Dlclose(handle)
			lib, err = nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
				Op("native.open").
				Detail(fmt.Sprintf("%s: %v", path, r)).
				Build()
		}
	}()

	l.bind()
	l.installTrampolines()
	return l, nil
}

// Close unloads the shared library. All worlds created through this
// Library must be destroyed first.
func (l *Library) Close() error {
	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	if err != nil {
		return errors.Wrap(errors.PhaseTeardown, errors.KindUnsupported, err, "dlclose")
	}
	return nil
}

func (l *Library) bind() {
	reg := func(fptr any, name string) { purego.RegisterLibFunc(fptr, l.handle, name) }

	reg(&l.newtonCreate, "NewtonCreate")
	reg(&l.newtonDestroy, "NewtonDestroy")
	reg(&l.newtonUpdate, "NewtonUpdate")
	reg(&l.newtonInvalidateCache, "NewtonInvalidateCache")
	reg(&l.newtonSetSolverModel, "NewtonSetSolverModel")
	reg(&l.newtonSelectBroadphase, "NewtonSelectBroadphaseAlgorithm")
	reg(&l.newtonSetThreadsCount, "NewtonSetThreadsCount")
	reg(&l.newtonGetThreadsCount, "NewtonGetThreadsCount")
	reg(&l.newtonWorldGetBodyCount, "NewtonWorldGetBodyCount")
	reg(&l.newtonWorldGetConstraints, "NewtonWorldGetConstraintCount")
	reg(&l.newtonWorldRayCast, "NewtonWorldRayCast")
	reg(&l.newtonWorldForEachBodyDo, "NewtonWorldForEachBodyInAABBDo")

	reg(&l.newtonCreateDynamicBody, "NewtonCreateDynamicBody")
	reg(&l.newtonCreateKinematicBody, "NewtonCreateKinematicBody")
	reg(&l.newtonDestroyBody, "NewtonDestroyBody")
	reg(&l.newtonBodyGetWorld, "NewtonBodyGetWorld")
	reg(&l.newtonBodyGetMatrix, "NewtonBodyGetMatrix")
	reg(&l.newtonBodySetMatrix, "NewtonBodySetMatrix")
	reg(&l.newtonBodyGetPosition, "NewtonBodyGetPosition")
	reg(&l.newtonBodyGetRotation, "NewtonBodyGetRotation")
	reg(&l.newtonBodyGetVelocity, "NewtonBodyGetVelocity")
	reg(&l.newtonBodySetVelocity, "NewtonBodySetVelocity")
	reg(&l.newtonBodyGetOmega, "NewtonBodyGetOmega")
	reg(&l.newtonBodySetOmega, "NewtonBodySetOmega")
	reg(&l.newtonBodySetForce, "NewtonBodySetForce")
	reg(&l.newtonBodyAddForce, "NewtonBodyAddForce")
	reg(&l.newtonBodySetTorque, "NewtonBodySetTorque")
	reg(&l.newtonBodyAddImpulse, "NewtonBodyAddImpulse")
	reg(&l.newtonBodySetMass, "NewtonBodySetMassProperties")
	reg(&l.newtonBodyGetAABB, "NewtonBodyGetAABB")
	reg(&l.newtonBodyGetSleepState, "NewtonBodyGetSleepState")
	reg(&l.newtonBodySetSleepState, "NewtonBodySetSleepState")
	reg(&l.newtonBodyGetCollision, "NewtonBodyGetCollision")
	reg(&l.newtonBodyGetMaterial, "NewtonBodyGetMaterialGroupID")
	reg(&l.newtonBodySetMaterial, "NewtonBodySetMaterialGroupID")
	reg(&l.newtonBodySetLinearDamp, "NewtonBodySetLinearDamping")
	reg(&l.newtonBodySetAngularDamp, "NewtonBodySetAngularDamping")
	reg(&l.newtonBodyGetUserData, "NewtonBodyGetUserData")
	reg(&l.newtonBodySetUserData, "NewtonBodySetUserData")
	reg(&l.newtonBodySetForceCallback, "NewtonBodySetForceAndTorqueCallback")

	reg(&l.newtonCreateBox, "NewtonCreateBox")
	reg(&l.newtonCreateSphere, "NewtonCreateSphere")
	reg(&l.newtonCreateCapsule, "NewtonCreateCapsule")
	reg(&l.newtonCreateCylinder, "NewtonCreateCylinder")
	reg(&l.newtonCreateCone, "NewtonCreateCone")
	reg(&l.newtonCreateNull, "NewtonCreateNull")
	reg(&l.newtonDestroyCollision, "NewtonDestroyCollision")
	reg(&l.newtonCollisionGetScale, "NewtonCollisionGetScale")
	reg(&l.newtonCollisionSetScale, "NewtonCollisionSetScale")
	reg(&l.newtonCollisionGetMatrix, "NewtonCollisionGetMatrix")
	reg(&l.newtonCollisionSetMatrix, "NewtonCollisionSetMatrix")
	reg(&l.newtonCollisionGetUserID, "NewtonCollisionGetUserID")
	reg(&l.newtonCollisionSetUserID, "NewtonCollisionSetUserID")
	reg(&l.newtonCollisionCalcAABB, "NewtonCollisionCalculateAABB")

	reg(&l.newtonConstraintBall, "NewtonConstraintCreateBall")
	reg(&l.newtonConstraintSlider, "NewtonConstraintCreateSlider")
	reg(&l.newtonConstraintCorkscrew, "NewtonConstraintCreateCorkscrew")
	reg(&l.newtonConstraintUniversal, "NewtonConstraintCreateUniversal")
	reg(&l.newtonConstraintUpVector, "NewtonConstraintCreateUpVector")
	reg(&l.newtonDestroyJoint, "NewtonDestroyJoint")
	reg(&l.newtonJointGetBody0, "NewtonJointGetBody0")
	reg(&l.newtonJointGetBody1, "NewtonJointGetBody1")
	reg(&l.newtonJointGetCollState, "NewtonJointGetCollisionState")
	reg(&l.newtonJointSetCollState, "NewtonJointSetCollisionState")
	reg(&l.newtonJointGetStiffness, "NewtonJointGetStiffness")
	reg(&l.newtonJointSetStiffness, "NewtonJointSetStiffness")

	reg(&l.newtonMeshCreate, "NewtonMeshCreate")
	reg(&l.newtonMeshFromCollision, "NewtonMeshCreateFromCollision")
	reg(&l.newtonMeshDestroy, "NewtonMeshDestroy")
	reg(&l.newtonMeshVertexCount, "NewtonMeshGetVertexCount")
	reg(&l.newtonMeshVertexStride, "NewtonMeshGetVertexStrideInByte")
	reg(&l.newtonMeshVertexArray, "NewtonMeshGetVertexArray")
	reg(&l.newtonMeshApplyTransform, "NewtonMeshApplyTransform")

	reg(&l.newtonMaterialCreateGroup, "NewtonMaterialCreateGroupID")
	reg(&l.newtonMaterialDefaultGroup, "NewtonMaterialGetDefaultGroupID")
	reg(&l.newtonMaterialDestroyAll, "NewtonMaterialDestroyAllGroupID")
	reg(&l.newtonMaterialSetFriction, "NewtonMaterialSetDefaultFriction")
	reg(&l.newtonMaterialSetElastic, "NewtonMaterialSetDefaultElasticity")
	reg(&l.newtonMaterialSetThickness, "NewtonMaterialSetSurfaceThickness")
	reg(&l.newtonMaterialSetCollide, "NewtonMaterialSetDefaultCollidable")
	reg(&l.newtonMaterialSetCallback, "NewtonMaterialSetCollisionCallback")
	reg(&l.newtonContactFirst, "NewtonContactJointGetFirstContact")
	reg(&l.newtonContactNext, "NewtonContactJointGetNextContact")
	reg(&l.newtonContactMaterial, "NewtonContactGetMaterial")
	reg(&l.newtonContactPosAndNormal, "NewtonMaterialGetContactPositionAndNormal")
	reg(&l.newtonContactNormalSpeed, "NewtonMaterialGetContactNormalSpeed")
}

// --- WorldAPI ---

func (l *Library) WorldCreate() World { return l.newtonCreate() }
func (l *Library) WorldUpdate(w World, ts float32) error { l.newtonUpdate(w, ts); return nil }
func (l *Library) WorldSetThreads(w World, n int32) { l.newtonSetThreadsCount(w, n) }
func (l *Library) WorldThreads(w World) int32 { return l.newtonGetThreadsCount(w) }
func (l *Library) WorldSetSolverModel(w World, m int32) { l.newtonSetSolverModel(w, m) }
func (l *Library) WorldSetBroadphase(w World, a int32) { l.newtonSelectBroadphase(w, a) }
func (l *Library) WorldInvalidateCache(w World) { l.newtonInvalidateCache(w) }
func (l *Library) WorldBodyCount(w World) int32 { return l.newtonWorldGetBodyCount(w) }
func (l *Library) WorldConstraintCount(w World) int32 { return l.newtonWorldGetConstraints(w) }

func (l *Library) WorldDestroy(w World) error {
	l.newtonDestroy(w)
	l.mu.Lock()
	for k := range l.matCB {
		if k.w == w {
			delete(l.matCB, k)
		}
	}
	l.mu.Unlock()
	return nil
}

// --- BodyAPI ---

func (l *Library) BodyCreateDynamic(w World, c Collision, m *[16]float32) Body {
	return l.newtonCreateDynamicBody(w, c, matPtr(m))
}

func (l *Library) BodyCreateKinematic(w World, c Collision, m *[16]float32) Body {
	return l.newtonCreateKinematicBody(w, c, matPtr(m))
}

func (l *Library) BodyDestroy(b Body) error {
	l.mu.Lock()
	delete(l.forceCB, b)
	l.mu.Unlock()
	l.newtonDestroyBody(b)
	return nil
}

func (l *Library) BodyMatrix(b Body) (m [16]float32) {
	l.newtonBodyGetMatrix(b, &m[0])
	return m
}

func (l *Library) BodySetMatrix(b Body, m *[16]float32) { l.newtonBodySetMatrix(b, &m[0]) }

func (l *Library) BodyPosition(b Body) (p [3]float32) {
	l.newtonBodyGetPosition(b, &p[0])
	return p
}

func (l *Library) BodyRotation(b Body) (q [4]float32) {
	l.newtonBodyGetRotation(b, &q[0])
	return q
}

func (l *Library) BodyVelocity(b Body) (v [3]float32) {
	l.newtonBodyGetVelocity(b, &v[0])
	return v
}

func (l *Library) BodySetVelocity(b Body, v *[3]float32) { l.newtonBodySetVelocity(b, &v[0]) }

func (l *Library) BodyOmega(b Body) (v [3]float32) {
	l.newtonBodyGetOmega(b, &v[0])
	return v
}

func (l *Library) BodySetOmega(b Body, v *[3]float32) { l.newtonBodySetOmega(b, &v[0]) }
func (l *Library) BodySetForce(b Body, f *[3]float32) { l.newtonBodySetForce(b, &f[0]) }
func (l *Library) BodyAddForce(b Body, f *[3]float32) { l.newtonBodyAddForce(b, &f[0]) }
func (l *Library) BodySetTorque(b Body, t *[3]float32) { l.newtonBodySetTorque(b, &t[0]) }

func (l *Library) BodyAddImpulse(b Body, dv, point *[3]float32, ts float32) {
	l.newtonBodyAddImpulse(b, &dv[0], &point[0], ts)
}

func (l *Library) BodySetMassProperties(b Body, mass float32, c Collision) {
	l.newtonBodySetMass(b, mass, c)
}

func (l *Library) BodyAABB(b Body) (min, max [3]float32) {
	l.newtonBodyGetAABB(b, &min[0], &max[0])
	return min, max
}

func (l *Library) BodySleepState(b Body) int32 { return l.newtonBodyGetSleepState(b) }
func (l *Library) BodySetSleepState(b Body, s int32) { l.newtonBodySetSleepState(b, s) }
func (l *Library) BodyCollision(b Body) Collision { return l.newtonBodyGetCollision(b) }
func (l *Library) BodyMaterialGroup(b Body) int32 { return l.newtonBodyGetMaterial(b) }
func (l *Library) BodySetMaterialGroup(b Body, g int32) { l.newtonBodySetMaterial(b, g) }
func (l *Library) BodySetLinearDamping(b Body, d float32) {
	l.newtonBodySetLinearDamp(b, d)
}
func (l *Library) BodySetAngularDamping(b Body, d *[3]float32) {
	l.newtonBodySetAngularDamp(b, &d[0])
}
func (l *Library) BodyUserData(b Body) uintptr { return l.newtonBodyGetUserData(b) }
func (l *Library) BodySetUserData(b Body, v uintptr) { l.newtonBodySetUserData(b, v) }

// --- CollisionAPI ---

func (l *Library) CollisionCreateBox(w World, dx, dy, dz float32, off *[16]float32) Collision {
	return l.newtonCreateBox(w, dx, dy, dz, 0, matPtr(off))
}

func (l *Library) CollisionCreateSphere(w World, r float32, off *[16]float32) Collision {
	return l.newtonCreateSphere(w, r, 0, matPtr(off))
}

func (l *Library) CollisionCreateCapsule(w World, r0, r1, h float32, off *[16]float32) Collision {
	return l.newtonCreateCapsule(w, r0, r1, h, 0, matPtr(off))
}

func (l *Library) CollisionCreateCylinder(w World, r0, r1, h float32, off *[16]float32) Collision {
	return l.newtonCreateCylinder(w, r0, r1, h, 0, matPtr(off))
}

func (l *Library) CollisionCreateCone(w World, r, h float32, off *[16]float32) Collision {
	return l.newtonCreateCone(w, r, h, 0, matPtr(off))
}

func (l *Library) CollisionCreateNull(w World) Collision { return l.newtonCreateNull(w) }

func (l *Library) CollisionDestroy(c Collision) error {
	l.newtonDestroyCollision(c)
	return nil
}

func (l *Library) CollisionScale(c Collision) (s [3]float32) {
	l.newtonCollisionGetScale(c, &s[0], &s[1], &s[2])
	return s
}

func (l *Library) CollisionSetScale(c Collision, x, y, z float32) {
	l.newtonCollisionSetScale(c, x, y, z)
}

func (l *Library) CollisionMatrix(c Collision) (m [16]float32) {
	l.newtonCollisionGetMatrix(c, &m[0])
	return m
}

func (l *Library) CollisionSetMatrix(c Collision, m *[16]float32) {
	l.newtonCollisionSetMatrix(c, &m[0])
}

func (l *Library) CollisionUserID(c Collision) uint32 { return l.newtonCollisionGetUserID(c) }
func (l *Library) CollisionSetUserID(c Collision, id uint32) {
	l.newtonCollisionSetUserID(c, id)
}

func (l *Library) CollisionAABB(c Collision, m *[16]float32) (min, max [3]float32) {
	l.newtonCollisionCalcAABB(c, &m[0], &min[0], &max[0])
	return min, max
}

// --- JointAPI ---

func (l *Library) JointCreateBall(w World, pivot *[3]float32, child, parent Body) Joint {
	return l.newtonConstraintBall(w, &pivot[0], child, parent)
}

func (l *Library) JointCreateSlider(w World, pivot, dir *[3]float32, child, parent Body) Joint {
	return l.newtonConstraintSlider(w, &pivot[0], &dir[0], child, parent)
}

func (l *Library) JointCreateCorkscrew(w World, pivot, dir *[3]float32, child, parent Body) Joint {
	return l.newtonConstraintCorkscrew(w, &pivot[0], &dir[0], child, parent)
}

func (l *Library) JointCreateUniversal(w World, pivot, dir0, dir1 *[3]float32, child, parent Body) Joint {
	return l.newtonConstraintUniversal(w, &pivot[0], &dir0[0], &dir1[0], child, parent)
}

func (l *Library) JointCreateUpVector(w World, dir *[3]float32, body Body) Joint {
	return l.newtonConstraintUpVector(w, &dir[0], body)
}

func (l *Library) JointDestroy(w World, j Joint) error {
	l.newtonDestroyJoint(w, j)
	return nil
}

func (l *Library) JointBody0(j Joint) Body { return l.newtonJointGetBody0(j) }
func (l *Library) JointBody1(j Joint) Body { return l.newtonJointGetBody1(j) }
func (l *Library) JointCollisionState(j Joint) int32 { return l.newtonJointGetCollState(j) }
func (l *Library) JointSetCollisionState(j Joint, s int32) {
	l.newtonJointSetCollState(j, s)
}
func (l *Library) JointStiffness(j Joint) float32 { return l.newtonJointGetStiffness(j) }
func (l *Library) JointSetStiffness(j Joint, s float32) {
	l.newtonJointSetStiffness(j, s)
}

// --- MeshAPI ---

func (l *Library) MeshCreate(w World) Mesh { return l.newtonMeshCreate(w) }
func (l *Library) MeshCreateFromCollision(c Collision) Mesh {
	return l.newtonMeshFromCollision(c)
}

func (l *Library) MeshDestroy(m Mesh) error {
	l.newtonMeshDestroy(m)
	return nil
}

func (l *Library) MeshVertexCount(m Mesh) int32 { return l.newtonMeshVertexCount(m) }

func (l *Library) MeshVertices(m Mesh, dst []float32) int32 {
	count := int(l.newtonMeshVertexCount(m))
	if count == 0 || len(dst) < 3 {
		return 0
	}
	// vertex array is float64, strided
	stride := int(l.newtonMeshVertexStride(m)) / 8
	base := l.newtonMeshVertexArray(m)
	if base == 0 || stride < 3 {
		return 0
	}
	src := unsafe.Slice((*float64)(unsafe.Pointer(base)), count*stride)

	n := 0
	for i := 0; i < count && n+3 <= len(dst); i++ {
		dst[n+0] = float32(src[i*stride+0])
		dst[n+1] = float32(src[i*stride+1])
		dst[n+2] = float32(src[i*stride+2])
		n += 3
	}
	return int32(n)
}

func (l *Library) MeshApplyTransform(m Mesh, matrix *[16]float32) {
	l.newtonMeshApplyTransform(m, &matrix[0])
}

// --- MaterialAPI ---

func (l *Library) MaterialCreateGroup(w World) int32 { return l.newtonMaterialCreateGroup(w) }
func (l *Library) MaterialDefaultGroup(w World) int32 { return l.newtonMaterialDefaultGroup(w) }
func (l *Library) MaterialDestroyAllGroups(w World) { l.newtonMaterialDestroyAll(w) }

func (l *Library) MaterialSetDefaultFriction(w World, g0, g1 int32, static, kinetic float32) {
	l.newtonMaterialSetFriction(w, g0, g1, static, kinetic)
}

func (l *Library) MaterialSetDefaultElasticity(w World, g0, g1 int32, e float32) {
	l.newtonMaterialSetElastic(w, g0, g1, e)
}

func (l *Library) MaterialSetSurfaceThickness(w World, g0, g1 int32, t float32) {
	l.newtonMaterialSetThickness(w, g0, g1, t)
}

func (l *Library) MaterialSetDefaultCollidable(w World, g0, g1 int32, state int32) {
	l.newtonMaterialSetCollide(w, g0, g1, state)
}

// --- CallbackAPI ---

func (l *Library) BodySetForceAndTorque(b Body, fn ForceTorque) {
	l.mu.Lock()
	if fn == nil {
		delete(l.forceCB, b)
	} else {
		l.forceCB[b] = fn
	}
	l.mu.Unlock()
	if fn == nil {
		l.newtonBodySetForceCallback(b, 0)
		return
	}
	l.newtonBodySetForceCallback(b, l.forceTramp)
}

func (l *Library) MaterialSetCallbacks(w World, g0, g1 int32, overlap AABBOverlap, process ContactProcess) {
	k := pairKey(w, g0, g1)
	l.mu.Lock()
	if overlap == nil && process == nil {
		delete(l.matCB, k)
	} else {
		l.matCB[k] = matPair{overlap: overlap, process: process}
	}
	l.mu.Unlock()

	var ov, pr uintptr
	if overlap != nil {
		ov = l.overlapTramp
	}
	if process != nil {
		pr = l.processTramp
	}
	l.newtonMaterialSetCallback(w, g0, g1, ov, pr)
}

// --- QueryAPI ---

// rayCall and iterCall hold per-invocation callbacks; the id travels
// through the native userdata parameter (pattern: handle registries used
// with C callback opaque pointers).
type rayCall struct {
	filter    RayFilter
	prefilter RayPrefilter
}

type iterCall struct {
	fn BodyIter
}

var (
	callMu   sync.RWMutex
	calls    = make(map[uintptr]any)
	callNext uintptr = 1
)

func registerCall(v any) uintptr {
	callMu.Lock()
	defer callMu.Unlock()
	id := callNext
	callNext++
	calls[id] = v
	return id
}

func lookupCall(id uintptr) any {
	callMu.RLock()
	defer callMu.RUnlock()
	return calls[id]
}

func unregisterCall(id uintptr) {
	callMu.Lock()
	defer callMu.Unlock()
	delete(calls, id)
}

func (l *Library) RayCast(w World, p0, p1 [3]float32, filter RayFilter, prefilter RayPrefilter) {
	if filter == nil {
		return
	}
	id := registerCall(&rayCall{filter: filter, prefilter: prefilter})
	defer unregisterCall(id)

	var pre uintptr
	if prefilter != nil {
		pre = l.rayPreTramp
	}
	l.newtonWorldRayCast(w, &p0[0], &p1[0], l.rayFilterTramp, id, pre, 0)
}

func (l *Library) BodiesInAABB(w World, min, max [3]float32, fn BodyIter) {
	if fn == nil {
		return
	}
	id := registerCall(&iterCall{fn: fn})
	defer unregisterCall(id)
	l.newtonWorldForEachBodyDo(w, &min[0], &max[0], l.bodyIterTramp, id)
}

// --- trampolines ---

func (l *Library) installTrampolines() {
	l.forceTramp = purego.NewCallback(func(body Body, timestep float32, threadIndex int32) {
		l.mu.RLock()
		fn := l.forceCB[body]
		l.mu.RUnlock()
		if fn != nil {
			fn(body, timestep, threadIndex)
		}
	})

	l.overlapTramp = purego.NewCallback(func(contact Joint, timestep float32, threadIndex int32) uintptr {
		b0 := l.newtonJointGetBody0(contact)
		b1 := l.newtonJointGetBody1(contact)
		pair, ok := l.lookupPair(b0, b1)
		if !ok || pair.overlap == nil {
			return 1
		}
		if pair.overlap(b0, b1, threadIndex) {
			return 1
		}
		return 0
	})

	l.processTramp = purego.NewCallback(func(contact Joint, timestep float32, threadIndex int32) {
		b0 := l.newtonJointGetBody0(contact)
		b1 := l.newtonJointGetBody1(contact)
		pair, ok := l.lookupPair(b0, b1)
		if !ok || pair.process == nil {
			return
		}
		for pt := l.newtonContactFirst(contact); pt != 0; pt = l.newtonContactNext(contact, pt) {
			mat := l.newtonContactMaterial(pt)
			c := Contact{Body0: b0, Body1: b1}
			l.newtonContactPosAndNormal(mat, b0, &c.Position[0], &c.Normal[0])
			c.NormalSpeed = l.newtonContactNormalSpeed(mat)
			pair.process(c, timestep, threadIndex)
		}
	})

	l.rayFilterTramp = purego.NewCallback(func(body Body, shape Collision, hitContact, hitNormal uintptr, collisionID int64, userData uintptr, param float32) float32 {
		call, _ := lookupCall(userData).(*rayCall)
		if call == nil {
			return param
		}
		return call.filter(body, shape, readVec3(hitContact), readVec3(hitNormal), param)
	})

	l.rayPreTramp = purego.NewCallback(func(body Body, shape Collision, userData uintptr) uintptr {
		call, _ := lookupCall(userData).(*rayCall)
		if call == nil || call.prefilter == nil || call.prefilter(body, shape) {
			return 1
		}
		return 0
	})

	l.bodyIterTramp = purego.NewCallback(func(body Body, userData uintptr) uintptr {
		call, _ := lookupCall(userData).(*iterCall)
		if call == nil || call.fn(body) {
			return 1
		}
		return 0
	})
}

func (l *Library) lookupPair(b0, b1 Body) (matPair, bool) {
	w := l.newtonBodyGetWorld(b0)
	g0 := l.newtonBodyGetMaterial(b0)
	g1 := l.newtonBodyGetMaterial(b1)
	l.mu.RLock()
	pair, ok := l.matCB[pairKey(w, g0, g1)]
	l.mu.RUnlock()
	return pair, ok
}

func matPtr(m *[16]float32) *float32 {
	if m == nil {
		return nil
	}
	return &m[0]
}

func readVec3(addr uintptr) (v [3]float32) {
	if addr == 0 {
		return v
	}
	src := unsafe.Slice((*float32)(unsafe.Pointer(addr)), 3)
	copy(v[:], src)
	return v
}

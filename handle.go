package newton

import "fmt"

// Kind identifies the class of object a Handle refers to.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBody
	KindCollision
	KindJoint
	KindMesh
)

func (k Kind) String() string {
	switch k {
	case KindBody:
		return "body"
	case KindCollision:
		return "collision"
	case KindJoint:
		return "joint"
	case KindMesh:
		return "mesh"
	default:
		return "invalid"
	}
}

// Handle is the opaque identity of a world-owned object. Handles are
// comparable, cheap to copy and printable; they say nothing about
// liveness. Resolving a handle to live state goes through the World's
// registries and may fail with HandleInvalid at any time.
type Handle struct {
	raw  uintptr
	kind Kind
}

func newHandle(raw uintptr, kind Kind) Handle {
	return Handle{raw: raw, kind: kind}
}

// Kind reports the object class this handle refers to.
func (h Handle) Kind() Kind { return h.kind }

// IsNull reports whether the handle refers to nothing.
func (h Handle) IsNull() bool { return h.raw == 0 }

func (h Handle) String() string {
	if h.IsNull() {
		return h.kind.String() + "(null)"
	}
	return fmt.Sprintf("%s(0x%x)", h.kind, h.raw)
}

package newton

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestHandle_ZeroValue(t *testing.T) {
	var h Handle
	if !h.IsNull() {
		t.Error("zero handle not null")
	}
	if h.Kind() != KindInvalid {
		t.Errorf("zero handle kind = %v", h.Kind())
	}
	if s := h.String(); s != "invalid(null)" {
		t.Errorf("zero handle String = %q", s)
	}
}

func TestHandle_StringPerKind(t *testing.T) {
	tests := []struct {
		h    Handle
		want string
	}{
		{newHandle(0xab, KindBody), "body(0xab)"},
		{newHandle(0x10, KindCollision), "collision(0x10)"},
		{newHandle(0x3, KindJoint), "joint(0x3)"},
		{newHandle(0xff, KindMesh), "mesh(0xff)"},
	}
	for _, tt := range tests {
		if got := tt.h.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestKind_String(t *testing.T) {
	tests := map[Kind]string{
		KindInvalid:   "invalid",
		KindBody:      "body",
		KindCollision: "collision",
		KindJoint:     "joint",
		KindMesh:      "mesh",
		Kind(99):      "invalid",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestHandle_UsableAsMapKey(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	b0 := mustBody(t, w, col, mgl32.Vec3{})
	b1 := mustBody(t, w, col, mgl32.Vec3{0, 1, 0})

	tags := map[Handle]string{
		b0.Handle(): "first",
		b1.Handle(): "second",
	}
	if tags[b0.Handle()] != "first" || tags[b1.Handle()] != "second" {
		t.Errorf("map lookups = %q, %q", tags[b0.Handle()], tags[b1.Handle()])
	}
	if b0.Handle() == b1.Handle() {
		t.Error("distinct bodies share a handle")
	}
}

func TestHandle_IdentitySurvivesDestroy(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	col := mustBox(t, w, 1, 1, 1)
	b := mustBody(t, w, col, mgl32.Vec3{})

	h := b.Handle()
	if err := w.Destroy(h); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if h != b.Handle() {
		t.Error("handle value changed across destroy")
	}
	if h.IsNull() {
		t.Error("destroyed handle turned null; identity must be stable")
	}
}

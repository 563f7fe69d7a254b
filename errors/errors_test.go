package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseAccess,
				Kind:   KindHandleInvalid,
				Op:     "body.matrix",
				Handle: "body(0x2a)",
				Detail: "handle is not registered or already destroyed",
			},
			contains: []string{"[access]", "handle_invalid", "body.matrix", "body(0x2a)", "already destroyed"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseStep,
				Kind:  KindAlreadyStepping,
			},
			contains: []string{"[step]", "already_stepping"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseTeardown,
				Kind:   KindAllocationFailed,
				Detail: "destroy body",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[teardown]", "allocation_failed", "destroy body", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("Error() = %q, want substring %q", msg, s)
				}
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err := SimulationBusy("body.set_velocity")

	if !errors.Is(err, &Error{Phase: PhaseAccess, Kind: KindSimulationBusy}) {
		t.Error("expected match on same phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseStep, Kind: KindSimulationBusy}) {
		t.Error("expected no match on different phase")
	}
	if errors.Is(err, &Error{Phase: PhaseAccess, Kind: KindWorldGone}) {
		t.Error("expected no match on different kind")
	}
	if errors.Is(err, errors.New("other")) {
		t.Error("expected no match against a plain error")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseLoad, KindUnsupported, cause, "open library")

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if errors.Unwrap(err) != cause {
		t.Error("expected Unwrap to return the cause")
	}
}

func TestIsKind(t *testing.T) {
	err := WorldGone("world.create_body")

	if !IsKind(err, KindWorldGone) {
		t.Error("expected IsKind to match the kind")
	}
	if IsKind(err, KindHandleInvalid) {
		t.Error("expected IsKind to reject a different kind")
	}
	if IsKind(errors.New("plain"), KindWorldGone) {
		t.Error("expected IsKind to reject non-structured errors")
	}

	// wrapped one level deep
	wrapped := Wrap(PhaseTeardown, KindAllocationFailed, err, "close")
	if !IsKind(wrapped, KindAllocationFailed) {
		t.Error("expected IsKind to see the outermost kind")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("dlopen failed")
	err := New(PhaseLoad, KindUnsupported).
		Op("native.open").
		Handle("libNewton.so").
		Detail("missing export %q", "NewtonCreate").
		Cause(cause).
		Build()

	if err.Phase != PhaseLoad {
		t.Errorf("Phase = %q, want %q", err.Phase, PhaseLoad)
	}
	if err.Kind != KindUnsupported {
		t.Errorf("Kind = %q, want %q", err.Kind, KindUnsupported)
	}
	if err.Op != "native.open" {
		t.Errorf("Op = %q, want %q", err.Op, "native.open")
	}
	if err.Detail != `missing export "NewtonCreate"` {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Cause != cause {
		t.Error("Cause not set")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
	}{
		{"AllocationFailed", AllocationFailed("world.create_box", "collision"), PhaseCreate, KindAllocationFailed},
		{"HandleInvalid", HandleInvalid(PhaseAccess, "body.position", "body(0x1)"), PhaseAccess, KindHandleInvalid},
		{"WorldGone", WorldGone("body.position"), PhaseAccess, KindWorldGone},
		{"AlreadyStepping", AlreadyStepping(), PhaseStep, KindAlreadyStepping},
		{"SimulationBusy", SimulationBusy("body.set_force"), PhaseAccess, KindSimulationBusy},
		{"ReentrantStep", ReentrantStep("world.begin_step"), PhaseStep, KindReentrantStep},
		{"DuplicateHandle", DuplicateHandle("storage.insert", "body(0x1)"), PhaseStorage, KindDuplicateHandle},
		{"NotFound", NotFound("storage.remove", "body(0x1)"), PhaseStorage, KindNotFound},
		{"Unsupported", Unsupported("shared library loading is unix-only"), PhaseLoad, KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("Phase = %q, want %q", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty error message")
			}
		})
	}
}

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the world lifecycle the error occurred
type Phase string

const (
	PhaseCreate   Phase = "create"   // native object construction
	PhaseAccess   Phase = "access"   // wrapper accessors and mutators
	PhaseStep     Phase = "step"     // simulation stepping
	PhaseStorage  Phase = "storage"  // handle registry bookkeeping
	PhaseTeardown Phase = "teardown" // world destruction
	PhaseCallback Phase = "callback" // native callback dispatch
	PhaseQuery    Phase = "query"    // ray casts and broadphase queries
	PhaseLoad     Phase = "load"     // shared library and scene loading
)

// Kind categorizes the error
type Kind string

const (
	KindAllocationFailed Kind = "allocation_failed" // native constructor refused
	KindHandleInvalid    Kind = "handle_invalid"    // dead or unregistered handle
	KindWorldGone        Kind = "world_gone"        // operation on a torn-down world
	KindAlreadyStepping  Kind = "already_stepping"  // step requested while one is in flight
	KindSimulationBusy   Kind = "simulation_busy"   // access attempted during a step
	KindReentrantStep    Kind = "reentrant_step"    // step requested from inside a callback
	KindDuplicateHandle  Kind = "duplicate_handle"  // registry invariant violation
	KindNotFound         Kind = "not_found"         // registry miss
	KindUnsupported      Kind = "unsupported"       // platform or feature not available
	KindInvalidInput     Kind = "invalid_input"     // bad parameters from the caller
)

// Error is the structured error type used throughout the library
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string // failing operation, e.g. "body.matrix"
	Handle string // handle involved, if any
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Handle != "" {
		b.WriteString(" (")
		b.WriteString(e.Handle)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two Errors match when
// their Phase and Kind are equal; Op, Handle and Detail are context.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err (or any error it wraps) is an *Error of the
// given kind, regardless of phase. Callers usually branch on Kind alone.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the failing operation
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Handle sets the handle involved in the failure
func (b *Builder) Handle(h string) *Builder {
	b.err.Handle = h
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// AllocationFailed reports that the native layer refused to construct an object
func AllocationFailed(op, what string) *Error {
	return &Error{
		Phase:  PhaseCreate,
		Kind:   KindAllocationFailed,
		Op:     op,
		Detail: fmt.Sprintf("native layer returned a null %s", what),
	}
}

// HandleInvalid reports use of a dead or unregistered handle
func HandleInvalid(phase Phase, op, handle string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindHandleInvalid,
		Op:     op,
		Handle: handle,
		Detail: "handle is not registered or already destroyed",
	}
}

// WorldGone reports an operation against a torn-down world
func WorldGone(op string) *Error {
	return &Error{
		Phase:  PhaseAccess,
		Kind:   KindWorldGone,
		Op:     op,
		Detail: "world has been closed",
	}
}

// AlreadyStepping reports a step request while another step is in flight
func AlreadyStepping() *Error {
	return &Error{
		Phase:  PhaseStep,
		Kind:   KindAlreadyStepping,
		Op:     "world.begin_step",
		Detail: "a simulation step is already in flight",
	}
}

// SimulationBusy reports an access attempt while a step is in flight
func SimulationBusy(op string) *Error {
	return &Error{
		Phase:  PhaseAccess,
		Kind:   KindSimulationBusy,
		Op:     op,
		Detail: "simulation step in flight; retry after Join",
	}
}

// ReentrantStep reports a step request issued from inside a callback handler
func ReentrantStep(op string) *Error {
	return &Error{
		Phase:  PhaseStep,
		Kind:   KindReentrantStep,
		Op:     op,
		Detail: "callback handlers run on the stepping worker and must not start a step",
	}
}

// DuplicateHandle reports a double insertion into the registry. This
// signals corrupted bookkeeping rather than a recoverable condition.
func DuplicateHandle(op, handle string) *Error {
	return &Error{
		Phase:  PhaseStorage,
		Kind:   KindDuplicateHandle,
		Op:     op,
		Handle: handle,
		Detail: "handle is already registered",
	}
}

// NotFound reports a registry miss
func NotFound(op, handle string) *Error {
	return &Error{
		Phase:  PhaseStorage,
		Kind:   KindNotFound,
		Op:     op,
		Handle: handle,
		Detail: "no live entry for handle",
	}
}

// Unsupported reports a feature that is unavailable on this platform
func Unsupported(what string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput reports bad parameters from the caller
func InvalidInput(op, detail string) *Error {
	return &Error{
		Phase:  PhaseCreate,
		Kind:   KindInvalidInput,
		Op:     op,
		Detail: detail,
	}
}

// Wrap wraps an existing error with phase and kind context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Package errors provides structured error types for the newton-go library.
//
// Errors are categorized by Phase (where in the world lifecycle the error
// occurred) and Kind (error category). The Error type includes rich context:
// the failing operation, the handle involved, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAccess, errors.KindHandleInvalid).
//		Op("body.matrix").
//		Handle(h.String()).
//		Detail("wrapper outlived its registry entry").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.HandleInvalid(errors.PhaseAccess, "body.matrix", h.String())
//	err := errors.SimulationBusy("body.set_velocity")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors

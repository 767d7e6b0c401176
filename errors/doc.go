// Package errors provides structured error types for the rotable module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries a table path, the offending value, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBuild, errors.KindDuplicate).
//		Path("net", "http").
//		Detail("duplicate key %q", "port").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.PhaseLookup, "global", "math")
//	err := errors.OutOfBounds(errors.PhaseMemory, addr, 24)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors

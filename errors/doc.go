// Package errors provides structured error types for specmerge.
//
// Errors are categorized by Phase (which pipeline stage failed) and Kind
// (error category). The Error type carries the module role, the offending
// record, a detail message and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCorrelate, errors.KindOutOfBounds).
//		Module("harness").
//		Record("func 7").
//		Detail("no test export at position %d", 3).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.StructuralMismatch(errors.PhaseRead, "test", "unbalanced parens")
//	err := errors.ToolFailure(errors.PhaseAssemble, "eosio-wast2wasm", 1, stderr, cause)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors

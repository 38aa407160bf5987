// Package errors provides structured error types for dxcompat.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the subject (library, interface or handle kind), a
// field path, a detail message and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindNotFound).
//		Subject("libdxcompiler.so").
//		Detail("unknown entry point %q", name).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.SetupFailed("libdxcompiler.so", nil)
//	err := errors.CompileFailed(cause)
//
// Setup and compile failures are distinguished with the sentinels:
//
//	if stderrors.Is(err, errors.ErrSetupFailed) { ... }
//	if stderrors.Is(err, errors.ErrCompileFailed) { ... }
//
// All errors implement the standard error interface and support the standard
// library errors.Is and errors.As.
package errors

// Package errors provides structured error types for the profiling runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Kinds map onto the runtime's error taxonomy:
//
//	KindInvalidHandle   - unknown, deleted or wrong-kind resource handle
//	KindNativeCounter   - the OS refused a perf_event operation
//	KindMemorySafety    - a guest offset/length escapes linear memory (fatal)
//	KindSerialization   - a compound payload failed to encode or decode
//	KindRunInterrupted  - the run's interruption budget ran out
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBridge, errors.KindMemorySafety).
//		Detail("offset %d + length %d exceeds memory size %d", off, n, size).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidHandle(handle)
//	err := errors.NativeCounter("enable", cause)
//
// Operation-level errors are converted into guest-visible messages by the
// host op bindings. Use IsFatal to detect errors that must abort the run.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors

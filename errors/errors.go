package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseTable   Phase = "table"   // resource table operations
	PhaseBridge  Phase = "bridge"  // guest memory translation
	PhaseCodec   Phase = "codec"   // payload encode/decode
	PhaseNative  Phase = "native"  // perf_event primitives
	PhaseHost    Phase = "host"    // host op registration
	PhaseLoad    Phase = "load"    // module loading and precompilation
	PhaseRuntime Phase = "runtime" // module execution
	PhaseConfig  Phase = "config"  // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidHandle  Kind = "invalid_handle"
	KindNativeCounter  Kind = "native_counter"
	KindMemorySafety   Kind = "memory_safety"
	KindSerialization  Kind = "serialization"
	KindRunInterrupted Kind = "run_interrupted"
	KindTableFull      Kind = "table_full"
	KindAllocation     Kind = "allocation"
	KindUnsupported    Kind = "unsupported"
	KindInvalidState   Kind = "invalid_state"
	KindInvalidInput   Kind = "invalid_input"
	KindNotFound       Kind = "not_found"
	KindRegistration   Kind = "registration"
	KindInstantiation  Kind = "instantiation"
	KindInvalidData    Kind = "invalid_data"
	KindTrap           Kind = "trap"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
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

// Is reports whether target matches this error.
// A target with an empty Phase matches any phase of the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase == "" {
			return e.Kind == t.Kind
		}
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is checks against a kind regardless of phase.
var (
	ErrInvalidHandle  = &Error{Kind: KindInvalidHandle}
	ErrNativeCounter  = &Error{Kind: KindNativeCounter}
	ErrMemorySafety   = &Error{Kind: KindMemorySafety}
	ErrSerialization  = &Error{Kind: KindSerialization}
	ErrRunInterrupted = &Error{Kind: KindRunInterrupted}
	ErrTableFull      = &Error{Kind: KindTableFull}
	ErrAllocation     = &Error{Kind: KindAllocation}
)

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

// Op sets the operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
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

// IsFatal reports whether err must abort the whole run instead of being
// reported to the guest through the output area. A failed guest allocation
// is fatal because the error text itself could not be delivered.
func IsFatal(err error) bool {
	return stderrors.Is(err, ErrMemorySafety) || stderrors.Is(err, ErrAllocation)
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Convenience constructors for common error patterns

// InvalidHandle creates an error for a handle that does not resolve.
func InvalidHandle(handle uint32) *Error {
	return &Error{
		Phase:  PhaseTable,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("no such resource: handle %d", handle),
		Value:  handle,
	}
}

// WrongKind creates an error for a handle that resolves to another kind.
func WrongKind(handle uint32, want, got string) *Error {
	return &Error{
		Phase:  PhaseTable,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("no such resource: handle %d is a %s, not a %s", handle, got, want),
		Value:  handle,
	}
}

// TableFull creates a table exhaustion error.
func TableFull() *Error {
	return &Error{
		Phase:  PhaseTable,
		Kind:   KindTableFull,
		Detail: "resource table exhausted",
	}
}

// NativeCounter wraps a failure of the underlying perf_event primitive.
func NativeCounter(op string, cause error) *Error {
	return &Error{
		Phase: PhaseNative,
		Kind:  KindNativeCounter,
		Op:    op,
		Cause: cause,
	}
}

// OutOfBounds creates a memory-safety violation for a guest range.
func OutOfBounds(offset, length, size uint32) *Error {
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindMemorySafety,
		Detail: fmt.Sprintf("guest range [%d, %d+%d) exceeds memory size %d", offset, offset, length, size),
		Value:  offset,
	}
}

// Serialization creates a payload encode/decode error.
func Serialization(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseCodec,
		Kind:   KindSerialization,
		Detail: what,
		Cause:  cause,
	}
}

// AllocationFailed creates a guest allocation failure error
func AllocationFailed(size, align uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// RunInterrupted creates the error returned when a run's budget is not refilled.
func RunInterrupted(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindRunInterrupted,
		Detail: "interruption budget exhausted",
		Cause:  cause,
	}
}

// Trap wraps a guest trap or other abnormal termination of the entry call.
func Trap(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindTrap,
		Detail: "guest execution failed",
		Cause:  cause,
	}
}

// InvalidState creates an error for an operation in the wrong lifecycle state.
func InvalidState(op, detail string) *Error {
	return &Error{
		Phase:  PhaseNative,
		Kind:   KindInvalidState,
		Op:     op,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(phase Phase, namespace, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", namespace, name),
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

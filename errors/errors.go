package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseSetup   Phase = "setup"   // one-time library setup
	PhaseLoad    Phase = "load"    // library load emulation
	PhaseCompile Phase = "compile" // compiler invocation
	PhaseQuery   Phase = "query"   // interface queries and result outputs
	PhaseAlloc   Phase = "alloc"   // allocator and string buffers
	PhaseABI     Phase = "abi"     // guest memory and handle translation
	PhaseInclude Phase = "include" // include resolution
	PhaseConfig  Phase = "config"  // CLI configuration
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindAllocation     Kind = "allocation"
	KindInvalidUTF8    Kind = "invalid_utf8"
	KindNilPointer     Kind = "nil_pointer"
	KindNotFound       Kind = "not_found"
	KindNotInitialized Kind = "not_initialized"
	KindInvalidInput   Kind = "invalid_input"
	KindNoInterface    Kind = "no_interface"
	KindInvalidHandle  Kind = "invalid_handle"
	KindSetupFailed    Kind = "setup_failed"
	KindCompileFailed  Kind = "compile_failed"
	KindRegistration   Kind = "registration"
)

// Sentinels for errors.Is. Matching compares Phase and Kind only.
var (
	ErrSetupFailed   = &Error{Phase: PhaseSetup, Kind: KindSetupFailed}
	ErrCompileFailed = &Error{Phase: PhaseCompile, Kind: KindCompileFailed}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Subject string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Subject != "" {
		b.WriteString(": ")
		b.WriteString(e.Subject)
	}

	if e.Detail != "" {
		if e.Subject != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
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

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Subject names the library, interface or handle the error is about
func (b *Builder) Subject(s string) *Builder {
	b.err.Subject = s
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

// Convenience constructors for common error patterns

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Value:  size,
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

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("offset %d length %d out of bounds", offset, length),
		Value:  offset,
	}
}

// NilPointer creates a nil pointer error for a required output argument
func NilPointer(phase Phase, what string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindNilPointer,
		Subject: what,
		Detail:  "nil pointer",
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindNotInitialized,
		Subject: component,
		Detail:  fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindNotFound,
		Subject: name,
		Detail:  fmt.Sprintf("%s %q not found", what, name),
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

// NoInterface creates a failed interface query error
func NoInterface(iid string) *Error {
	return &Error{
		Phase:   PhaseQuery,
		Kind:    KindNoInterface,
		Subject: iid,
		Detail:  "interface not supported",
	}
}

// InvalidHandle creates an unknown or released handle error
func InvalidHandle(phase Phase, what string, handle uint32) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindInvalidHandle,
		Subject: what,
		Detail:  fmt.Sprintf("handle %d is not live", handle),
		Value:   handle,
	}
}

// SetupFailed creates a one-time setup failure error
func SetupFailed(library string, cause error) *Error {
	return &Error{
		Phase:   PhaseSetup,
		Kind:    KindSetupFailed,
		Subject: library,
		Detail:  "one-time library setup failed",
		Cause:   cause,
	}
}

// CompileFailed creates a compiler invocation failure error
func CompileFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindCompileFailed,
		Detail: "compiler invocation failed",
		Cause:  cause,
	}
}

// Registration creates a registration error
func Registration(phase Phase, namespace, name string, cause error) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindRegistration,
		Subject: namespace,
		Detail:  fmt.Sprintf("register %s#%s", namespace, name),
		Cause:   cause,
	}
}

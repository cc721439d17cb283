package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // module compilation and validation
	PhaseLink     Phase = "link"     // import resolution and instantiation
	PhaseCall     Phase = "call"     // guest function invocation
	PhaseMemory   Phase = "memory"   // linear memory access
	PhaseRegistry Phase = "registry" // object registry operations
	PhaseConfig   Phase = "config"   // configuration parsing
	PhaseHost     Phase = "host"     // host function bridging
)

// Kind categorizes the error
type Kind string

const (
	KindUnknownImport      Kind = "unknown_import"
	KindCycle              Kind = "cycle"
	KindComponentMismatch  Kind = "component_mismatch"
	KindOutOfBounds        Kind = "out_of_bounds"
	KindCapabilityDisabled Kind = "capability_disabled"
	KindTypeMismatch       Kind = "type_mismatch"
	KindInterrupted        Kind = "interrupted"
	KindUninitialized      Kind = "uninitialized"
	KindInvalidInput       Kind = "invalid_input"
	KindNotFound           Kind = "not_found"
	KindNoMemory           Kind = "no_memory"
	KindUnknownFormat      Kind = "unknown_format"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
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

// Path sets the namespace/name path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
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

// UnknownImport names an unresolved (namespace, name) pair
func UnknownImport(namespace, name string) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindUnknownImport,
		Path:   []string{namespace, name},
		Detail: fmt.Sprintf("unknown import %q.%q", namespace, name),
	}
}

// Cycle reports a true dependency cycle during instantiation
func Cycle(module string) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindCycle,
		Detail: fmt.Sprintf("module %q is already being instantiated (dependency cycle)", module),
	}
}

// ComponentMismatch reports a component-typed module where a core module was expected
func ComponentMismatch(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindComponentMismatch,
		Detail: "module is a component, core module expected",
	}
}

// OutOfBounds creates a range error for memory and array accesses.
// The range is half-open [begin, end) against the given length.
func OutOfBounds(phase Phase, begin, end, length uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range %d..%d out of bound (length %d)", begin, end, length),
	}
}

// IndexOutOfBounds creates a single-index bounds error
func IndexOutOfBounds(phase Phase, index, length uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("index %d out of bound (length %d)", index, length),
		Value:  index,
	}
}

// CapabilityDisabled reports an operation whose enabling capability is off
func CapabilityDisabled(op string) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindCapabilityDisabled,
		Detail: fmt.Sprintf("operation %q is disabled", op),
	}
}

// TypeMismatch reports a dynamic value of unexpected shape
func TypeMismatch(phase Phase, want string, got any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Detail: fmt.Sprintf("expected %s, got %T", want, got),
		Value:  got,
	}
}

// Interrupted reports an epoch deadline expiry
func Interrupted(cause error) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindInterrupted,
		Detail: "epoch deadline exceeded",
		Cause:  cause,
	}
}

// Uninitialized reports an operation on an instance before successful initialization
func Uninitialized(what string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindUninitialized,
		Detail: fmt.Sprintf("uninitialized %s", what),
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

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// NoMemory reports an instance without a bound linear memory export
func NoMemory() *Error {
	return &Error{
		Phase: PhaseMemory,
		Kind:  KindNoMemory,
		Detail: "no memory exported",
	}
}

// UnknownFormat reports an unrecognized struct format code
func UnknownFormat(code byte) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindUnknownFormat,
		Detail: fmt.Sprintf("unknown format code %q", string(code)),
		Value:  code,
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

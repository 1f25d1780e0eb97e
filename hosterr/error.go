package hosterr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a host error by the lifecycle step that produced it.
type Kind string

const (
	// KindLoad covers failures while turning a source reference into a
	// configured host: unreachable sources, malformed modules and contract
	// mismatches.
	KindLoad Kind = "load"

	// KindUnknownField is returned when a configuration field was not
	// declared by the module's default_config.
	KindUnknownField Kind = "unknown_field"

	// KindInstantiation covers failures creating a fresh sandbox instance.
	KindInstantiation Kind = "instantiation"

	// KindExecution covers traps, budget overruns and undecodable responses
	// from a running module.
	KindExecution Kind = "execution"

	// KindDecode is returned by the wire codec for malformed bytes.
	KindDecode Kind = "decode"

	// KindInternal marks a violated host invariant. It never results from
	// module misbehaviour.
	KindInternal Kind = "internal"
)

// Standard error codes refining a Kind.
const (
	// CodeSourceUnreachable indicates the module bytes could not be fetched
	CodeSourceUnreachable = "SOURCE_UNREACHABLE"

	// CodeIntegrityMismatch indicates the fetched bytes do not match the pinned digest
	CodeIntegrityMismatch = "INTEGRITY_MISMATCH"

	// CodeInvalidModule indicates the bytes are not a valid sandboxed module
	CodeInvalidModule = "INVALID_MODULE"

	// CodeContractMismatch indicates missing or mistyped entry points
	CodeContractMismatch = "CONTRACT_MISMATCH"

	// CodeDefaultConfigFailed indicates default_config aborted during load
	CodeDefaultConfigFailed = "DEFAULT_CONFIG_FAILED"

	// CodeTrap indicates the module trapped or aborted
	CodeTrap = "TRAP"

	// CodeTimeout indicates the execution budget was exceeded
	CodeTimeout = "TIMEOUT"

	// CodeCanceled indicates the caller's context was canceled mid-call
	CodeCanceled = "CANCELED"

	// CodeClosed indicates the sandbox instance no longer exists
	CodeClosed = "CLOSED"

	// CodeBadPointer indicates the module returned memory outside its bounds
	CodeBadPointer = "BAD_POINTER"

	// CodeResponseDecode indicates the response envelope failed to decode
	CodeResponseDecode = "RESPONSE_DECODE"

	// CodeMalformed indicates truncated or corrupt wire bytes
	CodeMalformed = "MALFORMED"

	// CodeVersionMismatch indicates an envelope from another contract version
	CodeVersionMismatch = "VERSION_MISMATCH"

	// CodeUnsupported indicates a value the codec cannot represent
	CodeUnsupported = "UNSUPPORTED"
)

// Error is a structured error type for plugin host operations.
// It records which operation failed, the kind of failure, an optional code
// refining the kind, the module involved and the underlying cause.
type Error struct {
	// Op is the operation that failed (e.g. "host.Load", "wire.DecodeGraph")
	Op string

	// Kind categorizes the error
	Kind Kind

	// Code refines Kind with a standard code constant
	Code string

	// Module identifies the module source, when known
	Module string

	// Message is a human-readable error message
	Message string

	// Details contains additional context as key-value pairs
	Details map[string]any

	// Cause is the underlying error that caused this error
	Cause error
}

// New creates a new structured host error.
//
// Example:
//
//	err := hosterr.New("host.Load", hosterr.KindLoad, hosterr.CodeContractMismatch,
//	    "module does not export exec_on_graph")
func New(op string, kind Kind, code, message string) *Error {
	return &Error{
		Op:      op,
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Newf is New with a formatted message.
func Newf(op string, kind Kind, code, format string, args ...any) *Error {
	return New(op, kind, code, fmt.Sprintf(format, args...))
}

// WithCause adds an underlying error to this error.
// This method returns the same error instance for method chaining.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithModule records the module source this error relates to.
func (e *Error) WithModule(module string) *Error {
	e.Module = module
	return e
}

// WithDetails adds additional context to this error.
// This method returns the same error instance for method chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Error implements the error interface.
// It formats the error as: "op [kind/code] (module): message: cause"
func (e *Error) Error() string {
	var parts []string

	head := e.Op
	if e.Code != "" {
		head = fmt.Sprintf("%s [%s/%s]", head, e.Kind, e.Code)
	} else {
		head = fmt.Sprintf("%s [%s]", head, e.Kind)
	}
	if e.Module != "" {
		head = fmt.Sprintf("%s (%s)", head, e.Module)
	}
	parts = append(parts, head)

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches a target *Error by Kind, and by Code when the target sets one.
// An empty Op in the target matches any operation.
//
// This lets the package sentinels be used with errors.Is:
//
//	if errors.Is(err, hosterr.ErrContractMismatch) { ... }
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return t.Kind != "" || t.Code != "" || t.Op != ""
}

// Sentinel errors for errors.Is checks. They carry no operation, so they match
// any error of the same kind (and code, where set).
var (
	// ErrLoad matches every load failure.
	ErrLoad = &Error{Kind: KindLoad}

	// ErrSourceUnreachable matches load failures fetching module bytes.
	ErrSourceUnreachable = &Error{Kind: KindLoad, Code: CodeSourceUnreachable}

	// ErrInvalidModule matches load failures for malformed module bytes.
	ErrInvalidModule = &Error{Kind: KindLoad, Code: CodeInvalidModule}

	// ErrContractMismatch matches modules lacking the required entry points.
	ErrContractMismatch = &Error{Kind: KindLoad, Code: CodeContractMismatch}

	// ErrUnknownField matches configuration fields the module did not declare.
	ErrUnknownField = &Error{Kind: KindUnknownField}

	// ErrInstantiation matches failures starting a sandbox instance.
	ErrInstantiation = &Error{Kind: KindInstantiation}

	// ErrExecution matches every execution failure.
	ErrExecution = &Error{Kind: KindExecution}

	// ErrTimeout matches executions that exceeded their budget.
	ErrTimeout = &Error{Kind: KindExecution, Code: CodeTimeout}

	// ErrClosed matches calls into a destroyed sandbox instance.
	ErrClosed = &Error{Kind: KindExecution, Code: CodeClosed}

	// ErrDecode matches malformed wire bytes.
	ErrDecode = &Error{Kind: KindDecode}
)

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the Code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

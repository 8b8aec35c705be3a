package llmtools

import (
	"errors"
	"fmt"
)

// Schema generation errors. They are returned by the constructors (NewFunction,
// NewModel, NewDynamicFunction, NewPrefix) and indicate a programming mistake.
var (
	ErrMissingType          = errors.New("parameter has no concrete type")
	ErrAmbiguousDescription = errors.New("description is defined on both the function and its record type")
	ErrInvalidRecordType    = errors.New("not a record type")
	ErrSchemaOverride       = errors.New("name or description cannot be combined with a custom schema")
	ErrInvalidSchemaNode    = errors.New("schema node is not an object")
	ErrMissingName          = errors.New("tool name cannot be derived")
	ErrAlreadyRegistered    = errors.New("tool already registered")
)

// Dispatch errors. They never escape Dispatch; they are captured in the
// Failure outcome of a ToolResult. Use errors.Is to check.
var (
	ErrMalformedArguments = errors.New("malformed tool arguments")
	ErrNoMatchingTool     = errors.New("no matching tool found")
	ErrValidation         = errors.New("validation failed")
	ErrInvocation         = errors.New("tool invocation failed")
	ErrTimeout            = errors.New("tool execution timeout")
	ErrShutdown           = errors.New("toolbox is shut down")
)

// Soft errors. They are recorded in ToolResult.SoftErrors and coexist with a
// successful output.
var (
	ErrJSONRepaired      = errors.New("repaired malformed JSON arguments")
	ErrListCoerced       = errors.New("coerced string argument to list")
	ErrPrefixMismatch    = errors.New("tool name does not carry the expected prefix")
	ErrInvalidPrefix     = errors.New("prefix arguments are invalid")
	ErrUnrecognizedField = errors.New("ignored unrecognized argument")
)

// ClientError is an error that should be sent back to the LLM for self-correction
// (e.g. invalid JSON, schema validation failure, bad enum value).
// Err wraps a sentinel (e.g. ErrValidation) and Cause the underlying error, both
// reachable through errors.Is/errors.As.
type ClientError struct {
	Reason string
	Err    error
	Cause  error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("invalid tool input: %s", e.Reason)
}

// Unwrap supports errors.Is/errors.As on both the sentinel and the cause.
func (e *ClientError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Err != nil {
		out = append(out, e.Err)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// InvocationError reports a failure raised by the tool itself: a returned error
// or a recovered panic. Its message is the tool's own message so the LLM sees
// what went wrong. Stack is set for panics.
type InvocationError struct {
	Tool  string
	Err   error
	Stack string
}

func (e *InvocationError) Error() string {
	return e.Err.Error()
}

func (e *InvocationError) Unwrap() []error { return []error{ErrInvocation, e.Err} }

// IsClientError returns true if err is or wraps a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsInvocationError returns true if err is or wraps an InvocationError.
func IsInvocationError(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie)
}

// wrapJSONParseError returns a ClientError for JSON decode failures.
func wrapJSONParseError(err error) error {
	return &ClientError{Reason: "json parse error: " + err.Error(), Err: ErrMalformedArguments, Cause: err}
}

// panicError wraps a recovered panic value for InvocationError.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}

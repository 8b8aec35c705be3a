package llmtools

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// Outcome is the result of one tool call: Output or Failure.
type Outcome interface {
	outcome()
}

// Output holds the value returned by a tool.
type Output struct {
	Value any
}

// Failure holds the hard error that stopped a call. Stack is set when the tool panicked.
type Failure struct {
	Err   error
	Stack string
}

func (Output) outcome()  {}
func (Failure) outcome() {}

// ToolResult is the uniform result of dispatching one ToolCall. It is returned for
// every call, successful or not.
type ToolResult struct {
	CallID string
	// Name is the called tool name with any prefix tag removed.
	Name string
	// Arguments are the arguments after repair, prefix extraction and coercion.
	Arguments map[string]any
	Outcome   Outcome
	// SoftErrors are recoverable problems found on the way; they never suppress an output.
	SoftErrors []error
	// Prefix is the decoded prefix record, nil when no prefix is configured or it was invalid.
	Prefix any
	// Tool is the resolved tool, nil when no tool matched.
	Tool Tool
}

// Output returns the tool's return value and whether the call succeeded.
func (r ToolResult) Output() (any, bool) {
	if o, ok := r.Outcome.(Output); ok {
		return o.Value, true
	}
	return nil, false
}

// Err returns the hard error of a failed call, nil on success.
func (r ToolResult) Err() error {
	if f, ok := r.Outcome.(Failure); ok {
		return f.Err
	}
	return nil
}

// StackTrace returns the stack of a panicking tool, empty otherwise.
func (r ToolResult) StackTrace() string {
	if f, ok := r.Outcome.(Failure); ok {
		return f.Stack
	}
	return ""
}

// SoftError joins the soft errors, nil when there are none.
func (r ToolResult) SoftError() error {
	return errors.Join(r.SoftErrors...)
}

// ToolMessage is the message sent back to the LLM with the result of one call.
type ToolMessage struct {
	Role       string `json:"role"`
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name,omitempty"`
	Content    string `json:"content"`
}

// Message renders the result as a "tool" role message.
func (r ToolResult) Message() ToolMessage {
	return ToolMessage{
		Role:       "tool",
		ToolCallID: r.CallID,
		Name:       r.Name,
		Content:    r.content(),
	}
}

func (r ToolResult) content() string {
	if err := r.Err(); err != nil {
		return err.Error()
	}
	v, _ := r.Output()
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case json.RawMessage:
		return string(x)
	}
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		return r.Name + " created"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

package llmtools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/invopop/jsonschema"
)

// Tool is the contract for an LLM-callable instrument.
// It is provider-agnostic (no knowledge of OpenAI, Anthropic, etc.).
type Tool interface {
	// Name is the externally visible name the LLM calls the tool by.
	Name() string
	Description() string
	// Schema returns a deep copy of the schema exposed to the LLM.
	Schema() FunctionSchema
	// Parameters returns the declared parameters in declaration order.
	Parameters() []ParameterSpec
	// Validate checks already parsed and coerced arguments.
	Validate(args map[string]any) error
	// Invoke runs the tool with validated arguments.
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// ToolMetadata is implemented by tools created with NewFunction, NewModel and
// NewDynamicFunction. Identifier is the Go-side name used for NameMapping;
// Timeout overrides the dispatch timeout when positive.
type ToolMetadata interface {
	Identifier() string
	Timeout() time.Duration
}

// FunctionSchema is the description of one tool in an LLM request payload.
// Parameters is nil when the tool takes no arguments (some providers reject an
// empty parameters object).
type FunctionSchema struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	Strict      bool               `json:"strict,omitempty"`
}

// ToolDef is one entry of the "tools" array of a chat completion request.
type ToolDef struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

// ToolDefs returns the request payload entries for tools, in order.
func ToolDefs(tools ...Tool) []ToolDef {
	out := make([]ToolDef, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolDef{Type: "function", Function: t.Schema()})
	}
	return out
}

// ToolCall is a single invocation request issued by the LLM.
// Arguments holds the raw JSON argument string exactly as the provider sent it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// MarshalJSON serializes to the nested provider format ({id, type, function: {name, arguments}}).
func (tc ToolCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(nestedToolCall{
		ID:       tc.ID,
		Type:     "function",
		Function: FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
	})
}

// UnmarshalJSON accepts both the nested provider format and the flat
// {id, name, arguments} format.
func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	var nested nestedToolCall
	if err := json.Unmarshal(data, &nested); err != nil {
		return err
	}
	if nested.Function.Name != "" {
		tc.ID = nested.ID
		tc.Name = nested.Function.Name
		tc.Arguments = nested.Function.Arguments
		return nil
	}
	var flat struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	}
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*tc = ToolCall(flat)
	return nil
}

type nestedToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall is the name and raw JSON arguments of a call. It is also the
// legacy single-call shape of a message (function_call).
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

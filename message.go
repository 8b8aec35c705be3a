package llmtools

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Message is an assistant message of a chat completion. Tool calls arrive either in
// ToolCalls or, from older providers, as the single FunctionCall.
type Message struct {
	Role         string        `json:"role"`
	Content      string        `json:"content,omitempty"`
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// Calls returns the tool calls of the message in order. A legacy function_call is
// returned as a single call with a generated "call_" id.
func (m Message) Calls() []ToolCall {
	if len(m.ToolCalls) > 0 {
		return append([]ToolCall(nil), m.ToolCalls...)
	}
	if m.FunctionCall != nil {
		return []ToolCall{{
			ID:        "call_" + uuid.NewString(),
			Name:      m.FunctionCall.Name,
			Arguments: m.FunctionCall.Arguments,
		}}
	}
	return nil
}

// Choice is one completion alternative.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Response is a chat completion response.
type Response struct {
	ID      string   `json:"id,omitempty"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
}

// ParseResponse decodes a chat completion response body.
func ParseResponse(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

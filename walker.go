package llmtools

import "context"

// ProcessMessage dispatches every tool call of msg and returns one result per
// call, in call order. Calls run through the configured Executor (sequential by default).
func ProcessMessage(ctx context.Context, msg Message, tools []Tool, opts ...DispatchOption) []ToolResult {
	o := newDispatchOptions(opts)
	return processCalls(ctx, msg.Calls(), tools, &o)
}

func processCalls(ctx context.Context, calls []ToolCall, tools []Tool, o *dispatchOptions) []ToolResult {
	if len(calls) == 0 {
		return nil
	}
	results := make([]ToolResult, len(calls))
	o.executor.Execute(ctx, len(calls), func(ctx context.Context, i int) {
		results[i] = dispatch(ctx, calls[i], tools, o)
	})
	return results
}

// ProcessResponse dispatches the tool calls of the selected choice (WithChoice, default 0).
// It returns nil when resp is nil or the choice does not exist.
func ProcessResponse(ctx context.Context, resp *Response, tools []Tool, opts ...DispatchOption) []ToolResult {
	o := newDispatchOptions(opts)
	msg, ok := choiceMessage(resp, o.choice)
	if !ok {
		return nil
	}
	return processCalls(ctx, msg.Calls(), tools, &o)
}

// ProcessOneToolCall dispatches only the call at index of the selected choice.
// It reports false when the choice or the call does not exist.
func ProcessOneToolCall(ctx context.Context, resp *Response, tools []Tool, index int, opts ...DispatchOption) (ToolResult, bool) {
	o := newDispatchOptions(opts)
	msg, ok := choiceMessage(resp, o.choice)
	if !ok {
		return ToolResult{}, false
	}
	calls := msg.Calls()
	if index < 0 || index >= len(calls) {
		return ToolResult{}, false
	}
	return dispatch(ctx, calls[index], tools, &o), true
}

func choiceMessage(resp *Response, choice int) (Message, bool) {
	if resp == nil || choice < 0 || choice >= len(resp.Choices) {
		return Message{}, false
	}
	return resp.Choices[choice].Message, true
}

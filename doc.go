// Package llmtools exposes typed Go functions and record types to LLM function calling,
// and turns the calls the LLM makes back into validated Go invocations.
//
// # Overview
//
// Two directions share one source of truth, the argument record:
//
//   - Schema synthesis: argument struct (json tags, description/default/enum tags) →
//     JSON Schema → FunctionSchema / ToolDef sent to the provider. Strict mode and
//     prefix composition rewrite the schema without touching the original.
//   - Dispatch: ToolCall {id, name, arguments} → parse and repair → resolve → prefix
//     extraction → list coercion → validation → invocation → ToolResult.
//
// Dispatch never panics and never returns an error. Hard failures land in the
// Failure outcome of the ToolResult; recoverable problems (repaired JSON, coerced
// lists, ignored fields) are kept as SoftErrors next to a successful Output.
// ToolResult.Message renders either as a "tool" message so the conversation can continue.
//
// # Key concepts
//
//   - Single Source of Truth: one record type drives both the schema sent to the
//     LLM and the validation of incoming arguments.
//   - Partial Success: ProcessMessage returns one result per call; one failure does
//     not cancel the others.
//   - Self-Correction: ClientError carries human-readable messages back to the LLM.
//   - Concurrency: calls of one message run sequentially unless an Executor such as
//     NewPool is supplied. Tools run through a Pool must be safe for concurrent use.
//
// # Example
//
//	type WeatherArgs struct {
//	    City string `json:"city" description:"City name"`
//	    Unit string `json:"unit" default:"celsius" enum:"celsius,fahrenheit"`
//	}
//
//	func Weather(_ context.Context, a WeatherArgs) (string, error) { return "22", nil }
//
//	tool, err := llmtools.NewFunction(Weather, llmtools.WithDoc("Get the weather."))
//	if err != nil { ... }
//	defs := llmtools.ToolDefs(tool) // request payload
//	results := llmtools.ProcessMessage(ctx, msg, []llmtools.Tool{tool})
package llmtools

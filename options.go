package llmtools

import (
	"log/slog"
	"time"
)

// toolOptions hold optional tool settings (name, description, strict, timeout, etc.).
type toolOptions struct {
	name            string
	description     string
	doc             string
	strict          bool
	caseInsensitive bool
	schema          *FunctionSchema
	mapping         *NameMapping
	timeout         time.Duration
}

// ToolOption configures a tool built by NewFunction, NewModel or NewDynamicFunction.
type ToolOption func(*toolOptions)

func applyToolOptions(opts []ToolOption) toolOptions {
	var o toolOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithName overrides the tool name exposed to the LLM.
func WithName(name string) ToolOption {
	return func(o *toolOptions) {
		o.name = name
	}
}

// WithDescription overrides the tool description. It wins over WithDoc and
// the record's own description.
func WithDescription(description string) ToolOption {
	return func(o *toolOptions) {
		o.description = description
	}
}

// WithDoc attaches the function's documentation. Its first paragraph becomes
// the tool description.
func WithDoc(doc string) ToolOption {
	return func(o *toolOptions) {
		o.doc = doc
	}
}

// WithStrict sets strict mode for schema: additionalProperties: false for all objects,
// and all properties become required. Use for OpenAI Structured Outputs compatibility.
func WithStrict() ToolOption {
	return func(o *toolOptions) {
		o.strict = true
	}
}

// WithCaseInsensitive lowercases the default tool name. An explicit WithName is kept as is.
func WithCaseInsensitive() ToolOption {
	return func(o *toolOptions) {
		o.caseInsensitive = true
	}
}

// WithSchema replaces the generated schema with a custom one. It cannot be
// combined with WithName or WithDescription.
func WithSchema(schema FunctionSchema) ToolOption {
	return func(o *toolOptions) {
		o.schema = &schema
	}
}

// WithNameMapping records the (identifier, exposed name) pair of the tool in m.
func WithNameMapping(m *NameMapping) ToolOption {
	return func(o *toolOptions) {
		o.mapping = m
	}
}

// WithTimeout sets a per-tool timeout. It wins over the dispatch timeout.
func WithTimeout(d time.Duration) ToolOption {
	return func(o *toolOptions) {
		o.timeout = d
	}
}

// dispatchOptions configure Dispatch and the message walkers.
type dispatchOptions struct {
	fixJSONArgs     bool
	caseInsensitive bool
	prefix          *Prefix
	timeout         time.Duration
	logger          *slog.Logger
	executor        Executor
	choice          int
}

// DispatchOption configures Dispatch, ProcessMessage and ProcessResponse.
type DispatchOption func(*dispatchOptions)

func newDispatchOptions(opts []DispatchOption) dispatchOptions {
	o := dispatchOptions{
		fixJSONArgs: true,
		logger:      slog.New(slog.DiscardHandler),
		executor:    Sequential(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithFixJSONArgs enables or disables argument repair (trailing commas,
// comma-separated lists). Enabled by default.
func WithFixJSONArgs(enable bool) DispatchOption {
	return func(o *dispatchOptions) {
		o.fixJSONArgs = enable
	}
}

// WithCaseInsensitiveMatch matches tool names ignoring case.
func WithCaseInsensitiveMatch() DispatchOption {
	return func(o *dispatchOptions) {
		o.caseInsensitive = true
	}
}

// WithPrefix expects calls against prefix-composed schemas (see InsertPrefix).
func WithPrefix(p *Prefix) DispatchOption {
	return func(o *dispatchOptions) {
		o.prefix = p
	}
}

// WithCallTimeout bounds each tool invocation. A tool's own timeout wins.
func WithCallTimeout(d time.Duration) DispatchOption {
	return func(o *dispatchOptions) {
		o.timeout = d
	}
}

// WithLogger sets the logger for dispatch outcomes. Defaults to a discard logger.
func WithLogger(logger *slog.Logger) DispatchOption {
	return func(o *dispatchOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithExecutor sets how the calls of one message are run. Defaults to Sequential.
func WithExecutor(e Executor) DispatchOption {
	return func(o *dispatchOptions) {
		if e != nil {
			o.executor = e
		}
	}
}

// WithChoice selects the response choice processed by ProcessResponse and
// ProcessOneToolCall. Defaults to 0.
func WithChoice(n int) DispatchOption {
	return func(o *dispatchOptions) {
		o.choice = n
	}
}

// ToolboxOption configures a Toolbox.
type ToolboxOption func(*toolboxOptions)

type toolboxOptions struct {
	strict          bool
	caseInsensitive bool
	prefix          *Prefix
	timeout         time.Duration
	maxConcurrency  int
	logger          *slog.Logger
	fixJSONArgs     bool
}

// WithToolboxStrict builds every tool registered through the Toolbox in strict mode.
func WithToolboxStrict() ToolboxOption {
	return func(o *toolboxOptions) {
		o.strict = true
	}
}

// WithToolboxCaseInsensitive lowercases default tool names and matches calls ignoring case.
func WithToolboxCaseInsensitive() ToolboxOption {
	return func(o *toolboxOptions) {
		o.caseInsensitive = true
	}
}

// WithToolboxPrefix composes every exported tool definition with p.
func WithToolboxPrefix(p *Prefix) ToolboxOption {
	return func(o *toolboxOptions) {
		o.prefix = p
	}
}

// WithDefaultTimeout sets the default execution timeout for tools.
func WithDefaultTimeout(d time.Duration) ToolboxOption {
	return func(o *toolboxOptions) {
		o.timeout = d
	}
}

// WithMaxConcurrency runs the calls of one message in parallel, at most n at a time.
// Pass 0 or negative to run them sequentially.
func WithMaxConcurrency(n int) ToolboxOption {
	return func(o *toolboxOptions) {
		o.maxConcurrency = n
	}
}

// WithToolboxLogger sets the logger used for dispatch outcomes.
func WithToolboxLogger(logger *slog.Logger) ToolboxOption {
	return func(o *toolboxOptions) {
		o.logger = logger
	}
}

// WithFixJSON enables or disables argument repair. Enabled by default.
func WithFixJSON(enable bool) ToolboxOption {
	return func(o *toolboxOptions) {
		o.fixJSONArgs = enable
	}
}

package llmtools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Toolbox owns a set of tools, their name mapping and the dispatch settings shared
// by every call. It is safe for concurrent use.
type Toolbox struct {
	tools       map[string]Tool // wrapped with middlewares, used by Dispatch
	rawTools    map[string]Tool // unwrapped, used by Use() to re-apply middlewares from scratch
	order       []string
	names       *NameMapping
	opts        toolboxOptions
	done        chan struct{}
	running     sync.WaitGroup
	mu          sync.RWMutex
	middlewares []Middleware
}

// NewToolbox creates a Toolbox with the given options.
func NewToolbox(opts ...ToolboxOption) *Toolbox {
	o := toolboxOptions{fixJSONArgs: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return &Toolbox{
		tools:    make(map[string]Tool),
		rawTools: make(map[string]Tool),
		names:    &NameMapping{},
		opts:     o,
		done:     make(chan struct{}),
	}
}

// Register adds a tool. Stored middlewares (see Use) are applied to the tool before registration.
// A second tool with the same name is rejected with ErrAlreadyRegistered.
func (tb *Toolbox) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("%w: nil tool", ErrMissingName)
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	name := t.Name()
	if _, ok := tb.rawTools[name]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	if md, ok := t.(ToolMetadata); ok {
		tb.names.Add(md.Identifier(), name)
	}
	tb.rawTools[name] = t
	tb.tools[name] = tb.wrap(t)
	tb.order = append(tb.order, name)
	return nil
}

// RegisterFunction builds a tool from fn with the toolbox's strict and case settings and registers it.
func RegisterFunction[T any, R any](tb *Toolbox, fn func(ctx context.Context, args T) (R, error), opts ...ToolOption) (*Function, error) {
	f, err := NewFunction(fn, append(tb.toolOptions(), opts...)...)
	if err != nil {
		return nil, err
	}
	if err := tb.Register(f); err != nil {
		return nil, err
	}
	return f, nil
}

// RegisterModel builds an identity tool from record type T and registers it.
func RegisterModel[T any](tb *Toolbox, opts ...ToolOption) (*Function, error) {
	f, err := NewModel[T](append(tb.toolOptions(), opts...)...)
	if err != nil {
		return nil, err
	}
	if err := tb.Register(f); err != nil {
		return nil, err
	}
	return f, nil
}

func (tb *Toolbox) toolOptions() []ToolOption {
	var opts []ToolOption
	if tb.opts.strict {
		opts = append(opts, WithStrict())
	}
	if tb.opts.caseInsensitive {
		opts = append(opts, WithCaseInsensitive())
	}
	return opts
}

func (tb *Toolbox) wrap(t Tool) Tool {
	for i := len(tb.middlewares) - 1; i >= 0; i-- {
		t = tb.middlewares[i](t)
	}
	return t
}

// Use stores the given middlewares and reapplies them from scratch to all registered tools (onion order:
// first middleware is outermost). Tools registered after Use will also get these middlewares applied.
// Calling Use multiple times replaces the middleware chain and rewraps from raw tools, avoiding double-wrapping.
func (tb *Toolbox) Use(middlewares ...Middleware) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.middlewares = middlewares
	for name, raw := range tb.rawTools {
		tb.tools[name] = tb.wrap(raw)
	}
}

// Tool returns the tool with the given name (after middlewares are applied), or (nil, false) if not found.
func (tb *Toolbox) Tool(name string) (Tool, bool) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	t, ok := tb.tools[name]
	return t, ok
}

// Tools returns all registered tools in registration order.
func (tb *Toolbox) Tools() []Tool {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	out := make([]Tool, 0, len(tb.order))
	for _, name := range tb.order {
		out = append(out, tb.tools[name])
	}
	return out
}

// ToolDefs returns the request payload entries of all tools, composed with the
// toolbox prefix when one is configured.
func (tb *Toolbox) ToolDefs() ([]ToolDef, error) {
	tools := tb.Tools()
	if tb.opts.prefix == nil {
		return ToolDefs(tools...), nil
	}
	out := make([]ToolDef, 0, len(tools))
	for _, t := range tools {
		s, err := InsertPrefix(tb.opts.prefix, t.Schema(), tb.opts.caseInsensitive)
		if err != nil {
			return nil, err
		}
		out = append(out, ToolDef{Type: "function", Function: s})
	}
	return out, nil
}

// Names returns the name mapping of the registered tools.
func (tb *Toolbox) Names() *NameMapping { return tb.names }

// InternalName returns the Go identifier behind an exposed tool name, or external itself when unknown.
func (tb *Toolbox) InternalName(external string) string {
	if internal, ok := tb.names.Internal(external); ok {
		return internal
	}
	return external
}

func (tb *Toolbox) dispatchOptions(opts []DispatchOption) dispatchOptions {
	base := []DispatchOption{
		WithFixJSONArgs(tb.opts.fixJSONArgs),
		WithCallTimeout(tb.opts.timeout),
		WithLogger(tb.opts.logger),
	}
	if tb.opts.caseInsensitive {
		base = append(base, WithCaseInsensitiveMatch())
	}
	if tb.opts.prefix != nil {
		base = append(base, WithPrefix(tb.opts.prefix))
	}
	if tb.opts.maxConcurrency > 0 {
		base = append(base, WithExecutor(NewPool(tb.opts.maxConcurrency)))
	}
	return newDispatchOptions(append(base, opts...))
}

// acquire registers an in-flight dispatch; it fails after Shutdown.
func (tb *Toolbox) acquire() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	select {
	case <-tb.done:
		return false
	default:
	}
	tb.running.Add(1)
	return true
}

func shutdownResult(call ToolCall) ToolResult {
	return ToolResult{CallID: call.ID, Name: call.Name, Outcome: Failure{Err: ErrShutdown}}
}

// Dispatch runs one call against the registered tools.
func (tb *Toolbox) Dispatch(ctx context.Context, call ToolCall, opts ...DispatchOption) ToolResult {
	if !tb.acquire() {
		return shutdownResult(call)
	}
	defer tb.running.Done()
	o := tb.dispatchOptions(opts)
	return dispatch(ctx, call, tb.Tools(), &o)
}

// ProcessMessage dispatches every call of msg against the registered tools.
func (tb *Toolbox) ProcessMessage(ctx context.Context, msg Message, opts ...DispatchOption) []ToolResult {
	return tb.process(ctx, msg.Calls(), opts)
}

// ProcessResponse dispatches the calls of the selected choice of resp.
func (tb *Toolbox) ProcessResponse(ctx context.Context, resp *Response, opts ...DispatchOption) []ToolResult {
	o := tb.dispatchOptions(opts)
	msg, ok := choiceMessage(resp, o.choice)
	if !ok {
		return nil
	}
	return tb.process(ctx, msg.Calls(), opts)
}

// ProcessOneToolCall dispatches only the call at index of the selected choice of resp.
// It reports false when the choice or the index is out of range.
func (tb *Toolbox) ProcessOneToolCall(ctx context.Context, resp *Response, index int, opts ...DispatchOption) (ToolResult, bool) {
	o := tb.dispatchOptions(opts)
	msg, ok := choiceMessage(resp, o.choice)
	if !ok {
		return ToolResult{}, false
	}
	calls := msg.Calls()
	if index < 0 || index >= len(calls) {
		return ToolResult{}, false
	}
	if !tb.acquire() {
		return shutdownResult(calls[index]), true
	}
	defer tb.running.Done()
	return dispatch(ctx, calls[index], tb.Tools(), &o), true
}

func (tb *Toolbox) process(ctx context.Context, calls []ToolCall, opts []DispatchOption) []ToolResult {
	if !tb.acquire() {
		out := make([]ToolResult, len(calls))
		for i, c := range calls {
			out[i] = shutdownResult(c)
		}
		return out
	}
	defer tb.running.Done()
	o := tb.dispatchOptions(opts)
	return processCalls(ctx, calls, tb.Tools(), &o)
}

// Shutdown closes the toolbox for new calls and waits for in-flight dispatches or ctx to cancel.
func (tb *Toolbox) Shutdown(ctx context.Context) error {
	tb.mu.Lock()
	select {
	case <-tb.done:
		tb.mu.Unlock()
		return nil
	default:
		close(tb.done)
	}
	tb.mu.Unlock()
	done := make(chan struct{})
	go func() {
		tb.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

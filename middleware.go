package llmtools

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

// Middleware wraps a Tool with cross-cutting behavior (logging, recovery, timeout).
type Middleware func(Tool) Tool

// WithLogging returns a middleware that logs start, end, duration, and errors of Invoke.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Tool) Tool {
		return &loggingTool{toolBase: toolBase{next: next}, logger: logger}
	}
}

// WithRecovery returns a middleware that turns a panic in Invoke into an *InvocationError.
// Dispatch recovers on its own; use it when calling Invoke directly.
func WithRecovery() Middleware {
	return func(next Tool) Tool {
		return &recoveryTool{toolBase{next: next}}
	}
}

// WithTimeoutMiddleware returns a middleware that enforces a per-tool timeout (overrides the dispatch
// timeout for this tool). Named with "Middleware" suffix to avoid collision with ToolOption WithTimeout.
// Dispatch reads it through ToolMetadata.Timeout; a caller's own ctx deadline still applies.
func WithTimeoutMiddleware(d time.Duration) Middleware {
	return func(next Tool) Tool {
		return &timeoutTool{toolBase: toolBase{next: next}, timeout: d}
	}
}

// toolBase delegates Tool and ToolMetadata to the wrapped Tool; used by middleware wrappers.
type toolBase struct{ next Tool }

func (b *toolBase) Name() string                       { return b.next.Name() }
func (b *toolBase) Description() string                { return b.next.Description() }
func (b *toolBase) Schema() FunctionSchema             { return b.next.Schema() }
func (b *toolBase) Parameters() []ParameterSpec        { return b.next.Parameters() }
func (b *toolBase) Validate(args map[string]any) error { return b.next.Validate(args) }

func (b *toolBase) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return b.next.Invoke(ctx, args)
}

func (b *toolBase) Identifier() string {
	if tm, ok := b.next.(ToolMetadata); ok {
		return tm.Identifier()
	}
	return b.next.Name()
}

func (b *toolBase) Timeout() time.Duration {
	if tm, ok := b.next.(ToolMetadata); ok {
		return tm.Timeout()
	}
	return 0
}

type loggingTool struct {
	toolBase
	logger *slog.Logger
}

func (m *loggingTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	m.logger.InfoContext(ctx, "tool start", "tool", m.next.Name())
	start := time.Now()
	res, err := m.next.Invoke(ctx, args)
	dur := time.Since(start)
	if err != nil {
		m.logger.ErrorContext(ctx, "tool error", "tool", m.next.Name(), "duration", dur, "error", err)
		return nil, err
	}
	m.logger.InfoContext(ctx, "tool end", "tool", m.next.Name(), "duration", dur)
	return res, nil
}

type recoveryTool struct{ toolBase }

func (r *recoveryTool) Invoke(ctx context.Context, args map[string]any) (res any, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = &InvocationError{Tool: r.next.Name(), Err: &panicError{p: p}, Stack: string(debug.Stack())}
		}
	}()
	return r.next.Invoke(ctx, args)
}

type timeoutTool struct {
	toolBase
	timeout time.Duration
}

func (t *timeoutTool) Timeout() time.Duration {
	if t.timeout > 0 {
		return t.timeout
	}
	return t.toolBase.Timeout()
}

func (t *timeoutTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if t.timeout <= 0 {
		return t.next.Invoke(ctx, args)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Invoke(ctx, args)
}

var (
	_ Tool         = (*loggingTool)(nil)
	_ ToolMetadata = (*recoveryTool)(nil)
	_ ToolMetadata = (*timeoutTool)(nil)
)

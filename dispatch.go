package llmtools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
)

// Dispatch resolves call against tools, repairs and validates its arguments and invokes
// the matching tool. It never panics and never returns an error: every failure is
// captured in the Failure outcome of the returned ToolResult.
func Dispatch(ctx context.Context, call ToolCall, tools []Tool, opts ...DispatchOption) ToolResult {
	o := newDispatchOptions(opts)
	return dispatch(ctx, call, tools, &o)
}

func dispatch(ctx context.Context, call ToolCall, tools []Tool, o *dispatchOptions) ToolResult {
	start := time.Now()
	res := ToolResult{CallID: call.ID, Name: call.Name}
	res.Outcome = run(ctx, call, tools, o, &res)
	logResult(ctx, o.logger, res, time.Since(start))
	return res
}

func run(ctx context.Context, call ToolCall, tools []Tool, o *dispatchOptions, res *ToolResult) Outcome {
	args, soft, err := parseArguments(call.Arguments, o.fixJSONArgs)
	if soft != nil {
		res.SoftErrors = append(res.SoftErrors, soft)
	}
	if err != nil {
		return Failure{Err: err}
	}
	res.Arguments = args

	if o.prefix != nil {
		name, ok := o.prefix.stripName(call.Name, o.caseInsensitive)
		if !ok {
			res.SoftErrors = append(res.SoftErrors, fmt.Errorf("%w: %q", ErrPrefixMismatch, call.Name))
		}
		res.Name = name
	}

	tool := resolve(res.Name, tools, o.caseInsensitive)
	if tool == nil {
		return Failure{Err: fmt.Errorf("%w: %q", ErrNoMatchingTool, res.Name)}
	}
	res.Tool = tool

	if o.prefix != nil {
		prefix, err := o.prefix.extract(args)
		if err != nil {
			res.SoftErrors = append(res.SoftErrors, fmt.Errorf("%w: %w", ErrInvalidPrefix, err))
		} else {
			res.Prefix = prefix
		}
	}

	params := tool.Parameters()
	if o.fixJSONArgs {
		res.SoftErrors = append(res.SoftErrors, coerceLists(args, params)...)
	}
	res.SoftErrors = append(res.SoftErrors, dropUnrecognized(args, params)...)
	fillDefaults(args, params)

	if err := safeValidate(tool, args); err != nil {
		return Failure{Err: err}
	}
	return invoke(ctx, tool, args, o.timeout)
}

// resolve returns the first tool named name.
func resolve(name string, tools []Tool, caseInsensitive bool) Tool {
	for _, t := range tools {
		if t == nil {
			continue
		}
		if t.Name() == name || (caseInsensitive && strings.EqualFold(t.Name(), name)) {
			return t
		}
	}
	return nil
}

// dropUnrecognized removes keys the tool does not declare. Tools without
// declared parameters (raw schemas with no properties) accept nothing.
func dropUnrecognized(args map[string]any, params []ParameterSpec) []error {
	declared := make(map[string]struct{}, len(params))
	for _, p := range params {
		declared[p.Name] = struct{}{}
	}
	var soft []error
	for key := range args {
		if _, ok := declared[key]; !ok {
			delete(args, key)
			soft = append(soft, fmt.Errorf("%w: %q", ErrUnrecognizedField, key))
		}
	}
	return soft
}

func fillDefaults(args map[string]any, params []ParameterSpec) {
	for _, p := range params {
		if !p.HasDefault {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			args[p.Name] = p.Default
		}
	}
}

func safeValidate(tool Tool, args map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ClientError{Reason: fmt.Sprint(r), Err: ErrValidation, Cause: &panicError{p: r}}
		}
	}()
	if err := tool.Validate(args); err != nil {
		if IsClientError(err) {
			return err
		}
		return &ClientError{Reason: err.Error(), Err: ErrValidation, Cause: err}
	}
	return nil
}

func invoke(ctx context.Context, tool Tool, args map[string]any, fallback time.Duration) (out Outcome) {
	timeout := fallback
	if md, ok := tool.(ToolMetadata); ok && md.Timeout() > 0 {
		timeout = md.Timeout()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			out = Failure{
				Err:   &InvocationError{Tool: tool.Name(), Err: &panicError{p: r}, Stack: stack},
				Stack: stack,
			}
		}
	}()
	v, err := tool.Invoke(ctx, args)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		if IsClientError(err) {
			return Failure{Err: err}
		}
		var ie *InvocationError
		if errors.As(err, &ie) {
			return Failure{Err: err, Stack: ie.Stack}
		}
		return Failure{Err: &InvocationError{Tool: tool.Name(), Err: err}}
	}
	return Output{Value: v}
}

func logResult(ctx context.Context, logger *slog.Logger, res ToolResult, d time.Duration) {
	attrs := []slog.Attr{
		slog.String("tool", res.Name),
		slog.String("call_id", res.CallID),
		slog.Duration("duration", d),
	}
	if len(res.SoftErrors) > 0 {
		attrs = append(attrs, slog.Any("soft_errors", res.SoftError()))
	}
	if err := res.Err(); err != nil {
		attrs = append(attrs, slog.Any("error", err))
		logger.LogAttrs(ctx, slog.LevelWarn, "tool call failed", attrs...)
		return
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "tool call dispatched", attrs...)
}

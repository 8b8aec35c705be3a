package llmtools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_RoundTrip(t *testing.T) {
	t.Parallel()
	add := mustFunction(NewFunction(Add))
	res := Dispatch(context.Background(), ToolCall{ID: "call_1", Name: "Add", Arguments: `{"a":1,"b":2}`}, []Tool{nil, add})
	require.NoError(t, res.Err())
	out, ok := res.Output()
	require.True(t, ok)
	assert.Equal(t, 3, out)
	assert.Equal(t, "call_1", res.CallID)
	assert.Equal(t, "Add", res.Name)
	assert.Same(t, add, res.Tool)
	assert.Empty(t, res.SoftErrors)
	assert.Equal(t, map[string]any{"a": json.Number("1"), "b": json.Number("2")}, res.Arguments)
	assert.Equal(t, "3", res.Message().Content)
}

func TestDispatch_FirstMatchWins(t *testing.T) {
	t.Parallel()
	first := &minTool{name: "dup", invoke: func(context.Context, map[string]any) (any, error) { return "first", nil }}
	second := &minTool{name: "dup", invoke: func(context.Context, map[string]any) (any, error) { return "second", nil }}
	res := Dispatch(context.Background(), ToolCall{Name: "dup"}, []Tool{first, second})
	out, _ := res.Output()
	assert.Equal(t, "first", out)
}

func TestDispatch_TrailingComma(t *testing.T) {
	t.Parallel()
	add := mustFunction(NewFunction(Add))
	call := ToolCall{ID: "1", Name: "Add", Arguments: `{"a":1,"b":2,}`}

	res := Dispatch(context.Background(), call, []Tool{add})
	out, ok := res.Output()
	require.True(t, ok)
	assert.Equal(t, 3, out)
	require.Len(t, res.SoftErrors, 1)
	assert.ErrorIs(t, res.SoftErrors[0], ErrJSONRepaired)

	res = Dispatch(context.Background(), call, []Tool{add}, WithFixJSONArgs(false))
	err := res.Err()
	require.ErrorIs(t, err, ErrMalformedArguments)
	var syntaxErr *json.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Nil(t, res.Tool)
	assert.Nil(t, res.Arguments)
}

func TestDispatch_ListCoercion(t *testing.T) {
	t.Parallel()
	greet := mustFunction(NewFunction(Greet))
	for _, args := range []string{`{"names":"John, Doe"}`, `{"names":"[\"John\",\"Doe\"]"}`} {
		t.Run(args, func(t *testing.T) {
			t.Parallel()
			res := Dispatch(context.Background(), ToolCall{Name: "Greet", Arguments: args}, []Tool{greet})
			require.NoError(t, res.Err())
			out, _ := res.Output()
			assert.Equal(t, []string{"John", "Doe"}, out)
			require.Len(t, res.SoftErrors, 1)
			assert.ErrorIs(t, res.SoftErrors[0], ErrListCoerced)
		})
	}

	res := Dispatch(context.Background(), ToolCall{Name: "Greet", Arguments: `{"names":"John, Doe"}`}, []Tool{greet},
		WithFixJSONArgs(false))
	require.ErrorIs(t, res.Err(), ErrValidation, "no coercion without repair")
}

type sumArgs struct {
	Nums    []int     `json:"nums"`
	Weights []float64 `json:"weights,omitempty"`
}

func sum(_ context.Context, a sumArgs) (float64, error) {
	total := 0.0
	for i, n := range a.Nums {
		w := 1.0
		if i < len(a.Weights) {
			w = a.Weights[i]
		}
		total += float64(n) * w
	}
	return total, nil
}

func TestDispatch_ListCoercionTyped(t *testing.T) {
	t.Parallel()
	tool := mustFunction(NewFunction(sum))
	res := Dispatch(context.Background(), ToolCall{Name: "sum", Arguments: `{"nums":"1, 2","weights":"0.5,2"}`}, []Tool{tool})
	require.NoError(t, res.Err())
	out, _ := res.Output()
	assert.InDelta(t, 4.5, out, 1e-9)
	assert.Len(t, res.SoftErrors, 2)

	res = Dispatch(context.Background(), ToolCall{Name: "sum", Arguments: `{"nums":"1, two"}`}, []Tool{tool})
	require.ErrorIs(t, res.Err(), ErrValidation)
	assert.NotContains(t, res.Message().Content, "file://")
}

func TestDispatch_CaseInsensitive(t *testing.T) {
	t.Parallel()
	user := mustFunction(NewModel[User]())
	call := ToolCall{Name: "user", Arguments: `{"name":"Ann"}`}

	res := Dispatch(context.Background(), call, []Tool{user})
	require.ErrorIs(t, res.Err(), ErrNoMatchingTool)

	res = Dispatch(context.Background(), call, []Tool{user}, WithCaseInsensitiveMatch())
	require.NoError(t, res.Err())
	out, _ := res.Output()
	assert.Equal(t, User{Name: "Ann"}, out)
	assert.Equal(t, "user", res.Name)
	assert.Equal(t, "user created", res.Message().Content)
}

func TestDispatch_CreatedMarkerUsesToolName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		tool *Function
		call string
	}{
		{"lowercased", mustFunction(NewModel[User](WithCaseInsensitive())), "user"},
		{"renamed", mustFunction(NewModel[User](WithName("make_user"))), "make_user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := Dispatch(context.Background(), ToolCall{Name: tt.call, Arguments: `{"name":"Ann"}`}, []Tool{tt.tool})
			require.NoError(t, res.Err())
			assert.Equal(t, tt.call+" created", res.Message().Content)
		})
	}
}

func TestDispatch_NoMatchingTool(t *testing.T) {
	t.Parallel()
	add := mustFunction(NewFunction(Add))
	res := Dispatch(context.Background(), ToolCall{ID: "x", Name: "Sub", Arguments: `{"a":1}`}, []Tool{add})
	err := res.Err()
	require.ErrorIs(t, err, ErrNoMatchingTool)
	assert.Contains(t, err.Error(), `"Sub"`)
	assert.Nil(t, res.Tool)
	assert.Equal(t, map[string]any{"a": json.Number("1")}, res.Arguments)

	res = Dispatch(context.Background(), ToolCall{Name: "Add"}, nil)
	require.ErrorIs(t, res.Err(), ErrNoMatchingTool)
}

func TestDispatch_ValidationFailure(t *testing.T) {
	t.Parallel()
	add := mustFunction(NewFunction(Add))
	tests := []struct {
		name string
		args string
	}{
		{"wrong type", `{"a":"one","b":2}`},
		{"missing field", `{"a":1}`},
		{"not an object", `"a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := Dispatch(context.Background(), ToolCall{Name: "Add", Arguments: tt.args}, []Tool{add})
			err := res.Err()
			require.Error(t, err)
			assert.True(t, IsClientError(err))
			assert.False(t, IsInvocationError(err))
		})
	}
}

func TestDispatch_UnrecognizedField(t *testing.T) {
	t.Parallel()
	add := mustFunction(NewFunction(Add))
	res := Dispatch(context.Background(), ToolCall{Name: "Add", Arguments: `{"a":1,"b":2,"c":3}`}, []Tool{add})
	out, ok := res.Output()
	require.True(t, ok)
	assert.Equal(t, 3, out)
	require.Len(t, res.SoftErrors, 1)
	assert.ErrorIs(t, res.SoftErrors[0], ErrUnrecognizedField)
	assert.NotContains(t, res.Arguments, "c")
}

func TestDispatch_DefaultFilled(t *testing.T) {
	t.Parallel()
	weather := mustFunction(NewFunction(GetWeather))
	res := Dispatch(context.Background(), ToolCall{Name: "GetWeather", Arguments: `{"city":"Paris"}`}, []Tool{weather})
	require.NoError(t, res.Err())
	out, _ := res.Output()
	assert.Equal(t, "22 celsius in Paris", out)
	assert.Equal(t, "celsius", res.Arguments["unit"])
}

func TestDispatch_Panic(t *testing.T) {
	t.Parallel()
	tool := &minTool{name: "boom", invoke: func(context.Context, map[string]any) (any, error) {
		panic("kaboom")
	}}
	res := Dispatch(context.Background(), ToolCall{Name: "boom"}, []Tool{tool})
	err := res.Err()
	require.ErrorIs(t, err, ErrInvocation)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Contains(t, res.StackTrace(), "goroutine")
	var ie *InvocationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, res.StackTrace(), ie.Stack)
}

func TestDispatch_RecoveryMiddlewareKeepsStack(t *testing.T) {
	t.Parallel()
	tool := WithRecovery()(&minTool{name: "boom", invoke: func(context.Context, map[string]any) (any, error) {
		panic("kaboom")
	}})
	res := Dispatch(context.Background(), ToolCall{Name: "boom"}, []Tool{tool})
	var ie *InvocationError
	require.ErrorAs(t, res.Err(), &ie)
	assert.NotErrorIs(t, ie.Err, ErrInvocation, "not wrapped twice")
	assert.NotEmpty(t, res.StackTrace())
}

func TestDispatch_ValidatePanic(t *testing.T) {
	t.Parallel()
	tool := &minTool{name: "v", validate: func(map[string]any) error { panic("bad validator") }}
	res := Dispatch(context.Background(), ToolCall{Name: "v"}, []Tool{tool})
	require.ErrorIs(t, res.Err(), ErrValidation)
	assert.Contains(t, res.Err().Error(), "bad validator")
}

func TestDispatch_ToolErrors(t *testing.T) {
	t.Parallel()
	backend := errors.New("backend unavailable")
	tests := []struct {
		name         string
		err          error
		wantClient   bool
		wantInvocate bool
	}{
		{"plain error", backend, false, true},
		{"client error", &ClientError{Reason: "bad id", Err: ErrValidation}, true, false},
		{"invocation error", &InvocationError{Tool: "t", Err: backend}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tool := &minTool{name: "t", invoke: func(context.Context, map[string]any) (any, error) {
				return nil, tt.err
			}}
			res := Dispatch(context.Background(), ToolCall{Name: "t"}, []Tool{tool})
			err := res.Err()
			require.Error(t, err)
			assert.Equal(t, tt.wantClient, IsClientError(err))
			assert.Equal(t, tt.wantInvocate, IsInvocationError(err))
			assert.Empty(t, res.StackTrace())
		})
	}
}

func slowTool(name string) *minTool {
	return &minTool{name: name, invoke: func(ctx context.Context, _ map[string]any) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "late", nil
		}
	}}
}

func TestDispatch_Timeout(t *testing.T) {
	t.Parallel()
	res := Dispatch(context.Background(), ToolCall{Name: "slow"}, []Tool{slowTool("slow")},
		WithCallTimeout(20*time.Millisecond))
	err := res.Err()
	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, ErrInvocation)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatch_ToolTimeoutWins(t *testing.T) {
	t.Parallel()
	tool := WithTimeoutMiddleware(20 * time.Millisecond)(slowTool("slow"))
	start := time.Now()
	res := Dispatch(context.Background(), ToolCall{Name: "slow"}, []Tool{tool}, WithCallTimeout(time.Hour))
	require.ErrorIs(t, res.Err(), ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDispatch_Prefix(t *testing.T) {
	t.Parallel()
	p, err := NewPrefix[Thought]()
	require.NoError(t, err)
	add := mustFunction(NewFunction(Add))

	res := Dispatch(context.Background(), ToolCall{
		Name:      "Thought_and_Add",
		Arguments: `{"reasoning":"sum them","a":1,"b":2}`,
	}, []Tool{add}, WithPrefix(p))
	require.NoError(t, res.Err())
	assert.Empty(t, res.SoftErrors)
	assert.Equal(t, "Add", res.Name)
	assert.Equal(t, Thought{Reasoning: "sum them"}, res.Prefix)
	out, _ := res.Output()
	assert.Equal(t, 3, out)
	assert.NotContains(t, res.Arguments, "reasoning")
}

func TestDispatch_PrefixSoftErrors(t *testing.T) {
	t.Parallel()
	p, err := NewPrefix[Thought]()
	require.NoError(t, err)
	add := mustFunction(NewFunction(Add))

	res := Dispatch(context.Background(), ToolCall{Name: "Add", Arguments: `{"a":1,"b":2}`}, []Tool{add}, WithPrefix(p))
	require.NoError(t, res.Err())
	require.Len(t, res.SoftErrors, 2)
	assert.ErrorIs(t, res.SoftErrors[0], ErrPrefixMismatch)
	assert.ErrorIs(t, res.SoftErrors[1], ErrInvalidPrefix)
	assert.Nil(t, res.Prefix)
	out, _ := res.Output()
	assert.Equal(t, 3, out)

	res = Dispatch(context.Background(), ToolCall{Name: "THOUGHT_AND_add", Arguments: `{"reasoning":"r","a":1,"b":2}`},
		[]Tool{add}, WithPrefix(p), WithCaseInsensitiveMatch())
	require.NoError(t, res.Err())
	assert.Equal(t, "add", res.Name)
	assert.Empty(t, res.SoftErrors)
}

func TestDispatch_Logging(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	add := mustFunction(NewFunction(Add))

	Dispatch(context.Background(), ToolCall{ID: "ok", Name: "Add", Arguments: `{"a":1,"b":2,}`}, []Tool{add}, WithLogger(logger))
	Dispatch(context.Background(), ToolCall{ID: "bad", Name: "Sub"}, []Tool{add}, WithLogger(logger))

	logs := buf.String()
	assert.Contains(t, logs, "tool call dispatched")
	assert.Contains(t, logs, "call_id=ok")
	assert.Contains(t, logs, "soft_errors=")
	assert.Contains(t, logs, "level=WARN")
	assert.Contains(t, logs, "tool call failed")
	assert.Contains(t, logs, "call_id=bad")
}

func TestDispatch_DropsUnknownAndFillsDefaults(t *testing.T) {
	t.Parallel()
	tool := &minTool{
		name:   "echo",
		params: []ParameterSpec{{Name: "text", JSONType: "string"}, {Name: "n", JSONType: "integer", Default: 1, HasDefault: true}},
		invoke: func(_ context.Context, args map[string]any) (any, error) { return args, nil },
	}
	res := Dispatch(context.Background(), ToolCall{Name: "echo", Arguments: `{"text":"hi","x":1}`}, []Tool{tool})
	out, ok := res.Output()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"text": "hi", "n": 1}, out)
}

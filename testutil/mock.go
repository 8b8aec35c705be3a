// Package testutil provides test helpers for llmtools (e.g. MockTool).
package testutil

import (
	"context"

	"github.com/skosovsky/llmtools"
)

// MockTool is a configurable Tool implementation for tests.
type MockTool struct {
	NameVal    string
	DescVal    string
	ParamsVal  []llmtools.ParameterSpec
	ValidateFn func(args map[string]any) error
	InvokeFn   func(ctx context.Context, args map[string]any) (any, error)
}

// Name returns the tool name.
func (m *MockTool) Name() string {
	if m.NameVal != "" {
		return m.NameVal
	}
	return "mock"
}

// Description returns the tool description.
func (m *MockTool) Description() string {
	return m.DescVal
}

// Schema returns a schema without parameters.
func (m *MockTool) Schema() llmtools.FunctionSchema {
	return llmtools.FunctionSchema{Name: m.Name(), Description: m.DescVal}
}

// Parameters returns ParamsVal.
func (m *MockTool) Parameters() []llmtools.ParameterSpec {
	return append([]llmtools.ParameterSpec(nil), m.ParamsVal...)
}

// Validate runs ValidateFn if set, otherwise accepts everything.
func (m *MockTool) Validate(args map[string]any) error {
	if m.ValidateFn != nil {
		return m.ValidateFn(args)
	}
	return nil
}

// Invoke runs InvokeFn if set, otherwise returns nil.
func (m *MockTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if m.InvokeFn != nil {
		return m.InvokeFn(ctx, args)
	}
	return nil, nil
}

// Ensure MockTool implements Tool.
var _ llmtools.Tool = (*MockTool)(nil)

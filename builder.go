package llmtools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/invopop/jsonschema"
)

// Function is the Tool built by NewFunction, NewModel or NewDynamicFunction.
type Function struct {
	identifier string
	schema     FunctionSchema
	params     []ParameterSpec
	validate   func(map[string]any) error
	invoke     func(context.Context, map[string]any) (any, error)
	timeout    time.Duration
}

// NewFunction builds a Tool from a typed function. The arguments record T describes the
// parameters; schema and validation are delegated to Extractor[T]. The tool name defaults
// to the Go identifier of fn; closures must be named with WithName.
// Returns an error if schema generation fails (e.g. an interface-typed field).
func NewFunction[T any, R any](fn func(ctx context.Context, args T) (R, error), opts ...ToolOption) (*Function, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil function", ErrMissingName)
	}
	o := applyToolOptions(opts)
	ext, err := NewExtractor[T](false)
	if err != nil {
		return nil, err
	}
	identifier := funcName(fn)
	description, err := resolveDescription(o.doc, ext.recordDescription())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", identifier, err)
	}
	invoke := func(ctx context.Context, args map[string]any) (any, error) {
		in, err := ext.Decode(args)
		if err != nil {
			return nil, err
		}
		return fn(ctx, in)
	}
	return newFunction(identifier, description, ext.schema, ext.params, ext.Validate, invoke, o)
}

// NewModel builds an identity Tool from record type T: invoking it returns the validated
// T value. Use it for structured extraction. The tool name defaults to the type name.
func NewModel[T any](opts ...ToolOption) (*Function, error) {
	o := applyToolOptions(opts)
	ext, err := NewExtractor[T](false)
	if err != nil {
		return nil, err
	}
	identifier := ext.typeName()
	description, err := resolveDescription(o.doc, ext.recordDescription())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", identifier, err)
	}
	invoke := func(_ context.Context, args map[string]any) (any, error) {
		return ext.Decode(args)
	}
	return newFunction(identifier, description, ext.schema, ext.params, ext.Validate, invoke, o)
}

// NewDynamicFunction builds a Tool from a raw JSON Schema object and a handler receiving
// the validated arguments. Useful for runtime API integration (e.g. OpenAPI operations).
// The root of parameters must be an object schema; an empty parameters means no arguments.
// The caller's bytes are never retained.
func NewDynamicFunction(
	name string,
	parameters json.RawMessage,
	fn func(ctx context.Context, args map[string]any) (any, error),
	opts ...ToolOption,
) (*Function, error) {
	if fn == nil {
		return nil, fmt.Errorf("dynamic tool %q: handler must not be nil", name)
	}
	o := applyToolOptions(opts)
	schema := &jsonschema.Schema{Type: "object", Properties: jsonschema.NewProperties()}
	if len(parameters) > 0 {
		schema = new(jsonschema.Schema)
		if err := json.Unmarshal(parameters, schema); err != nil {
			return nil, fmt.Errorf("dynamic tool %q: parse schema: %w", name, err)
		}
	}
	if schema.Type != "object" && schema.Properties == nil {
		return nil, fmt.Errorf("%w: dynamic tool %q: root schema must be an object", ErrInvalidRecordType, name)
	}
	stripSchemaIDs(schema)
	PurgeTitles(schema)
	schema, err := normalizeSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("dynamic tool %q: %w", name, err)
	}
	validator, err := compileValidator(schema)
	if err != nil {
		return nil, fmt.Errorf("dynamic tool %q: compile schema: %w", name, err)
	}
	description, err := resolveDescription(o.doc, "")
	if err != nil {
		return nil, err
	}
	validate := func(args map[string]any) error {
		if args == nil {
			args = map[string]any{}
		}
		return validateAgainstSchema(validator, args)
	}
	invoke := func(ctx context.Context, args map[string]any) (any, error) {
		if args == nil {
			args = map[string]any{}
		}
		return fn(ctx, args)
	}
	return newFunction(name, description, schema, schemaParameters(schema), validate, invoke, o)
}

// newFunction resolves the exposed name and description, applies the custom schema and
// strict options, and records the name mapping.
func newFunction(
	identifier, description string,
	params *jsonschema.Schema,
	specs []ParameterSpec,
	validate func(map[string]any) error,
	invoke func(context.Context, map[string]any) (any, error),
	o toolOptions,
) (*Function, error) {
	f := &Function{
		identifier: identifier,
		params:     specs,
		validate:   validate,
		invoke:     invoke,
		timeout:    o.timeout,
	}
	if o.schema != nil {
		if o.name != "" || o.description != "" {
			return nil, ErrSchemaOverride
		}
		if o.schema.Name == "" {
			return nil, fmt.Errorf("%w: custom schema has no name", ErrMissingName)
		}
		custom, err := normalizeSchema(o.schema.Parameters)
		if err != nil {
			return nil, fmt.Errorf("custom schema %q: %w", o.schema.Name, err)
		}
		PurgeTitles(custom)
		f.schema = FunctionSchema{
			Name:        o.schema.Name,
			Description: o.schema.Description,
			Parameters:  custom,
			Strict:      o.schema.Strict || o.strict,
		}
	} else {
		name := identifier
		if o.caseInsensitive {
			name = strings.ToLower(name)
		}
		if o.name != "" {
			name = o.name
		}
		if name == "" {
			return nil, fmt.Errorf("%w: %q, use WithName", ErrMissingName, identifier)
		}
		if o.description != "" {
			description = o.description
		}
		f.schema = FunctionSchema{
			Name:        name,
			Description: description,
			Parameters:  cloneSchema(params),
			Strict:      o.strict,
		}
	}
	if !hasProperties(f.schema.Parameters) {
		f.schema.Parameters = nil
	}
	if f.schema.Strict && f.schema.Parameters != nil {
		if err := ApplyStrict(f.schema.Parameters); err != nil {
			return nil, fmt.Errorf("%s: %w", f.schema.Name, err)
		}
	}
	if f.identifier == "" {
		f.identifier = f.schema.Name
	}
	if o.mapping != nil {
		o.mapping.Add(f.identifier, f.schema.Name)
	}
	return f, nil
}

// Name returns the name exposed to the LLM.
func (f *Function) Name() string { return f.schema.Name }

// Description returns the tool description.
func (f *Function) Description() string { return f.schema.Description }

// Schema returns a deep copy of the function schema; mutating it never affects the tool.
func (f *Function) Schema() FunctionSchema {
	s := f.schema
	if s.Parameters != nil {
		s.Parameters = cloneSchema(s.Parameters)
	}
	return s
}

// Parameters returns a copy of the tool parameters.
func (f *Function) Parameters() []ParameterSpec { return slices.Clone(f.params) }

// Validate checks decoded arguments against the tool's record.
func (f *Function) Validate(args map[string]any) error { return f.validate(args) }

// Invoke decodes args and calls the underlying function. It does not validate.
func (f *Function) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f.invoke(ctx, args)
}

// Identifier returns the Go identifier the tool was built from.
func (f *Function) Identifier() string { return f.identifier }

// Timeout returns the per-tool timeout, zero if unset.
func (f *Function) Timeout() time.Duration { return f.timeout }

// schemaParameters derives parameter specs from the root properties of a raw schema.
func schemaParameters(s *jsonschema.Schema) []ParameterSpec {
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	var out []ParameterSpec
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		p := ParameterSpec{Name: pair.Key, Required: required[pair.Key]}
		if prop := pair.Value; prop != nil {
			p.JSONType = prop.Type
			p.Description = prop.Description
			p.Default = prop.Default
			p.HasDefault = prop.Default != nil
			p.List = acceptsArray(prop)
			p.ItemType = arrayItemType(prop)
		}
		out = append(out, p)
	}
	return out
}

// arrayItemType returns the declared item type of the array form of s.
func arrayItemType(s *jsonschema.Schema) string {
	if s == nil {
		return ""
	}
	for _, branch := range slices.Concat([]*jsonschema.Schema{s}, s.AnyOf, s.OneOf) {
		if branch != nil && branch.Type == "array" && branch.Items != nil {
			return branch.Items.Type
		}
	}
	return ""
}

func acceptsArray(s *jsonschema.Schema) bool {
	if s == nil {
		return false
	}
	if s.Type == "array" {
		return true
	}
	for _, branch := range slices.Concat(s.AnyOf, s.OneOf) {
		if branch != nil && branch.Type == "array" {
			return true
		}
	}
	return false
}

// resolveDescription picks the documentation summary or the record's own
// description. Both being set is ambiguous.
func resolveDescription(doc, record string) (string, error) {
	summary := docSummary(doc)
	record = strings.TrimSpace(record)
	if summary != "" && record != "" {
		return "", ErrAmbiguousDescription
	}
	if summary != "" {
		return summary, nil
	}
	return record, nil
}

// docSummary returns the first paragraph of doc on a single line.
func docSummary(doc string) string {
	doc = strings.TrimSpace(doc)
	if i := strings.Index(doc, "\n\n"); i >= 0 {
		doc = doc[:i]
	}
	return strings.Join(strings.Fields(doc), " ")
}

// funcName derives the Go identifier of fn from its runtime symbol, trimming
// the package path, the receiver of method values and generic instantiation.
func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return ""
	}
	name := strings.TrimSuffix(rf.Name(), "-fm")
	name = strings.ReplaceAll(name, "[...]", "")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if isAnonymousFuncName(name) {
		return ""
	}
	return name
}

// isAnonymousFuncName matches the compiler's names for closures: "func1", "1", "gowrap2".
func isAnonymousFuncName(name string) bool {
	for _, p := range []string{"func", "gowrap", "deferwrap"} {
		if rest, ok := strings.CutPrefix(name, p); ok && rest != "" && isDigits(rest) {
			return true
		}
	}
	return isDigits(name)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var (
	_ Tool         = (*Function)(nil)
	_ ToolMetadata = (*Function)(nil)
)

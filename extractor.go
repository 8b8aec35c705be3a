package llmtools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	jsv "github.com/santhosh-tekuri/jsonschema/v6"
)

// Describer is implemented by argument records that carry their own description.
// It plays the role of a type docstring: it becomes the tool description unless
// WithDescription overrides it.
type Describer interface {
	ToolDescription() string
}

// Extractor provides JSON Schema generation and two-layer validation (schema + Validatable)
// for record type T without binding to the Tool interface. Use it in custom orchestrators that need
// schema export and validated parsing but not the Dispatch pipeline.
type Extractor[T any] struct {
	schema    *jsonschema.Schema
	strict    *jsonschema.Schema
	params    []ParameterSpec
	validator *jsv.Schema
}

// NewExtractor creates an Extractor for record type T. When strict is true, Schema returns
// the strict rewrite (additionalProperties: false, all properties required); validation
// always uses the generated schema.
func NewExtractor[T any](strict bool) (*Extractor[T], error) {
	t := reflect.TypeFor[T]()
	params, err := Introspect(t)
	if err != nil {
		return nil, err
	}
	schema, err := reflectSchema(t, params)
	if err != nil {
		return nil, err
	}
	PurgeTitles(schema)
	validator, err := compileValidator(schema)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", t, err)
	}
	e := &Extractor[T]{schema: schema, params: params, validator: validator}
	if strict {
		e.strict = cloneSchema(schema)
		if err := ApplyStrict(e.strict); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Schema returns a deep copy of the parameters schema.
func (e *Extractor[T]) Schema() *jsonschema.Schema {
	if e.strict != nil {
		return cloneSchema(e.strict)
	}
	return cloneSchema(e.schema)
}

// Parameters returns a copy of the introspected parameters of T.
func (e *Extractor[T]) Parameters() []ParameterSpec {
	return append([]ParameterSpec(nil), e.params...)
}

// Validate runs Layer 1 (schema) and Layer 2 (Validatable) on decoded arguments.
func (e *Extractor[T]) Validate(args map[string]any) error {
	_, err := e.decodeValid(args)
	return err
}

// Decode converts decoded arguments into T without validating them.
func (e *Extractor[T]) Decode(args map[string]any) (T, error) {
	var out T
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return out, &ClientError{Reason: err.Error(), Err: ErrValidation, Cause: err}
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, &ClientError{Reason: err.Error(), Err: ErrValidation, Cause: err}
	}
	return out, nil
}

// ParseAndValidate deserializes argsJSON into T, runs Layer 1 (schema validation) and
// Layer 2 (Validatable.Validate() if T implements it). Returns ClientError for invalid
// JSON or validation failures so the caller can pass the message to the LLM for self-correction.
func (e *Extractor[T]) ParseAndValidate(argsJSON []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(argsJSON))
	dec.UseNumber()
	var v map[string]any
	if err := dec.Decode(&v); err != nil {
		return zero, wrapJSONParseError(err)
	}
	return e.decodeValid(v)
}

func (e *Extractor[T]) decodeValid(args map[string]any) (T, error) {
	var zero T
	if args == nil {
		args = map[string]any{}
	}
	if err := validateAgainstSchema(e.validator, args); err != nil {
		return zero, err
	}
	out, err := e.Decode(args)
	if err != nil {
		return zero, err
	}
	if err := runLayer2Validation(out); err != nil {
		return zero, err
	}
	return out, nil
}

// recordDescription returns the description T reports through Describer.
func (e *Extractor[T]) recordDescription() string {
	var zero T
	if d, ok := any(zero).(Describer); ok {
		if reflect.TypeFor[T]().Kind() == reflect.Pointer {
			zero = reflect.New(reflect.TypeFor[T]().Elem()).Interface().(T)
			d = any(zero).(Describer)
		}
		return d.ToolDescription()
	}
	if d, ok := any(&zero).(Describer); ok {
		return d.ToolDescription()
	}
	return ""
}

// typeName returns the Go name of T, dereferencing pointers.
func (e *Extractor[T]) typeName() string {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

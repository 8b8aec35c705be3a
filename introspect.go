package llmtools

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

// ParameterSpec describes one parameter of a tool: a field of its argument record.
type ParameterSpec struct {
	Name string
	// Type is the Go type of the field; nil for tools built from a raw schema.
	Type reflect.Type
	// JSONType is the JSON Schema type ("string", "integer", "array", ...).
	JSONType    string
	Default     any
	HasDefault  bool
	Description string
	Required    bool
	// List reports whether the parameter accepts a JSON array (directly or as a
	// union branch). Used to repair arrays sent as comma-separated strings.
	List bool
	// ItemType is the JSON Schema type of the list elements, when known.
	ItemType string
}

var rawMessageType = reflect.TypeOf(json.RawMessage{})

// Introspect extracts the parameters of a record type: one per exported JSON
// field, in declaration order, with embedded structs flattened the way
// encoding/json does. t may be a pointer to a struct.
func Introspect(t reflect.Type) ([]ParameterSpec, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrInvalidRecordType)
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRecordType, t)
	}
	var params []ParameterSpec
	if err := collectFields(t, &params); err != nil {
		return nil, err
	}
	return params, nil
}

func collectFields(t reflect.Type, params *[]ParameterSpec) error {
	for i := range t.NumField() {
		f := t.Field(i)
		jsonTag := strings.Split(f.Tag.Get("json"), ",")
		if jsonTag[0] == "-" {
			continue
		}
		if f.Anonymous && jsonTag[0] == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				if err := collectFields(ft, params); err != nil {
					return err
				}
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		p, err := fieldParameter(f, jsonTag)
		if err != nil {
			return err
		}
		*params = append(*params, p)
	}
	return nil
}

func fieldParameter(f reflect.StructField, jsonTag []string) (ParameterSpec, error) {
	name := f.Name
	if jsonTag[0] != "" {
		name = jsonTag[0]
	}
	jsonType, err := jsonTypeOf(f.Type)
	if err == nil {
		err = checkNestedTypes(f.Type, map[reflect.Type]bool{})
	}
	if err != nil {
		return ParameterSpec{}, fmt.Errorf("parameter %q: %w", name, err)
	}
	p := ParameterSpec{
		Name:        name,
		Type:        f.Type,
		JSONType:    jsonType,
		Description: fieldDescription(f),
		List:        isListType(f.Type),
	}
	if p.List {
		p.ItemType = listItemType(f.Type)
	}
	if raw, ok := f.Tag.Lookup("default"); ok {
		def, err := parseDefault(f.Type, raw)
		if err != nil {
			return ParameterSpec{}, fmt.Errorf("%w: parameter %q default %q: %v", ErrInvalidRecordType, name, raw, err)
		}
		p.Default = def
		p.HasDefault = true
	}
	omitempty := false
	for _, opt := range jsonTag[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitempty = true
		}
	}
	p.Required = !omitempty && !p.HasDefault
	return p, nil
}

// fieldDescription reads the description tag, falling back to the tags
// understood by the schema reflector.
func fieldDescription(f reflect.StructField) string {
	if d := f.Tag.Get("description"); d != "" {
		return d
	}
	if d := f.Tag.Get("jsonschema_description"); d != "" {
		return d
	}
	for _, kw := range strings.Split(f.Tag.Get("jsonschema"), ",") {
		if d, ok := strings.CutPrefix(kw, "description="); ok {
			return d
		}
	}
	return ""
}

func parseDefault(t reflect.Type, raw string) (any, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.String {
		return raw, nil
	}
	// Decode into the field type first so a default that the tool could never
	// accept is reported at construction time.
	if err := json.Unmarshal([]byte(raw), reflect.New(t).Interface()); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// jsonTypeOf maps a Go type to its JSON Schema type. Types without a concrete
// JSON representation are rejected with ErrMissingType.
func jsonTypeOf(t reflect.Type) (string, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == rawMessageType {
		return "", nil
	}
	if s, ok := lookupCustomType(t); ok {
		return s.Type, nil
	}
	switch t.Kind() {
	case reflect.Interface:
		return "", fmt.Errorf("%w: %s", ErrMissingType, t)
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer, reflect.Invalid:
		return "", fmt.Errorf("%w: unsupported %s", ErrMissingType, t)
	case reflect.String:
		return "string", nil
	case reflect.Bool:
		return "boolean", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer", nil
	case reflect.Float32, reflect.Float64:
		return "number", nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "string", nil
		}
		return "array", nil
	case reflect.Array:
		return "array", nil
	case reflect.Map:
		return "object", nil
	case reflect.Struct:
		if t == timeType || t == urlType {
			return "string", nil
		}
		return "object", nil
	}
	return "", fmt.Errorf("%w: unsupported %s", ErrMissingType, t)
}

type schemaProvider interface {
	JSONSchema() *jsonschema.Schema
}

var schemaProviderType = reflect.TypeFor[schemaProvider]()

// checkNestedTypes walks the elements and fields reachable from t and rejects
// any without a concrete JSON type. Types that describe their own schema are
// not entered.
func checkNestedTypes(t reflect.Type, seen map[reflect.Type]bool) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if seen[t] {
		return nil
	}
	seen[t] = true
	if _, err := jsonTypeOf(t); err != nil {
		return err
	}
	if t == rawMessageType || t == timeType || t == urlType {
		return nil
	}
	if _, ok := lookupCustomType(t); ok {
		return nil
	}
	if t.Implements(schemaProviderType) || reflect.PointerTo(t).Implements(schemaProviderType) {
		return nil
	}
	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		return checkNestedTypes(t.Elem(), seen)
	case reflect.Array, reflect.Map:
		return checkNestedTypes(t.Elem(), seen)
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" || (!f.IsExported() && !f.Anonymous) {
				continue
			}
			if name == "" {
				name = f.Name
			}
			if err := checkNestedTypes(f.Type, seen); err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
		}
	}
	return nil
}

// listItemType returns the JSON type of the elements of a list type, or ""
// when the elements have no single JSON type.
func listItemType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	jsonType, err := jsonTypeOf(t.Elem())
	if err != nil {
		return ""
	}
	return jsonType
}

func isListType(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == rawMessageType {
		return false
	}
	if _, ok := lookupCustomType(t); ok {
		return false
	}
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}

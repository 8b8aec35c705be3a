package llmtools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	jsv "github.com/santhosh-tekuri/jsonschema/v6"
)

var (
	customTypesMu sync.RWMutex
	customTypes   = make(map[reflect.Type]*jsonschema.Schema)

	timeType = reflect.TypeOf(time.Time{})
	urlType  = reflect.TypeOf(url.URL{})
)

// RegisterType registers a custom Go type to be mapped to a JSON Schema type/format in generated schemas.
// emptyInstance is a value of the type to register (e.g. uuid.UUID{}, or MyMoney{}); it must not be nil.
// jsonType is the JSON Schema type (e.g. "string", "number"); it must not be empty.
// format is optional (e.g. "uuid", "decimal"). Registration is by reflect.TypeOf(emptyInstance).
// Pointer fields (*T) use the same mapping as T; call RegisterType once for the value type.
// Call RegisterType at application startup before the first NewFunction or NewExtractor.
func RegisterType(emptyInstance any, jsonType, format string) {
	if emptyInstance == nil {
		panic("llmtools: RegisterType emptyInstance must not be nil")
	}
	if jsonType == "" {
		panic("llmtools: RegisterType jsonType must not be empty")
	}
	t := reflect.TypeOf(emptyInstance)
	customTypesMu.Lock()
	defer customTypesMu.Unlock()
	customTypes[t] = &jsonschema.Schema{Type: jsonType, Format: format}
}

// lookupCustomType returns a copy of the schema registered for t.
func lookupCustomType(t reflect.Type) (*jsonschema.Schema, bool) {
	customTypesMu.RLock()
	defer customTypesMu.RUnlock()
	s, ok := customTypes[t]
	if !ok {
		return nil, false
	}
	return &jsonschema.Schema{Type: s.Type, Format: s.Format}, true
}

func customTypeMapper(t reflect.Type) *jsonschema.Schema {
	if s, ok := lookupCustomType(t); ok {
		return s
	}
	return nil
}

// reflectSchema produces the parameters schema of a record type. The root is
// expanded in place and nested named types land in $defs. Root properties are
// enriched from params (descriptions, defaults, enums) and the root required
// list is taken from params.
func reflectSchema(t reflect.Type, params []ParameterSpec) (s *jsonschema.Schema, err error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("%w: %s: %v", ErrMissingType, t, r)
		}
	}()
	r := &jsonschema.Reflector{
		Anonymous:                 true,
		AllowAdditionalProperties: true,
		ExpandedStruct:            t.Name() != "",
		Mapper:                    customTypeMapper,
	}
	s = r.ReflectFromType(t)
	s.Version = ""
	if len(s.Definitions) == 0 {
		s.Definitions = nil
	}
	if s.Properties == nil {
		s.Properties = jsonschema.NewProperties()
	}
	enrichSchemaFromStructTags(s, t, params)
	stripSchemaIDs(s)
	return normalizeSchema(s)
}

// enrichSchemaFromStructTags copies descriptions, defaults and enums onto the
// root properties and rewrites the root required list.
func enrichSchemaFromStructTags(s *jsonschema.Schema, t reflect.Type, params []ParameterSpec) {
	enums := make(map[string][]any)
	collectEnumTags(t, enums)
	required := make([]string, 0, len(params))
	for _, p := range params {
		if p.Required {
			required = append(required, p.Name)
		}
		prop, ok := s.Properties.Get(p.Name)
		if !ok || prop == nil || isBooleanSchema(prop) {
			continue
		}
		if p.Description != "" {
			prop.Description = p.Description
		}
		if p.HasDefault {
			prop.Default = p.Default
		}
		if enum, ok := enums[p.Name]; ok {
			prop.Enum = enum
		}
	}
	s.Required = required
}

func collectEnumTags(t reflect.Type, enums map[string][]any) {
	for i := range t.NumField() {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collectEnumTags(ft, enums)
			}
			continue
		}
		enumStr := f.Tag.Get("enum")
		if enumStr == "" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		parts := strings.Split(enumStr, ",")
		enum := make([]any, len(parts))
		for i, p := range parts {
			enum[i] = strings.TrimSpace(p)
		}
		enums[name] = enum
	}
}

// isBooleanSchema reports whether s is the literal true or false schema.
func isBooleanSchema(s *jsonschema.Schema) bool {
	if s.Type != "" || s.Ref != "" || s.Properties != nil || s.Items != nil ||
		len(s.AnyOf) > 0 || len(s.AllOf) > 0 || len(s.OneOf) > 0 || len(s.Definitions) > 0 {
		return false
	}
	data, err := json.Marshal(s)
	if err != nil {
		return false
	}
	return bytes.Equal(data, []byte("true")) || bytes.Equal(data, []byte("false"))
}

func falseSchema() *jsonschema.Schema {
	s := new(jsonschema.Schema)
	_ = s.UnmarshalJSON([]byte("false"))
	return s
}

// walkSchema recursively visits every object node in the schema tree
// (including $defs). Boolean nodes are not visited.
func walkSchema(s *jsonschema.Schema, visit func(*jsonschema.Schema)) {
	if s == nil || isBooleanSchema(s) {
		return
	}
	visit(s)
	for _, d := range s.Definitions {
		walkSchema(d, visit)
	}
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		walkSchema(pair.Value, visit)
	}
	for _, list := range [][]*jsonschema.Schema{s.AllOf, s.AnyOf, s.OneOf, s.PrefixItems} {
		for _, c := range list {
			walkSchema(c, visit)
		}
	}
	for _, m := range []map[string]*jsonschema.Schema{s.PatternProperties, s.DependentSchemas} {
		for _, c := range m {
			walkSchema(c, visit)
		}
	}
	for _, c := range []*jsonschema.Schema{
		s.Not, s.If, s.Then, s.Else, s.Items, s.Contains,
		s.AdditionalProperties, s.PropertyNames, s.ContentSchema,
	} {
		walkSchema(c, visit)
	}
}

// PurgeTitles removes the title keyword from every node of s. Property names
// are never touched, so a property called "title" survives. Idempotent.
func PurgeTitles(s *jsonschema.Schema) {
	walkSchema(s, func(n *jsonschema.Schema) {
		n.Title = ""
	})
}

// ApplyStrict rewrites s in place for strict structured outputs: every node
// with properties gets additionalProperties false and requires all of its
// properties, in property order. A missing or boolean node inside $defs or a
// union is rejected with ErrInvalidSchemaNode.
func ApplyStrict(s *jsonschema.Schema) error {
	return strictNode(s, "#")
}

func strictNode(s *jsonschema.Schema, path string) error {
	if s == nil || isBooleanSchema(s) {
		return nil
	}
	if s.Properties != nil {
		s.AdditionalProperties = falseSchema()
		required := make([]string, 0, s.Properties.Len())
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			required = append(required, pair.Key)
			if err := strictNode(pair.Value, path+"/properties/"+pair.Key); err != nil {
				return err
			}
		}
		s.Required = required
	}
	if err := strictNode(s.Items, path+"/items"); err != nil {
		return err
	}
	for i, c := range s.PrefixItems {
		if err := strictNode(c, fmt.Sprintf("%s/prefixItems/%d", path, i)); err != nil {
			return err
		}
	}
	for name, d := range s.Definitions {
		if err := strictRequired(d, path+"/$defs/"+name); err != nil {
			return err
		}
	}
	unions := []struct {
		kw   string
		list []*jsonschema.Schema
	}{{"anyOf", s.AnyOf}, {"allOf", s.AllOf}, {"oneOf", s.OneOf}}
	for _, u := range unions {
		for i, c := range u.list {
			if err := strictRequired(c, fmt.Sprintf("%s/%s/%d", path, u.kw, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func strictRequired(s *jsonschema.Schema, path string) error {
	if s == nil || isBooleanSchema(s) {
		return fmt.Errorf("%w: %s", ErrInvalidSchemaNode, path)
	}
	return strictNode(s, path)
}

// stripSchemaIDs removes $id and $schema so resolution does not depend on them.
func stripSchemaIDs(s *jsonschema.Schema) {
	walkSchema(s, func(n *jsonschema.Schema) {
		n.ID = ""
		n.Version = ""
	})
}

// normalizeSchema returns a deep copy of s obtained through its JSON form.
// It fails if s holds values that cannot be encoded.
func normalizeSchema(s *jsonschema.Schema) (*jsonschema.Schema, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	out := new(jsonschema.Schema)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// cloneSchema deep-copies a schema that has already been normalized.
func cloneSchema(s *jsonschema.Schema) *jsonschema.Schema {
	out, err := normalizeSchema(s)
	if err != nil {
		c := *s
		return &c
	}
	return out
}

// hasProperties reports whether s declares at least one property.
func hasProperties(s *jsonschema.Schema) bool {
	return s != nil && s.Properties.Len() > 0
}

var errNilSchema = errors.New("schema is nil")

// schemaResourceURL is absolute so the compiler does not resolve it against the
// working directory.
const schemaResourceURL = "mem:///parameters.json"

// compileValidator compiles s into a validator for decoded JSON values
// (map[string]any, []any, json.Number, ...).
func compileValidator(s *jsonschema.Schema) (*jsv.Schema, error) {
	if s == nil {
		return nil, errNilSchema
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	doc, err := jsv.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c := jsv.NewCompiler()
	if err := c.AddResource(schemaResourceURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaResourceURL)
}

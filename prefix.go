package llmtools

import (
	"fmt"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const prefixSeparator = "_and_"

// Prefix is a record whose fields are prepended to every tool schema, e.g. a
// "Thought" the LLM must fill before choosing a tool. Calls against composed
// schemas are named "{Prefix}_and_{tool}" and Dispatch splits them back apart.
type Prefix struct {
	name   string
	schema *jsonschema.Schema
	params []ParameterSpec
	decode func(map[string]any) (any, error)
}

// NewPrefix builds a Prefix from record type P.
func NewPrefix[P any]() (*Prefix, error) {
	ext, err := NewExtractor[P](false)
	if err != nil {
		return nil, err
	}
	name := ext.typeName()
	if name == "" {
		return nil, fmt.Errorf("%w: prefix record must be a named type", ErrMissingName)
	}
	return &Prefix{
		name:   name,
		schema: ext.schema,
		params: ext.params,
		decode: func(args map[string]any) (any, error) {
			return ext.decodeValid(args)
		},
	}, nil
}

// Name returns the record type name.
func (p *Prefix) Name() string { return p.name }

// Schema returns a deep copy of the prefix parameters schema.
func (p *Prefix) Schema() *jsonschema.Schema { return cloneSchema(p.schema) }

// Parameters returns a copy of the prefix parameters.
func (p *Prefix) Parameters() []ParameterSpec { return slices.Clone(p.params) }

// ToolName returns the composed name of tool.
func (p *Prefix) ToolName(tool string, caseInsensitive bool) string {
	return p.tag(caseInsensitive) + tool
}

func (p *Prefix) tag(caseInsensitive bool) string {
	name := p.name
	if caseInsensitive {
		name = strings.ToLower(name)
	}
	return name + prefixSeparator
}

// stripName removes the prefix tag from a called name.
func (p *Prefix) stripName(name string, caseInsensitive bool) (string, bool) {
	tag := p.tag(caseInsensitive)
	if len(name) < len(tag) {
		return name, false
	}
	head := name[:len(tag)]
	if head == tag || (caseInsensitive && strings.EqualFold(head, tag)) {
		return name[len(tag):], true
	}
	return name, false
}

// extract pops the prefix parameters out of args and decodes them.
func (p *Prefix) extract(args map[string]any) (any, error) {
	own := make(map[string]any, len(p.params))
	for _, param := range p.params {
		if v, ok := args[param.Name]; ok {
			own[param.Name] = v
			delete(args, param.Name)
		}
	}
	return p.decode(own)
}

// InsertPrefix composes p in front of s: the name becomes "{P}_and_{name}", the
// prefix properties come first and the required lists are concatenated. A tool
// property clashing with a prefix property is dropped. s is never mutated.
func InsertPrefix(p *Prefix, s FunctionSchema, caseInsensitive bool) (FunctionSchema, error) {
	out := FunctionSchema{
		Name:        p.ToolName(s.Name, caseInsensitive),
		Description: s.Description,
		Strict:      s.Strict,
	}
	parts := []*jsonschema.Schema{cloneSchema(p.schema), cloneSchema(s.Parameters)}
	size := 0
	for _, part := range parts {
		if part != nil {
			size += part.Properties.Len()
		}
	}
	params := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](orderedmap.WithCapacity[string, *jsonschema.Schema](size)),
	}
	defs := jsonschema.Definitions{}
	for _, part := range parts {
		if part == nil {
			continue
		}
		for pair := part.Properties.Oldest(); pair != nil; pair = pair.Next() {
			if _, taken := params.Properties.Get(pair.Key); taken {
				continue
			}
			params.Properties.Set(pair.Key, pair.Value)
		}
		for _, r := range part.Required {
			if !slices.Contains(params.Required, r) {
				params.Required = append(params.Required, r)
			}
		}
		for name, d := range part.Definitions {
			if _, taken := defs[name]; !taken {
				defs[name] = d
			}
		}
	}
	if len(defs) > 0 {
		params.Definitions = defs
	}
	if !hasProperties(params) {
		return out, nil
	}
	if out.Strict {
		if err := ApplyStrict(params); err != nil {
			return FunctionSchema{}, fmt.Errorf("%s: %w", out.Name, err)
		}
	}
	out.Parameters = params
	return out, nil
}

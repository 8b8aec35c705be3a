package llmtools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var trailingComma = regexp.MustCompile(`,\s*}`)

// repairJSON drops commas directly before a closing brace.
func repairJSON(s string) string {
	return trailingComma.ReplaceAllString(s, "}")
}

var errNotObject = errors.New("arguments must be a JSON object")

// decodeArguments decodes a JSON object, keeping numbers as json.Number.
// Blank input is an empty object.
func decodeArguments(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after arguments object")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

// parseArguments decodes the arguments of a call. With fix enabled a failed
// parse is retried once after repair and the first error is returned as soft.
func parseArguments(s string, fix bool) (args map[string]any, soft, hard error) {
	args, err := decodeArguments(s)
	if err == nil {
		return args, nil, nil
	}
	if !fix {
		return nil, nil, wrapJSONParseError(err)
	}
	repaired := repairJSON(s)
	if repaired == s {
		return nil, nil, wrapJSONParseError(err)
	}
	soft = fmt.Errorf("%w: %w", ErrJSONRepaired, err)
	args, err = decodeArguments(repaired)
	if err != nil {
		return nil, soft, wrapJSONParseError(err)
	}
	return args, soft, nil
}

// splitStringToList turns a string sent for a list parameter into a list: a
// JSON array literal is decoded, anything else is split on commas. Parts of a
// list whose items are not strings are decoded as JSON scalars when possible.
func splitStringToList(s, itemType string) []any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return []any{}
	}
	if strings.HasPrefix(trimmed, "[") {
		dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
		dec.UseNumber()
		var list []any
		if err := dec.Decode(&list); err == nil {
			return list
		}
	}
	parts := strings.Split(trimmed, ",")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if itemType == "" || itemType == "string" {
			out = append(out, p)
			continue
		}
		out = append(out, decodeListItem(p))
	}
	return out
}

// decodeListItem decodes one comma-separated part, keeping the raw text when
// it is not a single JSON value.
func decodeListItem(p string) any {
	dec := json.NewDecoder(strings.NewReader(p))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return p
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return p
	}
	return v
}

// coerceLists replaces string values of list parameters with lists and
// reports one soft error per coerced field.
func coerceLists(args map[string]any, params []ParameterSpec) []error {
	var soft []error
	for _, p := range params {
		if !p.List {
			continue
		}
		s, ok := args[p.Name].(string)
		if !ok {
			continue
		}
		args[p.Name] = splitStringToList(s, p.ItemType)
		soft = append(soft, fmt.Errorf("%w: %q", ErrListCoerced, p.Name))
	}
	return soft
}

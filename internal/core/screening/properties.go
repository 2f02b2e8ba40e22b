package screening

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Shape tags how the provider represented one logical attribute.
type Shape int

const (
	ShapeMissing Shape = iota
	// ShapeBag is an ordered list of values; the first one is canonical.
	ShapeBag
	// ShapeFlat is a single scalar stored directly under the key.
	ShapeFlat
)

// PropertyValue is the tagged union every field extraction goes through.
type PropertyValue struct {
	Shape  Shape
	Values []string
}

// First returns the canonical scalar, or nil when nothing was supplied.
func (v PropertyValue) First() *string {
	if len(v.Values) == 0 {
		return nil
	}
	first := v.Values[0]
	return &first
}

// List returns every value, never nil.
func (v PropertyValue) List() []string {
	if len(v.Values) == 0 {
		return []string{}
	}
	out := make([]string, len(v.Values))
	copy(out, v.Values)
	return out
}

// Contains reports whether any value equals needle.
func (v PropertyValue) Contains(needle string) bool {
	for _, value := range v.Values {
		if value == needle {
			return true
		}
	}
	return false
}

// RawMatch is one upstream match decoded into generic JSON values. The
// original bytes are kept so they can be stored verbatim with the audit.
type RawMatch struct {
	fields     map[string]any
	properties map[string]any
	raw        json.RawMessage
}

// ParseRawMatch decodes a single match object.
func ParseRawMatch(data []byte) (RawMatch, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return RawMatch{}, fmt.Errorf("decode match: %w", err)
	}
	if fields == nil {
		return RawMatch{}, fmt.Errorf("decode match: not an object")
	}
	props, _ := fields["properties"].(map[string]any)

	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return RawMatch{fields: fields, properties: props, raw: raw}, nil
}

// UnmarshalJSON lets RawMatch be decoded as part of a larger payload.
func (m *RawMatch) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRawMatch(data)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Raw returns the original JSON of the match.
func (m RawMatch) Raw() json.RawMessage {
	return m.raw
}

// Property resolves key from the properties bag first and falls back to a
// same-named top-level field. A fallback that is itself a list is treated
// like a bag.
func (m RawMatch) Property(key string) PropertyValue {
	if v, ok := m.properties[key]; ok {
		if pv := toPropertyValue(v); pv.Shape != ShapeMissing {
			return pv
		}
	}
	if v, ok := m.fields[key]; ok {
		return toPropertyValue(v)
	}
	return PropertyValue{}
}

// Field returns a top-level scalar field as text.
func (m RawMatch) Field(key string) *string {
	return toPropertyValue(m.fields[key]).First()
}

// Number returns a top-level numeric field.
func (m RawMatch) Number(key string) *float64 {
	switch v := m.fields[key].(type) {
	case float64:
		return &v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &f
		}
	}
	return nil
}

func toPropertyValue(v any) PropertyValue {
	switch t := v.(type) {
	case nil:
		return PropertyValue{}
	case []any:
		values := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := scalarText(item); ok {
				values = append(values, s)
			}
		}
		if len(values) == 0 {
			return PropertyValue{}
		}
		return PropertyValue{Shape: ShapeBag, Values: values}
	default:
		s, ok := scalarText(t)
		if !ok {
			return PropertyValue{}
		}
		return PropertyValue{Shape: ShapeFlat, Values: []string{s}}
	}
}

// scalarText renders a JSON scalar. Nested entities (provider adjacency
// objects) are represented by their caption.
func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case map[string]any:
		if caption, ok := t["caption"].(string); ok && strings.TrimSpace(caption) != "" {
			return strings.TrimSpace(caption), true
		}
	}
	return "", false
}

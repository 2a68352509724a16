package routing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Value is a submitted field value: either a single string or, for checkbox
// groups and multi-selects, a list of strings.
type Value struct {
	items []string
	list  bool
}

// StringValue wraps a single string.
func StringValue(s string) Value {
	return Value{items: []string{s}}
}

// ListValue wraps a multi-value field.
func ListValue(items ...string) Value {
	return Value{items: append([]string(nil), items...), list: true}
}

// IsList reports whether the value came from a multi-value field.
func (v Value) IsList() bool {
	return v.list
}

// Strings returns the individual values.
func (v Value) Strings() []string {
	return append([]string(nil), v.items...)
}

// String returns the comparable form of the value. Lists are comma-joined.
func (v Value) String() string {
	if v.list {
		return strings.Join(v.items, ",")
	}
	if len(v.items) == 0 {
		return ""
	}
	return v.items[0]
}

// MarshalJSON encodes lists as arrays and everything else as a string.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.list {
		items := v.items
		if items == nil {
			items = []string{}
		}
		return json.Marshal(items)
	}
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts strings, numbers, booleans, null and arrays of those.
// Non-string scalars keep their JSON text, so 42 becomes "42".
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}

	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode list value: %w", err)
		}
		items := make([]string, 0, len(raw))
		for _, r := range raw {
			s, err := scalarText(r)
			if err != nil {
				return err
			}
			items = append(items, s)
		}
		*v = Value{items: items, list: true}
		return nil
	}

	s, err := scalarText(data)
	if err != nil {
		return err
	}
	*v = StringValue(s)
	return nil
}

func scalarText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode string value: %w", err)
		}
		return s, nil
	}
	// numbers, booleans and nested objects are kept verbatim
	return string(raw), nil
}

// Field is one submitted name/value pair.
type Field struct {
	Name  string
	Value Value
}

// Fields is an ordered field bag. Order follows the submitted document, which
// keeps normalized-key resolution deterministic.
type Fields []Field

// Get returns the value stored under exactly name.
func (f Fields) Get(name string) (Value, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return Value{}, false
}

// Set replaces the value under name, or appends a new field.
func (f *Fields) Set(name string, value Value) {
	for i := range *f {
		if (*f)[i].Name == name {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Name: name, Value: value})
}

// Remove deletes the named fields, keeping the order of the rest.
func (f *Fields) Remove(names ...string) {
	if len(names) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := (*f)[:0]
	for _, field := range *f {
		if _, ok := drop[field.Name]; !ok {
			kept = append(kept, field)
		}
	}
	*f = kept
}

// Keys returns field names in order.
func (f Fields) Keys() []string {
	keys := make([]string, len(f))
	for i, field := range f {
		keys[i] = field.Name
	}
	return keys
}

// FieldsFromMap builds a field bag from a plain string map. Map iteration
// order is random, so callers that care about ordering should decode JSON.
func FieldsFromMap(m map[string]string) Fields {
	fields := make(Fields, 0, len(m))
	for k, v := range m {
		fields = append(fields, Field{Name: k, Value: StringValue(v)})
	}
	return fields
}

// MarshalJSON writes the bag as a JSON object in field order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		val, err := field.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order. A repeated key
// overwrites the earlier value in place.
func (f *Fields) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode fields: expected object, got %v", tok)
	}

	var out Fields
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode fields: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decode fields: expected key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode field %q: %w", name, err)
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("decode field %q: %w", name, err)
		}
		out.Set(name, v)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}

	*f = out
	return nil
}

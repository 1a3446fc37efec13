package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Attribute is a single property of a feature.
type Attribute struct {
	Key   string
	Value any
}

// Attributes is a feature's properties object with document order preserved.
// Values are decoded with json.Number for numbers so that identifiers such as
// "0001" or 12.50 survive a round trip unchanged.
type Attributes []Attribute

// Get returns the value stored under key. A key that is present with a JSON
// null value returns (nil, true).
func (a Attributes) Get(key string) (any, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present, regardless of its value.
func (a Attributes) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

// Keys returns the property names in document order.
func (a Attributes) Keys() []string {
	keys := make([]string, len(a))
	for i, attr := range a {
		keys[i] = attr.Key
	}
	return keys
}

// Set replaces the value of an existing key in place or appends a new one.
func (a *Attributes) Set(key string, value any) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attribute{Key: key, Value: value})
}

// Clone returns a copy that can be extended without touching the original.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	copy(out, a)
	return out
}

// MarshalJSON encodes the attributes as a JSON object in stored order.
func (a Attributes) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalUnescaped(attr.Key)
		if err != nil {
			return nil, err
		}
		v, err := marshalUnescaped(attr.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal property %q: %w", attr.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalUnescaped encodes v without HTML escaping so names such as
// "Ilha & Cia" are written as read.
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON decodes a JSON object keeping key order. A JSON null yields
// empty attributes. Duplicate keys keep their first position and last value.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	members, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("decode properties: %w", err)
	}
	out := make(Attributes, 0, len(members))
	for _, m := range members {
		dec := json.NewDecoder(bytes.NewReader(m.Value))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decode property %q: %w", m.Key, err)
		}
		out.Set(m.Key, v)
	}
	*a = out
	return nil
}

// rawMember is one member of a JSON object with its value left undecoded.
type rawMember struct {
	Key   string
	Value json.RawMessage
}

var errNotObject = errors.New("expected JSON object")

// decodeObject splits a JSON object into ordered members. A JSON null decodes
// to no members.
func decodeObject(data []byte) ([]rawMember, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}

	var members []rawMember
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errNotObject
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, rawMember{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return members, nil
}

// encodeObject is the inverse of decodeObject.
func encodeObject(members []rawMember) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalUnescaped(m.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if len(m.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(m.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Feature is one GeoJSON feature. Raw holds the original bytes so that
// per-season extracts can re-emit features exactly as they were read.
type Feature struct {
	Geometry   json.RawMessage
	Properties Attributes
	Raw        json.RawMessage
}

// ParseFeature decodes a single GeoJSON feature.
func ParseFeature(raw []byte) (Feature, error) {
	members, err := decodeObject(raw)
	if err != nil {
		return Feature{}, fmt.Errorf("parse feature: %w", err)
	}

	f := Feature{Raw: append(json.RawMessage(nil), raw...)}
	for _, m := range members {
		switch m.Key {
		case "geometry":
			f.Geometry = m.Value
		case "properties":
			if err := json.Unmarshal(m.Value, &f.Properties); err != nil {
				return Feature{}, fmt.Errorf("parse feature: %w", err)
			}
		}
	}
	return f, nil
}

// HasGeometry reports whether the feature carries a non-null geometry member.
func (f Feature) HasGeometry() bool {
	g := bytes.TrimSpace(f.Geometry)
	return len(g) > 0 && !bytes.Equal(g, []byte("null"))
}

// Schema is the ordered union of property names across a record set, the
// equivalent of a table's column list.
type Schema struct {
	fields []string
	seen   map[string]bool
	text   map[string]bool
}

// NewSchema collects field names in first-seen order. A field is text-typed
// when at least one record holds a string value for it.
func NewSchema(rows ...Attributes) Schema {
	s := Schema{seen: map[string]bool{}, text: map[string]bool{}}
	for _, row := range rows {
		for _, attr := range row {
			if !s.seen[attr.Key] {
				s.seen[attr.Key] = true
				s.fields = append(s.fields, attr.Key)
			}
			if _, ok := attr.Value.(string); ok {
				s.text[attr.Key] = true
			}
		}
	}
	return s
}

// Has reports whether any record carries the field.
func (s Schema) Has(field string) bool { return s.seen[field] }

// IsText reports whether the field holds text values.
func (s Schema) IsText(field string) bool { return s.text[field] }

// Fields returns the field names in first-seen order.
func (s Schema) Fields() []string {
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

// NormalizeKey turns a property value into a join key: stringified and
// trimmed. ok is false for null values, which cannot be attributed.
func NormalizeKey(v any) (key string, ok bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(val), true
	case json.Number:
		return strings.TrimSpace(val.String()), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return strings.TrimSpace(fmt.Sprint(val)), true
	}
}

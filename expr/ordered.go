package expr

import (
	"bytes"
	"encoding/json"
	"sort"
)

// OrderedMap is a JSON object that remembers key insertion order. Decoders
// produce it so that documents render back with their original key order.
type OrderedMap struct {
	Keys   []string
	Values map[string]any
}

// NewOrderedMap returns an empty map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{Values: make(map[string]any)}
}

// Set stores v under k, keeping the position of an existing key.
func (m *OrderedMap) Set(k string, v any) {
	if _, ok := m.Values[k]; !ok {
		m.Keys = append(m.Keys, k)
	}
	m.Values[k] = v
}

// Get returns the value under k.
func (m *OrderedMap) Get(k string) (any, bool) {
	v, ok := m.Values[k]
	return v, ok
}

// Len returns the number of keys.
func (m *OrderedMap) Len() int { return len(m.Keys) }

// MarshalJSON writes keys in insertion order.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := MarshalJSON(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := MarshalJSON(m.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes v without HTML escaping, so prompt text keeps its
// angle brackets and ampersands.
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Plain converts ordered maps inside v to map[string]any, recursively.
func Plain(v any) any {
	switch t := v.(type) {
	case *OrderedMap:
		out := make(map[string]any, len(t.Keys))
		for _, k := range t.Keys {
			out[k] = Plain(t.Values[k])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Plain(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Plain(val)
		}
		return out
	}
	return v
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package jsonpath

import (
	"encoding/json"
	"reflect"
	"sort"
)

// Select returns every value the query matches, in document order.
func (q *Query) Select(root any) []any {
	nodes := []any{root}
	for _, seg := range q.segments {
		var next []any
		for _, n := range nodes {
			if seg.recursive {
				for _, d := range descendants(n) {
					next = seg.apply(d, next)
				}
				continue
			}
			next = seg.apply(n, next)
		}
		nodes = next
		if len(nodes) == 0 {
			break
		}
	}
	return nodes
}

// Get evaluates the query. Singular queries return the one matched value and
// false when nothing matched; other queries always return the list of
// matches.
func (q *Query) Get(root any) (any, bool) {
	matches := q.Select(root)
	if q.Singular() {
		if len(matches) == 0 {
			return nil, false
		}
		return matches[0], true
	}
	if matches == nil {
		matches = []any{}
	}
	return matches, true
}

// Get parses path and evaluates it against root.
func Get(root any, path string) (any, bool, error) {
	q, err := Parse(path)
	if err != nil {
		return nil, false, err
	}
	v, ok := q.Get(root)
	return v, ok, nil
}

func (s segment) apply(n any, out []any) []any {
	switch s.kind {
	case selName:
		if m, ok := asMap(n); ok {
			if v, ok := m[s.name]; ok {
				out = append(out, v)
			}
		}
	case selIndex:
		if l, ok := asList(n); ok {
			i := s.index
			if i < 0 {
				i += len(l)
			}
			if i >= 0 && i < len(l) {
				out = append(out, l[i])
			}
		}
	case selWildcard:
		out = append(out, children(n)...)
	case selSlice:
		if l, ok := asList(n); ok {
			out = append(out, s.slice.apply(l)...)
		}
	case selFilter:
		for _, c := range children(n) {
			if s.filter.match(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func (s sliceSpec) apply(l []any) []any {
	n := len(l)
	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	norm := func(p *int, def, lo, hi int) int {
		if p == nil {
			return def
		}
		v := *p
		if v < 0 {
			v += n
		}
		return clamp(v, lo, hi)
	}
	var out []any
	if s.step > 0 {
		start := norm(s.start, 0, 0, n)
		end := norm(s.end, n, 0, n)
		for i := start; i < end; i += s.step {
			out = append(out, l[i])
		}
		return out
	}
	start := norm(s.start, n-1, -1, n-1)
	end := norm(s.end, -1, -1, n-1)
	for i := start; i > end; i += s.step {
		out = append(out, l[i])
	}
	return out
}

// children returns list elements, or map values ordered by key.
func children(n any) []any {
	if l, ok := asList(n); ok {
		return l
	}
	if m, ok := asMap(n); ok {
		keys := sortedKeys(m)
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, m[k])
		}
		return out
	}
	return nil
}

// descendants returns n and everything below it in depth-first pre-order.
func descendants(n any) []any {
	out := []any{n}
	for _, c := range children(n) {
		out = append(out, descendants(c)...)
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case nil, string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

package expr

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Tag keys that turn an object into a reference.
const (
	TagStep     = "step"
	TagInput    = "input"
	TagVariable = "variable"
	TagTemplate = "template"
	TagLiteral  = "literal"
	TagFrom     = "from"
)

var tagKeys = []string{TagStep, TagInput, TagVariable, TagTemplate, TagLiteral, TagFrom}

var companions = map[string][]string{
	TagStep:     {"path"},
	TagVariable: {"default"},
}

// ShapeError reports a value that matches no expression shape.
type ShapeError struct {
	Path string
	Msg  string
}

func (e *ShapeError) Error() string {
	if e.Path == "" {
		return "expr: " + e.Msg
	}
	return fmt.Sprintf("expr: %s: %s", e.Path, e.Msg)
}

// FromValue builds an expression from a decoded JSON-like value: nil, bool,
// string, numbers, []any, map[string]any or *OrderedMap.
func FromValue(v any) (Expr, error) {
	return fromValue(v, "")
}

// FromJSON decodes raw JSON into an expression, preserving key order.
func FromJSON(raw []byte) (Expr, error) {
	v, err := DecodeJSON(raw)
	if err != nil {
		return nil, err
	}
	return FromValue(v)
}

func fromValue(v any, path string) (Expr, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case bool, string:
		return Scalar{Value: t}, nil
	case []any:
		arr := make(Array, len(t))
		for i, item := range t {
			e, err := fromValue(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			arr[i] = e
		}
		return arr, nil
	case *OrderedMap:
		return fromObject(t.Keys, t.Values, path)
	case map[string]any:
		return fromObject(SortedKeys(t), t, path)
	}
	if f, ok := number(v); ok {
		return Num(f), nil
	}
	return nil, &ShapeError{Path: path, Msg: fmt.Sprintf("unsupported value of type %T", v)}
}

func fromObject(keys []string, values map[string]any, path string) (Expr, error) {
	var tags []string
	for _, k := range keys {
		for _, tag := range tagKeys {
			if k == tag {
				tags = append(tags, k)
			}
		}
	}
	if len(tags) == 0 {
		obj := make(Object, 0, len(keys))
		for _, k := range keys {
			e, err := fromValue(values[k], join(path, k))
			if err != nil {
				return nil, err
			}
			obj = append(obj, Field{Key: k, Value: e})
		}
		return obj, nil
	}
	if len(tags) > 1 {
		sort.Strings(tags)
		return nil, &ShapeError{Path: path, Msg: "mixed reference tags: " + strings.Join(tags, ", ")}
	}
	tag := tags[0]
	for _, k := range keys {
		if k == tag || contains(companions[tag], k) {
			continue
		}
		return nil, &ShapeError{Path: path, Msg: fmt.Sprintf("unexpected key %q in %s reference", k, tag)}
	}

	str := func(key string, required bool) (string, error) {
		raw, ok := values[key]
		if !ok {
			return "", nil
		}
		s, isStr := raw.(string)
		if !isStr {
			return "", &ShapeError{Path: join(path, key), Msg: fmt.Sprintf("%s must be a string", key)}
		}
		if required && s == "" {
			return "", &ShapeError{Path: join(path, key), Msg: fmt.Sprintf("%s must not be empty", key)}
		}
		return s, nil
	}

	switch tag {
	case TagStep:
		step, err := str(TagStep, true)
		if err != nil {
			return nil, err
		}
		p, err := str("path", false)
		if err != nil {
			return nil, err
		}
		return StepRef{Step: step, Path: p}, nil
	case TagInput:
		field, err := str(TagInput, false)
		if err != nil {
			return nil, err
		}
		return InputRef{Field: field}, nil
	case TagVariable:
		name, err := str(TagVariable, true)
		if err != nil {
			return nil, err
		}
		def, has := values["default"]
		return VariableRef{Name: name, Default: Plain(def), HasDefault: has}, nil
	case TagTemplate:
		text, err := str(TagTemplate, false)
		if err != nil {
			return nil, err
		}
		return Template{Text: text}, nil
	case TagLiteral:
		return Literal{Value: Plain(values[TagLiteral])}, nil
	}
	return fromRef(values[TagFrom], join(path, TagFrom))
}

func fromRef(v any, path string) (Expr, error) {
	var keys []string
	var values map[string]any
	switch t := v.(type) {
	case *OrderedMap:
		keys, values = t.Keys, t.Values
	case map[string]any:
		keys, values = SortedKeys(t), t
	default:
		return nil, &ShapeError{Path: path, Msg: "from must be an object"}
	}
	var ref FromRef
	for _, k := range keys {
		s, ok := values[k].(string)
		if !ok {
			return nil, &ShapeError{Path: join(path, k), Msg: k + " must be a string"}
		}
		switch k {
		case "workflowPath", "workflow_path", "workflow":
			ref.WorkflowPath = s
		case "step":
			ref.Step = s
		case "path":
			ref.Path = s
		default:
			return nil, &ShapeError{Path: path, Msg: fmt.Sprintf("unexpected key %q in from reference", k)}
		}
	}
	return ref, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && !math.IsInf(f, 0)
	}
	return 0, false
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

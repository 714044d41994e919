package wire

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/meikuraledutech/flowgraph/expr"
)

var (
	documentKeys = []string{"$schema", "name", "description", "input_schema", "batch_schema", "steps", "output"}
	stepKeys     = []string{"id", "component", "input", "on_error", "must_execute", "metadata"}
)

// legacyActions maps the older {action} vocabulary onto handler types.
var legacyActions = map[string]string{
	"retry":    OnErrorRetry,
	"default":  OnErrorDefault,
	"fallback": OnErrorDefault,
	"continue": OnErrorDefault,
	"fail":     OnErrorFail,
	"abort":    OnErrorFail,
	"stop":     OnErrorFail,
}

// Parse decodes and builds a document. On any error the document is nil.
func Parse(data []byte, format Format) (*Document, error) {
	src, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	doc, errs := src.Build()
	if len(errs) > 0 {
		return nil, errs
	}
	return doc, nil
}

// ParseJSON parses the JSON rendering.
func ParseJSON(data []byte) (*Document, error) { return Parse(data, FormatJSON) }

// ParseText parses the indented text rendering.
func ParseText(data []byte) (*Document, error) { return Parse(data, FormatText) }

// Build interprets the decoded tree as a document, collecting every shape
// problem instead of stopping at the first. Grammar, length and reference
// checks belong to the validator.
//
// The document is returned even when errors are reported: malformed fields
// and expressions are left out, and every entry of steps keeps its index so
// error paths line up with the source. It is nil only when the root is not
// an object.
func (s *Source) Build() (*Document, ParseErrors) {
	b := &builder{src: s}
	doc := b.document(s.Tree)
	return doc, b.errs
}

type builder struct {
	src  *Source
	errs ParseErrors
}

func (b *builder) fail(path, format string, args ...any) {
	b.errs = append(b.errs, &ParseError{Path: path, Line: b.src.Line(path), Msg: fmt.Sprintf(format, args...)})
}

func (b *builder) document(tree any) *Document {
	root, ok := tree.(*expr.OrderedMap)
	if !ok {
		b.fail("", "document must be an object, got %s", kindOf(tree))
		return nil
	}
	b.unknownKeys(root, "", documentKeys)

	doc := &Document{}
	doc.Schema = b.optString(root, "", "$schema")
	if _, ok := root.Get("name"); !ok {
		b.fail("name", "required field missing")
	}
	doc.Name = b.optString(root, "", "name")
	doc.Description = b.optString(root, "", "description")
	doc.InputSchema = b.optObject(root, "", "input_schema")
	doc.BatchSchema = b.optObject(root, "", "batch_schema")

	raw, ok := root.Get("steps")
	switch {
	case !ok:
		b.fail("steps", "required field missing")
	default:
		list, isList := raw.([]any)
		if !isList {
			b.fail("steps", "must be a list, got %s", kindOf(raw))
			break
		}
		for i, item := range list {
			doc.Steps = append(doc.Steps, b.step(item, fmt.Sprintf("steps[%d]", i)))
		}
	}

	if raw, ok := root.Get("output"); ok {
		doc.Output = b.expression(raw, "output")
	}
	return doc
}

func (b *builder) step(v any, path string) Step {
	m, ok := v.(*expr.OrderedMap)
	if !ok {
		b.fail(path, "step must be an object, got %s", kindOf(v))
		return Step{Input: expr.Object{}}
	}
	b.unknownKeys(m, path, stepKeys)

	st := Step{}
	for _, key := range []string{"id", "component"} {
		if _, ok := m.Get(key); !ok {
			b.fail(joinPath(path, key), "required field missing")
		}
	}
	st.ID = b.optString(m, path, "id")
	st.Component = b.optString(m, path, "component")

	if raw, ok := m.Get("input"); ok {
		inputPath := joinPath(path, "input")
		if fields, isMap := raw.(*expr.OrderedMap); isMap {
			st.Input = b.fields(fields, inputPath)
		} else {
			b.fail(inputPath, "must be an object, got %s", kindOf(raw))
		}
	}
	if st.Input == nil {
		st.Input = expr.Object{}
	}

	if raw, ok := m.Get("on_error"); ok && raw != nil {
		st.OnError = b.errorHandler(raw, joinPath(path, "on_error"))
	}
	if raw, ok := m.Get("must_execute"); ok && raw != nil {
		flag, isBool := raw.(bool)
		if !isBool {
			b.fail(joinPath(path, "must_execute"), "must be a boolean, got %s", kindOf(raw))
		}
		st.MustExecute = flag
	}
	st.Metadata = b.optObject(m, path, "metadata")
	return st
}

// fields decodes a step input. Its keys are field names, so a field called
// step or template is a plain field whose value is an expression.
func (b *builder) fields(m *expr.OrderedMap, path string) expr.Object {
	obj := make(expr.Object, 0, len(m.Keys))
	for _, k := range m.Keys {
		if e := b.expression(m.Values[k], joinPath(path, k)); e != nil {
			obj = append(obj, expr.Field{Key: k, Value: e})
		}
	}
	return obj
}

func (b *builder) errorHandler(v any, path string) *ErrorHandler {
	m, ok := v.(*expr.OrderedMap)
	if !ok {
		b.fail(path, "must be an object, got %s", kindOf(v))
		return nil
	}
	h := &ErrorHandler{}
	if _, legacy := m.Get("action"); legacy {
		b.unknownKeys(m, path, []string{"action", "max_retries", "value", "default"})
		action := strings.ToLower(b.optString(m, path, "action"))
		t, known := legacyActions[action]
		if !known {
			b.fail(joinPath(path, "action"), "unknown action %q", action)
			return nil
		}
		h.Type = t
		h.MaxAttempts = b.optInt(m, path, "max_retries")
		for _, key := range []string{"value", "default"} {
			if val, ok := m.Get(key); ok {
				h.Value, h.HasValue = expr.Plain(val), true
				break
			}
		}
		return h
	}

	b.unknownKeys(m, path, []string{"type", "max_attempts", "value"})
	if _, ok := m.Get("type"); !ok {
		b.fail(joinPath(path, "type"), "required field missing")
		return nil
	}
	h.Type = b.optString(m, path, "type")
	switch h.Type {
	case OnErrorRetry, OnErrorDefault, OnErrorFail:
	default:
		b.fail(joinPath(path, "type"), "must be one of retry, default, fail; got %q", h.Type)
		return nil
	}
	h.MaxAttempts = b.optInt(m, path, "max_attempts")
	if val, ok := m.Get("value"); ok {
		h.Value, h.HasValue = expr.Plain(val), true
	}
	return h
}

func (b *builder) expression(v any, path string) expr.Expr {
	e, err := expr.FromValue(v)
	if err != nil {
		var se *expr.ShapeError
		if errors.As(err, &se) {
			p := path
			switch {
			case se.Path == "":
			case strings.HasPrefix(se.Path, "["):
				p += se.Path
			default:
				p = joinPath(path, se.Path)
			}
			b.fail(p, "%s", se.Msg)
			return nil
		}
		b.fail(path, "%v", err)
		return nil
	}
	return e
}

func (b *builder) unknownKeys(m *expr.OrderedMap, path string, allowed []string) {
	for _, k := range m.Keys {
		known := false
		for _, a := range allowed {
			if a == k {
				known = true
				break
			}
		}
		if !known {
			b.fail(joinPath(path, k), "unknown field")
		}
	}
}

func (b *builder) optString(m *expr.OrderedMap, path, key string) string {
	raw, ok := m.Get(key)
	if !ok || raw == nil {
		return ""
	}
	s, isStr := raw.(string)
	if !isStr {
		b.fail(joinPath(path, key), "must be a string, got %s", kindOf(raw))
	}
	return s
}

func (b *builder) optInt(m *expr.OrderedMap, path, key string) int {
	raw, ok := m.Get(key)
	if !ok || raw == nil {
		return 0
	}
	f, isNum := raw.(float64)
	if !isNum || f != math.Trunc(f) {
		b.fail(joinPath(path, key), "must be an integer, got %s", kindOf(raw))
		return 0
	}
	return int(f)
}

func (b *builder) optObject(m *expr.OrderedMap, path, key string) map[string]any {
	raw, ok := m.Get(key)
	if !ok || raw == nil {
		return nil
	}
	if _, isMap := raw.(*expr.OrderedMap); !isMap {
		b.fail(joinPath(path, key), "must be an object, got %s", kindOf(raw))
		return nil
	}
	return expr.Plain(raw).(map[string]any)
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64:
		return "number"
	case []any:
		return "list"
	case *expr.OrderedMap, map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

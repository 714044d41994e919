// Package interp turns the editor's double-brace template strings into
// value-expressions and back.
//
// Recognised references:
//
//	{{input}}, {{input.field}}             workflow input
//	{{nodes.ID.output}}, {{nodes.ID.output.a.b}}
//	                                        output of node ID
//	{{variables.NAME}}, {{vars.NAME}}       workflow variable
//	{{$step.ID}}, {{$input}}, {{$variable.NAME}}
//	                                        wire syntax, accepted verbatim
//
// A backslash before {{ or }} makes the braces literal.
package interp

import (
	"regexp"
	"strings"

	"github.com/meikuraledutech/flowgraph"
	"github.com/meikuraledutech/flowgraph/expr"
	"github.com/meikuraledutech/flowgraph/idmap"
)

var bracePattern = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// Result is the outcome of Interpolate.
type Result struct {
	Expr expr.Expr
	// Implicit is set when no reference was recognised and the first
	// upstream step was prepended.
	Implicit bool
	// ImplicitStep is the step id that was prepended.
	ImplicitStep string
	// Unrecognized lists brace expressions left untouched.
	Unrecognized []string
}

// Interpolate converts text owned by a node with the given incoming edges.
// Pass no edges to disable the implicit upstream reference.
func Interpolate(text string, incoming []flowgraph.Edge, m *idmap.Mapping) Result {
	if !strings.Contains(text, "{{") {
		return Result{Expr: expr.Str(text)}
	}
	if content, ok := wholeEscape(text); ok {
		return Result{Expr: expr.Literal{Value: content}}
	}

	hidden := expr.HideEscapes(text)
	escaped := hidden != text

	type match struct {
		start, end int
		marker     expr.Marker
	}
	var found []match
	var unrecognized []string
	for _, loc := range bracePattern.FindAllStringSubmatchIndex(hidden, -1) {
		inner := hidden[loc[2]:loc[3]]
		mk, ok := classify(inner, m)
		if !ok {
			unrecognized = append(unrecognized, hidden[loc[0]:loc[1]])
			continue
		}
		found = append(found, match{start: loc[0], end: loc[1], marker: mk})
	}

	if len(found) == 1 && len(unrecognized) == 0 && !escaped {
		f := found[0]
		if strings.TrimSpace(hidden) == hidden[f.start:f.end] {
			return Result{Expr: native(f.marker)}
		}
	}

	if len(found) == 0 {
		res := Result{Unrecognized: unrecognized}
		if len(incoming) > 0 {
			step := m.Sanitized(incoming[0].Source)
			res.Expr = expr.Template{Text: expr.FormatMarker(expr.Marker{Kind: expr.MarkerStep, Name: step}) + "\n\n" + text}
			res.Implicit = true
			res.ImplicitStep = step
			return res
		}
		if escaped {
			res.Expr = expr.Template{Text: text}
		} else {
			res.Expr = expr.Str(text)
		}
		return res
	}

	var b strings.Builder
	last := 0
	for _, f := range found {
		b.WriteString(hidden[last:f.start])
		b.WriteString(expr.FormatMarker(f.marker))
		last = f.end
	}
	b.WriteString(hidden[last:])
	return Result{
		Expr:         expr.Template{Text: expr.RestoreEscapes(b.String())},
		Unrecognized: unrecognized,
	}
}

// wholeEscape reports whether the trimmed text is a single \{{...\}}.
func wholeEscape(text string) (string, bool) {
	t := strings.TrimSpace(text)
	if len(t) < len(expr.EscapedOpen)+len(expr.EscapedClose) ||
		!strings.HasPrefix(t, expr.EscapedOpen) || !strings.HasSuffix(t, expr.EscapedClose) {
		return "", false
	}
	content := t[len(expr.EscapedOpen) : len(t)-len(expr.EscapedClose)]
	if strings.Contains(content, expr.EscapedOpen) || strings.Contains(content, expr.EscapedClose) {
		return "", false
	}
	return content, true
}

// classify recognises the inside of a {{...}} pair.
func classify(inner string, m *idmap.Mapping) (expr.Marker, bool) {
	switch {
	case inner == "input" || inner == "$input":
		return expr.Marker{Kind: expr.MarkerInput}, true
	case hasPathAfter(inner, "input"):
		return expr.Marker{Kind: expr.MarkerInput, Path: "$" + inner[len("input"):]}, true
	case hasPathAfter(inner, "$input"):
		return expr.Marker{Kind: expr.MarkerInput, Path: "$" + inner[len("$input"):]}, true
	case strings.HasPrefix(inner, "nodes."):
		return stepMarker(inner[len("nodes."):], true, m)
	case strings.HasPrefix(inner, "$step."):
		return stepMarker(inner[len("$step."):], false, m)
	}
	for _, prefix := range []string{"variables.", "vars.", "$variable."} {
		if strings.HasPrefix(inner, prefix) {
			name := inner[len(prefix):]
			if name == "" || strings.ContainsAny(name, ".[ ") {
				return expr.Marker{}, false
			}
			return expr.Marker{Kind: expr.MarkerVariable, Name: name}, true
		}
	}
	return expr.Marker{}, false
}

func hasPathAfter(s, prefix string) bool {
	return strings.HasPrefix(s, prefix) && len(s) > len(prefix) &&
		(s[len(prefix)] == '.' || s[len(prefix)] == '[') && !strings.Contains(s, " ")
}

// stepMarker parses "ID[.output][.path]" (editor form) or "ID[.path]" (wire
// form).
func stepMarker(rest string, editor bool, m *idmap.Mapping) (expr.Marker, bool) {
	if rest == "" || strings.Contains(rest, " ") {
		return expr.Marker{}, false
	}
	end := strings.IndexAny(rest, ".[")
	id, tail := rest, ""
	if end >= 0 {
		id, tail = rest[:end], rest[end:]
	}
	if id == "" {
		return expr.Marker{}, false
	}
	if editor {
		switch {
		case tail == ".output":
			tail = ""
		case strings.HasPrefix(tail, ".output.") || strings.HasPrefix(tail, ".output["):
			tail = tail[len(".output"):]
		}
	}
	mk := expr.Marker{Kind: expr.MarkerStep, Name: m.Sanitized(id)}
	if tail != "" {
		mk.Path = "$" + tail
	}
	return mk, true
}

// native converts a single marker into its tagged expression.
func native(mk expr.Marker) expr.Expr {
	switch mk.Kind {
	case expr.MarkerInput:
		if mk.Path == "" {
			return expr.WholeInput()
		}
		return expr.InputRef{Field: inputField(mk.Path)}
	case expr.MarkerVariable:
		return expr.VariableRef{Name: mk.Name}
	}
	return expr.StepRef{Step: mk.Name, Path: mk.Path}
}

func inputField(path string) string {
	if strings.HasPrefix(path, "$.") {
		return path[2:]
	}
	return path
}

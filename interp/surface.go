package interp

import (
	"strings"

	"github.com/meikuraledutech/flowgraph/expr"
	"github.com/meikuraledutech/flowgraph/idmap"
)

// Surface converts an expression back into editor template text. It reports
// false for expressions that have no text form, such as numbers, objects and
// literals holding anything but a string.
func Surface(e expr.Expr, m *idmap.Mapping) (string, bool) {
	switch t := e.(type) {
	case nil:
		return "", true
	case expr.Scalar:
		s, ok := t.Value.(string)
		return s, ok
	case expr.Literal:
		s, ok := t.Value.(string)
		if !ok {
			return "", false
		}
		return expr.EscapedOpen + s + expr.EscapedClose, true
	case expr.StepRef, expr.InputRef, expr.VariableRef:
		return surfaceMarker(markerOf(t), m), true
	case expr.Template:
		return surfaceTemplate(t.Text, m), true
	}
	return "", false
}

func markerOf(e expr.Expr) expr.Marker {
	switch t := e.(type) {
	case expr.StepRef:
		return expr.Marker{Kind: expr.MarkerStep, Name: t.Step, Path: t.Path}
	case expr.InputRef:
		if t.Field == "" || t.Field == "$" {
			return expr.Marker{Kind: expr.MarkerInput}
		}
		p := t.Field
		if !strings.HasPrefix(p, "$") {
			if !strings.HasPrefix(p, "[") {
				p = "." + p
			}
			p = "$" + p
		}
		return expr.Marker{Kind: expr.MarkerInput, Path: p}
	case expr.VariableRef:
		return expr.Marker{Kind: expr.MarkerVariable, Name: t.Name}
	}
	return expr.Marker{}
}

func surfaceMarker(mk expr.Marker, m *idmap.Mapping) string {
	suffix := strings.TrimPrefix(mk.Path, "$")
	switch mk.Kind {
	case expr.MarkerInput:
		return "{{input" + suffix + "}}"
	case expr.MarkerVariable:
		return "{{variables." + mk.Name + "}}"
	}
	return "{{nodes." + m.Original(mk.Name) + ".output" + suffix + "}}"
}

func surfaceTemplate(text string, m *idmap.Mapping) string {
	markers := expr.Markers(text)
	if len(markers) == 0 {
		return text
	}
	hidden := expr.HideEscapes(text)
	var b strings.Builder
	last := 0
	for _, mk := range markers {
		b.WriteString(hidden[last:mk.Start])
		b.WriteString(surfaceMarker(mk, m))
		last = mk.End
	}
	b.WriteString(hidden[last:])
	return expr.RestoreEscapes(b.String())
}

package expr

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Marker kinds inside template text.
const (
	MarkerStep     = "step"
	MarkerInput    = "input"
	MarkerVariable = "variable"
)

// Escaped braces in template text. A backslash before {{ or }} makes the
// braces literal.
const (
	EscapedOpen  = `\{{`
	EscapedClose = `\}}`
)

const (
	openPlaceholder  = "\x00LBRACE\x00"
	closePlaceholder = "\x00RBRACE\x00"
)

var markerPattern = regexp.MustCompile(`\{\{\s*\$(step|input|variable)((?:\.|\[)[^\s{}]*)?\s*\}\}`)

// Marker is one embedded reference found in template text.
type Marker struct {
	Kind  string
	Name  string // step id or variable name
	Path  string // "$..." path below the step output or input, "" for whole
	Start int
	End   int
}

// HideEscapes replaces escaped braces with placeholders.
func HideEscapes(s string) string {
	s = strings.ReplaceAll(s, EscapedOpen, openPlaceholder)
	return strings.ReplaceAll(s, EscapedClose, closePlaceholder)
}

// RestoreEscapes is the inverse of HideEscapes.
func RestoreEscapes(s string) string {
	s = strings.ReplaceAll(s, openPlaceholder, EscapedOpen)
	return strings.ReplaceAll(s, closePlaceholder, EscapedClose)
}

func unescapeBraces(s string) string {
	s = strings.ReplaceAll(s, openPlaceholder, "{{")
	return strings.ReplaceAll(s, closePlaceholder, "}}")
}

// Markers returns the well-formed markers of text in order. Escaped braces
// never start a marker. Offsets refer to the escape-hidden text.
func Markers(text string) []Marker {
	hidden := HideEscapes(text)
	var out []Marker
	for _, loc := range markerPattern.FindAllStringSubmatchIndex(hidden, -1) {
		kind := hidden[loc[2]:loc[3]]
		rest := ""
		if loc[4] >= 0 {
			rest = hidden[loc[4]:loc[5]]
		}
		m, ok := newMarker(kind, rest)
		if !ok {
			continue
		}
		m.Start, m.End = loc[0], loc[1]
		out = append(out, m)
	}
	return out
}

func newMarker(kind, rest string) (Marker, bool) {
	switch kind {
	case MarkerInput:
		if rest == "" {
			return Marker{Kind: kind}, true
		}
		return Marker{Kind: kind, Path: "$" + rest}, true
	case MarkerStep, MarkerVariable:
		if !strings.HasPrefix(rest, ".") || len(rest) < 2 {
			return Marker{}, false
		}
		body := rest[1:]
		end := strings.IndexAny(body, ".[")
		if end < 0 {
			return Marker{Kind: kind, Name: body}, true
		}
		if end == 0 || kind == MarkerVariable {
			return Marker{}, false
		}
		return Marker{Kind: kind, Name: body[:end], Path: "$" + body[end:]}, true
	}
	return Marker{}, false
}

// FormatMarker renders a marker in template syntax.
func FormatMarker(m Marker) string {
	suffix := strings.TrimPrefix(m.Path, "$")
	switch m.Kind {
	case MarkerInput:
		return "{{$input" + suffix + "}}"
	case MarkerVariable:
		return "{{$variable." + m.Name + "}}"
	}
	return "{{$step." + m.Name + suffix + "}}"
}

// Render substitutes every marker in text. Missing steps and variables
// render as visible placeholders rather than failing, since templates are
// display oriented.
func Render(text string, ctx *Context) string {
	if ctx == nil {
		ctx = &Context{}
	}
	hidden := HideEscapes(text)
	out := markerPattern.ReplaceAllStringFunc(hidden, func(match string) string {
		sub := markerPattern.FindStringSubmatch(match)
		m, ok := newMarker(sub[1], sub[2])
		if !ok {
			return match
		}
		return renderMarker(m, ctx)
	})
	return unescapeBraces(out)
}

func renderMarker(m Marker, ctx *Context) string {
	switch m.Kind {
	case MarkerStep:
		v, ok := ctx.StepOutputs[m.Name]
		if !ok {
			return "[missing step: " + m.Name + "]"
		}
		if m.Path != "" {
			v, _ = queryValue(v, m.Path)
		}
		return Stringify(v)
	case MarkerVariable:
		v, ok := ctx.Variables[m.Name]
		if !ok {
			return "[missing variable: " + m.Name + "]"
		}
		return Stringify(v)
	}
	if m.Path == "" {
		return Stringify(ctx.Input)
	}
	v, _ := queryValue(ctx.Input, m.Path)
	return Stringify(v)
}

// Stringify renders a resolved value into template text.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	}
	b, err := MarshalJSON(v)
	if err != nil {
		return ""
	}
	return string(b)
}

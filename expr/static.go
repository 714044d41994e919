package expr

import (
	"fmt"

	"github.com/meikuraledutech/flowgraph/jsonpath"
)

// StaticResult is the outcome of ValidateStatically.
type StaticResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateStatically checks references in e without evaluating it: unknown
// steps, unknown variables without a default and malformed paths. It never
// fails; problems are reported in the result.
func ValidateStatically(e Expr, steps, variables map[string]bool) StaticResult {
	var errs []string
	add := func(path, format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		if path != "" {
			msg = path + ": " + msg
		}
		errs = append(errs, msg)
	}
	checkPath := func(at, p string) {
		if p == "" {
			return
		}
		if _, err := jsonpath.Parse(p); err != nil {
			add(at, "malformed path %q: %v", p, err)
		}
	}

	Walk(e, "", func(at string, n Expr) {
		switch t := n.(type) {
		case StepRef:
			if !steps[t.Step] {
				add(at, "unknown step %q", t.Step)
			}
			checkPath(at, t.Path)
		case InputRef:
			if t.Field != "" && t.Field != "$" {
				checkPath(at, t.Field)
			}
		case VariableRef:
			if !variables[t.Name] && !t.HasDefault {
				add(at, "unknown variable %q has no default", t.Name)
			}
		case Template:
			for _, m := range Markers(t.Text) {
				switch m.Kind {
				case MarkerStep:
					if !steps[m.Name] {
						add(at, "template references unknown step %q", m.Name)
					}
				case MarkerVariable:
					if !variables[m.Name] {
						add(at, "template references unknown variable %q", m.Name)
					}
				}
				checkPath(at, m.Path)
			}
		case FromRef:
			checkPath(at, t.Path)
		}
	})
	return StaticResult{Valid: len(errs) == 0, Errors: errs}
}

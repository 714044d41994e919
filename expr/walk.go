package expr

import "fmt"

// Walk calls fn for e and every expression below it, parents first. path
// locates each node relative to the starting path.
func Walk(e Expr, path string, fn func(path string, e Expr)) {
	fn(path, e)
	switch t := e.(type) {
	case Array:
		for i, item := range t {
			Walk(item, fmt.Sprintf("%s[%d]", path, i), fn)
		}
	case Object:
		for _, f := range t {
			Walk(f.Value, join(path, f.Key), fn)
		}
	}
}

// StepReferences returns the step ids referenced by e, from native {step}
// tags and from {{$step.X}} markers inside templates, deduplicated in order
// of first appearance.
func StepReferences(e Expr) []string {
	return collect(e, func(n Expr) []string {
		switch t := n.(type) {
		case StepRef:
			return []string{t.Step}
		case Template:
			return markerNames(t.Text, MarkerStep)
		}
		return nil
	})
}

// VariableReferences returns the variable names referenced by e, including
// template markers, deduplicated in order of first appearance.
func VariableReferences(e Expr) []string {
	return collect(e, func(n Expr) []string {
		switch t := n.(type) {
		case VariableRef:
			return []string{t.Name}
		case Template:
			return markerNames(t.Text, MarkerVariable)
		}
		return nil
	})
}

func collect(e Expr, pick func(Expr) []string) []string {
	seen := make(map[string]bool)
	var out []string
	Walk(e, "", func(_ string, n Expr) {
		for _, name := range pick(n) {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	})
	return out
}

func markerNames(text, kind string) []string {
	var out []string
	for _, m := range Markers(text) {
		if m.Kind == kind {
			out = append(out, m.Name)
		}
	}
	return out
}

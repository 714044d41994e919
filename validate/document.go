package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	celgo "github.com/google/cel-go/cel"

	"github.com/meikuraledutech/flowgraph/expr"
	"github.com/meikuraledutech/flowgraph/idmap"
	"github.com/meikuraledutech/flowgraph/jsonpath"
	"github.com/meikuraledutech/flowgraph/registry"
	"github.com/meikuraledutech/flowgraph/wire"
)

var conditionEnv *celgo.Env

func init() {
	env, err := celgo.NewEnv(
		celgo.Variable("input", celgo.DynType),
		celgo.Variable("value", celgo.DynType),
		celgo.Variable("steps", celgo.DynType),
		celgo.Variable("variables", celgo.DynType),
	)
	if err != nil {
		panic(fmt.Sprintf("validate: create CEL environment: %v", err))
	}
	conditionEnv = env
}

// Bytes decodes data and validates the result. Decode and shape problems
// become structural errors. When the document has shape problems the
// remaining checks still run over what could be built, and the returned
// document is nil.
func Bytes(data []byte, format wire.Format, reg *registry.Registry) (*wire.Document, *Result) {
	r := newResult()
	src, err := wire.Decode(data, format)
	if err != nil {
		r.Errors = append(r.Errors, parseIssues(err)...)
		return nil, r.finish()
	}
	doc, errs := src.Build()
	if len(errs) == 0 {
		return doc, Document(doc, reg)
	}
	r.Errors = append(r.Errors, parseIssues(errs)...)
	if doc != nil {
		r.Merge(uncovered(Document(doc, reg), errs))
	}
	return nil, r.finish()
}

// uncovered drops issues at or below a path that already has a parse error.
func uncovered(res *Result, errs wire.ParseErrors) *Result {
	keep := func(list []Issue) []Issue {
		out := list[:0]
		for _, is := range list {
			if !coveredBy(is.Path, errs) {
				out = append(out, is)
			}
		}
		return out
	}
	res.Errors = keep(res.Errors)
	res.Warnings = keep(res.Warnings)
	return res
}

func coveredBy(path string, errs wire.ParseErrors) bool {
	for _, pe := range errs {
		if path == pe.Path || pe.Path == "" ||
			strings.HasPrefix(path, pe.Path+".") || strings.HasPrefix(path, pe.Path+"[") {
			return true
		}
	}
	return false
}

func parseIssues(err error) []Issue {
	var list wire.ParseErrors
	switch t := err.(type) {
	case wire.ParseErrors:
		list = t
	case *wire.ParseError:
		list = wire.ParseErrors{t}
	default:
		return []Issue{{Kind: KindStructural, Message: err.Error()}}
	}
	out := make([]Issue, 0, len(list))
	for _, pe := range list {
		msg := pe.Msg
		if pe.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", pe.Line, pe.Msg)
		}
		out = append(out, Issue{Kind: KindStructural, Path: pe.Path, Message: msg})
	}
	return out
}

// Document runs the structural and semantic passes over a wire document.
// reg may be nil, in which case a fresh registry is used for component
// lookups.
func Document(doc *wire.Document, reg *registry.Registry) *Result {
	r := newResult()
	if doc == nil {
		r.errorf(KindStructural, "", "", "document is required")
		return r.finish()
	}
	if reg == nil {
		reg = registry.New()
	}

	switch n := utf8.RuneCountInString(doc.Name); {
	case n == 0:
		r.errorf(KindStructural, "name", "", "name is required")
	case n > wire.MaxNameLength:
		r.errorf(KindStructural, "name", "", "name is %d characters, the limit is %d", n, wire.MaxNameLength)
	}
	if n := utf8.RuneCountInString(doc.Description); n > wire.MaxDescriptionLength {
		r.errorf(KindStructural, "description", "", "description is %d characters, the limit is %d", n, wire.MaxDescriptionLength)
	}
	if len(doc.Steps) == 0 {
		r.errorf(KindStructural, "steps", "", "at least one step is required")
	}

	seen := make(map[string]int, len(doc.Steps))
	for i := range doc.Steps {
		st := &doc.Steps[i]
		path := fmt.Sprintf("steps[%d]", i)
		if !idmap.Valid(st.ID) {
			r.errorf(KindStructural, path+".id", st.ID, "step id %q does not match %s", st.ID, idmap.IdentifierPattern)
		}
		if first, dup := seen[st.ID]; dup {
			r.errorf(KindStructural, path+".id", st.ID, "duplicate step id %q, first used by steps[%d]", st.ID, first)
		} else {
			seen[st.ID] = i
		}
		checkComponent(r, reg, st, path)
		checkErrorHandler(r, st, path)
	}

	steps := doc.StepIDs()
	for i := range doc.Steps {
		st := &doc.Steps[i]
		path := fmt.Sprintf("steps[%d]", i)
		checkReferences(r, st.Input, path+".input", steps)
		if st.Component == registry.Conditional {
			checkCondition(r, st, path)
		}
	}
	if doc.Output != nil {
		checkReferences(r, doc.Output, "output", steps)
	}
	return r.finish()
}

func checkComponent(r *Result, reg *registry.Registry, st *wire.Step, path string) {
	if !registry.PathPattern.MatchString(st.Component) {
		r.errorf(KindStructural, path+".component", st.ID, "component %q does not match %s", st.Component, registry.PathPattern)
		return
	}
	if err := reg.ValidatePath(st.Component); err != nil {
		r.warnf(KindStructural, path+".component", st.ID, "%v", err)
	}
}

func checkErrorHandler(r *Result, st *wire.Step, path string) {
	h := st.OnError
	if h == nil {
		return
	}
	path += ".on_error"
	switch h.Type {
	case wire.OnErrorRetry:
		if h.MaxAttempts < 0 {
			r.errorf(KindStructural, path+".max_attempts", st.ID, "max_attempts must not be negative")
		} else if h.MaxAttempts == 0 {
			r.warnf(KindStructural, path+".max_attempts", st.ID, "retry without max_attempts uses the runtime default")
		}
	case wire.OnErrorDefault:
		if !h.HasValue {
			r.warnf(KindStructural, path+".value", st.ID, "default handler without a value yields null")
		}
	case wire.OnErrorFail:
	default:
		r.errorf(KindStructural, path+".type", st.ID, "unknown error handler type %q", h.Type)
	}
}

func checkReferences(r *Result, e expr.Expr, base string, steps map[string]bool) {
	expr.Walk(e, "", func(at string, n expr.Expr) {
		path := joinPath(base, at)
		switch t := n.(type) {
		case expr.StepRef:
			if !steps[t.Step] {
				r.errorf(KindSemantic, path, t.Step, "references unknown step %q", t.Step)
			}
			checkQuery(r, path, t.Step, t.Path)
		case expr.InputRef:
			if t.Field != "" && t.Field != "$" {
				checkQuery(r, path, "", t.Field)
			}
		case expr.VariableRef:
			if !t.HasDefault {
				r.warnf(KindSemantic, path, t.Name, "variable %q has no default and must be supplied at run time", t.Name)
			}
		case expr.Template:
			for _, m := range expr.Markers(t.Text) {
				if m.Kind == expr.MarkerStep && !steps[m.Name] {
					r.errorf(KindSemantic, path, m.Name, "template references unknown step %q", m.Name)
				}
				checkQuery(r, path, m.Name, m.Path)
			}
		case expr.FromRef:
			checkQuery(r, path, t.Step, t.Path)
		}
	})
}

func checkQuery(r *Result, path, ref, query string) {
	if query == "" {
		return
	}
	if _, err := jsonpath.Parse(query); err != nil {
		r.errorf(KindStructural, path, ref, "malformed path %q: %v", query, err)
	}
}

func checkCondition(r *Result, st *wire.Step, path string) {
	e, ok := st.Input.Get("condition")
	if !ok {
		return
	}
	sc, ok := e.(expr.Scalar)
	if !ok {
		return
	}
	cond, ok := sc.Value.(string)
	if !ok || cond == "" {
		return
	}
	if _, issues := conditionEnv.Parse(cond); issues != nil && issues.Err() != nil {
		r.warnf(KindStructural, path+".input.condition", st.ID, "condition is not a valid expression: %v", issues.Err())
	}
}

func joinPath(base, at string) string {
	switch {
	case at == "":
		return base
	case at[0] == '[':
		return base + at
	}
	return base + "." + at
}

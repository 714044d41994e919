package expr

import (
	"errors"
	"fmt"

	"github.com/meikuraledutech/flowgraph/jsonpath"
)

// ErrNilContext is returned when Evaluate is called without a context.
var ErrNilContext = errors.New("expr: nil evaluation context")

// Context is the runtime state an expression is evaluated against. It is
// built per call by the caller and never retained.
type Context struct {
	Input       any            `json:"input"`
	StepOutputs map[string]any `json:"stepOutputs"`
	Variables   map[string]any `json:"variables"`
	// WorkflowStorage backs {from} references; nil means unavailable.
	WorkflowStorage map[string]any `json:"workflowStorage,omitempty"`
}

// ReferenceError reports a reference that cannot be resolved against the
// supplied context. Static validation is expected to rule these out, so one
// at evaluation time points at a context construction bug.
type ReferenceError struct {
	Kind string
	Name string
	Msg  string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("expr: %s %q: %s", e.Kind, e.Name, e.Msg)
}

// Evaluate resolves e to a concrete value.
func Evaluate(e Expr, ctx *Context) (any, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	switch t := e.(type) {
	case nil:
		return nil, nil
	case Scalar:
		return t.Value, nil
	case Array:
		out := make([]any, len(t))
		for i, item := range t {
			v, err := Evaluate(item, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case Object:
		out := make(map[string]any, len(t))
		for _, f := range t {
			v, err := Evaluate(f.Value, ctx)
			if err != nil {
				return nil, err
			}
			out[f.Key] = v
		}
		return out, nil
	case StepRef:
		v, ok := ctx.StepOutputs[t.Step]
		if !ok {
			return nil, &ReferenceError{Kind: "step", Name: t.Step, Msg: "step not found"}
		}
		if t.Path == "" {
			return v, nil
		}
		return queryValue(v, t.Path)
	case InputRef:
		if t.Field == "" || t.Field == "$" {
			return ctx.Input, nil
		}
		return queryValue(ctx.Input, t.Field)
	case VariableRef:
		if v, ok := ctx.Variables[t.Name]; ok {
			return v, nil
		}
		if t.HasDefault {
			return t.Default, nil
		}
		return nil, &ReferenceError{Kind: "variable", Name: t.Name, Msg: "variable not found, no default"}
	case Template:
		return Render(t.Text, ctx), nil
	case Literal:
		return t.Value, nil
	case FromRef:
		return evaluateFrom(t, ctx)
	}
	return nil, fmt.Errorf("expr: unknown expression %T", e)
}

func evaluateFrom(ref FromRef, ctx *Context) (any, error) {
	if ctx.WorkflowStorage == nil {
		return nil, &ReferenceError{Kind: "workflow", Name: ref.WorkflowPath, Msg: "workflow storage not available"}
	}
	var v any = ctx.WorkflowStorage
	if ref.WorkflowPath != "" {
		w, ok := ctx.WorkflowStorage[ref.WorkflowPath]
		if !ok {
			return nil, &ReferenceError{Kind: "workflow", Name: ref.WorkflowPath, Msg: "workflow not found in storage"}
		}
		v = w
	}
	if ref.Step != "" {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, &ReferenceError{Kind: "step", Name: ref.Step, Msg: "workflow entry has no steps"}
		}
		if v, ok = m[ref.Step]; !ok {
			return nil, &ReferenceError{Kind: "step", Name: ref.Step, Msg: "step not found in workflow storage"}
		}
	}
	if ref.Path == "" {
		return v, nil
	}
	return queryValue(v, ref.Path)
}

// queryValue applies a path. Misses resolve to nil; only malformed paths
// are errors.
func queryValue(v any, path string) (any, error) {
	out, ok, err := jsonpath.Get(v, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return out, nil
}

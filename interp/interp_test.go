package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flowgraph"
	"github.com/meikuraledutech/flowgraph/expr"
	"github.com/meikuraledutech/flowgraph/idmap"
)

func TestInterpolate(t *testing.T) {
	m := idmap.Build([]string{"in-1", "p1"})
	tests := []struct {
		name string
		text string
		want expr.Expr
	}{
		{"plain passthrough", "Summarize the text", expr.Str("Summarize the text")},
		{"single input", "{{input}}", expr.InputRef{Field: "$"}},
		{"single input padded", "  {{ input }} ", expr.InputRef{Field: "$"}},
		{"input field", "{{input.user.name}}", expr.InputRef{Field: "user.name"}},
		{"single node", "{{nodes.in-1.output}}", expr.StepRef{Step: "in_1"}},
		{"node with path", "{{nodes.p1.output.items[0]}}", expr.StepRef{Step: "p1", Path: "$.items[0]"}},
		{"node short form", "{{nodes.p1}}", expr.StepRef{Step: "p1"}},
		{"variable", "{{variables.tone}}", expr.VariableRef{Name: "tone"}},
		{"wire syntax", "{{$step.in_1}}", expr.StepRef{Step: "in_1"}},
		{"mixed", "Hello {{input}}!", expr.Template{Text: "Hello {{$input}}!"}},
		{"multiple", "{{nodes.in-1.output}}{{vars.x}}", expr.Template{Text: "{{$step.in_1}}{{$variable.x}}"}},
		{"whole escape", `\{{not a ref\}}`, expr.Literal{Value: "not a ref"}},
		{"partial escape", `Use \{{braces\}} with {{input}}`, expr.Template{Text: `Use \{{braces\}} with {{$input}}`}},
		{"escape only", `say \{{hi\}} and \{{bye\}}`, expr.Template{Text: `say \{{hi\}} and \{{bye\}}`}},
		{"unrecognised kept", "{{foo}} then {{input}}", expr.Template{Text: "{{foo}} then {{$input}}"}},
		{"unrecognised alone", "{{foo}}", expr.Str("{{foo}}")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Interpolate(tt.text, nil, m)
			assert.Equal(t, tt.want, res.Expr)
			assert.False(t, res.Implicit)
		})
	}
}

func TestInterpolateImplicitUpstream(t *testing.T) {
	m := idmap.Build([]string{"src node", "me"})
	edges := []flowgraph.Edge{{Source: "src node", Target: "me"}}

	res := Interpolate("Rewrite {{something}}", edges, m)
	require.True(t, res.Implicit)
	assert.Equal(t, "src_node", res.ImplicitStep)
	assert.Equal(t, expr.Template{Text: "{{$step.src_node}}\n\nRewrite {{something}}"}, res.Expr)
	assert.Equal(t, []string{"{{something}}"}, res.Unrecognized)
	assert.Equal(t, []string{"src_node"}, expr.StepReferences(res.Expr))

	plain := Interpolate("no braces at all", edges, m)
	assert.False(t, plain.Implicit)
	assert.Equal(t, expr.Str("no braces at all"), plain.Expr)

	explicit := Interpolate("{{input}} and more", edges, m)
	assert.False(t, explicit.Implicit)
}

func TestSurfaceRoundTrip(t *testing.T) {
	m := idmap.Build([]string{"in-1", "p1"})
	for _, text := range []string{
		"{{input}}",
		"{{input.user.name}}",
		"{{nodes.in-1.output}}",
		"{{nodes.p1.output.items[0]}}",
		"{{variables.tone}}",
		"Hello {{input}}!",
		`\{{not a ref\}}`,
		`Use \{{braces\}} with {{nodes.p1.output}}`,
		"plain",
	} {
		t.Run(text, func(t *testing.T) {
			first := Interpolate(text, nil, m).Expr
			surface, ok := Surface(first, m)
			require.True(t, ok)
			second := Interpolate(surface, nil, m).Expr
			assert.Equal(t, first, second)
		})
	}
}

func TestSurfaceNonText(t *testing.T) {
	_, ok := Surface(expr.Num(3), nil)
	assert.False(t, ok)
	_, ok = Surface(expr.Object{}, nil)
	assert.False(t, ok)
	_, ok = Surface(expr.Literal{Value: 5.0}, nil)
	assert.False(t, ok)
	_, ok = Surface(expr.Literal{Value: map[string]any{"step": "a"}}, nil)
	assert.False(t, ok)

	s, ok := Surface(expr.Literal{Value: "hi"}, nil)
	require.True(t, ok)
	assert.Equal(t, `\{{hi\}}`, s)
}

package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustJSON(t *testing.T, raw string) Expr {
	t.Helper()
	e, err := FromJSON([]byte(raw))
	require.NoError(t, err)
	return e
}

func TestFromJSONShapes(t *testing.T) {
	tests := []struct {
		raw  string
		want Expr
	}{
		{`"hi"`, Str("hi")},
		{`3`, Num(3)},
		{`null`, Null()},
		{`true`, Bool(true)},
		{`{"step":"a"}`, StepRef{Step: "a"}},
		{`{"step":"a","path":"$.x"}`, StepRef{Step: "a", Path: "$.x"}},
		{`{"input":"$"}`, InputRef{Field: "$"}},
		{`{"variable":"v","default":null}`, VariableRef{Name: "v", HasDefault: true}},
		{`{"variable":"v"}`, VariableRef{Name: "v"}},
		{`{"template":"x {{$input}}"}`, Template{Text: "x {{$input}}"}},
		{`{"literal":{"step":"not a ref"}}`, Literal{Value: map[string]any{"step": "not a ref"}}},
		{`{"from":{"workflowPath":"w","step":"s","path":"$.a"}}`, FromRef{WorkflowPath: "w", Step: "s", Path: "$.a"}},
		{`{"b":1,"a":[{"step":"s"}]}`, Object{{Key: "b", Value: Num(1)}, {Key: "a", Value: Array{StepRef{Step: "s"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, mustJSON(t, tt.raw))
		})
	}
}

func TestFromJSONRejectsMalformed(t *testing.T) {
	tests := []struct {
		raw string
		msg string
	}{
		{`{"step":"a","input":"$"}`, "mixed reference tags"},
		{`{"step":"a","extra":1}`, `unexpected key "extra"`},
		{`{"step":""}`, "must not be empty"},
		{`{"step":5}`, "must be a string"},
		{`{"x":{"variable":1}}`, "x.variable"},
		{`{"from":"w"}`, "from must be an object"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := FromJSON([]byte(tt.raw))
			require.Error(t, err)
			var se *ShapeError
			require.ErrorAs(t, err, &se)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDecodeJSONSyntaxErrorHasPosition(t *testing.T) {
	_, err := DecodeJSON([]byte("{\n  \"a\": [1,\n  }"))
	require.Error(t, err)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Line)

	_, err = DecodeJSON([]byte(`{} {}`))
	require.Error(t, err)
}

func TestMarshalKeepsOrderAndTags(t *testing.T) {
	e := Object{
		{Key: "z", Value: Str("<b>")},
		{Key: "a", Value: VariableRef{Name: "v", Default: 42.0, HasDefault: true}},
		{Key: "m", Value: Array{StepRef{Step: "s", Path: "$.x"}, Literal{Value: "{{x}}"}}},
	}
	b, err := MarshalJSON(e)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"<b>","a":{"variable":"v","default":42},"m":[{"step":"s","path":"$.x"},{"literal":"{{x}}"}]}`, string(b))

	back, err := FromJSON(b)
	require.NoError(t, err)
	assert.Equal(t, e, back)
}

func TestEvaluate(t *testing.T) {
	ctx := &Context{
		Input:       map[string]any{"q": "why", "n": map[string]any{"k": 1.0}},
		StepOutputs: map[string]any{"s1": map[string]any{"a": map[string]any{"b": []any{10.0, 20.0, 30.0}}}, "s2": "text"},
		Variables:   map[string]any{"tone": "dry"},
	}
	tests := []struct {
		name string
		e    Expr
		want any
	}{
		{"scalar", Str("x"), "x"},
		{"whole input", WholeInput(), ctx.Input},
		{"empty input field", InputRef{}, ctx.Input},
		{"input field", InputRef{Field: "n.k"}, 1.0},
		{"missing input field", InputRef{Field: "zzz"}, nil},
		{"step", Step("s2"), "text"},
		{"step path", StepRef{Step: "s1", Path: "$.a.b[-1]"}, 30.0},
		{"step wildcard", StepRef{Step: "s1", Path: "$.a.b[*]"}, []any{10.0, 20.0, 30.0}},
		{"variable", VariableRef{Name: "tone"}, "dry"},
		{"variable default", VariableRef{Name: "x", Default: 42.0, HasDefault: true}, 42.0},
		{"variable null default", VariableRef{Name: "x", HasDefault: true}, nil},
		{"literal not interpreted", Literal{Value: map[string]any{"step": "ghost"}}, map[string]any{"step": "ghost"}},
		{"template", Template{Text: "Q={{$input.q}} S={{$step.s2}} T={{$variable.tone}} \\{{raw\\}}"}, "Q=why S=text T=dry {{raw}}"},
		{"template missing step", Template{Text: "{{$step.ghost}}!"}, "[missing step: ghost]!"},
		{"template step path", Template{Text: "{{$step.s1.a.b[0]}}"}, "10"},
		{"template object", Template{Text: "{{$input.n}}"}, `{"k":1}`},
		{"nested", Object{{Key: "list", Value: Array{Step("s2"), Num(1)}}}, map[string]any{"list": []any{"text", 1.0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.e, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateReferenceErrors(t *testing.T) {
	ctx := &Context{}
	tests := []struct {
		name string
		e    Expr
		kind string
	}{
		{"missing step", Step("ghost"), "step"},
		{"missing variable", VariableRef{Name: "x"}, "variable"},
		{"no storage", FromRef{WorkflowPath: "w"}, "workflow"},
		{"nested", Array{Num(1), Step("ghost")}, "step"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.e, ctx)
			var re *ReferenceError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.kind, re.Kind)
		})
	}

	_, err := Evaluate(Str("x"), nil)
	assert.True(t, errors.Is(err, ErrNilContext))
}

func TestEvaluateFrom(t *testing.T) {
	ctx := &Context{WorkflowStorage: map[string]any{
		"other": map[string]any{"summ": map[string]any{"text": "done"}},
	}}
	got, err := Evaluate(FromRef{WorkflowPath: "other", Step: "summ", Path: "$.text"}, ctx)
	require.NoError(t, err)
	assert.Equal(t, "done", got)

	_, err = Evaluate(FromRef{WorkflowPath: "other", Step: "nope"}, ctx)
	var re *ReferenceError
	require.ErrorAs(t, err, &re)

	_, err = Evaluate(FromRef{WorkflowPath: "missing"}, ctx)
	require.ErrorAs(t, err, &re)
}

func TestReferencesIncludeTemplates(t *testing.T) {
	e := Object{
		{Key: "a", Value: Step("s1")},
		{Key: "b", Value: Template{Text: "{{$step.s2.x}} and {{$step.s1}} \\{{$step.s3\\}} {{$variable.v1}}"}},
		{Key: "c", Value: Array{VariableRef{Name: "v2"}, Step("s2")}},
		{Key: "d", Value: Literal{Value: map[string]any{"step": "s4"}}},
	}
	assert.Equal(t, []string{"s1", "s2"}, StepReferences(e))
	assert.Equal(t, []string{"v1", "v2"}, VariableReferences(e))
}

func TestValidateStatically(t *testing.T) {
	steps := map[string]bool{"s1": true}
	vars := map[string]bool{"known": true}

	ok := ValidateStatically(Object{
		{Key: "a", Value: Step("s1")},
		{Key: "b", Value: VariableRef{Name: "known"}},
		{Key: "c", Value: VariableRef{Name: "other", HasDefault: true}},
		{Key: "d", Value: Template{Text: "{{$step.s1}}"}},
	}, steps, vars)
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Errors)

	bad := ValidateStatically(Object{
		{Key: "a", Value: Step("ghost")},
		{Key: "b", Value: VariableRef{Name: "other"}},
		{Key: "c", Value: StepRef{Step: "s1", Path: "$.x[1:2:0]"}},
		{Key: "d", Value: Template{Text: "{{$step.phantom}}"}},
	}, steps, vars)
	assert.False(t, bad.Valid)
	require.Len(t, bad.Errors, 4)
	assert.Contains(t, bad.Errors[0], `a: unknown step "ghost"`)
	assert.Contains(t, bad.Errors[1], `b: unknown variable "other"`)
	assert.Contains(t, bad.Errors[2], "malformed path")
	assert.Contains(t, bad.Errors[3], "phantom")
}

func TestObjectHelpers(t *testing.T) {
	o := Object{{Key: "a", Value: Num(1)}}
	o2 := o.With("b", Num(2)).With("a", Num(3))
	assert.Equal(t, []string{"a", "b"}, o2.Keys())
	v, ok := o2.Get("a")
	require.True(t, ok)
	assert.Equal(t, Num(3), v)
	v, _ = o.Get("a")
	assert.Equal(t, Num(1), v, "With must not mutate the receiver")
	assert.True(t, IsReference(Step("x")))
	assert.False(t, IsReference(o))
}

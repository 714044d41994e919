package convert

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flowgraph"
	"github.com/meikuraledutech/flowgraph/expr"
	"github.com/meikuraledutech/flowgraph/registry"
	"github.com/meikuraledutech/flowgraph/validate"
	"github.com/meikuraledutech/flowgraph/wire"
)

func inputNode(id string, required bool) flowgraph.Node {
	return flowgraph.Node{ID: id, Type: flowgraph.NodeInput, Data: flowgraph.NodeData{
		Label:  "Input " + id,
		Config: &flowgraph.InputConfig{Required: required},
	}}
}

func promptNode(id, user string) flowgraph.Node {
	return flowgraph.Node{ID: id, Type: flowgraph.NodePrompt, Data: flowgraph.NodeData{
		Label:  "Prompt " + id,
		Config: &flowgraph.PromptConfig{Model: "gpt-4o", UserPrompt: user},
	}}
}

func outputNode(id string) flowgraph.Node {
	return flowgraph.Node{ID: id, Type: flowgraph.NodeOutput, Data: flowgraph.NodeData{
		Label:  "Output " + id,
		Config: &flowgraph.OutputConfig{},
	}}
}

func edge(src, dst string) flowgraph.Edge {
	return flowgraph.Edge{ID: src + "->" + dst, Source: src, Target: dst}
}

func linear() *flowgraph.Workflow {
	return &flowgraph.Workflow{
		Name: "demo",
		Nodes: []flowgraph.Node{
			inputNode("in1", true),
			promptNode("p1", "{{nodes.in1.output}}"),
			outputNode("out1"),
		},
		Edges: []flowgraph.Edge{edge("in1", "p1"), edge("p1", "out1")},
	}
}

func field(t *testing.T, o expr.Object, key string) expr.Expr {
	t.Helper()
	e, ok := o.Get(key)
	require.True(t, ok, "missing %q in %v", key, o.Keys())
	return e
}

func message(t *testing.T, st wire.Step, i int) expr.Object {
	t.Helper()
	msgs, ok := field(t, st.Input, "messages").(expr.Array)
	require.True(t, ok)
	require.Greater(t, len(msgs), i)
	obj, ok := msgs[i].(expr.Object)
	require.True(t, ok)
	return obj
}

func TestCompileEndToEnd(t *testing.T) {
	res, err := Compile(linear())
	require.NoError(t, err)
	doc := res.Document
	assert.Empty(t, res.Warnings)

	require.Len(t, doc.Steps, 3)
	assert.Equal(t, []string{"in1", "p1", "out1"}, []string{doc.Steps[0].ID, doc.Steps[1].ID, doc.Steps[2].ID})
	assert.Equal(t, wire.SchemaURI, doc.Schema)
	assert.Equal(t, "demo", doc.Name)

	p1 := doc.Steps[1]
	assert.Equal(t, "/openai/chat", p1.Component)
	assert.Equal(t, expr.Str("system"), field(t, message(t, p1, 0), "role"))
	assert.Equal(t, expr.Step("in1"), field(t, message(t, p1, 1), "content"))
	assert.Equal(t, expr.Num(0.7), field(t, p1.Input, "temperature"))
	assert.Equal(t, expr.Num(2048), field(t, p1.Input, "max_tokens"))
	assert.Equal(t, expr.Num(1), field(t, p1.Input, "top_p"))
	assert.Equal(t, expr.Num(0), field(t, p1.Input, "frequency_penalty"))
	assert.Equal(t, expr.Num(0), field(t, p1.Input, "presence_penalty"))
	assert.Nil(t, p1.OnError)
	assert.False(t, p1.MustExecute)
	assert.Equal(t, map[string]any{
		MetaNodeType:   "prompt",
		MetaOriginalID: "p1",
		MetaLabel:      "Prompt p1",
		MetaDependsOn:  []any{"in1"},
	}, p1.Metadata)

	assert.Equal(t, expr.Step("p1"), field(t, doc.Steps[2].Input, "value"))
	assert.Equal(t, expr.Step("out1"), doc.Output)
	assert.Equal(t, map[string]any{
		"type":       "object",
		"properties": map[string]any{"in1": map[string]any{"type": "string"}},
		"required":   []any{"in1"},
	}, doc.InputSchema)

	w, err := Reconstruct(doc)
	require.NoError(t, err)
	require.Len(t, w.Nodes, 3)
	require.Len(t, w.Edges, 2)
	assert.Equal(t, "in1", w.Edges[0].Source)
	assert.Equal(t, "p1", w.Edges[0].Target)
	assert.Equal(t, "p1", w.Edges[1].Source)
	assert.Equal(t, "out1", w.Edges[1].Target)
	assert.Equal(t, flowgraph.NodePrompt, w.Nodes[1].Type)
	assert.Equal(t, "Prompt p1", w.Nodes[1].Data.Label)
	cfg := w.Nodes[1].Data.Config.(*flowgraph.PromptConfig)
	assert.Equal(t, "{{nodes.in1.output}}", cfg.UserPrompt)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Nil(t, cfg.Temperature)
	assert.Equal(t, flowgraph.Position{X: layoutX, Y: DefaultLayoutSpacing}, w.Nodes[1].Position)
}

func TestRoundTripIsStable(t *testing.T) {
	first, err := Compile(linear())
	require.NoError(t, err)
	w, err := Reconstruct(first.Document)
	require.NoError(t, err)
	second, err := Compile(w)
	require.NoError(t, err)
	if diff := cmp.Diff(first.Document, second.Document); diff != "" {
		t.Fatalf("document changed across round trip (-first +second):\n%s", diff)
	}
}

func TestCompileDeterministic(t *testing.T) {
	a, err := Compile(linear())
	require.NoError(t, err)
	b, err := Compile(linear())
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(a.Document, b.Document))
	assert.Equal(t, a.Mapping, b.Mapping)
}

func TestAggregateKeepsEdgeOrder(t *testing.T) {
	w := &flowgraph.Workflow{
		Nodes: []flowgraph.Node{
			promptNode("a", "x"), promptNode("b", "y"), promptNode("c", "z"),
			{ID: "agg", Type: flowgraph.NodeAggregate, Data: flowgraph.NodeData{Config: &flowgraph.AggregateConfig{}}},
		},
		Edges: []flowgraph.Edge{edge("c", "agg"), edge("a", "agg"), edge("b", "agg")},
	}
	res, err := Compile(w)
	require.NoError(t, err)
	agg := res.Document.Steps[3]
	assert.Equal(t, "agg", agg.ID)
	assert.Equal(t, registry.Aggregate, agg.Component)
	assert.Equal(t, expr.Array{expr.Step("c"), expr.Step("a"), expr.Step("b")}, field(t, agg.Input, "inputs"))
	assert.Equal(t, expr.Str("concat"), field(t, agg.Input, "strategy"))
	assert.Equal(t, expr.Str("\n"), field(t, agg.Input, "separator"))
	assert.Equal(t, expr.Step("agg"), res.Document.Output)

	back, err := Reconstruct(res.Document)
	require.NoError(t, err)
	require.Len(t, back.Edges, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{back.Edges[0].Source, back.Edges[1].Source, back.Edges[2].Source})
}

func TestLiteralRoundTrip(t *testing.T) {
	w := &flowgraph.Workflow{Nodes: []flowgraph.Node{promptNode("p", `\{{not a ref\}}`)}}
	res, err := Compile(w)
	require.NoError(t, err)
	content := field(t, message(t, res.Document.Steps[0], 1), "content")
	assert.Equal(t, expr.Literal{Value: "not a ref"}, content)

	back, err := Reconstruct(res.Document)
	require.NoError(t, err)
	assert.Equal(t, `\{{not a ref\}}`, back.Nodes[0].Data.Config.(*flowgraph.PromptConfig).UserPrompt)

	again, err := Compile(back)
	require.NoError(t, err)
	assert.Equal(t, content, field(t, message(t, again.Document.Steps[0], 1), "content"))
}

func TestReconstructRejectsNonStringLiteralPrompt(t *testing.T) {
	res, err := Compile(&flowgraph.Workflow{Nodes: []flowgraph.Node{promptNode("p", "hi")}})
	require.NoError(t, err)
	msg := message(t, res.Document.Steps[0], 1)
	for i := range msg {
		if msg[i].Key == "content" {
			msg[i].Value = expr.Literal{Value: 42.0}
		}
	}

	_, err = Reconstruct(res.Document)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text form")
}

func TestCompileRejectsCycle(t *testing.T) {
	w := &flowgraph.Workflow{
		Nodes: []flowgraph.Node{promptNode("a", "x"), promptNode("b", "y")},
		Edges: []flowgraph.Edge{edge("a", "b"), edge("b", "a")},
	}
	_, err := Compile(w)
	require.Error(t, err)
	assert.True(t, errors.Is(err, flowgraph.ErrCycleDetected))

	var ce *flowgraph.CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "a", ce.NodeID)

	var ige *InvalidGraphError
	require.True(t, errors.As(err, &ige))
	assert.False(t, ige.Result.Valid)
}

func TestCompileDanglingEdge(t *testing.T) {
	w := &flowgraph.Workflow{
		Nodes: []flowgraph.Node{promptNode("a", "x")},
		Edges: []flowgraph.Edge{edge("ghost", "a")},
	}
	_, err := Compile(w)
	var ige *InvalidGraphError
	require.True(t, errors.As(err, &ige))
	assert.False(t, errors.Is(err, flowgraph.ErrCycleDetected))
}

func TestCompileUnsupportedNodeType(t *testing.T) {
	w := &flowgraph.Workflow{Nodes: []flowgraph.Node{{ID: "x", Type: "teleport"}}}
	_, err := Compile(w)
	require.Error(t, err)
	assert.True(t, errors.Is(err, flowgraph.ErrUnsupportedNodeType))

	var ue *flowgraph.UnsupportedNodeTypeError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "x", ue.NodeID)
}

func TestCompileEmpty(t *testing.T) {
	_, err := Compile(&flowgraph.Workflow{})
	assert.ErrorIs(t, err, ErrEmptyWorkflow)
	_, err = Compile(nil)
	assert.ErrorIs(t, err, ErrEmptyWorkflow)
}

func TestEveryNodeTypeCompiles(t *testing.T) {
	for _, nt := range flowgraph.NodeTypes {
		t.Run(string(nt), func(t *testing.T) {
			w := &flowgraph.Workflow{Nodes: []flowgraph.Node{{ID: "n", Type: nt}}}
			res, err := Compile(w)
			require.NoError(t, err)
			require.Len(t, res.Document.Steps, 1)
			got, known := registry.New().NodeTypeFor(res.Document.Steps[0].Component)
			require.True(t, known)
			assert.Equal(t, nt, got)
		})
	}
}

func TestMismatchedConfigCompilesAsEmpty(t *testing.T) {
	n := outputNode("out")
	n.Data.Config = &flowgraph.PromptConfig{Model: "gpt-4o"}
	res, err := Compile(&flowgraph.Workflow{Nodes: []flowgraph.Node{n}})
	require.NoError(t, err)
	st := res.Document.Steps[0]
	assert.Equal(t, registry.Output, st.Component)
	assert.Equal(t, []string{"value"}, st.Input.Keys())
}

func TestImplicitUpstreamWarning(t *testing.T) {
	w := &flowgraph.Workflow{
		Nodes: []flowgraph.Node{inputNode("in1", false), promptNode("p1", "Summarize {{something}}")},
		Edges: []flowgraph.Edge{edge("in1", "p1")},
	}
	res, err := Compile(w)
	require.NoError(t, err)
	content := field(t, message(t, res.Document.Steps[1], 1), "content")
	assert.Equal(t, expr.Template{Text: "{{$step.in1}}\n\nSummarize {{something}}"}, content)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "prepended upstream step")
	assert.Contains(t, res.Warnings[1], "{{something}}")
}

func TestMixedTemplate(t *testing.T) {
	w := &flowgraph.Workflow{Nodes: []flowgraph.Node{promptNode("p", "Hello {{input}}!")}}
	res, err := Compile(w)
	require.NoError(t, err)
	assert.Equal(t, expr.Template{Text: "Hello {{$input}}!"}, field(t, message(t, res.Document.Steps[0], 1), "content"))
}

func TestMultipleOutputs(t *testing.T) {
	w := &flowgraph.Workflow{
		Nodes: []flowgraph.Node{inputNode("in", false), promptNode("p1", "{{input}}"), promptNode("p2", "{{input}}")},
		Edges: []flowgraph.Edge{edge("in", "p1"), edge("in", "p2")},
	}
	res, err := Compile(w)
	require.NoError(t, err)
	assert.Equal(t, expr.Object{
		{Key: "p1", Value: expr.Step("p1")},
		{Key: "p2", Value: expr.Step("p2")},
	}, res.Document.Output)
}

func TestSanitizedIDsSurviveRoundTrip(t *testing.T) {
	w := &flowgraph.Workflow{
		Nodes: []flowgraph.Node{inputNode("node-1", false), promptNode("node 1", "{{nodes.node-1.output}}")},
		Edges: []flowgraph.Edge{edge("node-1", "node 1")},
	}
	res, err := Compile(w)
	require.NoError(t, err)
	require.Len(t, res.Document.Steps, 2)
	assert.Equal(t, "node_1", res.Document.Steps[0].ID)
	assert.Equal(t, "node_1_1", res.Document.Steps[1].ID)
	assert.Equal(t, expr.Step("node_1"), field(t, message(t, res.Document.Steps[1], 1), "content"))

	back, err := Reconstruct(res.Document)
	require.NoError(t, err)
	assert.Equal(t, "node-1", back.Nodes[0].ID)
	assert.Equal(t, "node 1", back.Nodes[1].ID)
	require.Len(t, back.Edges, 1)
	assert.Equal(t, "node-1", back.Edges[0].Source)
	assert.Equal(t, "node 1", back.Edges[0].Target)
	assert.Equal(t, "{{nodes.node-1.output}}", back.Nodes[1].Data.Config.(*flowgraph.PromptConfig).UserPrompt)
}

func TestPromptOptions(t *testing.T) {
	temp, tokens := 0.2, 512
	n := promptNode("p", "hi")
	n.Data.Config = &flowgraph.PromptConfig{
		Model:        "claude-3-opus",
		SystemPrompt: "Be brief.",
		UserPrompt:   "hi",
		Temperature:  &temp,
		MaxTokens:    &tokens,
		ErrorHandler: &flowgraph.ErrorHandler{Strategy: flowgraph.StrategyRetry},
		MustExecute:  true,
	}
	res, err := Compile(&flowgraph.Workflow{Nodes: []flowgraph.Node{n}})
	require.NoError(t, err)
	st := res.Document.Steps[0]
	assert.Equal(t, "/anthropic/messages", st.Component)
	assert.Equal(t, expr.Num(0.2), field(t, st.Input, "temperature"))
	assert.Equal(t, expr.Num(512), field(t, st.Input, "max_tokens"))
	assert.Equal(t, expr.Str("Be brief."), field(t, message(t, st, 0), "content"))
	assert.Equal(t, &wire.ErrorHandler{Type: wire.OnErrorRetry, MaxAttempts: DefaultRetryAttempts}, st.OnError)
	assert.True(t, st.MustExecute)

	back, err := Reconstruct(res.Document)
	require.NoError(t, err)
	cfg := back.Nodes[0].Data.Config.(*flowgraph.PromptConfig)
	assert.Equal(t, "Be brief.", cfg.SystemPrompt)
	assert.Equal(t, &temp, cfg.Temperature)
	assert.Equal(t, &tokens, cfg.MaxTokens)
	assert.Equal(t, &flowgraph.ErrorHandler{Strategy: flowgraph.StrategyRetry, MaxAttempts: DefaultRetryAttempts}, cfg.ErrorHandler)
	assert.True(t, cfg.MustExecute)
}

func TestUnknownModelWarns(t *testing.T) {
	n := promptNode("p", "hi")
	n.Data.Config.(*flowgraph.PromptConfig).Model = "homegrown-7b"
	res, err := Compile(&flowgraph.Workflow{Nodes: []flowgraph.Node{n}})
	require.NoError(t, err)
	assert.Equal(t, registry.DefaultModel, res.Document.Steps[0].Component)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "homegrown-7b")
}

func TestCompileUsesRegistryRules(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Component{Path: "/acme/llm", NodeType: flowgraph.NodePrompt}))
	require.NoError(t, reg.AddRule(registry.Rule{Prefix: "acme-", Path: "/acme/llm"}))

	n := promptNode("p", "hi")
	n.Data.Config.(*flowgraph.PromptConfig).Model = "acme-1"
	compare := flowgraph.Node{ID: "c", Type: flowgraph.NodeModelCompare, Data: flowgraph.NodeData{
		Config: &flowgraph.ModelCompareConfig{Models: []string{"acme-2", "gpt-4o"}, UserPrompt: "hi"},
	}}
	res, err := Compile(&flowgraph.Workflow{Nodes: []flowgraph.Node{n, compare}}, WithRegistry(reg))
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "/acme/llm", res.Document.Steps[0].Component)

	branches := field(t, res.Document.Steps[1].Input, "branches").(expr.Array)
	require.Len(t, branches, 2)
	assert.Equal(t, expr.Str("/acme/llm"), field(t, branches[0].(expr.Object), "provider"))
	assert.Equal(t, expr.Str("/openai/chat"), field(t, branches[1].(expr.Object), "provider"))

	back, err := Reconstruct(res.Document, WithRegistry(reg))
	require.NoError(t, err)
	assert.Equal(t, flowgraph.NodePrompt, back.Nodes[0].Type)
	assert.Equal(t, "acme-1", back.Nodes[0].Data.Config.(*flowgraph.PromptConfig).Model)

	// The stock registry never learned the rule.
	res, err = Compile(&flowgraph.Workflow{Nodes: []flowgraph.Node{n}})
	require.NoError(t, err)
	assert.Equal(t, registry.DefaultModel, res.Document.Steps[0].Component)
	assert.Len(t, res.Warnings, 1)
}

func TestBranchHumanGateAndCompare(t *testing.T) {
	timeout := 60
	w := &flowgraph.Workflow{
		Nodes: []flowgraph.Node{
			inputNode("in", false),
			{ID: "br", Type: flowgraph.NodeBranch, Data: flowgraph.NodeData{Config: &flowgraph.BranchConfig{Condition: "input.size() > 3"}}},
			{ID: "gate", Type: flowgraph.NodeHumanGate, Data: flowgraph.NodeData{Config: &flowgraph.HumanGateConfig{
				Instructions: "Check it", AllowEdit: true, TimeoutSeconds: &timeout,
			}}},
			{ID: "cmp", Type: flowgraph.NodeModelCompare, Data: flowgraph.NodeData{Config: &flowgraph.ModelCompareConfig{
				Models: []string{"gpt-4o", "claude-3"}, UserPrompt: "{{nodes.gate.output}}",
			}}},
		},
		Edges: []flowgraph.Edge{edge("in", "br"), edge("br", "gate"), edge("gate", "cmp")},
	}
	res, err := Compile(w)
	require.NoError(t, err)
	steps := res.Document.Steps

	assert.Equal(t, registry.Conditional, steps[1].Component)
	assert.Equal(t, expr.Array{expr.Object{{Key: "label", Value: expr.Str("true")}}}, field(t, steps[1].Input, "branches"))
	assert.Equal(t, expr.Step("in"), field(t, steps[1].Input, "value"))

	assert.Equal(t, registry.Pause, steps[2].Component)
	assert.Equal(t, expr.Num(60), field(t, steps[2].Input, "timeout_seconds"))
	assert.Equal(t, expr.Step("br"), field(t, steps[2].Input, "value"))

	assert.Equal(t, registry.Parallel, steps[3].Component)
	branches := field(t, steps[3].Input, "branches").(expr.Array)
	require.Len(t, branches, 2)
	assert.Equal(t, expr.Str("/openai/chat"), field(t, branches[0].(expr.Object), "provider"))
	assert.Equal(t, expr.Str("/anthropic/messages"), field(t, branches[1].(expr.Object), "provider"))
	assert.Equal(t, field(t, branches[0].(expr.Object), "messages"), field(t, branches[1].(expr.Object), "messages"))

	back, err := Reconstruct(res.Document)
	require.NoError(t, err)
	assert.Equal(t, &flowgraph.BranchConfig{Condition: "input.size() > 3"}, back.Nodes[1].Data.Config)
	assert.Equal(t, &flowgraph.HumanGateConfig{Instructions: "Check it", AllowEdit: true, TimeoutSeconds: &timeout}, back.Nodes[2].Data.Config)
	cmpCfg := back.Nodes[3].Data.Config.(*flowgraph.ModelCompareConfig)
	assert.Equal(t, []string{"gpt-4o", "claude-3"}, cmpCfg.Models)
	assert.Equal(t, "{{nodes.gate.output}}", cmpCfg.UserPrompt)
	assert.Len(t, back.Edges, 3)
}

func TestReconstructForeignDocument(t *testing.T) {
	doc := &wire.Document{
		Name: "foreign",
		Steps: []wire.Step{
			{ID: "start", Component: registry.Input, Input: expr.Object{{Key: "name", Value: expr.Str("start")}}},
			{ID: "ask", Component: "/anthropic/messages", Input: expr.Object{
				{Key: "model", Value: expr.Str("claude-3")},
				{Key: "prompt", Value: expr.Template{Text: "Hi {{$step.start}}"}},
				{Key: "who", Value: expr.VariableRef{Name: "user", Default: "anon", HasDefault: true}},
			}},
			{ID: "merge", Component: "/acme/my-aggregate-tool", Input: expr.Object{
				{Key: "inputs", Value: expr.Array{expr.Step("ask")}},
			}},
			{ID: "custom", Component: "/acme/summarizer", Input: expr.Object{
				{Key: "prompt", Value: expr.Step("merge")},
			}},
		},
	}
	w, err := Reconstruct(doc, WithLayoutSpacing(100))
	require.NoError(t, err)

	types := make([]flowgraph.NodeType, len(w.Nodes))
	for i, n := range w.Nodes {
		types[i] = n.Type
	}
	assert.Equal(t, []flowgraph.NodeType{flowgraph.NodeInput, flowgraph.NodePrompt, flowgraph.NodeAggregate, flowgraph.NodePrompt}, types)
	assert.Equal(t, "Hi {{nodes.start.output}}", w.Nodes[1].Data.Config.(*flowgraph.PromptConfig).UserPrompt)
	assert.Equal(t, "{{nodes.merge.output}}", w.Nodes[3].Data.Config.(*flowgraph.PromptConfig).UserPrompt)
	assert.Equal(t, float64(300), w.Nodes[3].Position.Y)
	assert.Equal(t, map[string]any{"user": "anon"}, w.Variables)
	require.Len(t, w.Edges, 3)
	assert.Equal(t, "start", w.Edges[0].Source)
	assert.Equal(t, "ask", w.Edges[0].Target)
}

func TestReconstructUnsupportedComponent(t *testing.T) {
	doc := &wire.Document{Name: "x", Steps: []wire.Step{{ID: "fetch", Component: registry.HTTP, Input: expr.Object{}}}}
	_, err := Reconstruct(doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, flowgraph.ErrUnsupportedComponent))

	var ue *flowgraph.UnsupportedComponentError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "fetch", ue.StepID)
}

func TestReconstructKeepsNodeIDsUnique(t *testing.T) {
	nodeIDs := func(w *flowgraph.Workflow) []string {
		ids := make([]string, len(w.Nodes))
		for i, n := range w.Nodes {
			ids[i] = n.ID
		}
		return ids
	}

	doc := &wire.Document{Name: "x", Steps: []wire.Step{
		{ID: "x", Component: registry.Input, Input: expr.Object{{Key: "name", Value: expr.Str("x")}},
			Metadata: map[string]any{MetaOriginalID: "y"}},
		{ID: "y", Component: registry.Output, Input: expr.Object{{Key: "value", Value: expr.Step("x")}}},
	}}
	w, err := Reconstruct(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, nodeIDs(w))
	require.Len(t, w.Edges, 1)
	assert.Equal(t, "x", w.Edges[0].Source)
	assert.Equal(t, "y", w.Edges[0].Target)
	assert.True(t, validate.Graph(w).Valid)

	doc = &wire.Document{Name: "x", Steps: []wire.Step{
		{ID: "a", Component: registry.Input, Input: expr.Object{}, Metadata: map[string]any{MetaOriginalID: "b"}},
		{ID: "b", Component: registry.Input, Input: expr.Object{}, Metadata: map[string]any{MetaOriginalID: "c"}},
		{ID: "c", Component: registry.Input, Input: expr.Object{}},
	}}
	w, err = Reconstruct(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "b_1", "c"}, nodeIDs(w))

	doc.Steps[2].ID = "a"
	_, err = Reconstruct(doc)
	assert.ErrorContains(t, err, "duplicate step id")
}

func TestEdgeIDsDeterministic(t *testing.T) {
	res, err := Compile(linear())
	require.NoError(t, err)
	a, err := Reconstruct(res.Document)
	require.NoError(t, err)
	b, err := Reconstruct(res.Document)
	require.NoError(t, err)
	assert.Equal(t, a.Edges, b.Edges)
	assert.NotEqual(t, a.Edges[0].ID, a.Edges[1].ID)
}

func TestImport(t *testing.T) {
	for _, format := range []wire.Format{wire.FormatJSON, wire.FormatText} {
		t.Run(string(format), func(t *testing.T) {
			data, _, err := Export(linear(), format)
			require.NoError(t, err)

			res, err := Import(data, "")
			require.NoError(t, err)
			assert.True(t, res.Validation.Valid)
			require.NotNil(t, res.Workflow)
			assert.Len(t, res.Workflow.Nodes, 3)
			assert.Len(t, res.Workflow.Edges, 2)
			assert.True(t, res.Compatibility.Has("external_component"))
		})
	}
}

func TestImportInvalid(t *testing.T) {
	res, err := Import([]byte(`{"name":"x","steps":[{"id":"a","component":"/core/input","input":{}}],"output":{"step":"ghost"}}`), wire.FormatJSON)
	var ide *InvalidDocumentError
	require.True(t, errors.As(err, &ide))
	assert.Nil(t, res.Workflow)
	require.Len(t, res.Validation.Errors, 1)
	assert.Equal(t, "ghost", res.Validation.Errors[0].Ref)
}

func TestImportRejectsReferenceLoop(t *testing.T) {
	data := []byte(`{"name":"loop","steps":[
		{"id":"a","component":"/openai/chat","input":{"prompt":{"step":"b"}}},
		{"id":"b","component":"/openai/chat","input":{"prompt":{"step":"a"}}}
	]}`)
	res, err := Import(data, wire.FormatJSON)
	var ide *InvalidDocumentError
	require.True(t, errors.As(err, &ide))
	_, cyclic := res.Validation.Cycle()
	assert.True(t, cyclic)
	assert.Nil(t, res.Workflow)
}

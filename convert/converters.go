package convert

import (
	"fmt"
	"math"

	"github.com/meikuraledutech/flowgraph"
	"github.com/meikuraledutech/flowgraph/expr"
	"github.com/meikuraledutech/flowgraph/interp"
	"github.com/meikuraledutech/flowgraph/wire"
)

// Prompt parameter defaults.
const (
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 2048
	DefaultTopP             = 1.0
	DefaultFrequencyPenalty = 0.0
	DefaultPresencePenalty  = 0.0
	DefaultRetryAttempts    = 3
	DefaultSeparator        = "\n"
)

// stepBuilder fills in the component and input of one node's step. The
// caller sets the id and metadata.
type stepBuilder struct {
	c    *compiler
	n    *flowgraph.Node
	step wire.Step
}

var _ flowgraph.ConfigVisitor = (*stepBuilder)(nil)

func (c *compiler) buildStep(n *flowgraph.Node) (wire.Step, error) {
	b := &stepBuilder{c: c, n: n}
	if err := n.TypedConfig().Accept(b); err != nil {
		return wire.Step{}, err
	}
	return b.step, nil
}

// component asks the registry which component the node compiles to.
func (b *stepBuilder) component(t flowgraph.NodeType, model string) (string, error) {
	path, err := b.c.reg.ComponentForNode(t, model)
	if err != nil {
		return "", fmt.Errorf("convert: node %q: %w", b.n.ID, err)
	}
	if t != flowgraph.NodePrompt {
		return path, nil
	}
	if _, matched := b.c.reg.ResolveModel(model); !matched {
		b.c.warnf("node %q: model %q matches no provider, using %s", b.n.ID, model, path)
	}
	return path, nil
}

func (b *stepBuilder) Input(cfg *flowgraph.InputConfig) error {
	component, err := b.component(flowgraph.NodeInput, "")
	if err != nil {
		return err
	}
	t := cfg.InputType
	if t == "" {
		t = "string"
	}
	in := expr.Object{
		{Key: "name", Value: expr.Str(b.c.mapping.Sanitized(b.n.ID))},
		{Key: "type", Value: expr.Str(t)},
		{Key: "required", Value: expr.Bool(cfg.Required)},
	}
	if cfg.Description != "" {
		in = append(in, expr.Field{Key: "description", Value: expr.Str(cfg.Description)})
	}
	if cfg.DefaultValue != nil {
		in = append(in, expr.Field{Key: "default", Value: constant(cfg.DefaultValue)})
	}
	b.step = wire.Step{Component: component, Input: in}
	return nil
}

func (b *stepBuilder) Output(cfg *flowgraph.OutputConfig) error {
	component, err := b.component(flowgraph.NodeOutput, "")
	if err != nil {
		return err
	}
	in := expr.Object{{Key: "value", Value: b.c.firstUpstream(b.n)}}
	if cfg.Format != "" {
		in = append(in, expr.Field{Key: "format", Value: expr.Str(cfg.Format)})
	}
	b.step = wire.Step{Component: component, Input: in}
	return nil
}

func (b *stepBuilder) Prompt(cfg *flowgraph.PromptConfig) error {
	component, err := b.component(flowgraph.NodePrompt, cfg.Model)
	if err != nil {
		return err
	}
	handler, err := b.c.errorHandler(b.n, cfg.ErrorHandler)
	if err != nil {
		return err
	}
	in := expr.Object{
		{Key: "model", Value: expr.Str(cfg.Model)},
		{Key: "messages", Value: b.c.messages(b.n, cfg.SystemPrompt, cfg.UserPrompt)},
		{Key: "temperature", Value: expr.Num(orFloat(cfg.Temperature, DefaultTemperature))},
		{Key: "max_tokens", Value: expr.Num(float64(orInt(cfg.MaxTokens, DefaultMaxTokens)))},
		{Key: "top_p", Value: expr.Num(orFloat(cfg.TopP, DefaultTopP))},
		{Key: "frequency_penalty", Value: expr.Num(orFloat(cfg.FrequencyPenalty, DefaultFrequencyPenalty))},
		{Key: "presence_penalty", Value: expr.Num(orFloat(cfg.PresencePenalty, DefaultPresencePenalty))},
	}
	b.step = wire.Step{Component: component, Input: in, OnError: handler, MustExecute: cfg.MustExecute}
	return nil
}

func (b *stepBuilder) Branch(cfg *flowgraph.BranchConfig) error {
	component, err := b.component(flowgraph.NodeBranch, "")
	if err != nil {
		return err
	}
	branches := expr.Array{}
	for _, br := range cfg.Branches {
		obj := expr.Object{{Key: "label", Value: expr.Str(br.Label)}}
		if br.Condition != "" {
			obj = append(obj, expr.Field{Key: "condition", Value: expr.Str(br.Condition)})
		}
		branches = append(branches, obj)
	}
	if len(branches) == 0 {
		branches = append(branches, expr.Object{{Key: "label", Value: expr.Str("true")}})
	}
	in := expr.Object{
		{Key: "condition", Value: expr.Str(cfg.Condition)},
		{Key: "branches", Value: branches},
		{Key: "value", Value: b.c.firstUpstream(b.n)},
	}
	b.step = wire.Step{Component: component, Input: in}
	return nil
}

func (b *stepBuilder) Aggregate(cfg *flowgraph.AggregateConfig) error {
	component, err := b.component(flowgraph.NodeAggregate, "")
	if err != nil {
		return err
	}
	strategy := cfg.Strategy
	switch strategy {
	case "":
		strategy = flowgraph.AggregateConcat
	case flowgraph.AggregateConcat, flowgraph.AggregateVote, flowgraph.AggregateMerge:
	default:
		return fmt.Errorf("convert: node %q: unknown aggregate strategy %q", b.n.ID, strategy)
	}
	sep := DefaultSeparator
	if cfg.Separator != nil {
		sep = *cfg.Separator
	}
	inputs := expr.Array{}
	for _, e := range b.c.w.Incoming(b.n.ID) {
		inputs = append(inputs, expr.Step(b.c.mapping.Sanitized(e.Source)))
	}
	in := expr.Object{
		{Key: "strategy", Value: expr.Str(strategy)},
		{Key: "separator", Value: expr.Str(sep)},
		{Key: "inputs", Value: inputs},
	}
	b.step = wire.Step{Component: component, Input: in}
	return nil
}

func (b *stepBuilder) HumanGate(cfg *flowgraph.HumanGateConfig) error {
	component, err := b.component(flowgraph.NodeHumanGate, "")
	if err != nil {
		return err
	}
	in := expr.Object{
		{Key: "instructions", Value: expr.Str(cfg.Instructions)},
		{Key: "allow_edit", Value: expr.Bool(cfg.AllowEdit)},
	}
	if cfg.TimeoutSeconds != nil {
		in = append(in, expr.Field{Key: "timeout_seconds", Value: expr.Num(float64(*cfg.TimeoutSeconds))})
	}
	in = append(in, expr.Field{Key: "value", Value: b.c.firstUpstream(b.n)})
	b.step = wire.Step{Component: component, Input: in}
	return nil
}

func (b *stepBuilder) ModelCompare(cfg *flowgraph.ModelCompareConfig) error {
	component, err := b.component(flowgraph.NodeModelCompare, "")
	if err != nil {
		return err
	}
	if len(cfg.Models) == 0 {
		b.c.warnf("node %q compares no models", b.n.ID)
	}
	handler, err := b.c.errorHandler(b.n, cfg.ErrorHandler)
	if err != nil {
		return err
	}
	messages := b.c.messages(b.n, cfg.SystemPrompt, cfg.UserPrompt)
	branches := make(expr.Array, 0, len(cfg.Models))
	for _, model := range cfg.Models {
		provider, err := b.component(flowgraph.NodePrompt, model)
		if err != nil {
			return err
		}
		branches = append(branches, expr.Object{
			{Key: "model", Value: expr.Str(model)},
			{Key: "provider", Value: expr.Str(provider)},
			{Key: "messages", Value: messages},
			{Key: "temperature", Value: expr.Num(orFloat(cfg.Temperature, DefaultTemperature))},
			{Key: "max_tokens", Value: expr.Num(float64(orInt(cfg.MaxTokens, DefaultMaxTokens)))},
		})
	}
	b.step = wire.Step{
		Component: component,
		Input:     expr.Object{{Key: "branches", Value: branches}},
		OnError:   handler,
	}
	return nil
}

func (b *stepBuilder) Unknown(flowgraph.UnknownConfig) error {
	return &flowgraph.UnsupportedNodeTypeError{NodeID: b.n.ID, Type: b.n.Type}
}

// messages builds the system and user turns. Only the user prompt carries
// the implicit upstream reference.
func (c *compiler) messages(n *flowgraph.Node, system, user string) expr.Array {
	sys := c.interpolate(n, system, nil)
	usr := c.interpolate(n, user, c.w.Incoming(n.ID))
	return expr.Array{
		expr.Object{{Key: "role", Value: expr.Str("system")}, {Key: "content", Value: sys}},
		expr.Object{{Key: "role", Value: expr.Str("user")}, {Key: "content", Value: usr}},
	}
}

func (c *compiler) interpolate(n *flowgraph.Node, text string, incoming []flowgraph.Edge) expr.Expr {
	res := interp.Interpolate(text, incoming, c.mapping)
	if res.Implicit {
		c.warnf("node %q: prompt names no reference, prepended upstream step %q", n.ID, res.ImplicitStep)
	}
	for _, u := range res.Unrecognized {
		c.warnf("node %q: %s is not a known reference and is kept as text", n.ID, u)
	}
	return res.Expr
}

func (c *compiler) errorHandler(n *flowgraph.Node, h *flowgraph.ErrorHandler) (*wire.ErrorHandler, error) {
	if h == nil {
		return nil, nil
	}
	switch h.Strategy {
	case flowgraph.StrategyRetry:
		attempts := h.MaxAttempts
		if attempts <= 0 {
			attempts = DefaultRetryAttempts
		}
		return &wire.ErrorHandler{Type: wire.OnErrorRetry, MaxAttempts: attempts}, nil
	case flowgraph.StrategyDefault:
		return &wire.ErrorHandler{Type: wire.OnErrorDefault, Value: h.FallbackValue, HasValue: true}, nil
	case flowgraph.StrategyFail:
		return &wire.ErrorHandler{Type: wire.OnErrorFail}, nil
	}
	return nil, fmt.Errorf("convert: node %q: unknown error strategy %q", n.ID, h.Strategy)
}

// firstUpstream references the source of the first incoming edge. Nodes
// without one get null.
func (c *compiler) firstUpstream(n *flowgraph.Node) expr.Expr {
	in := c.w.Incoming(n.ID)
	if len(in) == 0 {
		c.warnf("node %q has no incoming edge", n.ID)
		return expr.Null()
	}
	return expr.Step(c.mapping.Sanitized(in[0].Source))
}

// constant wraps a configured value. Scalars stay plain; anything else is
// a literal so that maps shaped like references are not reinterpreted.
func constant(v any) expr.Expr {
	switch t := v.(type) {
	case nil, bool, string, float64:
		return expr.Scalar{Value: t}
	case int:
		return expr.Num(float64(t))
	}
	return expr.Literal{Value: v}
}

func orFloat(p *float64, def float64) float64 {
	if p == nil || math.IsNaN(*p) {
		return def
	}
	return *p
}

func orInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

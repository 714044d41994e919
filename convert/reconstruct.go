package convert

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/meikuraledutech/flowgraph"
	"github.com/meikuraledutech/flowgraph/expr"
	"github.com/meikuraledutech/flowgraph/idmap"
	"github.com/meikuraledutech/flowgraph/interp"
	"github.com/meikuraledutech/flowgraph/registry"
	"github.com/meikuraledutech/flowgraph/wire"
)

// edgeNamespace seeds deterministic edge ids on import.
var edgeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:flowgraph:edge"))

type reconstructor struct {
	doc     *wire.Document
	reg     *registry.Registry
	mapping *idmap.Mapping
}

// Reconstruct rebuilds a graph from a wire document. Node types come from
// step metadata when present, then from the registry, then from a
// best-effort match on the component path. Steps whose component has no
// graph counterpart abort with *flowgraph.UnsupportedComponentError.
func Reconstruct(doc *wire.Document, opts ...Option) (*flowgraph.Workflow, error) {
	if doc == nil {
		return nil, errors.New("convert: document is required")
	}
	o := buildOptions(opts)
	r := &reconstructor{doc: doc, reg: o.registry, mapping: idmap.New()}
	if err := r.restoreIDs(); err != nil {
		return nil, err
	}

	w := &flowgraph.Workflow{Name: doc.Name, Nodes: make([]flowgraph.Node, 0, len(doc.Steps)), Edges: []flowgraph.Edge{}}
	for i := range doc.Steps {
		st := &doc.Steps[i]
		t, err := r.nodeType(st)
		if err != nil {
			return nil, err
		}
		cfg, err := r.config(t, st)
		if err != nil {
			return nil, err
		}
		label := metaString(st.Metadata, MetaLabel)
		if label == "" {
			label = st.ID
		}
		w.Nodes = append(w.Nodes, flowgraph.Node{
			ID:       r.mapping.Original(st.ID),
			Type:     t,
			Position: flowgraph.Position{X: layoutX, Y: float64(i) * o.spacing},
			Data:     flowgraph.NodeData{Label: label, Config: cfg},
		})
	}
	w.Edges = r.edges()
	w.Variables = variableDefaults(doc)
	return w, nil
}

// restoreIDs maps every step id back to a node id. A step without an
// original_id keeps its own id, and that id is reserved before any
// original_id is honoured, so node ids stay unique.
func (r *reconstructor) restoreIDs() error {
	steps := make(map[string]bool, len(r.doc.Steps))
	reserved := make(map[string]bool, len(r.doc.Steps))
	for _, st := range r.doc.Steps {
		if steps[st.ID] {
			return fmt.Errorf("convert: duplicate step id %q", st.ID)
		}
		steps[st.ID] = true
		if metaString(st.Metadata, MetaOriginalID) == "" {
			reserved[st.ID] = true
		}
	}

	used := make(map[string]bool, len(r.doc.Steps))
	free := func(id string) bool { return !used[id] && !reserved[id] }
	for _, st := range r.doc.Steps {
		id := metaString(st.Metadata, MetaOriginalID)
		switch {
		case id == "":
			id = st.ID
		case !free(id):
			id = st.ID
			for n := 1; !free(id); n++ {
				id = fmt.Sprintf("%s_%d", st.ID, n)
			}
		}
		used[id] = true
		r.mapping.Add(id, st.ID)
	}
	return nil
}

// nodeType infers the graph type of a step.
func (r *reconstructor) nodeType(st *wire.Step) (flowgraph.NodeType, error) {
	if t := flowgraph.NodeType(metaString(st.Metadata, MetaNodeType)); t.Known() {
		return t, nil
	}
	if t, known := r.reg.NodeTypeFor(st.Component); known {
		if t == "" {
			return "", &flowgraph.UnsupportedComponentError{StepID: st.ID, Component: st.Component}
		}
		return t, nil
	}
	return guessNodeType(st.Component), nil
}

// guessNodeType matches component path keywords. It is a heuristic: an
// external ".../my-aggregate-tool" is taken for an aggregate.
func guessNodeType(component string) flowgraph.NodeType {
	p := strings.ToLower(component)
	switch {
	case strings.Contains(p, "input"):
		return flowgraph.NodeInput
	case strings.Contains(p, "output"):
		return flowgraph.NodeOutput
	case strings.Contains(p, "conditional"), strings.Contains(p, "branch"):
		return flowgraph.NodeBranch
	case strings.Contains(p, "aggregate"):
		return flowgraph.NodeAggregate
	case strings.Contains(p, "pause"), strings.Contains(p, "human"):
		return flowgraph.NodeHumanGate
	case strings.Contains(p, "parallel"):
		return flowgraph.NodeModelCompare
	}
	return flowgraph.NodePrompt
}

func (r *reconstructor) config(t flowgraph.NodeType, st *wire.Step) (flowgraph.NodeConfig, error) {
	in := st.Input
	switch t {
	case flowgraph.NodeInput:
		cfg := &flowgraph.InputConfig{
			InputType:   str(in, "type"),
			Required:    boolean(in, "required"),
			Description: str(in, "description"),
		}
		if e, ok := in.Get("default"); ok {
			cfg.DefaultValue = constantValue(e)
		}
		return cfg, nil
	case flowgraph.NodeOutput:
		return &flowgraph.OutputConfig{Format: str(in, "format")}, nil
	case flowgraph.NodePrompt:
		cfg := &flowgraph.PromptConfig{
			Model:            str(in, "model"),
			Temperature:      nonDefault(in, "temperature", DefaultTemperature),
			TopP:             nonDefault(in, "top_p", DefaultTopP),
			FrequencyPenalty: nonDefault(in, "frequency_penalty", DefaultFrequencyPenalty),
			PresencePenalty:  nonDefault(in, "presence_penalty", DefaultPresencePenalty),
			MaxTokens:        nonDefaultInt(in, "max_tokens", DefaultMaxTokens),
			ErrorHandler:     graphHandler(st.OnError),
			MustExecute:      st.MustExecute,
		}
		system, user, err := r.prompts(st, in)
		if err != nil {
			return nil, err
		}
		cfg.SystemPrompt, cfg.UserPrompt = system, user
		return cfg, nil
	case flowgraph.NodeBranch:
		cfg := &flowgraph.BranchConfig{Condition: str(in, "condition")}
		if arr, ok := array(in, "branches"); ok {
			for _, item := range arr {
				obj, _ := item.(expr.Object)
				b := flowgraph.Branch{Label: str(obj, "label"), Condition: str(obj, "condition")}
				if len(arr) == 1 && b.Label == "true" && b.Condition == "" {
					continue
				}
				cfg.Branches = append(cfg.Branches, b)
			}
		}
		return cfg, nil
	case flowgraph.NodeAggregate:
		cfg := &flowgraph.AggregateConfig{Strategy: str(in, "strategy")}
		if cfg.Strategy == flowgraph.AggregateConcat {
			cfg.Strategy = ""
		}
		if e, ok := in.Get("separator"); ok {
			if s, isStr := scalarString(e); isStr && s != DefaultSeparator {
				cfg.Separator = &s
			}
		}
		return cfg, nil
	case flowgraph.NodeHumanGate:
		cfg := &flowgraph.HumanGateConfig{
			Instructions: str(in, "instructions"),
			AllowEdit:    boolean(in, "allow_edit"),
		}
		if f, ok := number(in, "timeout_seconds"); ok {
			secs := int(f)
			cfg.TimeoutSeconds = &secs
		}
		return cfg, nil
	case flowgraph.NodeModelCompare:
		cfg := &flowgraph.ModelCompareConfig{ErrorHandler: graphHandler(st.OnError)}
		arr, _ := array(in, "branches")
		for i, item := range arr {
			obj, _ := item.(expr.Object)
			cfg.Models = append(cfg.Models, str(obj, "model"))
			if i > 0 {
				continue
			}
			cfg.Temperature = nonDefault(obj, "temperature", DefaultTemperature)
			cfg.MaxTokens = nonDefaultInt(obj, "max_tokens", DefaultMaxTokens)
			system, user, err := r.prompts(st, obj)
			if err != nil {
				return nil, err
			}
			cfg.SystemPrompt, cfg.UserPrompt = system, user
		}
		return cfg, nil
	}
	return nil, &flowgraph.UnsupportedNodeTypeError{NodeID: st.ID, Type: t}
}

// prompts splits a messages array back into system and user text. Steps
// from other producers may carry a bare "prompt" field instead.
func (r *reconstructor) prompts(st *wire.Step, in expr.Object) (system, user string, err error) {
	arr, ok := array(in, "messages")
	if !ok {
		if e, has := in.Get("prompt"); has {
			user, err = r.surface(st, "prompt", e)
		}
		return "", user, err
	}
	for i, item := range arr {
		obj, _ := item.(expr.Object)
		content, has := obj.Get("content")
		if !has {
			continue
		}
		text, err := r.surface(st, fmt.Sprintf("messages[%d].content", i), content)
		if err != nil {
			return "", "", err
		}
		switch str(obj, "role") {
		case "system":
			system = text
		case "user":
			if user != "" {
				user += "\n\n"
			}
			user += text
		}
	}
	return system, user, nil
}

func (r *reconstructor) surface(st *wire.Step, field string, e expr.Expr) (string, error) {
	text, ok := interp.Surface(e, r.mapping)
	if !ok {
		return "", fmt.Errorf("convert: step %q: %s has no text form", st.ID, field)
	}
	return text, nil
}

// edges links every referenced step to the step that references it, from
// input expressions (templates included) and from depends_on metadata.
// References to missing steps are skipped; validation reports them.
func (r *reconstructor) edges() []flowgraph.Edge {
	ids := r.doc.StepIDs()
	out := []flowgraph.Edge{}
	for i := range r.doc.Steps {
		st := &r.doc.Steps[i]
		sources := append(expr.StepReferences(st.Input), metaList(st.Metadata, MetaDependsOn)...)
		seen := make(map[string]bool)
		for _, src := range sources {
			if seen[src] || src == st.ID || !ids[src] {
				continue
			}
			seen[src] = true
			from, to := r.mapping.Original(src), r.mapping.Original(st.ID)
			out = append(out, flowgraph.Edge{
				ID:     uuid.NewSHA1(edgeNamespace, []byte(from+"\x00"+to)).String(),
				Source: from,
				Target: to,
			})
		}
	}
	return out
}

// variableDefaults seeds graph variables from {variable, default} references.
func variableDefaults(doc *wire.Document) map[string]any {
	vars := map[string]any{}
	visit := func(_ string, e expr.Expr) {
		if v, ok := e.(expr.VariableRef); ok && v.HasDefault {
			if _, seen := vars[v.Name]; !seen {
				vars[v.Name] = v.Default
			}
		}
	}
	for i := range doc.Steps {
		expr.Walk(doc.Steps[i].Input, "", visit)
	}
	if doc.Output != nil {
		expr.Walk(doc.Output, "", visit)
	}
	if len(vars) == 0 {
		return nil
	}
	return vars
}

func graphHandler(h *wire.ErrorHandler) *flowgraph.ErrorHandler {
	if h == nil {
		return nil
	}
	out := &flowgraph.ErrorHandler{Strategy: h.Type}
	switch h.Type {
	case wire.OnErrorRetry:
		out.MaxAttempts = h.MaxAttempts
	case wire.OnErrorDefault:
		out.FallbackValue = h.Value
	}
	return out
}

func metaString(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}

func metaList(meta map[string]any, key string) []string {
	var out []string
	switch t := meta[key].(type) {
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, t...)
	}
	return out
}

func scalarString(e expr.Expr) (string, bool) {
	sc, ok := e.(expr.Scalar)
	if !ok {
		return "", false
	}
	s, ok := sc.Value.(string)
	return s, ok
}

func str(o expr.Object, key string) string {
	e, ok := o.Get(key)
	if !ok {
		return ""
	}
	s, _ := scalarString(e)
	return s
}

func boolean(o expr.Object, key string) bool {
	e, ok := o.Get(key)
	if !ok {
		return false
	}
	sc, _ := e.(expr.Scalar)
	b, _ := sc.Value.(bool)
	return b
}

func number(o expr.Object, key string) (float64, bool) {
	e, ok := o.Get(key)
	if !ok {
		return 0, false
	}
	sc, _ := e.(expr.Scalar)
	f, ok := sc.Value.(float64)
	return f, ok
}

func array(o expr.Object, key string) (expr.Array, bool) {
	e, ok := o.Get(key)
	if !ok {
		return nil, false
	}
	arr, ok := e.(expr.Array)
	return arr, ok
}

func nonDefault(o expr.Object, key string, def float64) *float64 {
	f, ok := number(o, key)
	if !ok || f == def {
		return nil
	}
	return &f
}

func nonDefaultInt(o expr.Object, key string, def int) *int {
	f, ok := number(o, key)
	if !ok || f == float64(def) || f != math.Trunc(f) {
		return nil
	}
	n := int(f)
	return &n
}

func constantValue(e expr.Expr) any {
	switch t := e.(type) {
	case expr.Scalar:
		return t.Value
	case expr.Literal:
		return t.Value
	}
	return expr.ToValue(e)
}

package convert

import (
	"errors"
	"fmt"

	"github.com/meikuraledutech/flowgraph"
	"github.com/meikuraledutech/flowgraph/expr"
	"github.com/meikuraledutech/flowgraph/idmap"
	"github.com/meikuraledutech/flowgraph/log"
	"github.com/meikuraledutech/flowgraph/registry"
	"github.com/meikuraledutech/flowgraph/validate"
	"github.com/meikuraledutech/flowgraph/wire"
)

// DefaultName names documents compiled from unnamed graphs.
const DefaultName = "workflow"

// Step metadata keys written by Compile and read by Reconstruct.
const (
	MetaNodeType   = "node_type"
	MetaLabel      = "label"
	MetaOriginalID = "original_id"
	MetaDependsOn  = "depends_on"
)

// ErrEmptyWorkflow is returned when compiling a graph with no nodes.
var ErrEmptyWorkflow = errors.New("convert: workflow has no nodes")

// Result is a compiled document together with the id mapping used to build
// it and any non-fatal warnings.
type Result struct {
	Document *wire.Document
	Mapping  *idmap.Mapping
	Warnings []string
}

type compiler struct {
	w        *flowgraph.Workflow
	reg      *registry.Registry
	mapping  *idmap.Mapping
	warnings []string
}

func (c *compiler) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warnf("convert: %s", msg)
	c.warnings = append(c.warnings, msg)
}

// Compile turns a graph into a wire document. The graph is validated first;
// a cycle or dangling edge aborts with *InvalidGraphError. A node of an
// unknown type aborts with *flowgraph.UnsupportedNodeTypeError. No partial
// document is ever returned.
func Compile(w *flowgraph.Workflow, opts ...Option) (*Result, error) {
	o := buildOptions(opts)
	if w == nil || len(w.Nodes) == 0 {
		return nil, ErrEmptyWorkflow
	}
	if res := validate.Graph(w); !res.Valid {
		return nil, &InvalidGraphError{Result: res}
	}

	ids := make([]string, len(w.Nodes))
	for i, n := range w.Nodes {
		ids[i] = n.ID
	}
	c := &compiler{w: w, reg: o.registry, mapping: idmap.Build(ids)}

	order := topoOrder(w)
	steps := make([]wire.Step, 0, len(order))
	for _, i := range order {
		n := &w.Nodes[i]
		st, err := c.buildStep(n)
		if err != nil {
			return nil, err
		}
		st.ID = c.mapping.Sanitized(n.ID)
		st.Metadata = c.metadata(n)
		steps = append(steps, st)
	}

	doc := &wire.Document{
		Schema:      wire.SchemaURI,
		Name:        documentName(w.Name),
		InputSchema: c.inputSchema(),
		Steps:       steps,
		Output:      c.output(),
	}
	return &Result{Document: doc, Mapping: c.mapping, Warnings: c.warnings}, nil
}

// topoOrder returns node indexes so that every node follows its sources.
// Among ready nodes the lowest array index goes first.
func topoOrder(w *flowgraph.Workflow) []int {
	index := make(map[string]int, len(w.Nodes))
	for i, n := range w.Nodes {
		index[n.ID] = i
	}
	indegree := make([]int, len(w.Nodes))
	next := make([][]int, len(w.Nodes))
	for _, e := range w.Edges {
		src, dst := index[e.Source], index[e.Target]
		indegree[dst]++
		next[src] = append(next[src], dst)
	}

	done := make([]bool, len(w.Nodes))
	order := make([]int, 0, len(w.Nodes))
	for len(order) < len(w.Nodes) {
		pick := -1
		for i := range w.Nodes {
			if !done[i] && indegree[i] == 0 {
				pick = i
				break
			}
		}
		if pick < 0 {
			break
		}
		done[pick] = true
		order = append(order, pick)
		for _, dst := range next[pick] {
			indegree[dst]--
		}
	}
	return order
}

func (c *compiler) metadata(n *flowgraph.Node) map[string]any {
	meta := map[string]any{
		MetaNodeType:   string(n.Type),
		MetaOriginalID: n.ID,
	}
	if n.Data.Label != "" {
		meta[MetaLabel] = n.Data.Label
	}
	var deps []any
	seen := make(map[string]bool)
	for _, e := range c.w.Incoming(n.ID) {
		id := c.mapping.Sanitized(e.Source)
		if !seen[id] {
			seen[id] = true
			deps = append(deps, id)
		}
	}
	if len(deps) > 0 {
		meta[MetaDependsOn] = deps
	}
	return meta
}

// output references every explicit output node and every sink, in node
// order. A single output is referenced directly.
func (c *compiler) output() expr.Expr {
	var ids []string
	for _, n := range c.w.Nodes {
		if n.Type == flowgraph.NodeOutput || len(c.w.Outgoing(n.ID)) == 0 {
			ids = append(ids, c.mapping.Sanitized(n.ID))
		}
	}
	switch len(ids) {
	case 0:
		return nil
	case 1:
		return expr.Step(ids[0])
	}
	obj := make(expr.Object, 0, len(ids))
	for _, id := range ids {
		obj = append(obj, expr.Field{Key: id, Value: expr.Step(id)})
	}
	return obj
}

func (c *compiler) inputSchema() map[string]any {
	props := map[string]any{}
	required := []any{}
	for _, n := range c.w.Nodes {
		if n.Type != flowgraph.NodeInput {
			continue
		}
		cfg := inputConfig(&n)
		id := c.mapping.Sanitized(n.ID)
		t := "string"
		if cfg.InputType == "number" {
			t = "number"
		}
		prop := map[string]any{"type": t}
		if cfg.Description != "" {
			prop["description"] = cfg.Description
		}
		props[id] = prop
		if cfg.Required {
			required = append(required, id)
		}
	}
	if len(props) == 0 {
		return nil
	}
	return map[string]any{"type": "object", "properties": props, "required": required}
}

// inputConfig returns the input node's config, or an empty one.
func inputConfig(n *flowgraph.Node) *flowgraph.InputConfig {
	if cfg, ok := n.TypedConfig().(*flowgraph.InputConfig); ok && cfg != nil {
		return cfg
	}
	return &flowgraph.InputConfig{}
}

func documentName(name string) string {
	if name == "" {
		return DefaultName
	}
	runes := []rune(name)
	if len(runes) > wire.MaxNameLength {
		return string(runes[:wire.MaxNameLength])
	}
	return name
}

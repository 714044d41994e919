// Package flowgraph holds the visual workflow graph model shared by the
// compiler, the reconstructor, the validator and the stores.
package flowgraph

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeType tags the kind of a graph node.
type NodeType string

const (
	NodeInput        NodeType = "input"
	NodeOutput       NodeType = "output"
	NodePrompt       NodeType = "prompt"
	NodeBranch       NodeType = "branch"
	NodeAggregate    NodeType = "aggregate"
	NodeHumanGate    NodeType = "human_gate"
	NodeModelCompare NodeType = "model_compare"
)

// NodeTypes lists every node type in declaration order.
var NodeTypes = []NodeType{
	NodeInput, NodeOutput, NodePrompt, NodeBranch,
	NodeAggregate, NodeHumanGate, NodeModelCompare,
}

// Known reports whether t is one of NodeTypes.
func (t NodeType) Known() bool {
	for _, k := range NodeTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Workflow is a visual workflow graph. The core never mutates one in place;
// import produces a fresh value.
type Workflow struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Nodes     []Node         `json:"nodes"`
	Edges     []Edge         `json:"edges"`
	Variables map[string]any `json:"variables,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Node is a vertex of the graph. ID is opaque and may contain any character.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Position is canvas-only layout information.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the label and the type-specific configuration.
type NodeData struct {
	Label  string     `json:"label"`
	Config NodeConfig `json:"config,omitempty"`
}

// Edge is a directed connection; Target consumes the output of Source.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Node returns the node with the given id.
func (w *Workflow) Node(id string) (*Node, bool) {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i], true
		}
	}
	return nil, false
}

// Incoming returns the edges targeting id, in edge-array order.
func (w *Workflow) Incoming(id string) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

// Outgoing returns the edges leaving id, in edge-array order.
func (w *Workflow) Outgoing(id string) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// TypedConfig returns the node's config when it belongs to n.Type, and an
// empty config of that type otherwise. Unknown types yield an UnknownConfig.
func (n *Node) TypedConfig() NodeConfig {
	want := NewConfig(n.Type)
	if want == nil {
		if u, ok := n.Data.Config.(UnknownConfig); ok {
			return u
		}
		return UnknownConfig{}
	}
	if cfg := n.Data.Config; cfg != nil && cfg.nodeType() == n.Type {
		return cfg
	}
	return want
}

// UnmarshalJSON decodes the node and picks the config shape from Type.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID       string   `json:"id"`
		Type     NodeType `json:"type"`
		Position Position `json:"position"`
		Data     struct {
			Label  string          `json:"label"`
			Config json.RawMessage `json:"config"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	cfg, err := DecodeConfig(raw.Type, raw.Data.Config)
	if err != nil {
		return fmt.Errorf("flowgraph: node %s: %w", raw.ID, err)
	}
	*n = Node{
		ID:       raw.ID,
		Type:     raw.Type,
		Position: raw.Position,
		Data:     NodeData{Label: raw.Data.Label, Config: cfg},
	}
	return nil
}

package validate

import (
	"fmt"

	"github.com/meikuraledutech/flowgraph"
)

// Graph checks a workflow graph before compilation: unique node ids, edges
// that connect existing nodes, and acyclicity. Only the first cycle found is
// reported.
func Graph(w *flowgraph.Workflow) *Result {
	r := newResult()
	if w == nil {
		r.errorf(KindStructural, "", "", "workflow is required")
		return r.finish()
	}

	ids := make(map[string]bool, len(w.Nodes))
	for i, n := range w.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)
		switch {
		case n.ID == "":
			r.errorf(KindStructural, path+".id", "", "node id is required")
			continue
		case ids[n.ID]:
			r.errorf(KindStructural, path+".id", n.ID, "duplicate node id %q", n.ID)
			continue
		}
		ids[n.ID] = true
		if !n.Type.Known() {
			r.warnf(KindStructural, path+".type", n.ID, "node type %q is not supported by the compiler", n.Type)
		}
	}

	edgeIDs := make(map[string]bool, len(w.Edges))
	dangling := false
	for i, e := range w.Edges {
		path := fmt.Sprintf("edges[%d]", i)
		if e.ID != "" {
			if edgeIDs[e.ID] {
				r.errorf(KindStructural, path+".id", e.ID, "duplicate edge id %q", e.ID)
			}
			edgeIDs[e.ID] = true
		}
		if !ids[e.Source] {
			r.errorf(KindSemantic, path+".source", e.Source, "edge source %q does not exist", e.Source)
			dangling = true
		}
		if !ids[e.Target] {
			r.errorf(KindSemantic, path+".target", e.Target, "edge target %q does not exist", e.Target)
			dangling = true
		}
	}

	if !dangling {
		if at, ok := flowgraph.FindCycle(w.Nodes, w.Edges); ok {
			r.Errors = append(r.Errors, Issue{
				Kind:    KindSemantic,
				Code:    CodeCycle,
				Ref:     at,
				Message: fmt.Sprintf("cycle detected involving node %q", at),
			})
		}
	}
	return r.finish()
}

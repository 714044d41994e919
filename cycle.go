package flowgraph

// FindCycle runs a depth-first search with a recursion stack over the graph
// and returns the first node found on a back-edge. Nodes are visited in
// array order so the reported node is stable for a given graph.
func FindCycle(nodes []Node, edges []Edge) (string, bool) {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]int, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := state[n.ID]; !ok {
			state[n.ID] = unvisited
			order = append(order, n.ID)
		}
	}
	// Also include nodes referenced only in edges.
	for _, e := range edges {
		for _, id := range []string{e.Source, e.Target} {
			if _, ok := state[id]; !ok {
				state[id] = unvisited
				order = append(order, id)
			}
		}
	}

	var dfs func(id string) (string, bool)
	dfs = func(id string) (string, bool) {
		state[id] = visiting
		for _, next := range adj[id] {
			switch state[next] {
			case visiting:
				return next, true
			case unvisited:
				if at, ok := dfs(next); ok {
					return at, true
				}
			}
		}
		state[id] = visited
		return "", false
	}

	for _, id := range order {
		if state[id] == unvisited {
			if at, ok := dfs(id); ok {
				return at, true
			}
		}
	}
	return "", false
}

// ValidateAcyclic returns a *CycleError when the graph contains a cycle.
func ValidateAcyclic(w *Workflow) error {
	if at, ok := FindCycle(w.Nodes, w.Edges); ok {
		return &CycleError{NodeID: at}
	}
	return nil
}

package graph

// Merge copies fragment into g and returns, for every vertex index of
// fragment, the index it now has in g.
//
// Fragment indices are never assumed to be valid in g. A fragment vertex that
// is structurally equal to an existing vertex of g is mapped onto it rather
// than duplicated, and an edge is only added when g has no edge with the same
// endpoints and label. Merging the same fragment twice is therefore a no-op
// the second time.
func (g *Graph) Merge(fragment *Graph) []NodeIndex {
	if fragment == nil {
		return nil
	}

	remap := make([]NodeIndex, fragment.NodeCount())
	for i, n := range fragment.nodes {
		if idx, ok := g.Find(n); ok {
			remap[i] = idx
			continue
		}
		remap[i] = g.AddNode(n)
	}

	for _, e := range fragment.edges {
		from, to := remap[e.Source], remap[e.Target]
		if g.HasEdge(from, to, e.Label) {
			continue
		}
		// both endpoints were just mapped into g
		_, _ = g.AddEdge(from, to, e.Label)
	}

	return remap
}

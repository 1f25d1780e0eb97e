package graph

import (
	"errors"
	"fmt"
	"slices"
)

// ErrNodeNotFound is returned when an index does not name a vertex of the graph.
var ErrNodeNotFound = errors.New("node not found")

// NodeIndex identifies a vertex within one Graph. Indices are stable for the
// lifetime of the graph and meaningless in any other graph.
type NodeIndex int

// EdgeIndex identifies an edge within one Graph.
type EdgeIndex int

// Edge is a directed edge. An empty Label means the edge is unlabelled.
type Edge struct {
	Source NodeIndex
	Target NodeIndex
	Label  string
}

// Graph is a directed graph of Node vertices stored as an adjacency list.
// Vertices and edges are only ever appended, so indices handed out earlier
// stay valid. The zero value is an empty graph ready to use.
//
// A Graph is not safe for concurrent mutation.
type Graph struct {
	nodes    []Node
	edges    []Edge
	outgoing [][]EdgeIndex

	// first vertex / edge holding each distinct value
	nodeIndex map[Node]NodeIndex
	edgeIndex map[Edge]EdgeIndex
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// AddNode appends n as a new vertex and returns its index. Structurally equal
// nodes may be added more than once; use Find or Merge to de-duplicate.
func (g *Graph) AddNode(n Node) NodeIndex {
	idx := NodeIndex(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.outgoing = append(g.outgoing, nil)

	if g.nodeIndex == nil {
		g.nodeIndex = make(map[Node]NodeIndex)
	}
	if _, ok := g.nodeIndex[n]; !ok {
		g.nodeIndex[n] = idx
	}
	return idx
}

// AddEdge appends a directed edge from -> to. Both endpoints must be vertices
// of g.
func (g *Graph) AddEdge(from, to NodeIndex, label string) (EdgeIndex, error) {
	if !g.contains(from) {
		return 0, fmt.Errorf("edge source %d: %w", from, ErrNodeNotFound)
	}
	if !g.contains(to) {
		return 0, fmt.Errorf("edge target %d: %w", to, ErrNodeNotFound)
	}

	e := Edge{Source: from, Target: to, Label: label}
	idx := EdgeIndex(len(g.edges))
	g.edges = append(g.edges, e)
	g.outgoing[from] = append(g.outgoing[from], idx)

	if g.edgeIndex == nil {
		g.edgeIndex = make(map[Edge]EdgeIndex)
	}
	if _, ok := g.edgeIndex[e]; !ok {
		g.edgeIndex[e] = idx
	}
	return idx, nil
}

// NodeCount returns the number of vertices.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Node returns the vertex at i.
func (g *Graph) Node(i NodeIndex) (Node, bool) {
	if !g.contains(i) {
		return nil, false
	}
	return g.nodes[i], true
}

// Edge returns the edge at i.
func (g *Graph) Edge(i EdgeIndex) (Edge, bool) {
	if i < 0 || int(i) >= len(g.edges) {
		return Edge{}, false
	}
	return g.edges[i], true
}

// Nodes returns a copy of all vertices in index order.
func (g *Graph) Nodes() []Node {
	return slices.Clone(g.nodes)
}

// Edges returns a copy of all edges in index order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Outgoing returns the edges leaving vertex i in insertion order.
func (g *Graph) Outgoing(i NodeIndex) []Edge {
	if !g.contains(i) {
		return nil
	}
	out := make([]Edge, 0, len(g.outgoing[i]))
	for _, ei := range g.outgoing[i] {
		out = append(out, g.edges[ei])
	}
	return out
}

// Find returns the index of the first vertex structurally equal to n.
func (g *Graph) Find(n Node) (NodeIndex, bool) {
	idx, ok := g.nodeIndex[n]
	return idx, ok
}

// HasEdge reports whether an edge from -> to with the given label exists.
func (g *Graph) HasEdge(from, to NodeIndex, label string) bool {
	_, ok := g.edgeIndex[Edge{Source: from, Target: to, Label: label}]
	return ok
}

// Equal reports whether g and other hold equal vertices and edges at the same
// indices.
func (g *Graph) Equal(other *Graph) bool {
	if g == nil || other == nil {
		return g == other
	}
	return slices.Equal(g.nodes, other.nodes) && slices.Equal(g.edges, other.edges)
}

// Clone returns an independent copy of g with identical indices.
func (g *Graph) Clone() *Graph {
	c := New()
	for _, n := range g.nodes {
		c.AddNode(n)
	}
	for _, e := range g.edges {
		// endpoints are valid in g, hence in c
		_, _ = c.AddEdge(e.Source, e.Target, e.Label)
	}
	return c
}

func (g *Graph) contains(i NodeIndex) bool {
	return i >= 0 && int(i) < len(g.nodes)
}

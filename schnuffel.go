package schnuffel

import (
	"context"

	"github.com/miampf/schnuffel/graph"
	"github.com/miampf/schnuffel/host"
	"github.com/miampf/schnuffel/hosterr"
)

// Load parses src and loads the module it names.
func Load(ctx context.Context, src string, opts ...host.Option) (*host.Configured, error) {
	u, err := host.New(src, opts...)
	if err != nil {
		return nil, err
	}
	return u.Load(ctx)
}

// Enrich runs the plugin on the node at index n of g and merges the returned
// fragment into g. It returns the indices in g of every fragment vertex, in
// fragment order. g is unchanged when the plugin fails.
func Enrich(ctx context.Context, r *host.Running, g *graph.Graph, n graph.NodeIndex) ([]graph.NodeIndex, error) {
	node, ok := g.Node(n)
	if !ok {
		return nil, hosterr.Newf("schnuffel.Enrich", hosterr.KindInternal, "",
			"graph has no node %d", n)
	}

	fragment, err := r.ExecuteNode(ctx, node)
	if err != nil {
		return nil, err
	}
	return g.Merge(fragment), nil
}

// EnrichGraph runs the plugin on all of g and merges the returned fragment
// into g.
func EnrichGraph(ctx context.Context, r *host.Running, g *graph.Graph) ([]graph.NodeIndex, error) {
	fragment, err := r.ExecuteGraph(ctx, g)
	if err != nil {
		return nil, err
	}
	return g.Merge(fragment), nil
}

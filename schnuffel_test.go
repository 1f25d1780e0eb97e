package schnuffel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miampf/schnuffel/contract"
	"github.com/miampf/schnuffel/graph"
	"github.com/miampf/schnuffel/host"
	"github.com/miampf/schnuffel/hosterr"
	"github.com/miampf/schnuffel/sandbox/sandboxtest"
	"github.com/miampf/schnuffel/wire"
)

// contactFragment is what a people-search plugin would return for John Doe.
func contactFragment(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	person := g.AddNode(graph.Person("John Doe"))
	phone := g.AddNode(graph.PhoneNumber("+49 30 1234567"))
	email := g.AddNode(graph.EmailAddress("john@example.com"))
	_, err := g.AddEdge(person, phone, "phone")
	require.NoError(t, err)
	_, err = g.AddEdge(person, email, "email")
	require.NoError(t, err)
	return g
}

func startPlugin(t *testing.T, wasm []byte) *host.Running {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "people.wasm")
	require.NoError(t, os.WriteFile(path, wasm, 0o644))

	c, err := Load(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { CloseWithLog(ctx, c, nil, "configured host") })

	r, err := c.Start(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { CloseWithLog(ctx, r, nil, "running host") })
	return r
}

func TestEnrich(t *testing.T) {
	fragment := contactFragment(t)
	r := startPlugin(t, sandboxtest.Plugin(wire.Config{}).
		Returning(contract.ExecOnNode, sandboxtest.Response(fragment)).
		Returning(contract.ExecOnGraph, sandboxtest.Response(graph.New())).
		Bytes())

	g := graph.New()
	org := g.AddNode(graph.Organization("Example Corp"))
	root := g.AddNode(graph.Person("John Doe"))
	_, err := g.AddEdge(org, root, "employs")
	require.NoError(t, err)

	added, err := Enrich(context.Background(), r, g, root)
	require.NoError(t, err)
	require.Len(t, added, 3)
	assert.Equal(t, root, added[0])
	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount())
	assert.True(t, g.HasEdge(root, added[1], "phone"))
	assert.True(t, g.HasEdge(root, added[2], "email"))

	// a second run finds nothing new
	_, err = Enrich(context.Background(), r, g, root)
	require.NoError(t, err)
	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount())
}

func TestEnrich_UnknownNode(t *testing.T) {
	r := startPlugin(t, sandboxtest.Plugin(wire.Config{}).
		Returning(contract.ExecOnNode, sandboxtest.Response(graph.New())).
		Returning(contract.ExecOnGraph, sandboxtest.Response(graph.New())).
		Bytes())

	_, err := Enrich(context.Background(), r, graph.New(), 7)
	require.Error(t, err)
	assert.Equal(t, hosterr.KindInternal, hosterr.KindOf(err))
}

func TestEnrich_FailureLeavesGraphUnchanged(t *testing.T) {
	r := startPlugin(t, sandboxtest.Plugin(wire.Config{}).
		Trapping(contract.ExecOnNode).
		Trapping(contract.ExecOnGraph).
		Bytes())

	g := graph.New()
	root := g.AddNode(graph.IP{})
	before := g.Clone()

	_, err := Enrich(context.Background(), r, g, root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, hosterr.ErrExecution))
	assert.True(t, before.Equal(g))

	_, err = EnrichGraph(context.Background(), r, g)
	require.Error(t, err)
	assert.True(t, before.Equal(g))
}

func TestEnrichGraph(t *testing.T) {
	fragment := contactFragment(t)
	r := startPlugin(t, sandboxtest.Plugin(wire.Config{}).
		Returning(contract.ExecOnNode, sandboxtest.Response(graph.New())).
		Returning(contract.ExecOnGraph, sandboxtest.Response(fragment)).
		Bytes())

	g := graph.New()
	g.AddNode(graph.Domain("example.com"))

	added, err := EnrichGraph(context.Background(), r, g)
	require.NoError(t, err)
	assert.Len(t, added, 3)
	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
}

func TestLoad_InvalidSource(t *testing.T) {
	_, err := Load(context.Background(), "gopher://example.com/plugin.wasm")
	require.Error(t, err)
	assert.True(t, errors.Is(err, hosterr.ErrSourceUnreachable))
}

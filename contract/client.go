package contract

import (
	"context"

	"github.com/miampf/schnuffel/graph"
	"github.com/miampf/schnuffel/hosterr"
	"github.com/miampf/schnuffel/wire"
)

// Invoker calls an entry point with an encoded request and returns the raw
// response bytes. sandbox.Instance implements it.
type Invoker interface {
	Call(ctx context.Context, entry string, request []byte) ([]byte, error)
}

// Client is the typed view of a plugin: each method encodes the request
// envelope, invokes the entry point and decodes the response envelope.
type Client struct {
	inv Invoker
}

// NewClient wraps inv.
func NewClient(inv Invoker) *Client {
	return &Client{inv: inv}
}

// DefaultConfig asks the module for its declared configuration fields.
func (c *Client) DefaultConfig(ctx context.Context) (wire.Config, error) {
	return call[string, wire.Config](ctx, c.inv, DefaultConfig, wire.Request[string]{})
}

// ExecOnNode runs the module against a single node.
func (c *Client) ExecOnNode(ctx context.Context, cfg wire.Config, n graph.Node) (*graph.Graph, error) {
	return call[graph.Node, *graph.Graph](ctx, c.inv, ExecOnNode, wire.Request[graph.Node]{Config: cfg, Data: n})
}

// ExecOnGraph runs the module against a whole graph.
func (c *Client) ExecOnGraph(ctx context.Context, cfg wire.Config, g *graph.Graph) (*graph.Graph, error) {
	return call[*graph.Graph, *graph.Graph](ctx, c.inv, ExecOnGraph, wire.Request[*graph.Graph]{Config: cfg, Data: g})
}

func call[In, Out any](ctx context.Context, inv Invoker, entry string, req wire.Request[In]) (Out, error) {
	var zero Out

	in, err := wire.EncodeRequest(req)
	if err != nil {
		return zero, hosterr.New("contract."+entry, hosterr.KindInternal, hosterr.CodeUnsupported,
			"encode request").WithCause(err)
	}

	out, err := inv.Call(ctx, entry, in)
	if err != nil {
		return zero, err
	}

	resp, err := wire.DecodeResponse[Out](out)
	if err != nil {
		return zero, hosterr.New("contract."+entry, hosterr.KindExecution, hosterr.CodeResponseDecode,
			"decode response").WithCause(err)
	}
	return resp.Data, nil
}

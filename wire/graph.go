package wire

import (
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/miampf/schnuffel/graph"
)

const edgeDirected = "directed"

// EncodeGraph encodes g using the petgraph serialization layout:
//
//	{"nodes": [...], "node_holes": [], "edge_property": "directed",
//	 "edges": [[source, target, label], ...]}
func EncodeGraph(g *graph.Graph) ([]byte, error) {
	return marshal("wire.EncodeGraph", func(enc *msgpack.Encoder) error {
		return encodeGraph(enc, g)
	})
}

// DecodeGraph decodes bytes produced by EncodeGraph. Edges whose endpoints are
// not vertices of the decoded graph are rejected.
func DecodeGraph(b []byte) (*graph.Graph, error) {
	var g *graph.Graph
	err := unmarshal("wire.DecodeGraph", b, func(dec *msgpack.Decoder) error {
		var err error
		g, err = decodeGraph(dec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func encodeGraph(enc *msgpack.Encoder, g *graph.Graph) error {
	if g == nil {
		return unsupported("nil graph")
	}
	if err := enc.EncodeMapLen(4); err != nil {
		return err
	}

	if err := enc.EncodeString("nodes"); err != nil {
		return err
	}
	nodes := g.Nodes()
	if err := enc.EncodeArrayLen(len(nodes)); err != nil {
		return err
	}
	for _, n := range nodes {
		if err := encodeNode(enc, n); err != nil {
			return err
		}
	}

	if err := enc.EncodeString("node_holes"); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(0); err != nil {
		return err
	}

	if err := enc.EncodeString("edge_property"); err != nil {
		return err
	}
	if err := enc.EncodeString(edgeDirected); err != nil {
		return err
	}

	if err := enc.EncodeString("edges"); err != nil {
		return err
	}
	edges := g.Edges()
	if err := enc.EncodeArrayLen(len(edges)); err != nil {
		return err
	}
	for _, e := range edges {
		if err := enc.EncodeArrayLen(3); err != nil {
			return err
		}
		if err := enc.EncodeUint(uint64(e.Source)); err != nil {
			return err
		}
		if err := enc.EncodeUint(uint64(e.Target)); err != nil {
			return err
		}
		if err := enc.EncodeString(e.Label); err != nil {
			return err
		}
	}
	return nil
}

func decodeGraph(dec *msgpack.Decoder) (*graph.Graph, error) {
	var (
		nodes []graph.Node
		edges []graph.Edge
	)

	err := decodeMap(dec, func(key string) (bool, error) {
		switch key {
		case "nodes":
			n, err := dec.DecodeArrayLen()
			if err != nil {
				return true, err
			}
			nodes = make([]graph.Node, 0, min(max(n, 0), maxPrealloc))
			for i := 0; i < n; i++ {
				node, err := decodeNode(dec)
				if err != nil {
					return true, err
				}
				nodes = append(nodes, node)
			}
			return true, nil
		case "node_holes":
			n, err := dec.DecodeArrayLen()
			if err != nil {
				return true, err
			}
			if n > 0 {
				return true, malformed("graphs with %d node holes are not supported", n)
			}
			return true, nil
		case "edge_property":
			s, err := dec.DecodeString()
			if err != nil {
				return true, err
			}
			if s != edgeDirected {
				return true, malformed("unsupported edge property %q", s)
			}
			return true, nil
		case "edges":
			n, err := dec.DecodeArrayLen()
			if err != nil {
				return true, err
			}
			edges = make([]graph.Edge, 0, min(max(n, 0), maxPrealloc))
			for i := 0; i < n; i++ {
				e, err := decodeEdge(dec)
				if err != nil {
					return true, err
				}
				edges = append(edges, e)
			}
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	g := graph.New()
	for _, n := range nodes {
		g.AddNode(n)
	}
	for i, e := range edges {
		if _, err := g.AddEdge(e.Source, e.Target, e.Label); err != nil {
			return nil, malformed("edge %d: %v", i, err)
		}
	}
	return g, nil
}

func decodeEdge(dec *msgpack.Decoder) (graph.Edge, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return graph.Edge{}, err
	}
	if n != 3 {
		return graph.Edge{}, malformed("edge must have 3 elements, got %d", n)
	}

	src, err := dec.DecodeUint64()
	if err != nil {
		return graph.Edge{}, err
	}
	dst, err := dec.DecodeUint64()
	if err != nil {
		return graph.Edge{}, err
	}
	// indices beyond int32 can never name a decoded vertex
	if src > 1<<31 || dst > 1<<31 {
		return graph.Edge{}, malformed("edge endpoint out of range")
	}

	var label string
	code, err := dec.PeekCode()
	if err != nil {
		return graph.Edge{}, err
	}
	if code == msgpcode.Nil {
		if err := dec.DecodeNil(); err != nil {
			return graph.Edge{}, err
		}
	} else if label, err = dec.DecodeString(); err != nil {
		return graph.Edge{}, err
	}

	return graph.Edge{
		Source: graph.NodeIndex(src),
		Target: graph.NodeIndex(dst),
		Label:  label,
	}, nil
}

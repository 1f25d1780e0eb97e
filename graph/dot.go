package graph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// WriteDOT renders g in Graphviz DOT syntax. Vertices are emitted in index
// order and labelled with their kind and String value; edges follow in index
// order, labelled when they carry a label.
func WriteDOT(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph {")
	for i, n := range g.nodes {
		label := "<nil>"
		if n != nil {
			label = fmt.Sprintf("%s: %s", n.Kind(), n.String())
		}
		fmt.Fprintf(bw, "    %d [ label = %s ]\n", i, strconv.Quote(label))
	}
	for _, e := range g.edges {
		if e.Label == "" {
			fmt.Fprintf(bw, "    %d -> %d [ ]\n", e.Source, e.Target)
			continue
		}
		fmt.Fprintf(bw, "    %d -> %d [ label = %s ]\n", e.Source, e.Target, strconv.Quote(e.Label))
	}
	fmt.Fprintln(bw, "}")

	return bw.Flush()
}

package reporter

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/joshharrison/hlsched/internal/graph"
	"github.com/joshharrison/hlsched/internal/timing"
)

// Viz formats.
const (
	VizDOT   = "dot"
	VizASCII = "ascii"
)

// dotFill gives each operation type a Graphviz fill color.
var dotFill = map[graph.OpType]string{
	graph.OpSource:  "white",
	graph.OpAdder:   "lightblue",
	graph.OpShifter: "palegreen",
	graph.OpALU:     "khaki",
	graph.OpMult:    "plum",
	graph.OpSink:    "white",
}

// WriteViz renders an annotated graph in the given format.
func WriteViz(w io.Writer, format string, g *graph.Graph, b *timing.Bounds) error {
	switch strings.ToLower(format) {
	case VizDOT:
		return WriteDOT(w, g, b)
	case VizASCII:
		return WriteASCII(w, g, b)
	default:
		return fmt.Errorf("unsupported viz format %q (want dot or ascii)", format)
	}
}

// WriteDOT writes g as a Graphviz digraph. Nodes are ranked by ASAP step;
// critical nodes and the tight edges between them are drawn in red.
func WriteDOT(w io.Writer, g *graph.Graph, b *timing.Bounds) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph dfg {")
	fmt.Fprintln(bw, "  rankdir=TB;")
	fmt.Fprintln(bw, `  node [shape=box, style="rounded,filled", fontname="Helvetica"];`)

	for _, id := range g.Order {
		n := g.Nodes[id]
		attrs := fmt.Sprintf(`label="%s\n%s [%d,%d]", fillcolor=%s`, id, n.Type, n.ASAP, n.ALAP, dotFill[n.Type])
		if g.Annotated && n.Mobility() == 0 {
			attrs += ", color=red, penwidth=2"
		}
		fmt.Fprintf(bw, "  %q [%s];\n", id, attrs)
	}

	if b != nil {
		for _, step := range b.Steps {
			ids := make([]string, len(step.NodeIDs))
			for i, id := range step.NodeIDs {
				ids[i] = fmt.Sprintf("%q", id)
			}
			fmt.Fprintf(bw, "  { rank=same; %s; }\n", strings.Join(ids, "; "))
		}
	}

	for _, e := range g.Edges {
		if criticalEdge(g, e) {
			fmt.Fprintf(bw, "  %q -> %q [color=red, penwidth=2];\n", e.From, e.To)
		} else {
			fmt.Fprintf(bw, "  %q -> %q;\n", e.From, e.To)
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

// WriteASCII writes a plain adjacency listing in topological order with
// each node's window; critical nodes are starred.
func WriteASCII(w io.Writer, g *graph.Graph, b *timing.Bounds) error {
	order := g.Order
	if b != nil && len(b.TopoOrder) > 0 {
		order = b.TopoOrder
	}

	width := 0
	for _, id := range order {
		if len(id) > width {
			width = len(id)
		}
	}

	bw := bufio.NewWriter(w)
	for _, id := range order {
		n := g.Nodes[id]
		mark := " "
		if g.Annotated && n.Mobility() == 0 {
			mark = "*"
		}
		var succ []string
		for _, next := range g.Adj[id] {
			arrow := "->"
			if criticalEdge(g, graph.Edge{From: id, To: next}) {
				arrow = "=>"
			}
			succ = append(succ, arrow+" "+next)
		}
		fmt.Fprintf(bw, "%s %-*s %-7s [%2d,%2d]  %s\n", mark, width, id, n.Type, n.ASAP, n.ALAP, strings.Join(succ, "  "))
	}
	if b != nil && len(b.CriticalPath) > 0 {
		fmt.Fprintf(bw, "\ncritical: %s (latency %d)\n", strings.Join(b.CriticalPath, " => "), b.LowerBound)
	}
	return bw.Flush()
}

// criticalEdge reports whether e joins two zero-slack nodes with no idle
// step between them.
func criticalEdge(g *graph.Graph, e graph.Edge) bool {
	if !g.Annotated {
		return false
	}
	from, to := g.Nodes[e.From], g.Nodes[e.To]
	return from.Mobility() == 0 && to.Mobility() == 0 && from.ASAP+from.Cost == to.ASAP
}

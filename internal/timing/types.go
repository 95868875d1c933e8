package timing

import "github.com/joshharrison/hlsched/internal/graph"

// Bounds summarizes an ASAP/ALAP analysis. Per-node values are written onto
// the graph nodes themselves.
type Bounds struct {
	TopoOrder    []string
	LowerBound   int      // ASAP(Sink)
	Horizon      int      // ALAP(Sink)
	CriticalPath []string // zero-mobility nodes in topological order
	Steps        []Step   // nodes grouped by ASAP
}

// Step groups nodes that can start at the same earliest time step.
type Step struct {
	Time       int
	NodeIDs    []string
	IsCritical bool // true if the step contains a critical-path node
}

// Feasible reports whether every node has a non-empty start window.
func (b *Bounds) Feasible() bool {
	return b.LowerBound <= b.Horizon
}

// Window returns the inclusive start-time range of n.
func Window(n *graph.Node) (lo, hi int) {
	return n.ASAP, n.ALAP
}

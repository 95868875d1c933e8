package edgelist

import "github.com/joshharrison/hlsched/internal/graph"

// Sample returns the reference eleven-node benchmark graph: three ALU
// chains and a multiplier chain feeding a single sink. Its latency lower
// bound is 13 (s -> v1 -> v4 -> v8 -> v9 -> t).
func Sample() []graph.EdgeRecord {
	costs := graph.DefaultCostTable()
	e := func(src string, st graph.OpType, dst string, dt graph.OpType) graph.EdgeRecord {
		return graph.EdgeRecord{
			Src:     src,
			Dst:     dst,
			SrcAttr: graph.Attr{Type: st, Cost: costs[st], HasCost: true},
			DstAttr: graph.Attr{Type: dt, Cost: costs[dt], HasCost: true},
		}
	}
	return []graph.EdgeRecord{
		e("s", graph.OpSource, "v1", graph.OpALU),
		e("s", graph.OpSource, "v2", graph.OpALU),
		e("s", graph.OpSource, "v3", graph.OpMult),
		e("v1", graph.OpALU, "v4", graph.OpAdder),
		e("v2", graph.OpALU, "v5", graph.OpShifter),
		e("v2", graph.OpALU, "v8", graph.OpMult),
		e("v3", graph.OpMult, "v6", graph.OpALU),
		e("v4", graph.OpAdder, "v8", graph.OpMult),
		e("v4", graph.OpAdder, "v7", graph.OpMult),
		e("v5", graph.OpShifter, "v9", graph.OpALU),
		e("v6", graph.OpALU, "t", graph.OpSink),
		e("v7", graph.OpMult, "t", graph.OpSink),
		e("v8", graph.OpMult, "v9", graph.OpALU),
		e("v9", graph.OpALU, "t", graph.OpSink),
	}
}

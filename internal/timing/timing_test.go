package timing

import (
	"errors"
	"testing"

	"github.com/joshharrison/hlsched/internal/edgelist"
	"github.com/joshharrison/hlsched/internal/graph"
)

func rec(src string, st graph.OpType, dst string, dt graph.OpType) graph.EdgeRecord {
	return graph.EdgeRecord{Src: src, Dst: dst, SrcAttr: graph.Attr{Type: st}, DstAttr: graph.Attr{Type: dt}}
}

func buildTestGraph(t *testing.T, records []graph.EdgeRecord) *graph.Graph {
	t.Helper()
	g, err := graph.NewLoader(nil).Load(records)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func chain(t *testing.T) *graph.Graph {
	// s -> a(adder, 2) -> m(mult, 5) -> t
	return buildTestGraph(t, []graph.EdgeRecord{
		rec("s", graph.OpSource, "a", graph.OpAdder),
		rec("a", graph.OpAdder, "m", graph.OpMult),
		rec("m", graph.OpMult, "t", graph.OpSink),
	})
}

func twoAdders(t *testing.T) *graph.Graph {
	// s -> {a1, a2}(adder) -> m(mult) -> t
	return buildTestGraph(t, []graph.EdgeRecord{
		rec("s", graph.OpSource, "a1", graph.OpAdder),
		rec("s", graph.OpSource, "a2", graph.OpAdder),
		rec("a1", graph.OpAdder, "m", graph.OpMult),
		rec("a2", graph.OpAdder, "m", graph.OpMult),
		rec("m", graph.OpMult, "t", graph.OpSink),
	})
}

func TestComputeBounds_LinearChain(t *testing.T) {
	g := chain(t)

	b, err := ComputeBounds(g, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b.LowerBound != 7 || b.Horizon != 7 {
		t.Errorf("expected lower bound and horizon 7, got %d and %d", b.LowerBound, b.Horizon)
	}
	if !g.Annotated || g.Horizon != 7 {
		t.Errorf("expected graph annotated with horizon 7, got %v/%d", g.Annotated, g.Horizon)
	}
	assertBounds(t, g.Nodes["s"], 0, 0)
	assertBounds(t, g.Nodes["a"], 0, 0)
	assertBounds(t, g.Nodes["m"], 2, 2)
	assertBounds(t, g.Nodes["t"], 7, 7)

	if len(b.CriticalPath) != 4 {
		t.Errorf("expected all 4 nodes critical, got %v", b.CriticalPath)
	}
}

func TestComputeBounds_WithLatencyBound(t *testing.T) {
	g := chain(t)

	b, err := ComputeBounds(g, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !b.Feasible() {
		t.Error("expected bound 10 to be feasible")
	}
	assertBounds(t, g.Nodes["a"], 0, 3)
	assertBounds(t, g.Nodes["m"], 2, 5)
	assertBounds(t, g.Nodes["t"], 7, 10)
	if len(b.CriticalPath) != 0 {
		t.Errorf("expected no zero-mobility nodes, got %v", b.CriticalPath)
	}
}

func TestComputeBounds_TightBoundInfeasible(t *testing.T) {
	g := chain(t)

	b, err := ComputeBounds(g, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Feasible() {
		t.Error("expected bound 5 below critical path 7 to be infeasible")
	}
	if g.Nodes["t"].ASAP <= g.Nodes["t"].ALAP {
		t.Errorf("expected ASAP > ALAP on sink, got %d/%d", g.Nodes["t"].ASAP, g.Nodes["t"].ALAP)
	}
}

func TestComputeBounds_Sample(t *testing.T) {
	g := buildTestGraph(t, edgelist.Sample())

	b, err := ComputeBounds(g, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b.LowerBound != 13 {
		t.Errorf("expected lower bound 13, got %d", b.LowerBound)
	}

	want := map[string][2]int{
		"s": {0, 0}, "v1": {0, 0}, "v2": {0, 2}, "v3": {0, 5},
		"v4": {3, 3}, "v5": {3, 8}, "v6": {5, 10}, "v7": {5, 8},
		"v8": {5, 5}, "v9": {10, 10}, "t": {13, 13},
	}
	for id, w := range want {
		assertBounds(t, g.Nodes[id], w[0], w[1])
	}

	wantPath := []string{"s", "v1", "v4", "v8", "v9", "t"}
	if len(b.CriticalPath) != len(wantPath) {
		t.Fatalf("expected critical path %v, got %v", wantPath, b.CriticalPath)
	}
	for i := range wantPath {
		if b.CriticalPath[i] != wantPath[i] {
			t.Errorf("critical path[%d]: expected %s, got %s", i, wantPath[i], b.CriticalPath[i])
		}
	}
}

func TestComputeBounds_Steps(t *testing.T) {
	g := twoAdders(t)

	b, err := ComputeBounds(g, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// [s a1 a2] at 0, [m] at 2, [t] at 7
	if len(b.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d: %+v", len(b.Steps), b.Steps)
	}
	if len(b.Steps[0].NodeIDs) != 3 {
		t.Errorf("expected 3 nodes at t=0, got %v", b.Steps[0].NodeIDs)
	}
	if b.Steps[1].Time != 2 || b.Steps[2].Time != 7 {
		t.Errorf("unexpected step times %d, %d", b.Steps[1].Time, b.Steps[2].Time)
	}
}

func TestASAPNeverExceedsALAP(t *testing.T) {
	graphs := []*graph.Graph{chain(t), twoAdders(t), buildTestGraph(t, edgelist.Sample())}
	for _, g := range graphs {
		lower, err := LatencyLowerBound(g)
		if err != nil {
			t.Fatalf("lower bound: %v", err)
		}
		for _, extra := range []int{0, 1, 4} {
			if _, err := ComputeBounds(g, lower+extra); err != nil {
				t.Fatalf("bounds: %v", err)
			}
			if g.Nodes[g.Sink].ASAP != lower {
				t.Errorf("ASAP(sink)=%d, lower bound=%d", g.Nodes[g.Sink].ASAP, lower)
			}
			for id, n := range g.Nodes {
				if n.ASAP > n.ALAP {
					t.Errorf("node %s: ASAP %d > ALAP %d at horizon %d", id, n.ASAP, n.ALAP, lower+extra)
				}
			}
		}
	}
}

func TestLatencyLowerBound_DoesNotAnnotate(t *testing.T) {
	g := chain(t)

	lower, err := LatencyLowerBound(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lower != 7 {
		t.Errorf("expected 7, got %d", lower)
	}
	if g.Annotated || g.Nodes["t"].ASAP != 0 {
		t.Error("expected graph to be left unannotated")
	}
}

func TestResourceHorizon(t *testing.T) {
	tests := []struct {
		name   string
		g      *graph.Graph
		budget map[graph.OpType]int
		want   int
	}{
		{"chain one each", chain(t), map[graph.OpType]int{graph.OpAdder: 1, graph.OpMult: 1}, 7},
		{"adders serialized", twoAdders(t), map[graph.OpType]int{graph.OpAdder: 1, graph.OpMult: 1}, 9},
		{"adders parallel", twoAdders(t), map[graph.OpType]int{graph.OpAdder: 2, graph.OpMult: 1}, 7},
		{"unconstrained", twoAdders(t), nil, 7},
		{"sample one each", buildTestGraph(t, edgelist.Sample()), map[graph.OpType]int{
			graph.OpAdder: 1, graph.OpShifter: 1, graph.OpALU: 1, graph.OpMult: 1,
		}, 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResourceHorizon(tt.g, tt.budget)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected horizon %d, got %d", tt.want, got)
			}
			if tt.g.Annotated {
				t.Error("ResourceHorizon must not annotate the graph")
			}
		})
	}
}

func TestResourceHorizon_ZeroBudget(t *testing.T) {
	_, err := ResourceHorizon(chain(t), map[graph.OpType]int{graph.OpAdder: 0, graph.OpMult: 1})
	if !errors.Is(err, ErrZeroBudget) {
		t.Fatalf("expected ErrZeroBudget, got %v", err)
	}

	// Zero budget for a type the graph does not use is fine.
	if _, err := ResourceHorizon(chain(t), map[graph.OpType]int{graph.OpALU: 0}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func assertBounds(t *testing.T, n *graph.Node, asap, alap int) {
	t.Helper()
	if n.ASAP != asap {
		t.Errorf("node %s: expected ASAP=%d, got %d", n.ID, asap, n.ASAP)
	}
	if n.ALAP != alap {
		t.Errorf("node %s: expected ALAP=%d, got %d", n.ID, alap, n.ALAP)
	}
}

package pareto

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/hlsched/internal/graph"
	"github.com/joshharrison/hlsched/internal/ilp"
	"github.com/joshharrison/hlsched/internal/metrics"
	"github.com/joshharrison/hlsched/internal/scheduler"
	"github.com/joshharrison/hlsched/internal/solver"
)

func rec(src string, st graph.OpType, dst string, dt graph.OpType) graph.EdgeRecord {
	return graph.EdgeRecord{Src: src, Dst: dst, SrcAttr: graph.Attr{Type: st}, DstAttr: graph.Attr{Type: dt}}
}

// s -> {a1, a2}(adder) -> m(mult) -> t
func twoAdders(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.NewLoader(nil).Load([]graph.EdgeRecord{
		rec("s", graph.OpSource, "a1", graph.OpAdder),
		rec("s", graph.OpSource, "a2", graph.OpAdder),
		rec("a1", graph.OpAdder, "m", graph.OpMult),
		rec("a2", graph.OpAdder, "m", graph.OpMult),
		rec("m", graph.OpMult, "t", graph.OpSink),
	})
	require.NoError(t, err)
	return g
}

func pt(latency, cost int) Point {
	return Point{Latency: latency, Cost: cost}
}

func TestDominates(t *testing.T) {
	assert.True(t, Dominates(pt(1, 1), pt(2, 2)))
	assert.True(t, Dominates(pt(1, 2), pt(2, 2)))
	assert.True(t, Dominates(pt(2, 1), pt(2, 2)))
	assert.False(t, Dominates(pt(2, 2), pt(2, 2)))
	assert.False(t, Dominates(pt(1, 3), pt(2, 2)))
}

func TestFilter_Basic(t *testing.T) {
	in := []Point{pt(9, 2), pt(7, 3), pt(7, 4), pt(10, 2), pt(12, 1)}
	kept, dropped := Filter(in)

	assert.Equal(t, []Point{pt(7, 3), pt(9, 2), pt(12, 1)}, kept)
	assert.ElementsMatch(t, []Point{pt(7, 4), pt(10, 2)}, dropped)
	// input order untouched
	assert.Equal(t, pt(9, 2), in[0])
}

func TestFilter_TiesKeepFirst(t *testing.T) {
	first := Point{Latency: 7, Cost: 3, Candidate: Candidate{Label: "first"}}
	second := Point{Latency: 7, Cost: 3, Candidate: Candidate{Label: "second"}}

	kept, dropped := Filter([]Point{first, second})
	require.Len(t, kept, 1)
	assert.Equal(t, "first", kept[0].Candidate.Label)
	assert.Equal(t, "second", dropped[0].Candidate.Label)
}

func TestFilter_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		n := r.Intn(12)
		points := make([]Point, n)
		for i := range points {
			points[i] = pt(r.Intn(8), r.Intn(8))
		}

		kept, dropped := Filter(points)
		require.Equal(t, n, len(kept)+len(dropped))

		for i := range kept {
			for j := range kept {
				if i != j {
					assert.False(t, Dominates(kept[i], kept[j]), "kept %v dominates kept %v", kept[i], kept[j])
					assert.False(t, kept[i].Latency == kept[j].Latency && kept[i].Cost == kept[j].Cost, "duplicate kept point")
				}
			}
		}
		for _, d := range dropped {
			covered := false
			for _, k := range kept {
				if Dominates(k, d) || (k.Latency == d.Latency && k.Cost == d.Cost) {
					covered = true
					break
				}
			}
			assert.True(t, covered, "dropped %v not covered by %v", d, kept)
		}
	}
}

func TestCandidates(t *testing.T) {
	b1 := ilp.Budget{graph.OpAdder: 1, graph.OpMult: 1}
	b2 := ilp.Budget{graph.OpAdder: 2, graph.OpMult: 1}

	only := Candidates(nil, 9)
	require.Len(t, only, 1)
	assert.Equal(t, ilp.MRLC, only[0].Mode)

	budgets := Candidates([]ilp.Budget{b1, b2}, 0)
	require.Len(t, budgets, 2)
	assert.Equal(t, ilp.MLRC, budgets[1].Mode)
	assert.Equal(t, "adder=2,mult=1", budgets[1].Label)
	assert.Zero(t, budgets[1].LatencyBound)

	both := Candidates([]ilp.Budget{b1, b2}, 9)
	require.Len(t, both, 3)
	assert.Equal(t, 9, both[0].LatencyBound)
	assert.Equal(t, ilp.MRLC, both[2].Mode)
	assert.Equal(t, 2, both[2].Index)

	assert.Empty(t, Candidates(nil, 0))
}

func newController(parallel int) *Controller {
	return &Controller{
		Scheduler:   &scheduler.Scheduler{Solver: solver.NewPB(), TieBreak: true},
		Parallelism: parallel,
		Metrics:     metrics.NewRecorder(),
	}
}

func TestSweep_TwoBudgets(t *testing.T) {
	for _, parallel := range []int{1, 4} {
		c := newController(parallel)
		seen := 0
		c.OnResult = func(Candidate, *scheduler.Outcome, error) { seen++ }

		res, err := c.Sweep(context.Background(), twoAdders(t), []ilp.Budget{
			{graph.OpAdder: 1, graph.OpMult: 1},
			{graph.OpAdder: 2, graph.OpMult: 1},
		}, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, seen)

		require.Len(t, res.Points, 2)
		assert.Equal(t, 7, res.Points[0].Latency)
		assert.Equal(t, 3, res.Points[0].Cost)
		assert.Equal(t, 9, res.Points[1].Latency)
		assert.Equal(t, 2, res.Points[1].Cost)
		assert.Empty(t, res.Excluded)
	}
}

func TestSweep_CrossProduct(t *testing.T) {
	c := newController(2)

	res, err := c.Sweep(context.Background(), twoAdders(t), []ilp.Budget{
		{graph.OpAdder: 1, graph.OpMult: 1},
		{graph.OpAdder: 2, graph.OpMult: 1},
	}, 8)
	require.NoError(t, err)

	// adder=1 cannot meet 8 steps; adder=2 and the MR_LC solve both reach (7, 3).
	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "adder=1,mult=1@8", res.Excluded[0].Candidate.Label)
	require.Len(t, res.Points, 1)
	assert.Equal(t, 3, res.Points[0].Cost)
	assert.Len(t, res.Dominated, 1)
	assert.Equal(t, 3, res.Evaluated)
}

func TestSweep_AllInfeasible(t *testing.T) {
	c := newController(1)

	res, err := c.Sweep(context.Background(), twoAdders(t), []ilp.Budget{{graph.OpAdder: 1}}, 5)
	require.NoError(t, err)
	assert.Empty(t, res.Points)
	assert.Len(t, res.Excluded, 2)
}

type failingSolver struct{}

func (failingSolver) Name() string { return "broken" }

func (failingSolver) Solve(context.Context, *ilp.Model) (*solver.Result, error) {
	return nil, &solver.InvocationError{Backend: "broken", Err: errors.New("binary missing")}
}

func TestSweep_InvocationErrorAborts(t *testing.T) {
	c := &Controller{Scheduler: &scheduler.Scheduler{Solver: failingSolver{}}, Parallelism: 2}

	_, err := c.Sweep(context.Background(), twoAdders(t), []ilp.Budget{{graph.OpAdder: 1}, {graph.OpAdder: 2}}, 0)
	var inv *solver.InvocationError
	assert.True(t, errors.As(err, &inv), "expected InvocationError, got %v", err)
}

func TestSweep_NoCandidates(t *testing.T) {
	_, err := newController(1).Sweep(context.Background(), twoAdders(t), nil, 0)
	assert.ErrorIs(t, err, scheduler.ErrNoConstraints)
}

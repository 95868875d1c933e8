// Package timing computes ASAP/ALAP start-time bounds for a data-flow graph.
package timing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/joshharrison/hlsched/internal/graph"
)

// ErrZeroBudget is returned by ResourceHorizon when an operation type that
// occurs in the graph has a budget of zero instances.
var ErrZeroBudget = errors.New("resource budget is zero for an operation type in use")

// ComputeBounds annotates every node of g with ASAP and ALAP start times.
// ALAP(Sink) is set to horizon, or to ASAP(Sink) when horizon <= 0.
// A horizon below ASAP(Sink) is not an error here; the returned Bounds
// reports Feasible() == false and callers decide how to fail.
func ComputeBounds(g *graph.Graph, horizon int) (*Bounds, error) {
	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}

	asap := forward(g, order)
	lower := asap[g.Sink]
	if horizon <= 0 {
		horizon = lower
	}
	alap := backward(g, order, horizon)

	for _, id := range order {
		n := g.Nodes[id]
		n.ASAP = asap[id]
		n.ALAP = alap[id]
	}
	g.Annotated = true
	g.Horizon = horizon

	b := &Bounds{
		TopoOrder:  order,
		LowerBound: lower,
		Horizon:    horizon,
	}
	for _, id := range order {
		if g.Nodes[id].Mobility() == 0 {
			b.CriticalPath = append(b.CriticalPath, id)
		}
	}
	b.Steps = computeSteps(g, order)
	return b, nil
}

// LatencyLowerBound returns ASAP(Sink) without touching node annotations.
func LatencyLowerBound(g *graph.Graph) (int, error) {
	order, err := g.TopoOrder()
	if err != nil {
		return 0, err
	}
	return forward(g, order)[g.Sink], nil
}

// forward pass: ASAP = max(ASAP(pred) + cost(pred))
func forward(g *graph.Graph, order []string) map[string]int {
	asap := make(map[string]int, len(order))
	for _, id := range order {
		start := 0
		for _, pred := range g.RevAdj[id] {
			if f := asap[pred] + g.Nodes[pred].Cost; f > start {
				start = f
			}
		}
		asap[id] = start
	}
	return asap
}

// backward pass: ALAP = min(ALAP(succ) - cost(node))
func backward(g *graph.Graph, order []string, horizon int) map[string]int {
	alap := make(map[string]int, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		succs := g.Adj[id]
		if len(succs) == 0 {
			alap[id] = horizon - g.Nodes[id].Cost
			continue
		}
		latest := horizon
		for _, succ := range succs {
			if s := alap[succ] - g.Nodes[id].Cost; s < latest {
				latest = s
			}
		}
		alap[id] = latest
	}
	return alap
}

// computeSteps groups nodes by their ASAP time.
func computeSteps(g *graph.Graph, order []string) []Step {
	groups := make(map[int][]string)
	for _, id := range order {
		t := g.Nodes[id].ASAP
		groups[t] = append(groups[t], id)
	}

	times := make([]int, 0, len(groups))
	for t := range groups {
		times = append(times, t)
	}
	sort.Ints(times)

	steps := make([]Step, len(times))
	for i, t := range times {
		ids := groups[t]
		sort.Strings(ids)

		critical := false
		for _, id := range ids {
			if g.Nodes[id].Mobility() == 0 {
				critical = true
			}
		}

		// Critical nodes first within a step
		sort.SliceStable(ids, func(a, b int) bool {
			aCrit := g.Nodes[ids[a]].Mobility() == 0
			bCrit := g.Nodes[ids[b]].Mobility() == 0
			return aCrit && !bCrit
		})

		steps[i] = Step{Time: t, NodeIDs: ids, IsCritical: critical}
	}
	return steps
}

// ResourceHorizon returns the latency of a greedy list schedule of g under
// budget. Ready nodes are started by increasing ALAP, then first-seen index.
// Types missing from budget are unconstrained. The result is the latency of
// a feasible schedule and therefore an upper bound on the ML-RC optimum.
// g is not modified.
func ResourceHorizon(g *graph.Graph, budget map[graph.OpType]int) (int, error) {
	order, err := g.TopoOrder()
	if err != nil {
		return 0, err
	}
	for _, t := range g.ResourceTypesPresent() {
		if limit, ok := budget[t]; ok && limit <= 0 {
			return 0, fmt.Errorf("%s: %w", t, ErrZeroBudget)
		}
	}

	asap := forward(g, order)
	alap := backward(g, order, asap[g.Sink])

	pending := append([]string(nil), order...)
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if alap[a] != alap[b] {
			return alap[a] < alap[b]
		}
		return g.Nodes[a].Index < g.Nodes[b].Index
	})

	start := make(map[string]int, len(order))
	finish := make(map[string]int, len(order))

	ready := func(id string, t int) bool {
		for _, pred := range g.RevAdj[id] {
			f, ok := finish[pred]
			if !ok || f > t {
				return false
			}
		}
		return true
	}
	busy := func(typ graph.OpType, t int) int {
		n := 0
		for id, s := range start {
			node := g.Nodes[id]
			if node.Type == typ && s <= t && t < finish[id] {
				n++
			}
		}
		return n
	}

	maxSteps := 1
	for _, id := range order {
		maxSteps += g.Nodes[id].Cost
	}
	for t := 0; len(pending) > 0; t++ {
		if t > maxSteps {
			return 0, fmt.Errorf("list schedule did not converge after %d steps", maxSteps)
		}
		// Zero-cost nodes can release successors within the same step.
		for progress := true; progress; {
			progress = false
			rest := pending[:0]
			for _, id := range pending {
				n := g.Nodes[id]
				if !ready(id, t) {
					rest = append(rest, id)
					continue
				}
				if units, ok := budget[n.Type]; ok && n.Type.IsResource() && n.Cost > 0 && busy(n.Type, t) >= units {
					rest = append(rest, id)
					continue
				}
				start[id] = t
				finish[id] = t + n.Cost
				progress = true
			}
			pending = rest
		}
	}
	return finish[g.Sink], nil
}

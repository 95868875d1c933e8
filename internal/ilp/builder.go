// Package ilp builds integer linear programs for time-indexed scheduling of a
// data-flow graph, in the ML-RC and MR-LC formulations.
package ilp

import (
	"fmt"

	"github.com/joshharrison/hlsched/internal/graph"
)

// Request parameterizes Build. The latency horizon comes from the graph's
// timing annotation.
type Request struct {
	Mode    Mode
	Budget  Budget  // ML_RC capacity per type
	Weights Weights // MR_LC per-instance area; nil means unit weights
	// TieBreak adds a secondary objective preferring the earliest total
	// start time, so equally optimal schedules resolve the same way.
	TieBreak bool
}

// Build encodes g as a time-indexed ILP. g must already carry ASAP/ALAP
// bounds computed against the run's latency horizon.
func Build(g *graph.Graph, req Request) (*Model, error) {
	if !g.Annotated {
		return nil, fmt.Errorf("build %s model: graph has no timing bounds", req.Mode)
	}
	if err := req.Budget.Validate(); err != nil {
		return nil, err
	}
	for t, w := range req.Weights {
		if w < 0 {
			return nil, fmt.Errorf("build %s model: negative weight %d for %s", req.Mode, w, t)
		}
	}

	sink := g.Nodes[g.Sink]
	if sink.ASAP > sink.ALAP {
		return nil, &InfeasibleBoundError{Bound: sink.ALAP, LowerBound: sink.ASAP}
	}
	for _, id := range g.Order {
		if n := g.Nodes[id]; n.ASAP > n.ALAP {
			return nil, &InfeasibleBoundError{Bound: g.Horizon, LowerBound: sink.ASAP}
		}
	}

	b := &builder{
		g:   g,
		req: req,
		m: &Model{
			Mode:      req.Mode,
			Scale:     1,
			Starts:    make(map[string][]StartVar, len(g.Nodes)),
			Resources: make(map[graph.OpType]string),
			Horizon:   g.Horizon,
			varIndex:  make(map[string]int),
		},
	}

	b.startVars()
	b.uniqueness()
	b.precedence()
	switch req.Mode {
	case MLRC:
		b.latencyVar()
		b.budgetCapacity()
	case MRLC:
		b.resourceVars()
	default:
		return nil, fmt.Errorf("build model: unknown mode %v", req.Mode)
	}
	b.latencyCap()
	b.objective()

	return b.m, nil
}

type builder struct {
	g   *graph.Graph
	req Request
	m   *Model
}

func (b *builder) addVar(v Var) {
	b.m.varIndex[v.Name] = len(b.m.Vars)
	b.m.Vars = append(b.m.Vars, v)
}

// addConstraint drops zero terms and skips constraints left empty and
// trivially satisfied.
func (b *builder) addConstraint(c Constraint) {
	terms := c.Terms[:0]
	for _, t := range c.Terms {
		if t.Coef != 0 {
			terms = append(terms, t)
		}
	}
	c.Terms = terms
	if len(terms) == 0 {
		ok := (c.Sense == LE && 0 <= c.RHS) || (c.Sense == GE && 0 >= c.RHS) || (c.Sense == EQ && c.RHS == 0)
		if ok {
			return
		}
	}
	b.m.Constraints = append(b.m.Constraints, c)
}

func startName(n *graph.Node, t int) string {
	return fmt.Sprintf("x_%d_%d", n.Index, t)
}

func resourceName(t graph.OpType) string {
	return fmt.Sprintf("a_%d", int(t))
}

// startVars creates x[n,t] for t in [ASAP(n), ALAP(n)].
func (b *builder) startVars() {
	for _, id := range b.g.Order {
		n := b.g.Nodes[id]
		for t := n.ASAP; t <= n.ALAP; t++ {
			name := startName(n, t)
			b.addVar(Var{Name: name, Kind: Binary, Lower: 0, Upper: 1})
			b.m.Starts[id] = append(b.m.Starts[id], StartVar{Name: name, Time: t})
		}
	}
}

// startTerms returns Σ coef*t*x[n,t].
func (b *builder) startTerms(id string, coef int) []Term {
	var terms []Term
	for _, s := range b.m.Starts[id] {
		terms = append(terms, Term{Var: s.Name, Coef: coef * s.Time})
	}
	return terms
}

func (b *builder) uniqueness() {
	for _, id := range b.g.Order {
		n := b.g.Nodes[id]
		c := Constraint{Name: fmt.Sprintf("u_%d", n.Index), Sense: EQ, RHS: 1}
		for _, s := range b.m.Starts[id] {
			c.Terms = append(c.Terms, Term{Var: s.Name, Coef: 1})
		}
		b.addConstraint(c)
	}
}

// precedence: start(v) - start(u) >= cost(u). Edges already implied by the
// windows (ASAP(v) >= ALAP(u) + cost(u)) need no row.
func (b *builder) precedence() {
	for _, e := range b.g.Edges {
		u, v := b.g.Nodes[e.From], b.g.Nodes[e.To]
		if v.ASAP >= u.ALAP+u.Cost {
			continue
		}
		terms := append(b.startTerms(v.ID, 1), b.startTerms(u.ID, -1)...)
		b.addConstraint(Constraint{
			Name:  fmt.Sprintf("p_%d_%d", u.Index, v.Index),
			Terms: terms,
			Sense: GE,
			RHS:   u.Cost,
		})
	}
}

func (b *builder) latencyVar() {
	sink := b.g.Nodes[b.g.Sink]
	b.m.Latency = "L"
	b.addVar(Var{Name: b.m.Latency, Kind: Integer, Lower: sink.ASAP, Upper: b.g.Horizon})
}

// latencyCap: start(n) + cost(n) <= L, with L the makespan variable in
// ML_RC and the fixed horizon in MR_LC.
func (b *builder) latencyCap() {
	for _, id := range b.g.Order {
		n := b.g.Nodes[id]
		c := Constraint{Name: fmt.Sprintf("l_%d", n.Index), Terms: b.startTerms(id, 1), Sense: LE}
		if b.m.Latency != "" {
			c.Terms = append(c.Terms, Term{Var: b.m.Latency, Coef: -1})
			c.RHS = -n.Cost
		} else {
			c.RHS = b.g.Horizon - n.Cost
		}
		b.addConstraint(c)
	}
}

// active returns the start indicators of type-typ nodes that occupy step t,
// i.e. start s with s <= t < s+cost.
func (b *builder) active(typ graph.OpType, t int) ([]Term, int) {
	var terms []Term
	nodes := 0
	for _, id := range b.g.NodesOfType(typ) {
		n := b.g.Nodes[id]
		found := false
		for _, s := range b.m.Starts[id] {
			if s.Time <= t && t < s.Time+n.Cost {
				terms = append(terms, Term{Var: s.Name, Coef: 1})
				found = true
			}
		}
		if found {
			nodes++
		}
	}
	return terms, nodes
}

// budgetCapacity: for each constrained type and step, active units <= budget.
func (b *builder) budgetCapacity() {
	for _, typ := range b.g.ResourceTypesPresent() {
		limit, ok := b.req.Budget[typ]
		if !ok {
			continue
		}
		for t := 0; t < b.g.Horizon; t++ {
			terms, nodes := b.active(typ, t)
			if nodes <= limit {
				continue
			}
			b.addConstraint(Constraint{
				Name:  fmt.Sprintf("r_%d_%d", int(typ), t),
				Terms: terms,
				Sense: LE,
				RHS:   limit,
			})
		}
	}
}

// resourceVars: a_k counts instances of type k, and active(k,t) <= a_k.
func (b *builder) resourceVars() {
	for _, typ := range b.g.ResourceTypesPresent() {
		name := resourceName(typ)
		b.m.Resources[typ] = name
		b.addVar(Var{Name: name, Kind: Integer, Lower: 0, Upper: len(b.g.NodesOfType(typ))})
		for t := 0; t < b.g.Horizon; t++ {
			terms, _ := b.active(typ, t)
			if len(terms) == 0 {
				continue
			}
			b.addConstraint(Constraint{
				Name:  fmt.Sprintf("r_%d_%d", int(typ), t),
				Terms: append(terms, Term{Var: name, Coef: -1}),
				Sense: LE,
				RHS:   0,
			})
		}
	}
}

func (b *builder) objective() {
	switch b.req.Mode {
	case MLRC:
		b.m.Primary = []Term{{Var: b.m.Latency, Coef: 1}}
	case MRLC:
		w := b.req.Weights
		if w == nil {
			w = UnitWeights()
		}
		for _, typ := range b.g.ResourceTypesPresent() {
			b.m.Primary = append(b.m.Primary, Term{Var: b.m.Resources[typ], Coef: w.Of(typ)})
		}
	}

	if !b.req.TieBreak {
		b.m.Objective = append([]Term(nil), b.m.Primary...)
		return
	}

	// Σ t*x[n,t] never exceeds Σ ALAP(n), so scaling the primary by one
	// more than that keeps the order lexicographic.
	scale := 1
	for _, id := range b.g.Order {
		scale += b.g.Nodes[id].ALAP
	}
	b.m.Scale = scale
	for _, t := range b.m.Primary {
		b.m.Objective = append(b.m.Objective, Term{Var: t.Var, Coef: t.Coef * scale})
	}
	for _, id := range b.g.Order {
		for _, t := range b.startTerms(id, 1) {
			if t.Coef != 0 {
				b.m.Objective = append(b.m.Objective, t)
			}
		}
	}
}

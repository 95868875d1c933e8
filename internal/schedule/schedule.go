// Package schedule turns solver assignments into per-node start times and
// functional-unit bindings.
package schedule

import (
	"fmt"
	"sort"

	"github.com/joshharrison/hlsched/internal/graph"
	"github.com/joshharrison/hlsched/internal/ilp"
)

// NoInstance marks nodes that occupy no functional unit.
const NoInstance = -1

// Slot is one node's place in the schedule. The node occupies its unit
// during [Start, Finish).
type Slot struct {
	Node     string       `json:"node" yaml:"node"`
	Type     graph.OpType `json:"-" yaml:"-"`
	TypeName string       `json:"type" yaml:"type"`
	Start    int          `json:"start" yaml:"start"`
	Finish   int          `json:"finish" yaml:"finish"`
	Instance int          `json:"instance" yaml:"instance"`
}

// Assignment is a complete schedule for one graph.
type Assignment struct {
	Slots   []Slot // ordered by start time, then node id
	Latency int    // start time of the sink

	byNode map[string]int
}

// InternalConsistencyError reports a solver result that breaks an invariant
// the model itself enforces.
type InternalConsistencyError struct {
	Node   string
	Reason string
}

func (e *InternalConsistencyError) Error() string {
	if e.Node == "" {
		return "internal consistency: " + e.Reason
	}
	return fmt.Sprintf("internal consistency: node %s: %s", e.Node, e.Reason)
}

// Parse selects each node's start step from values and binds nodes to unit
// instances. Exactly one start indicator per node must be set.
func Parse(m *ilp.Model, values ilp.Assignment, g *graph.Graph) (*Assignment, error) {
	starts := make(map[string]int, len(g.Nodes))
	for _, id := range g.Order {
		chosen := -1
		count := 0
		for _, s := range m.Starts[id] {
			switch v := values[s.Name]; v {
			case 0:
			case 1:
				chosen = s.Time
				count++
			default:
				return nil, &InternalConsistencyError{Node: id, Reason: fmt.Sprintf("indicator %s has non-binary value %d", s.Name, v)}
			}
		}
		if count != 1 {
			return nil, &InternalConsistencyError{Node: id, Reason: fmt.Sprintf("%d start steps selected, want exactly 1", count)}
		}
		starts[id] = chosen
	}
	return FromStarts(g, starts)
}

// FromStarts builds an Assignment from explicit start times.
func FromStarts(g *graph.Graph, starts map[string]int) (*Assignment, error) {
	a := &Assignment{byNode: make(map[string]int, len(g.Nodes))}
	for _, id := range g.Order {
		t, ok := starts[id]
		if !ok {
			return nil, &InternalConsistencyError{Node: id, Reason: "no start time"}
		}
		n := g.Nodes[id]
		a.Slots = append(a.Slots, Slot{
			Node:     id,
			Type:     n.Type,
			TypeName: n.Type.String(),
			Start:    t,
			Finish:   t + n.Cost,
			Instance: NoInstance,
		})
	}
	sort.SliceStable(a.Slots, func(i, j int) bool {
		if a.Slots[i].Start != a.Slots[j].Start {
			return a.Slots[i].Start < a.Slots[j].Start
		}
		return a.Slots[i].Node < a.Slots[j].Node
	})
	for i, s := range a.Slots {
		a.byNode[s.Node] = i
	}
	a.Latency = starts[g.Sink]
	a.bind()
	return a, nil
}

// bind packs time-disjoint nodes of the same type onto the lowest free
// instance index, visiting nodes by start time.
func (a *Assignment) bind() {
	freeAt := make(map[graph.OpType][]int) // instance -> step it becomes free
	for i := range a.Slots {
		s := &a.Slots[i]
		if !s.Type.IsResource() || s.Finish == s.Start {
			continue
		}
		units := freeAt[s.Type]
		inst := -1
		for k, f := range units {
			if f <= s.Start {
				inst = k
				break
			}
		}
		if inst < 0 {
			inst = len(units)
			units = append(units, 0)
		}
		units[inst] = s.Finish
		freeAt[s.Type] = units
		s.Instance = inst
	}
}

// Slot returns the slot of node id.
func (a *Assignment) Slot(id string) (Slot, bool) {
	i, ok := a.byNode[id]
	if !ok {
		return Slot{}, false
	}
	return a.Slots[i], true
}

// Usage returns the number of bound instances per resource type.
func (a *Assignment) Usage() map[graph.OpType]int {
	usage := make(map[graph.OpType]int)
	for _, s := range a.Slots {
		if s.Instance != NoInstance && s.Instance+1 > usage[s.Type] {
			usage[s.Type] = s.Instance + 1
		}
	}
	return usage
}

// Peak returns the maximum number of simultaneously busy nodes per type.
func (a *Assignment) Peak() map[graph.OpType]int {
	peak := make(map[graph.OpType]int)
	for _, s := range a.Slots {
		if !s.Type.IsResource() {
			continue
		}
		for t := s.Start; t < s.Finish; t++ {
			n := 0
			for _, o := range a.Slots {
				if o.Type == s.Type && o.Start <= t && t < o.Finish {
					n++
				}
			}
			if n > peak[s.Type] {
				peak[s.Type] = n
			}
		}
	}
	return peak
}

// Area is the weighted instance count.
func (a *Assignment) Area(w ilp.Weights) int {
	return w.Area(a.Usage())
}

// Verify checks precedence on every edge and, when budget is non-nil, that
// no constrained type exceeds its instance limit.
func Verify(g *graph.Graph, a *Assignment, budget ilp.Budget) error {
	for _, e := range g.Edges {
		u, uok := a.Slot(e.From)
		v, vok := a.Slot(e.To)
		if !uok || !vok {
			return &InternalConsistencyError{Reason: fmt.Sprintf("edge %s -> %s has an unscheduled endpoint", e.From, e.To)}
		}
		if v.Start < u.Finish {
			return &InternalConsistencyError{Node: v.Node, Reason: fmt.Sprintf("starts at %d before %s finishes at %d", v.Start, u.Node, u.Finish)}
		}
	}
	peak := a.Peak()
	for t, limit := range budget {
		if peak[t] > limit {
			return &InternalConsistencyError{Reason: fmt.Sprintf("%s uses %d units, budget is %d", t, peak[t], limit)}
		}
	}
	return nil
}

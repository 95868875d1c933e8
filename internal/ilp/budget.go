package ilp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joshharrison/hlsched/internal/graph"
)

// Budget caps the number of concurrently active units per operation type.
// Types absent from the map are unconstrained.
type Budget map[graph.OpType]int

// ParseBudget accepts either a positional vector over graph.ResourceTypes
// ("1,1,1,1") or named entries ("adder=1,mult=2"). Whitespace may separate
// entries instead of commas.
func ParseBudget(s string) (Budget, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty resource budget")
	}

	b := make(Budget)
	if !strings.Contains(s, "=") {
		if len(fields) != len(graph.ResourceTypes) {
			return nil, fmt.Errorf("resource budget %q: expected %d entries (adder, shifter, alu, mult), got %d",
				s, len(graph.ResourceTypes), len(fields))
		}
		for i, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("resource budget %q: %w", s, err)
			}
			b[graph.ResourceTypes[i]] = n
		}
		return b, b.Validate()
	}

	for _, f := range fields {
		name, val, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("resource budget %q: entry %q is not type=count", s, f)
		}
		t, err := graph.ParseOpType(name)
		if err != nil {
			return nil, fmt.Errorf("resource budget %q: %w", s, err)
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("resource budget %q: %w", s, err)
		}
		if _, dup := b[t]; dup {
			return nil, fmt.Errorf("resource budget %q: %s listed twice", s, t)
		}
		b[t] = n
	}
	return b, b.Validate()
}

// Validate rejects non-resource types and negative counts.
func (b Budget) Validate() error {
	for t, n := range b {
		if !t.IsResource() {
			return fmt.Errorf("resource budget: %s is not a schedulable unit", t)
		}
		if n < 0 {
			return fmt.Errorf("resource budget: %s has negative count %d", t, n)
		}
	}
	return nil
}

// String renders the budget in canonical type order, e.g. "adder=1,mult=1".
func (b Budget) String() string {
	var parts []string
	for _, t := range graph.ResourceTypes {
		if n, ok := b[t]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", t, n))
		}
	}
	if len(parts) == 0 {
		return "unconstrained"
	}
	return strings.Join(parts, ",")
}

// Clone returns an independent copy.
func (b Budget) Clone() Budget {
	if b == nil {
		return nil
	}
	c := make(Budget, len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}

// Weights assigns an area cost to one instance of each operation type.
// Missing types weigh 1.
type Weights map[graph.OpType]int

// UnitWeights weighs every resource type 1.
func UnitWeights() Weights {
	w := make(Weights, len(graph.ResourceTypes))
	for _, t := range graph.ResourceTypes {
		w[t] = 1
	}
	return w
}

// WeightsFromCosts weighs each resource type by its cost-table latency.
func WeightsFromCosts(c graph.CostTable) Weights {
	w := make(Weights, len(graph.ResourceTypes))
	for _, t := range graph.ResourceTypes {
		w[t] = c[t]
	}
	return w
}

// Of returns the weight for t.
func (w Weights) Of(t graph.OpType) int {
	if v, ok := w[t]; ok {
		return v
	}
	return 1
}

// Area is Σ w_k * counts[k].
func (w Weights) Area(counts map[graph.OpType]int) int {
	total := 0
	for t, n := range counts {
		total += w.Of(t) * n
	}
	return total
}

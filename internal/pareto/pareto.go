// Package pareto sweeps candidate resource budgets and latency bounds and
// keeps the non-dominated (latency, cost) outcomes.
package pareto

import (
	"math"
	"sort"
	"strconv"

	"github.com/joshharrison/hlsched/internal/ilp"
	"github.com/joshharrison/hlsched/internal/scheduler"
)

// Candidate is one solve the sweep will attempt.
type Candidate struct {
	Index        int
	Mode         ilp.Mode
	Budget       ilp.Budget
	LatencyBound int
	Label        string
}

// Request converts c to a scheduler request.
func (c Candidate) Request() scheduler.Request {
	return scheduler.Request{
		Mode:         c.Mode,
		Budget:       c.Budget,
		LatencyBound: c.LatencyBound,
		Label:        c.Label,
	}
}

// Candidates expands the sweep inputs. A bound alone yields one MR_LC solve;
// budgets alone yield one ML_RC solve each; both yield an ML_RC solve per
// budget under the bound plus one MR_LC solve at the bound.
func Candidates(budgets []ilp.Budget, latencyBound int) []Candidate {
	var out []Candidate
	for _, b := range budgets {
		c := Candidate{Mode: ilp.MLRC, Budget: b.Clone(), Label: b.String()}
		if latencyBound > 0 {
			c.LatencyBound = latencyBound
			c.Label += "@" + strconv.Itoa(latencyBound)
		}
		out = append(out, c)
	}
	if latencyBound > 0 {
		out = append(out, Candidate{Mode: ilp.MRLC, LatencyBound: latencyBound, Label: "latency<=" + strconv.Itoa(latencyBound)})
	}
	for i := range out {
		out[i].Index = i
	}
	return out
}

// Point is one achieved (latency, cost) outcome.
type Point struct {
	Latency   int
	Cost      int
	Candidate Candidate
	Outcome   *scheduler.Outcome
}

// Dominates reports whether a is no worse than b in both latency and cost
// and strictly better in at least one.
func Dominates(a, b Point) bool {
	return a.Latency <= b.Latency && a.Cost <= b.Cost &&
		(a.Latency < b.Latency || a.Cost < b.Cost)
}

// Filter returns the non-dominated subset ordered by latency, and the
// points it dropped. Among identical (latency, cost) points the first one
// in input order is kept. The input slice is not modified.
func Filter(points []Point) (kept, dropped []Point) {
	sorted := append([]Point(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Latency != sorted[j].Latency {
			return sorted[i].Latency < sorted[j].Latency
		}
		return sorted[i].Cost < sorted[j].Cost
	})

	best := math.MaxInt
	for _, p := range sorted {
		if p.Cost < best {
			kept = append(kept, p)
			best = p.Cost
		} else {
			dropped = append(dropped, p)
		}
	}
	return kept, dropped
}

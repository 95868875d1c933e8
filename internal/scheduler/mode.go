package scheduler

import (
	"errors"

	"github.com/joshharrison/hlsched/internal/ilp"
)

// Plan is the kind of run implied by the supplied constraints.
type Plan int

const (
	PlanMLRC  Plan = iota // one budget, no latency bound
	PlanMRLC              // latency bound only
	PlanSweep             // several budgets, or budgets plus a bound
)

func (p Plan) String() string {
	switch p {
	case PlanMLRC:
		return "ml_rc"
	case PlanMRLC:
		return "mr_lc"
	}
	return "sweep"
}

// ErrNoConstraints is returned when neither a budget nor a bound is given.
var ErrNoConstraints = errors.New("need a latency bound, a resource budget, or both")

// SelectPlan maps the presence of budgets and a latency bound to a Plan.
func SelectPlan(budgets []ilp.Budget, latencyBound int) (Plan, error) {
	switch {
	case len(budgets) == 0 && latencyBound <= 0:
		return 0, ErrNoConstraints
	case len(budgets) == 0:
		return PlanMRLC, nil
	case len(budgets) == 1 && latencyBound <= 0:
		return PlanMLRC, nil
	}
	return PlanSweep, nil
}

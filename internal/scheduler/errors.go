package scheduler

import (
	"errors"
	"fmt"

	"github.com/joshharrison/hlsched/internal/ilp"
	"github.com/joshharrison/hlsched/internal/solver"
)

// NoScheduleFoundError reports a run for which no feasible schedule exists.
type NoScheduleFoundError struct {
	Mode   ilp.Mode
	Label  string
	Status solver.Status
	Reason string
}

func (e *NoScheduleFoundError) Error() string {
	msg := fmt.Sprintf("no schedule found (%s", e.Mode)
	if e.Label != "" {
		msg += ", " + e.Label
	}
	msg += ")"
	if e.Reason != "" {
		return msg + ": " + e.Reason
	}
	return msg + ": solver reported " + e.Status.String()
}

// IsRecoverable reports whether err only rules out one candidate. Sweeps
// skip such candidates; every other error aborts the run.
func IsRecoverable(err error) bool {
	var nsf *NoScheduleFoundError
	var ib *ilp.InfeasibleBoundError
	return errors.As(err, &nsf) || errors.As(err, &ib)
}

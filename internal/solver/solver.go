// Package solver runs ILP models through a backend and returns raw
// variable assignments.
package solver

import (
	"context"
	"fmt"
	"strings"

	"github.com/joshharrison/hlsched/internal/ilp"
)

// Status is the outcome class of one solve.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	Error
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	}
	return "error"
}

// Result is what a backend reports. Assignment is nil unless Status is Optimal.
type Result struct {
	Status     Status
	Objective  int
	Assignment ilp.Assignment
}

// Solver solves one model. Implementations must be safe to call from
// multiple goroutines with distinct models, and must not apply their own
// timeout: cancellation comes from ctx.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *ilp.Model) (*Result, error)
}

// InvocationError reports a backend that could not be run or crashed.
type InvocationError struct {
	Backend string
	Err     error
	Output  string
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("solver %s: %v", e.Backend, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Backend names accepted by New.
const (
	BackendPB   = "pb"
	BackendGLPK = "glpk"
)

// Options configures New.
type Options struct {
	Backend   string
	GlpsolBin string
	WorkDir   string
	KeepFiles bool
}

// New returns the backend named in opts.
func New(opts Options) (Solver, error) {
	switch opts.Backend {
	case "", BackendPB:
		return NewPB(), nil
	case BackendGLPK:
		return NewGLPK(opts.GlpsolBin, opts.WorkDir, opts.KeepFiles), nil
	}
	return nil, fmt.Errorf("unknown solver backend %q", opts.Backend)
}

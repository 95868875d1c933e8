// Package scheduler runs the single-solve pipeline: timing bounds, model
// construction, solve and result parsing.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joshharrison/hlsched/internal/graph"
	"github.com/joshharrison/hlsched/internal/ilp"
	"github.com/joshharrison/hlsched/internal/logging"
	"github.com/joshharrison/hlsched/internal/metrics"
	"github.com/joshharrison/hlsched/internal/schedule"
	"github.com/joshharrison/hlsched/internal/solver"
	"github.com/joshharrison/hlsched/internal/timing"
)

// Scheduler is safe for concurrent use as long as Solver is.
type Scheduler struct {
	Solver   solver.Solver
	Weights  ilp.Weights // MR_LC objective and reported area; nil means unit weights
	TieBreak bool
	Metrics  *metrics.Recorder
}

// Request describes one solve.
type Request struct {
	Mode   ilp.Mode
	Budget ilp.Budget
	// LatencyBound is required for MR_LC. For ML_RC it is optional and
	// caps the horizon instead of the list-schedule estimate.
	LatencyBound int
	Label        string
}

// Outcome is the QoR of one successful solve.
type Outcome struct {
	Label        string
	Mode         ilp.Mode
	Budget       ilp.Budget
	LatencyBound int

	Latency   int
	Usage     map[graph.OpType]int
	Area      int
	Objective int // latency (ML_RC) or weighted area (MR_LC) reported by the model

	Graph    *graph.Graph // annotated copy used for the solve
	Bounds   *timing.Bounds
	Schedule *schedule.Assignment

	Variables   int
	Constraints int
	Duration    time.Duration
}

// Run solves one request on a private copy of g; g itself is not modified.
func (s *Scheduler) Run(ctx context.Context, g *graph.Graph, req Request) (*Outcome, error) {
	log := logging.FromContext(ctx).With(zap.String("mode", req.Mode.String()))
	if req.Label != "" {
		log = log.With(zap.String("candidate", req.Label))
	}

	p, err := s.Prepare(ctx, g, req)
	if err != nil {
		return nil, err
	}
	g, bounds, m, horizon := p.Graph, p.Bounds, p.Model, p.Horizon

	start := time.Now()
	res, err := s.Solver.Solve(ctx, m)
	elapsed := time.Since(start)
	if err != nil {
		s.Metrics.ObserveSolve(req.Mode.String(), solver.Error.String(), elapsed)
		return nil, fmt.Errorf("%s: %w", describe(req), err)
	}
	s.Metrics.ObserveSolve(req.Mode.String(), res.Status.String(), elapsed)
	log.Debug("solver finished",
		zap.String("backend", s.Solver.Name()),
		zap.String("status", res.Status.String()),
		zap.Duration("elapsed", elapsed))

	switch res.Status {
	case solver.Optimal:
	case solver.Infeasible, solver.Unbounded:
		return nil, &NoScheduleFoundError{Mode: req.Mode, Label: req.Label, Status: res.Status}
	default:
		return nil, fmt.Errorf("%s: %w", describe(req), &solver.InvocationError{
			Backend: s.Solver.Name(),
			Err:     errors.New("solver returned an error status"),
		})
	}

	a, err := schedule.Parse(m, res.Assignment, g)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", describe(req), err)
	}
	var budget ilp.Budget
	if req.Mode == ilp.MLRC {
		budget = req.Budget
	}
	if err := schedule.Verify(g, a, budget); err != nil {
		return nil, fmt.Errorf("%s: %w", describe(req), err)
	}
	if a.Latency > horizon {
		return nil, &schedule.InternalConsistencyError{
			Reason: fmt.Sprintf("latency %d exceeds horizon %d", a.Latency, horizon),
		}
	}

	w := s.Weights
	if w == nil {
		w = ilp.UnitWeights()
	}
	return &Outcome{
		Label:        req.Label,
		Mode:         req.Mode,
		Budget:       req.Budget.Clone(),
		LatencyBound: req.LatencyBound,
		Latency:      a.Latency,
		Usage:        a.Usage(),
		Area:         a.Area(w),
		Objective:    m.PrimaryValue(res.Assignment),
		Graph:        g,
		Bounds:       bounds,
		Schedule:     a,
		Variables:    len(m.Vars),
		Constraints:  len(m.Constraints),
		Duration:     elapsed,
	}, nil
}

// Prepared is an annotated graph copy and the model built over it, ready
// to be handed to a solver or written out.
type Prepared struct {
	Graph   *graph.Graph
	Bounds  *timing.Bounds
	Model   *ilp.Model
	Horizon int
}

// Prepare runs timing analysis and model construction for req on a private
// copy of g.
func (s *Scheduler) Prepare(ctx context.Context, g *graph.Graph, req Request) (*Prepared, error) {
	log := logging.FromContext(ctx).With(zap.String("mode", req.Mode.String()))
	if req.Label != "" {
		log = log.With(zap.String("candidate", req.Label))
	}

	g = g.Clone()

	horizon, err := s.horizon(g, req)
	if err != nil {
		return nil, err
	}

	bounds, err := timing.ComputeBounds(g, horizon)
	if err != nil {
		return nil, err
	}
	log.Debug("timing bounds",
		zap.Int("lower_bound", bounds.LowerBound),
		zap.Int("horizon", bounds.Horizon),
		zap.Strings("critical_path", bounds.CriticalPath))

	m, err := ilp.Build(g, ilp.Request{
		Mode:     req.Mode,
		Budget:   req.Budget,
		Weights:  s.Weights,
		TieBreak: s.TieBreak,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", describe(req), err)
	}
	s.Metrics.SetModelSize(req.Mode.String(), len(m.Vars))
	log.Debug("model built",
		zap.Int("variables", len(m.Vars)),
		zap.Int("binary", m.NumBinary()),
		zap.Int("constraints", len(m.Constraints)))

	return &Prepared{Graph: g, Bounds: bounds, Model: m, Horizon: horizon}, nil
}

// horizon picks ALAP(Sink) for the run.
func (s *Scheduler) horizon(g *graph.Graph, req Request) (int, error) {
	switch req.Mode {
	case ilp.MRLC:
		if req.LatencyBound <= 0 {
			return 0, fmt.Errorf("%s: a positive latency bound is required", req.Mode)
		}
		return req.LatencyBound, nil
	case ilp.MLRC:
		for _, t := range g.ResourceTypesPresent() {
			if n, ok := req.Budget[t]; ok && n == 0 {
				return 0, &NoScheduleFoundError{
					Mode:   req.Mode,
					Label:  req.Label,
					Status: solver.Infeasible,
					Reason: fmt.Sprintf("%s: %v", t, timing.ErrZeroBudget),
				}
			}
		}
		if req.LatencyBound > 0 {
			return req.LatencyBound, nil
		}
		return timing.ResourceHorizon(g, req.Budget)
	}
	return 0, fmt.Errorf("unknown mode %v", req.Mode)
}

func describe(req Request) string {
	if req.Label != "" {
		return fmt.Sprintf("%s %s", req.Mode, req.Label)
	}
	return req.Mode.String()
}

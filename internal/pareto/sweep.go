package pareto

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joshharrison/hlsched/internal/graph"
	"github.com/joshharrison/hlsched/internal/ilp"
	"github.com/joshharrison/hlsched/internal/logging"
	"github.com/joshharrison/hlsched/internal/metrics"
	"github.com/joshharrison/hlsched/internal/scheduler"
)

// Exclusion records a candidate that produced no point.
type Exclusion struct {
	Candidate Candidate
	Reason    string
}

// Result is the outcome of a sweep.
type Result struct {
	Points    []Point // non-dominated, latency ascending
	Dominated []Point
	Excluded  []Exclusion
	Evaluated int
	Duration  time.Duration
}

// Controller runs sweeps. Candidates are independent solves over private
// copies of the graph, so they may run concurrently.
type Controller struct {
	Scheduler   *scheduler.Scheduler
	Parallelism int // max concurrent solves (default: 1)
	Metrics     *metrics.Recorder

	// OnResult, if set, is called once per candidate as it finishes.
	// Calls are serialized.
	OnResult func(c Candidate, out *scheduler.Outcome, err error)
}

// Sweep evaluates every candidate implied by budgets and latencyBound.
// Candidates that are infeasible are excluded; if all are, the result has
// no points and no error. Any other failure aborts the sweep.
func (c *Controller) Sweep(ctx context.Context, g *graph.Graph, budgets []ilp.Budget, latencyBound int) (*Result, error) {
	log := logging.FromContext(ctx)

	cands := Candidates(budgets, latencyBound)
	if len(cands) == 0 {
		return nil, scheduler.ErrNoConstraints
	}

	parallel := c.Parallelism
	if parallel < 1 {
		parallel = 1
	}

	start := time.Now()
	outcomes := make([]*scheduler.Outcome, len(cands))
	failures := make([]error, len(cands))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for i, cand := range cands {
		eg.Go(func() error {
			out, err := c.Scheduler.Run(egCtx, g, cand.Request())
			if c.OnResult != nil {
				mu.Lock()
				c.OnResult(cand, out, err)
				mu.Unlock()
			}
			if err != nil {
				if !scheduler.IsRecoverable(err) {
					return err
				}
				failures[i] = err
				return nil
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("sweep aborted: %w", err)
	}

	res := &Result{Evaluated: len(cands), Duration: time.Since(start)}
	var points []Point
	for i, cand := range cands {
		if failures[i] != nil {
			log.Warn("candidate excluded", zap.String("candidate", cand.Label), zap.Error(failures[i]))
			res.Excluded = append(res.Excluded, Exclusion{Candidate: cand, Reason: failures[i].Error()})
			continue
		}
		out := outcomes[i]
		points = append(points, Point{Latency: out.Latency, Cost: out.Area, Candidate: cand, Outcome: out})
	}

	res.Points, res.Dominated = Filter(points)
	c.Metrics.SetParetoPoints(len(res.Points))
	log.Debug("sweep finished",
		zap.Int("candidates", len(cands)),
		zap.Int("points", len(res.Points)),
		zap.Int("excluded", len(res.Excluded)),
		zap.Duration("elapsed", res.Duration))
	return res, nil
}

// Package metrics records solver activity as Prometheus collectors.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns a private registry so repeated runs in one process do not
// collide. A nil *Recorder is valid and records nothing.
type Recorder struct {
	Registry *prometheus.Registry

	solves       *prometheus.CounterVec
	solveSeconds *prometheus.HistogramVec
	modelVars    *prometheus.GaugeVec
	paretoPoints prometheus.Gauge
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlsched_solves_total",
			Help: "Solver invocations by scheduling mode and outcome.",
		}, []string{"mode", "status"}),
		solveSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hlsched_solve_duration_seconds",
			Help:    "Wall-clock time spent in the solver backend.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"mode"}),
		modelVars: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hlsched_model_variables",
			Help: "Decision variables in the most recently built model.",
		}, []string{"mode"}),
		paretoPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hlsched_pareto_points",
			Help: "Non-dominated points retained by the last sweep.",
		}),
	}
	r.Registry.MustRegister(r.solves, r.solveSeconds, r.modelVars, r.paretoPoints)
	return r
}

// ObserveSolve counts one solve and its duration.
func (r *Recorder) ObserveSolve(mode, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.solves.WithLabelValues(mode, status).Inc()
	r.solveSeconds.WithLabelValues(mode).Observe(d.Seconds())
}

// SetModelSize records the variable count of a freshly built model.
func (r *Recorder) SetModelSize(mode string, vars int) {
	if r == nil {
		return
	}
	r.modelVars.WithLabelValues(mode).Set(float64(vars))
}

// SetParetoPoints records the size of a sweep's frontier.
func (r *Recorder) SetParetoPoints(n int) {
	if r == nil {
		return
	}
	r.paretoPoints.Set(float64(n))
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

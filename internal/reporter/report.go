package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joshharrison/hlsched/internal/graph"
	"github.com/joshharrison/hlsched/internal/pareto"
	"github.com/joshharrison/hlsched/internal/schedule"
	"github.com/joshharrison/hlsched/internal/scheduler"
)

// Output formats accepted by Encode.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// OutcomeReport is the serializable QoR of one solve.
type OutcomeReport struct {
	Label        string          `json:"label,omitempty" yaml:"label,omitempty"`
	Mode         string          `json:"mode" yaml:"mode"`
	Status       string          `json:"status" yaml:"status"`
	Budget       map[string]int  `json:"budget,omitempty" yaml:"budget,omitempty"`
	LatencyBound int             `json:"latency_bound,omitempty" yaml:"latency_bound,omitempty"`
	Latency      int             `json:"latency" yaml:"latency"`
	Instances    map[string]int  `json:"instances" yaml:"instances"`
	Area         int             `json:"area" yaml:"area"`
	Objective    int             `json:"objective" yaml:"objective"`
	CriticalPath []string        `json:"critical_path" yaml:"critical_path"`
	Variables    int             `json:"variables" yaml:"variables"`
	Constraints  int             `json:"constraints" yaml:"constraints"`
	SolveTime    string          `json:"solve_time" yaml:"solve_time"`
	Schedule     []schedule.Slot `json:"schedule" yaml:"schedule"`
}

// PointReport is one latency/cost point of a sweep.
type PointReport struct {
	Candidate string         `json:"candidate" yaml:"candidate"`
	Latency   int            `json:"latency" yaml:"latency"`
	Cost      int            `json:"cost" yaml:"cost"`
	Outcome   *OutcomeReport `json:"outcome,omitempty" yaml:"outcome,omitempty"`
}

// ExclusionReport records a candidate that produced no schedule.
type ExclusionReport struct {
	Candidate string `json:"candidate" yaml:"candidate"`
	Reason    string `json:"reason" yaml:"reason"`
}

// SweepReport is the serializable result of a Pareto sweep.
type SweepReport struct {
	Points    []PointReport     `json:"points" yaml:"points"`
	Dominated []PointReport     `json:"dominated,omitempty" yaml:"dominated,omitempty"`
	Excluded  []ExclusionReport `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	Evaluated int               `json:"evaluated" yaml:"evaluated"`
	Duration  string            `json:"duration" yaml:"duration"`
}

// FromOutcome converts a solve outcome into its report form.
func FromOutcome(out *scheduler.Outcome) *OutcomeReport {
	r := &OutcomeReport{
		Label:        out.Label,
		Mode:         out.Mode.String(),
		Status:       "optimal",
		Budget:       typeMap(out.Budget),
		LatencyBound: out.LatencyBound,
		Latency:      out.Latency,
		Instances:    typeMap(out.Usage),
		Area:         out.Area,
		Objective:    out.Objective,
		Variables:    out.Variables,
		Constraints:  out.Constraints,
		SolveTime:    out.Duration.Truncate(time.Microsecond).String(),
		CriticalPath: []string{},
		Schedule:     []schedule.Slot{},
	}
	if out.Bounds != nil {
		r.CriticalPath = append(r.CriticalPath, out.Bounds.CriticalPath...)
	}
	if out.Schedule != nil {
		r.Schedule = append(r.Schedule, out.Schedule.Slots...)
	}
	return r
}

// FromSweep converts a sweep result into its report form. Dominated points
// are listed without their schedules.
func FromSweep(res *pareto.Result) *SweepReport {
	r := &SweepReport{
		Points:    []PointReport{},
		Evaluated: res.Evaluated,
		Duration:  res.Duration.Truncate(time.Millisecond).String(),
	}
	for _, p := range res.Points {
		pr := PointReport{Candidate: p.Candidate.Label, Latency: p.Latency, Cost: p.Cost}
		if p.Outcome != nil {
			pr.Outcome = FromOutcome(p.Outcome)
		}
		r.Points = append(r.Points, pr)
	}
	for _, p := range res.Dominated {
		r.Dominated = append(r.Dominated, PointReport{Candidate: p.Candidate.Label, Latency: p.Latency, Cost: p.Cost})
	}
	for _, ex := range res.Excluded {
		r.Excluded = append(r.Excluded, ExclusionReport{Candidate: ex.Candidate.Label, Reason: ex.Reason})
	}
	return r
}

// Encode writes v as JSON or YAML.
func Encode(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported report format %q (want text, json or yaml)", format)
	}
}

// typeMap keys per-type counts by type name. Nil or empty input yields nil.
func typeMap[M ~map[graph.OpType]int](m M) map[string]int {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int, len(m))
	for t, n := range m {
		out[t.String()] = n
	}
	return out
}

// sortedTypes returns the resource types in m in canonical order.
func sortedTypes(m map[graph.OpType]int) []graph.OpType {
	var types []graph.OpType
	for t := range m {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

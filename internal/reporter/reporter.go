// Package reporter renders quality-of-results for single solves, Pareto
// sweeps and timing analyses as colored text, JSON, YAML or Graphviz DOT.
package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/joshharrison/hlsched/internal/graph"
	"github.com/joshharrison/hlsched/internal/pareto"
	"github.com/joshharrison/hlsched/internal/schedule"
	"github.com/joshharrison/hlsched/internal/scheduler"
	"github.com/joshharrison/hlsched/internal/timing"
	"github.com/joshharrison/hlsched/internal/ui"
)

// Reporter writes human-readable reports to W.
type Reporter struct {
	W io.Writer
	// Gantt appends a per-unit time chart to single-solve reports.
	Gantt bool
}

// New creates a Reporter with the Gantt chart enabled.
func New(w io.Writer) *Reporter {
	return &Reporter{W: w, Gantt: true}
}

// PrintOutcome writes the QoR of one solve.
func (r *Reporter) PrintOutcome(out *scheduler.Outcome) {
	w := r.W

	title := "Schedule " + strings.ToUpper(out.Mode.String())
	if out.Label != "" {
		title += "  " + ui.Dim("("+out.Label+")")
	}
	fmt.Fprintf(w, "\n%s %s\n", ui.StatusIcon("optimal"), ui.BoldCyan(title))
	fmt.Fprintf(w, "%s\n", ui.Cyan("══════════════════════════"))

	latency := ui.Bold(out.Latency)
	if out.LatencyBound > 0 {
		latency += ui.Dim(fmt.Sprintf("  (bound %d)", out.LatencyBound))
	}
	fmt.Fprintf(w, "Latency:    %s\n", latency)
	fmt.Fprintf(w, "Area:       %s  %s\n", ui.Bold(out.Area), usageText(out.Usage))
	if len(out.Budget) > 0 {
		fmt.Fprintf(w, "Budget:     %s\n", ui.Dim(out.Budget.String()))
	}
	fmt.Fprintf(w, "Objective:  %d\n", out.Objective)
	fmt.Fprintf(w, "Model:      %d vars, %d constraints\n", out.Variables, out.Constraints)
	fmt.Fprintf(w, "Solve time: %s\n", ui.Dim(out.Duration.Truncate(time.Microsecond)))
	if out.Bounds != nil && len(out.Bounds.CriticalPath) > 0 {
		fmt.Fprintf(w, "Critical:   %s\n",
			ui.BoldYellow(ui.Critical+" "+strings.Join(out.Bounds.CriticalPath, " → ")))
	}
	fmt.Fprintln(w)

	if out.Schedule == nil {
		return
	}
	r.printSlots(out.Graph, out.Schedule)
	if r.Gantt {
		fmt.Fprintln(w)
		r.printGantt(out.Schedule)
	}
}

// printSlots writes one row per node, ordered by start then id.
func (r *Reporter) printSlots(g *graph.Graph, a *schedule.Assignment) {
	w := r.W
	fmt.Fprintf(w, "  %s\n", ui.Dim(fmt.Sprintf("%-12s %-8s %5s %6s  %-10s %s", "NODE", "TYPE", "START", "FINISH", "UNIT", "SLACK")))
	for _, s := range a.Slots {
		unit := ui.Dim("-")
		if s.Instance != schedule.NoInstance {
			unit = fmt.Sprintf("%s#%d", s.TypeName, s.Instance)
		}
		slack := ""
		if g != nil {
			if n, ok := g.Nodes[s.Node]; ok {
				slack = ui.Mobility(n.Mobility())
			}
		}
		fmt.Fprintf(w, "  %s %s %5d %6d  %-10s %s\n",
			padLabel(s.Node, s.Type, 12),
			ui.TypeName(s.Type)+strings.Repeat(" ", pad(s.TypeName, 8)),
			s.Start, s.Finish, unit, slack)
	}
}

// printGantt draws one row per bound unit instance with its busy steps.
func (r *Reporter) printGantt(a *schedule.Assignment) {
	w := r.W
	width := a.Latency
	if width <= 0 {
		return
	}

	type unit struct {
		typ      graph.OpType
		name     string
		instance int
	}
	var units []unit
	busy := make(map[unit][]schedule.Slot)
	for _, s := range a.Slots {
		if s.Instance == schedule.NoInstance {
			continue
		}
		u := unit{typ: s.Type, name: s.TypeName, instance: s.Instance}
		if _, ok := busy[u]; !ok {
			units = append(units, u)
		}
		busy[u] = append(busy[u], s)
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].typ != units[j].typ {
			return units[i].typ < units[j].typ
		}
		return units[i].instance < units[j].instance
	})

	fmt.Fprintf(w, "  %s\n", ui.BoldWhite("Units"))
	for _, u := range units {
		row := []rune(strings.Repeat("·", width))
		for _, s := range busy[u] {
			for t := s.Start; t < s.Finish && t < width; t++ {
				row[t] = '█'
			}
		}
		var nodes []string
		for _, s := range busy[u] {
			nodes = append(nodes, s.Node)
		}
		label := fmt.Sprintf("%s#%d", u.name, u.instance)
		fmt.Fprintf(w, "  %-10s |%s| %s\n", label, ui.TypeColor(u.typ)(string(row)), ui.Dim(strings.Join(nodes, " ")))
	}
}

// PrintBounds writes the ASAP/ALAP table grouped by earliest start step.
func (r *Reporter) PrintBounds(g *graph.Graph, b *timing.Bounds) {
	w := r.W

	fmt.Fprintf(w, "\n%s %s\n", "⏱", ui.BoldCyan("Timing Bounds"))
	fmt.Fprintf(w, "%s\n", ui.Cyan("═══════════════"))
	fmt.Fprintf(w, "Nodes:       %d (%d edges)\n", g.NodeCount(), len(g.Edges))
	fmt.Fprintf(w, "Lower bound: %s\n", ui.Bold(b.LowerBound))
	fmt.Fprintf(w, "Horizon:     %d\n", b.Horizon)
	if len(b.CriticalPath) > 0 {
		fmt.Fprintf(w, "Critical:    %s\n",
			ui.BoldYellow(ui.Critical+" "+strings.Join(b.CriticalPath, " → ")))
	}
	fmt.Fprintln(w)

	for _, step := range b.Steps {
		marker := ""
		if step.IsCritical {
			marker = " " + ui.BoldYellow(ui.Critical)
		}
		fmt.Fprintf(w, "  %s %d%s  (%d nodes)\n", ui.BoldWhite("t ="), step.Time, marker, len(step.NodeIDs))
		for _, id := range step.NodeIDs {
			n := g.Nodes[id]
			fmt.Fprintf(w, "    %s %s  asap %-3d alap %-3d cost %-2d slack %s\n",
				padLabel(id, n.Type, 12),
				ui.TypeName(n.Type)+strings.Repeat(" ", pad(n.Type.String(), 8)),
				n.ASAP, n.ALAP, n.Cost, ui.Mobility(n.Mobility()))
		}
	}
	fmt.Fprintln(w)
}

// PrintSweep writes the Pareto frontier followed by dominated and excluded
// candidates.
func (r *Reporter) PrintSweep(res *pareto.Result) {
	w := r.W

	fmt.Fprintf(w, "\n%s %s\n", "📈", ui.BoldCyan("Pareto Sweep"))
	fmt.Fprintf(w, "%s\n", ui.Cyan("══════════════"))
	fmt.Fprintf(w, "Candidates: %d evaluated, %s, %s, %s\n",
		res.Evaluated,
		ui.Green(fmt.Sprintf("%d optimal", len(res.Points))),
		ui.Yellow(fmt.Sprintf("%d dominated", len(res.Dominated))),
		ui.Red(fmt.Sprintf("%d excluded", len(res.Excluded))))
	fmt.Fprintf(w, "Duration:   %s\n\n", ui.Dim(res.Duration.Truncate(time.Millisecond)))

	if len(res.Points) == 0 {
		fmt.Fprintf(w, "  %s\n\n", ui.Dim("no feasible candidate"))
	} else {
		fmt.Fprintf(w, "  %s\n", ui.Dim(fmt.Sprintf("  %-8s %-6s %s", "LATENCY", "COST", "CANDIDATE")))
		for _, p := range res.Points {
			r.printPoint(w, "kept", p)
		}
		fmt.Fprintln(w)
	}

	if len(res.Dominated) > 0 {
		fmt.Fprintf(w, "%s\n", ui.BoldYellow("Dominated:"))
		for _, p := range res.Dominated {
			r.printPoint(w, "dominated", p)
		}
		fmt.Fprintln(w)
	}

	if len(res.Excluded) > 0 {
		fmt.Fprintf(w, "%s\n", ui.BoldRed("Excluded:"))
		for _, ex := range res.Excluded {
			fmt.Fprintf(w, "  %s %s  %s\n", ui.StatusIcon("infeasible"), ui.BoldMagenta(ex.Candidate.Label), ui.Dim(ex.Reason))
		}
		fmt.Fprintln(w)
	}
}

func (r *Reporter) printPoint(w io.Writer, status string, p pareto.Point) {
	usage := ""
	if p.Outcome != nil {
		usage = usageText(p.Outcome.Usage)
	}
	fmt.Fprintf(w, "  %s %-8d %-6d %s  %s\n", ui.StatusIcon(status), p.Latency, p.Cost, ui.BoldMagenta(p.Candidate.Label), usage)
}

// usageText renders per-type instance counts, e.g. "adder×1 mult×2".
func usageText(usage map[graph.OpType]int) string {
	var parts []string
	for _, t := range sortedTypes(usage) {
		parts = append(parts, fmt.Sprintf("%s×%d", t, usage[t]))
	}
	if len(parts) == 0 {
		return ""
	}
	return ui.Dim(strings.Join(parts, " "))
}

// padLabel returns a colored node label padded to width visible columns.
func padLabel(id string, t graph.OpType, width int) string {
	return ui.NodeLabel(id, t) + strings.Repeat(" ", pad(id, width-2))
}

// pad returns the number of spaces needed to widen s to width runes.
func pad(s string, width int) int {
	if n := width - len([]rune(s)); n > 0 {
		return n
	}
	return 0
}

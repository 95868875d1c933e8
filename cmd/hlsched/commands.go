package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joshharrison/hlsched/internal/archive"
	"github.com/joshharrison/hlsched/internal/edgelist"
	"github.com/joshharrison/hlsched/internal/graph"
	"github.com/joshharrison/hlsched/internal/ilp"
	"github.com/joshharrison/hlsched/internal/pareto"
	"github.com/joshharrison/hlsched/internal/reporter"
	"github.com/joshharrison/hlsched/internal/scheduler"
	"github.com/joshharrison/hlsched/internal/timing"
	"github.com/joshharrison/hlsched/internal/ui"
)

func addGraphFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagGraph, "graph", "g", "", "Edge-list file of the data-flow graph")
	cmd.Flags().IntVarP(&flagLatency, "latency", "l", 0, "Latency bound in time steps")
}

func addBudgetFlag(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&flagBudgets, "area", "a", nil,
		`Resource budget "adder,shifter,alu,mult" or "adder=1,mult=2" (repeatable)`)
}

func scheduleCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule a graph; the mode follows from the constraints given",
		Long: `With only -l, minimize resource cost under the latency bound (MR-LC).
With one -a and no -l, minimize latency under the budget (ML-RC).
With several -a, or -a together with -l, sweep the budgets and report the
Pareto frontier.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			defer a.close()

			budgets, err := parseBudgets(flagBudgets)
			if err != nil {
				return err
			}
			plan, err := scheduler.SelectPlan(budgets, flagLatency)
			if err != nil {
				return err
			}

			g, err := a.loadGraph(flagGraph)
			if err != nil {
				return err
			}

			switch plan {
			case scheduler.PlanMRLC:
				return a.runSingle(ctx, "schedule", g, scheduler.Request{
					Mode:         ilp.MRLC,
					LatencyBound: flagLatency,
					Label:        fmt.Sprintf("latency<=%d", flagLatency),
				})
			case scheduler.PlanMLRC:
				return a.runSingle(ctx, "schedule", g, scheduler.Request{
					Mode:   ilp.MLRC,
					Budget: budgets[0],
					Label:  budgets[0].String(),
				})
			default:
				return a.runSweep(ctx, "schedule", g, budgets, flagLatency)
			}
		},
	}

	addGraphFlags(cmd)
	addBudgetFlag(cmd)
	cmd.Flags().StringVar(&flagFormat, "format", reporter.FormatText, "Output format (text, json, yaml)")

	return cmd
}

func sweepCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Evaluate every budget and report the latency/area Pareto frontier",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			defer a.close()

			budgets, err := parseBudgets(flagBudgets)
			if err != nil {
				return err
			}
			if len(budgets) == 0 {
				return fmt.Errorf("sweep needs at least one resource budget (-a)")
			}
			g, err := a.loadGraph(flagGraph)
			if err != nil {
				return err
			}
			return a.runSweep(ctx, "sweep", g, budgets, flagLatency)
		},
	}

	addGraphFlags(cmd)
	addBudgetFlag(cmd)
	cmd.Flags().StringVar(&flagFormat, "format", reporter.FormatText, "Output format (text, json, yaml)")

	return cmd
}

func (a *app) runSingle(ctx context.Context, command string, g *graph.Graph, req scheduler.Request) error {
	s, err := a.scheduler()
	if err != nil {
		return err
	}

	out, err := s.Run(ctx, g, req)
	if err != nil {
		var nsf *scheduler.NoScheduleFoundError
		if errors.As(err, &nsf) && flagFormat == reporter.FormatText {
			fmt.Fprintf(os.Stdout, "%s %s\n", ui.StatusIcon("infeasible"), ui.BoldRed("no schedule found"))
		}
		return err
	}

	if flagFormat == reporter.FormatText {
		reporter.New(os.Stdout).PrintOutcome(out)
	} else if err := reporter.Encode(os.Stdout, flagFormat, reporter.FromOutcome(out)); err != nil {
		return err
	}

	a.archiveRun(&archive.Record{Command: command, GraphFile: flagGraph, Outcome: reporter.FromOutcome(out)})
	return nil
}

func (a *app) runSweep(ctx context.Context, command string, g *graph.Graph, budgets []ilp.Budget, latencyBound int) error {
	s, err := a.scheduler()
	if err != nil {
		return err
	}

	ctrl := &pareto.Controller{
		Scheduler:   s,
		Parallelism: a.cfg.Sweep.Parallelism,
		Metrics:     a.metrics,
	}
	if flagFormat == reporter.FormatText {
		ctrl.OnResult = func(c pareto.Candidate, out *scheduler.Outcome, err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "  %s %s  %s\n", ui.StatusIcon("infeasible"), ui.BoldMagenta(c.Label), ui.Dim(err.Error()))
				return
			}
			fmt.Fprintf(os.Stderr, "  %s %s  latency=%d area=%d %s\n", ui.StatusIcon("optimal"), ui.BoldMagenta(c.Label),
				out.Latency, out.Area, ui.Dim(out.Duration.Truncate(time.Millisecond)))
		}
	}

	res, err := ctrl.Sweep(ctx, g, budgets, latencyBound)
	if err != nil {
		return err
	}

	if flagFormat == reporter.FormatText {
		reporter.New(os.Stdout).PrintSweep(res)
	} else if err := reporter.Encode(os.Stdout, flagFormat, reporter.FromSweep(res)); err != nil {
		return err
	}

	a.archiveRun(&archive.Record{Command: command, GraphFile: flagGraph, Sweep: reporter.FromSweep(res)})
	return nil
}

func boundsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bounds",
		Short: "Print ASAP/ALAP start times, mobility and the critical path",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			defer a.close()

			g, err := a.loadGraph(flagGraph)
			if err != nil {
				return err
			}
			b, err := timing.ComputeBounds(g, flagLatency)
			if err != nil {
				return err
			}
			if !b.Feasible() {
				return &ilp.InfeasibleBoundError{Bound: flagLatency, LowerBound: b.LowerBound}
			}

			reporter.New(os.Stdout).PrintBounds(g, b)
			return nil
		},
	}

	addGraphFlags(cmd)

	return cmd
}

func modelCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Write the ILP model in CPLEX LP format without solving it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			defer a.close()

			budgets, err := parseBudgets(flagBudgets)
			if err != nil {
				return err
			}
			var req scheduler.Request
			switch {
			case len(budgets) > 1:
				return fmt.Errorf("model writes a single formulation; give at most one budget")
			case len(budgets) == 1:
				req = scheduler.Request{Mode: ilp.MLRC, Budget: budgets[0], LatencyBound: flagLatency}
			case flagLatency > 0:
				req = scheduler.Request{Mode: ilp.MRLC, LatencyBound: flagLatency}
			default:
				return scheduler.ErrNoConstraints
			}

			g, err := a.loadGraph(flagGraph)
			if err != nil {
				return err
			}
			s, err := a.scheduler()
			if err != nil {
				return err
			}
			p, err := s.Prepare(ctx, g, req)
			if err != nil {
				return err
			}

			w, closeOut, err := openOutput(flagOutput)
			if err != nil {
				return err
			}
			if err := ilp.WriteLP(w, p.Model); err != nil {
				closeOut()
				return err
			}
			if err := closeOut(); err != nil {
				return err
			}
			if flagOutput != "" && flagOutput != "-" {
				fmt.Fprintf(os.Stderr, "%s %s (%d vars, %d constraints)\n",
					ui.Green("✓ wrote"), flagOutput, len(p.Model.Vars), len(p.Model.Constraints))
			}
			return nil
		},
	}

	addGraphFlags(cmd)
	addBudgetFlag(cmd)
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output file (default stdout)")

	return cmd
}

func vizCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "viz",
		Short: "Render the data-flow graph with its critical path highlighted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			defer a.close()

			g, err := a.loadGraph(flagGraph)
			if err != nil {
				return err
			}
			b, err := timing.ComputeBounds(g, 0)
			if err != nil {
				return err
			}
			return reporter.WriteViz(os.Stdout, flagVizFormat, g, b)
		},
	}

	cmd.Flags().StringVarP(&flagGraph, "graph", "g", "", "Edge-list file of the data-flow graph")
	cmd.Flags().StringVar(&flagVizFormat, "format", reporter.VizASCII, "Output format (ascii, dot)")

	return cmd
}

func exampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "example",
		Short: "Write the sample data-flow graph as an edge list",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, closeOut, err := openOutput(flagOutput)
			if err != nil {
				return err
			}
			if err := edgelist.WriteRecords(w, edgelist.Sample()); err != nil {
				closeOut()
				return err
			}
			return closeOut()
		},
	}

	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output file (default stdout)")

	return cmd
}

func historyCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs, or show one with --run",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			defer a.close()

			store := archive.New(a.cfg.Archive.Dir)
			if flagRun != "" {
				var rec *archive.Record
				if flagRun == "latest" {
					rec, err = store.Latest()
				} else {
					rec, err = store.Load(flagRun)
				}
				if err != nil {
					return err
				}
				format := flagFormat
				if format == reporter.FormatText {
					format = reporter.FormatYAML
				}
				return reporter.Encode(os.Stdout, format, rec)
			}

			records, err := store.List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println(ui.Dim("No archived runs in " + store.Dir))
				return nil
			}
			fmt.Printf("%s\n", ui.BoldCyan("Run History"))
			fmt.Printf("%s\n", ui.Cyan(strings.Repeat("═", 11)))
			for _, rec := range records {
				fmt.Printf("  %s  %s  %-8s %s  %s\n",
					ui.BoldMagenta(rec.ID),
					ui.Dim(rec.CreatedAt.Local().Format("2006-01-02 15:04")),
					rec.Command,
					rec.Headline(),
					ui.Dim(rec.GraphFile))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagRun, "run", "", `Run id to show ("latest" for the newest)`)
	cmd.Flags().StringVar(&flagFormat, "format", reporter.FormatText, "Output format for --run (yaml, json)")

	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joshharrison/hlsched/internal/archive"
	"github.com/joshharrison/hlsched/internal/config"
	"github.com/joshharrison/hlsched/internal/edgelist"
	"github.com/joshharrison/hlsched/internal/graph"
	"github.com/joshharrison/hlsched/internal/ilp"
	"github.com/joshharrison/hlsched/internal/logging"
	"github.com/joshharrison/hlsched/internal/metrics"
	"github.com/joshharrison/hlsched/internal/scheduler"
	"github.com/joshharrison/hlsched/internal/solver"
	"github.com/joshharrison/hlsched/internal/ui"
)

var version = "dev"

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
	flagBackend   string
	flagGlpsol    string
	flagKeepFiles bool
	flagParallel  int
	flagWeighted  bool
	flagTieBreak  bool
	flagLenient   bool
	flagArchive   bool
	flagMetrics   string
	flagNoColor   bool

	flagGraph     string
	flagLatency   int
	flagBudgets   []string
	flagFormat    string
	flagVizFormat string
	flagOutput    string
	flagRun       string
)

// flagKeys maps config keys to the persistent flags that override them.
var flagKeys = map[string]string{
	"log.level":              "log-level",
	"log.format":             "log-format",
	"solver.backend":         "backend",
	"solver.glpsol_path":     "glpsol",
	"solver.keep_files":      "keep-files",
	"sweep.parallelism":      "parallel",
	"schedule.weighted_area": "weighted-area",
	"schedule.tie_break":     "tie-break",
	"archive.enabled":        "archive",
	"metrics.textfile":       "metrics-textfile",
}

func main() {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:   "hlsched",
		Short: "Exact ILP scheduling for high-level synthesis data-flow graphs",
		Long: `hlsched reads a data-flow graph of hardware operations, computes ASAP/ALAP
bounds, and formulates resource-constrained scheduling as an integer linear
program. It minimizes latency under a resource budget (ML-RC), minimizes
resource cost under a latency bound (MR-LC), or sweeps several budgets to
build a Pareto frontier of latency against area.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default ./hlsched.yaml if present)")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", "console", "Log format (console, json)")
	pf.StringVar(&flagBackend, "backend", solver.BackendPB, "Solver backend (pb, glpk)")
	pf.StringVar(&flagGlpsol, "glpsol", "glpsol", "Path to the glpsol binary")
	pf.BoolVar(&flagKeepFiles, "keep-files", false, "Keep solver model and report files")
	pf.IntVar(&flagParallel, "parallel", 1, "Max concurrent solves during a sweep")
	pf.BoolVar(&flagWeighted, "weighted-area", false, "Weight each unit by its operation cost instead of 1")
	pf.BoolVar(&flagTieBreak, "tie-break", true, "Prefer the earliest schedule among optimal ones")
	pf.BoolVar(&flagLenient, "lenient-costs", false, "Accept edge costs that disagree with the cost table")
	pf.BoolVar(&flagArchive, "archive", false, "Archive the run under the archive directory")
	pf.StringVar(&flagMetrics, "metrics-textfile", "", "Write Prometheus metrics to this file")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable colored output")

	if err := config.BindFlags(v, pf, flagKeys); err != nil {
		fmt.Fprintf(os.Stderr, "hlsched: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(scheduleCmd(v))
	rootCmd.AddCommand(sweepCmd(v))
	rootCmd.AddCommand(boundsCmd(v))
	rootCmd.AddCommand(modelCmd(v))
	rootCmd.AddCommand(vizCmd(v))
	rootCmd.AddCommand(exampleCmd())
	rootCmd.AddCommand(historyCmd(v))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.BoldRed("error:"), err)
		stop()
		os.Exit(1)
	}
}

// app is the per-command environment built from configuration.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	costs   graph.CostTable
	metrics *metrics.Recorder
}

func newApp(cmd *cobra.Command, v *viper.Viper) (*app, context.Context, error) {
	if flagNoColor {
		ui.SetEnabled(false)
	}

	cfg, err := config.Load(v, flagConfig)
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("lenient-costs") {
		cfg.Graph.StrictCosts = !flagLenient
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	costs, err := cfg.CostTable()
	if err != nil {
		return nil, nil, err
	}

	a := &app{cfg: cfg, log: log, costs: costs, metrics: metrics.NewRecorder()}
	ctx := logging.WithLogger(cmd.Context(), log)
	log.Debug("configuration loaded",
		zap.String("backend", cfg.Solver.Backend),
		zap.Int("parallelism", cfg.Sweep.Parallelism),
		zap.Bool("weighted_area", cfg.Schedule.WeightedArea))
	return a, ctx, nil
}

// close flushes the logger and writes the metrics textfile if configured.
func (a *app) close() {
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			a.log.Warn("write metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

func (a *app) loadGraph(path string) (*graph.Graph, error) {
	if path == "" {
		return nil, fmt.Errorf("an edge-list file is required (-g)")
	}
	records, err := edgelist.ReadFile(path)
	if err != nil {
		return nil, err
	}
	loader := graph.NewLoader(a.costs)
	loader.StrictCosts = a.cfg.Graph.StrictCosts
	g, err := loader.Load(records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.log.Debug("graph loaded",
		zap.String("file", path),
		zap.Int("nodes", g.NodeCount()),
		zap.Int("edges", len(g.Edges)))
	return g, nil
}

func (a *app) scheduler() (*scheduler.Scheduler, error) {
	s, err := solver.New(a.cfg.SolverOptions())
	if err != nil {
		return nil, err
	}
	return &scheduler.Scheduler{
		Solver:   s,
		Weights:  a.cfg.AreaWeights(a.costs),
		TieBreak: a.cfg.Schedule.TieBreak,
		Metrics:  a.metrics,
	}, nil
}

// archiveRun saves rec when archiving is enabled.
func (a *app) archiveRun(rec *archive.Record) {
	if !a.cfg.Archive.Enabled {
		return
	}
	rec.Backend = a.cfg.Solver.Backend
	if err := archive.New(a.cfg.Archive.Dir).Save(rec); err != nil {
		a.log.Warn("archive run", zap.Error(err))
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", ui.Dim("archived run"), ui.Bold(rec.ID))
}

func parseBudgets(raw []string) ([]ilp.Budget, error) {
	var budgets []ilp.Budget
	for _, s := range raw {
		b, err := ilp.ParseBudget(s)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, nil
}

// openOutput returns stdout, or a created file when path is set.
func openOutput(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}

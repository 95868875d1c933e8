package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/hlsched/internal/graph"
	"github.com/joshharrison/hlsched/internal/ilp"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "pb", cfg.Solver.Backend)
	assert.Equal(t, "glpsol", cfg.Solver.GlpsolPath)
	assert.True(t, cfg.Schedule.TieBreak)
	assert.False(t, cfg.Schedule.WeightedArea)
	assert.True(t, cfg.Graph.StrictCosts)
	assert.Equal(t, 1, cfg.Sweep.Parallelism)
	assert.Equal(t, ".hlsched", cfg.Archive.Dir)
	assert.Equal(t, ilp.UnitWeights(), cfg.AreaWeights(graph.DefaultCostTable()))
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hlsched.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
solver:
  backend: glpk
  keep_files: true
schedule:
  weighted_area: true
sweep:
  parallelism: 2
costs:
  mult: 4
`), 0o644))

	t.Setenv("HLSCHED_SWEEP_PARALLELISM", "3")
	t.Setenv("HLSCHED_LOG_LEVEL", "debug")

	v := NewViper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-format", "console", "")
	require.NoError(t, fs.Parse([]string{"--log-format", "json"}))
	require.NoError(t, BindFlags(v, fs, map[string]string{"log.format": "log-format", "log.level": "missing-flag"}))

	cfg, err := Load(v, path)
	require.NoError(t, err)

	assert.Equal(t, "glpk", cfg.Solver.Backend)
	assert.True(t, cfg.Solver.KeepFiles)
	assert.Equal(t, 3, cfg.Sweep.Parallelism)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	costs, err := cfg.CostTable()
	require.NoError(t, err)
	assert.Equal(t, 4, costs[graph.OpMult])
	assert.Equal(t, 2, costs[graph.OpAdder])
	assert.Equal(t, 4, cfg.AreaWeights(costs)[graph.OpMult])

	opts := cfg.SolverOptions()
	assert.Equal(t, "glpk", opts.Backend)
	assert.True(t, opts.KeepFiles)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Solver: SolverConfig{Backend: "pb"},
			Sweep:  SweepConfig{Parallelism: 1},
		}
	}
	require.NoError(t, base().Validate())

	c := base()
	c.Solver.Backend = "cplex"
	assert.Error(t, c.Validate())

	c = base()
	c.Sweep.Parallelism = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Costs = map[string]int{"adder": -1}
	assert.Error(t, c.Validate())

	c = base()
	c.Costs = map[string]int{"divider": 3}
	assert.Error(t, c.Validate())
}

// Package config loads hlsched settings from flags, HLSCHED_* environment
// variables, an optional YAML file and built-in defaults, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/joshharrison/hlsched/internal/graph"
	"github.com/joshharrison/hlsched/internal/ilp"
	"github.com/joshharrison/hlsched/internal/solver"
)

// EnvPrefix is prepended to every environment override, e.g.
// HLSCHED_SOLVER_BACKEND.
const EnvPrefix = "HLSCHED"

// DefaultFile is looked up in the working directory when no --config is given.
const DefaultFile = "hlsched"

type Config struct {
	Solver   SolverConfig   `mapstructure:"solver"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Graph    GraphConfig    `mapstructure:"graph"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Log      LogConfig      `mapstructure:"log"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	// Costs overrides entries of the default cost table, keyed by type name.
	Costs map[string]int `mapstructure:"costs"`
}

type SolverConfig struct {
	Backend    string `mapstructure:"backend"`
	GlpsolPath string `mapstructure:"glpsol_path"`
	WorkDir    string `mapstructure:"work_dir"`
	KeepFiles  bool   `mapstructure:"keep_files"`
}

type ScheduleConfig struct {
	TieBreak     bool `mapstructure:"tie_break"`
	WeightedArea bool `mapstructure:"weighted_area"`
}

type GraphConfig struct {
	StrictCosts bool `mapstructure:"strict_costs"`
}

type SweepConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("solver.backend", solver.BackendPB)
	v.SetDefault("solver.glpsol_path", "glpsol")
	v.SetDefault("solver.work_dir", os.TempDir())
	v.SetDefault("solver.keep_files", false)
	v.SetDefault("schedule.tie_break", true)
	v.SetDefault("schedule.weighted_area", false)
	v.SetDefault("graph.strict_costs", true)
	v.SetDefault("sweep.parallelism", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.dir", ".hlsched")
	v.SetDefault("metrics.textfile", "")
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds config keys to flags in fs. Missing flags are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads path (or ./hlsched.yaml when path is empty and the file exists)
// and returns the validated configuration.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultFile)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no run could use.
func (c *Config) Validate() error {
	switch c.Solver.Backend {
	case solver.BackendPB, solver.BackendGLPK:
	default:
		return fmt.Errorf("config: unknown solver.backend %q (want %s or %s)", c.Solver.Backend, solver.BackendPB, solver.BackendGLPK)
	}
	if c.Sweep.Parallelism < 1 {
		return fmt.Errorf("config: sweep.parallelism must be at least 1, got %d", c.Sweep.Parallelism)
	}
	if _, err := c.CostTable(); err != nil {
		return err
	}
	return nil
}

// CostTable returns the default table with Costs applied.
func (c *Config) CostTable() (graph.CostTable, error) {
	table := graph.DefaultCostTable()
	for name, cost := range c.Costs {
		t, err := graph.ParseOpType(name)
		if err != nil {
			return nil, fmt.Errorf("config: costs: %w", err)
		}
		if cost < 0 {
			return nil, fmt.Errorf("config: costs: %s has negative cost %d", t, cost)
		}
		table[t] = cost
	}
	return table, nil
}

// AreaWeights returns the per-instance weights used to score resource cost.
func (c *Config) AreaWeights(costs graph.CostTable) ilp.Weights {
	if c.Schedule.WeightedArea {
		return ilp.WeightsFromCosts(costs)
	}
	return ilp.UnitWeights()
}

// SolverOptions maps the solver section onto solver.New options.
func (c *Config) SolverOptions() solver.Options {
	return solver.Options{
		Backend:   c.Solver.Backend,
		GlpsolBin: c.Solver.GlpsolPath,
		WorkDir:   c.Solver.WorkDir,
		KeepFiles: c.Solver.KeepFiles,
	}
}

package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flags binds the configuration fields to command line flags. Only flags the user
// actually set are applied on top of the defaults and the config file.
type Flags struct {
	values Config
	fs     *pflag.FlagSet
}

// RegisterFlags adds one flag per configuration field to fs.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{values: Default(), fs: fs}
	v := &f.values
	fs.StringVar(&v.OutPath, "outpath", v.OutPath, "Output directory")
	fs.StringVar(&v.Parser, "parser", v.Parser, "Instance parser (X, K, Z)")
	fs.Int64Var(&v.Seed, "seed", v.Seed, "Random seed")
	fs.Float64Var(&v.Tolerance, "tolerance", v.Tolerance, "Local search improvement tolerance")
	fs.IntVar(&v.GranularNeighbors, "granular-neighbors", v.GranularNeighbors, "Neighbors per vertex in the granular neighborhood")
	fs.IntVar(&v.CacheSize, "cache", v.CacheSize, "Recently touched vertices cache size")
	fs.Float64Var(&v.CWLambda, "cw-lambda", v.CWLambda, "Clarke-Wright savings route shape parameter")
	fs.IntVar(&v.CWNeighbors, "cw-neighbors", v.CWNeighbors, "Neighbors considered by Clarke-Wright")
	fs.IntVar(&v.RouteMinIterations, "routemin-iterations", v.RouteMinIterations, "Route minimization iterations")
	fs.IntVar(&v.CoreIterations, "core-iterations", v.CoreIterations, "Main loop iterations")
	fs.Float64Var(&v.TimeBudget, "time-budget", v.TimeBudget, "Wall-clock budget in seconds (overrides core iterations)")
	fs.Float64Var(&v.GammaBase, "gamma-base", v.GammaBase, "Initial sparsification factor")
	fs.Float64Var(&v.Delta, "delta", v.Delta, "Sparsification non-improving threshold factor")
	fs.Float64Var(&v.ShakingLB, "shaking-lb-factor", v.ShakingLB, "Shaking lower bound factor")
	fs.Float64Var(&v.ShakingUB, "shaking-ub-factor", v.ShakingUB, "Shaking upper bound factor")
	fs.StringSliceVar(&v.Operators, "operators", v.Operators, "Local search operators (relocate, swap, 2opt, 2opt*)")
	fs.IntVar(&v.ReportEvery, "report-every", v.ReportEvery, "Progress report interval in iterations")
	return f
}

// Resolve builds the effective configuration: defaults, then the optional file at path,
// then every flag changed on the command line. The result is validated.
func (f *Flags) Resolve(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	f.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Apply copies every changed flag value into cfg.
func (f *Flags) Apply(cfg *Config) {
	f.fs.Visit(func(fl *pflag.Flag) {
		if set, ok := setters[fl.Name]; ok {
			set(cfg, &f.values)
		}
	})
}

var setters = map[string]func(dst, src *Config){
	"outpath":             func(d, s *Config) { d.OutPath = s.OutPath },
	"parser":              func(d, s *Config) { d.Parser = s.Parser },
	"seed":                func(d, s *Config) { d.Seed = s.Seed },
	"tolerance":           func(d, s *Config) { d.Tolerance = s.Tolerance },
	"granular-neighbors":  func(d, s *Config) { d.GranularNeighbors = s.GranularNeighbors },
	"cache":               func(d, s *Config) { d.CacheSize = s.CacheSize },
	"cw-lambda":           func(d, s *Config) { d.CWLambda = s.CWLambda },
	"cw-neighbors":        func(d, s *Config) { d.CWNeighbors = s.CWNeighbors },
	"routemin-iterations": func(d, s *Config) { d.RouteMinIterations = s.RouteMinIterations },
	"core-iterations":     func(d, s *Config) { d.CoreIterations = s.CoreIterations },
	"time-budget":         func(d, s *Config) { d.TimeBudget = s.TimeBudget },
	"gamma-base":          func(d, s *Config) { d.GammaBase = s.GammaBase },
	"delta":               func(d, s *Config) { d.Delta = s.Delta },
	"shaking-lb-factor":   func(d, s *Config) { d.ShakingLB = s.ShakingLB },
	"shaking-ub-factor":   func(d, s *Config) { d.ShakingUB = s.ShakingUB },
	"operators":           func(d, s *Config) { d.Operators = append([]string(nil), s.Operators...) },
	"report-every":        func(d, s *Config) { d.ReportEvery = s.ReportEvery },
}

// String summarizes the options that shape a run.
func (c Config) String() string {
	mode := fmt.Sprintf("iterations=%d", c.CoreIterations)
	if c.TimeBudget > 0 {
		mode = fmt.Sprintf("time_budget=%gs", c.TimeBudget)
	}
	return fmt.Sprintf("parser=%s seed=%d %s gamma_base=%g shaking=[%g,%g]",
		c.Parser, c.Seed, mode, c.GammaBase, c.ShakingLB, c.ShakingUB)
}

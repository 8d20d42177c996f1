// Package config holds the solver configuration shared by the CLI, the job server and checkpoints.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/filo/internal/instance"
	"github.com/cwbudde/filo/internal/localsearch"
	"github.com/cwbudde/filo/internal/opt"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the complete set of solver options.
//
// Time-based runs are selected by a positive TimeBudget; CoreIterations is ignored then.
type Config struct {
	OutPath            string   `yaml:"outpath" json:"outpath" validate:"required"`
	Parser             string   `yaml:"parser" json:"parser" validate:"oneof=X K Z"`
	Seed               int64    `yaml:"seed" json:"seed"`
	Tolerance          float64  `yaml:"tolerance" json:"tolerance" validate:"gte=0"`
	GranularNeighbors  int      `yaml:"granular_neighbors" json:"granularNeighbors" validate:"gte=1"`
	CacheSize          int      `yaml:"cache" json:"cache" validate:"gte=1"`
	CWLambda           float64  `yaml:"cw_lambda" json:"cwLambda" validate:"gt=0"`
	CWNeighbors        int      `yaml:"cw_neighbors" json:"cwNeighbors" validate:"gte=1"`
	RouteMinIterations int      `yaml:"routemin_iterations" json:"routeminIterations" validate:"gte=0"`
	CoreIterations     int      `yaml:"core_iterations" json:"coreIterations" validate:"gte=0"`
	TimeBudget         float64  `yaml:"time_budget" json:"timeBudget" validate:"gte=0"` // seconds
	GammaBase          float64  `yaml:"gamma_base" json:"gammaBase" validate:"gt=0,lte=1"`
	Delta              float64  `yaml:"delta" json:"delta" validate:"gt=0"`
	ShakingLB          float64  `yaml:"shaking_lb_factor" json:"shakingLbFactor" validate:"gt=0,ltfield=ShakingUB"`
	ShakingUB          float64  `yaml:"shaking_ub_factor" json:"shakingUbFactor" validate:"gt=0"`
	Operators          []string `yaml:"operators,omitempty" json:"operators,omitempty" validate:"omitempty,dive,oneof=relocate swap 2opt 2opt*"`
	ReportEvery        int      `yaml:"report_every" json:"reportEvery" validate:"gte=0"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	p := opt.DefaultParams()
	return Config{
		OutPath:            "./",
		Parser:             string(instance.VariantX),
		Seed:               p.Seed,
		Tolerance:          p.Tolerance,
		GranularNeighbors:  p.GranularNeighbors,
		CacheSize:          p.CacheSize,
		CWLambda:           p.CWLambda,
		CWNeighbors:        p.CWNeighbors,
		RouteMinIterations: p.RouteMinIterations,
		CoreIterations:     p.CoreIterations,
		GammaBase:          p.GammaBase,
		Delta:              p.Delta,
		ShakingLB:          p.ShakingLB,
		ShakingUB:          p.ShakingUB,
		ReportEvery:        100,
	}
}

// Load overlays the YAML file at path on top of Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks every field and returns a *ValidationError for the first violation.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: fe.Field(), Reason: describe(fe), err: err}
		}
		return err
	}
	if c.CoreIterations == 0 && c.TimeBudget == 0 {
		return &ValidationError{Field: "CoreIterations", Reason: "must be positive when no time budget is set"}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "ltfield":
		return "must be less than " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
	err    error
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Field + " " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.err }

// Variant returns the instance parser selected by Parser.
func (c Config) Variant() (instance.Variant, error) {
	return instance.ParseVariant(c.Parser)
}

// Budget returns the wall-clock budget, zero for iteration-based runs.
func (c Config) Budget() time.Duration {
	return time.Duration(c.TimeBudget * float64(time.Second))
}

// Params converts the configuration into solver parameters.
func (c Config) Params() (opt.Params, error) {
	ops := make([]localsearch.Operator, 0, len(c.Operators))
	for _, name := range c.Operators {
		op, err := localsearch.ParseOperator(name)
		if err != nil {
			return opt.Params{}, err
		}
		ops = append(ops, op)
	}
	return opt.Params{
		Seed:               c.Seed,
		Tolerance:          c.Tolerance,
		GranularNeighbors:  c.GranularNeighbors,
		CacheSize:          c.CacheSize,
		CWLambda:           c.CWLambda,
		CWNeighbors:        c.CWNeighbors,
		RouteMinIterations: c.RouteMinIterations,
		CoreIterations:     c.CoreIterations,
		TimeBudget:         c.Budget(),
		GammaBase:          c.GammaBase,
		Delta:              c.Delta,
		ShakingLB:          c.ShakingLB,
		ShakingUB:          c.ShakingUB,
		Operators:          ops,
		ReportEvery:        c.ReportEvery,
	}, nil
}

// NeighborsNum is the neighbor list length the instance needs to serve both the
// granular neighborhood and the savings construction.
func (c Config) NeighborsNum() int {
	return max(c.GranularNeighbors, c.CWNeighbors)
}

// LoadInstance parses the instance at path with the configured parser.
func (c Config) LoadInstance(path string) (*instance.Instance, error) {
	variant, err := c.Variant()
	if err != nil {
		return nil, err
	}
	return instance.Load(path, variant, c.NeighborsNum())
}

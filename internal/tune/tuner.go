// Package tune searches the adaptation parameters of the solver with a black-box optimizer.
package tune

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/filo/internal/instance"
	"github.com/cwbudde/filo/internal/opt"
)

// dimensions of the normalized search space: gamma base, shaking lower factor, shaking width
const dimensions = 3

// Decode maps a point of [0,1]^3 to solver parameters on top of base
func Decode(base opt.Params, x []float64) opt.Params {
	p := base
	p.GammaBase = 0.05 + 0.95*clamp01(x[0])
	p.ShakingLB = 0.05 + 0.95*clamp01(x[1])
	p.ShakingUB = p.ShakingLB + 0.05 + 1.45*clamp01(x[2])
	return p
}

// Encode is the inverse of Decode for the tuned fields
func Encode(p opt.Params) []float64 {
	return []float64{
		clamp01((p.GammaBase - 0.05) / 0.95),
		clamp01((p.ShakingLB - 0.05) / 0.95),
		clamp01((p.ShakingUB - p.ShakingLB - 0.05) / 1.45),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// SolveFunc runs the solver once and returns the best cost
type SolveFunc func(ctx context.Context, in *instance.Instance, p opt.Params) (float64, error)

// Tuner evaluates each candidate as the mean best cost over several seeded runs
type Tuner struct {
	Instance    *instance.Instance
	Base        opt.Params
	Seeds       []int64
	Parallelism int
	Optimizer   Optimizer
	Solve       SolveFunc
}

// Outcome is the result of a tuning session
type Outcome struct {
	Params      opt.Params
	MeanCost    float64
	Evaluations int64
}

// Run searches the parameter space. Every candidate runs one solver per seed, at most
// Parallelism at a time, each solver single threaded.
func (t *Tuner) Run(ctx context.Context) (*Outcome, error) {
	if len(t.Seeds) == 0 {
		return nil, fmt.Errorf("tuning needs at least one seed")
	}
	solve := t.Solve
	if solve == nil {
		solve = solveBestCost
	}

	var evaluations atomic.Int64
	eval := func(x []float64) float64 {
		evaluations.Add(1)
		cost, err := t.evaluate(ctx, solve, Decode(t.Base, x))
		if err != nil {
			slog.Debug("Candidate evaluation failed", "error", err)
			return math.Inf(1)
		}
		return cost
	}

	lower := make([]float64, dimensions)
	upper := make([]float64, dimensions)
	for i := range upper {
		upper[i] = 1
	}

	best, cost, err := t.Optimizer.Run(eval, lower, upper, dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to tune parameters: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Outcome{
		Params:      Decode(t.Base, best),
		MeanCost:    cost,
		Evaluations: evaluations.Load(),
	}
	slog.Info("Tuning complete",
		"gamma_base", out.Params.GammaBase,
		"shaking_lb", out.Params.ShakingLB,
		"shaking_ub", out.Params.ShakingUB,
		"mean_cost", out.MeanCost,
		"evaluations", out.Evaluations,
	)
	return out, nil
}

func (t *Tuner) evaluate(ctx context.Context, solve SolveFunc, p opt.Params) (float64, error) {
	costs := make([]float64, len(t.Seeds))

	g, gctx := errgroup.WithContext(ctx)
	if t.Parallelism > 0 {
		g.SetLimit(t.Parallelism)
	}
	for i, seed := range t.Seeds {
		g.Go(func() error {
			run := p
			run.Seed = seed
			cost, err := solve(gctx, t.Instance, run)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			costs[i] = cost
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	sum := 0.0
	for _, c := range costs {
		sum += c
	}
	return sum / float64(len(costs)), nil
}

func solveBestCost(ctx context.Context, in *instance.Instance, p opt.Params) (float64, error) {
	res, err := opt.Solve(ctx, in, p, nil)
	if err != nil {
		return 0, err
	}
	return res.Best.Cost(), nil
}

package opt

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cwbudde/filo/internal/anneal"
	"github.com/cwbudde/filo/internal/instance"
	"github.com/cwbudde/filo/internal/localsearch"
	"github.com/cwbudde/filo/internal/movegen"
	"github.com/cwbudde/filo/internal/solution"
)

// Params configures a complete solver run
type Params struct {
	Seed               int64
	Tolerance          float64
	GranularNeighbors  int
	CacheSize          int
	CWLambda           float64
	CWNeighbors        int
	RouteMinIterations int
	CoreIterations     int
	TimeBudget         time.Duration // time-based run when positive
	GammaBase          float64
	Delta              float64
	ShakingLB          float64
	ShakingUB          float64
	Operators          []localsearch.Operator
	ReportEvery        int
}

// DefaultParams returns the default solver parameters
func DefaultParams() Params {
	return Params{
		Seed:               0,
		Tolerance:          0.01,
		GranularNeighbors:  25,
		CacheSize:          50,
		CWLambda:           1.0,
		CWNeighbors:        100,
		RouteMinIterations: 1000,
		CoreIterations:     100000,
		GammaBase:          0.25,
		Delta:              0.5,
		ShakingLB:          0.375,
		ShakingUB:          0.85,
	}
}

// Solve builds an initial solution with the savings heuristic, reduces its routes when it
// uses more than the bin packing estimate, and then runs the adaptive main loop.
func Solve(ctx context.Context, in *instance.Instance, p Params, observer Observer) (*Result, error) {
	start := time.Now()
	slog.Info("Starting solver",
		"instance", in.Name(),
		"customers", in.CustomersNum(),
		"capacity", in.Capacity(),
		"seed", p.Seed,
	)

	rng := rand.New(rand.NewSource(p.Seed))
	moves := movegen.New(in, p.GranularNeighbors)
	descent := localsearch.New(in, moves, rng, p.Tolerance, p.Operators...)

	initial := solution.ClarkeWright(in, cacheSize(in, p), p.CWLambda, p.CWNeighbors)
	slog.Info("Initial solution built",
		"cost", initial.Cost(),
		"routes", initial.RoutesNum(),
		"elapsed", time.Since(start),
	)

	current := initial
	if target := in.RouteCountEstimate(); target < initial.RoutesNum() {
		slog.Info("Running route minimization",
			"routes", initial.RoutesNum(),
			"target_routes", target,
			"iterations", p.RouteMinIterations,
		)
		current = NewRouteMinimizer(in, moves, descent, rng).Run(ctx, initial, target, p.RouteMinIterations)
		slog.Info("Route minimization complete",
			"cost", current.Cost(),
			"routes", current.RoutesNum(),
			"elapsed", time.Since(start),
		)
	}

	res, err := improve(ctx, in, current, p, rng, moves, descent, p.TimeBudget-time.Since(start), observer)
	if res != nil {
		res.InitialCost = initial.Cost()
		res.Elapsed = time.Since(start)
	}
	return res, err
}

// SolveFrom skips construction and continues the main loop from the given routes
func SolveFrom(ctx context.Context, in *instance.Instance, routes [][]int, p Params, observer Observer) (*Result, error) {
	start := time.Now()
	initial, err := solution.FromRoutes(in, routes, cacheSize(in, p))
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild solution: %w", err)
	}
	slog.Info("Resuming from solution",
		"instance", in.Name(),
		"cost", initial.Cost(),
		"routes", initial.RoutesNum(),
		"seed", p.Seed,
	)

	rng := rand.New(rand.NewSource(p.Seed))
	moves := movegen.New(in, p.GranularNeighbors)
	descent := localsearch.New(in, moves, rng, p.Tolerance, p.Operators...)

	res, err := improve(ctx, in, initial, p, rng, moves, descent, p.TimeBudget, observer)
	if res != nil {
		res.Elapsed = time.Since(start)
	}
	return res, err
}

func improve(ctx context.Context, in *instance.Instance, initial *solution.Solution, p Params, rng *rand.Rand,
	moves *movegen.MoveGenerators, descent Descent, remaining time.Duration, observer Observer) (*Result, error) {

	initialTemperature := in.MeanArcCost() / 10.0
	finalTemperature := initialTemperature / 100.0

	budget := Budget{Iterations: p.CoreIterations}
	var sa Annealer
	if p.TimeBudget > 0 {
		budget = Budget{Duration: max(remaining, 0)}
		sa = anneal.NewTimeBased(initialTemperature, finalTemperature, rng, budget.Duration)
	} else {
		sa = anneal.NewIterationBased(initialTemperature, finalTemperature, rng, p.CoreIterations)
	}
	slog.Debug("Simulated annealing schedule",
		"initial_temperature", initialTemperature,
		"final_temperature", finalTemperature,
		"move_generators", moves.NumMoves(),
	)

	controller := NewController(in, moves, descent, sa, rng, ControllerParams{
		GammaBase:   p.GammaBase,
		Delta:       p.Delta,
		ShakingLB:   p.ShakingLB,
		ShakingUB:   p.ShakingUB,
		ReportEvery: p.ReportEvery,
	}, observer)
	return controller.Run(ctx, initial, budget)
}

func cacheSize(in *instance.Instance, p Params) int {
	return min(in.VerticesNum(), p.CacheSize)
}

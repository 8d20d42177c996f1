package opt

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/cwbudde/filo/internal/instance"
	"github.com/cwbudde/filo/internal/solution"
)

// Budget bounds the main loop by iterations or, when Duration is positive, by wall-clock time
type Budget struct {
	Iterations int
	Duration   time.Duration
}

func (b Budget) timeBased() bool { return b.Duration > 0 }

// ControllerParams holds the adaptation parameters of the main loop
type ControllerParams struct {
	GammaBase   float64 // initial active fraction of move generators
	Delta       float64 // scales the non-improving threshold
	ShakingLB   float64 // intensification bound, in mean arc costs
	ShakingUB   float64 // diversification bound, in mean arc costs
	ReportEvery int     // iterations between observer snapshots, improvements are always reported
}

// Result is the outcome of a run
type Result struct {
	Best         *solution.Solution
	InitialCost  float64
	Iterations   int
	Elapsed      time.Duration
	Improvements []Improvement
}

// Controller runs the adaptive ruin-and-recreate loop
type Controller struct {
	in       *instance.Instance
	moves    Sparsifier
	descent  Descent
	sa       Annealer
	rng      *rand.Rand
	ruin     *Ruiner
	params   ControllerParams
	observer Observer
	now      func() time.Time
	progress rate.Sometimes

	omega        []int
	gamma        []float64
	gammaCounter []int
	accessed     Welford
	single       []int
}

// NewController creates a controller. All components must share rng.
func NewController(in *instance.Instance, moves Sparsifier, descent Descent, sa Annealer, rng *rand.Rand, params ControllerParams, observer Observer) *Controller {
	if params.ReportEvery <= 0 {
		params.ReportEvery = 100
	}
	return &Controller{
		in:       in,
		moves:    moves,
		descent:  descent,
		sa:       sa,
		rng:      rng,
		ruin:     NewRuiner(in, rng),
		params:   params,
		observer: observer,
		now:      time.Now,
		progress: rate.Sometimes{Interval: time.Second},
		single:   make([]int, 1),
	}
}

// OmegaBase returns the initial walk length max(1, ceil(ln(vertices)))
func OmegaBase(vertices int) int {
	return max(1, int(math.Ceil(math.Log(float64(vertices)))))
}

// Omega returns the walk length table
func (c *Controller) Omega() []int { return c.omega }

// Gamma returns the sparsification table
func (c *Controller) Gamma() []float64 { return c.gamma }

// Run optimizes from initial until the budget is spent. A cancelled context stops the loop
// at the next iteration; the best solution so far is returned together with the context error.
func (c *Controller) Run(ctx context.Context, initial *solution.Solution, budget Budget) (*Result, error) {
	in := c.in
	n := in.VerticesNum()
	start := c.now()

	current := initial.Clone()
	current.ClearCache()
	best := current.Clone()

	c.gamma = make([]float64, n)
	c.gammaCounter = make([]int, n)
	vertices := make([]int, n)
	for i := range c.gamma {
		c.gamma[i] = c.params.GammaBase
		vertices[i] = i
	}
	c.moves.SetActivePercentage(c.gamma, vertices)

	c.omega = make([]int, n)
	base := OmegaBase(n)
	for i := range c.omega {
		c.omega[i] = base
	}
	c.accessed.Reset()

	lb, ub := c.shakingBounds(current)
	trajectory := NewTrajectory()

	ruined := make([]int, 0, 64)
	cached := make([]int, 0, 64)

	slog.Info("Starting adaptive ruin and recreate",
		"initial_cost", current.Cost(),
		"routes", current.RoutesNum(),
		"iterations", budget.Iterations,
		"time_budget", budget.Duration,
		"omega_base", base,
		"gamma_base", c.params.GammaBase,
	)

	c.report(0, best, current, 0, false)

	var runErr error
	elapsed := time.Duration(0)
	iter := 0
	for ; c.more(iter, elapsed, budget); iter++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		neighbor := current.Clone()
		seed := c.ruin.Apply(neighbor, c.omega)
		ruined = neighbor.Cache().Vertices(ruined[:0])

		c.descent.Apply(neighbor)

		c.accessed.Update(float64(neighbor.Cache().Len()))
		maxNonImproving := c.maxNonImproving(iter, elapsed, budget)

		cached = neighbor.Cache().Vertices(cached[:0])
		improved := neighbor.Cost() < best.Cost()
		if improved {
			best = neighbor.Clone()
			trajectory.Improve(iter, best.Cost(), best.RoutesNum(), c.now().Sub(start))
		} else {
			trajectory.Stale()
		}
		c.updateGamma(improved, cached, maxNonImproving)

		c.updateOmega(seed, ruined, neighbor.Cost(), current.Cost(), lb, ub)

		elapsed = c.now().Sub(start)
		if c.sa.Accept(current.Cost(), neighbor.Cost(), elapsed) {
			current = neighbor
			if !in.RoundCosts() {
				current.RecomputeCost()
			}
			current.ClearCache()
			lb, ub = c.shakingBounds(current)
		}

		c.sa.DecreaseTemperature()

		if improved || (iter+1)%c.params.ReportEvery == 0 {
			c.report(iter+1, best, current, elapsed, improved)
		}
	}

	elapsed = c.now().Sub(start)
	mustBeFeasible(best)
	if best.Missing() != 0 {
		panic("opt: best solution does not serve every customer")
	}

	slog.Info("Adaptive ruin and recreate complete",
		"iterations", iter,
		"best_cost", best.Cost(),
		"best_routes", best.RoutesNum(),
		"elapsed", elapsed,
	)

	return &Result{
		Best:         best,
		InitialCost:  initial.Cost(),
		Iterations:   iter,
		Elapsed:      elapsed,
		Improvements: trajectory.Improvements(),
	}, runErr
}

func (c *Controller) more(iter int, elapsed time.Duration, budget Budget) bool {
	if budget.timeBased() {
		return elapsed < budget.Duration
	}
	return iter < budget.Iterations
}

// maxNonImproving sizes the number of non-improving touches after which a vertex doubles its gamma
func (c *Controller) maxNonImproving(iter int, elapsed time.Duration, budget Budget) int {
	expected := float64(budget.Iterations)
	if budget.timeBased() {
		perSecond := float64(iter+1) / (elapsed.Seconds() + 0.01)
		remaining := math.Max(0, (budget.Duration - elapsed).Seconds())
		expected = float64(iter+1) + perSecond*remaining
	}
	return int(math.Ceil(c.params.Delta * expected * c.accessed.Mean() / float64(c.in.VerticesNum())))
}

// updateGamma resets the sparsification of the cached vertices after an improvement of the
// best solution. Otherwise it counts one more non-improving touch per cached vertex and doubles
// the active fraction of a vertex once its counter reaches maxNonImproving.
func (c *Controller) updateGamma(improved bool, cached []int, maxNonImproving int) {
	if improved {
		for _, v := range cached {
			c.gamma[v] = c.params.GammaBase
			c.gammaCounter[v] = 0
		}
		c.moves.SetActivePercentage(c.gamma, cached)
		return
	}
	for _, v := range cached {
		c.gammaCounter[v]++
		if c.gammaCounter[v] >= maxNonImproving {
			c.gamma[v] = math.Min(c.gamma[v]*2.0, 1.0)
			c.gammaCounter[v] = 0
			c.single[0] = v
			c.moves.SetActivePercentage(c.gamma, c.single)
		}
	}
}

// shakingBounds scales the intensification and diversification bounds by the mean arc cost of s
func (c *Controller) shakingBounds(s *solution.Solution) (lb, ub float64) {
	mean := s.Cost() / (float64(c.in.CustomersNum()) + 2.0*float64(s.RoutesNum()))
	return mean * c.params.ShakingLB, mean * c.params.ShakingUB
}

// updateOmega steers the walk length of the ruined vertices towards the value of the seed.
// Walks that worsened the solution too much get shorter, walks that barely changed it get longer.
func (c *Controller) updateOmega(seed int, ruined []int, neighborCost, currentCost, lb, ub float64) {
	seedValue := c.omega[seed]
	switch {
	case neighborCost > currentCost+ub:
		for _, v := range ruined {
			c.decreaseOmega(v, seedValue)
		}
	case neighborCost >= currentCost && neighborCost < currentCost+lb:
		for _, v := range ruined {
			c.increaseOmega(v, seedValue)
		}
	default:
		for _, v := range ruined {
			if coin(c.rng) {
				c.decreaseOmega(v, seedValue)
			} else {
				c.increaseOmega(v, seedValue)
			}
		}
	}
}

func (c *Controller) decreaseOmega(v, seedValue int) {
	if c.omega[v] > seedValue-1 && c.omega[v] > 1 {
		c.omega[v]--
	}
}

func (c *Controller) increaseOmega(v, seedValue int) {
	if c.omega[v] < seedValue+1 {
		c.omega[v]++
	}
}

func (c *Controller) report(iteration int, best, current *solution.Solution, elapsed time.Duration, improved bool) {
	p := Progress{
		Iteration:   iteration,
		BestCost:    best.Cost(),
		BestRoutes:  best.RoutesNum(),
		CurrentCost: current.Cost(),
		Temperature: c.sa.Temperature(elapsed),
		MeanGamma:   mean(c.gamma),
		MeanOmega:   meanInt(c.omega[1:]),
		Elapsed:     elapsed,
		Improved:    improved,
	}
	if c.observer != nil {
		if bo, ok := c.observer.(BestObserver); ok && (improved || iteration == 0) {
			bo.ObserveBest(best)
		}
		c.observer.Observe(p)
	}
	c.progress.Do(func() {
		slog.Info("Optimization progress",
			"iteration", p.Iteration,
			"best_cost", p.BestCost,
			"routes", p.BestRoutes,
			"current_cost", p.CurrentCost,
			"gamma", p.MeanGamma,
			"omega", p.MeanOmega,
			"temperature", p.Temperature,
		)
	})
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func meanInt(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

package opt

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/cwbudde/filo/internal/instance"
	"github.com/cwbudde/filo/internal/solution"
)

const (
	routeMinStartThreshold = 1.0
	routeMinEndThreshold   = 0.01
)

// RouteMinimizer repeatedly dissolves two neighboring routes and reinserts their customers,
// opening new routes less and less often, to reduce the number of routes.
type RouteMinimizer struct {
	in       *instance.Instance
	moves    Sparsifier
	descent  Descent
	rng      *rand.Rand
	progress rate.Sometimes

	infeasible int
}

// NewRouteMinimizer creates a route minimizer. The descent should be built on moves.
func NewRouteMinimizer(in *instance.Instance, moves Sparsifier, descent Descent, rng *rand.Rand) *RouteMinimizer {
	return &RouteMinimizer{
		in:       in,
		moves:    moves,
		descent:  descent,
		rng:      rng,
		progress: rate.Sometimes{Interval: time.Second},
	}
}

// Run returns the best complete solution found within maxIterations. It never has a higher
// cost or more routes than source. The search stops early once target routes are reached.
// A cancelled context stops the search at the next iteration.
func (m *RouteMinimizer) Run(ctx context.Context, source *solution.Solution, target, maxIterations int) *solution.Solution {
	in := m.in
	target = max(target, 1)

	// every move generator is active during route minimization
	gamma := make([]float64, in.VerticesNum())
	vertices := make([]int, in.VerticesNum())
	for i := range gamma {
		gamma[i] = 1.0
		vertices[i] = i
	}
	m.moves.SetActivePercentage(gamma, vertices)

	best := source.Clone()
	best.ClearCache()
	current := best.Clone()

	threshold := routeMinStartThreshold
	factor := math.Pow(routeMinEndThreshold/routeMinStartThreshold, 1.0/float64(max(1, maxIterations)))

	removed := make([]int, 0, in.CustomersNum())
	stillRemoved := make([]int, 0, in.CustomersNum())
	m.infeasible = 0
	targetReached := best.RoutesNum() <= target

	for iter := 0; iter < maxIterations && !targetReached; iter++ {
		if ctx.Err() != nil {
			break
		}

		seed := randomServedCustomer(current, m.rng)
		selected := []int{current.RouteIndex(seed)}
		for _, v := range in.Neighbors(seed)[1:] {
			if v == instance.Depot || !current.Contains(v) {
				continue
			}
			if r := current.RouteIndex(v); r != selected[0] {
				selected = append(selected, r)
				break
			}
		}

		removed = append(removed[:0], stillRemoved...)
		stillRemoved = stillRemoved[:0]
		for _, r := range selected {
			for c := current.FirstCustomer(r); c != instance.Depot; {
				next := current.Next(c)
				current.RemoveVertex(r, c)
				removed = append(removed, c)
				c = next
			}
			current.RemoveRoute(r)
		}

		if m.rng.Intn(2) == 0 {
			slices.SortStableFunc(removed, func(a, b int) int {
				return cmp.Compare(in.Demand(b), in.Demand(a))
			})
		} else {
			m.rng.Shuffle(len(removed), func(a, b int) {
				removed[a], removed[b] = removed[b], removed[a]
			})
		}

		for _, c := range removed {
			route, where := cheapestInsertion(current, c)
			if route != solution.Dummy {
				current.InsertVertexBefore(route, where, c)
				continue
			}
			if m.rng.Float64() > threshold || current.RoutesNum() < target {
				current.BuildOneCustomerRoute(c)
			} else {
				stillRemoved = append(stillRemoved, c)
			}
		}

		m.descent.Apply(current)
		current.ClearCache()

		if len(stillRemoved) == 0 {
			if adoptable(current, best) {
				best = current.Clone()
				targetReached = best.RoutesNum() <= target
			}
		} else {
			m.infeasible++
		}

		if current.Cost() > best.Cost() {
			current, stillRemoved = revert(best, stillRemoved)
		}

		threshold *= factor
		mustBeFeasible(current)

		m.progress.Do(func() {
			slog.Info("Route minimization progress",
				"iteration", iter+1,
				"of", maxIterations,
				"best_cost", best.Cost(),
				"best_routes", best.RoutesNum(),
				"target_routes", target,
				"infeasible_fraction", float64(m.infeasible)/float64(iter+1),
			)
		})
	}

	mustBeFeasible(best)
	return best
}

// InfeasibleIterations returns how many iterations of the last Run ended with deferred customers
func (m *RouteMinimizer) InfeasibleIterations() int { return m.infeasible }

// revert restarts the search from best. Deferred customers are served by best, so the
// deferred list is emptied.
func revert(best *solution.Solution, deferred []int) (*solution.Solution, []int) {
	return best.Clone(), deferred[:0]
}

// adoptable reports whether a complete trial solution should replace best
func adoptable(trial, best *solution.Solution) bool {
	if trial.RoutesNum() > best.RoutesNum() {
		return false
	}
	return trial.Cost() < best.Cost() || (trial.Cost() == best.Cost() && trial.RoutesNum() < best.RoutesNum())
}

func mustBeFeasible(s *solution.Solution) {
	if err := s.CheckFeasible(); err != nil {
		panic(fmt.Sprintf("opt: infeasible solution: %v", err))
	}
}

package opt

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/filo/internal/localsearch"
	"github.com/cwbudde/filo/internal/movegen"
	"github.com/cwbudde/filo/internal/solution"
)

func singletons(n int) [][]int {
	routes := make([][]int, 0, n)
	for c := 1; c <= n; c++ {
		routes = append(routes, []int{c})
	}
	return routes
}

func TestRouteMinimizerReducesRoutes(t *testing.T) {
	in := collinearInstance(t, 10, 1, 5)
	source, err := solution.FromRoutes(in, singletons(10), 50)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	moves := movegen.New(in, 25)
	descent := localsearch.New(in, moves, rng, 0.01)
	target := in.RouteCountEstimate()
	require.Equal(t, 2, target)

	best := NewRouteMinimizer(in, moves, descent, rng).Run(context.Background(), source, target, 200)

	require.NoError(t, best.CheckFeasible())
	assert.Equal(t, 0, best.Missing())
	assert.LessOrEqual(t, best.Cost(), source.Cost())
	assert.Less(t, best.RoutesNum(), source.RoutesNum())
	assert.GreaterOrEqual(t, best.RoutesNum(), target)

	// the source is left untouched
	assert.Equal(t, 10, source.RoutesNum())
}

func TestRouteMinimizerNeverWorsens(t *testing.T) {
	in := randomInstance(t, 60, 11)
	for seed := int64(0); seed < 5; seed++ {
		source := solution.ClarkeWright(in, 50, 1.0, 100)

		rng := rand.New(rand.NewSource(seed))
		moves := movegen.New(in, 25)
		descent := localsearch.New(in, moves, rng, 0.01)

		best := NewRouteMinimizer(in, moves, descent, rng).Run(context.Background(), source, 1, 100)

		require.NoError(t, best.CheckFeasible())
		assert.Equal(t, 0, best.Missing())
		assert.LessOrEqual(t, best.Cost(), source.Cost())
		assert.LessOrEqual(t, best.RoutesNum(), source.RoutesNum())
	}
}

func TestRouteMinimizerDefersCustomers(t *testing.T) {
	// three full routes and an unreachable target: reinserted customers find no room
	in := collinearInstance(t, 6, 5, 10)
	source, err := solution.FromRoutes(in, [][]int{{1, 2}, {3, 4}, {5, 6}}, 50)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(4))
	moves := movegen.New(in, 25)
	m := NewRouteMinimizer(in, moves, localsearch.New(in, moves, rng, 0.01), rng)
	best := m.Run(context.Background(), source, 1, 100)

	assert.Positive(t, m.InfeasibleIterations())
	require.NoError(t, best.CheckFeasible())
	assert.Equal(t, 0, best.Missing())
	assert.Equal(t, 3, best.RoutesNum())
	assert.LessOrEqual(t, best.Cost(), source.Cost())
}

func TestRevertClearsDeferred(t *testing.T) {
	in := collinearInstance(t, 4, 1, 10)
	best, err := solution.FromRoutes(in, [][]int{{1, 2}, {3, 4}}, 10)
	require.NoError(t, err)

	deferred := []int{3, 4}
	current, deferred := revert(best, deferred)

	assert.Empty(t, deferred)
	assert.Equal(t, 0, current.Missing())
	assert.Equal(t, best.Routes(), current.Routes())
	assert.Equal(t, best.Cost(), current.Cost())
	assert.NotSame(t, best, current)
}

func TestRouteMinimizerTargetAlreadyReached(t *testing.T) {
	in := collinearInstance(t, 4, 1, 10)
	source, err := solution.FromRoutes(in, [][]int{{1, 2, 3, 4}}, 50)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	moves := movegen.New(in, 25)
	sparsifier := &recordingSparsifier{}
	best := NewRouteMinimizer(in, sparsifier, localsearch.New(in, moves, rng, 0.01), rng).
		Run(context.Background(), source, 1, 100)

	assert.Equal(t, source.Routes(), best.Routes())
	assert.Equal(t, source.Cost(), best.Cost())
	require.Len(t, sparsifier.calls, 1)
	assert.Len(t, sparsifier.calls[0], in.VerticesNum())
}

func TestRouteMinimizerCancelled(t *testing.T) {
	in := collinearInstance(t, 10, 1, 5)
	source, err := solution.FromRoutes(in, singletons(10), 50)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rng := rand.New(rand.NewSource(1))
	moves := movegen.New(in, 25)
	best := NewRouteMinimizer(in, moves, localsearch.New(in, moves, rng, 0.01), rng).Run(ctx, source, 2, 100)
	assert.Equal(t, source.Routes(), best.Routes())
}

func TestAdoptable(t *testing.T) {
	in := collinearInstance(t, 4, 1, 10)
	two, err := solution.FromRoutes(in, [][]int{{1, 2}, {3, 4}}, 10)
	require.NoError(t, err)
	one, err := solution.FromRoutes(in, [][]int{{1, 2, 3, 4}}, 10)
	require.NoError(t, err)
	three, err := solution.FromRoutes(in, [][]int{{1}, {2}, {3, 4}}, 10)
	require.NoError(t, err)

	assert.True(t, adoptable(one, two), "cheaper with fewer routes")
	assert.False(t, adoptable(two, one), "more expensive")
	assert.False(t, adoptable(two, two), "equal cost and routes")
	assert.False(t, adoptable(three, two), "more routes")
}

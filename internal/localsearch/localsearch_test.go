package localsearch

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/filo/internal/instance"
	"github.com/cwbudde/filo/internal/movegen"
	"github.com/cwbudde/filo/internal/solution"
)

// lineInstance places n-1 unit-demand customers at x = 1..n-1
func lineInstance(t *testing.T, n, capacity int) *instance.Instance {
	t.Helper()
	xs := make([]float64, n)
	ys := make([]float64, n)
	demands := make([]int, n)
	for i := 1; i < n; i++ {
		xs[i] = float64(i)
		demands[i] = 1
	}
	in, err := instance.New("line", xs, ys, demands, capacity, false, 0)
	require.NoError(t, err)
	return in
}

// crossInstance has two customers left and two right of the depot
func crossInstance(t *testing.T) *instance.Instance {
	t.Helper()
	in, err := instance.New("cross",
		[]float64{0, -1, -1, 1, 1},
		[]float64{0, 1, 2, 1, 2},
		[]int{0, 1, 1, 1, 1},
		2, false, 0)
	require.NoError(t, err)
	return in
}

func build(t *testing.T, in *instance.Instance, routes [][]int) *solution.Solution {
	t.Helper()
	s, err := solution.FromRoutes(in, routes, in.VerticesNum())
	require.NoError(t, err)
	for c := 1; c < in.VerticesNum(); c++ {
		s.Cache().Insert(c)
	}
	return s
}

func newDescent(in *instance.Instance, ops ...Operator) *Descent {
	return New(in, movegen.New(in, in.VerticesNum()), rand.New(rand.NewSource(1)), 0.01, ops...)
}

func TestRelocateMergesRoutes(t *testing.T) {
	in := lineInstance(t, 4, 10)
	s := build(t, in, [][]int{{2}, {1, 3}})

	newDescent(in, Relocate).Apply(s)

	require.NoError(t, s.CheckFeasible())
	assert.Equal(t, 1, s.RoutesNum())
	assert.InDelta(t, 6.0, s.Cost(), 1e-9)
}

func TestTwoOptUntangles(t *testing.T) {
	in := lineInstance(t, 6, 10)
	s := build(t, in, [][]int{{1, 4, 3, 2, 5}})
	require.InDelta(t, 14.0, s.Cost(), 1e-9)

	newDescent(in, TwoOpt).Apply(s)

	require.NoError(t, s.CheckFeasible())
	assert.InDelta(t, 10.0, s.Cost(), 1e-9)
}

func TestTwoOptStarExchangesTails(t *testing.T) {
	in := crossInstance(t)
	s := build(t, in, [][]int{{1, 4}, {3, 2}})

	newDescent(in, TwoOptStar).Apply(s)

	require.NoError(t, s.CheckFeasible())
	assert.InDelta(t, 2*(math.Sqrt2+1+math.Sqrt(5)), s.Cost(), 1e-9)
}

func TestSwapRespectsCapacity(t *testing.T) {
	in := crossInstance(t)
	s := build(t, in, [][]int{{1, 4}, {3, 2}})

	newDescent(in, Swap).Apply(s)

	require.NoError(t, s.CheckFeasible())
	assert.Equal(t, 2, s.RoutesNum())
	assert.InDelta(t, 2*(math.Sqrt2+1+math.Sqrt(5)), s.Cost(), 1e-9)
}

func TestApplyNeverWorsens(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	n := 40
	xs := make([]float64, n)
	ys := make([]float64, n)
	demands := make([]int, n)
	for i := 1; i < n; i++ {
		xs[i] = rng.Float64() * 100
		ys[i] = rng.Float64() * 100
		demands[i] = 1 + rng.Intn(5)
	}
	in, err := instance.New("random", xs, ys, demands, 20, true, 0)
	require.NoError(t, err)

	routes := make([][]int, 0)
	for c := 1; c < n; c += 3 {
		routes = append(routes, []int{c, c + 1, c + 2})
	}
	s := build(t, in, routes)
	before := s.Cost()

	d := New(in, movegen.New(in, 10), rand.New(rand.NewSource(3)), 0.01)
	d.Apply(s)

	require.NoError(t, s.CheckFeasible())
	assert.Equal(t, 0, s.Missing())
	assert.Less(t, s.Cost(), before)
}

func TestApplyIgnoresUncachedVertices(t *testing.T) {
	in := lineInstance(t, 4, 10)
	s, err := solution.FromRoutes(in, [][]int{{2}, {1, 3}}, 10)
	require.NoError(t, err)

	newDescent(in).Apply(s)
	assert.Equal(t, 2, s.RoutesNum())
}

func TestApplyOnPartialSolution(t *testing.T) {
	in := lineInstance(t, 6, 10)
	s := build(t, in, [][]int{{1, 3}, {2, 4, 5}})
	s.RemoveVertex(s.RouteIndex(4), 4)

	newDescent(in).Apply(s)

	require.NoError(t, s.CheckFeasible())
	assert.False(t, s.Contains(4))
	assert.Equal(t, 1, s.Missing())
}

func TestParseOperator(t *testing.T) {
	op, err := ParseOperator("2OPT*")
	require.NoError(t, err)
	assert.Equal(t, TwoOptStar, op)

	_, err = ParseOperator("or-opt")
	assert.Error(t, err)
}

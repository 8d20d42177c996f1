package opt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/filo/internal/instance"
)

// collinearInstance places n unit-spaced customers right of the depot
func collinearInstance(t *testing.T, n, demand, capacity int) *instance.Instance {
	t.Helper()
	xs := make([]float64, n+1)
	ys := make([]float64, n+1)
	demands := make([]int, n+1)
	for i := 1; i <= n; i++ {
		xs[i] = float64(i)
		demands[i] = demand
	}
	in, err := instance.New("collinear", xs, ys, demands, capacity, false, 0)
	require.NoError(t, err)
	return in
}

// randomInstance scatters n customers on a 1000x1000 grid with rounded costs
func randomInstance(t *testing.T, n int, seed int64) *instance.Instance {
	t.Helper()
	return scatteredInstance(t, n, seed, true)
}

// scatteredInstance places n customers at random real coordinates
func scatteredInstance(t *testing.T, n int, seed int64, round bool) *instance.Instance {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	xs := make([]float64, n+1)
	ys := make([]float64, n+1)
	demands := make([]int, n+1)
	xs[0], ys[0] = 500, 500
	for i := 1; i <= n; i++ {
		xs[i] = float64(rng.Intn(1000))
		ys[i] = float64(rng.Intn(1000))
		if !round {
			xs[i] += rng.Float64()
			ys[i] += rng.Float64()
		}
		demands[i] = 1 + rng.Intn(10)
	}
	in, err := instance.New("random", xs, ys, demands, 30, round, 0)
	require.NoError(t, err)
	return in
}

// recordingSparsifier remembers the vertices of every activation call
type recordingSparsifier struct {
	calls [][]int
}

func (r *recordingSparsifier) SetActivePercentage(_ []float64, vertices []int) {
	r.calls = append(r.calls, append([]int(nil), vertices...))
}

func uniform(n, v int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

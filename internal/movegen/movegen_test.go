package movegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/filo/internal/instance"
)

func newLine(t *testing.T, n int) *instance.Instance {
	t.Helper()
	xs := make([]float64, n)
	ys := make([]float64, n)
	demands := make([]int, n)
	for i := 1; i < n; i++ {
		xs[i] = float64(i)
		demands[i] = 1
	}
	in, err := instance.New("line", xs, ys, demands, n, false, 0)
	require.NoError(t, err)
	return in
}

func TestNewAllActive(t *testing.T) {
	in := newLine(t, 10)
	m := New(in, 4)

	assert.Equal(t, []int{4, 6, 3, 7}, m.ActiveNeighbors(5))
	assert.Equal(t, 40, m.NumMoves())
	assert.Equal(t, 40, m.ActiveMoves())
}

func TestSetActivePercentage(t *testing.T) {
	in := newLine(t, 10)
	m := New(in, 4)

	gamma := make([]float64, in.VerticesNum())
	for i := range gamma {
		gamma[i] = 0.25
	}
	m.SetActivePercentage(gamma, []int{5})
	assert.Equal(t, []int{4}, m.ActiveNeighbors(5))
	assert.Equal(t, 37, m.ActiveMoves())

	gamma[5] = 0.5
	m.SetActivePercentage(gamma, []int{5})
	assert.Equal(t, []int{4, 6}, m.ActiveNeighbors(5))

	// prefix grows monotonically with gamma
	gamma[5] = 0.6
	m.SetActivePercentage(gamma, []int{5})
	assert.Equal(t, []int{4, 6, 3}, m.ActiveNeighbors(5))

	gamma[5] = 1.0
	m.SetActivePercentage(gamma, []int{5})
	assert.Len(t, m.ActiveNeighbors(5), 4)
	assert.Equal(t, 40, m.ActiveMoves())
}

// Package movegen holds the granular neighborhood explored by the local search.
// Each vertex owns a list of its k nearest vertices of which only a prefix is active.
package movegen

import (
	"math"

	"github.com/cwbudde/filo/internal/instance"
)

// MoveGenerators is a k-nearest-neighbor move set with a per-vertex active prefix
type MoveGenerators struct {
	neighbors [][]int
	active    []int
	activeSum int
}

// New builds move generators for the k nearest neighbors of every vertex.
// All neighbors start active.
func New(in *instance.Instance, k int) *MoveGenerators {
	n := in.VerticesNum()
	m := &MoveGenerators{
		neighbors: make([][]int, n),
		active:    make([]int, n),
	}
	for i := 0; i < n; i++ {
		list := in.Neighbors(i)[1:]
		if len(list) > k {
			list = list[:k]
		}
		m.neighbors[i] = list
		m.active[i] = len(list)
		m.activeSum += len(list)
	}
	return m
}

// SetActivePercentage activates the first ceil(gamma[v]*k) neighbors of each listed vertex
func (m *MoveGenerators) SetActivePercentage(gamma []float64, vertices []int) {
	for _, v := range vertices {
		total := len(m.neighbors[v])
		count := int(math.Ceil(gamma[v] * float64(total)))
		count = max(0, min(total, count))
		m.activeSum += count - m.active[v]
		m.active[v] = count
	}
}

// ActiveNeighbors returns the active neighbors of v, nearest first.
// The returned slice must not be modified.
func (m *MoveGenerators) ActiveNeighbors(v int) []int {
	return m.neighbors[v][:m.active[v]]
}

// NumMoves returns the total number of move generators
func (m *MoveGenerators) NumMoves() int {
	total := 0
	for _, list := range m.neighbors {
		total += len(list)
	}
	return total
}

// ActiveMoves returns the number of currently active move generators
func (m *MoveGenerators) ActiveMoves() int { return m.activeSum }

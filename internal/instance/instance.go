package instance

import (
	"fmt"
	"math"
	"slices"
)

// Depot is the vertex index of the depot, customers follow it
const Depot = 0

// denseCostLimit is the largest vertex count for which a full cost matrix is kept
const denseCostLimit = 2048

// Instance is an immutable CVRP instance with precomputed neighbor lists
type Instance struct {
	name      string
	xs, ys    []float64
	demands   []int
	capacity  int
	round     bool
	neighbors [][]int
	costs     []float64 // row-major, nil for large instances
}

// New builds an instance from coordinates and demands. The depot must be at index 0.
// Each neighbor list holds the vertex itself followed by its neighborsNum nearest vertices.
func New(name string, xs, ys []float64, demands []int, capacity int, round bool, neighborsNum int) (*Instance, error) {
	n := len(xs)
	if n < 2 {
		return nil, fmt.Errorf("instance needs a depot and at least one customer, got %d vertices", n)
	}
	if len(ys) != n || len(demands) != n {
		return nil, fmt.Errorf("coordinate and demand counts differ: %d xs, %d ys, %d demands", n, len(ys), len(demands))
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("vehicle capacity must be positive, got %d", capacity)
	}
	if demands[Depot] != 0 {
		return nil, fmt.Errorf("depot demand must be zero, got %d", demands[Depot])
	}
	for i := 1; i < n; i++ {
		if demands[i] < 0 || demands[i] > capacity {
			return nil, fmt.Errorf("customer %d demand %d outside [0, %d]", i, demands[i], capacity)
		}
	}
	if neighborsNum <= 0 || neighborsNum > n-1 {
		neighborsNum = n - 1
	}

	in := &Instance{
		name:     name,
		xs:       slices.Clone(xs),
		ys:       slices.Clone(ys),
		demands:  slices.Clone(demands),
		capacity: capacity,
		round:    round,
	}

	if n <= denseCostLimit {
		in.costs = make([]float64, n*n)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				c := in.euclidean(i, j)
				in.costs[i*n+j] = c
				in.costs[j*n+i] = c
			}
		}
	}

	in.buildNeighbors(neighborsNum)
	return in, nil
}

func (in *Instance) buildNeighbors(k int) {
	n := len(in.xs)
	in.neighbors = make([][]int, n)
	candidates := make([]int, 0, n-1)
	dist := make([]float64, n)

	for i := 0; i < n; i++ {
		candidates = candidates[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			dist[j] = in.Cost(i, j)
			candidates = append(candidates, j)
		}
		slices.SortFunc(candidates, func(a, b int) int {
			if dist[a] < dist[b] {
				return -1
			}
			if dist[a] > dist[b] {
				return 1
			}
			return a - b
		})
		list := make([]int, 0, k+1)
		list = append(list, i)
		list = append(list, candidates[:k]...)
		in.neighbors[i] = list
	}
}

func (in *Instance) euclidean(i, j int) float64 {
	dx := in.xs[i] - in.xs[j]
	dy := in.ys[i] - in.ys[j]
	d := math.Sqrt(dx*dx + dy*dy)
	if in.round {
		return math.Round(d)
	}
	return d
}

// Name returns the instance name
func (in *Instance) Name() string { return in.name }

// VerticesNum returns the number of vertices, depot included
func (in *Instance) VerticesNum() int { return len(in.xs) }

// CustomersNum returns the number of customers
func (in *Instance) CustomersNum() int { return len(in.xs) - 1 }

// Capacity returns the vehicle capacity
func (in *Instance) Capacity() int { return in.capacity }

// Demand returns the demand of vertex i
func (in *Instance) Demand(i int) int { return in.demands[i] }

// RoundCosts reports whether arc costs are rounded to integers
func (in *Instance) RoundCosts() bool { return in.round }

// X returns the x coordinate of vertex i
func (in *Instance) X(i int) float64 { return in.xs[i] }

// Y returns the y coordinate of vertex i
func (in *Instance) Y(i int) float64 { return in.ys[i] }

// Cost returns the symmetric arc cost between i and j
func (in *Instance) Cost(i, j int) float64 {
	if in.costs != nil {
		return in.costs[i*len(in.xs)+j]
	}
	if i == j {
		return 0
	}
	return in.euclidean(i, j)
}

// Neighbors returns the neighbor list of i. Index 0 is i itself.
// The returned slice must not be modified.
func (in *Instance) Neighbors(i int) []int { return in.neighbors[i] }

// MeanArcCost returns the mean cost over all unordered vertex pairs
func (in *Instance) MeanArcCost() float64 {
	n := len(in.xs)
	sum := 0.0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			sum += in.Cost(i, j)
		}
	}
	return sum / (float64(n) * float64(n-1) / 2.0)
}

// TotalDemand returns the sum of all customer demands
func (in *Instance) TotalDemand() int {
	total := 0
	for _, d := range in.demands {
		total += d
	}
	return total
}

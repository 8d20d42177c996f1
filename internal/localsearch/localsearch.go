// Package localsearch implements a randomized variable neighborhood descent
// restricted to the recently touched vertices of a solution.
package localsearch

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/cwbudde/filo/internal/instance"
	"github.com/cwbudde/filo/internal/solution"
)

// Operator identifies a neighborhood
type Operator int

const (
	Relocate   Operator = iota // move one customer next to another
	Swap                       // exchange two customers
	TwoOpt                     // reverse a path inside a route
	TwoOptStar                 // exchange the tails of two routes
)

// AllOperators lists every operator in declaration order
var AllOperators = []Operator{Relocate, Swap, TwoOpt, TwoOptStar}

func (o Operator) String() string {
	switch o {
	case Relocate:
		return "relocate"
	case Swap:
		return "swap"
	case TwoOpt:
		return "2opt"
	case TwoOptStar:
		return "2opt*"
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// ParseOperator converts an operator name into an Operator
func ParseOperator(name string) (Operator, error) {
	for _, op := range AllOperators {
		if strings.EqualFold(op.String(), strings.TrimSpace(name)) {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown local search operator %q", name)
}

// Neighborhood provides the granular candidate list of a vertex
type Neighborhood interface {
	ActiveNeighbors(v int) []int
}

// Descent applies the operators in a random order until none improves the solution
type Descent struct {
	in        *instance.Instance
	moves     Neighborhood
	rng       *rand.Rand
	tolerance float64
	order     []Operator
	vertices  []int
	tail      []int
}

// New creates a descent over the given operators, or all of them when none are given.
// A move is improving when it lowers the cost by more than tolerance.
func New(in *instance.Instance, moves Neighborhood, rng *rand.Rand, tolerance float64, operators ...Operator) *Descent {
	if len(operators) == 0 {
		operators = AllOperators
	}
	return &Descent{
		in:        in,
		moves:     moves,
		rng:       rng,
		tolerance: tolerance,
		order:     append([]Operator(nil), operators...),
	}
}

// Apply improves s in place. Only moves around cached customers are examined and
// customers that are not served are skipped, so partial solutions are accepted.
func (d *Descent) Apply(s *solution.Solution) {
	for {
		d.rng.Shuffle(len(d.order), func(a, b int) {
			d.order[a], d.order[b] = d.order[b], d.order[a]
		})
		improved := false
		for _, op := range d.order {
			for d.pass(s, op) {
				improved = true
			}
		}
		if !improved {
			return
		}
	}
}

// pass scans the cached customers once and reports whether a move was applied
func (d *Descent) pass(s *solution.Solution, op Operator) bool {
	d.vertices = s.Cache().Vertices(d.vertices[:0])
	applied := false
	for _, i := range d.vertices {
		for _, j := range d.moves.ActiveNeighbors(i) {
			if j == instance.Depot || !s.Contains(i) || !s.Contains(j) {
				continue
			}
			if d.try(s, op, i, j) {
				applied = true
			}
		}
	}
	return applied
}

func (d *Descent) try(s *solution.Solution, op Operator, i, j int) bool {
	switch op {
	case Relocate:
		return d.relocate(s, i, j)
	case Swap:
		return d.swap(s, i, j)
	case TwoOpt:
		return d.twoOpt(s, i, j)
	case TwoOptStar:
		return d.twoOptStar(s, i, j)
	}
	panic(fmt.Sprintf("localsearch: unknown operator %d", op))
}

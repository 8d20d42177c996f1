package opt

import (
	"cmp"
	"math/rand"
	"slices"

	"github.com/cwbudde/filo/internal/instance"
	"github.com/cwbudde/filo/internal/solution"
)

// Ruiner removes a short walk of nearby customers and reinserts them by cheapest insertion
type Ruiner struct {
	in      *instance.Instance
	rng     *rand.Rand
	removed []int
	touched []int
}

// NewRuiner creates a ruin-and-recreate operator drawing from rng
func NewRuiner(in *instance.Instance, rng *rand.Rand) *Ruiner {
	return &Ruiner{in: in, rng: rng}
}

// Apply ruins and repairs s in place. The walk starts at a random served customer and
// is omega[seed] steps long. It returns the seed. Every walked customer ends up in the cache.
func (r *Ruiner) Apply(s *solution.Solution, omega []int) int {
	in := r.in
	r.removed = r.removed[:0]
	r.touched = r.touched[:0]

	seed := randomServedCustomer(s, r.rng)
	steps := omega[seed]

	curr := seed
	for n := 0; n < steps; n++ {
		route := s.RouteIndex(curr)
		r.removed = append(r.removed, curr)
		if !slices.Contains(r.touched, route) {
			r.touched = append(r.touched, route)
		}

		next := solution.Dummy
		if s.RouteSize(route) > 1 && coin(r.rng) {
			if coin(r.rng) {
				next = s.Next(curr)
				if next == instance.Depot {
					next = s.NextInRoute(route, next)
				}
			} else {
				next = s.Prev(curr)
				if next == instance.Depot {
					next = s.PrevInRoute(route, next)
				}
			}
		} else {
			skipTouched := coin(r.rng)
			for _, v := range in.Neighbors(curr)[1:] {
				if v == instance.Depot || !s.Contains(v) {
					continue
				}
				if skipTouched && slices.Contains(r.touched, s.RouteIndex(v)) {
					continue
				}
				next = v
				break
			}
		}

		s.RemoveVertex(route, curr)
		if s.IsRouteEmpty(route) {
			s.RemoveRoute(route)
		}
		if next == solution.Dummy {
			break
		}
		curr = next
	}

	r.reorder()

	for _, c := range r.removed {
		route, where := cheapestInsertion(s, c)
		if route == solution.Dummy {
			s.BuildOneCustomerRoute(c)
		} else {
			s.InsertVertexBefore(route, where, c)
		}
	}
	return seed
}

func (r *Ruiner) reorder() {
	in := r.in
	switch r.rng.Intn(4) {
	case 0:
		r.rng.Shuffle(len(r.removed), func(a, b int) {
			r.removed[a], r.removed[b] = r.removed[b], r.removed[a]
		})
	case 1:
		slices.SortStableFunc(r.removed, func(a, b int) int {
			return cmp.Compare(in.Demand(b), in.Demand(a))
		})
	case 2:
		slices.SortStableFunc(r.removed, func(a, b int) int {
			return cmp.Compare(in.Cost(b, instance.Depot), in.Cost(a, instance.Depot))
		})
	case 3:
		slices.SortStableFunc(r.removed, func(a, b int) int {
			return cmp.Compare(in.Cost(a, instance.Depot), in.Cost(b, instance.Depot))
		})
	}
}

package opt

import (
	"math"
	"math/rand"

	"github.com/cwbudde/filo/internal/instance"
	"github.com/cwbudde/filo/internal/solution"
)

// cheapestInsertion finds the cheapest feasible position for c. It returns the route and
// the vertex c should precede (the depot for the tail position), or Dummy when no route has room.
func cheapestInsertion(s *solution.Solution, c int) (route, where int) {
	in := s.Instance()
	demand := in.Demand(c)
	route, where = solution.Dummy, solution.Dummy
	best := math.MaxFloat64

	for r := s.FirstRoute(); r != solution.Dummy; r = s.NextRoute(r) {
		if s.RouteLoad(r)+demand > in.Capacity() {
			continue
		}
		for w := s.FirstCustomer(r); w != instance.Depot; w = s.Next(w) {
			prev := s.Prev(w)
			delta := in.Cost(prev, c) + in.Cost(c, w) - in.Cost(prev, w)
			if delta < best {
				best, route, where = delta, r, w
			}
		}
		last := s.LastCustomer(r)
		delta := in.Cost(last, c) + in.Cost(c, instance.Depot) - in.Cost(last, instance.Depot)
		if delta < best {
			best, route, where = delta, r, instance.Depot
		}
	}
	return route, where
}

// randomServedCustomer draws customers uniformly until one is served by s
func randomServedCustomer(s *solution.Solution, rng *rand.Rand) int {
	if s.RoutesNum() == 0 {
		panic("opt: solution serves no customer")
	}
	customers := s.Instance().CustomersNum()
	for {
		c := 1 + rng.Intn(customers)
		if s.Contains(c) {
			return c
		}
	}
}

func coin(rng *rand.Rand) bool {
	return rng.Intn(2) == 1
}

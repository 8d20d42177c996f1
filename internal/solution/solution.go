package solution

import (
	"fmt"
	"math"
	"slices"

	"github.com/cwbudde/filo/internal/instance"
)

// Dummy marks a missing vertex or route
const Dummy = -1

// Solution stores routes as doubly linked lists of customers that share the depot.
// Every mutation keeps the cost up to date and records the touched customers in the cache.
type Solution struct {
	in   *instance.Instance
	cost float64

	// per vertex, Dummy when the customer is not served
	vprev, vnext, vroute []int

	// per route slot; first and last are the depot when the route is empty
	rfirst, rlast, rload, rsize []int
	rprev, rnext                []int

	head, tail int // active route list
	routesNum  int
	free       []int

	cache *Cache
}

// New creates an empty solution with no routes
func New(in *instance.Instance, cacheSize int) *Solution {
	n := in.VerticesNum()
	s := &Solution{
		in:     in,
		vprev:  filled(n, Dummy),
		vnext:  filled(n, Dummy),
		vroute: filled(n, Dummy),
		rfirst: filled(n, instance.Depot),
		rlast:  filled(n, instance.Depot),
		rload:  make([]int, n),
		rsize:  make([]int, n),
		rprev:  filled(n, Dummy),
		rnext:  filled(n, Dummy),
		head:   Dummy,
		tail:   Dummy,
		free:   make([]int, 0, n),
		cache:  NewCache(n, cacheSize),
	}
	for r := n - 1; r >= 0; r-- {
		s.free = append(s.free, r)
	}
	return s
}

func filled(n, v int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Instance returns the instance this solution belongs to
func (s *Solution) Instance() *instance.Instance { return s.in }

// Cost returns the total route cost
func (s *Solution) Cost() float64 { return s.cost }

// RoutesNum returns the number of routes
func (s *Solution) RoutesNum() int { return s.routesNum }

// FirstRoute returns the first route in iteration order, or Dummy
func (s *Solution) FirstRoute() int { return s.head }

// NextRoute returns the route after r, or Dummy
func (s *Solution) NextRoute(r int) int { return s.rnext[r] }

// FirstCustomer returns the first customer of r, or the depot if r is empty
func (s *Solution) FirstCustomer(r int) int { return s.rfirst[r] }

// LastCustomer returns the last customer of r, or the depot if r is empty
func (s *Solution) LastCustomer(r int) int { return s.rlast[r] }

// RouteLoad returns the summed demand of r
func (s *Solution) RouteLoad(r int) int { return s.rload[r] }

// RouteSize returns the number of customers in r
func (s *Solution) RouteSize(r int) int { return s.rsize[r] }

// IsRouteEmpty reports whether r serves no customer
func (s *Solution) IsRouteEmpty(r int) bool { return s.rsize[r] == 0 }

// Contains reports whether customer c is served by some route
func (s *Solution) Contains(c int) bool { return s.vroute[c] != Dummy }

// RouteIndex returns the route serving c, or Dummy
func (s *Solution) RouteIndex(c int) int { return s.vroute[c] }

// Next returns the vertex after customer c; the depot if c is last
func (s *Solution) Next(c int) int { return s.vnext[c] }

// Prev returns the vertex before customer c; the depot if c is first
func (s *Solution) Prev(c int) int { return s.vprev[c] }

// NextInRoute is Next extended to the depot of route r
func (s *Solution) NextInRoute(r, v int) int {
	if v == instance.Depot {
		return s.rfirst[r]
	}
	return s.vnext[v]
}

// PrevInRoute is Prev extended to the depot of route r
func (s *Solution) PrevInRoute(r, v int) int {
	if v == instance.Depot {
		return s.rlast[r]
	}
	return s.vprev[v]
}

// Cache returns the recency cache of touched customers
func (s *Solution) Cache() *Cache { return s.cache }

// ClearCache forgets all touched customers
func (s *Solution) ClearCache() { s.cache.Clear() }

func (s *Solution) touch(v int) {
	if v != instance.Depot {
		s.cache.Insert(v)
	}
}

// RemoveVertex detaches customer c from route r. An emptied route is kept until RemoveRoute.
func (s *Solution) RemoveVertex(r, c int) {
	if s.vroute[c] != r {
		panic(fmt.Sprintf("solution: customer %d is not in route %d", c, r))
	}
	prev, next := s.vprev[c], s.vnext[c]
	s.cost += s.in.Cost(prev, next) - s.in.Cost(prev, c) - s.in.Cost(c, next)

	if prev == instance.Depot {
		s.rfirst[r] = next
	} else {
		s.vnext[prev] = next
	}
	if next == instance.Depot {
		s.rlast[r] = prev
	} else {
		s.vprev[next] = prev
	}

	s.vprev[c], s.vnext[c], s.vroute[c] = Dummy, Dummy, Dummy
	s.rload[r] -= s.in.Demand(c)
	s.rsize[r]--

	s.touch(c)
	s.touch(prev)
	s.touch(next)
}

// InsertVertexBefore places customer c right before where in route r.
// Passing the depot as where appends c at the end of the route.
func (s *Solution) InsertVertexBefore(r, where, c int) {
	if s.vroute[c] != Dummy {
		panic(fmt.Sprintf("solution: customer %d is already in route %d", c, s.vroute[c]))
	}
	prev := s.PrevInRoute(r, where)
	s.cost += s.in.Cost(prev, c) + s.in.Cost(c, where) - s.in.Cost(prev, where)

	s.vprev[c], s.vnext[c], s.vroute[c] = prev, where, r
	if prev == instance.Depot {
		s.rfirst[r] = c
	} else {
		s.vnext[prev] = c
	}
	if where == instance.Depot {
		s.rlast[r] = c
	} else {
		s.vprev[where] = c
	}

	s.rload[r] += s.in.Demand(c)
	s.rsize[r]++

	s.touch(c)
	s.touch(prev)
	s.touch(where)
}

// BuildOneCustomerRoute opens a new route serving only c and returns its index
func (s *Solution) BuildOneCustomerRoute(c int) int {
	r := s.openRoute()
	s.InsertVertexBefore(r, instance.Depot, c)
	return r
}

func (s *Solution) openRoute() int {
	if len(s.free) == 0 {
		panic("solution: no free route slot")
	}
	r := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]

	s.rfirst[r], s.rlast[r] = instance.Depot, instance.Depot
	s.rload[r], s.rsize[r] = 0, 0
	s.rprev[r], s.rnext[r] = s.tail, Dummy
	if s.tail == Dummy {
		s.head = r
	} else {
		s.rnext[s.tail] = r
	}
	s.tail = r
	s.routesNum++
	return r
}

// RemoveRoute deletes an empty route
func (s *Solution) RemoveRoute(r int) {
	if s.rsize[r] != 0 {
		panic(fmt.Sprintf("solution: route %d still serves %d customers", r, s.rsize[r]))
	}
	p, n := s.rprev[r], s.rnext[r]
	if p == Dummy {
		s.head = n
	} else {
		s.rnext[p] = n
	}
	if n == Dummy {
		s.tail = p
	} else {
		s.rprev[n] = p
	}
	s.rprev[r], s.rnext[r] = Dummy, Dummy
	s.free = append(s.free, r)
	s.routesNum--
}

// ReverseSegment reverses the path from..to of route r, where from precedes to
func (s *Solution) ReverseSegment(r, from, to int) {
	if from == to {
		return
	}
	before, after := s.vprev[from], s.vnext[to]

	segment := make([]int, 0, 8)
	for v := from; ; v = s.vnext[v] {
		if v == instance.Depot {
			panic(fmt.Sprintf("solution: %d does not precede %d in route %d", from, to, r))
		}
		segment = append(segment, v)
		if v == to {
			break
		}
	}
	slices.Reverse(segment)

	s.cost += s.in.Cost(before, to) + s.in.Cost(from, after) - s.in.Cost(before, from) - s.in.Cost(to, after)

	last := len(segment) - 1
	for k, v := range segment {
		if k == 0 {
			s.vprev[v] = before
		} else {
			s.vprev[v] = segment[k-1]
		}
		if k == last {
			s.vnext[v] = after
		} else {
			s.vnext[v] = segment[k+1]
		}
	}
	if before == instance.Depot {
		s.rfirst[r] = to
	} else {
		s.vnext[before] = to
	}
	if after == instance.Depot {
		s.rlast[r] = from
	} else {
		s.vprev[after] = from
	}

	s.touch(from)
	s.touch(to)
	s.touch(before)
	s.touch(after)
}

// RecomputeCost recomputes the cost from scratch, discarding accumulated rounding error
func (s *Solution) RecomputeCost() {
	s.cost = 0
	for r := s.head; r != Dummy; r = s.rnext[r] {
		s.cost += s.RouteCost(r)
	}
}

// RouteCost returns the cost of route r computed from its arcs
func (s *Solution) RouteCost(r int) float64 {
	if s.rsize[r] == 0 {
		return 0
	}
	cost := s.in.Cost(instance.Depot, s.rfirst[r])
	for c := s.rfirst[r]; c != instance.Depot; c = s.vnext[c] {
		cost += s.in.Cost(c, s.vnext[c])
	}
	return cost
}

// Missing returns the number of customers not served by any route
func (s *Solution) Missing() int {
	missing := 0
	for c := 1; c < s.in.VerticesNum(); c++ {
		if s.vroute[c] == Dummy {
			missing++
		}
	}
	return missing
}

// CheckFeasible verifies the route structure and the capacity constraint.
// Customers that are not served are allowed.
func (s *Solution) CheckFeasible() error {
	n := s.in.VerticesNum()
	seen := make([]bool, n)
	routes := 0

	for r := s.head; r != Dummy; r = s.rnext[r] {
		routes++
		if routes > n {
			return fmt.Errorf("route list is cyclic")
		}
		load, size, prev := 0, 0, instance.Depot
		for c := s.rfirst[r]; c != instance.Depot; c = s.vnext[c] {
			if c < 0 || c >= n {
				return fmt.Errorf("route %d links to invalid vertex %d", r, c)
			}
			if seen[c] {
				return fmt.Errorf("customer %d visited twice", c)
			}
			seen[c] = true
			if s.vroute[c] != r {
				return fmt.Errorf("customer %d in route %d maps to route %d", c, r, s.vroute[c])
			}
			if s.vprev[c] != prev {
				return fmt.Errorf("customer %d has prev %d, expected %d", c, s.vprev[c], prev)
			}
			load += s.in.Demand(c)
			size++
			prev = c
		}
		if s.rlast[r] != prev {
			return fmt.Errorf("route %d ends at %d, expected %d", r, s.rlast[r], prev)
		}
		if size != s.rsize[r] || load != s.rload[r] {
			return fmt.Errorf("route %d stores size %d load %d, actual %d and %d", r, s.rsize[r], s.rload[r], size, load)
		}
		if load > s.in.Capacity() {
			return fmt.Errorf("route %d load %d exceeds capacity %d", r, load, s.in.Capacity())
		}
	}
	if routes != s.routesNum {
		return fmt.Errorf("route count %d, expected %d", routes, s.routesNum)
	}
	for c := 1; c < n; c++ {
		if !seen[c] && s.vroute[c] != Dummy {
			return fmt.Errorf("customer %d maps to route %d but is not linked", c, s.vroute[c])
		}
	}

	actual := 0.0
	for r := s.head; r != Dummy; r = s.rnext[r] {
		actual += s.RouteCost(r)
	}
	if math.Abs(actual-s.cost) > 1e-6*math.Max(1, math.Abs(actual)) {
		return fmt.Errorf("stored cost %f differs from actual cost %f", s.cost, actual)
	}
	return nil
}

// Clone returns a deep copy
func (s *Solution) Clone() *Solution {
	return &Solution{
		in:        s.in,
		cost:      s.cost,
		vprev:     slices.Clone(s.vprev),
		vnext:     slices.Clone(s.vnext),
		vroute:    slices.Clone(s.vroute),
		rfirst:    slices.Clone(s.rfirst),
		rlast:     slices.Clone(s.rlast),
		rload:     slices.Clone(s.rload),
		rsize:     slices.Clone(s.rsize),
		rprev:     slices.Clone(s.rprev),
		rnext:     slices.Clone(s.rnext),
		head:      s.head,
		tail:      s.tail,
		routesNum: s.routesNum,
		free:      slices.Clone(s.free),
		cache:     s.cache.clone(),
	}
}

// Routes returns the customer sequences of all routes in iteration order
func (s *Solution) Routes() [][]int {
	routes := make([][]int, 0, s.routesNum)
	for r := s.head; r != Dummy; r = s.rnext[r] {
		route := make([]int, 0, s.rsize[r])
		for c := s.rfirst[r]; c != instance.Depot; c = s.vnext[c] {
			route = append(route, c)
		}
		routes = append(routes, route)
	}
	return routes
}

// FromRoutes builds a solution serving exactly the given routes. Every customer must appear once.
func FromRoutes(in *instance.Instance, routes [][]int, cacheSize int) (*Solution, error) {
	s := New(in, cacheSize)
	n := in.VerticesNum()
	for k, route := range routes {
		if len(route) == 0 {
			return nil, fmt.Errorf("route %d is empty", k+1)
		}
		r := Dummy
		for _, c := range route {
			if c <= instance.Depot || c >= n {
				return nil, fmt.Errorf("route %d: invalid customer %d", k+1, c)
			}
			if s.Contains(c) {
				return nil, fmt.Errorf("route %d: customer %d served twice", k+1, c)
			}
			if r == Dummy {
				r = s.BuildOneCustomerRoute(c)
			} else {
				s.InsertVertexBefore(r, instance.Depot, c)
			}
		}
		if s.rload[r] > in.Capacity() {
			return nil, fmt.Errorf("route %d: load %d exceeds capacity %d", k+1, s.rload[r], in.Capacity())
		}
	}
	if missing := s.Missing(); missing > 0 {
		return nil, fmt.Errorf("%d customers are not served", missing)
	}
	s.ClearCache()
	return s, nil
}

package localsearch

import (
	"github.com/cwbudde/filo/internal/instance"
	"github.com/cwbudde/filo/internal/solution"
)

// relocate moves i right before or right after j
func (d *Descent) relocate(s *solution.Solution, i, j int) bool {
	in := d.in
	ri, rj := s.RouteIndex(i), s.RouteIndex(j)
	if ri != rj && s.RouteLoad(rj)+in.Demand(i) > in.Capacity() {
		return false
	}

	pi, ni := s.Prev(i), s.Next(i)
	pj, nj := s.Prev(j), s.Next(j)
	removal := in.Cost(pi, ni) - in.Cost(pi, i) - in.Cost(i, ni)

	best, where := -d.tolerance, solution.Dummy
	if pj != i {
		if delta := removal + in.Cost(pj, i) + in.Cost(i, j) - in.Cost(pj, j); delta < best {
			best, where = delta, j
		}
	}
	if nj != i {
		if delta := removal + in.Cost(j, i) + in.Cost(i, nj) - in.Cost(j, nj); delta < best {
			best, where = delta, nj
		}
	}
	if where == solution.Dummy {
		return false
	}

	s.RemoveVertex(ri, i)
	s.InsertVertexBefore(rj, where, i)
	if s.IsRouteEmpty(ri) {
		s.RemoveRoute(ri)
	}
	return true
}

// swap exchanges the positions of two non-adjacent customers
func (d *Descent) swap(s *solution.Solution, i, j int) bool {
	in := d.in
	ri, rj := s.RouteIndex(i), s.RouteIndex(j)
	pi, ni := s.Prev(i), s.Next(i)
	pj, nj := s.Prev(j), s.Next(j)
	if ni == j || nj == i {
		return false
	}
	if ri != rj {
		if s.RouteLoad(ri)-in.Demand(i)+in.Demand(j) > in.Capacity() ||
			s.RouteLoad(rj)-in.Demand(j)+in.Demand(i) > in.Capacity() {
			return false
		}
	}

	delta := in.Cost(pi, j) + in.Cost(j, ni) - in.Cost(pi, i) - in.Cost(i, ni) +
		in.Cost(pj, i) + in.Cost(i, nj) - in.Cost(pj, j) - in.Cost(j, nj)
	if delta >= -d.tolerance {
		return false
	}

	s.RemoveVertex(ri, i)
	s.RemoveVertex(rj, j)
	s.InsertVertexBefore(ri, ni, j)
	s.InsertVertexBefore(rj, nj, i)
	return true
}

// twoOpt replaces arcs (i, next i) and (j, next j) of one route with (i, j) and (next i, next j)
func (d *Descent) twoOpt(s *solution.Solution, i, j int) bool {
	in := d.in
	r := s.RouteIndex(i)
	if s.RouteIndex(j) != r {
		return false
	}
	ni, nj := s.Next(i), s.Next(j)
	if ni == j || nj == i {
		return false
	}

	delta := in.Cost(i, j) + in.Cost(ni, nj) - in.Cost(i, ni) - in.Cost(j, nj)
	if delta >= -d.tolerance {
		return false
	}

	if precedes(s, i, j) {
		s.ReverseSegment(r, ni, j)
	} else {
		s.ReverseSegment(r, nj, i)
	}
	return true
}

// twoOptStar swaps the tails following i and j between their routes
func (d *Descent) twoOptStar(s *solution.Solution, i, j int) bool {
	in := d.in
	ri, rj := s.RouteIndex(i), s.RouteIndex(j)
	if ri == rj {
		return false
	}
	ni, nj := s.Next(i), s.Next(j)

	delta := in.Cost(i, nj) + in.Cost(j, ni) - in.Cost(i, ni) - in.Cost(j, nj)
	if delta >= -d.tolerance {
		return false
	}

	headI, headJ := headLoad(s, ri, i), headLoad(s, rj, j)
	if headI+s.RouteLoad(rj)-headJ > in.Capacity() || headJ+s.RouteLoad(ri)-headI > in.Capacity() {
		return false
	}

	d.tail = d.tail[:0]
	for c := ni; c != instance.Depot; c = s.Next(c) {
		d.tail = append(d.tail, c)
	}
	split := len(d.tail)
	for c := nj; c != instance.Depot; c = s.Next(c) {
		d.tail = append(d.tail, c)
	}

	for _, c := range d.tail[:split] {
		s.RemoveVertex(ri, c)
	}
	for _, c := range d.tail[split:] {
		s.RemoveVertex(rj, c)
	}
	for _, c := range d.tail[split:] {
		s.InsertVertexBefore(ri, instance.Depot, c)
	}
	for _, c := range d.tail[:split] {
		s.InsertVertexBefore(rj, instance.Depot, c)
	}
	return true
}

// precedes reports whether a comes before b in their common route
func precedes(s *solution.Solution, a, b int) bool {
	for c := s.Next(a); c != instance.Depot; c = s.Next(c) {
		if c == b {
			return true
		}
	}
	return false
}

// headLoad returns the load of route r from its start up to and including c
func headLoad(s *solution.Solution, r, c int) int {
	in := s.Instance()
	load := 0
	for v := s.FirstCustomer(r); ; v = s.Next(v) {
		load += in.Demand(v)
		if v == c {
			return load
		}
	}
}

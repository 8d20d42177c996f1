package solution

import (
	"cmp"
	"slices"

	"github.com/cwbudde/filo/internal/instance"
)

type saving struct {
	i, j  int
	value float64
}

// ClarkeWright builds a solution with the savings heuristic. Savings are
// cost(0,i) + cost(0,j) - lambda*cost(i,j) over the first neighborsNum neighbors of each customer.
func ClarkeWright(in *instance.Instance, cacheSize int, lambda float64, neighborsNum int) *Solution {
	n := in.VerticesNum()

	savings := make([]saving, 0, n*min(neighborsNum, n))
	for i := 1; i < n; i++ {
		neighbors := in.Neighbors(i)
		limit := min(len(neighbors), neighborsNum+1)
		for _, j := range neighbors[1:limit] {
			if j == instance.Depot {
				continue
			}
			a, b := min(i, j), max(i, j)
			value := in.Cost(instance.Depot, a) + in.Cost(instance.Depot, b) - lambda*in.Cost(a, b)
			if value > 0 {
				savings = append(savings, saving{i: a, j: b, value: value})
			}
		}
	}
	slices.SortFunc(savings, func(x, y saving) int {
		if c := cmp.Compare(y.value, x.value); c != 0 {
			return c
		}
		if c := cmp.Compare(x.i, y.i); c != 0 {
			return c
		}
		return cmp.Compare(x.j, y.j)
	})
	savings = slices.CompactFunc(savings, func(x, y saving) bool { return x.i == y.i && x.j == y.j })

	// each customer starts on its own route, identified by that customer
	members := make([][]int, n)
	loads := make([]int, n)
	owner := make([]int, n)
	for c := 1; c < n; c++ {
		members[c] = []int{c}
		loads[c] = in.Demand(c)
		owner[c] = c
	}

	for _, sv := range savings {
		ri, rj := owner[sv.i], owner[sv.j]
		if ri == rj || loads[ri]+loads[rj] > in.Capacity() {
			continue
		}
		if !isEndpoint(members[ri], sv.i) || !isEndpoint(members[rj], sv.j) {
			continue
		}
		// orient as ... i | j ...
		if members[ri][len(members[ri])-1] != sv.i {
			slices.Reverse(members[ri])
		}
		if members[rj][0] != sv.j {
			slices.Reverse(members[rj])
		}
		for _, c := range members[rj] {
			owner[c] = ri
		}
		members[ri] = append(members[ri], members[rj]...)
		loads[ri] += loads[rj]
		members[rj], loads[rj] = nil, 0
	}

	routes := make([][]int, 0)
	for c := 1; c < n; c++ {
		if len(members[c]) > 0 {
			routes = append(routes, members[c])
		}
	}

	s, err := FromRoutes(in, routes, cacheSize)
	if err != nil {
		panic("solution: savings construction produced an invalid solution: " + err.Error())
	}
	return s
}

func isEndpoint(route []int, c int) bool {
	return route[0] == c || route[len(route)-1] == c
}

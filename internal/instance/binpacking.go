package instance

import "slices"

// RouteCountEstimate packs customer demands into vehicles with greedy first-fit
// decreasing and returns the number of vehicles used. The route minimizer uses it
// as its target route count.
func (in *Instance) RouteCountEstimate() int {
	customers := make([]int, 0, in.CustomersNum())
	for i := 1; i < in.VerticesNum(); i++ {
		customers = append(customers, i)
	}
	slices.SortStableFunc(customers, func(a, b int) int {
		return in.demands[b] - in.demands[a]
	})

	loads := make([]int, 0, len(customers))
	for _, c := range customers {
		placed := false
		for p := range loads {
			if loads[p]+in.demands[c] <= in.capacity {
				loads[p] += in.demands[c]
				placed = true
				break
			}
		}
		if !placed {
			loads = append(loads, in.demands[c])
		}
	}
	return len(loads)
}

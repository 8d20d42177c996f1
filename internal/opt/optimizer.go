package opt

import (
	"time"

	"github.com/cwbudde/filo/internal/solution"
)

// Descent improves a solution in place around its cached vertices
type Descent interface {
	Apply(s *solution.Solution)
}

// Sparsifier controls the active part of the granular neighborhood
type Sparsifier interface {
	// SetActivePercentage activates a gamma[v] fraction of the move generators of each listed vertex
	SetActivePercentage(gamma []float64, vertices []int)
}

// Annealer decides whether a candidate replaces the current solution
type Annealer interface {
	Accept(current, candidate float64, elapsed time.Duration) bool
	DecreaseTemperature()
	Temperature(elapsed time.Duration) float64
}

// Progress is a snapshot of the main loop
type Progress struct {
	Iteration   int           `json:"iteration"`
	BestCost    float64       `json:"best_cost"`
	BestRoutes  int           `json:"best_routes"`
	CurrentCost float64       `json:"current_cost"`
	Temperature float64       `json:"temperature"`
	MeanGamma   float64       `json:"mean_gamma"`
	MeanOmega   float64       `json:"mean_omega"`
	Elapsed     time.Duration `json:"elapsed"`
	Improved    bool          `json:"improved"`
}

// Observer receives progress snapshots. It must not retain solution state.
type Observer interface {
	Observe(p Progress)
}

// BestObserver is implemented by observers that also need every new best solution.
// The solution is only valid during the call and must not be modified.
type BestObserver interface {
	ObserveBest(best *solution.Solution)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(p Progress)

// Observe calls f(p)
func (f ObserverFunc) Observe(p Progress) { f(p) }

// Observers fans a snapshot out to several observers
type Observers []Observer

// Observe forwards p to every non-nil observer
func (o Observers) Observe(p Progress) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(p)
		}
	}
}

// ObserveBest forwards best to every observer implementing BestObserver
func (o Observers) ObserveBest(best *solution.Solution) {
	for _, obs := range o {
		if bo, ok := obs.(BestObserver); ok {
			bo.ObserveBest(best)
		}
	}
}

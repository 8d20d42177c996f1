package opt

import (
	"log/slog"
	"time"
)

// Improvement records a new best solution
type Improvement struct {
	Iteration int           `json:"iteration"`
	Cost      float64       `json:"cost"`
	Routes    int           `json:"routes"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Trajectory tracks best-cost improvements and the length of the current stagnation
type Trajectory struct {
	improvements []Improvement
	staleCount   int
	staleLogAt   int // next stale count that is logged
}

// NewTrajectory creates an empty trajectory
func NewTrajectory() *Trajectory {
	return &Trajectory{staleLogAt: 10000}
}

// Improve records a new best solution and resets the stagnation counter
func (t *Trajectory) Improve(iteration int, cost float64, routes int, elapsed time.Duration) {
	t.improvements = append(t.improvements, Improvement{
		Iteration: iteration,
		Cost:      cost,
		Routes:    routes,
		Elapsed:   elapsed,
	})
	t.staleCount = 0
	t.staleLogAt = 10000
	slog.Debug("New best solution",
		"iteration", iteration,
		"cost", cost,
		"routes", routes,
	)
}

// Stale counts an iteration without improvement
func (t *Trajectory) Stale() {
	t.staleCount++
	if t.staleCount >= t.staleLogAt {
		slog.Debug("No improvement of the best solution",
			"stale_iterations", t.staleCount,
		)
		t.staleLogAt *= 2
	}
}

// StaleCount returns the number of iterations since the last improvement
func (t *Trajectory) StaleCount() int { return t.staleCount }

// Improvements returns a copy of the recorded improvements
func (t *Trajectory) Improvements() []Improvement {
	return append([]Improvement{}, t.improvements...)
}

// LastImprovement returns the most recent improvement, if any
func (t *Trajectory) LastImprovement() (Improvement, bool) {
	if len(t.improvements) == 0 {
		return Improvement{}, false
	}
	return t.improvements[len(t.improvements)-1], true
}

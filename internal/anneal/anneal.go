// Package anneal implements the simulated annealing acceptance criterion.
package anneal

import (
	"math"
	"math/rand"
	"time"
)

// accept draws U in (0,1] and accepts when candidate < current - T*ln(U)
func accept(rng *rand.Rand, temperature, current, candidate float64) bool {
	u := 1.0 - rng.Float64()
	return candidate < current-temperature*math.Log(u)
}

// IterationBased cools geometrically from the initial to the final temperature over a fixed number of iterations
type IterationBased struct {
	rng         *rand.Rand
	initial     float64
	final       float64
	temperature float64
	factor      float64
}

// NewIterationBased creates an annealer reaching final after the given number of DecreaseTemperature calls
func NewIterationBased(initial, final float64, rng *rand.Rand, iterations int) *IterationBased {
	factor := 1.0
	if iterations > 0 && initial > 0 {
		factor = math.Pow(final/initial, 1.0/float64(iterations))
	}
	return &IterationBased{
		rng:         rng,
		initial:     initial,
		final:       final,
		temperature: initial,
		factor:      factor,
	}
}

// Accept reports whether candidate replaces current. The elapsed time is ignored.
func (sa *IterationBased) Accept(current, candidate float64, _ time.Duration) bool {
	return accept(sa.rng, sa.temperature, current, candidate)
}

// DecreaseTemperature applies one cooling step
func (sa *IterationBased) DecreaseTemperature() {
	sa.temperature *= sa.factor
}

// Temperature returns the current temperature
func (sa *IterationBased) Temperature(_ time.Duration) float64 {
	return sa.temperature
}

// TimeBased cools geometrically with the fraction of the time budget already spent
type TimeBased struct {
	rng     *rand.Rand
	initial float64
	final   float64
	budget  time.Duration
}

// NewTimeBased creates an annealer reaching final when the budget is exhausted
func NewTimeBased(initial, final float64, rng *rand.Rand, budget time.Duration) *TimeBased {
	return &TimeBased{
		rng:     rng,
		initial: initial,
		final:   final,
		budget:  budget,
	}
}

// Accept reports whether candidate replaces current at the given elapsed time
func (sa *TimeBased) Accept(current, candidate float64, elapsed time.Duration) bool {
	return accept(sa.rng, sa.Temperature(elapsed), current, candidate)
}

// DecreaseTemperature is a no-op, the temperature follows the clock
func (sa *TimeBased) DecreaseTemperature() {}

// Temperature returns initial*(final/initial)^(elapsed/budget)
func (sa *TimeBased) Temperature(elapsed time.Duration) float64 {
	if sa.budget <= 0 || sa.initial <= 0 {
		return sa.final
	}
	progress := min(1.0, max(0.0, float64(elapsed)/float64(sa.budget)))
	return sa.initial * math.Pow(sa.final/sa.initial, progress)
}

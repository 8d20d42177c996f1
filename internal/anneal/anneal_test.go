package anneal

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIterationBasedCooling(t *testing.T) {
	sa := NewIterationBased(10, 0.1, rand.New(rand.NewSource(1)), 100)
	assert.Equal(t, 10.0, sa.Temperature(0))
	for i := 0; i < 100; i++ {
		sa.DecreaseTemperature()
	}
	assert.InDelta(t, 0.1, sa.Temperature(0), 1e-9)
}

func TestAcceptImprovementsAlways(t *testing.T) {
	sa := NewIterationBased(10, 0.1, rand.New(rand.NewSource(7)), 100)
	for i := 0; i < 1000; i++ {
		assert.True(t, sa.Accept(100, 99.5, 0))
	}
}

func TestZeroTemperatureRejectsWorse(t *testing.T) {
	sa := NewIterationBased(0, 0, rand.New(rand.NewSource(7)), 100)
	for i := 0; i < 100; i++ {
		assert.False(t, sa.Accept(100, 100.5, 0))
		assert.False(t, sa.Accept(100, 100, 0))
	}
}

func TestAcceptWorseSometimes(t *testing.T) {
	sa := NewIterationBased(10, 10, rand.New(rand.NewSource(3)), 1)
	accepted := 0
	for i := 0; i < 2000; i++ {
		if sa.Accept(100, 105, 0) {
			accepted++
		}
	}
	// P(accept) = exp(-5/10) ~ 0.61
	assert.InDelta(t, 0.61, float64(accepted)/2000, 0.05)
}

func TestTimeBasedTemperature(t *testing.T) {
	sa := NewTimeBased(10, 0.1, rand.New(rand.NewSource(1)), 10*time.Second)
	assert.InDelta(t, 10.0, sa.Temperature(0), 1e-9)
	assert.InDelta(t, 1.0, sa.Temperature(5*time.Second), 1e-9)
	assert.InDelta(t, 0.1, sa.Temperature(10*time.Second), 1e-9)
	assert.InDelta(t, 0.1, sa.Temperature(20*time.Second), 1e-9)

	sa.DecreaseTemperature()
	assert.InDelta(t, 1.0, sa.Temperature(5*time.Second), 1e-9)
}

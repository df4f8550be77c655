package tracking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMotionFilter_Initial(t *testing.T) {
	m := NewMotionFilter(Point{X: 10, Y: 20}, DefaultMotionParams())

	assert.Equal(t, [4]float64{10, 20, 0, 0}, m.State())
	assert.Equal(t, Point{X: 10, Y: 20}, m.LastPrediction())
	assert.Equal(t, Vector{}, m.Velocity())
	assert.Zero(t, m.AverageSpeed())

	cov := m.Covariance()
	for i := 0; i < 4; i++ {
		assert.Equal(t, 1.0, cov[i*4+i])
	}
}

func TestMotionFilter_PredictCovariance(t *testing.T) {
	m := NewMotionFilter(Point{X: 10, Y: 10}, DefaultMotionParams())

	pred := m.Predict()
	assert.Equal(t, Point{X: 10, Y: 10}, pred)

	// P̄ = F·I·Fᵀ + 0.03·I
	want := [16]float64{
		2.03, 0, 1, 0,
		0, 2.03, 0, 1,
		1, 0, 1.03, 0,
		0, 1, 0, 1.03,
	}
	got := m.Covariance()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12, "P[%d]", i)
	}
}

func TestMotionFilter_Correct(t *testing.T) {
	m := NewMotionFilter(Point{X: 10, Y: 10}, DefaultMotionParams())
	m.Predict()
	m.Correct(Point{X: 12, Y: 10})

	// S = 3.03·I2, K[:,0] = [2.03, 0, 1, 0]/3.03, innovation (2, 0).
	state := m.State()
	assert.InDelta(t, 10+2*2.03/3.03, state[0], 1e-9)
	assert.InDelta(t, 10.0, state[1], 1e-9)
	assert.InDelta(t, 2/3.03, state[2], 1e-9)
	assert.InDelta(t, 0.0, state[3], 1e-9)

	cov := m.Covariance()
	assert.InDelta(t, 2.03-2.03*2.03/3.03, cov[0], 1e-9)

	v := m.Velocity()
	assert.InDelta(t, 2/3.03, v.X, 1e-9)
	assert.InDelta(t, 2/3.03, m.AverageSpeed(), 1e-9)
}

func TestMotionFilter_StaticMeasurementsKeepZeroVelocity(t *testing.T) {
	m := NewMotionFilter(Point{X: 5, Y: 5}, DefaultMotionParams())
	for i := 0; i < 5; i++ {
		m.Predict()
		m.Correct(Point{X: 5, Y: 5})
	}
	assert.Equal(t, Vector{}, m.Velocity())
	assert.Zero(t, m.AverageSpeed())
	assert.Equal(t, Point{X: 5, Y: 5}, m.Position())
}

func TestMotionFilter_ConvergesOnConstantVelocity(t *testing.T) {
	m := NewMotionFilter(Point{X: 0, Y: 0}, DefaultMotionParams())
	for i := 1; i <= 60; i++ {
		m.Predict()
		m.Correct(Point{X: 3 * float64(i), Y: -4 * float64(i)})
	}

	v := m.Velocity()
	assert.InDelta(t, 3.0, v.X, 0.05)
	assert.InDelta(t, -4.0, v.Y, 0.05)
	assert.InDelta(t, 5.0, m.AverageSpeed(), 0.1)

	pred := m.Predict()
	assert.InDelta(t, 183.0, pred.X, 0.5)
	assert.InDelta(t, -244.0, pred.Y, 0.5)
}

func TestMotionFilter_VelocityHistoryBounded(t *testing.T) {
	params := DefaultMotionParams()
	params.VelocityHistory = 3
	m := NewMotionFilter(Point{}, params)

	for i := 1; i <= 10; i++ {
		m.Predict()
		m.Correct(Point{X: float64(i), Y: 0})
	}
	assert.Equal(t, 3, m.velocities.Len())
}

func TestMotionFilter_CoastingGrowsUncertainty(t *testing.T) {
	m := NewMotionFilter(Point{}, DefaultMotionParams())
	prev := m.Covariance()[0]
	for i := 0; i < 5; i++ {
		m.Predict()
		cur := m.Covariance()[0]
		assert.Greater(t, cur, prev)
		prev = cur
	}
	assert.False(t, math.IsNaN(prev))
}

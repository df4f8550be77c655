package tracking

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MotionParams configures a MotionFilter. Noise terms are isotropic:
// Q = ProcessNoise·I4, R = MeasurementNoise·I2, P₀ = InitialCovariance·I4.
type MotionParams struct {
	ProcessNoise      float64
	MeasurementNoise  float64
	InitialCovariance float64
	VelocityHistory   int // samples kept for AverageSpeed
}

// DefaultMotionParams returns the production motion model parameters.
func DefaultMotionParams() MotionParams {
	return MotionParams{
		ProcessNoise:      0.03,
		MeasurementNoise:  1.0,
		InitialCovariance: 1.0,
		VelocityHistory:   10,
	}
}

// MotionFilter is a constant-velocity Kalman filter over the state
// [x, y, vx, vy] with position-only observations and a unit (one frame)
// time step.
type MotionFilter struct {
	x *mat.VecDense // posterior (or prior, after Predict) state
	p *mat.Dense    // error covariance

	f *mat.Dense // transition
	q *mat.Dense // process noise
	h *mat.Dense // observation
	r *mat.Dense // measurement noise

	lastPrediction Point
	velocities     *Ring[Vector]
}

// NewMotionFilter seeds the filter at the first observed centroid with
// zero velocity.
func NewMotionFilter(initial Point, params MotionParams) *MotionFilter {
	// F = [1 0 1 0]
	//     [0 1 0 1]
	//     [0 0 1 0]
	//     [0 0 0 1]
	f := mat.NewDense(4, 4, []float64{
		1, 0, 1, 0,
		0, 1, 0, 1,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	h := mat.NewDense(2, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})

	return &MotionFilter{
		x:              mat.NewVecDense(4, []float64{initial.X, initial.Y, 0, 0}),
		p:              scaledIdentity(4, params.InitialCovariance),
		f:              f,
		q:              scaledIdentity(4, params.ProcessNoise),
		h:              h,
		r:              scaledIdentity(2, params.MeasurementNoise),
		lastPrediction: initial,
		velocities:     NewRing[Vector](params.VelocityHistory),
	}
}

func scaledIdentity(n int, s float64) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, s)
	}
	return m
}

// Predict advances the state one frame (x̄ = F·x̂, P̄ = F·P·Fᵀ + Q) and
// returns the predicted position.
func (m *MotionFilter) Predict() Point {
	var x mat.VecDense
	x.MulVec(m.f, m.x)

	var fp, fpft, p mat.Dense
	fp.Mul(m.f, m.p)
	fpft.Mul(&fp, m.f.T())
	p.Add(&fpft, m.q)

	m.x = &x
	m.p = &p
	m.lastPrediction = Point{X: x.AtVec(0), Y: x.AtVec(1)}
	return m.lastPrediction
}

// Correct reconciles the prior with a measured position and records the
// posterior velocity. Panics if the innovation covariance is singular,
// which cannot happen with positive measurement noise.
func (m *MotionFilter) Correct(z Point) {
	meas := mat.NewVecDense(2, []float64{z.X, z.Y})

	// Innovation y = z − H·x̄
	var hx, y mat.VecDense
	hx.MulVec(m.h, m.x)
	y.SubVec(meas, &hx)

	// S = H·P̄·Hᵀ + R
	var pht, hpht, s mat.Dense
	pht.Mul(m.p, m.h.T())
	hpht.Mul(m.h, &pht)
	s.Add(&hpht, m.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		panic(fmt.Sprintf("tracking: singular innovation covariance: %v", err))
	}

	// K = P̄·Hᵀ·S⁻¹
	var k mat.Dense
	k.Mul(&pht, &sInv)

	// x̂ = x̄ + K·y
	var ky, x mat.VecDense
	ky.MulVec(&k, &y)
	x.AddVec(m.x, &ky)

	// P = (I − K·H)·P̄ = P̄ − K·H·P̄
	var kh, khp, p mat.Dense
	kh.Mul(&k, m.h)
	khp.Mul(&kh, m.p)
	p.Sub(m.p, &khp)

	m.x = &x
	m.p = &p
	m.velocities.Push(Vector{X: x.AtVec(2), Y: x.AtVec(3)})
}

// LastPrediction returns the position produced by the most recent
// Predict, or the seed position if Predict has not run.
func (m *MotionFilter) LastPrediction() Point {
	return m.lastPrediction
}

// Position returns the current state position estimate.
func (m *MotionFilter) Position() Point {
	return Point{X: m.x.AtVec(0), Y: m.x.AtVec(1)}
}

// Velocity returns the most recent corrected velocity, or zero before
// the first correction.
func (m *MotionFilter) Velocity() Vector {
	v, _ := m.velocities.Last()
	return v
}

// AverageSpeed returns the mean speed over the velocity history, or 0
// when no correction has happened yet.
func (m *MotionFilter) AverageSpeed() float64 {
	if m.velocities.Len() == 0 {
		return 0
	}
	speeds := make([]float64, m.velocities.Len())
	for i := range speeds {
		speeds[i] = m.velocities.At(i).Norm()
	}
	return stat.Mean(speeds, nil)
}

// State returns a copy of the state vector [x, y, vx, vy].
func (m *MotionFilter) State() [4]float64 {
	return [4]float64{m.x.AtVec(0), m.x.AtVec(1), m.x.AtVec(2), m.x.AtVec(3)}
}

// Covariance returns a copy of the 4×4 error covariance, row-major.
func (m *MotionFilter) Covariance() [16]float64 {
	var out [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i*4+j] = m.p.At(i, j)
		}
	}
	return out
}

package fusion

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// State vector layout.
const (
	stateVX = 0
	stateVY = 1
	stateAX = 2
	stateAY = 3
)

// FusionFilter is the two-channel linear Kalman filter at the heart of the
// estimator. It owns the 4-state vector [vx, vy, ax, ay] and its 4x4 error
// covariance; both are mutated only through Predict and the two Correct
// calls, always as a pair.
//
// FusionFilter is not safe for concurrent use; the Node serializes every
// predict+correct cycle through its own critical section.
type FusionFilter struct {
	x *mat.VecDense // state [vx, vy, ax, ay]
	p *mat.Dense    // error covariance
	q *mat.Dense    // process noise, fixed diagonal

	accelNoiseStd  float64
	flowNoiseFloor float64
	flowNoiseBase  float64
}

// NewFusionFilter returns a filter initialised per the configuration: zero
// state, uniform all-ones covariance (not the identity), and a fixed small
// diagonal process noise applied on every predict.
func NewFusionFilter(cfg *Config) *FusionFilter {
	ones := make([]float64, 16)
	for i := range ones {
		ones[i] = 1.0
	}
	q := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		q.Set(i, i, cfg.GetProcessNoise())
	}

	return &FusionFilter{
		x:              mat.NewVecDense(4, nil),
		p:              mat.NewDense(4, 4, ones),
		q:              q,
		accelNoiseStd:  cfg.GetAccelNoiseStd(),
		flowNoiseFloor: cfg.GetFlowNoiseFloor(),
		flowNoiseBase:  cfg.GetFlowNoiseBase(),
	}
}

// Predict propagates the state and covariance forward by dt seconds using
// the transition
//
//	vx' = vx + dt·ax    vy' = vy + dt·ay    ax' = ax    ay' = ay
//
// The acceleration channel is carried as a constant; it changes only through
// its own correction. Covariance follows the linear-Gaussian rule
// P' = F·P·Fᵀ + Q.
func (f *FusionFilter) Predict(dt float64) {
	F := mat.NewDense(4, 4, []float64{
		1, 0, dt, 0,
		0, 1, 0, dt,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})

	var x mat.VecDense
	x.MulVec(F, f.x)
	f.x.CopyVec(&x)

	var fp, fpft mat.Dense
	fp.Mul(F, f.p)
	fpft.Mul(&fp, F.T())
	fpft.Add(&fpft, f.q)
	f.p.Copy(&fpft)
}

// CorrectAccel applies the acceleration-channel measurement update: the
// auxiliary (ax, ay) state elements are observed directly by the corrected
// accelerometer reading, with the fixed nominal sensor noise.
func (f *FusionFilter) CorrectAccel(ax, ay float64) {
	f.correct(ax, ay, stateAX, f.accelNoiseStd)
}

// CorrectFlow applies the optical-flow measurement update: the direct
// (vx, vy) state elements are observed by the optical velocity reading, with
// measurement noise derived from the quality indicator.
func (f *FusionFilter) CorrectFlow(vx, vy, quality float64) {
	f.correct(vx, vy, stateVX, f.flowNoiseStd(quality))
}

// flowNoiseStd maps the optical-flow quality indicator to a measurement
// noise standard deviation: floor + base^quality − 1. Noise grows
// monotonically as quality degrades; at quality zero it is exactly the floor.
func (f *FusionFilter) flowNoiseStd(quality float64) float64 {
	// Grouping matters: base^0 - 1 is exactly zero, so quality zero yields
	// exactly the floor with no rounding residue.
	return f.flowNoiseFloor + (math.Pow(f.flowNoiseBase, quality) - 1)
}

// correct performs the standard linear-Gaussian correction for a 2-element
// measurement observing the state pair starting at offset, with R = std²·I.
func (f *FusionFilter) correct(z0, z1 float64, offset int, noiseStd float64) {
	H := mat.NewDense(2, 4, nil)
	H.Set(0, offset, 1)
	H.Set(1, offset+1, 1)

	r := noiseStd * noiseStd
	R := mat.NewDense(2, 2, []float64{r, 0, 0, r})

	// Innovation y = z − H·x
	var hx mat.VecDense
	hx.MulVec(H, f.x)
	y := mat.NewVecDense(2, []float64{z0 - hx.AtVec(0), z1 - hx.AtVec(1)})

	// Innovation covariance S = H·P·Hᵀ + R
	var hp, s mat.Dense
	hp.Mul(H, f.p)
	s.Mul(&hp, H.T())
	s.Add(&s, R)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		// Singular innovation covariance; skip the update rather than abort.
		return
	}

	// Kalman gain K = P·Hᵀ·S⁻¹
	var pht, k mat.Dense
	pht.Mul(f.p, H.T())
	k.Mul(&pht, &sInv)

	// State update x' = x + K·y
	var ky mat.VecDense
	ky.MulVec(&k, y)
	f.x.AddVec(f.x, &ky)

	// Covariance update P' = (I − K·H)·P
	var kh mat.Dense
	kh.Mul(&k, H)
	ikh := eye(4)
	ikh.Sub(ikh, &kh)
	var p mat.Dense
	p.Mul(ikh, f.p)
	f.p.Copy(&p)
}

// Velocity returns the direct-channel velocity estimate.
func (f *FusionFilter) Velocity() (vx, vy float64) {
	return f.x.AtVec(stateVX), f.x.AtVec(stateVY)
}

// Acceleration returns the auxiliary-channel acceleration estimate.
func (f *FusionFilter) Acceleration() (ax, ay float64) {
	return f.x.AtVec(stateAX), f.x.AtVec(stateAY)
}

// VelocityStdDev returns the marginal standard deviations of the velocity
// estimate, sqrt(P00) and sqrt(P11), suitable for confidence-annotated
// publication.
func (f *FusionFilter) VelocityStdDev() (sx, sy float64) {
	return math.Sqrt(f.p.At(stateVX, stateVX)), math.Sqrt(f.p.At(stateVY, stateVY))
}

// State returns a copy of the full state vector.
func (f *FusionFilter) State() [4]float64 {
	return [4]float64{f.x.AtVec(0), f.x.AtVec(1), f.x.AtVec(2), f.x.AtVec(3)}
}

// Covariance returns a copy of the error covariance matrix.
func (f *FusionFilter) Covariance() *mat.Dense {
	c := mat.NewDense(4, 4, nil)
	c.Copy(f.p)
	return c
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

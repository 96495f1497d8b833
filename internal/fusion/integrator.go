package fusion

// PositionIntegrator accumulates estimated position from the corrected
// velocity channel. By default each call advances by the fixed nominal
// sample interval, matching an assumed fixed accelerometer rate, rather
// than the measured dt the filter uses. The accumulated position is never
// reset during a run.
type PositionIntegrator struct {
	nominalDt float64
	x, y      float64
}

// NewPositionIntegrator returns an integrator with the given nominal sample
// interval in seconds.
func NewPositionIntegrator(nominalDt float64) *PositionIntegrator {
	return &PositionIntegrator{nominalDt: nominalDt}
}

// Integrate advances the accumulated position by v·nominalDt and returns it.
func (p *PositionIntegrator) Integrate(vx, vy float64) (x, y float64) {
	return p.IntegrateDt(vx, vy, p.nominalDt)
}

// IntegrateDt advances the accumulated position by v·dt and returns it. Used
// when the estimator is configured to integrate against the measured dt
// instead of the nominal interval.
func (p *PositionIntegrator) IntegrateDt(vx, vy, dt float64) (x, y float64) {
	p.x += vx * dt
	p.y += vy * dt
	return p.x, p.y
}

// Position returns the accumulated position without advancing it.
func (p *PositionIntegrator) Position() (x, y float64) {
	return p.x, p.y
}

package fusion

// FlowGate decides whether an optical-flow velocity sample is usable for
// filter correction, based on its scalar quality indicator (higher means
// noisier). The policy is hysteresis rather than a hard threshold: only a
// one-step degradation of confidence rejects, so a noisy-but-improving
// quality spike keeps its samples.
type FlowGate struct {
	prevQuality float64
	primed      bool
}

// Evaluate reports whether a sample with the given quality should be
// accepted. The first sample is always accepted. Afterwards a sample is
// accepted when its quality is non-degrading relative to the previously
// accepted sample, and the gate memory advances only on acceptance.
func (g *FlowGate) Evaluate(quality float64) bool {
	if !g.primed || quality-g.prevQuality <= 0 {
		g.prevQuality = quality
		g.primed = true
		return true
	}
	return false
}

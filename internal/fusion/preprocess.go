package fusion

import "time"

// AccelSample is one raw accelerometer reading together with the platform
// orientation quaternion reported alongside it.
type AccelSample struct {
	Time time.Time

	// Linear acceleration (m/s²)
	AX, AY, AZ float64

	// Orientation quaternion
	QX, QY, QZ, QW float64
}

// RPY is a decomposed orientation in radians.
type RPY struct {
	Roll, Pitch, Yaw float64
}

// AccelPreprocessor applies the fixed additive bias correction to the
// lateral axis of raw acceleration samples and decomposes their orientation.
type AccelPreprocessor struct {
	biasY float64
}

// NewAccelPreprocessor returns a preprocessor with the given lateral-axis
// bias correction.
func NewAccelPreprocessor(biasY float64) *AccelPreprocessor {
	return &AccelPreprocessor{biasY: biasY}
}

// Process returns the bias-corrected acceleration and the decomposed
// orientation for a sample. Only the y axis is corrected; x and z pass
// through unmodified. Sensor range and quaternion norm are not validated.
func (p *AccelPreprocessor) Process(s AccelSample) (ax, ay, az float64, rpy RPY) {
	ax = s.AX
	ay = s.AY + p.biasY
	az = s.AZ
	rpy.Roll, rpy.Pitch, rpy.Yaw = EulerFromQuaternion(s.QX, s.QY, s.QZ, s.QW)
	return ax, ay, az, rpy
}

package fusion

import "math"

// EulerFromQuaternion converts an orientation quaternion into euler angles
// (roll, pitch, yaw) in radians. Roll is rotation around x, pitch around y,
// yaw around z, all counterclockwise.
//
// The arcsine argument is clamped to [-1, 1] so that small numeric overshoot
// in a near-unit quaternion cannot produce NaN. Gimbal-lock orientations
// return a degenerate but finite decomposition.
func EulerFromQuaternion(x, y, z, w float64) (roll, pitch, yaw float64) {
	t0 := 2.0 * (w*x + y*z)
	t1 := 1.0 - 2.0*(x*x+y*y)
	roll = math.Atan2(t0, t1)

	t2 := 2.0 * (w*y - z*x)
	if t2 > 1.0 {
		t2 = 1.0
	}
	if t2 < -1.0 {
		t2 = -1.0
	}
	pitch = math.Asin(t2)

	t3 := 2.0 * (w*z + x*y)
	t4 := 1.0 - 2.0*(y*y+z*z)
	yaw = math.Atan2(t3, t4)

	return roll, pitch, yaw
}

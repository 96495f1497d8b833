package bus

// AccelMessage is one raw accelerometer sample with its orientation
// quaternion, published on TopicAccel.
type AccelMessage struct {
	UnixNanos int64   `json:"unix_nanos"`
	AX        float64 `json:"ax"`
	AY        float64 `json:"ay"`
	AZ        float64 `json:"az"`
	QX        float64 `json:"qx"`
	QY        float64 `json:"qy"`
	QZ        float64 `json:"qz"`
	QW        float64 `json:"qw"`
}

// OdomMessage is a planar odometry sample, published raw on TopicOdom and
// origin-rebased on TopicOdomRebased.
type OdomMessage struct {
	UnixNanos int64   `json:"unix_nanos"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
	Cov       float64 `json:"cov"` // leading diagonal covariance entry of the twist
}

// FlowSpeedMessage is an optical-flow-derived velocity sample on
// TopicFlowSpeed. Valid=false marks a sample the producer rejected; it is
// published rather than dropped so observers can distinguish "no data" from
// "rejected data", and it must not be used for filter correction.
type FlowSpeedMessage struct {
	UnixNanos int64   `json:"unix_nanos"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
	Valid     bool    `json:"valid"`
	Cov       float64 `json:"cov"` // scalar quality indicator; higher means noisier
}

// RPYMessage is a decomposed orientation on TopicRPY, radians.
type RPYMessage struct {
	UnixNanos int64   `json:"unix_nanos"`
	Roll      float64 `json:"roll"`
	Pitch     float64 `json:"pitch"`
	Yaw       float64 `json:"yaw"`
}

// VelocityMessage is the corrected velocity estimate with its marginal
// standard deviations, published on TopicVelocity.
type VelocityMessage struct {
	UnixNanos int64   `json:"unix_nanos"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
	StdVX     float64 `json:"std_vx"`
	StdVY     float64 `json:"std_vy"`
}

// PositionMessage is the integrated position estimate on TopicPosition.
type PositionMessage struct {
	UnixNanos int64   `json:"unix_nanos"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

package imu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/flowfusion/internal/bus"
)

// frameFields is the number of comma-separated fields in one IMU frame:
// timestamp_nanos, ax, ay, az, qx, qy, qz, qw.
const frameFields = 8

// ParseFrame parses one line of the IMU wire format into an acceleration
// sample message.
func ParseFrame(line string) (bus.AccelMessage, error) {
	var m bus.AccelMessage

	segments := strings.Split(strings.TrimSpace(line), ",")
	if len(segments) != frameFields {
		return m, fmt.Errorf("expected %d fields, got %d", frameFields, len(segments))
	}

	unixNanos, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil {
		return m, fmt.Errorf("failed to parse timestamp: %v", err)
	}
	m.UnixNanos = unixNanos

	floats := make([]float64, frameFields-1)
	for i, seg := range segments[1:] {
		v, err := strconv.ParseFloat(seg, 64)
		if err != nil {
			return m, fmt.Errorf("failed to parse field %d: %v", i+1, err)
		}
		floats[i] = v
	}

	m.AX, m.AY, m.AZ = floats[0], floats[1], floats[2]
	m.QX, m.QY, m.QZ, m.QW = floats[3], floats[4], floats[5], floats[6]
	return m, nil
}

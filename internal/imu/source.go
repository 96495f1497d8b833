package imu

import (
	"context"

	"github.com/banshee-data/flowfusion/internal/bus"
	"github.com/banshee-data/flowfusion/internal/monitoring"
)

// Source pumps parsed IMU frames from a serial port onto the bus.
type Source struct {
	port PortInterface
	b    bus.Bus
}

// NewSource returns a Source reading from port and publishing to b.
func NewSource(port PortInterface, b bus.Bus) *Source {
	return &Source{port: port, b: b}
}

// Run parses and publishes frames until the context is cancelled. Malformed
// frames are logged and skipped; a frame must never take down the stream.
func (s *Source) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-s.port.Events():
			if !ok {
				return nil
			}
			m, err := ParseFrame(line)
			if err != nil {
				monitoring.Logf("imu: skipping bad frame: %v", err)
				continue
			}
			if err := bus.PublishJSON(s.b, bus.TopicAccel, m); err != nil {
				monitoring.Logf("imu: failed to publish sample: %v", err)
			}
		}
	}
}

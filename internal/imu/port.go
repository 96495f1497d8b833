// Package imu reads accelerometer frames from a serial IMU breakout and
// republishes them on the bus as acceleration samples.
package imu

import (
	"bufio"
	"context"
	"io"

	"go.bug.st/serial"
)

// PortInterface abstracts the serial device so tests and playback fixtures
// can stand in for real hardware.
type PortInterface interface {
	// Events returns a channel of raw frame lines read from the device.
	Events() <-chan string
	// Monitor reads from the device and sends lines to the events channel.
	Monitor(ctx context.Context) error
	// Close closes the device.
	Close() error
}

// Port is a line-oriented serial IMU device.
type Port struct {
	serial.Port
	events chan string
}

// OpenPort opens the serial device at the given path and baud rate.
func OpenPort(portName string, baudRate int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}

	return &Port{port, make(chan string)}, nil
}

// Events returns the channel of frame lines read from the device.
func (p *Port) Events() <-chan string {
	return p.events
}

// Close closes the serial port.
func (p *Port) Close() error {
	return p.Port.Close()
}

// Monitor reads lines from the serial port and sends them to the events
// channel until the context is cancelled or the port errors out.
func (p *Port) Monitor(ctx context.Context) error {
	defer p.Close()
	scan := bufio.NewScanner(p.Port)

	for scan.Scan() {
		select {
		case p.events <- scan.Text():
		case <-ctx.Done():
			return nil
		}
	}
	return scan.Err()
}

// MockPort is a PortInterface fed from an in-memory reader, used in dev mode
// and tests.
type MockPort struct {
	Data       io.Reader
	EventsChan chan string
}

// NewMockPort returns a MockPort that replays the given fixture data.
func NewMockPort(data io.Reader) *MockPort {
	return &MockPort{Data: data, EventsChan: make(chan string)}
}

// Events returns the channel of fixture lines.
func (m *MockPort) Events() <-chan string {
	return m.EventsChan
}

// Monitor sends each fixture line to the events channel, then blocks until
// the context is cancelled.
func (m *MockPort) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.Data)
	for scan.Scan() {
		select {
		case m.EventsChan <- scan.Text():
		case <-ctx.Done():
			return nil
		}
	}

	<-ctx.Done()
	return nil
}

// Close is a no-op for the mock.
func (m *MockPort) Close() error {
	return nil
}

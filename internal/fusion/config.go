package fusion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the estimator tuning parameters. All fields are optional
// pointers so a partial JSON file can override only the values it names;
// the Get* accessors supply defaults for anything left nil.
type Config struct {
	// Accelerometer params
	AccelBiasY    *float64 `json:"accel_bias_y,omitempty"`    // additive lateral-axis bias correction (m/s²)
	AccelNoiseStd *float64 `json:"accel_noise_std,omitempty"` // measurement noise std dev for the accel channel

	// Optical flow params
	FlowNoiseFloor *float64 `json:"flow_noise_floor,omitempty"` // noise std dev at quality zero
	FlowNoiseBase  *float64 `json:"flow_noise_base,omitempty"`  // base of the quality-to-noise exponential
	FlowSpeedScale *float64 `json:"flow_speed_scale,omitempty"` // multiplicative bias on relayed optical speed

	// Filter params
	ProcessNoise *float64 `json:"process_noise,omitempty"` // diagonal process noise magnitude

	// Position integration params
	PositionIntegrationInterval *float64 `json:"position_integration_interval,omitempty"` // nominal dt in seconds
	IntegrateMeasuredDt         *bool    `json:"integrate_measured_dt,omitempty"`         // use the measured dt instead
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }

// DefaultConfig returns a Config with all fields set to nil, so every
// accessor answers with its built-in default.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file. Fields omitted from the file
// retain their defaults, so partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.AccelNoiseStd != nil && *c.AccelNoiseStd <= 0 {
		return fmt.Errorf("accel_noise_std must be positive, got %f", *c.AccelNoiseStd)
	}
	if c.FlowNoiseFloor != nil && *c.FlowNoiseFloor < 0 {
		return fmt.Errorf("flow_noise_floor must be non-negative, got %f", *c.FlowNoiseFloor)
	}
	if c.FlowNoiseBase != nil && *c.FlowNoiseBase <= 0 {
		return fmt.Errorf("flow_noise_base must be positive, got %f", *c.FlowNoiseBase)
	}
	if c.ProcessNoise != nil && *c.ProcessNoise < 0 {
		return fmt.Errorf("process_noise must be non-negative, got %f", *c.ProcessNoise)
	}
	if c.PositionIntegrationInterval != nil && *c.PositionIntegrationInterval <= 0 {
		return fmt.Errorf("position_integration_interval must be positive, got %f", *c.PositionIntegrationInterval)
	}
	return nil
}

// GetAccelBiasY returns the accel_bias_y value or the default. The default
// cancels the +0.13 m/s² lateral offset observed on the reference sensor at
// rest.
func (c *Config) GetAccelBiasY() float64 {
	if c.AccelBiasY == nil {
		return -0.13
	}
	return *c.AccelBiasY
}

// GetAccelNoiseStd returns the accel_noise_std value or the default.
func (c *Config) GetAccelNoiseStd() float64 {
	if c.AccelNoiseStd == nil {
		return 0.25 / 2
	}
	return *c.AccelNoiseStd
}

// GetFlowNoiseFloor returns the flow_noise_floor value or the default.
func (c *Config) GetFlowNoiseFloor() float64 {
	if c.FlowNoiseFloor == nil {
		return 0.05
	}
	return *c.FlowNoiseFloor
}

// GetFlowNoiseBase returns the flow_noise_base value or the default.
func (c *Config) GetFlowNoiseBase() float64 {
	if c.FlowNoiseBase == nil {
		return 2.0
	}
	return *c.FlowNoiseBase
}

// GetFlowSpeedScale returns the flow_speed_scale value or the default.
func (c *Config) GetFlowSpeedScale() float64 {
	if c.FlowSpeedScale == nil {
		return 0.93
	}
	return *c.FlowSpeedScale
}

// GetProcessNoise returns the process_noise value or the default.
func (c *Config) GetProcessNoise() float64 {
	if c.ProcessNoise == nil {
		return 1e-3
	}
	return *c.ProcessNoise
}

// GetPositionIntegrationInterval returns the position_integration_interval
// value or the default. The default assumes a 100 Hz accelerometer.
func (c *Config) GetPositionIntegrationInterval() float64 {
	if c.PositionIntegrationInterval == nil {
		return 0.01
	}
	return *c.PositionIntegrationInterval
}

// GetIntegrateMeasuredDt returns the integrate_measured_dt value or the
// default. The default integrates at the fixed nominal interval, so a run
// replayed at any speed factor reproduces the same positions.
func (c *Config) GetIntegrateMeasuredDt() bool {
	if c.IntegrateMeasuredDt == nil {
		return false
	}
	return *c.IntegrateMeasuredDt
}

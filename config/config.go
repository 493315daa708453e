// Package config loads the operation's static and runtime-tunable
// settings: base station positions, movement/handshake constants, and the
// telemetry policy knobs that can be hot-reloaded while the operation runs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sentryops/operation/internal/telemetry/policy"
)

// OperationConfig is the full set of settings a launch needs beyond the
// base positions file: how close a detected point must be to an existing
// one to be considered a duplicate, the UDP handshake/ingest parameters,
// the path planning strategy, and the inspector's movement tuning.
type OperationConfig struct {
	DroneVisibility float64 `yaml:"drone_visibility"`

	Handshake struct {
		Retries    int           `yaml:"retries"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"handshake"`

	UDP struct {
		BufferSize int           `yaml:"buffer_size"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"udp"`

	Planner struct {
		Strategy string `yaml:"strategy"`
	} `yaml:"planner"`

	Inspector struct {
		Speed             float64       `yaml:"speed"`
		ReachedTolerance  float64       `yaml:"reached_tolerance"`
		StepInterval      time.Duration `yaml:"step_interval"`
		MeanTemperature   float64       `yaml:"mean_temperature"`
		TemperatureStdDev float64       `yaml:"temperature_stddev"`
	} `yaml:"inspector"`

	BasePositionsPath string `yaml:"base_positions_path"`
	MetricsOutputDir  string `yaml:"metrics_output_dir"`
	CheckpointPath    string `yaml:"checkpoint_path"`

	Telemetry policy.TelemetryPolicy `yaml:"telemetry"`
}

// Default returns an OperationConfig populated with the same baseline
// constants the source system ships in its configuration modules.
func Default() OperationConfig {
	var c OperationConfig
	c.DroneVisibility = 1.0
	c.Handshake.Retries = 1
	c.Handshake.RetryDelay = 500 * time.Millisecond
	c.UDP.BufferSize = 128
	c.UDP.Timeout = 500 * time.Millisecond
	c.Planner.Strategy = "nearest_neighbor"
	c.Inspector.Speed = 0.5
	c.Inspector.ReachedTolerance = 0.05
	c.Inspector.StepInterval = 100 * time.Millisecond
	c.Inspector.MeanTemperature = 25.0
	c.Inspector.TemperatureStdDev = 5.0
	c.BasePositionsPath = "input/operation1.json"
	c.MetricsOutputDir = "results"
	c.Telemetry = policy.Default()
	return c
}

// Load reads an OperationConfig from a YAML file, layering it over Default
// so an operator's file only needs to specify overrides. A missing file is
// not an error: Default() alone is returned.
func Load(path string) (OperationConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg.normalize(), cfg.Validate()
}

func (c OperationConfig) normalize() OperationConfig {
	c.Telemetry = c.Telemetry.Normalize()
	return c
}

// Validate fails fast on settings that would make the operation impossible
// to run correctly rather than letting them surface later as a confusing
// runtime error.
func (c OperationConfig) Validate() error {
	if c.DroneVisibility <= 0 {
		return fmt.Errorf("config: drone_visibility must be positive")
	}
	if c.Handshake.Retries <= 0 {
		return fmt.Errorf("config: handshake.retries must be positive")
	}
	if c.UDP.BufferSize <= 0 {
		return fmt.Errorf("config: udp.buffer_size must be positive")
	}
	if c.Planner.Strategy == "" {
		return fmt.Errorf("config: planner.strategy must be set")
	}
	if c.Inspector.Speed <= 0 {
		return fmt.Errorf("config: inspector.speed must be positive")
	}
	if c.BasePositionsPath == "" {
		return fmt.Errorf("config: base_positions_path must be set")
	}
	return nil
}

// Package policy centralizes runtime-tunable telemetry knobs for the
// operation: health thresholds, tracing sample rate, and event bus buffer
// sizing. A policy is designed to be swapped atomically (callers hold an
// immutable snapshot pointer) so hot paths never take a lock to read it.
package policy

import "time"

// TelemetryPolicy holds the full set of runtime-tunable knobs. All durations
// are expected to be positive; Normalize() replaces zero values with the
// defaults.
type TelemetryPolicy struct {
	Health  HealthPolicy   `yaml:"health"`
	Tracing TracingPolicy  `yaml:"tracing"`
	Events  EventBusPolicy `yaml:"events"`
}

// HealthPolicy governs the health evaluator (internal/health): how many
// completed missions are needed before pacing ratios are meaningful, and
// the degraded/unhealthy thresholds for mission pacing and registry
// checkpoint backlog. ProbeTTL is carried and normalized but the evaluator
// does not read it.
type HealthPolicy struct {
	ProbeTTL                 time.Duration `yaml:"probe_ttl"`
	MissionMinSamples        int           `yaml:"mission_min_samples"`
	MissionDegradedRatio     float64       `yaml:"mission_degraded_ratio"`
	MissionUnhealthyRatio    float64       `yaml:"mission_unhealthy_ratio"`
	RegistryDegradedBacklog  int           `yaml:"registry_degraded_backlog"`
	RegistryUnhealthyBacklog int           `yaml:"registry_unhealthy_backlog"`
}

type TracingPolicy struct {
	SamplePercent           float64 `yaml:"sample_percent"`
	ErrorBoostPercent       float64 `yaml:"error_boost_percent"`
	LatencyBoostThresholdMs int64   `yaml:"latency_boost_threshold_ms"`
	LatencyBoostPercent     float64 `yaml:"latency_boost_percent"`
}

type EventBusPolicy struct {
	MaxSubscriberBuffer int `yaml:"max_subscriber_buffer"`
}

// Default returns the baseline policy applied unless overridden by config.
func Default() TelemetryPolicy {
	return TelemetryPolicy{
		Health: HealthPolicy{
			ProbeTTL:                 2 * time.Second,
			MissionMinSamples:        2,
			MissionDegradedRatio:     0.50,
			MissionUnhealthyRatio:    0.80,
			RegistryDegradedBacklog:  256,
			RegistryUnhealthyBacklog: 512,
		},
		Tracing: TracingPolicy{SamplePercent: 20},
		Events:  EventBusPolicy{MaxSubscriberBuffer: 1024},
	}
}

// Normalize returns a bounds-clamped copy without mutating the receiver.
func (p TelemetryPolicy) Normalize() TelemetryPolicy {
	c := p
	if c.Health.ProbeTTL <= 0 {
		c.Health.ProbeTTL = 2 * time.Second
	}
	if c.Health.MissionMinSamples <= 0 {
		c.Health.MissionMinSamples = 2
	}
	if c.Health.MissionDegradedRatio <= 0 {
		c.Health.MissionDegradedRatio = 0.50
	}
	if c.Health.MissionUnhealthyRatio <= 0 {
		c.Health.MissionUnhealthyRatio = 0.80
	}
	if c.Health.RegistryDegradedBacklog <= 0 {
		c.Health.RegistryDegradedBacklog = 256
	}
	if c.Health.RegistryUnhealthyBacklog <= 0 {
		c.Health.RegistryUnhealthyBacklog = 512
	}
	if c.Tracing.SamplePercent < 0 {
		c.Tracing.SamplePercent = 0
	}
	if c.Tracing.SamplePercent > 100 {
		c.Tracing.SamplePercent = 100
	}
	if c.Events.MaxSubscriberBuffer <= 0 {
		c.Events.MaxSubscriberBuffer = 1024
	}
	return c
}

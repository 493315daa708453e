// Package health derives a coarse, diagnostic-only health status for the
// operation from mission pacing and registry/limiter backlog. It never
// aborts or intervenes in an operation; per the operation's non-goals, a
// stuck agent is an operator problem, not something this package detects
// and acts on.
package health

import (
	"encoding/json"
	"time"

	"github.com/sentryops/operation/internal/telemetry/policy"
)

type Status int

func (s Status) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

const (
	Healthy Status = iota
	Degraded
	Unhealthy
)

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MissionSample is one completed mission's duration (the operation supplies
// exploration-phase durations), used to compare against a rolling baseline
// pace.
type MissionSample struct {
	Duration time.Duration
}

// Evaluator computes Status from accumulated mission samples, the
// registry's checkpoint backlog, and the handshake limiter's open-circuit
// count.
type Evaluator struct {
	policyFn func() policy.HealthPolicy
}

func NewEvaluator(policyFn func() policy.HealthPolicy) *Evaluator {
	return &Evaluator{policyFn: policyFn}
}

// Evaluate compares the most recent mission's duration against the average
// of all prior missions; a ratio beyond the policy's degraded/unhealthy
// thresholds downgrades status. Registry backlog and an open limiter
// circuit independently downgrade it.
func (e *Evaluator) Evaluate(samples []MissionSample, registryBacklog int, limiterOpenCircuits int64) Status {
	p := e.policyFn()

	status := Healthy
	if registryBacklog >= p.RegistryUnhealthyBacklog || limiterOpenCircuits > 0 {
		status = Unhealthy
	} else if registryBacklog >= p.RegistryDegradedBacklog {
		status = Degraded
	}

	if len(samples) >= p.MissionMinSamples {
		last := samples[len(samples)-1]
		var total time.Duration
		for _, s := range samples[:len(samples)-1] {
			total += s.Duration
		}
		avg := total / time.Duration(len(samples)-1)
		if avg > 0 {
			ratio := float64(last.Duration) / float64(avg)
			switch {
			case ratio >= 1+p.MissionUnhealthyRatio:
				status = worse(status, Unhealthy)
			case ratio >= 1+p.MissionDegradedRatio:
				status = worse(status, Degraded)
			}
		}
	}
	return status
}

func worse(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

package metrics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentryops/operation/internal/telemetry/metrics"
)

func TestOTelProvider_SatisfiesProviderWithoutPanicking(t *testing.T) {
	p := metrics.NewOTelProvider(metrics.OTelProviderOptions{ServiceName: "sentryops"})

	counter := p.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "sentryops", Subsystem: "test", Name: "requests", Labels: []string{"status"},
	}})
	counter.Inc(2, "ok")
	counter.Inc(0, "ok") // zero delta is a no-op, must not panic

	gauge := p.NewGauge(metrics.GaugeOpts{CommonOpts: metrics.CommonOpts{Name: "backlog"}})
	gauge.Set(5)
	gauge.Set(3) // negative diff exercises the UpDownCounter subtraction path
	gauge.Add(1)

	hist := p.NewHistogram(metrics.HistogramOpts{CommonOpts: metrics.CommonOpts{Name: "latency"}})
	hist.Observe(0.1)

	stop := p.NewTimer(metrics.HistogramOpts{CommonOpts: metrics.CommonOpts{Name: "duration"}})
	stop().ObserveDuration()

	assert.NoError(t, p.Health(context.Background()))
}

func TestOTelProvider_CardinalityLimitDoesNotPanic(t *testing.T) {
	p := metrics.NewOTelProvider(metrics.OTelProviderOptions{CardinalityLimit: 1})
	counter := p.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{Name: "labeled", Labels: []string{"id"}}})
	counter.Inc(1, "a")
	counter.Inc(1, "b")
	counter.Inc(1, "c")
}

func TestOTelProvider_MismatchedLabelCountFallsBackToUnlabeled(t *testing.T) {
	p := metrics.NewOTelProvider(metrics.OTelProviderOptions{})
	counter := p.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{Name: "mismatched", Labels: []string{"a", "b"}}})
	// Fewer label values than label keys; must not panic.
	counter.Inc(1, "only-one")
}

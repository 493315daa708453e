// Package matcher combines camera frames with the telemetry snapshot current
// when each frame is picked up and fans the result out to every registered
// consumer.
package matcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sentryops/operation/opmodel"
)

// Camera supplies frames to match against telemetry. GetFrame returns
// ok=false when no new frame is available yet.
type Camera interface {
	GetFrame() (opmodel.Frame, bool)
}

// Telemetry supplies the live telemetry snapshot a frame is matched against.
type Telemetry interface {
	GetTelemetry() opmodel.TelemetryData
}

// Consumer receives matched frames. Enqueue must not block; a consumer
// backed by a bounded queue drops its oldest entry rather than stall the
// matcher loop.
type Consumer interface {
	Enqueue(fwt opmodel.FrameWithTelemetry)
}

// Matcher polls a camera on an interval, pairs each frame with the current
// telemetry snapshot, and distributes the result to every registered
// consumer.
type Matcher struct {
	telemetry  Telemetry
	camera     Camera
	pollPeriod time.Duration
	logger     *slog.Logger

	mu        sync.Mutex
	consumers []Consumer

	wg sync.WaitGroup
}

func New(telemetry Telemetry, camera Camera, pollPeriod time.Duration, logger *slog.Logger) *Matcher {
	if pollPeriod <= 0 {
		pollPeriod = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{telemetry: telemetry, camera: camera, pollPeriod: pollPeriod, logger: logger}
}

// RegisterConsumer adds a consumer to receive every future matched frame. It
// is a no-op if the consumer is already registered.
func (m *Matcher) RegisterConsumer(c Consumer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.consumers {
		if existing == c {
			m.logger.Warn("consumer already registered")
			return
		}
	}
	m.consumers = append(m.consumers, c)
	m.logger.Info("registered frame consumer")
}

// Run polls and distributes frames until ctx is cancelled.
func (m *Matcher) Run(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	ticker := time.NewTicker(m.pollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.matchOnce()
		}
	}
}

func (m *Matcher) matchOnce() {
	frame, ok := m.camera.GetFrame()
	if !ok {
		return
	}
	telemetry := m.telemetry.GetTelemetry()
	fwt := opmodel.FrameWithTelemetry{Frame: frame, Telemetry: telemetry}

	m.mu.Lock()
	consumers := append([]Consumer(nil), m.consumers...)
	m.mu.Unlock()

	for _, c := range consumers {
		c.Enqueue(fwt)
	}
}

// Wait blocks until Run has returned.
func (m *Matcher) Wait() { m.wg.Wait() }

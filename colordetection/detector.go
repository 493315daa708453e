// Package colordetection consumes matched frames looking for a target
// color and reports the telemetry pose of any frame for which the Detector
// reports a detection. Actual pixel analysis is out of scope;
// Detector exists so a real implementation (or a future YOLO-backed one, as
// the source system used) can be dropped in without touching the consumer
// plumbing.
package colordetection

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sentryops/operation/opmodel"
)

// PositionCallback is invoked with the pose a frame was captured at when a
// detection fires.
type PositionCallback func(pose opmodel.Pose)

// Detector inspects one frame's raw bytes and reports whether the target
// color was found.
type Detector interface {
	Detect(frame opmodel.Frame) bool
}

// NoopDetector never reports a detection. It lets the operation run
// end-to-end with a color-detection consumer wired in without a real
// vision backend available.
type NoopDetector struct{}

func (NoopDetector) Detect(opmodel.Frame) bool { return false }

// Consumer drives a Detector over a bounded stream of matched frames and
// fires a callback with the frame's telemetry position whenever the target
// color is found in it.
type Consumer struct {
	detector Detector
	queue    chan opmodel.FrameWithTelemetry
	logger   *slog.Logger

	mu       sync.Mutex
	callback PositionCallback

	wg sync.WaitGroup
}

func New(detector Detector, queueCapacity int, logger *slog.Logger) *Consumer {
	if queueCapacity <= 0 {
		queueCapacity = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		detector: detector,
		queue:    make(chan opmodel.FrameWithTelemetry, queueCapacity),
		logger:   logger,
	}
}

// SetCallback registers the callback fired on detection. It replaces any
// previously registered callback.
func (c *Consumer) SetCallback(cb PositionCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
}

// Enqueue satisfies matcher.Consumer. The queue drops the oldest pending
// frame on overflow rather than block the matcher loop.
func (c *Consumer) Enqueue(fwt opmodel.FrameWithTelemetry) {
	for {
		select {
		case c.queue <- fwt:
			return
		default:
			select {
			case <-c.queue:
			default:
			}
		}
	}
}

// Run processes queued frames until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.wg.Add(1)
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case fwt := <-c.queue:
			c.process(fwt)
		}
	}
}

func (c *Consumer) process(fwt opmodel.FrameWithTelemetry) {
	if !c.detector.Detect(fwt.Frame) {
		return
	}
	c.logger.Debug("color detected", "pose", fwt.Telemetry.Pose)
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(fwt.Telemetry.Pose)
	}
}

func (c *Consumer) Wait() { c.wg.Wait() }

package agentsim

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sentryops/operation/agent"
	"github.com/sentryops/operation/opmodel"
)

// ExplorerSimulator drives a Pattern and periodically samples its current
// position as a detected point, standing in for a real drone's camera plus
// color-detection pipeline (colordetection.Detector) without requiring any
// vision backend to run an operation end to end.
type ExplorerSimulator struct {
	agent.BaseAgent

	pattern        Pattern
	sampleInterval time.Duration
	logger         *slog.Logger

	mu       sync.Mutex
	running  bool
	current  opmodel.Point2D
	detected []opmodel.Point2D
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewExplorerSimulator(pattern Pattern, sampleInterval time.Duration, logger *slog.Logger) *ExplorerSimulator {
	if sampleInterval <= 0 {
		sampleInterval = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExplorerSimulator{pattern: pattern, sampleInterval: sampleInterval, logger: logger}
}

// StartRoutine ignores positions; an explorer searches freely rather than
// following a planned path.
func (e *ExplorerSimulator) StartRoutine([]opmodel.Point2D) {
	e.mu.Lock()
	if e.running {
		e.logger.Warn("explorer already running")
		e.mu.Unlock()
		return
	}
	e.running = true
	e.current = opmodel.Point2D{}
	e.detected = nil
	e.stopCh = make(chan struct{})
	e.mu.Unlock()

	e.pattern.Start()
	e.wg.Add(1)
	go e.sampleLoop()
	e.logger.Info("explorer started")
}

func (e *ExplorerSimulator) sampleLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.sampleInterval)
	defer ticker.Stop()

	e.mu.Lock()
	stopCh := e.stopCh
	e.mu.Unlock()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			x, y, ok := e.pattern.XY()
			if !ok {
				continue
			}
			point := opmodel.Point2D{X: x, Y: y}
			e.mu.Lock()
			e.current = point
			e.detected = append(e.detected, point)
			e.mu.Unlock()
			if err := e.FirePoint(point); err != nil {
				e.logger.Error("onPoint callback failed", "error", err)
			}
		}
	}
}

// StopRoutine stops sampling and returns every point detected since the
// last StartRoutine.
func (e *ExplorerSimulator) StopRoutine() []opmodel.Point2D {
	e.mu.Lock()
	if !e.running {
		e.logger.Warn("explorer already stopped")
		e.mu.Unlock()
		return nil
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
	e.pattern.Stop()

	e.mu.Lock()
	points := e.detected
	e.mu.Unlock()

	if err := e.FireFinish(); err != nil {
		e.logger.Error("onFinish callback failed", "error", err)
	}
	e.logger.Info("explorer stopped", "points", len(points))
	return points
}

func (e *ExplorerSimulator) GetCurrentPosition() (opmodel.Point2D, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, true
}

// GetTelemetry reports nothing: the simulated explorer has no onboard
// sensors of its own, mirroring a source drone whose own telemetry getter
// is a no-op (its position and camera feed are reported separately).
func (e *ExplorerSimulator) GetTelemetry() map[string]float64 { return nil }

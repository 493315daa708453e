package agentsim

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sentryops/operation/agent"
	"github.com/sentryops/operation/opmodel"
)

// InspectorSimulator is a simulated ground robot ("robot dog") that walks a
// planned list of waypoints in order at a constant speed, firing onPoint as
// it reaches each one within tolerance and onFinish once every waypoint has
// been visited.
type InspectorSimulator struct {
	agent.BaseAgent

	speed            float64
	tolerance        float64
	stepInterval     time.Duration
	meanTemperature  float64
	temperatureStdev float64
	logger           *slog.Logger

	mu      sync.Mutex
	running bool
	current opmodel.Point2D
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// InspectorConfig tunes an InspectorSimulator's movement and simulated
// temperature sensor.
type InspectorConfig struct {
	Speed              float64
	ReachedTolerance   float64
	StepInterval       time.Duration
	MeanTemperature    float64
	TemperatureStdDev  float64
}

func (c InspectorConfig) withDefaults() InspectorConfig {
	if c.Speed <= 0 {
		c.Speed = 0.5
	}
	if c.ReachedTolerance <= 0 {
		c.ReachedTolerance = 0.05
	}
	if c.StepInterval <= 0 {
		c.StepInterval = 100 * time.Millisecond
	}
	if c.MeanTemperature == 0 {
		c.MeanTemperature = 25.0
	}
	if c.TemperatureStdDev <= 0 {
		c.TemperatureStdDev = 5.0
	}
	return c
}

func NewInspectorSimulator(cfg InspectorConfig, logger *slog.Logger) *InspectorSimulator {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &InspectorSimulator{
		speed:            cfg.Speed,
		tolerance:        cfg.ReachedTolerance,
		stepInterval:     cfg.StepInterval,
		meanTemperature:  cfg.MeanTemperature,
		temperatureStdev: cfg.TemperatureStdDev,
		logger:           logger,
	}
}

// StartRoutine begins walking positions in order. It ignores the call if
// already running.
func (s *InspectorSimulator) StartRoutine(positions []opmodel.Point2D) {
	s.mu.Lock()
	if s.running {
		s.logger.Warn("inspector already running")
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.move(positions)
	s.logger.Info("inspector started", "waypoints", len(positions))
}

func (s *InspectorSimulator) move(waypoints []opmodel.Point2D) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.stepInterval)
	defer ticker.Stop()

	for _, target := range waypoints {
		if s.stopped() {
			break
		}
		for {
			if s.stopped() {
				break
			}
			s.mu.Lock()
			cx, cy := s.current.X, s.current.Y
			s.mu.Unlock()

			dist := math.Hypot(target.X-cx, target.Y-cy)
			if dist < s.tolerance {
				s.mu.Lock()
				s.current = target
				s.mu.Unlock()
				if err := s.FirePoint(target); err != nil {
					s.logger.Error("onPoint callback failed", "error", err)
				}
				break
			}

			step := math.Min(dist, s.speed*s.stepInterval.Seconds())
			ratio := step / dist
			nx := cx + (target.X-cx)*ratio
			ny := cy + (target.Y-cy)*ratio
			s.mu.Lock()
			s.current = opmodel.Point2D{X: nx, Y: ny}
			s.mu.Unlock()

			select {
			case <-s.stopCh:
			case <-ticker.C:
			}
		}
	}

	if err := s.FireFinish(); err != nil {
		s.logger.Error("onFinish callback failed", "error", err)
	}
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info("inspector finished all waypoints")
}

func (s *InspectorSimulator) stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// StopRoutine signals the movement goroutine to stop. An inspector has no
// points of its own to report back.
func (s *InspectorSimulator) StopRoutine() []opmodel.Point2D {
	s.mu.Lock()
	if !s.running {
		s.logger.Warn("inspector already stopped")
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("inspector stopped")
	return nil
}

func (s *InspectorSimulator) GetCurrentPosition() (opmodel.Point2D, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, true
}

// GetTelemetry reports a simulated ambient temperature sampled from a
// normal distribution, the only sensor a simulated ground robot carries.
func (s *InspectorSimulator) GetTelemetry() map[string]float64 {
	temperature := rand.NormFloat64()*s.temperatureStdev + s.meanTemperature
	return map[string]float64{"temperature": temperature}
}

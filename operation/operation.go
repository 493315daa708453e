// Package operation is the facade that composes an explorer agent, an
// inspector agent, a path planner, and every supporting subsystem (point
// registry, diagnostic event bus, metrics, health evaluation) into one
// inspection operation, mirroring the source system's OperationController.
package operation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sentryops/operation/agent"
	"github.com/sentryops/operation/config"
	"github.com/sentryops/operation/internal/health"
	"github.com/sentryops/operation/internal/pipeline"
	"github.com/sentryops/operation/internal/ratelimit"
	"github.com/sentryops/operation/internal/registry"
	"github.com/sentryops/operation/internal/telemetry/events"
	"github.com/sentryops/operation/internal/telemetry/metrics"
	"github.com/sentryops/operation/internal/telemetry/policy"
	"github.com/sentryops/operation/opmodel"
	"github.com/sentryops/operation/planner"
)

// Operation coordinates one full inspection run: N sequential missions,
// each an exploration phase handed off to an inspection phase once the
// explorer reports it finished.
type Operation struct {
	cfg           config.OperationConfig
	basePositions []opmodel.BasePosition
	logger        *slog.Logger

	registry        *registry.Registry
	eventBus        events.Bus
	metricsProvider metrics.Provider
	healthEval      *health.Evaluator
	limiter         *ratelimit.AdaptiveRateLimiter
	signals         *events.OperationSignals

	explorationDriver *pipeline.ExplorationDriver
	inspectionDriver  *pipeline.InspectionDriver
	queue             *pipeline.MissionQueue

	telemetryPolicy atomic.Pointer[policy.TelemetryPolicy]

	started    atomic.Bool
	startedAt  time.Time
	mu         sync.Mutex
	finishedAt time.Time
	status     opmodel.OperationStatus

	explorationFinished bool
	inspectionFinished  bool
	onFinished          func()
}

// New wires an Operation from its two agents, a path planner, and the
// mission base positions. Registry checkpointing and health evaluation are
// enabled according to cfg.
func New(cfg config.OperationConfig, explorer, inspector agent.Agent, p planner.PathPlanner, basePositions []opmodel.BasePosition, logger *slog.Logger) (*Operation, error) {
	if len(basePositions) == 0 {
		return nil, fmt.Errorf("operation: at least one base position is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	reg, err := registry.New(registry.Config{
		CacheCapacity:      1024,
		CheckpointPath:     cfg.CheckpointPath,
		CheckpointInterval: 2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("operation: build registry: %w", err)
	}

	metricsProvider := metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{})
	eventBus := events.NewBus(metricsProvider)
	limiter := ratelimit.NewAdaptiveRateLimiter(ratelimit.HandshakeLimitConfig{Enabled: true})
	var op *Operation
	healthEval := health.NewEvaluator(func() policy.HealthPolicy { return op.Policy().Health })

	signals := events.NewOperationSignals()
	queue := pipeline.NewMissionQueue(len(basePositions))

	explorationDriver := pipeline.NewExplorationDriver(explorer, basePositions, queue, reg, signals, cfg.DroneVisibility, logger)
	inspectionDriver := pipeline.NewInspectionDriver(inspector, p, len(basePositions), queue, reg, signals, logger)

	op = &Operation{
		cfg:               cfg,
		basePositions:     basePositions,
		logger:            logger,
		registry:          reg,
		eventBus:          eventBus,
		metricsProvider:   metricsProvider,
		healthEval:        healthEval,
		limiter:           limiter,
		signals:           signals,
		explorationDriver: explorationDriver,
		inspectionDriver:  inspectionDriver,
		queue:             queue,
		status:            opmodel.NotStarted,
	}
	normalized := cfg.Telemetry.Normalize()
	op.telemetryPolicy.Store(&normalized)

	explorationDriver.SetOnFinishAll(func() { op.onDriverFinished(true) })
	inspectionDriver.SetOnFinishAll(func() { op.onDriverFinished(false) })

	return op, nil
}

// Policy returns the currently active telemetry policy.
func (op *Operation) Policy() policy.TelemetryPolicy { return *op.telemetryPolicy.Load() }

// UpdatePolicy atomically swaps the telemetry policy, e.g. from a
// config.PolicyWatcher callback.
func (op *Operation) UpdatePolicy(p policy.TelemetryPolicy) {
	normalized := p.Normalize()
	op.telemetryPolicy.Store(&normalized)
}

// Start launches both driver goroutines and signals the first mission to
// begin, mirroring the source controller's start(): trigger_next_mission()
// is implicit in the very first StartNextExploration signal.
func (op *Operation) Start(ctx context.Context) error {
	if op.started.Swap(true) {
		return fmt.Errorf("operation: already started")
	}
	op.mu.Lock()
	op.startedAt = time.Now()
	op.status = opmodel.Running
	op.mu.Unlock()

	go op.explorationDriver.Run(ctx)
	go op.inspectionDriver.Run(ctx)

	op.logger.Info("operation started", "missions", len(op.basePositions))
	_ = op.eventBus.Publish(events.Event{Category: events.CategoryMission, Type: "operation_started"})

	op.signals.StartNextExploration.Trigger()
	return nil
}

// NextMission signals the explorer to begin its next mission. It is the
// operator-facing equivalent of the source system's next_mission(). The
// call is ignored (and logged) while an exploration phase is running or
// once the last mission has started.
func (op *Operation) NextMission() {
	if op.explorationDriver.Status() == opmodel.Running {
		op.logger.Warn("next mission ignored: exploration still running")
		return
	}
	if op.explorationDriver.CurrentMissionID() >= len(op.basePositions)-1 {
		op.logger.Warn("next mission ignored: no missions left")
		return
	}
	op.logger.Info("triggering next mission")
	op.signals.StartNextExploration.Trigger()
}

// StopInspection signals the explorer to end its current mission early.
func (op *Operation) StopInspection() {
	op.logger.Info("stopping current exploration")
	op.signals.StopExploration.Trigger()
}

// onDriverFinished is invoked by each driver once it has completed every
// mission. The operation transitions to Finished only once both have.
func (op *Operation) onDriverFinished(exploration bool) {
	op.mu.Lock()
	if exploration {
		op.explorationFinished = true
	} else {
		op.inspectionFinished = true
	}
	done := op.explorationFinished && op.inspectionFinished
	if done && op.finishedAt.IsZero() {
		op.finishedAt = time.Now()
		op.status = opmodel.Finished
	}
	cb := op.onFinished
	op.mu.Unlock()

	if done {
		op.logger.Info("operation finished")
		_ = op.eventBus.Publish(events.Event{Category: events.CategoryMission, Type: "operation_finished"})
		if cb != nil {
			cb()
		}
	}
}

// OnFinished registers a callback invoked exactly once, after both drivers
// have completed every mission.
func (op *Operation) OnFinished(cb func()) {
	op.mu.Lock()
	op.onFinished = cb
	op.mu.Unlock()
}

// Status reports the operation's coarse lifecycle state.
func (op *Operation) Status() opmodel.OperationStatus {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.status
}

// Health evaluates the operation's current diagnostic health from mission
// pacing and registry/limiter backlog.
func (op *Operation) Health() health.Status {
	samples := op.missionSamples()
	return op.healthEval.Evaluate(samples, op.registry.Backlog(), op.limiter.Snapshot().OpenCircuits)
}

func (op *Operation) missionSamples() []health.MissionSample {
	timings := op.explorationDriver.Timings
	samples := make([]health.MissionSample, 0, len(timings))
	for _, t := range timings {
		if t.Finish.IsZero() {
			continue
		}
		samples = append(samples, health.MissionSample{Duration: t.Finish.Sub(t.Start)})
	}
	return samples
}

// Registry exposes the point registry for read-only inspection (the CLI's
// status command, the metrics dump).
func (op *Operation) Registry() *registry.Registry { return op.registry }

// MetricsProvider exposes the Prometheus-backed metrics provider so the CLI
// can mount its HTTP handler.
func (op *Operation) MetricsProvider() metrics.Provider { return op.metricsProvider }

// EventBus exposes the diagnostic event bus for external subscribers.
func (op *Operation) EventBus() events.Bus { return op.eventBus }

// Close releases the operation's background resources (registry checkpoint
// writer, handshake limiter eviction loop). It does not stop the drivers;
// callers should cancel the context passed to Start first.
func (op *Operation) Close() error {
	_ = op.limiter.Close()
	return op.registry.Close()
}

// Resume loads previously checkpointed points into the registry before the
// operation starts. It does not skip any mission: every mission is still
// explored, and points detected again are inserted as new entries.
func (op *Operation) Resume(path string) error {
	points, err := registry.LoadCheckpoint(path)
	if err != nil {
		return err
	}
	op.registry.Restore(points)
	op.logger.Info("resumed from checkpoint", "points", len(points))
	return nil
}

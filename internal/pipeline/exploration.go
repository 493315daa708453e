package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sentryops/operation/agent"
	"github.com/sentryops/operation/internal/registry"
	"github.com/sentryops/operation/internal/telemetry/events"
	"github.com/sentryops/operation/opmodel"
)

// MissionTiming records a driver's start/finish timestamps for one mission,
// the raw material the operation's metrics dump reports per-mission
// durations from.
type MissionTiming struct {
	Start, Finish time.Time
}

// ExplorationDriver runs the explorer agent mission by mission: armed by
// StartNextExploration, it starts the agent, dedupes points the agent
// reports against DRONE_VISIBILITY radius, and on StopExploration hands the
// mission's points to the queue for inspection.
type ExplorationDriver struct {
	agent         agent.Agent
	basePositions []opmodel.BasePosition
	queue         *MissionQueue
	registry      *registry.Registry
	signals       *events.OperationSignals
	visibility    float64
	onFinishAll   func()
	logger        *slog.Logger

	mu                   sync.Mutex
	missionID            int
	status               opmodel.OperationStatus
	currentMissionPoints []opmodel.Point2D
	Timings              []MissionTiming
}

func NewExplorationDriver(a agent.Agent, basePositions []opmodel.BasePosition, queue *MissionQueue, reg *registry.Registry, signals *events.OperationSignals, visibility float64, logger *slog.Logger) *ExplorationDriver {
	if logger == nil {
		logger = slog.Default()
	}
	d := &ExplorationDriver{
		agent:         a,
		basePositions: basePositions,
		queue:         queue,
		registry:      reg,
		signals:       signals,
		visibility:    visibility,
		status:        opmodel.NotStarted,
		missionID:     -1,
		logger:        logger,
		Timings:       make([]MissionTiming, len(basePositions)),
	}
	a.SetCallbackOnPoint(d.onPoint)
	return d
}

// SetOnFinishAll registers the callback invoked once this driver has
// completed its final mission. The operation facade uses it to detect when
// both drivers are done.
func (d *ExplorationDriver) SetOnFinishAll(cb func()) { d.onFinishAll = cb }

func (d *ExplorationDriver) onPoint(rel opmodel.Point2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.missionID < 0 || d.missionID >= len(d.basePositions) {
		return
	}
	abs := rel.Add(d.basePositions[d.missionID])
	for _, p := range d.currentMissionPoints {
		if p.DistanceTo(abs) < d.visibility {
			return
		}
	}
	d.currentMissionPoints = append(d.currentMissionPoints, abs)
	d.registry.Insert(opmodel.MissionID(d.missionID), abs, time.Now())
}

// Run drives every mission in sequence, waiting for StartNextExploration to
// begin each one and StopExploration to end it. It returns when ctx is
// cancelled or every mission (0..len(basePositions)-1) has run exactly
// once.
func (d *ExplorationDriver) Run(ctx context.Context) {
	n := len(d.basePositions)
	for mission := 0; mission < n; mission++ {
		if !waitOrDone(ctx, d.signals.StartNextExploration) {
			return
		}
		d.signals.StartNextExploration.Clear()

		d.mu.Lock()
		d.missionID = mission
		d.status = opmodel.Running
		d.currentMissionPoints = nil
		d.mu.Unlock()
		startedAt := time.Now()

		d.agent.StartRoutine(nil)

		if !waitOrDone(ctx, d.signals.StopExploration) {
			return
		}
		d.signals.StopExploration.Clear()
		d.agent.StopRoutine()

		d.mu.Lock()
		d.status = opmodel.Finished
		finishedAt := time.Now()
		d.Timings[mission] = MissionTiming{Start: startedAt, Finish: finishedAt}
		missionPoints := d.currentMissionPoints
		d.currentMissionPoints = nil
		d.mu.Unlock()

		d.queue.Push(missionPoints)
		d.logger.Info("exploration mission complete", "mission", mission, "points", len(missionPoints))
	}
	if d.onFinishAll != nil {
		d.onFinishAll()
	}
}

func (d *ExplorationDriver) CurrentMissionID() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.missionID
}

func (d *ExplorationDriver) Status() opmodel.OperationStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// waitOrDone blocks on sig.Wait() but returns promptly (with false) if ctx
// is cancelled first.
func waitOrDone(ctx context.Context, sig interface{ Wait() }) bool {
	done := make(chan struct{})
	go func() {
		sig.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

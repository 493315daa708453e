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
	"github.com/sentryops/operation/planner"
)

// InspectionDriver dequeues each mission's points as exploration finishes
// them, plans a visiting path, drives the inspector agent along it, and
// records each point's inspection in the registry as the agent reaches it.
type InspectionDriver struct {
	agent    agent.Agent
	planner  planner.PathPlanner
	queue    *MissionQueue
	registry *registry.Registry
	signals  *events.OperationSignals
	nMissions int
	onFinishAll func()
	logger   *slog.Logger

	mu        sync.Mutex
	missionID int
	status    opmodel.OperationStatus
	Timings   []MissionTiming
}

func NewInspectionDriver(a agent.Agent, p planner.PathPlanner, nMissions int, queue *MissionQueue, reg *registry.Registry, signals *events.OperationSignals, logger *slog.Logger) *InspectionDriver {
	if logger == nil {
		logger = slog.Default()
	}
	d := &InspectionDriver{
		agent:     a,
		planner:   p,
		queue:     queue,
		registry:  reg,
		signals:   signals,
		nMissions: nMissions,
		status:    opmodel.NotStarted,
		missionID: -1,
		logger:    logger,
		Timings:   make([]MissionTiming, nMissions),
	}
	a.SetCallbackOnPoint(d.onPoint)
	a.SetCallbackOnFinish(func() { signals.InspectorDone.Trigger() })
	return d
}

func (d *InspectionDriver) SetOnFinishAll(cb func()) { d.onFinishAll = cb }

func (d *InspectionDriver) onPoint(abs opmodel.Point2D) {
	d.mu.Lock()
	mission := d.missionID
	d.mu.Unlock()
	if mission < 0 {
		return
	}
	telemetry := d.agent.GetTelemetry()
	d.registry.MarkInspected(opmodel.MissionID(mission), abs, time.Now(), telemetry)
}

// Run dequeues and inspects every mission's points in order. It returns
// when ctx is cancelled or every mission has been inspected.
func (d *InspectionDriver) Run(ctx context.Context) {
	for mission := 0; mission < d.nMissions; mission++ {
		points, ok := d.queue.Pop()
		if !ok {
			return
		}

		d.mu.Lock()
		d.missionID = mission
		d.status = opmodel.Running
		d.mu.Unlock()
		startedAt := time.Now()

		current, _ := d.agent.GetCurrentPosition()
		path := d.planner.PlanPath(current, points)
		d.agent.StartRoutine(path)

		if !waitOrDone(ctx, d.signals.InspectorDone) {
			return
		}
		d.signals.InspectorDone.Clear()
		d.agent.StopRoutine()

		d.mu.Lock()
		d.status = opmodel.Finished
		finishedAt := time.Now()
		d.Timings[mission] = MissionTiming{Start: startedAt, Finish: finishedAt}
		d.mu.Unlock()

		d.logger.Info("inspection mission complete", "mission", mission, "points", len(points))
	}
	if d.onFinishAll != nil {
		d.onFinishAll()
	}
}

func (d *InspectionDriver) CurrentMissionID() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.missionID
}

func (d *InspectionDriver) Status() opmodel.OperationStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

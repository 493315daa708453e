package operation

import (
	"time"

	"github.com/sentryops/operation/internal/health"
	"github.com/sentryops/operation/internal/ratelimit"
	"github.com/sentryops/operation/opmodel"
)

// Snapshot is a unified, read-only view of the operation's current state,
// the shape the CLI's status command and /status handler report.
type Snapshot struct {
	Status             opmodel.OperationStatus `json:"status"`
	StartedAt          time.Time               `json:"started_at"`
	Uptime             time.Duration           `json:"uptime"`
	ExplorationMission int                     `json:"exploration_mission"`
	InspectionMission  int                     `json:"inspection_mission"`
	PointsDetected     int                     `json:"points_detected"`
	PointsInspected    int                     `json:"points_inspected"`
	Health             health.Status           `json:"health"`
	Limiter            ratelimit.LimiterSnapshot `json:"limiter"`
}

// Snapshot returns the operation's current unified state.
func (op *Operation) Snapshot() Snapshot {
	op.mu.Lock()
	startedAt := op.startedAt
	status := op.status
	op.mu.Unlock()

	uptime := time.Duration(0)
	if !startedAt.IsZero() {
		uptime = time.Since(startedAt)
	}

	points := op.registry.All()
	inspected := 0
	for _, p := range points {
		if p.Inspected {
			inspected++
		}
	}

	return Snapshot{
		Status:             status,
		StartedAt:          startedAt,
		Uptime:             uptime,
		ExplorationMission: op.explorationDriver.CurrentMissionID(),
		InspectionMission:  op.inspectionDriver.CurrentMissionID(),
		PointsDetected:     len(points),
		PointsInspected:    inspected,
		Health:             op.Health(),
		Limiter:            op.limiter.Snapshot(),
	}
}

package operation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sentryops/operation/internal/pipeline"
	"github.com/sentryops/operation/opmodel"
)

// MetricsDocument is the JSON document written at the end of an operation,
// shaped after the source system's _save_metrics() output: operation-level
// timing, one entry per mission with explorer/inspector timing, and one
// entry per detected point with its lifecycle timestamps and telemetry.
type MetricsDocument struct {
	OperationStartTimestamp    *time.Time        `json:"operation_start_timestamp"`
	OperationFinishedTimestamp *time.Time        `json:"operation_finished_timestamp"`
	OperationDurationSeconds   *float64          `json:"operation_duration_seconds"`
	Status                     string            `json:"status"`
	NumberOfMissions           int               `json:"number_of_missions"`
	NumberOfPoints             int               `json:"number_of_points"`
	Missions                   []MissionRecord   `json:"missions"`
	Points                     []PointRecord     `json:"points"`
}

type MissionRecord struct {
	MissionID          int               `json:"mission_id"`
	MissionBasePosition opmodel.Point2D  `json:"mission_base_position"`
	ExplorerInfo       PhaseTiming       `json:"explorer_info"`
	InspectorInfo      PhaseTiming       `json:"inspector_info"`
}

type PhaseTiming struct {
	StartTimestamp      *time.Time `json:"start_timestamp"`
	FinishTimestamp     *time.Time `json:"finish_timestamp"`
	DurationSeconds     *float64   `json:"duration_seconds"`
	RelativeStartSeconds  *float64 `json:"relative_start_seconds"`
	RelativeFinishSeconds *float64 `json:"relative_finish_seconds"`
}

type PointRecord struct {
	Point                  opmodel.Point2D    `json:"point"`
	MissionID              opmodel.MissionID  `json:"mission_id"`
	DetectedTimestamp      *time.Time         `json:"detected_timestamp"`
	DetectedRelativeSeconds *float64          `json:"detected_relative_seconds"`
	InspectedTimestamp     *time.Time         `json:"inspected_timestamp,omitempty"`
	InspectedRelativeSeconds *float64         `json:"inspected_relative_seconds,omitempty"`
	Telemetry              map[string]float64 `json:"telemetry,omitempty"`
}

// MetricsDocument builds the full document from the operation's current
// state. It can be called before the operation finishes (missing finish
// timestamps/durations are left nil), matching how the source system only
// writes the file once but the shape tolerates partial data.
func (op *Operation) MetricsDocument() MetricsDocument {
	op.mu.Lock()
	startedAt := op.startedAt
	finishedAt := op.finishedAt
	status := op.status
	op.mu.Unlock()

	doc := MetricsDocument{
		Status:           status.String(),
		NumberOfMissions: len(op.basePositions),
	}
	if !startedAt.IsZero() {
		doc.OperationStartTimestamp = &startedAt
	}
	if !finishedAt.IsZero() {
		doc.OperationFinishedTimestamp = &finishedAt
		d := finishedAt.Sub(startedAt).Seconds()
		doc.OperationDurationSeconds = &d
	}

	for mission, base := range op.basePositions {
		rec := MissionRecord{MissionID: mission, MissionBasePosition: base}
		if mission < len(op.explorationDriver.Timings) {
			rec.ExplorerInfo = phaseTiming(op.explorationDriver.Timings[mission], startedAt)
		}
		if mission < len(op.inspectionDriver.Timings) {
			rec.InspectorInfo = phaseTiming(op.inspectionDriver.Timings[mission], startedAt)
		}
		doc.Missions = append(doc.Missions, rec)
	}

	points := op.registry.All()
	doc.NumberOfPoints = len(points)
	for _, dp := range points {
		doc.Points = append(doc.Points, pointRecord(dp, startedAt))
	}
	return doc
}

func phaseTiming(t pipeline.MissionTiming, operationStart time.Time) PhaseTiming {
	start, finish := t.Start, t.Finish
	pt := PhaseTiming{}
	if start.IsZero() {
		return pt
	}
	pt.StartTimestamp = &start
	relStart := start.Sub(operationStart).Seconds()
	pt.RelativeStartSeconds = &relStart
	if !finish.IsZero() {
		pt.FinishTimestamp = &finish
		d := finish.Sub(start).Seconds()
		pt.DurationSeconds = &d
		relFinish := finish.Sub(operationStart).Seconds()
		pt.RelativeFinishSeconds = &relFinish
	}
	return pt
}

func pointRecord(dp opmodel.DetectedPoint, operationStart time.Time) PointRecord {
	rec := PointRecord{
		Point:     dp.Position,
		MissionID: dp.Mission,
		Telemetry: dp.Telemetry,
	}
	if !dp.DetectedAt.IsZero() {
		rec.DetectedTimestamp = &dp.DetectedAt
		d := dp.DetectedAt.Sub(operationStart).Seconds()
		rec.DetectedRelativeSeconds = &d
	}
	if !dp.InspectedAt.IsZero() {
		rec.InspectedTimestamp = &dp.InspectedAt
		d := dp.InspectedAt.Sub(operationStart).Seconds()
		rec.InspectedRelativeSeconds = &d
	}
	return rec
}

// SaveMetrics writes the current MetricsDocument to dir as a timestamped
// JSON file, creating dir if needed, and returns the path written.
func (op *Operation) SaveMetrics(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create metrics output dir: %w", err)
	}
	doc := op.MetricsDocument()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}

	stamp := time.Now()
	if doc.OperationStartTimestamp != nil {
		stamp = *doc.OperationStartTimestamp
	}
	path := filepath.Join(dir, stamp.Format("2006_01_02_15_04_05")+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write metrics file: %w", err)
	}
	op.logger.Info("operation metrics saved", "path", path)
	return path, nil
}

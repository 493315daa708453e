// Package opmodel defines the shared data model for the inspection
// operation: coordinates, base stations, detected points, and the
// telemetry payloads agents report.
package opmodel

import (
	"encoding/json"
	"math"
	"time"
)

// Point2D is a planar coordinate, used both as a relative offset (as
// reported by an explorer agent) and as an absolute position (once combined
// with a mission's base station).
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the point translated by another point, typically a base
// station position.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// DistanceTo returns the Euclidean distance to another point.
func (p Point2D) DistanceTo(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// BasePosition is the absolute position of the base station a mission
// launches from.
type BasePosition = Point2D

// MissionID identifies one of the N sequential missions that make up an
// operation, 0-indexed.
type MissionID int

// OperationStatus tracks the coarse lifecycle of the operation, and of each
// driver independently.
type OperationStatus int

const (
	NotStarted OperationStatus = iota
	Running
	Finished
)

func (s OperationStatus) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case Running:
		return "RUNNING"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

func (s OperationStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// PointID is a synthetic, monotonically increasing identifier assigned to
// every detected point at insertion time. The point registry keys its
// records by PointID; only its per-mission reverse index, used to find the
// entry an inspected position belongs to, is keyed by exact coordinates.
type PointID uint64

// DetectedPoint records the full lifecycle of one point found during
// exploration and (eventually) visited during inspection.
type DetectedPoint struct {
	ID            PointID   `json:"id"`
	Position      Point2D   `json:"position"`
	Mission       MissionID `json:"mission_id"`
	Inspected     bool      `json:"inspected"`
	DetectedAt    time.Time `json:"detected_at"`
	InspectedAt   time.Time `json:"inspected_at,omitempty"`
	Telemetry     map[string]float64 `json:"telemetry,omitempty"`
}

// Orientation is a roll/pitch/yaw attitude reading.
type Orientation struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Pose combines a 3D position with an attitude.
type Pose struct {
	X, Y, Z     float64
	Orientation Orientation
}

// Battery reports the agent's power state.
type Battery struct {
	Voltage float64 `json:"voltage"`
}

// TelemetryData is the latest decoded wire state for an agent, as reported
// by telemetryingest.
type TelemetryData struct {
	Pose    Pose
	Battery Battery
	Extra   map[string]float64
}

// Frame is an opaque image-carrying payload. No pixel data is interpreted
// anywhere in this repository; it exists only to give the matcher and
// color-detection components real signatures.
type Frame struct {
	CapturedAt time.Time
	Data       []byte
}

// FrameWithTelemetry pairs a frame with the telemetry snapshot current when
// the matcher picked the frame up, the unit of work the matcher fans out to
// consumers.
type FrameWithTelemetry struct {
	Frame     Frame
	Telemetry TelemetryData
}

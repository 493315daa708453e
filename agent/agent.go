// Package agent defines the contract the operation drives both the
// explorer and the inspector through, independent of whatever hardware or
// simulation backs it.
package agent

import "github.com/sentryops/operation/opmodel"

// PointCallback is invoked by an Agent whenever it reaches or detects a
// point. An explorer reports points relative to its mission's base
// position; an inspector reports the absolute waypoints it reaches.
type PointCallback func(point opmodel.Point2D)

// FinishCallback is invoked by an Agent when its current routine ends: for
// an inspector after its last waypoint, for an explorer when StopRoutine
// ends its sweep.
type FinishCallback func()

// Agent is the contract both the explorer and the inspector satisfy. A
// concrete Agent (a real robot binding or a deterministic simulator) is
// driven entirely through this interface; the orchestrator never depends on
// a specific implementation.
type Agent interface {
	// StartRoutine begins the agent's current-mission routine. For an
	// explorer, positions is nil (it explores freely). For an inspector,
	// positions is the planned waypoint path to visit in order.
	StartRoutine(positions []opmodel.Point2D)

	// StopRoutine ends the current routine. It returns whatever points the
	// agent detected since the last StartRoutine, if applicable (an
	// explorer reports the points it found; an inspector has none to
	// report).
	StopRoutine() []opmodel.Point2D

	// GetCurrentPosition returns the agent's last known position, in the
	// same frame as the points it reports (relative to the mission base for
	// an explorer, absolute for an inspector).
	GetCurrentPosition() (opmodel.Point2D, bool)

	// GetTelemetry returns a snapshot of the agent's sensor readings keyed
	// by name (e.g. "voltage", "temperature").
	GetTelemetry() map[string]float64

	// SetCallbackOnPoint registers the callback invoked when the agent
	// reaches or detects a point.
	SetCallbackOnPoint(cb PointCallback)

	// SetCallbackOnFinish registers the callback invoked when the agent's
	// routine ends.
	SetCallbackOnFinish(cb FinishCallback)
}

// BaseAgent implements the two callback-registration methods so concrete
// Agents can embed it instead of reimplementing the bookkeeping, mirroring
// the source ARobot base class's set_callback_onPoint/set_callback_onFinish.
type BaseAgent struct {
	onPoint  PointCallback
	onFinish FinishCallback
}

func (b *BaseAgent) SetCallbackOnPoint(cb PointCallback)   { b.onPoint = cb }
func (b *BaseAgent) SetCallbackOnFinish(cb FinishCallback) { b.onFinish = cb }

// FirePoint invokes the registered onPoint callback, if any. It recovers
// from a panicking callback and returns it as an error so the caller (the
// driver) can log it instead of crashing its own goroutine.
func (b *BaseAgent) FirePoint(point opmodel.Point2D) (err error) {
	if b.onPoint == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = panicToErr(r)
		}
	}()
	b.onPoint(point)
	return nil
}

func (b *BaseAgent) FireFinish() (err error) {
	if b.onFinish == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = panicToErr(r)
		}
	}()
	b.onFinish()
	return nil
}

type panicError struct{ v any }

func (e panicError) Error() string { return "agent callback panicked" }

func panicToErr(r any) error { return panicError{v: r} }

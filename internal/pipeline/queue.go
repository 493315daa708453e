// Package pipeline runs the exploration and inspection drivers: two
// goroutines handed off mission-by-mission through a bounded queue and
// coordinated by the three control signals in internal/telemetry/events.
package pipeline

import "github.com/sentryops/operation/opmodel"

// MissionQueue is the single-producer (exploration driver), single-consumer
// (inspection driver) channel carrying one absolute point list per
// completed mission. Its capacity equals the mission count, matching the
// source system's Queue(maxsize=len(base_positions)): with one Push per
// mission, the exploration driver's Push never blocks.
type MissionQueue struct {
	ch chan []opmodel.Point2D
}

func NewMissionQueue(capacity int) *MissionQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MissionQueue{ch: make(chan []opmodel.Point2D, capacity)}
}

// Push enqueues a completed mission's points, blocking if the queue is
// full.
func (q *MissionQueue) Push(points []opmodel.Point2D) {
	q.ch <- points
}

// Pop blocks until a mission's points are available or the queue is closed,
// in which case ok is false.
func (q *MissionQueue) Pop() (points []opmodel.Point2D, ok bool) {
	points, ok = <-q.ch
	return points, ok
}

func (q *MissionQueue) Close() { close(q.ch) }

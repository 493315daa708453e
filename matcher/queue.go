package matcher

import "github.com/sentryops/operation/opmodel"

// BoundedQueue is a Consumer backed by a fixed-capacity channel that drops
// its oldest entry on overflow rather than block the matcher loop or grow
// without bound while a slow consumer catches up.
type BoundedQueue struct {
	ch chan opmodel.FrameWithTelemetry
}

func NewBoundedQueue(capacity int) *BoundedQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &BoundedQueue{ch: make(chan opmodel.FrameWithTelemetry, capacity)}
}

// Enqueue never blocks: if the queue is full it discards the oldest pending
// frame to make room for the new one.
func (q *BoundedQueue) Enqueue(fwt opmodel.FrameWithTelemetry) {
	for {
		select {
		case q.ch <- fwt:
			return
		default:
			select {
			case <-q.ch:
			default:
			}
		}
	}
}

// Dequeue returns the oldest pending frame, blocking until one is enqueued
// or done is closed.
func (q *BoundedQueue) Dequeue(done <-chan struct{}) (opmodel.FrameWithTelemetry, bool) {
	select {
	case fwt := <-q.ch:
		return fwt, true
	case <-done:
		return opmodel.FrameWithTelemetry{}, false
	}
}

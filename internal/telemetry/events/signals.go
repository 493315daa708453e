package events

import "sync"

// signal is a level-triggered, manually-reset condition: Trigger sets it,
// Wait blocks until it is set, Clear resets it. Unlike a Go channel close,
// it can be re-armed after being observed, which is exactly the semantics
// the exploration/inspection drivers need between missions.
type signal struct {
	mu  sync.Mutex
	cond *sync.Cond
	set bool
}

func newSignal() *signal {
	s := &signal{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *signal) Trigger() {
	s.mu.Lock()
	s.set = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *signal) Clear() {
	s.mu.Lock()
	s.set = false
	s.mu.Unlock()
}

// Wait blocks until the signal is set. It does not clear it; callers that
// need clear-after-wait rearm semantics must call Clear explicitly once
// they have observed the signal, per the operation's documented protocol.
func (s *signal) Wait() {
	s.mu.Lock()
	for !s.set {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// OperationSignals holds the three control signals that coordinate the
// exploration and inspection drivers across mission boundaries: the
// controller arms StartNextExploration to let the explorer begin a mission,
// the controller (or an operator) arms StopExploration to end the
// exploration phase of the current mission, and the inspection driver arms
// InspectorDone when it has finished inspecting the current mission's
// points. All three require the waiter to Clear the signal after observing
// it, so the same signal can be reused mission after mission.
type OperationSignals struct {
	StartNextExploration *signal
	StopExploration      *signal
	InspectorDone        *signal
}

func NewOperationSignals() *OperationSignals {
	return &OperationSignals{
		StartNextExploration: newSignal(),
		StopExploration:      newSignal(),
		InspectorDone:        newSignal(),
	}
}

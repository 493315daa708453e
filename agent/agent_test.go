package agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentryops/operation/agent"
	"github.com/sentryops/operation/opmodel"
)

type stubAgent struct {
	agent.BaseAgent
}

func (*stubAgent) StartRoutine([]opmodel.Point2D)              {}
func (*stubAgent) StopRoutine() []opmodel.Point2D              { return nil }
func (*stubAgent) GetCurrentPosition() (opmodel.Point2D, bool) { return opmodel.Point2D{}, true }
func (*stubAgent) GetTelemetry() map[string]float64            { return nil }

func TestBaseAgent_FirePointWithNoCallbackIsNoop(t *testing.T) {
	var a stubAgent
	assert.NoError(t, a.FirePoint(opmodel.Point2D{X: 1, Y: 1}))
}

func TestBaseAgent_FirePointInvokesRegisteredCallback(t *testing.T) {
	var a stubAgent
	var got opmodel.Point2D
	a.SetCallbackOnPoint(func(p opmodel.Point2D) { got = p })

	assert.NoError(t, a.FirePoint(opmodel.Point2D{X: 3, Y: 4}))
	assert.Equal(t, opmodel.Point2D{X: 3, Y: 4}, got)
}

func TestBaseAgent_FirePointRecoversFromPanic(t *testing.T) {
	var a stubAgent
	a.SetCallbackOnPoint(func(opmodel.Point2D) { panic("boom") })

	err := a.FirePoint(opmodel.Point2D{})
	assert.Error(t, err)
}

func TestBaseAgent_FireFinishRecoversFromPanic(t *testing.T) {
	var a stubAgent
	a.SetCallbackOnFinish(func() { panic("boom") })

	err := a.FireFinish()
	assert.Error(t, err)
}

func TestBaseAgent_FireFinishWithNoCallbackIsNoop(t *testing.T) {
	var a stubAgent
	assert.NoError(t, a.FireFinish())
}

// Agent interface compliance check, compile-time.
var _ agent.Agent = &stubAgent{}

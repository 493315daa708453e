package agentsim_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sentryops/operation/agentsim"
)

func TestSpiralPattern_InactiveBeforeStart(t *testing.T) {
	p := agentsim.NewSpiralPattern(0.3, 0.4)
	_, _, ok := p.XY()
	assert.False(t, ok)
}

func TestSpiralPattern_GrowsOutwardOverTime(t *testing.T) {
	p := agentsim.NewSpiralPattern(0.3, 0.4)
	p.Start()

	var lastR float64
	for i := 0; i < 5; i++ {
		time.Sleep(5 * time.Millisecond)
		x, y, ok := p.XY()
		assert.True(t, ok)
		r := math.Hypot(x, y)
		assert.GreaterOrEqualf(t, r, lastR-1e-9, "radius should be non-decreasing as the spiral winds outward, step %d", i)
		lastR = r
	}
}

func TestSpiralPattern_StopResetsState(t *testing.T) {
	p := agentsim.NewSpiralPattern(0.3, 0.4)
	p.Start()
	time.Sleep(10 * time.Millisecond)
	p.XY()
	p.Stop()

	_, _, ok := p.XY()
	assert.False(t, ok)

	p.Start()
	x, y, ok := p.XY()
	assert.True(t, ok)
	// Immediately after a fresh Start, theta/dt are tiny, so the point
	// should be very close to the origin, not wherever the prior run left
	// off.
	assert.Less(t, math.Hypot(x, y), 0.5)
}

func TestZigzagPattern_InactiveBeforeStart(t *testing.T) {
	p := agentsim.NewZigzagPattern(5.0, 0.5, 0.5)
	_, _, ok := p.XY()
	assert.False(t, ok)
}

func TestZigzagPattern_StaysWithinHorizontalBounds(t *testing.T) {
	p := agentsim.NewZigzagPattern(5.0, 2.0, 0.5)
	p.Start()

	for i := 0; i < 10; i++ {
		time.Sleep(5 * time.Millisecond)
		x, _, ok := p.XY()
		assert.True(t, ok)
		assert.GreaterOrEqual(t, x, -1e-9)
		assert.LessOrEqual(t, x, 5.0+1e-9)
	}
}

func TestZigzagPattern_DescendsMonotonically(t *testing.T) {
	p := agentsim.NewZigzagPattern(0.01, 5.0, 0.5)
	p.Start()

	var lastY float64
	for i := 0; i < 5; i++ {
		time.Sleep(5 * time.Millisecond)
		_, y, ok := p.XY()
		assert.True(t, ok)
		assert.GreaterOrEqualf(t, y, lastY-1e-9, "y should never decrease as sweeps accumulate, step %d", i)
		lastY = y
	}
}

func TestZigzagPattern_StopDeactivates(t *testing.T) {
	p := agentsim.NewZigzagPattern(5.0, 0.5, 0.5)
	p.Start()
	p.Stop()
	_, _, ok := p.XY()
	assert.False(t, ok)
}

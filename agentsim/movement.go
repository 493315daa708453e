// Package agentsim provides deterministic, self-contained stand-ins for a
// real explorer drone and inspector ground robot, so an operation can run
// and be tested end to end without any physical hardware attached.
package agentsim

import (
	"math"
	"sync"
	"time"
)

// Pattern generates a time-based relative (x, y) trajectory. XY reports
// ok=false whenever the pattern is not currently active, the same contract
// telemetryingest.XYProvider uses to let simulated coordinates stand in for
// a live GPS fix.
type Pattern interface {
	Start()
	Stop()
	XY() (x, y float64, ok bool)
}

// SpiralPattern traces an Archimedean spiral outward from the origin at a
// constant linear speed, recomputed from elapsed wall-clock time on every
// call the way the source simulator advances its angle incrementally
// rather than as a closed-form function of total elapsed time.
type SpiralPattern struct {
	radialGrowth float64
	linearSpeed  float64

	mu     sync.Mutex
	active bool
	lastT  time.Time
	theta  float64
}

func NewSpiralPattern(radialGrowth, linearSpeed float64) *SpiralPattern {
	return &SpiralPattern{radialGrowth: radialGrowth, linearSpeed: linearSpeed}
}

func (p *SpiralPattern) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.theta = 0
	p.lastT = time.Now()
	p.active = true
}

func (p *SpiralPattern) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	p.theta = 0
}

func (p *SpiralPattern) XY() (float64, float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return 0, 0, false
	}

	now := time.Now()
	dt := now.Sub(p.lastT).Seconds()
	p.lastT = now

	ds := p.linearSpeed * dt
	drDTheta := p.radialGrowth / (2 * math.Pi)

	r := drDTheta * p.theta
	dtheta := ds / math.Sqrt(r*r+drDTheta*drDTheta)
	p.theta += dtheta

	r = drDTheta * p.theta
	x := r * math.Cos(p.theta)
	y := r * math.Sin(p.theta)
	return x, y, true
}

// ZigzagPattern sweeps back and forth along the x-axis between 0 and
// maxHorizontal at constant speed, stepping down by verticalStep on every
// traversal. Unlike SpiralPattern it is stateless between calls: position
// is a pure function of elapsed time since Start.
type ZigzagPattern struct {
	maxHorizontal float64
	speed         float64
	verticalStep  float64

	mu      sync.Mutex
	active  bool
	startT  time.Time
}

func NewZigzagPattern(maxHorizontal, speed, verticalStep float64) *ZigzagPattern {
	return &ZigzagPattern{maxHorizontal: maxHorizontal, speed: speed, verticalStep: verticalStep}
}

func (p *ZigzagPattern) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startT = time.Now()
	p.active = true
}

func (p *ZigzagPattern) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
}

func (p *ZigzagPattern) XY() (float64, float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return 0, 0, false
	}

	dt := time.Since(p.startT).Seconds()
	distance := p.speed * dt
	sweeps := math.Floor(distance / p.maxHorizontal)
	dx := distance - sweeps*p.maxHorizontal

	x := dx
	if int64(sweeps)%2 != 0 {
		x = p.maxHorizontal - dx
	}
	y := sweeps * p.verticalStep
	return x, y, true
}

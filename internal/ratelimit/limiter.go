// Package ratelimit paces UDP telemetry handshake attempts per agent
// endpoint and trips a circuit breaker on an agent that keeps failing its
// handshake, so a single unreachable agent cannot spin its ingest goroutine
// into a tight retry loop.
package ratelimit

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("ratelimit: circuit open")

// HandshakeLimitConfig tunes the adaptive limiter. Shards must be a power of
// two; zero/invalid values fall back to 16.
type HandshakeLimitConfig struct {
	Enabled        bool
	Shards         int
	EndpointStateTTL time.Duration
}

type RateLimiter interface {
	Acquire(ctx context.Context, endpoint string) (Permit, error)
	Feedback(endpoint string, fb Feedback)
	Snapshot() LimiterSnapshot
}

type Permit interface{ Release() }

type Feedback struct {
	Success    bool
	Latency    time.Duration
	Err        error
	RetryAfter time.Duration
}

type LimiterSnapshot struct {
	TotalRequests    int64
	Throttled        int64
	Denied           int64
	OpenCircuits     int64
	HalfOpenCircuits int64
	Endpoints        []EndpointSummary
}

type EndpointSummary struct {
	Endpoint     string
	FillRate     float64
	CircuitState string
	LastActivity time.Time
}

type AdaptiveRateLimiter struct {
	cfg           HandshakeLimitConfig
	clock         Clock
	shards        []*endpointShard
	mask          uint64
	metricsMu     sync.Mutex
	metrics       LimiterSnapshot
	stopCh        chan struct{}
	evictWG       sync.WaitGroup
	evictInterval time.Duration
	stopOnce      sync.Once
}

type endpointShard struct {
	mu        sync.RWMutex
	endpoints map[string]*endpointState
}

func (l *AdaptiveRateLimiter) shardIndex(endpoint string) uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(endpoint))
	return uint64(h.Sum32()) & l.mask
}

func (l *AdaptiveRateLimiter) getOrCreateEndpointState(endpoint string) *endpointState {
	idx := l.shardIndex(endpoint)
	shard := l.shards[idx]
	shard.mu.RLock()
	state := shard.endpoints[endpoint]
	shard.mu.RUnlock()
	if state != nil {
		return state
	}
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if state = shard.endpoints[endpoint]; state == nil {
		state = newEndpointState(l.clock.Now())
		shard.endpoints[endpoint] = state
	}
	return state
}

func (l *AdaptiveRateLimiter) withMetrics(mutator func(*LimiterSnapshot)) {
	l.metricsMu.Lock()
	mutator(&l.metrics)
	l.metricsMu.Unlock()
}

func NewAdaptiveRateLimiter(cfg HandshakeLimitConfig) *AdaptiveRateLimiter {
	if cfg.Shards <= 0 || (cfg.Shards&(cfg.Shards-1)) != 0 {
		cfg.Shards = 16
	}
	if cfg.EndpointStateTTL <= 0 {
		cfg.EndpointStateTTL = 2 * time.Minute
	}
	shards := make([]*endpointShard, cfg.Shards)
	for i := range shards {
		shards[i] = &endpointShard{endpoints: make(map[string]*endpointState)}
	}
	interval := cfg.EndpointStateTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	limiter := &AdaptiveRateLimiter{cfg: cfg, clock: realClock{}, shards: shards, mask: uint64(cfg.Shards - 1), stopCh: make(chan struct{}), evictInterval: interval}
	limiter.startEvictionLoop()
	return limiter
}

func (l *AdaptiveRateLimiter) WithClock(clock Clock) *AdaptiveRateLimiter {
	if clock != nil {
		l.clock = clock
	}
	return l
}

func (l *AdaptiveRateLimiter) Acquire(ctx context.Context, endpoint string) (Permit, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.cfg.Enabled {
		return immediatePermit{}, nil
	}
	normalized, err := normalizeEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	state := l.getOrCreateEndpointState(normalized)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		now := l.clock.Now()
		wait, err := state.planAttempt(now)
		if err != nil {
			if errors.Is(err, ErrCircuitOpen) {
				l.withMetrics(func(m *LimiterSnapshot) { m.Denied++ })
			}
			return nil, err
		}
		if wait <= 0 {
			l.withMetrics(func(m *LimiterSnapshot) { m.TotalRequests++ })
			return immediatePermit{}, nil
		}
		l.withMetrics(func(m *LimiterSnapshot) { m.Throttled++ })
		if !sleepWithContext(ctx, l.clock, wait) {
			return nil, ctx.Err()
		}
	}
}

func (l *AdaptiveRateLimiter) Feedback(endpoint string, fb Feedback) {
	if !l.cfg.Enabled {
		return
	}
	normalized, err := normalizeEndpoint(endpoint)
	if err != nil {
		return
	}
	state := l.getOrCreateEndpointState(normalized)
	state.applyFeedback(fb, l.clock.Now())
}

func (l *AdaptiveRateLimiter) Snapshot() LimiterSnapshot {
	base := func() LimiterSnapshot { l.metricsMu.Lock(); defer l.metricsMu.Unlock(); return l.metrics }()
	var open, halfOpen int64
	var endpoints []EndpointSummary
	for _, shard := range l.shards {
		shard.mu.RLock()
		for name, state := range shard.endpoints {
			state.mu.Lock()
			cs := "closed"
			switch state.breaker.state {
			case circuitOpen:
				cs = "open"
				open++
			case circuitHalfOpen:
				cs = "half-open"
				halfOpen++
			}
			endpoints = append(endpoints, EndpointSummary{Endpoint: name, FillRate: state.fillRate, CircuitState: cs, LastActivity: state.lastActivity})
			state.mu.Unlock()
		}
		shard.mu.RUnlock()
	}
	if len(endpoints) > 1 {
		for i := 1; i < len(endpoints); i++ {
			j := i
			for j > 0 && endpoints[j-1].LastActivity.Before(endpoints[j].LastActivity) {
				endpoints[j-1], endpoints[j] = endpoints[j], endpoints[j-1]
				j--
			}
		}
	}
	if len(endpoints) > 10 {
		endpoints = append([]EndpointSummary(nil), endpoints[:10]...)
	}
	base.Endpoints = endpoints
	base.OpenCircuits = open
	base.HalfOpenCircuits = halfOpen
	return base
}

type immediatePermit struct{}

func (immediatePermit) Release() {}

func (l *AdaptiveRateLimiter) startEvictionLoop() { l.evictWG.Add(1); go l.evictLoop() }
func (l *AdaptiveRateLimiter) evictLoop() {
	defer l.evictWG.Done()
	ticker := time.NewTicker(l.evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdleEndpoints()
		case <-l.stopCh:
			return
		}
	}
}

func (l *AdaptiveRateLimiter) evictIdleEndpoints() {
	ttl := l.cfg.EndpointStateTTL
	if ttl <= 0 {
		return
	}
	now := l.clock.Now()
	for _, shard := range l.shards {
		shard.mu.Lock()
		for endpoint, state := range shard.endpoints {
			state.mu.Lock()
			idle := now.Sub(state.lastActivity)
			state.mu.Unlock()
			if idle >= ttl {
				delete(shard.endpoints, endpoint)
			}
		}
		shard.mu.Unlock()
	}
}

func (l *AdaptiveRateLimiter) Close() error {
	l.stopOnce.Do(func() { close(l.stopCh); l.evictWG.Wait() })
	return nil
}

func sleepWithContext(ctx context.Context, clock Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	if ctx == nil {
		clock.Sleep(d)
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

const (
	circuitClosed = iota
	circuitOpen
	circuitHalfOpen
)

type breakerState struct {
	state       int
	nextAttempt time.Time
	failures    int
	successes   int
}

// endpointState tracks a token-bucket retry pace plus a circuit breaker for
// one agent endpoint.
type endpointState struct {
	mu           sync.Mutex
	lastActivity time.Time
	fillRate     float64
	breaker      breakerState
	tokens       float64
	lastRefill   time.Time
}

func newEndpointState(now time.Time) *endpointState {
	return &endpointState{lastActivity: now, fillRate: 1, tokens: 1, lastRefill: now}
}

func (d *endpointState) planAttempt(now time.Time) (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastActivity = now
	if d.breaker.state == circuitOpen {
		if now.After(d.breaker.nextAttempt) {
			d.breaker.state = circuitHalfOpen
		} else {
			return 0, ErrCircuitOpen
		}
	}
	elapsed := now.Sub(d.lastRefill).Seconds()
	if elapsed > 0 {
		d.tokens += elapsed * d.fillRate
		if d.tokens > 10 {
			d.tokens = 10
		}
		d.lastRefill = now
	}
	if d.tokens >= 1 {
		d.tokens -= 1
		return 0, nil
	}
	waitSeconds := (1 - d.tokens) / math.Max(d.fillRate, 0.1)
	return time.Duration(waitSeconds * float64(time.Second)), nil
}

func (d *endpointState) applyFeedback(fb Feedback, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastActivity = now
	if fb.Err != nil || !fb.Success {
		d.fillRate *= 0.8
		if d.fillRate < 0.1 {
			d.fillRate = 0.1
		}
		d.breaker.failures++
	} else {
		d.fillRate *= 1.05
		if d.fillRate > 5 {
			d.fillRate = 5
		}
		if d.breaker.state == circuitHalfOpen {
			d.breaker.successes++
		}
	}
	if d.breaker.state == circuitHalfOpen {
		if d.breaker.successes >= 3 {
			d.breaker = breakerState{state: circuitClosed}
		}
		if d.breaker.failures > 0 {
			d.breaker = breakerState{state: circuitOpen, nextAttempt: now.Add(time.Second)}
		}
	} else if d.breaker.state == circuitClosed && d.breaker.failures >= 5 {
		d.breaker = breakerState{state: circuitOpen, nextAttempt: now.Add(time.Second * 5)}
	}
}

package ratelimit_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryops/operation/internal/ratelimit"
)

// fakeClock is a manually-advanced Clock so token-bucket pacing and circuit
// breaker backoffs can be tested without real sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(0, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestAcquire_DisabledReturnsImmediatePermit(t *testing.T) {
	l := ratelimit.NewAdaptiveRateLimiter(ratelimit.HandshakeLimitConfig{Enabled: false})
	defer l.Close()

	permit, err := l.Acquire(context.Background(), "agent-1:9000")
	require.NoError(t, err)
	permit.Release()

	snap := l.Snapshot()
	assert.Zero(t, snap.TotalRequests)
}

func TestAcquire_FirstRequestIsImmediate(t *testing.T) {
	l := ratelimit.NewAdaptiveRateLimiter(ratelimit.HandshakeLimitConfig{Enabled: true})
	defer l.Close()

	_, err := l.Acquire(context.Background(), "agent-1:9000")
	require.NoError(t, err)

	snap := l.Snapshot()
	assert.Equal(t, int64(1), snap.TotalRequests)
}

func TestAcquire_ExhaustedBucketBlocksUntilDeadline(t *testing.T) {
	l := ratelimit.NewAdaptiveRateLimiter(ratelimit.HandshakeLimitConfig{Enabled: true})
	defer l.Close()

	endpoint := "agent-2:9000"
	_, err := l.Acquire(context.Background(), endpoint)
	require.NoError(t, err)

	// The bucket starts with a single token and a fill rate of 1/sec, so a
	// second immediate attempt has to wait roughly a second for a token.
	// Bound the wait with a short deadline instead of sleeping it out.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, endpoint)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	snap := l.Snapshot()
	assert.GreaterOrEqual(t, snap.Throttled, int64(1))
}

func TestAcquire_RespectsContextCancellation(t *testing.T) {
	l := ratelimit.NewAdaptiveRateLimiter(ratelimit.HandshakeLimitConfig{Enabled: true})
	defer l.Close()

	endpoint := "agent-3:9000"
	_, err := l.Acquire(context.Background(), endpoint)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = l.Acquire(ctx, endpoint)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFeedback_FiveConsecutiveFailuresOpenCircuit(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewAdaptiveRateLimiter(ratelimit.HandshakeLimitConfig{Enabled: true}).WithClock(clock)
	defer l.Close()

	endpoint := "agent-4:9000"
	_, err := l.Acquire(context.Background(), endpoint)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		l.Feedback(endpoint, ratelimit.Feedback{Success: false, Err: errors.New("timeout")})
	}

	_, err = l.Acquire(context.Background(), endpoint)
	assert.ErrorIs(t, err, ratelimit.ErrCircuitOpen)

	snap := l.Snapshot()
	assert.Equal(t, int64(1), snap.OpenCircuits)
}

func TestFeedback_HalfOpenClosesAfterThreeSuccesses(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewAdaptiveRateLimiter(ratelimit.HandshakeLimitConfig{Enabled: true}).WithClock(clock)
	defer l.Close()

	endpoint := "agent-5:9000"
	_, err := l.Acquire(context.Background(), endpoint)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		l.Feedback(endpoint, ratelimit.Feedback{Success: false, Err: errors.New("timeout")})
	}
	_, err = l.Acquire(context.Background(), endpoint)
	require.ErrorIs(t, err, ratelimit.ErrCircuitOpen)

	// Advance past the breaker's backoff window so the next Acquire probes
	// the endpoint again in the half-open state.
	clock.Advance(6 * time.Second)
	_, err = l.Acquire(context.Background(), endpoint)
	require.NoError(t, err)

	snap := l.Snapshot()
	require.Len(t, snap.Endpoints, 1)
	assert.Equal(t, "half-open", snap.Endpoints[0].CircuitState)

	l.Feedback(endpoint, ratelimit.Feedback{Success: true})
	l.Feedback(endpoint, ratelimit.Feedback{Success: true})
	l.Feedback(endpoint, ratelimit.Feedback{Success: true})

	snap = l.Snapshot()
	require.Len(t, snap.Endpoints, 1)
	assert.Equal(t, "closed", snap.Endpoints[0].CircuitState)
	assert.Equal(t, int64(0), snap.OpenCircuits)
	assert.Equal(t, int64(0), snap.HalfOpenCircuits)
}

func TestFeedback_HalfOpenFailureReopensCircuit(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewAdaptiveRateLimiter(ratelimit.HandshakeLimitConfig{Enabled: true}).WithClock(clock)
	defer l.Close()

	endpoint := "agent-6:9000"
	_, err := l.Acquire(context.Background(), endpoint)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		l.Feedback(endpoint, ratelimit.Feedback{Success: false, Err: errors.New("timeout")})
	}
	_, err = l.Acquire(context.Background(), endpoint)
	require.ErrorIs(t, err, ratelimit.ErrCircuitOpen)

	clock.Advance(6 * time.Second)
	_, err = l.Acquire(context.Background(), endpoint)
	require.NoError(t, err)

	l.Feedback(endpoint, ratelimit.Feedback{Success: false, Err: errors.New("still failing")})

	snap := l.Snapshot()
	require.Len(t, snap.Endpoints, 1)
	assert.Equal(t, "open", snap.Endpoints[0].CircuitState)
	assert.Equal(t, int64(1), snap.OpenCircuits)
}

func TestNormalizeEndpoint_CaseInsensitiveSharesEndpointState(t *testing.T) {
	l := ratelimit.NewAdaptiveRateLimiter(ratelimit.HandshakeLimitConfig{Enabled: true})
	defer l.Close()

	_, err := l.Acquire(context.Background(), "Agent-7:9000")
	require.NoError(t, err)

	// The bucket had only a single token, consumed by the first request, so
	// the differently-cased request for the same endpoint must be throttled
	// rather than get a free token of its own.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "AGENT-7:9000")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	snap := l.Snapshot()
	require.Len(t, snap.Endpoints, 1, "both casings must map to one endpoint state")
	assert.GreaterOrEqual(t, snap.Throttled, int64(1))
}

func TestSnapshot_CapsEndpointListAtTen(t *testing.T) {
	l := ratelimit.NewAdaptiveRateLimiter(ratelimit.HandshakeLimitConfig{Enabled: true, Shards: 4})
	defer l.Close()

	for i := 0; i < 15; i++ {
		endpoint := fmt.Sprintf("agent-%d:9000", i)
		_, err := l.Acquire(context.Background(), endpoint)
		require.NoError(t, err)
	}

	snap := l.Snapshot()
	assert.Len(t, snap.Endpoints, 10)
}

func TestClose_IsIdempotent(t *testing.T) {
	l := ratelimit.NewAdaptiveRateLimiter(ratelimit.HandshakeLimitConfig{Enabled: true})
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}

func TestNewAdaptiveRateLimiter_NonPowerOfTwoShardsFallsBackToDefault(t *testing.T) {
	l := ratelimit.NewAdaptiveRateLimiter(ratelimit.HandshakeLimitConfig{Enabled: true, Shards: 3})
	defer l.Close()

	_, err := l.Acquire(context.Background(), "agent-8:9000")
	assert.NoError(t, err)
}

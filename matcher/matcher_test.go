package matcher_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryops/operation/matcher"
	"github.com/sentryops/operation/opmodel"
)

type fakeCamera struct {
	mu     sync.Mutex
	frames []opmodel.Frame
}

func (c *fakeCamera) GetFrame() (opmodel.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return opmodel.Frame{}, false
	}
	f := c.frames[0]
	c.frames = c.frames[1:]
	return f, true
}

type fakeTelemetry struct {
	data opmodel.TelemetryData
}

func (t fakeTelemetry) GetTelemetry() opmodel.TelemetryData { return t.data }

type recordingConsumer struct {
	mu       sync.Mutex
	received []opmodel.FrameWithTelemetry
}

func (c *recordingConsumer) Enqueue(fwt opmodel.FrameWithTelemetry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, fwt)
}

func (c *recordingConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func TestMatcher_DistributesFramesToConsumers(t *testing.T) {
	camera := &fakeCamera{frames: []opmodel.Frame{{Data: []byte("a")}}}
	telemetry := fakeTelemetry{data: opmodel.TelemetryData{Battery: opmodel.Battery{Voltage: 11}}}
	m := matcher.New(telemetry, camera, 5*time.Millisecond, nil)

	consumer := &recordingConsumer{}
	m.RegisterConsumer(consumer)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	assert.Eventually(t, func() bool { return consumer.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	m.Wait()

	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	require.Len(t, consumer.received, 1)
	assert.Equal(t, []byte("a"), consumer.received[0].Frame.Data)
	assert.Equal(t, 11.0, consumer.received[0].Telemetry.Battery.Voltage)
}

func TestMatcher_NoFrameSkipsDistribution(t *testing.T) {
	camera := &fakeCamera{}
	m := matcher.New(fakeTelemetry{}, camera, 5*time.Millisecond, nil)
	consumer := &recordingConsumer{}
	m.RegisterConsumer(consumer)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()
	m.Wait()

	assert.Equal(t, 0, consumer.count())
}

func TestMatcher_RegisterSameConsumerTwiceIsNoop(t *testing.T) {
	camera := &fakeCamera{frames: []opmodel.Frame{{Data: []byte("x")}}}
	m := matcher.New(fakeTelemetry{}, camera, 5*time.Millisecond, nil)
	consumer := &recordingConsumer{}
	m.RegisterConsumer(consumer)
	m.RegisterConsumer(consumer)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	assert.Eventually(t, func() bool { return consumer.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	m.Wait()

	assert.Equal(t, 1, consumer.count(), "a consumer registered twice still only receives each frame once")
}

func TestBoundedQueue_DropsOldestOnOverflow(t *testing.T) {
	q := matcher.NewBoundedQueue(1)
	q.Enqueue(opmodel.FrameWithTelemetry{Frame: opmodel.Frame{Data: []byte("first")}})
	q.Enqueue(opmodel.FrameWithTelemetry{Frame: opmodel.Frame{Data: []byte("second")}})

	done := make(chan struct{})
	fwt, ok := q.Dequeue(done)
	require.True(t, ok)
	assert.Equal(t, []byte("second"), fwt.Frame.Data)
}

func TestBoundedQueue_DequeueUnblocksOnDone(t *testing.T) {
	q := matcher.NewBoundedQueue(1)
	done := make(chan struct{})
	resultCh := make(chan bool)
	go func() {
		_, ok := q.Dequeue(done)
		resultCh <- ok
	}()

	close(done)
	select {
	case ok := <-resultCh:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Dequeue never unblocked on done")
	}
}

func TestBoundedQueue_ZeroCapacityDefaultsToOne(t *testing.T) {
	q := matcher.NewBoundedQueue(0)
	q.Enqueue(opmodel.FrameWithTelemetry{Frame: opmodel.Frame{Data: []byte("only")}})
	done := make(chan struct{})
	fwt, ok := q.Dequeue(done)
	require.True(t, ok)
	assert.Equal(t, []byte("only"), fwt.Frame.Data)
}

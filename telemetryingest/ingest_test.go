package telemetryingest_test

import (
	"context"
	"encoding/binary"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryops/operation/telemetryingest"
)

func float32Bytes(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

// fakeAgentSocket binds an ephemeral UDP port standing in for the agent's
// own handshake listener, so the test can both receive the listener's
// handshake and send telemetry packets back to it.
func fakeAgentSocket(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestListener_ReceivesHandshakeAndDecodesPackets(t *testing.T) {
	agent := fakeAgentSocket(t)

	cfg := telemetryingest.Config{
		AgentAddr:           agent.LocalAddr().String(),
		LocalPort:           0,
		HandshakeRetries:    1,
		HandshakeRetryDelay: 10 * time.Millisecond,
		ReadTimeout:         20 * time.Millisecond,
	}
	listener := telemetryingest.New(cfg, nil, nil, nil)
	require.NoError(t, listener.Start(context.Background()))
	defer listener.Stop()

	buf := make([]byte, 64)
	require.NoError(t, agent.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, remote, err := agent.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, telemetryingest.HandshakePacket, buf[:n])

	battery := append([]byte{telemetryingest.PacketIDBattery}, float32Bytes(12.3)...)
	_, err = agent.WriteToUDP(battery, remote)
	require.NoError(t, err)

	pose := []byte{telemetryingest.PacketIDPose}
	for _, v := range []float32{1, 2, 3, 0, 0, 0} {
		pose = append(pose, float32Bytes(v)...)
	}
	_, err = agent.WriteToUDP(pose, remote)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		snap := listener.GetTelemetry()
		return snap.Battery.Voltage > 0 && snap.Pose.X > 0
	}, time.Second, 10*time.Millisecond)

	snap := listener.GetTelemetry()
	assert.InDelta(t, 12.3, snap.Battery.Voltage, 0.01)
	assert.InDelta(t, 1, snap.Pose.X, 0.01)
	assert.InDelta(t, 2, snap.Pose.Y, 0.01)
	assert.InDelta(t, 3, snap.Pose.Z, 0.01)
}

func TestListener_DoubleStartIsNoop(t *testing.T) {
	agent := fakeAgentSocket(t)
	cfg := telemetryingest.Config{AgentAddr: agent.LocalAddr().String(), HandshakeRetries: 1}
	listener := telemetryingest.New(cfg, nil, nil, nil)
	require.NoError(t, listener.Start(context.Background()))
	defer listener.Stop()
	require.NoError(t, listener.Start(context.Background()))
}

func TestListener_StopIsIdempotentWithoutStart(t *testing.T) {
	cfg := telemetryingest.Config{AgentAddr: "127.0.0.1:0"}
	listener := telemetryingest.New(cfg, nil, nil, nil)
	listener.Stop()
}

type fakeXYProvider struct {
	x, y float64
	ok   bool
}

func (p fakeXYProvider) XY() (float64, float64, bool) { return p.x, p.y, p.ok }

func TestListener_SimulatorOverridesXYButNotZOrOrientation(t *testing.T) {
	agent := fakeAgentSocket(t)
	sim := fakeXYProvider{x: 42, y: 99, ok: true}

	cfg := telemetryingest.Config{
		AgentAddr:           agent.LocalAddr().String(),
		HandshakeRetries:    1,
		HandshakeRetryDelay: 10 * time.Millisecond,
		ReadTimeout:         20 * time.Millisecond,
	}
	listener := telemetryingest.New(cfg, nil, sim, nil)
	require.NoError(t, listener.Start(context.Background()))
	defer listener.Stop()

	buf := make([]byte, 64)
	require.NoError(t, agent.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, remote, err := agent.ReadFromUDP(buf)
	require.NoError(t, err)

	pose := []byte{telemetryingest.PacketIDPose}
	for _, v := range []float32{1, 2, 3, 0.5, 0, 0} {
		pose = append(pose, float32Bytes(v)...)
	}
	_, err = agent.WriteToUDP(pose, remote)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		snap := listener.GetTelemetry()
		return snap.Pose.Z > 0
	}, time.Second, 10*time.Millisecond)

	snap := listener.GetTelemetry()
	assert.InDelta(t, 42, snap.Pose.X, 0.01)
	assert.InDelta(t, 99, snap.Pose.Y, 0.01)
	assert.InDelta(t, 3, snap.Pose.Z, 0.01)
	assert.InDelta(t, 0.5, snap.Pose.Orientation.Roll, 0.01)
}

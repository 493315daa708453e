// Package telemetryingest runs the UDP listener that receives an agent's
// live telemetry stream: a handshake to start the stream, then battery and
// pose packets decoded into a thread-safe snapshot any caller can read with
// GetTelemetry.
package telemetryingest

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sentryops/operation/internal/ratelimit"
	"github.com/sentryops/operation/opmodel"
)

// XYProvider lets a movement simulator override the x/y position reported
// in telemetry while z and orientation keep flowing from the wire, matching
// how a simulated explorer substitutes its own planned coordinates for a
// real drone's GPS fix.
type XYProvider interface {
	XY() (x, y float64, ok bool)
}

// Config configures a Listener.
type Config struct {
	AgentAddr           string // "ip:port" the agent's handshake listener is on
	LocalPort           int
	BufferSize          int
	ReadTimeout         time.Duration
	HandshakeRetries    int
	HandshakeRetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 128
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 500 * time.Millisecond
	}
	if c.HandshakeRetries <= 0 {
		c.HandshakeRetries = 1
	}
	if c.HandshakeRetryDelay <= 0 {
		c.HandshakeRetryDelay = 500 * time.Millisecond
	}
	return c
}

// Listener receives UDP telemetry packets in a background goroutine and
// maintains the latest snapshot.
type Listener struct {
	cfg       Config
	limiter   *ratelimit.AdaptiveRateLimiter
	simulator XYProvider
	logger    *slog.Logger

	mu        sync.RWMutex
	telemetry opmodel.TelemetryData

	running atomic.Bool
	conn    *net.UDPConn
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New constructs an idle Listener. simulator may be nil; limiter may be nil,
// in which case handshake attempts are never paced or tripped.
func New(cfg Config, limiter *ratelimit.AdaptiveRateLimiter, simulator XYProvider, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		cfg:       cfg.withDefaults(),
		limiter:   limiter,
		simulator: simulator,
		logger:    logger,
	}
}

// Start binds the local UDP socket, sends the handshake, and begins
// receiving packets in a background goroutine. It returns once the socket
// is bound; handshake retries happen asynchronously.
func (l *Listener) Start(ctx context.Context) error {
	if l.running.Swap(true) {
		l.logger.Warn("telemetry listener already running")
		return nil
	}

	addr := &net.UDPAddr{IP: net.IPv4zero, Port: l.cfg.LocalPort}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		l.running.Store(false)
		return fmt.Errorf("telemetryingest: listen udp: %w", err)
	}
	_ = conn.SetReadBuffer(l.cfg.BufferSize)

	l.conn = conn
	l.stopCh = make(chan struct{})
	l.logger.Info("telemetry listener started", "local_port", l.cfg.LocalPort)

	l.wg.Add(1)
	go l.handshakeLoop(ctx)
	l.wg.Add(1)
	go l.listen()
	return nil
}

// Stop signals the background goroutines to terminate and closes the
// socket. It returns once both have exited or after a one-second grace
// period, whichever comes first.
func (l *Listener) Stop() {
	if !l.running.Swap(false) {
		return
	}
	close(l.stopCh)
	if l.conn != nil {
		_ = l.conn.Close()
	}

	done := make(chan struct{})
	go func() { l.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		l.logger.Warn("telemetry listener did not stop in time")
	}
	l.logger.Info("telemetry listener stopped")
}

func (l *Listener) handshakeLoop(ctx context.Context) {
	defer l.wg.Done()
	remote, err := net.ResolveUDPAddr("udp", l.cfg.AgentAddr)
	if err != nil {
		l.logger.Error("resolving agent address", "error", err)
		return
	}
	for i := 0; i < l.cfg.HandshakeRetries; i++ {
		if l.limiter != nil {
			permit, err := l.limiter.Acquire(ctx, l.cfg.AgentAddr)
			if err != nil {
				l.logger.Warn("handshake limiter denied attempt", "error", err)
				return
			}
			l.sendHandshake(remote)
			permit.Release()
			l.limiter.Feedback(l.cfg.AgentAddr, ratelimit.Feedback{Success: true})
		} else {
			l.sendHandshake(remote)
		}
		select {
		case <-time.After(l.cfg.HandshakeRetryDelay):
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (l *Listener) sendHandshake(remote *net.UDPAddr) {
	l.logger.Info("sending handshake", "agent_addr", remote.String())
	if _, err := l.conn.WriteToUDP(HandshakePacket, remote); err != nil {
		l.logger.Error("sending handshake", "error", err)
		if l.limiter != nil {
			l.limiter.Feedback(l.cfg.AgentAddr, ratelimit.Feedback{Success: false, Err: err})
		}
	}
}

func (l *Listener) listen() {
	defer l.wg.Done()
	buf := make([]byte, l.cfg.BufferSize)
	for {
		_ = l.conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.stopCh:
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			l.logger.Error("telemetry socket error", "error", err)
			return
		}
		if n == 0 {
			continue
		}
		l.handlePacket(buf[:n])
	}
}

func (l *Listener) handlePacket(raw []byte) {
	id, battery, pose, err := decodePacket(raw)
	if err != nil {
		l.logger.Warn("dropping malformed telemetry packet", "packet_id", id, "error", err)
		return
	}
	switch id {
	case PacketIDBattery:
		l.mu.Lock()
		l.telemetry.Battery = opmodel.Battery{Voltage: battery.Voltage}
		l.mu.Unlock()
	case PacketIDPose:
		l.mu.Lock()
		l.telemetry.Pose = opmodel.Pose{
			X: pose.X, Y: pose.Y, Z: pose.Z,
			Orientation: opmodel.Orientation{Roll: pose.Roll, Pitch: pose.Pitch, Yaw: pose.Yaw},
		}
		l.mu.Unlock()
	}
}

// GetTelemetry returns a snapshot of the latest telemetry. If a simulator is
// set and currently providing a position, its x/y replace the wire values
// while z and orientation carry over unchanged.
func (l *Listener) GetTelemetry() opmodel.TelemetryData {
	l.mu.RLock()
	snapshot := l.telemetry
	l.mu.RUnlock()

	if l.simulator != nil {
		if x, y, ok := l.simulator.XY(); ok {
			snapshot.Pose.X = x
			snapshot.Pose.Y = y
		}
	}
	return snapshot
}

package telemetryingest

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Packet IDs for the UDP telemetry wire format. Every packet is the ID byte
// followed by a little-endian float32 payload.
const (
	PacketIDBattery byte = 0x01
	PacketIDPose    byte = 0x02
)

// HandshakePacket is sent to the endpoint to start its telemetry stream.
var HandshakePacket = []byte{0x01, 0x01}

const (
	batteryPayloadLen = 4      // one float32: voltage
	posePayloadLen    = 6 * 4  // six float32: x, y, z, roll, pitch, yaw
)

// BatteryPacket is the decoded payload of a PacketIDBattery packet.
type BatteryPacket struct {
	Voltage float64
}

// PosePacket is the decoded payload of a PacketIDPose packet.
type PosePacket struct {
	X, Y, Z             float64
	Roll, Pitch, Yaw    float64
}

// decodePacket dispatches on the leading ID byte and decodes the remaining
// payload. It returns an error for packets too short to contain an ID byte,
// an unknown ID, or a payload shorter than the ID requires; callers log and
// drop rather than propagate, matching the source listener's tolerance of
// malformed packets on the wire.
func decodePacket(raw []byte) (id byte, battery *BatteryPacket, pose *PosePacket, err error) {
	if len(raw) < 1 {
		return 0, nil, nil, fmt.Errorf("empty packet")
	}
	id = raw[0]
	payload := raw[1:]

	switch id {
	case PacketIDBattery:
		if len(payload) < batteryPayloadLen {
			return id, nil, nil, fmt.Errorf("battery payload too short (%d bytes, expected %d)", len(payload), batteryPayloadLen)
		}
		voltage := math.Float32frombits(binary.LittleEndian.Uint32(payload[0:4]))
		return id, &BatteryPacket{Voltage: float64(voltage)}, nil, nil
	case PacketIDPose:
		if len(payload) < posePayloadLen {
			return id, nil, nil, fmt.Errorf("pose payload too short (%d bytes, expected %d)", len(payload), posePayloadLen)
		}
		vals := make([]float32, 6)
		for i := range vals {
			vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4 : i*4+4]))
		}
		return id, nil, &PosePacket{
			X: float64(vals[0]), Y: float64(vals[1]), Z: float64(vals[2]),
			Roll: float64(vals[3]), Pitch: float64(vals[4]), Yaw: float64(vals[5]),
		}, nil
	default:
		return id, nil, nil, fmt.Errorf("unknown packet id 0x%02x", id)
	}
}

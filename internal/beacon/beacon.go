// Package beacon builds the packed 46-byte beacon frame: a
// fixed-cadence summary of mode, power, attitude and link health, transmittable without any ground command.
package beacon

import (
	"sync"

	"github.com/octoreflex/fswsupervisor/internal/ccsds"
	"github.com/octoreflex/fswsupervisor/internal/mode"
)

// FrameSize is the fixed wire size of a beacon frame.
const FrameSize = 46

// EmergencyCode is a bit position in the emergency bitmask frame.
type EmergencyCode uint8

const (
	EmergencyLowPower EmergencyCode = iota
	EmergencyFdirCascade
	EmergencyCommLoss
	EmergencyThermalLimit
)

// minIntervalS and maxIntervalS bound the rate-limit setter.
const (
	minIntervalS = 1
	maxIntervalS = 300
)

// Fields is the decoded content of one beacon frame. Quat is
// a wxyz quaternion in Q15 fixed point; Temps is ordered
// obc/bat/comms/payload.
type Fields struct {
	Callsign      [8]byte
	FrameVersion  uint8
	Sequence      uint16
	UptimeS       uint32
	Mode          mode.SystemMode
	HealthFlags   uint8
	ResetCount    uint8
	FaultFlags    uint8
	BatMv         uint16
	BatMa         int16
	BatSocPercent uint8
	BatTempC      int8
	SolarMw       uint16
	Quat          [4]int16
	Temps         [4]int8
	RssiDbm       int8
	Rx24h         uint8
	Tx24h         uint8
	LinkMarginDb  uint8
}

// Generator owns the beacon sequence counter and transmit cadence.
// Cadence depends on mode: Nominal 30s, Safe 10s,
// Recovery 5s; any mode not named defaults to Nominal's cadence.
type Generator struct {
	mu        sync.Mutex
	callsign  [8]byte
	sequence  uint16
	intervalS uint32
}

// New creates a Generator tagged with callsign (truncated/zero-padded
// to 8 bytes).
func New(callsign string) *Generator {
	g := &Generator{intervalS: 30}
	n := len(callsign)
	if n > 8 {
		n = 8
	}
	copy(g.callsign[:], callsign[:n])
	return g
}

// IntervalForMode returns the fixed beacon cadence for m.
func IntervalForMode(m mode.SystemMode) uint32 {
	switch m {
	case mode.Safe:
		return 10
	case mode.Recovery:
		return 5
	default:
		return 30
	}
}

// SetIntervalS sets the transmit interval, clamped to [1, 300] seconds.
func (g *Generator) SetIntervalS(s uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s < minIntervalS {
		s = minIntervalS
	}
	if s > maxIntervalS {
		s = maxIntervalS
	}
	g.intervalS = s
}

// IntervalS returns the currently configured transmit interval.
func (g *Generator) IntervalS() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.intervalS
}

// Build renders f into the packed 46-byte frame and stamps
// it with the generator's callsign and next sequence number.
func (g *Generator) Build(f Fields) [FrameSize]byte {
	g.mu.Lock()
	seq := g.sequence
	g.sequence++
	callsign := g.callsign
	g.mu.Unlock()

	var out [FrameSize]byte
	copy(out[0:8], callsign[:])
	out[8] = 1 // frame_type: nominal beacon
	out[9] = f.FrameVersion
	putU16(out[10:12], seq)
	putU32(out[12:16], f.UptimeS)
	out[16] = uint8(f.Mode)
	out[17] = f.HealthFlags
	out[18] = f.ResetCount
	out[19] = f.FaultFlags
	putU16(out[20:22], f.BatMv)
	putI16(out[22:24], f.BatMa)
	out[24] = f.BatSocPercent
	out[25] = byte(f.BatTempC)
	putU16(out[26:28], f.SolarMw)
	for i, q := range f.Quat {
		putI16(out[28+i*2:30+i*2], q)
	}
	for i, temp := range f.Temps {
		out[36+i] = byte(temp)
	}
	out[40] = byte(f.RssiDbm)
	out[41] = f.Rx24h
	out[42] = f.Tx24h
	out[43] = f.LinkMarginDb

	crc := ccsds.CRC16(out[:44])
	putU16(out[44:46], crc)
	return out
}

// EmergencyFrameSize is the packed size of the on-demand emergency
// form: callsign[8] | frame_type u8 | bitmask u16 | crc16 u16.
const EmergencyFrameSize = 13

// BuildEmergency renders an emergency beacon carrying codes as a
// bitmask, transmittable on demand regardless of the normal cadence.
func (g *Generator) BuildEmergency(codes ...EmergencyCode) [EmergencyFrameSize]byte {
	g.mu.Lock()
	callsign := g.callsign
	g.mu.Unlock()

	var bitmask uint16
	for _, c := range codes {
		bitmask |= 1 << uint(c)
	}

	var out [EmergencyFrameSize]byte
	copy(out[0:8], callsign[:])
	out[8] = 2 // frame_type: emergency
	putU16(out[9:11], bitmask)
	crc := ccsds.CRC16(out[:11])
	putU16(out[11:13], crc)
	return out
}

// Decoded is the ground-side decode of one nominal beacon frame: every
// field Build packs, plus the sequence number and callsign it stamped.
type Decoded struct {
	Callsign [8]byte
	Fields
	Sequence uint16
}

// Decode parses a 46-byte nominal beacon frame built by Build, validating
// its trailing CRC. Used by the ground station tool to decode downlinked
// beacon frames without needing a live Generator.
func Decode(frame [FrameSize]byte) (Decoded, bool) {
	crc := ccsds.CRC16(frame[:44])
	want := uint16(frame[44]) | uint16(frame[45])<<8
	if crc != want {
		return Decoded{}, false
	}

	var d Decoded
	copy(d.Callsign[:], frame[0:8])
	d.FrameVersion = frame[9]
	d.Sequence = uint16(frame[10]) | uint16(frame[11])<<8
	d.UptimeS = getU32(frame[12:16])
	d.Mode = mode.SystemMode(frame[16])
	d.HealthFlags = frame[17]
	d.ResetCount = frame[18]
	d.FaultFlags = frame[19]
	d.BatMv = uint16(frame[20]) | uint16(frame[21])<<8
	d.BatMa = int16(uint16(frame[22]) | uint16(frame[23])<<8)
	d.BatSocPercent = frame[24]
	d.BatTempC = int8(frame[25])
	d.SolarMw = uint16(frame[26]) | uint16(frame[27])<<8
	for i := range d.Quat {
		d.Quat[i] = int16(uint16(frame[28+i*2]) | uint16(frame[29+i*2])<<8)
	}
	for i := range d.Temps {
		d.Temps[i] = int8(frame[36+i])
	}
	d.RssiDbm = int8(frame[40])
	d.Rx24h = frame[41]
	d.Tx24h = frame[42]
	d.LinkMarginDb = frame[43]
	return d, true
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putI16(b []byte, v int16) {
	putU16(b, uint16(v))
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

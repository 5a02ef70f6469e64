// Package bootrecord implements the persistent boot record: a 32-byte, CRC-protected structure that survives a
// reset and tracks how many times the spacecraft has rebooted and why.
//
// On real hardware this lives in battery-backed SRAM or a reserved
// flash sector; here it is a plain Go struct that the harness is
// responsible for keeping resident in memory across a simulated reset
// (the core itself never touches a filesystem).
package bootrecord

import (
	"github.com/octoreflex/fswsupervisor/internal/mode"
	"github.com/octoreflex/fswsupervisor/internal/platform"
)

// Magic is the fixed sentinel that marks a valid record.
const Magic uint32 = 0xB007C0DE

// checksumSentinel is XORed into the byte-sum checksum.
const checksumSentinel uint32 = 0xDEADBEEF

// Record is the persistent boot record.
type Record struct {
	Magic              uint32
	BootCount          uint32
	ResetCountWatchdog uint32
	ResetCountBrownout uint32
	ResetCountSoftware uint32
	LastResetCause     platform.ResetCause
	RequestedMode      mode.SystemMode
	Checksum           uint32
}

// fieldBytes returns the byte sequence used for the checksum
// computation: every field before Checksum, in declaration order,
// little-endian per scalar (byte order is an internal implementation
// detail of this host-resident record, unlike the CCSDS wire format).
func fieldBytes(r *Record) []byte {
	b := make([]byte, 0, 20)
	put32 := func(v uint32) {
		b = append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	put32(r.Magic)
	put32(r.BootCount)
	put32(r.ResetCountWatchdog)
	put32(r.ResetCountBrownout)
	put32(r.ResetCountSoftware)
	b = append(b, byte(r.LastResetCause))
	b = append(b, byte(r.RequestedMode))
	return b
}

// computeChecksum computes the record checksum: sum of bytes
// before the checksum field, XOR with the fixed sentinel.
func computeChecksum(r *Record) uint32 {
	var sum uint32
	for _, x := range fieldBytes(r) {
		sum += uint32(x)
	}
	return sum ^ checksumSentinel
}

// Valid reports whether r's magic and checksum are both correct.
func Valid(r *Record) bool {
	return r.Magic == Magic && r.Checksum == computeChecksum(r)
}

// Init zeroes r and records cause as the latched reset cause with a
// fresh magic/checksum. Used both for first boot and for recovery from
// a corrupt record, which is re-initialized to zeros with cause
// recorded as Unknown.
func Init(r *Record, cause platform.ResetCause) {
	*r = Record{
		Magic:          Magic,
		LastResetCause: cause,
		RequestedMode:  mode.Boot,
	}
	r.Checksum = computeChecksum(r)
}

// OnReset applies the reset-time update sequence to r in
// place:
//  1. if r is invalid, re-initialize it with cause Unknown;
//  2. set LastResetCause to cause;
//  3. increment the per-cause counter for Watchdog/BrownOut/Software;
//  4. increment BootCount;
//  5. retain RequestedMode only across a Software reset, else reset to Boot;
//  6. recompute Checksum.
func OnReset(r *Record, cause platform.ResetCause) {
	if !Valid(r) {
		Init(r, platform.ResetUnknown)
	}

	if cause != platform.ResetSoftware {
		r.RequestedMode = mode.Boot
	}

	r.LastResetCause = cause
	switch cause {
	case platform.ResetWatchdog:
		r.ResetCountWatchdog++
	case platform.ResetBrownOut:
		r.ResetCountBrownout++
	case platform.ResetSoftware:
		r.ResetCountSoftware++
	}
	r.BootCount++
	r.Checksum = computeChecksum(r)
}

// SetRequestedMode records the mode the running image wants resumed on
// its next software reset, and updates the checksum.
func SetRequestedMode(r *Record, m mode.SystemMode) {
	r.RequestedMode = m
	r.Checksum = computeChecksum(r)
}

// WireSize is the exact on-media size of the packed record.
const WireSize = 32

// Encode renders r into the 32-byte packed layout:
//
//	magic u32 | boot_count u32 | rc_wd u32 | rc_bo u32 | rc_sw u32 |
//	last_cause u8 | pad[3] | requested_mode u8 | pad[3] | checksum u32
//
// Multi-byte fields are little-endian; this is a host-resident record,
// not a wire protocol, so the only externally-fixed property is the
// byte layout and the checksum formula, not endianness.
func Encode(r *Record) [WireSize]byte {
	var out [WireSize]byte
	putU32(out[0:4], r.Magic)
	putU32(out[4:8], r.BootCount)
	putU32(out[8:12], r.ResetCountWatchdog)
	putU32(out[12:16], r.ResetCountBrownout)
	putU32(out[16:20], r.ResetCountSoftware)
	out[20] = byte(r.LastResetCause)
	out[24] = byte(r.RequestedMode)
	putU32(out[28:32], r.Checksum)
	return out
}

// Decode parses the 32-byte packed layout back into a Record.
func Decode(b [WireSize]byte) Record {
	return Record{
		Magic:              getU32(b[0:4]),
		BootCount:          getU32(b[4:8]),
		ResetCountWatchdog: getU32(b[8:12]),
		ResetCountBrownout: getU32(b[12:16]),
		ResetCountSoftware: getU32(b[16:20]),
		LastResetCause:     platform.ResetCause(b[20]),
		RequestedMode:      mode.SystemMode(b[24]),
		Checksum:           getU32(b[28:32]),
	}
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

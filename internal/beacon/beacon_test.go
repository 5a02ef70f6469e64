package beacon

import (
	"testing"

	"github.com/octoreflex/fswsupervisor/internal/ccsds"
	"github.com/octoreflex/fswsupervisor/internal/mode"
)

func TestIntervalForMode(t *testing.T) {
	cases := map[mode.SystemMode]uint32{
		mode.Nominal:  30,
		mode.Safe:     10,
		mode.Recovery: 5,
		mode.Boot:     30,
	}
	for m, want := range cases {
		if got := IntervalForMode(m); got != want {
			t.Fatalf("IntervalForMode(%v) = %d, want %d", m, got, want)
		}
	}
}

func TestSetIntervalClamps(t *testing.T) {
	g := New("KD2ABC")
	g.SetIntervalS(0)
	if g.IntervalS() != minIntervalS {
		t.Fatalf("expected clamp to %d, got %d", minIntervalS, g.IntervalS())
	}
	g.SetIntervalS(10000)
	if g.IntervalS() != maxIntervalS {
		t.Fatalf("expected clamp to %d, got %d", maxIntervalS, g.IntervalS())
	}
}

func TestBuildProducesValidCRC(t *testing.T) {
	g := New("KD2ABC")
	frame := g.Build(Fields{Mode: mode.Nominal, UptimeS: 12345, BatSocPercent: 80})
	got := ccsds.CRC16(frame[:44])
	want := uint16(frame[44]) | uint16(frame[45])<<8
	if got != want {
		t.Fatalf("CRC mismatch: computed 0x%04X, frame carries 0x%04X", got, want)
	}
	if string(frame[0:6]) != "KD2ABC" {
		t.Fatalf("expected callsign stamped, got %q", frame[0:8])
	}
}

func TestBuildIncrementsSequence(t *testing.T) {
	g := New("KD2ABC")
	f1 := g.Build(Fields{})
	f2 := g.Build(Fields{})
	seq1 := uint16(f1[10]) | uint16(f1[11])<<8
	seq2 := uint16(f2[10]) | uint16(f2[11])<<8
	if seq2 != seq1+1 {
		t.Fatalf("expected sequence to increment, got %d then %d", seq1, seq2)
	}
}

func TestBuildEmergencyEncodesBitmask(t *testing.T) {
	g := New("KD2ABC")
	frame := g.BuildEmergency(EmergencyLowPower, EmergencyCommLoss)
	bitmask := uint16(frame[9]) | uint16(frame[10])<<8
	want := uint16(1<<EmergencyLowPower) | uint16(1<<EmergencyCommLoss)
	if bitmask != want {
		t.Fatalf("bitmask = %b, want %b", bitmask, want)
	}
}

package telecommand

import (
	"testing"

	"github.com/octoreflex/fswsupervisor/internal/ccsds"
	"github.com/octoreflex/fswsupervisor/internal/clock"
	"github.com/octoreflex/fswsupervisor/internal/mode"
	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/status"
	"github.com/octoreflex/fswsupervisor/internal/telemetry"
)

func newFixture(initial mode.SystemMode) (*Pipeline, *telemetry.Pipeline, *platform.Sim) {
	sim := platform.NewSim()
	clk := clock.New(sim)
	tm := telemetry.New(clk)
	mgr := mode.NewManager(initial, nil, nil)
	p := New(mgr, tm, clk)
	RegisterBuiltins(p, mgr, sim, tm, clk)
	return p, tm, sim
}

func tcWire(apid ccsds.Apid, service, subtype uint8, data []byte) []byte {
	return ccsds.BuildTC(ccsds.TcPacket{Apid: apid, Service: service, Subtype: subtype, Data: data})
}

func TestPingSucceedsAndReturnsPong(t *testing.T) {
	p, tm, _ := newFixture(mode.Nominal)
	wire := tcWire(ccsds.System, 17, 1, nil)
	if st := p.Process(wire, 0); st != status.OK {
		t.Fatalf("Ping failed: %v", st)
	}
	hist := p.History()
	if len(hist) != 1 || hist[0].Status != status.OK {
		t.Fatalf("expected one OK history record, got %+v", hist)
	}

	// Acceptance ack (1/1) first, then the completion ack (1/7)
	// carrying the handler's response payload.
	accept, _, ok := tm.DequeuePacket()
	if !ok {
		t.Fatalf("expected an acceptance ack queued")
	}
	if pkt, st := ccsds.ParseTM(accept); st != status.OK || pkt.Service != 1 || pkt.Subtype != 1 {
		t.Fatalf("expected a 1/1 acceptance ack, got %+v (%v)", pkt, st)
	}
	complete, _, ok := tm.DequeuePacket()
	if !ok {
		t.Fatalf("expected a completion ack queued")
	}
	pkt, st := ccsds.ParseTM(complete)
	if st != status.OK || pkt.Service != 1 || pkt.Subtype != 7 {
		t.Fatalf("expected a 1/7 completion ack, got %+v (%v)", pkt, st)
	}
	if string(pkt.Data) != "PONG" {
		t.Fatalf("expected PONG response payload, got %q", pkt.Data)
	}
}

func TestSafeModeFiltersModeChangeButAllowsPing(t *testing.T) {
	p, _, _ := newFixture(mode.Safe)

	modeChangeWire := tcWire(ccsds.System, 8, 1, []byte{byte(mode.Nominal)})
	if st := p.Process(modeChangeWire, 0); st != status.Permission {
		t.Fatalf("expected ModeChange rejected in Safe mode, got %v", st)
	}
	if p.Rejected() != 1 {
		t.Fatalf("expected rejected count 1, got %d", p.Rejected())
	}

	pingWire := tcWire(ccsds.System, 17, 1, nil)
	if st := p.Process(pingWire, 10); st != status.OK {
		t.Fatalf("expected Ping to succeed in Safe mode, got %v", st)
	}
}

func TestUnregisteredCommandIsRejectedInvalid(t *testing.T) {
	p, _, _ := newFixture(mode.Nominal)
	wire := tcWire(ccsds.System, 99, 99, nil)
	if st := p.Process(wire, 0); st != status.InvalidParam {
		t.Fatalf("expected InvalidParam for unregistered command, got %v", st)
	}
}

func TestElevatedCommandRejectedWhenKeySetAndVerifyFails(t *testing.T) {
	p, _, _ := newFixture(mode.Nominal)
	p.SetAuthKey(func(pkt ccsds.TcPacket) bool { return false })

	wire := tcWire(ccsds.System, 8, 1, []byte{byte(mode.Detumble)})
	if st := p.Process(wire, 0); st != status.Permission {
		t.Fatalf("expected Permission rejection, got %v", st)
	}
}

func TestSystemResetHandlerInvokesHook(t *testing.T) {
	p, _, sim := newFixture(mode.Nominal)
	wire := tcWire(ccsds.System, 8, 4, nil)
	if st := p.Process(wire, 0); st != status.OK {
		t.Fatalf("SystemReset failed: %v", st)
	}
	if sim.SoftResets() != 1 {
		t.Fatalf("expected 1 software reset, got %d", sim.SoftResets())
	}
}

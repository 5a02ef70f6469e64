package supervisor

import (
	"testing"

	"github.com/octoreflex/fswsupervisor/internal/bootrecord"
	"github.com/octoreflex/fswsupervisor/internal/ccsds"
	"github.com/octoreflex/fswsupervisor/internal/fdir"
	"github.com/octoreflex/fswsupervisor/internal/mode"
	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/status"
)

type fixedProvider struct {
	soc       float64
	solarMw   int32
	consumeMw int32
}

func (p fixedProvider) BatterySOCPercent() float64 { return p.soc }
func (p fixedProvider) SolarInputMw() int32 { return p.solarMw }
func (p fixedProvider) ConsumptionMw() int32 { return p.consumeMw }

func bootWith(sim *platform.Sim, rec *bootrecord.Record, soc float64) *Supervisor {
	cfg := Config{
		EpsProvider: fixedProvider{soc: soc, solarMw: 1000, consumeMw: 1500},
		Callsign:    "KD2ABC",
	}
	return Boot(sim, rec, cfg)
}

func TestColdBootEntersDetumble(t *testing.T) {
	sim := platform.NewSim()
	sim.SetCause(platform.ResetPowerOn)
	rec := &bootrecord.Record{}

	s := bootWith(sim, rec, 80)

	if s.Mode.Current() != mode.Detumble {
		t.Fatalf("expected initial mode Detumble, got %v", s.Mode.Current())
	}
	if rec.BootCount != 1 {
		t.Fatalf("expected boot_count 1, got %d", rec.BootCount)
	}
}

func TestThreeWatchdogResetsEntersSafe(t *testing.T) {
	sim := platform.NewSim()
	sim.SetCause(platform.ResetWatchdog)
	rec := &bootrecord.Record{}
	// Prime two prior watchdog resets so ResetCountWatchdog is 2 going
	// into Boot, which will apply the third.
	bootrecord.OnReset(rec, platform.ResetWatchdog)
	bootrecord.OnReset(rec, platform.ResetWatchdog)

	s := bootWith(sim, rec, 80)

	if rec.ResetCountWatchdog != 3 {
		t.Fatalf("expected reset_count_watchdog 3, got %d", rec.ResetCountWatchdog)
	}
	if s.Mode.Current() != mode.Safe {
		t.Fatalf("expected Safe mode, got %v", s.Mode.Current())
	}
}

func TestSafeModeTcFiltering(t *testing.T) {
	sim := platform.NewSim()
	sim.SetSafeModePin(true)
	rec := &bootrecord.Record{}
	s := bootWith(sim, rec, 80)

	if s.Mode.Current() != mode.Safe {
		t.Fatalf("expected boot into Safe via asserted pin, got %v", s.Mode.Current())
	}

	modeChange := ccsds.BuildTC(ccsds.TcPacket{Apid: ccsds.System, Service: 8, Subtype: 1, Data: []byte{byte(mode.Nominal)}})
	if st := s.Telecmd.Process(modeChange, 0); st != status.Permission {
		t.Fatalf("expected ModeChange rejected in Safe mode, got %v", st)
	}

	ping := ccsds.BuildTC(ccsds.TcPacket{Apid: ccsds.System, Service: 17, Subtype: 1})
	if st := s.Telecmd.Process(ping, 0); st != status.OK {
		t.Fatalf("expected Ping to succeed in Safe mode, got %v", st)
	}
}

func TestEpsCriticalPathAtNinePercentSoc(t *testing.T) {
	sim := platform.NewSim()
	rec := &bootrecord.Record{}
	s := bootWith(sim, rec, 9.0)

	s.Eps.Periodic(0)

	if sim.RailEnabled(platform.RailSensors) || sim.RailEnabled(platform.RailActuators) || sim.RailEnabled(platform.RailPayload) {
		t.Fatalf("expected non-essential rails disabled at 9%% SOC")
	}
	if !s.Eps.Critical() {
		t.Fatalf("expected critical_power set")
	}
	if rec := s.Fdir.Record(fdir.PowerCritical); !rec.Active {
		t.Fatalf("expected PowerCritical active in FDIR")
	}
}

func TestReceiveUplinkIsDrainedByTcPeriodic(t *testing.T) {
	sim := platform.NewSim()
	rec := &bootrecord.Record{}
	s := bootWith(sim, rec, 80)

	ping := ccsds.BuildTC(ccsds.TcPacket{Apid: ccsds.System, Service: 17, Subtype: 1})
	s.ReceiveUplink(ping)

	if s.Telecmd.Accepted() != 0 {
		t.Fatalf("expected uplink not yet processed before periodic drain")
	}
	s.Telecmd.Periodic(0)
	if s.Telecmd.Accepted() != 1 {
		t.Fatalf("expected uplink processed after periodic drain, got accepted=%d", s.Telecmd.Accepted())
	}
}

func TestTickKicksWatchdogEvenWithNoJobDue(t *testing.T) {
	sim := platform.NewSim()
	rec := &bootrecord.Record{}
	s := bootWith(sim, rec, 80)

	before := sim.WatchdogKicks()
	s.Tick()
	if sim.WatchdogKicks() <= before {
		t.Fatalf("expected watchdog kicked on tick")
	}
}

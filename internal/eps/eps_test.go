package eps

import (
	"testing"

	"github.com/octoreflex/fswsupervisor/internal/fdir"
	"github.com/octoreflex/fswsupervisor/internal/mode"
	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/telemetrylog"
)

type scriptedProvider struct {
	socPercent float64
	solarMw    int32
	consumeMw  int32
}

func (p *scriptedProvider) BatterySOCPercent() float64 { return p.socPercent }
func (p *scriptedProvider) SolarInputMw() int32 { return p.solarMw }
func (p *scriptedProvider) ConsumptionMw() int32 { return p.consumeMw }

func newFixture(soc float64) (*Policy, *platform.Sim, *fdir.Monitor, *mode.Manager) {
	sim := platform.NewSim()
	events := &telemetrylog.EventLog{}
	mgr := mode.NewManager(mode.Nominal, nil, nil)
	faults := fdir.New(sim, mgr, events)
	prov := &scriptedProvider{socPercent: soc, solarMw: 1000, consumeMw: 1500}
	return New(sim, prov, faults, mgr), sim, faults, mgr
}

func TestCriticalSocTriggersLoadShedAndFdirReport(t *testing.T) {
	p, sim, faults, _ := newFixture(9.0)
	p.Periodic(1000)

	if !p.Critical() {
		t.Fatalf("expected critical flag set at 9%% SOC")
	}
	if sim.RailEnabled(platform.RailPayload) || sim.RailEnabled(platform.RailActuators) || sim.RailEnabled(platform.RailSensors) {
		t.Fatalf("expected non-essential rails disabled under load shed")
	}
	if !sim.RailEnabled(platform.RailCore) {
		t.Fatalf("Core rail must never be disabled")
	}
	if rec := faults.Record(fdir.PowerCritical); !rec.Active {
		t.Fatalf("expected PowerCritical reported to FDIR")
	}
}

func TestLowPowerEntryAndExit(t *testing.T) {
	p, sim, _, mgr := newFixture(15.0)
	p.Periodic(0)
	if !p.LowPower() {
		t.Fatalf("expected low-power entered at 15%% SOC")
	}
	mgr.Process(0)
	if mgr.Current() != mode.LowPower {
		t.Fatalf("expected mode LowPower requested, got %v", mgr.Current())
	}
	if sim.RailEnabled(platform.RailActuators) {
		t.Fatalf("expected actuators disabled on low-power entry")
	}

	p2 := &scriptedProvider{socPercent: 55.0, solarMw: 2000, consumeMw: 500}
	p.provider = p2
	p.Periodic(1000)
	if p.LowPower() {
		t.Fatalf("expected low-power cleared at 55%% SOC")
	}
	if !sim.RailEnabled(platform.RailActuators) {
		t.Fatalf("expected actuators re-enabled on low-power exit")
	}
}

func TestCanSupportLoadRules(t *testing.T) {
	p, _, _, _ := newFixture(80.0)
	p.balanceMw = 500
	if !p.CanSupportLoad(100) {
		t.Fatalf("expected load accepted when balance + mw > 0")
	}
	if p.CanSupportLoad(-600) {
		t.Fatalf("expected load rejected when balance + mw <= 0")
	}

	p.critical = true
	if p.CanSupportLoad(1) {
		t.Fatalf("expected all loads rejected while critical")
	}

	p.critical = false
	p.lowPower = true
	if !p.CanSupportLoad(50) {
		t.Fatalf("expected small load accepted in low-power")
	}
	if p.CanSupportLoad(100) {
		t.Fatalf("expected load >= 100 mW rejected in low-power")
	}
}

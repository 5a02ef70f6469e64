package fdir

import (
	"testing"

	"github.com/octoreflex/fswsupervisor/internal/mode"
	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/telemetrylog"
)

func newFixture() (*Monitor, *platform.Sim, *mode.Manager) {
	sim := platform.NewSim()
	events := &telemetrylog.EventLog{}
	mgr := mode.NewManager(mode.Nominal, nil, nil)
	return New(sim, mgr, events), sim, mgr
}

func TestWatchdogFaultTriggersSystemReset(t *testing.T) {
	m, sim, _ := newFixture()
	m.ReportFault(Watchdog, platform.SubsystemOBC, 100)
	m.Periodic(platform.ResetPowerOn, 1, 100)
	if sim.SoftResets() != 1 {
		t.Fatalf("expected 1 software reset, got %d", sim.SoftResets())
	}
}

func TestMemoryErrorForcesSafeMode(t *testing.T) {
	m, _, mgr := newFixture()
	m.ReportFault(MemoryError, platform.SubsystemOBC, 200)
	m.Periodic(platform.ResetPowerOn, 1, 200)
	mgr.Process(0)
	if mgr.Current() != mode.Safe {
		t.Fatalf("expected Safe, got %v", mgr.Current())
	}
}

func TestResetLoopDetectedOnThreeWatchdogBoots(t *testing.T) {
	m, _, mgr := newFixture()
	m.Periodic(platform.ResetWatchdog, 3, 50)
	if rec := m.Record(ResetLoop); !rec.Active {
		t.Fatalf("expected ResetLoop to be active")
	}
	// ResetLoop threshold is 3; one report isn't enough yet.
	m.Periodic(platform.ResetWatchdog, 3, 60)
	m.Periodic(platform.ResetWatchdog, 3, 70)
	mgr.Process(0)
	if mgr.Current() != mode.Safe {
		t.Fatalf("expected Safe after three ResetLoop reports, got %v", mgr.Current())
	}
}

func TestBrownoutTriggersLoadShed(t *testing.T) {
	m, sim, _ := newFixture()
	m.ReportFault(Brownout, platform.SubsystemEPS, 10)
	m.ReportFault(Brownout, platform.SubsystemEPS, 20)
	m.Periodic(platform.ResetPowerOn, 1, 20)
	if sim.RailEnabled(platform.RailPayload) {
		t.Fatalf("expected payload rail disabled after load shed")
	}
	if sim.RailEnabled(platform.RailActuators) {
		t.Fatalf("expected actuator rail disabled after load shed")
	}
}

func TestBusErrorResetsSubsystemAfterFiveOccurrences(t *testing.T) {
	m, sim, _ := newFixture()
	for i := 0; i < 4; i++ {
		m.ReportFault(BusError, platform.SubsystemADCS, uint32(i))
	}
	m.Periodic(platform.ResetPowerOn, 1, 4)
	if sim.SubsystemResets(platform.SubsystemADCS) != 0 {
		t.Fatalf("expected no reset before threshold")
	}
	m.ReportFault(BusError, platform.SubsystemADCS, 5)
	m.Periodic(platform.ResetPowerOn, 1, 5)
	if sim.SubsystemResets(platform.SubsystemADCS) != 1 {
		t.Fatalf("expected subsystem reset at threshold, got %d", sim.SubsystemResets(platform.SubsystemADCS))
	}
}

func TestCommLossIsRetryOnlyAndDoesNotTouchRailsOrMode(t *testing.T) {
	m, sim, mgr := newFixture()
	for i := 0; i < 10; i++ {
		m.ReportFault(CommLoss, platform.SubsystemComms, uint32(i))
	}
	m.Periodic(platform.ResetPowerOn, 1, 10)
	mgr.Process(0)
	if mgr.Current() != mode.Nominal {
		t.Fatalf("CommLoss must not force a mode change, got %v", mgr.Current())
	}
	if !sim.RailEnabled(platform.RailComms) {
		t.Fatalf("CommLoss must not disable rails")
	}
}

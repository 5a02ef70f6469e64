package health

import (
	"testing"

	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/status"
)

type fixedEnv struct{ e Environment }

func (f fixedEnv) ReadEnvironment() Environment { return f.e }

func nominalEnv() fixedEnv {
	return fixedEnv{Environment{TempC: 20, CPULoadPct: 10, MinStackB: 1024, VoltageMv: 3700}}
}

func TestRegisterAndUpdateTask(t *testing.T) {
	sim := platform.NewSim()
	m := New(sim, nominalEnv())
	h, st := m.Register("adcs_task", 1000)
	if st != status.OK {
		t.Fatalf("register failed: %v", st)
	}
	if st := m.UpdateTask(h, 100); st != status.OK {
		t.Fatalf("update failed: %v", st)
	}
}

func TestRegisterFullTableReturnsNoMemory(t *testing.T) {
	m := New(nil, nil)
	for i := 0; i < MaxTasks; i++ {
		if _, st := m.Register("t", 1000); st != status.OK {
			t.Fatalf("unexpected failure at task %d: %v", i, st)
		}
	}
	if _, st := m.Register("overflow", 1000); st != status.NoMemory {
		t.Fatalf("expected NoMemory, got %v", st)
	}
}

func TestPeriodicMarksTaskDeadAfterTimeout(t *testing.T) {
	sim := platform.NewSim()
	m := New(sim, nominalEnv())
	h, _ := m.Register("comms_task", 1000)
	m.UpdateTask(h, 0)

	m.Periodic(900)
	if m.Overall() != OK {
		t.Fatalf("expected OK within timeout, got %v", m.Overall())
	}

	m.Periodic(1500)
	if m.Overall() != Critical {
		t.Fatalf("expected Critical once a task exceeds its timeout, got %v", m.Overall())
	}
}

func TestPeriodicKicksWatchdog(t *testing.T) {
	sim := platform.NewSim()
	m := New(sim, nominalEnv())
	m.Periodic(0)
	if sim.WatchdogKicks() != 1 {
		t.Fatalf("expected watchdog kicked once, got %d", sim.WatchdogKicks())
	}
}

func TestVoltageOutOfRangeForcesCritical(t *testing.T) {
	sim := platform.NewSim()
	env := fixedEnv{Environment{TempC: 20, CPULoadPct: 10, MinStackB: 1024, VoltageMv: 2900}}
	m := New(sim, env)
	m.Periodic(0)
	if m.Overall() != Critical {
		t.Fatalf("expected Critical on out-of-range voltage, got %v", m.Overall())
	}
}

func TestTempOutOfRangeYieldsWarningNotCritical(t *testing.T) {
	sim := platform.NewSim()
	env := fixedEnv{Environment{TempC: 95, CPULoadPct: 10, MinStackB: 1024, VoltageMv: 3700}}
	m := New(sim, env)
	m.Periodic(0)
	if m.Overall() != Warning {
		t.Fatalf("expected Warning on out-of-range temperature, got %v", m.Overall())
	}
}

func TestNeverUpdatedTaskIsNotYetJudged(t *testing.T) {
	m := New(nil, nominalEnv())
	m.Register("slow_starter", 1000)
	statuses := m.Periodic(10000)
	if len(statuses) != 0 {
		t.Fatalf("expected no status for a task that never checked in, got %d", len(statuses))
	}
}

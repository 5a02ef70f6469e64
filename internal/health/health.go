// Package health implements the task heartbeat / watchdog monitor:
// each cooperative task checks in periodically; a task
// that misses its own timeout is marked dead and pulls overall health
// to Critical. Periodic also evaluates a handful of fixed environmental
// thresholds and always kicks the watchdog on the way out.
package health

import (
	"sync"

	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/status"
)

// MaxTasks bounds the fixed task table.
const MaxTasks = 16

// Environmental threshold bounds.
const (
	tempMinC      = -40
	tempMaxC      = 85
	cpuLoadMaxPct = 80
	minStackBytes = 128
	voltageMinMv  = 3000
	voltageMaxMv  = 4200
)

// Status is the aggregated health level.
type Status uint8

const (
	OK Status = iota
	Warning
	Critical
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Warning:
		return "Warning"
	case Critical:
		return "Critical"
	default:
		return "Unknown"
	}
}

type taskSlot struct {
	inUse           bool
	name            [16]byte
	nameLen         uint8
	timeoutMs       uint32
	lastHeartbeatMs uint32
	alive           bool
	everUpdated     bool
}

// TaskHandle identifies a registered task.
type TaskHandle int

// Environment is the snapshot of vitals Periodic reasons over. A real build backs this with ADC reads through platform.Hooks;
// this package takes it as an explicit provider instead, to keep
// Monitor free of any hardware-specific sampling logic.
type Environment struct {
	TempC      int32
	CPULoadPct uint32
	MinStackB  uint32
	VoltageMv  uint32
}

// EnvironmentProvider supplies the current Environment snapshot.
type EnvironmentProvider interface {
	ReadEnvironment() Environment
}

// Monitor owns the fixed task table. In lock order, Monitor
// sits directly above Clock and below ModeManager: it must never call
// into ModeManager or any later component while holding its own lock.
type Monitor struct {
	mu    sync.Mutex
	tasks [MaxTasks]taskSlot

	hooks platform.Hooks
	env   EnvironmentProvider

	overall Status
}

// New creates an empty Monitor. hooks is used to kick the watchdog at
// the end of every Periodic pass; env supplies the environmental
// readings checked against the fixed thresholds. Both may be nil in
// tests that only exercise
// the task table.
func New(hooks platform.Hooks, env EnvironmentProvider) *Monitor {
	return &Monitor{hooks: hooks, env: env}
}

// Register adds a task to the table with an expected heartbeat timeout
// of timeoutMs. Returns status.NoMemory if the table is full.
func (m *Monitor) Register(name string, timeoutMs uint32) (TaskHandle, status.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if !m.tasks[i].inUse {
			t := &m.tasks[i]
			*t = taskSlot{inUse: true, timeoutMs: timeoutMs, alive: true}
			n := len(name)
			if n > len(t.name) {
				n = len(t.name)
			}
			copy(t.name[:], name[:n])
			t.nameLen = uint8(n)
			return TaskHandle(i), status.OK
		}
	}
	return TaskHandle(-1), status.NoMemory
}

// UpdateTask refreshes the last-heartbeat timestamp of the task
// identified by h.
func (m *Monitor) UpdateTask(h TaskHandle, nowMs uint32) status.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h < 0 || int(h) >= MaxTasks || !m.tasks[h].inUse {
		return status.InvalidParam
	}
	t := &m.tasks[h]
	t.lastHeartbeatMs = nowMs
	t.everUpdated = true
	t.alive = true
	return status.OK
}

// TaskInfo is a point-in-time liveness summary for one task.
type TaskInfo struct {
	Name            string
	TimeoutMs       uint32
	LastHeartbeatMs uint32
	Alive           bool
}

// Overall returns the aggregated health level computed by the most
// recent Periodic call.
func (m *Monitor) Overall() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overall
}

// Periodic walks the task table, marking any task whose now-last
// heartbeat exceeds its timeout as dead (which pulls overall health to
// Critical), evaluates the fixed environmental thresholds, and always
// kicks the watchdog on the way out.
func (m *Monitor) Periodic(nowMs uint32) []TaskInfo {
	m.mu.Lock()

	overall := OK
	var out []TaskInfo
	for i := range m.tasks {
		t := &m.tasks[i]
		if !t.inUse || !t.everUpdated {
			continue
		}
		if nowMs-t.lastHeartbeatMs > t.timeoutMs {
			t.alive = false
		}
		if !t.alive {
			overall = Critical
		}
		out = append(out, TaskInfo{
			Name:            string(t.name[:t.nameLen]),
			TimeoutMs:       t.timeoutMs,
			LastHeartbeatMs: t.lastHeartbeatMs,
			Alive:           t.alive,
		})
	}

	if m.env != nil {
		e := m.env.ReadEnvironment()
		if e.TempC < tempMinC || e.TempC > tempMaxC || e.CPULoadPct > cpuLoadMaxPct || e.MinStackB < minStackBytes {
			if overall == OK {
				overall = Warning
			}
		}
		if e.VoltageMv < voltageMinMv || e.VoltageMv > voltageMaxMv {
			overall = Critical
		}
	}

	m.overall = overall
	m.mu.Unlock()

	if m.hooks != nil {
		m.hooks.WatchdogKick()
	}
	return out
}

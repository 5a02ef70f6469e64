// Package mode implements the mission-supervisor finite state machine
//: six operational modes, a fixed allowed-transition
// table, per-mode timeouts, and non-blocking entry/exit hooks.
package mode

import (
	"sync"

	"github.com/octoreflex/fswsupervisor/internal/status"
)

// SystemMode is one of the six mission-supervisor operational modes.
type SystemMode uint8

const (
	Boot SystemMode = iota
	Safe
	Detumble
	Nominal
	LowPower
	Recovery
	modeCount
)

func (m SystemMode) String() string {
	switch m {
	case Boot:
		return "Boot"
	case Safe:
		return "Safe"
	case Detumble:
		return "Detumble"
	case Nominal:
		return "Nominal"
	case LowPower:
		return "LowPower"
	case Recovery:
		return "Recovery"
	default:
		return "Unknown"
	}
}

// allowed[from][to] is the complete transition table.
// Every pair not marked true is disallowed, including every self-pair.
var allowed = [modeCount][modeCount]bool{
	Boot:     {Safe: true, Detumble: true, LowPower: true, Recovery: true},
	Safe:     {Detumble: true, Nominal: true, LowPower: true},
	Detumble: {Safe: true, Nominal: true, LowPower: true},
	Nominal:  {Safe: true, Detumble: true, LowPower: true, Recovery: true},
	LowPower: {Safe: true, Detumble: true, Nominal: true},
	Recovery: {Safe: true, Detumble: true, Nominal: true},
}

// timeoutFor returns the fixed arm timeout (in seconds) for entering m,
// or 0 for no timeout.
func timeoutFor(m SystemMode) uint32 {
	switch m {
	case Detumble:
		return 1800
	case Recovery:
		return 3600
	default:
		return 0
	}
}

// Callback is a mode entry/exit hook. Callbacks may not block.
type Callback func(SystemMode)

// Manager owns the mode state machine. All public methods are
// thread-safe and acquire the single internal lock for their duration,
// honoring the EventLog < Time < HealthMonitor < ModeManager < ...
// lock-ordering hierarchy (ModeManager never calls back into
// a component later in that order while holding its own lock).
type Manager struct {
	mu sync.Mutex

	current           SystemMode
	previous          SystemMode
	requested         SystemMode
	entryTimeS        uint32
	timeoutS          uint32
	transitionPending bool
	forcedOverride    bool

	entryCB Callback
	exitCB  Callback
}

// NewManager creates a Manager whose current and previous mode are both
// initial. Callbacks may be nil.
func NewManager(initial SystemMode, entryCB, exitCB Callback) *Manager {
	return &Manager{
		current:  initial,
		previous: initial,
		entryCB:  entryCB,
		exitCB:   exitCB,
		timeoutS: timeoutFor(initial),
	}
}

// Current returns the current mode.
func (m *Manager) Current() SystemMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Previous returns the mode active before the last executed transition.
func (m *Manager) Previous() SystemMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// TransitionPending reports whether a transition is queued for the next
// Process call.
func (m *Manager) TransitionPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionPending
}

// Request asks for a transition to target. Returns status.Permission and
// leaves current unchanged if (current, target) is not in the allowed
// table.
func (m *Manager) Request(target SystemMode) status.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if target >= modeCount || !allowed[m.current][target] {
		return status.Permission
	}
	m.requested = target
	m.transitionPending = true
	m.forcedOverride = false
	return status.OK
}

// Force queues a transition to target bypassing the allowed-transition
// table entirely. Used by FDIR and EPS.
func (m *Manager) Force(target SystemMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requested = target
	m.transitionPending = true
	m.forcedOverride = true
}

// Process advances the state machine: it first checks the armed timeout
// against nowS, forcing a transition to Safe if expired, then executes
// any pending transition. nowS is mission-elapsed seconds (uint32,
// modular — see platform.Hooks.TimeMsMonotonic).
func (m *Manager) Process(nowS uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timeoutS > 0 && nowS-m.entryTimeS >= m.timeoutS {
		m.requested = Safe
		m.transitionPending = true
		m.forcedOverride = true
	}

	if !m.transitionPending {
		return
	}

	if m.exitCB != nil {
		m.exitCB(m.current)
	}
	m.previous = m.current
	m.current = m.requested
	m.entryTimeS = nowS
	m.timeoutS = timeoutFor(m.current)
	m.transitionPending = false
	m.forcedOverride = false
	if m.entryCB != nil {
		m.entryCB(m.current)
	}
}

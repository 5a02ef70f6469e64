package platform

import "sync"

// Sim is a deterministic, in-memory implementation of Hooks.
// It never touches real hardware; time only advances when Advance is
// called, which lets tests and the simulator harness drive the
// supervisor tick-by-tick with fully reproducible timing.
type Sim struct {
	mu sync.Mutex

	nowMs         uint32
	cause         ResetCause
	railState     [railCount]bool
	watchdogKicks uint64
	softResets    uint64
	subsysResets  map[SubsystemId]uint64
	safeModePin   bool
	debugOut      []byte
}

// NewSim creates a Sim at t=0 with all rails enabled and ResetPowerOn
// as the initial cause (cold-boot default).
func NewSim() *Sim {
	s := &Sim{
		cause:        ResetPowerOn,
		subsysResets: make(map[SubsystemId]uint64),
	}
	for r := RailID(0); r < railCount; r++ {
		s.railState[r] = true
	}
	return s
}

// SetCause sets the reset cause the next ResetGetCause call observes.
// Used by tests to drive the boot-mode-selection scenarios.
func (s *Sim) SetCause(c ResetCause) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cause = c
}

// SetSafeModePin sets whether the hardware safe-mode pin is asserted.
func (s *Sim) SetSafeModePin(asserted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.safeModePin = asserted
}

// Advance moves the simulated monotonic clock forward by deltaMs,
// wrapping modulo 2^32 exactly as real hardware would.
func (s *Sim) Advance(deltaMs uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowMs += deltaMs
}

func (s *Sim) WatchdogKick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchdogKicks++
}

func (s *Sim) WatchdogKicks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchdogKicks
}

func (s *Sim) ResetGetCause() ResetCause {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// ResetSoftware records a software reset request. Unlike real hardware
// it does not halt the process; the caller (supervisor harness) is
// expected to observe SoftResets() and restart its own loop if desired.
func (s *Sim) ResetSoftware() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.softResets++
}

func (s *Sim) SoftResets() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.softResets
}

func (s *Sim) ResetSubsystem(id SubsystemId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subsysResets[id]++
}

func (s *Sim) SubsystemResets(id SubsystemId) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subsysResets[id]
}

func (s *Sim) SafeModePinAsserted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.safeModePin
}

func (s *Sim) PowerEnableRail(rail RailID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rail < railCount {
		s.railState[rail] = true
	}
}

func (s *Sim) PowerDisableRail(rail RailID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rail < railCount {
		s.railState[rail] = false
	}
}

// RailEnabled reports whether a rail is currently enabled.
func (s *Sim) RailEnabled(rail RailID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rail >= railCount {
		return false
	}
	return s.railState[rail]
}

func (s *Sim) DebugPutChar(b byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugOut = append(s.debugOut, b)
}

// DebugOutput returns a copy of every byte written via DebugPutChar so
// far. For harness/test inspection only — the core never reads this back.
func (s *Sim) DebugOutput() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.debugOut))
	copy(out, s.debugOut)
	return out
}

func (s *Sim) TimeMsMonotonic() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowMs
}

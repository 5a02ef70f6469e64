// Package supervisor wires every subsystem into the one mission
// supervisor: boot-time initialization order, initial-mode selection,
// periodic job registration, and the outer RTOS loop.
package supervisor

import (
	"sync"

	"github.com/octoreflex/fswsupervisor/internal/beacon"
	"github.com/octoreflex/fswsupervisor/internal/bootrecord"
	"github.com/octoreflex/fswsupervisor/internal/clock"
	"github.com/octoreflex/fswsupervisor/internal/eps"
	"github.com/octoreflex/fswsupervisor/internal/fdir"
	"github.com/octoreflex/fswsupervisor/internal/health"
	"github.com/octoreflex/fswsupervisor/internal/mode"
	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/scheduler"
	"github.com/octoreflex/fswsupervisor/internal/telecommand"
	"github.com/octoreflex/fswsupervisor/internal/telemetry"
	"github.com/octoreflex/fswsupervisor/internal/telemetrylog"
)

// healthPeriodNominalMs and healthPeriodSafeMs are the two
// health.periodic cadences: 200 ms nominal, 500 ms in Safe mode.
const (
	modeProcessPeriodMs   = 200
	healthPeriodNominalMs = 200
	healthPeriodSafeMs    = 500
	epsPeriodMs           = 1000
	tcPeriodMs            = 50
	tmPeriodMs            = 200
	beaconPeriodMs        = 1000
	rtosTickMs            = 10

	// fdirPeriodMs has no mandated nominal cadence; without some
	// recurring call, reported faults whose
	// occurrence count crosses threshold after boot would never be
	// dispatched, so it rides the same cadence as eps.periodic.
	fdirPeriodMs = 1000
)

// Supervisor owns every core component and the scheduler that drives
// them.
type Supervisor struct {
	Hooks      platform.Hooks
	BootRecord *bootrecord.Record
	Clock      *clock.Clock
	Events     *telemetrylog.EventLog
	ByteLog    *telemetrylog.ByteRing
	Health     *health.Monitor
	Mode       *mode.Manager
	Fdir       *fdir.Monitor
	Eps        *eps.Policy
	Telemetry  *telemetry.Pipeline
	Telecmd    *telecommand.Pipeline
	Beacon     *beacon.Generator
	Scheduler  *scheduler.Scheduler

	beaconMu    sync.Mutex
	lastBeacon  []byte
	lastBeaconS uint32
	beaconBuilt bool
}

// Config bundles the collaborators Boot needs beyond platform.Hooks.
type Config struct {
	EpsProvider eps.Provider
	EnvProvider health.EnvironmentProvider
	Callsign    string
}

// Boot executes the fixed initialization sequence against a fresh
// or resident bootrecord.Record and returns the fully wired Supervisor.
func Boot(hooks platform.Hooks, rec *bootrecord.Record, cfg Config) *Supervisor {
	cause := hooks.ResetGetCause()
	if !bootrecord.Valid(rec) {
		bootrecord.Init(rec, platform.ResetUnknown)
	}
	bootrecord.OnReset(rec, cause)

	initialMode := computeInitialMode(rec, hooks)

	events := &telemetrylog.EventLog{}
	byteLog := &telemetrylog.ByteRing{}
	clk := clock.New(hooks)
	healthMgr := health.New(hooks, cfg.EnvProvider)

	modeMgr := mode.NewManager(initialMode, func(m mode.SystemMode) {
		events.Record(hooks.TimeMsMonotonic(), telemetrylog.Info, uint8(platform.SubsystemOBC), uint16(m), "mode entry")
		byteLog.WriteString("mode -> " + m.String() + "\n")
		// Keep the persistent record pointing at the running mode so a
		// software reset resumes it.
		bootrecord.SetRequestedMode(rec, m)
	}, func(m mode.SystemMode) {
		events.Record(hooks.TimeMsMonotonic(), telemetrylog.Info, uint8(platform.SubsystemOBC), uint16(m), "mode exit")
	})

	faults := fdir.New(hooks, modeMgr, events)
	epsPolicy := eps.New(hooks, cfg.EpsProvider, faults, modeMgr)
	tm := telemetry.New(clk)
	tc := telecommand.New(modeMgr, tm, clk)
	telecommand.RegisterBuiltins(tc, modeMgr, hooks, tm, clk)
	beaconGen := beacon.New(cfg.Callsign)
	sched := scheduler.New()

	s := &Supervisor{
		Hooks:      hooks,
		BootRecord: rec,
		Clock:      clk,
		Events:     events,
		ByteLog:    byteLog,
		Health:     healthMgr,
		Mode:       modeMgr,
		Fdir:       faults,
		Eps:        epsPolicy,
		Telemetry:  tm,
		Telecmd:    tc,
		Beacon:     beaconGen,
		Scheduler:  sched,
	}

	// Run FDIR once synchronously at boot so a reset-loop condition
	// (watchdog cause, boot_count >= 3) is reflected in the active
	// fault set before the first scheduler tick.
	faults.Periodic(cause, rec.BootCount, hooks.TimeMsMonotonic())

	s.registerJobs(initialMode)
	return s
}

// computeInitialMode implements the boot-mode-selection
// algorithm, evaluated against the already-updated boot record.
func computeInitialMode(rec *bootrecord.Record, hooks platform.Hooks) mode.SystemMode {
	if hooks.SafeModePinAsserted() {
		return mode.Safe
	}
	if rec.ResetCountWatchdog >= 3 {
		return mode.Safe
	}
	switch rec.LastResetCause {
	case platform.ResetWatchdog:
		return mode.Recovery
	case platform.ResetBrownOut:
		return mode.LowPower
	case platform.ResetPowerOn:
		return mode.Detumble
	case platform.ResetSoftware:
		if rec.RequestedMode == mode.Boot {
			return mode.Nominal
		}
		return rec.RequestedMode
	default:
		return mode.Safe
	}
}

// registerJobs registers the fixed periodic jobs at their
// nominal cadences, using the Safe-mode health cadence if the
// supervisor is booting directly into Safe.
func (s *Supervisor) registerJobs(initialMode mode.SystemMode) {
	healthPeriod := uint32(healthPeriodNominalMs)
	if initialMode == mode.Safe {
		healthPeriod = healthPeriodSafeMs
	}

	s.Scheduler.Register(func() { s.Mode.Process(s.Clock.NowS()) }, modeProcessPeriodMs)
	s.Scheduler.Register(func() { s.Health.Periodic(s.Clock.NowMs()) }, healthPeriod)
	s.Scheduler.Register(func() { s.Eps.Periodic(s.Clock.NowMs()) }, epsPeriodMs)
	s.Scheduler.Register(func() { s.Fdir.Periodic(s.Hooks.ResetGetCause(), s.BootRecord.BootCount, s.Clock.NowMs()) }, fdirPeriodMs)
	s.Scheduler.Register(func() { s.Telecmd.Periodic(s.Clock.NowMs()) }, tcPeriodMs)
	s.Scheduler.Register(func() { s.Telemetry.Periodic(s.Clock.NowMs()) }, tmPeriodMs)
	s.Scheduler.Register(func() { s.runBeacon() }, beaconPeriodMs)
}

// runBeacon builds one beacon frame whenever the cadence implied by the
// current mode has elapsed. It runs every second; the interval check is
// what makes the 30/10/5 s cadence.
func (s *Supervisor) runBeacon() {
	current := s.Mode.Current()
	s.Beacon.SetIntervalS(beacon.IntervalForMode(current))
	nowS := s.Clock.NowS()

	s.beaconMu.Lock()
	due := !s.beaconBuilt || nowS-s.lastBeaconS >= s.Beacon.IntervalS()
	s.beaconMu.Unlock()
	if !due {
		return
	}

	frame := s.Beacon.Build(beacon.Fields{
		Mode:    current,
		UptimeS: nowS,
	})
	s.beaconMu.Lock()
	s.lastBeacon = frame[:]
	s.lastBeaconS = nowS
	s.beaconBuilt = true
	s.beaconMu.Unlock()
}

// LatestBeacon returns the most recently built beacon frame, or false
// if none has been built yet. The radio transport polls this rather
// than the TM priority queue, since the beacon frame is not a CCSDS
// packet.
func (s *Supervisor) LatestBeacon() ([]byte, bool) {
	s.beaconMu.Lock()
	defer s.beaconMu.Unlock()
	if s.lastBeacon == nil {
		return nil, false
	}
	out := make([]byte, len(s.lastBeacon))
	copy(out, s.lastBeacon)
	return out, true
}

// DrainDebugLog empties the on-board byte ring and returns its
// contents, oldest first. The harness re-emits this through its own
// logger; on flight hardware the equivalent drain feeds DebugPutChar.
func (s *Supervisor) DrainDebugLog() []byte {
	return s.ByteLog.Drain()
}

// ReceiveUplink queues a received TC wire packet for the next
// tc.periodic drain.
func (s *Supervisor) ReceiveUplink(wire []byte) {
	s.Telecmd.Enqueue(wire)
}

// DequeueDownlink returns the next queued TM packet for the radio
// transport, if any.
func (s *Supervisor) DequeueDownlink() ([]byte, telemetry.Priority, bool) {
	return s.Telemetry.DequeuePacket()
}

// Tick advances the RTOS loop by one step: scheduler.Step(rtosTickMs)
// at the fixed 100 Hz cadence, then kicks the watchdog unconditionally
// — even if no job fired this tick.
func (s *Supervisor) Tick() {
	s.Scheduler.Step(rtosTickMs)
	s.Hooks.WatchdogKick()
}

// RunTicks advances the RTOS loop by n ticks (10 ms each). Intended for
// the simulator harness and tests; a real build instead blocks on a
// hardware timer interrupt.
func (s *Supervisor) RunTicks(n int) {
	for i := 0; i < n; i++ {
		s.Tick()
	}
}

// ForceMode bypasses the allowed-transition table and queues a forced
// mode change, executed by the next mode.process job, for ground-test
// use via the operator console (Force is otherwise reserved for
// FDIR/EPS).
func (s *Supervisor) ForceMode(m mode.SystemMode) {
	s.Mode.Force(m)
}

// InjectFault reports a synthetic fault occurrence for subsystem,
// exercising the same FDIR path a real fault detector would (operator
// console ground-test hook).
func (s *Supervisor) InjectFault(fault fdir.FaultType, subsystem platform.SubsystemId) {
	s.Fdir.ReportFault(fault, subsystem, s.Clock.NowMs())
}

// Snapshot is a point-in-time summary of the supervisor's state, used
// by the operator console's status command.
type Snapshot struct {
	Mode         mode.SystemMode
	Health       health.Status
	EpsCritical  bool
	EpsLowPower  bool
	EpsBalanceMw int32
	ActiveFaults []fdir.FaultType
	TmQueueDepth int
	TcAccepted   uint64
	TcRejected   uint64
}

// Snapshot returns a point-in-time summary of the supervisor's state.
func (s *Supervisor) Snapshot() Snapshot {
	return Snapshot{
		Mode:         s.Mode.Current(),
		Health:       s.Health.Overall(),
		EpsCritical:  s.Eps.Critical(),
		EpsLowPower:  s.Eps.LowPower(),
		EpsBalanceMw: s.Eps.Balance(),
		ActiveFaults: s.Fdir.Active(),
		TmQueueDepth: s.Telemetry.QueueCount(),
		TcAccepted:   s.Telecmd.Accepted(),
		TcRejected:   s.Telecmd.Rejected(),
	}
}

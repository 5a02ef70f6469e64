// Package fdir implements Fault Detection, Isolation and Recovery: a
// fixed fault table, occurrence counters, and recovery action
// dispatch.
package fdir

import (
	"fmt"
	"sync"

	"github.com/octoreflex/fswsupervisor/internal/mode"
	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/telemetrylog"
)

// FaultType enumerates the fixed fault table.
type FaultType uint8

const (
	Watchdog FaultType = iota
	Brownout
	ResetLoop
	SensorInvalid
	ActuatorFail
	BusError
	MemoryError
	CommLoss
	PowerCritical
	ThermalLimit
	AttitudeLost
	faultTypeCount
)

func (f FaultType) String() string {
	switch f {
	case Watchdog:
		return "Watchdog"
	case Brownout:
		return "Brownout"
	case ResetLoop:
		return "ResetLoop"
	case SensorInvalid:
		return "SensorInvalid"
	case ActuatorFail:
		return "ActuatorFail"
	case BusError:
		return "BusError"
	case MemoryError:
		return "MemoryError"
	case CommLoss:
		return "CommLoss"
	case PowerCritical:
		return "PowerCritical"
	case ThermalLimit:
		return "ThermalLimit"
	case AttitudeLost:
		return "AttitudeLost"
	default:
		return "Unknown"
	}
}

// Action is a recovery action dispatched when a fault's occurrence
// count crosses its threshold.
type Action uint8

const (
	ActionNone Action = iota
	ActionRetry
	ActionIsolate
	ActionResetSubsys
	ActionSafeMode
	ActionSystemReset
	ActionPayloadOff
	ActionLoadShed
)

// rule is one row of the fixed FDIR table. windowMs is
// reserved for a future rate-limited variant and is never consulted by
// this baseline implementation — threshold checks are purely
// cumulative-counter based.
type rule struct {
	threshold uint32
	windowMs  uint32
	action    Action
}

var defaultRules = [faultTypeCount]rule{
	Watchdog:      {1, 0, ActionSystemReset},
	Brownout:      {2, 60000, ActionLoadShed},
	ResetLoop:     {3, 60000, ActionSafeMode},
	SensorInvalid: {3, 10000, ActionIsolate},
	ActuatorFail:  {2, 5000, ActionIsolate},
	BusError:      {5, 1000, ActionResetSubsys},
	MemoryError:   {1, 0, ActionSafeMode},
	CommLoss:      {10, 60000, ActionRetry},
	PowerCritical: {1, 0, ActionLoadShed},
	ThermalLimit:  {1, 0, ActionPayloadOff},
	AttitudeLost:  {1, 0, ActionSafeMode},
}

// Record is one FaultRecord. Invariant: Active implies
// OccurrenceCount >= 1.
type Record struct {
	Type             FaultType
	Subsystem        platform.SubsystemId
	TimestampMs      uint32
	OccurrenceCount  uint32
	Active           bool
	LastAction       Action
}

// Monitor owns the FDIR fault table. In lock order, Monitor
// sits above HealthMonitor and ModeManager and below EPS; it calls
// mode.Manager.Force and platform.Hooks only from Periodic's dispatch,
// after releasing its own lock, so it never holds two locks at once.
type Monitor struct {
	mu      sync.Mutex
	records [faultTypeCount]Record
	rules   [faultTypeCount]rule
	hooks   platform.Hooks
	modeMgr *mode.Manager
	events  *telemetrylog.EventLog
}

// New creates an FDIR Monitor carrying the default rule table.
func New(hooks platform.Hooks, modeMgr *mode.Manager, events *telemetrylog.EventLog) *Monitor {
	m := &Monitor{hooks: hooks, modeMgr: modeMgr, events: events, rules: defaultRules}
	for t := FaultType(0); t < faultTypeCount; t++ {
		m.records[t].Type = t
	}
	return m
}

// SetThreshold overrides the occurrence threshold for fault. Used by
// ground testing to trip a rule earlier or later than the built-in
// table without recompiling; a zero threshold is rejected.
func (m *Monitor) SetThreshold(fault FaultType, threshold uint32) {
	if fault >= faultTypeCount || threshold == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[fault].threshold = threshold
}

// ReportFault records an occurrence of fault at subsystem, timestamped
// nowMs, and emits an Error event.
func (m *Monitor) ReportFault(fault FaultType, subsystem platform.SubsystemId, nowMs uint32) {
	if fault >= faultTypeCount {
		return
	}
	m.mu.Lock()
	r := &m.records[fault]
	r.Subsystem = subsystem
	r.TimestampMs = nowMs
	r.OccurrenceCount++
	r.Active = true
	count := r.OccurrenceCount
	m.mu.Unlock()

	if m.events != nil {
		m.events.Record(nowMs, telemetrylog.Error, uint8(subsystem), uint16(fault),
			fmt.Sprintf("fault %s occ=%d", fault, count))
	}
}

// Record returns a copy of the fault record for fault.
func (m *Monitor) Record(fault FaultType) Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fault >= faultTypeCount {
		return Record{}
	}
	return m.records[fault]
}

// Active returns every currently active fault type.
func (m *Monitor) Active() []FaultType {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []FaultType
	for t := FaultType(0); t < faultTypeCount; t++ {
		if m.records[t].Active {
			out = append(out, t)
		}
	}
	return out
}

// Periodic is the FDIR periodic pass:
//  1. if resetCause is Watchdog and bootCount >= 3, report ResetLoop;
//  2. for every active fault whose occurrence count has crossed its
//     rule's threshold, dispatch the rule's action.
func (m *Monitor) Periodic(resetCause platform.ResetCause, bootCount uint32, nowMs uint32) {
	if resetCause == platform.ResetWatchdog && bootCount >= 3 {
		m.ReportFault(ResetLoop, platform.SubsystemOBC, nowMs)
	}

	var toDispatch []FaultType
	m.mu.Lock()
	for t := FaultType(0); t < faultTypeCount; t++ {
		r := &m.records[t]
		if r.Active && r.OccurrenceCount >= m.rules[t].threshold {
			toDispatch = append(toDispatch, t)
		}
	}
	m.mu.Unlock()

	for _, t := range toDispatch {
		m.dispatch(t, nowMs)
	}
}

// dispatch executes the recovery action for fault.
func (m *Monitor) dispatch(fault FaultType, nowMs uint32) {
	m.mu.Lock()
	r := &m.records[fault]
	subsystem := r.Subsystem
	action := m.rules[fault].action
	r.LastAction = action
	m.mu.Unlock()

	switch action {
	case ActionNone, ActionRetry:
		// No-op.
	case ActionIsolate:
		// Marking isolated is recorded via LastAction; a real build
		// would also gate the affected bus/driver here.
	case ActionResetSubsys:
		m.hooks.ResetSubsystem(subsystem)
	case ActionSafeMode:
		m.modeMgr.Force(mode.Safe)
	case ActionSystemReset:
		m.hooks.ResetSoftware()
	case ActionPayloadOff:
		m.hooks.PowerDisableRail(platform.RailPayload)
	case ActionLoadShed:
		m.hooks.PowerDisableRail(platform.RailPayload)
		m.hooks.PowerDisableRail(platform.RailActuators)
		m.hooks.PowerDisableRail(platform.RailSensors)
	}

	if m.events != nil {
		m.events.Record(nowMs, telemetrylog.Warning, uint8(fault), uint16(action),
			fmt.Sprintf("fdir action %d for %s", action, fault))
	}
}

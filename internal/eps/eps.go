// Package eps implements the electrical power system policy: five
// power rails, a state-of-charge-driven load-shed and low-power policy, and a load-admission check for other subsystems.
package eps

import (
	"sync"

	"github.com/octoreflex/fswsupervisor/internal/fdir"
	"github.com/octoreflex/fswsupervisor/internal/mode"
	"github.com/octoreflex/fswsupervisor/internal/platform"
)

// criticalSOC and lowPowerEnter/Exit are the fixed state-of-charge
// thresholds driving load-shed and mode requests.
const (
	criticalSOC      = 10.0
	lowPowerEnterSOC = 20.0
	lowPowerExitSOC  = 50.0

	// lowPowerLoadCeilingMw is the maximum load accepted by
	// CanSupportLoad while in low-power.
	lowPowerLoadCeilingMw = 100
)

// Provider supplies the opaque battery/solar/consumption telemetry EPS
// policy reasons over. A real build backs this with the power-monitor
// driver; the simulator backs it with a scripted or modeled source.
type Provider interface {
	BatterySOCPercent() float64
	SolarInputMw() int32
	ConsumptionMw() int32
}

// Policy owns EPS rail state and load-shed/low-power policy. It sits
// directly above FDIR in lock order; it never calls
// into ModeManager or FDIR while holding its own lock — those calls
// happen only after releasing it, exactly like FDIR does for Mode.
type Policy struct {
	mu sync.Mutex

	hooks    platform.Hooks
	provider Provider
	faults   *fdir.Monitor
	modeMgr  *mode.Manager

	critical  bool
	lowPower  bool
	balanceMw int32
}

// New creates an EPS Policy. All five rails are assumed enabled at
// construction (matching platform.Sim's cold-boot default); Core is
// never touched by policy logic: the Core rail may never be disabled.
func New(hooks platform.Hooks, provider Provider, faults *fdir.Monitor, modeMgr *mode.Manager) *Policy {
	return &Policy{hooks: hooks, provider: provider, faults: faults, modeMgr: modeMgr}
}

// Critical reports whether the critical-power flag is currently set.
func (p *Policy) Critical() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.critical
}

// LowPower reports whether the policy currently considers the system
// in low-power.
func (p *Policy) LowPower() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lowPower
}

// Balance returns the most recently computed power balance in
// milliwatts (solar input minus consumption).
func (p *Policy) Balance() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balanceMw
}

// CanSupportLoad answers whether an additional load of mw milliwatts
// may be enabled:
//
//	critical:   always false
//	low-power:  only loads strictly under 100 mW
//	otherwise:  balance + mw > 0
func (p *Policy) CanSupportLoad(mw int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.critical {
		return false
	}
	if p.lowPower {
		return mw < lowPowerLoadCeilingMw
	}
	return p.balanceMw+mw > 0
}

// action is dispatched by Periodic after its lock is released, so the
// calls into FDIR/ModeManager/Hooks never happen while Policy's own
// lock is held.
type action struct {
	reportCritical bool
	loadShed       bool
	enterLowPower  bool
	exitLowPower   bool
}

// Periodic recomputes the power budget and applies the policy ladder:
//  1. soc <= 10%: set critical, report PowerCritical, shed load.
//  2. soc <= 20% and not already low-power: enter low-power.
//  3. soc >= 50% and currently low-power: exit low-power.
func (p *Policy) Periodic(nowMs uint32) {
	soc := p.provider.BatterySOCPercent()
	solar := p.provider.SolarInputMw()
	consumption := p.provider.ConsumptionMw()

	var act action
	p.mu.Lock()
	p.balanceMw = solar - consumption

	if soc <= criticalSOC {
		p.critical = true
		act.reportCritical = true
		act.loadShed = true
	}
	if soc <= lowPowerEnterSOC && !p.lowPower {
		p.lowPower = true
		act.enterLowPower = true
	}
	if soc >= lowPowerExitSOC && p.lowPower {
		p.lowPower = false
		p.critical = false
		act.exitLowPower = true
	}
	p.mu.Unlock()

	if act.reportCritical {
		p.faults.ReportFault(fdir.PowerCritical, platform.SubsystemEPS, nowMs)
	}
	if act.loadShed {
		p.loadShed()
	}
	if act.enterLowPower {
		p.hooks.PowerDisableRail(platform.RailActuators)
		p.hooks.PowerDisableRail(platform.RailPayload)
		p.modeMgr.Request(mode.LowPower)
	}
	if act.exitLowPower {
		p.hooks.PowerEnableRail(platform.RailActuators)
	}
}

// loadShed disables Payload, Actuators and Sensors. Core is
// never touched.
func (p *Policy) loadShed() {
	p.hooks.PowerDisableRail(platform.RailPayload)
	p.hooks.PowerDisableRail(platform.RailActuators)
	p.hooks.PowerDisableRail(platform.RailSensors)
}

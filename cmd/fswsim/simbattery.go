package main

import (
	"sync"

	"github.com/octoreflex/fswsupervisor/internal/health"
	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/simconfig"
)

// simBattery is a deterministic eps.Provider backing the simulator: a
// linear state-of-charge model driven by the configured solar input and
// base consumption, advanced lazily against platform.Hooks' monotonic
// clock whenever it is queried.
type simBattery struct {
	mu sync.Mutex

	hooks platform.Hooks

	socPercent    float64
	solarMw       int32
	consumptionMw int32
	dischargePctH float64

	lastUpdateMs uint32
}

// newSimBattery creates a simBattery seeded from cfg.
func newSimBattery(hooks platform.Hooks, cfg simconfig.EpsConfig) *simBattery {
	return &simBattery{
		hooks:         hooks,
		socPercent:    cfg.InitialSocPercent,
		solarMw:       cfg.SolarInputMw,
		consumptionMw: cfg.BaseConsumptionMw,
		dischargePctH: cfg.DischargeRatePercentPerHour,
	}
}

// advance applies the linear SOC model for the elapsed time since the
// last query. Charges at half the configured discharge rate when the
// power balance is positive; this is a simulation convenience, not a
// real battery model.
func (b *simBattery) advance() {
	now := b.hooks.TimeMsMonotonic()
	elapsedMs := now - b.lastUpdateMs
	b.lastUpdateMs = now

	hours := float64(elapsedMs) / 3_600_000.0
	balance := b.solarMw - b.consumptionMw
	switch {
	case balance < 0:
		b.socPercent -= b.dischargePctH * hours
	case balance > 0:
		b.socPercent += b.dischargePctH * hours * 0.5
	}
	if b.socPercent < 0 {
		b.socPercent = 0
	}
	if b.socPercent > 100 {
		b.socPercent = 100
	}
}

func (b *simBattery) BatterySOCPercent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.socPercent
}

func (b *simBattery) SolarInputMw() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.solarMw
}

func (b *simBattery) ConsumptionMw() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumptionMw
}

// SetConsumptionMw lets the operator console (or a ground test script)
// drive a load step to exercise the EPS load-shed/low-power ladder.
func (b *simBattery) SetConsumptionMw(mw int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumptionMw = mw
}

// SetSOCPercent forces the simulated state of charge, for ground-test
// scenarios that need to reach the critical/low-power thresholds
// immediately rather than waiting out the discharge model.
func (b *simBattery) SetSOCPercent(pct float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.socPercent = pct
}

// simEnvironment is a fixed-nominal health.EnvironmentProvider: every
// value sits comfortably inside the health monitor's thresholds
// unless a ground test script pushes it out of range via the setters.
type simEnvironment struct {
	mu sync.Mutex

	tempC      int32
	cpuLoadPct uint32
	minStackB  uint32
	voltageMv  uint32
}

func newSimEnvironment() *simEnvironment {
	return &simEnvironment{
		tempC:      20,
		cpuLoadPct: 15,
		minStackB:  4096,
		voltageMv:  3700,
	}
}

func (e *simEnvironment) ReadEnvironment() health.Environment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return health.Environment{
		TempC:      e.tempC,
		CPULoadPct: e.cpuLoadPct,
		MinStackB:  e.minStackB,
		VoltageMv:  e.voltageMv,
	}
}

// SetTempC lets a ground test script push the simulated temperature out
// of the nominal band to exercise the thermal FDIR path.
func (e *simEnvironment) SetTempC(c int32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tempC = c
}

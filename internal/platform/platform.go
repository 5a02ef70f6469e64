// Package platform defines the abstract hardware surface the mission
// supervisor core depends on.
//
// The core never touches a register, a bus, or a clock directly — it
// calls through the Hooks interface. Real flight builds wire Hooks to
// the board support package (I2C/SPI/UART/GPIO drivers, out of scope
// here); this module ships only a deterministic in-memory
// implementation (Sim) used by the simulator harness and by every core
// unit test.
package platform

// ResetCause identifies why the last reset occurred.
type ResetCause uint8

const (
	ResetUnknown ResetCause = iota
	ResetPowerOn
	ResetPin
	ResetWatchdog
	ResetSoftware
	ResetBrownOut
	ResetLowPower
)

func (c ResetCause) String() string {
	switch c {
	case ResetPowerOn:
		return "PowerOn"
	case ResetPin:
		return "Pin"
	case ResetWatchdog:
		return "Watchdog"
	case ResetSoftware:
		return "Software"
	case ResetBrownOut:
		return "BrownOut"
	case ResetLowPower:
		return "LowPower"
	default:
		return "Unknown"
	}
}

// SubsystemId names a resettable/isolatable subsystem, used by FDIR's
// ResetSubsys and Isolate actions.
type SubsystemId uint8

const (
	SubsystemUnknown SubsystemId = iota
	SubsystemADCS
	SubsystemComms
	SubsystemPayload
	SubsystemEPS
	SubsystemOBC
)

// RailID identifies one of the five EPS power rails.
type RailID uint8

const (
	RailCore RailID = iota
	RailSensors
	RailActuators
	RailComms
	RailPayload
	railCount
)

func (r RailID) String() string {
	switch r {
	case RailCore:
		return "Core"
	case RailSensors:
		return "Sensors"
	case RailActuators:
		return "Actuators"
	case RailComms:
		return "Comms"
	case RailPayload:
		return "Payload"
	default:
		return "Unknown"
	}
}

// Hooks is the complete abstract hardware surface the core depends on.
// TimeMsMonotonic is wrap-agnostic within a single
// uptime (32-bit ms wraps after ~49 days); callers must use modular
// arithmetic, never direct subtraction assumed non-negative.
type Hooks interface {
	WatchdogKick()
	ResetGetCause() ResetCause
	ResetSoftware()
	ResetSubsystem(id SubsystemId)
	SafeModePinAsserted() bool
	PowerEnableRail(rail RailID)
	PowerDisableRail(rail RailID)
	DebugPutChar(b byte)
	TimeMsMonotonic() uint32
}

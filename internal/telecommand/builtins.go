package telecommand

import (
	"github.com/octoreflex/fswsupervisor/internal/clock"
	"github.com/octoreflex/fswsupervisor/internal/mode"
	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/status"
	"github.com/octoreflex/fswsupervisor/internal/telemetry"
)

// RegisterBuiltins registers the fixed set of built-in handlers: Ping,
// ConnectionTest, ModeChange, SystemReset, EnableHk, DisableHk, and TimeSync.
func RegisterBuiltins(p *Pipeline, modeMgr *mode.Manager, hooks platform.Hooks, tm *telemetry.Pipeline, clk *clock.Clock) status.Status {
	handlers := []TcDefinition{
		{Service: 17, Subtype: 1, AuthLevel: AuthNone, Handler: pingHandler},
		{Service: 17, Subtype: 2, AuthLevel: AuthNone, Handler: connectionTestHandler},
		{Service: 8, Subtype: 1, AuthLevel: AuthElevated, Handler: modeChangeHandler(modeMgr)},
		{Service: 8, Subtype: 4, AuthLevel: AuthCritical, Handler: systemResetHandler(hooks)},
		{Service: 3, Subtype: 5, AuthLevel: AuthBasic, Handler: enableHkHandler(tm)},
		{Service: 3, Subtype: 6, AuthLevel: AuthBasic, Handler: disableHkHandler(tm)},
		{Service: 9, Subtype: 1, AuthLevel: AuthElevated, Handler: timeSyncHandler(clk)},
	}
	for _, h := range handlers {
		if st := p.Register(h); st != status.OK {
			return st
		}
	}
	return status.OK
}

func pingHandler(data []byte) ([]byte, status.Status) {
	return []byte("PONG"), status.OK
}

func connectionTestHandler(data []byte) ([]byte, status.Status) {
	echo := make([]byte, len(data))
	copy(echo, data)
	return echo, status.OK
}

func modeChangeHandler(modeMgr *mode.Manager) Handler {
	return func(data []byte) ([]byte, status.Status) {
		if len(data) < 1 {
			return nil, status.InvalidParam
		}
		return nil, modeMgr.Request(mode.SystemMode(data[0]))
	}
}

func systemResetHandler(hooks platform.Hooks) Handler {
	return func(data []byte) ([]byte, status.Status) {
		hooks.ResetSoftware()
		return nil, status.OK
	}
}

func enableHkHandler(tm *telemetry.Pipeline) Handler {
	return func(data []byte) ([]byte, status.Status) {
		if len(data) < 1 {
			return nil, status.InvalidParam
		}
		return nil, tm.Enable(telemetry.TmHandle(data[0]))
	}
}

func disableHkHandler(tm *telemetry.Pipeline) Handler {
	return func(data []byte) ([]byte, status.Status) {
		if len(data) < 1 {
			return nil, status.InvalidParam
		}
		return nil, tm.Disable(telemetry.TmHandle(data[0]))
	}
}

// timeSyncHandler consumes the 6-byte payload seconds_be32 |
// subseconds_be16 and syncs the mission clock. The subseconds field
// is a CCSDS-style 1/65536-second tick count, converted here to the
// clock package's microsecond fine field.
func timeSyncHandler(clk *clock.Clock) Handler {
	return func(data []byte) ([]byte, status.Status) {
		if len(data) < 6 {
			return nil, status.InvalidParam
		}
		seconds := int64(data[0])<<24 | int64(data[1])<<16 | int64(data[2])<<8 | int64(data[3])
		subseconds := uint32(data[4])<<8 | uint32(data[5])
		micros := subseconds * 1_000_000 / 65536

		clk.SyncUTC(clock.UTC{Seconds: seconds, Micros: micros})
		return nil, status.OK
	}
}

// Package main — cmd/fswsim/main.go
//
// fswsim is the satellite-side simulator harness: it boots one
// Supervisor against a deterministic platform.Sim, drives its RTOS tick
// loop in real time, serves the operator console for ground-test
// control, and exposes the groundlink RadioLink service so a
// groundstation process can exchange CCSDS/PUS frames with it over a
// loopback gRPC stream.
//
// Startup sequence:
//  1. Load and validate simconfig from -config.
//  2. Initialise structured logger (zap).
//  3. Construct platform.Sim and the simulated EPS/health providers.
//  4. Boot the Supervisor.
//  5. Start the operator console (Unix socket).
//  6. Start the groundlink server (gRPC).
//  7. Register SIGHUP handler that re-loads and validates the config and
//     logs the result; the running logger and supervisor settings are
//     not changed by it.
//  8. Run the RTOS tick loop until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/octoreflex/fswsupervisor/internal/bootrecord"
	"github.com/octoreflex/fswsupervisor/internal/ccsds"
	"github.com/octoreflex/fswsupervisor/internal/fdir"
	"github.com/octoreflex/fswsupervisor/internal/groundlink"
	"github.com/octoreflex/fswsupervisor/internal/operator"
	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/simconfig"
	"github.com/octoreflex/fswsupervisor/internal/supervisor"
	"github.com/octoreflex/fswsupervisor/internal/telemetry"
)

// rtosTickMs must match supervisor's own internal tick assumption
// (Supervisor.Tick steps its scheduler by a fixed 10 ms every call).
const rtosTickMs = 10

func main() {
	configPath := flag.String("config", "./fswsim.yaml", "Path to fswsim.yaml")
	operatorSocket := flag.String("operator-socket", "/tmp/fswsim-operator.sock", "Unix socket path for the operator console")
	callsign := flag.String("callsign", "OCTRFX1", "Beacon callsign (max 8 bytes)")
	flag.Parse()

	cfg, err := simconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := buildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("fswsim starting",
		zap.String("config", *configPath),
		zap.String("callsign", *callsign),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hooks := platform.NewSim()

	battery := newSimBattery(hooks, cfg.Eps)
	environment := newSimEnvironment()

	rec := &bootrecord.Record{}

	sup := supervisor.Boot(hooks, rec, supervisor.Config{
		EpsProvider: battery,
		EnvProvider: environment,
		Callsign:    *callsign,
	})
	log.Info("supervisor booted",
		zap.String("mode", sup.Mode.Current().String()),
		zap.Uint32("boot_count", rec.BootCount),
	)

	if cfg.Fdir.WatchdogThresholdOverride != 0 {
		sup.Fdir.SetThreshold(fdir.Watchdog, cfg.Fdir.WatchdogThresholdOverride)
	}
	if cfg.Fdir.BusErrorThresholdOverride != 0 {
		sup.Fdir.SetThreshold(fdir.BusError, cfg.Fdir.BusErrorThresholdOverride)
	}

	registerHousekeeping(sup)

	opSrv := operator.NewServer(*operatorSocket, sup, log)
	go func() {
		if err := opSrv.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
			log.Error("operator console error", zap.Error(err))
		}
	}()
	log.Info("operator console listening", zap.String("socket", *operatorSocket))

	glSrv := groundlink.NewServer(&downlinkAdapter{sup: sup}, sup, log)
	go func() {
		if err := groundlink.ListenAndServe(ctx, cfg.Groundlink.ListenAddr, glSrv); err != nil && ctx.Err() == nil {
			log.Error("groundlink server error", zap.Error(err))
		}
	}()
	log.Info("groundlink server listening", zap.String("addr", cfg.Groundlink.ListenAddr))

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info("SIGHUP received — reloading config...")
			newCfg, err := simconfig.Load(*configPath)
			if err != nil {
				log.Error("config hot-reload failed — retaining old config", zap.Error(err))
				continue
			}
			log.Info("config hot-reload successful", zap.String("new_log_level", newCfg.Observability.LogLevel))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.Scheduler.TickMs) * time.Millisecond)
	defer ticker.Stop()

	log.Info("RTOS tick loop running", zap.Uint32("tick_ms", cfg.Scheduler.TickMs))
	ticks := 0
	for {
		select {
		case sig := <-sigCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			cancel()
			log.Info("fswsim shutdown complete")
			return
		case <-ticker.C:
			hooks.Advance(rtosTickMs)
			sup.Tick()
			ticks++
			if ticks%100 == 0 {
				// Re-emit the on-board debug ring through the harness
				// logger roughly once per simulated second.
				if ring := sup.DrainDebugLog(); len(ring) > 0 {
					log.Debug("fsw debug ring", zap.ByteString("contents", ring))
				}
			}
		}
	}
}

// registerHousekeeping registers the fixed housekeeping telemetry
// definitions a ground operator would expect on every mission: a
// 4-byte power-balance report at APID Power and a 2-byte mode/health
// report at APID Health, mirroring the fields already summarized in
// the beacon.
func registerHousekeeping(sup *supervisor.Supervisor) {
	sup.Telemetry.Register(telemetry.TmDefinition{
		Apid:     ccsds.Power,
		Service:  3,
		Subtype:  25,
		PeriodMs: 4000,
		Priority: telemetry.Normal,
		Generator: func() []byte {
			balanceMw := sup.Eps.Balance()
			return []byte{byte(balanceMw), byte(balanceMw >> 8), byte(balanceMw >> 16), byte(balanceMw >> 24)}
		},
	})
	sup.Telemetry.Register(telemetry.TmDefinition{
		Apid:     ccsds.Health,
		Service:  3,
		Subtype:  25,
		PeriodMs: 4000,
		Priority: telemetry.Normal,
		Generator: func() []byte {
			return []byte{byte(sup.Mode.Current()), byte(sup.Health.Overall())}
		},
	})
}

// downlinkAdapter adapts Supervisor onto groundlink.DownlinkSource: it
// drains the TM priority queue first, falling back to the latest
// beacon frame only when it has changed since the last poll (the
// beacon has no dequeue semantics of its own; its cadence is
// driven by runBeacon, not by a consumer drain).
type downlinkAdapter struct {
	sup        *supervisor.Supervisor
	lastBeacon []byte
}

func (d *downlinkAdapter) NextDownlinkFrame() ([]byte, bool) {
	if pkt, _, ok := d.sup.DequeueDownlink(); ok {
		return pkt, true
	}
	if b, ok := d.sup.LatestBeacon(); ok && !bytesEqual(b, d.lastBeacon) {
		d.lastBeacon = b
		return b, true
	}
	return nil, false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// buildLogger constructs a zap.Logger with the given level and format.
func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}

// Package main — cmd/groundstation/main.go
//
// groundstation is the ground-segment counterpart to fswsim: it dials
// the simulator's groundlink RadioLink stream, decodes every downlinked
// frame (CCSDS/PUS TM packets and beacon frames), archives them to a
// BoltDB ground store, and exposes Prometheus metrics. With
// -uplink-ping it also exercises the uplink path by sending a periodic
// PUS 17/1 Ping telecommand.
//
// Startup sequence:
//  1. Load and validate simconfig from -config.
//  2. Initialise structured logger (zap).
//  3. Open the BoltDB ground store.
//  4. Start the Prometheus metrics server.
//  5. Dial the groundlink RadioLink stream.
//  6. Run the downlink decode/archive loop and (optionally) the uplink
//     ping loop until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/octoreflex/fswsupervisor/internal/beacon"
	"github.com/octoreflex/fswsupervisor/internal/ccsds"
	"github.com/octoreflex/fswsupervisor/internal/groundlink"
	"github.com/octoreflex/fswsupervisor/internal/groundmetrics"
	"github.com/octoreflex/fswsupervisor/internal/groundstore"
	"github.com/octoreflex/fswsupervisor/internal/simconfig"
	"github.com/octoreflex/fswsupervisor/internal/status"
)

func main() {
	configPath := flag.String("config", "./fswsim.yaml", "Path to fswsim.yaml")
	uplinkPing := flag.Bool("uplink-ping", false, "Periodically uplink a PUS 17/1 Ping telecommand")
	pingInterval := flag.Duration("ping-interval", 15*time.Second, "Interval between uplinked pings when -uplink-ping is set")
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

	log.Info("groundstation starting", zap.String("config", *configPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := groundstore.Open(cfg.Storage.DBPath)
	if err != nil {
		log.Fatal("ground store open failed", zap.Error(err), zap.String("path", cfg.Storage.DBPath))
	}
	defer store.Close() //nolint:errcheck
	log.Info("ground store opened", zap.String("path", cfg.Storage.DBPath))

	metrics := groundmetrics.NewMetrics()
	go func() {
		if err := metrics.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil && ctx.Err() == nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))

	client, err := groundlink.Dial(ctx, cfg.Groundlink.DialAddr, log)
	if err != nil {
		log.Fatal("groundlink dial failed", zap.Error(err), zap.String("addr", cfg.Groundlink.DialAddr))
	}
	defer client.Close() //nolint:errcheck
	log.Info("groundlink connected", zap.String("addr", cfg.Groundlink.DialAddr))

	go runDownlinkLoop(ctx, client, store, metrics, log)

	if *uplinkPing {
		go runUplinkPingLoop(ctx, client, store, metrics, log, *pingInterval)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))
	cancel()
	log.Info("groundstation shutdown complete")
}

// runDownlinkLoop receives frames from the groundlink stream and routes
// each to the decoder that recognizes it: CCSDS TM first (service/
// subtype 5/5 event reports get their own archive bucket), falling back
// to the fixed-size beacon frame.
func runDownlinkLoop(ctx context.Context, client *groundlink.Client, store *groundstore.DB, metrics *groundmetrics.Metrics, log *zap.Logger) {
	for {
		frame, err := client.RecvDownlink()
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				log.Info("downlink stream closed")
				return
			}
			log.Error("downlink recv error", zap.Error(err))
			return
		}

		metrics.GroundlinkFramesTotal.WithLabelValues("downlink").Inc()

		if pkt, st := ccsds.ParseTM(frame); st == status.OK {
			handleTM(pkt, store, metrics, log)
			continue
		}

		if len(frame) == beacon.FrameSize {
			var raw [beacon.FrameSize]byte
			copy(raw[:], frame)
			if dec, ok := beacon.Decode(raw); ok {
				handleBeacon(dec, store, metrics, log)
				continue
			}
		}

		metrics.TelemetryDecodeErrorsTotal.Inc()
		log.Warn("downlink frame did not decode as TM or beacon", zap.Int("len", len(frame)))
	}
}

func handleTM(pkt ccsds.TmPacket, store *groundstore.DB, metrics *groundmetrics.Metrics, log *zap.Logger) {
	metrics.TelemetryPacketsTotal.WithLabelValues(strconv.Itoa(int(pkt.Service)), strconv.Itoa(int(pkt.Subtype))).Inc()

	start := time.Now()
	if err := store.PutTelemetry(groundstore.TelemetryRecord{
		Apid:       uint16(pkt.Apid),
		Sequence:   pkt.Sequence,
		Service:    pkt.Service,
		Subtype:    pkt.Subtype,
		CoarseTime: pkt.CoarseTime,
		FineTime:   pkt.FineTime,
		Data:       pkt.Data,
	}); err != nil {
		log.Error("archive telemetry failed", zap.Error(err))
	}
	metrics.StorageWriteLatency.Observe(time.Since(start).Seconds())

	if pkt.Service == 5 && pkt.Subtype == 5 && len(pkt.Data) >= 6 {
		id := uint16(pkt.Data[0])<<8 | uint16(pkt.Data[1])
		if err := store.PutEvent(groundstore.EventRecord{
			Subsystem: uint8(pkt.Apid),
			Code:      id,
			Message:   fmt.Sprintf("payload=% x", pkt.Data[6:]),
		}); err != nil {
			log.Error("archive event failed", zap.Error(err))
		}
	}
}

func handleBeacon(dec beacon.Decoded, store *groundstore.DB, metrics *groundmetrics.Metrics, log *zap.Logger) {
	metrics.BeaconSoc.Set(float64(dec.BatSocPercent))
	metrics.BeaconRssi.Set(float64(dec.RssiDbm))
	metrics.BeaconMode.Set(float64(dec.Mode))

	start := time.Now()
	if err := store.PutBeacon(groundstore.BeaconRecord{
		Sequence:      uint32(dec.Sequence),
		Mode:          uint8(dec.Mode),
		BatSocPercent: dec.BatSocPercent,
		RssiDbm:       dec.RssiDbm,
	}); err != nil {
		log.Error("archive beacon failed", zap.Error(err))
	}
	metrics.StorageWriteLatency.Observe(time.Since(start).Seconds())
}

// runUplinkPingLoop sends a PUS 17/1 Ping telecommand every interval,
// the simplest possible uplink-path exercise.
func runUplinkPingLoop(ctx context.Context, client *groundlink.Client, store *groundstore.DB, metrics *groundmetrics.Metrics, log *zap.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint16
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wire := ccsds.BuildTC(ccsds.TcPacket{
				Apid:     ccsds.System,
				Sequence: seq,
				Service:  17,
				Subtype:  1,
			})
			err := client.Uplink(wire)
			if err != nil {
				log.Error("uplink ping failed", zap.Error(err))
			} else {
				metrics.GroundlinkFramesTotal.WithLabelValues("uplink").Inc()
				metrics.CommandsUplinkedTotal.WithLabelValues("sent").Inc()
			}
			if archErr := store.AppendCommand(groundstore.CommandRecord{
				Sequence: seq,
				Service:  17,
				Subtype:  1,
				Accepted: err == nil,
			}); archErr != nil {
				log.Error("archive command failed", zap.Error(archErr))
			}
			seq = (seq + 1) & 0x3FFF
		}
	}
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

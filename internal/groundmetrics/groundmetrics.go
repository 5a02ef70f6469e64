// Package groundmetrics exposes Prometheus metrics for the ground
// segment: decoded housekeeping from the downlinked TM stream, uplink
// command outcomes, and groundlink transport health.
//
// Endpoint: GET /metrics, loopback bind only by default.
// Metric naming convention: fswground_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry rather
// than the default global registry, to avoid collisions with other
// instrumented libraries in the same process.
package groundmetrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus metric descriptor for the ground
// segment.
type Metrics struct {
	registry *prometheus.Registry

	// TelemetryPacketsTotal counts decoded TM packets, by service/subtype.
	TelemetryPacketsTotal *prometheus.CounterVec

	// TelemetryDecodeErrorsTotal counts frames that failed CCSDS/PUS decode.
	TelemetryDecodeErrorsTotal prometheus.Counter

	// BeaconSoc is the most recently decoded battery state of charge.
	BeaconSoc prometheus.Gauge

	// BeaconRssi is the most recently decoded link RSSI.
	BeaconRssi prometheus.Gauge

	// BeaconMode is the most recently decoded mission mode, as its enum value.
	BeaconMode prometheus.Gauge

	// CommandsUplinkedTotal counts commands sent uplink, by accepted status.
	CommandsUplinkedTotal *prometheus.CounterVec

	// GroundlinkFramesTotal counts frames exchanged over the simulated
	// radio transport, by direction (uplink, downlink).
	GroundlinkFramesTotal *prometheus.CounterVec

	// StorageWriteLatency records BoltDB write transaction latency.
	StorageWriteLatency prometheus.Histogram

	// UptimeSeconds is the number of seconds since the ground tool started.
	UptimeSeconds prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates and registers every ground-segment metric.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		TelemetryPacketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fswground",
			Subsystem: "telemetry",
			Name:      "packets_total",
			Help:      "Total decoded TM packets received, by service and subtype.",
		}, []string{"service", "subtype"}),

		TelemetryDecodeErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fswground",
			Subsystem: "telemetry",
			Name:      "decode_errors_total",
			Help:      "Total downlinked frames that failed CCSDS/PUS decode.",
		}),

		BeaconSoc: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fswground",
			Subsystem: "beacon",
			Name:      "battery_soc_percent",
			Help:      "Most recently decoded battery state of charge, percent.",
		}),

		BeaconRssi: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fswground",
			Subsystem: "beacon",
			Name:      "rssi_dbm",
			Help:      "Most recently decoded downlink RSSI, dBm.",
		}),

		BeaconMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fswground",
			Subsystem: "beacon",
			Name:      "mode",
			Help:      "Most recently decoded mission mode enum value.",
		}),

		CommandsUplinkedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fswground",
			Subsystem: "commands",
			Name:      "uplinked_total",
			Help:      "Total telecommands uplinked, by accepted status.",
		}, []string{"accepted"}),

		GroundlinkFramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fswground",
			Subsystem: "groundlink",
			Name:      "frames_total",
			Help:      "Total frames exchanged over the simulated radio transport, by direction.",
		}, []string{"direction"}),

		StorageWriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fswground",
			Subsystem: "storage",
			Name:      "write_latency_seconds",
			Help:      "BoltDB write transaction latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fswground",
			Subsystem: "tool",
			Name:      "uptime_seconds",
			Help:      "Number of seconds since the ground tool started.",
		}),
	}

	reg.MustRegister(
		m.TelemetryPacketsTotal,
		m.TelemetryDecodeErrorsTotal,
		m.BeaconSoc,
		m.BeaconRssi,
		m.BeaconMode,
		m.CommandsUplinkedTotal,
		m.GroundlinkFramesTotal,
		m.StorageWriteLatency,
		m.UptimeSeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on addr. Blocks
// until ctx is cancelled or the server fails.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go m.updateUptime(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.UptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}

// Package simconfig provides configuration loading and validation for the
// fswsim simulator harness and the groundstation tool.
//
// Configuration file: ./fswsim.yaml (default)
// Schema version: 1
package simconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the simulator harness.
type Config struct {
	SchemaVersion string `yaml:"schema_version"`

	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Fdir          FdirConfig          `yaml:"fdir"`
	Eps           EpsConfig           `yaml:"eps"`
	Groundlink    GroundlinkConfig    `yaml:"groundlink"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SchedulerConfig controls the RTOS-tick cadence of the simulated loop.
type SchedulerConfig struct {
	// TickMs is the simulated RTOS tick period. Default: 10.
	TickMs uint32 `yaml:"tick_ms"`
}

// FdirConfig allows ground testing to override the fixed FDIR thresholds
// without recompiling the core. Zero means "use the built-in threshold".
type FdirConfig struct {
	WatchdogThresholdOverride uint32 `yaml:"watchdog_threshold_override"`
	BusErrorThresholdOverride uint32 `yaml:"bus_error_threshold_override"`
}

// EpsConfig seeds the simulated battery/solar model.
type EpsConfig struct {
	// InitialSocPercent is the starting state of charge. Default: 80.
	InitialSocPercent float64 `yaml:"initial_soc_percent"`
	// SolarInputMw is the constant simulated solar input. Default: 2000.
	SolarInputMw int32 `yaml:"solar_input_mw"`
	// BaseConsumptionMw is the constant simulated consumption. Default: 1500.
	BaseConsumptionMw int32 `yaml:"base_consumption_mw"`
	// DischargeRatePercentPerHour drives the simulated SOC decay when
	// consumption exceeds solar input. Default: 1.0.
	DischargeRatePercentPerHour float64 `yaml:"discharge_rate_percent_per_hour"`
}

// GroundlinkConfig configures the simulated radio transport.
type GroundlinkConfig struct {
	// ListenAddr is the gRPC listen address for the satellite side.
	// Default: 0.0.0.0:50051.
	ListenAddr string `yaml:"listen_addr"`
	// DialAddr is the address the groundstation tool dials.
	// Default: 127.0.0.1:50051.
	DialAddr string `yaml:"dial_addr"`
	// UplinkDelay is a one-way light-time setting. Default: 0. It is
	// parsed but not applied: groundlink adds no uplink delay.
	UplinkDelay time.Duration `yaml:"uplink_delay"`
	// DownlinkDelay is a one-way light-time setting. Default: 0. It is
	// parsed but not applied: groundlink adds no downlink delay.
	DownlinkDelay time.Duration `yaml:"downlink_delay"`
}

// StorageConfig configures the ground segment's bbolt archive.
type StorageConfig struct {
	// DBPath is the absolute path to the BoltDB archive file.
	// Default: /var/lib/fswsupervisor/ground.db.
	DBPath string `yaml:"db_path"`
}

// ObservabilityConfig configures ground-segment metrics and logging.
type ObservabilityConfig struct {
	// MetricsAddr is the Prometheus metrics HTTP bind address.
	// Default: 127.0.0.1:9100.
	MetricsAddr string `yaml:"metrics_addr"`
	// LogLevel controls the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// LogFormat controls the log output format (json, console).
	LogFormat string `yaml:"log_format"`
}

// DefaultDBPath is the ground archive's default location.
const DefaultDBPath = "/var/lib/fswsupervisor/ground.db"

// Defaults returns a Config populated with all default values.
func Defaults() Config {
	return Config{
		SchemaVersion: "1",
		Scheduler: SchedulerConfig{
			TickMs: 10,
		},
		Eps: EpsConfig{
			InitialSocPercent:           80,
			SolarInputMw:                2000,
			BaseConsumptionMw:           1500,
			DischargeRatePercentPerHour: 1.0,
		},
		Groundlink: GroundlinkConfig{
			ListenAddr: "0.0.0.0:50051",
			DialAddr:   "127.0.0.1:50051",
		},
		Storage: StorageConfig{
			DBPath: DefaultDBPath,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9100",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load reads and validates a config file from path, merged with Defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("simconfig.Load: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("simconfig.Load: parse %q: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("simconfig.Load: validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks all config fields for correctness, collecting every
// violation into one error rather than failing on the first.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.Scheduler.TickMs == 0 {
		errs = append(errs, "scheduler.tick_ms must be > 0")
	}
	if cfg.Eps.InitialSocPercent < 0 || cfg.Eps.InitialSocPercent > 100 {
		errs = append(errs, fmt.Sprintf("eps.initial_soc_percent must be in [0, 100], got %f", cfg.Eps.InitialSocPercent))
	}
	if cfg.Eps.DischargeRatePercentPerHour < 0 {
		errs = append(errs, "eps.discharge_rate_percent_per_hour must be >= 0")
	}
	if cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.db_path must not be empty")
	}
	if cfg.Groundlink.ListenAddr == "" {
		errs = append(errs, "groundlink.listen_addr must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

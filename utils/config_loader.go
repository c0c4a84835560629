package utils

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"telemetry-logger/models"
)

// ─── Source configs ─────────────────────────────────────────────────────

type DistanceConfig struct {
	Enabled       bool `yaml:"enabled"`
	Units         int  `yaml:"units"`
	MinIntervalMs int  `yaml:"min_interval_ms"`
	UpdateRateHz  int  `yaml:"update_rate_hz"` // simulation only
}

type IMUConfig struct {
	Enabled     bool `yaml:"enabled"`
	AccelRateHz int  `yaml:"accel_rate_hz"` // simulation only
	GyroRateHz  int  `yaml:"gyro_rate_hz"`  // simulation only
}

type WheelConfig struct {
	Enabled       bool `yaml:"enabled"`
	Wheels        int  `yaml:"wheels"`
	MinIntervalMs int  `yaml:"min_interval_ms"`
	UpdateRateHz  int  `yaml:"update_rate_hz"` // simulation only
}

type SourcesConfig struct {
	Distance DistanceConfig `yaml:"distance"`
	IMU      IMUConfig      `yaml:"imu"`
	Wheel    WheelConfig    `yaml:"wheel"`
}

type ClockConfig struct {
	TicksPerSecond  uint32 `yaml:"ticks_per_second"`
	CycleIntervalUs int    `yaml:"cycle_interval_us"` // 0 = free-running loop
}

type SimulationConfig struct {
	Enabled         bool `yaml:"enabled"`
	DurationSeconds int  `yaml:"duration_seconds"`
}

// ─── Storage / sink configs ─────────────────────────────────────────────

type StorageConfig struct {
	Dir             string `yaml:"dir"`
	Prefix          string `yaml:"prefix"`
	IndexWidth      int    `yaml:"index_width"`
	FlushIntervalMs int    `yaml:"flush_interval_ms"`
	BufferSizeKB    int    `yaml:"buffer_size_kb"`
	MaxFileBytes    int64  `yaml:"max_file_bytes"` // 0 = never rotate mid-session
}

type FileSinkConfig struct {
	Enabled bool `yaml:"enabled"`
}

type SerialSinkConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Device    string `yaml:"device"`
	QueueSize int    `yaml:"queue_size"`
}

type NATSSinkConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type WebSocketSinkConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Listen       string `yaml:"listen"`
	Path         string `yaml:"path"`
	ClientBuffer int    `yaml:"client_buffer"`
}

type DiagnosticSinkConfig struct {
	Enabled      bool `yaml:"enabled"`
	MaxPerSecond int  `yaml:"max_per_second"`
	Verbose      bool `yaml:"verbose"`
}

type SinksConfig struct {
	File       FileSinkConfig       `yaml:"file"`
	Serial     SerialSinkConfig     `yaml:"serial"`
	NATS       NATSSinkConfig       `yaml:"nats"`
	WebSocket  WebSocketSinkConfig  `yaml:"websocket"`
	Diagnostic DiagnosticSinkConfig `yaml:"diagnostic"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config is the top-level structure for logger.yaml. It is read-only once
// LoadConfig returns.
type Config struct {
	BufferCapacity int              `yaml:"buffer_capacity"`
	Clock          ClockConfig      `yaml:"clock"`
	Sources        SourcesConfig    `yaml:"sources"`
	Simulation     SimulationConfig `yaml:"simulation"`
	Storage        StorageConfig    `yaml:"storage"`
	Sinks          SinksConfig      `yaml:"sinks"`
	Metrics        MetricsConfig    `yaml:"metrics"`
	Log            LogConfig        `yaml:"log"`
}

// DefaultConfig mirrors the flight firmware: four distance units, one IMU,
// four wheels, 1 ms level-gate interval and a one second flush.
func DefaultConfig() *Config {
	return &Config{
		BufferCapacity: models.DefaultBufferCapacity,
		Clock: ClockConfig{
			TicksPerSecond:  DefaultTicksPerSecond,
			CycleIntervalUs: 1000,
		},
		Sources: SourcesConfig{
			Distance: DistanceConfig{Enabled: true, Units: 4, MinIntervalMs: 1, UpdateRateHz: 500},
			IMU:      IMUConfig{Enabled: true, AccelRateHz: 400, GyroRateHz: 400},
			Wheel:    WheelConfig{Enabled: true, Wheels: 4, MinIntervalMs: 1, UpdateRateHz: 200},
		},
		Storage: StorageConfig{
			Dir:             "logs",
			Prefix:          "fsae",
			IndexWidth:      4,
			FlushIntervalMs: 1000,
			BufferSizeKB:    64,
		},
		Sinks: SinksConfig{
			File:       FileSinkConfig{Enabled: true},
			Serial:     SerialSinkConfig{QueueSize: 256},
			NATS:       NATSSinkConfig{URL: "nats://127.0.0.1:4222", Subject: "telemetry.records"},
			WebSocket:  WebSocketSinkConfig{Listen: ":8090", Path: "/records", ClientBuffer: 256},
			Diagnostic: DiagnosticSinkConfig{Enabled: true, MaxPerSecond: 10},
		},
		Metrics: MetricsConfig{Port: 9090},
		Log:     LogConfig{Level: "info"},
	}
}

// ─── Loaders ────────────────────────────────────────────────────────────

// LoadConfig reads logger.yaml over the defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Cardinality returns the configured count of every enabled source. The
// IMU axes always have a count of one.
func (c *Config) Cardinality() map[models.SourceID]int {
	out := make(map[models.SourceID]int, len(models.Sources))
	if c.Sources.Distance.Enabled {
		out[models.SourceDistance] = c.Sources.Distance.Units
	}
	if c.Sources.IMU.Enabled {
		out[models.SourceAccel] = 1
		out[models.SourceGyro] = 1
	}
	if c.Sources.Wheel.Enabled {
		out[models.SourceWheel] = c.Sources.Wheel.Wheels
	}
	return out
}

// Validate checks every configured source against the working buffer and
// the rest of the fields for sane ranges. All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error

	if c.BufferCapacity < models.RecordLen(models.SourceAccel, 1) {
		errs = append(errs, InvalidConfig("buffer_capacity %d is smaller than the smallest record", c.BufferCapacity))
	}
	if c.Clock.TicksPerSecond == 0 {
		errs = append(errs, InvalidConfig("clock.ticks_per_second must be positive"))
	}
	if c.Clock.CycleIntervalUs < 0 {
		errs = append(errs, InvalidConfig("clock.cycle_interval_us cannot be negative"))
	}

	for _, id := range models.Sources {
		count, ok := c.Cardinality()[id]
		if !ok {
			continue
		}
		limit := models.MaxCount(id, c.BufferCapacity)
		if count < 1 || count > limit {
			errs = append(errs, InvalidConfig("%s cardinality %d outside 1..%d for buffer_capacity %d",
				id, count, limit, c.BufferCapacity))
		}
	}
	if c.Sources.Distance.MinIntervalMs < 0 || c.Sources.Wheel.MinIntervalMs < 0 {
		errs = append(errs, InvalidConfig("min_interval_ms cannot be negative"))
	}

	if c.Storage.Prefix == "" {
		errs = append(errs, InvalidConfig("storage.prefix is required"))
	}
	if c.Storage.IndexWidth < 1 || c.Storage.IndexWidth > 9 {
		errs = append(errs, InvalidConfig("storage.index_width %d outside 1..9", c.Storage.IndexWidth))
	}
	if c.Storage.FlushIntervalMs <= 0 {
		errs = append(errs, InvalidConfig("storage.flush_interval_ms must be positive"))
	}
	if c.Storage.MaxFileBytes < 0 {
		errs = append(errs, InvalidConfig("storage.max_file_bytes cannot be negative"))
	}

	if c.Sinks.Serial.Enabled && c.Sinks.Serial.Device == "" {
		errs = append(errs, InvalidConfig("sinks.serial.device is required when enabled"))
	}
	if c.Sinks.NATS.Enabled && (c.Sinks.NATS.URL == "" || c.Sinks.NATS.Subject == "") {
		errs = append(errs, InvalidConfig("sinks.nats needs url and subject when enabled"))
	}
	if c.Sinks.WebSocket.Enabled && c.Sinks.WebSocket.Listen == "" {
		errs = append(errs, InvalidConfig("sinks.websocket.listen is required when enabled"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, InvalidConfig("log.level: %v", err))
	}

	return errors.Join(errs...)
}

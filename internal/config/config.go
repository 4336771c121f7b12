// Package config provides hierarchical configuration loading for Freshet.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the Freshet server.
type Config struct {
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
	Runtime   Runtime   `yaml:"runtime"`
	Cache     Cache     `yaml:"cache"`
	WebSocket WebSocket `yaml:"websocket"`
	Otel      Otel      `yaml:"otel"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port            string        `yaml:"port"`
	CORSOrigin      string        `yaml:"cors_origin"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Runtime holds session and script execution engine configuration.
type Runtime struct {
	// SessionGracePeriod is how long a disconnected session keeps its
	// widget state before it is torn down.
	SessionGracePeriod time.Duration `yaml:"session_grace_period"`
	// CloseTimeout bounds how long shutdown waits for in-flight runs.
	CloseTimeout time.Duration `yaml:"close_timeout"`
}

// Cache holds forward message cache configuration.
type Cache struct {
	// L1MaxSizeMB is the in-process cache budget for deduplicated payloads.
	L1MaxSizeMB int64 `yaml:"l1_max_size_mb"`
	// MsgThresholdBytes is the minimum encoded delta size worth caching;
	// zero disables deduplication.
	MsgThresholdBytes int `yaml:"msg_threshold_bytes"`
	// MsgMaxAgeRuns is how many script runs an unreferenced payload stays
	// pinned to a session.
	MsgMaxAgeRuns int `yaml:"msg_max_age_runs"`
}

// WebSocket holds client connection configuration.
type WebSocket struct {
	ReadLimitBytes int64         `yaml:"read_limit_bytes"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

// Otel holds OpenTelemetry export configuration.
type Otel struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SampleRatio  float64 `yaml:"sample_ratio"`
	MetricPeriod int     `yaml:"metric_period_seconds"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:            "8501",
			CORSOrigin:      "http://localhost:3000",
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "freshet",
		},
		Runtime: Runtime{
			SessionGracePeriod: time.Minute,
			CloseTimeout:       10 * time.Second,
		},
		Cache: Cache{
			L1MaxSizeMB:       64,
			MsgThresholdBytes: 10 * 1024,
			MsgMaxAgeRuns:     2,
		},
		WebSocket: WebSocket{
			ReadLimitBytes: 1 << 20,
			WriteTimeout:   10 * time.Second,
			PingInterval:   30 * time.Second,
		},
		Otel: Otel{
			Enabled:      false,
			Endpoint:     "localhost:4317",
			ServiceName:  "freshet",
			SampleRatio:  1.0,
			MetricPeriod: 30,
		},
	}
}

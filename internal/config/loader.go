package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "freshet.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "FRESHET_PORT")
	setString(&cfg.Server.CORSOrigin, "FRESHET_CORS_ORIGIN")
	setDuration(&cfg.Server.ShutdownTimeout, "FRESHET_SHUTDOWN_TIMEOUT")

	setString(&cfg.Logging.Level, "FRESHET_LOG_LEVEL")
	setString(&cfg.Logging.Service, "FRESHET_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "FRESHET_LOG_ASYNC")

	setDuration(&cfg.Runtime.SessionGracePeriod, "FRESHET_SESSION_GRACE_PERIOD")
	setDuration(&cfg.Runtime.CloseTimeout, "FRESHET_RUNTIME_CLOSE_TIMEOUT")

	setInt64(&cfg.Cache.L1MaxSizeMB, "FRESHET_CACHE_L1_SIZE_MB")
	setInt(&cfg.Cache.MsgThresholdBytes, "FRESHET_CACHE_MSG_THRESHOLD")
	setInt(&cfg.Cache.MsgMaxAgeRuns, "FRESHET_CACHE_MSG_MAX_AGE_RUNS")

	setInt64(&cfg.WebSocket.ReadLimitBytes, "FRESHET_WS_READ_LIMIT")
	setDuration(&cfg.WebSocket.WriteTimeout, "FRESHET_WS_WRITE_TIMEOUT")
	setDuration(&cfg.WebSocket.PingInterval, "FRESHET_WS_PING_INTERVAL")

	setBool(&cfg.Otel.Enabled, "FRESHET_OTEL_ENABLED")
	setString(&cfg.Otel.Endpoint, "FRESHET_OTEL_ENDPOINT")
	setString(&cfg.Otel.ServiceName, "FRESHET_OTEL_SERVICE_NAME")
	setFloat64(&cfg.Otel.SampleRatio, "FRESHET_OTEL_SAMPLE_RATIO")
	setInt(&cfg.Otel.MetricPeriod, "FRESHET_OTEL_METRIC_PERIOD")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
	}
	if cfg.Cache.MsgThresholdBytes < 0 {
		return errors.New("cache.msg_threshold_bytes must be >= 0")
	}
	if cfg.Cache.MsgMaxAgeRuns < 0 {
		return errors.New("cache.msg_max_age_runs must be >= 0")
	}
	if cfg.WebSocket.ReadLimitBytes < 1024 {
		return errors.New("websocket.read_limit_bytes must be >= 1024")
	}
	if cfg.Otel.SampleRatio < 0 || cfg.Otel.SampleRatio > 1 {
		return errors.New("otel.sample_ratio must be in [0, 1]")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Canopy Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Inference InferenceConfig `yaml:"inference"`
	Engine    EngineConfig    `yaml:"engine"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig contains grow-site information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// InferenceConfig contains settings for the external analysis provider.
// The provider itself is a black box; Canopy only needs an endpoint
// and a request timeout.
type InferenceConfig struct {
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
	Timeout int    `yaml:"timeout"` // seconds
}

// EngineConfig contains automation engine timing settings.
// Intervals and lookbacks are expressed in seconds unless noted.
type EngineConfig struct {
	// TickInterval is how often the engine runs a full pass.
	TickInterval int `yaml:"tick_interval"`

	// CleanupInterval is the minimum time between retention cleanup
	// passes. Cleanup runs as part of a tick once this much time has
	// elapsed since the previous cleanup.
	CleanupInterval int `yaml:"cleanup_interval"`

	// AnomalyLookbackHours is how far back a tick scans analysis
	// history for anomalies.
	AnomalyLookbackHours int `yaml:"anomaly_lookback_hours"`

	// MilestoneLookbackHours is how far back a tick scans analysis
	// history for milestones.
	MilestoneLookbackHours int `yaml:"milestone_lookback_hours"`

	// Retention thresholds.
	AnomalyRetentionDays      int `yaml:"anomaly_retention_days"`
	NotificationRetentionDays int `yaml:"notification_retention_days"`
	HistoryKeepPerPlant       int `yaml:"history_keep_per_plant"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CANOPY_SECTION_KEY
// For example: CANOPY_DATABASE_PATH, CANOPY_MQTT_HOST
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "grow-001",
			Name:     "Canopy",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/canopy.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "canopy-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Inference: InferenceConfig{
			URL:     "http://localhost:8750/v1/analyze",
			Timeout: 120,
		},
		Engine: EngineConfig{
			TickInterval:              60,
			CleanupInterval:           6 * 60 * 60,
			AnomalyLookbackHours:      24,
			MilestoneLookbackHours:    12,
			AnomalyRetentionDays:      90,
			NotificationRetentionDays: 30,
			HistoryKeepPerPlant:       200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CANOPY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("CANOPY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("CANOPY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CANOPY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CANOPY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("CANOPY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Inference provider
	if v := os.Getenv("CANOPY_INFERENCE_URL"); v != "" {
		cfg.Inference.URL = v
	}
	if v := os.Getenv("CANOPY_INFERENCE_API_KEY"); v != "" {
		cfg.Inference.APIKey = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Engine.TickInterval < 1 {
		errs = append(errs, "engine.tick_interval must be at least 1 second")
	}
	if c.Engine.HistoryKeepPerPlant < 1 {
		errs = append(errs, "engine.history_keep_per_plant must be at least 1")
	}
	if c.Engine.AnomalyLookbackHours < 1 {
		errs = append(errs, "engine.anomaly_lookback_hours must be at least 1")
	}
	if c.Engine.MilestoneLookbackHours < 1 {
		errs = append(errs, "engine.milestone_lookback_hours must be at least 1")
	}

	if c.Inference.URL == "" {
		errs = append(errs, "inference.url is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TickInterval returns the engine tick interval as a Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Engine.TickInterval) * time.Second
}

// CleanupInterval returns the minimum time between cleanup passes.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Engine.CleanupInterval) * time.Second
}

// InferenceTimeout returns the analysis request timeout as a Duration.
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.Inference.Timeout) * time.Second
}

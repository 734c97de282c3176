package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-grow"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
inference:
  url: "http://localhost:9000/analyze"
engine:
  tick_interval: 30
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-grow" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-grow")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Engine.TickInterval != 30 {
		t.Errorf("Engine.TickInterval = %d, want 30", cfg.Engine.TickInterval)
	}
	if cfg.Inference.URL != "http://localhost:9000/analyze" {
		t.Errorf("Inference.URL = %q", cfg.Inference.URL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `site: {id: "g"}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.TickInterval != 60 {
		t.Errorf("default tick_interval = %d, want 60", cfg.Engine.TickInterval)
	}
	if cfg.Engine.AnomalyLookbackHours != 24 {
		t.Errorf("default anomaly_lookback_hours = %d, want 24", cfg.Engine.AnomalyLookbackHours)
	}
	if cfg.Engine.MilestoneLookbackHours != 12 {
		t.Errorf("default milestone_lookback_hours = %d, want 12", cfg.Engine.MilestoneLookbackHours)
	}
	if cfg.Engine.HistoryKeepPerPlant != 200 {
		t.Errorf("default history_keep_per_plant = %d, want 200", cfg.Engine.HistoryKeepPerPlant)
	}
	if cfg.CleanupInterval() != 6*time.Hour {
		t.Errorf("default cleanup interval = %v, want 6h", cfg.CleanupInterval())
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default logging level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CANOPY_DATABASE_PATH", "/override/canopy.db")
	t.Setenv("CANOPY_MQTT_HOST", "broker.internal")
	t.Setenv("CANOPY_INFERENCE_URL", "http://inference.internal/v1/analyze")

	cfg, err := Load(writeConfig(t, `site: {id: "g"}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/override/canopy.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.internal" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
	if cfg.Inference.URL != "http://inference.internal/v1/analyze" {
		t.Errorf("Inference.URL = %q, want env override", cfg.Inference.URL)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing site id", func(c *Config) { c.Site.ID = "" }},
		{"missing database path", func(c *Config) { c.Database.Path = "" }},
		{"invalid qos", func(c *Config) { c.MQTT.QoS = 3 }},
		{"zero tick interval", func(c *Config) { c.Engine.TickInterval = 0 }},
		{"missing inference url", func(c *Config) { c.Inference.URL = "" }},
		{"zero history keep", func(c *Config) { c.Engine.HistoryKeepPerPlant = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}
}

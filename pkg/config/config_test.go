package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Expected default address 0.0.0.0:8080, got %s", cfg.Server.Addr())
	}

	// Map defaults
	if cfg.Map.CenterLatitude != 38.8976451 || cfg.Map.CenterLongitude != -77.0367452 {
		t.Errorf("Expected White House center, got %f,%f", cfg.Map.CenterLatitude, cfg.Map.CenterLongitude)
	}
	if cfg.Map.Zoom != 8 {
		t.Errorf("Expected zoom 8, got %d", cfg.Map.Zoom)
	}
	if cfg.Map.Style != "roadmap" {
		t.Errorf("Expected roadmap style, got %s", cfg.Map.Style)
	}

	// Relay defaults
	if cfg.Relay.PlaneTimeout() != 60*time.Second {
		t.Errorf("Expected plane timeout 60s, got %v", cfg.Relay.PlaneTimeout())
	}
	if cfg.Relay.MaxEventsPerSecond != 10 || cfg.Relay.Burst != 20 {
		t.Errorf("Expected 10 events/s burst 20, got %f/%d", cfg.Relay.MaxEventsPerSecond, cfg.Relay.Burst)
	}
	if cfg.Relay.TokenDuration() != 24*time.Hour {
		t.Errorf("Expected 24h tokens, got %v", cfg.Relay.TokenDuration())
	}

	// Database defaults
	if cfg.Database.Enabled {
		t.Error("Expected history disabled by default")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Expected default postgres port 5432, got %d", cfg.Database.Port)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got: %v", err)
	}
}

// TestLoadNonExistentFile tests that Load returns default config when file doesn't exist.
func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("Expected no error for non-existent file, got: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Error("Did not get default config for non-existent file")
	}
}

// TestLoadPartialConfig tests that keys missing from the file keep their defaults.
func TestLoadPartialConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "partial.json")
	data := `{"feed": {"url": "ws://relay.example.com/ws", "encoding": "msgpack"}, "map": {"zoom": 11}}`
	if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Feed.URL != "ws://relay.example.com/ws" || cfg.Feed.Encoding != "msgpack" {
		t.Errorf("Expected feed from file, got %+v", cfg.Feed)
	}
	if cfg.Map.Zoom != 11 {
		t.Errorf("Expected zoom 11, got %d", cfg.Map.Zoom)
	}
	if cfg.Map.CenterLatitude != 38.8976451 {
		t.Errorf("Expected default center latitude kept, got %f", cfg.Map.CenterLatitude)
	}
	if cfg.Relay.PlaneTimeoutSeconds != 60 {
		t.Errorf("Expected default plane timeout kept, got %d", cfg.Relay.PlaneTimeoutSeconds)
	}
}

// TestLoadInvalidJSON tests error handling for malformed config files.
func TestLoadInvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(configPath, []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("Failed to write invalid config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid JSON, got nil")
	}
}

// TestSaveConfig tests saving a config and reading it back.
func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "dir", "config.json")

	cfg := DefaultConfig()
	cfg.Server.Port = "9999"
	cfg.Location.Provider = "static"
	cfg.Location.Latitude = 51.47
	cfg.Location.Longitude = -0.4543

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Server.Port != "9999" {
		t.Errorf("Expected port 9999, got %s", loaded.Server.Port)
	}
	if loaded.Location.Provider != "static" || loaded.Location.Latitude != 51.47 {
		t.Errorf("Expected static location, got %+v", loaded.Location)
	}
}

// TestEnvironmentOverrides tests that environment variables override config values.
func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ADS_BMAP_PORT", "7777")
	t.Setenv("ADS_BMAP_FEED_URL", "ws://env-relay:8080/ws")
	t.Setenv("ADS_BMAP_FEED_TOKEN", "env-token")
	t.Setenv("ADS_BMAP_JWT_SECRET", "env-secret")
	t.Setenv("ADS_BMAP_DB_PASSWORD", "env-password")
	t.Setenv("ADS_BMAP_DB_ENABLED", "true")
	t.Setenv("ADS_BMAP_LOG_LEVEL", "debug")
	t.Setenv("ADS_BMAP_UI", "web")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "7777" {
		t.Errorf("Expected port 7777 from env, got %s", cfg.Server.Port)
	}
	if cfg.Feed.URL != "ws://env-relay:8080/ws" || cfg.Feed.Token != "env-token" {
		t.Errorf("Expected feed from env, got %+v", cfg.Feed)
	}
	if cfg.Relay.JWTSecret != "env-secret" {
		t.Errorf("Expected JWT secret from env, got %s", cfg.Relay.JWTSecret)
	}
	if cfg.Database.Password != "env-password" || !cfg.Database.Enabled {
		t.Errorf("Expected database settings from env, got %+v", cfg.Database)
	}
	if cfg.Logging.Level != "debug" || cfg.Map.UI != "web" {
		t.Errorf("Expected debug/web from env, got %s/%s", cfg.Logging.Level, cfg.Map.UI)
	}
}

// TestEnvironmentOverrideInvalidBool tests that a bad boolean is reported.
func TestEnvironmentOverrideInvalidBool(t *testing.T) {
	t.Setenv("ADS_BMAP_DB_ENABLED", "maybe")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for invalid ADS_BMAP_DB_ENABLED")
	}
}

// TestValidate tests rejection of unsupported settings.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"Bad encoding", func(c *Config) { c.Feed.Encoding = "xml" }, "feed.encoding"},
		{"Bad style", func(c *Config) { c.Map.Style = "topo" }, "map.style"},
		{"Alternate style", func(c *Config) { c.Map.Style = "hybrid" }, ""},
		{"Bad ui", func(c *Config) { c.Map.UI = "gtk" }, "map.ui"},
		{"Bad provider", func(c *Config) { c.Location.Provider = "wifi" }, "location.provider"},
		{"Bad source", func(c *Config) { c.Relay.Source = "adsbexchange" }, "relay.source"},
		{"Bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"Zoom out of range", func(c *Config) { c.Map.Zoom = 30 }, "map.zoom"},
		{"Center out of range", func(c *Config) { c.Map.CenterLatitude = 95 }, "map center"},
		{"Zero plane timeout", func(c *Config) { c.Relay.PlaneTimeoutSeconds = 0 }, "plane_timeout"},
		{"Zero rate", func(c *Config) { c.Relay.MaxEventsPerSecond = 0 }, "max_events_per_second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

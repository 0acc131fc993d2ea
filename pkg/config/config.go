package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config represents the complete application configuration shared by
// adsb-map, adsb-relay and export-kml.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Feed     FeedConfig     `json:"feed"`
	Map      MapConfig      `json:"map"`
	Location LocationConfig `json:"location"`
	Relay    RelayConfig    `json:"relay"`
	Database DatabaseConfig `json:"database"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig contains HTTP server configuration.
// The relay listens here, and so does the browser map when map.ui is "web".
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`

	// AllowedOrigins for CORS (default: all)
	AllowedOrigins []string `json:"allowed_origins"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// FeedConfig describes the push channel the map subscribes to.
type FeedConfig struct {
	// URL is the websocket endpoint of the relay (e.g., "ws://localhost:8080/ws")
	URL string `json:"url"`

	// Token is sent as a bearer token when the relay requires authentication
	Token string `json:"token,omitempty"`

	// Encoding is the frame codec: "json" or "msgpack"
	Encoding string `json:"encoding"`
}

// MapConfig contains the initial map view and the widget to render it with.
type MapConfig struct {
	CenterLatitude  float64 `json:"center_latitude"`
	CenterLongitude float64 `json:"center_longitude"`
	Zoom            int     `json:"zoom"`

	// Style is one of roadmap, satellite, terrain, hybrid, styled
	Style string `json:"style"`

	// UI is "term" for the terminal map or "web" for the browser map
	UI string `json:"ui"`
}

// LocationConfig selects how the viewer position is resolved at startup.
type LocationConfig struct {
	// Provider is "none", "static" or "gpsd"
	Provider string `json:"provider"`

	// GPSDAddress is the gpsd host:port (default: "localhost:2947")
	GPSDAddress string `json:"gpsd_address"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// TimeoutSeconds bounds the wait for a fix
	TimeoutSeconds int `json:"timeout_seconds"`
}

// Timeout returns the location timeout as a duration.
func (l LocationConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// RelayConfig contains the push server settings.
type RelayConfig struct {
	// Source is "basestation" for a local dump1090 or "airplanes.live"
	Source string `json:"source"`

	// BaseStationAddress is the dump1090 SBS output (default: "localhost:30003")
	BaseStationAddress string `json:"basestation_address"`

	// AirplanesLiveURL is the API base URL
	AirplanesLiveURL string `json:"airplaneslive_url"`

	// Observer position, used as the airplanes.live query center and for range filtering
	ObserverLatitude  float64 `json:"observer_latitude"`
	ObserverLongitude float64 `json:"observer_longitude"`

	// RadiusNM limits published aircraft to this range of the observer, 0 disables the filter
	RadiusNM float64 `json:"radius_nm"`

	// PollIntervalSeconds is the airplanes.live refresh interval
	PollIntervalSeconds int `json:"poll_interval_seconds"`

	// PlaneTimeoutSeconds is the silence after which an aircraft is removed
	PlaneTimeoutSeconds int `json:"plane_timeout_seconds"`

	// MaxEventsPerSecond throttles broadcasts to clients, Burst is the bucket size
	MaxEventsPerSecond float64 `json:"max_events_per_second"`
	Burst              int     `json:"burst"`

	// JWTSecret enables token authentication on /ws and /api when set
	JWTSecret string `json:"jwt_secret,omitempty"`

	// TokenDurationHours is the lifetime of tokens issued with --issue-token
	TokenDurationHours int `json:"token_duration_hours"`

	// Encoding is the frame codec served to clients that do not ask for one
	Encoding string `json:"encoding"`
}

// PollInterval returns the airplanes.live poll interval as a duration.
func (r RelayConfig) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalSeconds) * time.Second
}

// PlaneTimeout returns the plane timeout as a duration.
func (r RelayConfig) PlaneTimeout() time.Duration {
	return time.Duration(r.PlaneTimeoutSeconds) * time.Second
}

// TokenDuration returns the issued token lifetime.
func (r RelayConfig) TokenDuration() time.Duration {
	return time.Duration(r.TokenDurationHours) * time.Hour
}

// DatabaseConfig contains database connection settings for position history.
type DatabaseConfig struct {
	// Enabled turns on recording of every published update
	Enabled bool `json:"enabled"`

	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`
}

// LoggingConfig controls the slog output.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `json:"level"`

	// File enables a rotating log file instead of stderr
	File string `json:"file,omitempty"`
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration.
// Values missing from the file keep their defaults, environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Secrets may be in here
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
// The map opens on the White House at zoom 8.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
		},
		Feed: FeedConfig{
			URL:      "ws://localhost:8080/ws",
			Encoding: "json",
		},
		Map: MapConfig{
			CenterLatitude:  38.8976451,
			CenterLongitude: -77.0367452,
			Zoom:            8,
			Style:           "roadmap",
			UI:              "term",
		},
		Location: LocationConfig{
			Provider:       "none",
			GPSDAddress:    "localhost:2947",
			TimeoutSeconds: 10,
		},
		Relay: RelayConfig{
			Source:              "basestation",
			BaseStationAddress:  "localhost:30003",
			AirplanesLiveURL:    "https://api.airplanes.live/v2",
			ObserverLatitude:    38.8976451,
			ObserverLongitude:   -77.0367452,
			RadiusNM:            0,
			PollIntervalSeconds: 3,
			PlaneTimeoutSeconds: 60,
			MaxEventsPerSecond:  10,
			Burst:               20,
			TokenDurationHours:  24,
			Encoding:            "json",
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         5432,
			Database:     "adsbmap",
			Username:     "adsbmap",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := oneOf("feed.encoding", c.Feed.Encoding, "json", "msgpack"); err != nil {
		return err
	}
	if err := oneOf("relay.encoding", c.Relay.Encoding, "json", "msgpack"); err != nil {
		return err
	}
	if err := oneOf("map.style", c.Map.Style, "roadmap", "satellite", "terrain", "hybrid", "styled"); err != nil {
		return err
	}
	if err := oneOf("map.ui", c.Map.UI, "term", "web"); err != nil {
		return err
	}
	if err := oneOf("location.provider", c.Location.Provider, "none", "static", "gpsd"); err != nil {
		return err
	}
	if err := oneOf("relay.source", c.Relay.Source, "basestation", "airplanes.live"); err != nil {
		return err
	}
	if err := oneOf("logging.level", c.Logging.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}

	if c.Map.Zoom < 0 || c.Map.Zoom > 21 {
		return fmt.Errorf("map.zoom %d out of range [0, 21]", c.Map.Zoom)
	}
	if c.Map.CenterLatitude < -90 || c.Map.CenterLatitude > 90 ||
		c.Map.CenterLongitude < -180 || c.Map.CenterLongitude > 180 {
		return fmt.Errorf("map center %.4f,%.4f out of range", c.Map.CenterLatitude, c.Map.CenterLongitude)
	}
	if c.Relay.PlaneTimeoutSeconds <= 0 {
		return fmt.Errorf("relay.plane_timeout_seconds must be positive")
	}
	if c.Relay.MaxEventsPerSecond <= 0 || c.Relay.Burst <= 0 {
		return fmt.Errorf("relay.max_events_per_second and relay.burst must be positive")
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (want one of %v)", field, value, allowed)
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() error {
	if port := os.Getenv("ADS_BMAP_PORT"); port != "" {
		c.Server.Port = port
	}
	if url := os.Getenv("ADS_BMAP_FEED_URL"); url != "" {
		c.Feed.URL = url
	}
	if token := os.Getenv("ADS_BMAP_FEED_TOKEN"); token != "" {
		c.Feed.Token = token
	}
	if secret := os.Getenv("ADS_BMAP_JWT_SECRET"); secret != "" {
		c.Relay.JWTSecret = secret
	}
	if dbPassword := os.Getenv("ADS_BMAP_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if level := os.Getenv("ADS_BMAP_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if ui := os.Getenv("ADS_BMAP_UI"); ui != "" {
		c.Map.UI = ui
	}
	if v := os.Getenv("ADS_BMAP_DB_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ADS_BMAP_DB_ENABLED: %w", err)
		}
		c.Database.Enabled = enabled
	}
	return nil
}

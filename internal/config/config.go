package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	App       *Appconfig       `yaml:"app"`
	Geo       *Geoconfig       `yaml:"geo"`
	Sync      *Syncconfig      `yaml:"sync"`
	Reconnect *Reconnectconfig `yaml:"reconnect"`
	Log       *Loggerconfig    `yaml:"log"`
	DB        *DBconfig        `yaml:"db"`
	RabbitMq  *RabbitMqconfig  `yaml:"rabbitmq"`
	Hub       *Hubconfig       `yaml:"hub"`
}

type Appconfig struct {
	ServerURL string `yaml:"server_url"`
	APIPrefix string `yaml:"api_prefix"`
	WSPath    string `yaml:"ws_path"`
	UserID    string `yaml:"user_id"`
	AuthToken string `yaml:"auth_token"`
	TokenFile string `yaml:"token_file"`
	JwtSecret string `yaml:"jwt_secret"`
	// HTTPTimeoutMs bounds every registry round trip.
	HTTPTimeoutMs int `yaml:"http_timeout_ms"`
	// TokenPollMs is how often the token file is re-read for a fresh token.
	TokenPollMs int `yaml:"token_poll_ms"`
}

type Geoconfig struct {
	Source         string  `yaml:"source"` // simulated | nmea | "" (unsupported)
	NmeaPath       string  `yaml:"nmea_path"`
	NmeaReplayMs   int     `yaml:"nmea_replay_ms"`
	HighAccuracy   bool    `yaml:"high_accuracy"`
	TimeoutMs      int     `yaml:"timeout_ms"`
	MaxSampleAgeMs int     `yaml:"max_sample_age_ms"`
	SimLatitude    float64 `yaml:"sim_latitude"`
	SimLongitude   float64 `yaml:"sim_longitude"`
	SimIntervalMs  int     `yaml:"sim_interval_ms"`
	// RegisterTimeoutMs bounds the one-shot fix taken when a driver is registered.
	RegisterTimeoutMs int `yaml:"register_timeout_ms"`
}

type Syncconfig struct {
	ThrottleWindowMs int `yaml:"throttle_window_ms"`
	ReportIntervalMs int `yaml:"report_interval_ms"`
}

type Reconnectconfig struct {
	MinDelayMs int `yaml:"min_delay_ms"`
	MaxDelayMs int `yaml:"max_delay_ms"`
}

type Loggerconfig struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type DBconfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RabbitMqconfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

type Hubconfig struct {
	Port int `yaml:"port"`
}

func (a *Appconfig) HTTPTimeout() time.Duration {
	return time.Duration(a.HTTPTimeoutMs) * time.Millisecond
}

func (a *Appconfig) TokenPoll() time.Duration {
	return time.Duration(a.TokenPollMs) * time.Millisecond
}

func (g *Geoconfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMs) * time.Millisecond
}

func (g *Geoconfig) MaxSampleAge() time.Duration {
	return time.Duration(g.MaxSampleAgeMs) * time.Millisecond
}

func (g *Geoconfig) SimInterval() time.Duration {
	return time.Duration(g.SimIntervalMs) * time.Millisecond
}

// NmeaReplay paces a recorded NMEA log. Zero reads a live device as fast as it writes.
func (g *Geoconfig) NmeaReplay() time.Duration {
	return time.Duration(g.NmeaReplayMs) * time.Millisecond
}

func (g *Geoconfig) RegisterTimeout() time.Duration {
	return time.Duration(g.RegisterTimeoutMs) * time.Millisecond
}

func (s *Syncconfig) ThrottleWindow() time.Duration {
	return time.Duration(s.ThrottleWindowMs) * time.Millisecond
}

func (s *Syncconfig) ReportInterval() time.Duration {
	return time.Duration(s.ReportIntervalMs) * time.Millisecond
}

func (r *Reconnectconfig) MinDelay() time.Duration {
	return time.Duration(r.MinDelayMs) * time.Millisecond
}

func (r *Reconnectconfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// WebSocketURL derives the ws:// or wss:// endpoint from the server URL.
func (a *Appconfig) WebSocketURL() string {
	u := strings.TrimSuffix(a.ServerURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + a.WSPath
}

// RegistryURL is the server URL joined with the API prefix.
func (a *Appconfig) RegistryURL() string {
	return strings.TrimSuffix(a.ServerURL, "/") + a.APIPrefix
}

func (d *DBconfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", d.User, d.Password, d.Host, d.Port, d.Database)
}

// New reads the environment, falling back to defaults. When CONFIG_FILE points to a YAML file,
// the values in it override the environment.
func New() (*Config, error) {
	cnf := fromEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cnf.overlayYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cnf.validate(); err != nil {
		return nil, err
	}
	return cnf, nil
}

func fromEnv() *Config {
	getEnv := func(key, def string) string {
		val := os.Getenv(key)
		if val == "" {
			return def
		}
		return val
	}

	getEnvInt := func(key string, def int) int {
		valStr := os.Getenv(key)
		if valStr == "" {
			return def
		}
		val, err := strconv.Atoi(valStr)
		if err != nil {
			fmt.Printf("cannot parse %s=%q, using default %v\n", key, valStr, def)
			return def
		}
		return val
	}

	getEnvFloat := func(key string, def float64) float64 {
		valStr := os.Getenv(key)
		if valStr == "" {
			return def
		}
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			fmt.Printf("cannot parse %s=%q, using default %v\n", key, valStr, def)
			return def
		}
		return val
	}

	getEnvBool := func(key string, def bool) bool {
		valStr := os.Getenv(key)
		if valStr == "" {
			return def
		}
		val, err := strconv.ParseBool(valStr)
		if err != nil {
			fmt.Printf("cannot parse %s=%q, using default %v\n", key, valStr, def)
			return def
		}
		return val
	}

	return &Config{
		App: &Appconfig{
			ServerURL:     getEnv("FLEET_SERVER_URL", "http://localhost:8000"),
			APIPrefix:     getEnv("FLEET_API_PREFIX", "/api"),
			WSPath:        getEnv("FLEET_WS_PATH", "/ws"),
			UserID:        getEnv("FLEET_USER_ID", ""),
			AuthToken:     getEnv("FLEET_AUTH_TOKEN", ""),
			TokenFile:     getEnv("FLEET_TOKEN_FILE", ".fleet/auth_token"),
			JwtSecret:     getEnv("JWT_SECRET", "fleet-dash-dev-secret"),
			HTTPTimeoutMs: getEnvInt("HTTP_TIMEOUT_MS", 10000),
			TokenPollMs:   getEnvInt("FLEET_TOKEN_POLL_MS", 2000),
		},
		Geo: &Geoconfig{
			Source:            getEnv("GEO_SOURCE", "simulated"),
			NmeaPath:          getEnv("GEO_NMEA_PATH", ""),
			NmeaReplayMs:      getEnvInt("GEO_NMEA_REPLAY_MS", 0),
			HighAccuracy:      getEnvBool("GEO_HIGH_ACCURACY", true),
			TimeoutMs:         getEnvInt("GEO_TIMEOUT_MS", 10000),
			MaxSampleAgeMs:    getEnvInt("GEO_MAX_AGE_MS", 1000),
			SimLatitude:       getEnvFloat("GEO_SIM_LAT", 21.1702),
			SimLongitude:      getEnvFloat("GEO_SIM_LON", 72.8311),
			SimIntervalMs:     getEnvInt("GEO_SIM_INTERVAL_MS", 1000),
			RegisterTimeoutMs: getEnvInt("GEO_REGISTER_TIMEOUT_MS", 5000),
		},
		Sync: &Syncconfig{
			ThrottleWindowMs: getEnvInt("THROTTLE_WINDOW_MS", 10000),
			ReportIntervalMs: getEnvInt("REPORT_INTERVAL_MS", 1000),
		},
		Reconnect: &Reconnectconfig{
			MinDelayMs: getEnvInt("RECONNECT_MIN_MS", 1000),
			MaxDelayMs: getEnvInt("RECONNECT_MAX_MS", 30000),
		},
		Log: &Loggerconfig{
			Level:      getEnv("LOG_LEVEL", "INFO"),
			FilePath:   getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 14),
		},
		DB: &DBconfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "fleet_user"),
			Password: getEnv("DB_PASSWORD", "fleet_pass"),
			Database: getEnv("DB_NAME", "fleet_db"),
		},
		RabbitMq: &RabbitMqconfig{
			Enabled:  getEnvBool("RABBITMQ_ENABLED", false),
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnvInt("RABBITMQ_PORT", 5672),
			User:     getEnv("RABBITMQ_USER", "guest"),
			Password: getEnv("RABBITMQ_PASSWORD", "guest"),
			VHost:    getEnv("RABBITMQ_VHOST", ""),
		},
		Hub: &Hubconfig{
			Port: getEnvInt("HUB_PORT", 8000),
		},
	}
}

// overlayYAML unmarshals on top of the already populated sections, so keys missing from the file
// keep their environment or default values.
func (c *Config) overlayYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Sync.ThrottleWindowMs <= 0 {
		return fmt.Errorf("throttle window must be positive, got %d", c.Sync.ThrottleWindowMs)
	}
	if c.Reconnect.MinDelayMs <= 0 || c.Reconnect.MaxDelayMs < c.Reconnect.MinDelayMs {
		return fmt.Errorf("invalid reconnect delays: min=%d max=%d", c.Reconnect.MinDelayMs, c.Reconnect.MaxDelayMs)
	}
	if !strings.HasPrefix(c.App.ServerURL, "http://") && !strings.HasPrefix(c.App.ServerURL, "https://") {
		return fmt.Errorf("server url must be http(s): %q", c.App.ServerURL)
	}
	return nil
}

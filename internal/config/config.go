package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Tailscale  TailscaleConfig  `yaml:"tailscale"`
	Session    SessionConfig    `yaml:"session"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Upload     UploadConfig     `yaml:"upload"`
	Spool      SpoolConfig      `yaml:"spool"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// SessionConfig tunes the frame loop.
type SessionConfig struct {
	SequenceLength      int           `yaml:"sequence_length"`
	StabilitySeconds    float64       `yaml:"stability_seconds"`
	DefaultBreakSeconds int           `yaml:"default_break_seconds"`
	PromptTimeout       time.Duration `yaml:"prompt_timeout"`
	TickInterval        time.Duration `yaml:"tick_interval"`
}

// Stability returns the workout-label stability duration.
func (s SessionConfig) Stability() time.Duration {
	return time.Duration(s.StabilitySeconds * float64(time.Second))
}

// ClassifierConfig points at the two inference services. An empty URL
// disables that classifier, leaving the geometric rules in charge.
type ClassifierConfig struct {
	WorkoutURL string        `yaml:"workout_url"`
	FormURL    string        `yaml:"form_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// UploadConfig lets the session runner save summaries through a remote
// server instead of connecting to the database itself.
type UploadConfig struct {
	ServerURL string `yaml:"server_url"`
}

type SpoolConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name onto slog.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Configured reports whether a database connection was configured.
func (d DatabaseConfig) Configured() bool {
	return d.Host != ""
}

// Load reads config from a YAML file, fills defaults, then applies
// environment variable overrides. Env vars use the prefix REPCOACH_ and
// underscore-separated paths:
//
//	REPCOACH_SERVER_HOST, REPCOACH_SERVER_PORT,
//	REPCOACH_DB_HOST, REPCOACH_DB_PORT, REPCOACH_DB_NAME,
//	REPCOACH_DB_USER, REPCOACH_DB_PASSWORD, REPCOACH_DB_SSLMODE,
//	REPCOACH_AUTH_API_KEY, REPCOACH_TAILSCALE_ENABLED,
//	REPCOACH_CLASSIFIER_WORKOUT_URL, REPCOACH_CLASSIFIER_FORM_URL,
//	REPCOACH_UPLOAD_SERVER_URL, REPCOACH_SPOOL_DIR, REPCOACH_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Session.SequenceLength == 0 {
		cfg.Session.SequenceLength = 30
	}
	if cfg.Session.StabilitySeconds == 0 {
		cfg.Session.StabilitySeconds = 5
	}
	if cfg.Session.DefaultBreakSeconds == 0 {
		cfg.Session.DefaultBreakSeconds = 10
	}
	if cfg.Session.PromptTimeout == 0 {
		cfg.Session.PromptTimeout = 30 * time.Second
	}
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = 2 * time.Second
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "repcoach"
	}
	if cfg.Tailscale.StateDir == "" {
		cfg.Tailscale.StateDir = "tsnet-state"
	}
	if cfg.Spool.Dir == "" {
		cfg.Spool.Dir = "spool"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPCOACH_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPCOACH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REPCOACH_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("REPCOACH_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("REPCOACH_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("REPCOACH_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("REPCOACH_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REPCOACH_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("REPCOACH_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("REPCOACH_TAILSCALE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = enabled
		}
	}
	if v := os.Getenv("REPCOACH_CLASSIFIER_WORKOUT_URL"); v != "" {
		cfg.Classifier.WorkoutURL = v
	}
	if v := os.Getenv("REPCOACH_CLASSIFIER_FORM_URL"); v != "" {
		cfg.Classifier.FormURL = v
	}
	if v := os.Getenv("REPCOACH_UPLOAD_SERVER_URL"); v != "" {
		cfg.Upload.ServerURL = v
	}
	if v := os.Getenv("REPCOACH_SPOOL_DIR"); v != "" {
		cfg.Spool.Dir = v
	}
	if v := os.Getenv("REPCOACH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if !c.Database.Configured() && c.Upload.ServerURL == "" {
		return fmt.Errorf("database.host or upload.server_url is required")
	}
	if c.Database.Configured() {
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	}
	if c.Session.SequenceLength < 1 {
		return fmt.Errorf("session.sequence_length must be positive")
	}
	if c.Session.StabilitySeconds < 0 {
		return fmt.Errorf("session.stability_seconds must not be negative")
	}
	if c.Session.DefaultBreakSeconds < 1 {
		return fmt.Errorf("session.default_break_seconds must be positive")
	}
	return nil
}

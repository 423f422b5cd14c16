package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath          = "configs/config.yaml"
	DefaultResourcesPath = "configs/resources.yaml"

	DriverYAML   = "yaml"
	DriverSQLite = "sqlite"
)

type Config struct {
	Server struct {
		Port                int `yaml:"port"`
		ReadTimeoutSeconds  int `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Engine struct {
		Timezone          string `yaml:"timezone"`
		SearchHorizonDays int    `yaml:"search_horizon_days"`
	} `yaml:"engine"`

	Resources struct {
		Path                  string `yaml:"path"`
		ReloadIntervalSeconds int    `yaml:"reload_interval_seconds"`
	} `yaml:"resources"`

	Snapshot struct {
		Driver     string       `yaml:"driver"`
		SQLitePath string       `yaml:"sqlite_path"`
		Backup     BackupConfig `yaml:"backup"`
	} `yaml:"snapshot"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		MetricsPath       string `yaml:"metrics_path"`
	} `yaml:"monitoring"`
}

// BackupConfig controls periodic copies of the SQLite snapshot store.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	StoragePath   string `yaml:"storage_path"`
	IntervalHours int    `yaml:"interval_hours"`
	RetentionDays int    `yaml:"retention_days"`
}

// Interval returns the time between backups.
func (b BackupConfig) Interval() time.Duration {
	return time.Duration(b.IntervalHours) * time.Hour
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.Snapshot.Driver == DriverSQLite {
		if err = os.MkdirAll(filepath.Dir(cfg.Snapshot.SQLitePath), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = 10
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Engine.Timezone == "" {
		c.Engine.Timezone = "UTC"
	}
	if c.Engine.SearchHorizonDays <= 0 {
		c.Engine.SearchHorizonDays = 730
	}
	if c.Resources.Path == "" {
		c.Resources.Path = DefaultResourcesPath
	}
	if c.Resources.ReloadIntervalSeconds <= 0 {
		c.Resources.ReloadIntervalSeconds = 30
	}
	if c.Snapshot.Driver == "" {
		c.Snapshot.Driver = DriverYAML
	}
	if c.Snapshot.SQLitePath == "" {
		c.Snapshot.SQLitePath = "data/bookable.db"
	}
	if c.Snapshot.Backup.StoragePath == "" {
		c.Snapshot.Backup.StoragePath = "data/backups"
	}
	if c.Snapshot.Backup.IntervalHours <= 0 {
		c.Snapshot.Backup.IntervalHours = 24
	}
	if c.Redis.CacheTTLSeconds <= 0 {
		c.Redis.CacheTTLSeconds = 60
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = 20
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 40
	}
	if c.Monitoring.MetricsPath == "" {
		c.Monitoring.MetricsPath = "/metrics"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		return fmt.Errorf("engine.timezone: %w", err)
	}
	switch c.Snapshot.Driver {
	case DriverYAML, DriverSQLite:
	default:
		return fmt.Errorf("snapshot.driver: unknown driver '%s', expected %s or %s", c.Snapshot.Driver, DriverYAML, DriverSQLite)
	}
	if c.Snapshot.Backup.Enabled && c.Snapshot.Driver != DriverSQLite {
		return fmt.Errorf("snapshot.backup requires the %s driver", DriverSQLite)
	}
	if c.Snapshot.Backup.RetentionDays < 0 {
		return fmt.Errorf("snapshot.backup.retention_days cannot be negative")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db cannot be negative")
	}
	if !strings.HasPrefix(c.Monitoring.MetricsPath, "/") {
		return fmt.Errorf("monitoring.metrics_path must start with '/'")
	}
	return nil
}

// LogLevel returns the configured zerolog level.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// Location returns the timezone calendar days are computed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

func (c *Config) ReloadInterval() time.Duration {
	return time.Duration(c.Resources.ReloadIntervalSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

// CacheEnabled reports whether a redis address is configured.
func (c *Config) CacheEnabled() bool {
	return c.Redis.Address != ""
}

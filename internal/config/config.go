// Package config provides configuration management for oneclickd using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort        = 3031
	defaultServerTimeout     = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultMaxOpenConns      = 25
	defaultMaxIdleConns      = 10
	defaultConnMaxIdleTime   = 30 * time.Minute
	defaultLockExpiry        = 5 * time.Minute
	defaultSweepInterval     = 2 * time.Minute
	defaultAttemptTimeout    = 10 * time.Minute
	defaultKillGrace         = 5 * time.Second
	defaultMinArtifactSize   = 100 * 1024 // 100KB
	defaultStaleProgress     = 30 * time.Minute
	defaultProgressHeartbeat = 30 * time.Second
	defaultQuality           = "360p"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Download    DownloadConfig    `mapstructure:"download"`
	Tools       ToolsConfig       `mapstructure:"tools"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	BaseDir   string `mapstructure:"base_dir"`
	VideoDir  string `mapstructure:"video_dir"`
	TempDir   string `mapstructure:"temp_dir"`
	CookieJar string `mapstructure:"cookie_jar"` // Netscape cookie file handed to yt-dlp (empty = none)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// DownloadConfig holds download coordination configuration.
type DownloadConfig struct {
	// LockExpiry is how long a download lock may be held before it is
	// considered abandoned and auto-released.
	LockExpiry Duration `mapstructure:"lock_expiry"`
	// SweepInterval is how often the background sweep scans for stale locks.
	SweepInterval Duration `mapstructure:"sweep_interval"`
	// AttemptTimeout is the wall-clock limit for a single strategy attempt.
	AttemptTimeout Duration `mapstructure:"attempt_timeout"`
	// KillGrace is how long a cancelled process gets to exit after SIGTERM
	// before SIGKILL.
	KillGrace Duration `mapstructure:"kill_grace"`
	// MinArtifactSize is the smallest output file accepted as a valid
	// download. Supports human-readable values like "100KB".
	MinArtifactSize ByteSize `mapstructure:"min_artifact_size"`
	// StaleProgress is how long terminal progress entries are retained
	// before cleanup.
	StaleProgress Duration `mapstructure:"stale_progress"`
	// ProgressHeartbeat is the SSE keep-alive interval.
	ProgressHeartbeat Duration `mapstructure:"progress_heartbeat"`
	// Quality is the default target quality for new download jobs.
	Quality string `mapstructure:"quality"`
}

// ToolsConfig holds external toolchain configuration.
type ToolsConfig struct {
	YtdlpPath  string `mapstructure:"ytdlp_path"`  // Path to yt-dlp binary (empty = look up in PATH)
	FFmpegPath string `mapstructure:"ffmpeg_path"` // Path to ffmpeg binary (empty = look up in PATH)
}

// MaintenanceConfig holds scheduled maintenance configuration.
type MaintenanceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"` // 6-field cron expression
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with ONECLICK_ and use underscores for
// nesting. Example: ONECLICK_SERVER_PORT=3031.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/oneclickd")
		v.AddConfigPath("$HOME/.oneclickd")
	}

	// Environment variable settings
	v.SetEnvPrefix("ONECLICK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "oneclickd.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.video_dir", "videos")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.cookie_jar", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Download defaults
	v.SetDefault("download.lock_expiry", defaultLockExpiry)
	v.SetDefault("download.sweep_interval", defaultSweepInterval)
	v.SetDefault("download.attempt_timeout", defaultAttemptTimeout)
	v.SetDefault("download.kill_grace", defaultKillGrace)
	v.SetDefault("download.min_artifact_size", defaultMinArtifactSize)
	v.SetDefault("download.stale_progress", defaultStaleProgress)
	v.SetDefault("download.progress_heartbeat", defaultProgressHeartbeat)
	v.SetDefault("download.quality", defaultQuality)

	// Tools defaults
	v.SetDefault("tools.ytdlp_path", "")
	v.SetDefault("tools.ffmpeg_path", "")

	// Maintenance defaults
	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.cron", "0 0 */1 * * *") // Hourly (6-field cron)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Storage validation
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Download validation
	if c.Download.LockExpiry.Duration() <= 0 {
		return fmt.Errorf("download.lock_expiry must be positive")
	}
	if c.Download.SweepInterval.Duration() <= 0 {
		return fmt.Errorf("download.sweep_interval must be positive")
	}
	if c.Download.AttemptTimeout.Duration() <= 0 {
		return fmt.Errorf("download.attempt_timeout must be positive")
	}
	if c.Download.KillGrace.Duration() < 0 {
		return fmt.Errorf("download.kill_grace must not be negative")
	}
	if c.Download.MinArtifactSize < 0 {
		return fmt.Errorf("download.min_artifact_size must not be negative")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// VideoPath returns the full path to the completed-video directory.
func (c *StorageConfig) VideoPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.VideoDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.TempDir)
}

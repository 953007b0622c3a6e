package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 3031},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "test.db",
			MaxOpenConns: 25,
			MaxIdleConns: 10,
			LogLevel:     "warn",
		},
		Storage: StorageConfig{BaseDir: "./data"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Download: DownloadConfig{
			LockExpiry:      Duration(5 * time.Minute),
			SweepInterval:   Duration(2 * time.Minute),
			AttemptTimeout:  Duration(10 * time.Minute),
			KillGrace:       Duration(5 * time.Second),
			MinArtifactSize: 100 * 1024,
			Quality:         "360p",
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Load without config file should use defaults
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3031, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)

	// Database defaults
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "oneclickd.db", cfg.Database.DSN)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)

	// Storage defaults
	assert.Equal(t, "./data", cfg.Storage.BaseDir)
	assert.Equal(t, "videos", cfg.Storage.VideoDir)
	assert.Equal(t, "temp", cfg.Storage.TempDir)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Download defaults
	assert.Equal(t, 5*time.Minute, cfg.Download.LockExpiry.Duration())
	assert.Equal(t, 2*time.Minute, cfg.Download.SweepInterval.Duration())
	assert.Equal(t, 10*time.Minute, cfg.Download.AttemptTimeout.Duration())
	assert.Equal(t, 5*time.Second, cfg.Download.KillGrace.Duration())
	assert.Equal(t, int64(100*1024), cfg.Download.MinArtifactSize.Bytes())
	assert.Equal(t, "360p", cfg.Download.Quality)

	// Maintenance defaults
	assert.True(t, cfg.Maintenance.Enabled)
	assert.NotEmpty(t, cfg.Maintenance.Cron)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: 127.0.0.1
  port: 9000
download:
  lock_expiry: 10m
  min_artifact_size: 1MB
  quality: 720p
tools:
  ytdlp_path: /usr/local/bin/yt-dlp
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address())
	assert.Equal(t, 10*time.Minute, cfg.Download.LockExpiry.Duration())
	assert.Equal(t, int64(1024*1024), cfg.Download.MinArtifactSize.Bytes())
	assert.Equal(t, "720p", cfg.Download.Quality)
	assert.Equal(t, "/usr/local/bin/yt-dlp", cfg.Tools.YtdlpPath)

	// Unset keys keep their defaults
	assert.Equal(t, 2*time.Minute, cfg.Download.SweepInterval.Duration())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ONECLICK_SERVER_PORT", "4040")
	t.Setenv("ONECLICK_DOWNLOAD_QUALITY", "1080p")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4040, cfg.Server.Port)
	assert.Equal(t, "1080p", cfg.Download.Quality)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver"},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"empty base dir", func(c *Config) { c.Storage.BaseDir = "" }, "storage.base_dir"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"zero lock expiry", func(c *Config) { c.Download.LockExpiry = 0 }, "download.lock_expiry"},
		{"zero sweep interval", func(c *Config) { c.Download.SweepInterval = 0 }, "download.sweep_interval"},
		{"zero attempt timeout", func(c *Config) { c.Download.AttemptTimeout = 0 }, "download.attempt_timeout"},
		{"negative kill grace", func(c *Config) { c.Download.KillGrace = Duration(-time.Second) }, "download.kill_grace"},
		{"negative artifact size", func(c *Config) { c.Download.MinArtifactSize = -1 }, "download.min_artifact_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStoragePaths(t *testing.T) {
	s := StorageConfig{BaseDir: "/var/lib/oneclickd", VideoDir: "videos", TempDir: "temp"}
	assert.Equal(t, "/var/lib/oneclickd/videos", s.VideoPath())
	assert.Equal(t, "/var/lib/oneclickd/temp", s.TempPath())
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/config"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/database"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/download"
	internalhttp "github.com/tqa24/oneclick-subtitles-generator-sub003/internal/http"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/http/handlers"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/locks"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/orchestrator"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/progress"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/repository"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/scheduler"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/startup"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/util"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the oneclickd server",
	Long: `Start the oneclickd HTTP server and download coordinator.

The server provides:
- REST API for requesting, cancelling, and inspecting downloads
- Progress polling and SSE streaming endpoints
- Health check endpoint
- OpenAPI documentation at /openapi.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Like the root logging flags, these are not bound to viper; they only
	// override the loaded config when explicitly set.
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 3031, "Port to listen on")
	serveCmd.Flags().String("database", "", "Database DSN (default oneclickd.db)")
	serveCmd.Flags().String("base-dir", "", "Base directory for video and temp storage")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyServeFlags(cmd, cfg)

	if err := os.MkdirAll(cfg.Storage.VideoPath(), 0o755); err != nil {
		return fmt.Errorf("creating video directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Storage.TempPath(), 0o755); err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}

	// Partial downloads left behind by a previous run are unusable; remove
	// them before accepting new jobs.
	removed, err := startup.CleanupPartialFiles(logger, cfg.Storage.TempPath())
	if err != nil {
		logger.Warn("failed to clean partial downloads",
			slog.String("error", err.Error()),
		)
	} else if removed > 0 {
		logger.Info("cleaned partial downloads on startup",
			slog.Int("removed_count", removed),
		)
	}

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	mediaRepo := repository.NewMediaItemRepository(db.DB)

	store := progress.NewStore(logger, cfg.Download.StaleProgress.Duration())
	store.Start()
	defer store.Stop()

	registry := locks.NewRegistry(
		logger,
		cfg.Download.LockExpiry.Duration(),
		cfg.Download.SweepInterval.Duration(),
		cfg.Download.KillGrace.Duration(),
	)
	registry.Start()
	defer registry.Stop()

	ytdlpBin := cfg.Tools.YtdlpPath
	if ytdlpBin == "" {
		ytdlpBin, err = util.FindBinary("yt-dlp", "")
		if err != nil {
			return fmt.Errorf("locating yt-dlp: %w", err)
		}
	}
	logger.Info("resolved downloader binary", slog.String("path", ytdlpBin))

	launcher := &download.ToolLauncher{
		Binary:    ytdlpBin,
		CookieJar: cfg.Storage.CookieJar,
	}

	// Without ffmpeg the runner skips remuxing and renames raw downloads
	// into place.
	var normalizer download.Normalizer
	ffmpegBin := cfg.Tools.FFmpegPath
	var ffmpegErr error
	if ffmpegBin == "" {
		ffmpegBin, ffmpegErr = util.FindBinary("ffmpeg", "")
	}
	if ffmpegErr != nil {
		logger.Warn("ffmpeg not found, downloads will not be remuxed",
			slog.String("error", ffmpegErr.Error()),
		)
	} else {
		normalizer = &download.FFmpegNormalizer{Binary: ffmpegBin}
	}

	runner := download.NewRunner(
		launcher,
		normalizer,
		store,
		logger,
		cfg.Download.AttemptTimeout.Duration(),
		cfg.Download.KillGrace.Duration(),
		cfg.Download.MinArtifactSize.Bytes(),
	)

	orch := orchestrator.New(cfg, mediaRepo, runner, registry, store, logger)

	if cfg.Maintenance.Enabled {
		maintenance := scheduler.NewMaintenance(registry, mediaRepo, logger, cfg.Storage.TempPath(), cfg.Maintenance.Cron)
		if err := maintenance.Start(); err != nil {
			return fmt.Errorf("starting maintenance scheduler: %w", err)
		}
		defer maintenance.Stop()
	}

	serverConfig := internalhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	server := internalhttp.NewServer(serverConfig, logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version).
		WithDB(db.DB).
		WithLockRegistry(registry).
		WithProgressStore(store)
	healthHandler.Register(server.API())

	downloadHandler := handlers.NewDownloadHandler(orch)
	downloadHandler.Register(server.API())

	progressHandler := handlers.NewProgressHandler(store, cfg.Download.ProgressHeartbeat.Duration())
	progressHandler.Register(server.API())
	progressHandler.RegisterSSE(server.Router())

	locksHandler := handlers.NewLocksHandler(registry)
	locksHandler.Register(server.API())

	libraryHandler := handlers.NewLibraryHandler(mediaRepo)
	libraryHandler.Register(server.API())

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting oneclickd server",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// applyServeFlags overrides loaded config values with serve flags that were
// explicitly set on the command line.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("database") {
		cfg.Database.DSN, _ = cmd.Flags().GetString("database")
	}
	if cmd.Flags().Changed("base-dir") {
		cfg.Storage.BaseDir, _ = cmd.Flags().GetString("base-dir")
	}
}

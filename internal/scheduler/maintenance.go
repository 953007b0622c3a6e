// Package scheduler runs recurring maintenance for oneclickd: stale lock
// sweeps, progress table cleanup, partial file removal, and catalog
// consistency checks.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/locks"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/repository"
)

// partialSuffixes mark files the downloader leaves behind when interrupted.
var partialSuffixes = []string{".part", ".ytdl", ".tmp", ".part-Frag"}

// Maintenance runs the recurring housekeeping tasks on a cron schedule.
type Maintenance struct {
	mu sync.Mutex

	registry *locks.Registry
	repo     repository.MediaItemRepository
	logger   *slog.Logger

	tempDir string
	// maxPartialAge is how old a partial file must be before removal.
	// Files younger than this may belong to a live download.
	maxPartialAge time.Duration

	spec string
	cron *cron.Cron
}

// NewMaintenance creates the maintenance runner. spec is a six-field cron
// expression with seconds.
func NewMaintenance(
	registry *locks.Registry,
	repo repository.MediaItemRepository,
	logger *slog.Logger,
	tempDir, spec string,
) *Maintenance {
	return &Maintenance{
		registry:      registry,
		repo:          repo,
		logger:        logger.With("component", "maintenance"),
		tempDir:       tempDir,
		maxPartialAge: time.Hour,
		spec:          spec,
	}
}

// Start schedules the maintenance job and begins the cron loop.
func (m *Maintenance) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cron != nil {
		return fmt.Errorf("maintenance already started")
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(m.spec, func() {
		m.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", m.spec, err)
	}
	c.Start()
	m.cron = c

	m.logger.Info("maintenance scheduler started", "schedule", m.spec)
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (m *Maintenance) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		m.logger.Info("maintenance scheduler stopped")
	}
}

// RunOnce executes all maintenance tasks immediately.
func (m *Maintenance) RunOnce(ctx context.Context) {
	start := time.Now()

	sweptLocks := m.registry.SweepStale()
	removedFiles := m.cleanupPartialFiles()
	prunedRows := m.pruneCatalog(ctx)

	m.logger.Info("maintenance pass complete",
		"swept_locks", sweptLocks,
		"removed_partial_files", removedFiles,
		"pruned_catalog_rows", prunedRows,
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
}

// cleanupPartialFiles removes aged partial downloads from the temp
// directory. Files belonging to a job whose lock is still held are left
// alone regardless of age.
func (m *Maintenance) cleanupPartialFiles() int {
	entries, err := os.ReadDir(m.tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("reading temp directory failed", "path", m.tempDir, "error", err)
		}
		return 0
	}

	cutoff := time.Now().Add(-m.maxPartialAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || !isPartialFile(entry.Name()) {
			continue
		}
		if m.registry.IsActive(jobIDFromFilename(entry.Name())) {
			continue
		}

		path := filepath.Join(m.tempDir, entry.Name())
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			m.logger.Warn("removing partial file failed", "path", path, "error", err)
			continue
		}
		m.logger.Debug("removed orphaned partial file",
			"path", path,
			"age", time.Since(info.ModTime()).Round(time.Second).String(),
		)
		removed++
	}
	return removed
}

// pruneCatalog removes catalog rows whose artifact no longer exists on
// disk, so the next request re-downloads instead of short-circuiting.
func (m *Maintenance) pruneCatalog(ctx context.Context) int {
	items, err := m.repo.GetAll(ctx)
	if err != nil {
		m.logger.Warn("listing catalog for pruning failed", "error", err)
		return 0
	}

	pruned := 0
	for _, item := range items {
		if _, err := os.Stat(item.Path); err == nil || !os.IsNotExist(err) {
			continue
		}
		if err := m.repo.DeleteByVideoID(ctx, item.VideoID); err != nil {
			m.logger.Warn("pruning catalog row failed",
				"video_id", item.VideoID, "error", err)
			continue
		}
		m.logger.Info("pruned catalog row with missing artifact",
			"video_id", item.VideoID, "path", item.Path)
		pruned++
	}
	return pruned
}

// isPartialFile reports whether a filename looks like an interrupted
// download. Bare media files in the temp dir count too; completed
// downloads are moved out of it.
func isPartialFile(name string) bool {
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) || strings.Contains(name, suffix+".") {
			return true
		}
	}
	return strings.HasSuffix(name, ".mp4") || strings.HasSuffix(name, ".mkv") || strings.HasSuffix(name, ".webm")
}

// jobIDFromFilename recovers the job ID from a temp filename, which is
// always <videoID>.<ext> or a downloader variant of it.
func jobIDFromFilename(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

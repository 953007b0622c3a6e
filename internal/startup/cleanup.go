// Package startup provides utilities for application startup tasks.
package startup

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// partialSuffixes mark downloader files that never completed. A previous
// run that crashed or was killed leaves these behind in the temp dir.
var partialSuffixes = []string{".part", ".ytdl", ".tmp", ".mp4", ".mkv", ".webm"}

// CleanupPartialFiles removes leftover download files from the temp
// directory. Called once at boot, before any job can start, so every
// file in the directory is known to be orphaned.
//
// Returns the number of files removed and any error encountered.
func CleanupPartialFiles(logger *slog.Logger, tempDir string) (int, error) {
	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		logger.Debug("temp directory does not exist, skipping cleanup",
			"path", tempDir,
		)
		return 0, nil
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		logger.Error("failed to read temp directory for cleanup",
			"path", tempDir,
			"error", err,
		)
		return 0, err
	}

	var removed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !hasPartialSuffix(entry.Name()) {
			continue
		}

		path := filepath.Join(tempDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			logger.Warn("failed to stat partial file",
				"path", path,
				"error", err,
			)
			continue
		}

		if err := os.Remove(path); err != nil {
			logger.Warn("failed to remove partial file",
				"path", path,
				"error", err,
			)
			continue
		}

		logger.Info("removed leftover partial download",
			"path", path,
			"size_bytes", info.Size(),
			"age", time.Since(info.ModTime()).Round(time.Second),
		)
		removed++
	}

	return removed, nil
}

func hasPartialSuffix(name string) bool {
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
		// yt-dlp fragment files look like name.mp4.part-Frag12
		if strings.Contains(name, suffix+".") || strings.Contains(name, suffix+"-") {
			return true
		}
	}
	return false
}

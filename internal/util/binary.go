// Package util provides shared utility functions.
package util

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// FindBinary resolves the path of an external tool such as yt-dlp or
// ffmpeg. Search order:
//  1. Environment variable override (if envVar is non-empty and set)
//  2. The working directory (useful for development and bundled deploys)
//  3. PATH via exec.LookPath
//
// Candidates must exist and carry an executable bit.
func FindBinary(name string, envVar string) (string, error) {
	if envVar != "" {
		if override := os.Getenv(envVar); override != "" && isExecutable(override) {
			return override, nil
		}
	}

	local := filepath.Join(".", name)
	if isExecutable(local) {
		return local, nil
	}

	// LookPath verifies executability itself.
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("binary %s not found", name)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

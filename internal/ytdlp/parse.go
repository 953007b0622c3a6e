// Package ytdlp wraps the yt-dlp downloader: command construction,
// process supervision, and output parsing.
package ytdlp

import (
	"regexp"
	"strconv"
	"strings"
)

// Update is a progress update extracted from one line of downloader output.
type Update struct {
	// Percent is the download completion percentage (0-100).
	Percent float64
	// AlreadyDownloaded is true when the downloader reports the target
	// file already exists, which implies 100 percent completion.
	AlreadyDownloaded bool
}

// percentPattern matches yt-dlp's progress lines, e.g.
// "[download]  42.7% of 10.00MiB at 1.00MiB/s ETA 00:05".
var percentPattern = regexp.MustCompile(`\[download\]\s+([0-9]+(?:\.[0-9]+)?)%`)

// ParseLine extracts a progress update from one line of downloader output.
// Returns false for lines that carry no progress information; malformed
// or out-of-range values are treated as no progress, never as errors.
func ParseLine(line string) (Update, bool) {
	if strings.Contains(line, "has already been downloaded") {
		return Update{Percent: 100, AlreadyDownloaded: true}, true
	}

	matches := percentPattern.FindStringSubmatch(line)
	if matches == nil {
		return Update{}, false
	}

	percent, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return Update{}, false
	}
	if percent < 0 || percent > 100 {
		return Update{}, false
	}

	return Update{Percent: percent}, true
}

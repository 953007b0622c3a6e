// Package download runs video downloads through an escalating ladder of
// yt-dlp strategies, classifying failures and verifying artifacts.
package download

import "fmt"

// Strategy is one rung of the download escalation ladder.
type Strategy struct {
	// Name identifies the strategy in logs and results.
	Name string `json:"name"`
	// Format is the yt-dlp format selector.
	Format string `json:"format"`
	// ExtraArgs are additional downloader arguments for this strategy.
	ExtraArgs []string `json:"extra_args,omitempty"`
}

// DefaultStrategies returns the standard escalation ladder for a target
// quality, ordered from most specific to most permissive. Earlier rungs
// produce smaller, better-bounded files; later rungs trade that for
// robustness against missing formats.
func DefaultStrategies(quality string) []Strategy {
	height := qualityHeight(quality)
	return []Strategy{
		{
			Name:   "merged-capped",
			Format: fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", height, height),
			ExtraArgs: []string{
				"--merge-output-format", "mp4",
			},
		},
		{
			Name:   "single-file-capped",
			Format: fmt.Sprintf("best[height<=%d][ext=mp4]/best[height<=%d]", height, height),
		},
		{
			Name:   "any-best",
			Format: "best",
		},
	}
}

// qualityHeight maps a quality label to a pixel height cap.
func qualityHeight(quality string) int {
	switch quality {
	case "144p":
		return 144
	case "240p":
		return 240
	case "360p":
		return 360
	case "480p":
		return 480
	case "720p":
		return 720
	case "1080p":
		return 1080
	default:
		return 360
	}
}

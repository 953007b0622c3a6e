package download

import "strings"

// fatalPattern maps a downloader output substring to a stable reason code.
// Fatal means the content itself cannot be downloaded; retrying or
// escalating strategies will not help.
type fatalPattern struct {
	substring string
	reason    string
}

// fatalPatterns is matched in order against downloader output. The table
// is deliberately data-driven so new upstream messages are a one-line
// change.
var fatalPatterns = []fatalPattern{
	{"Video unavailable", "video_unavailable"},
	{"This video is unavailable", "video_unavailable"},
	{"Private video", "private_video"},
	{"This video is private", "private_video"},
	{"has been removed by the uploader", "removed"},
	{"account associated with this video has been terminated", "account_terminated"},
	{"This video has been removed", "removed"},
	{"Sign in to confirm your age", "age_restricted"},
	{"age-restricted", "age_restricted"},
	{"This video is not available in your country", "geo_blocked"},
	{"has not made this video available in your country", "geo_blocked"},
	{"who has blocked it in your country", "geo_blocked"},
	{"blocked it on copyright grounds", "copyright_blocked"},
	{"This live event will begin in", "not_started"},
	{"Premieres in", "not_started"},
	{"is not a valid URL", "invalid_url"},
	{"Unsupported URL", "invalid_url"},
	{"Incomplete YouTube ID", "invalid_url"},
}

// classifyOutput scans downloader output lines for a fatal condition.
// Returns the reason code and true when one matches. Anything
// unrecognized is treated as non-fatal so the runner escalates instead
// of giving up on content that might still be retrievable.
func classifyOutput(lines []string) (string, bool) {
	for _, line := range lines {
		for _, p := range fatalPatterns {
			if strings.Contains(line, p.substring) {
				return p.reason, true
			}
		}
	}
	return "", false
}

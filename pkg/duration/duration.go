// Package duration provides human-readable duration parsing.
// It extends Go's standard time.ParseDuration with day and week units,
// so configuration values like "5m", "2h", "3d" or "1w" all work.
package duration

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// Day represents 24 hours.
	Day = 24 * time.Hour
	// Week represents 7 days.
	Week = 7 * Day
)

// segmentPattern matches one value+unit segment, e.g. "2d" or "1.5w".
var segmentPattern = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)(w|d)`)

// Parse parses a duration string. Standard Go durations ("90s", "5m",
// "2h30m") are accepted as-is; "d" (days) and "w" (weeks) segments are
// rewritten into hours before delegating to time.ParseDuration.
//
// Examples: "3d" = 72h, "1w2d" = 216h, "1w12h" = 180h.
func Parse(s string) (time.Duration, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	negative := false
	if strings.HasPrefix(trimmed, "-") {
		negative = true
		trimmed = trimmed[1:]
	}

	var extra time.Duration
	rest := segmentPattern.ReplaceAllStringFunc(trimmed, func(seg string) string {
		m := segmentPattern.FindStringSubmatch(seg)
		var value float64
		if _, err := fmt.Sscanf(m[1], "%g", &value); err != nil {
			return seg
		}
		switch strings.ToLower(m[2]) {
		case "w":
			extra += time.Duration(value * float64(Week))
		case "d":
			extra += time.Duration(value * float64(Day))
		}
		return ""
	})

	var base time.Duration
	if rest != "" {
		parsed, err := time.ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("duration: parsing %q: %w", s, err)
		}
		base = parsed
	}

	total := base + extra
	if negative {
		total = -total
	}
	return total, nil
}

// Format renders a duration using the largest sensible units,
// e.g. 216h -> "1w2d", 90m -> "1h30m0s".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	var sb strings.Builder
	if d < 0 {
		sb.WriteString("-")
		d = -d
	}

	if weeks := d / Week; weeks > 0 {
		fmt.Fprintf(&sb, "%dw", weeks)
		d -= weeks * Week
	}
	if days := d / Day; days > 0 {
		fmt.Fprintf(&sb, "%dd", days)
		d -= days * Day
	}
	if d > 0 {
		sb.WriteString(d.String())
	}
	return sb.String()
}

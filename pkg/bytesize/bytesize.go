// Package bytesize provides human-readable byte size parsing and formatting
// using binary (1024) units. "100KB", "1.5 GB" and plain byte counts are all
// accepted, case-insensitively.
package bytesize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Size represents a byte size as int64.
type Size int64

// Common size constants (binary base).
const (
	B  Size = 1
	KB Size = 1024
	MB Size = 1024 * KB
	GB Size = 1024 * MB
	TB Size = 1024 * GB
)

var unitMultipliers = map[string]Size{
	"":    B,
	"b":   B,
	"k":   KB,
	"kb":  KB,
	"kib": KB,
	"m":   MB,
	"mb":  MB,
	"mib": MB,
	"g":   GB,
	"gb":  GB,
	"gib": GB,
	"t":   TB,
	"tb":  TB,
	"tib": TB,
}

var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-z]*)\s*$`)

// Parse parses a human-readable byte size string. A bare number is taken
// as bytes.
func Parse(s string) (Size, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("bytesize: empty string")
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("bytesize: invalid format %q", s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number %q: %w", matches[1], err)
	}

	mult, ok := unitMultipliers[strings.ToLower(matches[2])]
	if !ok {
		return 0, fmt.Errorf("bytesize: unknown unit %q", matches[2])
	}

	return Size(value * float64(mult)), nil
}

// Format renders a size using the largest unit that keeps the value >= 1.
func Format(s Size) string {
	switch {
	case s >= TB:
		return trimTrailingZero(float64(s)/float64(TB)) + "TB"
	case s >= GB:
		return trimTrailingZero(float64(s)/float64(GB)) + "GB"
	case s >= MB:
		return trimTrailingZero(float64(s)/float64(MB)) + "MB"
	case s >= KB:
		return trimTrailingZero(float64(s)/float64(KB)) + "KB"
	default:
		return strconv.FormatInt(int64(s), 10) + "B"
	}
}

func trimTrailingZero(v float64) string {
	formatted := strconv.FormatFloat(v, 'f', 1, 64)
	return strings.TrimSuffix(formatted, ".0")
}

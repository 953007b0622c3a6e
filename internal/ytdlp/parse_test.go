package ytdlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		percent float64
		ok      bool
	}{
		{"typical progress", "[download]  42.7% of 10.00MiB at 1.00MiB/s ETA 00:05", 42.7, true},
		{"integer percent", "[download] 100% of 10.00MiB in 00:09", 100, true},
		{"zero percent", "[download]   0.0% of 10.00MiB at Unknown speed", 0, true},
		{"single space", "[download] 5.2% of ~3.00MiB", 5.2, true},
		{"destination line", "[download] Destination: video.mp4", 0, false},
		{"extractor line", "[youtube] dQw4w9WgXcQ: Downloading webpage", 0, false},
		{"merger line", "[Merger] Merging formats into \"video.mp4\"", 0, false},
		{"empty line", "", 0, false},
		{"garbage", "!!!% 42 download", 0, false},
		{"percent above range", "[download] 150.0% of 10.00MiB", 0, false},
		{"warning text", "WARNING: unable to extract channel id", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, ok := ParseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.percent, update.Percent)
				assert.False(t, update.AlreadyDownloaded)
			}
		})
	}
}

func TestParseLine_AlreadyDownloaded(t *testing.T) {
	update, ok := ParseLine("[download] video.mp4 has already been downloaded")
	assert.True(t, ok)
	assert.True(t, update.AlreadyDownloaded)
	assert.Equal(t, 100.0, update.Percent)
}

func TestParseLine_NegativePercentRejected(t *testing.T) {
	// The pattern cannot match a leading minus, so this is a no-progress line
	_, ok := ParseLine("[download] -5.0% of 10.00MiB")
	assert.False(t, ok)
}

package download

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/ytdlp"
)

// ToolLauncher launches real yt-dlp processes.
type ToolLauncher struct {
	// Binary is the yt-dlp executable path.
	Binary string
	// CookieJar is an optional Netscape cookie file passed to every attempt.
	CookieJar string
}

// Launch builds and starts a yt-dlp invocation for one strategy.
func (l *ToolLauncher) Launch(ctx context.Context, job Job, strategy Strategy) (Attempt, error) {
	if err := os.MkdirAll(filepath.Dir(job.TempPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}

	builder := ytdlp.NewCommandBuilder(l.Binary).
		URL(job.URL).
		Format(strategy.Format).
		Output(job.TempPath)
	if l.CookieJar != "" {
		builder = builder.CookieJar(l.CookieJar)
	}
	if len(strategy.ExtraArgs) > 0 {
		builder = builder.Args(strategy.ExtraArgs...)
	}

	cmd := builder.Build()
	if err := cmd.Start(ctx); err != nil {
		return nil, err
	}
	return cmd, nil
}

// FFmpegNormalizer remuxes a raw download into an mp4 container without
// re-encoding. yt-dlp merges can land in mkv or webm depending on the
// formats available; the library only serves mp4.
type FFmpegNormalizer struct {
	// Binary is the ffmpeg executable path.
	Binary string
	// Timeout bounds a single remux.
	Timeout time.Duration
}

// Normalize remuxes src into dst with stream copy.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, src, dst string) error {
	binary := n.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, binary,
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-c", "copy",
		"-movflags", "+faststart",
		dst,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("ffmpeg remux failed: %w: %s", err, string(out))
	}
	return nil
}

package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/progress"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/ytdlp"
)

// Job describes one download to perform.
type Job struct {
	// JobID keys progress and locking. It is the external video ID.
	JobID string
	// URL is the page URL passed to the downloader.
	URL string
	// TempPath is where the raw download lands.
	TempPath string
	// FinalPath is where the verified artifact is placed after normalization.
	FinalPath string
	// Quality is the target quality label, e.g. "360p".
	Quality string
}

// Attempt is one running downloader invocation.
type Attempt interface {
	// Lines streams merged stdout/stderr output. Closed on process exit.
	Lines() <-chan string
	// Wait blocks until the process exits.
	Wait() error
	// Abort terminates the process, escalating to SIGKILL after grace.
	Abort(grace time.Duration) error
	// StderrTail returns recent stderr lines for failure classification.
	StderrTail() []string
}

// Launcher starts downloader attempts. Implementations wrap the real
// yt-dlp binary; tests substitute fakes.
type Launcher interface {
	Launch(ctx context.Context, job Job, strategy Strategy) (Attempt, error)
}

// Normalizer post-processes a raw download into its final form.
type Normalizer interface {
	Normalize(ctx context.Context, src, dst string) error
}

// Result describes a successful download.
type Result struct {
	// Strategy is the ladder rung that succeeded.
	Strategy Strategy
	// Path is the final artifact location.
	Path string
	// SizeBytes is the verified artifact size.
	SizeBytes int64
}

// Runner walks a job through the strategy ladder until one attempt
// produces a verified artifact, a fatal condition is hit, or the ladder
// is exhausted.
type Runner struct {
	launcher   Launcher
	normalizer Normalizer
	store      *progress.Store
	logger     *slog.Logger

	attemptTimeout  time.Duration
	killGrace       time.Duration
	minArtifactSize int64
}

// NewRunner creates a strategy escalation runner. normalizer may be nil,
// in which case the raw download is renamed into place.
func NewRunner(
	launcher Launcher,
	normalizer Normalizer,
	store *progress.Store,
	logger *slog.Logger,
	attemptTimeout, killGrace time.Duration,
	minArtifactSize int64,
) *Runner {
	return &Runner{
		launcher:        launcher,
		normalizer:      normalizer,
		store:           store,
		logger:          logger.With("component", "download_runner"),
		attemptTimeout:  attemptTimeout,
		killGrace:       killGrace,
		minArtifactSize: minArtifactSize,
	}
}

// Run executes the strategy ladder for a job. onAttempt, if non-nil, is
// invoked with each live attempt before its output is consumed so the
// caller can wire cancellation to the running process.
//
// The returned error is nil on success, ErrCancelled if ctx was
// cancelled, a *FatalError if the content is undownloadable, or
// ErrExhausted when every strategy failed transiently.
func (r *Runner) Run(ctx context.Context, job Job, strategies []Strategy, onAttempt func(Attempt)) (Result, error) {
	if len(strategies) == 0 {
		strategies = DefaultStrategies(job.Quality)
	}

	log := r.logger.With("job_id", job.JobID)
	r.store.Set(job.JobID, 0, progress.StatusPending, "queued")

	var lastErr error
	for i, strat := range strategies {
		if ctx.Err() != nil {
			r.store.Set(job.JobID, r.store.Get(job.JobID).Percent, progress.StatusCancelled, "cancelled")
			return Result{}, ErrCancelled
		}

		log.Info("starting download attempt",
			"strategy", strat.Name,
			"attempt", i+1,
			"total_strategies", len(strategies),
		)

		result, err := r.runAttempt(ctx, job, strat, onAttempt)
		if err == nil {
			r.store.Set(job.JobID, 100, progress.StatusCompleted, "download complete")
			log.Info("download succeeded",
				"strategy", strat.Name,
				"size_bytes", result.SizeBytes,
				"path", result.Path,
			)
			return result, nil
		}

		if errors.Is(err, ErrCancelled) {
			r.store.Set(job.JobID, r.store.Get(job.JobID).Percent, progress.StatusCancelled, "cancelled")
			log.Info("download cancelled", "strategy", strat.Name)
			return Result{}, ErrCancelled
		}
		if fatal, ok := IsFatal(err); ok {
			r.store.SetError(job.JobID, fatal)
			log.Warn("download failed with fatal condition",
				"strategy", strat.Name,
				"reason", fatal.Reason,
			)
			return Result{}, err
		}

		// Transient failure, move to the next rung.
		lastErr = err
		log.Warn("download attempt failed, escalating",
			"strategy", strat.Name,
			"error", err,
		)
	}

	err := fmt.Errorf("%w: %v", ErrExhausted, lastErr)
	r.store.SetError(job.JobID, err)
	return Result{}, err
}

// runAttempt executes a single strategy attempt end to end: launch,
// stream progress, wait, classify, verify, normalize.
func (r *Runner) runAttempt(ctx context.Context, job Job, strat Strategy, onAttempt func(Attempt)) (Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	attempt, err := r.launcher.Launch(attemptCtx, job, strat)
	if err != nil {
		return Result{}, fmt.Errorf("launching downloader: %w", err)
	}
	if onAttempt != nil {
		onAttempt(attempt)
	}

	var outputTail []string
	for line := range attempt.Lines() {
		if update, ok := ytdlp.ParseLine(line); ok {
			msg := "downloading"
			if update.AlreadyDownloaded {
				msg = "already downloaded"
			}
			r.store.Set(job.JobID, update.Percent, progress.StatusDownloading, msg)
		}
		if len(outputTail) >= 200 {
			outputTail = outputTail[1:]
		}
		outputTail = append(outputTail, line)
	}
	waitErr := attempt.Wait()

	if ctx.Err() != nil {
		// Parent cancellation, not the per-attempt timeout.
		return Result{}, ErrCancelled
	}

	if waitErr != nil {
		lines := append(outputTail, attempt.StderrTail()...)
		if reason, fatal := classifyOutput(lines); fatal {
			return Result{}, &FatalError{Reason: reason, Detail: firstMatchingLine(lines, reason)}
		}
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("attempt timed out after %s: %w", r.attemptTimeout, waitErr)
		}
		return Result{}, fmt.Errorf("downloader exited: %w", waitErr)
	}

	if err := verifyArtifact(job.TempPath, r.minArtifactSize); err != nil {
		return Result{}, fmt.Errorf("artifact verification: %w", err)
	}

	r.store.Set(job.JobID, 100, progress.StatusNormalizing, "normalizing")
	if err := r.normalize(ctx, job.TempPath, job.FinalPath); err != nil {
		return Result{}, fmt.Errorf("normalizing artifact: %w", err)
	}

	info, err := os.Stat(job.FinalPath)
	if err != nil {
		return Result{}, fmt.Errorf("final artifact missing: %w", err)
	}

	return Result{Strategy: strat, Path: job.FinalPath, SizeBytes: info.Size()}, nil
}

func (r *Runner) normalize(ctx context.Context, src, dst string) error {
	if src == dst {
		return nil
	}
	if r.normalizer == nil {
		return os.Rename(src, dst)
	}
	if err := r.normalizer.Normalize(ctx, src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// verifyArtifact checks that the downloaded file exists and is at least
// minSize bytes. A zero or tiny file means the downloader exited cleanly
// without producing usable media.
func verifyArtifact(path string, minSize int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() < minSize {
		return fmt.Errorf("artifact %s is %d bytes, below minimum %d", path, info.Size(), minSize)
	}
	return nil
}

// firstMatchingLine returns the output line that matched the fatal
// reason, for error detail.
func firstMatchingLine(lines []string, reason string) string {
	for _, line := range lines {
		if r, ok := classifyOutput([]string{line}); ok && r == reason {
			return line
		}
	}
	return ""
}

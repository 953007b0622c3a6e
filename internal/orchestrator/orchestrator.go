package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/config"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/download"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/locks"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/models"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/progress"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/repository"
)

// Request asks for a video to be available in the library.
type Request struct {
	// VideoID is the external video identifier. Also the job ID.
	VideoID string
	// URL is the page URL to download from. Derived from VideoID when empty.
	URL string
	// Quality overrides the configured default quality when non-empty.
	Quality string
	// Force re-downloads even when a verified artifact already exists.
	Force bool
}

// Runner is the strategy escalation engine the orchestrator drives.
type Runner interface {
	Run(ctx context.Context, job download.Job, strategies []download.Strategy, onAttempt func(download.Attempt)) (download.Result, error)
}

// Orchestrator owns the full lifecycle of download jobs.
type Orchestrator struct {
	cfg    *config.Config
	repo   repository.MediaItemRepository
	runner Runner
	locks  *locks.Registry
	store  *progress.Store
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// New creates a download orchestrator.
func New(
	cfg *config.Config,
	repo repository.MediaItemRepository,
	runner Runner,
	registry *locks.Registry,
	store *progress.Store,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		repo:     repo,
		runner:   runner,
		locks:    registry,
		store:    store,
		logger:   logger.With("component", "orchestrator"),
		inflight: make(map[string]context.CancelFunc),
	}
}

// RunJob executes a download request synchronously and returns its
// terminal outcome.
func (o *Orchestrator) RunJob(ctx context.Context, req Request) (Result, error) {
	req, err := normalize(req)
	if err != nil {
		return Result{}, err
	}
	if res, done := o.shortCircuit(ctx, req); done {
		return res, nil
	}
	jobCtx, res, owned := o.begin(ctx, req)
	if !owned {
		return res, nil
	}
	return o.execute(jobCtx, req), nil
}

// Start accepts a download request and runs it in the background. The
// returned result is KindStarted when a new job was launched; otherwise
// it is the short-circuit outcome. The job outlives the request context.
func (o *Orchestrator) Start(ctx context.Context, req Request) (Result, error) {
	req, err := normalize(req)
	if err != nil {
		return Result{}, err
	}
	if res, done := o.shortCircuit(ctx, req); done {
		return res, nil
	}
	jobCtx, res, owned := o.begin(context.WithoutCancel(ctx), req)
	if !owned {
		return res, nil
	}

	go func() {
		outcome := o.execute(jobCtx, req)
		o.logger.Info("background download finished",
			"job_id", req.VideoID,
			"kind", string(outcome.Kind),
		)
	}()

	return Result{Kind: KindStarted, VideoID: req.VideoID, Message: "download started"}, nil
}

// Cancel aborts an in-flight job. Returns false when nothing was running.
func (o *Orchestrator) Cancel(videoID string) bool {
	o.mu.Lock()
	cancel, running := o.inflight[videoID]
	o.mu.Unlock()

	if running {
		cancel()
	}
	// Abort the downloader process and release the lock with cleanup.
	forced := o.locks.Cancel(videoID)
	return running || forced
}

// normalize validates a request and fills in derivable fields.
func normalize(req Request) (Request, error) {
	if req.VideoID == "" {
		return req, errors.New("video_id is required")
	}
	if req.URL == "" {
		req.URL = "https://www.youtube.com/watch?v=" + req.VideoID
	}
	return req, nil
}

// shortCircuit answers requests for videos already in the library
// without taking the lock. Force requests always fall through.
func (o *Orchestrator) shortCircuit(ctx context.Context, req Request) (Result, bool) {
	if req.Force {
		return Result{}, false
	}

	item, err := o.repo.GetByVideoID(ctx, req.VideoID)
	if err != nil {
		o.logger.Warn("library lookup failed", "job_id", req.VideoID, "error", err)
	}
	if item != nil {
		if info, statErr := os.Stat(item.Path); statErr == nil && info.Size() >= o.minSize() {
			return Result{
				Kind:      KindAlreadyExists,
				VideoID:   req.VideoID,
				Path:      item.Path,
				SizeBytes: info.Size(),
				Strategy:  item.Strategy,
			}, true
		}
		// Catalog entry without a usable file. Re-download.
		o.logger.Warn("catalog entry has no usable artifact, re-downloading",
			"job_id", req.VideoID, "path", item.Path)
	}

	// A file may exist without a catalog row, e.g. after a database reset.
	path := o.finalPath(req.VideoID)
	if info, statErr := os.Stat(path); statErr == nil && info.Size() >= o.minSize() {
		o.backfillCatalog(ctx, req, path, info.Size())
		return Result{
			Kind:      KindAlreadyExists,
			VideoID:   req.VideoID,
			Path:      path,
			SizeBytes: info.Size(),
		}, true
	}

	return Result{}, false
}

// begin claims the job for this request: registers it in the in-flight
// table and takes the single-flight lock. Returns the job context and
// true when the caller owns the job, or a short-circuit result when
// another request got there first.
func (o *Orchestrator) begin(ctx context.Context, req Request) (context.Context, Result, bool) {
	o.mu.Lock()
	// In-flight dedup is keyed by video ID alone. Only one artifact ever
	// exists per video, so a request at a different quality coalesces
	// onto whichever download is already producing that artifact.
	if _, running := o.inflight[req.VideoID]; running {
		o.mu.Unlock()
		return nil, Result{
			Kind:    KindCoalesced,
			VideoID: req.VideoID,
			Message: "download already in flight, poll progress",
		}, false
	}
	jobCtx, cancel := context.WithCancel(ctx)
	o.inflight[req.VideoID] = cancel
	o.mu.Unlock()

	cleanup := o.partialCleanup(req.VideoID)
	acquired := o.locks.Acquire(req.VideoID, "orchestrator", cleanup)
	if !acquired && req.Force {
		// Force evicts whoever holds the lock, discards their state, and
		// tries exactly once more.
		o.logger.Warn("force-releasing held lock", "job_id", req.VideoID)
		o.locks.ForceRelease(req.VideoID)
		o.store.Clear(req.VideoID)
		acquired = o.locks.Acquire(req.VideoID, "orchestrator", cleanup)
	}
	if !acquired {
		o.mu.Lock()
		delete(o.inflight, req.VideoID)
		o.mu.Unlock()
		cancel()
		return nil, Result{
			Kind:     KindAlreadyInProgress,
			VideoID:  req.VideoID,
			CanRetry: true,
			Message:  "job lock is held",
		}, false
	}

	return jobCtx, Result{}, true
}

// execute runs the strategy ladder and settles the job. The lock is
// always released; cleanup of partial files is requested on every
// outcome except success.
func (o *Orchestrator) execute(ctx context.Context, req Request) (res Result) {
	id := req.VideoID
	log := o.logger.With("job_id", id)
	succeeded := false

	defer func() {
		if p := recover(); p != nil {
			log.Error("download job panicked", "panic", fmt.Sprint(p))
			o.store.SetError(id, errors.New("internal error"))
			res = Result{Kind: KindExhaustedFailed, VideoID: id, CanRetry: true, Message: "internal error"}
		}
		o.locks.Release(id, !succeeded)
		o.mu.Lock()
		if cancel, ok := o.inflight[id]; ok {
			cancel()
			delete(o.inflight, id)
		}
		o.mu.Unlock()
	}()

	quality := req.Quality
	if quality == "" {
		quality = o.cfg.Download.Quality
	}
	job := download.Job{
		JobID:     id,
		URL:       req.URL,
		TempPath:  filepath.Join(o.cfg.Storage.TempPath(), id+".mp4"),
		FinalPath: o.finalPath(id),
		Quality:   quality,
	}

	result, err := o.runner.Run(ctx, job, nil, func(a download.Attempt) {
		o.locks.AttachHandle(id, a)
	})
	if err != nil {
		return o.failureResult(id, err)
	}

	item := &models.MediaItem{
		VideoID:   id,
		Title:     id,
		Path:      result.Path,
		SizeBytes: result.SizeBytes,
		Quality:   quality,
		Strategy:  result.Strategy.Name,
	}
	if upsertErr := o.repo.Upsert(context.WithoutCancel(ctx), item); upsertErr != nil {
		// The artifact is on disk and verified; a catalog failure is not
		// worth failing the job over. The filesystem check will backfill.
		log.Error("recording artifact in catalog failed", "error", upsertErr)
	}

	succeeded = true
	return Result{
		Kind:      KindCompleted,
		VideoID:   id,
		Path:      result.Path,
		SizeBytes: result.SizeBytes,
		Strategy:  result.Strategy.Name,
	}
}

func (o *Orchestrator) failureResult(id string, err error) Result {
	switch {
	case errors.Is(err, download.ErrCancelled):
		return Result{Kind: KindCancelled, VideoID: id, CanRetry: true, Message: "download cancelled"}
	default:
		if fatal, ok := download.IsFatal(err); ok {
			return Result{
				Kind:    KindFatalContentError,
				VideoID: id,
				Reason:  fatal.Reason,
				Message: fatal.Error(),
			}
		}
		return Result{Kind: KindExhaustedFailed, VideoID: id, CanRetry: true, Message: err.Error()}
	}
}

// partialCleanup returns the lock cleanup callback removing any partial
// download files for a job. Runs on failed releases, expiry, and sweeps.
func (o *Orchestrator) partialCleanup(videoID string) locks.CleanupFunc {
	return func() error {
		patterns := []string{
			filepath.Join(o.cfg.Storage.TempPath(), videoID+".*"),
			filepath.Join(o.cfg.Storage.TempPath(), videoID+".mp4"),
		}
		var firstErr error
		for _, pattern := range patterns {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				continue
			}
			for _, path := range matches {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr
	}
}

func (o *Orchestrator) backfillCatalog(ctx context.Context, req Request, path string, size int64) {
	item := &models.MediaItem{
		VideoID:   req.VideoID,
		Title:     req.VideoID,
		Path:      path,
		SizeBytes: size,
		Quality:   o.cfg.Download.Quality,
	}
	if err := o.repo.Upsert(ctx, item); err != nil {
		o.logger.Warn("backfilling catalog entry failed", "job_id", req.VideoID, "error", err)
	}
}

func (o *Orchestrator) finalPath(videoID string) string {
	return filepath.Join(o.cfg.Storage.VideoPath(), videoID+".mp4")
}

func (o *Orchestrator) minSize() int64 {
	return o.cfg.Download.MinArtifactSize.Bytes()
}

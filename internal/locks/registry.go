// Package locks provides an in-process advisory lock registry that
// guarantees single-flight execution per download job.
package locks

import (
	"log/slog"
	"sync"
	"time"
)

// Cancellable is the capability to abort the work guarded by a lock.
// Abort asks the work to stop and waits up to grace for a clean exit
// before forcing termination.
type Cancellable interface {
	Abort(grace time.Duration) error
}

// CleanupFunc is invoked at most once when a lock is released with
// cleanup requested. Failures are logged, never propagated.
type CleanupFunc func() error

// Info is a read-only snapshot of one held lock.
type Info struct {
	// JobID is the job the lock guards.
	JobID string `json:"job_id"`
	// Owner identifies who acquired the lock.
	Owner string `json:"owner"`
	// AcquiredAt is when the lock was granted.
	AcquiredAt time.Time `json:"acquired_at"`
	// ExpiresAt is when the lock auto-expires if not released.
	ExpiresAt time.Time `json:"expires_at"`
	// Cancellable reports whether a handle is attached.
	Cancellable bool `json:"cancellable"`
}

// entry is the internal state of one held lock.
type entry struct {
	info        Info
	handle      Cancellable
	cleanup     CleanupFunc
	expireTimer *time.Timer
}

// Registry coordinates advisory per-job locks. All state lives under a
// single mutex; cleanup callbacks and handle aborts run outside it.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	logger  *slog.Logger

	expiry    time.Duration
	killGrace time.Duration

	sweepInterval time.Duration
	sweepTicker   *time.Ticker
	stopSweep     chan struct{}
}

// NewRegistry creates a lock registry. Locks held longer than expiry are
// auto-released; sweepInterval drives the background safety sweep.
func NewRegistry(logger *slog.Logger, expiry, sweepInterval, killGrace time.Duration) *Registry {
	return &Registry{
		entries:       make(map[string]*entry),
		logger:        logger.With("component", "lock_registry"),
		expiry:        expiry,
		killGrace:     killGrace,
		sweepInterval: sweepInterval,
		stopSweep:     make(chan struct{}),
	}
}

// Start begins the background stale-lock sweep.
func (r *Registry) Start() {
	r.sweepTicker = time.NewTicker(r.sweepInterval)
	go r.sweepLoop()
}

// Stop halts the background sweep and force-releases every held lock so
// attached downloader processes do not outlive the daemon.
func (r *Registry) Stop() {
	if r.sweepTicker != nil {
		r.sweepTicker.Stop()
		close(r.stopSweep)
	}
	for _, info := range r.ListAll() {
		r.ForceRelease(info.JobID)
	}
}

func (r *Registry) sweepLoop() {
	for {
		select {
		case <-r.sweepTicker.C:
			if n := r.SweepStale(); n > 0 {
				r.logger.Info("swept stale locks", "count", n)
			}
		case <-r.stopSweep:
			return
		}
	}
}

// Acquire attempts to take the lock for jobID without blocking. Exactly
// one of any number of concurrent callers succeeds; the rest get false.
// cleanup, if non-nil, runs at most once when the lock is released with
// cleanup requested (including auto-expiry and sweeps).
func (r *Registry) Acquire(jobID, owner string, cleanup CleanupFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.entries[jobID]; held {
		return false
	}

	now := time.Now()
	e := &entry{
		info: Info{
			JobID:      jobID,
			Owner:      owner,
			AcquiredAt: now,
			ExpiresAt:  now.Add(r.expiry),
		},
		cleanup: cleanup,
	}
	e.expireTimer = time.AfterFunc(r.expiry, func() {
		r.expire(jobID, e)
	})
	r.entries[jobID] = e

	r.logger.Debug("lock acquired", "job_id", jobID, "owner", owner)
	return true
}

// expire auto-releases a lock whose timer fired. The entry pointer guards
// against releasing a newer lock acquired under the same job ID.
func (r *Registry) expire(jobID string, expected *entry) {
	r.mu.Lock()
	current, held := r.entries[jobID]
	if !held || current != expected {
		r.mu.Unlock()
		return
	}
	delete(r.entries, jobID)
	r.mu.Unlock()

	r.logger.Warn("lock expired, auto-releasing",
		"job_id", jobID,
		"owner", expected.info.Owner,
		"held_for", time.Since(expected.info.AcquiredAt).String(),
	)
	r.abortHandle(jobID, expected)
	r.finish(jobID, expected, true)
}

// AttachHandle associates a cancellation handle with a held lock so
// Cancel can abort the underlying work. Attaching to a job whose lock
// has already been released is a no-op; the lock is never resurrected.
func (r *Registry) AttachHandle(jobID string, handle Cancellable) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, held := r.entries[jobID]
	if !held {
		return false
	}
	e.handle = handle
	e.info.Cancellable = true
	return true
}

// Release releases the lock for jobID. Releasing an unheld lock is a
// no-op, so double releases are safe. When cleanup is true any attached
// work is aborted and the cleanup callback registered at Acquire runs
// exactly once.
func (r *Registry) Release(jobID string, cleanup bool) {
	r.mu.Lock()
	e, held := r.entries[jobID]
	if !held {
		r.mu.Unlock()
		return
	}
	delete(r.entries, jobID)
	r.mu.Unlock()

	e.expireTimer.Stop()
	r.logger.Debug("lock released", "job_id", jobID, "cleanup", cleanup)
	if cleanup {
		r.abortHandle(jobID, e)
	}
	r.finish(jobID, e, cleanup)
}

// ForceRelease releases the lock regardless of owner, aborting any
// attached work first. Returns false if no lock was held.
func (r *Registry) ForceRelease(jobID string) bool {
	r.mu.Lock()
	e, held := r.entries[jobID]
	if !held {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, jobID)
	r.mu.Unlock()

	e.expireTimer.Stop()
	r.logger.Info("lock force-released", "job_id", jobID, "owner", e.info.Owner)

	r.abortHandle(jobID, e)
	r.finish(jobID, e, true)
	return true
}

// Cancel aborts the work guarded by the lock and releases it with
// cleanup. Returns false if no lock is held for jobID.
func (r *Registry) Cancel(jobID string) bool {
	return r.ForceRelease(jobID)
}

// abortHandle asks the entry's attached work to stop, bounded by the
// kill grace. Abort failures are logged; the release proceeds anyway.
func (r *Registry) abortHandle(jobID string, e *entry) {
	if e.handle == nil {
		return
	}
	if err := e.handle.Abort(r.killGrace); err != nil {
		r.logger.Warn("aborting work during release failed",
			"job_id", jobID, "error", err.Error())
	}
}

// finish runs the entry's cleanup callback outside the registry mutex.
// The callback was detached from the map before this call, so it can
// never run twice.
func (r *Registry) finish(jobID string, e *entry, cleanup bool) {
	if !cleanup || e.cleanup == nil {
		return
	}
	if err := e.cleanup(); err != nil {
		r.logger.Warn("lock cleanup failed", "job_id", jobID, "error", err.Error())
	}
}

// IsActive reports whether a lock is currently held for jobID.
func (r *Registry) IsActive(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, held := r.entries[jobID]
	return held
}

// GetInfo returns a snapshot of the lock for jobID, if held.
func (r *Registry) GetInfo(jobID string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, held := r.entries[jobID]
	if !held {
		return Info{}, false
	}
	return e.info, true
}

// ListAll returns snapshots of all held locks.
func (r *Registry) ListAll() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e.info)
	}
	return result
}

// CountStale returns the number of held locks past their expiry time.
// Normally zero; the per-entry timers release expired locks themselves.
func (r *Registry) CountStale() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	count := 0
	for _, e := range r.entries {
		if now.After(e.info.ExpiresAt) {
			count++
		}
	}
	return count
}

// SweepStale releases all locks past their expiry time, running their
// cleanup callbacks. It backs up the per-entry timers and returns the
// number of locks released.
func (r *Registry) SweepStale() int {
	r.mu.Lock()
	now := time.Now()
	var stale []*entry
	for jobID, e := range r.entries {
		if now.After(e.info.ExpiresAt) {
			delete(r.entries, jobID)
			stale = append(stale, e)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		e.expireTimer.Stop()
		r.logger.Warn("sweep released stale lock",
			"job_id", e.info.JobID,
			"owner", e.info.Owner,
			"held_for", now.Sub(e.info.AcquiredAt).String(),
		)
		r.abortHandle(e.info.JobID, e)
		r.finish(e.info.JobID, e, true)
	}
	return len(stale)
}

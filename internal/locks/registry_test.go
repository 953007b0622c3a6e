package locks

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(slog.Default(), 5*time.Minute, 2*time.Minute, 10*time.Millisecond)
}

type fakeHandle struct {
	aborts atomic.Int32
	grace  atomic.Int64
	err    error
}

func (f *fakeHandle) Abort(grace time.Duration) error {
	f.aborts.Add(1)
	f.grace.Store(int64(grace))
	return f.err
}

func TestRegistry_AcquireMutualExclusion(t *testing.T) {
	r := newTestRegistry()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Acquire("vid1", "worker", nil) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.True(t, r.IsActive("vid1"))
}

func TestRegistry_AcquireDistinctJobs(t *testing.T) {
	r := newTestRegistry()

	assert.True(t, r.Acquire("a", "w1", nil))
	assert.True(t, r.Acquire("b", "w2", nil))
	assert.False(t, r.Acquire("a", "w3", nil))
	assert.Len(t, r.ListAll(), 2)
}

func TestRegistry_ReleaseIdempotent(t *testing.T) {
	r := newTestRegistry()

	var cleanups atomic.Int32
	require.True(t, r.Acquire("vid1", "w", func() error {
		cleanups.Add(1)
		return nil
	}))

	r.Release("vid1", true)
	r.Release("vid1", true)
	r.Release("vid1", false)

	assert.Equal(t, int32(1), cleanups.Load())
	assert.False(t, r.IsActive("vid1"))

	// Releasing a never-acquired lock is a no-op
	r.Release("never", true)
}

func TestRegistry_ReleaseWithoutCleanup(t *testing.T) {
	r := newTestRegistry()

	handle := &fakeHandle{}
	var cleanups atomic.Int32
	require.True(t, r.Acquire("vid1", "w", func() error {
		cleanups.Add(1)
		return nil
	}))
	require.True(t, r.AttachHandle("vid1", handle))

	r.Release("vid1", false)
	assert.Equal(t, int32(0), cleanups.Load())

	// A clean release leaves finished work alone
	assert.Equal(t, int32(0), handle.aborts.Load())
}

func TestRegistry_ReleaseWithCleanupAbortsHandle(t *testing.T) {
	r := newTestRegistry()

	handle := &fakeHandle{}
	var cleanups atomic.Int32
	require.True(t, r.Acquire("vid1", "w", func() error {
		cleanups.Add(1)
		return nil
	}))
	require.True(t, r.AttachHandle("vid1", handle))

	r.Release("vid1", true)

	assert.Equal(t, int32(1), handle.aborts.Load())
	assert.Equal(t, int64(10*time.Millisecond), handle.grace.Load())
	assert.Equal(t, int32(1), cleanups.Load())
	assert.False(t, r.IsActive("vid1"))
}

func TestRegistry_CleanupErrorNotPropagated(t *testing.T) {
	r := newTestRegistry()

	require.True(t, r.Acquire("vid1", "w", func() error {
		return errors.New("unlink failed")
	}))

	// Must not panic or block
	r.Release("vid1", true)
	assert.False(t, r.IsActive("vid1"))
}

func TestRegistry_ReacquireAfterRelease(t *testing.T) {
	r := newTestRegistry()

	require.True(t, r.Acquire("vid1", "w1", nil))
	r.Release("vid1", false)
	assert.True(t, r.Acquire("vid1", "w2", nil))

	info, ok := r.GetInfo("vid1")
	require.True(t, ok)
	assert.Equal(t, "w2", info.Owner)
}

func TestRegistry_AutoExpiry(t *testing.T) {
	r := NewRegistry(slog.Default(), 20*time.Millisecond, time.Minute, time.Millisecond)

	handle := &fakeHandle{}
	var cleanups atomic.Int32
	require.True(t, r.Acquire("vid1", "w", func() error {
		cleanups.Add(1)
		return nil
	}))
	require.True(t, r.AttachHandle("vid1", handle))

	require.Eventually(t, func() bool {
		return !r.IsActive("vid1")
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return cleanups.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// Expiry must stop the attached work, same as a force-release
	assert.Equal(t, int32(1), handle.aborts.Load())

	// Lock is available again after expiry
	assert.True(t, r.Acquire("vid1", "w2", nil))
}

func TestRegistry_ExpiryTimerDoesNotReleaseNewLock(t *testing.T) {
	r := NewRegistry(slog.Default(), 20*time.Millisecond, time.Minute, time.Millisecond)

	require.True(t, r.Acquire("vid1", "w1", nil))
	r.Release("vid1", false)

	// New lock under the same job ID must survive the old timer firing
	require.True(t, r.Acquire("vid1", "w2", nil))
	time.Sleep(25 * time.Millisecond)

	info, ok := r.GetInfo("vid1")
	if ok {
		assert.Equal(t, "w2", info.Owner)
	}
}

func TestRegistry_AttachHandleAndCancel(t *testing.T) {
	r := newTestRegistry()

	handle := &fakeHandle{}
	require.True(t, r.Acquire("vid1", "w", nil))
	require.True(t, r.AttachHandle("vid1", handle))

	info, ok := r.GetInfo("vid1")
	require.True(t, ok)
	assert.True(t, info.Cancellable)

	assert.True(t, r.Cancel("vid1"))
	assert.Equal(t, int32(1), handle.aborts.Load())
	assert.Equal(t, int64(10*time.Millisecond), handle.grace.Load())
	assert.False(t, r.IsActive("vid1"))
}

func TestRegistry_CancelWithoutHandle(t *testing.T) {
	r := newTestRegistry()

	require.True(t, r.Acquire("vid1", "w", nil))
	assert.True(t, r.Cancel("vid1"))
	assert.False(t, r.IsActive("vid1"))

	assert.False(t, r.Cancel("vid1"))
}

func TestRegistry_AttachHandleDoesNotResurrect(t *testing.T) {
	r := newTestRegistry()

	require.True(t, r.Acquire("vid1", "w", nil))
	r.Release("vid1", false)

	// Attach after release must not recreate the entry
	assert.False(t, r.AttachHandle("vid1", &fakeHandle{}))
	assert.False(t, r.IsActive("vid1"))
	assert.Empty(t, r.ListAll())
}

func TestRegistry_ForceRelease(t *testing.T) {
	r := newTestRegistry()

	handle := &fakeHandle{err: errors.New("already dead")}
	var cleanups atomic.Int32
	require.True(t, r.Acquire("vid1", "w", func() error {
		cleanups.Add(1)
		return nil
	}))
	require.True(t, r.AttachHandle("vid1", handle))

	// Abort errors are swallowed; cleanup still runs
	assert.True(t, r.ForceRelease("vid1"))
	assert.Equal(t, int32(1), handle.aborts.Load())
	assert.Equal(t, int32(1), cleanups.Load())

	assert.False(t, r.ForceRelease("vid1"))
}

func TestRegistry_SweepStale(t *testing.T) {
	r := NewRegistry(slog.Default(), 10*time.Millisecond, time.Hour, time.Millisecond)

	handle := &fakeHandle{}
	var cleanups atomic.Int32
	require.True(t, r.Acquire("old", "w", func() error {
		cleanups.Add(1)
		return nil
	}))
	require.True(t, r.AttachHandle("old", handle))

	// Stop the per-entry timer so only the sweep can release it
	r.mu.Lock()
	r.entries["old"].expireTimer.Stop()
	r.mu.Unlock()

	time.Sleep(15 * time.Millisecond)
	require.True(t, r.Acquire("fresh", "w", nil))

	assert.Equal(t, 1, r.CountStale())
	assert.Equal(t, 1, r.SweepStale())
	assert.Equal(t, int32(1), cleanups.Load())
	assert.Equal(t, int32(1), handle.aborts.Load())
	assert.False(t, r.IsActive("old"))
	assert.True(t, r.IsActive("fresh"))

	assert.Equal(t, 0, r.SweepStale())
}

func TestRegistry_StartStop(t *testing.T) {
	r := NewRegistry(slog.Default(), time.Minute, 10*time.Millisecond, time.Millisecond)
	r.Start()
	time.Sleep(25 * time.Millisecond)
	r.Stop()
}

func TestRegistry_StopReleasesHeldLocks(t *testing.T) {
	r := NewRegistry(slog.Default(), time.Minute, 10*time.Millisecond, time.Millisecond)
	r.Start()

	cleaned := false
	handle := &fakeHandle{}
	require.True(t, r.Acquire("vid1", "worker", func() error {
		cleaned = true
		return nil
	}))
	r.AttachHandle("vid1", handle)

	r.Stop()

	assert.False(t, r.IsActive("vid1"))
	assert.True(t, cleaned, "shutdown must run cleanup for held locks")
	assert.Equal(t, int32(1), handle.aborts.Load())
}

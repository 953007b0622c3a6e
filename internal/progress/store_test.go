package progress

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(slog.Default(), 30*time.Minute)
}

func TestStore_GetUnknownJob(t *testing.T) {
	s := newTestStore()

	entry := s.Get("missing")
	assert.Equal(t, "missing", entry.JobID)
	assert.Equal(t, 0.0, entry.Percent)
	assert.Equal(t, StatusUnknown, entry.Status)
	assert.True(t, entry.UpdatedAt.IsZero())
}

func TestStore_SetAndGet(t *testing.T) {
	s := newTestStore()

	s.Set("vid1", 42.5, StatusDownloading, "downloading video")

	entry := s.Get("vid1")
	assert.Equal(t, 42.5, entry.Percent)
	assert.Equal(t, StatusDownloading, entry.Status)
	assert.Equal(t, "downloading video", entry.Message)
	assert.False(t, entry.UpdatedAt.IsZero())
}

func TestStore_LastWriteWins(t *testing.T) {
	s := newTestStore()

	s.Set("vid1", 80, StatusDownloading, "")
	s.Set("vid1", 10, StatusDownloading, "")

	// Out-of-order writes are not reconciled; the latest write is kept
	assert.Equal(t, 10.0, s.Get("vid1").Percent)
}

func TestStore_SetError(t *testing.T) {
	s := newTestStore()

	s.Set("vid1", 55, StatusDownloading, "")
	s.SetError("vid1", fmt.Errorf("connection reset"))

	entry := s.Get("vid1")
	assert.Equal(t, StatusError, entry.Status)
	assert.Equal(t, "connection reset", entry.Message)
	// Percent from the last update is preserved
	assert.Equal(t, 55.0, entry.Percent)
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore()

	s.Set("vid1", 100, StatusCompleted, "")
	s.Clear("vid1")

	assert.Equal(t, StatusUnknown, s.Get("vid1").Status)

	// Clearing a missing job is a no-op
	s.Clear("never-existed")
}

func TestStore_List(t *testing.T) {
	s := newTestStore()

	s.Set("a", 10, StatusDownloading, "")
	s.Set("b", 100, StatusCompleted, "")

	entries := s.List()
	assert.Len(t, entries, 2)
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	s := newTestStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Set(fmt.Sprintf("vid%d", n), float64(j), StatusDownloading, "")
			}
		}(i)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Get(fmt.Sprintf("vid%d", n))
				_ = s.List()
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.List(), 10)
}

func TestStore_SubscribeReceivesEvents(t *testing.T) {
	s := newTestStore()

	sub := s.Subscribe()
	defer s.Unsubscribe(sub.ID)

	s.Set("vid1", 25, StatusDownloading, "")
	s.Set("vid1", 100, StatusCompleted, "done")

	first := <-sub.Events
	assert.Equal(t, EventTypeProgress, first.EventType)
	assert.Equal(t, 25.0, first.Entry.Percent)

	second := <-sub.Events
	assert.Equal(t, EventTypeCompleted, second.EventType)
	assert.Equal(t, 100.0, second.Entry.Percent)
}

func TestStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := newTestStore()

	sub := s.Subscribe()
	defer s.Unsubscribe(sub.ID)

	// Overflow the subscriber buffer; writes must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			s.Set("vid1", float64(i%100), StatusDownloading, "")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("store writes blocked on a slow subscriber")
	}
}

func TestStore_Unsubscribe(t *testing.T) {
	s := newTestStore()

	sub := s.Subscribe()
	s.Unsubscribe(sub.ID)

	// Channel is closed after unsubscribe
	_, ok := <-sub.Events
	assert.False(t, ok)

	// Double unsubscribe is a no-op
	s.Unsubscribe(sub.ID)
}

func TestStore_CleanupStaleEntries(t *testing.T) {
	s := NewStore(slog.Default(), 10*time.Millisecond)

	s.Set("done", 100, StatusCompleted, "")
	s.Set("active", 50, StatusDownloading, "")

	time.Sleep(20 * time.Millisecond)
	s.cleanupStaleEntries()

	// Terminal entry past the stale cutoff is removed
	assert.Equal(t, StatusUnknown, s.Get("done").Status)
	// Active entries are never removed by cleanup
	assert.Equal(t, StatusDownloading, s.Get("active").Status)
}

func TestStore_StartStop(t *testing.T) {
	s := NewStore(slog.Default(), time.Minute)
	s.Start()
	s.Stop()
}

func TestStatus_IsTerminal(t *testing.T) {
	require.True(t, StatusCompleted.IsTerminal())
	require.True(t, StatusError.IsTerminal())
	require.True(t, StatusCancelled.IsTerminal())
	require.False(t, StatusDownloading.IsTerminal())
	require.False(t, StatusUnknown.IsTerminal())

	require.True(t, StatusDownloading.IsActive())
	require.False(t, StatusUnknown.IsActive())
	require.False(t, StatusCompleted.IsActive())
}

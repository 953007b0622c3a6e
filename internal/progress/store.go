package progress

import (
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Subscriber represents a client subscribed to progress events.
type Subscriber struct {
	ID     string
	Events chan *Event
}

// Store tracks download progress keyed by job ID and broadcasts changes
// to SSE subscribers. Writes are last-write-wins; readers always get a
// consistent snapshot.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]Entry
	subscribers map[string]*Subscriber
	logger      *slog.Logger

	staleAfter    time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

// NewStore creates a new progress store. Terminal entries older than
// staleAfter are removed by the background cleanup once Start is called.
func NewStore(logger *slog.Logger, staleAfter time.Duration) *Store {
	return &Store{
		entries:     make(map[string]Entry),
		subscribers: make(map[string]*Subscriber),
		logger:      logger.With("component", "progress_store"),
		staleAfter:  staleAfter,
		stopCleanup: make(chan struct{}),
	}
}

// Start begins background cleanup of stale terminal entries.
func (s *Store) Start() {
	s.cleanupTicker = time.NewTicker(1 * time.Minute)
	go s.cleanupLoop()
}

// Stop halts the background cleanup.
func (s *Store) Stop() {
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
		close(s.stopCleanup)
	}
}

func (s *Store) cleanupLoop() {
	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanupStaleEntries()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes terminal entries older than staleAfter.
func (s *Store) cleanupStaleEntries() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.staleAfter)
	removed := 0

	for jobID, entry := range s.entries {
		if entry.Status.IsTerminal() && entry.UpdatedAt.Before(cutoff) {
			delete(s.entries, jobID)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up stale progress entries", "count", removed)
	}
}

// Set records progress for a job. The entry replaces any previous value
// for the same job ID regardless of relative ordering.
func (s *Store) Set(jobID string, percent float64, status Status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		JobID:     jobID,
		Percent:   percent,
		Status:    status,
		Message:   message,
		UpdatedAt: time.Now(),
	}
	s.entries[jobID] = entry
	s.broadcastLocked(entry)
}

// SetError records a failed state for a job, keeping the last known percent.
func (s *Store) SetError(jobID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entries[jobID]
	entry.JobID = jobID
	entry.Status = StatusError
	if err != nil {
		entry.Message = err.Error()
	}
	entry.UpdatedAt = time.Now()
	s.entries[jobID] = entry
	s.broadcastLocked(entry)
}

// Get returns the progress for a job. Unknown jobs yield a zero-percent
// entry with StatusUnknown rather than an error.
func (s *Store) Get(jobID string) Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.entries[jobID]; ok {
		return entry
	}
	return Entry{JobID: jobID, Percent: 0, Status: StatusUnknown}
}

// Clear removes the entry for a job. Clearing an absent job is a no-op.
func (s *Store) Clear(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, jobID)
}

// List returns a snapshot of all tracked entries.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		result = append(result, entry)
	}
	return result
}

// Subscribe creates a new subscriber for progress events.
func (s *Store) Subscribe() *Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &Subscriber{
		ID:     ulid.Make().String(),
		Events: make(chan *Event, 100),
	}
	s.subscribers[sub.ID] = sub

	s.logger.Debug("subscriber added", "subscriber_id", sub.ID)
	return sub
}

// Unsubscribe removes a subscriber and closes its event channel.
func (s *Store) Unsubscribe(subscriberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subscribers[subscriberID]; ok {
		close(sub.Events)
		delete(s.subscribers, subscriberID)
		s.logger.Debug("subscriber removed", "subscriber_id", subscriberID)
	}
}

// broadcastLocked sends an entry to all subscribers.
// Must be called with s.mu held.
func (s *Store) broadcastLocked(entry Entry) {
	event := &Event{
		EventType: eventTypeForStatus(entry.Status),
		Entry:     entry,
		Timestamp: time.Now(),
	}

	for _, sub := range s.subscribers {
		select {
		case sub.Events <- event:
		default:
			// Channel full, skip this event
			s.logger.Warn("subscriber event channel full, dropping event",
				"subscriber_id", sub.ID,
				"job_id", entry.JobID,
			)
		}
	}
}

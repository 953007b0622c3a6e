// Package progress provides per-job download progress tracking and SSE broadcasting.
package progress

import "time"

// Status represents the lifecycle state of a download job.
type Status string

const (
	// StatusUnknown indicates no progress has been recorded for the job.
	StatusUnknown Status = "unknown"
	// StatusPending indicates the job is queued but not yet downloading.
	StatusPending Status = "pending"
	// StatusDownloading indicates the downloader is transferring data.
	StatusDownloading Status = "downloading"
	// StatusNormalizing indicates post-download processing is running.
	StatusNormalizing Status = "normalizing"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusError indicates the job failed.
	StatusError Status = "error"
	// StatusCancelled indicates the job was cancelled.
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true if this is a terminal status (completed, error, or cancelled).
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// IsActive returns true if the job is currently running.
func (s Status) IsActive() bool {
	return s != StatusUnknown && !s.IsTerminal()
}

// Entry is the progress snapshot of one download job.
type Entry struct {
	// JobID is the external video identifier the job downloads.
	JobID string `json:"job_id"`
	// Percent is the completion percentage (0-100).
	Percent float64 `json:"percent"`
	// Status is the job lifecycle state.
	Status Status `json:"status"`
	// Message is a human-readable description of the current activity.
	Message string `json:"message,omitempty"`
	// UpdatedAt is when this entry was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is sent to SSE subscribers when an entry changes.
type Event struct {
	// EventType identifies the type of event.
	EventType string `json:"event_type"`
	// Entry contains the progress snapshot.
	Entry Entry `json:"entry"`
	// Timestamp is when the event was generated.
	Timestamp time.Time `json:"timestamp"`
}

// SSE event types.
const (
	EventTypeProgress  = "progress"
	EventTypeCompleted = "completed"
	EventTypeError     = "error"
	EventTypeCancelled = "cancelled"
	EventTypeHeartbeat = "heartbeat"
)

// eventTypeForStatus returns the appropriate event type for a status.
func eventTypeForStatus(status Status) string {
	switch status {
	case StatusCompleted:
		return EventTypeCompleted
	case StatusError:
		return EventTypeError
	case StatusCancelled:
		return EventTypeCancelled
	default:
		return EventTypeProgress
	}
}

// Package orchestrator coordinates download jobs end to end: artifact
// short-circuiting, request coalescing, single-flight locking, strategy
// escalation, and library catalog updates.
package orchestrator

// Kind classifies the outcome of a download request.
type Kind string

const (
	// KindAlreadyExists means a verified artifact is already in the library.
	KindAlreadyExists Kind = "already_exists"
	// KindCoalesced means an identical request is already in flight here;
	// the caller should poll progress instead of starting another job.
	KindCoalesced Kind = "coalesced"
	// KindAlreadyInProgress means the job lock is held but this instance
	// has no in-flight request to coalesce onto.
	KindAlreadyInProgress Kind = "already_in_progress"
	// KindStarted means an asynchronous job was accepted and is running.
	KindStarted Kind = "started"
	// KindCompleted means the job ran to completion with a verified artifact.
	KindCompleted Kind = "completed"
	// KindFatalContentError means the content cannot be downloaded at all.
	KindFatalContentError Kind = "fatal_content_error"
	// KindExhaustedFailed means every strategy failed for transient reasons.
	KindExhaustedFailed Kind = "exhausted_failed"
	// KindCancelled means the job was cancelled while running.
	KindCancelled Kind = "cancelled"
)

// IsTerminalFailure reports whether the outcome is a failed end state.
func (k Kind) IsTerminalFailure() bool {
	return k == KindFatalContentError || k == KindExhaustedFailed || k == KindCancelled
}

// Result is the outcome of one download request.
type Result struct {
	// Kind classifies what happened.
	Kind Kind `json:"kind"`
	// VideoID identifies the requested video.
	VideoID string `json:"video_id"`
	// Path is the artifact location for existing or completed downloads.
	Path string `json:"path,omitempty"`
	// SizeBytes is the artifact size for existing or completed downloads.
	SizeBytes int64 `json:"size_bytes,omitempty"`
	// Strategy names the ladder rung that produced the artifact.
	Strategy string `json:"strategy,omitempty"`
	// Reason is the stable failure code for fatal content errors.
	Reason string `json:"reason,omitempty"`
	// CanRetry tells the caller whether resubmitting the request can help.
	// Always false for fatal content errors.
	CanRetry bool `json:"can_retry,omitempty"`
	// Message is a human-readable description of the outcome.
	Message string `json:"message,omitempty"`
}

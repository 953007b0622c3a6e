package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/progress"
)

// ProgressHandler handles progress polling and SSE endpoints.
type ProgressHandler struct {
	store             *progress.Store
	heartbeatInterval time.Duration
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(store *progress.Store, heartbeatInterval time.Duration) *ProgressHandler {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	return &ProgressHandler{
		store:             store,
		heartbeatInterval: heartbeatInterval,
	}
}

// SetHeartbeatInterval sets the SSE heartbeat interval (for testing).
func (h *ProgressHandler) SetHeartbeatInterval(interval time.Duration) {
	h.heartbeatInterval = interval
}

// GetProgressInput is the input for polling one job's progress.
type GetProgressInput struct {
	JobID string `path:"job_id" doc:"Job ID (external video identifier)"`
}

// GetProgressOutput is the output for polling one job's progress.
type GetProgressOutput struct {
	Body progress.Entry
}

// ListProgressBody is the response body for listing all tracked progress.
type ListProgressBody struct {
	Entries []progress.Entry `json:"entries"`
}

// ListProgressOutput is the output for listing all tracked progress.
type ListProgressOutput struct {
	Body ListProgressBody
}

// Register registers the progress routes with the API.
func (h *ProgressHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listProgress",
		Method:      "GET",
		Path:        "/api/v1/progress",
		Summary:     "List progress",
		Description: "Returns progress for all tracked download jobs",
		Tags:        []string{"Progress"},
	}, h.ListProgress)

	huma.Register(api, huma.Operation{
		OperationID: "getProgress",
		Method:      "GET",
		Path:        "/api/v1/progress/{job_id}",
		Summary:     "Get progress",
		Description: "Returns progress for one download job. Unknown jobs yield " +
			"a zero-percent entry with status \"unknown\" rather than an error, " +
			"so clients can poll before the job is registered.",
		Tags: []string{"Progress"},
	}, h.GetProgress)
}

// RegisterSSE registers the SSE endpoint on a chi router.
// This is separate from Register because Huma doesn't support SSE streaming natively.
func (h *ProgressHandler) RegisterSSE(router interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}) {
	router.Get("/api/v1/progress/events", h.handleSSEEvents)
}

// ListProgress returns progress for all tracked jobs.
func (h *ProgressHandler) ListProgress(ctx context.Context, _ *struct{}) (*ListProgressOutput, error) {
	entries := h.store.List()
	return &ListProgressOutput{
		Body: ListProgressBody{Entries: entries},
	}, nil
}

// GetProgress returns progress for one job.
func (h *ProgressHandler) GetProgress(ctx context.Context, input *GetProgressInput) (*GetProgressOutput, error) {
	return &GetProgressOutput{
		Body: h.store.Get(input.JobID),
	}, nil
}

// handleSSEEvents is the raw HTTP handler for SSE streaming.
func (h *ProgressHandler) handleSSEEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Cache-Control")
	w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sub := h.store.Subscribe()
	defer h.store.Unsubscribe(sub.ID)

	// Use ResponseController for reliable flushing with error handling (Go 1.20+)
	rc := http.NewResponseController(w)

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()

	// Send initial comment to establish connection and trigger onopen in browser
	fmt.Fprintf(w, ":connected\n\n")
	if err := rc.Flush(); err != nil {
		slog.Error("failed to flush initial SSE connection", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				slog.Debug("heartbeat flush failed, client likely disconnected", "error", err)
				return
			}
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := h.writeSSEEvent(w, event); err != nil {
				slog.Error("failed to write SSE event",
					"event_type", event.EventType,
					"job_id", event.Entry.JobID,
					"error", err,
				)
				return
			}
			if err := rc.Flush(); err != nil {
				slog.Debug("event flush failed, client likely disconnected",
					"event_type", event.EventType,
					"error", err,
				)
				return
			}
		}
	}
}

// writeSSEEvent writes a progress event in SSE format.
func (h *ProgressHandler) writeSSEEvent(w http.ResponseWriter, event *progress.Event) error {
	data, err := json.Marshal(event.Entry)
	if err != nil {
		fmt.Fprintf(w, "event: %s\ndata: {\"error\": \"marshal error\"}\n\n", event.EventType)
		return err
	}

	// Write the full SSE message in one write for better atomicity
	message := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.EventType, data))

	n, err := w.Write(message)
	if err != nil {
		return err
	}
	if n < len(message) {
		return fmt.Errorf("short write: wrote %d of %d bytes", n, len(message))
	}
	return nil
}

package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/locks"
)

// LocksHandler exposes the lock registry for inspection and operator
// intervention.
type LocksHandler struct {
	registry *locks.Registry
}

// NewLocksHandler creates a new locks handler.
func NewLocksHandler(registry *locks.Registry) *LocksHandler {
	return &LocksHandler{registry: registry}
}

// ListLocksBody is the response body for listing held locks.
type ListLocksBody struct {
	Locks []locks.Info `json:"locks"`
	Count int          `json:"count"`
	Stale int          `json:"stale"`
}

// ListLocksOutput is the output for listing held locks.
type ListLocksOutput struct {
	Body ListLocksBody
}

// ReleaseLockInput is the input for force-releasing one lock.
type ReleaseLockInput struct {
	JobID string `path:"job_id" doc:"Job ID whose lock to release"`
}

// ReleaseLockBody is the response body for force-releasing one lock.
type ReleaseLockBody struct {
	JobID    string `json:"job_id"`
	Released bool   `json:"released"`
}

// ReleaseLockOutput is the output for force-releasing one lock.
type ReleaseLockOutput struct {
	Body ReleaseLockBody
}

// ReleaseAllBody is the response body for releasing every held lock.
type ReleaseAllBody struct {
	Released int `json:"released"`
}

// ReleaseAllOutput is the output for releasing every held lock.
type ReleaseAllOutput struct {
	Body ReleaseAllBody
}

// Register registers the lock routes with the API.
func (h *LocksHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listLocks",
		Method:      "GET",
		Path:        "/api/v1/locks",
		Summary:     "List held locks",
		Description: "Returns all currently held download locks",
		Tags:        []string{"Locks"},
	}, h.ListLocks)

	huma.Register(api, huma.Operation{
		OperationID: "releaseLock",
		Method:      "DELETE",
		Path:        "/api/v1/locks/{job_id}",
		Summary:     "Force-release a lock",
		Description: "Aborts the job holding the lock and releases it with cleanup. " +
			"Intended for operator intervention on stuck jobs.",
		Tags: []string{"Locks"},
	}, h.ReleaseLock)

	huma.Register(api, huma.Operation{
		OperationID: "releaseAllLocks",
		Method:      "DELETE",
		Path:        "/api/v1/locks",
		Summary:     "Force-release all locks",
		Description: "Aborts every running job and releases all locks with cleanup",
		Tags:        []string{"Locks"},
	}, h.ReleaseAll)
}

// ListLocks returns all held locks.
func (h *LocksHandler) ListLocks(ctx context.Context, _ *struct{}) (*ListLocksOutput, error) {
	held := h.registry.ListAll()
	return &ListLocksOutput{
		Body: ListLocksBody{
			Locks: held,
			Count: len(held),
			Stale: h.registry.CountStale(),
		},
	}, nil
}

// ReleaseLock force-releases one lock.
func (h *LocksHandler) ReleaseLock(ctx context.Context, input *ReleaseLockInput) (*ReleaseLockOutput, error) {
	if !h.registry.ForceRelease(input.JobID) {
		return nil, huma.Error404NotFound("no lock held for this job")
	}
	return &ReleaseLockOutput{
		Body: ReleaseLockBody{JobID: input.JobID, Released: true},
	}, nil
}

// ReleaseAll force-releases every held lock.
func (h *LocksHandler) ReleaseAll(ctx context.Context, _ *struct{}) (*ReleaseAllOutput, error) {
	released := 0
	for _, info := range h.registry.ListAll() {
		if h.registry.ForceRelease(info.JobID) {
			released++
		}
	}
	return &ReleaseAllOutput{
		Body: ReleaseAllBody{Released: released},
	}, nil
}

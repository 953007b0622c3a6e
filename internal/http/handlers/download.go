// Package handlers provides HTTP API handlers for oneclickd.
package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/orchestrator"
)

// DownloadService is the orchestration surface the download endpoints use.
type DownloadService interface {
	Start(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
	RunJob(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
	Cancel(videoID string) bool
}

// DownloadHandler handles download job endpoints.
type DownloadHandler struct {
	service DownloadService
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(service DownloadService) *DownloadHandler {
	return &DownloadHandler{service: service}
}

// DownloadRequestBody is the request body for starting a download.
type DownloadRequestBody struct {
	VideoID string `json:"video_id" minLength:"1" maxLength:"64" doc:"External video identifier"`
	URL     string `json:"url,omitempty" format:"uri" doc:"Page URL to download from; derived from video_id when omitted"`
	Quality string `json:"quality,omitempty" doc:"Target quality label, e.g. 360p"`
	Force   bool   `json:"force,omitempty" doc:"Re-download even if the artifact already exists"`
	Wait    bool   `json:"wait,omitempty" doc:"Block until the download reaches a terminal state"`
}

// StartDownloadInput is the input for starting a download.
type StartDownloadInput struct {
	Body DownloadRequestBody
}

// StartDownloadOutput is the output for starting a download.
type StartDownloadOutput struct {
	Status int
	Body   orchestrator.Result
}

// CancelDownloadInput is the input for cancelling a download.
type CancelDownloadInput struct {
	VideoID string `path:"video_id" doc:"External video identifier"`
}

// CancelDownloadBody is the response body for cancelling a download.
type CancelDownloadBody struct {
	VideoID   string `json:"video_id"`
	Cancelled bool   `json:"cancelled"`
}

// CancelDownloadOutput is the output for cancelling a download.
type CancelDownloadOutput struct {
	Body CancelDownloadBody
}

// Register registers the download routes with the API.
func (h *DownloadHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "startDownload",
		Method:      "POST",
		Path:        "/api/v1/downloads",
		Summary:     "Start a download",
		Description: "Requests a video to be downloaded into the library. " +
			"Identical requests are coalesced onto the in-flight job; " +
			"existing artifacts short-circuit without downloading.",
		Tags:          []string{"Downloads"},
		DefaultStatus: http.StatusAccepted,
	}, h.StartDownload)

	huma.Register(api, huma.Operation{
		OperationID: "cancelDownload",
		Method:      "DELETE",
		Path:        "/api/v1/downloads/{video_id}",
		Summary:     "Cancel a download",
		Description: "Aborts an in-flight download, releases its lock, and removes partial files",
		Tags:        []string{"Downloads"},
	}, h.CancelDownload)
}

// StartDownload accepts a download request.
func (h *DownloadHandler) StartDownload(ctx context.Context, input *StartDownloadInput) (*StartDownloadOutput, error) {
	req := orchestrator.Request{
		VideoID: input.Body.VideoID,
		URL:     input.Body.URL,
		Quality: input.Body.Quality,
		Force:   input.Body.Force,
	}

	var (
		result orchestrator.Result
		err    error
	)
	if input.Body.Wait {
		result, err = h.service.RunJob(ctx, req)
	} else {
		result, err = h.service.Start(ctx, req)
	}
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	switch result.Kind {
	case orchestrator.KindFatalContentError:
		return nil, huma.Error422UnprocessableEntity(result.Message)
	case orchestrator.KindExhaustedFailed:
		return nil, huma.Error500InternalServerError(result.Message)
	}

	return &StartDownloadOutput{
		Status: statusForKind(result.Kind),
		Body:   result,
	}, nil
}

// CancelDownload aborts an in-flight download.
func (h *DownloadHandler) CancelDownload(ctx context.Context, input *CancelDownloadInput) (*CancelDownloadOutput, error) {
	cancelled := h.service.Cancel(input.VideoID)
	if !cancelled {
		return nil, huma.Error404NotFound("no download in flight for this video")
	}

	return &CancelDownloadOutput{
		Body: CancelDownloadBody{
			VideoID:   input.VideoID,
			Cancelled: true,
		},
	}, nil
}

// statusForKind maps orchestration outcomes to HTTP status codes.
func statusForKind(kind orchestrator.Kind) int {
	switch kind {
	case orchestrator.KindAlreadyExists, orchestrator.KindCompleted, orchestrator.KindCancelled:
		return http.StatusOK
	case orchestrator.KindAlreadyInProgress:
		return http.StatusConflict
	default:
		return http.StatusAccepted
	}
}

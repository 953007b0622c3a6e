package handlers

import (
	"context"
	"os"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/models"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/repository"
)

// LibraryHandler exposes the downloaded-media catalog.
type LibraryHandler struct {
	repo repository.MediaItemRepository
}

// NewLibraryHandler creates a new library handler.
func NewLibraryHandler(repo repository.MediaItemRepository) *LibraryHandler {
	return &LibraryHandler{repo: repo}
}

// ListLibraryBody is the response body for listing the library.
type ListLibraryBody struct {
	Items []*models.MediaItem `json:"items"`
	Count int                 `json:"count"`
}

// ListLibraryOutput is the output for listing the library.
type ListLibraryOutput struct {
	Body ListLibraryBody
}

// GetMediaItemInput is the input for fetching one library entry.
type GetMediaItemInput struct {
	VideoID string `path:"video_id" doc:"External video identifier"`
}

// GetMediaItemOutput is the output for fetching one library entry.
type GetMediaItemOutput struct {
	Body models.MediaItem
}

// DeleteMediaItemInput is the input for deleting a library entry.
type DeleteMediaItemInput struct {
	VideoID string `path:"video_id" doc:"External video identifier"`
}

// DeleteMediaItemBody is the response body for deleting a library entry.
type DeleteMediaItemBody struct {
	VideoID string `json:"video_id"`
	Deleted bool   `json:"deleted"`
}

// DeleteMediaItemOutput is the output for deleting a library entry.
type DeleteMediaItemOutput struct {
	Body DeleteMediaItemBody
}

// Register registers the library routes with the API.
func (h *LibraryHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listLibrary",
		Method:      "GET",
		Path:        "/api/v1/library",
		Summary:     "List library",
		Description: "Returns all downloaded media items, newest first",
		Tags:        []string{"Library"},
	}, h.ListLibrary)

	huma.Register(api, huma.Operation{
		OperationID: "getMediaItem",
		Method:      "GET",
		Path:        "/api/v1/library/{video_id}",
		Summary:     "Get media item",
		Description: "Returns the library entry for one video",
		Tags:        []string{"Library"},
	}, h.GetMediaItem)

	huma.Register(api, huma.Operation{
		OperationID: "deleteMediaItem",
		Method:      "DELETE",
		Path:        "/api/v1/library/{video_id}",
		Summary:     "Delete media item",
		Description: "Removes the library entry and its artifact from disk",
		Tags:        []string{"Library"},
	}, h.DeleteMediaItem)
}

// ListLibrary returns all catalogued media items.
func (h *LibraryHandler) ListLibrary(ctx context.Context, _ *struct{}) (*ListLibraryOutput, error) {
	items, err := h.repo.GetAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing library failed")
	}
	return &ListLibraryOutput{
		Body: ListLibraryBody{Items: items, Count: len(items)},
	}, nil
}

// GetMediaItem returns one library entry.
func (h *LibraryHandler) GetMediaItem(ctx context.Context, input *GetMediaItemInput) (*GetMediaItemOutput, error) {
	item, err := h.repo.GetByVideoID(ctx, input.VideoID)
	if err != nil {
		return nil, huma.Error500InternalServerError("library lookup failed")
	}
	if item == nil {
		return nil, huma.Error404NotFound("media item not found")
	}
	return &GetMediaItemOutput{Body: *item}, nil
}

// DeleteMediaItem removes a library entry and its artifact.
func (h *LibraryHandler) DeleteMediaItem(ctx context.Context, input *DeleteMediaItemInput) (*DeleteMediaItemOutput, error) {
	item, err := h.repo.GetByVideoID(ctx, input.VideoID)
	if err != nil {
		return nil, huma.Error500InternalServerError("library lookup failed")
	}
	if item == nil {
		return nil, huma.Error404NotFound("media item not found")
	}

	if err := os.Remove(item.Path); err != nil && !os.IsNotExist(err) {
		return nil, huma.Error500InternalServerError("removing artifact failed")
	}
	if err := h.repo.DeleteByVideoID(ctx, input.VideoID); err != nil {
		return nil, huma.Error500InternalServerError("removing catalog entry failed")
	}

	return &DeleteMediaItemOutput{
		Body: DeleteMediaItemBody{VideoID: input.VideoID, Deleted: true},
	}, nil
}

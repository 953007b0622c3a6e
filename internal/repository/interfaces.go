// Package repository defines data access interfaces for oneclickd entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/models"
)

// MediaItemRepository defines operations for the media library catalog.
type MediaItemRepository interface {
	// Upsert creates a media item, or updates the existing row for the
	// same video ID.
	Upsert(ctx context.Context, item *models.MediaItem) error
	// GetByVideoID retrieves a media item by external video ID.
	// Returns nil when no record exists.
	GetByVideoID(ctx context.Context, videoID string) (*models.MediaItem, error)
	// GetAll retrieves all media items, newest first.
	GetAll(ctx context.Context) ([]*models.MediaItem, error)
	// DeleteByVideoID deletes the media item for a video ID.
	DeleteByVideoID(ctx context.Context, videoID string) error
	// Count returns the number of catalogued media items.
	Count(ctx context.Context) (int64, error)
}

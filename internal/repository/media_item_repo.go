package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mediaItemRepo implements MediaItemRepository using GORM.
type mediaItemRepo struct {
	db *gorm.DB
}

// NewMediaItemRepository creates a new MediaItemRepository.
func NewMediaItemRepository(db *gorm.DB) MediaItemRepository {
	return &mediaItemRepo{db: db}
}

// Upsert creates a media item, or updates the existing row for the same video ID.
func (r *mediaItemRepo) Upsert(ctx context.Context, item *models.MediaItem) error {
	if item.VideoID == "" {
		return models.ErrVideoIDRequired
	}
	if item.Path == "" {
		return models.ErrPathRequired
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "path", "size_bytes", "quality", "strategy", "updated_at"}),
	}).Create(item).Error
	if err != nil {
		return fmt.Errorf("upserting media item: %w", err)
	}
	return nil
}

// GetByVideoID retrieves a media item by external video ID.
func (r *mediaItemRepo) GetByVideoID(ctx context.Context, videoID string) (*models.MediaItem, error) {
	var item models.MediaItem
	if err := r.db.WithContext(ctx).Where("video_id = ?", videoID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting media item by video ID: %w", err)
	}
	return &item, nil
}

// GetAll retrieves all media items, newest first.
func (r *mediaItemRepo) GetAll(ctx context.Context) ([]*models.MediaItem, error) {
	var items []*models.MediaItem
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("getting all media items: %w", err)
	}
	return items, nil
}

// DeleteByVideoID deletes the media item for a video ID.
func (r *mediaItemRepo) DeleteByVideoID(ctx context.Context, videoID string) error {
	if err := r.db.WithContext(ctx).Where("video_id = ?", videoID).Delete(&models.MediaItem{}).Error; err != nil {
		return fmt.Errorf("deleting media item: %w", err)
	}
	return nil
}

// Count returns the number of catalogued media items.
func (r *mediaItemRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.MediaItem{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting media items: %w", err)
	}
	return count, nil
}

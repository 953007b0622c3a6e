package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMediaTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.MediaItem{})
	require.NoError(t, err)

	return db
}

func TestMediaItemRepo_Upsert(t *testing.T) {
	db := setupMediaTestDB(t)
	repo := NewMediaItemRepository(db)
	ctx := context.Background()

	item := &models.MediaItem{
		VideoID:   "dQw4w9WgXcQ",
		Title:     "Test Video",
		Path:      "/data/videos/dQw4w9WgXcQ.mp4",
		SizeBytes: 5 * 1024 * 1024,
		Quality:   "360p",
		Strategy:  "format-selector",
	}

	err := repo.Upsert(ctx, item)
	require.NoError(t, err)
	assert.False(t, item.ID.IsZero())

	found, err := repo.GetByVideoID(ctx, "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, item.Title, found.Title)
	assert.Equal(t, item.Path, found.Path)
}

func TestMediaItemRepo_Upsert_UpdatesExisting(t *testing.T) {
	db := setupMediaTestDB(t)
	repo := NewMediaItemRepository(db)
	ctx := context.Background()

	first := &models.MediaItem{
		VideoID: "abc123",
		Path:    "/data/videos/abc123.mp4",
		Quality: "360p",
	}
	require.NoError(t, repo.Upsert(ctx, first))

	second := &models.MediaItem{
		VideoID:   "abc123",
		Path:      "/data/videos/abc123_720.mp4",
		Quality:   "720p",
		SizeBytes: 42,
	}
	require.NoError(t, repo.Upsert(ctx, second))

	found, err := repo.GetByVideoID(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "/data/videos/abc123_720.mp4", found.Path)
	assert.Equal(t, "720p", found.Quality)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMediaItemRepo_Upsert_Validation(t *testing.T) {
	db := setupMediaTestDB(t)
	repo := NewMediaItemRepository(db)
	ctx := context.Background()

	err := repo.Upsert(ctx, &models.MediaItem{Path: "/x.mp4"})
	assert.ErrorIs(t, err, models.ErrVideoIDRequired)

	err = repo.Upsert(ctx, &models.MediaItem{VideoID: "abc"})
	assert.ErrorIs(t, err, models.ErrPathRequired)
}

func TestMediaItemRepo_GetByVideoID_NotFound(t *testing.T) {
	db := setupMediaTestDB(t)
	repo := NewMediaItemRepository(db)

	found, err := repo.GetByVideoID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMediaItemRepo_GetAll(t *testing.T) {
	db := setupMediaTestDB(t)
	repo := NewMediaItemRepository(db)
	ctx := context.Background()

	for _, id := range []string{"one", "two", "three"} {
		require.NoError(t, repo.Upsert(ctx, &models.MediaItem{
			VideoID: id,
			Path:    "/data/videos/" + id + ".mp4",
		}))
	}

	items, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestMediaItemRepo_DeleteByVideoID(t *testing.T) {
	db := setupMediaTestDB(t)
	repo := NewMediaItemRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &models.MediaItem{
		VideoID: "gone",
		Path:    "/data/videos/gone.mp4",
	}))

	require.NoError(t, repo.DeleteByVideoID(ctx, "gone"))

	found, err := repo.GetByVideoID(ctx, "gone")
	require.NoError(t, err)
	assert.Nil(t, found)

	// Deleting a missing record is not an error
	assert.NoError(t, repo.DeleteByVideoID(ctx, "gone"))
}

package models

// MediaItem is a completed download recorded in the library catalog.
// One row per external video ID; re-downloads update the existing row.
type MediaItem struct {
	BaseModel

	// VideoID is the external platform identifier of the video.
	VideoID string `gorm:"uniqueIndex;not null;type:varchar(64)" json:"video_id"`
	// Title is the video title reported by the downloader, if any.
	Title string `gorm:"type:varchar(512)" json:"title"`
	// Path is the absolute path of the normalized artifact on disk.
	Path string `gorm:"not null;type:varchar(1024)" json:"path"`
	// SizeBytes is the artifact size at record time.
	SizeBytes int64 `json:"size_bytes"`
	// Quality is the quality tier the artifact was downloaded at.
	Quality string `gorm:"type:varchar(16)" json:"quality"`
	// Strategy is the name of the download strategy that produced the artifact.
	Strategy string `gorm:"type:varchar(64)" json:"strategy"`
}

// TableName overrides the default table name.
func (MediaItem) TableName() string {
	return "media_items"
}

package models

import "errors"

// Common validation errors for models.
var (
	// ErrVideoIDRequired indicates a required video ID field is empty.
	ErrVideoIDRequired = errors.New("video_id is required")

	// ErrPathRequired indicates a required path field is empty.
	ErrPathRequired = errors.New("path is required")

	// ErrMediaItemNotFound indicates a media item was not found.
	ErrMediaItemNotFound = errors.New("media item not found")
)

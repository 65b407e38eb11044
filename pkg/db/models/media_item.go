package models

import (
	"time"

	"github.com/vidrelay/vidrelay-backend/pkg/enums"
)

// MediaItem records one downloaded asset awaiting disposition. Rows are
// immutable after creation; edits produce a new row pointing back via
// DerivedFrom rather than mutating the original.
type MediaItem struct {
	ID             string         `gorm:"column:id;primaryKey"`
	SourceURL      string         `gorm:"column:source_url;not null"`
	SourcePlatform enums.Platform `gorm:"column:source_platform;not null"`
	OwnerUserID    string         `gorm:"column:owner_user_id;not null"`
	LocalPath      string         `gorm:"column:local_path;not null;unique"`
	SizeBytes      int64          `gorm:"column:size_bytes;not null"`
	Quality        enums.Quality  `gorm:"column:quality;not null"`
	DerivedFrom    *string        `gorm:"column:derived_from"`
	DownloadedAt   time.Time      `gorm:"column:downloaded_at;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (MediaItem) TableName() string { return "media_items" }

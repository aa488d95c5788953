package store

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type songRecord struct {
	ID              int64  `gorm:"primaryKey;autoIncrement:false"`
	SongType        int    `gorm:"not null;index"`
	PublishDate     string `gorm:"size:20;not null;index"`
	AdditionDate    string `gorm:"size:20;not null"`
	Thumbnail       string
	MaxResThumbnail string
	ThumbnailType   int
	AverageColor    string  `gorm:"size:16"`
	DarkColor       string  `gorm:"size:16"`
	LightColor      string  `gorm:"size:16"`
	Dormant         bool    `gorm:"not null"`
	LastUpdated     string  `gorm:"size:20"`
	LastRefreshed   *string `gorm:"size:20"`
}

func (songRecord) TableName() string { return "songs" }

type songNameRecord struct {
	SongID   int64  `gorm:"primaryKey;autoIncrement:false"`
	NameType int    `gorm:"primaryKey;autoIncrement:false"`
	Name     string `gorm:"not null;index"`
}

func (songNameRecord) TableName() string { return "song_names" }

type songArtistRecord struct {
	SongID   int64 `gorm:"primaryKey;autoIncrement:false"`
	ArtistID int64 `gorm:"primaryKey;autoIncrement:false;index"`
	Category int   `gorm:"not null"`
}

func (songArtistRecord) TableName() string { return "song_artists" }

type songVideoRecord struct {
	SongID     int64  `gorm:"primaryKey;autoIncrement:false"`
	SourceType int    `gorm:"primaryKey;autoIncrement:false"`
	VideoID    string `gorm:"primaryKey;size:64"`
}

func (songVideoRecord) TableName() string { return "song_video_ids" }

type artistRecord struct {
	ID           int64  `gorm:"primaryKey;autoIncrement:false"`
	ArtistType   int    `gorm:"not null;index"`
	PublishDate  string `gorm:"size:20;not null"`
	AdditionDate string `gorm:"size:20;not null"`
	AverageColor string `gorm:"size:16"`
	DarkColor    string `gorm:"size:16"`
	LightColor   string `gorm:"size:16"`
	BaseArtistID *int64 `gorm:"index"`
	RootArtistID int64  `gorm:"not null;index"`
}

func (artistRecord) TableName() string { return "artists" }

type artistNameRecord struct {
	ArtistID int64  `gorm:"primaryKey;autoIncrement:false"`
	NameType int    `gorm:"primaryKey;autoIncrement:false"`
	Name     string `gorm:"not null;index"`
}

func (artistNameRecord) TableName() string { return "artist_names" }

type artistThumbnailRecord struct {
	ArtistID      int64 `gorm:"primaryKey;autoIncrement:false"`
	ThumbnailType int   `gorm:"primaryKey;autoIncrement:false"`
	URL           string
}

func (artistThumbnailRecord) TableName() string { return "artist_thumbnails" }

type viewsBreakdownRecord struct {
	ID         int64  `gorm:"primaryKey"`
	SongID     int64  `gorm:"not null;uniqueIndex:idx_views_breakdown_key,priority:1"`
	SnapshotAt string `gorm:"size:10;not null;uniqueIndex:idx_views_breakdown_key,priority:2;index"`
	ViewType   int    `gorm:"not null;uniqueIndex:idx_views_breakdown_key,priority:3"`
	VideoID    string `gorm:"size:64;not null;uniqueIndex:idx_views_breakdown_key,priority:4"`
	Views      int64  `gorm:"not null"`
}

func (viewsBreakdownRecord) TableName() string { return "views_breakdowns" }

// viewsSnapshotRecord marks a day whose refresh completed.
type viewsSnapshotRecord struct {
	SnapshotAt string `gorm:"primaryKey;size:10"`
	UpdatedAt  time.Time
}

func (viewsSnapshotRecord) TableName() string { return "views_snapshots" }

// AutoMigrate creates or updates every table the rankings engine reads.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&songRecord{},
		&songNameRecord{},
		&songArtistRecord{},
		&songVideoRecord{},
		&artistRecord{},
		&artistNameRecord{},
		&artistThumbnailRecord{},
		&viewsBreakdownRecord{},
		&viewsSnapshotRecord{},
	)
}

package models

import (
	"fmt"
	"time"
)

// Entity is the part shared by songs and artists.
type Entity struct {
	ID           int64               `json:"id"`
	PublishDate  time.Time           `json:"publishDate"`
	AdditionDate time.Time           `json:"additionDate"`
	Names        map[NameType]string `json:"names"`
	AverageColor string              `json:"averageColor,omitempty"`
	DarkColor    string              `json:"darkColor,omitempty"`
	LightColor   string              `json:"lightColor,omitempty"`
	Views        *EntityViews        `json:"views,omitempty"`
}

// Name returns the name of the given type, falling back to the original.
func (e *Entity) Name(t NameType) string {
	if n, ok := e.Names[t]; ok && n != "" {
		return n
	}
	return e.Names[NameTypeOriginal]
}

type EntityViews struct {
	Total     int64          `json:"total"`
	Breakdown ViewsBreakdown `json:"breakdown"`
}

type SongArtist struct {
	ArtistID int64          `json:"artistId"`
	Category ArtistCategory `json:"category"`
}

type SongPlacement struct {
	AllTime     int64 `json:"allTime"`
	ReleaseYear int64 `json:"releaseYear"`
}

type Song struct {
	Entity
	Type            SongType                `json:"type"`
	Thumbnail       string                  `json:"thumbnail"`
	MaxResThumbnail string                  `json:"maxResThumbnail"`
	ThumbnailType   SourceType              `json:"thumbnailType"`
	Artists         []SongArtist            `json:"artists"`
	VideoIDs        map[SourceType][]string `json:"videoIds"`
	Placement       *SongPlacement          `json:"placement,omitempty"`
	Dormant         bool                    `json:"dormant"`
	LastUpdated     time.Time               `json:"lastUpdated"`
	LastRefreshed   *time.Time              `json:"lastRefreshed,omitempty"`
}

// ArtistIDs returns the credited artist ids in the given category.
func (s *Song) ArtistIDs(category ArtistCategory) []int64 {
	var ids []int64
	for _, a := range s.Artists {
		if a.Category == category {
			ids = append(ids, a.ArtistID)
		}
	}
	return ids
}

// ValidateArtists rejects an artist credited under more than one category.
func (s *Song) ValidateArtists() error {
	seen := make(map[int64]ArtistCategory, len(s.Artists))
	for _, a := range s.Artists {
		if prev, ok := seen[a.ArtistID]; ok && prev != a.Category {
			return fmt.Errorf("artist %d credited as both %s and %s on song %d", a.ArtistID, prev, a.Category, s.ID)
		}
		seen[a.ArtistID] = a.Category
	}
	return nil
}

type Artist struct {
	Entity
	Type         ArtistType                     `json:"type"`
	Thumbnails   map[ArtistThumbnailType]string `json:"thumbnails"`
	BaseArtistID *int64                         `json:"baseArtistId,omitempty"`
}

// SongPatch carries the fields of a partial song update. Nil fields are left
// untouched.
type SongPatch struct {
	PublishDate     *time.Time
	AdditionDate    *time.Time
	Names           map[NameType]string
	AverageColor    *string
	DarkColor       *string
	LightColor      *string
	Type            *SongType
	Thumbnail       *string
	MaxResThumbnail *string
	ThumbnailType   *SourceType
	Artists         []SongArtist
	VideoIDs        map[SourceType][]string
	Dormant         *bool
	LastRefreshed   *time.Time
}

// ArtistPatch carries the fields of a partial artist update. A non-nil
// ClearBaseArtist detaches the artist from its base.
type ArtistPatch struct {
	PublishDate     *time.Time
	AdditionDate    *time.Time
	Names           map[NameType]string
	AverageColor    *string
	DarkColor       *string
	LightColor      *string
	Type            *ArtistType
	Thumbnails      map[ArtistThumbnailType]string
	BaseArtistID    *int64
	ClearBaseArtist bool
}

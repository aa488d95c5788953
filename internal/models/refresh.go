package models

import "time"

// RefreshTarget is what the refresh job needs to know about a song.
type RefreshTarget struct {
	SongID      int64
	PublishDate time.Time
	Dormant     bool
	VideoIDs    map[SourceType][]string
}

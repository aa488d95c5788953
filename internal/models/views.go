package models

import (
	"sort"
	"time"
)

// DayLayout is the storage format of snapshot days.
const DayLayout = "2006-01-02"

// TimestampLayout is the storage format of publish and addition dates. Stored
// values compare lexically in time order.
const TimestampLayout = "2006-01-02T15:04:05Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp returns the zero time for malformed input.
func ParseTimestamp(s string) time.Time {
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDay renders t as a snapshot key.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, s, time.UTC)
}

// AddDays moves a snapshot day by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

type VideoViews struct {
	VideoID string `json:"videoId"`
	Views   int64  `json:"views"`
}

// ViewsBreakdown holds one day of per-video view counts by source.
type ViewsBreakdown map[SourceType][]VideoViews

func (b ViewsBreakdown) Total() int64 {
	var total int64
	for _, videos := range b {
		for _, v := range videos {
			total += v.Views
		}
	}
	return total
}

// Best returns the highest single-video count in the breakdown.
func (b ViewsBreakdown) Best() int64 {
	var best int64
	for _, videos := range b {
		for _, v := range videos {
			if v.Views > best {
				best = v.Views
			}
		}
	}
	return best
}

// Normalize sorts every source's videos by id so that equal breakdowns
// compare equal.
func (b ViewsBreakdown) Normalize() ViewsBreakdown {
	for source, videos := range b {
		sort.Slice(videos, func(i, j int) bool { return videos[i].VideoID < videos[j].VideoID })
		b[source] = videos
	}
	return b
}

type ViewsSnapshot struct {
	SongID    int64          `json:"songId"`
	Timestamp time.Time      `json:"timestamp"`
	Breakdown ViewsBreakdown `json:"breakdown"`
}

type HistoricalView struct {
	Views     int64     `json:"views"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoricalSeries is ordered oldest first.
type HistoricalSeries struct {
	Views   []HistoricalView `json:"views"`
	Largest int64            `json:"largest"`
}

// HistoricalEntity selects whose history is charted.
type HistoricalEntity int

const (
	HistoricalEntitySong HistoricalEntity = iota
	HistoricalEntityArtist
)

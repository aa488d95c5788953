package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/cast"
)

// Inclusion keeps only entities matching the listed values. Unless Mode is
// OR every value must match.
type Inclusion[T comparable] struct {
	Values []T
	Mode   FilterMode
}

func (i Inclusion[T]) Active() bool   { return len(i.Values) > 0 }
func (i Inclusion[T]) MatchAll() bool { return i.Mode != FilterModeOr }

// Exclusion drops entities matching the listed values. Unless Mode is AND an
// entity is dropped when any value matches.
type Exclusion[T comparable] struct {
	Values []T
	Mode   FilterMode
}

func (e Exclusion[T]) Active() bool   { return len(e.Values) > 0 }
func (e Exclusion[T]) MatchAll() bool { return e.Mode == FilterModeAnd }

// FuzzyDate matches a publish date by any combination of year, month and day.
// A zero component is a wildcard.
type FuzzyDate struct {
	Year  int
	Month int
	Day   int
}

func (d FuzzyDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Pattern renders the date as a LIKE pattern over ISO timestamps.
func (d FuzzyDate) Pattern() string {
	part := func(v int, format string) string {
		if v == 0 {
			return "%"
		}
		return fmt.Sprintf(format, v)
	}
	return part(d.Year, "%04d") + "-" + part(d.Month, "%02d") + "-" + part(d.Day, "%02d") + "%"
}

// RankingsFilterParams holds the filters shared by song and artist rankings.
//
// For song rankings IncludeArtists/ExcludeArtists match credited artists and
// IncludeSongs/ExcludeSongs match the ranked songs. For artist rankings
// IncludeArtists/ExcludeArtists match the ranked artists and the song lists
// restrict which songs are counted.
type RankingsFilterParams struct {
	Timestamp        *time.Time
	TimePeriodOffset int
	ChangeOffset     int

	PublishDate     *FuzzyDate
	PublishedAfter  *time.Time
	PublishedBefore *time.Time

	IncludeSongTypes   Inclusion[SongType]
	ExcludeSongTypes   Exclusion[SongType]
	IncludeSourceTypes Inclusion[SourceType]
	ExcludeSourceTypes Exclusion[SourceType]
	IncludeArtistTypes Inclusion[ArtistType]
	ExcludeArtistTypes Exclusion[ArtistType]
	IncludeArtists     Inclusion[int64]
	ExcludeArtists     Exclusion[int64]
	IncludeSongs       Inclusion[int64]
	ExcludeSongs       Exclusion[int64]

	MinViews    *int64
	MaxViews    *int64
	Search      string
	SingleVideo bool

	OrderBy    FilterOrder
	Direction  FilterDirection
	StartAt    int
	MaxEntries int
}

type boundsRules struct {
	TimePeriodOffset int `validate:"min:0"`
	ChangeOffset     int `validate:"min:0"`
	StartAt          int `validate:"min:0"`
	MaxEntries       int `validate:"required|min:1"`
	PublishMonth     int `validate:"min:1|max:12"`
	PublishDay       int `validate:"min:1|max:31"`
}

func (p *RankingsFilterParams) validate() error {
	rules := &boundsRules{
		TimePeriodOffset: p.TimePeriodOffset,
		ChangeOffset:     p.ChangeOffset,
		StartAt:          p.StartAt,
		MaxEntries:       p.MaxEntries,
	}
	if p.PublishDate != nil {
		rules.PublishMonth = p.PublishDate.Month
		rules.PublishDay = p.PublishDate.Day
	}

	v := validate.Struct(rules)
	v.StopOnError = false
	if !v.Validate() {
		return &ValidationError{Errors: v.Errors}
	}
	if p.MinViews != nil && p.MaxViews != nil && *p.MinViews > *p.MaxViews {
		return &ValidationError{Errors: validate.Errors{
			"MinViews": {"range": "MinViews must not exceed MaxViews"},
		}}
	}
	return nil
}

// SongRankingsFilterParams filters a song ranking. IncludeSimilarArtists
// widens every artist filter to the artist's derived voicebanks.
type SongRankingsFilterParams struct {
	RankingsFilterParams
	IncludeSimilarArtists bool
}

func (p *SongRankingsFilterParams) Validate() error {
	if err := p.validate(); err != nil {
		return err
	}
	if p.OrderBy == FilterOrderSongCount {
		return &ValidationError{Errors: validate.Errors{
			"OrderBy": {"enum": "song rankings cannot be ordered by song count"},
		}}
	}
	return nil
}

// NewSongRankingsFilterParams builds song ranking params and validates them.
func NewSongRankingsFilterParams(build func(p *SongRankingsFilterParams)) (*SongRankingsFilterParams, error) {
	p := &SongRankingsFilterParams{}
	p.MaxEntries = 50
	if build != nil {
		build(p)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ArtistRankingsFilterParams filters an artist ranking.
//
// CombineSimilarArtists folds every artist into the root of its base-artist
// chain. IncludeCoArtistsOf ranks the artists that share a song with any of
// the listed artists.
type ArtistRankingsFilterParams struct {
	RankingsFilterParams
	ArtistCategory        *ArtistCategory
	CombineSimilarArtists bool
	IncludeCoArtistsOf    []int64
}

func (p *ArtistRankingsFilterParams) Validate() error {
	return p.validate()
}

// NewArtistRankingsFilterParams builds artist ranking params and validates them.
func NewArtistRankingsFilterParams(build func(p *ArtistRankingsFilterParams)) (*ArtistRankingsFilterParams, error) {
	p := &ArtistRankingsFilterParams{}
	p.MaxEntries = 50
	if build != nil {
		build(p)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ValidationError reports filter params that cannot be queried.
type ValidationError struct {
	Errors validate.Errors
}

func (e *ValidationError) Error() string {
	return "invalid filter params: " + strings.TrimSpace(e.Errors.String())
}

// ParseIDs converts raw ids leniently. Values that are not positive integers
// are dropped without error.
func ParseIDs(raw []string) []int64 {
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		id, err := cast.ToInt64E(r)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// ParseIDList splits a comma separated id list and parses it with ParseIDs.
func ParseIDList(raw string) []int64 {
	if raw == "" {
		return nil
	}
	return ParseIDs(strings.Split(raw, ","))
}

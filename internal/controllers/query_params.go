package controllers

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"vocarank/internal/models"
	"vocarank/internal/structures"

	"github.com/gookit/validate"
	"github.com/spf13/cast"
)

// queryReader pulls typed values out of a request query. Malformed numbers
// and dates are collected as validation errors; unknown enum names are
// dropped.
type queryReader struct {
	q      url.Values
	errors validate.Errors
}

func newQueryReader(q url.Values) *queryReader {
	return &queryReader{q: q, errors: validate.Errors{}}
}

func (qr *queryReader) fail(field, msg string) {
	qr.errors.Add(field, "format", msg)
}

func (qr *queryReader) err() error {
	if len(qr.errors) == 0 {
		return nil
	}
	return &models.ValidationError{Errors: qr.errors}
}

func (qr *queryReader) readInt(field string, def int) int {
	raw := qr.q.Get(field)
	if raw == "" {
		return def
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		qr.fail(field, fmt.Sprintf("%s must be an integer", field))
		return def
	}
	return v
}

func (qr *queryReader) int64Ptr(field string) *int64 {
	raw := qr.q.Get(field)
	if raw == "" {
		return nil
	}
	v, err := cast.ToInt64E(raw)
	if err != nil {
		qr.fail(field, fmt.Sprintf("%s must be an integer", field))
		return nil
	}
	return &v
}

func (qr *queryReader) readBool(field string) bool {
	raw := qr.q.Get(field)
	if raw == "" {
		return false
	}
	v, err := cast.ToBoolE(raw)
	if err != nil {
		qr.fail(field, fmt.Sprintf("%s must be a boolean", field))
	}
	return v
}

// readTime accepts RFC 3339 timestamps and bare days.
func (qr *queryReader) readTime(field string) *time.Time {
	raw := qr.q.Get(field)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := models.ParseDay(raw); err == nil {
		return &t
	}
	qr.fail(field, fmt.Sprintf("%s must be a date", field))
	return nil
}

// fuzzyDate parses YYYY[-MM[-DD]] where any component may be "*".
func (qr *queryReader) fuzzyDate(field string) *models.FuzzyDate {
	raw := qr.q.Get(field)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "-")
	if len(parts) > 3 {
		qr.fail(field, fmt.Sprintf("%s must look like YYYY-MM-DD", field))
		return nil
	}
	values := make([]int, 3)
	for i, p := range parts {
		if p == "*" || p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			qr.fail(field, fmt.Sprintf("%s must look like YYYY-MM-DD", field))
			return nil
		}
		values[i] = v
	}
	d := &models.FuzzyDate{Year: values[0], Month: values[1], Day: values[2]}
	if d.IsZero() {
		return nil
	}
	return d
}

func (qr *queryReader) list(field string) []string {
	raw := qr.q.Get(field)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func (qr *queryReader) mode(field string) models.FilterMode {
	m, _ := models.ParseFilterMode(qr.q.Get(field))
	return m
}

func parseEnums[T comparable](raw []string, parse func(string) (T, bool)) []T {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		if v, ok := parse(r); ok {
			out = append(out, v)
		}
	}
	return out
}

func includeEnums[T comparable](qr *queryReader, field string, parse func(string) (T, bool)) models.Inclusion[T] {
	return models.Inclusion[T]{Values: parseEnums(qr.list(field), parse), Mode: qr.mode(field + "Mode")}
}

func excludeEnums[T comparable](qr *queryReader, field string, parse func(string) (T, bool)) models.Exclusion[T] {
	return models.Exclusion[T]{Values: parseEnums(qr.list(field), parse), Mode: qr.mode(field + "Mode")}
}

func (qr *queryReader) includeIDs(field string) models.Inclusion[int64] {
	return models.Inclusion[int64]{Values: models.ParseIDList(qr.q.Get(field)), Mode: qr.mode(field + "Mode")}
}

func (qr *queryReader) excludeIDs(field string) models.Exclusion[int64] {
	return models.Exclusion[int64]{Values: models.ParseIDList(qr.q.Get(field)), Mode: qr.mode(field + "Mode")}
}

// rankingsParams fills the filters shared by song and artist rankings.
// maxEntries falls back to the configured default and is capped at the
// configured maximum.
func (qr *queryReader) rankingsParams(p *models.RankingsFilterParams, conf structures.RankingsConfig) {
	p.Timestamp = qr.readTime("timestamp")
	p.TimePeriodOffset = qr.readInt("timePeriodOffset", 0)
	p.ChangeOffset = qr.readInt("changeOffset", 0)

	p.PublishDate = qr.fuzzyDate("publishDate")
	p.PublishedAfter = qr.readTime("publishedAfter")
	p.PublishedBefore = qr.readTime("publishedBefore")

	p.IncludeSongTypes = includeEnums(qr, "includeSongTypes", models.ParseSongType)
	p.ExcludeSongTypes = excludeEnums(qr, "excludeSongTypes", models.ParseSongType)
	p.IncludeSourceTypes = includeEnums(qr, "includeSourceTypes", models.ParseSourceType)
	p.ExcludeSourceTypes = excludeEnums(qr, "excludeSourceTypes", models.ParseSourceType)
	p.IncludeArtistTypes = includeEnums(qr, "includeArtistTypes", models.ParseArtistType)
	p.ExcludeArtistTypes = excludeEnums(qr, "excludeArtistTypes", models.ParseArtistType)
	p.IncludeArtists = qr.includeIDs("includeArtists")
	p.ExcludeArtists = qr.excludeIDs("excludeArtists")
	p.IncludeSongs = qr.includeIDs("includeSongs")
	p.ExcludeSongs = qr.excludeIDs("excludeSongs")

	p.MinViews = qr.int64Ptr("minViews")
	p.MaxViews = qr.int64Ptr("maxViews")
	p.Search = strings.TrimSpace(qr.q.Get("search"))
	p.SingleVideo = qr.readBool("singleVideo")

	if o, ok := models.ParseFilterOrder(qr.q.Get("orderBy")); ok {
		p.OrderBy = o
	}
	if d, ok := models.ParseFilterDirection(qr.q.Get("direction")); ok {
		p.Direction = d
	}
	p.StartAt = qr.readInt("startAt", 0)

	def := conf.DefaultMaxEntries
	if def <= 0 {
		def = 50
	}
	p.MaxEntries = qr.readInt("maxEntries", def)
	if conf.MaxMaxEntries > 0 && p.MaxEntries > conf.MaxMaxEntries {
		p.MaxEntries = conf.MaxMaxEntries
	}
}

func songRankingsParams(q url.Values, conf structures.RankingsConfig) (*models.SongRankingsFilterParams, error) {
	qr := newQueryReader(q)
	var parseErr error
	p, err := models.NewSongRankingsFilterParams(func(p *models.SongRankingsFilterParams) {
		qr.rankingsParams(&p.RankingsFilterParams, conf)
		p.IncludeSimilarArtists = qr.readBool("includeSimilarArtists")
		parseErr = qr.err()
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return p, err
}

func artistRankingsParams(q url.Values, conf structures.RankingsConfig) (*models.ArtistRankingsFilterParams, error) {
	qr := newQueryReader(q)
	var parseErr error
	p, err := models.NewArtistRankingsFilterParams(func(p *models.ArtistRankingsFilterParams) {
		qr.rankingsParams(&p.RankingsFilterParams, conf)
		if c, ok := models.ParseArtistCategory(q.Get("artistCategory")); ok {
			p.ArtistCategory = &c
		}
		p.CombineSimilarArtists = qr.readBool("combineSimilarArtists")
		p.IncludeCoArtistsOf = models.ParseIDList(q.Get("coArtistsOf"))
		parseErr = qr.err()
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return p, err
}

// entityID reads a required positive id.
func (qr *queryReader) entityID(field string) int64 {
	raw := qr.q.Get(field)
	id, err := cast.ToInt64E(raw)
	if raw == "" || err != nil || id <= 0 {
		qr.fail(field, fmt.Sprintf("%s must be a positive integer", field))
		return 0
	}
	return id
}

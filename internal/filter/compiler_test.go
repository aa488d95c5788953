package filter

import (
	"testing"
	"time"
	"vocarank/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHierarchy map[int64][]int64

func (h fakeHierarchy) Subtree(id int64) []int64 {
	return append([]int64{id}, h[id]...)
}

func songParams(build func(p *models.SongRankingsFilterParams)) *models.SongRankingsFilterParams {
	p := &models.SongRankingsFilterParams{}
	p.MaxEntries = 10
	build(p)
	return p
}

func TestCompileSong_IncludeArtistsDefaultsToAll(t *testing.T) {
	p := songParams(func(p *models.SongRankingsFilterParams) {
		p.IncludeArtists = models.Inclusion[int64]{Values: []int64{1, 2}}
	})
	c := CompileSong(p, nil)

	sql, ok := c.Fragment(IncludeArtists)
	require.True(t, ok)
	assert.Equal(t,
		"(EXISTS (SELECT 1 FROM song_artists fsa WHERE fsa.song_id = s.id AND fsa.artist_id IN (@includeArtists_0)) AND "+
			"EXISTS (SELECT 1 FROM song_artists fsa WHERE fsa.song_id = s.id AND fsa.artist_id IN (@includeArtists_1)))",
		sql)
	assert.Equal(t, int64(1), c.Binds()["includeArtists_0"])
	assert.Equal(t, int64(2), c.Binds()["includeArtists_1"])
}

func TestCompileSong_IncludeArtistsAny(t *testing.T) {
	p := songParams(func(p *models.SongRankingsFilterParams) {
		p.IncludeArtists = models.Inclusion[int64]{Values: []int64{1, 2}, Mode: models.FilterModeOr}
	})
	sql, _ := CompileSong(p, nil).Fragment(IncludeArtists)
	assert.Equal(t,
		"EXISTS (SELECT 1 FROM song_artists fsa WHERE fsa.song_id = s.id AND fsa.artist_id IN (@includeArtists_0, @includeArtists_1))",
		sql)
}

func TestCompileSong_ExcludeArtistsDefaultsToAny(t *testing.T) {
	p := songParams(func(p *models.SongRankingsFilterParams) {
		p.ExcludeArtists = models.Exclusion[int64]{Values: []int64{1, 2}}
	})
	sql, _ := CompileSong(p, nil).Fragment(ExcludeArtists)
	assert.Equal(t,
		"NOT (EXISTS (SELECT 1 FROM song_artists fsa WHERE fsa.song_id = s.id AND fsa.artist_id IN (@excludeArtists_0, @excludeArtists_1)))",
		sql)

	p.ExcludeArtists.Mode = models.FilterModeAnd
	sql, _ = CompileSong(p, nil).Fragment(ExcludeArtists)
	assert.Equal(t,
		"NOT ((EXISTS (SELECT 1 FROM song_artists fsa WHERE fsa.song_id = s.id AND fsa.artist_id IN (@excludeArtists_0)) AND "+
			"EXISTS (SELECT 1 FROM song_artists fsa WHERE fsa.song_id = s.id AND fsa.artist_id IN (@excludeArtists_1))))",
		sql)
}

func TestCompileSong_SimilarArtistsExpandHierarchy(t *testing.T) {
	h := fakeHierarchy{1: {5, 6}}
	p := songParams(func(p *models.SongRankingsFilterParams) {
		p.IncludeArtists = models.Inclusion[int64]{Values: []int64{1, 2}}
		p.IncludeSimilarArtists = true
	})
	c := CompileSong(p, h)

	sql, _ := c.Fragment(IncludeArtists)
	assert.Contains(t, sql, "fsa.artist_id IN (@includeArtists_0, @includeArtists_1, @includeArtists_2)")
	assert.Contains(t, sql, "fsa.artist_id IN (@includeArtists_3)")
	binds := c.Binds()
	assert.Equal(t, int64(6), binds["includeArtists_2"])
	assert.Equal(t, int64(2), binds["includeArtists_3"])

	// without the flag the hierarchy is ignored
	p.IncludeSimilarArtists = false
	_, ok := CompileSong(p, h).Binds()["includeArtists_2"]
	assert.False(t, ok)
}

func TestCompileSong_SourceTypes(t *testing.T) {
	p := songParams(func(p *models.SongRankingsFilterParams) {
		p.IncludeSourceTypes = models.Inclusion[models.SourceType]{
			Values: []models.SourceType{models.SourceTypeYouTube, models.SourceTypeNiconico},
		}
		p.ExcludeSourceTypes = models.Exclusion[models.SourceType]{Values: []models.SourceType{models.SourceTypeBilibili}}
	})
	c := CompileSong(p, nil)

	assert.Equal(t, "\n  AND vb.view_type IN (@includeSourceTypes_0, @includeSourceTypes_1)\n  AND NOT (vb.view_type IN (@excludeSourceTypes_0))", c.And(ScopeRow))

	required, ok := c.Fragment(RequireSourceTypes)
	assert.True(t, ok)
	assert.Contains(t, required, "fsv.source_type IN (@requireSourceTypes_1)")

	p.IncludeSourceTypes.Mode = models.FilterModeOr
	_, ok = CompileSong(p, nil).Fragment(RequireSourceTypes)
	assert.False(t, ok)
}

func TestCompileSong_TypesDatesSearchAndThresholds(t *testing.T) {
	minViews := int64(1000)
	after := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	p := songParams(func(p *models.SongRankingsFilterParams) {
		p.IncludeSongTypes = models.Inclusion[models.SongType]{Values: []models.SongType{models.SongTypeOriginal}}
		p.ExcludeArtistTypes = models.Exclusion[models.ArtistType]{Values: []models.ArtistType{models.ArtistTypeUTAU}}
		p.PublishDate = &models.FuzzyDate{Year: 2020}
		p.PublishedAfter = &after
		p.Search = "100%_Miku"
		p.MinViews = &minViews
	})
	c := CompileSong(p, nil)
	binds := c.Binds()

	sql, _ := c.Fragment(IncludeSongTypes)
	assert.Equal(t, "s.song_type IN (@includeSongTypes_0)", sql)
	assert.Equal(t, int64(models.SongTypeOriginal), binds["includeSongTypes_0"])

	sql, _ = c.Fragment(ExcludeArtistTypes)
	assert.Contains(t, sql, "NOT (EXISTS (SELECT 1 FROM song_artists fst JOIN artists fat")

	sql, _ = c.Fragment(PublishDate)
	assert.Equal(t, "s.publish_date LIKE @publishDate", sql)
	assert.Equal(t, "2020-%-%%", binds["publishDate"])

	sql, _ = c.Fragment(PublishedBetween)
	assert.Equal(t, "s.publish_date >= @published_min", sql)
	assert.Equal(t, "2019-01-01T00:00:00Z", binds["published_min"])

	assert.Equal(t, `%100\%\_miku%`, binds["search"])

	assert.Equal(t, "\n  AND views >= @views_min", c.And(ScopeThreshold))
	assert.Equal(t, int64(1000), binds["views_min"])
	assert.Equal(t, "SUM", c.Aggregate())
}

func TestCompileSong_SingleVideo(t *testing.T) {
	p := songParams(func(p *models.SongRankingsFilterParams) { p.SingleVideo = true })
	c := CompileSong(p, nil)
	assert.Equal(t, "MAX", c.Aggregate())
	assert.Empty(t, c.Fragments())
	assert.Empty(t, c.Binds())
}

func TestCompileArtist_CoArtistsAndCategory(t *testing.T) {
	cat := models.ArtistCategoryProducer
	p := &models.ArtistRankingsFilterParams{ArtistCategory: &cat, IncludeCoArtistsOf: []int64{7}}
	p.MaxEntries = 10
	p.IncludeArtistTypes = models.Inclusion[models.ArtistType]{Values: []models.ArtistType{models.ArtistTypeProducer}}
	c := CompileArtist(p)

	assert.Equal(t,
		"\n  AND sa.category IN (@artistCategory_0)"+
			"\n  AND sa.song_id IN (SELECT fco.song_id FROM song_artists fco WHERE fco.artist_id IN (@coArtistsOf_0))"+
			"\n  AND NOT (sa.artist_id IN (@omitCoArtists_0))",
		c.And(ScopeCredit))
	assert.Equal(t, "\n  AND ra.artist_type IN (@includeArtistTypes_0)", c.And(ScopeArtist))
	assert.Equal(t, int64(7), c.Binds()["coArtistsOf_0"])
}

func TestCompiled_WithCopiesBinds(t *testing.T) {
	p := songParams(func(p *models.SongRankingsFilterParams) {
		p.IncludeSongs = models.Inclusion[int64]{Values: []int64{3}}
	})
	c := CompileSong(p, nil)
	shifted := c.With(map[string]interface{}{"timestamp": "2024-01-01"})

	assert.Equal(t, "2024-01-01", shifted.Binds()["timestamp"])
	_, leaked := c.Binds()["timestamp"]
	assert.False(t, leaked)
	assert.Equal(t, int64(3), shifted.Binds()["includeSongs_0"])
}

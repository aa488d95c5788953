package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"vocarank/internal/models"
	"vocarank/internal/structures"
	"vocarank/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- local mocks (scoped to controller tests) ---

type mockService struct {
	calls        int
	songParams   *models.SongRankingsFilterParams
	artistParams *models.ArtistRankingsFilterParams
	historyArgs  []any
	songs        map[int64]*models.Song
	err          error
}

func (m *mockService) SongRankings(_ context.Context, p *models.SongRankingsFilterParams) (*models.SongRankingResult, error) {
	m.calls++
	m.songParams = p
	if m.err != nil {
		return nil, m.err
	}
	return &models.SongRankingResult{
		TotalCount: 1,
		Results: []models.RankingItem[*models.Song]{{
			Placement: 1,
			Views:     100,
			Entity:    &models.Song{Entity: models.Entity{ID: 7}},
		}},
	}, nil
}

func (m *mockService) ArtistRankings(_ context.Context, p *models.ArtistRankingsFilterParams) (*models.ArtistRankingResult, error) {
	m.calls++
	m.artistParams = p
	return &models.ArtistRankingResult{Results: []models.RankingItem[*models.Artist]{}}, m.err
}

func (m *mockService) HistoricalViews(_ context.Context, entity models.HistoricalEntity, id int64, rng, period int, ts *time.Time) (*models.HistoricalSeries, error) {
	m.calls++
	m.historyArgs = []any{entity, id, rng, period, ts}
	return &models.HistoricalSeries{Views: []models.HistoricalView{}}, m.err
}

func (m *mockService) Song(_ context.Context, id int64, _ *time.Time) (*models.Song, error) {
	m.calls++
	return m.songs[id], m.err
}

func (m *mockService) Artist(_ context.Context, _ int64, _ *time.Time) (*models.Artist, error) {
	m.calls++
	return nil, m.err
}

// --- helpers ---

func newTestController(svc *mockService, cache *testutil.MockCache) *ApiController {
	conf := &structures.Config{Rankings: structures.RankingsConfig{DefaultMaxEntries: 50, MaxMaxEntries: 200}}
	return NewApiController(&testutil.MockLogger{}, svc, cache, conf)
}

func get(handler http.HandlerFunc, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

// --- GetSongRankings tests ---

func TestGetSongRankings_ReturnsJSON(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, testutil.NewMockCache())

	rr := get(ac.GetSongRankings, "/rankings/songs")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, float64(1), result["totalCount"])
	items := result["results"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "SAME", items[0].(map[string]interface{})["change"])
}

func TestGetSongRankings_ParsesFilters(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, testutil.NewMockCache())

	rr := get(ac.GetSongRankings, "/rankings/songs?timestamp=2024-01-05&timePeriodOffset=1&changeOffset=2"+
		"&publishDate=*-06&includeSongTypes=original,bogus&excludeSourceTypes=niconico&excludeSourceTypesMode=and"+
		"&includeArtists=1,x,2&includeArtistsMode=or&minViews=10&search=%20miku%20&singleVideo=true"+
		"&orderBy=publish_date&direction=ascending&startAt=20&maxEntries=10&includeSimilarArtists=1")
	require.Equal(t, http.StatusOK, rr.Code)

	p := svc.songParams
	require.NotNil(t, p)
	require.NotNil(t, p.Timestamp)
	assert.Equal(t, "2024-01-05", models.FormatDay(*p.Timestamp))
	assert.Equal(t, 1, p.TimePeriodOffset)
	assert.Equal(t, 2, p.ChangeOffset)
	assert.Equal(t, &models.FuzzyDate{Month: 6}, p.PublishDate)
	assert.Equal(t, []models.SongType{models.SongTypeOriginal}, p.IncludeSongTypes.Values)
	assert.Equal(t, []models.SourceType{models.SourceTypeNiconico}, p.ExcludeSourceTypes.Values)
	assert.Equal(t, models.FilterModeAnd, p.ExcludeSourceTypes.Mode)
	assert.Equal(t, []int64{1, 2}, p.IncludeArtists.Values)
	assert.Equal(t, models.FilterModeOr, p.IncludeArtists.Mode)
	assert.Equal(t, int64(10), *p.MinViews)
	assert.Nil(t, p.MaxViews)
	assert.Equal(t, "miku", p.Search)
	assert.True(t, p.SingleVideo)
	assert.Equal(t, models.FilterOrderPublishDate, p.OrderBy)
	assert.Equal(t, models.FilterDirectionAscending, p.Direction)
	assert.Equal(t, 20, p.StartAt)
	assert.Equal(t, 10, p.MaxEntries)
	assert.True(t, p.IncludeSimilarArtists)
}

func TestGetSongRankings_MaxEntriesDefaultsAndCap(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, testutil.NewMockCache())

	get(ac.GetSongRankings, "/rankings/songs")
	assert.Equal(t, 50, svc.songParams.MaxEntries)

	get(ac.GetSongRankings, "/rankings/songs?maxEntries=5000")
	assert.Equal(t, 200, svc.songParams.MaxEntries)
}

func TestGetSongRankings_InvalidParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{"negative start", "startAt=-1", "StartAt"},
		{"zero max entries", "maxEntries=0", "MaxEntries"},
		{"malformed number", "minViews=lots", "minViews"},
		{"malformed date", "timestamp=yesterday", "timestamp"},
		{"bad publish month", "publishDate=2020-13", "PublishMonth"},
		{"song count order", "orderBy=song_count", "OrderBy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{}
			cache := testutil.NewMockCache()
			ac := newTestController(svc, cache)

			rr := get(ac.GetSongRankings, "/rankings/songs?"+tt.query)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Zero(t, svc.calls)
			assert.Empty(t, cache.Data)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Contains(t, resp.Fields, tt.field)
		})
	}
}

func TestGetSongRankings_ServiceError(t *testing.T) {
	svc := &mockService{err: errors.New("database is locked")}
	cache := testutil.NewMockCache()
	ac := newTestController(svc, cache)

	rr := get(ac.GetSongRankings, "/rankings/songs")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, cache.Data)
}

// --- GetArtistRankings tests ---

func TestGetArtistRankings_ParsesArtistFilters(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, testutil.NewMockCache())

	rr := get(ac.GetArtistRankings, "/rankings/artists?artistCategory=vocalist&combineSimilarArtists=true&coArtistsOf=3,4&orderBy=song_count")
	require.Equal(t, http.StatusOK, rr.Code)

	p := svc.artistParams
	require.NotNil(t, p)
	require.NotNil(t, p.ArtistCategory)
	assert.Equal(t, models.ArtistCategoryVocalist, *p.ArtistCategory)
	assert.True(t, p.CombineSimilarArtists)
	assert.Equal(t, []int64{3, 4}, p.IncludeCoArtistsOf)
	assert.Equal(t, models.FilterOrderSongCount, p.OrderBy)
}

// --- GetHistoricalViews tests ---

func TestGetHistoricalViews_Defaults(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, testutil.NewMockCache())

	rr := get(ac.GetHistoricalViews, "/views/history?id=9")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{models.HistoricalEntitySong, int64(9), 30, 1, (*time.Time)(nil)}, svc.historyArgs)
}

func TestGetHistoricalViews_Artist(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, testutil.NewMockCache())

	rr := get(ac.GetHistoricalViews, "/views/history?entity=artist&id=2&range=7&period=7")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.HistoricalEntityArtist, svc.historyArgs[0])
	assert.Equal(t, 7, svc.historyArgs[2])
	assert.Equal(t, 7, svc.historyArgs[3])
}

func TestGetHistoricalViews_BadRequest(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, testutil.NewMockCache())

	assert.Equal(t, http.StatusBadRequest, get(ac.GetHistoricalViews, "/views/history").Code)
	assert.Equal(t, http.StatusBadRequest, get(ac.GetHistoricalViews, "/views/history?id=1&entity=album").Code)
	assert.Zero(t, svc.calls)
}

// --- GetSong / GetArtist tests ---

func TestGetSong_Found(t *testing.T) {
	svc := &mockService{songs: map[int64]*models.Song{5: {Entity: models.Entity{ID: 5}}}}
	ac := newTestController(svc, testutil.NewMockCache())

	rr := get(ac.GetSong, "/songs?id=5")

	assert.Equal(t, http.StatusOK, rr.Code)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, float64(5), result["id"])
}

func TestGetSong_NotFound(t *testing.T) {
	cache := testutil.NewMockCache()
	ac := newTestController(&mockService{}, cache)

	rr := get(ac.GetSong, "/songs?id=404")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Empty(t, cache.Data)
}

func TestGetArtist_NotFound(t *testing.T) {
	ac := newTestController(&mockService{}, testutil.NewMockCache())

	assert.Equal(t, http.StatusNotFound, get(ac.GetArtist, "/artists?id=1").Code)
	assert.Equal(t, http.StatusBadRequest, get(ac.GetArtist, "/artists?id=-1").Code)
}

// --- Cache behavior tests ---

func TestCacheHit_ServiceNotCalled(t *testing.T) {
	cache := testutil.NewMockCache()
	cached := []byte(`{"totalCount":99}`)
	cache.Set("/rankings/songs?maxEntries=5&startAt=0", cached)

	svc := &mockService{}
	ac := newTestController(svc, cache)

	// query order does not change the key
	rr := get(ac.GetSongRankings, "/rankings/songs?startAt=0&maxEntries=5")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, string(cached), rr.Body.String())
	assert.Zero(t, svc.calls)
}

func TestCacheMiss_SavesResult(t *testing.T) {
	cache := testutil.NewMockCache()
	svc := &mockService{}
	ac := newTestController(svc, cache)

	rr := get(ac.GetSongRankings, "/rankings/songs?maxEntries=5")
	require.Equal(t, http.StatusOK, rr.Code)

	val, ok := cache.Get("/rankings/songs?maxEntries=5")
	require.True(t, ok)
	assert.Equal(t, rr.Body.String(), string(val))

	get(ac.GetSongRankings, "/rankings/songs?maxEntries=5")
	assert.Equal(t, 1, svc.calls)
}

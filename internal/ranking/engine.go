package ranking

import (
	"context"
	"time"
	"vocarank/internal/filter"
	"vocarank/internal/models"
	"vocarank/internal/providers"
	"vocarank/internal/store"

	"gorm.io/gorm"
)

type EngineInterface interface {
	FilterSongRankings(ctx context.Context, p *models.SongRankingsFilterParams) (*models.SongRankingResult, error)
	FilterArtistRankings(ctx context.Context, p *models.ArtistRankingsFilterParams) (*models.ArtistRankingResult, error)
	GetHistoricalViews(ctx context.Context, entity models.HistoricalEntity, id int64, rng, period int, ts *time.Time) (*models.HistoricalSeries, error)
	GetSong(ctx context.Context, id int64, ts *time.Time) (*models.Song, error)
	GetArtist(ctx context.Context, id int64, ts *time.Time) (*models.Artist, error)
	SongPlacement(ctx context.Context, song *models.Song, ts *time.Time) (*models.SongPlacement, error)
}

type Engine struct {
	db       *gorm.DB
	entities store.EntityStoreInterface
	views    store.ViewsStoreInterface
	logger   providers.Logger
}

func NewEngine(db *gorm.DB, entities store.EntityStoreInterface, views store.ViewsStoreInterface, logger providers.Logger) EngineInterface {
	return &Engine{
		db:       db,
		entities: entities,
		views:    views,
		logger:   logger,
	}
}

// rankingQuery renders the "ranked" CTE chain for one window.
type rankingQuery func(w window) string

func (e *Engine) FilterSongRankings(ctx context.Context, p *models.SongRankingsFilterParams) (*models.SongRankingResult, error) {
	c := filter.CompileSong(p, e.entities.ArtistTree())
	query := func(w window) string {
		return songRankingBase(c, w.offset != nil, p.OrderBy, p.Direction)
	}

	page, err := e.rank(ctx, &p.RankingsFilterParams, c, query)
	if err != nil || len(page.rows) == 0 {
		return emptyResult[*models.Song](page), err
	}

	songs, err := e.entities.GetSongs(ctx, page.ids())
	if err != nil {
		e.logger.Warnf(providers.TypeQuery, "Batch song hydration failed, falling back to single reads: %v", err)
		songs = hydrateEach(ctx, page.ids(), e.entities.GetSong, e.logger)
	}
	return assemble(page, songs, e.logger, "song"), nil
}

func (e *Engine) FilterArtistRankings(ctx context.Context, p *models.ArtistRankingsFilterParams) (*models.ArtistRankingResult, error) {
	c := filter.CompileArtist(p)
	query := func(w window) string {
		return artistRankingBase(c, w.offset != nil, p.CombineSimilarArtists, p.OrderBy, p.Direction)
	}

	page, err := e.rank(ctx, &p.RankingsFilterParams, c, query)
	if err != nil || len(page.rows) == 0 {
		return emptyResult[*models.Artist](page), err
	}

	artists, err := e.entities.GetArtists(ctx, page.ids())
	if err != nil {
		e.logger.Warnf(providers.TypeQuery, "Batch artist hydration failed, falling back to single reads: %v", err)
		artists = hydrateEach(ctx, page.ids(), e.entities.GetArtist, e.logger)
	}
	return assemble(page, artists, e.logger, "artist"), nil
}

// rankedPage is an unhydrated ranking page.
type rankedPage struct {
	timestamp time.Time
	total     int64
	rows      []rankedRow
	previous  map[int64]int64
}

func (p *rankedPage) ids() []int64 {
	ids := make([]int64, len(p.rows))
	for i, r := range p.rows {
		ids[i] = r.ID
	}
	return ids
}

// rank resolves the window, runs the page query and looks up the page's
// placements at the change offset.
func (e *Engine) rank(ctx context.Context, p *models.RankingsFilterParams, c *filter.Compiled, query rankingQuery) (*rankedPage, error) {
	page := &rankedPage{}
	at, err := e.resolveTimestamp(ctx, p.Timestamp)
	if err != nil || at == nil {
		return page, err
	}
	page.timestamp = *at

	w, err := e.window(ctx, *at, p.TimePeriodOffset)
	if err != nil {
		return page, err
	}
	base := query(w)
	binds := c.With(w.binds()).With(map[string]interface{}{
		"maxEntries": p.MaxEntries,
		"startAt":    p.StartAt,
	}).Binds()

	started := time.Now()
	var rows []rankedRow
	if err := e.db.WithContext(ctx).Raw(pageSQL(base), binds).Scan(&rows).Error; err != nil {
		return page, err
	}
	e.logger.Debugf(providers.TypeQuery, "Ranked %d rows at %s in %s", len(rows), w.current, time.Since(started))

	if len(rows) > 0 {
		page.total = rows[0].Total
	} else if p.StartAt > 0 {
		if err := e.db.WithContext(ctx).Raw(countSQL(base), binds).Scan(&page.total).Error; err != nil {
			return page, err
		}
	}
	page.rows = rows

	page.previous, err = e.previousPlacements(ctx, p, c, query, *at, page.ids())
	return page, err
}

// resolveTimestamp picks the snapshot day to rank: the latest one when ts is
// nil, otherwise the nearest at or after ts, falling back to the nearest
// before it.
func (e *Engine) resolveTimestamp(ctx context.Context, ts *time.Time) (*time.Time, error) {
	if ts == nil {
		return e.views.MostRecentSnapshot(ctx, nil)
	}
	after, err := e.views.SnapshotAtOrAfter(ctx, *ts)
	if err != nil || after != nil {
		return after, err
	}
	return e.views.MostRecentSnapshot(ctx, ts)
}

// window pairs the day with the snapshot offsetDays earlier. The offset is
// left empty when there is no offset or no snapshot that early.
func (e *Engine) window(ctx context.Context, at time.Time, offsetDays int) (window, error) {
	w := window{current: models.FormatDay(at)}
	if offsetDays <= 0 {
		return w, nil
	}
	target := models.AddDays(at, -offsetDays)
	prev, err := e.views.MostRecentSnapshot(ctx, &target)
	if err != nil || prev == nil {
		return w, err
	}
	day := models.FormatDay(*prev)
	w.offset = &day
	return w, nil
}

func emptyResult[T any](page *rankedPage) *models.RankingResult[T] {
	res := &models.RankingResult[T]{Results: []models.RankingItem[T]{}}
	if page != nil {
		res.Timestamp = page.timestamp
		res.TotalCount = page.total
	}
	return res
}

func hydrateEach[T any](ctx context.Context, ids []int64, get func(context.Context, int64) (T, error), logger providers.Logger) map[int64]T {
	out := make(map[int64]T, len(ids))
	for _, id := range ids {
		v, err := get(ctx, id)
		if err != nil {
			logger.Warnf(providers.TypeQuery, "Failed to hydrate %d: %v", id, err)
			continue
		}
		out[id] = v
	}
	return out
}

// assemble pairs ranked rows with their entities. Rows whose entity is
// missing are dropped without adjusting the total.
func assemble[T comparable](page *rankedPage, entities map[int64]T, logger providers.Logger, kind string) *models.RankingResult[T] {
	res := emptyResult[T](page)
	var zero T
	for _, row := range page.rows {
		entity, ok := entities[row.ID]
		if !ok || entity == zero {
			logger.Warnf(providers.TypeQuery, "Skipping %s %d: not found during hydration", kind, row.ID)
			continue
		}
		previous, change := reconcile(row.ID, row.Placement, page.previous)
		res.Results = append(res.Results, models.RankingItem[T]{
			Placement:         row.Placement,
			Change:            change,
			PreviousPlacement: previous,
			Views:             row.Views,
			Entity:            entity,
		})
	}
	return res
}

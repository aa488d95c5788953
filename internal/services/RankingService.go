package services

import (
	"context"
	"time"
	"vocarank/internal/models"
	"vocarank/internal/providers"
	"vocarank/internal/ranking"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"
)

type RankingServiceInterface interface {
	SongRankings(ctx context.Context, p *models.SongRankingsFilterParams) (*models.SongRankingResult, error)
	ArtistRankings(ctx context.Context, p *models.ArtistRankingsFilterParams) (*models.ArtistRankingResult, error)
	HistoricalViews(ctx context.Context, entity models.HistoricalEntity, id int64, rng, period int, ts *time.Time) (*models.HistoricalSeries, error)
	Song(ctx context.Context, id int64, ts *time.Time) (*models.Song, error)
	Artist(ctx context.Context, id int64, ts *time.Time) (*models.Artist, error)
}

// RankingService runs engine queries, sharing one execution between
// concurrent callers that ask the same question.
type RankingService struct {
	engine  ranking.EngineInterface
	metrics providers.MetricsProviderInterface
	logger  providers.Logger
	group   singleflight.Group
}

func NewRankingService(engine ranking.EngineInterface, metrics providers.MetricsProviderInterface, logger providers.Logger) RankingServiceInterface {
	return &RankingService{
		engine:  engine,
		metrics: metrics,
		logger:  logger,
	}
}

func (rs *RankingService) SongRankings(ctx context.Context, p *models.SongRankingsFilterParams) (*models.SongRankingResult, error) {
	return coalesce(ctx, rs, "songs", p, func(ctx context.Context) (*models.SongRankingResult, error) {
		return rs.engine.FilterSongRankings(ctx, p)
	})
}

func (rs *RankingService) ArtistRankings(ctx context.Context, p *models.ArtistRankingsFilterParams) (*models.ArtistRankingResult, error) {
	return coalesce(ctx, rs, "artists", p, func(ctx context.Context) (*models.ArtistRankingResult, error) {
		return rs.engine.FilterArtistRankings(ctx, p)
	})
}

type historyKey struct {
	Entity    models.HistoricalEntity
	ID        int64
	Range     int
	Period    int
	Timestamp *time.Time
}

func (rs *RankingService) HistoricalViews(ctx context.Context, entity models.HistoricalEntity, id int64, rng, period int, ts *time.Time) (*models.HistoricalSeries, error) {
	key := historyKey{Entity: entity, ID: id, Range: rng, Period: period, Timestamp: ts}
	return coalesce(ctx, rs, "history", key, func(ctx context.Context) (*models.HistoricalSeries, error) {
		return rs.engine.GetHistoricalViews(ctx, entity, id, rng, period, ts)
	})
}

type entityKey struct {
	ID        int64
	Timestamp *time.Time
}

func (rs *RankingService) Song(ctx context.Context, id int64, ts *time.Time) (*models.Song, error) {
	return coalesce(ctx, rs, "song", entityKey{ID: id, Timestamp: ts}, func(ctx context.Context) (*models.Song, error) {
		return rs.engine.GetSong(ctx, id, ts)
	})
}

func (rs *RankingService) Artist(ctx context.Context, id int64, ts *time.Time) (*models.Artist, error) {
	return coalesce(ctx, rs, "artist", entityKey{ID: id, Timestamp: ts}, func(ctx context.Context) (*models.Artist, error) {
		return rs.engine.GetArtist(ctx, id, ts)
	})
}

// coalesce runs fn once per distinct (kind, params) among concurrent callers
// and records how long the query took.
func coalesce[T any](ctx context.Context, rs *RankingService, kind string, params any, fn func(context.Context) (T, error)) (T, error) {
	started := time.Now()
	defer func() { rs.metrics.ObserveRankingQuery(kind, time.Since(started)) }()

	encoded, err := json.Marshal(params)
	if err != nil {
		rs.logger.Warnf(providers.TypeQuery, "Cannot key %s query, running it alone: %v", kind, err)
		return fn(ctx)
	}

	// the shared call outlives any single caller
	shared := context.WithoutCancel(ctx)
	ch := rs.group.DoChan(kind+":"+string(encoded), func() (interface{}, error) {
		return fn(shared)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			rs.logger.Debugf(providers.TypeQuery, "Shared %s query result", kind)
		}
		return res.Val.(T), nil
	}
}

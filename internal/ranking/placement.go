package ranking

import (
	"context"
	"time"
	"vocarank/internal/filter"
	"vocarank/internal/models"
)

// GetSong returns the song with its views at the most recent snapshot at or
// before ts and its placements. It returns nil when the song does not exist.
func (e *Engine) GetSong(ctx context.Context, id int64, ts *time.Time) (*models.Song, error) {
	song, err := e.entities.GetSong(ctx, id)
	if err != nil || song == nil {
		return song, err
	}
	at, err := e.views.MostRecentSnapshot(ctx, ts)
	if err != nil || at == nil {
		return song, err
	}

	breakdown, err := e.views.ReadBreakdown(ctx, id, *at)
	if err != nil {
		return nil, err
	}
	song.Views = &models.EntityViews{Total: breakdown.Total(), Breakdown: breakdown}

	song.Placement, err = e.SongPlacement(ctx, song, at)
	if err != nil {
		return nil, err
	}
	return song, nil
}

// GetArtist returns the artist with the total views of its credited songs at
// the most recent snapshot at or before ts.
func (e *Engine) GetArtist(ctx context.Context, id int64, ts *time.Time) (*models.Artist, error) {
	artist, err := e.entities.GetArtist(ctx, id)
	if err != nil || artist == nil {
		return artist, err
	}
	at, err := e.views.MostRecentSnapshot(ctx, ts)
	if err != nil || at == nil {
		return artist, err
	}

	totals, err := e.views.Totals(ctx, models.HistoricalEntityArtist, id, []time.Time{*at})
	if err != nil {
		return nil, err
	}
	artist.Views = &models.EntityViews{Total: totals[models.FormatDay(*at)]}
	return artist, nil
}

// SongPlacement ranks the song by cumulative views among all songs and among
// songs published the same year. A placement of 0 means the song has no
// views on that day.
func (e *Engine) SongPlacement(ctx context.Context, song *models.Song, ts *time.Time) (*models.SongPlacement, error) {
	at, err := e.views.MostRecentSnapshot(ctx, ts)
	if err != nil || at == nil {
		return nil, err
	}

	placement := &models.SongPlacement{}
	placement.AllTime, err = e.placementOf(ctx, &models.SongRankingsFilterParams{}, *at, song.ID)
	if err != nil {
		return nil, err
	}
	if song.PublishDate.IsZero() {
		return placement, nil
	}

	year := &models.SongRankingsFilterParams{}
	year.PublishDate = &models.FuzzyDate{Year: song.PublishDate.Year()}
	placement.ReleaseYear, err = e.placementOf(ctx, year, *at, song.ID)
	if err != nil {
		return nil, err
	}
	return placement, nil
}

func (e *Engine) placementOf(ctx context.Context, p *models.SongRankingsFilterParams, at time.Time, id int64) (int64, error) {
	c := filter.CompileSong(p, nil)
	w := window{current: models.FormatDay(at)}
	binds := c.With(w.binds()).Binds()
	sql := placementsSQL(songRankingBase(c, false, p.OrderBy, p.Direction), []int64{id}, binds)

	var rows []placementRow
	if err := e.db.WithContext(ctx).Raw(sql, binds).Scan(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Placement, nil
}

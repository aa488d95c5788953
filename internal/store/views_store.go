package store

import (
	"context"
	"database/sql"
	"time"
	"vocarank/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ViewsStoreInterface interface {
	WriteBreakdown(ctx context.Context, songID int64, day time.Time, breakdown models.ViewsBreakdown) error
	ReadBreakdown(ctx context.Context, songID int64, day time.Time) (models.ViewsBreakdown, error)
	CarryForward(ctx context.Context, songID int64, from, to time.Time) error
	MarkDormant(ctx context.Context, songID int64, dormant bool) error

	MostRecentSnapshot(ctx context.Context, ts *time.Time) (*time.Time, error)
	SnapshotAtOrAfter(ctx context.Context, ts time.Time) (*time.Time, error)
	SnapshotExists(ctx context.Context, day time.Time) (bool, error)
	RecordSnapshot(ctx context.Context, day time.Time) error

	Totals(ctx context.Context, entity models.HistoricalEntity, id int64, days []time.Time) (map[string]int64, error)
}

type ViewsStore struct {
	db *gorm.DB
}

func NewViewsStore(db *gorm.DB) ViewsStoreInterface {
	return &ViewsStore{db: db}
}

// WriteBreakdown replaces the song's breakdown for the day. Writing the same
// breakdown twice leaves the store unchanged.
func (s *ViewsStore) WriteBreakdown(ctx context.Context, songID int64, day time.Time, breakdown models.ViewsBreakdown) error {
	key := models.FormatDay(day)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeBreakdown(tx, songID, key, breakdown)
	})
}

func writeBreakdown(tx *gorm.DB, songID int64, key string, breakdown models.ViewsBreakdown) error {
	if err := tx.Where("song_id = ? AND snapshot_at = ?", songID, key).Delete(&viewsBreakdownRecord{}).Error; err != nil {
		return err
	}
	var rows []viewsBreakdownRecord
	for source, videos := range breakdown {
		for _, v := range videos {
			rows = append(rows, viewsBreakdownRecord{
				SongID:     songID,
				SnapshotAt: key,
				ViewType:   int(source),
				VideoID:    v.VideoID,
				Views:      v.Views,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "song_id"}, {Name: "snapshot_at"}, {Name: "view_type"}, {Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"views"}),
	}).Create(&rows).Error
}

func (s *ViewsStore) ReadBreakdown(ctx context.Context, songID int64, day time.Time) (models.ViewsBreakdown, error) {
	return readBreakdown(s.db.WithContext(ctx), songID, models.FormatDay(day))
}

func readBreakdown(db *gorm.DB, songID int64, key string) (models.ViewsBreakdown, error) {
	var rows []viewsBreakdownRecord
	err := db.Where("song_id = ? AND snapshot_at = ?", songID, key).
		Order("view_type, video_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	breakdown := make(models.ViewsBreakdown)
	for _, r := range rows {
		source := models.SourceType(r.ViewType)
		breakdown[source] = append(breakdown[source], models.VideoViews{VideoID: r.VideoID, Views: r.Views})
	}
	return breakdown, nil
}

// CarryForward copies a dormant song's breakdown from one day to another.
func (s *ViewsStore) CarryForward(ctx context.Context, songID int64, from, to time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		breakdown, err := readBreakdown(tx, songID, models.FormatDay(from))
		if err != nil {
			return err
		}
		return writeBreakdown(tx, songID, models.FormatDay(to), breakdown)
	})
}

func (s *ViewsStore) MarkDormant(ctx context.Context, songID int64, dormant bool) error {
	return s.db.WithContext(ctx).Model(&songRecord{}).Where("id = ?", songID).Update("dormant", dormant).Error
}

// MostRecentSnapshot returns the latest completed day at or before ts, or
// before now when ts is nil. It returns nil when there is none.
func (s *ViewsStore) MostRecentSnapshot(ctx context.Context, ts *time.Time) (*time.Time, error) {
	bound := time.Now()
	if ts != nil {
		bound = *ts
	}
	return s.snapshotBound(ctx, "MAX(snapshot_at)", "snapshot_at <= ?", models.FormatDay(bound))
}

// SnapshotAtOrAfter returns the earliest completed day at or after ts.
func (s *ViewsStore) SnapshotAtOrAfter(ctx context.Context, ts time.Time) (*time.Time, error) {
	return s.snapshotBound(ctx, "MIN(snapshot_at)", "snapshot_at >= ?", models.FormatDay(ts))
}

func (s *ViewsStore) snapshotBound(ctx context.Context, agg, cond, key string) (*time.Time, error) {
	var day sql.NullString
	row := s.db.WithContext(ctx).Model(&viewsSnapshotRecord{}).Select(agg).Where(cond, key).Row()
	if err := row.Scan(&day); err != nil {
		return nil, err
	}
	if !day.Valid {
		return nil, nil
	}
	t, err := models.ParseDay(day.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *ViewsStore) SnapshotExists(ctx context.Context, day time.Time) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&viewsSnapshotRecord{}).
		Where("snapshot_at = ?", models.FormatDay(day)).
		Count(&n).Error
	return n > 0, err
}

// RecordSnapshot marks the day as complete and visible to rankings.
func (s *ViewsStore) RecordSnapshot(ctx context.Context, day time.Time) error {
	rec := viewsSnapshotRecord{SnapshotAt: models.FormatDay(day), UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "snapshot_at"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&rec).Error
}

// Totals sums an entity's views on each of the given days. Days without
// data are absent from the result.
func (s *ViewsStore) Totals(ctx context.Context, entity models.HistoricalEntity, id int64, days []time.Time) (map[string]int64, error) {
	out := make(map[string]int64, len(days))
	if len(days) == 0 {
		return out, nil
	}
	keys := make([]string, 0, len(days))
	for _, d := range days {
		keys = append(keys, models.FormatDay(d))
	}

	q := s.db.WithContext(ctx).Model(&viewsBreakdownRecord{}).
		Select("views_breakdowns.snapshot_at AS day, CAST(SUM(views_breakdowns.views) AS BIGINT) AS total").
		Where("views_breakdowns.snapshot_at IN ?", keys).
		Group("views_breakdowns.snapshot_at")
	if entity == models.HistoricalEntityArtist {
		q = q.Joins("JOIN song_artists ON song_artists.song_id = views_breakdowns.song_id").
			Where("song_artists.artist_id = ?", id)
	} else {
		q = q.Where("views_breakdowns.song_id = ?", id)
	}

	var rows []struct {
		Day   string
		Total int64
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.Day] = r.Total
	}
	return out, nil
}

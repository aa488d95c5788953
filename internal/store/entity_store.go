package store

import (
	"context"
	"sync"
	"time"
	"vocarank/internal/models"
	"vocarank/internal/providers"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EntityStoreInterface interface {
	GetSong(ctx context.Context, id int64) (*models.Song, error)
	GetSongs(ctx context.Context, ids []int64) (map[int64]*models.Song, error)
	UpsertSong(ctx context.Context, song *models.Song) error
	UpdateSong(ctx context.Context, id int64, patch models.SongPatch) (*models.Song, error)
	DeleteSong(ctx context.Context, id int64) error
	SongExists(ctx context.Context, id int64) (bool, error)

	GetArtist(ctx context.Context, id int64) (*models.Artist, error)
	GetArtists(ctx context.Context, ids []int64) (map[int64]*models.Artist, error)
	UpsertArtist(ctx context.Context, artist *models.Artist) error
	UpdateArtist(ctx context.Context, id int64, patch models.ArtistPatch) (*models.Artist, error)
	DeleteArtist(ctx context.Context, id int64) error
	ArtistExists(ctx context.Context, id int64) (bool, error)

	ArtistTree() *ArtistTree
	ListRefreshTargets(ctx context.Context) ([]models.RefreshTarget, error)
}

type EntityStore struct {
	db     *gorm.DB
	logger providers.Logger
	tree   *ArtistTree
	// artistMu serializes hierarchy changes so the tree and root_artist_id agree
	artistMu sync.Mutex
}

// NewEntityStore loads the artist forest from the database.
func NewEntityStore(db *gorm.DB, logger providers.Logger) (EntityStoreInterface, error) {
	s := &EntityStore{db: db, logger: logger, tree: NewArtistTree()}
	if err := s.loadTree(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *EntityStore) loadTree(ctx context.Context) error {
	var links []struct {
		ID           int64
		BaseArtistID *int64
	}
	if err := s.db.WithContext(ctx).Model(&artistRecord{}).Select("id, base_artist_id").Order("id").Scan(&links).Error; err != nil {
		return err
	}
	for _, l := range links {
		if err := s.tree.Set(l.ID, l.BaseArtistID); err != nil {
			s.logger.Warnf(providers.TypeApp, "Artist %d: %v, treating it as a root", l.ID, err)
			_ = s.tree.Set(l.ID, nil)
		}
	}
	s.logger.Infof(providers.TypeApp, "Loaded %d artists into the hierarchy", s.tree.Len())
	return nil
}

func (s *EntityStore) ArtistTree() *ArtistTree {
	return s.tree
}

func (s *EntityStore) GetSong(ctx context.Context, id int64) (*models.Song, error) {
	songs, err := s.GetSongs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	return songs[id], nil
}

// GetSongs hydrates the songs that exist among ids. Missing ids are absent
// from the result.
func (s *EntityStore) GetSongs(ctx context.Context, ids []int64) (map[int64]*models.Song, error) {
	out := make(map[int64]*models.Song, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	db := s.db.WithContext(ctx)

	var recs []songRecord
	if err := db.Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return out, nil
	}
	found := make([]int64, 0, len(recs))
	for i := range recs {
		out[recs[i].ID] = recs[i].toModel()
		found = append(found, recs[i].ID)
	}

	var names []songNameRecord
	if err := db.Where("song_id IN ?", found).Find(&names).Error; err != nil {
		return nil, err
	}
	for _, n := range names {
		out[n.SongID].Names[models.NameType(n.NameType)] = n.Name
	}

	var credits []songArtistRecord
	if err := db.Where("song_id IN ?", found).Order("category, artist_id").Find(&credits).Error; err != nil {
		return nil, err
	}
	for _, c := range credits {
		song := out[c.SongID]
		song.Artists = append(song.Artists, models.SongArtist{ArtistID: c.ArtistID, Category: models.ArtistCategory(c.Category)})
	}

	var videos []songVideoRecord
	if err := db.Where("song_id IN ?", found).Order("source_type, video_id").Find(&videos).Error; err != nil {
		return nil, err
	}
	for _, v := range videos {
		song := out[v.SongID]
		source := models.SourceType(v.SourceType)
		song.VideoIDs[source] = append(song.VideoIDs[source], v.VideoID)
	}
	return out, nil
}

// UpsertSong inserts the song or replaces every stored field of it.
func (s *EntityStore) UpsertSong(ctx context.Context, song *models.Song) error {
	if err := song.ValidateArtists(); err != nil {
		return err
	}
	if song.LastUpdated.IsZero() {
		song.LastUpdated = time.Now().UTC()
	}
	rec := newSongRecord(song)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
			return err
		}
		if err := replaceSongNames(tx, song.ID, song.Names); err != nil {
			return err
		}
		if err := replaceSongArtists(tx, song.ID, song.Artists); err != nil {
			return err
		}
		return replaceSongVideos(tx, song.ID, song.VideoIDs)
	})
}

// UpdateSong applies the non-nil fields of patch. It returns nil when the
// song does not exist.
func (s *EntityStore) UpdateSong(ctx context.Context, id int64, patch models.SongPatch) (*models.Song, error) {
	exists, err := s.SongExists(ctx, id)
	if err != nil || !exists {
		return nil, err
	}
	if patch.Artists != nil {
		check := &models.Song{Entity: models.Entity{ID: id}, Artists: patch.Artists}
		if err := check.ValidateArtists(); err != nil {
			return nil, err
		}
	}

	cols := map[string]interface{}{"last_updated": models.FormatTimestamp(time.Now())}
	if patch.PublishDate != nil {
		cols["publish_date"] = models.FormatTimestamp(*patch.PublishDate)
	}
	if patch.AdditionDate != nil {
		cols["addition_date"] = models.FormatTimestamp(*patch.AdditionDate)
	}
	if patch.AverageColor != nil {
		cols["average_color"] = *patch.AverageColor
	}
	if patch.DarkColor != nil {
		cols["dark_color"] = *patch.DarkColor
	}
	if patch.LightColor != nil {
		cols["light_color"] = *patch.LightColor
	}
	if patch.Type != nil {
		cols["song_type"] = int(*patch.Type)
	}
	if patch.Thumbnail != nil {
		cols["thumbnail"] = *patch.Thumbnail
	}
	if patch.MaxResThumbnail != nil {
		cols["max_res_thumbnail"] = *patch.MaxResThumbnail
	}
	if patch.ThumbnailType != nil {
		cols["thumbnail_type"] = int(*patch.ThumbnailType)
	}
	if patch.Dormant != nil {
		cols["dormant"] = *patch.Dormant
	}
	if patch.LastRefreshed != nil {
		cols["last_refreshed"] = models.FormatTimestamp(*patch.LastRefreshed)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&songRecord{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return err
		}
		if len(patch.Names) > 0 {
			if err := upsertNames(tx, songNameRows(id, patch.Names), "song_id"); err != nil {
				return err
			}
		}
		if patch.Artists != nil {
			if err := replaceSongArtists(tx, id, patch.Artists); err != nil {
				return err
			}
		}
		if patch.VideoIDs != nil {
			return replaceSongVideos(tx, id, patch.VideoIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetSong(ctx, id)
}

func (s *EntityStore) DeleteSong(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&songNameRecord{}, &songArtistRecord{}, &songVideoRecord{}, &viewsBreakdownRecord{}} {
			if err := tx.Where("song_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&songRecord{}).Error
	})
}

func (s *EntityStore) SongExists(ctx context.Context, id int64) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&songRecord{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (s *EntityStore) GetArtist(ctx context.Context, id int64) (*models.Artist, error) {
	artists, err := s.GetArtists(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	return artists[id], nil
}

func (s *EntityStore) GetArtists(ctx context.Context, ids []int64) (map[int64]*models.Artist, error) {
	out := make(map[int64]*models.Artist, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	db := s.db.WithContext(ctx)

	var recs []artistRecord
	if err := db.Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return out, nil
	}
	found := make([]int64, 0, len(recs))
	for i := range recs {
		out[recs[i].ID] = recs[i].toModel()
		found = append(found, recs[i].ID)
	}

	var names []artistNameRecord
	if err := db.Where("artist_id IN ?", found).Find(&names).Error; err != nil {
		return nil, err
	}
	for _, n := range names {
		out[n.ArtistID].Names[models.NameType(n.NameType)] = n.Name
	}

	var thumbs []artistThumbnailRecord
	if err := db.Where("artist_id IN ?", found).Find(&thumbs).Error; err != nil {
		return nil, err
	}
	for _, th := range thumbs {
		out[th.ArtistID].Thumbnails[models.ArtistThumbnailType(th.ThumbnailType)] = th.URL
	}
	return out, nil
}

// UpsertArtist inserts or replaces the artist and re-roots its subtree. A
// base artist that would close a cycle is rejected with ErrArtistCycle.
func (s *EntityStore) UpsertArtist(ctx context.Context, artist *models.Artist) error {
	s.artistMu.Lock()
	defer s.artistMu.Unlock()

	if err := s.tree.CheckSet(artist.ID, artist.BaseArtistID); err != nil {
		return err
	}
	root := s.rootUnder(artist.ID, artist.BaseArtistID)
	rec := newArtistRecord(artist, root)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
			return err
		}
		if err := tx.Where("artist_id = ?", artist.ID).Delete(&artistNameRecord{}).Error; err != nil {
			return err
		}
		if err := upsertNames(tx, artistNameRows(artist.ID, artist.Names), "artist_id"); err != nil {
			return err
		}
		if err := tx.Where("artist_id = ?", artist.ID).Delete(&artistThumbnailRecord{}).Error; err != nil {
			return err
		}
		if err := upsertThumbnails(tx, artist.ID, artist.Thumbnails); err != nil {
			return err
		}
		return s.setRoot(tx, s.tree.Subtree(artist.ID), root)
	})
	if err != nil {
		return err
	}
	return s.tree.Set(artist.ID, artist.BaseArtistID)
}

func (s *EntityStore) UpdateArtist(ctx context.Context, id int64, patch models.ArtistPatch) (*models.Artist, error) {
	s.artistMu.Lock()
	defer s.artistMu.Unlock()

	var rec artistRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rec).Error; err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}

	base := rec.BaseArtistID
	rebase := patch.ClearBaseArtist || patch.BaseArtistID != nil
	if patch.ClearBaseArtist {
		base = nil
	} else if patch.BaseArtistID != nil {
		base = patch.BaseArtistID
	}
	if rebase {
		if err := s.tree.CheckSet(id, base); err != nil {
			return nil, err
		}
	}

	cols := map[string]interface{}{}
	if patch.PublishDate != nil {
		cols["publish_date"] = models.FormatTimestamp(*patch.PublishDate)
	}
	if patch.AdditionDate != nil {
		cols["addition_date"] = models.FormatTimestamp(*patch.AdditionDate)
	}
	if patch.AverageColor != nil {
		cols["average_color"] = *patch.AverageColor
	}
	if patch.DarkColor != nil {
		cols["dark_color"] = *patch.DarkColor
	}
	if patch.LightColor != nil {
		cols["light_color"] = *patch.LightColor
	}
	if patch.Type != nil {
		cols["artist_type"] = int(*patch.Type)
	}
	var root int64
	if rebase {
		cols["base_artist_id"] = base
		root = s.rootUnder(id, base)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(cols) > 0 {
			if err := tx.Model(&artistRecord{}).Where("id = ?", id).Updates(cols).Error; err != nil {
				return err
			}
		}
		if len(patch.Names) > 0 {
			if err := upsertNames(tx, artistNameRows(id, patch.Names), "artist_id"); err != nil {
				return err
			}
		}
		if len(patch.Thumbnails) > 0 {
			if err := upsertThumbnails(tx, id, patch.Thumbnails); err != nil {
				return err
			}
		}
		if rebase {
			return s.setRoot(tx, s.tree.Subtree(id), root)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rebase {
		if err := s.tree.Set(id, base); err != nil {
			return nil, err
		}
	}
	return s.GetArtist(ctx, id)
}

// DeleteArtist removes the artist and its credits. Artists derived from it
// lose their base and become roots of their own subtrees.
func (s *EntityStore) DeleteArtist(ctx context.Context, id int64) error {
	s.artistMu.Lock()
	defer s.artistMu.Unlock()

	var children []int64
	if err := s.db.WithContext(ctx).Model(&artistRecord{}).Where("base_artist_id = ?", id).Pluck("id", &children).Error; err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&artistNameRecord{}, &artistThumbnailRecord{}, &songArtistRecord{}} {
			if err := tx.Where("artist_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("id = ?", id).Delete(&artistRecord{}).Error; err != nil {
			return err
		}
		if len(children) == 0 {
			return nil
		}
		if err := tx.Model(&artistRecord{}).Where("id IN ?", children).Update("base_artist_id", nil).Error; err != nil {
			return err
		}
		for _, child := range children {
			if err := s.setRoot(tx, s.tree.Subtree(child), child); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.tree.Remove(id)
	return nil
}

func (s *EntityStore) ArtistExists(ctx context.Context, id int64) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&artistRecord{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// ListRefreshTargets returns every song with its video ids, ordered by id.
func (s *EntityStore) ListRefreshTargets(ctx context.Context) ([]models.RefreshTarget, error) {
	db := s.db.WithContext(ctx)

	var recs []songRecord
	if err := db.Select("id, publish_date, dormant").Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	var videos []songVideoRecord
	if err := db.Order("song_id, source_type, video_id").Find(&videos).Error; err != nil {
		return nil, err
	}
	bySong := make(map[int64]map[models.SourceType][]string)
	for _, v := range videos {
		m, ok := bySong[v.SongID]
		if !ok {
			m = make(map[models.SourceType][]string)
			bySong[v.SongID] = m
		}
		m[models.SourceType(v.SourceType)] = append(m[models.SourceType(v.SourceType)], v.VideoID)
	}

	targets := make([]models.RefreshTarget, 0, len(recs))
	for _, r := range recs {
		targets = append(targets, models.RefreshTarget{
			SongID:      r.ID,
			PublishDate: models.ParseTimestamp(r.PublishDate),
			Dormant:     r.Dormant,
			VideoIDs:    bySong[r.ID],
		})
	}
	return targets, nil
}

func (s *EntityStore) rootUnder(id int64, base *int64) int64 {
	if base == nil {
		return id
	}
	return s.tree.Root(*base)
}

func (s *EntityStore) setRoot(tx *gorm.DB, ids []int64, root int64) error {
	return tx.Model(&artistRecord{}).Where("id IN ?", ids).Update("root_artist_id", root).Error
}

func replaceSongNames(tx *gorm.DB, id int64, names map[models.NameType]string) error {
	if err := tx.Where("song_id = ?", id).Delete(&songNameRecord{}).Error; err != nil {
		return err
	}
	return upsertNames(tx, songNameRows(id, names), "song_id")
}

func replaceSongArtists(tx *gorm.DB, id int64, artists []models.SongArtist) error {
	if err := tx.Where("song_id = ?", id).Delete(&songArtistRecord{}).Error; err != nil {
		return err
	}
	seen := make(map[int64]struct{}, len(artists))
	rows := make([]songArtistRecord, 0, len(artists))
	for _, a := range artists {
		if _, dup := seen[a.ArtistID]; dup {
			continue
		}
		seen[a.ArtistID] = struct{}{}
		rows = append(rows, songArtistRecord{SongID: id, ArtistID: a.ArtistID, Category: int(a.Category)})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func replaceSongVideos(tx *gorm.DB, id int64, videos map[models.SourceType][]string) error {
	if err := tx.Where("song_id = ?", id).Delete(&songVideoRecord{}).Error; err != nil {
		return err
	}
	var rows []songVideoRecord
	for source, ids := range videos {
		for _, v := range ids {
			rows = append(rows, songVideoRecord{SongID: id, SourceType: int(source), VideoID: v})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func songNameRows(id int64, names map[models.NameType]string) []songNameRecord {
	rows := make([]songNameRecord, 0, len(names))
	for t, n := range names {
		rows = append(rows, songNameRecord{SongID: id, NameType: int(t), Name: n})
	}
	return rows
}

func artistNameRows(id int64, names map[models.NameType]string) []artistNameRecord {
	rows := make([]artistNameRecord, 0, len(names))
	for t, n := range names {
		rows = append(rows, artistNameRecord{ArtistID: id, NameType: int(t), Name: n})
	}
	return rows
}

func upsertNames[T songNameRecord | artistNameRecord](tx *gorm.DB, rows []T, owner string) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: owner}, {Name: "name_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(&rows).Error
}

func upsertThumbnails(tx *gorm.DB, id int64, thumbs map[models.ArtistThumbnailType]string) error {
	if len(thumbs) == 0 {
		return nil
	}
	rows := make([]artistThumbnailRecord, 0, len(thumbs))
	for t, url := range thumbs {
		rows = append(rows, artistThumbnailRecord{ArtistID: id, ThumbnailType: int(t), URL: url})
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "artist_id"}, {Name: "thumbnail_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"url"}),
	}).Create(&rows).Error
}

func newSongRecord(s *models.Song) songRecord {
	rec := songRecord{
		ID:              s.ID,
		SongType:        int(s.Type),
		PublishDate:     models.FormatTimestamp(s.PublishDate),
		AdditionDate:    models.FormatTimestamp(s.AdditionDate),
		Thumbnail:       s.Thumbnail,
		MaxResThumbnail: s.MaxResThumbnail,
		ThumbnailType:   int(s.ThumbnailType),
		AverageColor:    s.AverageColor,
		DarkColor:       s.DarkColor,
		LightColor:      s.LightColor,
		Dormant:         s.Dormant,
		LastUpdated:     models.FormatTimestamp(s.LastUpdated),
	}
	if s.LastRefreshed != nil {
		v := models.FormatTimestamp(*s.LastRefreshed)
		rec.LastRefreshed = &v
	}
	return rec
}

func (r *songRecord) toModel() *models.Song {
	song := &models.Song{
		Entity: models.Entity{
			ID:           r.ID,
			PublishDate:  models.ParseTimestamp(r.PublishDate),
			AdditionDate: models.ParseTimestamp(r.AdditionDate),
			Names:        make(map[models.NameType]string),
			AverageColor: r.AverageColor,
			DarkColor:    r.DarkColor,
			LightColor:   r.LightColor,
		},
		Type:            models.SongType(r.SongType),
		Thumbnail:       r.Thumbnail,
		MaxResThumbnail: r.MaxResThumbnail,
		ThumbnailType:   models.SourceType(r.ThumbnailType),
		VideoIDs:        make(map[models.SourceType][]string),
		Dormant:         r.Dormant,
		LastUpdated:     models.ParseTimestamp(r.LastUpdated),
	}
	if r.LastRefreshed != nil {
		t := models.ParseTimestamp(*r.LastRefreshed)
		song.LastRefreshed = &t
	}
	return song
}

func newArtistRecord(a *models.Artist, root int64) artistRecord {
	return artistRecord{
		ID:           a.ID,
		ArtistType:   int(a.Type),
		PublishDate:  models.FormatTimestamp(a.PublishDate),
		AdditionDate: models.FormatTimestamp(a.AdditionDate),
		AverageColor: a.AverageColor,
		DarkColor:    a.DarkColor,
		LightColor:   a.LightColor,
		BaseArtistID: a.BaseArtistID,
		RootArtistID: root,
	}
}

func (r *artistRecord) toModel() *models.Artist {
	return &models.Artist{
		Entity: models.Entity{
			ID:           r.ID,
			PublishDate:  models.ParseTimestamp(r.PublishDate),
			AdditionDate: models.ParseTimestamp(r.AdditionDate),
			Names:        make(map[models.NameType]string),
			AverageColor: r.AverageColor,
			DarkColor:    r.DarkColor,
			LightColor:   r.LightColor,
		},
		Type:         models.ArtistType(r.ArtistType),
		Thumbnails:   make(map[models.ArtistThumbnailType]string),
		BaseArtistID: r.BaseArtistID,
	}
}

package store

import (
	"context"
	"testing"
	"time"
	"vocarank/internal/models"
	"vocarank/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.NewTestDB(t)
	require.NoError(t, AutoMigrate(context.Background(), db))
	return db
}

func newTestEntityStore(t *testing.T, db *gorm.DB) *EntityStore {
	t.Helper()
	s, err := NewEntityStore(db, &testutil.MockLogger{})
	require.NoError(t, err)
	return s.(*EntityStore)
}

func testSong(id int64, artists ...models.SongArtist) *models.Song {
	return &models.Song{
		Entity: models.Entity{
			ID:           id,
			PublishDate:  time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC),
			AdditionDate: time.Date(2020, 5, 2, 0, 0, 0, 0, time.UTC),
			Names:        map[models.NameType]string{models.NameTypeOriginal: "song"},
		},
		Type:     models.SongTypeOriginal,
		Artists:  artists,
		VideoIDs: map[models.SourceType][]string{models.SourceTypeYouTube: {"yt1"}},
	}
}

func testArtist(id int64, base *int64) *models.Artist {
	return &models.Artist{
		Entity: models.Entity{
			ID:    id,
			Names: map[models.NameType]string{models.NameTypeOriginal: "artist"},
		},
		Type:         models.ArtistTypeVocaloid,
		Thumbnails:   map[models.ArtistThumbnailType]string{models.ArtistThumbnailTiny: "tiny.png"},
		BaseArtistID: base,
	}
}

func rootOf(t *testing.T, db *gorm.DB, id int64) int64 {
	t.Helper()
	var rec artistRecord
	require.NoError(t, db.Where("id = ?", id).First(&rec).Error)
	return rec.RootArtistID
}

func TestEntityStore_SongRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestEntityStore(t, newTestDB(t))

	song := testSong(1,
		models.SongArtist{ArtistID: 10, Category: models.ArtistCategoryVocalist},
		models.SongArtist{ArtistID: 20, Category: models.ArtistCategoryProducer},
	)
	song.Names[models.NameTypeEnglish] = "english"
	require.NoError(t, s.UpsertSong(ctx, song))

	got, err := s.GetSong(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, song.PublishDate, got.PublishDate)
	assert.Equal(t, "english", got.Name(models.NameTypeEnglish))
	assert.Equal(t, "song", got.Name(models.NameTypeRomaji))
	assert.Equal(t, []int64{10}, got.ArtistIDs(models.ArtistCategoryVocalist))
	assert.Equal(t, []string{"yt1"}, got.VideoIDs[models.SourceTypeYouTube])

	exists, err := s.SongExists(ctx, 1)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEntityStore_GetMissingSong(t *testing.T) {
	s := newTestEntityStore(t, newTestDB(t))
	got, err := s.GetSong(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEntityStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestEntityStore(t, newTestDB(t))

	require.NoError(t, s.UpsertSong(ctx, testSong(1, models.SongArtist{ArtistID: 10})))
	replacement := testSong(2)
	replacement.ID = 1
	replacement.Type = models.SongTypeCover
	replacement.VideoIDs = map[models.SourceType][]string{models.SourceTypeNiconico: {"sm9"}}
	require.NoError(t, s.UpsertSong(ctx, replacement))

	got, err := s.GetSong(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SongTypeCover, got.Type)
	assert.Empty(t, got.Artists)
	assert.Equal(t, map[models.SourceType][]string{models.SourceTypeNiconico: {"sm9"}}, got.VideoIDs)
}

func TestEntityStore_RejectsArtistInTwoCategories(t *testing.T) {
	s := newTestEntityStore(t, newTestDB(t))
	song := testSong(1,
		models.SongArtist{ArtistID: 10, Category: models.ArtistCategoryVocalist},
		models.SongArtist{ArtistID: 10, Category: models.ArtistCategoryProducer},
	)
	assert.Error(t, s.UpsertSong(context.Background(), song))
}

func TestEntityStore_UpdateSongPartial(t *testing.T) {
	ctx := context.Background()
	s := newTestEntityStore(t, newTestDB(t))
	require.NoError(t, s.UpsertSong(ctx, testSong(1, models.SongArtist{ArtistID: 10})))

	dormant := true
	thumb := "new.jpg"
	got, err := s.UpdateSong(ctx, 1, models.SongPatch{
		Dormant:   &dormant,
		Thumbnail: &thumb,
		Names:     map[models.NameType]string{models.NameTypeJapanese: "歌"},
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Dormant)
	assert.Equal(t, "new.jpg", got.Thumbnail)
	assert.Equal(t, "song", got.Names[models.NameTypeOriginal])
	assert.Equal(t, "歌", got.Names[models.NameTypeJapanese])
	assert.Equal(t, []int64{10}, got.ArtistIDs(models.ArtistCategoryVocalist))
	assert.Equal(t, models.SongTypeOriginal, got.Type)

	missing, err := s.UpdateSong(ctx, 2, models.SongPatch{Dormant: &dormant})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEntityStore_DeleteSong(t *testing.T) {
	ctx := context.Background()
	s := newTestEntityStore(t, newTestDB(t))
	require.NoError(t, s.UpsertSong(ctx, testSong(1, models.SongArtist{ArtistID: 10})))

	require.NoError(t, s.DeleteSong(ctx, 1))
	exists, err := s.SongExists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEntityStore_ArtistHierarchyRoots(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := newTestEntityStore(t, db)

	require.NoError(t, s.UpsertArtist(ctx, testArtist(1, nil)))
	require.NoError(t, s.UpsertArtist(ctx, testArtist(2, ptr[int64](1))))
	require.NoError(t, s.UpsertArtist(ctx, testArtist(3, ptr[int64](2))))

	assert.Equal(t, int64(1), rootOf(t, db, 3))
	assert.Equal(t, []int64{2, 3}, s.ArtistTree().Descendants(1))

	err := s.UpsertArtist(ctx, testArtist(1, ptr[int64](3)))
	assert.ErrorIs(t, err, ErrArtistCycle)
	assert.Equal(t, int64(1), rootOf(t, db, 1))

	// moving 2 under a new root re-roots its whole subtree
	require.NoError(t, s.UpsertArtist(ctx, testArtist(5, nil)))
	got, err := s.UpdateArtist(ctx, 2, models.ArtistPatch{BaseArtistID: ptr[int64](5)})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(5), *got.BaseArtistID)
	assert.Equal(t, int64(5), rootOf(t, db, 2))
	assert.Equal(t, int64(5), rootOf(t, db, 3))
	assert.Equal(t, "tiny.png", got.Thumbnails[models.ArtistThumbnailTiny])
}

func TestEntityStore_ReloadsTree(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := newTestEntityStore(t, db)
	require.NoError(t, s.UpsertArtist(ctx, testArtist(1, nil)))
	require.NoError(t, s.UpsertArtist(ctx, testArtist(2, ptr[int64](1))))

	reloaded := newTestEntityStore(t, db)
	assert.Equal(t, []int64{2}, reloaded.ArtistTree().Descendants(1))
}

func TestEntityStore_DeleteArtistOrphansChildren(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := newTestEntityStore(t, db)
	require.NoError(t, s.UpsertArtist(ctx, testArtist(1, nil)))
	require.NoError(t, s.UpsertArtist(ctx, testArtist(2, ptr[int64](1))))
	require.NoError(t, s.UpsertArtist(ctx, testArtist(3, ptr[int64](2))))
	require.NoError(t, s.UpsertSong(ctx, testSong(1, models.SongArtist{ArtistID: 1})))

	require.NoError(t, s.DeleteArtist(ctx, 1))

	exists, err := s.ArtistExists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, int64(2), rootOf(t, db, 3))

	child, err := s.GetArtist(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, child.BaseArtistID)

	song, err := s.GetSong(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, song.Artists)
}

func TestEntityStore_ListRefreshTargets(t *testing.T) {
	ctx := context.Background()
	s := newTestEntityStore(t, newTestDB(t))
	require.NoError(t, s.UpsertSong(ctx, testSong(2)))
	dormant := testSong(1)
	dormant.Dormant = true
	require.NoError(t, s.UpsertSong(ctx, dormant))

	targets, err := s.ListRefreshTargets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, int64(1), targets[0].SongID)
	assert.True(t, targets[0].Dormant)
	assert.False(t, targets[1].Dormant)
	assert.Equal(t, []string{"yt1"}, targets[1].VideoIDs[models.SourceTypeYouTube])
	assert.Equal(t, 2020, targets[1].PublishDate.Year())
}

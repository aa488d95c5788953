package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"vocarank/internal/models"
	"vocarank/internal/store"
	"vocarank/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var ignoreDB = goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener")

type fakeProvider struct {
	mu       sync.Mutex
	views    map[string]*int64
	failures map[string]int
	calls    map[string]int
	block    chan struct{}
	started  chan struct{}
}

func newFakeProvider(views map[string]int64) *fakeProvider {
	p := &fakeProvider{
		views:    make(map[string]*int64),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
	for id, v := range views {
		v := v
		p.views[id] = &v
	}
	return p
}

func (p *fakeProvider) GetViews(ctx context.Context, videoID string) (*int64, error) {
	p.mu.Lock()
	p.calls[videoID]++
	block, started := p.block, p.started
	p.started = nil
	fail := p.failures[videoID] != 0
	if p.failures[videoID] > 0 {
		p.failures[videoID]--
	}
	v := p.views[videoID]
	p.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("provider unavailable")
	}
	return v, nil
}

func (p *fakeProvider) Calls(videoID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[videoID]
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	entities  store.EntityStoreInterface
	views     store.ViewsStoreInterface
	cache     *testutil.MockCache
	metrics   *testutil.MockMetrics
	youtube   *fakeProvider
	niconico  *fakeProvider
	refresher *Refresher
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	require.NoError(t, store.AutoMigrate(ctx, db))
	logger := &testutil.MockLogger{}
	entities, err := store.NewEntityStore(db, logger)
	require.NoError(t, err)

	f := &fixture{
		t:        t,
		ctx:      ctx,
		entities: entities,
		views:    store.NewViewsStore(db),
		cache:    testutil.NewMockCache(),
		metrics:  testutil.NewMockMetrics(),
		youtube:  newFakeProvider(nil),
		niconico: newFakeProvider(nil),
	}
	f.refresher = NewRefresher(f.entities, f.views, map[models.SourceType]ViewsProvider{
		models.SourceTypeYouTube:  f.youtube,
		models.SourceTypeNiconico: f.niconico,
	}, f.cache, f.metrics, logger).(*Refresher)
	return f
}

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func (f *fixture) song(id int64, published time.Time, videos map[models.SourceType][]string) {
	require.NoError(f.t, f.entities.UpsertSong(f.ctx, &models.Song{
		Entity: models.Entity{
			ID:          id,
			PublishDate: published,
			Names:       map[models.NameType]string{models.NameTypeOriginal: "song"},
		},
		VideoIDs: videos,
	}))
}

func (f *fixture) opts(d time.Time) Options {
	return Options{Day: d, RetryDelay: time.Millisecond, MaxRetries: 2, MaxConcurrent: 4}
}

func (f *fixture) total(songID int64, d time.Time) int64 {
	b, err := f.views.ReadBreakdown(f.ctx, songID, d)
	require.NoError(f.t, err)
	return b.Total()
}

func TestRefresher_WritesDaySnapshot(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreDB)
	f := newFixture(t)
	f.song(1, day(-100), map[models.SourceType][]string{
		models.SourceTypeYouTube:  {"yt1"},
		models.SourceTypeNiconico: {"sm1"},
	})
	f.song(2, day(-100), map[models.SourceType][]string{models.SourceTypeYouTube: {"yt2"}})
	f.song(3, day(-100), nil)
	f.youtube = newFakeProvider(map[string]int64{"yt1": 100, "yt2": 40})
	f.niconico = newFakeProvider(map[string]int64{"sm1": 7})
	f.refresher.providers[models.SourceTypeYouTube] = f.youtube
	f.refresher.providers[models.SourceTypeNiconico] = f.niconico

	summary, err := f.refresher.RefreshAllViews(f.ctx, f.opts(day(1)))
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.Refreshed)
	assert.Equal(t, int64(1), summary.Skipped)
	assert.Equal(t, day(1), summary.Day)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, int64(107), f.total(1, day(1)))
	assert.Equal(t, int64(40), f.total(2, day(1)))

	exists, err := f.views.SnapshotExists(f.ctx, day(1))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, f.cache.Clears)
	assert.Equal(t, []bool{true, false}, f.metrics.Running)
	assert.Equal(t, StateIdle, f.refresher.State())
}

func TestRefresher_RejectsExistingDay(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.views.RecordSnapshot(f.ctx, day(1)))

	_, err := f.refresher.RefreshAllViews(f.ctx, f.opts(day(1)))
	assert.ErrorIs(t, err, ErrStaleTimestamp)
	assert.Equal(t, StateIdle, f.refresher.State())
	assert.Equal(t, 0, f.cache.Clears)
}

func TestRefresher_RejectsOverlappingRuns(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreDB)
	f := newFixture(t)
	f.song(1, day(-100), map[models.SourceType][]string{models.SourceTypeYouTube: {"yt1"}})

	release := make(chan struct{})
	started := make(chan struct{})
	f.youtube.block = release
	f.youtube.started = started

	done := make(chan error, 1)
	go func() {
		_, err := f.refresher.RefreshAllViews(f.ctx, f.opts(day(1)))
		done <- err
	}()

	<-started
	assert.Equal(t, StateRunning, f.refresher.State())
	_, err := f.refresher.RefreshAllViews(f.ctx, f.opts(day(2)))
	assert.ErrorIs(t, err, ErrAlreadyRefreshing)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, f.refresher.State())

	_, err = f.refresher.RefreshAllViews(f.ctx, f.opts(day(2)))
	assert.NoError(t, err)
}

func TestRefresher_SkipsSongAfterRetries(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreDB)
	f := newFixture(t)
	f.song(1, day(-100), map[models.SourceType][]string{models.SourceTypeYouTube: {"yt1"}})
	f.song(2, day(-100), map[models.SourceType][]string{models.SourceTypeYouTube: {"broken"}})
	f.youtube.views["yt1"] = ptr(int64(10))
	f.youtube.failures["broken"] = -1

	summary, err := f.refresher.RefreshAllViews(f.ctx, f.opts(day(1)))
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Refreshed)
	assert.Equal(t, int64(1), summary.Failed)
	assert.Equal(t, 3, f.youtube.Calls("broken"))
	assert.Equal(t, int64(0), f.total(2, day(1)))
	assert.Equal(t, 1, f.metrics.RefreshedSongs["failed"])

	exists, err := f.views.SnapshotExists(f.ctx, day(1))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRefresher_FailedSongKeepsPreviousViews(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreDB)
	f := newFixture(t)
	f.song(1, day(-100), map[models.SourceType][]string{models.SourceTypeYouTube: {"yt1"}})
	f.youtube.views["yt1"] = ptr(int64(100))

	_, err := f.refresher.RefreshAllViews(f.ctx, f.opts(day(0)))
	require.NoError(t, err)

	f.youtube.failures["yt1"] = -1
	summary, err := f.refresher.RefreshAllViews(f.ctx, f.opts(day(1)))
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Failed)
	assert.Equal(t, int64(0), summary.CarriedForward)
	assert.Equal(t, int64(100), f.total(1, day(1)))
}

func TestRefresher_RetriesTransientFailures(t *testing.T) {
	f := newFixture(t)
	f.song(1, day(-100), map[models.SourceType][]string{models.SourceTypeYouTube: {"flaky"}})
	f.youtube.views["flaky"] = ptr(int64(55))
	f.youtube.failures["flaky"] = 2

	summary, err := f.refresher.RefreshAllViews(f.ctx, f.opts(day(1)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Refreshed)
	assert.Equal(t, int64(55), f.total(1, day(1)))
}

func TestRefresher_NilViewsCountAsZero(t *testing.T) {
	f := newFixture(t)
	f.song(1, day(-100), map[models.SourceType][]string{models.SourceTypeYouTube: {"gone", "yt1"}})
	f.youtube.views["yt1"] = ptr(int64(5))

	_, err := f.refresher.RefreshAllViews(f.ctx, f.opts(day(1)))
	require.NoError(t, err)

	b, err := f.views.ReadBreakdown(f.ctx, 1, day(1))
	require.NoError(t, err)
	assert.Equal(t, models.ViewsBreakdown{
		models.SourceTypeYouTube: {{VideoID: "gone", Views: 0}, {VideoID: "yt1", Views: 5}},
	}, b)
}

func TestRefresher_CarriesDormantSongsForward(t *testing.T) {
	f := newFixture(t)
	f.song(1, day(-100), map[models.SourceType][]string{models.SourceTypeYouTube: {"yt1"}})
	require.NoError(t, f.views.WriteBreakdown(f.ctx, 1, day(0), models.ViewsBreakdown{
		models.SourceTypeYouTube: {{VideoID: "yt1", Views: 900}},
	}))
	require.NoError(t, f.views.RecordSnapshot(f.ctx, day(0)))
	require.NoError(t, f.views.MarkDormant(f.ctx, 1, true))
	f.youtube.views["yt1"] = ptr(int64(950))

	summary, err := f.refresher.RefreshAllViews(f.ctx, f.opts(day(1)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.CarriedForward)
	assert.Equal(t, int64(900), f.total(1, day(1)))
	assert.Equal(t, 0, f.youtube.Calls("yt1"))
}

func TestRefresher_MarksPlateauedSongsDormant(t *testing.T) {
	f := newFixture(t)
	f.song(1, day(-100), map[models.SourceType][]string{models.SourceTypeYouTube: {"old"}})
	f.song(2, day(-100), map[models.SourceType][]string{models.SourceTypeYouTube: {"busy"}})
	f.song(3, day(-2), map[models.SourceType][]string{models.SourceTypeYouTube: {"new"}})
	for id, views := range map[int64]int64{1: 1000, 2: 1000, 3: 10} {
		require.NoError(t, f.views.WriteBreakdown(f.ctx, id, day(0), models.ViewsBreakdown{
			models.SourceTypeYouTube: {{VideoID: map[int64]string{1: "old", 2: "busy", 3: "new"}[id], Views: views}},
		}))
	}
	require.NoError(t, f.views.RecordSnapshot(f.ctx, day(0)))
	f.youtube.views["old"] = ptr(int64(1005))
	f.youtube.views["busy"] = ptr(int64(5000))
	f.youtube.views["new"] = ptr(int64(11))

	opts := f.opts(day(1))
	opts.Dormancy.MinAgeDays = 30
	opts.Dormancy.WindowDays = 1
	opts.Dormancy.MaxGain = 100
	summary, err := f.refresher.RefreshAllViews(f.ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.MarkedDormant)

	targets, err := f.entities.ListRefreshTargets(f.ctx)
	require.NoError(t, err)
	dormant := map[int64]bool{}
	for _, tg := range targets {
		dormant[tg.SongID] = tg.Dormant
	}
	assert.Equal(t, map[int64]bool{1: true, 2: false, 3: false}, dormant)
}

func TestRefresher_CancelledRunRecordsNothing(t *testing.T) {
	f := newFixture(t)
	f.song(1, day(-100), map[models.SourceType][]string{models.SourceTypeYouTube: {"yt1"}})
	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	_, err := f.refresher.RefreshAllViews(ctx, f.opts(day(1)))
	assert.Error(t, err)

	exists, err := f.views.SnapshotExists(f.ctx, day(1))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, StateIdle, f.refresher.State())
}

func TestLinearBackOff(t *testing.T) {
	b := &linearBackOff{step: 10 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 20*time.Millisecond, b.NextBackOff())
	b.Reset()
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
}

func TestOptions_Defaults(t *testing.T) {
	now := time.Date(2024, 3, 5, 17, 30, 0, 0, time.UTC)
	o := Options{}.withDefaults(now)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), o.Day)
	assert.Equal(t, defaultMaxRetries, o.MaxRetries)
	assert.Equal(t, defaultMaxConcurrent, o.MaxConcurrent)
	assert.Equal(t, defaultRetryDelay, o.RetryDelay)
}

func ptr[T any](v T) *T { return &v }

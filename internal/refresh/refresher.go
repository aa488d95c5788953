package refresh

import (
	"context"
	"errors"
	"sync"
	"time"
	"vocarank/internal/models"
	"vocarank/internal/providers"
	"vocarank/internal/store"
	"vocarank/internal/structures"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/atomic"
)

var (
	ErrAlreadyRefreshing = errors.New("views refresh already running")
	ErrStaleTimestamp    = errors.New("views snapshot for this day already exists")
)

const (
	defaultMaxRetries    = 5
	defaultRetryDelay    = time.Second
	defaultMaxConcurrent = 15
)

type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Options controls one refresh run. A zero Day means today.
type Options struct {
	Day           time.Time
	MaxRetries    int
	RetryDelay    time.Duration
	MaxConcurrent int
	Dormancy      structures.DormancyConfig
}

func OptionsFromConfig(conf *structures.Config) Options {
	return Options{
		MaxRetries:    conf.Refresh.MaxRetries,
		RetryDelay:    conf.Refresh.RetryDelay,
		MaxConcurrent: conf.Refresh.MaxConcurrent,
		Dormancy:      conf.Refresh.Dormancy,
	}
}

func (o Options) withDefaults(now time.Time) Options {
	if o.Day.IsZero() {
		o.Day = now
	}
	o.Day = models.Day(o.Day)
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaultRetryDelay
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = defaultMaxConcurrent
	}
	return o
}

// Summary reports what a run did to each song.
type Summary struct {
	RunID          string        `json:"runId"`
	Day            time.Time     `json:"day"`
	Refreshed      int64         `json:"refreshed"`
	CarriedForward int64         `json:"carriedForward"`
	MarkedDormant  int64         `json:"markedDormant"`
	Skipped        int64         `json:"skipped"`
	Failed         int64         `json:"failed"`
	Duration       time.Duration `json:"duration"`
}

type RefresherInterface interface {
	RefreshAllViews(ctx context.Context, opts Options) (*Summary, error)
	State() State
}

// Refresher writes one views snapshot per day. Only one run may be in
// flight; a second caller gets ErrAlreadyRefreshing.
type Refresher struct {
	mu    sync.Mutex
	state State

	entities  store.EntityStoreInterface
	views     store.ViewsStoreInterface
	providers map[models.SourceType]ViewsProvider
	cache     providers.CacheProviderInterface
	metrics   providers.MetricsProviderInterface
	logger    providers.Logger
	now       func() time.Time
}

func NewRefresher(
	entities store.EntityStoreInterface,
	views store.ViewsStoreInterface,
	viewsProviders map[models.SourceType]ViewsProvider,
	cache providers.CacheProviderInterface,
	metrics providers.MetricsProviderInterface,
	logger providers.Logger,
) RefresherInterface {
	return &Refresher{
		entities:  entities,
		views:     views,
		providers: viewsProviders,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Refresher) start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateRunning {
		return ErrAlreadyRefreshing
	}
	r.state = StateRunning
	r.metrics.SetRefreshRunning(true)
	return nil
}

func (r *Refresher) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateIdle
	r.metrics.SetRefreshRunning(false)
}

type outcome int

const (
	outcomeRefreshed outcome = iota
	outcomeCarried
	outcomeSkipped
	outcomeFailed
)

type counters struct {
	refreshed atomic.Int64
	carried   atomic.Int64
	dormant   atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

func (c *counters) add(o outcome) {
	switch o {
	case outcomeRefreshed:
		c.refreshed.Inc()
	case outcomeCarried:
		c.carried.Inc()
	case outcomeSkipped:
		c.skipped.Inc()
	default:
		c.failed.Inc()
	}
}

// run is the state shared by the workers of one refresh.
type run struct {
	id       string
	opts     Options
	previous *time.Time
	counts   counters
}

// RefreshAllViews fetches every song's views for the day and records the
// day as complete. Songs that keep failing are logged and skipped. Dormant
// songs repeat their previous snapshot instead of being fetched.
func (r *Refresher) RefreshAllViews(ctx context.Context, opts Options) (*Summary, error) {
	if err := r.start(); err != nil {
		return nil, err
	}
	defer r.finish()

	started := r.now()
	rn := &run{id: uuid.NewString(), opts: opts.withDefaults(started)}
	day := rn.opts.Day

	exists, err := r.views.SnapshotExists(ctx, day)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrStaleTimestamp
	}

	before := models.AddDays(day, -1)
	if rn.previous, err = r.views.MostRecentSnapshot(ctx, &before); err != nil {
		return nil, err
	}
	targets, err := r.entities.ListRefreshTargets(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Infof(providers.TypeRefresh, "Refresh %s started for %s: %d songs, %d workers", rn.id, models.FormatDay(day), len(targets), rn.opts.MaxConcurrent)

	p := pool.New().WithMaxGoroutines(rn.opts.MaxConcurrent)
	for _, target := range targets {
		target := target
		p.Go(func() {
			if ctx.Err() != nil {
				rn.counts.add(outcomeSkipped)
				return
			}
			rn.counts.add(r.refreshSong(ctx, rn, target))
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		r.logger.Warnf(providers.TypeRefresh, "Refresh %s cancelled: %v", rn.id, err)
		return nil, err
	}
	if err := r.views.RecordSnapshot(ctx, day); err != nil {
		return nil, err
	}
	r.cache.Clear()

	summary := &Summary{
		RunID:          rn.id,
		Day:            day,
		Refreshed:      rn.counts.refreshed.Load(),
		CarriedForward: rn.counts.carried.Load(),
		MarkedDormant:  rn.counts.dormant.Load(),
		Skipped:        rn.counts.skipped.Load(),
		Failed:         rn.counts.failed.Load(),
		Duration:       r.now().Sub(started),
	}
	r.metrics.ObserveRefreshDuration(summary.Duration)
	r.metrics.AddRefreshedSongs("refreshed", int(summary.Refreshed))
	r.metrics.AddRefreshedSongs("carried", int(summary.CarriedForward))
	r.metrics.AddRefreshedSongs("skipped", int(summary.Skipped))
	r.metrics.AddRefreshedSongs("failed", int(summary.Failed))
	r.logger.Infof(providers.TypeRefresh, "Refresh %s finished in %s: %d refreshed, %d carried forward, %d newly dormant, %d skipped, %d failed",
		rn.id, summary.Duration, summary.Refreshed, summary.CarriedForward, summary.MarkedDormant, summary.Skipped, summary.Failed)
	return summary, nil
}

func (r *Refresher) refreshSong(ctx context.Context, rn *run, target models.RefreshTarget) outcome {
	day := rn.opts.Day
	if target.Dormant && rn.previous != nil {
		if err := r.views.CarryForward(ctx, target.SongID, *rn.previous, day); err != nil {
			r.logger.Errorf(providers.TypeRefresh, "Refresh %s: carrying song %d forward failed: %v", rn.id, target.SongID, err)
			return outcomeFailed
		}
		return outcomeCarried
	}
	if len(target.VideoIDs) == 0 {
		return outcomeSkipped
	}

	var breakdown models.ViewsBreakdown
	fetch := func() error {
		var err error
		breakdown, err = r.fetchBreakdown(ctx, target)
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warnf(providers.TypeRefresh, "Refresh %s: song %d failed, retrying in %s: %v", rn.id, target.SongID, wait, err)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(&linearBackOff{step: rn.opts.RetryDelay}, uint64(rn.opts.MaxRetries)), ctx)
	if err := backoff.RetryNotify(fetch, policy, notify); err != nil {
		r.logger.Errorf(providers.TypeRefresh, "Refresh %s: skipping song %d after %d retries: %v", rn.id, target.SongID, rn.opts.MaxRetries, err)
		r.keepStale(ctx, rn, target)
		return outcomeFailed
	}

	if err := r.views.WriteBreakdown(ctx, target.SongID, day, breakdown); err != nil {
		r.logger.Errorf(providers.TypeRefresh, "Refresh %s: writing song %d failed: %v", rn.id, target.SongID, err)
		r.keepStale(ctx, rn, target)
		return outcomeFailed
	}
	r.checkDormancy(ctx, rn, target, breakdown.Total())
	return outcomeRefreshed
}

// fetchBreakdown asks the providers for every video of the song. Sources
// without a provider are left out; a nil count is stored as zero.
func (r *Refresher) fetchBreakdown(ctx context.Context, target models.RefreshTarget) (models.ViewsBreakdown, error) {
	breakdown := make(models.ViewsBreakdown, len(target.VideoIDs))
	for source, videoIDs := range target.VideoIDs {
		provider, ok := r.providers[source]
		if !ok {
			continue
		}
		for _, videoID := range videoIDs {
			views, err := provider.GetViews(ctx, videoID)
			if err != nil {
				return nil, err
			}
			var n int64
			if views != nil {
				n = *views
			}
			breakdown[source] = append(breakdown[source], models.VideoViews{VideoID: videoID, Views: n})
		}
	}
	return breakdown.Normalize(), nil
}

// checkDormancy marks a song dormant once it is old enough and gained
// fewer than MaxGain views over the last WindowDays.
func (r *Refresher) checkDormancy(ctx context.Context, rn *run, target models.RefreshTarget, total int64) {
	d := rn.opts.Dormancy
	if d.MaxGain <= 0 || d.WindowDays <= 0 || target.PublishDate.IsZero() {
		return
	}
	if rn.opts.Day.Sub(target.PublishDate) < time.Duration(d.MinAgeDays)*24*time.Hour {
		return
	}

	since := models.AddDays(rn.opts.Day, -d.WindowDays)
	then, err := r.views.MostRecentSnapshot(ctx, &since)
	if err != nil || then == nil {
		return
	}
	old, err := r.views.ReadBreakdown(ctx, target.SongID, *then)
	if err != nil || len(old) == 0 {
		return
	}
	if total-old.Total() >= d.MaxGain {
		return
	}
	if err := r.views.MarkDormant(ctx, target.SongID, true); err != nil {
		r.logger.Warnf(providers.TypeRefresh, "Refresh %s: marking song %d dormant failed: %v", rn.id, target.SongID, err)
		return
	}
	rn.counts.dormant.Inc()
	r.logger.Debugf(providers.TypeRefresh, "Refresh %s: song %d is now dormant", rn.id, target.SongID)
}

// linearBackOff waits step, 2*step, 3*step and so on.
type linearBackOff struct {
	step    time.Duration
	attempt int64
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// keepStale repeats a failed song's previous snapshot so the day still
// holds its last known views.
func (r *Refresher) keepStale(ctx context.Context, rn *run, target models.RefreshTarget) {
	if rn.previous == nil || ctx.Err() != nil {
		return
	}
	if err := r.views.CarryForward(ctx, target.SongID, *rn.previous, rn.opts.Day); err != nil {
		r.logger.Errorf(providers.TypeRefresh, "Refresh %s: keeping song %d stale failed: %v", rn.id, target.SongID, err)
	}
}

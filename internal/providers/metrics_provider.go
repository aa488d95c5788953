package providers

import (
	"time"
	"vocarank/internal/structures"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncCacheClears()
	ObserveRankingQuery(kind string, duration time.Duration)
	ObserveRefreshDuration(duration time.Duration)
	AddRefreshedSongs(outcome string, count int)
	SetRefreshRunning(running bool)
}

type MetricsProvider struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheClears     prometheus.Counter
	rankingQuery    *prometheus.HistogramVec
	refreshDuration prometheus.Histogram
	refreshedSongs  *prometheus.CounterVec
	refreshRunning  prometheus.Gauge
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncCacheClears() {
	m.cacheClears.Inc()
}

func (m *MetricsProvider) ObserveRankingQuery(kind string, duration time.Duration) {
	m.rankingQuery.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *MetricsProvider) ObserveRefreshDuration(duration time.Duration) {
	m.refreshDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) AddRefreshedSongs(outcome string, count int) {
	m.refreshedSongs.WithLabelValues(outcome).Add(float64(count))
}

func (m *MetricsProvider) SetRefreshRunning(running bool) {
	if running {
		m.refreshRunning.Set(1)
		return
	}
	m.refreshRunning.Set(0)
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vocarank_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vocarank_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vocarank_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vocarank_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		cacheClears: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vocarank_cache_clears_total",
			Help: "Total number of cache invalidations",
		}),

		rankingQuery: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vocarank_ranking_query_duration_seconds",
			Help:    "Duration of ranking queries in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),

		refreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vocarank_refresh_duration_seconds",
			Help:    "Duration of view refresh runs in seconds",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
		}),

		refreshedSongs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vocarank_refreshed_songs_total",
			Help: "Songs processed by view refresh runs, by outcome",
		}, []string{"outcome"}),

		refreshRunning: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vocarank_refresh_running",
			Help: "1 while a view refresh is in progress",
		}),
	}
}

// noopMetrics is used when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncCacheClears()                                  {}
func (n *noopMetrics) ObserveRankingQuery(_ string, _ time.Duration)    {}
func (n *noopMetrics) ObserveRefreshDuration(_ time.Duration)           {}
func (n *noopMetrics) AddRefreshedSongs(_ string, _ int)                {}
func (n *noopMetrics) SetRefreshRunning(_ bool)                         {}

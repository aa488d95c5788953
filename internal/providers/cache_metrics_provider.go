package providers

import "vocarank/internal/structures"

// MetricsCacheProvider wraps a CacheProviderInterface and counts
// hits and misses on every Get call.
type MetricsCacheProvider struct {
	inner   CacheProviderInterface
	metrics MetricsProviderInterface
}

func (c *MetricsCacheProvider) Get(key string) ([]byte, bool) {
	val, ok := c.inner.Get(key)
	if ok {
		c.metrics.IncCacheHits()
	} else {
		c.metrics.IncCacheMisses()
	}
	return val, ok
}

func (c *MetricsCacheProvider) Set(key string, value []byte) {
	c.inner.Set(key, value)
}

func (c *MetricsCacheProvider) Clear() {
	c.inner.Clear()
	c.metrics.IncCacheClears()
}

// NewInstrumentedCacheProvider returns the plain noop cache when caching is
// disabled so that no phantom misses are counted.
func NewInstrumentedCacheProvider(conf *structures.Config, logger Logger, compressor CompressorInterface, metrics MetricsProviderInterface) CacheProviderInterface {
	inner := NewCacheProvider(conf, logger, compressor)
	if _, disabled := inner.(*noopCache); disabled {
		return inner
	}
	return &MetricsCacheProvider{
		inner:   inner,
		metrics: metrics,
	}
}

package providers

import (
	"unsafe"
	"vocarank/internal/structures"

	"github.com/coocood/freecache"
)

type CacheProviderInterface interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Clear()
}

// CacheProvider keeps rendered ranking pages, zstd compressed.
type CacheProvider struct {
	cache      *freecache.Cache
	compressor CompressorInterface
	ttl        int
}

func NewCacheProvider(conf *structures.Config, logger Logger, compressor CompressorInterface) CacheProviderInterface {
	if !conf.Cache.Enabled || conf.Cache.Size <= 0 {
		logger.Infof(TypeApp, "Cache disabled")
		return &noopCache{}
	}

	sizeBytes := conf.Cache.Size * 1024 * 1024
	ttl := max(int(conf.Cache.TTL.Seconds()), 1)

	logger.Infof(TypeApp, "Cache initialized: %dMB, TTL=%ds", conf.Cache.Size, ttl)

	return &CacheProvider{
		cache:      freecache.NewCache(sizeBytes),
		compressor: compressor,
		ttl:        ttl,
	}
}

// unsafeStringToBytes converts string to []byte without allocation.
// freecache copies keys internally, so the result is never written to.
func unsafeStringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func (c *CacheProvider) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get(unsafeStringToBytes(key))
	if err != nil {
		return nil, false
	}
	data, err := c.compressor.Decompress(val)
	if err != nil {
		c.cache.Del(unsafeStringToBytes(key))
		return nil, false
	}
	return data, true
}

func (c *CacheProvider) Set(key string, value []byte) {
	data, err := c.compressor.Compress(value)
	if err != nil {
		return
	}
	_ = c.cache.Set(unsafeStringToBytes(key), data, c.ttl)
}

func (c *CacheProvider) Clear() {
	c.cache.Clear()
}

type noopCache struct{}

func (n *noopCache) Get(_ string) ([]byte, bool) { return nil, false }
func (n *noopCache) Set(_ string, _ []byte)      {}
func (n *noopCache) Clear()                      {}

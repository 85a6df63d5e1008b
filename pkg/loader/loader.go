// Package loader 提供缓存的读穿（read-through）消费层：
// Loader 抽象后端数据源，CachedClient 将缓存与数据源组合，
// 未命中时通过 GetOrLoad 从数据源加载并回填。
package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	"cachekit/pkg/cache"
	"cachekit/pkg/logger"
)

// ErrNotFound 表示数据源中不存在请求的键。
var ErrNotFound = errors.New("loader: key not found")

// Loader 定义了按键从后端数据源加载值的行为。
type Loader[V any] interface {
	// Load 加载指定键的值，键不存在时返回 ErrNotFound。
	Load(ctx context.Context, key string) (V, error)
	// Close 关闭数据源并释放资源。
	Close() error
}

// LoaderFunc 允许用普通函数实现 Loader。
type LoaderFunc[V any] func(ctx context.Context, key string) (V, error)

func (f LoaderFunc[V]) Load(ctx context.Context, key string) (V, error) {
	return f(ctx, key)
}

func (f LoaderFunc[V]) Close() error { return nil }

// ClientStats 缓存客户端的请求统计。
type ClientStats struct {
	TotalRequests int64     `json:"total_requests"` // 总请求数
	CacheHits     int64     `json:"cache_hits"`     // 缓存命中数
	CacheMisses   int64     `json:"cache_misses"`   // 缓存未命中数
	LoaderCalls   int64     `json:"loader_calls"`   // 触发数据源加载的次数
	FailedLoads   int64     `json:"failed_loads"`   // 加载失败次数
	LastRequest   time.Time `json:"last_request"`   // 最近一次请求时间
}

// CachedClient 将缓存与数据源组合成一个读穿客户端。
// 缓存未命中时从 Loader 加载并写入缓存，加载在缓存临界区之外执行。
type CachedClient[V any] struct {
	cache  *cache.Cache[string, V]
	loader Loader[V]

	mu    sync.Mutex
	stats ClientStats
	log   *logger.Entry
}

// NewCachedClient 创建读穿客户端。
func NewCachedClient[V any](c *cache.Cache[string, V], l Loader[V]) *CachedClient[V] {
	return &CachedClient[V]{
		cache:  c,
		loader: l,
		log:    logger.WithComponent("cached_client"),
	}
}

// Get 获取指定键的值，优先使用缓存。
func (cc *CachedClient[V]) Get(ctx context.Context, key string) (V, error) {
	cc.mu.Lock()
	cc.stats.TotalRequests++
	cc.stats.LastRequest = time.Now()
	cc.mu.Unlock()

	loaded := false
	value, err := cc.cache.GetOrLoad(ctx, key, func(ctx context.Context) (V, error) {
		loaded = true
		return cc.loader.Load(ctx, key)
	})

	cc.mu.Lock()
	defer cc.mu.Unlock()
	if loaded {
		cc.stats.CacheMisses++
		cc.stats.LoaderCalls++
		if err != nil {
			cc.stats.FailedLoads++
		}
	} else if err == nil {
		cc.stats.CacheHits++
	}

	if err != nil {
		cc.log.WithError(err).Debugf("加载键 %s 失败", key)
		var zero V
		return zero, err
	}
	return value, nil
}

// Invalidate 手动移除缓存中的键，下一次 Get 将重新加载。
func (cc *CachedClient[V]) Invalidate(key string) bool {
	return cc.cache.Delete(key)
}

// Stats 返回客户端请求统计。
func (cc *CachedClient[V]) Stats() ClientStats {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.stats
}

// CacheStats 返回底层缓存的统计快照。
func (cc *CachedClient[V]) CacheStats() cache.Snapshot {
	return cc.cache.Stats()
}

// Close 关闭底层数据源。缓存的生命周期由调用方管理。
func (cc *CachedClient[V]) Close() error {
	return cc.loader.Close()
}

// Package cache 提供一个进程内的线程安全键值缓存引擎，
// 支持多种淘汰策略（LRU/LFU/FIFO/Random/None）、TTL过期、
// 命中统计以及惰性加载（GetOrLoad）。
//
// 缓存句柄是一个指针，可以在多个 goroutine 之间自由共享；
// 所有公开操作都串行化在同一个互斥锁之后，读写全序一致。
// 读取按值返回，需要引用语义的调用方应存储指针类型的值。
package cache

import (
	"context"
	"math"
	"sync"
	"time"

	"cachekit/pkg/logger"
)

// entry 代表缓存中的一个条目及其簿记信息。
type entry[V any] struct {
	value       V
	insertedAt  time.Time // 插入时间，用于TTL和FIFO
	lastAccess  time.Time // 最后访问时间，用于LRU
	accessCount int64     // 访问次数，用于LFU
}

// Snapshot 是一次统计快照，反映快照时刻的一致状态。
type Snapshot struct {
	Hits       uint64  `json:"hits"`       // 命中次数
	Misses     uint64  `json:"misses"`     // 未命中次数（含过期未命中）
	Evictions  uint64  `json:"evictions"`  // 隐式移除次数（容量淘汰 + 过期清除）
	Insertions uint64  `json:"insertions"` // 成功插入次数
	Size       int64   `json:"size"`       // 当前条目数
	MaxSize    int64   `json:"max_size"`   // 配置的最大容量，0 表示不限制
	HitRate    float64 `json:"hit_rate"`   // 命中率，分母为零时为 0.0
}

// counters 单调递增的统计计数器，由缓存互斥锁保护。
type counters struct {
	hits       uint64
	misses     uint64
	evictions  uint64
	insertions uint64
}

// satAdd 饱和加一，计数器达到上限后不再回绕。
func satAdd(c *uint64) {
	if *c != math.MaxUint64 {
		*c++
	}
}

// Loader 是 GetOrLoad 的加载回调，在临界区之外执行。
type Loader[V any] func(ctx context.Context) (V, error)

// Cache 是缓存引擎的公开句柄。
// 零值不可用，必须通过 New 创建。
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	cfg     Config
	entries map[K]*entry[V]
	policy  policyStore[K]
	stats   counters

	// 可选的后台清理协程
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	closeOnce     sync.Once
	closed        bool

	log *logger.Entry
}

// New 根据配置创建一个缓存实例。配置无效时返回 CONFIG_INVALID。
func New[K comparable, V any](cfg Config) (*Cache[K, V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Cache[K, V]{
		cfg:         cfg,
		entries:     make(map[K]*entry[V]),
		policy:      newPolicyStore[K](cfg.Policy),
		stopCleanup: make(chan struct{}),
		log:         logger.WithComponent("cache"),
	}

	if cfg.CleanupInterval > 0 {
		c.cleanupTicker = time.NewTicker(cfg.CleanupInterval)
		go c.runCleanup()
	}

	return c, nil
}

// Get 读取一个键。命中时返回值的副本并更新策略元数据；
// 条目已过期时会被顺带移除（计为一次淘汰），并按未命中处理。
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.countMiss()
		return zero, false
	}

	now := time.Now()
	if c.expired(e, now) {
		c.removeLocked(key)
		c.countEviction()
		c.countMiss()
		return zero, false
	}

	e.lastAccess = now
	e.accessCount++
	if c.policy != nil {
		c.policy.OnAccess(key)
	}
	c.countHit()
	return e.value, true
}

// Set 插入或替换一个键。替换会重置条目的全部簿记信息，
// 策略位置也按新插入处理。新键写入已满的缓存时按策略淘汰一个受害者；
// 未配置策略(PolicyNone)时返回 CACHE_FULL 且不改变任何状态。
// 缓存关闭后写入返回 CACHE_CLOSED。
func (c *Cache[K, V]) Set(key K, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrAlreadyClosed
	}
	return c.storeLocked(key, value)
}

// Delete 手动移除一个键，返回是否确有条目被移除。
// 手动移除不计入淘汰统计。
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	c.removeLocked(key)
	return true
}

// Clear 移除所有条目并重置策略元数据。统计计数器保持不变。
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*entry[V])
	if c.policy != nil {
		c.policy.OnClear()
	}
}

// Len 返回当前条目数。
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// IsEmpty 报告缓存是否为空。
func (c *Cache[K, V]) IsEmpty() bool {
	return c.Len() == 0
}

// Capacity 返回配置的最大容量，0 表示不限制。
func (c *Cache[K, V]) Capacity() int64 {
	return c.cfg.MaxSize
}

// Config 返回构建时的配置副本。
func (c *Cache[K, V]) Config() Config {
	return c.cfg
}

// Stats 返回统计快照。计数器与 Size 在同一临界区内读取，
// 与先前完成的读写操作保持一致。
func (c *Cache[K, V]) Stats() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Hits:       c.stats.hits,
		Misses:     c.stats.misses,
		Evictions:  c.stats.evictions,
		Insertions: c.stats.insertions,
		Size:       int64(len(c.entries)),
		MaxSize:    c.cfg.MaxSize,
	}
	if total := snap.Hits + snap.Misses; total > 0 {
		snap.HitRate = float64(snap.Hits) / float64(total)
	}
	return snap
}

// GetOrLoad 返回键对应的值；缓存未命中或已过期时调用 load 计算并写入。
// load 严格在临界区之外执行，因此并发的未命中可能导致 load 被执行多次；
// 先写入者胜出，后到者会拿到已存储的值。load 返回错误时缓存保持不变，
// 错误以 LOAD_FAILED 包装后返回。
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, load Loader[V]) (V, error) {
	var zero V

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return zero, ErrAlreadyClosed
	}
	if e, ok := c.entries[key]; ok {
		now := time.Now()
		if !c.expired(e, now) {
			e.lastAccess = now
			e.accessCount++
			if c.policy != nil {
				c.policy.OnAccess(key)
			}
			c.countHit()
			v := e.value
			c.mu.Unlock()
			return v, nil
		}
		c.removeLocked(key)
		c.countEviction()
	}
	c.countMiss()
	c.mu.Unlock()

	// 加载回调在锁外执行，其耗时和阻塞不影响其他缓存操作。
	value, err := load(ctx)
	if err != nil {
		return zero, WrapError(ErrLoadFailed, "loader callback failed", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return zero, ErrAlreadyClosed
	}

	// 并发竞争下可能已有其他调用方完成写入，此时沿用已存储的值。
	if e, ok := c.entries[key]; ok && !c.expired(e, time.Now()) {
		return e.value, nil
	}
	if err := c.storeLocked(key, value); err != nil {
		return zero, err
	}
	return value, nil
}

// Close 停止后台清理协程并拒绝后续写入。可安全地多次调用；
// 已持有的条目仍可读取。
func (c *Cache[K, V]) Close() error {
	c.closeOnce.Do(func() {
		if c.cleanupTicker != nil {
			c.cleanupTicker.Stop()
		}
		close(c.stopCleanup)

		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
	})
	return nil
}

// storeLocked 在持有锁的前提下执行插入或替换。
func (c *Cache[K, V]) storeLocked(key K, value V) error {
	now := time.Now()

	if e, ok := c.entries[key]; ok {
		// 替换：值与簿记信息整体重置，策略位置刷新为新插入
		e.value = value
		e.insertedAt = now
		e.lastAccess = now
		e.accessCount = 0
		if c.policy != nil {
			c.policy.OnRemove(key)
			c.policy.OnAdd(key)
		}
		c.countInsertion()
		return nil
	}

	if c.cfg.MaxSize > 0 && int64(len(c.entries)) >= c.cfg.MaxSize {
		if c.policy == nil {
			return ErrCapacityExceeded
		}
		if victim, ok := c.policy.Victim(); ok {
			c.removeLocked(victim)
			c.countEviction()
		}
	}

	c.entries[key] = &entry[V]{
		value:      value,
		insertedAt: now,
		lastAccess: now,
	}
	if c.policy != nil {
		c.policy.OnAdd(key)
	}
	c.countInsertion()
	return nil
}

// removeLocked 在持有锁的前提下移除条目及其策略元数据。
func (c *Cache[K, V]) removeLocked(key K) {
	delete(c.entries, key)
	if c.policy != nil {
		c.policy.OnRemove(key)
	}
}

// expired 判断条目在 now 时刻是否已过期。
func (c *Cache[K, V]) expired(e *entry[V], now time.Time) bool {
	if c.cfg.TTL <= 0 {
		return false
	}
	return !e.insertedAt.Add(c.cfg.TTL).After(now)
}

func (c *Cache[K, V]) countHit() {
	if c.cfg.TrackMetrics {
		satAdd(&c.stats.hits)
	}
}

func (c *Cache[K, V]) countMiss() {
	if c.cfg.TrackMetrics {
		satAdd(&c.stats.misses)
	}
}

func (c *Cache[K, V]) countEviction() {
	if c.cfg.TrackMetrics {
		satAdd(&c.stats.evictions)
	}
}

func (c *Cache[K, V]) countInsertion() {
	if c.cfg.TrackMetrics {
		satAdd(&c.stats.insertions)
	}
}

package cache

import (
	"fmt"
	"time"
)

// PolicyType 淘汰策略类型
type PolicyType string

const (
	PolicyLRU    PolicyType = "lru"    // Least Recently Used
	PolicyLFU    PolicyType = "lfu"    // Least Frequently Used
	PolicyFIFO   PolicyType = "fifo"   // First In First Out
	PolicyRandom PolicyType = "random" // 均匀随机淘汰
	PolicyNone   PolicyType = "none"   // 不淘汰，写满后 Set 返回 CACHE_FULL
)

// Config 定义了单个缓存实例的全部配置。
// 配置在构建后不可变；推荐通过 Builder 或便捷构造函数获得已验证的实例。
type Config struct {
	MaxSize         int64         `json:"max_size" yaml:"max_size"`                 // 最大条目数，0 表示不限制
	TTL             time.Duration `json:"ttl" yaml:"ttl"`                           // 条目的生存时间，0 表示永不过期
	Policy          PolicyType    `json:"policy" yaml:"policy"`                     // 淘汰策略
	TrackMetrics    bool          `json:"track_metrics" yaml:"track_metrics"`       // 是否记录命中/未命中等统计
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"` // 后台清理过期条目的间隔，0 表示不启动清理协程
}

// DefaultConfig 返回默认配置：无上限、无TTL、不淘汰、启用统计。
func DefaultConfig() Config {
	return Config{
		Policy:       PolicyNone,
		TrackMetrics: true,
	}
}

// Validate 检查配置中的关键字段是否有效。
func (c Config) Validate() error {
	if c.MaxSize < 0 {
		return NewCacheError(ErrConfigInvalid, fmt.Sprintf("max_size cannot be negative: %d", c.MaxSize))
	}
	if c.TTL < 0 {
		return NewCacheError(ErrConfigInvalid, fmt.Sprintf("ttl cannot be negative: %s", c.TTL))
	}
	if c.CleanupInterval < 0 {
		return NewCacheError(ErrConfigInvalid, fmt.Sprintf("cleanup_interval cannot be negative: %s", c.CleanupInterval))
	}
	switch c.Policy {
	case PolicyLRU, PolicyLFU, PolicyFIFO, PolicyRandom:
		// 淘汰策略必须配合一个正的容量上限
		if c.MaxSize == 0 {
			return NewCacheError(ErrConfigInvalid,
				fmt.Sprintf("policy %q requires max_size >= 1", c.Policy))
		}
	case PolicyNone, "":
		// 无策略时允许无上限，此时缓存退化为一个不受限的并发映射
	default:
		return NewCacheError(ErrConfigInvalid,
			fmt.Sprintf("invalid eviction policy: %s, must be one of: lru, lfu, fifo, random, none", c.Policy))
	}
	return nil
}

// Builder 以链式调用的方式逐步构建一个已验证的 Config。
// 与直接填充 Config 不同，Builder 能区分"未设置容量"与"显式设置容量为0"，
// 后者在 Build 时会被拒绝。
type Builder struct {
	cfg        Config
	maxSizeSet bool
}

// NewBuilder 创建一个新的配置构建器，初始值为 DefaultConfig。
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// MaxSize 设置缓存的最大条目数。显式传入 0 会在 Build 时报错。
func (b *Builder) MaxSize(n int64) *Builder {
	b.cfg.MaxSize = n
	b.maxSizeSet = true
	return b
}

// TTL 设置条目的生存时间。
func (b *Builder) TTL(d time.Duration) *Builder {
	b.cfg.TTL = d
	return b
}

// EvictionPolicy 选择淘汰策略。
func (b *Builder) EvictionPolicy(p PolicyType) *Builder {
	b.cfg.Policy = p
	return b
}

// TrackMetrics 启用或禁用统计计数器。
func (b *Builder) TrackMetrics(enabled bool) *Builder {
	b.cfg.TrackMetrics = enabled
	return b
}

// CleanupInterval 设置后台清理过期条目的间隔，0 表示完全依赖读取时的惰性过期。
func (b *Builder) CleanupInterval(d time.Duration) *Builder {
	b.cfg.CleanupInterval = d
	return b
}

// Build 验证并返回最终配置。
func (b *Builder) Build() (Config, error) {
	if b.maxSizeSet && b.cfg.MaxSize == 0 {
		return Config{}, NewCacheError(ErrConfigInvalid, "max_size must be >= 1 when set")
	}
	if err := b.cfg.Validate(); err != nil {
		return Config{}, err
	}
	return b.cfg, nil
}

// LRUConfig 便捷构造：容量为 maxSize 的 LRU 缓存。
func LRUConfig(maxSize int64) Config {
	cfg := DefaultConfig()
	cfg.MaxSize = maxSize
	cfg.Policy = PolicyLRU
	return cfg
}

// TTLConfig 便捷构造：仅按时间过期、不限容量的缓存。
func TTLConfig(ttl time.Duration) Config {
	cfg := DefaultConfig()
	cfg.TTL = ttl
	return cfg
}

// TTLLRUConfig 便捷构造：同时启用 TTL 过期与 LRU 容量淘汰。
func TTLLRUConfig(ttl time.Duration, maxSize int64) Config {
	cfg := LRUConfig(maxSize)
	cfg.TTL = ttl
	return cfg
}

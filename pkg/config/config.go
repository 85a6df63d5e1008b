// Package config 定义缓存服务的应用配置，通过 viper 从 YAML 文件加载，
// 所有字段都有可直接运行的默认值。
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"cachekit/pkg/cache"
	"cachekit/pkg/loader"
	"cachekit/pkg/telemetry"
)

// Config 是缓存服务的主配置结构。
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Cache     CacheConfig       `mapstructure:"cache"`
	Redis     RedisSourceConfig `mapstructure:"redis"`
	Telemetry TelemetryConfig   `mapstructure:"telemetry"`
	Logging   LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Port string `mapstructure:"port"` // 监听端口
	Mode string `mapstructure:"mode"` // gin 运行模式: debug, release, test
}

// CacheConfig 核心缓存配置，映射到 cache.Config。
type CacheConfig struct {
	MaxSize         int64         `mapstructure:"max_size"`         // 最大条目数，0 表示不限制
	TTL             time.Duration `mapstructure:"ttl"`              // 条目生存时间，0 表示永不过期
	Policy          string        `mapstructure:"policy"`           // lru, lfu, fifo, random, none
	TrackMetrics    bool          `mapstructure:"track_metrics"`    // 是否记录统计
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"` // 后台清理间隔，0 表示禁用
}

// RedisSourceConfig Redis读穿数据源配置
type RedisSourceConfig struct {
	Enabled            bool                 `mapstructure:"enabled"` // 是否启用Redis读穿
	loader.RedisConfig `mapstructure:",squash"`
	Breaker            loader.BreakerConfig `mapstructure:"breaker"` // 熔断器配置
}

// TelemetryConfig 统计上报配置
type TelemetryConfig struct {
	Enabled                  bool `mapstructure:"enabled"` // 是否启用InfluxDB统计上报
	telemetry.ReporterConfig `mapstructure:",squash"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// Load 从指定路径加载配置文件。path 为空时使用默认搜索路径，
// 文件不存在时回退到默认配置。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		v.SetConfigName("cacheserver")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// setDefaults 设置所有配置项的默认值。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.policy", "lru")
	v.SetDefault("cache.track_metrics", true)
	v.SetDefault("cache.cleanup_interval", time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "")
	v.SetDefault("redis.request_timeout", 3*time.Second)
	v.SetDefault("redis.breaker.name", "redis_loader")
	v.SetDefault("redis.breaker.max_requests", 5)
	v.SetDefault("redis.breaker.interval", 60*time.Second)
	v.SetDefault("redis.breaker.timeout", 30*time.Second)
	v.SetDefault("redis.breaker.ready_to_trip", 5)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.url", "http://localhost:8086")
	v.SetDefault("telemetry.token", "")
	v.SetDefault("telemetry.org", "cachekit")
	v.SetDefault("telemetry.bucket", "cache_stats")
	v.SetDefault("telemetry.schedule", "@every 30s")
	v.SetDefault("telemetry.measurement", "cache_stats")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate 检查配置中的关键字段是否有效。
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if !isValidServerMode(c.Server.Mode) {
		return fmt.Errorf("invalid server mode: %s, must be one of: debug, release, test", c.Server.Mode)
	}
	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s, must be one of: debug, info, warn, error", c.Logging.Level)
	}
	if !isValidLogFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s, must be one of: json, text", c.Logging.Format)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}
	if c.Telemetry.Enabled && c.Telemetry.URL == "" {
		return fmt.Errorf("telemetry url is required when telemetry is enabled")
	}

	// 缓存部分交给核心引擎的构建器验证
	if _, err := c.CacheConfig(); err != nil {
		return err
	}
	return nil
}

// CacheConfig 将配置文件中的缓存段转换为已验证的 cache.Config。
func (c *Config) CacheConfig() (cache.Config, error) {
	b := cache.NewBuilder().
		EvictionPolicy(cache.PolicyType(c.Cache.Policy)).
		TrackMetrics(c.Cache.TrackMetrics).
		TTL(c.Cache.TTL).
		CleanupInterval(c.Cache.CleanupInterval)
	if c.Cache.MaxSize != 0 {
		b.MaxSize(c.Cache.MaxSize)
	}
	return b.Build()
}

// 辅助验证函数
func isValidServerMode(mode string) bool {
	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	return validModes[mode]
}

func isValidLogLevel(level string) bool {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	return validLevels[level]
}

func isValidLogFormat(format string) bool {
	validFormats := map[string]bool{"json": true, "text": true}
	return validFormats[format]
}

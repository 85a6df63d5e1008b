package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"cachekit/pkg/logger"
)

// RedisConfig Redis数据源配置
type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`            // Redis 地址，host:port
	Password       string        `mapstructure:"password"`        // 密码，可为空
	DB             int           `mapstructure:"db"`              // 数据库编号
	KeyPrefix      string        `mapstructure:"key_prefix"`      // 键前缀
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // 单次请求超时
}

// DefaultRedisConfig 返回默认的Redis数据源配置。
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:           "localhost:6379",
		DB:             0,
		RequestTimeout: 3 * time.Second,
	}
}

// RedisLoader 从Redis按键加载字符串值的数据源。
type RedisLoader struct {
	client *redis.Client
	config RedisConfig
	log    *logger.Entry
}

// NewRedisLoader 创建Redis数据源并验证连通性。
func NewRedisLoader(ctx context.Context, config RedisConfig) (*RedisLoader, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis %s 失败: %w", config.Addr, err)
	}

	return &RedisLoader{
		client: client,
		config: config,
		log:    logger.WithComponent("redis_loader"),
	}, nil
}

// Load 执行 GET，键不存在时返回 ErrNotFound。
func (r *RedisLoader) Load(ctx context.Context, key string) (string, error) {
	if r.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.RequestTimeout)
		defer cancel()
	}

	value, err := r.client.Get(ctx, r.config.KeyPrefix+key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis GET %s%s: %w", r.config.KeyPrefix, key, err)
	}
	return value, nil
}

// Close 关闭Redis连接。
func (r *RedisLoader) Close() error {
	return r.client.Close()
}

var _ Loader[string] = (*RedisLoader)(nil)

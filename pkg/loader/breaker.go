package loader

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"cachekit/pkg/logger"
)

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	Name        string        `mapstructure:"name"`          // 熔断器名称
	MaxRequests uint32        `mapstructure:"max_requests"`  // 半开状态下的最大请求数
	Interval    time.Duration `mapstructure:"interval"`      // 统计窗口时间
	Timeout     time.Duration `mapstructure:"timeout"`       // 熔断器打开后的超时时间
	ReadyToTrip uint32        `mapstructure:"ready_to_trip"` // 触发熔断的连续失败次数阈值
}

// DefaultBreakerConfig 默认熔断器配置
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:        "loader",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: 5,
	}
}

// BreakerLoader 用 sony/gobreaker 包装另一个数据源。
// 数据源持续失败时熔断器打开，后续请求快速失败而不触达后端。
// ErrNotFound 不计为失败，键不存在是正常的业务结果。
type BreakerLoader[V any] struct {
	inner Loader[V]
	cb    *gobreaker.CircuitBreaker
	log   *logger.Entry
}

// NewBreakerLoader 创建熔断数据源。
func NewBreakerLoader[V any](inner Loader[V], config BreakerConfig) *BreakerLoader[V] {
	log := logger.WithComponent("breaker_loader")

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.ReadyToTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("熔断器 %s 状态从 %v 变更为 %v", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || err == ErrNotFound
		},
	}

	return &BreakerLoader[V]{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
		log:   log,
	}
}

// Load 经由熔断器调用内层数据源。
func (b *BreakerLoader[V]) Load(ctx context.Context, key string) (V, error) {
	var zero V
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Load(ctx, key)
	})
	if err != nil {
		return zero, err
	}
	// V 为接口或指针类型时，内层返回的 nil 值会擦除为 nil interface{}
	if result == nil {
		return zero, nil
	}
	return result.(V), nil
}

// State 返回熔断器的当前状态。
func (b *BreakerLoader[V]) State() gobreaker.State {
	return b.cb.State()
}

// Close 关闭内层数据源。
func (b *BreakerLoader[V]) Close() error {
	return b.inner.Close()
}

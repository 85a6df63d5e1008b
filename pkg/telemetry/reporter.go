// Package telemetry 周期性地采集缓存统计快照并写入 InfluxDB。
// 上报由 cron 表达式驱动，每个上报进程以 uuid 实例标签区分。
package telemetry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/robfig/cron/v3"

	"cachekit/pkg/cache"
	"cachekit/pkg/logger"
)

// ReporterConfig 统计上报配置
type ReporterConfig struct {
	URL         string `mapstructure:"url"`         // InfluxDB URL
	Token       string `mapstructure:"token"`       // 访问令牌
	Org         string `mapstructure:"org"`         // 组织
	Bucket      string `mapstructure:"bucket"`      // 存储桶
	Schedule    string `mapstructure:"schedule"`    // cron 表达式，如 "@every 30s"
	Measurement string `mapstructure:"measurement"` // 测量名，默认 cache_stats
}

// DefaultReporterConfig 默认上报配置
func DefaultReporterConfig() ReporterConfig {
	return ReporterConfig{
		URL:         "http://localhost:8086",
		Org:         "cachekit",
		Bucket:      "cache_stats",
		Schedule:    "@every 30s",
		Measurement: "cache_stats",
	}
}

// Source 是一个可被上报的缓存：名称加统计快照。
// 不同键值类型的缓存通过 CacheSource 适配成统一的上报来源。
type Source interface {
	Name() string
	Snapshot() cache.Snapshot
}

type cacheSource[K comparable, V any] struct {
	name string
	c    *cache.Cache[K, V]
}

func (s cacheSource[K, V]) Name() string             { return s.name }
func (s cacheSource[K, V]) Snapshot() cache.Snapshot { return s.c.Stats() }

// CacheSource 将一个缓存实例包装为命名的上报来源。
func CacheSource[K comparable, V any](name string, c *cache.Cache[K, V]) Source {
	return cacheSource[K, V]{name: name, c: c}
}

// Reporter 周期性地将各来源的统计快照写入 InfluxDB。
type Reporter struct {
	config     ReporterConfig
	client     influxdb2.Client
	writeAPI   api.WriteAPI
	cron       *cron.Cron
	sources    []Source
	instanceID string
	log        *logger.Entry
}

// NewReporter 创建统计上报器。
func NewReporter(config ReporterConfig, sources ...Source) (*Reporter, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("influxdb url is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("influxdb bucket is required")
	}
	if config.Schedule == "" {
		config.Schedule = "@every 30s"
	}
	if config.Measurement == "" {
		config.Measurement = "cache_stats"
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one cache source is required")
	}

	client := influxdb2.NewClient(config.URL, config.Token)

	return &Reporter{
		config:     config,
		client:     client,
		writeAPI:   client.WriteAPI(config.Org, config.Bucket),
		cron:       cron.New(),
		sources:    sources,
		instanceID: uuid.New().String(),
		log:        logger.WithComponent("telemetry"),
	}, nil
}

// Start 按配置的 cron 表达式启动周期上报。
func (r *Reporter) Start() error {
	if _, err := r.cron.AddFunc(r.config.Schedule, r.report); err != nil {
		return fmt.Errorf("无效的上报调度表达式 %q: %w", r.config.Schedule, err)
	}
	r.cron.Start()
	r.log.Infof("统计上报已启动，调度: %s, 实例: %s", r.config.Schedule, r.instanceID)
	return nil
}

// report 采集所有来源的快照并异步写出。
func (r *Reporter) report() {
	now := time.Now()
	for _, source := range r.sources {
		r.writeAPI.WritePoint(r.buildPoint(source, now))
	}
}

// buildPoint 将一个来源的快照转换为 InfluxDB 数据点。
func (r *Reporter) buildPoint(source Source, now time.Time) *write.Point {
	snap := source.Snapshot()
	return influxdb2.NewPointWithMeasurement(r.config.Measurement).
		AddTag("cache", source.Name()).
		AddTag("instance", r.instanceID).
		AddField("hits", int64(snap.Hits)).
		AddField("misses", int64(snap.Misses)).
		AddField("evictions", int64(snap.Evictions)).
		AddField("insertions", int64(snap.Insertions)).
		AddField("size", snap.Size).
		AddField("max_size", snap.MaxSize).
		AddField("hit_rate", snap.HitRate).
		SetTime(now)
}

// Stop 停止调度并冲刷尚未写出的数据点。
func (r *Reporter) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.writeAPI.Flush()
	r.client.Close()
	r.log.Info("统计上报已停止")
}
